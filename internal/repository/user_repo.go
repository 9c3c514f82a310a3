package repository

import (
	"context"
	"strings"

	"github.com/dayoon-p/dmchat/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so repositories can run
// inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query, user.Username, user.Email, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, email).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, id).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// escapeLike neutralizes LIKE metacharacters so the search term matches as a
// literal substring.
func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches the query as a literal substring of username or email,
// excluding the searching user, ordered by username.
func (r *UserRepository) Search(
	ctx context.Context,
	query string,
	excludeUserID int64,
	limit int,
) ([]models.UserPublic, error) {
	sql := `
		SELECT id, username
		FROM users
		WHERE id <> $1
		  AND (username ILIKE '%' || $2 || '%' ESCAPE '\'
		       OR email ILIKE '%' || $2 || '%' ESCAPE '\')
		ORDER BY username
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, sql, excludeUserID, escapeLike(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]models.UserPublic, 0)
	for rows.Next() {
		var user models.UserPublic
		if err := rows.Scan(&user.ID, &user.Username); err != nil {
			return nil, err
		}
		results = append(results, user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
