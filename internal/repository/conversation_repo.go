package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dayoon-p/dmchat/internal/models"
	"github.com/jackc/pgx/v5"
)

type ConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Insert creates the conversation for a canonical (low, high) pair. When a
// concurrent request already created it, the unique constraint makes the
// insert a no-op and pgx.ErrNoRows is returned; callers fall back to
// GetByPair. userLowID must be less than userHighID.
func (r *ConversationRepository) Insert(
	ctx context.Context,
	userLowID int64,
	userHighID int64,
) (*models.Conversation, error) {
	query := `
		INSERT INTO conversations (user_low_id, user_high_id)
		VALUES ($1, $2)
		ON CONFLICT (user_low_id, user_high_id) DO NOTHING
		RETURNING id, created_at, updated_at, last_message_at
	`

	var conversation models.Conversation
	err := r.db.QueryRow(ctx, query, userLowID, userHighID).Scan(
		&conversation.ID,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
		&conversation.LastMessageAt,
	)
	if err != nil {
		return nil, err
	}

	return &conversation, nil
}

func (r *ConversationRepository) GetByPair(
	ctx context.Context,
	userLowID int64,
	userHighID int64,
) (*models.Conversation, error) {
	query := `
		SELECT id, created_at, updated_at, last_message_at
		FROM conversations
		WHERE user_low_id = $1 AND user_high_id = $2
	`

	var conversation models.Conversation
	err := r.db.QueryRow(ctx, query, userLowID, userHighID).Scan(
		&conversation.ID,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
		&conversation.LastMessageAt,
	)
	if err != nil {
		return nil, err
	}

	return &conversation, nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, conversationID int64) (*models.Conversation, error) {
	query := `
		SELECT id, created_at, updated_at, last_message_at
		FROM conversations
		WHERE id = $1
	`

	var conversation models.Conversation
	err := r.db.QueryRow(ctx, query, conversationID).Scan(
		&conversation.ID,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
		&conversation.LastMessageAt,
	)
	if err != nil {
		return nil, err
	}

	return &conversation, nil
}

func (r *ConversationRepository) AddMember(
	ctx context.Context,
	conversationID int64,
	userID int64,
) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO conversation_members (conversation_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (conversation_id, user_id) DO NOTHING
	`, conversationID, userID)
	return err
}

func (r *ConversationRepository) GetMember(
	ctx context.Context,
	conversationID int64,
	userID int64,
) (*models.ConversationMember, error) {
	query := `
		SELECT id, conversation_id, user_id, joined_at, last_read_at
		FROM conversation_members
		WHERE conversation_id = $1 AND user_id = $2
	`

	var member models.ConversationMember
	err := r.db.QueryRow(ctx, query, conversationID, userID).Scan(
		&member.ID,
		&member.ConversationID,
		&member.UserID,
		&member.JoinedAt,
		&member.LastReadAt,
	)
	if err != nil {
		return nil, err
	}

	return &member, nil
}

func (r *ConversationRepository) IsMember(
	ctx context.Context,
	conversationID int64,
	userID int64,
) (bool, error) {
	_, err := r.GetMember(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// OtherMemberID returns the DM peer of the given member.
func (r *ConversationRepository) OtherMemberID(
	ctx context.Context,
	conversationID int64,
	userID int64,
) (int64, error) {
	query := `
		SELECT user_id
		FROM conversation_members
		WHERE conversation_id = $1 AND user_id <> $2
		LIMIT 1
	`

	var otherID int64
	if err := r.db.QueryRow(ctx, query, conversationID, userID).Scan(&otherID); err != nil {
		return 0, err
	}

	return otherID, nil
}

// MarkRead advances the member's read cursor. The cursor never moves
// backwards: a readAt earlier than the stored value leaves it unchanged.
// A nil readAt means "now". Returns the stored cursor.
func (r *ConversationRepository) MarkRead(
	ctx context.Context,
	conversationID int64,
	userID int64,
	readAt *time.Time,
) (time.Time, error) {
	query := `
		UPDATE conversation_members
		SET last_read_at = GREATEST(
			COALESCE(last_read_at, '-infinity'::timestamptz),
			COALESCE($3::timestamptz, NOW())
		)
		WHERE conversation_id = $1 AND user_id = $2
		RETURNING last_read_at
	`

	var storedAt time.Time
	err := r.db.QueryRow(ctx, query, conversationID, userID, readAt).Scan(&storedAt)
	if err != nil {
		return time.Time{}, err
	}

	return storedAt, nil
}

// SetLastMessageAt republishes the conversation's last-activity timestamp
// after a message append; updated_at is bumped in the same row update.
func (r *ConversationRepository) SetLastMessageAt(
	ctx context.Context,
	conversationID int64,
	lastMessageAt time.Time,
) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET last_message_at = $2, updated_at = NOW()
		WHERE id = $1
	`, conversationID, lastMessageAt)
	return err
}

// ListForMember assembles the viewer's conversation list: DM peer, latest
// message, and the unread count scoped to the viewer's own read cursor.
func (r *ConversationRepository) ListForMember(
	ctx context.Context,
	viewerID int64,
) ([]models.ConversationSummary, error) {
	query := `
		SELECT
			c.id,
			c.created_at,
			c.updated_at,
			c.last_message_at,
			peer.id,
			peer.username,
			lm.id,
			lm.sender_id,
			lm.body,
			lm.created_at,
			COALESCE(uc.unread_count, 0)
		FROM conversations c
		JOIN conversation_members me
			ON me.conversation_id = c.id AND me.user_id = $1
		JOIN users peer
			ON peer.id = CASE WHEN c.user_low_id = $1 THEN c.user_high_id ELSE c.user_low_id END
		LEFT JOIN LATERAL (
			SELECT id, sender_id, body, created_at
			FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) lm ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread_count
			FROM messages m
			WHERE m.conversation_id = c.id
			  AND m.sender_id <> $1
			  AND (me.last_read_at IS NULL OR m.created_at > me.last_read_at)
		) uc ON TRUE
		ORDER BY c.last_message_at DESC NULLS LAST, c.updated_at DESC, c.created_at DESC
	`

	rows, err := r.db.Query(ctx, query, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var summary models.ConversationSummary
		var messageID sql.NullInt64
		var messageSenderID sql.NullInt64
		var messageBody sql.NullString
		var messageCreatedAt sql.NullTime

		if err := rows.Scan(
			&summary.ID,
			&summary.CreatedAt,
			&summary.UpdatedAt,
			&summary.LastMessageAt,
			&summary.OtherUser.ID,
			&summary.OtherUser.Username,
			&messageID,
			&messageSenderID,
			&messageBody,
			&messageCreatedAt,
			&summary.UnreadCount,
		); err != nil {
			return nil, err
		}

		if messageID.Valid {
			summary.LastMessage = &models.MessagePreview{
				ID:        messageID.Int64,
				SenderID:  messageSenderID.Int64,
				Body:      messageBody.String,
				CreatedAt: messageCreatedAt.Time,
			}
		}

		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}
