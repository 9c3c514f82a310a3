package repository

import (
	"context"
	"time"

	"github.com/dayoon-p/dmchat/internal/models"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(
	ctx context.Context,
	conversationID int64,
	senderID int64,
	body string,
) (*models.Message, error) {
	query := `
		INSERT INTO messages (conversation_id, sender_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, conversation_id, sender_id, body, created_at
	`

	var message models.Message
	err := r.db.QueryRow(ctx, query, conversationID, senderID, body).Scan(
		&message.ID,
		&message.ConversationID,
		&message.SenderID,
		&message.Body,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &message, nil
}

// MessageCursor is a keyset position in the (created_at, id) descending order.
type MessageCursor struct {
	CreatedAt time.Time
	ID        int64
}

// ListByConversation returns messages newest-first, strictly before the
// cursor when one is given. Keyset pagination over (created_at, id) keeps
// pages stable under concurrent appends: no duplicates, no gaps.
func (r *MessageRepository) ListByConversation(
	ctx context.Context,
	conversationID int64,
	limit int,
	before *MessageCursor,
) ([]models.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, body, created_at
		FROM messages
		WHERE conversation_id = $1
		  AND ($2::timestamptz IS NULL OR (created_at, id) < ($2, $3))
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`

	var beforeCreatedAt *time.Time
	var beforeID int64
	if before != nil {
		beforeCreatedAt = &before.CreatedAt
		beforeID = before.ID
	}

	rows, err := r.db.Query(ctx, query, conversationID, beforeCreatedAt, beforeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var message models.Message
		if err := rows.Scan(
			&message.ID,
			&message.ConversationID,
			&message.SenderID,
			&message.Body,
			&message.CreatedAt,
		); err != nil {
			return nil, err
		}

		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

// CountUnread applies the read-cursor rule for one member: messages from the
// other sender strictly newer than lastReadAt; everything counts when the
// member has never read.
func (r *MessageRepository) CountUnread(
	ctx context.Context,
	conversationID int64,
	viewerID int64,
	lastReadAt *time.Time,
) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = $1
		  AND sender_id <> $2
		  AND ($3::timestamptz IS NULL OR created_at > $3)
	`

	var count int
	if err := r.db.QueryRow(ctx, query, conversationID, viewerID, lastReadAt).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}
