package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dayoon-p/dmchat/internal/models"
	"github.com/dayoon-p/dmchat/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrUserNotFound = errors.New("user not found")
)

// MaxMessageLength is the maximum message body size in characters.
const MaxMessageLength = 5000

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type ChatService struct {
	db               *pgxpool.Pool
	conversationRepo *repository.ConversationRepository
	messageRepo      *repository.MessageRepository
	userRepo         userReader
}

// ChatDelivery carries a freshly appended message plus the peer it should be
// pushed to over the realtime channel.
type ChatDelivery struct {
	Conversation *models.Conversation
	Message      *models.Message
	RecipientID  int64
}

func NewChatService(
	db *pgxpool.Pool,
	conversationRepo *repository.ConversationRepository,
	messageRepo *repository.MessageRepository,
	userRepo userReader,
) *ChatService {
	return &ChatService{
		db:               db,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		userRepo:         userRepo,
	}
}

func (s *ChatService) ListConversations(
	ctx context.Context,
	actorID int64,
) ([]models.ConversationSummary, error) {
	return s.conversationRepo.ListForMember(ctx, actorID)
}

// StartConversation finds or creates the DM between the actor and the target
// user. The member pair is stored in canonical (low, high) order under a
// unique constraint, so two concurrent calls for the same pair always settle
// on one conversation with exactly one created=true result.
func (s *ChatService) StartConversation(
	ctx context.Context,
	actorID int64,
	otherUserID int64,
) (*models.Conversation, bool, error) {
	if otherUserID <= 0 || otherUserID == actorID {
		return nil, false, ErrInvalidInput
	}

	if _, err := s.userRepo.GetByID(ctx, otherUserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrUserNotFound
		}
		return nil, false, err
	}

	userLowID, userHighID := actorID, otherUserID
	if userLowID > userHighID {
		userLowID, userHighID = userHighID, userLowID
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txConversationRepo := repository.NewConversationRepository(tx)

	conversation, err := txConversationRepo.GetByPair(ctx, userLowID, userHighID)
	if err == nil {
		return conversation, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	created := true
	conversation, err = txConversationRepo.Insert(ctx, userLowID, userHighID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, false, err
		}
		// Lost the insert race; the committed winner is visible now.
		conversation, err = txConversationRepo.GetByPair(ctx, userLowID, userHighID)
		if err != nil {
			return nil, false, err
		}
		created = false
	}

	if created {
		if err := txConversationRepo.AddMember(ctx, conversation.ID, userLowID); err != nil {
			return nil, false, err
		}
		if err := txConversationRepo.AddMember(ctx, conversation.ID, userHighID); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}

	return conversation, created, nil
}

func (s *ChatService) ListMessages(
	ctx context.Context,
	actorID int64,
	conversationID int64,
	limit int,
	before *repository.MessageCursor,
) ([]models.Message, error) {
	if conversationID <= 0 || limit <= 0 {
		return nil, ErrInvalidInput
	}

	if err := s.requireMember(ctx, conversationID, actorID); err != nil {
		return nil, err
	}

	return s.messageRepo.ListByConversation(ctx, conversationID, limit, before)
}

// SendMessage appends a message and republishes the conversation's
// last-activity timestamp in the same transaction.
func (s *ChatService) SendMessage(
	ctx context.Context,
	actorID int64,
	conversationID int64,
	body string,
) (*ChatDelivery, error) {
	if conversationID <= 0 {
		return nil, ErrInvalidInput
	}

	trimmed := strings.TrimSpace(body)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > MaxMessageLength {
		return nil, ErrInvalidInput
	}

	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	isMember, err := s.conversationRepo.IsMember(ctx, conversationID, actorID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrForbidden
	}

	recipientID, err := s.conversationRepo.OtherMemberID(ctx, conversationID, actorID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txMessageRepo := repository.NewMessageRepository(tx)
	txConversationRepo := repository.NewConversationRepository(tx)

	message, err := txMessageRepo.Create(ctx, conversationID, actorID, trimmed)
	if err != nil {
		return nil, err
	}

	if err := txConversationRepo.SetLastMessageAt(ctx, conversationID, message.CreatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	conversation.LastMessageAt = &message.CreatedAt

	return &ChatDelivery{
		Conversation: conversation,
		Message:      message,
		RecipientID:  recipientID,
	}, nil
}

// MarkRead advances the actor's read cursor and returns the stored value.
// The cursor is monotonic: an earlier readAt never moves it backwards.
func (s *ChatService) MarkRead(
	ctx context.Context,
	actorID int64,
	conversationID int64,
	readAt *time.Time,
) (time.Time, error) {
	if conversationID <= 0 {
		return time.Time{}, ErrInvalidInput
	}

	if err := s.requireMember(ctx, conversationID, actorID); err != nil {
		return time.Time{}, err
	}

	return s.conversationRepo.MarkRead(ctx, conversationID, actorID, readAt)
}

// requireMember distinguishes an unknown conversation (pgx.ErrNoRows, mapped
// to 404) from an existing one the actor does not belong to (ErrForbidden).
func (s *ChatService) requireMember(ctx context.Context, conversationID, actorID int64) error {
	if _, err := s.conversationRepo.GetByID(ctx, conversationID); err != nil {
		return err
	}

	isMember, err := s.conversationRepo.IsMember(ctx, conversationID, actorID)
	if err != nil {
		return err
	}
	if !isMember {
		return ErrForbidden
	}

	return nil
}

func FormatChatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}
