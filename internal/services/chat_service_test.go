package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dayoon-p/dmchat/internal/models"
	"github.com/jackc/pgx/v5"
)

type stubUserReader struct {
	user *models.User
	err  error
}

func (r *stubUserReader) GetByID(_ context.Context, _ int64) (*models.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.user, nil
}

func newValidationOnlyService(userRepo userReader) *ChatService {
	// Repos stay nil: these tests only cover paths that fail before any
	// database access.
	return NewChatService(nil, nil, nil, userRepo)
}

func TestStartConversationRejectsSelfDM(t *testing.T) {
	service := newValidationOnlyService(&stubUserReader{})

	_, _, err := service.StartConversation(context.Background(), 42, 42)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestStartConversationRejectsNonPositiveTarget(t *testing.T) {
	service := newValidationOnlyService(&stubUserReader{})

	for _, otherID := range []int64{0, -3} {
		_, _, err := service.StartConversation(context.Background(), 42, otherID)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("other=%d: expected ErrInvalidInput, got %v", otherID, err)
		}
	}
}

func TestStartConversationRejectsUnknownUser(t *testing.T) {
	service := newValidationOnlyService(&stubUserReader{err: pgx.ErrNoRows})

	_, _, err := service.StartConversation(context.Background(), 42, 7)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSendMessageRejectsEmptyBody(t *testing.T) {
	service := newValidationOnlyService(&stubUserReader{})

	for _, body := range []string{"", "   ", "\n\t"} {
		_, err := service.SendMessage(context.Background(), 42, 11, body)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("body=%q: expected ErrInvalidInput, got %v", body, err)
		}
	}
}

func TestSendMessageRejectsOversizedBody(t *testing.T) {
	service := newValidationOnlyService(&stubUserReader{})

	body := strings.Repeat("가", MaxMessageLength+1)
	_, err := service.SendMessage(context.Background(), 42, 11, body)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSendMessageRejectsInvalidConversationID(t *testing.T) {
	service := newValidationOnlyService(&stubUserReader{})

	_, err := service.SendMessage(context.Background(), 42, 0, "hi")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestListMessagesRejectsInvalidArguments(t *testing.T) {
	service := newValidationOnlyService(&stubUserReader{})

	if _, err := service.ListMessages(context.Background(), 42, 0, 10, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("conversation=0: expected ErrInvalidInput, got %v", err)
	}
	if _, err := service.ListMessages(context.Background(), 42, 11, 0, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("limit=0: expected ErrInvalidInput, got %v", err)
	}
}

func TestMarkReadRejectsInvalidConversationID(t *testing.T) {
	service := newValidationOnlyService(&stubUserReader{})

	if _, err := service.MarkRead(context.Background(), 42, -1, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
