package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dayoon-p/dmchat/internal/models"
	"github.com/dayoon-p/dmchat/internal/repository"
	"github.com/dayoon-p/dmchat/internal/services"
	chatws "github.com/dayoon-p/dmchat/internal/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

type stubChatService struct {
	conversationsResult []models.ConversationSummary
	conversationsErr    error
	startResult         *models.Conversation
	startCreated        bool
	startErr            error
	messagesResult      []models.Message
	messagesErr         error
	sendResult          *services.ChatDelivery
	sendErr             error
	markReadResult      time.Time
	markReadErr         error

	lastActorID        int64
	lastOtherUserID    int64
	lastConversationID int64
	lastLimit          int
	lastCursor         *repository.MessageCursor
	lastBody           string
	lastReadAt         *time.Time
}

func (s *stubChatService) ListConversations(_ context.Context, actorID int64) ([]models.ConversationSummary, error) {
	s.lastActorID = actorID
	return s.conversationsResult, s.conversationsErr
}

func (s *stubChatService) StartConversation(_ context.Context, actorID int64, otherUserID int64) (*models.Conversation, bool, error) {
	s.lastActorID = actorID
	s.lastOtherUserID = otherUserID
	return s.startResult, s.startCreated, s.startErr
}

func (s *stubChatService) ListMessages(_ context.Context, actorID int64, conversationID int64, limit int, before *repository.MessageCursor) ([]models.Message, error) {
	s.lastActorID = actorID
	s.lastConversationID = conversationID
	s.lastLimit = limit
	s.lastCursor = before
	return s.messagesResult, s.messagesErr
}

func (s *stubChatService) SendMessage(_ context.Context, actorID int64, conversationID int64, body string) (*services.ChatDelivery, error) {
	s.lastActorID = actorID
	s.lastConversationID = conversationID
	s.lastBody = body
	return s.sendResult, s.sendErr
}

func (s *stubChatService) MarkRead(_ context.Context, actorID int64, conversationID int64, readAt *time.Time) (time.Time, error) {
	s.lastActorID = actorID
	s.lastConversationID = conversationID
	s.lastReadAt = readAt
	return s.markReadResult, s.markReadErr
}

func newChatTestApp(service *stubChatService, actorID string) (*fiber.App, *ChatHandler) {
	handler := NewChatHandler(service, chatws.NewHub(), "secret")

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", actorID)
		return c.Next()
	})

	return app, handler
}

func TestListConversationsReturnsConversationSummaries(t *testing.T) {
	lastAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	service := &stubChatService{
		conversationsResult: []models.ConversationSummary{
			{
				Conversation: models.Conversation{ID: 17, LastMessageAt: &lastAt},
				OtherUser:    models.UserPublic{ID: 8, Username: "minji"},
				LastMessage: &models.MessagePreview{
					ID:        3,
					SenderID:  8,
					Body:      "See you tomorrow",
					CreatedAt: lastAt,
				},
				UnreadCount: 2,
			},
		},
	}
	app, handler := newChatTestApp(service, "42")
	app.Get("/api/v1/conversations", handler.ListConversations)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastActorID != 42 {
		t.Fatalf("unexpected actor id: %d", service.lastActorID)
	}

	var body struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.Conversations) != 1 || body.Conversations[0].UnreadCount != 2 {
		t.Fatalf("unexpected response: %+v", body.Conversations)
	}
	if body.Conversations[0].OtherUser.Username != "minji" {
		t.Fatalf("unexpected peer: %+v", body.Conversations[0].OtherUser)
	}
}

func TestCreateConversationReturns201WhenCreated(t *testing.T) {
	service := &stubChatService{
		startResult:  &models.Conversation{ID: 9},
		startCreated: true,
	}
	app, handler := newChatTestApp(service, "42")
	app.Post("/api/v1/conversations", handler.CreateConversation)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations", strings.NewReader(`{"other_user_id":7}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastOtherUserID != 7 {
		t.Fatalf("expected other user id 7, got %d", service.lastOtherUserID)
	}

	var body struct {
		Created bool `json:"created"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !body.Created {
		t.Fatalf("expected created=true")
	}
}

func TestCreateConversationReturns200WhenReused(t *testing.T) {
	service := &stubChatService{
		startResult:  &models.Conversation{ID: 9},
		startCreated: false,
	}
	app, handler := newChatTestApp(service, "42")
	app.Post("/api/v1/conversations", handler.CreateConversation)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations", strings.NewReader(`{"other_user_id":7}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestCreateConversationRejectsSelfDM(t *testing.T) {
	service := &stubChatService{startErr: services.ErrInvalidInput}
	app, handler := newChatTestApp(service, "42")
	app.Post("/api/v1/conversations", handler.CreateConversation)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations", strings.NewReader(`{"other_user_id":42}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetMessagesForwardsCursorAndReturnsNextCursor(t *testing.T) {
	older := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	newer := older.Add(time.Minute)
	service := &stubChatService{
		messagesResult: []models.Message{
			{ID: 6, ConversationID: 11, SenderID: 7, Body: "later", CreatedAt: newer},
			{ID: 5, ConversationID: 11, SenderID: 8, Body: "earlier", CreatedAt: older},
		},
	}
	app, handler := newChatTestApp(service, "7")
	app.Get("/api/v1/conversations/:id/messages", handler.GetMessages)

	cursor := encodeMessageCursor(models.Message{ID: 9, CreatedAt: newer.Add(time.Hour)})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/11/messages?limit=2&cursor="+cursor, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastConversationID != 11 || service.lastLimit != 2 {
		t.Fatalf("unexpected forwarded args: conversation=%d limit=%d", service.lastConversationID, service.lastLimit)
	}
	if service.lastCursor == nil || service.lastCursor.ID != 9 {
		t.Fatalf("expected decoded cursor id 9, got %+v", service.lastCursor)
	}

	var body struct {
		Messages   []models.Message `json:"messages"`
		NextCursor string           `json:"next_cursor"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.Messages) != 2 {
		t.Fatalf("unexpected messages: %+v", body.Messages)
	}
	if body.NextCursor == "" {
		t.Fatalf("expected next cursor for a full page")
	}

	next, err := decodeMessageCursor(body.NextCursor)
	if err != nil {
		t.Fatalf("decodeMessageCursor: %v", err)
	}
	if next.ID != 5 || !next.CreatedAt.Equal(older) {
		t.Fatalf("next cursor should point at the last returned message, got %+v", next)
	}
}

func TestGetMessagesRejectsMalformedCursor(t *testing.T) {
	service := &stubChatService{}
	app, handler := newChatTestApp(service, "7")
	app.Get("/api/v1/conversations/:id/messages", handler.GetMessages)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/11/messages?cursor=%21%21not-base64", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetMessagesReturnsNotFound(t *testing.T) {
	service := &stubChatService{messagesErr: pgx.ErrNoRows}
	app, handler := newChatTestApp(service, "7")
	app.Get("/api/v1/conversations/:id/messages", handler.GetMessages)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/99/messages", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestPostMessageReturnsCreatedMessage(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	service := &stubChatService{
		sendResult: &services.ChatDelivery{
			Conversation: &models.Conversation{ID: 11, LastMessageAt: &createdAt},
			Message:      &models.Message{ID: 5, ConversationID: 11, SenderID: 7, Body: "hi", CreatedAt: createdAt},
			RecipientID:  8,
		},
	}
	app, handler := newChatTestApp(service, "7")
	app.Post("/api/v1/conversations/:id/messages", handler.PostMessage)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/11/messages", strings.NewReader(`{"body":"hi"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastBody != "hi" || service.lastConversationID != 11 {
		t.Fatalf("unexpected forwarded args: body=%q conversation=%d", service.lastBody, service.lastConversationID)
	}

	var body struct {
		Message models.Message `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Message.ID != 5 || body.Message.Body != "hi" {
		t.Fatalf("unexpected message: %+v", body.Message)
	}
}

func TestPostMessageByNonMemberIsForbidden(t *testing.T) {
	service := &stubChatService{sendErr: services.ErrForbidden}
	app, handler := newChatTestApp(service, "7")
	app.Post("/api/v1/conversations/:id/messages", handler.PostMessage)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/11/messages", strings.NewReader(`{"body":"hi"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestMarkReadReturnsStoredCursor(t *testing.T) {
	storedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	service := &stubChatService{markReadResult: storedAt}
	app, handler := newChatTestApp(service, "7")
	app.Patch("/api/v1/conversations/:id/read", handler.MarkRead)

	req := httptest.NewRequest(
		http.MethodPatch,
		"/api/v1/conversations/11/read",
		strings.NewReader(`{"read_at":"2026-03-01T08:00:00Z"}`),
	)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastReadAt == nil || !service.lastReadAt.Equal(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected forwarded read_at, got %+v", service.lastReadAt)
	}

	var body struct {
		OK     bool      `json:"ok"`
		ReadAt time.Time `json:"read_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !body.OK || !body.ReadAt.Equal(storedAt) {
		t.Fatalf("unexpected response: %+v", body)
	}
}

func TestMarkReadDefaultsToServerTime(t *testing.T) {
	service := &stubChatService{markReadResult: time.Now()}
	app, handler := newChatTestApp(service, "7")
	app.Patch("/api/v1/conversations/:id/read", handler.MarkRead)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/conversations/11/read", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastReadAt != nil {
		t.Fatalf("expected nil read_at for empty body, got %v", service.lastReadAt)
	}
}
