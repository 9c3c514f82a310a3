package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dayoon-p/dmchat/internal/models"
	"github.com/dayoon-p/dmchat/internal/repository"
)

const (
	defaultPageLimit = 30
	maxPageLimit     = 100
)

var errInvalidCursor = errors.New("invalid cursor")

func parsePositiveInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// encodeMessageCursor produces the opaque keyset cursor for the page that
// continues strictly after the given message in (created_at, id) descending
// order.
func encodeMessageCursor(message models.Message) string {
	raw := fmt.Sprintf("%s|%d", message.CreatedAt.UTC().Format(time.RFC3339Nano), message.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeMessageCursor(value string) (*repository.MessageCursor, error) {
	if value == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, errInvalidCursor
	}

	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return nil, errInvalidCursor
	}

	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, errInvalidCursor
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return nil, errInvalidCursor
	}

	return &repository.MessageCursor{CreatedAt: createdAt, ID: id}, nil
}
