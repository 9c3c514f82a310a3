package handlers

import (
	"context"
	"strings"

	"github.com/dayoon-p/dmchat/internal/models"
	"github.com/gofiber/fiber/v2"
)

const userSearchLimit = 20

type userSearchRepository interface {
	Search(ctx context.Context, query string, excludeUserID int64, limit int) ([]models.UserPublic, error)
}

type UserHandler struct {
	userRepo userSearchRepository
}

func NewUserHandler(userRepo userSearchRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

// SearchUsers matches the query against usernames and emails of everyone but
// the caller. A blank query returns an empty list rather than the full table.
func (h *UserHandler) SearchUsers(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		return c.JSON(fiber.Map{"users": []models.UserPublic{}})
	}

	users, err := h.userRepo.Search(c.Context(), query, actorID, userSearchLimit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to search users"})
	}

	return c.JSON(fiber.Map{"users": users})
}
