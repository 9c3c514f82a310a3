package models

import "time"

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserPublic is the shape exposed to other users (search results, DM peers).
type UserPublic struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

func (u *User) Public() UserPublic {
	return UserPublic{ID: u.ID, Username: u.Username}
}
