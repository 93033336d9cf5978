package dto

import (
	"github.com/concerttix/console/internal/domain"
	"github.com/concerttix/console/internal/session"
)

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Phone           string `json:"phone"`
}

// ProfileRequest updates the signed-in user.
type ProfileRequest struct {
	Name            *string `json:"name"`
	Phone           *string `json:"phone"`
	CurrentPassword string  `json:"current_password"`
	NewPassword     string  `json:"new_password"`
}

// SessionResponse describes the console session. The token never leaves
// the process.
type SessionResponse struct {
	State           string       `json:"state"`
	Loading         bool         `json:"loading"`
	IsAuthenticated bool         `json:"is_authenticated"`
	IsAdmin         bool         `json:"is_admin"`
	User            *domain.User `json:"user"`
}

// NewSessionResponse converts a snapshot.
func NewSessionResponse(s session.Snapshot) SessionResponse {
	return SessionResponse{
		State:           s.State.String(),
		Loading:         s.Loading,
		IsAuthenticated: s.IsAuthenticated(),
		IsAdmin:         s.IsAdmin(),
		User:            s.User,
	}
}
