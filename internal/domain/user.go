package domain

import (
	"errors"
	"strings"
)

// Role is the account role reported by the API.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the profile of an account as returned by the API.
type User struct {
	ID        int64      `json:"user_id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	Phone     *string    `json:"phone"`
	CreatedAt *Timestamp `json:"created_at,omitempty"`
	UpdatedAt *Timestamp `json:"updated_at,omitempty"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Validate checks the fields the session relies on.
func (u *User) Validate() error {
	if u == nil {
		return errors.New("user missing")
	}
	if u.ID <= 0 {
		return errors.New("user_id missing")
	}
	if strings.TrimSpace(u.Email) == "" {
		return errors.New("email missing")
	}
	switch u.Role {
	case RoleUser, RoleAdmin:
	default:
		return errors.New("unknown role " + string(u.Role))
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate session state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Phone != nil {
		p := *u.Phone
		c.Phone = &p
	}
	if u.CreatedAt != nil {
		ts := *u.CreatedAt
		c.CreatedAt = &ts
	}
	if u.UpdatedAt != nil {
		ts := *u.UpdatedAt
		c.UpdatedAt = &ts
	}
	return &c
}
