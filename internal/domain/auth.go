package domain

// AuthResult is the payload of a successful login or registration.
type AuthResult struct {
	User        *User  `json:"user"`
	AccessToken string `json:"access_token"`
}

// Credentials for login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration describes a new account.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
}

// ProfilePatch updates the current user. Nil fields are left unchanged.
type ProfilePatch struct {
	Name            *string `json:"name,omitempty"`
	Phone           *string `json:"phone,omitempty"`
	CurrentPassword string  `json:"current_password,omitempty"`
	NewPassword     string  `json:"new_password,omitempty"`
}

// UserUpdate is the admin-side user edit.
type UserUpdate struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
	Role  *Role   `json:"role,omitempty"`
}
