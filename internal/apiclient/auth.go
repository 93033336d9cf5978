package apiclient

import (
	"context"
	"net/http"

	"github.com/concerttix/console/internal/domain"
	"github.com/concerttix/console/internal/tokenstore"
	apperrors "github.com/concerttix/console/pkg/util/errorutil"
)

// Login exchanges credentials for a token and profile. A 401 here means the
// credentials were wrong, never that a session expired.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error) {
	var out domain.AuthResult
	if err := c.sendJSON(ctx, http.MethodPost, "/auth/login", creds, &out); err != nil {
		return nil, err
	}
	if err := validateAuthResult(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, reg domain.Registration) (*domain.AuthResult, error) {
	var out domain.AuthResult
	if err := c.sendJSON(ctx, http.MethodPost, "/auth/register", reg, &out); err != nil {
		return nil, err
	}
	if err := validateAuthResult(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile fetches the current user.
func (c *Client) Profile(ctx context.Context) (*domain.User, error) {
	var out domain.User
	if err := c.getJSON(ctx, "/auth/profile", nil, &out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, apperrors.NewInvalidResponse("invalid profile", err)
	}
	return &out, nil
}

// UpdateProfile applies patch and returns the server's copy of the user.
func (c *Client) UpdateProfile(ctx context.Context, patch domain.ProfilePatch) (*domain.User, error) {
	var out domain.User
	if err := c.sendJSON(ctx, http.MethodPut, "/auth/profile", patch, &out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, apperrors.NewInvalidResponse("invalid profile", err)
	}
	return &out, nil
}

func validateAuthResult(res *domain.AuthResult) error {
	if err := tokenstore.ValidateTokenShape(res.AccessToken); err != nil {
		return apperrors.NewInvalidResponse("invalid access token", err)
	}
	if err := res.User.Validate(); err != nil {
		return apperrors.NewInvalidResponse("invalid user", err)
	}
	return nil
}
