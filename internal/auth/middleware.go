package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/concerttix/console/internal/domain"
	apperrors "github.com/concerttix/console/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	User  *domain.User
	Token string
}

// UserLookup resolves a token subject to a live account.
type UserLookup func(id int64) (*domain.User, bool)

// Revoked reports whether a token was withdrawn before its expiry.
type Revoked func(token string) bool

// BearerMiddleware validates bearer tokens and loads principals.
type BearerMiddleware struct {
	tokens  *TokenManager
	users   UserLookup
	revoked Revoked
}

// NewBearerMiddleware constructs middleware. revoked may be nil.
func NewBearerMiddleware(tokens *TokenManager, users UserLookup, revoked Revoked) *BearerMiddleware {
	return &BearerMiddleware{tokens: tokens, users: users, revoked: revoked}
}

// Handle enforces authentication for protected routes.
func (m *BearerMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}
	token := strings.Clone(parts[1])

	if m.revoked != nil && m.revoked(token) {
		return apperrors.NewUnauthorized("token has been revoked")
	}

	claims, err := m.tokens.ParseToken(token)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	user, ok := m.users(claims.UserID)
	if !ok {
		return apperrors.NewUnauthorized("user not found")
	}

	c.Locals(principalKey, &Principal{User: user, Token: token})
	return c.Next()
}

// RequireAdmin ensures the principal holds the admin role.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || !principal.User.IsAdmin() {
			return apperrors.NewForbidden("admin access required")
		}
		return c.Next()
	}
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
