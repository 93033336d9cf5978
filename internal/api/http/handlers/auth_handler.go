package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/concerttix/console/internal/api/dto"
	"github.com/concerttix/console/internal/domain"
	"github.com/concerttix/console/internal/session"
	apperrors "github.com/concerttix/console/pkg/util/errorutil"
)

const minPasswordLength = 6

// AuthHandler drives the console session.
type AuthHandler struct {
	sessions *session.Manager
}

// NewAuthHandler constructs handler.
func NewAuthHandler(sessions *session.Manager) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}
	if _, err := h.sessions.Login(c.UserContext(), strings.TrimSpace(req.Email), req.Password); err != nil {
		return err
	}
	return data(c, http.StatusOK, dto.NewSessionResponse(h.sessions.Snapshot()))
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("name, email, password required", nil)
	}
	if len(req.Password) < minPasswordLength {
		return apperrors.NewValidationError("password must be at least 6 characters", nil)
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		return apperrors.NewValidationError("passwords do not match", nil)
	}

	_, err := h.sessions.Register(c.UserContext(), domain.Registration{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		Phone:    strings.TrimSpace(req.Phone),
	})
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, dto.NewSessionResponse(h.sessions.Snapshot()))
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.sessions.Logout(c.UserContext())
	return data(c, http.StatusOK, dto.NewSessionResponse(h.sessions.Snapshot()))
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	if _, err := h.sessions.Refresh(c.UserContext()); err != nil {
		return err
	}
	return data(c, http.StatusOK, dto.NewSessionResponse(h.sessions.Snapshot()))
}

// Session handles GET /auth/session.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	return data(c, http.StatusOK, dto.NewSessionResponse(h.sessions.Snapshot()))
}

// UpdateProfile handles PUT /auth/profile.
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	var req dto.ProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.NewPassword != "" {
		if req.CurrentPassword == "" {
			return apperrors.NewValidationError("current password required to set a new one", nil)
		}
		if len(req.NewPassword) < minPasswordLength {
			return apperrors.NewValidationError("password must be at least 6 characters", nil)
		}
	}

	user, err := h.sessions.UpdateProfile(c.UserContext(), domain.ProfilePatch{
		Name:            req.Name,
		Phone:           req.Phone,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, fiber.Map{"user": user})
}
