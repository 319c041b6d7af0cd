package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/SynisterSage/verityapp-sub001/internal/auth"
	"github.com/SynisterSage/verityapp-sub001/internal/identity"
)

// TokenHandler issues development bearer tokens. The server only registers it
// outside production.
type TokenHandler struct {
	secret string
}

func NewTokenHandler(secret string) *TokenHandler {
	return &TokenHandler{secret: secret}
}

func (h *TokenHandler) Register(e *echo.Echo) {
	e.POST("/auth/token", h.Issue)
}

type issueTokenRequest struct {
	UserID string `json:"user_id"`
}

type issueTokenResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Issue mints a token for the given user id, or a fresh one when omitted.
func (h *TokenHandler) Issue(c echo.Context) error {
	var req issueTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = uuid.NewString()
	} else if err := identity.ValidateUserID(userID); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	token, expiresAt, err := auth.GenerateToken(userID, h.secret, auth.DefaultTokenTTL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, issueTokenResponse{
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt,
	})
}
