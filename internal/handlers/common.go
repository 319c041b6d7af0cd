// Package handlers exposes the HTTP surface of the screening service. Every
// route except the health, metrics, and dev token endpoints sits behind the
// JWT middleware; handlers resolve the caregiver from the token claims and
// check circle membership before touching profile-scoped state.
package handlers

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/SynisterSage/verityapp-sub001/internal/auth"
	"github.com/SynisterSage/verityapp-sub001/internal/identity"
	"github.com/SynisterSage/verityapp-sub001/internal/profiles"
)

// ErrorResponse is the JSON error envelope echo renders for HTTP errors.
type ErrorResponse struct {
	Message string `json:"message"`
}

// Validator adapts go-playground/validator to echo's request validation hook.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate checks struct tags and maps failures to a 400 so handlers can
// return the error as-is.
func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func requireUserID(c echo.Context) (string, error) {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return "", err
	}
	if err := identity.ValidateUserID(userID); err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return userID, nil
}

func requireMember(ctx context.Context, svc *profiles.Service, profileID, userID string) error {
	if svc == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "profile service not configured")
	}
	ok, err := svc.Authorize(ctx, profileID, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusForbidden, "not a circle member")
	}
	return nil
}

func requireAdmin(ctx context.Context, svc *profiles.Service, profileID, userID string) error {
	if svc == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "profile service not configured")
	}
	role, err := svc.Role(ctx, profileID, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if role != "admin" {
		return echo.NewHTTPError(http.StatusForbidden, "admin role required")
	}
	return nil
}
