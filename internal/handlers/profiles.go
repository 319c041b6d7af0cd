package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/SynisterSage/verityapp-sub001/internal/profiles"
)

type ProfilesHandler struct {
	service *profiles.Service
}

func NewProfilesHandler(service *profiles.Service) *ProfilesHandler {
	return &ProfilesHandler{service: service}
}

func (h *ProfilesHandler) Register(e *echo.Echo) {
	group := e.Group("/profiles")
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/:profile_id", h.Get)
	group.PATCH("/:profile_id", h.Update)
	group.GET("/:profile_id/members", h.Members)
}

type createProfileRequest struct {
	DisplayName string `json:"display_name" validate:"required"`
	Region      string `json:"region"`
}

// Create godoc
// @Summary Create a protected profile
// @Description Create a profile for a protected individual; the caller becomes the circle admin
// @Tags profiles
// @Param payload body createProfileRequest true "Profile payload"
// @Success 200 {object} profiles.Profile
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /profiles [post]
func (h *ProfilesHandler) Create(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var req createProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	profile, err := h.service.Create(c.Request().Context(), userID, req.DisplayName, req.Region)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *ProfilesHandler) List(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	items, err := h.service.ForUser(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items})
}

func (h *ProfilesHandler) Get(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	profileID := strings.TrimSpace(c.Param("profile_id"))
	if profileID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "profile id is required")
	}
	if err := requireMember(c.Request().Context(), h.service, profileID, userID); err != nil {
		return err
	}
	profile, err := h.service.Get(c.Request().Context(), profileID)
	if err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "profile not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, profile)
}

// Update godoc
// @Summary Update profile settings
// @Description Patch the alert threshold, region of record, or safe phrases
// @Tags profiles
// @Param profile_id path string true "Profile ID"
// @Param payload body profiles.Settings true "Settings patch"
// @Success 200 {object} profiles.Profile
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /profiles/{profile_id} [patch]
func (h *ProfilesHandler) Update(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	profileID := strings.TrimSpace(c.Param("profile_id"))
	if profileID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "profile id is required")
	}
	if err := requireMember(c.Request().Context(), h.service, profileID, userID); err != nil {
		return err
	}
	var settings profiles.Settings
	if err := c.Bind(&settings); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	profile, err := h.service.UpdateSettings(c.Request().Context(), profileID, settings)
	if err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "profile not found")
		}
		if errors.Is(err, profiles.ErrInvalidSettings) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *ProfilesHandler) Members(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	profileID := strings.TrimSpace(c.Param("profile_id"))
	if profileID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "profile id is required")
	}
	if err := requireMember(c.Request().Context(), h.service, profileID, userID); err != nil {
		return err
	}
	items, err := h.service.Members(c.Request().Context(), profileID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items})
}
