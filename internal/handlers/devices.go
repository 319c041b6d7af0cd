package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/SynisterSage/verityapp-sub001/internal/notify"
	"github.com/SynisterSage/verityapp-sub001/internal/profiles"
)

type DevicesHandler struct {
	service        *notify.Service
	profileService *profiles.Service
}

func NewDevicesHandler(service *notify.Service, profileService *profiles.Service) *DevicesHandler {
	return &DevicesHandler{
		service:        service,
		profileService: profileService,
	}
}

func (h *DevicesHandler) Register(e *echo.Echo) {
	group := e.Group("/profiles/:profile_id")
	group.POST("/devices", h.Create)
	group.DELETE("/devices", h.Remove)
	group.GET("/alerts", h.Alerts)
}

type registerDeviceRequest struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"required"`
}

type removeDeviceRequest struct {
	Token string `json:"token" validate:"required"`
}

// Create godoc
// @Summary Register a push device
// @Description Register an Expo push token so the caregiver's device receives alerts
// @Tags devices
// @Param profile_id path string true "Profile ID"
// @Param payload body registerDeviceRequest true "Device payload"
// @Success 200 {object} notify.DeviceToken
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /profiles/{profile_id}/devices [post]
func (h *DevicesHandler) Create(c echo.Context) error {
	_, profileID, err := h.authorize(c)
	if err != nil {
		return err
	}
	var req registerDeviceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	token, err := h.service.RegisterDevice(c.Request().Context(), profileID, req.Token, req.Platform)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, token)
}

func (h *DevicesHandler) Remove(c echo.Context) error {
	_, profileID, err := h.authorize(c)
	if err != nil {
		return err
	}
	var req removeDeviceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.service.RemoveDevice(c.Request().Context(), profileID, req.Token); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *DevicesHandler) Alerts(c echo.Context) error {
	_, profileID, err := h.authorize(c)
	if err != nil {
		return err
	}
	limit := 0
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = parsed
	}
	items, err := h.service.Alerts(c.Request().Context(), profileID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items})
}

func (h *DevicesHandler) authorize(c echo.Context) (string, string, error) {
	userID, err := requireUserID(c)
	if err != nil {
		return "", "", err
	}
	profileID := strings.TrimSpace(c.Param("profile_id"))
	if profileID == "" {
		return "", "", echo.NewHTTPError(http.StatusBadRequest, "profile id is required")
	}
	if err := requireMember(c.Request().Context(), h.profileService, profileID, userID); err != nil {
		return "", "", err
	}
	return userID, profileID, nil
}
