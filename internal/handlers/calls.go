package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/SynisterSage/verityapp-sub001/internal/profiles"
	"github.com/SynisterSage/verityapp-sub001/internal/recordings"
	"github.com/SynisterSage/verityapp-sub001/internal/router"
)

type CallsHandler struct {
	processor      *router.CallProcessor
	archive        *recordings.Archive
	profileService *profiles.Service
}

func NewCallsHandler(processor *router.CallProcessor, archive *recordings.Archive, profileService *profiles.Service) *CallsHandler {
	return &CallsHandler{
		processor:      processor,
		archive:        archive,
		profileService: profileService,
	}
}

func (h *CallsHandler) Register(e *echo.Echo) {
	e.POST("/calls/events", h.Ingest)
	group := e.Group("/profiles/:profile_id")
	group.GET("/calls", h.List)
	group.GET("/calls/:id/recording", h.Recording)
}

type callEventRequest struct {
	ProfileID string `json:"profile_id" validate:"required"`
	CallID    string `json:"call_id"`
	Number    string `json:"number" validate:"required"`
	Locale    string `json:"locale"`
	Recording []byte `json:"recording,omitempty"`
}

// Ingest godoc
// @Summary Ingest a carrier call event
// @Description Run an inbound call through classification, screening, and risk analysis
// @Tags calls
// @Param payload body callEventRequest true "Call event payload"
// @Success 202 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /calls/events [post]
func (h *CallsHandler) Ingest(c echo.Context) error {
	var req callEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	outcome, err := h.processor.HandleCall(c.Request().Context(), router.CallEvent{
		ProfileID:  req.ProfileID,
		ExternalID: req.CallID,
		Number:     req.Number,
		Locale:     req.Locale,
		Recording:  req.Recording,
	})
	if err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "profile not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"call_id": outcome.Call.ID,
		"status":  outcome.Status,
		"alerted": outcome.Alerted,
	})
}

func (h *CallsHandler) List(c echo.Context) error {
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
	items, err := h.processor.Calls(c.Request().Context(), profileID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items})
}

// Recording streams the archived audio for one screened call.
func (h *CallsHandler) Recording(c echo.Context) error {
	_, profileID, err := h.authorize(c)
	if err != nil {
		return err
	}
	callID := strings.TrimSpace(c.Param("id"))
	if callID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "call id is required")
	}
	if h.archive == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "recording archive not configured")
	}
	record, found, err := h.processor.Call(c.Request().Context(), profileID, callID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "call not found")
	}
	if record.RecordingHash == "" {
		return echo.NewHTTPError(http.StatusNotFound, "call has no recording")
	}
	reader, err := h.archive.Open(record.RecordingHash)
	if err != nil {
		if errors.Is(err, recordings.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "recording not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer func() {
		_ = reader.Close()
	}()
	return c.Stream(http.StatusOK, "audio/wav", reader)
}

func (h *CallsHandler) authorize(c echo.Context) (string, string, error) {
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
