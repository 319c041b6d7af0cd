package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/SynisterSage/verityapp-sub001/internal/escalate"
	"github.com/SynisterSage/verityapp-sub001/internal/profiles"
)

type ChannelsHandler struct {
	escalator      *escalate.Escalator
	profileService *profiles.Service
}

func NewChannelsHandler(escalator *escalate.Escalator, profileService *profiles.Service) *ChannelsHandler {
	return &ChannelsHandler{
		escalator:      escalator,
		profileService: profileService,
	}
}

func (h *ChannelsHandler) Register(e *echo.Echo) {
	group := e.Group("/profiles/:profile_id/channels")
	group.POST("", h.Create)
	group.GET("", h.List)
	group.DELETE("/:id", h.Remove)
}

type addChannelRequest struct {
	Kind   string            `json:"kind" validate:"required"`
	Config map[string]string `json:"config" validate:"required"`
}

// Create godoc
// @Summary Add an escalation channel
// @Description Register a chat channel that receives high-band alert escalations
// @Tags channels
// @Param profile_id path string true "Profile ID"
// @Param payload body addChannelRequest true "Channel payload"
// @Success 200 {object} escalate.Channel
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /profiles/{profile_id}/channels [post]
func (h *ChannelsHandler) Create(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	profileID := strings.TrimSpace(c.Param("profile_id"))
	if profileID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "profile id is required")
	}
	if err := requireAdmin(c.Request().Context(), h.profileService, profileID, userID); err != nil {
		return err
	}
	var req addChannelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	channel, err := h.escalator.AddChannel(c.Request().Context(), profileID, req.Kind, req.Config)
	if err != nil {
		if errors.Is(err, escalate.ErrUnsupportedKind) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, channel)
}

func (h *ChannelsHandler) List(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	profileID := strings.TrimSpace(c.Param("profile_id"))
	if profileID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "profile id is required")
	}
	if err := requireMember(c.Request().Context(), h.profileService, profileID, userID); err != nil {
		return err
	}
	items, err := h.escalator.Channels(c.Request().Context(), profileID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items})
}

func (h *ChannelsHandler) Remove(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	profileID := strings.TrimSpace(c.Param("profile_id"))
	if profileID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "profile id is required")
	}
	if err := requireAdmin(c.Request().Context(), h.profileService, profileID, userID); err != nil {
		return err
	}
	channelID := strings.TrimSpace(c.Param("id"))
	if channelID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "channel id is required")
	}
	if err := h.escalator.RemoveChannel(c.Request().Context(), profileID, channelID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
