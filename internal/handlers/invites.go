package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/SynisterSage/verityapp-sub001/internal/invites"
	"github.com/SynisterSage/verityapp-sub001/internal/profiles"
)

type InvitesHandler struct {
	service        *invites.Service
	profileService *profiles.Service
}

func NewInvitesHandler(service *invites.Service, profileService *profiles.Service) *InvitesHandler {
	return &InvitesHandler{
		service:        service,
		profileService: profileService,
	}
}

func (h *InvitesHandler) Register(e *echo.Echo) {
	group := e.Group("/profiles/:profile_id/invites")
	group.POST("", h.Create)
	group.GET("", h.List)
	group.DELETE("/:id", h.Revoke)
	e.POST("/invites/accept", h.Accept)
}

type createInviteRequest struct {
	Role string `json:"role"`
}

type acceptInviteRequest struct {
	Code string `json:"code" validate:"required"`
}

// Create godoc
// @Summary Issue a circle invite
// @Description Issue a short-code invite granting the named circle role on acceptance
// @Tags invites
// @Param profile_id path string true "Profile ID"
// @Param payload body createInviteRequest true "Invite payload"
// @Success 200 {object} invites.Invite
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /profiles/{profile_id}/invites [post]
func (h *InvitesHandler) Create(c echo.Context) error {
	userID, profileID, err := h.authorize(c)
	if err != nil {
		return err
	}
	var req createInviteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	role := invites.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	if role == "" {
		role = invites.RoleEditor
	}
	if !role.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "role must be admin or editor")
	}
	invite, err := h.service.Create(c.Request().Context(), profileID, role, userID)
	if err != nil {
		if errors.Is(err, invites.ErrCodeSpaceExhausted) {
			return echo.NewHTTPError(http.StatusConflict, "invite code space exhausted, retry later")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, invite)
}

func (h *InvitesHandler) List(c echo.Context) error {
	_, profileID, err := h.authorize(c)
	if err != nil {
		return err
	}
	items, err := h.service.List(c.Request().Context(), profileID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items})
}

func (h *InvitesHandler) Revoke(c echo.Context) error {
	_, profileID, err := h.authorize(c)
	if err != nil {
		return err
	}
	inviteID := strings.TrimSpace(c.Param("id"))
	if inviteID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invite id is required")
	}
	if err := h.service.Revoke(c.Request().Context(), profileID, inviteID); err != nil {
		if errors.Is(err, invites.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "invite not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Accept godoc
// @Summary Accept an invite
// @Description Redeem a short code and join the profile's circle with the invited role
// @Tags invites
// @Param payload body acceptInviteRequest true "Accept payload"
// @Success 200 {object} profiles.Member
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /invites/accept [post]
func (h *InvitesHandler) Accept(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var req acceptInviteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	invite, err := h.service.Accept(c.Request().Context(), req.Code, userID)
	if err != nil {
		if errors.Is(err, invites.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "invite not found")
		}
		if errors.Is(err, invites.ErrSettled) {
			return echo.NewHTTPError(http.StatusConflict, "invite already settled")
		}
		if errors.Is(err, invites.ErrExpired) {
			return echo.NewHTTPError(http.StatusGone, "invite expired")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	member, err := h.profileService.AddMember(c.Request().Context(), invite.ProfileID, userID, string(invite.Role))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, member)
}

func (h *InvitesHandler) authorize(c echo.Context) (string, string, error) {
	userID, err := requireUserID(c)
	if err != nil {
		return "", "", err
	}
	profileID := strings.TrimSpace(c.Param("profile_id"))
	if profileID == "" {
		return "", "", echo.NewHTTPError(http.StatusBadRequest, "profile id is required")
	}
	if err := requireAdmin(c.Request().Context(), h.profileService, profileID, userID); err != nil {
		return "", "", err
	}
	return userID, profileID, nil
}
