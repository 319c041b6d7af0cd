package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/SynisterSage/verityapp-sub001/internal/caller"
	"github.com/SynisterSage/verityapp-sub001/internal/profiles"
	"github.com/SynisterSage/verityapp-sub001/internal/screening"
)

type ScreeningHandler struct {
	classifier     *caller.Classifier
	ledger         *screening.Ledger
	profileService *profiles.Service
}

func NewScreeningHandler(classifier *caller.Classifier, ledger *screening.Ledger, profileService *profiles.Service) *ScreeningHandler {
	return &ScreeningHandler{
		classifier:     classifier,
		ledger:         ledger,
		profileService: profileService,
	}
}

func (h *ScreeningHandler) Register(e *echo.Echo) {
	group := e.Group("/profiles/:profile_id")
	group.GET("/screening", h.Lookup)
	group.POST("/trusted", h.Trust)
	group.POST("/blocked", h.Block)
	group.DELETE("/trusted/:hash", h.RemoveTrusted)
	group.DELETE("/blocked/:hash", h.RemoveBlocked)
	group.GET("/trusted", h.ListTrusted)
	group.GET("/blocked", h.ListBlocked)
}

type screenNumberRequest struct {
	Number string `json:"number" validate:"required"`
}

// Lookup godoc
// @Summary Screen a raw number
// @Description Classify a raw number against the profile's region and report its ledger status
// @Tags screening
// @Param profile_id path string true "Profile ID"
// @Param n query string true "Raw phone number"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /profiles/{profile_id}/screening [get]
func (h *ScreeningHandler) Lookup(c echo.Context) error {
	_, profileID, err := h.authorize(c)
	if err != nil {
		return err
	}
	number := strings.TrimSpace(c.QueryParam("n"))
	if number == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter n is required")
	}
	profile, err := h.profileService.Get(c.Request().Context(), profileID)
	if err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "profile not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	identity := h.classifier.Classify(number, profile.Region)
	hash := caller.Hash(identity.E164)
	status, err := h.ledger.Status(c.Request().Context(), profileID, hash)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"identity":    identity,
		"caller_hash": hash,
		"status":      status,
	})
}

func (h *ScreeningHandler) Trust(c echo.Context) error {
	return h.settle(c, screening.KindTrusted)
}

func (h *ScreeningHandler) Block(c echo.Context) error {
	return h.settle(c, screening.KindBlocked)
}

func (h *ScreeningHandler) settle(c echo.Context, kind screening.Kind) error {
	_, profileID, err := h.authorize(c)
	if err != nil {
		return err
	}
	var req screenNumberRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	profile, err := h.profileService.Get(c.Request().Context(), profileID)
	if err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "profile not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	identity := h.classifier.Classify(req.Number, profile.Region)
	if identity.Empty() {
		return echo.NewHTTPError(http.StatusBadRequest, "number could not be parsed")
	}
	hash := caller.Hash(identity.E164)
	var settleErr error
	if kind == screening.KindTrusted {
		settleErr = h.ledger.Trust(c.Request().Context(), profileID, hash)
	} else {
		settleErr = h.ledger.Block(c.Request().Context(), profileID, hash)
	}
	if settleErr != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, settleErr.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{
		"caller_hash": hash,
		"status":      kind.String(),
	})
}

func (h *ScreeningHandler) RemoveTrusted(c echo.Context) error {
	return h.remove(c, screening.KindTrusted)
}

func (h *ScreeningHandler) RemoveBlocked(c echo.Context) error {
	return h.remove(c, screening.KindBlocked)
}

func (h *ScreeningHandler) remove(c echo.Context, kind screening.Kind) error {
	_, profileID, err := h.authorize(c)
	if err != nil {
		return err
	}
	hash := strings.TrimSpace(c.Param("hash"))
	if hash == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "caller hash is required")
	}
	if err := h.ledger.Remove(c.Request().Context(), profileID, hash, kind); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ScreeningHandler) ListTrusted(c echo.Context) error {
	return h.list(c, screening.KindTrusted)
}

func (h *ScreeningHandler) ListBlocked(c echo.Context) error {
	return h.list(c, screening.KindBlocked)
}

func (h *ScreeningHandler) list(c echo.Context, kind screening.Kind) error {
	_, profileID, err := h.authorize(c)
	if err != nil {
		return err
	}
	items, err := h.ledger.List(c.Request().Context(), profileID, kind)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items})
}

func (h *ScreeningHandler) authorize(c echo.Context) (string, string, error) {
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
