package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// DeviceStore is the registration surface the service needs.
type DeviceStore interface {
	RegisterToken(ctx context.Context, profileID, token, platform string) (DeviceToken, error)
	RemoveToken(ctx context.Context, profileID, token string) (bool, error)
	ListAlerts(ctx context.Context, profileID string, limit int) ([]Alert, error)
}

// Service manages device registration and alert history for a profile.
type Service struct {
	store  DeviceStore
	logger *slog.Logger
}

func NewService(log *slog.Logger, store DeviceStore) *Service {
	return &Service{
		store:  store,
		logger: log.With(slog.String("component", "notify.devices")),
	}
}

// RegisterDevice upserts a push token. Re-registering a retired token
// reactivates it.
func (s *Service) RegisterDevice(ctx context.Context, profileID, token, platform string) (DeviceToken, error) {
	if s.store == nil {
		return DeviceToken{}, fmt.Errorf("device store not configured")
	}
	if strings.TrimSpace(profileID) == "" {
		return DeviceToken{}, fmt.Errorf("profile id is required")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return DeviceToken{}, fmt.Errorf("device token is required")
	}
	platform = strings.TrimSpace(platform)
	if platform == "" {
		platform = "expo"
	}

	registered, err := s.store.RegisterToken(ctx, profileID, token, platform)
	if err != nil {
		return DeviceToken{}, err
	}
	s.logger.Info("device registered",
		slog.String("profile_id", profileID),
		slog.String("token_id", registered.ID),
		slog.String("platform", platform),
	)
	return registered, nil
}

// RemoveDevice retires a token. Removing an unknown or already retired token
// is a silent no-op.
func (s *Service) RemoveDevice(ctx context.Context, profileID, token string) error {
	if s.store == nil {
		return fmt.Errorf("device store not configured")
	}
	token = strings.TrimSpace(token)
	if strings.TrimSpace(profileID) == "" || token == "" {
		return fmt.Errorf("profile id and device token are required")
	}
	removed, err := s.store.RemoveToken(ctx, profileID, token)
	if err != nil {
		return err
	}
	if removed {
		s.logger.Info("device removed", slog.String("profile_id", profileID))
	}
	return nil
}

// Alerts returns the profile's dispatched alerts, newest first.
func (s *Service) Alerts(ctx context.Context, profileID string, limit int) ([]Alert, error) {
	if s.store == nil {
		return nil, fmt.Errorf("device store not configured")
	}
	if strings.TrimSpace(profileID) == "" {
		return nil, fmt.Errorf("profile id is required")
	}
	return s.store.ListAlerts(ctx, profileID, limit)
}
