package invites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// createRetries bounds how often Create re-issues after losing the
// check-then-insert race to a concurrent writer.
const createRetries = 2

// acceptWindow is how long a pending invite stays redeemable.
const acceptWindow = 7 * 24 * time.Hour

// Store is the persistence surface the service needs.
type Store interface {
	CodeChecker
	InsertInvite(ctx context.Context, profileID string, role Role, code, invitedBy string) (Invite, error)
	GetInviteByCode(ctx context.Context, code string) (Invite, bool, error)
	ListInvites(ctx context.Context, profileID string) ([]Invite, error)
	RevokeInvite(ctx context.Context, profileID, inviteID string) (bool, error)
	AcceptInvite(ctx context.Context, inviteID, acceptedBy string) (Invite, bool, error)
}

// Service manages the invite lifecycle for circle onboarding.
type Service struct {
	store  Store
	issuer *Issuer
	logger *slog.Logger
}

func NewService(log *slog.Logger, store Store, issuer *Issuer) *Service {
	return &Service{
		store:  store,
		issuer: issuer,
		logger: log.With(slog.String("component", "invites")),
	}
}

// Create issues a fresh code and inserts the pending invite. A unique
// violation at insert time means another writer claimed the code between the
// check and the write; the invite is re-issued a bounded number of times.
func (s *Service) Create(ctx context.Context, profileID string, role Role, invitedBy string) (Invite, error) {
	if s.store == nil {
		return Invite{}, fmt.Errorf("invite store not configured")
	}
	if strings.TrimSpace(profileID) == "" {
		return Invite{}, fmt.Errorf("profile id is required")
	}
	if !role.Valid() {
		return Invite{}, fmt.Errorf("unknown invite role %q", role)
	}

	for attempt := 0; ; attempt++ {
		code, err := s.issuer.Issue(ctx, profileID)
		if err != nil {
			return Invite{}, err
		}
		invite, err := s.store.InsertInvite(ctx, profileID, role, code, invitedBy)
		if errors.Is(err, ErrCodeTaken) && attempt < createRetries {
			s.logger.Warn("invite code lost insert race",
				slog.String("profile_id", profileID),
				slog.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			return Invite{}, fmt.Errorf("insert invite: %w", err)
		}
		s.logger.Info("invite created",
			slog.String("profile_id", profileID),
			slog.String("invite_id", invite.ID),
			slog.String("role", string(role)),
		)
		return invite, nil
	}
}

// List returns every invite issued for the profile, newest first.
func (s *Service) List(ctx context.Context, profileID string) ([]Invite, error) {
	if s.store == nil {
		return nil, fmt.Errorf("invite store not configured")
	}
	if strings.TrimSpace(profileID) == "" {
		return nil, fmt.Errorf("profile id is required")
	}
	return s.store.ListInvites(ctx, profileID)
}

// Revoke cancels a pending invite. Settled invites cannot be revoked.
func (s *Service) Revoke(ctx context.Context, profileID, inviteID string) error {
	if s.store == nil {
		return fmt.Errorf("invite store not configured")
	}
	if strings.TrimSpace(profileID) == "" || strings.TrimSpace(inviteID) == "" {
		return fmt.Errorf("profile id and invite id are required")
	}
	revoked, err := s.store.RevokeInvite(ctx, profileID, inviteID)
	if err != nil {
		return fmt.Errorf("revoke invite: %w", err)
	}
	if !revoked {
		return ErrNotFound
	}
	s.logger.Info("invite revoked",
		slog.String("profile_id", profileID),
		slog.String("invite_id", inviteID),
	)
	return nil
}

// Accept redeems a pending invite for the joining user and returns it so the
// caller can grant the circle role it names.
func (s *Service) Accept(ctx context.Context, code, userID string) (Invite, error) {
	if s.store == nil {
		return Invite{}, fmt.Errorf("invite store not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return Invite{}, fmt.Errorf("user id is required")
	}
	code = NormalizeCode(code)
	if code == "" {
		return Invite{}, fmt.Errorf("invite code is required")
	}

	invite, found, err := s.store.GetInviteByCode(ctx, code)
	if err != nil {
		return Invite{}, fmt.Errorf("lookup invite: %w", err)
	}
	if !found {
		return Invite{}, ErrNotFound
	}
	if invite.Status != StatusPending {
		return Invite{}, ErrSettled
	}
	if time.Since(invite.CreatedAt) > acceptWindow {
		return Invite{}, ErrExpired
	}

	accepted, found, err := s.store.AcceptInvite(ctx, invite.ID, userID)
	if err != nil {
		return Invite{}, fmt.Errorf("accept invite: %w", err)
	}
	if !found {
		// Lost the race to another redeemer between lookup and update.
		return Invite{}, ErrSettled
	}
	s.logger.Info("invite accepted",
		slog.String("profile_id", accepted.ProfileID),
		slog.String("invite_id", accepted.ID),
		slog.String("user_id", userID),
	)
	return accepted, nil
}
