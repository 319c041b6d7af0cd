package profiles

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultAlertThreshold is the score at which a new profile's circle is
// alerted.
const DefaultAlertThreshold = 0.85

// Store is the persistence surface the service needs.
type Store interface {
	CreateProfile(ctx context.Context, creatorUserID, displayName, region string) (Profile, error)
	GetProfile(ctx context.Context, profileID string) (Profile, bool, error)
	UpdateSettings(ctx context.Context, profileID string, settings Settings) (Profile, bool, error)
	AddMember(ctx context.Context, profileID, userID, role string) (Member, error)
	ListMembers(ctx context.Context, profileID string) ([]Member, error)
	IsMember(ctx context.Context, profileID, userID string) (bool, error)
	MemberRole(ctx context.Context, profileID, userID string) (string, bool, error)
	ProfilesForUser(ctx context.Context, userID string) ([]Profile, error)
}

// Service owns profile and circle-membership rules.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(log *slog.Logger, store Store) *Service {
	return &Service{
		store:  store,
		logger: log.With(slog.String("component", "profiles")),
	}
}

// Create sets up a profile and enrolls the creator as its first admin.
func (s *Service) Create(ctx context.Context, creatorUserID, displayName, region string) (Profile, error) {
	if s.store == nil {
		return Profile{}, fmt.Errorf("profile store not configured")
	}
	if strings.TrimSpace(creatorUserID) == "" {
		return Profile{}, fmt.Errorf("creator user id is required")
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return Profile{}, fmt.Errorf("display name is required")
	}
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = "US"
	}

	profile, err := s.store.CreateProfile(ctx, creatorUserID, displayName, region)
	if err != nil {
		return Profile{}, fmt.Errorf("create profile: %w", err)
	}
	s.logger.Info("profile created",
		slog.String("profile_id", profile.ID),
		slog.String("region", region),
	)
	return profile, nil
}

func (s *Service) Get(ctx context.Context, profileID string) (Profile, error) {
	if s.store == nil {
		return Profile{}, fmt.Errorf("profile store not configured")
	}
	profile, found, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	if !found {
		return Profile{}, ErrNotFound
	}
	return profile, nil
}

// UpdateSettings applies a partial settings update. Safe phrases are trimmed
// and blanks dropped; the alert threshold must stay within [0, 1].
func (s *Service) UpdateSettings(ctx context.Context, profileID string, settings Settings) (Profile, error) {
	if s.store == nil {
		return Profile{}, fmt.Errorf("profile store not configured")
	}
	if settings.AlertThreshold != nil {
		if *settings.AlertThreshold < 0 || *settings.AlertThreshold > 1 {
			return Profile{}, fmt.Errorf("%w: alert threshold must be between 0 and 1", ErrInvalidSettings)
		}
	}
	if settings.Region != nil {
		trimmed := strings.ToUpper(strings.TrimSpace(*settings.Region))
		if trimmed == "" {
			return Profile{}, fmt.Errorf("%w: region cannot be blank", ErrInvalidSettings)
		}
		settings.Region = &trimmed
	}
	if settings.SafePhrases != nil {
		cleaned := make([]string, 0, len(settings.SafePhrases))
		for _, phrase := range settings.SafePhrases {
			if trimmed := strings.TrimSpace(phrase); trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		settings.SafePhrases = cleaned
	}

	profile, found, err := s.store.UpdateSettings(ctx, profileID, settings)
	if err != nil {
		return Profile{}, fmt.Errorf("update settings: %w", err)
	}
	if !found {
		return Profile{}, ErrNotFound
	}
	s.logger.Info("profile settings updated", slog.String("profile_id", profileID))
	return profile, nil
}

// AddMember grants a user a role in the circle, updating the role when the
// user is already a member.
func (s *Service) AddMember(ctx context.Context, profileID, userID, role string) (Member, error) {
	if s.store == nil {
		return Member{}, fmt.Errorf("profile store not configured")
	}
	if strings.TrimSpace(profileID) == "" || strings.TrimSpace(userID) == "" {
		return Member{}, fmt.Errorf("profile id and user id are required")
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role != "admin" && role != "editor" {
		return Member{}, fmt.Errorf("unknown circle role %q", role)
	}

	member, err := s.store.AddMember(ctx, profileID, userID, role)
	if err != nil {
		return Member{}, fmt.Errorf("add member: %w", err)
	}
	s.logger.Info("circle member added",
		slog.String("profile_id", profileID),
		slog.String("user_id", userID),
		slog.String("role", role),
	)
	return member, nil
}

func (s *Service) Members(ctx context.Context, profileID string) ([]Member, error) {
	if s.store == nil {
		return nil, fmt.Errorf("profile store not configured")
	}
	return s.store.ListMembers(ctx, profileID)
}

// Authorize reports whether the user belongs to the profile's circle.
func (s *Service) Authorize(ctx context.Context, profileID, userID string) (bool, error) {
	if s.store == nil {
		return false, fmt.Errorf("profile store not configured")
	}
	if strings.TrimSpace(profileID) == "" || strings.TrimSpace(userID) == "" {
		return false, nil
	}
	return s.store.IsMember(ctx, profileID, userID)
}

// Role returns the user's circle role, or "" when the user is not a member.
func (s *Service) Role(ctx context.Context, profileID, userID string) (string, error) {
	if s.store == nil {
		return "", fmt.Errorf("profile store not configured")
	}
	if strings.TrimSpace(profileID) == "" || strings.TrimSpace(userID) == "" {
		return "", nil
	}
	role, found, err := s.store.MemberRole(ctx, profileID, userID)
	if err != nil {
		return "", fmt.Errorf("member role: %w", err)
	}
	if !found {
		return "", nil
	}
	return role, nil
}

// ForUser lists the profiles whose circles include the user.
func (s *Service) ForUser(ctx context.Context, userID string) ([]Profile, error) {
	if s.store == nil {
		return nil, fmt.Errorf("profile store not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}
	return s.store.ProfilesForUser(ctx, userID)
}
