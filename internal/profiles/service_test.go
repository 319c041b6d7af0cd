package profiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeProfileStore struct {
	profiles map[string]Profile
	members  map[string][]Member
	nextID   int
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{
		profiles: make(map[string]Profile),
		members:  make(map[string][]Member),
	}
}

func (f *fakeProfileStore) CreateProfile(_ context.Context, creatorUserID, displayName, region string) (Profile, error) {
	f.nextID++
	profile := Profile{
		ID:             fmt.Sprintf("profile-%d", f.nextID),
		DisplayName:    displayName,
		Region:         region,
		AlertThreshold: DefaultAlertThreshold,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	f.profiles[profile.ID] = profile
	f.members[profile.ID] = []Member{{
		ID:        fmt.Sprintf("member-%d", f.nextID),
		ProfileID: profile.ID,
		UserID:    creatorUserID,
		Role:      "admin",
	}}
	return profile, nil
}

func (f *fakeProfileStore) GetProfile(_ context.Context, profileID string) (Profile, bool, error) {
	profile, ok := f.profiles[profileID]
	return profile, ok, nil
}

func (f *fakeProfileStore) UpdateSettings(_ context.Context, profileID string, settings Settings) (Profile, bool, error) {
	profile, ok := f.profiles[profileID]
	if !ok {
		return Profile{}, false, nil
	}
	if settings.Region != nil {
		profile.Region = *settings.Region
	}
	if settings.AlertThreshold != nil {
		profile.AlertThreshold = *settings.AlertThreshold
	}
	if settings.SafePhrases != nil {
		profile.SafePhrases = settings.SafePhrases
	}
	f.profiles[profileID] = profile
	return profile, true, nil
}

func (f *fakeProfileStore) AddMember(_ context.Context, profileID, userID, role string) (Member, error) {
	for i, member := range f.members[profileID] {
		if member.UserID == userID {
			f.members[profileID][i].Role = role
			return f.members[profileID][i], nil
		}
	}
	member := Member{ID: fmt.Sprintf("member-%s", userID), ProfileID: profileID, UserID: userID, Role: role}
	f.members[profileID] = append(f.members[profileID], member)
	return member, nil
}

func (f *fakeProfileStore) ListMembers(_ context.Context, profileID string) ([]Member, error) {
	return f.members[profileID], nil
}

func (f *fakeProfileStore) IsMember(_ context.Context, profileID, userID string) (bool, error) {
	for _, member := range f.members[profileID] {
		if member.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeProfileStore) MemberRole(_ context.Context, profileID, userID string) (string, bool, error) {
	for _, member := range f.members[profileID] {
		if member.UserID == userID {
			return member.Role, true, nil
		}
	}
	return "", false, nil
}

func (f *fakeProfileStore) ProfilesForUser(_ context.Context, userID string) ([]Profile, error) {
	var out []Profile
	for profileID, members := range f.members {
		for _, member := range members {
			if member.UserID == userID {
				out = append(out, f.profiles[profileID])
			}
		}
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateProfileEnrollsCreator(t *testing.T) {
	t.Parallel()

	store := newFakeProfileStore()
	svc := NewService(testLogger(), store)

	profile, err := svc.Create(context.Background(), "user-1", "  Grandma Rose ", "us")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if profile.Region != "US" {
		t.Fatalf("region = %q, want US", profile.Region)
	}

	ok, err := svc.Authorize(context.Background(), profile.ID, "user-1")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !ok {
		t.Fatal("creator should be a circle member")
	}

	members, err := svc.Members(context.Background(), profile.ID)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 1 || members[0].Role != "admin" {
		t.Fatalf("members = %+v, want one admin", members)
	}
}

func TestCreateProfileValidation(t *testing.T) {
	t.Parallel()

	svc := NewService(testLogger(), newFakeProfileStore())
	if _, err := svc.Create(context.Background(), "user-1", "   ", "US"); err == nil {
		t.Fatal("expected error for blank display name")
	}
	if _, err := svc.Create(context.Background(), "", "Rose", "US"); err == nil {
		t.Fatal("expected error for blank creator")
	}
}

func TestUpdateSettings(t *testing.T) {
	t.Parallel()

	store := newFakeProfileStore()
	svc := NewService(testLogger(), store)
	profile, err := svc.Create(context.Background(), "user-1", "Rose", "US")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	threshold := 0.7
	updated, err := svc.UpdateSettings(context.Background(), profile.ID, Settings{
		AlertThreshold: &threshold,
		SafePhrases:    []string{" blue canoe ", "", "  sandpiper"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.AlertThreshold != 0.7 {
		t.Fatalf("threshold = %v, want 0.7", updated.AlertThreshold)
	}
	if len(updated.SafePhrases) != 2 || updated.SafePhrases[0] != "blue canoe" || updated.SafePhrases[1] != "sandpiper" {
		t.Fatalf("safe phrases = %v, want trimmed non-blank", updated.SafePhrases)
	}
	// Region untouched by a partial update.
	if updated.Region != "US" {
		t.Fatalf("region = %q, want US", updated.Region)
	}
}

func TestUpdateSettingsValidation(t *testing.T) {
	t.Parallel()

	svc := NewService(testLogger(), newFakeProfileStore())

	bad := 1.5
	_, err := svc.UpdateSettings(context.Background(), "profile-1", Settings{AlertThreshold: &bad})
	if !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("error = %v, want ErrInvalidSettings for threshold above 1", err)
	}

	blank := "  "
	_, err = svc.UpdateSettings(context.Background(), "profile-1", Settings{Region: &blank})
	if !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("error = %v, want ErrInvalidSettings for blank region", err)
	}
}

func TestUpdateSettingsUnknownProfile(t *testing.T) {
	t.Parallel()

	svc := NewService(testLogger(), newFakeProfileStore())
	if _, err := svc.UpdateSettings(context.Background(), "missing", Settings{}); err != ErrNotFound {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestAddMemberRoles(t *testing.T) {
	t.Parallel()

	store := newFakeProfileStore()
	svc := NewService(testLogger(), store)
	profile, err := svc.Create(context.Background(), "user-1", "Rose", "US")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	member, err := svc.AddMember(context.Background(), profile.ID, "user-2", "Editor")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if member.Role != "editor" {
		t.Fatalf("role = %q, want lowercased editor", member.Role)
	}

	if _, err := svc.AddMember(context.Background(), profile.ID, "user-3", "owner"); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestRoleLookup(t *testing.T) {
	t.Parallel()

	store := newFakeProfileStore()
	svc := NewService(testLogger(), store)
	profile, err := svc.Create(context.Background(), "user-1", "Rose", "US")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.AddMember(context.Background(), profile.ID, "user-2", "editor"); err != nil {
		t.Fatalf("add member: %v", err)
	}

	role, err := svc.Role(context.Background(), profile.ID, "user-1")
	if err != nil {
		t.Fatalf("role: %v", err)
	}
	if role != "admin" {
		t.Fatalf("creator role = %q, want admin", role)
	}

	role, err = svc.Role(context.Background(), profile.ID, "user-2")
	if err != nil {
		t.Fatalf("role: %v", err)
	}
	if role != "editor" {
		t.Fatalf("role = %q, want editor", role)
	}

	role, err = svc.Role(context.Background(), profile.ID, "stranger")
	if err != nil {
		t.Fatalf("role: %v", err)
	}
	if role != "" {
		t.Fatalf("stranger role = %q, want empty", role)
	}
}
