package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SynisterSage/verityapp-sub001/internal/db"
)

const profileColumns = `id, display_name, region, alert_threshold, safe_phrases, created_at, updated_at`

// PGStore persists profiles and circle memberships.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// CreateProfile inserts the profile and its first admin member in one
// transaction.
func (s *PGStore) CreateProfile(ctx context.Context, creatorUserID, displayName, region string) (Profile, error) {
	uid, err := db.ParseUUID(creatorUserID)
	if err != nil {
		return Profile{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Profile{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO profiles (display_name, region)
		VALUES ($1, $2)
		RETURNING `+profileColumns,
		displayName, region,
	)
	profile, err := scanProfile(row)
	if err != nil {
		return Profile{}, fmt.Errorf("insert profile: %w", err)
	}

	pid, err := db.ParseUUID(profile.ID)
	if err != nil {
		return Profile{}, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO circle_members (profile_id, user_id, role)
		VALUES ($1, $2, 'admin')`, pid, uid,
	); err != nil {
		return Profile{}, fmt.Errorf("insert admin member: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Profile{}, fmt.Errorf("commit: %w", err)
	}
	return profile, nil
}

func (s *PGStore) GetProfile(ctx context.Context, profileID string) (Profile, bool, error) {
	pid, err := db.ParseUUID(profileID)
	if err != nil {
		return Profile{}, false, err
	}
	row := s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, pid)
	profile, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, false, nil
	}
	if err != nil {
		return Profile{}, false, fmt.Errorf("query profile: %w", err)
	}
	return profile, true, nil
}

func (s *PGStore) UpdateSettings(ctx context.Context, profileID string, settings Settings) (Profile, bool, error) {
	pid, err := db.ParseUUID(profileID)
	if err != nil {
		return Profile{}, false, err
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE profiles
		SET region = COALESCE($2::text, region),
		    alert_threshold = COALESCE($3::double precision, alert_threshold),
		    safe_phrases = COALESCE($4::text[], safe_phrases),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+profileColumns,
		pid, settings.Region, settings.AlertThreshold, settings.SafePhrases,
	)
	profile, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, false, nil
	}
	if err != nil {
		return Profile{}, false, fmt.Errorf("update profile: %w", err)
	}
	return profile, true, nil
}

func (s *PGStore) AddMember(ctx context.Context, profileID, userID, role string) (Member, error) {
	pid, err := db.ParseUUID(profileID)
	if err != nil {
		return Member{}, err
	}
	uid, err := db.ParseUUID(userID)
	if err != nil {
		return Member{}, err
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO circle_members (profile_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (profile_id, user_id)
		DO UPDATE SET role = EXCLUDED.role
		RETURNING id, profile_id, user_id, role, created_at`,
		pid, uid, role,
	)
	member, err := scanMember(row)
	if err != nil {
		return Member{}, fmt.Errorf("upsert member: %w", err)
	}
	return member, nil
}

func (s *PGStore) ListMembers(ctx context.Context, profileID string) ([]Member, error) {
	pid, err := db.ParseUUID(profileID)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, profile_id, user_id, role, created_at
		FROM circle_members
		WHERE profile_id = $1
		ORDER BY created_at`, pid,
	)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member row: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member rows: %w", err)
	}
	return members, nil
}

func (s *PGStore) IsMember(ctx context.Context, profileID, userID string) (bool, error) {
	pid, err := db.ParseUUID(profileID)
	if err != nil {
		return false, err
	}
	uid, err := db.ParseUUID(userID)
	if err != nil {
		return false, err
	}
	var isMember bool
	err = s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM circle_members WHERE profile_id = $1 AND user_id = $2)`,
		pid, uid,
	).Scan(&isMember)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return isMember, nil
}

func (s *PGStore) MemberRole(ctx context.Context, profileID, userID string) (string, bool, error) {
	pid, err := db.ParseUUID(profileID)
	if err != nil {
		return "", false, err
	}
	uid, err := db.ParseUUID(userID)
	if err != nil {
		return "", false, err
	}
	var role string
	err = s.pool.QueryRow(ctx,
		`SELECT role FROM circle_members WHERE profile_id = $1 AND user_id = $2`,
		pid, uid,
	).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("member role: %w", err)
	}
	return role, true, nil
}

func (s *PGStore) ProfilesForUser(ctx context.Context, userID string) ([]Profile, error) {
	uid, err := db.ParseUUID(userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.display_name, p.region, p.alert_threshold, p.safe_phrases, p.created_at, p.updated_at
		FROM profiles p
		JOIN circle_members m ON m.profile_id = p.id
		WHERE m.user_id = $1
		ORDER BY p.created_at`, uid,
	)
	if err != nil {
		return nil, fmt.Errorf("query profiles for user: %w", err)
	}
	defer rows.Close()

	var result []Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile row: %w", err)
		}
		result = append(result, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profile rows: %w", err)
	}
	return result, nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var (
		id          pgtype.UUID
		displayName string
		region      string
		threshold   float64
		safePhrases []string
		createdAt   pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz
	)
	err := row.Scan(&id, &displayName, &region, &threshold, &safePhrases, &createdAt, &updatedAt)
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		ID:             db.UUIDString(id),
		DisplayName:    displayName,
		Region:         region,
		AlertThreshold: threshold,
		SafePhrases:    safePhrases,
		CreatedAt:      db.TimeValue(createdAt),
		UpdatedAt:      db.TimeValue(updatedAt),
	}, nil
}

func scanMember(row pgx.Row) (Member, error) {
	var (
		id        pgtype.UUID
		profileID pgtype.UUID
		userID    pgtype.UUID
		role      string
		createdAt pgtype.Timestamptz
	)
	err := row.Scan(&id, &profileID, &userID, &role, &createdAt)
	if err != nil {
		return Member{}, err
	}
	return Member{
		ID:        db.UUIDString(id),
		ProfileID: db.UUIDString(profileID),
		UserID:    db.UUIDString(userID),
		Role:      role,
		CreatedAt: db.TimeValue(createdAt),
	}, nil
}
