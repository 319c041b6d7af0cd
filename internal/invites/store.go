package invites

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SynisterSage/verityapp-sub001/internal/db"
)

const uniqueViolation = "23505"

const inviteColumns = `id, profile_id, role, short_code, status, invited_by, accepted_by, created_at, updated_at`

// PGStore persists invites in the profile_invites collection.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM profile_invites WHERE short_code = $1)`, code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check short code: %w", err)
	}
	return exists, nil
}

func (s *PGStore) InsertInvite(ctx context.Context, profileID string, role Role, code, invitedBy string) (Invite, error) {
	pid, err := db.ParseUUID(profileID)
	if err != nil {
		return Invite{}, err
	}
	var inviter pgtype.UUID
	if invitedBy != "" {
		if inviter, err = db.ParseUUID(invitedBy); err != nil {
			return Invite{}, err
		}
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO profile_invites (profile_id, role, short_code, invited_by)
		VALUES ($1, $2, $3, $4)
		RETURNING `+inviteColumns,
		pid, string(role), code, inviter,
	)
	invite, err := scanInvite(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Invite{}, ErrCodeTaken
		}
		return Invite{}, fmt.Errorf("insert invite: %w", err)
	}
	return invite, nil
}

func (s *PGStore) GetInviteByCode(ctx context.Context, code string) (Invite, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+inviteColumns+` FROM profile_invites WHERE short_code = $1`, code,
	)
	invite, err := scanInvite(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invite{}, false, nil
	}
	if err != nil {
		return Invite{}, false, fmt.Errorf("query invite by code: %w", err)
	}
	return invite, true, nil
}

func (s *PGStore) ListInvites(ctx context.Context, profileID string) ([]Invite, error) {
	pid, err := db.ParseUUID(profileID)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+inviteColumns+` FROM profile_invites WHERE profile_id = $1 ORDER BY created_at DESC`, pid,
	)
	if err != nil {
		return nil, fmt.Errorf("query invites: %w", err)
	}
	defer rows.Close()

	var invites []Invite
	for rows.Next() {
		invite, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invite row: %w", err)
		}
		invites = append(invites, invite)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invite rows: %w", err)
	}
	return invites, nil
}

func (s *PGStore) RevokeInvite(ctx context.Context, profileID, inviteID string) (bool, error) {
	pid, err := db.ParseUUID(profileID)
	if err != nil {
		return false, err
	}
	iid, err := db.ParseUUID(inviteID)
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE profile_invites
		SET status = 'revoked', updated_at = now()
		WHERE id = $1 AND profile_id = $2 AND status = 'pending'`,
		iid, pid,
	)
	if err != nil {
		return false, fmt.Errorf("revoke invite: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGStore) AcceptInvite(ctx context.Context, inviteID, acceptedBy string) (Invite, bool, error) {
	iid, err := db.ParseUUID(inviteID)
	if err != nil {
		return Invite{}, false, err
	}
	uid, err := db.ParseUUID(acceptedBy)
	if err != nil {
		return Invite{}, false, err
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE profile_invites
		SET status = 'accepted', accepted_by = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+inviteColumns,
		iid, uid,
	)
	invite, err := scanInvite(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invite{}, false, nil
	}
	if err != nil {
		return Invite{}, false, fmt.Errorf("accept invite: %w", err)
	}
	return invite, true, nil
}

func scanInvite(row pgx.Row) (Invite, error) {
	var (
		id         pgtype.UUID
		profileID  pgtype.UUID
		role       string
		shortCode  string
		status     string
		invitedBy  pgtype.UUID
		acceptedBy pgtype.UUID
		createdAt  pgtype.Timestamptz
		updatedAt  pgtype.Timestamptz
	)
	err := row.Scan(&id, &profileID, &role, &shortCode, &status, &invitedBy, &acceptedBy, &createdAt, &updatedAt)
	if err != nil {
		return Invite{}, err
	}
	return Invite{
		ID:         db.UUIDString(id),
		ProfileID:  db.UUIDString(profileID),
		Role:       Role(role),
		ShortCode:  shortCode,
		Status:     Status(status),
		InvitedBy:  db.UUIDString(invitedBy),
		AcceptedBy: db.UUIDString(acceptedBy),
		CreatedAt:  db.TimeValue(createdAt),
		UpdatedAt:  db.TimeValue(updatedAt),
	}, nil
}
