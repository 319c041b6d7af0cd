package screening

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SynisterSage/verityapp-sub001/internal/db"
)

// PGStore persists ledger entries in the trusted_contacts and
// blocked_callers collections.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func tableFor(kind Kind) (string, error) {
	switch kind {
	case KindTrusted:
		return "trusted_contacts", nil
	case KindBlocked:
		return "blocked_callers", nil
	default:
		return "", fmt.Errorf("unknown ledger kind %q", kind)
	}
}

// UpsertEntry inserts the (profile, caller) pair, refreshing created_at when
// the pair already exists so Status sees the grant as the newest decision.
func (s *PGStore) UpsertEntry(ctx context.Context, profileID, callerHash string, kind Kind) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	pid, err := db.ParseUUID(profileID)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (profile_id, caller_hash)
		VALUES ($1, $2)
		ON CONFLICT (profile_id, caller_hash)
		DO UPDATE SET created_at = now()`, table)
	if _, err := s.pool.Exec(ctx, query, pid, callerHash); err != nil {
		return fmt.Errorf("upsert into %s: %w", table, err)
	}
	return nil
}

func (s *PGStore) DeleteEntry(ctx context.Context, profileID, callerHash string, kind Kind) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	pid, err := db.ParseUUID(profileID)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE profile_id = $1 AND caller_hash = $2`, table)
	if _, err := s.pool.Exec(ctx, query, pid, callerHash); err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return nil
}

func (s *PGStore) GetEntry(ctx context.Context, profileID, callerHash string, kind Kind) (Entry, bool, error) {
	table, err := tableFor(kind)
	if err != nil {
		return Entry{}, false, err
	}
	pid, err := db.ParseUUID(profileID)
	if err != nil {
		return Entry{}, false, err
	}
	query := fmt.Sprintf(`
		SELECT id, profile_id, caller_hash, created_at
		FROM %s
		WHERE profile_id = $1 AND caller_hash = $2`, table)

	var (
		id        pgtype.UUID
		pfid      pgtype.UUID
		hash      string
		createdAt pgtype.Timestamptz
	)
	err = s.pool.QueryRow(ctx, query, pid, callerHash).Scan(&id, &pfid, &hash, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("query %s: %w", table, err)
	}
	return Entry{
		ID:         db.UUIDString(id),
		ProfileID:  db.UUIDString(pfid),
		CallerHash: hash,
		Kind:       kind,
		CreatedAt:  db.TimeValue(createdAt),
	}, true, nil
}

func (s *PGStore) ListEntries(ctx context.Context, profileID string, kind Kind) ([]Entry, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	pid, err := db.ParseUUID(profileID)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT id, profile_id, caller_hash, created_at
		FROM %s
		WHERE profile_id = $1
		ORDER BY created_at DESC`, table)

	rows, err := s.pool.Query(ctx, query, pid)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			id        pgtype.UUID
			pfid      pgtype.UUID
			hash      string
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &pfid, &hash, &createdAt); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		entries = append(entries, Entry{
			ID:         db.UUIDString(id),
			ProfileID:  db.UUIDString(pfid),
			CallerHash: hash,
			Kind:       kind,
			CreatedAt:  db.TimeValue(createdAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", table, err)
	}
	return entries, nil
}
