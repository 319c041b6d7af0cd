package notify

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SynisterSage/verityapp-sub001/internal/db"
)

const tokenColumns = `id, profile_id, token, platform, is_active, created_at, updated_at`

// PGStore persists device tokens and dispatched alerts.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) ActiveTokens(ctx context.Context, profileID string) ([]DeviceToken, error) {
	pid, err := db.ParseUUID(profileID)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+tokenColumns+`
		FROM profile_device_tokens
		WHERE profile_id = $1 AND is_active
		ORDER BY created_at`, pid,
	)
	if err != nil {
		return nil, fmt.Errorf("query device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []DeviceToken
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}
	return tokens, nil
}

// DeactivateTokens retires the given token rows in one batched update.
func (s *PGStore) DeactivateTokens(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	parsed := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		uid, err := db.ParseUUID(id)
		if err != nil {
			return err
		}
		parsed = append(parsed, uid)
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE profile_device_tokens
		SET is_active = false, updated_at = now()
		WHERE id = ANY($1)`, parsed,
	)
	if err != nil {
		return fmt.Errorf("deactivate tokens: %w", err)
	}
	return nil
}

func (s *PGStore) RegisterToken(ctx context.Context, profileID, token, platform string) (DeviceToken, error) {
	pid, err := db.ParseUUID(profileID)
	if err != nil {
		return DeviceToken{}, err
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO profile_device_tokens (profile_id, token, platform)
		VALUES ($1, $2, $3)
		ON CONFLICT (profile_id, token)
		DO UPDATE SET is_active = true, platform = EXCLUDED.platform, updated_at = now()
		RETURNING `+tokenColumns,
		pid, token, platform,
	)
	registered, err := scanToken(row)
	if err != nil {
		return DeviceToken{}, fmt.Errorf("register token: %w", err)
	}
	return registered, nil
}

func (s *PGStore) RemoveToken(ctx context.Context, profileID, token string) (bool, error) {
	pid, err := db.ParseUUID(profileID)
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE profile_device_tokens
		SET is_active = false, updated_at = now()
		WHERE profile_id = $1 AND token = $2 AND is_active`, pid, token,
	)
	if err != nil {
		return false, fmt.Errorf("remove token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGStore) InsertAlert(ctx context.Context, profileID string, payload AlertPayload) error {
	pid, err := db.ParseUUID(profileID)
	if err != nil {
		return err
	}
	aid, err := db.ParseUUID(payload.AlertID)
	if err != nil {
		return err
	}
	var cid pgtype.UUID
	if payload.CallID != "" {
		if cid, err = db.ParseUUID(payload.CallID); err != nil {
			return err
		}
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO alerts (id, profile_id, call_id, title, body, band)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		aid, pid, cid, payload.Title, payload.Body, payload.Band,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *PGStore) ListAlerts(ctx context.Context, profileID string, limit int) ([]Alert, error) {
	pid, err := db.ParseUUID(profileID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, profile_id, call_id, title, body, band, created_at
		FROM alerts
		WHERE profile_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, pid, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var (
			id        pgtype.UUID
			pfid      pgtype.UUID
			callID    pgtype.UUID
			title     string
			body      string
			band      string
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &pfid, &callID, &title, &body, &band, &createdAt); err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		alerts = append(alerts, Alert{
			ID:        db.UUIDString(id),
			ProfileID: db.UUIDString(pfid),
			CallID:    db.UUIDString(callID),
			Title:     title,
			Body:      body,
			Band:      band,
			CreatedAt: db.TimeValue(createdAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rows: %w", err)
	}
	return alerts, nil
}

func scanToken(row pgx.Row) (DeviceToken, error) {
	var (
		id        pgtype.UUID
		profileID pgtype.UUID
		token     string
		platform  string
		isActive  bool
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	err := row.Scan(&id, &profileID, &token, &platform, &isActive, &createdAt, &updatedAt)
	if err != nil {
		return DeviceToken{}, err
	}
	return DeviceToken{
		ID:        db.UUIDString(id),
		ProfileID: db.UUIDString(profileID),
		Token:     token,
		Platform:  platform,
		IsActive:  isActive,
		CreatedAt: db.TimeValue(createdAt),
		UpdatedAt: db.TimeValue(updatedAt),
	}, nil
}
