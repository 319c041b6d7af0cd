package escalate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SynisterSage/verityapp-sub001/internal/db"
)

// PGStore persists escalation channels in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) ListChannels(ctx context.Context, profileID string) ([]Channel, error) {
	pid, err := db.ParseUUID(profileID)
	if err != nil {
		return nil, fmt.Errorf("parse profile id: %w", err)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, profile_id, kind, config, created_at
		 FROM alert_channels WHERE profile_id = $1 ORDER BY created_at`,
		pid,
	)
	if err != nil {
		return nil, fmt.Errorf("query alert channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

func (s *PGStore) AddChannel(ctx context.Context, profileID, kind string, config map[string]string) (Channel, error) {
	pid, err := db.ParseUUID(profileID)
	if err != nil {
		return Channel{}, fmt.Errorf("parse profile id: %w", err)
	}
	raw, err := json.Marshal(config)
	if err != nil {
		return Channel{}, fmt.Errorf("marshal channel config: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO alert_channels (profile_id, kind, config)
		 VALUES ($1, $2, $3)
		 RETURNING id, profile_id, kind, config, created_at`,
		pid, kind, raw,
	)
	return scanChannel(row)
}

func (s *PGStore) RemoveChannel(ctx context.Context, profileID, channelID string) (bool, error) {
	pid, err := db.ParseUUID(profileID)
	if err != nil {
		return false, fmt.Errorf("parse profile id: %w", err)
	}
	cid, err := db.ParseUUID(channelID)
	if err != nil {
		return false, fmt.Errorf("parse channel id: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM alert_channels WHERE id = $1 AND profile_id = $2`,
		cid, pid,
	)
	if err != nil {
		return false, fmt.Errorf("delete alert channel: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChannel(row rowScanner) (Channel, error) {
	var (
		ch        Channel
		id, pid   pgtype.UUID
		rawConfig []byte
		createdAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &pid, &ch.Kind, &rawConfig, &createdAt); err != nil {
		return Channel{}, fmt.Errorf("scan alert channel: %w", err)
	}
	ch.ID = db.UUIDString(id)
	ch.ProfileID = db.UUIDString(pid)
	ch.CreatedAt = db.TimeValue(createdAt)
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &ch.Config); err != nil {
			return Channel{}, fmt.Errorf("decode channel config: %w", err)
		}
	}
	return ch, nil
}
