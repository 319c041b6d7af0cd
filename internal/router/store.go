package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SynisterSage/verityapp-sub001/internal/db"
	"github.com/SynisterSage/verityapp-sub001/internal/screening"
)

const callColumns = `id, profile_id, external_id, caller_hash, caller_country,
	high_risk_country, screening_status, recording_hash, transcript,
	transcript_confidence, risk_score, risk_band, created_at`

// PGStore persists the screening timeline in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) InsertCall(ctx context.Context, record CallRecord) (CallRecord, error) {
	pid, err := db.ParseUUID(record.ProfileID)
	if err != nil {
		return CallRecord{}, fmt.Errorf("parse profile id: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO calls (profile_id, external_id, caller_hash, caller_country,
			high_risk_country, screening_status, recording_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+callColumns,
		pid,
		db.TextOrNull(record.ExternalID),
		db.TextOrNull(record.CallerHash),
		db.TextOrNull(record.CallerCountry),
		record.HighRiskCountry,
		string(record.ScreeningStatus),
		db.TextOrNull(record.RecordingHash),
	)
	return scanCall(row)
}

func (s *PGStore) UpdateCallAnalysis(ctx context.Context, record CallRecord) error {
	id, err := db.ParseUUID(record.ID)
	if err != nil {
		return fmt.Errorf("parse call id: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE calls SET transcript = $2, transcript_confidence = $3,
			risk_score = $4, risk_band = $5
		 WHERE id = $1`,
		id,
		db.TextOrNull(record.Transcript),
		db.Float8OrNull(record.TranscriptConfidence),
		db.Float8OrNull(record.RiskScore),
		db.TextOrNull(record.RiskBand),
	)
	if err != nil {
		return fmt.Errorf("update call analysis: %w", err)
	}
	return nil
}

func (s *PGStore) GetCall(ctx context.Context, profileID, callID string) (CallRecord, bool, error) {
	pid, err := db.ParseUUID(profileID)
	if err != nil {
		return CallRecord{}, false, fmt.Errorf("parse profile id: %w", err)
	}
	id, err := db.ParseUUID(callID)
	if err != nil {
		return CallRecord{}, false, fmt.Errorf("parse call id: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+callColumns+` FROM calls WHERE id = $1 AND profile_id = $2`,
		id, pid,
	)
	record, err := scanCall(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CallRecord{}, false, nil
		}
		return CallRecord{}, false, err
	}
	return record, true, nil
}

func (s *PGStore) ListCalls(ctx context.Context, profileID string, limit int) ([]CallRecord, error) {
	pid, err := db.ParseUUID(profileID)
	if err != nil {
		return nil, fmt.Errorf("parse profile id: %w", err)
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+callColumns+` FROM calls
		 WHERE profile_id = $1 ORDER BY created_at DESC LIMIT $2`,
		pid, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	var records []CallRecord
	for rows.Next() {
		record, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (CallRecord, error) {
	var record CallRecord
	var id, pid pgtype.UUID
	var externalID, hash, country, recordingHash, transcript, band pgtype.Text
	var status string
	var transcriptConfidence, score pgtype.Float8
	var createdAt pgtype.Timestamptz
	err := row.Scan(&id, &pid, &externalID, &hash, &country, &record.HighRiskCountry,
		&status, &recordingHash, &transcript, &transcriptConfidence, &score, &band, &createdAt)
	if err != nil {
		return CallRecord{}, fmt.Errorf("scan call: %w", err)
	}
	record.ID = db.UUIDString(id)
	record.ProfileID = db.UUIDString(pid)
	record.ExternalID = db.TextValue(externalID)
	record.CallerHash = db.TextValue(hash)
	record.CallerCountry = db.TextValue(country)
	record.ScreeningStatus = screening.Status(status)
	record.RecordingHash = db.TextValue(recordingHash)
	record.Transcript = db.TextValue(transcript)
	record.TranscriptConfidence = db.Float8Ptr(transcriptConfidence)
	record.RiskScore = db.Float8Ptr(score)
	record.RiskBand = db.TextValue(band)
	record.CreatedAt = db.TimeValue(createdAt)
	return record, nil
}
