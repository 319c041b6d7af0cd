package screening

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Store is the ledger's slice of the record store. Rows are independently
// owned by (profile_id, caller_hash); implementations never take cross-row
// locks.
type Store interface {
	UpsertEntry(ctx context.Context, profileID, callerHash string, kind Kind) error
	DeleteEntry(ctx context.Context, profileID, callerHash string, kind Kind) error
	GetEntry(ctx context.Context, profileID, callerHash string, kind Kind) (Entry, bool, error)
	ListEntries(ctx context.Context, profileID string, kind Kind) ([]Entry, error)
}

// Ledger maintains the per-profile trusted/blocked caller sets and enforces
// their mutual exclusivity on every mutation.
type Ledger struct {
	store  Store
	logger *slog.Logger
}

func NewLedger(log *slog.Logger, store Store) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{
		store:  store,
		logger: log.With(slog.String("component", "screening")),
	}
}

// Trust upserts a trusted entry for the caller, then removes any blocked
// entry at the same key. The removal is best-effort: a failed cleanup is
// logged and swallowed so the grant itself still stands; exclusivity is
// restored on the next settle of this key.
func (l *Ledger) Trust(ctx context.Context, profileID, callerHash string) error {
	return l.settle(ctx, profileID, callerHash, KindTrusted)
}

// Block is the mirror of Trust: upserts a blocked entry and best-effort
// removes the trusted one.
func (l *Ledger) Block(ctx context.Context, profileID, callerHash string) error {
	return l.settle(ctx, profileID, callerHash, KindBlocked)
}

func (l *Ledger) settle(ctx context.Context, profileID, callerHash string, kind Kind) error {
	if l.store == nil {
		return fmt.Errorf("screening store not configured")
	}
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return fmt.Errorf("profile id is required")
	}
	callerHash = strings.TrimSpace(callerHash)
	if callerHash == "" {
		return fmt.Errorf("caller hash is required")
	}
	if err := l.store.UpsertEntry(ctx, profileID, callerHash, kind); err != nil {
		return fmt.Errorf("upsert %s entry: %w", kind, err)
	}
	// Deliberately discarded: the primary intent committed, so a failed
	// opposite-kind delete must not unwind it.
	if err := l.store.DeleteEntry(ctx, profileID, callerHash, kind.Opposite()); err != nil {
		if l.logger != nil {
			l.logger.Error("opposite entry cleanup failed",
				slog.String("profile_id", profileID),
				slog.String("kind", kind.String()),
				slog.Any("error", err))
		}
	}
	return nil
}

// Remove deletes the entry of the given kind if present; removing an absent
// entry is a silent no-op.
func (l *Ledger) Remove(ctx context.Context, profileID, callerHash string, kind Kind) error {
	if l.store == nil {
		return fmt.Errorf("screening store not configured")
	}
	profileID = strings.TrimSpace(profileID)
	callerHash = strings.TrimSpace(callerHash)
	if profileID == "" || callerHash == "" {
		return fmt.Errorf("profile id and caller hash are required")
	}
	if err := l.store.DeleteEntry(ctx, profileID, callerHash, kind); err != nil {
		return fmt.Errorf("delete %s entry: %w", kind, err)
	}
	return nil
}

// Status reports the ledger state for one caller key. During the narrow
// window where a settle has committed its primary write but not yet cleaned
// up the opposite entry, both rows exist; the newer write wins so the caller
// never observes both.
func (l *Ledger) Status(ctx context.Context, profileID, callerHash string) (Status, error) {
	if l.store == nil {
		return StatusUnknown, fmt.Errorf("screening store not configured")
	}
	if strings.TrimSpace(callerHash) == "" {
		return StatusUnknown, nil
	}
	trusted, hasTrusted, err := l.store.GetEntry(ctx, profileID, callerHash, KindTrusted)
	if err != nil {
		return StatusUnknown, fmt.Errorf("lookup trusted entry: %w", err)
	}
	blocked, hasBlocked, err := l.store.GetEntry(ctx, profileID, callerHash, KindBlocked)
	if err != nil {
		return StatusUnknown, fmt.Errorf("lookup blocked entry: %w", err)
	}
	switch {
	case hasTrusted && hasBlocked:
		if blocked.CreatedAt.After(trusted.CreatedAt) {
			return StatusBlocked, nil
		}
		return StatusTrusted, nil
	case hasTrusted:
		return StatusTrusted, nil
	case hasBlocked:
		return StatusBlocked, nil
	default:
		return StatusUnknown, nil
	}
}

// List returns the profile's entries of one kind for the settings screens.
func (l *Ledger) List(ctx context.Context, profileID string, kind Kind) ([]Entry, error) {
	if l.store == nil {
		return nil, fmt.Errorf("screening store not configured")
	}
	if strings.TrimSpace(profileID) == "" {
		return nil, fmt.Errorf("profile id is required")
	}
	return l.store.ListEntries(ctx, profileID, kind)
}
