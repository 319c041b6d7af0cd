package screening

import "time"

// Kind names one of the two disjoint ledger sets.
type Kind string

const (
	KindTrusted Kind = "trusted"
	KindBlocked Kind = "blocked"
)

func (k Kind) String() string {
	return string(k)
}

// Opposite returns the mutually-exclusive counterpart of k.
func (k Kind) Opposite() Kind {
	if k == KindTrusted {
		return KindBlocked
	}
	return KindTrusted
}

// Entry is one ledger row. CallerHash is the one-way caller key — the ledger
// never stores the number itself.
type Entry struct {
	ID         string    `json:"id"`
	ProfileID  string    `json:"profile_id"`
	CallerHash string    `json:"caller_hash"`
	Kind       Kind      `json:"kind"`
	CreatedAt  time.Time `json:"created_at"`
}

// Status is the observable ledger state for one (profile, caller) key. The
// two kinds are mutually exclusive: lookups never report both.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusTrusted Status = "trusted"
	StatusBlocked Status = "blocked"
)
