// Package invites issues human-typeable short codes for joining a profile's
// circle and tracks each invite through its lifecycle.
package invites

import (
	"errors"
	"strings"
	"time"
)

// Role is the circle role an accepted invite grants.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEditor
}

// Status tracks an invite from issuance to settlement.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRevoked  Status = "revoked"
)

// Invite is one issued circle invitation.
type Invite struct {
	ID         string    `json:"id"`
	ProfileID  string    `json:"profile_id"`
	Role       Role      `json:"role"`
	ShortCode  string    `json:"short_code"`
	Status     Status    `json:"status"`
	InvitedBy  string    `json:"invited_by,omitempty"`
	AcceptedBy string    `json:"accepted_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

var (
	// ErrCodeSpaceExhausted means every generation attempt collided.
	// Callers should treat it as "try again later", not a hard failure.
	ErrCodeSpaceExhausted = errors.New("invite code space exhausted")
	// ErrCodeTaken is the store's unique-constraint violation on short_code.
	ErrCodeTaken = errors.New("invite code already taken")
	// ErrNotFound means no invite matches the given id or code.
	ErrNotFound = errors.New("invite not found")
	// ErrSettled means the invite was already accepted or revoked.
	ErrSettled = errors.New("invite already settled")
	// ErrExpired means the invite outlived its acceptance window.
	ErrExpired = errors.New("invite expired")
)

// NormalizeCode uppercases a user-typed code, strips whitespace, and restores
// the group hyphen when it was omitted.
func NormalizeCode(raw string) string {
	cleaned := strings.ToUpper(strings.TrimSpace(raw))
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if len(cleaned) == codeSymbols && !strings.Contains(cleaned, "-") {
		cleaned = cleaned[:codeGroup] + "-" + cleaned[codeGroup:]
	}
	return cleaned
}
