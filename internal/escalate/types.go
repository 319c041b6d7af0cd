// Package escalate mirrors high-band alerts into a circle's chat channels
// (family Telegram groups, Lark chats) alongside the push fan-out.
package escalate

import (
	"context"
	"errors"
	"time"
)

// ErrUnsupportedKind means no sender is wired for the requested channel kind.
var ErrUnsupportedKind = errors.New("unsupported channel kind")

// Channel is one configured escalation target for a profile.
type Channel struct {
	ID        string            `json:"id"`
	ProfileID string            `json:"profile_id"`
	Kind      string            `json:"kind"`
	Config    map[string]string `json:"config"`
	CreatedAt time.Time         `json:"created_at"`
}

// Sender posts one message into one channel kind.
type Sender interface {
	Kind() string
	Send(ctx context.Context, ch Channel, text string) error
}

// Store is the channel persistence surface the escalator needs.
type Store interface {
	ListChannels(ctx context.Context, profileID string) ([]Channel, error)
	AddChannel(ctx context.Context, profileID, kind string, config map[string]string) (Channel, error)
	RemoveChannel(ctx context.Context, profileID, channelID string) (bool, error)
}
