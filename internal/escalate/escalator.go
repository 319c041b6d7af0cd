package escalate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Escalator fans one alert message out to every configured channel of a
// profile. Sends are best-effort per channel: a vendor failure is logged and
// never blocks the other channels or the caller.
type Escalator struct {
	store   Store
	senders map[string]Sender
	logger  *slog.Logger
}

func NewEscalator(log *slog.Logger, store Store, senders ...Sender) *Escalator {
	byKind := make(map[string]Sender, len(senders))
	for _, sender := range senders {
		byKind[sender.Kind()] = sender
	}
	return &Escalator{
		store:   store,
		senders: byKind,
		logger:  log.With(slog.String("component", "escalate")),
	}
}

// Escalate posts the alert into every channel of the profile. Only a store
// read failure is returned; per-channel send failures are logged.
func (e *Escalator) Escalate(ctx context.Context, profileID, title, body, band string) error {
	if e.store == nil {
		return fmt.Errorf("escalation store not configured")
	}
	channels, err := e.store.ListChannels(ctx, profileID)
	if err != nil {
		return fmt.Errorf("load escalation channels: %w", err)
	}
	if len(channels) == 0 {
		return nil
	}

	text := formatAlert(title, body, band)
	for _, ch := range channels {
		sender, ok := e.senders[ch.Kind]
		if !ok {
			e.logger.Warn("no sender for channel kind",
				slog.String("channel_id", ch.ID),
				slog.String("kind", ch.Kind),
			)
			continue
		}
		if err := sender.Send(ctx, ch, text); err != nil {
			e.logger.Error("escalation send failed",
				slog.String("channel_id", ch.ID),
				slog.String("kind", ch.Kind),
				slog.Any("error", err),
			)
			continue
		}
		e.logger.Info("alert escalated",
			slog.String("profile_id", profileID),
			slog.String("channel_id", ch.ID),
			slog.String("kind", ch.Kind),
		)
	}
	return nil
}

// AddChannel registers a new escalation target after checking the kind has a
// wired sender.
func (e *Escalator) AddChannel(ctx context.Context, profileID, kind string, config map[string]string) (Channel, error) {
	if e.store == nil {
		return Channel{}, fmt.Errorf("escalation store not configured")
	}
	if strings.TrimSpace(profileID) == "" {
		return Channel{}, fmt.Errorf("profile id is required")
	}
	kind = strings.ToLower(strings.TrimSpace(kind))
	if _, ok := e.senders[kind]; !ok {
		return Channel{}, fmt.Errorf("%w %q", ErrUnsupportedKind, kind)
	}
	if len(config) == 0 {
		return Channel{}, fmt.Errorf("channel config is required")
	}
	return e.store.AddChannel(ctx, profileID, kind, config)
}

func (e *Escalator) Channels(ctx context.Context, profileID string) ([]Channel, error) {
	if e.store == nil {
		return nil, fmt.Errorf("escalation store not configured")
	}
	return e.store.ListChannels(ctx, profileID)
}

// RemoveChannel drops a target. Removing an unknown channel is a no-op.
func (e *Escalator) RemoveChannel(ctx context.Context, profileID, channelID string) error {
	if e.store == nil {
		return fmt.Errorf("escalation store not configured")
	}
	if _, err := e.store.RemoveChannel(ctx, profileID, channelID); err != nil {
		return fmt.Errorf("remove channel: %w", err)
	}
	return nil
}

func formatAlert(title, body, band string) string {
	var b strings.Builder
	if band != "" && band != "none" {
		fmt.Fprintf(&b, "[%s] ", strings.ToUpper(band))
	}
	b.WriteString(strings.TrimSpace(title))
	if body = strings.TrimSpace(body); body != "" {
		b.WriteString("\n")
		b.WriteString(body)
	}
	return b.String()
}
