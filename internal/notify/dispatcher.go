package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/SynisterSage/verityapp-sub001/internal/metrics"
)

// invalidRecipientSignatures are the transport error codes that mean the
// recipient is permanently gone. Matched case-insensitively as substrings.
var invalidRecipientSignatures = []string{
	"DeviceNotRegistered",
	"PushSubscriptionExpired",
}

// sendConcurrency is the default cap on parallel transport calls per fan-out.
const sendConcurrency = 8

// TokenStore is the device-token surface the dispatcher needs. The
// dispatcher is the only writer of the is_active flag.
type TokenStore interface {
	ActiveTokens(ctx context.Context, profileID string) ([]DeviceToken, error)
	DeactivateTokens(ctx context.Context, ids []string) error
}

// AlertStore persists the alert record backing a fan-out.
type AlertStore interface {
	InsertAlert(ctx context.Context, profileID string, payload AlertPayload) error
}

// Dispatcher delivers one alert to every active device of a profile.
type Dispatcher struct {
	tokens      TokenStore
	alerts      AlertStore
	sender      Sender
	logger      *slog.Logger
	concurrency int
}

func NewDispatcher(log *slog.Logger, tokens TokenStore, alerts AlertStore, sender Sender) *Dispatcher {
	return &Dispatcher{
		tokens:      tokens,
		alerts:      alerts,
		sender:      sender,
		logger:      log.With(slog.String("component", "notify")),
		concurrency: sendConcurrency,
	}
}

// WithConcurrency overrides the parallel-send cap.
func (d *Dispatcher) WithConcurrency(n int) *Dispatcher {
	if n > 0 {
		d.concurrency = n
	}
	return d
}

// Notify persists the alert, fans it out to every active token, and retires
// tokens the transport reports as permanently invalid in one batched update.
// Per-message delivery failures never abort the batch; only store failures
// do.
func (d *Dispatcher) Notify(ctx context.Context, profileID string, payload AlertPayload) (Report, error) {
	if d.tokens == nil || d.sender == nil {
		return Report{}, fmt.Errorf("notification dispatcher not configured")
	}
	if strings.TrimSpace(profileID) == "" {
		return Report{}, fmt.Errorf("profile id is required")
	}
	if payload.AlertID == "" {
		payload.AlertID = uuid.NewString()
	}
	if payload.Band == "" {
		payload.Band = "none"
	}

	if d.alerts != nil {
		if err := d.alerts.InsertAlert(ctx, profileID, payload); err != nil {
			return Report{}, fmt.Errorf("persist alert: %w", err)
		}
	}

	tokens, err := d.tokens.ActiveTokens(ctx, profileID)
	if err != nil {
		return Report{}, fmt.Errorf("load device tokens: %w", err)
	}
	if len(tokens) == 0 {
		d.logger.Info("no active devices for alert",
			slog.String("profile_id", profileID),
			slog.String("alert_id", payload.AlertID),
		)
		return Report{}, nil
	}

	data := buildData(payload)
	deliveries := make([]Delivery, len(tokens))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(d.concurrency)
	for idx, token := range tokens {
		idx, token := idx, token
		group.Go(func() error {
			deliveries[idx] = d.deliver(groupCtx, token, payload, data)
			return nil
		})
	}
	_ = group.Wait()

	report := Report{Deliveries: deliveries}
	var invalidIDs []string
	for _, delivery := range deliveries {
		if delivery.OK {
			report.Sent++
			continue
		}
		report.Failed++
		if delivery.Invalid {
			invalidIDs = append(invalidIDs, delivery.TokenID)
		}
	}

	if len(invalidIDs) > 0 {
		if err := d.tokens.DeactivateTokens(ctx, invalidIDs); err != nil {
			return report, fmt.Errorf("deactivate tokens: %w", err)
		}
		report.Deactivated = len(invalidIDs)
		metrics.TokensDeactivated.Add(float64(len(invalidIDs)))
	}

	metrics.AlertsDispatched.WithLabelValues(payload.Band).Inc()
	d.logger.Info("alert dispatched",
		slog.String("profile_id", profileID),
		slog.String("alert_id", payload.AlertID),
		slog.String("band", payload.Band),
		slog.Int("sent", report.Sent),
		slog.Int("failed", report.Failed),
		slog.Int("deactivated", report.Deactivated),
	)
	return report, nil
}

func (d *Dispatcher) deliver(ctx context.Context, token DeviceToken, payload AlertPayload, data map[string]string) Delivery {
	delivery := Delivery{TokenID: token.ID, Token: token.Token}

	receipt, err := d.sender.Send(ctx, PushMessage{
		To:    token.Token,
		Title: payload.Title,
		Body:  payload.Body,
		Data:  data,
	})
	if err != nil {
		delivery.Detail = err.Error()
		metrics.PushDeliveries.WithLabelValues("failed").Inc()
		d.logger.Warn("push delivery failed",
			slog.String("token_id", token.ID),
			slog.String("error", err.Error()),
		)
		return delivery
	}
	if receipt.OK {
		delivery.OK = true
		metrics.PushDeliveries.WithLabelValues("ok").Inc()
		return delivery
	}

	delivery.Detail = receipt.Detail
	if isInvalidRecipient(receipt.Detail) {
		delivery.Invalid = true
		metrics.PushDeliveries.WithLabelValues("invalid").Inc()
		d.logger.Info("push recipient gone",
			slog.String("token_id", token.ID),
			slog.String("detail", receipt.Detail),
		)
	} else {
		metrics.PushDeliveries.WithLabelValues("failed").Inc()
		d.logger.Warn("push rejected",
			slog.String("token_id", token.ID),
			slog.String("detail", receipt.Detail),
		)
	}
	return delivery
}

func isInvalidRecipient(detail string) bool {
	lower := strings.ToLower(detail)
	for _, sig := range invalidRecipientSignatures {
		if strings.Contains(lower, strings.ToLower(sig)) {
			return true
		}
	}
	return false
}

// buildData merges the payload's data map with the alert and call ids.
// Values are coerced to strings; nil values are dropped.
func buildData(payload AlertPayload) map[string]string {
	data := make(map[string]string, len(payload.Data)+3)
	for k, v := range payload.Data {
		if v == nil {
			continue
		}
		data[k] = fmt.Sprintf("%v", v)
	}
	data["alertId"] = payload.AlertID
	if payload.CallID != "" {
		data["callId"] = payload.CallID
	}
	if payload.Band != "" {
		data["band"] = payload.Band
	}
	return data
}
