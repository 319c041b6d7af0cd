// Package notify fans an alert out to every active device of a profile's
// circle and reconciles per-device delivery outcomes, retiring tokens the
// transport reports as permanently invalid.
package notify

import (
	"context"
	"time"
)

// AlertPayload is built once per alert event and is immutable during fan-out.
type AlertPayload struct {
	AlertID string         `json:"alert_id"`
	CallID  string         `json:"call_id,omitempty"`
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Band    string         `json:"band,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// DeviceToken is one registered push recipient for a profile.
type DeviceToken struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profile_id"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Alert is the persisted record of one dispatched alert.
type Alert struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profile_id"`
	CallID    string    `json:"call_id,omitempty"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Band      string    `json:"band"`
	CreatedAt time.Time `json:"created_at"`
}

// PushMessage is one transport send to one device.
type PushMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// PushReceipt is the transport's outcome for one message. Detail carries the
// provider's error code or message when OK is false.
type PushReceipt struct {
	OK     bool
	Detail string
}

// Sender is the push delivery port, called once per recipient token.
type Sender interface {
	Send(ctx context.Context, msg PushMessage) (PushReceipt, error)
}

// Delivery is the reconciled outcome for one token, indexed in token order.
type Delivery struct {
	TokenID string `json:"token_id"`
	Token   string `json:"token"`
	OK      bool   `json:"ok"`
	Invalid bool   `json:"invalid,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Report summarizes one fan-out.
type Report struct {
	Deliveries  []Delivery `json:"deliveries,omitempty"`
	Sent        int        `json:"sent"`
	Failed      int        `json:"failed"`
	Deactivated int        `json:"deactivated"`
}
