// Package profiles manages the protected profiles being screened and the
// circles of caregivers around them.
package profiles

import (
	"errors"
	"time"
)

// Profile is one protected individual.
type Profile struct {
	ID             string    `json:"id"`
	DisplayName    string    `json:"display_name"`
	Region         string    `json:"region"`
	AlertThreshold float64   `json:"alert_threshold"`
	SafePhrases    []string  `json:"safe_phrases"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Member is one caregiver in a profile's circle.
type Member struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profile_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Settings carries a partial update; nil fields keep their stored value.
type Settings struct {
	Region         *string  `json:"region,omitempty"`
	AlertThreshold *float64 `json:"alert_threshold,omitempty"`
	SafePhrases    []string `json:"safe_phrases,omitempty"`
}

var (
	ErrNotFound = errors.New("profile not found")
	// ErrInvalidSettings marks a settings patch the service rejected.
	ErrInvalidSettings = errors.New("invalid profile settings")
)
