// Package router drives the screening pipeline for one inbound call event:
// classify the caller, consult the trust/block ledger, enrich with transcript
// and voice-risk scores, and fan an alert out to the circle when the profile's
// threshold is crossed.
package router

import (
	"time"

	"github.com/SynisterSage/verityapp-sub001/internal/notify"
	"github.com/SynisterSage/verityapp-sub001/internal/risk"
	"github.com/SynisterSage/verityapp-sub001/internal/screening"
)

// CallEvent is one inbound call notification from the carrier webhook.
type CallEvent struct {
	ProfileID  string `json:"profile_id"`
	ExternalID string `json:"call_id,omitempty"`
	Number     string `json:"number"`
	Locale     string `json:"locale,omitempty"`
	Recording  []byte `json:"recording,omitempty"`
}

// CallRecord is one screened call as persisted for the history timeline. The
// caller is stored only as hash plus coarse metadata, never the raw number.
type CallRecord struct {
	ID                   string           `json:"id"`
	ProfileID            string           `json:"profile_id"`
	ExternalID           string           `json:"external_id,omitempty"`
	CallerHash           string           `json:"caller_hash,omitempty"`
	CallerCountry        string           `json:"caller_country,omitempty"`
	HighRiskCountry      bool             `json:"high_risk_country"`
	ScreeningStatus      screening.Status `json:"screening_status"`
	RecordingHash        string           `json:"recording_hash,omitempty"`
	Transcript           string           `json:"transcript,omitempty"`
	TranscriptConfidence *float64         `json:"transcript_confidence,omitempty"`
	RiskScore            *float64         `json:"risk_score,omitempty"`
	RiskBand             string           `json:"risk_band,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
}

// Outcome reports what the pipeline did with one event.
type Outcome struct {
	Call       CallRecord       `json:"call"`
	Status     screening.Status `json:"status"`
	Assessment *risk.Assessment `json:"assessment,omitempty"`
	Alerted    bool             `json:"alerted"`
	Report     *notify.Report   `json:"report,omitempty"`
}
