package router

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/SynisterSage/verityapp-sub001/internal/caller"
	"github.com/SynisterSage/verityapp-sub001/internal/metrics"
	"github.com/SynisterSage/verityapp-sub001/internal/notify"
	"github.com/SynisterSage/verityapp-sub001/internal/profiles"
	"github.com/SynisterSage/verityapp-sub001/internal/risk"
	"github.com/SynisterSage/verityapp-sub001/internal/screening"
	"github.com/SynisterSage/verityapp-sub001/internal/transcribe"
)

// Screener answers ledger lookups without exposing the ledger's mutations.
type Screener interface {
	Status(ctx context.Context, profileID, callerHash string) (screening.Status, error)
}

// ProfileSource loads the settings the pipeline screens against.
type ProfileSource interface {
	Get(ctx context.Context, profileID string) (profiles.Profile, error)
}

// Transcriber turns a recording into a scored transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, locale string) (transcribe.Result, error)
}

// VoiceDetector scores a recording for synthetic voice.
type VoiceDetector interface {
	Analyze(ctx context.Context, audio []byte) (risk.ChunkSummary, error)
}

// AlertDispatcher fans one alert out to the circle's devices.
type AlertDispatcher interface {
	Notify(ctx context.Context, profileID string, payload notify.AlertPayload) (notify.Report, error)
}

// ChannelEscalator mirrors an alert into the circle's chat channels.
type ChannelEscalator interface {
	Escalate(ctx context.Context, profileID, title, body, band string) error
}

// RecordingArchive keeps call audio for later review.
type RecordingArchive interface {
	Store(ctx context.Context, reader io.Reader) (string, int64, error)
}

// CallStore persists the screening timeline.
type CallStore interface {
	InsertCall(ctx context.Context, record CallRecord) (CallRecord, error)
	UpdateCallAnalysis(ctx context.Context, record CallRecord) error
	GetCall(ctx context.Context, profileID, callID string) (CallRecord, bool, error)
	ListCalls(ctx context.Context, profileID string, limit int) ([]CallRecord, error)
}

// CallProcessor routes one call event through classification, screening,
// enrichment, and alerting.
type CallProcessor struct {
	classifier  *caller.Classifier
	screener    Screener
	profiles    ProfileSource
	transcriber Transcriber
	detector    VoiceDetector
	dispatcher  AlertDispatcher
	escalator   ChannelEscalator
	archive     RecordingArchive
	calls       CallStore
	logger      *slog.Logger
}

func NewCallProcessor(log *slog.Logger, classifier *caller.Classifier, screener Screener, profileSource ProfileSource, calls CallStore) *CallProcessor {
	if log == nil {
		log = slog.Default()
	}
	return &CallProcessor{
		classifier: classifier,
		screener:   screener,
		profiles:   profileSource,
		calls:      calls,
		logger:     log.With(slog.String("component", "call_router")),
	}
}

// WithTranscriber attaches the speech port. Without one, calls are screened
// on caller metadata alone.
func (p *CallProcessor) WithTranscriber(t Transcriber) *CallProcessor {
	p.transcriber = t
	return p
}

func (p *CallProcessor) WithDetector(d VoiceDetector) *CallProcessor {
	p.detector = d
	return p
}

func (p *CallProcessor) WithDispatcher(d AlertDispatcher) *CallProcessor {
	p.dispatcher = d
	return p
}

func (p *CallProcessor) WithEscalator(e ChannelEscalator) *CallProcessor {
	p.escalator = e
	return p
}

func (p *CallProcessor) WithArchive(a RecordingArchive) *CallProcessor {
	p.archive = a
	return p
}

// HandleCall runs the pipeline for one event. Enrichment failures degrade to
// partial results; only profile/ledger/store/dispatch infrastructure failures
// propagate.
func (p *CallProcessor) HandleCall(ctx context.Context, event CallEvent) (Outcome, error) {
	if p.classifier == nil || p.screener == nil || p.profiles == nil || p.calls == nil {
		return Outcome{}, fmt.Errorf("call processor not configured")
	}
	if strings.TrimSpace(event.ProfileID) == "" {
		return Outcome{}, fmt.Errorf("profile id is required")
	}

	profile, err := p.profiles.Get(ctx, event.ProfileID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load profile: %w", err)
	}

	identity := p.classifier.Classify(event.Number, profile.Region)
	callerHash := caller.Hash(identity.E164)

	status := screening.StatusUnknown
	if callerHash != "" {
		status, err = p.screener.Status(ctx, event.ProfileID, callerHash)
		if err != nil {
			return Outcome{}, fmt.Errorf("ledger status: %w", err)
		}
	}

	record, err := p.calls.InsertCall(ctx, CallRecord{
		ProfileID:       event.ProfileID,
		ExternalID:      strings.TrimSpace(event.ExternalID),
		CallerHash:      callerHash,
		CallerCountry:   identity.Country,
		HighRiskCountry: identity.HighRiskCountry,
		ScreeningStatus: status,
		RecordingHash:   p.archiveRecording(ctx, event),
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("record call: %w", err)
	}

	outcome := Outcome{Call: record, Status: status}

	switch status {
	case screening.StatusBlocked:
		metrics.CallsScreened.WithLabelValues(string(risk.BandNone)).Inc()
		p.logger.Info("blocked caller screened",
			slog.String("profile_id", event.ProfileID),
			slog.String("call_id", record.ID),
		)
		return outcome, nil
	case screening.StatusTrusted:
		metrics.CallsScreened.WithLabelValues(string(risk.BandNone)).Inc()
		p.logger.Info("trusted caller screened",
			slog.String("profile_id", event.ProfileID),
			slog.String("call_id", record.ID),
		)
		return outcome, nil
	}

	transcript, confidence := p.enrichTranscript(ctx, event, record.ID)
	voice := p.enrichVoice(ctx, event, record.ID)

	assessment := risk.Evaluate(voice, identity.HighRiskCountry, transcript, profile.SafePhrases)
	outcome.Assessment = &assessment
	metrics.CallsScreened.WithLabelValues(string(assessment.Band)).Inc()

	record.Transcript = transcript
	record.TranscriptConfidence = confidence
	score := assessment.Score
	record.RiskScore = &score
	record.RiskBand = string(assessment.Band)
	outcome.Call = record
	if err := p.calls.UpdateCallAnalysis(ctx, record); err != nil {
		// The alert still has to go out; the timeline row just stays thin.
		p.logger.Error("update call analysis failed",
			slog.String("call_id", record.ID),
			slog.Any("error", err),
		)
	}

	p.logger.Info("call screened",
		slog.String("profile_id", event.ProfileID),
		slog.String("call_id", record.ID),
		slog.String("band", string(assessment.Band)),
		slog.Float64("score", assessment.Score),
	)

	if assessment.Score < profile.AlertThreshold {
		return outcome, nil
	}
	if p.dispatcher == nil {
		p.logger.Warn("alert threshold crossed but no dispatcher configured",
			slog.String("call_id", record.ID),
		)
		return outcome, nil
	}

	title, body := buildAlertText(identity, assessment)
	report, err := p.dispatcher.Notify(ctx, event.ProfileID, notify.AlertPayload{
		CallID: record.ID,
		Title:  title,
		Body:   body,
		Band:   string(assessment.Band),
		Data:   alertData(identity, assessment),
	})
	if err != nil {
		return outcome, fmt.Errorf("dispatch alert: %w", err)
	}
	outcome.Alerted = true
	outcome.Report = &report

	if assessment.Band == risk.BandHigh && p.escalator != nil {
		if err := p.escalator.Escalate(ctx, event.ProfileID, title, body, string(assessment.Band)); err != nil {
			p.logger.Error("channel escalation failed",
				slog.String("call_id", record.ID),
				slog.Any("error", err),
			)
		}
	}
	return outcome, nil
}

// Calls lists the screening timeline for the history view.
func (p *CallProcessor) Calls(ctx context.Context, profileID string, limit int) ([]CallRecord, error) {
	if p.calls == nil {
		return nil, fmt.Errorf("call processor not configured")
	}
	return p.calls.ListCalls(ctx, profileID, limit)
}

// Call fetches one timeline row.
func (p *CallProcessor) Call(ctx context.Context, profileID, callID string) (CallRecord, bool, error) {
	if p.calls == nil {
		return CallRecord{}, false, fmt.Errorf("call processor not configured")
	}
	return p.calls.GetCall(ctx, profileID, callID)
}

// archiveRecording is best-effort: screening proceeds on the in-memory audio
// either way, the timeline row just loses its replay link.
func (p *CallProcessor) archiveRecording(ctx context.Context, event CallEvent) string {
	if len(event.Recording) == 0 || p.archive == nil {
		return ""
	}
	hash, _, err := p.archive.Store(ctx, bytes.NewReader(event.Recording))
	if err != nil {
		p.logger.Warn("recording archive failed",
			slog.String("profile_id", event.ProfileID),
			slog.Any("error", err),
		)
		return ""
	}
	return hash
}

func (p *CallProcessor) enrichTranscript(ctx context.Context, event CallEvent, callID string) (string, *float64) {
	if len(event.Recording) == 0 || p.transcriber == nil {
		return "", nil
	}
	result, err := p.transcriber.Transcribe(ctx, event.Recording, event.Locale)
	if err != nil {
		p.logger.Warn("transcription failed",
			slog.String("call_id", callID),
			slog.Any("error", err),
		)
		return "", nil
	}
	return result.Text, result.Confidence
}

func (p *CallProcessor) enrichVoice(ctx context.Context, event CallEvent, callID string) *risk.ChunkSummary {
	if len(event.Recording) == 0 || p.detector == nil {
		return nil
	}
	summary, err := p.detector.Analyze(ctx, event.Recording)
	if err != nil {
		p.logger.Warn("voice analysis failed",
			slog.String("call_id", callID),
			slog.Any("error", err),
		)
		return nil
	}
	return &summary
}

func buildAlertText(identity caller.Identity, assessment risk.Assessment) (string, string) {
	title := "Call risk above your alert level"
	switch assessment.Band {
	case risk.BandHigh:
		title = "Suspected scam call"
	case risk.BandCaution:
		title = "Suspicious call screened"
	}

	from := "an unknown number"
	if identity.E164 != "" {
		from = identity.E164
	}
	body := fmt.Sprintf("A call from %s scored %.0f%% voice risk.", from, assessment.Score*100)
	if identity.HighRiskCountry {
		body = fmt.Sprintf("A call from %s (%s) scored %.0f%% voice risk.", from, identity.Country, assessment.Score*100)
	}
	if assessment.MatchedPhrase != "" {
		body += " A safe phrase was heard on the call."
	}
	return title, body
}

func alertData(identity caller.Identity, assessment risk.Assessment) map[string]any {
	data := map[string]any{
		"score": fmt.Sprintf("%.3f", assessment.Score),
	}
	if identity.Country != "" {
		data["country"] = identity.Country
	}
	if assessment.MatchedPhrase != "" {
		data["safePhrase"] = assessment.MatchedPhrase
	}
	return data
}
