package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Aggregator merges the incremental output of one recognition session into a
// single transcript with the best per-segment confidence.
type Aggregator struct {
	opener SessionOpener
	logger *slog.Logger
}

func NewAggregator(log *slog.Logger, opener SessionOpener) *Aggregator {
	return &Aggregator{
		opener: opener,
		logger: log.With(slog.String("component", "transcribe")),
	}
}

// Transcribe runs one session over audio and blocks until it settles. It
// resolves exactly once: the first terminal event wins and the session is
// released exactly once regardless of how many terminal callbacks fire.
func (a *Aggregator) Transcribe(ctx context.Context, audio []byte, locale string) (Result, error) {
	if a.opener == nil {
		return Result{}, fmt.Errorf("speech recognizer not configured")
	}
	if len(audio) == 0 {
		return Result{}, fmt.Errorf("audio buffer is empty")
	}
	locale = NormalizeLocale(locale)

	state := newSessionState(a.logger)
	handlers := Handlers{
		Recognized:     state.recognized,
		SessionStopped: state.stopped,
		Canceled:       state.canceled,
	}

	session, err := a.opener.OpenSession(ctx, audio, locale, handlers)
	if err != nil {
		return Result{}, fmt.Errorf("open recognition session: %w", err)
	}
	if err := session.Start(ctx); err != nil {
		session.Close()
		return Result{}, fmt.Errorf("start recognition: %w", err)
	}

	select {
	case <-state.done:
	case <-ctx.Done():
		state.settle(ctx.Err())
	}
	if err := session.Close(); err != nil {
		a.logger.Warn("recognition session close failed", slog.String("error", err.Error()))
	}

	text, confidence, err := state.snapshot()
	if err != nil {
		return Result{}, err
	}
	return Result{Text: text, Confidence: confidence, DetectedLocale: locale}, nil
}

// sessionState collects segments until the first terminal event. The settled
// flag is single-assignment under mu so late provider callbacks are no-ops.
type sessionState struct {
	logger *slog.Logger
	done   chan struct{}

	mu       sync.Mutex
	segments []string
	best     *float64
	settled  bool
	err      error
}

func newSessionState(log *slog.Logger) *sessionState {
	return &sessionState{logger: log, done: make(chan struct{})}
}

func (s *sessionState) recognized(text string, payload []byte) {
	trimmed := strings.TrimSpace(text)
	confidence, ok := parseConfidence(payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settled {
		return
	}
	if trimmed != "" {
		s.segments = append(s.segments, trimmed)
	}
	if !ok {
		if len(payload) > 0 {
			s.logger.Debug("segment confidence unavailable")
		}
		return
	}
	if s.best == nil || confidence > *s.best {
		s.best = &confidence
	}
}

func (s *sessionState) stopped() {
	s.settle(nil)
}

func (s *sessionState) canceled(endOfStream bool, detail string) {
	if endOfStream {
		s.settle(nil)
		return
	}
	s.settle(fmt.Errorf("recognition canceled: %s", detail))
}

func (s *sessionState) settle(err error) {
	s.mu.Lock()
	if s.settled {
		s.mu.Unlock()
		return
	}
	s.settled = true
	s.err = err
	s.mu.Unlock()
	close(s.done)
}

func (s *sessionState) snapshot() (string, *float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", nil, s.err
	}
	return strings.Join(s.segments, " "), s.best, nil
}

// parseConfidence digs the per-segment confidence out of the provider's raw
// result. A payload that cannot be parsed skips only this segment's score.
func parseConfidence(payload []byte) (float64, bool) {
	if len(payload) == 0 {
		return 0, false
	}
	var parsed struct {
		Confidence *float64 `json:"Confidence"`
		NBest      []struct {
			Confidence *float64 `json:"Confidence"`
		} `json:"NBest"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return 0, false
	}
	if len(parsed.NBest) > 0 && parsed.NBest[0].Confidence != nil {
		return *parsed.NBest[0].Confidence, true
	}
	if parsed.Confidence != nil {
		return *parsed.Confidence, true
	}
	return 0, false
}
