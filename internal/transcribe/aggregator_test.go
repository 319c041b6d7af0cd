package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type scriptedSession struct {
	handlers Handlers
	startErr error
	script   func(h Handlers)

	mu     sync.Mutex
	closes int
}

func (s *scriptedSession) Start(context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	if s.script != nil {
		go s.script(s.handlers)
	}
	return nil
}

func (s *scriptedSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *scriptedSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type scriptedOpener struct {
	openErr error
	session *scriptedSession

	mu        sync.Mutex
	gotLocale string
}

func (o *scriptedOpener) OpenSession(_ context.Context, _ []byte, locale string, h Handlers) (Session, error) {
	if o.openErr != nil {
		return nil, o.openErr
	}
	o.mu.Lock()
	o.gotLocale = locale
	o.mu.Unlock()
	o.session.handlers = h
	return o.session, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func segmentPayload(confidence float64) []byte {
	return []byte(fmt.Sprintf(`{"NBest":[{"Confidence":%.2f}]}`, confidence))
}

func TestTranscribeAccumulatesSegments(t *testing.T) {
	t.Parallel()

	session := &scriptedSession{script: func(h Handlers) {
		h.Recognized("  Hello there.  ", segmentPayload(0.62))
		h.Recognized("This is your bank calling.", []byte(`not json`))
		h.Recognized("Please confirm your account.", segmentPayload(0.91))
		h.SessionStopped()
	}}
	agg := NewAggregator(testLogger(), &scriptedOpener{session: session})

	result, err := agg.Transcribe(context.Background(), []byte("wav"), "en-US")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}

	want := "Hello there. This is your bank calling. Please confirm your account."
	if result.Text != want {
		t.Fatalf("text = %q, want %q", result.Text, want)
	}
	if result.Confidence == nil || *result.Confidence != 0.91 {
		t.Fatalf("confidence = %v, want 0.91", result.Confidence)
	}
	if result.DetectedLocale != "en-US" {
		t.Fatalf("locale = %q, want en-US", result.DetectedLocale)
	}
	if session.closeCount() != 1 {
		t.Fatalf("session closed %d times, want 1", session.closeCount())
	}
}

func TestTranscribeCanceledMidstream(t *testing.T) {
	t.Parallel()

	session := &scriptedSession{script: func(h Handlers) {
		h.Recognized("Hello.", segmentPayload(0.8))
		h.Canceled(false, "quota exceeded")
	}}
	agg := NewAggregator(testLogger(), &scriptedOpener{session: session})

	_, err := agg.Transcribe(context.Background(), []byte("wav"), "")
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if got := err.Error(); got != "recognition canceled: quota exceeded" {
		t.Fatalf("error = %q", got)
	}
	if session.closeCount() != 1 {
		t.Fatalf("session closed %d times, want 1", session.closeCount())
	}
}

func TestTranscribeEndOfStreamCancelIsSuccess(t *testing.T) {
	t.Parallel()

	session := &scriptedSession{script: func(h Handlers) {
		h.Recognized("Goodbye.", segmentPayload(0.7))
		h.Canceled(true, "end of stream")
	}}
	agg := NewAggregator(testLogger(), &scriptedOpener{session: session})

	result, err := agg.Transcribe(context.Background(), []byte("wav"), "en-US")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if result.Text != "Goodbye." {
		t.Fatalf("text = %q", result.Text)
	}
}

func TestTranscribeFirstTerminalEventWins(t *testing.T) {
	t.Parallel()

	late := make(chan struct{})
	session := &scriptedSession{}
	session.script = func(h Handlers) {
		h.Recognized("Only segment.", segmentPayload(0.5))
		h.SessionStopped()
		// Terminal callbacks after settlement must be no-ops.
		h.Canceled(false, "late cancellation")
		h.SessionStopped()
		h.Recognized("Ghost segment.", segmentPayload(0.99))
		close(late)
	}
	agg := NewAggregator(testLogger(), &scriptedOpener{session: session})

	result, err := agg.Transcribe(context.Background(), []byte("wav"), "en-US")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}

	select {
	case <-late:
	case <-time.After(2 * time.Second):
		t.Fatal("scripted session never finished")
	}
	if result.Text != "Only segment." {
		t.Fatalf("text = %q, want only the pre-settlement segment", result.Text)
	}
	if result.Confidence == nil || *result.Confidence != 0.5 {
		t.Fatalf("confidence = %v, want 0.5", result.Confidence)
	}
	if session.closeCount() != 1 {
		t.Fatalf("session closed %d times, want 1", session.closeCount())
	}
}

func TestTranscribeStartupFailure(t *testing.T) {
	t.Parallel()

	startErr := errors.New("connection refused")
	session := &scriptedSession{startErr: startErr}
	agg := NewAggregator(testLogger(), &scriptedOpener{session: session})

	_, err := agg.Transcribe(context.Background(), []byte("wav"), "en-US")
	if !errors.Is(err, startErr) {
		t.Fatalf("error %v does not wrap startup failure", err)
	}
	if session.closeCount() != 1 {
		t.Fatalf("session closed %d times, want 1", session.closeCount())
	}
}

func TestTranscribeOpenFailure(t *testing.T) {
	t.Parallel()

	openErr := errors.New("bad credentials")
	agg := NewAggregator(testLogger(), &scriptedOpener{openErr: openErr})

	_, err := agg.Transcribe(context.Background(), []byte("wav"), "en-US")
	if !errors.Is(err, openErr) {
		t.Fatalf("error %v does not wrap open failure", err)
	}
}

func TestTranscribeAbandoned(t *testing.T) {
	t.Parallel()

	// The session never settles; the caller walks away.
	session := &scriptedSession{script: func(Handlers) {}}
	agg := NewAggregator(testLogger(), &scriptedOpener{session: session})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agg.Transcribe(ctx, []byte("wav"), "en-US")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if session.closeCount() != 1 {
		t.Fatalf("session closed %d times, want 1", session.closeCount())
	}
}

func TestTranscribeValidation(t *testing.T) {
	t.Parallel()

	t.Run("no recognizer", func(t *testing.T) {
		t.Parallel()
		agg := NewAggregator(testLogger(), nil)
		if _, err := agg.Transcribe(context.Background(), []byte("wav"), ""); err == nil {
			t.Fatal("expected error with nil opener")
		}
	})

	t.Run("empty audio", func(t *testing.T) {
		t.Parallel()
		agg := NewAggregator(testLogger(), &scriptedOpener{session: &scriptedSession{}})
		if _, err := agg.Transcribe(context.Background(), nil, ""); err == nil {
			t.Fatal("expected error for empty audio")
		}
	})
}

func TestTranscribeLocaleNormalization(t *testing.T) {
	t.Parallel()

	opener := &scriptedOpener{session: &scriptedSession{script: func(h Handlers) {
		h.SessionStopped()
	}}}
	agg := NewAggregator(testLogger(), opener)

	result, err := agg.Transcribe(context.Background(), []byte("wav"), "es-mx")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if result.DetectedLocale != "es-MX" {
		t.Fatalf("locale = %q, want es-MX", result.DetectedLocale)
	}

	opener.mu.Lock()
	got := opener.gotLocale
	opener.mu.Unlock()
	if got != "es-MX" {
		t.Fatalf("session locale = %q, want es-MX", got)
	}
}

func TestNormalizeLocale(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"", DefaultLocale},
		{"en-US", "en-US"},
		{"es-mx", "es-MX"},
		{"???", DefaultLocale},
	}
	for _, tc := range cases {
		if got := NormalizeLocale(tc.in); got != tc.want {
			t.Fatalf("NormalizeLocale(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseConfidence(t *testing.T) {
	t.Parallel()

	if _, ok := parseConfidence(nil); ok {
		t.Fatal("empty payload should carry no confidence")
	}
	if _, ok := parseConfidence([]byte(`{"NBest":[]}`)); ok {
		t.Fatal("empty NBest should carry no confidence")
	}
	if got, ok := parseConfidence([]byte(`{"Confidence":0.42}`)); !ok || got != 0.42 {
		t.Fatalf("top-level confidence = %v ok=%v", got, ok)
	}
	if got, ok := parseConfidence(segmentPayload(0.88)); !ok || got != 0.88 {
		t.Fatalf("nbest confidence = %v ok=%v", got, ok)
	}
}
