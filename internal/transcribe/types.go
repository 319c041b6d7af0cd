// Package transcribe turns a recorded audio buffer into a single scored
// transcript by driving a streaming speech-recognition session and merging
// its incremental results.
package transcribe

import (
	"context"

	"golang.org/x/text/language"
)

// DefaultLocale is assumed when the caller does not name one.
const DefaultLocale = "en-US"

// Result is the settled output of one recognition session.
type Result struct {
	Text           string   `json:"text"`
	Confidence     *float64 `json:"confidence,omitempty"`
	DetectedLocale string   `json:"detected_locale,omitempty"`
}

// Handlers receive session events. The provider may invoke them from its own
// goroutine; implementations must treat each hook as optional.
type Handlers struct {
	// Recognized delivers one final (non-interim) segment. The payload is
	// the provider's raw structured result for that segment.
	Recognized func(text string, payload []byte)
	// SessionStopped signals normal end-of-stream.
	SessionStopped func()
	// Canceled signals the session ended before a normal stop. endOfStream
	// marks the provider's own end-of-stream cancellation, which is not a
	// failure.
	Canceled func(endOfStream bool, detail string)
}

// Session is one continuous recognition attempt over a fixed audio buffer.
type Session interface {
	// Start begins recognition. It errs only when the session cannot begin
	// at all; everything after a successful start arrives through Handlers.
	Start(ctx context.Context) error
	// Close releases the session. Safe to call after any terminal event.
	Close() error
}

// SessionOpener is the speech-recognition port. One session per audio buffer.
type SessionOpener interface {
	OpenSession(ctx context.Context, audio []byte, locale string, handlers Handlers) (Session, error)
}

// NormalizeLocale canonicalizes a BCP 47 tag, falling back to DefaultLocale
// when the input is blank or unparseable.
func NormalizeLocale(locale string) string {
	if locale == "" {
		return DefaultLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return DefaultLocale
	}
	return tag.String()
}
