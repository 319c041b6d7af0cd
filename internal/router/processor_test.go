package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/SynisterSage/verityapp-sub001/internal/caller"
	"github.com/SynisterSage/verityapp-sub001/internal/notify"
	"github.com/SynisterSage/verityapp-sub001/internal/profiles"
	"github.com/SynisterSage/verityapp-sub001/internal/risk"
	"github.com/SynisterSage/verityapp-sub001/internal/screening"
	"github.com/SynisterSage/verityapp-sub001/internal/transcribe"
)

type fakeScreener struct {
	status screening.Status
	err    error
	asked  []string
}

func (f *fakeScreener) Status(_ context.Context, _, callerHash string) (screening.Status, error) {
	f.asked = append(f.asked, callerHash)
	if f.err != nil {
		return screening.StatusUnknown, f.err
	}
	if f.status == "" {
		return screening.StatusUnknown, nil
	}
	return f.status, nil
}

type fakeProfileSource struct {
	profile profiles.Profile
	err     error
}

func (f *fakeProfileSource) Get(_ context.Context, _ string) (profiles.Profile, error) {
	if f.err != nil {
		return profiles.Profile{}, f.err
	}
	return f.profile, nil
}

type fakeTranscriber struct {
	result transcribe.Result
	err    error
	calls  int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ []byte, _ string) (transcribe.Result, error) {
	f.calls++
	if f.err != nil {
		return transcribe.Result{}, f.err
	}
	return f.result, nil
}

type fakeDetector struct {
	summary risk.ChunkSummary
	err     error
	calls   int
}

func (f *fakeDetector) Analyze(_ context.Context, _ []byte) (risk.ChunkSummary, error) {
	f.calls++
	if f.err != nil {
		return risk.ChunkSummary{}, f.err
	}
	return f.summary, nil
}

type fakeDispatcher struct {
	report   notify.Report
	err      error
	payloads []notify.AlertPayload
}

func (f *fakeDispatcher) Notify(_ context.Context, _ string, payload notify.AlertPayload) (notify.Report, error) {
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return notify.Report{}, f.err
	}
	return f.report, nil
}

type escalation struct {
	title string
	band  string
}

type fakeEscalator struct {
	err   error
	calls []escalation
}

func (f *fakeEscalator) Escalate(_ context.Context, _, title, _, band string) error {
	f.calls = append(f.calls, escalation{title: title, band: band})
	return f.err
}

type fakeCallStore struct {
	insertErr error
	updateErr error
	nextID    int
	inserted  []CallRecord
	updated   []CallRecord
}

func (f *fakeCallStore) InsertCall(_ context.Context, record CallRecord) (CallRecord, error) {
	if f.insertErr != nil {
		return CallRecord{}, f.insertErr
	}
	f.nextID++
	record.ID = fmt.Sprintf("call-%d", f.nextID)
	f.inserted = append(f.inserted, record)
	return record, nil
}

func (f *fakeCallStore) UpdateCallAnalysis(_ context.Context, record CallRecord) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, record)
	return nil
}

func (f *fakeCallStore) GetCall(_ context.Context, profileID, callID string) (CallRecord, bool, error) {
	for _, record := range f.inserted {
		if record.ID == callID && record.ProfileID == profileID {
			return record, true, nil
		}
	}
	return CallRecord{}, false, nil
}

func (f *fakeCallStore) ListCalls(_ context.Context, _ string, _ int) ([]CallRecord, error) {
	return f.inserted, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClassifier() *caller.Classifier {
	return caller.NewClassifier(testLogger(), caller.DefaultPolicy())
}

func testProfile() profiles.Profile {
	return profiles.Profile{
		ID:             "p1",
		DisplayName:    "Ruth",
		Region:         "US",
		AlertThreshold: 0.85,
	}
}

func scores(values ...float64) risk.ChunkSummary {
	return risk.SummarizeChunks(values)
}

func TestHandleCallHighRiskAlertsAndEscalates(t *testing.T) {
	t.Parallel()

	store := &fakeCallStore{}
	dispatcher := &fakeDispatcher{report: notify.Report{Sent: 2}}
	escalator := &fakeEscalator{}
	detector := &fakeDetector{summary: scores(0.97, 0.98, 0.96)}
	transcriber := &fakeTranscriber{result: transcribe.Result{Text: "I need your bank account now."}}

	proc := NewCallProcessor(testLogger(), testClassifier(), &fakeScreener{}, &fakeProfileSource{profile: testProfile()}, store).
		WithTranscriber(transcriber).
		WithDetector(detector).
		WithDispatcher(dispatcher).
		WithEscalator(escalator)

	outcome, err := proc.HandleCall(context.Background(), CallEvent{
		ProfileID: "p1",
		Number:    "+15551234567",
		Recording: []byte("wav-bytes"),
	})
	if err != nil {
		t.Fatalf("HandleCall: %v", err)
	}
	if !outcome.Alerted {
		t.Fatal("expected an alert for high-band call")
	}
	if outcome.Assessment == nil || outcome.Assessment.Band != risk.BandHigh {
		t.Fatalf("assessment = %+v, want high band", outcome.Assessment)
	}
	if outcome.Report == nil || outcome.Report.Sent != 2 {
		t.Fatalf("report = %+v, want sent=2", outcome.Report)
	}
	if len(dispatcher.payloads) != 1 {
		t.Fatalf("dispatch calls = %d, want 1", len(dispatcher.payloads))
	}
	payload := dispatcher.payloads[0]
	if payload.CallID != "call-1" {
		t.Fatalf("payload call id = %q, want call-1", payload.CallID)
	}
	if payload.Title != "Suspected scam call" {
		t.Fatalf("title = %q", payload.Title)
	}
	if !strings.Contains(payload.Body, "+15551234567") {
		t.Fatalf("body = %q, want caller number", payload.Body)
	}
	if len(escalator.calls) != 1 || escalator.calls[0].band != "high" {
		t.Fatalf("escalations = %+v, want one high", escalator.calls)
	}
	if len(store.updated) != 1 {
		t.Fatalf("analysis updates = %d, want 1", len(store.updated))
	}
	updated := store.updated[0]
	if updated.Transcript != "I need your bank account now." {
		t.Fatalf("stored transcript = %q", updated.Transcript)
	}
	if updated.RiskBand != "high" || updated.RiskScore == nil {
		t.Fatalf("stored risk = %q %v", updated.RiskBand, updated.RiskScore)
	}
}

func TestHandleCallBlockedShortCircuits(t *testing.T) {
	t.Parallel()

	store := &fakeCallStore{}
	dispatcher := &fakeDispatcher{}
	transcriber := &fakeTranscriber{}
	detector := &fakeDetector{}

	proc := NewCallProcessor(testLogger(), testClassifier(), &fakeScreener{status: screening.StatusBlocked}, &fakeProfileSource{profile: testProfile()}, store).
		WithTranscriber(transcriber).
		WithDetector(detector).
		WithDispatcher(dispatcher)

	outcome, err := proc.HandleCall(context.Background(), CallEvent{
		ProfileID: "p1",
		Number:    "+15551234567",
		Recording: []byte("wav-bytes"),
	})
	if err != nil {
		t.Fatalf("HandleCall: %v", err)
	}
	if outcome.Status != screening.StatusBlocked {
		t.Fatalf("status = %q, want blocked", outcome.Status)
	}
	if outcome.Alerted || outcome.Assessment != nil {
		t.Fatalf("blocked call must not be analyzed or alerted: %+v", outcome)
	}
	if transcriber.calls != 0 || detector.calls != 0 || len(dispatcher.payloads) != 0 {
		t.Fatal("blocked call reached enrichment or dispatch")
	}
	if len(store.inserted) != 1 {
		t.Fatalf("calls recorded = %d, want 1", len(store.inserted))
	}
	if store.inserted[0].ScreeningStatus != screening.StatusBlocked {
		t.Fatalf("stored status = %q", store.inserted[0].ScreeningStatus)
	}
}

func TestHandleCallTrustedSkipsAnalysis(t *testing.T) {
	t.Parallel()

	store := &fakeCallStore{}
	detector := &fakeDetector{summary: scores(0.99)}
	dispatcher := &fakeDispatcher{}

	proc := NewCallProcessor(testLogger(), testClassifier(), &fakeScreener{status: screening.StatusTrusted}, &fakeProfileSource{profile: testProfile()}, store).
		WithDetector(detector).
		WithDispatcher(dispatcher)

	outcome, err := proc.HandleCall(context.Background(), CallEvent{
		ProfileID: "p1",
		Number:    "+15551234567",
		Recording: []byte("wav-bytes"),
	})
	if err != nil {
		t.Fatalf("HandleCall: %v", err)
	}
	if outcome.Status != screening.StatusTrusted {
		t.Fatalf("status = %q, want trusted", outcome.Status)
	}
	if detector.calls != 0 || len(dispatcher.payloads) != 0 {
		t.Fatal("trusted caller must skip analysis and alerting")
	}
}

func TestHandleCallBelowThresholdNoAlert(t *testing.T) {
	t.Parallel()

	store := &fakeCallStore{}
	dispatcher := &fakeDispatcher{}
	detector := &fakeDetector{summary: scores(0.2, 0.3)}

	proc := NewCallProcessor(testLogger(), testClassifier(), &fakeScreener{}, &fakeProfileSource{profile: testProfile()}, store).
		WithDetector(detector).
		WithDispatcher(dispatcher)

	outcome, err := proc.HandleCall(context.Background(), CallEvent{
		ProfileID: "p1",
		Number:    "+15551234567",
		Recording: []byte("wav-bytes"),
	})
	if err != nil {
		t.Fatalf("HandleCall: %v", err)
	}
	if outcome.Alerted || len(dispatcher.payloads) != 0 {
		t.Fatal("low-risk call must not alert")
	}
	if outcome.Assessment == nil || outcome.Assessment.Band != risk.BandNone {
		t.Fatalf("assessment = %+v, want none band", outcome.Assessment)
	}
}

func TestHandleCallSafePhraseSuppressesAlert(t *testing.T) {
	t.Parallel()

	profile := testProfile()
	profile.SafePhrases = []string{"sandpiper flies at dawn"}

	store := &fakeCallStore{}
	dispatcher := &fakeDispatcher{}
	detector := &fakeDetector{summary: scores(0.97, 0.98, 0.96)}
	transcriber := &fakeTranscriber{result: transcribe.Result{
		Text: "Grandma remember the Sandpiper flies at dawn password.",
	}}

	proc := NewCallProcessor(testLogger(), testClassifier(), &fakeScreener{}, &fakeProfileSource{profile: profile}, store).
		WithTranscriber(transcriber).
		WithDetector(detector).
		WithDispatcher(dispatcher)

	outcome, err := proc.HandleCall(context.Background(), CallEvent{
		ProfileID: "p1",
		Number:    "+15551234567",
		Recording: []byte("wav-bytes"),
	})
	if err != nil {
		t.Fatalf("HandleCall: %v", err)
	}
	if outcome.Alerted || len(dispatcher.payloads) != 0 {
		t.Fatal("safe phrase must keep the call below the alert threshold")
	}
	if outcome.Assessment.MatchedPhrase != "sandpiper flies at dawn" {
		t.Fatalf("matched phrase = %q", outcome.Assessment.MatchedPhrase)
	}
	if outcome.Assessment.Band != risk.BandCaution {
		t.Fatalf("band = %q, want caution after downgrade", outcome.Assessment.Band)
	}
}

func TestHandleCallEnrichmentFailuresDegrade(t *testing.T) {
	t.Parallel()

	profile := testProfile()

	store := &fakeCallStore{}
	dispatcher := &fakeDispatcher{}
	detector := &fakeDetector{err: errors.New("detector offline")}
	transcriber := &fakeTranscriber{err: errors.New("speech offline")}

	proc := NewCallProcessor(testLogger(), testClassifier(), &fakeScreener{}, &fakeProfileSource{profile: profile}, store).
		WithTranscriber(transcriber).
		WithDetector(detector).
		WithDispatcher(dispatcher)

	outcome, err := proc.HandleCall(context.Background(), CallEvent{
		ProfileID: "p1",
		Number:    "+15551234567",
		Recording: []byte("wav-bytes"),
	})
	if err != nil {
		t.Fatalf("HandleCall: %v", err)
	}
	if outcome.Assessment == nil {
		t.Fatal("expected an assessment despite enrichment failures")
	}
	if outcome.Assessment.Score != 0 || outcome.Assessment.Band != risk.BandNone {
		t.Fatalf("assessment = %+v, want zero score", outcome.Assessment)
	}
	if outcome.Alerted {
		t.Fatal("must not alert when no signal survived")
	}
}

func TestHandleCallUnparseableNumberSkipsLedger(t *testing.T) {
	t.Parallel()

	screener := &fakeScreener{}
	store := &fakeCallStore{}

	proc := NewCallProcessor(testLogger(), testClassifier(), screener, &fakeProfileSource{profile: testProfile()}, store)

	outcome, err := proc.HandleCall(context.Background(), CallEvent{
		ProfileID: "p1",
		Number:    "not a number",
	})
	if err != nil {
		t.Fatalf("HandleCall: %v", err)
	}
	if len(screener.asked) != 0 {
		t.Fatalf("ledger consulted with hashes %v, want none", screener.asked)
	}
	if outcome.Status != screening.StatusUnknown {
		t.Fatalf("status = %q, want unknown", outcome.Status)
	}
	if store.inserted[0].CallerHash != "" {
		t.Fatalf("stored hash = %q, want empty", store.inserted[0].CallerHash)
	}
}

func TestHandleCallHighRiskCountryBumpAlone(t *testing.T) {
	t.Parallel()

	store := &fakeCallStore{}
	dispatcher := &fakeDispatcher{}

	proc := NewCallProcessor(testLogger(), testClassifier(), &fakeScreener{}, &fakeProfileSource{profile: testProfile()}, store).
		WithDispatcher(dispatcher)

	outcome, err := proc.HandleCall(context.Background(), CallEvent{
		ProfileID: "p1",
		Number:    "+52155512345678",
	})
	if err != nil {
		t.Fatalf("HandleCall: %v", err)
	}
	if outcome.Call.CallerCountry != "MX" || !outcome.Call.HighRiskCountry {
		t.Fatalf("call = %+v, want MX high-risk", outcome.Call)
	}
	if outcome.Assessment.Score != 0.1 {
		t.Fatalf("score = %v, want 0.1 from country bump alone", outcome.Assessment.Score)
	}
	if outcome.Alerted {
		t.Fatal("country bump alone must stay below the threshold")
	}
}

func TestHandleCallInfrastructureFailures(t *testing.T) {
	t.Parallel()

	t.Run("profile load", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("profile db down")
		proc := NewCallProcessor(testLogger(), testClassifier(), &fakeScreener{}, &fakeProfileSource{err: boom}, &fakeCallStore{})
		if _, err := proc.HandleCall(context.Background(), CallEvent{ProfileID: "p1", Number: "+15551234567"}); !errors.Is(err, boom) {
			t.Fatalf("err = %v, want wrapped %v", err, boom)
		}
	})

	t.Run("ledger status", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("ledger down")
		proc := NewCallProcessor(testLogger(), testClassifier(), &fakeScreener{err: boom}, &fakeProfileSource{profile: testProfile()}, &fakeCallStore{})
		if _, err := proc.HandleCall(context.Background(), CallEvent{ProfileID: "p1", Number: "+15551234567"}); !errors.Is(err, boom) {
			t.Fatalf("err = %v, want wrapped %v", err, boom)
		}
	})

	t.Run("call insert", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("insert failed")
		proc := NewCallProcessor(testLogger(), testClassifier(), &fakeScreener{}, &fakeProfileSource{profile: testProfile()}, &fakeCallStore{insertErr: boom})
		if _, err := proc.HandleCall(context.Background(), CallEvent{ProfileID: "p1", Number: "+15551234567"}); !errors.Is(err, boom) {
			t.Fatalf("err = %v, want wrapped %v", err, boom)
		}
	})

	t.Run("dispatch", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("push infrastructure down")
		proc := NewCallProcessor(testLogger(), testClassifier(), &fakeScreener{}, &fakeProfileSource{profile: testProfile()}, &fakeCallStore{}).
			WithDetector(&fakeDetector{summary: scores(0.97, 0.98)}).
			WithDispatcher(&fakeDispatcher{err: boom})
		if _, err := proc.HandleCall(context.Background(), CallEvent{ProfileID: "p1", Number: "+15551234567", Recording: []byte("wav")}); !errors.Is(err, boom) {
			t.Fatalf("err = %v, want wrapped %v", err, boom)
		}
	})

	t.Run("blank profile id", func(t *testing.T) {
		t.Parallel()
		proc := NewCallProcessor(testLogger(), testClassifier(), &fakeScreener{}, &fakeProfileSource{profile: testProfile()}, &fakeCallStore{})
		if _, err := proc.HandleCall(context.Background(), CallEvent{Number: "+15551234567"}); err == nil {
			t.Fatal("expected error for blank profile id")
		}
	})
}

func TestHandleCallAnalysisUpdateFailureStillAlerts(t *testing.T) {
	t.Parallel()

	store := &fakeCallStore{updateErr: errors.New("update lost")}
	dispatcher := &fakeDispatcher{report: notify.Report{Sent: 1}}

	proc := NewCallProcessor(testLogger(), testClassifier(), &fakeScreener{}, &fakeProfileSource{profile: testProfile()}, store).
		WithDetector(&fakeDetector{summary: scores(0.97, 0.98)}).
		WithDispatcher(dispatcher)

	outcome, err := proc.HandleCall(context.Background(), CallEvent{
		ProfileID: "p1",
		Number:    "+15551234567",
		Recording: []byte("wav"),
	})
	if err != nil {
		t.Fatalf("HandleCall: %v", err)
	}
	if !outcome.Alerted || len(dispatcher.payloads) != 1 {
		t.Fatal("alert must still dispatch when the timeline update fails")
	}
}

func TestHandleCallEscalationFailureDoesNotFail(t *testing.T) {
	t.Parallel()

	store := &fakeCallStore{}
	dispatcher := &fakeDispatcher{report: notify.Report{Sent: 1}}
	escalator := &fakeEscalator{err: errors.New("telegram down")}

	proc := NewCallProcessor(testLogger(), testClassifier(), &fakeScreener{}, &fakeProfileSource{profile: testProfile()}, store).
		WithDetector(&fakeDetector{summary: scores(0.97, 0.98)}).
		WithDispatcher(dispatcher).
		WithEscalator(escalator)

	outcome, err := proc.HandleCall(context.Background(), CallEvent{
		ProfileID: "p1",
		Number:    "+15551234567",
		Recording: []byte("wav"),
	})
	if err != nil {
		t.Fatalf("HandleCall: %v", err)
	}
	if !outcome.Alerted {
		t.Fatal("push alert must survive escalation failure")
	}
	if len(escalator.calls) != 1 {
		t.Fatalf("escalation attempts = %d, want 1", len(escalator.calls))
	}
}

type fakeArchive struct {
	err    error
	stored [][]byte
}

func (f *fakeArchive) Store(_ context.Context, r io.Reader) (string, int64, error) {
	if f.err != nil {
		return "", 0, f.err
	}
	data, _ := io.ReadAll(r)
	f.stored = append(f.stored, data)
	return fmt.Sprintf("hash-%d", len(f.stored)), int64(len(data)), nil
}

func TestHandleCallArchivesRecording(t *testing.T) {
	t.Parallel()

	store := &fakeCallStore{}
	archive := &fakeArchive{}

	proc := NewCallProcessor(testLogger(), testClassifier(), &fakeScreener{}, &fakeProfileSource{profile: testProfile()}, store).
		WithArchive(archive)

	if _, err := proc.HandleCall(context.Background(), CallEvent{
		ProfileID: "p1",
		Number:    "+15551234567",
		Recording: []byte("RIFF audio"),
	}); err != nil {
		t.Fatalf("HandleCall: %v", err)
	}
	if len(archive.stored) != 1 || string(archive.stored[0]) != "RIFF audio" {
		t.Fatalf("archive stored %d payloads", len(archive.stored))
	}
	if store.inserted[0].RecordingHash != "hash-1" {
		t.Fatalf("recording hash = %q, want hash-1", store.inserted[0].RecordingHash)
	}
}

func TestHandleCallArchiveFailureTolerated(t *testing.T) {
	t.Parallel()

	store := &fakeCallStore{}
	archive := &fakeArchive{err: errors.New("disk full")}

	proc := NewCallProcessor(testLogger(), testClassifier(), &fakeScreener{}, &fakeProfileSource{profile: testProfile()}, store).
		WithArchive(archive)

	if _, err := proc.HandleCall(context.Background(), CallEvent{
		ProfileID: "p1",
		Number:    "+15551234567",
		Recording: []byte("RIFF audio"),
	}); err != nil {
		t.Fatalf("HandleCall: %v", err)
	}
	if store.inserted[0].RecordingHash != "" {
		t.Fatalf("recording hash = %q, want empty on archive failure", store.inserted[0].RecordingHash)
	}
}
