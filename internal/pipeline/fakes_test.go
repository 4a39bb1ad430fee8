package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alkime/dictate/internal/pipeline"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

// fakeTranscriber returns canned transcripts per session. Sessions listed in
// gates block until their gate is closed.
type fakeTranscriber struct {
	mu      sync.Mutex
	results map[string]pipeline.Transcription
	errs    map[string]error
	gates   map[string]chan struct{}
	calls   []pipeline.TranscribeRequest
}

func newFakeTranscriber() *fakeTranscriber {
	return &fakeTranscriber{
		results: map[string]pipeline.Transcription{},
		errs:    map[string]error{},
		gates:   map[string]chan struct{}{},
	}
}

func (f *fakeTranscriber) returns(session, text string) *fakeTranscriber {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[session] = pipeline.Transcription{Text: text, Language: "en"}
	return f
}

func (f *fakeTranscriber) fails(session string, err error) *fakeTranscriber {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[session] = err
	return f
}

func (f *fakeTranscriber) gate(session string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := make(chan struct{})
	f.gates[session] = g
	return g
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, req pipeline.TranscribeRequest) (pipeline.Transcription, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	gate := f.gates[req.SessionHandle]
	res, err := f.results[req.SessionHandle], f.errs[req.SessionHandle]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return pipeline.Transcription{}, ctx.Err()
		}
	}

	return res, err
}

func (f *fakeTranscriber) requests() []pipeline.TranscribeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pipeline.TranscribeRequest(nil), f.calls...)
}

// upperRules uppercases text for rule "upper" and appends "!" for "bang".
type upperRules struct{}

func (upperRules) Apply(text string, ids []string) string {
	for _, id := range ids {
		switch id {
		case "upper":
			text = strings.ToUpper(text)
		case "bang":
			text += "!"
		}
	}
	return text
}

type fakeAI struct {
	mu    sync.Mutex
	out   string
	err   error
	calls []string
}

func (f *fakeAI) Invoke(_ context.Context, text string, _ pipeline.AIInvocation) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

func (f *fakeAI) RequiresCredential(provider string) bool {
	return provider != "ollama"
}

func (f *fakeAI) invocations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakePaster struct {
	mu    sync.Mutex
	err   error
	texts []string
}

func (f *fakePaster) Paste(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.err
}

func (f *fakePaster) pasted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakePersister struct {
	mu      sync.Mutex
	err     error
	records []pipeline.HistoryRecord
}

func (f *fakePersister) Persist(_ context.Context, rec pipeline.HistoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return f.err
}

func (f *fakePersister) saved() []pipeline.HistoryRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pipeline.HistoryRecord(nil), f.records...)
}

type fakeIndicator struct {
	mu      sync.Mutex
	history []bool
}

func (f *fakeIndicator) SetIndicatorVisible(visible bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, visible)
}

func (f *fakeIndicator) calls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.history...)
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []pipeline.Notification
}

func (f *fakeNotifier) Notify(n pipeline.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, n)
}

func (f *fakeNotifier) all() []pipeline.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pipeline.Notification(nil), f.notes...)
}

var errNetwork = errors.New("connection reset by peer")

// harness wires fakes into a running orchestrator.
type harness struct {
	orch        *pipeline.Orchestrator
	events      chan pipeline.Event
	transcriber *fakeTranscriber
	ai          *fakeAI
	paster      *fakePaster
	persister   *fakePersister
	indicator   *fakeIndicator
	notifier    *fakeNotifier
}

func newHarness(t *testing.T, rules pipeline.RuleApplier, settings func() pipeline.Settings) *harness {
	t.Helper()

	h := &harness{
		events:      make(chan pipeline.Event, 512),
		transcriber: newFakeTranscriber(),
		ai:          &fakeAI{out: "AI TEXT"},
		paster:      &fakePaster{},
		persister:   &fakePersister{},
		indicator:   &fakeIndicator{},
		notifier:    &fakeNotifier{},
	}

	h.orch = pipeline.New(pipeline.Dependencies{
		Transcriber: h.transcriber,
		Rules:       rules,
		AI:          h.ai,
		Paster:      h.paster,
		Persister:   h.persister,
		Indicator:   h.indicator,
		Notifier:    h.notifier,
	}, settings,
		pipeline.WithEvents(h.events),
		pipeline.WithLogger(slog.New(slog.DiscardHandler)),
		pipeline.WithElapsedInterval(5*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.orch.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		h.orch.Wait()
	})

	return h
}

// record runs one capture for session and leaves the cycle transcribing.
func (h *harness) record(t *testing.T, session string) {
	t.Helper()
	require.NoError(t, h.orch.WillStart())
	require.NoError(t, h.orch.CaptureStarted())
	require.NoError(t, h.orch.CaptureStopped(pipeline.CaptureResult{
		SessionHandle: session,
		DurationMs:    1500,
		SampleCount:   24000,
	}))
}

// waitState reads events until a state event for gen matching want arrives.
func (h *harness) waitState(t *testing.T, gen uint64, want pipeline.State) pipeline.Event {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case ev := <-h.events:
			if ev.IsStateChange() && ev.Generation == gen && ev.State == want {
				return ev
			}
		case <-deadline:
			require.FailNow(t, "timed out waiting for state", "generation %d state %s", gen, want)
		}
	}
}

// waitSaved blocks until n history records were persisted.
func (h *harness) waitSaved(t *testing.T, n int) []pipeline.HistoryRecord {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(h.persister.saved()) >= n
	}, waitTimeout, 5*time.Millisecond)
	return h.persister.saved()
}

func fixedSettings(s pipeline.Settings) func() pipeline.Settings {
	return func() pipeline.Settings { return s }
}
