package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alkime/dictate/pkg/channels"
)

const (
	inboxSize              = 64
	defaultElapsedInterval = 100 * time.Millisecond
)

// ErrStopped is returned by inbound signals once the orchestrator has shut down.
var ErrStopped = errors.New("orchestrator stopped")

// Dependencies are the collaborators a cycle calls out to. Indicator and
// Notifier may be nil.
type Dependencies struct {
	Transcriber Transcriber
	Rules       RuleApplier
	AI          AIInvoker
	Paster      Paster
	Persister   Persister
	Indicator   Indicator
	Notifier    Notifier
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithEvents sets the channel that receives state, level and elapsed events.
// Sends never block; events are dropped when the channel is full.
func WithEvents(events chan<- Event) Option {
	return func(o *Orchestrator) { o.events = events }
}

// WithElapsedInterval sets how often elapsed events fire while recording.
func WithElapsedInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.elapsedInterval = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// cycle is the loop-owned state of one recording cycle.
type cycle struct {
	generation uint64
	settings   Settings
	state      State
	startedAt  time.Time
	session    string
	durationMs int64
	raw        string
}

type (
	willStartMsg      struct{}
	captureStartedMsg struct{}
	captureStoppedMsg struct{ result CaptureResult }
	rawLevelMsg       struct{ level float64 }

	transcribedMsg struct {
		cycle *cycle
		tx    Transcription
		err   error
	}
	transformedMsg struct {
		cycle *cycle
		out   Transform
		err   error
	}
	deliveredMsg struct {
		cycle  *cycle
		text   string
		pasted bool
		err    error
	}
)

// Orchestrator drives recording cycles from capture to paste. A single
// goroutine (Run) owns every cycle and handles signals strictly in the order
// they were received. Work that outlives a cycle's currency, such as a slow
// transcription, keeps running and reports back through the same inbox.
type Orchestrator struct {
	deps     Dependencies
	runner   *TransformRunner
	tracker  *GenerationTracker
	settings func() Settings

	events          chan<- Event
	logger          *slog.Logger
	now             func() time.Time
	elapsedInterval time.Duration

	inbox chan any
	done  chan struct{}
	once  sync.Once
	tails sync.WaitGroup

	// Owned by Run.
	smoother LevelSmoother
	current  *cycle
	ticker   *time.Ticker
}

// New builds an orchestrator. settings is called once per cycle, when the
// cycle begins, and its result is used for the whole cycle.
func New(deps Dependencies, settings func() Settings, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		deps:            deps,
		runner:          NewTransformRunner(deps.Rules, deps.AI),
		tracker:         NewGenerationTracker(),
		settings:        settings,
		logger:          slog.Default(),
		now:             time.Now,
		elapsedInterval: defaultElapsedInterval,
		inbox:           make(chan any, inboxSize),
		done:            make(chan struct{}),
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.settings == nil {
		o.settings = func() Settings { return Settings{} }
	}

	return o
}

// Run processes signals until ctx is cancelled. It must be called exactly
// once. Completions that arrive after Run returns are dropped.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.once.Do(func() { close(o.done) })
	defer o.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-o.inbox:
			o.handle(ctx, msg)
		case <-o.tick():
			o.emitElapsed()
		}
	}
}

// Wait blocks until every detached tail (transcription, AI, paste,
// persistence) has returned.
func (o *Orchestrator) Wait() {
	o.tails.Wait()
}

// CurrentGeneration returns the generation of the live cycle.
func (o *Orchestrator) CurrentGeneration() uint64 {
	return o.tracker.Current()
}

// WillStart announces that capture is about to start. Call it before the
// capture device is opened.
func (o *Orchestrator) WillStart() error {
	return o.post(willStartMsg{})
}

// CaptureStarted confirms that audio is flowing.
func (o *Orchestrator) CaptureStarted() error {
	return o.post(captureStartedMsg{})
}

// CaptureStopped hands over the finished capture.
func (o *Orchestrator) CaptureStopped(result CaptureResult) error {
	return o.post(captureStoppedMsg{result: result})
}

// RawLevel feeds one instantaneous level sample. Samples are dropped rather
// than block the caller, which is usually an audio callback.
func (o *Orchestrator) RawLevel(level float64) {
	if err := channels.SendNonBlock[any](o.inbox, rawLevelMsg{level: level}); err != nil {
		o.logger.Debug("Dropped level sample", "error", err)
	}
}

func (o *Orchestrator) post(msg any) error {
	select {
	case o.inbox <- msg:
		return nil
	case <-o.done:
		return ErrStopped
	}
}

func (o *Orchestrator) handle(ctx context.Context, msg any) {
	switch msg := msg.(type) {
	case willStartMsg:
		o.onWillStart()
	case captureStartedMsg:
		o.onCaptureStarted()
	case captureStoppedMsg:
		o.onCaptureStopped(ctx, msg.result)
	case rawLevelMsg:
		o.emit(Event{
			Kind:       EventLevel,
			Generation: o.tracker.Current(),
			Level:      o.smoother.Update(msg.level),
		})
	case transcribedMsg:
		o.onTranscribed(ctx, msg)
	case transformedMsg:
		o.onTransformed(ctx, msg)
	case deliveredMsg:
		o.onDelivered(msg)
	default:
		o.logger.Warn("Unknown orchestrator message", "type", fmt.Sprintf("%T", msg))
	}
}

func (o *Orchestrator) onWillStart() {
	gen := o.tracker.Begin()
	o.stopTimer()
	o.smoother.Reset()

	o.current = &cycle{
		generation: gen,
		settings:   o.settings(),
		state:      StateWillStart,
	}

	o.logger.Info("Cycle started", "generation", gen)
	o.setIndicator(true)
	o.emitState(o.current, "", "")
}

func (o *Orchestrator) onCaptureStarted() {
	c := o.current
	if c == nil || c.state != StateWillStart {
		o.logger.Debug("Ignoring capture-started", "state", o.currentState())
		return
	}

	c.state = StateRecording
	c.startedAt = o.now()
	o.ticker = time.NewTicker(o.elapsedInterval)

	o.logger.Debug("Recording", "generation", c.generation)
	o.emitState(c, "", "")
}

func (o *Orchestrator) onCaptureStopped(ctx context.Context, result CaptureResult) {
	o.stopTimer()

	c := o.current
	if c == nil || (c.state != StateWillStart && c.state != StateRecording) {
		o.logger.Debug("Ignoring capture-stopped", "state", o.currentState())
		return
	}

	if result.SessionHandle == "" {
		c.state = StateIdle
		o.logger.Info("Cycle aborted", "generation", c.generation, "reason", ErrCaptureAborted)
		if o.tracker.IsCurrent(c.generation) {
			o.setIndicator(false)
			o.emitState(c, "", "")
		}
		return
	}

	c.session = result.SessionHandle
	c.durationMs = result.DurationMs
	if c.durationMs <= 0 && !c.startedAt.IsZero() {
		c.durationMs = o.now().Sub(c.startedAt).Milliseconds()
	}

	c.state = StateTranscribing
	o.logger.Info("Transcribing",
		"generation", c.generation,
		"session", c.session,
		"durationMs", c.durationMs,
		"samples", result.SampleCount)
	o.emitState(c, "", "")

	req := TranscribeRequest{
		SessionHandle: c.session,
		ModelID:       c.settings.ModelID,
		Language:      c.settings.Language,
		Credential:    c.settings.STTCredential,
	}

	o.spawn(func() {
		tx, err := o.deps.Transcriber.Transcribe(ctx, req)
		o.reply(transcribedMsg{cycle: c, tx: tx, err: err})
	})
}

func (o *Orchestrator) onTranscribed(ctx context.Context, msg transcribedMsg) {
	c := msg.cycle

	if msg.err != nil {
		serr := stageError(c.generation, ErrTranscription, msg.err)
		o.logger.Error("Transcription failed", "generation", c.generation, "error", msg.err)
		o.notify(serr)
		o.finish(c, "", serr)
		return
	}

	c.raw = msg.tx.Text
	if msg.tx.Language != "" && c.settings.Language == "" {
		c.settings.Language = msg.tx.Language
	}

	if IsHallucination(c.raw) {
		o.logger.Info("Discarding hallucinated transcript", "generation", c.generation, "text", c.raw)
		o.persist(ctx, c, "")
		o.finish(c, "", nil)
		return
	}

	if !o.runner.AIUsable(c.settings.AI) {
		out, _ := o.runner.Run(ctx, c.raw, c.settings.Rules, nil)
		o.deliver(ctx, c, out.Text)
		return
	}

	c.state = StateAIProcessing
	o.emitState(c, "", "")

	raw, ruleIDs, inv := c.raw, c.settings.Rules, *c.settings.AI
	o.spawn(func() {
		out, err := o.runner.Run(ctx, raw, ruleIDs, &inv)
		o.reply(transformedMsg{cycle: c, out: out, err: err})
	})
}

func (o *Orchestrator) onTransformed(ctx context.Context, msg transformedMsg) {
	c := msg.cycle
	text := msg.out.Text

	if msg.err != nil {
		o.logger.Warn("AI function failed, using rules output", "generation", c.generation, "error", msg.err)
		o.notify(stageError(c.generation, ErrAITransform, msg.err))
		text = msg.out.PreAIText
	}

	o.deliver(ctx, c, text)
}

// deliver pastes (when still current) and then persists. Persistence runs
// for every cycle and is not awaited by the cycle's completion.
func (o *Orchestrator) deliver(ctx context.Context, c *cycle, text string) {
	gen := c.generation
	rec := o.record(c, text)

	o.spawn(func() {
		var (
			pasted bool
			err    error
		)
		if text != "" && o.tracker.IsCurrent(gen) {
			pasted = true
			err = o.deps.Paster.Paste(ctx, text)
		}
		o.reply(deliveredMsg{cycle: c, text: text, pasted: pasted, err: err})

		o.store(ctx, rec, gen)
	})
}

func (o *Orchestrator) onDelivered(msg deliveredMsg) {
	c := msg.cycle

	var err error
	if msg.err != nil {
		serr := stageError(c.generation, ErrPaste, msg.err)
		o.logger.Warn("Paste failed", "generation", c.generation, "error", msg.err)
		o.notify(serr)
		err = serr
	} else if !msg.pasted {
		o.logger.Debug("Paste skipped", "generation", c.generation, "current", o.tracker.IsCurrent(c.generation))
	}

	o.finish(c, msg.text, err)
}

// finish marks the cycle complete. Hiding the indicator and broadcasting
// completion only happen for the live cycle.
func (o *Orchestrator) finish(c *cycle, text string, err error) {
	c.state = StateComplete

	if !o.tracker.IsCurrent(c.generation) {
		o.logger.Debug("Suppressed cleanup for superseded cycle",
			"generation", c.generation,
			"current", o.tracker.Current())
		return
	}

	var errText string
	if err != nil {
		errText = err.Error()
	}

	o.logger.Info("Cycle complete", "generation", c.generation, "chars", len(text))
	o.setIndicator(false)
	o.emitState(c, text, errText)
}

func (o *Orchestrator) persist(ctx context.Context, c *cycle, final string) {
	rec := o.record(c, final)
	gen := c.generation
	o.spawn(func() { o.store(ctx, rec, gen) })
}

func (o *Orchestrator) record(c *cycle, final string) HistoryRecord {
	rec := HistoryRecord{
		SessionHandle: c.session,
		RawTranscript: c.raw,
		FinalText:     final,
		ModelID:       c.settings.ModelID,
		Language:      c.settings.Language,
		DurationMs:    c.durationMs,
	}
	if c.settings.AI != nil {
		rec.AIFunctionID = c.settings.AI.FunctionID
	}

	return rec
}

// store writes a history record. It runs off the loop and only touches the
// Persister and the Notifier, both of which are safe for concurrent use.
// Shutdown does not cancel the write.
func (o *Orchestrator) store(ctx context.Context, rec HistoryRecord, gen uint64) {
	if o.deps.Persister == nil {
		return
	}

	if err := o.deps.Persister.Persist(context.WithoutCancel(ctx), rec); err != nil {
		o.logger.Warn("Persisting history failed", "generation", gen, "error", err)
		o.notify(stageError(gen, ErrPersistence, err))
		return
	}

	o.logger.Debug("History saved", "generation", gen, "session", rec.SessionHandle)
}

func (o *Orchestrator) spawn(fn func()) {
	o.tails.Add(1)
	go func() {
		defer o.tails.Done()
		fn()
	}()
}

// reply posts an internal completion back to the loop.
func (o *Orchestrator) reply(msg any) {
	if err := o.post(msg); err != nil {
		o.logger.Debug("Dropped completion after shutdown", "type", fmt.Sprintf("%T", msg))
	}
}

func (o *Orchestrator) notify(serr *StageError) {
	if o.deps.Notifier == nil {
		return
	}
	o.deps.Notifier.Notify(notificationFor(serr))
}

func (o *Orchestrator) setIndicator(visible bool) {
	if o.deps.Indicator != nil {
		o.deps.Indicator.SetIndicatorVisible(visible)
	}
}

// emitState broadcasts the cycle's state if the cycle is still live.
func (o *Orchestrator) emitState(c *cycle, text, errText string) {
	if !o.tracker.IsCurrent(c.generation) {
		return
	}

	o.emit(Event{
		Kind:       stateEventKind(c.state),
		Generation: c.generation,
		State:      c.state,
		Text:       text,
		Err:        errText,
	})
}

func (o *Orchestrator) emitElapsed() {
	c := o.current
	if c == nil || c.state != StateRecording {
		return
	}

	o.emit(Event{
		Kind:       EventElapsed,
		Generation: c.generation,
		Elapsed:    o.now().Sub(c.startedAt),
	})
}

func (o *Orchestrator) emit(ev Event) {
	if o.events == nil {
		return
	}
	if err := channels.SendNonBlock(o.events, ev); err != nil {
		o.logger.Debug("Dropped event", "kind", ev.Kind, "error", err)
	}
}

func (o *Orchestrator) tick() <-chan time.Time {
	if o.ticker == nil {
		return nil
	}
	return o.ticker.C
}

func (o *Orchestrator) stopTimer() {
	if o.ticker != nil {
		o.ticker.Stop()
		o.ticker = nil
	}
}

func (o *Orchestrator) currentState() State {
	if o.current == nil {
		return StateIdle
	}
	return o.current.state
}
