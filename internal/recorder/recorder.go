// Package recorder turns the push-to-talk toggle into capture calls and the
// matching orchestrator signals.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alkime/dictate/internal/pipeline"
)

// Capture is the audio side of a cycle.
type Capture interface {
	Start(ctx context.Context) (string, error)
	Stop(ctx context.Context) (pipeline.CaptureResult, error)
	IsRecording() bool
}

// Signals is the orchestrator side of a cycle.
type Signals interface {
	WillStart() error
	CaptureStarted() error
	CaptureStopped(result pipeline.CaptureResult) error
	CurrentGeneration() uint64
}

// Controller implements uictl.Knob. On starts a cycle, Off ends it.
type Controller struct {
	ctx      context.Context
	capture  Capture
	signals  Signals
	notifier pipeline.Notifier
	logger   *slog.Logger

	mu sync.Mutex
}

// Option customises a Controller.
type Option func(*Controller)

// WithNotifier reports capture failures to the user.
func WithNotifier(n pipeline.Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// New returns a Controller whose capture calls run under ctx.
func New(ctx context.Context, capture Capture, signals Signals, opts ...Option) *Controller {
	c := &Controller{
		ctx:     ctx,
		capture: capture,
		signals: signals,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Read reports whether a capture is in progress.
func (c *Controller) Read() bool {
	return c.capture.IsRecording()
}

// On starts a cycle unless one is already recording.
func (c *Controller) On() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.on()
}

// Off ends the recording cycle, if any.
func (c *Controller) Off() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.off()
}

// Toggle flips between On and Off.
func (c *Controller) Toggle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture.IsRecording() {
		c.off()
		return
	}
	c.on()
}

func (c *Controller) on() {
	if c.capture.IsRecording() {
		return
	}

	if err := c.signals.WillStart(); err != nil {
		c.logger.Warn("Orchestrator rejected will-start", "error", err)
		return
	}

	if _, err := c.capture.Start(c.ctx); err != nil {
		c.logger.Error("Failed to start capture", "error", err)
		c.notify(err)
		// An empty result aborts the cycle that WillStart opened.
		c.signal(c.signals.CaptureStopped(pipeline.CaptureResult{}))
		return
	}

	c.signal(c.signals.CaptureStarted())
}

func (c *Controller) off() {
	if !c.capture.IsRecording() {
		return
	}

	res, err := c.capture.Stop(c.ctx)
	if err != nil {
		c.logger.Warn("Capture stopped with errors", "error", err)
	}

	c.signal(c.signals.CaptureStopped(res))
}

func (c *Controller) signal(err error) {
	if err != nil {
		c.logger.Warn("Failed to signal orchestrator", "error", err)
	}
}

func (c *Controller) notify(err error) {
	if c.notifier == nil {
		return
	}

	c.notifier.Notify(pipeline.Notification{
		Generation: c.signals.CurrentGeneration(),
		Severity:   pipeline.SeverityError,
		Err:        fmt.Errorf("capture: %w", err),
		Message:    "Could not start recording: " + err.Error(),
	})
}
