package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/alkime/dictate/internal/pipeline"
	"github.com/alkime/dictate/pkg/channels"
)

// Errors returned by Capturer.
var (
	ErrNotOpen          = errors.New("capturer is not open")
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
)

const (
	defaultLevelInterval = 50 * time.Millisecond
	dataBuffer           = 256
	encoderBuffer        = 256
	// ringCapacity holds one second of audio at the default rate.
	ringCapacity = DefaultSampleRate
)

// LevelFunc receives raw meter readings in [0,1] while recording.
type LevelFunc func(level float64)

// Capturer turns device audio into archived sessions, one per Start/Stop.
// The device is allocated once by Open and reused for every session.
type Capturer struct {
	dev           Device
	store         *SessionStore
	encConf       EncoderConfig
	logger        *slog.Logger
	onLevel       LevelFunc
	levelInterval time.Duration

	dataC   chan Packet
	detachC chan chan struct{}
	ring    *SampleRing

	runCtx    context.Context
	cancelRun context.CancelFunc
	pump      sync.WaitGroup

	mu   sync.Mutex
	sess *activeSession
}

type activeSession struct {
	id, path  string
	file      *os.File
	encC      chan Packet
	enc       *StreamingEncoder
	energy    rmsAccumulator
	startedAt time.Time
	stopping  bool

	stopLevels context.CancelFunc
	levels     sync.WaitGroup
}

// CaptureOption customises a Capturer.
type CaptureOption func(*Capturer)

// WithLevelFunc registers the level callback.
func WithLevelFunc(f LevelFunc) CaptureOption {
	return func(c *Capturer) { c.onLevel = f }
}

// WithLevelInterval changes how often levels are reported.
func WithLevelInterval(d time.Duration) CaptureOption {
	return func(c *Capturer) {
		if d > 0 {
			c.levelInterval = d
		}
	}
}

// WithCaptureLogger sets the logger.
func WithCaptureLogger(logger *slog.Logger) CaptureOption {
	return func(c *Capturer) { c.logger = logger }
}

// WithEncoderConfig overrides the MP3 encoder settings.
func WithEncoderConfig(conf EncoderConfig) CaptureOption {
	return func(c *Capturer) { c.encConf = conf.WithDefaults() }
}

// NewCapturer wires a device to a session store.
func NewCapturer(dev Device, store *SessionStore, opts ...CaptureOption) *Capturer {
	c := &Capturer{
		dev:           dev,
		store:         store,
		encConf:       EncoderConfig{}.WithDefaults(),
		logger:        slog.Default(),
		onLevel:       func(float64) {},
		levelInterval: defaultLevelInterval,
		dataC:         make(chan Packet, dataBuffer),
		detachC:       make(chan chan struct{}),
		ring:          NewSampleRing(ringCapacity),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open allocates the device and starts routing its packets. Close releases
// it.
func (c *Capturer) Open(ctx context.Context) error {
	if c.runCtx != nil {
		return errors.New("capturer already open")
	}

	if err := c.dev.CaptureInto(ctx, c.dataC); err != nil {
		return fmt.Errorf("failed to allocate capture device: %w", err)
	}

	c.runCtx, c.cancelRun = context.WithCancel(context.WithoutCancel(ctx))
	c.pump.Go(func() { c.route(c.runCtx) })

	return nil
}

// Close stops any session in progress and frees the device.
func (c *Capturer) Close(ctx context.Context) {
	if c.runCtx == nil {
		return
	}

	if c.IsRecording() {
		if _, err := c.Stop(ctx); err != nil {
			c.logger.Warn("Failed to stop capture on close", "error", err)
		}
	}

	c.dev.Dealloc(ctx)
	c.cancelRun()
	c.pump.Wait()
}

// IsRecording reports whether a session is in progress.
func (c *Capturer) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sess != nil && !c.sess.stopping
}

// Start begins a new session and returns its handle.
func (c *Capturer) Start(ctx context.Context) (string, error) {
	if c.runCtx == nil {
		return "", ErrNotOpen
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != nil {
		return "", ErrAlreadyRecording
	}

	id, path := c.store.NewPath()
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create session file: %w", err)
	}

	encC := make(chan Packet, encoderBuffer)
	enc, err := NewStreamingEncoder(c.encConf, encC, f, c.logger)
	if err == nil {
		err = enc.Start(c.runCtx)
	}
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}

	c.ring.Reset()

	if err := c.dev.Start(ctx); err != nil {
		close(encC)
		_ = enc.Wait()
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to start capture: %w", err)
	}

	sess := &activeSession{
		id:        id,
		path:      path,
		file:      f,
		encC:      encC,
		enc:       enc,
		startedAt: time.Now(),
	}

	levelCtx, stop := context.WithCancel(c.runCtx)
	sess.stopLevels = stop
	sess.levels.Go(func() { c.reportLevels(levelCtx) })

	c.sess = sess
	c.logger.Info("Capture started", "session", id)

	return id, nil
}

// Stop ends the session and archives it. A session that captured no samples
// is discarded and reported with an empty handle.
func (c *Capturer) Stop(ctx context.Context) (pipeline.CaptureResult, error) {
	c.mu.Lock()
	sess := c.sess
	if sess == nil || sess.stopping {
		c.mu.Unlock()
		return pipeline.CaptureResult{}, ErrNotRecording
	}
	sess.stopping = true
	c.mu.Unlock()

	sess.stopLevels()
	sess.levels.Wait()

	var errs []error
	if err := c.dev.Stop(ctx); err != nil {
		errs = append(errs, err)
	}

	c.detach()

	close(sess.encC)
	if err := sess.enc.Wait(); err != nil {
		errs = append(errs, err)
	}
	if err := sess.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close session file: %w", err))
	}

	samples := sess.enc.SampleCount()
	if samples == 0 {
		if err := os.Remove(sess.path); err != nil {
			c.logger.Debug("Failed to remove empty session", "path", sess.path, "error", err)
		}
		c.logger.Info("Capture produced no audio", "session", sess.id)
		return pipeline.CaptureResult{}, errors.Join(errs...)
	}

	rate := int64(c.encConf.SampleRate)
	res := pipeline.CaptureResult{
		SessionHandle: sess.id,
		DurationMs:    samples * 1000 / rate,
		SampleCount:   samples,
	}

	c.store.Register(Session{
		ID:          sess.id,
		Path:        sess.path,
		DurationMs:  res.DurationMs,
		SampleCount: samples,
		RMS:         sess.energy.value(),
		Measured:    true,
	})

	c.logger.Info("Capture stopped",
		"session", sess.id,
		"durationMs", res.DurationMs,
		"wallMs", time.Since(sess.startedAt).Milliseconds())

	return res, errors.Join(errs...)
}

// detach hands the session back from the router once every packet the
// device already delivered has been forwarded.
func (c *Capturer) detach() {
	done := make(chan struct{})
	select {
	case c.detachC <- done:
		<-done
	case <-c.runCtx.Done():
		c.mu.Lock()
		c.sess = nil
		c.mu.Unlock()
	}
}

// route runs for the lifetime of the device, feeding the level ring and the
// active session's encoder.
func (c *Capturer) route(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case pkt := <-c.dataC:
			c.forward(pkt)
		case done := <-c.detachC:
			c.drain()
			c.mu.Lock()
			c.sess = nil
			c.mu.Unlock()
			close(done)
		}
	}
}

func (c *Capturer) drain() {
	for {
		select {
		case pkt := <-c.dataC:
			c.forward(pkt)
		default:
			return
		}
	}
}

func (c *Capturer) forward(pkt Packet) {
	samples := BytesToInt16(pkt)
	c.ring.Write(samples)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil {
		return
	}

	c.sess.energy.add(samples)
	if err := channels.SendNonBlock(c.sess.encC, pkt); err != nil {
		c.logger.Warn("Encoder backlog, dropping audio", "session", c.sess.id)
	}
}

func (c *Capturer) reportLevels(ctx context.Context) {
	ticker := time.NewTicker(c.levelInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.ring.Len() == 0 {
				continue
			}
			c.onLevel(Level(c.ring.Latest(LevelWindow)))
		}
	}
}
