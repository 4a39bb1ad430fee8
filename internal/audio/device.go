// Package audio captures microphone input into per-cycle sessions.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/alkime/dictate/pkg/channels"
	"github.com/alkime/dictate/pkg/collections"
	"github.com/gen2brain/malgo"
)

// Capture defaults: what the speech engines expect.
const (
	DefaultSampleRate = 16_000
	DefaultChannels   = 1
)

// ErrNotAllocated is returned when the device is used before CaptureInto.
var ErrNotAllocated = errors.New("audio device not allocated")

// Packet is a chunk of S16LE PCM bytes delivered by the device.
type Packet = []byte

// DeviceConfig selects the capture format.
type DeviceConfig struct {
	Format     malgo.FormatType
	Channels   int
	SampleRate int
}

// DefaultDeviceConfig is signed 16 bit mono at 16 kHz.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		Format:     malgo.FormatS16,
		Channels:   DefaultChannels,
		SampleRate: DefaultSampleRate,
	}
}

// Info describes a capture device.
type Info struct {
	Name      string   `json:"name"`
	IsDefault bool     `json:"isDefault"`
	Formats   []string `json:"formats"`
}

// Device is a microphone that can be started and stopped many times once
// allocated.
type Device interface {
	// EnumerateDevices lists capture devices. It does not need CaptureInto.
	EnumerateDevices(ctx context.Context) ([]Info, error)

	// CaptureInto allocates the device. Once started, packets are delivered
	// to dataC; packets are dropped when dataC is full.
	CaptureInto(ctx context.Context, dataC chan<- Packet) error

	Start(ctx context.Context) error
	// Stop is a no-op when the device was never allocated.
	Stop(ctx context.Context) error
	IsStarted() bool

	// Dealloc frees the device. It is safe to call more than once.
	Dealloc(ctx context.Context)
}

type device struct {
	conf DeviceConfig

	mu       sync.Mutex
	mgCtx    *malgo.AllocatedContext
	mgDevice *malgo.Device
	dropped  atomic.Int64
}

// NewDevice returns a malgo backed Device.
func NewDevice(conf DeviceConfig) Device {
	return &device{conf: conf}
}

func (d *device) EnumerateDevices(_ context.Context) ([]Info, error) {
	devCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer freeContext(devCtx)

	captureDevices, err := devCtx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to get capture devices: %w", err)
	}

	return collections.Apply(captureDevices, toInfo), nil
}

func (d *device) CaptureInto(_ context.Context, dataC chan<- Packet) error {
	if dataC == nil {
		return errors.New("data channel is nil")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mgDevice != nil {
		return errors.New("audio device already allocated")
	}

	mgCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = d.conf.Format
	cfg.Capture.Channels = uint32(d.conf.Channels)
	cfg.SampleRate = uint32(d.conf.SampleRate)

	callbacks := malgo.DeviceCallbacks{
		// samples points into a buffer malgo reuses; copy before handing off.
		Data: func(_, samples []byte, _ uint32) {
			pkt := make(Packet, len(samples))
			copy(pkt, samples)
			if channels.SendNonBlock(dataC, pkt) != nil {
				d.dropped.Add(1)
			}
		},
	}

	mgDevice, err := malgo.InitDevice(mgCtx.Context, cfg, callbacks)
	if err != nil {
		freeContext(mgCtx)
		return fmt.Errorf("failed to initialize malgo device: %w", err)
	}

	d.mgCtx, d.mgDevice = mgCtx, mgDevice

	return nil
}

func (d *device) Start(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mgDevice == nil {
		return ErrNotAllocated
	}
	if d.mgDevice.IsStarted() {
		return nil
	}

	if err := d.mgDevice.Start(); err != nil {
		return fmt.Errorf("failed to start malgo device: %w", err)
	}

	return nil
}

func (d *device) Stop(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mgDevice == nil || !d.mgDevice.IsStarted() {
		return nil
	}

	if err := d.mgDevice.Stop(); err != nil {
		return fmt.Errorf("failed to stop malgo device: %w", err)
	}

	if n := d.dropped.Swap(0); n > 0 {
		slog.Debug("Audio packets dropped", "count", n)
	}

	return nil
}

func (d *device) IsStarted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.mgDevice != nil && d.mgDevice.IsStarted()
}

func (d *device) Dealloc(_ context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mgDevice == nil {
		return
	}

	d.mgDevice.Uninit()
	freeContext(d.mgCtx)
	d.mgDevice = nil
	d.mgCtx = nil
}

func toInfo(mdi malgo.DeviceInfo) Info {
	formats := make([]string, len(mdi.Formats))
	for i, mf := range mdi.Formats {
		formats[i] = fmt.Sprintf("%d-byte samples, %d ch, %d Hz",
			malgo.SampleSizeInBytes(mf.Format), mf.Channels, mf.SampleRate)
	}

	return Info{
		Name:      mdi.Name(),
		IsDefault: mdi.IsDefault != 0,
		Formats:   formats,
	}
}

func freeContext(ctx *malgo.AllocatedContext) {
	if ctx == nil {
		return
	}

	if err := ctx.Uninit(); err != nil {
		slog.Error("Failed to uninitialize malgo context", "error", err)
	}
	ctx.Free()
}
