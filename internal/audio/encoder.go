package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	mp3encoder "github.com/braheezy/shine-mp3/pkg/mp3"
)

// DefaultBufferThreshold is 4 KiB of PCM, about 128ms at 16 kHz mono.
const DefaultBufferThreshold = 4096

// EncoderConfig configures a StreamingEncoder.
type EncoderConfig struct {
	SampleRate int
	Channels   int
	// BufferThreshold is how many PCM bytes accumulate before a batch is
	// encoded.
	BufferThreshold int
}

// Validate returns an error if the config is invalid.
func (c EncoderConfig) Validate() error {
	if c.SampleRate <= 0 {
		return errors.New("sample rate must be positive")
	}

	if c.Channels != 1 {
		return errors.New("only mono (1 channel) is supported")
	}

	if c.BufferThreshold <= 0 {
		return errors.New("buffer threshold must be positive")
	}

	return nil
}

// WithDefaults fills zero fields.
func (c EncoderConfig) WithDefaults() EncoderConfig {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Channels == 0 {
		c.Channels = DefaultChannels
	}
	if c.BufferThreshold == 0 {
		c.BufferThreshold = DefaultBufferThreshold
	}

	return c
}

// StreamingEncoder archives one session: it drains S16LE PCM from a channel,
// batches it and writes MP3 frames to an io.Writer until the channel closes.
type StreamingEncoder struct {
	config EncoderConfig
	input  <-chan Packet
	output io.Writer
	logger *slog.Logger

	encoder *mp3encoder.Encoder
	buffer  []byte
	samples int64

	wg      sync.WaitGroup
	errOnce sync.Once
	err     error
}

// NewStreamingEncoder validates config and wires the encoder between input
// and output. Nothing is read until Start.
func NewStreamingEncoder(
	config EncoderConfig,
	input <-chan Packet,
	output io.Writer,
	logger *slog.Logger,
) (*StreamingEncoder, error) {
	if input == nil {
		return nil, errors.New("input channel cannot be nil")
	}

	if output == nil {
		return nil, errors.New("output writer cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid encoder config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &StreamingEncoder{
		config: config,
		input:  input,
		output: output,
		logger: logger,
		buffer: make([]byte, 0, config.BufferThreshold),
	}, nil
}

// Start launches the encoding goroutine.
func (e *StreamingEncoder) Start(ctx context.Context) error {
	if e.encoder != nil {
		return errors.New("encoder already started")
	}

	// shine-mp3 mis-strides mono input, so frames are encoded as L=R stereo.
	e.encoder = mp3encoder.NewEncoder(e.config.SampleRate, 2)

	e.wg.Go(func() {
		defer func() {
			if err := e.flush(); err != nil {
				e.setError(fmt.Errorf("failed to flush encoder on shutdown: %w", err))
			}
		}()

		for {
			select {
			case data, ok := <-e.input:
				if !ok {
					return
				}

				e.buffer = append(e.buffer, data...)
				e.samples += int64(len(data) / 2)

				if len(e.buffer) >= e.config.BufferThreshold {
					if err := e.encodeBatch(); err != nil {
						e.setError(err)
						return
					}
				}

			case <-ctx.Done():
				e.setError(fmt.Errorf("encoder context cancelled: %w", ctx.Err()))
				return
			}
		}
	})

	return nil
}

func (e *StreamingEncoder) encodeBatch() error {
	// An odd trailing byte waits for its partner in the next packet.
	usable := len(e.buffer) &^ 1
	if usable == 0 {
		return nil
	}

	mono := BytesToInt16(e.buffer[:usable])
	stereo := make([]int16, len(mono)*2)
	for i, s := range mono {
		stereo[i*2] = s
		stereo[i*2+1] = s
	}

	if err := e.encoder.Write(e.output, stereo); err != nil {
		return fmt.Errorf("failed to encode audio to MP3: %w", err)
	}

	rest := copy(e.buffer, e.buffer[usable:])
	e.buffer = e.buffer[:rest]

	return nil
}

func (e *StreamingEncoder) flush() error {
	if err := e.encodeBatch(); err != nil {
		return fmt.Errorf("failed to flush MP3 encoder: %w", err)
	}

	return nil
}

// Wait blocks until the input channel is drained and returns the first error.
func (e *StreamingEncoder) Wait() error {
	e.wg.Wait()

	return e.err
}

// SampleCount is the number of PCM samples consumed. Only meaningful after
// Wait returns.
func (e *StreamingEncoder) SampleCount() int64 {
	return e.samples
}

func (e *StreamingEncoder) setError(err error) {
	e.errOnce.Do(func() {
		e.err = err
		e.logger.Debug("Streaming encoder error", "error", err)
	})
}
