package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

// LevelWindow is how many recent samples feed one level reading: 50ms at
// 16 kHz.
const LevelWindow = 800

// SampleRing keeps the most recent samples for level metering. One goroutine
// writes; any number may read.
type SampleRing struct {
	mu      sync.RWMutex
	samples []int16
	head    int
	count   int
}

// NewSampleRing creates a ring holding up to capacity samples.
func NewSampleRing(capacity int) *SampleRing {
	return &SampleRing{samples: make([]int16, capacity)}
}

// Write appends samples, overwriting the oldest when full.
func (r *SampleRing) Write(samples []int16) {
	if len(samples) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := len(r.samples)
	for _, s := range samples {
		r.samples[r.head] = s
		r.head = (r.head + 1) % capacity
		if r.count < capacity {
			r.count++
		}
	}
}

// Latest returns up to n of the newest samples, oldest first.
func (r *SampleRing) Latest(n int) []int16 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 || n <= 0 {
		return nil
	}
	n = min(n, r.count)

	capacity := len(r.samples)
	start := (r.head - n + capacity) % capacity

	out := make([]int16, n)
	for i := range n {
		out[i] = r.samples[(start+i)%capacity]
	}

	return out
}

// Len is the number of valid samples held.
func (r *SampleRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.count
}

// Reset forgets every sample.
func (r *SampleRing) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.head, r.count = 0, 0
}

// BytesToInt16 decodes S16LE PCM. A trailing odd byte is ignored.
func BytesToInt16(data []byte) []int16 {
	n := len(data) / 2
	if n == 0 {
		return nil
	}

	out := make([]int16, n)
	for i := range n {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}

	return out
}

// RMS is the root mean square of samples normalised to [0,1].
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768
		sum += v * v
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// Level maps samples to a raw meter reading in [0,1]. The square root lifts
// quiet speech into the visible range.
func Level(samples []int16) float64 {
	return min(math.Sqrt(RMS(samples)), 1)
}

// rmsAccumulator tracks the running energy of a whole session.
type rmsAccumulator struct {
	sum float64
	n   int64
}

func (a *rmsAccumulator) add(samples []int16) {
	for _, s := range samples {
		v := float64(s) / 32768
		a.sum += v * v
	}
	a.n += int64(len(samples))
}

func (a *rmsAccumulator) value() float64 {
	if a.n == 0 {
		return 0
	}

	return math.Sqrt(a.sum / float64(a.n))
}
