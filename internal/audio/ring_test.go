package audio_test

import (
	"encoding/binary"
	"math"
	"sync"
	"testing"

	"github.com/alkime/dictate/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleRing_Write(t *testing.T) {
	t.Parallel()

	r := audio.NewSampleRing(10)
	r.Write([]int16{1, 2, 3, 4, 5})

	require.Equal(t, []int16{1, 2, 3, 4, 5}, r.Latest(5))
	require.Equal(t, 5, r.Len())
}

func TestSampleRing_Empty(t *testing.T) {
	t.Parallel()

	r := audio.NewSampleRing(10)
	r.Write(nil)

	require.Equal(t, 0, r.Len())
	require.Nil(t, r.Latest(5))
	require.Nil(t, r.Latest(0))
}

func TestSampleRing_Wraparound(t *testing.T) {
	t.Parallel()

	r := audio.NewSampleRing(5)
	r.Write([]int16{1, 2})
	r.Write([]int16{3, 4})
	r.Write([]int16{5, 6, 7})

	require.Equal(t, []int16{3, 4, 5, 6, 7}, r.Latest(5))
	require.Equal(t, []int16{6, 7}, r.Latest(2))
	require.Equal(t, []int16{3, 4, 5, 6, 7}, r.Latest(50))
}

func TestSampleRing_Reset(t *testing.T) {
	t.Parallel()

	r := audio.NewSampleRing(4)
	r.Write([]int16{9, 9, 9})
	r.Reset()

	require.Equal(t, 0, r.Len())
	r.Write([]int16{1})
	require.Equal(t, []int16{1}, r.Latest(4))
}

func TestSampleRing_ConcurrentReaders(t *testing.T) {
	t.Parallel()

	r := audio.NewSampleRing(audio.LevelWindow)

	var wg sync.WaitGroup
	wg.Go(func() {
		for i := range 200 {
			r.Write([]int16{int16(i), int16(-i)})
		}
	})
	for range 4 {
		wg.Go(func() {
			for range 200 {
				assert.LessOrEqual(t, len(r.Latest(audio.LevelWindow)), audio.LevelWindow)
			}
		})
	}
	wg.Wait()

	require.Equal(t, 400, r.Len())
}

func TestBytesToInt16(t *testing.T) {
	t.Parallel()

	data := make([]byte, 7)
	binary.LittleEndian.PutUint16(data[0:], uint16(1000))
	binary.LittleEndian.PutUint16(data[2:], uint16(0xFFFF))
	binary.LittleEndian.PutUint16(data[4:], uint16(0x8000))

	assert.Equal(t, []int16{1000, -1, math.MinInt16}, audio.BytesToInt16(data))
	assert.Nil(t, audio.BytesToInt16([]byte{1}))
}

func TestLevel(t *testing.T) {
	t.Parallel()

	assert.Zero(t, audio.Level(nil))
	assert.Zero(t, audio.Level([]int16{0, 0, 0}))

	// Full scale square wave has RMS 1.
	square := []int16{math.MaxInt16, math.MinInt16, math.MaxInt16, math.MinInt16}
	assert.InDelta(t, 1.0, audio.Level(square), 1e-3)

	// Quiet speech is lifted by the square root curve.
	quiet := []int16{328, -328, 328, -328}
	assert.InDelta(t, 0.01, audio.RMS(quiet), 1e-4)
	assert.InDelta(t, 0.1, audio.Level(quiet), 1e-3)
}
