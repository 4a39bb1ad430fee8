package channels_test

import (
	"testing"
	"time"

	"github.com/alkime/dictate/pkg/channels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendNonBlock(t *testing.T) {
	t.Run("room in buffer", func(t *testing.T) {
		ch := make(chan int, 1)
		require.NoError(t, channels.SendNonBlock(ch, 7))
		assert.Equal(t, 7, <-ch)
	})

	t.Run("full buffer", func(t *testing.T) {
		ch := make(chan int, 1)
		ch <- 1
		assert.ErrorIs(t, channels.SendNonBlock(ch, 2), channels.ErrChannelFull)
	})

	t.Run("no reader on unbuffered", func(t *testing.T) {
		assert.ErrorIs(t, channels.SendNonBlock(make(chan int), 1), channels.ErrChannelFull)
	})

	t.Run("closed", func(t *testing.T) {
		ch := make(chan int, 1)
		close(ch)
		assert.ErrorIs(t, channels.SendNonBlock(ch, 1), channels.ErrChannelClosed)
	})
}

func TestSendWithTimeout(t *testing.T) {
	t.Run("reader arrives in time", func(t *testing.T) {
		ch := make(chan int)
		go func() {
			time.Sleep(time.Millisecond)
			<-ch
		}()
		assert.NoError(t, channels.SendWithTimeout(ch, 1, time.Second))
	})

	t.Run("times out", func(t *testing.T) {
		ch := make(chan int, 1)
		ch <- 1
		assert.ErrorIs(t, channels.SendWithTimeout(ch, 2, time.Millisecond), channels.ErrChannelTimeout)
	})

	t.Run("closed", func(t *testing.T) {
		ch := make(chan int)
		close(ch)
		assert.ErrorIs(t, channels.SendWithTimeout(ch, 1, time.Second), channels.ErrChannelClosed)
	})
}
