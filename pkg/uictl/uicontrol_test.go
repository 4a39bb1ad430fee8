package uictl_test

import (
	"sync"
	"testing"

	"github.com/alkime/dictate/pkg/uictl"
	"github.com/stretchr/testify/assert"
)

func TestHistory(t *testing.T) {
	t.Run("keeps newest values oldest first", func(t *testing.T) {
		h := uictl.NewHistory[float64](3)
		for _, v := range []float64{0.1, 0.2, 0.3, 0.4} {
			h.Push(v)
		}
		assert.Equal(t, []float64{0.2, 0.3, 0.4}, h.Read())
	})

	t.Run("read returns a copy", func(t *testing.T) {
		h := uictl.NewHistory[int](2)
		h.Push(1)
		got := h.Read()
		got[0] = 99
		assert.Equal(t, []int{1}, h.Read())
	})

	t.Run("reset", func(t *testing.T) {
		h := uictl.NewHistory[int](2)
		h.Push(1)
		h.Reset()
		assert.Empty(t, h.Read())
	})

	t.Run("non-positive size holds one value", func(t *testing.T) {
		h := uictl.NewHistory[int](0)
		h.Push(1)
		h.Push(2)
		assert.Equal(t, []int{2}, h.Read())
	})

	t.Run("concurrent push and read", func(t *testing.T) {
		h := uictl.NewHistory[int](16)
		var wg sync.WaitGroup
		for i := range 4 {
			wg.Go(func() {
				for j := range 100 {
					h.Push(i*100 + j)
					_ = h.Read()
				}
			})
		}
		wg.Wait()
		assert.Len(t, h.Read(), 16)
	})
}
