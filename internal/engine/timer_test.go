package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountdownTicksDownToZeroAndFiresOnce(t *testing.T) {
	fired := 0
	c := NewCountdown(3, func() { fired++ })

	assert.False(t, c.Tick())
	assert.Equal(t, 2, c.Remaining())
	assert.False(t, c.Tick())
	assert.True(t, c.Tick())
	assert.Equal(t, 0, c.Remaining())
	assert.Equal(t, 1, fired)

	// Ticks past zero stay fired and never re-invoke the callback.
	assert.True(t, c.Tick())
	assert.True(t, c.Tick())
	assert.Equal(t, 1, fired)
}

func TestCountdownZeroSecondsFiresOnFirstTick(t *testing.T) {
	fired := 0
	c := NewCountdown(0, func() { fired++ })

	assert.True(t, c.Tick())
	assert.Equal(t, 1, fired)
}

func TestCountdownNegativeSeedClampsToZero(t *testing.T) {
	c := NewCountdown(-30, nil)
	assert.Equal(t, 0, c.Remaining())
	assert.True(t, c.Tick())
}

func TestCountdownStopIsIdempotent(t *testing.T) {
	c := NewCountdown(10, func() { t.Fatal("stopped countdown must not fire") })
	c.Start()
	c.Stop()
	c.Stop()
	assert.Equal(t, 10, c.Remaining())
}

func TestCountdownConcurrentTicksFireOnce(t *testing.T) {
	fired := 0
	var mu sync.Mutex
	c := NewCountdown(1, func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Tick()
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, fired)
}
