package engine

import (
	"sync"
	"time"
)

// Countdown is the single authoritative clock of one attempt. It is seeded
// once at hydration, decrements one second at a time, and cannot be paused,
// extended, or reset by any session input. When it reaches zero it fires
// exactly once.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	fired     bool
	onZero    func()

	stop     chan struct{}
	stopOnce sync.Once
}

// NewCountdown creates a countdown holding the given number of seconds.
// onZero is invoked exactly once, from the ticking goroutine, when the
// counter hits zero.
func NewCountdown(seconds int, onZero func()) *Countdown {
	if seconds < 0 {
		seconds = 0
	}
	return &Countdown{
		remaining: seconds,
		onZero:    onZero,
		stop:      make(chan struct{}),
	}
}

// Start begins ticking at one-second intervals in a new goroutine.
// A countdown seeded with zero seconds fires on the first tick.
func (c *Countdown) Start() {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				if c.Tick() {
					return
				}
			}
		}
	}()
}

// Tick consumes one second. It returns true once the countdown has fired,
// after which further ticks are no-ops. Exposed so the ticking cadence can
// be driven directly in tests.
func (c *Countdown) Tick() bool {
	c.mu.Lock()
	if c.fired {
		c.mu.Unlock()
		return true
	}
	if c.remaining > 0 {
		c.remaining--
	}
	if c.remaining > 0 {
		c.mu.Unlock()
		return false
	}
	c.fired = true
	onZero := c.onZero
	c.mu.Unlock()

	if onZero != nil {
		onZero()
	}
	return true
}

// Remaining returns the seconds left on the clock.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Stop halts the ticking goroutine. It does not fire onZero.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}
