package gate

import (
	"sync"
	"time"
)

// DefaultCooldown is the window after an accepted detection during which
// further detections are ignored.
const DefaultCooldown = 5 * time.Second

// Gate decides whether a detection is acted upon.
type Gate interface {
	TryAccept() bool
	Close()
}

type state int

const (
	idle state = iota
	blocked
	closed
)

// Cooldown accepts at most one detection per window measured from the moment
// of acceptance. The state is evaluated against the clock on every call, so
// nothing is scheduled and nothing outlives Close.
type Cooldown struct {
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	state     state
	unblockAt time.Time
}

// NewCooldown creates a gate with the given window.
func NewCooldown(window time.Duration) *Cooldown {
	return NewCooldownWithClock(window, time.Now)
}

// NewCooldownWithClock creates a gate reading time from now. time.Now carries
// a monotonic reading, so wall clock jumps do not affect the window.
func NewCooldownWithClock(window time.Duration, now func() time.Time) *Cooldown {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &Cooldown{window: window, now: now}
}

// TryAccept returns true when the gate is idle and blocks it for one window.
func (c *Cooldown) TryAccept() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	switch c.state {
	case closed:
		return false
	case blocked:
		if now.Before(c.unblockAt) {
			return false
		}
	}

	c.state = blocked
	c.unblockAt = now.Add(c.window)
	return true
}

// Active reports whether a detection would currently be accepted.
func (c *Cooldown) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case closed:
		return false
	case blocked:
		return !c.now().Before(c.unblockAt)
	}
	return true
}

// UnblockAt returns when the current window ends; zero when idle.
func (c *Cooldown) UnblockAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != blocked {
		return time.Time{}
	}
	return c.unblockAt
}

// Close rejects every later detection.
func (c *Cooldown) Close() {
	c.mu.Lock()
	c.state = closed
	c.mu.Unlock()
}

// Passthrough accepts every detection until closed.
type Passthrough struct {
	mu     sync.Mutex
	closed bool
}

func (p *Passthrough) TryAccept() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

func (p *Passthrough) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}
