package app

import "errors"

var (
	// ErrClockStarted is returned when Start is called on a clock that already ran.
	ErrClockStarted = errors.New("session clock already started")
	// ErrInvalidBudget rejects a non-positive time budget.
	ErrInvalidBudget = errors.New("session clock budget must be positive")
)

// Clock is a countdown bound to a single attempt. It is not safe for concurrent use;
// the owning Session serialises every call.
type Clock struct {
	budget    int
	remaining int
	running   bool
	started   bool
	expired   bool

	onProgress func(remaining int)
	onExpire   func()
}

// NewClock returns a stopped clock. Either callback may be nil.
func NewClock(onProgress func(remaining int), onExpire func()) *Clock {
	return &Clock{onProgress: onProgress, onExpire: onExpire}
}

// Start arms the clock with budget seconds. A clock starts once per lifetime.
func (c *Clock) Start(budget int) error {
	if c.started {
		return ErrClockStarted
	}
	if budget <= 0 {
		return ErrInvalidBudget
	}
	c.started = true
	c.budget = budget
	c.remaining = budget
	c.running = true
	return nil
}

// Tick consumes one second. Reaching zero stops the clock and fires expiry once;
// ticks on a stopped clock do nothing.
func (c *Clock) Tick() {
	if !c.running {
		return
	}
	c.remaining--
	if c.remaining > 0 {
		if c.onProgress != nil {
			c.onProgress(c.remaining)
		}
		return
	}
	c.remaining = 0
	c.running = false
	if !c.expired {
		c.expired = true
		if c.onExpire != nil {
			c.onExpire()
		}
	}
}

// Stop halts the clock. Safe to call repeatedly and after expiry.
func (c *Clock) Stop() {
	c.running = false
}

func (c *Clock) Remaining() int { return c.remaining }

func (c *Clock) Budget() int { return c.budget }

func (c *Clock) Running() bool { return c.running }

// Expired reports whether the countdown reached zero.
func (c *Clock) Expired() bool { return c.expired }
