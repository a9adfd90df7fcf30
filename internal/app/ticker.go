package app

import (
	"sync"
	"time"
)

// TickSource delivers the ticks that drive a session clock.
type TickSource interface {
	Ticks() <-chan time.Time
	Stop()
}

// WallTicker ticks on real time.
type WallTicker struct {
	ticker *time.Ticker
}

func NewWallTicker(interval time.Duration) *WallTicker {
	if interval <= 0 {
		interval = time.Second
	}
	return &WallTicker{ticker: time.NewTicker(interval)}
}

func (w *WallTicker) Ticks() <-chan time.Time { return w.ticker.C }

func (w *WallTicker) Stop() { w.ticker.Stop() }

// ManualTicker is a TickSource stepped explicitly, for deterministic tests and replays.
type ManualTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
	now     time.Time
}

func NewManualTicker() *ManualTicker {
	return &ManualTicker{
		ch:      make(chan time.Time),
		stopped: make(chan struct{}),
		now:     time.Unix(0, 0),
	}
}

func (m *ManualTicker) Ticks() <-chan time.Time { return m.ch }

// Step hands n ticks to the consumer, blocking until each one is received.
// It returns the number delivered, which is short if the ticker was stopped.
func (m *ManualTicker) Step(n int) int {
	for i := 0; i < n; i++ {
		m.now = m.now.Add(time.Second)
		select {
		case m.ch <- m.now:
		case <-m.stopped:
			return i
		}
	}
	return n
}

func (m *ManualTicker) Stop() {
	m.once.Do(func() { close(m.stopped) })
}

// Stopped is closed once the consumer released the ticker.
func (m *ManualTicker) Stopped() <-chan struct{} { return m.stopped }
