// Package clock provides helpers for time-related operations.
package clock

import (
	"context"
	"time"
)

// SleepWithContext waits for the duration or returns early if the context is
// canceled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WaitResult tells a polling loop why it woke up.
type WaitResult int

const (
	// WaitTick means the poll interval elapsed.
	WaitTick WaitResult = iota
	// WaitSignal means an external wake signal arrived before the tick.
	WaitSignal
	// WaitCanceled means the context was canceled.
	WaitCanceled
)

// Poller drives a cancelable polling loop with an optional wake signal.
type Poller struct {
	interval time.Duration
	wake     <-chan struct{}
	ticker   *time.Ticker
}

// NewPoller creates a Poller. wake may be nil.
func NewPoller(interval time.Duration, wake <-chan struct{}) *Poller {
	return &Poller{
		interval: interval,
		wake:     wake,
		ticker:   time.NewTicker(interval),
	}
}

// Wait blocks until the next tick, a wake signal, or cancellation.
func (p *Poller) Wait(ctx context.Context) WaitResult {
	select {
	case <-ctx.Done():
		return WaitCanceled
	case <-p.ticker.C:
		return WaitTick
	case <-p.wake:
		return WaitSignal
	}
}

// Stop releases the underlying ticker.
func (p *Poller) Stop() {
	p.ticker.Stop()
}
