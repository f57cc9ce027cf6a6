package render

import (
	"context"
	"time"
)

// Scheduler paces the loop. Wait blocks until the next refresh or until ctx
// is done.
type Scheduler interface {
	Wait(ctx context.Context) error
}

// TickerScheduler fires at a fixed display refresh rate.
type TickerScheduler struct {
	ticker *time.Ticker
}

// NewTickerScheduler creates a scheduler firing hz times per second.
func NewTickerScheduler(hz int) *TickerScheduler {
	if hz <= 0 {
		hz = 60
	}
	return &TickerScheduler{ticker: time.NewTicker(time.Second / time.Duration(hz))}
}

// Wait blocks until the next tick.
func (s *TickerScheduler) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ticker.C:
		return nil
	}
}

// Stop releases the ticker.
func (s *TickerScheduler) Stop() {
	s.ticker.Stop()
}

// ManualScheduler fires only when Tick is called. Tick blocks until the loop
// is waiting, so after Tick returns every earlier iteration has completed.
type ManualScheduler struct {
	ticks chan struct{}
}

// NewManualScheduler creates a scheduler for tests and single-stepping.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{ticks: make(chan struct{})}
}

// Wait blocks until Tick.
func (s *ManualScheduler) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ticks:
		return nil
	}
}

// Tick releases one iteration. It returns false if ctx ends first.
func (s *ManualScheduler) Tick(ctx context.Context) bool {
	select {
	case s.ticks <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}
