// Package render drives the per-refresh cycle: read the latest video frame,
// run landmark detection on it, draw the result.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-facemesh/pkg/debug"
	"github.com/teslashibe/go-facemesh/pkg/landmarker"
)

// FrameSource supplies the most recent video frame.
type FrameSource interface {
	// Width is 0 until the first frame has decoded.
	Width() int
	Latest() (landmarker.Frame, bool)
}

// Detector is the owned inference session.
type Detector interface {
	Detect(ctx context.Context, frame landmarker.Frame, timestampMs int64) (*landmarker.Result, error)
	Close() error
}

// Opener constructs the detector. It is called once per Run.
type Opener func(ctx context.Context) (Detector, error)

// Drawer renders one frame's result.
type Drawer interface {
	Draw(frame landmarker.Frame, res *landmarker.Result) error
}

// DrawerFunc adapts a function to Drawer.
type DrawerFunc func(frame landmarker.Frame, res *landmarker.Result) error

// Draw calls f.
func (f DrawerFunc) Draw(frame landmarker.Frame, res *landmarker.Result) error {
	return f(frame, res)
}

// Stats is a snapshot of loop counters.
type Stats struct {
	State       State         `json:"state"`
	Frames      uint64        `json:"frames"`
	Skipped     uint64        `json:"skipped"`
	Errors      uint64        `json:"errors"`
	LastLatency time.Duration `json:"last_latency_ns"`
	LastError   string        `json:"last_error,omitempty"`
}

// Loop runs detection and drawing once per scheduler tick, strictly in
// sequence. There is no queue: each iteration takes whatever frame is newest.
type Loop struct {
	src    FrameSource
	open   Opener
	draw   Drawer
	sched  Scheduler
	logger *slog.Logger

	onState func(old, new State)

	state  atomic.Int32
	errs   chan error
	failCh chan error
	start  time.Time

	mu    sync.Mutex
	stats Stats
}

// Option configures a Loop.
type Option func(*Loop)

// WithScheduler replaces the 60 Hz ticker.
func WithScheduler(s Scheduler) Option {
	return func(l *Loop) { l.sched = s }
}

// WithOnStateChange registers a callback run on every transition, on the loop goroutine.
func WithOnStateChange(fn func(old, new State)) Option {
	return func(l *Loop) { l.onState = fn }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithErrorBuffer sets how many unread errors are kept before new ones are dropped.
func WithErrorBuffer(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.errs = make(chan error, n)
		}
	}
}

// New creates a loop in the Uninitialized state.
func New(src FrameSource, open Opener, draw Drawer, opts ...Option) *Loop {
	l := &Loop{
		src:    src,
		open:   open,
		draw:   draw,
		logger: slog.Default(),
		errs:   make(chan error, 16),
		failCh: make(chan error, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "render")
	return l
}

// Run constructs the detector, then iterates until ctx is done or Fail is
// called. The detector is closed before Run returns. Cancellation is not an
// error; a failed construction or Fail is.
func (l *Loop) Run(ctx context.Context) error {
	if l.sched == nil {
		ticker := NewTickerScheduler(60)
		defer ticker.Stop()
		l.sched = ticker
	}

	det, err := l.open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			l.setState(Stopped)
			return nil
		}
		err = fmt.Errorf("open detector: %w", err)
		l.fail(err)
		return err
	}
	defer func() {
		if cerr := det.Close(); cerr != nil {
			l.logger.Warn("detector close failed", "error", cerr)
		}
	}()

	l.start = time.Now()
	l.setState(WaitingForFrame)

	for {
		if err := l.sched.Wait(ctx); err != nil {
			l.setState(Stopped)
			return nil
		}

		select {
		case err := <-l.failCh:
			l.fail(err)
			return err
		default:
		}

		if l.src.Width() == 0 {
			l.mu.Lock()
			l.stats.Skipped++
			l.mu.Unlock()
			continue
		}
		if l.State() == WaitingForFrame {
			l.setState(Active)
		}

		l.step(ctx, det)
	}
}

// step runs one detect-then-draw iteration. Errors are reported and the
// loop carries on with the next tick.
func (l *Loop) step(ctx context.Context, det Detector) {
	frame, ok := l.src.Latest()
	if !ok {
		return
	}

	ts := time.Since(l.start).Milliseconds()
	begin := time.Now()

	res, err := det.Detect(ctx, frame, ts)
	latency := time.Since(begin)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return
		}
		l.report(fmt.Errorf("detect frame %d: %w", frame.Seq, err))
		return
	}

	if err := l.draw.Draw(frame, res); err != nil {
		l.report(fmt.Errorf("draw frame %d: %w", frame.Seq, err))
		return
	}

	l.mu.Lock()
	l.stats.Frames++
	l.stats.LastLatency = latency
	l.mu.Unlock()

	debug.FrameLog("frame processed", "seq", frame.Seq, "ts", ts, "faces", res.Faces(), "latency", latency)
}

// Fail stops the loop with err at its next tick. Used when a collaborator
// outside the loop, such as the camera, fails for good.
func (l *Loop) Fail(err error) {
	select {
	case l.failCh <- err:
	default:
	}
}

func (l *Loop) fail(err error) {
	l.logger.Error("render loop failed", "error", err)
	l.mu.Lock()
	l.stats.LastError = err.Error()
	l.mu.Unlock()
	l.publish(err)
	l.setState(Failed)
}

func (l *Loop) report(err error) {
	l.logger.Warn("frame skipped", "error", err)
	l.mu.Lock()
	l.stats.Errors++
	l.stats.LastError = err.Error()
	l.mu.Unlock()
	l.publish(err)
}

func (l *Loop) publish(err error) {
	select {
	case l.errs <- err:
	default:
		debug.Log("error channel full, dropping", "error", err)
	}
}

func (l *Loop) setState(s State) {
	old := State(l.state.Swap(int32(s)))
	if old == s {
		return
	}
	l.logger.Info("state changed", "from", old, "to", s)
	if l.onState != nil {
		l.onState(old, s)
	}
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Errors delivers per-frame and fatal errors. Errors are dropped while the
// buffer is full.
func (l *Loop) Errors() <-chan error {
	return l.errs
}

// Stats returns a snapshot of the loop counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats
	s.State = l.State()
	return s
}
