package landmarker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-facemesh/pkg/topology"
)

// Session owns one constructed detector. It is created once, used by a single
// render loop, and closed when that loop ends.
type Session struct {
	id     string
	lm     Landmarker
	cfg    *Config
	topo   *topology.Set
	logger *slog.Logger

	mu     sync.Mutex
	lastTS int64
	calls  uint64
	closed bool
}

// NewSession validates options and constructs the detector through factory.
// Construction failure is final: there is no fallback delegate.
func NewSession(ctx context.Context, factory Factory, opts ...Option) (*Session, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	id := uuid.NewString()
	logger := cfg.Logger.With("component", "landmarker.session", "session", id)
	cfg.Logger = logger

	start := time.Now()
	lm, err := factory(ctx, cfg)
	if err != nil {
		logger.Error("detector construction failed", "error", err)
		return nil, fmt.Errorf("construct detector: %w", err)
	}

	logger.Info("detector ready",
		"model", cfg.ModelAssetPath,
		"delegate", cfg.Delegate,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	return &Session{
		id:     id,
		lm:     lm,
		cfg:    cfg,
		topo:   topology.Default().Merge(lm.Topology()),
		logger: logger,
		lastTS: -1,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Config returns the options the detector was built with.
func (s *Session) Config() Config {
	return *s.cfg
}

// Topology returns the built-in connector groups overlaid with any the runtime reported.
func (s *Session) Topology() *topology.Set {
	return s.topo
}

// Detect runs the detector on frame. A timestamp that does not advance past
// the previous call is bumped by one millisecond, since the runtime rejects
// non-increasing timestamps in video mode.
func (s *Session) Detect(ctx context.Context, frame Frame, timestampMs int64) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	if timestampMs <= s.lastTS {
		timestampMs = s.lastTS + 1
	}
	s.lastTS = timestampMs
	s.calls++

	res, err := s.lm.DetectForVideo(ctx, frame, timestampMs)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &Result{}
	}
	if n := s.cfg.NumFaces; len(res.FaceLandmarks) > n {
		s.logger.Warn("runtime returned more faces than requested", "faces", len(res.FaceLandmarks), "num_faces", n)
	}
	return res, nil
}

// Calls returns the number of Detect calls made.
func (s *Session) Calls() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Close releases the detector. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("closing detector", "calls", s.calls)
	return s.lm.Close()
}
