package landmarker

import (
	"context"
	"sync"

	"github.com/teslashibe/go-facemesh/pkg/topology"
)

// Mock implements Landmarker for testing.
type Mock struct {
	// DetectFunc is called when DetectForVideo is invoked.
	DetectFunc func(ctx context.Context, frame Frame, timestampMs int64) (*Result, error)

	// TopologyOverride is returned by Topology.
	TopologyOverride *topology.Set

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu         sync.Mutex
	timestamps []int64
	closed     int
}

// NewMock creates a mock that returns an empty result for every frame.
func NewMock() *Mock {
	return &Mock{
		DetectFunc: func(ctx context.Context, frame Frame, timestampMs int64) (*Result, error) {
			return &Result{}, nil
		},
	}
}

// MockFactory returns a Factory that always yields m.
func MockFactory(m *Mock) Factory {
	return func(ctx context.Context, cfg *Config) (Landmarker, error) {
		return m, nil
	}
}

// DetectForVideo records the timestamp and calls DetectFunc.
func (m *Mock) DetectForVideo(ctx context.Context, frame Frame, timestampMs int64) (*Result, error) {
	m.mu.Lock()
	m.timestamps = append(m.timestamps, timestampMs)
	fn := m.DetectFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, frame, timestampMs)
	}
	return &Result{}, nil
}

// Topology returns TopologyOverride.
func (m *Mock) Topology() *topology.Set {
	return m.TopologyOverride
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed++
	fn := m.CloseFunc
	m.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return nil
}

// Timestamps returns every timestamp passed to DetectForVideo.
func (m *Mock) Timestamps() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, len(m.timestamps))
	copy(out, m.timestamps)
	return out
}

// CallCount returns the number of DetectForVideo calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timestamps)
}

// CloseCount returns the number of Close calls.
func (m *Mock) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ Landmarker = (*Mock)(nil)
