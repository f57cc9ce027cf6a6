package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-facemesh/pkg/debug"
	"github.com/teslashibe/go-facemesh/pkg/landmarker"
	"gocv.io/x/gocv"
)

var (
	// ErrDeviceUnavailable is returned when the device cannot be opened
	// (missing, busy, or permission denied).
	ErrDeviceUnavailable = errors.New("camera: device unavailable")

	// ErrConstraintUnsatisfied is returned when the device delivers less than
	// the configured minimum resolution.
	ErrConstraintUnsatisfied = errors.New("camera: resolution constraint unsatisfied")

	// ErrAlreadyOpened is returned on a second Open. Acquisition is one-shot.
	ErrAlreadyOpened = errors.New("camera: already opened")
)

// Device is an opened capture device.
type Device interface {
	Read(m *gocv.Mat) bool
	Set(prop gocv.VideoCaptureProperties, value float64)
	Get(prop gocv.VideoCaptureProperties) float64
	Close() error
}

// Opener opens the device named by a Config.Device string.
type Opener func(device string) (Device, error)

// OpenVideoCapture opens a V4L2 index or a URL/file through gocv.
func OpenVideoCapture(device string) (Device, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	if id, convErr := strconv.Atoi(device); convErr == nil {
		vc, err = gocv.OpenVideoCapture(id)
	} else {
		vc, err = gocv.OpenVideoCapture(device)
	}
	if err != nil {
		return nil, err
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("device %s did not open", device)
	}
	return &videoDevice{vc: vc}, nil
}

type videoDevice struct {
	vc *gocv.VideoCapture
}

func (d *videoDevice) Read(m *gocv.Mat) bool { return d.vc.Read(m) }

func (d *videoDevice) Set(prop gocv.VideoCaptureProperties, value float64) { d.vc.Set(prop, value) }

func (d *videoDevice) Get(prop gocv.VideoCaptureProperties) float64 { return d.vc.Get(prop) }

func (d *videoDevice) Close() error { return d.vc.Close() }

// maxMisses is how many consecutive failed reads end capture.
const maxMisses = 50

// Source captures frames from one device and keeps only the latest.
// Consumers never queue: a frame not read before the next arrives is dropped.
type Source struct {
	cfg    atomic.Pointer[Config]
	open   Opener
	logger *slog.Logger

	devMu sync.Mutex
	dev   Device

	mu       sync.RWMutex
	latest   landmarker.Frame
	ok       bool
	consumed bool
	width    int
	height   int

	opened   atomic.Bool
	captured atomic.Uint64
	dropped  atomic.Uint64
	cancel   context.CancelFunc
	done     chan struct{}
	errs     chan error
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithOpener replaces the gocv device opener.
func WithOpener(o Opener) SourceOption {
	return func(s *Source) { s.open = o }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) SourceOption {
	return func(s *Source) { s.logger = l }
}

// NewSource creates an unopened source.
func NewSource(cfg Config, opts ...SourceOption) *Source {
	s := &Source{
		open:   OpenVideoCapture,
		logger: slog.Default(),
		errs:   make(chan error, 1),
	}
	s.cfg.Store(&cfg)
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "camera", "device", cfg.Device)
	return s
}

// Open acquires the device and starts capturing. It is one-shot: a failed
// Open is not retried and a second Open returns ErrAlreadyOpened.
func (s *Source) Open(ctx context.Context) error {
	if !s.opened.CompareAndSwap(false, true) {
		return ErrAlreadyOpened
	}

	cfg := *s.cfg.Load()
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid camera config: %v", errs)
	}

	dev, err := s.open(cfg.Device)
	if err != nil {
		s.logger.Error("camera open failed", "error", err)
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	if err := applyConfig(dev, cfg); err != nil {
		dev.Close()
		s.logger.Error("camera rejected constraints", "error", err)
		return err
	}

	s.dev = dev
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.capture(ctx)

	s.logger.Info("camera opened",
		"width", int(dev.Get(gocv.VideoCaptureFrameWidth)),
		"height", int(dev.Get(gocv.VideoCaptureFrameHeight)),
		"fps", cfg.Framerate,
	)
	return nil
}

// applyConfig sets capture properties and checks the minimum resolution.
func applyConfig(dev Device, cfg Config) error {
	dev.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	dev.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	dev.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	if cfg.Brightness != 0 {
		dev.Set(gocv.VideoCaptureBrightness, cfg.Brightness)
	}
	if cfg.Exposure > 0 {
		dev.Set(gocv.VideoCaptureExposure, cfg.Exposure)
	}
	if cfg.AutoFocus {
		dev.Set(gocv.VideoCaptureAutoFocus, 1)
	} else {
		dev.Set(gocv.VideoCaptureAutoFocus, 0)
	}

	w := int(dev.Get(gocv.VideoCaptureFrameWidth))
	h := int(dev.Get(gocv.VideoCaptureFrameHeight))
	// Drivers that report 0 are checked on the first decoded frame instead.
	if (w > 0 && w < cfg.MinWidth) || (h > 0 && h < cfg.MinHeight) {
		return fmt.Errorf("%w: got %dx%d, need at least %dx%d",
			ErrConstraintUnsatisfied, w, h, cfg.MinWidth, cfg.MinHeight)
	}
	return nil
}

// Apply changes settings on the open device. Before Open it only stores cfg.
func (s *Source) Apply(cfg Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid camera config: %v", errs)
	}
	s.devMu.Lock()
	defer s.devMu.Unlock()

	if s.dev != nil {
		if err := applyConfig(s.dev, cfg); err != nil {
			return err
		}
	}
	s.cfg.Store(&cfg)
	s.logger.Info("camera config applied", "width", cfg.Width, "height", cfg.Height, "fps", cfg.Framerate)
	return nil
}

func (s *Source) capture(ctx context.Context) {
	defer close(s.done)

	mat := gocv.NewMat()
	defer mat.Close()

	misses := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.devMu.Lock()
		ok := s.dev.Read(&mat)
		s.devMu.Unlock()

		if !ok || mat.Empty() {
			misses++
			if misses >= maxMisses {
				s.report(fmt.Errorf("%w: no frames after %d reads", ErrDeviceUnavailable, misses))
				return
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		misses = 0

		cfg := s.cfg.Load()
		if mat.Cols() < cfg.MinWidth || mat.Rows() < cfg.MinHeight {
			s.report(fmt.Errorf("%w: got %dx%d, need at least %dx%d",
				ErrConstraintUnsatisfied, mat.Cols(), mat.Rows(), cfg.MinWidth, cfg.MinHeight))
			return
		}

		buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{int(gocv.IMWriteJpegQuality), cfg.Quality})
		if err != nil {
			s.logger.Warn("frame encode failed", "error", err)
			continue
		}
		jpeg := make([]byte, len(buf.GetBytes()))
		copy(jpeg, buf.GetBytes())
		buf.Close()

		s.store(jpeg, mat.Cols(), mat.Rows())
	}
}

func (s *Source) store(jpeg []byte, w, h int) {
	seq := s.captured.Add(1)

	s.mu.Lock()
	if s.ok && !s.consumed {
		s.dropped.Add(1)
	}
	s.latest = landmarker.Frame{JPEG: jpeg, Width: w, Height: h, Seq: seq}
	s.ok = true
	s.consumed = false
	first := s.width == 0
	s.width, s.height = w, h
	s.mu.Unlock()

	if first {
		s.logger.Info("first frame decoded", "width", w, "height", h)
	}
	debug.FrameLog("frame captured", "seq", seq, "bytes", len(jpeg))
}

func (s *Source) report(err error) {
	s.logger.Error("capture stopped", "error", err)
	select {
	case s.errs <- err:
	default:
	}
}

// Latest returns the most recent frame. ok is false before the first frame.
// A frame replaced before anyone read it counts as dropped.
func (s *Source) Latest() (landmarker.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ok {
		return landmarker.Frame{}, false
	}
	s.consumed = true
	return s.latest, true
}

// Width returns the decoded frame width, or 0 before the first frame.
func (s *Source) Width() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width
}

// Height returns the decoded frame height, or 0 before the first frame.
func (s *Source) Height() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height
}

// Errors delivers the error that ended capture, if any.
func (s *Source) Errors() <-chan error {
	return s.errs
}

// Config returns the settings in effect.
func (s *Source) Config() Config {
	return *s.cfg.Load()
}

// Stats reports capture counters.
func (s *Source) Stats() map[string]interface{} {
	return map[string]interface{}{
		"captured": s.captured.Load(),
		"dropped":  s.dropped.Load(),
		"width":    s.Width(),
		"height":   s.Height(),
	}
}

// Close stops capture and releases the device.
func (s *Source) Close() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	<-s.done

	s.devMu.Lock()
	defer s.devMu.Unlock()
	if s.dev == nil {
		return nil
	}
	err := s.dev.Close()
	s.dev = nil
	s.logger.Info("camera closed", "captured", s.captured.Load(), "dropped", s.dropped.Load())
	return err
}
