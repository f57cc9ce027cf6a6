package landmarker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/teslashibe/go-facemesh/pkg/topology"
)

const backendWorker = "worker"

// Worker hosts the model runtime in a child process. Requests go to the
// child's stdin; replies come back on a dedicated pipe (FD 3 in the child)
// so that anything the runtime prints on stdout cannot corrupt the stream.
type Worker struct {
	cmd    *exec.Cmd
	w      io.WriteCloser
	r      io.ReadCloser
	cfg    *Config
	topo   *topology.Set
	logger *slog.Logger

	// stderrDone closes once the runtime's stderr is drained. cmd.Wait
	// must not run before that.
	stderrDone chan struct{}

	mu     sync.Mutex
	closed bool
	broken error
}

// NewWorkerFactory returns a Factory that starts name with args as the runtime.
func NewWorkerFactory(name string, args ...string) Factory {
	return func(ctx context.Context, cfg *Config) (Landmarker, error) {
		return StartWorker(ctx, cfg, exec.Command(name, args...))
	}
}

// StartWorker starts cmd and performs the construction handshake.
func StartWorker(ctx context.Context, cfg *Config, cmd *exec.Cmd) (*Worker, error) {
	logger := cfg.Logger.With("component", "landmarker.worker")

	r, w, err := os.Pipe()
	if err != nil {
		return nil, wrap(backendWorker, "start", fmt.Errorf("create pipe: %w", err))
	}
	// The child sees the write end as FD 3.
	cmd.ExtraFiles = []*os.File{w}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, wrap(backendWorker, "start", fmt.Errorf("stdin pipe: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, wrap(backendWorker, "start", fmt.Errorf("stderr pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, wrap(backendWorker, "start", err)
	}
	// Only the child holds the write end now.
	w.Close()

	stderrDone := make(chan struct{})
	go forwardStderr(stderr, logger, stderrDone)

	logger.Info("runtime started", "pid", cmd.Process.Pid, "path", cmd.Path)

	wk, err := newWorker(ctx, cfg, stdin, r, logger)
	if err != nil {
		_ = cmd.Process.Kill()
		<-stderrDone
		_ = cmd.Wait()
		return nil, err
	}
	wk.cmd = cmd
	wk.stderrDone = stderrDone
	return wk, nil
}

// newWorker performs the handshake over an established stream pair.
func newWorker(ctx context.Context, cfg *Config, w io.WriteCloser, r io.ReadCloser, logger *slog.Logger) (*Worker, error) {
	wk := &Worker{
		w:      w,
		r:      r,
		cfg:    cfg,
		logger: logger,
	}

	payload, err := jsonBytes(cfg)
	if err != nil {
		return nil, wrap(backendWorker, "init", err)
	}

	kind, reply, err := wk.roundTrip(ctx, cfg.StartTimeout, msgInit, payload)
	if err != nil {
		return nil, wrap(backendWorker, "init", fmt.Errorf("%w: %v", ErrHandshake, err))
	}

	var ready readyReply
	if err := decodeReply(kind, reply, msgReady, &ready); err != nil {
		return nil, wrap(backendWorker, "init", fmt.Errorf("%w: %w", ErrHandshake, err))
	}
	topo, err := topologyFromReply(ready.Topology)
	if err != nil {
		return nil, wrap(backendWorker, "init", err)
	}
	wk.topo = topo

	logger.Info("runtime ready", "version", ready.Version, "delegate", cfg.Delegate, "num_faces", cfg.NumFaces)
	return wk, nil
}

// DetectForVideo sends one frame and waits for its result.
func (wk *Worker) DetectForVideo(ctx context.Context, frame Frame, timestampMs int64) (*Result, error) {
	wk.mu.Lock()
	defer wk.mu.Unlock()

	if wk.closed {
		return nil, wrap(backendWorker, "detect", ErrClosed)
	}
	if wk.broken != nil {
		return nil, wrap(backendWorker, "detect", wk.broken)
	}

	kind, reply, err := wk.roundTrip(ctx, wk.cfg.FrameTimeout, msgFrame, encodeFrame(frame, timestampMs))
	if err != nil {
		// A reply may still arrive for this frame; the stream is out of step.
		wk.broken = fmt.Errorf("stream desynchronized: %w", err)
		return nil, wrap(backendWorker, "detect", err)
	}

	res := &Result{}
	if err := decodeReply(kind, reply, msgResult, res); err != nil {
		return nil, wrap(backendWorker, "detect", err)
	}
	return res, nil
}

// Topology returns connector groups reported at handshake, or nil.
func (wk *Worker) Topology() *topology.Set {
	return wk.topo
}

// Close stops the runtime. Closing stdin asks it to exit; it is killed if it lingers.
func (wk *Worker) Close() error {
	wk.mu.Lock()
	defer wk.mu.Unlock()

	if wk.closed {
		return nil
	}
	wk.closed = true

	wk.w.Close()
	wk.r.Close()

	if wk.cmd == nil || wk.cmd.Process == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		<-wk.stderrDone
		done <- wk.cmd.Wait()
	}()

	select {
	case err := <-done:
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			return wrap(backendWorker, "close", err)
		}
	case <-time.After(3 * time.Second):
		wk.logger.Warn("runtime did not exit, killing", "pid", wk.cmd.Process.Pid)
		_ = wk.cmd.Process.Kill()
		<-done
	}
	return nil
}

// roundTrip writes one message and reads one reply, bounded by ctx and timeout.
func (wk *Worker) roundTrip(ctx context.Context, timeout time.Duration, kind byte, payload []byte) (byte, []byte, error) {
	type reply struct {
		kind    byte
		payload []byte
		err     error
	}
	done := make(chan reply, 1)

	go func() {
		if err := writeMessage(wk.w, kind, payload); err != nil {
			done <- reply{err: fmt.Errorf("write: %w", err)}
			return
		}
		k, p, err := readMessage(wk.r)
		if err != nil {
			err = fmt.Errorf("read: %w", err)
		}
		done <- reply{kind: k, payload: p, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.kind, r.payload, r.err
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	case <-timer.C:
		return 0, nil, fmt.Errorf("no reply within %v", timeout)
	}
}

func forwardStderr(r io.Reader, logger *slog.Logger, done chan<- struct{}) {
	defer close(done)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logger.Info("runtime", "line", scanner.Text())
	}
}

// Verify Worker implements Landmarker at compile time.
var _ Landmarker = (*Worker)(nil)
