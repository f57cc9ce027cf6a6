package landmarker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-facemesh/pkg/topology"
)

const backendRemote = "remote"

// Message types exchanged with a remote runtime over websocket.
const (
	envInit   = "init"
	envReady  = "ready"
	envFrame  = "frame"
	envResult = "result"
	envError  = "error"
)

// envelope is the JSON text message of the remote protocol. A frame
// envelope is followed by one binary message carrying the JPEG.
type envelope struct {
	Type        string                           `json:"type"`
	ID          string                           `json:"id,omitempty"`
	TimestampMs int64                            `json:"timestampMs,omitempty"`
	Width       int                              `json:"width,omitempty"`
	Height      int                              `json:"height,omitempty"`
	Options     *Config                          `json:"options,omitempty"`
	Version     string                           `json:"version,omitempty"`
	Topology    map[string][]topology.Connection `json:"topology,omitempty"`
	Result      *Result                          `json:"result,omitempty"`
	Message     string                           `json:"message,omitempty"`
}

// Remote talks to a landmarker server over a websocket.
type Remote struct {
	url    string
	conn   *websocket.Conn
	cfg    *Config
	topo   *topology.Set
	logger *slog.Logger

	// replies is fed by readLoop. done closes when the connection fails;
	// readErr is set before that. closing stops readLoop on Close.
	replies chan envelope
	done    chan struct{}
	readErr error
	closing chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewRemoteFactory returns a Factory that dials url (ws:// or wss://).
func NewRemoteFactory(url string, header http.Header) Factory {
	return func(ctx context.Context, cfg *Config) (Landmarker, error) {
		return DialRemote(ctx, url, header, cfg)
	}
}

// DialRemote connects and performs the construction handshake.
func DialRemote(ctx context.Context, url string, header http.Header, cfg *Config) (*Remote, error) {
	logger := cfg.Logger.With("component", "landmarker.remote", "url", url)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, wrap(backendRemote, "dial", err)
	}

	r := &Remote{
		url:     url,
		conn:    conn,
		cfg:     cfg,
		logger:  logger,
		replies: make(chan envelope, 16),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}

	if err := r.handshake(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	go r.readLoop()
	return r, nil
}

// readLoop is the only reader after the handshake. A read error ends it and
// fails every later DetectForVideo.
func (r *Remote) readLoop() {
	defer close(r.done)
	for {
		var env envelope
		if err := r.conn.ReadJSON(&env); err != nil {
			r.readErr = err
			return
		}
		select {
		case r.replies <- env:
		case <-r.closing:
			return
		}
	}
}

func (r *Remote) handshake(ctx context.Context) error {
	r.conn.SetWriteDeadline(deadline(ctx, r.cfg.StartTimeout))
	if err := r.conn.WriteJSON(envelope{Type: envInit, Options: r.cfg}); err != nil {
		return wrap(backendRemote, "init", fmt.Errorf("%w: %v", ErrHandshake, err))
	}

	r.conn.SetReadDeadline(deadline(ctx, r.cfg.StartTimeout))
	var reply envelope
	if err := r.conn.ReadJSON(&reply); err != nil {
		return wrap(backendRemote, "init", fmt.Errorf("%w: %v", ErrHandshake, err))
	}

	switch reply.Type {
	case envReady:
	case envError:
		return wrap(backendRemote, "init", fmt.Errorf("%w: %w", ErrHandshake, &remoteError{Message: reply.Message}))
	default:
		return wrap(backendRemote, "init", fmt.Errorf("%w: unexpected %q", ErrHandshake, reply.Type))
	}

	topo, err := topologyFromReply(reply.Topology)
	if err != nil {
		return wrap(backendRemote, "init", err)
	}
	r.topo = topo
	r.conn.SetReadDeadline(time.Time{})

	r.logger.Info("runtime ready", "version", reply.Version, "delegate", r.cfg.Delegate)
	return nil
}

// DetectForVideo sends one frame and waits for the result carrying its id.
// A frame that times out leaves the connection usable: its late reply is
// discarded when the next frame reads past it.
func (r *Remote) DetectForVideo(ctx context.Context, frame Frame, timestampMs int64) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, wrap(backendRemote, "detect", ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return nil, wrap(backendRemote, "detect", err)
	}
	select {
	case <-r.done:
		return nil, wrap(backendRemote, "detect", fmt.Errorf("%w: connection lost: %v", ErrClosed, r.readErr))
	default:
	}

	id := uuid.NewString()

	r.conn.SetWriteDeadline(deadline(ctx, r.cfg.FrameTimeout))
	if err := r.conn.WriteJSON(envelope{
		Type:        envFrame,
		ID:          id,
		TimestampMs: timestampMs,
		Width:       frame.Width,
		Height:      frame.Height,
	}); err != nil {
		return nil, wrap(backendRemote, "detect", err)
	}
	if err := r.conn.WriteMessage(websocket.BinaryMessage, frame.JPEG); err != nil {
		return nil, wrap(backendRemote, "detect", err)
	}

	timer := time.NewTimer(r.cfg.FrameTimeout)
	defer timer.Stop()

	for {
		select {
		case reply := <-r.replies:
			if reply.ID != id {
				r.logger.Debug("dropping stale reply", "id", reply.ID)
				continue
			}
			switch reply.Type {
			case envResult:
				if reply.Result == nil {
					return &Result{}, nil
				}
				return reply.Result, nil
			case envError:
				return nil, wrap(backendRemote, "detect", &remoteError{Message: reply.Message})
			default:
				return nil, wrap(backendRemote, "detect", fmt.Errorf("%w: unexpected %q", ErrProtocol, reply.Type))
			}
		case <-r.done:
			return nil, wrap(backendRemote, "detect", fmt.Errorf("%w: connection lost: %v", ErrClosed, r.readErr))
		case <-timer.C:
			return nil, wrap(backendRemote, "detect", fmt.Errorf("no reply within %v", r.cfg.FrameTimeout))
		case <-ctx.Done():
			return nil, wrap(backendRemote, "detect", ctx.Err())
		}
	}
}

// Topology returns connector groups reported at handshake, or nil.
func (r *Remote) Topology() *topology.Set {
	return r.topo
}

// Close sends a close frame and drops the connection.
func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	close(r.closing)

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = r.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return r.conn.Close()
}

// deadline returns the earlier of ctx's deadline and now+timeout.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	dl := time.Now().Add(timeout)
	if ctxDl, ok := ctx.Deadline(); ok && ctxDl.Before(dl) {
		return ctxDl
	}
	return dl
}

// Verify Remote implements Landmarker at compile time.
var _ Landmarker = (*Remote)(nil)
