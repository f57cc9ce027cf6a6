package landmarker

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/teslashibe/go-facemesh/pkg/topology"
)

// Wire protocol shared with the runtime process:
//
//	[uint32 big-endian length][kind byte][payload (length-1 bytes)]
//
// A frame payload is [int64 timestamp ms][uint32 width][uint32 height][JPEG].
// Every other payload is JSON.
const (
	msgInit   byte = 'I' // host -> runtime: Config
	msgReady  byte = 'R' // runtime -> host: readyReply
	msgFrame  byte = 'F' // host -> runtime: frame header + JPEG
	msgResult byte = 'D' // runtime -> host: Result
	msgError  byte = 'E' // runtime -> host: remoteError

	frameHeaderSize = 16
	maxMessageSize  = 32 << 20
)

// readyReply acknowledges construction. Topology holds connector groups the
// runtime ships with its model, keyed by group name.
type readyReply struct {
	Version  string                           `json:"version"`
	Topology map[string][]topology.Connection `json:"topology,omitempty"`
}

func writeMessage(w io.Writer, kind byte, payload []byte) error {
	if len(payload)+1 > maxMessageSize {
		return fmt.Errorf("%w: message of %d bytes exceeds limit", ErrProtocol, len(payload))
	}
	var header [5]byte
	binary.BigEndian.PutUint32(header[:4], uint32(len(payload)+1))
	header[4] = kind
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func writeJSON(w io.Writer, kind byte, v any) error {
	data, err := jsonBytes(v)
	if err != nil {
		return err
	}
	return writeMessage(w, kind, data)
}

func jsonBytes(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return data, nil
}

func readMessage(r io.Reader) (byte, []byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n == 0 || n > maxMessageSize {
		return 0, nil, fmt.Errorf("%w: bad message length %d", ErrProtocol, n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return body[0], body[1:], nil
}

func encodeFrame(frame Frame, timestampMs int64) []byte {
	buf := make([]byte, frameHeaderSize+len(frame.JPEG))
	binary.BigEndian.PutUint64(buf[0:8], uint64(timestampMs))
	binary.BigEndian.PutUint32(buf[8:12], uint32(frame.Width))
	binary.BigEndian.PutUint32(buf[12:16], uint32(frame.Height))
	copy(buf[frameHeaderSize:], frame.JPEG)
	return buf
}

func decodeFrame(payload []byte) (Frame, int64, error) {
	if len(payload) < frameHeaderSize {
		return Frame{}, 0, fmt.Errorf("%w: short frame payload", ErrProtocol)
	}
	ts := int64(binary.BigEndian.Uint64(payload[0:8]))
	f := Frame{
		Width:  int(binary.BigEndian.Uint32(payload[8:12])),
		Height: int(binary.BigEndian.Uint32(payload[12:16])),
		JPEG:   payload[frameHeaderSize:],
	}
	return f, ts, nil
}

// decodeReply interprets a runtime reply of the expected kind.
func decodeReply(kind byte, payload []byte, want byte, v any) error {
	switch kind {
	case want:
		if err := json.Unmarshal(payload, v); err != nil {
			return fmt.Errorf("%w: decode reply: %v", ErrProtocol, err)
		}
		return nil
	case msgError:
		re := &remoteError{}
		if err := json.Unmarshal(payload, re); err != nil || re.Message == "" {
			re.Message = string(payload)
		}
		return re
	default:
		return fmt.Errorf("%w: unexpected message kind %q", ErrProtocol, kind)
	}
}

// topologyFromReply converts reply groups into a set, or nil when absent.
func topologyFromReply(groups map[string][]topology.Connection) (*topology.Set, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	return topology.FromMap(groups)
}
