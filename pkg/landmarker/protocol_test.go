package landmarker

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestFrameEncoding(t *testing.T) {
	frame := Frame{JPEG: []byte{0xff, 0xd8, 0x01, 0x02, 0xff, 0xd9}, Width: 1280, Height: 720}
	payload := encodeFrame(frame, 1234567)

	if len(payload) != frameHeaderSize+len(frame.JPEG) {
		t.Fatalf("Unexpected payload size %d", len(payload))
	}

	got, ts, err := decodeFrame(payload)
	if err != nil {
		t.Fatalf("decodeFrame failed: %v", err)
	}
	if ts != 1234567 {
		t.Errorf("Expected timestamp 1234567, got %d", ts)
	}
	if got.Width != 1280 || got.Height != 720 {
		t.Errorf("Expected 1280x720, got %dx%d", got.Width, got.Height)
	}
	if !bytes.Equal(got.JPEG, frame.JPEG) {
		t.Errorf("JPEG bytes differ")
	}

	if _, _, err := decodeFrame(payload[:10]); !errors.Is(err, ErrProtocol) {
		t.Errorf("Expected ErrProtocol for short payload, got %v", err)
	}
}

func TestMessageFraming(t *testing.T) {
	var buf bytes.Buffer
	if err := writeMessage(&buf, msgFrame, []byte("abc")); err != nil {
		t.Fatalf("writeMessage failed: %v", err)
	}
	if err := writeJSON(&buf, msgResult, Result{}); err != nil {
		t.Fatalf("writeJSON failed: %v", err)
	}

	raw := buf.Bytes()
	if n := binary.BigEndian.Uint32(raw[:4]); n != 4 {
		t.Errorf("Expected length 4 (kind + 3 bytes), got %d", n)
	}

	kind, payload, err := readMessage(&buf)
	if err != nil {
		t.Fatalf("readMessage failed: %v", err)
	}
	if kind != msgFrame || string(payload) != "abc" {
		t.Errorf("Unexpected first message %q %q", kind, payload)
	}

	kind, payload, err = readMessage(&buf)
	if err != nil {
		t.Fatalf("readMessage failed: %v", err)
	}
	if kind != msgResult {
		t.Errorf("Expected result kind, got %q", kind)
	}
	res := &Result{}
	if err := decodeReply(kind, payload, msgResult, res); err != nil {
		t.Errorf("decodeReply failed: %v", err)
	}
}

func TestReadMessageRejectsBadLength(t *testing.T) {
	tests := []struct {
		name   string
		length uint32
	}{
		{"zero", 0},
		{"oversized", maxMessageSize + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var header [4]byte
			binary.BigEndian.PutUint32(header[:], tt.length)
			_, _, err := readMessage(bytes.NewReader(header[:]))
			if !errors.Is(err, ErrProtocol) {
				t.Errorf("Expected ErrProtocol, got %v", err)
			}
		})
	}
}

func TestDecodeReply(t *testing.T) {
	tests := []struct {
		name    string
		kind    byte
		payload string
		wantErr string
	}{
		{"expected kind", msgReady, `{"version":"1"}`, ""},
		{"runtime error", msgError, `{"message":"model not found"}`, "runtime: model not found"},
		{"raw runtime error", msgError, `boom`, "runtime: boom"},
		{"wrong kind", msgResult, `{}`, "unexpected message kind"},
		{"bad json", msgReady, `{`, "decode reply"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ready readyReply
			err := decodeReply(tt.kind, []byte(tt.payload), msgReady, &ready)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			if err == nil || !bytes.Contains([]byte(err.Error()), []byte(tt.wantErr)) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
