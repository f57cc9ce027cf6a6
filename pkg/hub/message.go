// Package hub fans websocket messages out to every connected client of one
// feed. Slow clients drop messages rather than stall the feed.
package hub

import "github.com/gofiber/websocket/v2"

// MessageType selects the websocket frame a message is written as.
type MessageType int

const (
	// JSONMessage carries a status snapshot.
	JSONMessage MessageType = iota
	// BinaryMessage carries a composited JPEG frame.
	BinaryMessage
	// TextMessage carries the rendered blend shape list.
	TextMessage
)

// opcode maps the type to the websocket frame opcode.
func (t MessageType) opcode() int {
	if t == BinaryMessage {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// Message is one payload queued for every client of a feed.
type Message struct {
	Type MessageType
	Data []byte
}

func NewJSONMessage(data []byte) Message   { return Message{Type: JSONMessage, Data: data} }
func NewBinaryMessage(data []byte) Message { return Message{Type: BinaryMessage, Data: data} }
func NewTextMessage(data []byte) Message   { return Message{Type: TextMessage, Data: data} }
