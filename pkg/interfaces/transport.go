// Package interfaces defines the message transport used to relay audio
// between peers.
package interfaces

import (
	"context"
	"errors"
)

var (
	ErrConnectionFailed    = errors.New("connection failed")
	ErrConnectionClosed    = errors.New("connection closed")
	ErrUnsupportedProtocol = errors.New("unsupported protocol")
)

// TransportProtocol is a message-oriented, full-duplex connection.
// Receive returns a channel that is closed when the connection ends.
type TransportProtocol interface {
	Connect(ctx context.Context) error
	Send(data []byte, msgType MessageType) error
	Receive() <-chan Message
	Close() error
	ProtocolType() string
}

type Message struct {
	Payload []byte
	Type    MessageType
}

type MessageType int

const (
	MsgText    MessageType = iota // JSON control messages
	MsgBinary                     // encoded audio frames
	MsgControl                    // transport-level frames
)

func (t MessageType) String() string {
	switch t {
	case MsgText:
		return "text"
	case MsgBinary:
		return "binary"
	case MsgControl:
		return "control"
	default:
		return "unknown"
	}
}
