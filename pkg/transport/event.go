package transport

import (
	"time"

	"bodytrack/pkg/protocol"
)

type EventKind int

const (
	EventConnected EventKind = iota + 1
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is a connection state change. Err is set when a connection ended on
// a transport failure rather than a clean close; Stats carries the decoder
// counters for the finished connection.
type Event struct {
	Kind    EventKind
	Session string
	Remote  string
	Err     error
	Stats   protocol.Stats
	At      time.Time
}
