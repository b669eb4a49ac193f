// Package protocol frames coordinate messages out of a byte stream.
//
// A frame on the wire is
//
//	Marker(1 byte = 0x01) ++ Length(uint32 big-endian) ++ Payload(Length bytes)
//
// where each of the three fields may additionally be wrapped in a transport
// encoding (see Codec). Length always counts payload bytes before that
// encoding is applied.
package protocol

import "fmt"

const (
	// Marker is the check value that starts every frame.
	Marker byte = 0x01
	// LengthSize is the width of the decoded length field.
	LengthSize = 4
	// DefaultMaxPayload bounds the length field; larger values are treated
	// as stream corruption.
	DefaultMaxPayload = 1 << 20
)

// State is the decoder's position within a frame.
type State int32

const (
	StateAwaitingMarker State = iota
	StateAwaitingLength
	StateAwaitingPayload
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingMarker:
		return "awaiting-marker"
	case StateAwaitingLength:
		return "awaiting-length"
	case StateAwaitingPayload:
		return "awaiting-payload"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Handler receives each validated payload. It runs on the decoder's
// goroutine; a returned error is logged and counted but does not affect
// decoding.
type Handler func(payload []byte) error

// Stats counts decoder outcomes since construction.
type Stats struct {
	Frames        uint64 `json:"frames"`
	BadMarkers    uint64 `json:"bad_markers"`
	BadLengths    uint64 `json:"bad_lengths"`
	BadPayloads   uint64 `json:"bad_payloads"`
	HandlerErrors uint64 `json:"handler_errors"`
}

// Observer is notified of decoder outcomes, typically to feed metrics.
type Observer interface {
	ObserveFrame(size int)
	ObserveReject(err error)
	ObserveHandlerError(err error)
}

type nopObserver struct{}

func (nopObserver) ObserveFrame(int)          {}
func (nopObserver) ObserveReject(error)       {}
func (nopObserver) ObserveHandlerError(error) {}
