package protocol

import "errors"

var (
	ErrBadMarker  = errors.New("protocol: bad marker")
	ErrBadLength  = errors.New("protocol: bad length")
	ErrBadPayload = errors.New("protocol: bad payload")
	ErrClosed     = errors.New("protocol: decoder closed")
	ErrTooLarge   = errors.New("protocol: payload too large")
)

// IsFramingError reports whether err is a recoverable framing problem rather
// than a transport failure.
func IsFramingError(err error) bool {
	return errors.Is(err, ErrBadMarker) || errors.Is(err, ErrBadLength) || errors.Is(err, ErrBadPayload)
}
