package protocol

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const defaultReaderBuf = 64 * 1024

// Decoder turns an arbitrarily chunked byte stream into validated payloads.
// Framing errors are skipped and the stream is rescanned for the next marker;
// only transport errors end decoding. A Decoder serves one connection and is
// not reused once closed.
type Decoder struct {
	r           *bufio.Reader
	codec       Codec
	handler     Handler
	log         zerolog.Logger
	observer    Observer
	maxPayload  uint32
	resyncDelay time.Duration
	bufSize     int

	state  atomic.Int32
	length uint32

	frames        atomic.Uint64
	badMarkers    atomic.Uint64
	badLengths    atomic.Uint64
	badPayloads   atomic.Uint64
	handlerErrors atomic.Uint64
}

type DecoderOption func(*Decoder)

func WithCodec(c Codec) DecoderOption {
	return func(d *Decoder) {
		if c != nil {
			d.codec = c
		}
	}
}

func WithLogger(log zerolog.Logger) DecoderOption {
	return func(d *Decoder) {
		d.log = log
	}
}

func WithObserver(o Observer) DecoderOption {
	return func(d *Decoder) {
		if o != nil {
			d.observer = o
		}
	}
}

func WithMaxPayload(n uint32) DecoderOption {
	return func(d *Decoder) {
		if n > 0 {
			d.maxPayload = n
		}
	}
}

// WithResyncDelay pauses the decoder after a malformed length or payload
// before it resumes scanning.
func WithResyncDelay(delay time.Duration) DecoderOption {
	return func(d *Decoder) {
		if delay >= 0 {
			d.resyncDelay = delay
		}
	}
}

func WithReaderBuffer(n int) DecoderOption {
	return func(d *Decoder) {
		if n > 0 {
			d.bufSize = n
		}
	}
}

func NewDecoder(r io.Reader, handler Handler, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		codec:      RawCodec{},
		handler:    handler,
		log:        zerolog.Nop(),
		observer:   nopObserver{},
		maxPayload: DefaultMaxPayload,
		bufSize:    defaultReaderBuf,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.r = bufio.NewReaderSize(r, max(d.bufSize, d.codec.MarkerWidth(), d.codec.LengthWidth()))
	d.setState(StateAwaitingMarker)
	return d
}

func (d *Decoder) State() State {
	return State(d.state.Load())
}

func (d *Decoder) setState(s State) {
	d.state.Store(int32(s))
}

func (d *Decoder) Stats() Stats {
	return Stats{
		Frames:        d.frames.Load(),
		BadMarkers:    d.badMarkers.Load(),
		BadLengths:    d.badLengths.Load(),
		BadPayloads:   d.badPayloads.Load(),
		HandlerErrors: d.handlerErrors.Load(),
	}
}

// Run decodes frames and dispatches them to the handler until the transport
// fails or ctx is done. It always returns a non-nil error and leaves the
// decoder closed. Cancelling ctx does not interrupt a blocked read; the
// owner must also close the underlying connection.
func (d *Decoder) Run(ctx context.Context) error {
	for {
		payload, err := d.Next(ctx)
		if err != nil {
			return err
		}
		d.dispatch(payload)
	}
}

// Next blocks until the next valid frame and returns its payload without
// invoking the handler.
func (d *Decoder) Next(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, d.close(err)
		}

		switch d.State() {
		case StateClosed:
			return nil, ErrClosed

		case StateAwaitingMarker:
			ok, err := d.readMarker()
			if err != nil {
				return nil, d.close(err)
			}
			if ok {
				d.setState(StateAwaitingLength)
			}

		case StateAwaitingLength:
			n, err := d.readLength()
			if err != nil {
				if !errors.Is(err, ErrBadLength) {
					return nil, d.close(err)
				}
				d.badLengths.Add(1)
				if err := d.resync(ctx, err); err != nil {
					return nil, d.close(err)
				}
				continue
			}
			d.length = n
			d.setState(StateAwaitingPayload)

		case StateAwaitingPayload:
			payload, err := d.readPayload(d.length)
			if err != nil {
				if !errors.Is(err, ErrBadPayload) {
					return nil, d.close(err)
				}
				d.badPayloads.Add(1)
				if err := d.resync(ctx, err); err != nil {
					return nil, d.close(err)
				}
				continue
			}
			d.setState(StateAwaitingMarker)
			return payload, nil
		}
	}
}

// readMarker reports whether a marker was consumed. A mismatch discards a
// single byte so a misaligned encoded stream can slide back into phase.
func (d *Decoder) readMarker() (bool, error) {
	width := d.codec.MarkerWidth()
	field, err := d.r.Peek(width)
	if err != nil {
		return false, err
	}
	decoded, derr := d.codec.Decode(field, 1)
	if derr != nil || decoded[0] != Marker {
		d.log.Debug().Hex("byte", field[:1]).Msg("skipping byte while scanning for marker")
		d.badMarkers.Add(1)
		d.observer.ObserveReject(ErrBadMarker)
		_, _ = d.r.Discard(1)
		return false, nil
	}
	_, err = d.r.Discard(width)
	return true, err
}

// readLength leaves the length field unread on rejection so its bytes are
// rescanned for a marker.
func (d *Decoder) readLength() (uint32, error) {
	width := d.codec.LengthWidth()
	field, err := d.r.Peek(width)
	if err != nil {
		return 0, err
	}
	decoded, err := d.codec.Decode(field, LengthSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadLength, err)
	}
	n := binary.BigEndian.Uint32(decoded)
	if n > d.maxPayload {
		return 0, fmt.Errorf("%w: %w: %d exceeds limit %d", ErrBadLength, ErrTooLarge, n, d.maxPayload)
	}
	if _, err := d.r.Discard(width); err != nil {
		return 0, err
	}
	return n, nil
}

func (d *Decoder) readPayload(n uint32) ([]byte, error) {
	field := make([]byte, d.codec.PayloadWidth(n))
	if _, err := io.ReadFull(d.r, field); err != nil {
		return nil, err
	}
	payload, err := d.codec.Decode(field, int(n))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return payload, nil
}

func (d *Decoder) resync(ctx context.Context, cause error) error {
	d.observer.ObserveReject(cause)
	d.log.Warn().Err(cause).Msg("discarding malformed frame")
	d.setState(StateAwaitingMarker)
	if d.resyncDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(d.resyncDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (d *Decoder) dispatch(payload []byte) {
	d.frames.Add(1)
	d.observer.ObserveFrame(len(payload))
	if d.handler == nil {
		return
	}
	if err := d.invoke(payload); err != nil {
		d.handlerErrors.Add(1)
		d.observer.ObserveHandlerError(err)
		d.log.Warn().Err(err).Int("bytes", len(payload)).Msg("payload handler failed")
	}
}

func (d *Decoder) invoke(payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("payload handler panic: %v", r)
		}
	}()
	return d.handler(payload)
}

func (d *Decoder) close(err error) error {
	d.setState(StateClosed)
	return err
}
