package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
)

// EncodeFrame builds one wire frame for payload.
func EncodeFrame(codec Codec, payload []byte) ([]byte, error) {
	if codec == nil {
		codec = RawCodec{}
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(payload))
	}

	var length [LengthSize]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(payload)))

	marker := codec.Encode([]byte{Marker})
	size := codec.Encode(length[:])
	body := codec.Encode(payload)

	out := make([]byte, 0, len(marker)+len(size)+len(body))
	out = append(out, marker...)
	out = append(out, size...)
	out = append(out, body...)
	return out, nil
}

// Writer writes whole frames to an io.Writer. It is safe for concurrent use.
type Writer struct {
	mu    sync.Mutex
	w     io.Writer
	codec Codec
}

func NewWriter(w io.Writer, codec Codec) *Writer {
	if codec == nil {
		codec = RawCodec{}
	}
	return &Writer{w: w, codec: codec}
}

func (w *Writer) WriteFrame(payload []byte) error {
	frame, err := EncodeFrame(w.codec, payload)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.w.Write(frame)
	return err
}
