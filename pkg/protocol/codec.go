package protocol

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Codec is the transport encoding wrapped around each frame field.
type Codec interface {
	Name() string
	// MarkerWidth and LengthWidth are the encoded widths of the marker and
	// length fields.
	MarkerWidth() int
	LengthWidth() int
	// PayloadWidth is the encoded width of an n byte payload.
	PayloadWidth(n uint32) int
	// Decode reverses the encoding of one field and fails unless exactly n
	// bytes result.
	Decode(field []byte, n int) ([]byte, error)
	Encode(raw []byte) []byte
}

const (
	CodecRaw    = "raw"
	CodecBase64 = "base64"
)

// CodecByName resolves a configured transport encoding.
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CodecRaw:
		return RawCodec{}, nil
	case CodecBase64:
		return Base64Codec{}, nil
	default:
		return nil, fmt.Errorf("unknown transport encoding %q", name)
	}
}

// RawCodec carries fields as plain bytes.
type RawCodec struct{}

func (RawCodec) Name() string              { return CodecRaw }
func (RawCodec) MarkerWidth() int          { return 1 }
func (RawCodec) LengthWidth() int          { return LengthSize }
func (RawCodec) PayloadWidth(n uint32) int { return int(n) }

func (RawCodec) Decode(field []byte, n int) ([]byte, error) {
	if len(field) != n {
		return nil, fmt.Errorf("raw field has %d bytes, want %d", len(field), n)
	}
	return append([]byte(nil), field...), nil
}

func (RawCodec) Encode(raw []byte) []byte {
	return append([]byte(nil), raw...)
}

// Base64Codec encodes every field separately with padded standard base64,
// so the marker is always "AQ==" and the length field is eight characters.
// Decoding is strict: non-zero padding bits reject the field, so only the
// canonical marker matches during resync.
type Base64Codec struct{}

var strictBase64 = base64.StdEncoding.Strict()

func (Base64Codec) Name() string     { return CodecBase64 }
func (Base64Codec) MarkerWidth() int { return base64.StdEncoding.EncodedLen(1) }
func (Base64Codec) LengthWidth() int { return base64.StdEncoding.EncodedLen(LengthSize) }

func (Base64Codec) PayloadWidth(n uint32) int {
	return base64.StdEncoding.EncodedLen(int(n))
}

func (Base64Codec) Decode(field []byte, n int) ([]byte, error) {
	out := make([]byte, strictBase64.DecodedLen(len(field)))
	m, err := strictBase64.Decode(out, field)
	if err != nil {
		return nil, err
	}
	if m != n {
		return nil, fmt.Errorf("base64 field decodes to %d bytes, want %d", m, n)
	}
	return out[:m], nil
}

func (Base64Codec) Encode(raw []byte) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(out, raw)
	return out
}
