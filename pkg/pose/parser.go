package pose

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrDecode marks a coordinate payload that could not be turned into a full
// JointSet.
var ErrDecode = errors.New("pose: decode failed")

const (
	DefaultScaleBase = 85.0
	DefaultScaleGain = 5.0
)

const (
	gridOpen  = "[[["
	gridClose = "]]]"
	rowSep    = "]["
)

var rowGap = regexp.MustCompile(`\]\s+\[`)

// number admits plain decimal and scientific notation only. ParseFloat alone
// would also take hex floats, digit separators and inf/nan spellings.
var number = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// Scale converts estimator pixel units to display units. The divisor grows
// with the device's forward distance.
type Scale struct {
	Base float64 `toml:"base"`
	Gain float64 `toml:"gain"`
}

func DefaultScale() Scale {
	return Scale{Base: DefaultScaleBase, Gain: DefaultScaleGain}
}

// Divisor returns Base + Gain*depth.
func (s Scale) Divisor(depth float64) float64 {
	return s.Base + s.Gain*depth
}

// Parser decodes the bracketed coordinate grid produced by the estimator.
// It holds no state besides its scale and is safe for concurrent use.
type Parser struct {
	scale Scale
}

func NewParser(scale Scale) *Parser {
	return &Parser{scale: scale}
}

func (p *Parser) Scale() Scale {
	return p.scale
}

// Parse decodes payload into a JointSet, dividing every component by the
// scale divisor for depth. Any malformed row fails the whole payload.
func (p *Parser) Parse(payload string, depth float64) (JointSet, error) {
	var out JointSet

	divisor := p.scale.Divisor(depth)
	if divisor <= 0 {
		return out, fmt.Errorf("%w: non-positive scale divisor %g", ErrDecode, divisor)
	}

	rows, err := splitRows(payload)
	if err != nil {
		return out, err
	}

	for i, row := range rows {
		tokens := strings.Fields(row)
		if len(tokens) != 3 {
			return JointSet{}, fmt.Errorf("%w: row %d has %d values, want 3", ErrDecode, i, len(tokens))
		}
		var xyz [3]float64
		for k, tok := range tokens {
			if !number.MatchString(tok) {
				return JointSet{}, fmt.Errorf("%w: row %d value %d %q is not a decimal number", ErrDecode, i, k, tok)
			}
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return JointSet{}, fmt.Errorf("%w: row %d value %d %q: %v", ErrDecode, i, k, tok, err)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return JointSet{}, fmt.Errorf("%w: row %d value %d %q is not finite", ErrDecode, i, k, tok)
			}
			xyz[k] = v / divisor
		}
		out[i] = Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]}
	}
	return out, nil
}

func splitRows(payload string) ([]string, error) {
	body := strings.TrimSpace(payload)
	if !strings.HasPrefix(body, gridOpen) || !strings.HasSuffix(body, gridClose) || len(body) < len(gridOpen)+len(gridClose) {
		return nil, fmt.Errorf("%w: payload is not a [[[ ... ]]] grid", ErrDecode)
	}
	body = body[len(gridOpen) : len(body)-len(gridClose)]
	body = rowGap.ReplaceAllString(body, rowSep)

	rows := strings.Split(body, rowSep)
	if len(rows) != JointCount {
		return nil, fmt.Errorf("%w: got %d rows, want %d", ErrDecode, len(rows), JointCount)
	}
	return rows, nil
}
