package recorder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"bodytrack/pkg/engine"
)

const maxLineBytes = 1 << 20

// JSONLWriter appends one JSON object per frame.
type JSONLWriter struct {
	mu      sync.Mutex
	enc     *json.Encoder
	session string
	written uint64
}

func NewJSONLWriter(w io.Writer, session string) *JSONLWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{
		enc:     enc,
		session: session,
	}
}

func (j *JSONLWriter) Write(s engine.Sample) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(FrameFromSample(j.session, s)); err != nil {
		return err
	}
	j.written++
	return nil
}

func (j *JSONLWriter) Written() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.written
}

// Consume writes samples from in until it closes or ctx is done. The first
// write error stops consumption.
func (j *JSONLWriter) Consume(ctx context.Context, in <-chan engine.Sample) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-in:
			if !ok {
				return nil
			}
			if err := j.Write(s); err != nil {
				return fmt.Errorf("write jsonl frame %d: %w", s.Seq, err)
			}
		}
	}
}

// ReadJSONL loads frames written by JSONLWriter. Blank lines are skipped.
func ReadJSONL(r io.Reader) ([]Frame, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var (
		frames []Frame
		line   int
	)
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		frames = append(frames, f)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}
