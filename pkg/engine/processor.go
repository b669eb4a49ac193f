package engine

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"bodytrack/pkg/pose"
)

// Observer receives per-payload outcomes from a Processor.
type Observer interface {
	ObserveSample(elapsed time.Duration, dropped bool)
	ObserveParseError(err error)
}

type nopObserver struct{}

func (nopObserver) ObserveSample(time.Duration, bool) {}
func (nopObserver) ObserveParseError(error)           {}

// Processor turns decoded payloads into aligned samples and hands them to
// the render mailbox. HandlePayload runs on the connection's reader
// goroutine.
type Processor struct {
	parser   *pose.Parser
	aligner  *pose.Aligner
	device   pose.PositionSource
	out      *Mailbox
	log      zerolog.Logger
	observer Observer
	now      func() time.Time

	seq       atomic.Uint64
	rejected  atomic.Uint64
	lastError atomic.Value
}

type ProcessorOption func(*Processor)

func WithProcessorLogger(log zerolog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.log = log
	}
}

func WithProcessorObserver(obs Observer) ProcessorOption {
	return func(p *Processor) {
		if obs != nil {
			p.observer = obs
		}
	}
}

func NewProcessor(parser *pose.Parser, aligner *pose.Aligner, device pose.PositionSource, out *Mailbox, opts ...ProcessorOption) *Processor {
	if parser == nil {
		parser = pose.NewParser(pose.DefaultScale())
	}
	if aligner == nil {
		aligner = pose.NewAligner(pose.Vec3{})
	}
	if device == nil {
		device = pose.StaticPosition{}
	}
	if out == nil {
		out = NewMailbox(DefaultQueueSize)
	}
	p := &Processor{
		parser:   parser,
		aligner:  aligner,
		device:   device,
		out:      out,
		log:      zerolog.Nop(),
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HandlePayload is the decoder handler. A payload that does not parse is
// logged and discarded; the error is returned so the decoder counts it.
func (p *Processor) HandlePayload(payload []byte) error {
	return p.handle(payload, false)
}

// Bootstrap pushes the built-in T-pose through the same path as a live frame
// so rendering has a valid skeleton before the first connection.
func (p *Processor) Bootstrap() error {
	return p.handle([]byte(pose.TPose), true)
}

func (p *Processor) Mailbox() *Mailbox {
	return p.out
}

// Processed reports how many samples were produced.
func (p *Processor) Processed() uint64 {
	return p.seq.Load()
}

func (p *Processor) Rejected() uint64 {
	return p.rejected.Load()
}

// LastError returns the most recent parse failure, if any.
func (p *Processor) LastError() error {
	if v, ok := p.lastError.Load().(errHolder); ok {
		return v.err
	}
	return nil
}

type errHolder struct{ err error }

func (p *Processor) handle(payload []byte, bootstrap bool) error {
	start := p.now()
	device := p.device.Position()

	raw, err := p.parser.Parse(string(payload), device.Z)
	if err != nil {
		p.rejected.Add(1)
		p.lastError.Store(errHolder{err: err})
		p.observer.ObserveParseError(err)
		p.log.Warn().Err(err).Int("bytes", len(payload)).Msg("discarding payload")
		return err
	}

	joints, offset := p.aligner.Apply(raw, device)
	sample := Sample{
		Seq:       p.seq.Add(1),
		Timestamp: start,
		Joints:    joints,
		Raw:       raw,
		Offset:    offset,
		Device:    device,
		Segments:  pose.Segments(joints),
		Bootstrap: bootstrap,
	}
	dropped := p.out.Offer(sample)
	if dropped {
		p.log.Debug().Uint64("seq", sample.Seq).Msg("render queue full, dropped oldest sample")
	}
	p.observer.ObserveSample(p.now().Sub(start), dropped)
	return nil
}

// IsParseError reports whether err came from payload parsing.
func IsParseError(err error) bool {
	return errors.Is(err, pose.ErrDecode)
}
