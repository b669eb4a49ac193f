package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"bodytrack/pkg/bridge/foxglove"
	"bodytrack/pkg/config"
	"bodytrack/pkg/engine"
	"bodytrack/pkg/metrics"
	"bodytrack/pkg/pose"
	"bodytrack/pkg/protocol"
	"bodytrack/pkg/recorder"
	"bodytrack/pkg/transport"
)

type pipelineOptions struct {
	// foxglove and metrics sinks can be turned off per command.
	noFoxglove bool
	noMetrics  bool
}

// pipeline is the running receive, align and render chain. Everything it
// starts stops when the context passed to startPipeline is done; callers
// cancel that context when startPipeline fails.
type pipeline struct {
	cfg       config.Config
	log       zerolog.Logger
	metrics   *metrics.Metrics
	device    *pose.LivePosition
	processor *engine.Processor
	ticker    *engine.Ticker
	hub       *engine.Hub
	bridge    *foxglove.Server
	listener  *transport.Listener
	store     *recorder.Store
	session   recorder.Session

	wg      sync.WaitGroup
	errMu   sync.Mutex
	errs    []error
	closers []func() error
	started time.Time
}

func startPipeline(ctx context.Context, cfg config.Config, log zerolog.Logger, opts pipelineOptions) (*pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timings := cfg.Durations()
	codec, err := protocol.CodecByName(cfg.Server.Transport)
	if err != nil {
		return nil, err
	}
	mode, err := transport.ParseMode(cfg.Server.Mode)
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(),
		device:  pose.NewLivePosition(cfg.Alignment.Device),
		hub:     engine.NewHub(),
		started: time.Now(),
	}

	mailbox := engine.NewMailbox(cfg.Render.QueueSize)
	p.metrics.WatchMailbox(mailbox)
	p.metrics.WatchHub(p.hub)
	p.processor = engine.NewProcessor(
		pose.NewParser(cfg.Scale),
		pose.NewAligner(cfg.Alignment.Reference),
		p.device,
		mailbox,
		engine.WithProcessorLogger(log.With().Str("component", "processor").Logger()),
		engine.WithProcessorObserver(p.metrics),
	)

	// The hub must be running before anything subscribes.
	p.goRun(func() error {
		p.hub.Run(ctx)
		return nil
	})

	p.ticker = engine.NewTicker(mailbox, p.hub, timings.RenderTick)
	if err := p.processor.Bootstrap(); err != nil {
		return nil, fmt.Errorf("bootstrap pose: %w", err)
	}

	if err := p.startRecorders(ctx); err != nil {
		p.close()
		return nil, err
	}
	if cfg.Foxglove.Enabled && !opts.noFoxglove {
		if err := p.startBridge(ctx); err != nil {
			p.close()
			return nil, err
		}
	}

	// Sinks are subscribed; the first tick renders the bootstrap pose.
	p.goRun(func() error {
		p.ticker.Run(ctx)
		return nil
	})
	if cfg.Metrics.Addr != "" && !opts.noMetrics {
		if err := p.startMetrics(ctx); err != nil {
			p.close()
			return nil, err
		}
	}

	listener, err := transport.StartListener(ctx, cfg.Server.Addr, p.processor.HandlePayload,
		transport.WithMode(mode),
		transport.WithReadTimeout(timings.ReadTimeout),
		transport.WithReconnectInterval(timings.Reconnect),
		transport.WithReconnectMax(timings.ReconnectMax),
		transport.WithLogger(log.With().Str("component", "transport").Logger()),
		transport.WithDecoderOptions(
			protocol.WithCodec(codec),
			protocol.WithObserver(p.metrics),
			protocol.WithMaxPayload(uint32(cfg.Server.MaxPayload)),
			protocol.WithResyncDelay(timings.ResyncDelay),
			protocol.WithReaderBuffer(cfg.Server.ReaderBuf),
		),
	)
	if err != nil {
		p.close()
		return nil, err
	}
	p.listener = listener
	p.goRun(func() error {
		p.watchEvents(ctx)
		return nil
	})
	return p, nil
}

func (p *pipeline) goRun(fn func() error) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.recordErr(fn())
	}()
}

func (p *pipeline) recordErr(err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	p.errMu.Lock()
	p.errs = append(p.errs, err)
	p.errMu.Unlock()
}

func (p *pipeline) startRecorders(ctx context.Context) error {
	jsonlPath := p.cfg.ResolvePath(p.cfg.Record.JSONL)
	sqlitePath := p.cfg.ResolvePath(p.cfg.Record.SQLite)

	var store *recorder.Store
	if sqlitePath != "" {
		var err error
		store, err = recorder.Open(ctx, sqlitePath)
		if err != nil {
			return err
		}
		p.store = store
		p.closers = append(p.closers, store.Close)

		session, err := store.BeginSession(ctx, p.cfg.Server.Addr)
		if err != nil {
			return err
		}
		p.session = session
		sub := p.hub.Subscribe("sqlite")
		p.goRun(func() error {
			err := store.Consume(ctx, session.ID, sub)
			endCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if endErr := store.EndSession(endCtx, session.ID); endErr != nil {
				p.log.Warn().Err(endErr).Str("session", session.ID).Msg("end recording session")
			}
			return err
		})
		p.log.Info().Str("path", sqlitePath).Str("session", session.ID).Msg("recording frames to sqlite")
	}

	if jsonlPath != "" {
		if err := os.MkdirAll(filepath.Dir(jsonlPath), 0o755); err != nil {
			return fmt.Errorf("create jsonl dir: %w", err)
		}
		f, err := os.OpenFile(jsonlPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open jsonl: %w", err)
		}
		p.closers = append(p.closers, f.Close)
		session := p.session.ID
		if session == "" {
			session = fmt.Sprintf("run-%d", p.started.Unix())
		}
		w := recorder.NewJSONLWriter(f, session)
		sub := p.hub.Subscribe("jsonl")
		p.goRun(func() error {
			return w.Consume(ctx, sub)
		})
		p.log.Info().Str("path", jsonlPath).Msg("recording frames to jsonl")
	}
	return nil
}

func (p *pipeline) startBridge(ctx context.Context) error {
	fc := p.cfg.Foxglove
	bridgeCfg := foxglove.DefaultConfig()
	bridgeCfg.WSAddr = fc.WSAddr
	bridgeCfg.JointsTopic = fc.JointsTopic
	bridgeCfg.MarkerTopic = fc.MarkerTopic
	bridgeCfg.LogTopic = fc.LogTopic
	bridgeCfg.LogName = fc.LogName
	bridgeCfg.ParentFrameID = fc.ParentFrame
	bridgeCfg.FrameID = fc.FrameID

	p.bridge = foxglove.NewServer(bridgeCfg, p.hub,
		foxglove.WithLogger(p.log.With().Str("component", "foxglove").Logger()))

	runErr := make(chan error, 1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		err := p.bridge.Run(ctx)
		p.recordErr(err)
		runErr <- err
	}()

	// Wait for the bridge to subscribe so it sees the bootstrap pose.
	bound := make(chan struct{})
	go func() {
		if _, err := p.bridge.Addr(ctx); err == nil {
			close(bound)
		}
	}()
	select {
	case <-bound:
		return nil
	case err := <-runErr:
		if err == nil {
			return ctx.Err()
		}
		return fmt.Errorf("foxglove bridge: %w", err)
	}
}

func (p *pipeline) startMetrics(ctx context.Context) error {
	ln, err := net.Listen("tcp", p.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("listen metrics %s: %w", p.cfg.Metrics.Addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	p.goRun(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	p.log.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")
	return nil
}

func (p *pipeline) watchEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.listener.Events():
			p.metrics.ObserveEvent(ev)
			if p.bridge == nil {
				continue
			}
			switch {
			case ev.Kind == transport.EventConnected:
				p.bridge.PublishLog(foxglove.LevelInfo, fmt.Sprintf("coordinate stream connected from %s", ev.Remote))
			case ev.Err != nil:
				p.bridge.PublishLog(foxglove.LevelWarning, fmt.Sprintf("coordinate stream from %s failed: %v", ev.Remote, ev.Err))
			default:
				p.bridge.PublishLog(foxglove.LevelInfo, fmt.Sprintf("coordinate stream from %s closed after %d frames", ev.Remote, ev.Stats.Frames))
			}
		}
	}
}

// Wait blocks until every component has stopped and returns the first
// component failure, if any.
func (p *pipeline) Wait() error {
	if p.listener != nil {
		<-p.listener.Done()
	}
	p.wg.Wait()
	p.close()

	p.errMu.Lock()
	defer p.errMu.Unlock()
	return errors.Join(p.errs...)
}

func (p *pipeline) close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			p.log.Warn().Err(err).Msg("close recorder")
		}
	}
	p.closers = nil
}
