package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bodytrack/pkg/config"
)

type serveOverrides struct {
	addr      string
	mode      string
	transport string
	noFox     bool
	noMetrics bool
}

func (o serveOverrides) apply(cfg *config.Config) {
	if o.addr != "" {
		cfg.Server.Addr = o.addr
	}
	if o.mode != "" {
		cfg.Server.Mode = o.mode
	}
	if o.transport != "" {
		cfg.Server.Transport = o.transport
	}
}

func (o serveOverrides) pipelineOptions() pipelineOptions {
	return pipelineOptions{noFoxglove: o.noFox, noMetrics: o.noMetrics}
}

func (o *serveOverrides) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.addr, "addr", "", "Override server.addr")
	cmd.Flags().StringVar(&o.mode, "mode", "", "Override server.mode (listen or dial)")
	cmd.Flags().StringVar(&o.transport, "transport", "", "Override server.transport (raw or base64)")
	cmd.Flags().BoolVar(&o.noFox, "no-foxglove", false, "Do not start the Foxglove bridge")
	cmd.Flags().BoolVar(&o.noMetrics, "no-metrics", false, "Do not serve Prometheus metrics")
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var overrides serveOverrides

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Receive the coordinate stream and publish aligned poses",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			overrides.apply(&cfg)

			logger, err := ctx.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := startPipeline(runCtx, cfg, logger, overrides.pipelineOptions())
			if err != nil {
				stop()
				return err
			}
			logger.Info().
				Str("mode", cfg.Server.Mode).
				Str("addr", cfg.Server.Addr).
				Str("transport", cfg.Server.Transport).
				Msg("pose pipeline running")

			<-runCtx.Done()
			err = p.Wait()
			logger.Info().
				Uint64("processed", p.processor.Processed()).
				Uint64("rejected", p.processor.Rejected()).
				Uint64("rendered", p.ticker.Rendered()).
				Msg("pose pipeline stopped")
			return err
		},
	}
	overrides.bind(cmd)
	return cmd
}
