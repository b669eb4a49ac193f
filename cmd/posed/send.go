package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bodytrack/pkg/pose"
	"bodytrack/pkg/protocol"
)

// Arm sway of the generated pose, in display units and hertz.
const (
	swayShoulderAmplitude = 0.15
	swayElbowAmplitude    = 0.25
	swayHipAmplitude      = 0.05

	swayShoulderFreqHz = 0.23
	swayElbowFreqHz    = 0.31
	swayHipFreqHz      = 0.17

	swayShoulderPhaseRad = 0.0
	swayElbowPhaseRad    = math.Pi / 3.0
	swayHipPhaseRad      = 2.0 * math.Pi / 3.0
)

// Joints moved by the generator, by index.
var (
	leftArmJoints  = []int{3, 4}
	rightArmJoints = []int{6, 7}
	hipJoints      = []int{8, 9, 12}
)

type sendOptions struct {
	addr      string
	transport string
	file      string
	hz        float64
	count     int
	depth     float64
	listen    bool
}

func newSendCommand(ctx *commandContext) *cobra.Command {
	var opts sendOptions

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Stream pose payloads to a running receiver",
		Long: "Send frames to a receiver. Payloads come from --file (one payload per line, " +
			"\\n escapes allowed) or from a generated T-pose with swaying arms.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if opts.addr == "" {
				opts.addr = dialable(cfg.Server.Addr)
			}
			if opts.transport == "" {
				opts.transport = cfg.Server.Transport
			}
			logger, err := ctx.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			source, err := newPayloadSource(opts, cfg.Scale)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			conn, err := connectSender(runCtx, opts)
			if err != nil {
				return err
			}
			defer conn.Close()
			logger.Info().
				Str("remote", conn.RemoteAddr().String()).
				Str("transport", opts.transport).
				Msg("sending pose frames")

			sent, err := sendFrames(runCtx, conn, opts, source)
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %d frames to %s\n", sent, conn.RemoteAddr())
			if runCtx.Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "Receiver address (default server.addr)")
	cmd.Flags().StringVar(&opts.transport, "transport", "", "Frame transport, raw or base64 (default server.transport)")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "File with one payload per line")
	cmd.Flags().Float64Var(&opts.hz, "hz", 30, "Frames per second")
	cmd.Flags().IntVarP(&opts.count, "count", "n", 0, "Stop after this many frames (0 sends the whole file, or forever when generating)")
	cmd.Flags().Float64Var(&opts.depth, "depth", 0, "Device depth the generated payloads are scaled for")
	cmd.Flags().BoolVar(&opts.listen, "listen", false, "Wait for a receiver in dial mode to connect instead of dialing")
	return cmd
}

// dialable turns a wildcard bind address into one a client can reach.
func dialable(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func connectSender(ctx context.Context, opts sendOptions) (net.Conn, error) {
	if !opts.listen {
		dialer := net.Dialer{Timeout: 5 * time.Second}
		conn, err := dialer.DialContext(ctx, "tcp", opts.addr)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", opts.addr, err)
		}
		return conn, nil
	}

	ln, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", opts.addr, err)
	}
	defer ln.Close()
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("accept: %w", err)
	}
	return conn, nil
}

// payloadSource yields the payload for frame n, or false when exhausted.
type payloadSource func(n int) (string, bool)

func newPayloadSource(opts sendOptions, scale pose.Scale) (payloadSource, error) {
	if opts.file != "" {
		f, err := os.Open(opts.file)
		if err != nil {
			return nil, fmt.Errorf("open payload file: %w", err)
		}
		defer f.Close()
		payloads, err := readPayloads(f)
		if err != nil {
			return nil, err
		}
		if len(payloads) == 0 {
			return nil, fmt.Errorf("payload file %s is empty", opts.file)
		}
		return func(n int) (string, bool) {
			if n >= len(payloads) {
				if opts.count <= 0 {
					return "", false
				}
				n %= len(payloads)
			}
			return payloads[n], true
		}, nil
	}

	base, err := pose.NewParser(scale).Parse(pose.TPose, opts.depth)
	if err != nil {
		return nil, fmt.Errorf("decode t-pose: %w", err)
	}
	interval := frameInterval(opts.hz)
	return func(n int) (string, bool) {
		t := (time.Duration(n) * interval).Seconds()
		return pose.FormatPayload(swayPose(base, t), scale, opts.depth), true
	}, nil
}

// readPayloads reads one payload per non-blank line. A literal \n inside a
// line becomes a newline so multi-row grids fit on one line.
func readPayloads(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), protocol.DefaultMaxPayload)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		out = append(out, strings.ReplaceAll(line, `\n`, "\n"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read payload file: %w", err)
	}
	return out, nil
}

// swayPose moves the arms and hips of base on slow sines so a viewer sees
// motion.
func swayPose(base pose.JointSet, t float64) pose.JointSet {
	out := base
	shoulder := swayShoulderAmplitude * math.Sin(2.0*math.Pi*swayShoulderFreqHz*t+swayShoulderPhaseRad)
	elbow := swayElbowAmplitude * math.Sin(2.0*math.Pi*swayElbowFreqHz*t+swayElbowPhaseRad)
	hip := swayHipAmplitude * math.Sin(2.0*math.Pi*swayHipFreqHz*t+swayHipPhaseRad)

	out[leftArmJoints[0]].Y += shoulder
	out[leftArmJoints[1]].Y += shoulder + elbow
	out[rightArmJoints[0]].Y -= shoulder
	out[rightArmJoints[1]].Y -= shoulder + elbow
	for _, i := range hipJoints {
		out[i].X += hip
	}
	return out
}

func frameInterval(hz float64) time.Duration {
	if hz <= 0 {
		hz = 30
	}
	return time.Duration(float64(time.Second) / hz)
}

func sendFrames(ctx context.Context, w io.Writer, opts sendOptions, next payloadSource) (int, error) {
	codec, err := protocol.CodecByName(opts.transport)
	if err != nil {
		return 0, err
	}
	writer := protocol.NewWriter(w, codec)

	ticker := time.NewTicker(frameInterval(opts.hz))
	defer ticker.Stop()

	sent := 0
	for opts.count <= 0 || sent < opts.count {
		payload, ok := next(sent)
		if !ok {
			break
		}
		if err := writer.WriteFrame([]byte(payload)); err != nil {
			return sent, fmt.Errorf("write frame %d: %w", sent, err)
		}
		sent++

		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		case <-ticker.C:
		}
	}
	return sent, nil
}
