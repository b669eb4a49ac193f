package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"bodytrack/pkg/engine"
	"bodytrack/pkg/pose"
)

// poseSource is the slice of *engine.Ticker the monitor reads.
type poseSource interface {
	Latest() (engine.Sample, bool)
	Capture() (engine.Sample, bool)
	Release()
	Captured() (engine.Sample, bool)
	Rendered() uint64
	Skipped() uint64
}

type refreshMsg time.Time

type monitorModel struct {
	source    poseSource
	connected func() bool
	refresh   time.Duration

	sample   engine.Sample
	has      bool
	frozen   bool
	status   string
	quitting bool
}

func newMonitorModel(source poseSource, connected func() bool, refresh time.Duration) monitorModel {
	if refresh <= 0 {
		refresh = 100 * time.Millisecond
	}
	if connected == nil {
		connected = func() bool { return false }
	}
	return monitorModel{source: source, connected: connected, refresh: refresh}
}

func (m monitorModel) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func (m monitorModel) Init() tea.Cmd {
	return m.tick()
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "p":
			s, ok := m.source.Capture()
			if !ok {
				m.status = "nothing to capture yet"
				return m, nil
			}
			m.sample, m.has, m.frozen = s, true, true
			m.status = fmt.Sprintf("captured sample %d", s.Seq)
		case "o":
			m.source.Release()
			m.frozen = false
			m.status = "released"
		}
		return m, nil
	case refreshMsg:
		m.pull()
		return m, m.tick()
	}
	return m, nil
}

func (m *monitorModel) pull() {
	if s, ok := m.source.Captured(); ok {
		m.sample, m.has, m.frozen = s, true, true
		return
	}
	m.frozen = false
	if s, ok := m.source.Latest(); ok {
		m.sample, m.has = s, true
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	link := "waiting for stream"
	if m.connected() {
		link = "stream connected"
	}
	fmt.Fprintf(&b, "posed monitor  %s  rendered=%d skipped=%d\n",
		link, m.source.Rendered(), m.source.Skipped())

	if !m.has {
		b.WriteString("\nno pose yet\n")
	} else {
		state := "live"
		if m.frozen {
			state = "captured"
		}
		if m.sample.Bootstrap {
			state += " (bootstrap)"
		}
		fmt.Fprintf(&b, "sample %d  %s  %s\n", m.sample.Seq, state, m.sample.Timestamp.Format(time.RFC3339Nano))
		fmt.Fprintf(&b, "device %s  offset %s\n", m.sample.Device, m.sample.Offset)
		b.WriteString(jointTable(m.sample.Joints))
		b.WriteByte('\n')
	}

	if m.status != "" {
		b.WriteString(m.status)
		b.WriteByte('\n')
	}
	b.WriteString("p capture  o release  q quit\n")
	return b.String()
}

func jointTable(j pose.JointSet) string {
	rows := make([][]string, 0, pose.JointCount)
	for i, v := range j {
		rows = append(rows, []string{
			strconv.Itoa(i),
			pose.JointName(i),
			formatCoord(v.X),
			formatCoord(v.Y),
			formatCoord(v.Z),
		})
	}
	return renderTable(
		[]string{"#", "Joint", "X", "Y", "Z"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight},
	)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func newMonitorCommand(ctx *commandContext) *cobra.Command {
	var overrides serveOverrides
	var logFile string
	var refresh time.Duration

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run the pipeline with a live terminal view of the current pose",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			overrides.apply(&cfg)

			// The terminal belongs to the view; logs go to a file or nowhere.
			var logOut io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				logOut = f
			}
			logger, err := ctx.logger(logOut)
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

			model := newMonitorModel(p.ticker, p.listener.Connected, refresh)
			prog := tea.NewProgram(model,
				tea.WithContext(runCtx),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
				tea.WithAltScreen(),
			)
			_, runErr := prog.Run()
			stop()
			waitErr := p.Wait()
			if runErr != nil && runCtx.Err() == nil {
				return runErr
			}
			return waitErr
		},
	}
	overrides.bind(cmd)
	cmd.Flags().StringVar(&logFile, "log-file", "", "Append logs to this file while the view is open")
	cmd.Flags().DurationVar(&refresh, "refresh", 100*time.Millisecond, "View refresh interval")
	return cmd
}
