package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"bodytrack/pkg/pose"
	"bodytrack/pkg/recorder"
)

func newDeltasCommand(ctx *commandContext) *cobra.Command {
	var dbPath string
	var jsonlPath string
	var sessionID string
	var listSessions bool
	var jointName string

	cmd := &cobra.Command{
		Use:   "deltas",
		Short: "Show frame-to-frame joint movement from a recording",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			joint := -1
			if jointName != "" {
				joint, err = jointIndex(jointName)
				if err != nil {
					return err
				}
			}

			var frames []recorder.Frame
			if jsonlPath != "" {
				f, err := os.Open(jsonlPath)
				if err != nil {
					return fmt.Errorf("open jsonl: %w", err)
				}
				defer f.Close()
				frames, err = recorder.ReadJSONL(f)
				if err != nil {
					return err
				}
				if sessionID != "" {
					frames = filterSession(frames, sessionID)
				}
			} else {
				if dbPath == "" {
					dbPath = cfg.ResolvePath(cfg.Record.SQLite)
				}
				if dbPath == "" {
					return fmt.Errorf("no recording: pass --db or --jsonl, or set record.sqlite")
				}
				store, err := recorder.Open(cmd.Context(), dbPath)
				if err != nil {
					return err
				}
				defer store.Close()

				if listSessions {
					sessions, err := store.Sessions(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintln(out, sessionTable(sessions))
					return nil
				}

				if sessionID == "" {
					latest, err := store.LatestSession(cmd.Context())
					if err != nil {
						return err
					}
					sessionID = latest.ID
				}
				frames, err = store.Frames(cmd.Context(), sessionID)
				if err != nil {
					return err
				}
			}

			series := recorder.Series(frames)
			if len(series) == 0 {
				fmt.Fprintf(out, "%d frames recorded; need at least two for deltas\n", len(frames))
				return nil
			}
			fmt.Fprintln(out, deltaTable(series, joint))
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite recording (default record.sqlite)")
	cmd.Flags().StringVar(&jsonlPath, "jsonl", "", "JSONL recording to read instead of SQLite")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id (default latest)")
	cmd.Flags().BoolVar(&listSessions, "sessions", false, "List recorded sessions")
	cmd.Flags().StringVar(&jointName, "joint", "", "Show one joint, by name or index, instead of the largest mover")
	return cmd
}

func jointIndex(name string) (int, error) {
	if i, err := strconv.Atoi(name); err == nil {
		if i < 0 || i >= pose.JointCount {
			return 0, fmt.Errorf("joint index %d out of range", i)
		}
		return i, nil
	}
	for i := 0; i < pose.JointCount; i++ {
		if pose.JointName(i) == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown joint %q", name)
}

func filterSession(frames []recorder.Frame, session string) []recorder.Frame {
	out := frames[:0:0]
	for _, f := range frames {
		if f.Session == session {
			out = append(out, f)
		}
	}
	return out
}

func sessionTable(sessions []recorder.Session) string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		ended := "-"
		if !s.EndedAt.IsZero() {
			ended = s.EndedAt.Local().Format(time.DateTime)
		}
		rows = append(rows, []string{
			s.ID,
			s.Source,
			s.StartedAt.Local().Format(time.DateTime),
			ended,
			strconv.Itoa(s.Frames),
		})
	}
	return renderTable(
		[]string{"Session", "Source", "Started", "Ended", "Frames"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)
}

// deltaTable prints one row per frame pair: the chosen joint, or the joint
// that moved furthest when joint is negative.
func deltaTable(series []recorder.FrameDelta, joint int) string {
	rows := make([][]string, 0, len(series))
	for _, d := range series {
		idx := joint
		var dist float64
		if idx < 0 {
			idx, dist = d.Largest()
		} else {
			dist = d.Joints[idx].Length()
		}
		rows = append(rows, []string{
			strconv.FormatUint(d.FromSeq, 10),
			strconv.FormatUint(d.ToSeq, 10),
			pose.JointName(idx),
			d.Joints[idx].String(),
			formatCoord(dist),
		})
	}
	return renderTable(
		[]string{"From", "To", "Joint", "Delta", "Distance"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight},
	)
}
