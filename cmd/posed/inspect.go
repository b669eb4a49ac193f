package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"bodytrack/pkg/pose"
)

func readPayloadArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read payload: %w", err)
	}
	return string(data), nil
}

func newParseCommand(ctx *commandContext) *cobra.Command {
	var depth float64
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Decode a coordinate payload and print its joints",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			payload, err := readPayloadArg(cmd, args)
			if err != nil {
				return err
			}
			joints, err := pose.NewParser(cfg.Scale).Parse(payload, depth)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(joints)
			}
			fmt.Fprintf(out, "Scale divisor %.4g at depth %.4g\n", cfg.Scale.Divisor(depth), depth)
			fmt.Fprintln(out, jointTable(joints))
			return nil
		},
	}
	cmd.Flags().Float64Var(&depth, "depth", 0, "Device depth used for the scale divisor")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print joints as JSON")
	return cmd
}

func newLimbsCommand(ctx *commandContext) *cobra.Command {
	var file string
	var depth float64

	cmd := &cobra.Command{
		Use:   "limbs",
		Short: "List limb segments, optionally resolved against a payload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if file == "" {
				rows := make([][]string, 0, pose.LimbCount)
				for _, key := range pose.LimbKeys() {
					rows = append(rows, []string{
						key.Name,
						fmt.Sprintf("%d %s", key.A, pose.JointName(key.A)),
						fmt.Sprintf("%d %s", key.B, pose.JointName(key.B)),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Limb", "Origin", "End"}, rows, nil))
				return nil
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			payload, err := readPayloadArg(cmd, []string{file})
			if err != nil {
				return err
			}
			joints, err := pose.NewParser(cfg.Scale).Parse(payload, depth)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, pose.LimbCount)
			for _, seg := range pose.Segments(joints) {
				rows = append(rows, []string{
					seg.Name,
					seg.Origin.String(),
					seg.End.String(),
					seg.Vector.String(),
					strconv.FormatFloat(seg.Vector.Length(), 'f', 4, 64),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Limb", "Origin", "End", "Vector", "Length"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Payload to resolve limbs against (- for stdin)")
	cmd.Flags().Float64Var(&depth, "depth", 0, "Device depth used for the scale divisor")
	return cmd
}
