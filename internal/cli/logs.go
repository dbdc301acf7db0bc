package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newLogsCmd(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
	)

	cmd := &cobra.Command{
		Use:   "logs <run-id>",
		Short: "Print captured output for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			client := ctx.client()
			out := cmd.OutOrStdout()

			report, err := client.Output(cmd.Context(), runID, lines)
			if err != nil {
				return err
			}
			for _, line := range report.Lines {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}

			printed := len(report.Lines)
			ticker := time.NewTicker(500 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
				}
				report, err := client.Output(cmd.Context(), runID, 0)
				if err != nil {
					if cmd.Context().Err() != nil {
						return nil
					}
					return err
				}
				if len(report.Lines) < printed {
					printed = 0
				}
				for _, line := range report.Lines[printed:] {
					fmt.Fprintln(out, line)
				}
				printed = len(report.Lines)
			}
		},
	}

	cmd.Flags().IntVar(&lines, "lines", 0, "only print the last N lines (0 prints everything)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep polling for new output")
	return cmd
}
