package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	units "github.com/docker/go-units"

	"github.com/Paintersrp/warden/internal/api"
)

func newPsCmd(ctx *commandContext) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "ps",
		Short: "List processes tracked by the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := ctx.client().ListProcesses(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tKIND\tNAME\tPID\tSTATE\tBUFFER\tAGE\tTASK")
			for _, proc := range list.Processes {
				if kind != "" && proc.Kind != kind {
					continue
				}
				name := proc.AgentName
				if proc.Kind == "session" {
					name = proc.SessionID
				}
				if name == "" {
					name = "-"
				}
				state := "exited"
				if proc.Running {
					state = "running"
				}
				buffer := fmt.Sprintf("%d lines / %s",
					proc.Buffer.Lines, units.HumanSize(float64(proc.Buffer.Bytes)))
				if proc.Buffer.NearCapacity {
					buffer += " (near cap)"
				}
				age := "-"
				if !proc.StartedAt.IsZero() {
					age = units.HumanDuration(time.Since(proc.StartedAt))
				}
				task := proc.Task
				if task == "" {
					task = "-"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
					proc.RunID, proc.Kind, name, proc.PID, state, buffer, age, task)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			printCounts(out, list)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "only show processes of this kind (agent or session)")
	return cmd
}

func printCounts(out io.Writer, list *api.ProcessList) {
	agents := list.Counts["agent"]
	sessions := list.Counts["session"]
	fmt.Fprintf(out, "\n%d agents, %d sessions\n", agents, sessions)
}
