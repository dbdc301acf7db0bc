package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newKillCmd(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "kill [run-id...]",
		Short: "Terminate runs and remove them from the process table",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client()
			out := cmd.OutOrStdout()

			if all {
				result, err := client.KillAll(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "killed %d runs\n", len(result.Removed))
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("provide at least one run id or --all")
			}
			for _, arg := range args {
				runID, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid run id %q", arg)
				}
				result, err := client.Kill(cmd.Context(), runID)
				if err != nil {
					return err
				}
				if result.Warning != "" {
					fmt.Fprintf(out, "killed run %d (warning: %s)\n", runID, result.Warning)
				} else {
					fmt.Fprintf(out, "killed run %d\n", runID)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "terminate every tracked run")
	return cmd
}

func newCleanupCmd(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove exited runs from the process table",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := ctx.client().Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			if len(result.Removed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to clean up")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d exited runs: %v\n", len(result.Removed), result.Removed)
			return nil
		},
	}
}
