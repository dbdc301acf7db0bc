package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/warden/internal/api"
)

func newExecCmd(ctx *commandContext) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "exec [flags] -- command",
		Short: "Run a one-shot shell command on the daemon host",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.ExecRequest{
				Command: strings.Join(args, " "),
				Dir:     dir,
			}
			result, err := ctx.client().Exec(cmd.Context(), req)
			if err != nil {
				return err
			}
			if result.Stdout != "" {
				fmt.Fprint(cmd.OutOrStdout(), result.Stdout)
			}
			if result.Stderr != "" {
				fmt.Fprint(cmd.ErrOrStderr(), result.Stderr)
			}
			if result.ExitCode != 0 {
				return fmt.Errorf("command exited with status %d", result.ExitCode)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "working directory for the command")
	return cmd
}

func newToolsCmd(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List tools advertised by configured MCP servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := ctx.client().Tools(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(report.Tools) == 0 {
				fmt.Fprintln(out, "no MCP servers configured")
				return nil
			}
			for _, tool := range report.Tools {
				suffix := ""
				if tool.Inferred {
					suffix = " (inferred)"
				}
				fmt.Fprintf(out, "%s\t%s%s\n", tool.Server, tool.Name, suffix)
			}
			return nil
		},
	}
}

func newVersionCmd(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Report the daemon build",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := ctx.client().Version(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "warden %s", info.Version)
			if info.Commit != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " (%s)", info.Commit)
			}
			fmt.Fprintf(cmd.OutOrStdout(), " %s\n", info.GoVersion)
			return nil
		},
	}
}
