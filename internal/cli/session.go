package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/warden/internal/api"
)

func newSessionCmd(ctx *commandContext) *cobra.Command {
	var (
		sessionID string
		dir       string
		task      string
		model     string
		env       map[string]string
	)

	cmd := &cobra.Command{
		Use:   "session [flags] -- command [args...]",
		Short: "Launch an interactive session process on the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.SpawnSessionRequest{
				SessionID: sessionID,
				Command:   args,
				Dir:       dir,
				Env:       env,
				Task:      task,
				Model:     model,
			}
			result, err := ctx.client().SpawnSession(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "started session %s as run %d (pid %d)\n",
				result.SessionID, result.RunID, result.PID)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session-id", "", "session id to attach (generated when empty)")
	cmd.Flags().StringVar(&dir, "dir", "", "working directory for the process")
	cmd.Flags().StringVar(&task, "task", "", "task description to record on the run")
	cmd.Flags().StringVar(&model, "model", "", "model name to record on the run")
	cmd.Flags().StringToStringVar(&env, "env", nil, "environment overrides (key=value)")
	return cmd
}
