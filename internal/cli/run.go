package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/warden/internal/api"
)

func newRunCmd(ctx *commandContext) *cobra.Command {
	var (
		agentID   int64
		agentName string
		dir       string
		task      string
		model     string
		env       map[string]string
		sidecar   bool
		image     string
		ports     []string
	)

	cmd := &cobra.Command{
		Use:   "run [flags] -- command [args...]",
		Short: "Launch an agent process on the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if agentName == "" {
				return fmt.Errorf("--name is required")
			}
			req := api.SpawnAgentRequest{
				AgentID:   agentID,
				AgentName: agentName,
				Command:   args,
				Dir:       dir,
				Env:       env,
				Task:      task,
				Model:     model,
				Sidecar:   sidecar,
				Image:     image,
				Ports:     ports,
			}
			result, err := ctx.client().SpawnAgent(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "started run %d (pid %d)\n", result.RunID, result.PID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&agentID, "id", 0, "agent id to record on the run")
	cmd.Flags().StringVar(&agentName, "name", "", "agent name to record on the run")
	cmd.Flags().StringVar(&dir, "dir", "", "working directory for the process")
	cmd.Flags().StringVar(&task, "task", "", "task description to record on the run")
	cmd.Flags().StringVar(&model, "model", "", "model name to record on the run")
	cmd.Flags().StringToStringVar(&env, "env", nil, "environment overrides (key=value)")
	cmd.Flags().BoolVar(&sidecar, "docker", false, "run the agent in a container")
	cmd.Flags().StringVar(&image, "image", "", "container image for sidecar runs")
	cmd.Flags().StringSliceVar(&ports, "port", nil, "port mappings for sidecar runs")
	return cmd
}
