// Package cli wires the warden commands: the serve daemon plus the
// client commands that drive it over the HTTP API.
package cli

import (
	stdcontext "context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/warden/internal/api"
)

const defaultDaemonAddr = "http://127.0.0.1:7399"

func NewRootCmd() *cobra.Command {
	var configPath string
	daemonAddr := daemonAddrFromEnv()

	root := &cobra.Command{
		Use:   "warden",
		Short: "Subprocess supervision daemon for agent and session processes",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to daemon configuration file")
	root.PersistentFlags().StringVar(&daemonAddr, "addr", daemonAddr, "Base URL of the daemon API")

	ctx := &commandContext{configPath: &configPath, daemonAddr: &daemonAddr}
	root.AddCommand(newServeCmd(ctx))
	root.AddCommand(newRunCmd(ctx))
	root.AddCommand(newSessionCmd(ctx))
	root.AddCommand(newPsCmd(ctx))
	root.AddCommand(newLogsCmd(ctx))
	root.AddCommand(newKillCmd(ctx))
	root.AddCommand(newCleanupCmd(ctx))
	root.AddCommand(newExecCmd(ctx))
	root.AddCommand(newToolsCmd(ctx))
	root.AddCommand(newVersionCmd(ctx))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetContext(ctx)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandContext carries the flags shared by every subcommand.
type commandContext struct {
	configPath *string
	daemonAddr *string
}

func (c *commandContext) client() *api.Client {
	addr := strings.TrimSpace(*c.daemonAddr)
	if addr == "" {
		addr = defaultDaemonAddr
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return api.NewClient(addr)
}

func daemonAddrFromEnv() string {
	if value := strings.TrimSpace(os.Getenv("WARDEN_ADDR")); value != "" {
		return value
	}
	return defaultDaemonAddr
}
