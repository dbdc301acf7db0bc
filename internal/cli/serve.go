package cli

import (
	stdcontext "context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	apihttp "github.com/Paintersrp/warden/internal/api/http"
	"github.com/Paintersrp/warden/internal/config"
	"github.com/Paintersrp/warden/internal/launch"
	"github.com/Paintersrp/warden/internal/metrics"
	"github.com/Paintersrp/warden/internal/registry"
	"github.com/Paintersrp/warden/internal/sweeper"
)

var newAPIServer = apihttp.NewServer

const drainTimeout = 30 * time.Second

func newServeCmd(ctx *commandContext) *cobra.Command {
	var listenAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the supervision daemon with the HTTP API enabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*ctx.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Listen = listenAddr
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			reg := registry.New(
				registry.WithLogger(logger),
				registry.WithSignaler(registry.NewOSSignaler()),
				registry.WithBufferLimits(cfg.Buffers.MaxLines, cfg.Buffers.MaxBytes),
				registry.WithKillTimings(
					cfg.Kill.GracePeriod.Duration,
					cfg.Kill.WaitTimeout.Duration,
					cfg.Kill.PollInterval.Duration,
				),
			)
			launcher := launch.New(reg, logger)
			docker := launch.NewDocker(reg, logger)
			control := NewControlAPI(reg, launcher, docker, cfg)

			server, err := newAPIServer(apihttp.Config{
				Addr:       cfg.Listen,
				Controller: control,
			})
			if err != nil {
				return err
			}

			metrics.EmitBuildInfo()

			runCtx, cancel := stdcontext.WithCancel(cmd.Context())
			defer cancel()

			sweep := sweeper.New(reg, cfg.Sweep.Interval.Duration, logger)
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				sweep.Run(runCtx)
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "warden listening on %s\n", server.Addr())
			err = server.Run(runCtx)

			cancel()
			wg.Wait()

			// Do not leave orphaned children behind the daemon.
			drainCtx, drainCancel := stdcontext.WithTimeout(stdcontext.Background(), drainTimeout)
			defer drainCancel()
			if killed := reg.KillAll(drainCtx); len(killed) > 0 {
				logger.Info("terminated remaining processes on shutdown", "count", len(killed))
			}
			return err
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:7399", "address for the HTTP API")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
