package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mev-engine/evm-arb-engine/internal/app"
	"github.com/mev-engine/evm-arb-engine/internal/config"
	"github.com/mev-engine/evm-arb-engine/internal/logging"
)

// shutdownTimeout bounds how long Stop waits for every component to drain.
const shutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the arbitrage detection engine",
	Long: `Run starts the arbitrage engine: one monitor and pool scanner per
configured chain, the shared Postgres store, the hourly stats aggregator,
the websocket broadcast hub, and the HTTP server. It runs until interrupted.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("bind", "", "bind address for the HTTP server (overrides config)")
	runCmd.Flags().Int("port", 0, "port for the HTTP server (overrides config)")

	viper.BindPFlag("server.host", runCmd.Flags().Lookup("bind"))
	viper.BindPFlag("server.port", runCmd.Flags().Lookup("port"))
}

func runRun(cmd *cobra.Command, args []string) error {
	fmt.Println("Starting arbitrage detection engine...")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Monitoring.LogLevel, cfg.Monitoring.LogEncoding)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	fxApp := fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			func() *zap.Logger { return logger },
		),
		app.Module,
		fx.Invoke(func(lifecycle fx.Lifecycle, application *app.Application) {
			lifecycle.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go func() {
						if err := application.Start(ctx); err != nil {
							logger.Error("engine start failed", zap.Error(err))
						}
					}()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					return application.Stop(ctx)
				},
			})
		}),
		fx.NopLogger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutdown signal received, stopping engine...")
		cancel()
	}()

	if err := fxApp.Start(ctx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := fxApp.Stop(stopCtx); err != nil {
		fmt.Printf("error during shutdown: %v\n", err)
	}

	fmt.Println("arbitrage engine stopped")
	return nil
}
