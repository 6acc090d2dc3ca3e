package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/byteforge/internal/config"
	"github.com/nao1215/byteforge/internal/dispatch"
	"github.com/nao1215/byteforge/internal/metrics"
)

// errWorkerNeedsRedis is returned when worker runs without the Redis dispatcher.
var errWorkerNeedsRedis = errors.New("worker requires the redis dispatcher (set dispatcher: redis)")

// NewWorkerCmd creates the worker command.
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume jobs from the Redis queue",
		Long: `Worker pops job messages from the configured Redis list and executes them.

Run any number of workers against the same database and broker. A job
delivered more than once is executed only by the first worker to claim it.

Examples:
  # Start a worker with four concurrent jobs
  BYTEFORGE_DISPATCHER=redis byteforge worker --concurrency 4`,
		Args: cobra.NoArgs,
		RunE: runWorkerCmd,
	}

	cmd.Flags().Int("concurrency", 0,
		"Maximum number of jobs executed at once (default from configuration)")
	cmd.Flags().String("metrics-addr", "",
		"Expose worker metrics on this address (disabled when empty)")

	return cmd
}

// runWorkerCmd executes the worker command.
func runWorkerCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Dispatcher != config.DispatcherRedis {
		return errWorkerNeedsRedis
	}

	// Workers only expose metrics when asked to; serve owns the default address.
	a.cfg.MetricsAddr = ""
	if err := applyServeFlags(cmd, a); err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	collector, err := metrics.New()
	if err != nil {
		return err
	}

	client, err := dispatch.NewRedisClient(a.cfg.RedisURL)
	if err != nil {
		return err
	}
	defer client.Close()

	srv := startMetricsServer(a.cfg.MetricsAddr, collector, a.logger.Logger)
	if srv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	w := dispatch.NewWorker(client, a.cfg.RedisQueue, a.executor(collector), a.cfg.Concurrency,
		dispatch.WithLogger(a.logger.Logger))
	return w.Run(ctx)
}
