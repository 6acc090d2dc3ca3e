package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/byteforge/internal/dispatch"
	"github.com/nao1215/byteforge/internal/metrics"
	"github.com/nao1215/byteforge/internal/schedule"
)

// shutdownTimeout bounds how long serve waits for running jobs on exit.
const shutdownTimeout = 30 * time.Second

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, dispatcher and metrics endpoint",
		Long: `Serve runs byteforge as a long-lived process.

It loads the persisted schedules and submits their jobs when they fire,
executing them in-process or pushing them to Redis depending on the
configured dispatcher. Prometheus metrics are exposed on /metrics.

Schedules added with 'byteforge schedule add' while serve is running take
effect on its next start.

Examples:
  # Serve with the configuration from .byteforge
  byteforge serve

  # Expose metrics on a different address
  byteforge serve --metrics-addr :9464

  # Disable the metrics endpoint
  byteforge serve --metrics-addr ""`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().String("metrics-addr", "",
		"Listen address of the metrics endpoint (default from configuration)")
	cmd.Flags().Int("concurrency", 0,
		"Maximum number of jobs executed at once (default from configuration)")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := applyServeFlags(cmd, a); err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	collector, err := metrics.New()
	if err != nil {
		return err
	}

	d, err := dispatch.New(a.cfg, a.executor(collector), a.logger.Logger)
	if err != nil {
		return err
	}

	registry := schedule.NewRegistry(a.store, d, schedule.WithLogger(a.logger.Logger))
	if err := registry.Start(ctx); err != nil {
		_ = d.Close(context.Background())
		return err
	}

	srv := startMetricsServer(a.cfg.MetricsAddr, collector, a.logger.Logger)

	a.logger.Info("byteforge serving",
		"dispatcher", a.cfg.Dispatcher,
		"concurrency", a.cfg.Concurrency,
		"metrics_addr", a.cfg.MetricsAddr,
	)

	<-ctx.Done()
	a.logger.Info("received shutdown signal, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	errs = append(errs, registry.Stop(shutdownCtx))
	if srv != nil {
		errs = append(errs, srv.Shutdown(shutdownCtx))
	}
	errs = append(errs, d.Close(shutdownCtx))
	return errors.Join(errs...)
}

// applyServeFlags overlays explicitly set flags onto the configuration.
func applyServeFlags(cmd *cobra.Command, a *app) error {
	if cmd.Flags().Changed("metrics-addr") {
		addr, err := cmd.Flags().GetString("metrics-addr")
		if err != nil {
			return err
		}
		a.cfg.MetricsAddr = addr
	}
	if cmd.Flags().Changed("concurrency") {
		n, err := cmd.Flags().GetInt("concurrency")
		if err != nil {
			return err
		}
		if n <= 0 {
			return fmt.Errorf("concurrency must be positive, got %d", n)
		}
		a.cfg.Concurrency = n
	}
	return nil
}

// newMetricsMux routes /metrics to the collector and answers /healthz.
func newMetricsMux(collector *metrics.Collector) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// startMetricsServer serves metrics on addr in the background. It returns
// nil when addr is empty.
func startMetricsServer(addr string, collector *metrics.Collector, logger *slog.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           newMetricsMux(collector),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("metrics endpoint listening", "addr", addr)
	return srv
}
