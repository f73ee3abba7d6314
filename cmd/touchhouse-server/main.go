// Package main is the touchhouse server entrypoint: load configuration,
// recover any existing tables from disk, start the background merger,
// and accept SQL connections until interrupted.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/touchhouse/touchhouse/config"
	"github.com/touchhouse/touchhouse/merger"
	"github.com/touchhouse/touchhouse/recovery"
	"github.com/touchhouse/touchhouse/registry"
	"github.com/touchhouse/touchhouse/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "touchhouse-server",
		Short: "Column-oriented analytical database server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	logger = level.NewFilter(logger, cfg.Level())

	reg := registry.New()
	if err := recovery.Run(cfg.StorageDirectory, reg, logger); err != nil {
		return fmt.Errorf("recover tables: %w", err)
	}

	promReg := prometheus.NewRegistry()
	serveMetrics(ctx, cfg.MetricsAddr, promReg, logger)

	idleInterval := time.Duration(cfg.BackgroundMergeAvailableUnder) * time.Second
	m := merger.New(reg, logger, idleInterval, promReg)
	go m.Run(ctx)

	ln, err := net.Listen("tcp", cfg.TCPSocket)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.TCPSocket, err)
	}
	level.Info(logger).Log("msg", "server listening", "addr", cfg.TCPSocket)

	srv := server.New(reg, cfg.StorageDirectory, cfg.MaxConnections, logger, promReg)
	if err := srv.Serve(ctx, ln); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// serveMetrics starts the Prometheus /metrics HTTP endpoint on its own
// goroutine and stops it when ctx is cancelled. A listen failure is
// logged, not fatal: metrics are diagnostic, not required to serve SQL.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	httpSrv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		_ = httpSrv.Close()
	}()

	go func() {
		level.Info(logger).Log("msg", "metrics listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			level.Warn(logger).Log("msg", "metrics server stopped", "err", err)
		}
	}()
}
