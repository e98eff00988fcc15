package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arclight-oj/judge/internal/config"
	"github.com/arclight-oj/judge/internal/contentstore"
	"github.com/arclight-oj/judge/internal/logging"
	"github.com/arclight-oj/judge/internal/metrics"
	"github.com/arclight-oj/judge/internal/observability"
	"github.com/arclight-oj/judge/internal/sweeper"
)

func daemonCmd() *cobra.Command {
	var (
		logLevel    string
		metricsAddr string
		s3Bucket    string
		s3Prefix    string
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the sweeper loop and observability endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if configFile != "" {
				var err error
				cfg, err = config.LoadFromFile(configFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			config.LoadFromEnv(cfg)

			if cmd.Flags().Changed("pg-dsn") {
				cfg.Postgres.DSN = pgDSN
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Daemon.LogLevel = logLevel
			}

			logging.SetLevelFromString(cfg.Daemon.LogLevel)
			logging.InitStructured(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)

			if cfg.Observability.Tracing.ServiceName == "" {
				cfg.Observability.Tracing.ServiceName = "judged"
			}
			if err := observability.Init(context.Background(), observability.Config{
				Enabled:     cfg.Observability.Tracing.Enabled,
				Exporter:    cfg.Observability.Tracing.Exporter,
				Endpoint:    cfg.Observability.Tracing.Endpoint,
				ServiceName: cfg.Observability.Tracing.ServiceName,
				SampleRate:  cfg.Observability.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.Shutdown(context.Background())

			if cfg.Observability.Metrics.Enabled {
				metrics.InitPrometheus(cfg.Observability.Metrics.Namespace, cfg.Observability.Metrics.HistogramBuckets)
			}

			refs, err := contentstore.NewPostgresResourceRefTable(context.Background(), cfg.Postgres.DSN)
			if err != nil {
				return fmt.Errorf("create postgres resource ref table: %w", err)
			}
			defer refs.Close()

			var blobs sweeper.BlobStore
			if s3Bucket != "" {
				s3Store, err := contentstore.NewS3BlobStore(context.Background(), contentstore.S3BlobStoreConfig{Bucket: s3Bucket, Prefix: s3Prefix})
				if err != nil {
					return fmt.Errorf("create s3 blob store: %w", err)
				}
				blobs = s3Store
			} else {
				logging.Op().Warn("no --s3-bucket given, sweeping against an in-memory blob store")
				blobs = contentstore.NewInMemoryBlobStore()
			}

			sw := sweeper.New(refs, blobs, sweeper.Config{
				Interval:  cfg.Sweeper.Interval,
				TTL:       cfg.Sweeper.TTL,
				BatchSize: cfg.Sweeper.BatchSize,
			})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go sw.Run(ctx)

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.PrometheusHandler())
				server := &http.Server{Addr: metricsAddr, Handler: mux}
				go func() {
					if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logging.Op().Error("metrics server failed", "error", err)
					}
				}()
				defer server.Shutdown(context.Background())
				logging.Op().Info("metrics endpoint listening", "addr", metricsAddr)
			}

			logging.Op().Info("judged sweeper started", "interval", cfg.Sweeper.Interval, "ttl", cfg.Sweeper.TTL)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			logging.Op().Info("shutdown signal received")
			return nil
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve /metrics on (disabled if empty)")
	cmd.Flags().StringVar(&s3Bucket, "s3-bucket", "", "S3 bucket for the content blob store")
	cmd.Flags().StringVar(&s3Prefix, "s3-prefix", "", "S3 key prefix for the content blob store")

	return cmd
}
