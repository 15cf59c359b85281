package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"minicrm/internal/awsutil"
	"minicrm/internal/config"
	"minicrm/internal/httpapi"
	"minicrm/internal/logging"
	"minicrm/internal/observability"
	sqsqueue "minicrm/internal/queue/sqs"
	"minicrm/internal/service"
	"minicrm/internal/store/pg"
)

func main() {
	cfg := config.LoadAPI()
	logging.Init("api", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MigrateOnStart {
		if err := runMigrations(cfg.MigrationsDir, cfg.DBDSN); err != nil {
			slog.Error("migrations failed", "err", err)
			os.Exit(1)
		}
	}

	db, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		slog.Error("api db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("api sqs client init failed", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	st := pg.New(db)
	st.TxTimeout = cfg.DBTxTimeout
	customerQ := &sqsqueue.Producer{SQS: sqsClient, QueueURL: cfg.CustomerQueueURL}
	orderQ := &sqsqueue.Producer{SQS: sqsClient, QueueURL: cfg.OrderQueueURL}
	campaignQ := &sqsqueue.Producer{SQS: sqsClient, QueueURL: cfg.CampaignQueueURL}

	s := httpapi.New()
	api := &httpapi.API{
		Ingestion: &service.Ingestion{
			Customers: customerQ,
			Orders:    orderQ,
			BatchSize: cfg.IngestBatchSize,
		},
		Campaigns: &service.Campaigns{Store: st, Queue: campaignQ},
	}
	api.Register(s.Mux)

	httpapi.RegisterHealth(s.Mux, 2*time.Second, db.Ping)
	s.Mux.Use(httpapi.Metrics(observability.APIRequests))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpapi.Logging(s.Mux),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("api shutdown", "signal", sig.String())
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()

	slog.Info("api listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("api server failed", "err", err)
		os.Exit(1)
	}
}

func runMigrations(dir, dsn string) error {
	m, err := migrate.New("file://"+dir, dsn)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
