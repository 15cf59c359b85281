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

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"minicrm/internal/awsutil"
	"minicrm/internal/campaign"
	"minicrm/internal/config"
	"minicrm/internal/httpapi"
	"minicrm/internal/ingest"
	"minicrm/internal/logging"
	"minicrm/internal/observability"
	sqsqueue "minicrm/internal/queue/sqs"
	"minicrm/internal/store/pg"
	"minicrm/internal/vendor"
	workerproc "minicrm/internal/worker"
)

func main() {
	cfg := config.LoadWorker()
	logging.Init("worker", cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{
		MaxConns:          cfg.DBPoolMaxConns,
		MinConns:          cfg.DBPoolMinConns,
		MaxConnLifetime:   cfg.DBPoolMaxConnLifetime,
		MaxConnIdleTime:   cfg.DBPoolMaxConnIdleTime,
		HealthCheckPeriod: cfg.DBPoolHealthCheckPeriod,
	})
	if err != nil {
		slog.Error("worker db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	st := pg.New(db)
	st.TxTimeout = cfg.DBTxTimeout

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("worker sqs client init failed", "err", err)
		os.Exit(1)
	}

	startupCtx, startupCancel := context.WithTimeout(ctx, 3*time.Second)
	defer startupCancel()
	if err := db.Ping(startupCtx); err != nil {
		slog.Error("db not reachable", "err", err)
		os.Exit(1)
	}
	if err := checkQueue(startupCtx, sqsClient, cfg.CampaignQueueURL); err != nil {
		slog.Error("sqs not reachable", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	consumer := func(queueURL string) *sqsqueue.Consumer {
		return &sqsqueue.Consumer{
			SQS: sqsClient, QueueURL: queueURL,
			WaitTimeSeconds:   cfg.SQSWaitTime,
			MaxMessages:       cfg.SQSMaxMsgs,
			VisibilityTimeout: cfg.SQSVizTimeout,
		}
	}

	channel := buildChannel(cfg)
	limiter := rate.NewLimiter(rate.Limit(cfg.VendorRPS), cfg.VendorBurst)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "vendor",
		MaxRequests: 3,
		Timeout:     20 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 10 },
	})

	customerHandler := &ingest.CustomerHandler{Store: st}
	orderHandler := &ingest.OrderHandler{Store: st}
	campaignProcessor := &campaign.Processor{
		Store:     st,
		Channel:   channel,
		BatchSize: cfg.DeliveryBatchSize,
		Limiter:   limiter,
		Breaker:   cb,
	}

	// Each queue polls serially: batch upserts must not interleave with
	// themselves and campaign jobs assume single-flight per queue.
	sup := &workerproc.Supervisor{Bindings: []workerproc.Binding{
		{Name: "customer", Poller: consumer(cfg.CustomerQueueURL), Handler: customerHandler.Handle, Concurrency: 1},
		{Name: "order", Poller: consumer(cfg.OrderQueueURL), Handler: orderHandler.Handle, Concurrency: 1},
		{Name: "campaign", Poller: consumer(cfg.CampaignQueueURL), Handler: campaignProcessor.Handle, Concurrency: 1},
	}}

	healthMux := httpapi.New().Mux
	httpapi.RegisterHealth(healthMux, 2*time.Second,
		db.Ping,
		func(c context.Context) error { return checkQueue(c, sqsClient, cfg.CampaignQueueURL) },
	)
	healthSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpapi.Logging(healthMux),
	}

	healthErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker health listening", "port", cfg.Port)
		healthErrCh <- healthSrv.ListenAndServe()
	}()

	supErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker starting",
			"customer_queue", cfg.CustomerQueueURL,
			"order_queue", cfg.OrderQueueURL,
			"campaign_queue", cfg.CampaignQueueURL,
			"vendor_mode", cfg.VendorMode,
		)
		supErrCh <- sup.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-supErrCh:
		if err != nil {
			slog.Error("worker supervisor failed", "err", err)
			os.Exit(1)
		}
	case err := <-healthErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker health server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("worker shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)

	select {
	case <-supErrCh:
	case <-time.After(10 * time.Second):
		slog.Info("worker shutdown timeout waiting for poll loops")
	}
}

func buildChannel(cfg config.WorkerConfig) vendor.Channel {
	if cfg.VendorMode == "http" && cfg.VendorBaseURL != "" {
		return &vendor.HTTPChannel{
			BaseURL: cfg.VendorBaseURL,
			HTTP:    &http.Client{Timeout: 8 * time.Second},
		}
	}
	return vendor.NewStub(cfg.VendorSuccessRate)
}

func checkQueue(ctx context.Context, client *sqs.Client, queueURL string) error {
	_, err := client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       &queueURL,
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
	})
	return err
}
