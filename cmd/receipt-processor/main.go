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

	"minicrm/internal/awsutil"
	"minicrm/internal/config"
	"minicrm/internal/httpapi"
	"minicrm/internal/logging"
	"minicrm/internal/observability"
	sqsqueue "minicrm/internal/queue/sqs"
	"minicrm/internal/receipt"
	"minicrm/internal/store/pg"
	workerproc "minicrm/internal/worker"
)

func main() {
	cfg := config.LoadReceiptProcessor()
	logging.Init("receipt-processor", cfg.LogFormat)

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
		slog.Error("receipt-processor db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion, cfg.LocalstackEndpoint)
	if err != nil {
		slog.Error("receipt-processor sqs client init failed", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	st := pg.New(db)
	st.TxTimeout = cfg.DBTxTimeout
	processor := &receipt.Processor{Store: st}
	consumer := &sqsqueue.Consumer{
		SQS: sqsClient, QueueURL: cfg.ReceiptQueueURL,
		WaitTimeSeconds:   cfg.SQSWaitTime,
		MaxMessages:       cfg.SQSMaxMsgs,
		VisibilityTimeout: cfg.SQSVizTimeout,
	}

	// Receipts touch disjoint log rows, so this queue is safe to interleave.
	sup := &workerproc.Supervisor{Bindings: []workerproc.Binding{
		{Name: "delivery-receipt", Poller: consumer, Handler: processor.Handle, Concurrency: cfg.ProcessorConcurrency},
	}}

	healthMux := httpapi.New().Mux
	httpapi.RegisterHealth(healthMux, 2*time.Second,
		db.Ping,
		func(c context.Context) error {
			_, err := sqsClient.GetQueueAttributes(c, &sqs.GetQueueAttributesInput{
				QueueUrl:       &cfg.ReceiptQueueURL,
				AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
			})
			return err
		},
	)
	healthSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpapi.Logging(healthMux),
	}

	healthErrCh := make(chan error, 1)
	go func() {
		slog.Info("receipt-processor health listening", "port", cfg.Port)
		healthErrCh <- healthSrv.ListenAndServe()
	}()

	supErrCh := make(chan error, 1)
	go func() {
		slog.Info("receipt-processor starting", "queue_url", cfg.ReceiptQueueURL,
			"concurrency", cfg.ProcessorConcurrency)
		supErrCh <- sup.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-supErrCh:
		if err != nil {
			slog.Error("receipt-processor failed", "err", err)
			os.Exit(1)
		}
	case err := <-healthErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("receipt-processor health server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("receipt-processor shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)

	select {
	case <-supErrCh:
	case <-time.After(10 * time.Second):
		slog.Info("receipt-processor shutdown timeout waiting for poll loop")
	}
}
