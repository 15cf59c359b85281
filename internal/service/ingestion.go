// Package service holds the API-side use cases: splitting ingestion payloads
// into queue jobs and creating campaigns from segment rules.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"minicrm/internal/domain"
	"minicrm/internal/observability"
	sqsqueue "minicrm/internal/queue/sqs"
	"minicrm/internal/util"
)

// Queue is the producer side of one SQS queue.
type Queue interface {
	Enqueue(ctx context.Context, job sqsqueue.Job) error
	EnqueueBulk(ctx context.Context, jobs []sqsqueue.Job) error
}

const defaultIngestBatchSize = 100

// ErrBadRecord wraps per-record validation failures so the HTTP layer can
// tell a bad payload apart from a queue outage.
var ErrBadRecord = errors.New("invalid record")

// Ingestion accepts raw customer and order payloads, assigns record ids, and
// queues them in fixed-size batches. Nothing is written to the database here;
// the workers own persistence.
type Ingestion struct {
	Customers Queue
	Orders    Queue
	BatchSize int
}

type IngestResult struct {
	Queued  int `json:"queued"`
	Batches int `json:"batches"`
}

// QueueCustomers validates the whole payload, then enqueues it. Records that
// arrive without an id get one before queueing so the id can serve as the
// upsert idempotency key when the queue redelivers.
func (s *Ingestion) QueueCustomers(ctx context.Context, records []domain.CustomerRecord) (IngestResult, error) {
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return IngestResult{}, fmt.Errorf("%w: customer %d: %w", ErrBadRecord, i, err)
		}
	}
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = util.NewRecordID()
		}
	}

	jobs, err := batchJobs(sqsqueue.JobPersistentBatch, records, s.batchSize())
	if err != nil {
		return IngestResult{}, err
	}
	if err := s.Customers.EnqueueBulk(ctx, jobs); err != nil {
		observability.Enqueues.WithLabelValues("customer", "error").Inc()
		return IngestResult{}, err
	}
	observability.Enqueues.WithLabelValues("customer", "ok").Add(float64(len(jobs)))

	slog.Info("customer batches queued", "records", len(records), "batches", len(jobs))
	return IngestResult{Queued: len(records), Batches: len(jobs)}, nil
}

// QueueOrders mirrors QueueCustomers for orders, ids assigned down to items.
func (s *Ingestion) QueueOrders(ctx context.Context, records []domain.OrderRecord) (IngestResult, error) {
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return IngestResult{}, fmt.Errorf("%w: order %d: %w", ErrBadRecord, i, err)
		}
	}
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = util.NewRecordID()
		}
		for j := range records[i].Items {
			if records[i].Items[j].ID == "" {
				records[i].Items[j].ID = util.NewRecordID()
			}
		}
	}

	jobs, err := batchJobs(sqsqueue.JobOrderBatch, records, s.batchSize())
	if err != nil {
		return IngestResult{}, err
	}
	if err := s.Orders.EnqueueBulk(ctx, jobs); err != nil {
		observability.Enqueues.WithLabelValues("order", "error").Inc()
		return IngestResult{}, err
	}
	observability.Enqueues.WithLabelValues("order", "ok").Add(float64(len(jobs)))

	slog.Info("order batches queued", "records", len(records), "batches", len(jobs))
	return IngestResult{Queued: len(records), Batches: len(jobs)}, nil
}

func (s *Ingestion) batchSize() int {
	if s.BatchSize > 0 {
		return s.BatchSize
	}
	return defaultIngestBatchSize
}

func batchJobs[T any](name string, records []T, size int) ([]sqsqueue.Job, error) {
	var jobs []sqsqueue.Job
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		job, err := sqsqueue.NewJob(name, records[start:end])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
