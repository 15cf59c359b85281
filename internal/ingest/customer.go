// Package ingest holds the queue-driven batch ingestion workers. Each handler
// processes one queued batch inside a single store transaction: either the
// whole batch commits or none of it does.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"minicrm/internal/domain"
	"minicrm/internal/observability"
	sqsqueue "minicrm/internal/queue/sqs"
	"minicrm/internal/store"
	"minicrm/internal/util"
)

type CustomerStore interface {
	UpsertCustomerBatch(ctx context.Context, customers []store.CustomerUpsert) error
}

type CustomerHandler struct {
	Store CustomerStore
}

// Handle processes one customer batch job. Malformed or empty batches are
// logged and dropped as successes (retrying them cannot help); store errors
// abort the whole batch and surface as a job failure.
func (h *CustomerHandler) Handle(ctx context.Context, job sqsqueue.Job) error {
	if job.Name != sqsqueue.JobPersistentBatch {
		slog.Info("customer worker skipping unrelated job", "job", job.Name)
		return nil
	}

	var records []domain.CustomerRecord
	if err := json.Unmarshal(job.Data, &records); err != nil {
		slog.Warn("customer batch is not an array, discarding", "err", err)
		observability.IngestBatches.WithLabelValues("customer", "discarded").Inc()
		return nil
	}
	if len(records) == 0 {
		slog.Warn("received empty customer batch, discarding")
		observability.IngestBatches.WithLabelValues("customer", "discarded").Inc()
		return nil
	}

	upserts := make([]store.CustomerUpsert, 0, len(records))
	dropped := 0
	for _, r := range records {
		// An id is the idempotency key for redelivered batches; a record
		// without one cannot be upserted safely.
		if r.ID == "" {
			dropped++
			continue
		}
		u := store.CustomerUpsert{
			ID:        r.ID,
			Name:      r.Name,
			Email:     r.Email,
			Phone:     r.Phone,
			CreatedAt: util.NowUTC(),
		}
		if r.CreatedAt != nil {
			u.CreatedAt = *r.CreatedAt
		}
		if r.Address != nil {
			u.Address = &store.AddressUpsert{
				Street:  r.Address.Street,
				City:    r.Address.City,
				State:   r.Address.State,
				ZipCode: r.Address.ZipCode,
				Country: r.Address.Country,
			}
		}
		upserts = append(upserts, u)
	}
	if dropped > 0 {
		slog.Warn("dropping customer records without id", "count", dropped)
	}
	if len(upserts) == 0 {
		observability.IngestBatches.WithLabelValues("customer", "discarded").Inc()
		return nil
	}

	if err := h.Store.UpsertCustomerBatch(ctx, upserts); err != nil {
		observability.IngestBatches.WithLabelValues("customer", "error").Inc()
		return fmt.Errorf("customer batch of %d: %w", len(upserts), err)
	}

	observability.IngestBatches.WithLabelValues("customer", "ok").Inc()
	slog.Info("customer batch processed", "count", len(upserts))
	return nil
}
