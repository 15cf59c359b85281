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

type OrderStore interface {
	UpsertOrderBatch(ctx context.Context, orders []store.OrderUpsert) (store.OrderBatchResult, error)
}

type OrderHandler struct {
	Store OrderStore
}

// Handle processes one order batch job. Orders referencing unknown customers
// are skipped individually inside the store transaction; the rest of the
// batch still commits. A zero-valid batch is a no-op success.
func (h *OrderHandler) Handle(ctx context.Context, job sqsqueue.Job) error {
	// Two names for historical reasons; both carry the same payload.
	if job.Name != sqsqueue.JobOrderBatch && job.Name != sqsqueue.JobPersistentBatch {
		slog.Info("order worker skipping unrelated job", "job", job.Name)
		return nil
	}

	var records []domain.OrderRecord
	if err := json.Unmarshal(job.Data, &records); err != nil {
		slog.Warn("order batch is not an array, discarding", "err", err)
		observability.IngestBatches.WithLabelValues("order", "discarded").Inc()
		return nil
	}
	if len(records) == 0 {
		slog.Warn("received empty order batch, discarding")
		observability.IngestBatches.WithLabelValues("order", "discarded").Inc()
		return nil
	}

	upserts := make([]store.OrderUpsert, 0, len(records))
	dropped := 0
	for _, r := range records {
		if r.ID == "" || r.CustomerID == "" {
			dropped++
			continue
		}
		u := store.OrderUpsert{
			ID:          r.ID,
			CustomerID:  r.CustomerID,
			TotalAmount: r.TotalAmount,
			Currency:    r.Currency,
			Status:      r.Status,
			CreatedAt:   util.NowUTC(),
		}
		if r.CreatedAt != nil {
			u.CreatedAt = *r.CreatedAt
		}
		for _, it := range r.Items {
			if it.ID == "" {
				continue
			}
			u.Items = append(u.Items, store.ItemUpsert{
				ID:        it.ID,
				ProductID: it.ProductID,
				Name:      it.Name,
				Price:     it.Price,
				Quantity:  it.Quantity,
				Total:     it.Total,
			})
		}
		upserts = append(upserts, u)
	}
	if dropped > 0 {
		slog.Warn("dropping order records without id or customerId", "count", dropped)
	}
	if len(upserts) == 0 {
		observability.IngestBatches.WithLabelValues("order", "discarded").Inc()
		return nil
	}

	res, err := h.Store.UpsertOrderBatch(ctx, upserts)
	if err != nil {
		observability.IngestBatches.WithLabelValues("order", "error").Inc()
		return fmt.Errorf("order batch of %d: %w", len(upserts), err)
	}

	if res.Skipped > 0 {
		slog.Warn("skipped orders with non-existent customer ids", "count", res.Skipped)
		observability.OrdersSkipped.Add(float64(res.Skipped))
	}
	if res.Persisted == 0 {
		slog.Warn("no valid orders to process after filtering")
	}

	observability.IngestBatches.WithLabelValues("order", "ok").Inc()
	slog.Info("order batch processed", "persisted", res.Persisted, "skipped", res.Skipped)
	return nil
}
