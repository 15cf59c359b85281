// Package receipt applies external delivery-receipt callbacks to
// communication logs. Receipts arrive through their own queue so the webhook
// never writes the database inline.
package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"minicrm/internal/domain"
	"minicrm/internal/observability"
	sqsqueue "minicrm/internal/queue/sqs"
	"minicrm/internal/store"
	"minicrm/internal/util"
)

type Store interface {
	ApplyReceipt(ctx context.Context, in store.ReceiptApply) (bool, error)
}

type Processor struct {
	Store Store
}

// Handle applies one receipt. A receipt that matches no log row is returned
// as an error so the queue redrives it later; the delivery worker may simply
// not have written the vendor message id yet.
func (p *Processor) Handle(ctx context.Context, job sqsqueue.Job) error {
	if job.Name != sqsqueue.JobDeliveryReceipt {
		slog.Info("receipt processor skipping unrelated job", "job", job.Name)
		return nil
	}

	var upd domain.ReceiptUpdate
	if err := json.Unmarshal(job.Data, &upd); err != nil {
		slog.Warn("malformed receipt payload, discarding", "err", err)
		return nil
	}
	if err := upd.Validate(); err != nil {
		slog.Warn("incomplete receipt, discarding",
			"campaign_id", upd.CampaignID, "customer_id", upd.CustomerID)
		return nil
	}

	// Bounded DB work; errors cause queue redrive.
	dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	updated, err := p.Store.ApplyReceipt(dbCtx, store.ReceiptApply{
		CampaignID:      upd.CampaignID,
		CustomerID:      upd.CustomerID,
		VendorMessageID: upd.VendorMessageID,
		Status:          upd.Status,
		Now:             util.NowUTC(),
	})
	if err != nil {
		return err
	}
	if !updated {
		return errors.New("no communication log matches receipt")
	}

	observability.ReceiptEvents.WithLabelValues(upd.Status).Inc()
	return nil
}
