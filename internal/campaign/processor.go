// Package campaign runs the delivery side of a campaign: fan-out over the
// segment audience, per-recipient sends, delivery logs, and the final
// aggregate accounting.
package campaign

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"minicrm/internal/domain"
	"minicrm/internal/observability"
	sqsqueue "minicrm/internal/queue/sqs"
	"minicrm/internal/store"
	"minicrm/internal/util"
	"minicrm/internal/vendor"
)

const defaultBatchSize = 50

type Store interface {
	GetCampaignForDelivery(ctx context.Context, campaignID string) (store.CampaignDelivery, bool, error)
	GetRecipients(ctx context.Context, customerIDs []string) ([]store.Recipient, error)
	InsertPendingLogs(ctx context.Context, campaignID string, logs []store.PendingLog) error
	TerminalLogStatuses(ctx context.Context, campaignID string, customerIDs []string) (map[string]domain.LogStatus, error)
	MarkLogResult(ctx context.Context, in store.LogResult) error
	FinalizeCampaign(ctx context.Context, campaignID string, sent, failed int) error
}

type Processor struct {
	Store   Store
	Channel vendor.Channel

	// audience slice handled per store round-trip
	BatchSize int

	// guard rails around the vendor call; both optional
	Limiter *rate.Limiter
	Breaker *gobreaker.CircuitBreaker
}

// Handle drives one campaign from PROCESSING to COMPLETED. Any error is
// returned so the job is marked failed and the campaign stays in PROCESSING
// for an operator to replay; replays resume where the last run stopped
// because recipients with a terminal log are tallied, not re-sent.
func (p *Processor) Handle(ctx context.Context, job sqsqueue.Job) error {
	if job.Name != sqsqueue.JobProcessCampaign {
		slog.Info("campaign worker skipping unrelated job", "job", job.Name)
		return nil
	}

	var payload sqsqueue.CampaignJobPayload
	if err := json.Unmarshal(job.Data, &payload); err != nil || payload.CampaignID == "" {
		slog.Warn("campaign job without campaignId, discarding")
		return nil
	}

	cmp, found, err := p.Store.GetCampaignForDelivery(ctx, payload.CampaignID)
	if err != nil {
		return fmt.Errorf("load campaign %s: %w", payload.CampaignID, err)
	}
	if !found {
		slog.Warn("campaign or segment not found", "campaign_id", payload.CampaignID)
		return nil
	}
	if cmp.Status == string(domain.CampaignCompleted) {
		slog.Info("campaign already completed", "campaign_id", cmp.ID)
		return nil
	}

	audience := cmp.AudienceCustomerIDs
	if len(audience) == 0 {
		slog.Warn("no customers in segment audience", "campaign_id", cmp.ID)
		if err := p.Store.FinalizeCampaign(ctx, cmp.ID, 0, 0); err != nil {
			return fmt.Errorf("finalize empty campaign %s: %w", cmp.ID, err)
		}
		observability.CampaignsCompleted.Inc()
		return nil
	}

	size := p.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}

	sent, failed := 0, 0
	for i := 0; i < len(audience); i += size {
		batchIDs := audience[i:min(i+size, len(audience))]
		bSent, bFailed, err := p.deliverBatch(ctx, cmp, batchIDs)
		if err != nil {
			return fmt.Errorf("campaign %s batch at %d: %w", cmp.ID, i, err)
		}
		sent += bSent
		failed += bFailed
	}

	if err := p.Store.FinalizeCampaign(ctx, cmp.ID, sent, failed); err != nil {
		return fmt.Errorf("finalize campaign %s: %w", cmp.ID, err)
	}
	observability.CampaignsCompleted.Inc()
	slog.Info("campaign completed", "campaign_id", cmp.ID, "sent", sent, "failed", failed)
	return nil
}

func (p *Processor) deliverBatch(ctx context.Context, cmp store.CampaignDelivery, batchIDs []string) (sent, failed int, err error) {
	recipients, err := p.Store.GetRecipients(ctx, batchIDs)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch recipients: %w", err)
	}

	terminal, err := p.Store.TerminalLogStatuses(ctx, cmp.ID, batchIDs)
	if err != nil {
		return 0, 0, fmt.Errorf("load terminal logs: %w", err)
	}

	// Audience ids with no customer row get no log and no tally, so the
	// final counts cover resolvable recipients only.
	if skipped := len(batchIDs) - len(recipients); skipped > 0 {
		slog.Warn("audience ids without a customer row skipped",
			"campaign_id", cmp.ID, "skipped", skipped)
	}

	var pending []store.PendingLog
	var toSend []store.Recipient
	for _, r := range recipients {
		if st, ok := terminal[r.ID]; ok {
			// already delivered on a previous run of this job
			if st == domain.LogSent {
				sent++
			} else {
				failed++
			}
			continue
		}
		pending = append(pending, store.PendingLog{
			ID:         util.NewID("log"),
			CustomerID: r.ID,
			Message:    util.PersonalizeMessage(cmp.MessageTemplate, r.Name),
		})
		toSend = append(toSend, r)
	}

	if len(pending) > 0 {
		if err := p.Store.InsertPendingLogs(ctx, cmp.ID, pending); err != nil {
			return 0, 0, fmt.Errorf("insert pending logs: %w", err)
		}
	}

	for i, r := range toSend {
		res, err := p.send(ctx, vendor.Message{
			CampaignID: cmp.ID,
			CustomerID: r.ID,
			Email:      r.Email,
			Body:       pending[i].Message,
		})
		if err != nil {
			return 0, 0, fmt.Errorf("deliver to %s: %w", r.ID, err)
		}

		if err := p.Store.MarkLogResult(ctx, store.LogResult{
			CampaignID:      cmp.ID,
			CustomerID:      r.ID,
			Status:          string(res.Outcome),
			VendorMessageID: res.VendorMessageID,
			SentAt:          util.NowUTC(),
		}); err != nil {
			return 0, 0, fmt.Errorf("record outcome for %s: %w", r.ID, err)
		}

		if res.Outcome == vendor.OutcomeSent {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed, nil
}

func (p *Processor) send(ctx context.Context, msg vendor.Message) (vendor.Result, error) {
	if p.Limiter != nil {
		if err := p.Limiter.Wait(ctx); err != nil {
			return vendor.Result{}, err
		}
	}

	start := time.Now()
	var res vendor.Result
	var err error
	if p.Breaker != nil {
		var out any
		out, err = p.Breaker.Execute(func() (any, error) {
			return p.Channel.Send(ctx, msg)
		})
		if err == nil {
			res = out.(vendor.Result)
		}
	} else {
		res, err = p.Channel.Send(ctx, msg)
	}

	if err != nil {
		observability.VendorSend.WithLabelValues("error").Inc()
		return vendor.Result{}, err
	}
	observability.VendorSend.WithLabelValues(string(res.Outcome)).Inc()
	observability.VendorLatency.Observe(time.Since(start).Seconds())
	return res, nil
}
