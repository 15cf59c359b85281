package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"minicrm/internal/domain"
	sqsqueue "minicrm/internal/queue/sqs"
	"minicrm/internal/segment"
	"minicrm/internal/store"
	"minicrm/internal/util"
)

type CampaignStore interface {
	ListCustomersForSegmentation(ctx context.Context) ([]store.SegmentationCustomer, error)
	CreateSegment(ctx context.Context, in store.SegmentCreate) error
	CreateCampaign(ctx context.Context, in store.CampaignCreate) error
	GetCampaign(ctx context.Context, id string) (domain.Campaign, bool, error)
	ListCampaignLogs(ctx context.Context, campaignID string) ([]domain.CommunicationLog, error)
}

// Campaigns creates campaigns and reads them back. Creation materializes the
// segment audience up front; delivery itself happens on the campaign queue.
type Campaigns struct {
	Store CampaignStore
	Queue Queue
}

type CreateCampaignRequest struct {
	CampaignName string        `json:"campaignName"`
	Message      string        `json:"message"`
	SegmentName  string        `json:"segmentName"`
	SegmentRules segment.Rules `json:"segmentRules"`
}

func (r CreateCampaignRequest) Validate() error {
	if r.CampaignName == "" {
		return errors.New("campaignName is required")
	}
	if r.Message == "" {
		return errors.New("message is required")
	}
	if r.SegmentName == "" {
		return errors.New("segmentName is required")
	}
	return r.SegmentRules.Validate()
}

// ErrEnqueueFailed marks a campaign that was persisted but never queued. The
// campaign stays PROCESSING; an operator can re-enqueue it by id.
var ErrEnqueueFailed = errors.New("campaign persisted but enqueue failed")

// Create evaluates the segment rules over every customer, persists the
// segment and the campaign, then queues delivery.
func (s *Campaigns) Create(ctx context.Context, req CreateCampaignRequest) (domain.Campaign, error) {
	if err := req.Validate(); err != nil {
		return domain.Campaign{}, err
	}

	customers, err := s.Store.ListCustomersForSegmentation(ctx)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("load customers: %w", err)
	}

	var audience []string
	for _, c := range customers {
		p := toProfile(c)
		if segment.Matches(p, segment.Aggregate(p.Orders), req.SegmentRules) {
			audience = append(audience, c.ID)
		}
	}

	rulesJSON, err := json.Marshal(req.SegmentRules)
	if err != nil {
		return domain.Campaign{}, err
	}

	now := util.NowUTC()
	segmentID := util.NewID("seg")
	if err := s.Store.CreateSegment(ctx, store.SegmentCreate{
		ID:                  segmentID,
		Name:                req.SegmentName,
		RulesJSON:           rulesJSON,
		AudienceCustomerIDs: audience,
		Now:                 now,
	}); err != nil {
		return domain.Campaign{}, fmt.Errorf("create segment: %w", err)
	}

	cmp := domain.Campaign{
		ID:              util.NewID("cmp"),
		Name:            req.CampaignName,
		MessageTemplate: req.Message,
		SegmentID:       segmentID,
		AudienceSize:    len(audience),
		Status:          domain.CampaignProcessing,
		CreatedAt:       now,
	}
	if err := s.Store.CreateCampaign(ctx, store.CampaignCreate{
		ID:              cmp.ID,
		Name:            cmp.Name,
		MessageTemplate: cmp.MessageTemplate,
		SegmentID:       cmp.SegmentID,
		AudienceSize:    cmp.AudienceSize,
		Status:          string(cmp.Status),
		Now:             now,
	}); err != nil {
		return domain.Campaign{}, fmt.Errorf("create campaign: %w", err)
	}

	job, err := sqsqueue.NewJob(sqsqueue.JobProcessCampaign, sqsqueue.CampaignJobPayload{CampaignID: cmp.ID})
	if err != nil {
		return domain.Campaign{}, err
	}
	if err := s.Queue.Enqueue(ctx, job); err != nil {
		slog.Error("campaign enqueue failed", "campaign_id", cmp.ID, "err", err)
		return cmp, fmt.Errorf("%w: %s", ErrEnqueueFailed, err)
	}

	slog.Info("campaign queued", "campaign_id", cmp.ID, "segment_id", segmentID,
		"audience_size", cmp.AudienceSize)
	return cmp, nil
}

func (s *Campaigns) Get(ctx context.Context, id string) (domain.Campaign, bool, error) {
	return s.Store.GetCampaign(ctx, id)
}

func (s *Campaigns) Logs(ctx context.Context, campaignID string) ([]domain.CommunicationLog, error) {
	return s.Store.ListCampaignLogs(ctx, campaignID)
}

func toProfile(c store.SegmentationCustomer) segment.Profile {
	orders := make([]segment.OrderFact, 0, len(c.Orders))
	for _, o := range c.Orders {
		orders = append(orders, segment.OrderFact{TotalAmount: o.TotalAmount, CreatedAt: o.CreatedAt})
	}
	return segment.Profile{
		CustomerID: c.ID,
		Name:       c.Name,
		Email:      c.Email,
		City:       c.City,
		State:      c.State,
		Country:    c.Country,
		CreatedAt:  c.CreatedAt,
		Orders:     orders,
	}
}
