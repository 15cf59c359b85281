package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"minicrm/internal/domain"
	sqsqueue "minicrm/internal/queue/sqs"
)

type ReceiptQueue interface {
	Enqueue(ctx context.Context, job sqsqueue.Job) error
}

// ReceiptWebhook accepts delivery-receipt callbacks from the message vendor.
// It only validates and queues; the receipt processor owns the DB write, so
// the vendor sees fast, dependable acks.
type ReceiptWebhook struct {
	Queue ReceiptQueue
}

func (wh *ReceiptWebhook) Register(r *mux.Router) {
	r.HandleFunc("/v1/receipts/delivery", wh.handleDeliveryReceipt).Methods(http.MethodPost)
}

func (wh *ReceiptWebhook) handleDeliveryReceipt(w http.ResponseWriter, r *http.Request) {
	var upd domain.ReceiptUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	if err := upd.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job, err := sqsqueue.NewJob(sqsqueue.JobDeliveryReceipt, upd)
	if err != nil {
		http.Error(w, ErrDependency, http.StatusInternalServerError)
		return
	}
	if err := wh.Queue.Enqueue(r.Context(), job); err != nil {
		slog.Error("receipt enqueue failed",
			"campaign_id", upd.CampaignID, "customer_id", upd.CustomerID, "err", err)
		http.Error(w, ErrQueueDown, http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
