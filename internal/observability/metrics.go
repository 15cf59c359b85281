package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "crm_api_requests_total", Help: "API requests"},
		[]string{"endpoint", "status"},
	)
	Enqueues = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "crm_enqueue_total", Help: "Queue enqueue results"},
		[]string{"queue", "result"},
	)
	IngestBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "crm_ingest_batches_total", Help: "Ingestion batch outcomes"},
		[]string{"queue", "result"},
	)
	OrdersSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "crm_orders_skipped_total", Help: "Orders dropped for unknown customers"},
	)
	VendorSend = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "crm_vendor_send_total", Help: "Delivery channel outcomes"},
		[]string{"result"},
	)
	VendorLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "crm_vendor_send_latency_seconds", Help: "Delivery channel latency"},
	)
	CampaignsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "crm_campaigns_completed_total", Help: "Campaigns finalized"},
	)
	ReceiptEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "crm_receipt_events_total", Help: "Delivery receipt events"},
		[]string{"status"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, Enqueues, IngestBatches, OrdersSkipped,
		VendorSend, VendorLatency, CampaignsCompleted, ReceiptEvents)
}
