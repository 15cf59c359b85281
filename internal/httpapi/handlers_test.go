package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"minicrm/internal/domain"
	sqsqueue "minicrm/internal/queue/sqs"
	"minicrm/internal/service"
	"minicrm/internal/store"
)

type fakeQueue struct {
	jobs []sqsqueue.Job
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job sqsqueue.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) EnqueueBulk(_ context.Context, jobs []sqsqueue.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, jobs...)
	return nil
}

type fakeCampaignStore struct {
	campaign domain.Campaign
	found    bool
	logs     []domain.CommunicationLog
	listErr  error
}

func (f *fakeCampaignStore) ListCustomersForSegmentation(context.Context) ([]store.SegmentationCustomer, error) {
	return nil, f.listErr
}
func (f *fakeCampaignStore) CreateSegment(context.Context, store.SegmentCreate) error   { return nil }
func (f *fakeCampaignStore) CreateCampaign(context.Context, store.CampaignCreate) error { return nil }
func (f *fakeCampaignStore) GetCampaign(context.Context, string) (domain.Campaign, bool, error) {
	return f.campaign, f.found, nil
}
func (f *fakeCampaignStore) ListCampaignLogs(context.Context, string) ([]domain.CommunicationLog, error) {
	return f.logs, nil
}

func newTestRouter(custQ, orderQ, campQ *fakeQueue, st *fakeCampaignStore) *mux.Router {
	r := mux.NewRouter()
	api := &API{
		Ingestion: &service.Ingestion{Customers: custQ, Orders: orderQ, BatchSize: 100},
		Campaigns: &service.Campaigns{Store: st, Queue: campQ},
	}
	api.Register(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIngestCustomersAcceptsArrayAndObject(t *testing.T) {
	q := &fakeQueue{}
	r := newTestRouter(q, &fakeQueue{}, &fakeQueue{}, &fakeCampaignStore{})

	rec := do(t, r, http.MethodPost, "/v1/customers",
		`[{"name":"A","email":"a@x.com"},{"name":"B","email":"b@x.com"}]`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("array post: status %d, body %s", rec.Code, rec.Body)
	}
	var res service.IngestResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Queued != 2 || res.Batches != 1 {
		t.Fatalf("got %+v", res)
	}

	rec = do(t, r, http.MethodPost, "/v1/customers", `{"name":"C","email":"c@x.com"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("object post: status %d", rec.Code)
	}
	if len(q.jobs) != 2 {
		t.Fatalf("enqueued %d jobs, want 2", len(q.jobs))
	}
}

func TestIngestCustomersRejectsBadPayloads(t *testing.T) {
	r := newTestRouter(&fakeQueue{}, &fakeQueue{}, &fakeQueue{}, &fakeCampaignStore{})

	for _, body := range []string{``, `[]`, `{not json`, `[{"name":"A"}]`} {
		rec := do(t, r, http.MethodPost, "/v1/customers", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status %d, want 400", body, rec.Code)
		}
	}
}

func TestIngestReturns503WhenQueueDown(t *testing.T) {
	r := newTestRouter(&fakeQueue{err: errors.New("sqs down")}, &fakeQueue{}, &fakeQueue{}, &fakeCampaignStore{})

	rec := do(t, r, http.MethodPost, "/v1/customers", `[{"name":"A","email":"a@x.com"}]`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", rec.Code)
	}
}

func TestIngestOrdersValidation(t *testing.T) {
	q := &fakeQueue{}
	r := newTestRouter(&fakeQueue{}, q, &fakeQueue{}, &fakeCampaignStore{})

	rec := do(t, r, http.MethodPost, "/v1/orders",
		`[{"customerId":"u1","totalAmount":1500,"currency":"USD","status":"COMPLETED",
		   "items":[{"productId":"p1","name":"Widget","price":750,"quantity":2,"total":1500}]}]`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body)
	}
	if len(q.jobs) != 1 || q.jobs[0].Name != sqsqueue.JobOrderBatch {
		t.Fatalf("jobs: %+v", q.jobs)
	}

	rec = do(t, r, http.MethodPost, "/v1/orders",
		`[{"customerId":"u1","totalAmount":100,"currency":"USD","status":"PENDING","items":[]}]`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("itemless order: status %d, want 400", rec.Code)
	}
}

func TestCreateCampaignEndpoint(t *testing.T) {
	campQ := &fakeQueue{}
	r := newTestRouter(&fakeQueue{}, &fakeQueue{}, campQ, &fakeCampaignStore{})

	rec := do(t, r, http.MethodPost, "/v1/campaigns",
		`{"campaignName":"Summer","message":"Hi {{name}}","segmentName":"All",
		  "segmentRules":{"groups":[{"conditions":[{"field":"email","operator":"isNotEmpty"}]}]}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body)
	}
	var cmp domain.Campaign
	if err := json.Unmarshal(rec.Body.Bytes(), &cmp); err != nil {
		t.Fatal(err)
	}
	if cmp.Status != domain.CampaignProcessing || cmp.ID == "" {
		t.Fatalf("campaign: %+v", cmp)
	}
	if len(campQ.jobs) != 1 || campQ.jobs[0].Name != sqsqueue.JobProcessCampaign {
		t.Fatalf("campaign queue jobs: %+v", campQ.jobs)
	}

	rec = do(t, r, http.MethodPost, "/v1/campaigns", `{"campaignName":"NoRules"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid request: status %d, want 400", rec.Code)
	}
}

func TestCreateCampaignQueueDownReturns503WithBody(t *testing.T) {
	r := newTestRouter(&fakeQueue{}, &fakeQueue{}, &fakeQueue{err: errors.New("sqs down")}, &fakeCampaignStore{})

	rec := do(t, r, http.MethodPost, "/v1/campaigns",
		`{"campaignName":"Stuck","message":"Hi","segmentName":"All",
		  "segmentRules":{"groups":[{"conditions":[{"field":"email","operator":"isNotEmpty"}]}]}}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", rec.Code)
	}
	var cmp domain.Campaign
	if err := json.Unmarshal(rec.Body.Bytes(), &cmp); err != nil {
		t.Fatal(err)
	}
	if cmp.ID == "" {
		t.Fatal("response should carry the persisted campaign id for replay")
	}
}

func TestCreateCampaignStoreDownReturns502(t *testing.T) {
	st := &fakeCampaignStore{listErr: errors.New("db down")}
	r := newTestRouter(&fakeQueue{}, &fakeQueue{}, &fakeQueue{}, st)

	rec := do(t, r, http.MethodPost, "/v1/campaigns",
		`{"campaignName":"Summer","message":"Hi","segmentName":"All",
		  "segmentRules":{"groups":[{"conditions":[{"field":"email","operator":"isNotEmpty"}]}]}}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status %d, want 502", rec.Code)
	}
}

func TestGetCampaignAndLogs(t *testing.T) {
	now := time.Now().UTC()
	st := &fakeCampaignStore{
		campaign: domain.Campaign{ID: "cmp_1", Name: "Summer", Status: domain.CampaignCompleted, CreatedAt: now},
		found:    true,
		logs: []domain.CommunicationLog{
			{ID: "log_1", CampaignID: "cmp_1", CustomerID: "u1", Status: domain.LogSent, CreatedAt: now, UpdatedAt: now},
		},
	}
	r := newTestRouter(&fakeQueue{}, &fakeQueue{}, &fakeQueue{}, st)

	rec := do(t, r, http.MethodGet, "/v1/campaigns/cmp_1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}
	var cmp domain.Campaign
	if err := json.Unmarshal(rec.Body.Bytes(), &cmp); err != nil {
		t.Fatal(err)
	}
	if cmp.ID != "cmp_1" || cmp.Status != domain.CampaignCompleted {
		t.Fatalf("campaign: %+v", cmp)
	}

	rec = do(t, r, http.MethodGet, "/v1/campaigns/cmp_1/logs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("logs: status %d", rec.Code)
	}
	var logs []domain.CommunicationLog
	if err := json.Unmarshal(rec.Body.Bytes(), &logs); err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].Status != domain.LogSent {
		t.Fatalf("logs: %+v", logs)
	}

	st.found = false
	rec = do(t, r, http.MethodGet, "/v1/campaigns/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing campaign: status %d, want 404", rec.Code)
	}
}

func TestReceiptWebhook(t *testing.T) {
	q := &fakeQueue{}
	r := mux.NewRouter()
	(&ReceiptWebhook{Queue: q}).Register(r)

	rec := do(t, r, http.MethodPost, "/v1/receipts/delivery",
		`{"campaignId":"cmp_1","customerId":"u1","vendorMessageId":"msg_cmp_1_u1","status":"DELIVERED"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body)
	}
	if len(q.jobs) != 1 || q.jobs[0].Name != sqsqueue.JobDeliveryReceipt {
		t.Fatalf("jobs: %+v", q.jobs)
	}
	var upd domain.ReceiptUpdate
	if err := json.Unmarshal(q.jobs[0].Data, &upd); err != nil {
		t.Fatal(err)
	}
	if upd.Status != "DELIVERED" {
		t.Fatalf("payload: %+v", upd)
	}

	rec = do(t, r, http.MethodPost, "/v1/receipts/delivery", `{"campaignId":"cmp_1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("incomplete receipt: status %d, want 400", rec.Code)
	}

	q.err = errors.New("sqs down")
	rec = do(t, r, http.MethodPost, "/v1/receipts/delivery",
		`{"campaignId":"cmp_1","customerId":"u1","vendorMessageId":"m","status":"DELIVERED"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("queue down: status %d, want 503", rec.Code)
	}
}
