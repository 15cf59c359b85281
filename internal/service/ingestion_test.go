package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"minicrm/internal/domain"
	sqsqueue "minicrm/internal/queue/sqs"
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

func customers(n int) []domain.CustomerRecord {
	out := make([]domain.CustomerRecord, n)
	for i := range out {
		out[i] = domain.CustomerRecord{
			Name:  fmt.Sprintf("Customer %d", i),
			Email: fmt.Sprintf("c%d@example.com", i),
		}
	}
	return out
}

func TestQueueCustomersChunksAndAssignsIDs(t *testing.T) {
	q := &fakeQueue{}
	ing := &Ingestion{Customers: q, BatchSize: 100}

	res, err := ing.QueueCustomers(context.Background(), customers(250))
	if err != nil {
		t.Fatalf("queue customers: %v", err)
	}
	if res.Queued != 250 || res.Batches != 3 {
		t.Fatalf("got %+v, want 250 queued in 3 batches", res)
	}
	if len(q.jobs) != 3 {
		t.Fatalf("enqueued %d jobs, want 3", len(q.jobs))
	}

	total := 0
	for i, job := range q.jobs {
		if job.Name != sqsqueue.JobPersistentBatch {
			t.Fatalf("job %d name = %q", i, job.Name)
		}
		var batch []domain.CustomerRecord
		if err := json.Unmarshal(job.Data, &batch); err != nil {
			t.Fatalf("job %d payload: %v", i, err)
		}
		for _, r := range batch {
			if r.ID == "" {
				t.Fatal("record queued without id")
			}
		}
		total += len(batch)
	}
	if total != 250 {
		t.Fatalf("batches hold %d records, want 250", total)
	}
	if want := 50; len(q.jobs) == 3 {
		var last []domain.CustomerRecord
		_ = json.Unmarshal(q.jobs[2].Data, &last)
		if len(last) != want {
			t.Fatalf("last batch holds %d records, want %d", len(last), want)
		}
	}
}

func TestQueueCustomersRejectsInvalidRecord(t *testing.T) {
	q := &fakeQueue{}
	ing := &Ingestion{Customers: q}

	recs := customers(2)
	recs[1].Email = ""
	if _, err := ing.QueueCustomers(context.Background(), recs); err == nil {
		t.Fatal("want validation error")
	}
	if len(q.jobs) != 0 {
		t.Fatal("nothing should be queued when validation fails")
	}
}

func TestQueueCustomersSurfacesEnqueueError(t *testing.T) {
	ing := &Ingestion{Customers: &fakeQueue{err: errors.New("sqs down")}}
	if _, err := ing.QueueCustomers(context.Background(), customers(1)); err == nil {
		t.Fatal("want enqueue error")
	}
}

func TestQueueOrdersAssignsItemIDs(t *testing.T) {
	q := &fakeQueue{}
	ing := &Ingestion{Orders: q}

	res, err := ing.QueueOrders(context.Background(), []domain.OrderRecord{{
		CustomerID:  "u1",
		TotalAmount: 1500,
		Currency:    "USD",
		Status:      "COMPLETED",
		Items: []domain.ItemRecord{
			{ProductID: "p1", Name: "Widget", Price: 750, Quantity: 2, Total: 1500},
		},
	}})
	if err != nil {
		t.Fatalf("queue orders: %v", err)
	}
	if res.Queued != 1 || res.Batches != 1 {
		t.Fatalf("got %+v", res)
	}
	if q.jobs[0].Name != sqsqueue.JobOrderBatch {
		t.Fatalf("job name = %q", q.jobs[0].Name)
	}

	var batch []domain.OrderRecord
	if err := json.Unmarshal(q.jobs[0].Data, &batch); err != nil {
		t.Fatal(err)
	}
	if batch[0].ID == "" || batch[0].Items[0].ID == "" {
		t.Fatal("order and item ids must be assigned before queueing")
	}
}

func TestQueueOrdersRejectsEmptyItems(t *testing.T) {
	ing := &Ingestion{Orders: &fakeQueue{}}
	_, err := ing.QueueOrders(context.Background(), []domain.OrderRecord{{
		CustomerID: "u1", TotalAmount: 100, Currency: "USD", Status: "PENDING",
	}})
	if !errors.Is(err, domain.ErrNoItems) {
		t.Fatalf("got %v, want ErrNoItems", err)
	}
}
