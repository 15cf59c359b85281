package sqsqueue

import (
	"encoding/json"
	"testing"
)

func TestChunkJobs(t *testing.T) {
	jobs := make([]Job, 23)
	chunks := chunkJobs(jobs, 10)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 10 || len(chunks[1]) != 10 || len(chunks[2]) != 3 {
		t.Fatalf("unexpected chunk sizes: %d/%d/%d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}

	if got := chunkJobs(nil, 10); len(got) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(got))
	}

	// size<=0 falls back to the SQS ceiling
	chunks = chunkJobs(make([]Job, 11), 0)
	if len(chunks) != 2 {
		t.Fatalf("expected default chunk size, got %d chunks", len(chunks))
	}
}

func TestNewJobEnvelope(t *testing.T) {
	job, err := NewJob(JobProcessCampaign, CampaignJobPayload{CampaignID: "cmp_1"})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if job.Name != "process-campaign" {
		t.Fatalf("unexpected name %q", job.Name)
	}

	var payload CampaignJobPayload
	if err := json.Unmarshal(job.Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.CampaignID != "cmp_1" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}
