package sqsqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQS caps SendMessageBatch at ten entries per request.
const maxBatchEntries = 10

type Producer struct {
	SQS      *sqs.Client
	QueueURL string
}

func (p *Producer) Enqueue(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = p.SQS.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: str(string(body)),
	})
	return err
}

// EnqueueBulk submits every job, chunked to the SQS batch ceiling. Partial
// rejections surface as an error so the producer's caller can report the
// submission as failed rather than silently dropping batches.
func (p *Producer) EnqueueBulk(ctx context.Context, jobs []Job) error {
	for _, group := range chunkJobs(jobs, maxBatchEntries) {
		entries := make([]types.SendMessageBatchRequestEntry, 0, len(group))
		for i, job := range group {
			body, err := json.Marshal(job)
			if err != nil {
				return err
			}
			entries = append(entries, types.SendMessageBatchRequestEntry{
				Id:          str(strconv.Itoa(i)),
				MessageBody: str(string(body)),
			})
		}
		out, err := p.SQS.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
			QueueUrl: &p.QueueURL,
			Entries:  entries,
		})
		if err != nil {
			return err
		}
		if len(out.Failed) > 0 {
			f := out.Failed[0]
			return fmt.Errorf("enqueue bulk: %d entries rejected, first: %s", len(out.Failed), deref(f.Message))
		}
	}
	return nil
}

func chunkJobs(jobs []Job, size int) [][]Job {
	if size <= 0 {
		size = maxBatchEntries
	}
	var out [][]Job
	for len(jobs) > size {
		out = append(out, jobs[:size])
		jobs = jobs[size:]
	}
	if len(jobs) > 0 {
		out = append(out, jobs)
	}
	return out
}

func str(s string) *string { return &s }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
