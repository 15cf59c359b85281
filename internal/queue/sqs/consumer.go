package sqsqueue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type Consumer struct {
	SQS      *sqs.Client
	QueueURL string

	WaitTimeSeconds   int32
	MaxMessages       int32
	VisibilityTimeout int32
}

type Handler func(ctx context.Context, job Job) error

// Poll consumes the queue strictly one message at a time: at-least-once, the
// message is deleted only after the handler succeeds. Failures are left for
// the queue's redrive policy; malformed bodies are deleted so they cannot
// loop forever.
func (c *Consumer) Poll(ctx context.Context, handler Handler) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		out, err := c.SQS.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            &c.QueueURL,
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     c.WaitTimeSeconds,
			VisibilityTimeout:   c.VisibilityTimeout,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("sqs receive message failed", "queue_url", c.QueueURL, "err", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, m := range out.Messages {
			job, ok := decode(m)
			if !ok {
				c.delete(ctx, m)
				continue
			}
			if err := handler(ctx, job); err == nil {
				c.delete(ctx, m)
			} else {
				slog.Error("sqs handler error", "queue_url", c.QueueURL, "job", job.Name, "err", err)
			}
		}
	}
}

// PollConcurrent processes messages with a worker pool. Used for queues whose
// handlers are safe to interleave (delivery receipts); the ingestion and
// campaign queues stay on Poll.
func (c *Consumer) PollConcurrent(ctx context.Context, workers int, handler Handler) error {
	if workers <= 1 {
		return c.Poll(ctx, handler)
	}

	msgs := make(chan types.Message, workers*2)
	errCh := make(chan error, 1)

	sendErr := func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range msgs {
				job, ok := decode(m)
				if !ok {
					c.delete(ctx, m)
					continue
				}
				if err := handler(ctx, job); err == nil {
					c.delete(ctx, m)
				} else {
					slog.Error("sqs handler error", "queue_url", c.QueueURL, "job", job.Name, "err", err)
				}
			}
		}()
	}

	go func() {
		defer close(msgs)

		for {
			if ctx.Err() != nil {
				sendErr(ctx.Err())
				return
			}

			out, err := c.SQS.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
				QueueUrl:            &c.QueueURL,
				MaxNumberOfMessages: c.MaxMessages,
				WaitTimeSeconds:     c.WaitTimeSeconds,
				VisibilityTimeout:   c.VisibilityTimeout,
			})
			if err != nil {
				if ctx.Err() != nil {
					sendErr(ctx.Err())
					return
				}
				slog.Error("sqs receive message failed", "queue_url", c.QueueURL, "err", err)
				time.Sleep(500 * time.Millisecond)
				continue
			}

			for _, m := range out.Messages {
				select {
				case msgs <- m:
				case <-ctx.Done():
					sendErr(ctx.Err())
					return
				}
			}
		}
	}()

	// Block until shutdown, then let workers drain whatever was already fetched.
	err := <-errCh
	wg.Wait()
	return err
}

func decode(m types.Message) (Job, bool) {
	if m.Body == nil {
		return Job{}, false
	}
	var job Job
	if err := json.Unmarshal([]byte(*m.Body), &job); err != nil {
		return Job{}, false
	}
	return job, true
}

func (c *Consumer) delete(ctx context.Context, m types.Message) {
	_, _ = c.SQS.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &c.QueueURL,
		ReceiptHandle: m.ReceiptHandle,
	})
}
