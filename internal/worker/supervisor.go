// Package worker runs queue consumers under one supervisor so a single
// process can serve several queues and shut them all down together.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	sqsqueue "minicrm/internal/queue/sqs"
)

// Poller is what the supervisor drives; *sqsqueue.Consumer satisfies it.
type Poller interface {
	PollConcurrent(ctx context.Context, workers int, handler sqsqueue.Handler) error
}

// Binding ties one queue to one handler. Concurrency 1 keeps consumption
// strictly serial, which the ingestion and campaign queues rely on.
type Binding struct {
	Name        string
	Poller      Poller
	Handler     sqsqueue.Handler
	Concurrency int
}

type Supervisor struct {
	Bindings []Binding
}

// Run polls every binding until ctx is cancelled. In-flight jobs finish
// before it returns; context cancellation is the normal way out and is not
// reported as an error.
func (s *Supervisor) Run(ctx context.Context) error {
	errCh := make(chan error, len(s.Bindings))

	var wg sync.WaitGroup
	for _, b := range s.Bindings {
		wg.Add(1)
		go func(b Binding) {
			defer wg.Done()

			workers := b.Concurrency
			if workers < 1 {
				workers = 1
			}
			slog.Info("worker polling", "queue", b.Name, "concurrency", workers)
			errCh <- b.Poller.PollConcurrent(ctx, workers, logged(b.Name, b.Handler))
		}(b)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}

func logged(queue string, h sqsqueue.Handler) sqsqueue.Handler {
	return func(ctx context.Context, job sqsqueue.Job) error {
		start := time.Now()
		err := h(ctx, job)
		if err != nil {
			slog.Error("job failed", "queue", queue, "job", job.Name,
				"duration", time.Since(start), "err", err)
		} else {
			slog.Info("job done", "queue", queue, "job", job.Name,
				"duration", time.Since(start))
		}
		return err
	}
}
