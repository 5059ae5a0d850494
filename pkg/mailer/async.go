package mailer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/iufc-admission-api/pkg/jobs"
)

const jobTypeMail = "mail"

// AsyncSender hands messages to a job queue. Failed deliveries are retried by
// the queue.
type AsyncSender struct {
	queue *jobs.Queue
}

// NewAsyncSender builds the queue around next. Call Start before sending.
func NewAsyncSender(next Sender, cfg jobs.QueueConfig) *AsyncSender {
	handler := func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(Message)
		if !ok {
			return fmt.Errorf("unexpected mail payload %T", job.Payload)
		}
		return next.Send(ctx, msg)
	}
	return &AsyncSender{queue: jobs.NewQueue("mailer", handler, cfg)}
}

// Start launches the workers.
func (s *AsyncSender) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *AsyncSender) Stop() {
	s.queue.Stop()
}

// Stats reports delivery outcomes since construction.
func (s *AsyncSender) Stats() jobs.Stats {
	return s.queue.Stats()
}

// Send validates and enqueues msg.
func (s *AsyncSender) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	return s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: jobTypeMail, Payload: msg})
}
