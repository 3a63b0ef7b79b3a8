package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/robertrittmuller/stagemaster-ai/internal/infra"
)

// Handler processes one job id. It owns its error handling.
type Handler func(ctx context.Context, jobID string)

// ConsumerOptions tunes a Consumer.
type ConsumerOptions struct {
	// Concurrency bounds the number of jobs handled at once. Defaults to 1.
	Concurrency int
	// PollInterval is how long to wait after ErrEmpty before asking again.
	// Blocking queues can leave it at zero.
	PollInterval time.Duration
	// ErrorBackoff is the pause after a failed Dequeue. Defaults to 5s.
	ErrorBackoff time.Duration
	// ShutdownTimeout is how long in-flight jobs may keep running after Run's
	// context ends before their own context is cancelled. Defaults to 90s.
	ShutdownTimeout time.Duration
	Logger          *infra.Logger
}

// Consumer pulls job ids off a Queue and runs a Handler for each in its own goroutine.
type Consumer struct {
	queue   Queue
	handler Handler
	slots   *semaphore.Weighted
	poll    time.Duration
	backoff time.Duration
	grace   time.Duration
	logger  *infra.Logger
}

func NewConsumer(q Queue, handler Handler, opts ConsumerOptions) *Consumer {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	backoff := opts.ErrorBackoff
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	grace := opts.ShutdownTimeout
	if grace <= 0 {
		grace = 90 * time.Second
	}
	return &Consumer{
		queue:   q,
		handler: handler,
		slots:   semaphore.NewWeighted(int64(concurrency)),
		poll:    opts.PollInterval,
		backoff: backoff,
		grace:   grace,
		logger:  infra.LoggerOrDiscard(opts.Logger),
	}
}

// Run consumes until ctx is cancelled, then waits for in-flight handlers and
// returns ctx.Err(). Handlers run on a context that outlives ctx by at most
// the shutdown timeout, so jobs already started can finish.
func (c *Consumer) Run(ctx context.Context) error {
	jobsCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()
	var wg sync.WaitGroup
	defer c.drain(&wg, cancelJobs)

	for {
		if err := c.slots.Acquire(ctx, 1); err != nil {
			return ctx.Err()
		}
		jobID, err := c.queue.Dequeue(ctx)
		if err != nil {
			c.slots.Release(1)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrEmpty) {
				if !sleep(ctx, c.poll) {
					return ctx.Err()
				}
				continue
			}
			c.logger.Error().Err(err).Msg("worker: dequeue failed")
			if !sleep(ctx, c.backoff) {
				return ctx.Err()
			}
			continue
		}

		c.logger.Info().Str("job_id", jobID).Msg("worker: received job")
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer c.slots.Release(1)
			c.handler(jobsCtx, id)
		}(jobID)
	}
}

func (c *Consumer) drain(wg *sync.WaitGroup, cancelJobs context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(c.grace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		c.logger.Warn().Dur("timeout", c.grace).Msg("worker: shutdown timeout reached, cancelling in-flight jobs")
		cancelJobs()
		<-done
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
