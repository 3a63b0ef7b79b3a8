package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robertrittmuller/stagemaster-ai/internal/infra"
)

const (
	DefaultSweepInterval = 30 * time.Second
	DefaultStaleAfter    = 30 * time.Second
)

// Claimer claims job rows directly in the database.
type Claimer interface {
	ClaimStale(ctx context.Context, age time.Duration) (string, error)
	Claim(ctx context.Context, jobID string) (bool, error)
}

// SweepOptions tunes a SweepingQueue.
type SweepOptions struct {
	// Interval is the minimum time between sweeps for stale pending jobs.
	Interval time.Duration
	// StaleAfter is how long a job must have been pending before a sweep takes it.
	StaleAfter time.Duration
	Logger     *infra.Logger
	Now        func() time.Time
}

// SweepingQueue delivers ids from a push queue and periodically claims jobs
// that stayed pending in the database, such as ones whose push failed or
// that were created while the API had no Redis connection. Every id is
// claimed in the database before it is returned, so a job found by both
// paths runs once.
type SweepingQueue struct {
	primary    Queue
	claims     Claimer
	interval   time.Duration
	staleAfter time.Duration
	logger     *infra.Logger
	now        func() time.Time

	mu        sync.Mutex
	lastSweep time.Time
}

func NewSweepingQueue(primary Queue, claims Claimer, opts SweepOptions) *SweepingQueue {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	staleAfter := opts.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &SweepingQueue{
		primary:    primary,
		claims:     claims,
		interval:   interval,
		staleAfter: staleAfter,
		logger:     infra.LoggerOrDiscard(opts.Logger),
		now:        now,
	}
}

func (q *SweepingQueue) Enqueue(ctx context.Context, jobID string) error {
	return q.primary.Enqueue(ctx, jobID)
}

func (q *SweepingQueue) Dequeue(ctx context.Context) (string, error) {
	if q.sweepDue() {
		id, err := q.claims.ClaimStale(ctx, q.staleAfter)
		switch {
		case err == nil:
			q.logger.Warn().Str("job_id", id).Msg("worker: claimed stale pending job")
			return id, nil
		case !errors.Is(err, ErrEmpty):
			q.logger.Error().Err(err).Msg("worker: stale job sweep failed")
		}
	}

	id, err := q.primary.Dequeue(ctx)
	if err != nil {
		return "", err
	}
	claimed, err := q.claims.Claim(ctx, id)
	if err != nil {
		return "", fmt.Errorf("claim %s: %w", id, err)
	}
	if !claimed {
		q.logger.Info().Str("job_id", id).Msg("worker: job already claimed, skipping")
		return "", ErrEmpty
	}
	return id, nil
}

func (q *SweepingQueue) sweepDue() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	if !q.lastSweep.IsZero() && now.Sub(q.lastSweep) < q.interval {
		return false
	}
	q.lastSweep = now
	return true
}

var _ Claimer = (*PostgresQueue)(nil)
