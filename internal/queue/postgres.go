package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robertrittmuller/stagemaster-ai/internal/infra"
	"github.com/robertrittmuller/stagemaster-ai/internal/sqlinline"
)

// PostgresQueue treats pending rows in the jobs table as the queue. Dequeue
// claims the oldest one with FOR UPDATE SKIP LOCKED so two workers never get
// the same job.
type PostgresQueue struct {
	sql infra.SQLExecutor
}

func NewPostgresQueue(sql infra.SQLExecutor) *PostgresQueue {
	return &PostgresQueue{sql: sql}
}

// Enqueue is a no-op: the job row is already pending when it is created.
func (q *PostgresQueue) Enqueue(ctx context.Context, jobID string) error {
	return nil
}

func (q *PostgresQueue) Dequeue(ctx context.Context) (string, error) {
	return q.claimOne(ctx, sqlinline.QWorkerClaimJob)
}

// ClaimStale claims the oldest job pending for longer than age, or returns ErrEmpty.
func (q *PostgresQueue) ClaimStale(ctx context.Context, age time.Duration) (string, error) {
	return q.claimOne(ctx, sqlinline.QWorkerClaimStaleJob, age.Seconds())
}

// Claim marks jobID in_progress. It reports false when the job is no longer pending.
func (q *PostgresQueue) Claim(ctx context.Context, jobID string) (bool, error) {
	if _, err := q.claimOne(ctx, sqlinline.QWorkerClaimJobByID, jobID); err != nil {
		if errors.Is(err, ErrEmpty) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (q *PostgresQueue) claimOne(ctx context.Context, query string, args ...any) (string, error) {
	var id string
	if err := q.sql.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if infra.IsNoRows(err) {
			return "", ErrEmpty
		}
		return "", fmt.Errorf("claim job: %w", err)
	}
	return id, nil
}
