// Package queue hands staging job ids from the API to workers.
package queue

import (
	"context"
	"errors"
)

// ErrEmpty is returned by Dequeue when no job is waiting.
var ErrEmpty = errors.New("queue: empty")

// Queue is a FIFO of job ids.
type Queue interface {
	Enqueue(ctx context.Context, jobID string) error
	// Dequeue returns the next job id or ErrEmpty. Implementations may block
	// for a bounded time before giving up.
	Dequeue(ctx context.Context) (string, error)
}
