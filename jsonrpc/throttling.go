package jsonrpc

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"
)

var errRequestLimitExceeded = errors.New("request limit exceeded")

// Throttling limits the number of concurrently served requests
type Throttling struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

// NewThrottling creates a throttling which serves at most maximumConcurrentRequests requests at a time.
// A request waits at most timeout for a free slot.
func NewThrottling(maximumConcurrentRequests uint64, timeout time.Duration) *Throttling {
	return &Throttling{
		sem:     semaphore.NewWeighted(int64(maximumConcurrentRequests)),
		timeout: timeout,
	}
}

// AttemptRequest runs requestHandler once a slot is free
func (t *Throttling) AttemptRequest(
	ctx context.Context,
	requestHandler func() (interface{}, error),
) (interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if err := t.sem.Acquire(ctx, 1); err != nil {
		return nil, errRequestLimitExceeded
	}

	defer t.sem.Release(1)

	return requestHandler()
}
