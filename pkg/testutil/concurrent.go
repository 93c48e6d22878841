package testutil

import (
	"errors"
	"sync"
	"sync/atomic"

	dErrors "dataguard/pkg/domain-errors"
	"dataguard/pkg/platform/sentinel"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
//
// Rejected counts calls turned away by a bound rather than a failure: a held
// lease, a full pending-request cap.
type ConcurrentResult struct {
	Successes int32
	Rejected  int32
	Conflicts int32
	NotFounds int32
	Errors    int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Rejected + r.Conflicts + r.NotFounds + r.Errors
}

// RunConcurrent executes fn in parallel goroutines and tallies the results.
// Store sentinels and their service-level codes land in the same bucket.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var res ConcurrentResult

	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			atomic.AddInt32(bucket(&res, fn(idx)), 1)
		}(i)
	}
	close(start)
	wg.Wait()

	return &res
}

func bucket(res *ConcurrentResult, err error) *int32 {
	switch {
	case err == nil:
		return &res.Successes
	case errors.Is(err, sentinel.ErrLeaseHeld),
		errors.Is(err, sentinel.ErrLimitExceeded),
		dErrors.HasCode(err, dErrors.CodeTooManyPending):
		return &res.Rejected
	case errors.Is(err, sentinel.ErrConflict), dErrors.HasCode(err, dErrors.CodeConflict):
		return &res.Conflicts
	case errors.Is(err, sentinel.ErrNotFound), dErrors.HasCode(err, dErrors.CodeNotFound):
		return &res.NotFounds
	default:
		return &res.Errors
	}
}
