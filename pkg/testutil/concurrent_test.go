package testutil

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "dataguard/pkg/domain-errors"
	"dataguard/pkg/platform/sentinel"
)

func TestRunConcurrentBuckets(t *testing.T) {
	outcomes := []error{
		nil,
		nil,
		sentinel.ErrLeaseHeld,
		fmt.Errorf("create: %w", sentinel.ErrLimitExceeded),
		dErrors.New(dErrors.CodeTooManyPending, "too many pending requests"),
		sentinel.ErrConflict,
		dErrors.New(dErrors.CodeNotFound, "request not found"),
		fmt.Errorf("boom"),
	}

	result := RunConcurrent(len(outcomes), func(i int) error { return outcomes[i] })

	assert.Equal(t, int32(2), result.Successes)
	assert.Equal(t, int32(3), result.Rejected)
	assert.Equal(t, int32(1), result.Conflicts)
	assert.Equal(t, int32(1), result.NotFounds)
	assert.Equal(t, int32(1), result.Errors)
	assert.Equal(t, int32(len(outcomes)), result.Total())
}
