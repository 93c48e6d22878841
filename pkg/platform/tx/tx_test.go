package tx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "dataguard/pkg/domain-errors"
)

func TestMemoryRunner_NestedCallsDoNotDeadlock(t *testing.T) {
	r := NewMemoryRunner()
	calls := 0

	err := r.RunInTx(context.Background(), func(ctx context.Context) error {
		calls++
		return r.RunInTx(ctx, func(context.Context) error {
			calls++
			return nil
		})
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestMemoryRunner_PropagatesError(t *testing.T) {
	r := NewMemoryRunner()
	boom := errors.New("boom")

	err := r.RunInTx(context.Background(), func(context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
}

func TestMemoryRunner_CancelledContext(t *testing.T) {
	r := NewMemoryRunner()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.RunInTx(ctx, func(context.Context) error {
		t.Fatal("fn must not run on cancelled context")
		return nil
	})

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestMemoryRunner_RunsUndoInReverseOnFailure(t *testing.T) {
	r := NewMemoryRunner()
	var order []int

	err := r.RunInTx(context.Background(), func(ctx context.Context) error {
		OnRollback(ctx, func() { order = append(order, 1) })
		return r.RunInTx(ctx, func(ctx context.Context) error {
			OnRollback(ctx, func() { order = append(order, 2) })
			return errors.New("audit write failed")
		})
	})

	require.Error(t, err)
	assert.Equal(t, []int{2, 1}, order)
}

func TestMemoryRunner_SkipsUndoOnSuccess(t *testing.T) {
	r := NewMemoryRunner()
	called := false

	err := r.RunInTx(context.Background(), func(ctx context.Context) error {
		OnRollback(ctx, func() { called = true })
		return nil
	})

	require.NoError(t, err)
	assert.False(t, called)
	OnRollback(context.Background(), func() { called = true })
	assert.False(t, called)
}

func TestFrom_WithoutTransaction(t *testing.T) {
	_, ok := From(context.Background())
	assert.False(t, ok)
	assert.Equal(t, context.Background(), WithTx(context.Background(), nil))
}
