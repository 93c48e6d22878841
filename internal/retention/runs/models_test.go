package runs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataguard/internal/purge"
	id "dataguard/pkg/domain"
)

func outcome(recordID string, status purge.Status, at time.Time) Outcome {
	return Outcome{RecordType: "ticket", RecordID: recordID, Status: status, Reason: "boom", AttemptedAt: at}
}

func TestLedger_SettledRecordsIgnoreLaterFailures(t *testing.T) {
	t0 := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	l := BuildLedger([]Outcome{
		outcome("t-2", purge.StatusFailed, t0.Add(time.Hour)),
		outcome("t-1", purge.StatusSuccess, t0),
		outcome("t-2", purge.StatusNotFound, t0.Add(2*time.Hour)),
		outcome("t-3", purge.StatusFailed, t0),
	})

	assert.True(t, l.Settled("ticket/t-1"))
	assert.True(t, l.Settled("ticket/t-2"), "NOT_FOUND settles a record")
	assert.Zero(t, l.Attempts("ticket/t-2"))
	assert.False(t, l.Settled("ticket/t-3"))
	assert.Equal(t, 1, l.Attempts("ticket/t-3"))
}

func TestLedger_Escalated(t *testing.T) {
	t0 := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	l := NewLedger()
	for i := 0; i < 3; i++ {
		l.Observe(outcome("t-9", purge.StatusFailed, t0.Add(time.Duration(i)*time.Hour)))
	}
	l.Observe(outcome("t-4", purge.StatusFailed, t0))

	esc := l.Escalated(3)

	require.Len(t, esc, 1)
	assert.Equal(t, "t-9", esc[0].RecordID)
	assert.Equal(t, 3, esc[0].Attempts)
	assert.Equal(t, t0.Add(2*time.Hour), esc[0].LastAttempt)
	assert.Empty(t, l.Escalated(4))
}

func TestRun_CountAndFinish(t *testing.T) {
	now := time.Date(2026, 10, 15, 3, 0, 0, 0, time.UTC)
	run := NewRun(id.NewTenantID(), now.AddDate(0, 0, -90), TriggerSchedule, now)
	run.Count(purge.StatusSuccess)
	run.Count(purge.StatusNotFound)
	run.Count(purge.StatusFailed)
	run.Count(purge.StatusFailed)

	run.Finish(now.Add(time.Minute), false)

	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, 4, run.Attempted())
	assert.Equal(t, 2, run.Failed)
	require.NotNil(t, run.FinishedAt)

	run.Finish(now, true)
	assert.Equal(t, StatusInterrupted, run.Status)
}

func TestLedger_InterruptedAttemptsAreFree(t *testing.T) {
	t0 := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	l := NewLedger()
	l.Observe(Outcome{RecordType: "ticket", RecordID: "t-1", Status: purge.StatusFailed, Reason: purge.ReasonInterrupted, AttemptedAt: t0})

	assert.Zero(t, l.Attempts("ticket/t-1"))
	assert.False(t, l.Settled("ticket/t-1"))
}
