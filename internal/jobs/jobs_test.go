package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahakem/bluemind-members-sub000/internal/ledger"
	"github.com/ahakem/bluemind-members-sub000/internal/logging"
	"github.com/ahakem/bluemind-members-sub000/internal/money"
)

type fakeSweeper struct {
	calls atomic.Int32
	err   error
}

func (f *fakeSweeper) SweepOverdue(context.Context) (int, error) {
	f.calls.Add(1)
	return 2, f.err
}

type fakeReconciler struct {
	calls atomic.Int32
	panic bool
}

func (f *fakeReconciler) Reconcile(context.Context) (ledger.Report, error) {
	f.calls.Add(1)
	if f.panic {
		panic("boom")
	}
	return ledger.Report{ClubDifference: money.Zero}, nil
}

func TestRunAllJoinsErrors(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("store down")}
	reconciler := &fakeReconciler{}
	runner := NewRunner(sweeper, reconciler, logging.Discard(), time.Second)

	err := runner.RunAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store down")
	assert.EqualValues(t, 1, sweeper.calls.Load())
	assert.EqualValues(t, 1, reconciler.calls.Load(), "reconcile still runs after a failed sweep")
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	runner := NewRunner(&fakeSweeper{}, &fakeReconciler{}, logging.Discard(), time.Second)
	_, err := NewScheduler(runner, Schedules{OverdueSweep: "every day"}, logging.Discard())
	require.Error(t, err)
}

func TestSchedulerSkipsEmptySchedules(t *testing.T) {
	runner := NewRunner(&fakeSweeper{}, &fakeReconciler{}, logging.Discard(), time.Second)
	s, err := NewScheduler(runner, Schedules{OverdueSweep: "0 2 * * *"}, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Entries())
}

func TestSchedulerRecoversPanickingJobs(t *testing.T) {
	sweeper := &fakeSweeper{}
	reconciler := &fakeReconciler{panic: true}
	runner := NewRunner(sweeper, reconciler, logging.Discard(), time.Second)

	s, err := NewScheduler(runner, Schedules{OverdueSweep: "@every 1s", Reconcile: "@every 1s"}, logging.Discard())
	require.NoError(t, err)
	s.Start()

	require.Eventually(t, func() bool {
		return sweeper.calls.Load() >= 2 && reconciler.calls.Load() >= 2
	}, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
