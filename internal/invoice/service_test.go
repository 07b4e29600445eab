package invoice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
	"github.com/ahakem/bluemind-members-sub000/internal/docstore/memory"
	"github.com/ahakem/bluemind-members-sub000/internal/identity"
	"github.com/ahakem/bluemind-members-sub000/internal/logging"
	"github.com/ahakem/bluemind-members-sub000/internal/money"
)

var (
	admin = identity.Actor{ID: "admin-1", Name: "Ada Admin"}
	today = time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := NewService(store, docstore.RetryPolicy{MaxAttempts: 3}, logging.Discard(), WithClock(func() time.Time { return today }))
	return svc, store
}

func seed(t *testing.T, store docstore.Store, inv Invoice) {
	t.Helper()
	require.NoError(t, docstore.Put(context.Background(), store, Ref(inv.ID), inv.Fields()))
}

func TestMarkTransferInitiatedThenCancelIsRejected(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	seed(t, store, Invoice{ID: "inv-1", MemberID: "m1", Amount: money.MustParse("30"), Status: StatusPending})

	inv, err := svc.MarkTransferInitiated(ctx, "inv-1", admin)
	require.NoError(t, err)
	assert.Equal(t, StatusTransferInitiated, inv.Status)
	assert.Equal(t, today, inv.TransferInitiatedAt)

	stored, err := svc.Get(ctx, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, StatusTransferInitiated, stored.Status)
	assert.Equal(t, today, stored.TransferInitiatedAt)

	_, err = svc.Cancel(ctx, "inv-1", admin)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelPendingInvoice(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	seed(t, store, Invoice{ID: "inv-2", Amount: money.MustParse("10"), Status: StatusPending})

	inv, err := svc.Cancel(ctx, "inv-2", admin)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, inv.Status)
	assert.Equal(t, "admin-1", inv.CancelledBy)

	_, err = svc.MarkOverdue(ctx, "inv-2")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionsRequireActorAndExistingInvoice(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Cancel(ctx, "inv-x", identity.Actor{})
	require.ErrorIs(t, err, identity.ErrNoActor)

	_, err = svc.Cancel(ctx, "inv-x", admin)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSweepOverdue(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	past, future := today.AddDate(0, 0, -1), today.AddDate(0, 0, 7)
	seed(t, store, Invoice{ID: "late-pending", Amount: money.MustParse("5"), Status: StatusPending, DueDate: past})
	seed(t, store, Invoice{ID: "late-transfer", Amount: money.MustParse("5"), Status: StatusTransferInitiated, DueDate: past})
	seed(t, store, Invoice{ID: "not-due", Amount: money.MustParse("5"), Status: StatusPending, DueDate: future})
	seed(t, store, Invoice{ID: "late-paid", Amount: money.MustParse("5"), Status: StatusPaid, DueDate: past})
	seed(t, store, Invoice{ID: "no-due-date", Amount: money.MustParse("5"), Status: StatusPending})

	marked, err := svc.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, marked)

	for id, want := range map[string]Status{
		"late-pending":  StatusOverdue,
		"late-transfer": StatusOverdue,
		"not-due":       StatusPending,
		"late-paid":     StatusPaid,
		"no-due-date":   StatusPending,
	} {
		inv, err := svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, inv.Status, id)
	}

	marked, err = svc.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, marked)
}
