package invoice

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
	"github.com/ahakem/bluemind-members-sub000/internal/money"
)

func TestTransitionTable(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPending, StatusTransferInitiated}: true,
		{StatusPending, StatusPaid}:              true,
		{StatusPending, StatusOverdue}:           true,
		{StatusPending, StatusCancelled}:         true,
		{StatusTransferInitiated, StatusPaid}:    true,
		{StatusTransferInitiated, StatusOverdue}: true,
		{StatusOverdue, StatusPaid}:              true,
	}
	all := []Status{StatusPending, StatusTransferInitiated, StatusPaid, StatusOverdue, StatusCancelled}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.True(t, StatusPaid.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusOverdue.Terminal())
}

func TestCheckTransitionError(t *testing.T) {
	err := Invoice{ID: "inv-1", Status: StatusPaid}.CheckTransition(StatusPaid)
	require.ErrorIs(t, err, ErrInvalidTransition)

	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StatusPaid, te.From)
	assert.Equal(t, StatusPaid, te.To)
}

func TestFromSnapshot(t *testing.T) {
	due := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	snap := docstore.Snapshot{
		Ref:    Ref("inv-1"),
		Exists: true,
		Fields: docstore.Fields{
			FieldMemberID:   "m1",
			FieldMemberName: "Mara Deep",
			FieldAmount:     25.0,
			FieldStatus:     "transfer_initiated",
			FieldReference:  "BM-2024-0001",
			FieldType:       TypeMembership,
			FieldDueDate:    due,
		},
	}
	inv, err := FromSnapshot(snap)
	require.NoError(t, err)
	assert.Equal(t, StatusTransferInitiated, inv.Status)
	assert.True(t, inv.Amount.Equal(money.MustParse("25")))
	assert.True(t, inv.IsMembership())
	assert.False(t, inv.IsTopUp)
	assert.Equal(t, due, inv.DueDate)
	assert.True(t, inv.IsPastDue(due.Add(time.Hour)))
	assert.False(t, inv.IsPastDue(due.Add(-time.Hour)))

	_, err = FromSnapshot(docstore.Snapshot{Ref: Ref("nope")})
	assert.ErrorIs(t, err, ErrNotFound)

	bad := snap
	bad.Fields = docstore.Merge(snap.Fields, docstore.Fields{FieldAmount: 0.0})
	_, err = FromSnapshot(bad)
	assert.ErrorIs(t, err, ErrMalformed)

	bad.Fields = docstore.Merge(snap.Fields, docstore.Fields{FieldStatus: "refunded"})
	_, err = FromSnapshot(bad)
	assert.ErrorIs(t, err, ErrMalformed)

	for _, amount := range []any{1e12, math.Inf(1)} {
		bad.Fields = docstore.Merge(snap.Fields, docstore.Fields{FieldAmount: amount})
		_, err = FromSnapshot(bad)
		assert.ErrorIs(t, err, ErrMalformed, amount)
	}
}
