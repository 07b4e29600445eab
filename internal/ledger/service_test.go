package ledger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
	"github.com/ahakem/bluemind-members-sub000/internal/docstore/memory"
	"github.com/ahakem/bluemind-members-sub000/internal/identity"
	"github.com/ahakem/bluemind-members-sub000/internal/member"
	"github.com/ahakem/bluemind-members-sub000/internal/money"
	"github.com/ahakem/bluemind-members-sub000/internal/notification"
)

func TestAddClubFunds(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seedClubBalance("100")

	res, err := f.svc.AddClubFunds(f.ctx, AddClubFundsInput{Amount: num("50"), Reason: "donation"}, treasurer)
	require.NoError(t, err)
	require.NotNil(t, res.ClubBalance)
	assert.Equal(t, "150.00", res.ClubBalance.String())
	assert.Equal(t, 1, res.Attempts)

	assert.True(t, f.clubBalance().Equal(amt("150")))
	txs := f.clubTransactions()
	require.Len(t, txs, 1)
	assert.Equal(t, res.ClubTransactionID, txs[0].ID)
	assert.Equal(t, ClubManualAdd, txs[0].Type)
	assert.True(t, txs[0].Amount.Equal(amt("50")))
	assert.Equal(t, "donation", txs[0].Description)
	assert.Equal(t, "admin-1", txs[0].CreatedBy)
	assert.Equal(t, "Tess Treasurer", txs[0].CreatedByName)

	stored, err := f.svc.GetClubBalance(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", stored.UpdatedBy)
	assert.False(t, stored.LastUpdated.IsZero())
}

func TestAddClubFundsCreatesBalanceLazily(t *testing.T) {
	f := newFixture(t, testPolicy())
	assert.True(t, f.clubBalance().IsZero())

	_, err := f.svc.AddClubFunds(f.ctx, AddClubFundsInput{Amount: num("0.01"), Reason: "first cent"}, treasurer)
	require.NoError(t, err)
	assert.Equal(t, "0.01", f.clubBalance().String())
}

func TestPayExpense(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seedClubBalance("150")

	res, err := f.svc.PayExpense(f.ctx, PayExpenseInput{Vendor: "PoolCo", Description: "rental", Amount: num("60")}, treasurer)
	require.NoError(t, err)
	assert.Equal(t, "90.00", res.ClubBalance.String())
	assert.True(t, f.clubBalance().Equal(amt("90")))

	expenses, err := f.svc.ListExpenses(f.ctx, 0)
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, res.ExpenseID, expenses[0].ID)
	assert.Equal(t, ExpenseStatusPaid, expenses[0].Status)
	assert.True(t, expenses[0].Amount.Equal(amt("60")))
	assert.Equal(t, "PoolCo", expenses[0].Vendor)

	txs := f.clubTransactions()
	require.Len(t, txs, 1)
	assert.Equal(t, ClubInvoicePayment, txs[0].Type)
	assert.True(t, txs[0].Amount.Equal(amt("-60")))
	assert.Equal(t, res.ExpenseID, txs[0].ExpenseID)
}

func TestIssueRefundToMemberBalance(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seedClubBalance("100")
	f.seedMember("m1", "5", member.StatusActive)

	res, err := f.svc.IssueRefund(f.ctx, IssueRefundInput{MemberID: "m1", Amount: num("20"), Reason: "cancelled session", ToMemberBalance: true}, treasurer)
	require.NoError(t, err)
	require.NotNil(t, res.MemberBalance)
	assert.Equal(t, "25.00", res.MemberBalance.String())

	assert.True(t, f.clubBalance().Equal(amt("80")))
	assert.True(t, f.memberBalance("m1").Equal(amt("25")))

	club := f.clubTransactions()
	require.Len(t, club, 1)
	assert.Equal(t, ClubRefund, club[0].Type)
	assert.True(t, club[0].Amount.Equal(amt("-20")))
	assert.Equal(t, "m1", club[0].MemberID)
	assert.Equal(t, "Mara Deep", club[0].MemberName)

	mine := f.memberTransactions("m1")
	require.Len(t, mine, 1)
	assert.Equal(t, MemberRefund, mine[0].Type)
	assert.True(t, mine[0].Amount.Equal(amt("20")))
	assert.Equal(t, "admin-1", mine[0].AdminID)

	require.Len(t, f.notifier.messages, 1)
	assert.Equal(t, notification.KindRefundIssued, f.notifier.messages[0].Kind)
}

func TestIssueRefundPaidOut(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seedClubBalance("100")
	f.seedMember("m1", "5", member.StatusActive)

	res, err := f.svc.IssueRefund(f.ctx, IssueRefundInput{MemberID: "m1", Amount: num("20"), Reason: "bank transfer"}, treasurer)
	require.NoError(t, err)
	assert.Nil(t, res.MemberBalance)
	assert.Empty(t, res.MemberTransactionID)

	assert.True(t, f.clubBalance().Equal(amt("80")))
	assert.True(t, f.memberBalance("m1").Equal(amt("5")))
	assert.Equal(t, 1, f.count(ClubTransactionsCollection))
	assert.Zero(t, f.count(MemberTransactionsCollection))
}

func TestIssueRefundUnknownMemberWritesNothing(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seedClubBalance("100")

	_, err := f.svc.IssueRefund(f.ctx, IssueRefundInput{MemberID: "ghost", Amount: num("20"), Reason: "x"}, treasurer)
	require.ErrorIs(t, err, ErrMemberNotFound)
	assert.True(t, f.clubBalance().Equal(amt("100")))
	assert.Zero(t, f.count(ClubTransactionsCollection))
}

func TestAddMemberCredit(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seedClubBalance("100")
	f.seedMember("m1", "0", member.StatusActive)

	res, err := f.svc.AddMemberCredit(f.ctx, AddMemberCreditInput{MemberID: "m1", Amount: num("12.50"), Reason: "goodwill"}, treasurer)
	require.NoError(t, err)
	assert.Nil(t, res.ClubBalance)
	assert.Equal(t, "12.50", res.MemberBalance.String())

	assert.True(t, f.memberBalance("m1").Equal(amt("12.5")))
	assert.True(t, f.clubBalance().Equal(amt("100")))
	assert.Zero(t, f.count(ClubTransactionsCollection))

	mine := f.memberTransactions("m1")
	require.Len(t, mine, 1)
	assert.Equal(t, MemberAdminAdjustment, mine[0].Type)
	assert.Equal(t, "goodwill", mine[0].Description)
}

func TestValidationHappensBeforeAnyWrite(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seedMember("m1", "0", member.StatusActive)

	cases := []struct {
		name  string
		field string
		call  func() error
	}{
		{"zero amount", "amount", func() error {
			_, err := f.svc.AddClubFunds(f.ctx, AddClubFundsInput{Amount: num("0"), Reason: "x"}, treasurer)
			return err
		}},
		{"negative amount", "amount", func() error {
			_, err := f.svc.AddMemberCredit(f.ctx, AddMemberCreditInput{MemberID: "m1", Amount: num("-5"), Reason: "x"}, treasurer)
			return err
		}},
		{"three decimals", "amount", func() error {
			_, err := f.svc.PayExpense(f.ctx, PayExpenseInput{Vendor: "v", Description: "d", Amount: num("1.005")}, treasurer)
			return err
		}},
		{"not a number", "amount", func() error {
			_, err := f.svc.AddClubFunds(f.ctx, AddClubFundsInput{Amount: num("ten"), Reason: "x"}, treasurer)
			return err
		}},
		{"overflowing exponent", "amount", func() error {
			_, err := f.svc.AddClubFunds(f.ctx, AddClubFundsInput{Amount: num("1e309"), Reason: "x"}, treasurer)
			return err
		}},
		{"huge exponent", "amount", func() error {
			_, err := f.svc.AddMemberCredit(f.ctx, AddMemberCreditInput{MemberID: "m1", Amount: num("1e400000"), Reason: "x"}, treasurer)
			return err
		}},
		{"above maximum", "amount", func() error {
			_, err := f.svc.PayExpense(f.ctx, PayExpenseInput{Vendor: "v", Description: "d", Amount: num("1000000000.00")}, treasurer)
			return err
		}},
		{"refund above maximum", "amount", func() error {
			_, err := f.svc.IssueRefund(f.ctx, IssueRefundInput{MemberID: "m1", Amount: num("90071992547409.93"), Reason: "r"}, treasurer)
			return err
		}},
		{"missing amount", "amount", func() error {
			_, err := f.svc.AddClubFunds(f.ctx, AddClubFundsInput{Reason: "x"}, treasurer)
			return err
		}},
		{"blank reason", "reason", func() error {
			_, err := f.svc.AddClubFunds(f.ctx, AddClubFundsInput{Amount: num("5"), Reason: "   "}, treasurer)
			return err
		}},
		{"blank vendor", "vendor", func() error {
			_, err := f.svc.PayExpense(f.ctx, PayExpenseInput{Vendor: "", Description: "d", Amount: num("5")}, treasurer)
			return err
		}},
		{"blank member", "memberId", func() error {
			_, err := f.svc.IssueRefund(f.ctx, IssueRefundInput{MemberID: " ", Amount: num("5"), Reason: "r"}, treasurer)
			return err
		}},
		{"no actor", "actor", func() error {
			_, err := f.svc.AddClubFunds(f.ctx, AddClubFundsInput{Amount: num("5"), Reason: "x"}, identity.Actor{})
			return err
		}},
		{"no invoice id", "invoiceId", func() error {
			_, err := f.svc.ConfirmInvoicePayment(f.ctx, "", treasurer)
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			require.ErrorIs(t, err, ErrValidation)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tc.field, ve.Field)
		})
	}

	assert.Zero(t, f.count(ClubTransactionsCollection))
	assert.Zero(t, f.count(MemberTransactionsCollection))
	assert.Zero(t, f.count(ClubExpensesCollection))
	assert.True(t, f.clubBalance().IsZero())
}

func TestMaximumAmountIsStoredExactly(t *testing.T) {
	f := newFixture(t, testPolicy())

	res, err := f.svc.AddClubFunds(f.ctx, AddClubFundsInput{Amount: num("999999999.99"), Reason: "bequest"}, treasurer)
	require.NoError(t, err)
	assert.Equal(t, "999999999.99", res.ClubBalance.String())

	assert.True(t, f.clubBalance().Equal(money.MaxAmount))
	txs := f.clubTransactions()
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Amount.Equal(money.MaxAmount))

	got, err := f.svc.GetClubBalance(f.ctx)
	require.NoError(t, err)
	assert.True(t, got.Current.Equal(money.MaxAmount))
}

func TestBalancesStayWithinRange(t *testing.T) {
	f := newFixture(t, testPolicy())
	near := money.MaxBalance.Sub(amt("1"))
	require.NoError(t, docstore.Put(f.ctx, f.store, clubBalanceRef(), docstore.Fields{"currentBalance": near.Float64()}))
	require.NoError(t, docstore.Put(f.ctx, f.store, member.Ref("m1"), member.Member{ID: "m1", Balance: near}.Fields()))

	_, err := f.svc.AddClubFunds(f.ctx, AddClubFundsInput{Amount: num("5"), Reason: "x"}, treasurer)
	require.ErrorIs(t, err, ErrBalanceOutOfRange)
	_, err = f.svc.AddMemberCredit(f.ctx, AddMemberCreditInput{MemberID: "m1", Amount: num("5"), Reason: "x"}, treasurer)
	require.ErrorIs(t, err, ErrBalanceOutOfRange)

	assert.True(t, f.clubBalance().Equal(near))
	assert.True(t, f.memberBalance("m1").Equal(near))
	assert.Zero(t, f.count(ClubTransactionsCollection))
	assert.Zero(t, f.count(MemberTransactionsCollection))

	_, err = f.svc.AddClubFunds(f.ctx, AddClubFundsInput{Amount: num("1"), Reason: "x"}, treasurer)
	require.NoError(t, err)
	assert.True(t, f.clubBalance().Equal(money.MaxBalance))
}

func TestOperationsAreNotIdempotent(t *testing.T) {
	f := newFixture(t, testPolicy())
	in := AddClubFundsInput{Amount: num("10"), Reason: "raffle"}

	first, err := f.svc.AddClubFunds(f.ctx, in, treasurer)
	require.NoError(t, err)
	second, err := f.svc.AddClubFunds(f.ctx, in, treasurer)
	require.NoError(t, err)

	assert.NotEqual(t, first.ClubTransactionID, second.ClubTransactionID)
	assert.Equal(t, 2, f.count(ClubTransactionsCollection))
	assert.True(t, f.clubBalance().Equal(amt("20")))
}

func TestFailedCommitLeavesNoPartialWrites(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.seedClubBalance("100")
	f.seedMember("m1", "5", member.StatusActive)

	boom := errors.New("connection reset")
	f.store.SetCommitHook(func(writes []memory.Write) error {
		// Fail only once the operation has read everything and queued its
		// balance and entry writes.
		if len(writes) >= 4 {
			return boom
		}
		return nil
	})

	_, err := f.svc.IssueRefund(f.ctx, IssueRefundInput{MemberID: "m1", Amount: num("20"), Reason: "x", ToMemberBalance: true}, treasurer)
	require.ErrorIs(t, err, boom)
	assert.False(t, IsRetryable(err))

	assert.True(t, f.clubBalance().Equal(amt("100")))
	assert.True(t, f.memberBalance("m1").Equal(amt("5")))
	assert.Zero(t, f.count(ClubTransactionsCollection))
	assert.Zero(t, f.count(MemberTransactionsCollection))
	assert.Empty(t, f.notifier.messages)
}

func TestNegativeBalancePolicies(t *testing.T) {
	policy := testPolicy()
	policy.AllowNegativeClubBalance = false
	policy.AllowNegativeMemberBalance = false
	f := newFixture(t, policy)
	f.seedClubBalance("10")
	f.seedMember("m1", "-50", member.StatusActive)

	_, err := f.svc.PayExpense(f.ctx, PayExpenseInput{Vendor: "v", Description: "d", Amount: num("10.01")}, treasurer)
	require.ErrorIs(t, err, ErrNegativeClubBalance)
	assert.True(t, f.clubBalance().Equal(amt("10")))
	assert.Zero(t, f.count(ClubExpensesCollection))

	// Crediting a member who is already below zero is still allowed.
	res, err := f.svc.AddMemberCredit(f.ctx, AddMemberCreditInput{MemberID: "m1", Amount: num("10"), Reason: "r"}, treasurer)
	require.NoError(t, err)
	assert.Equal(t, "-40.00", res.MemberBalance.String())

	_, err = f.svc.nextMemberBalance(f.member("m1"), amt("-0.01"))
	require.ErrorIs(t, err, ErrNegativeMemberBalance)

	// The default policy allows both.
	g := newFixture(t, testPolicy())
	g.seedClubBalance("10")
	_, err = g.svc.PayExpense(g.ctx, PayExpenseInput{Vendor: "v", Description: "d", Amount: num("25")}, treasurer)
	require.NoError(t, err)
	assert.True(t, g.clubBalance().Equal(amt("-15")))
}
