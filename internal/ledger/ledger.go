// Package ledger implements the club's financial ledger: the club balance,
// member prepaid balances, and the append-only transaction history that
// explains both.
//
// Every operation validates its input, then runs one store transaction that
// first reads every document it may need and then writes the new balances
// together with the ledger entries describing the change. Either all of those
// writes commit or none do. Transactions that lose a race are retried from the
// top with a bounded exponential backoff.
//
// Operations are not idempotent: calling one twice records two economic events.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
	"github.com/ahakem/bluemind-members-sub000/internal/money"
)

// Collections and the singleton balance document.
const (
	SettingsCollection           = "settings"
	ClubBalanceID                = "clubBalance"
	ClubTransactionsCollection   = "clubTransactions"
	ClubExpensesCollection       = "clubExpenses"
	MemberTransactionsCollection = "memberTransactions"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrMemberNotFound        = errors.New("member not found")
	ErrNegativeMemberBalance = errors.New("member balance would become negative")
	ErrNegativeClubBalance   = errors.New("club balance would become negative")
	ErrBalanceOutOfRange     = errors.New("balance would exceed the supported range")
	ErrRetriesExhausted      = docstore.ErrRetriesExhausted
)

// ValidationError names the input field that was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IsRetryable reports whether err was caused by a concurrent modification.
func IsRetryable(err error) bool {
	return docstore.IsRetryable(err)
}

// ClubTransactionType categorises a club ledger entry.
type ClubTransactionType string

const (
	ClubSessionPayment ClubTransactionType = "session_payment"
	ClubRefund         ClubTransactionType = "refund"
	ClubManualAdd      ClubTransactionType = "manual_add"
	ClubInvoicePayment ClubTransactionType = "invoice_payment"
	ClubMemberTopUp    ClubTransactionType = "member_topup"
)

// Valid reports whether t is a known type.
func (t ClubTransactionType) Valid() bool {
	switch t {
	case ClubSessionPayment, ClubRefund, ClubManualAdd, ClubInvoicePayment, ClubMemberTopUp:
		return true
	default:
		return false
	}
}

// MemberTransactionType categorises a member ledger entry.
type MemberTransactionType string

const (
	MemberRefund          MemberTransactionType = "refund"
	MemberAdminAdjustment MemberTransactionType = "admin_adjustment"
	MemberTopUp           MemberTransactionType = "topup"
)

// Valid reports whether t is a known type.
func (t MemberTransactionType) Valid() bool {
	switch t {
	case MemberRefund, MemberAdminAdjustment, MemberTopUp:
		return true
	default:
		return false
	}
}

// ExpenseStatusPaid is the only expense status in use.
const ExpenseStatusPaid = "paid"

// Policy tunes retries and the balance floor checks.
type Policy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// AllowNegativeMemberBalance lets operations leave a member below zero.
	AllowNegativeMemberBalance bool
	// AllowNegativeClubBalance lets expenses and refunds overdraw the club.
	AllowNegativeClubBalance bool
}

// DefaultPolicy matches the behaviour the club runs with today: five
// attempts, 20ms doubling backoff and no balance floors.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:                docstore.DefaultMaxAttempts,
		BaseBackoff:                docstore.DefaultBaseBackoff,
		MaxBackoff:                 docstore.DefaultMaxBackoff,
		AllowNegativeMemberBalance: true,
		AllowNegativeClubBalance:   true,
	}
}

// Result describes a committed operation.
type Result struct {
	ClubTransactionID   string `json:"clubTransactionId,omitempty"`
	MemberTransactionID string `json:"memberTransactionId,omitempty"`
	ExpenseID           string `json:"expenseId,omitempty"`
	InvoiceID           string `json:"invoiceId,omitempty"`

	// ClubBalance and MemberBalance are set when the operation changed them.
	ClubBalance   *money.Amount `json:"clubBalance,omitempty"`
	MemberBalance *money.Amount `json:"memberBalance,omitempty"`
	Attempts      int           `json:"attempts"`
}
