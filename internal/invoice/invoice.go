// Package invoice models the invoice documents owned by the invoicing
// subsystem and the status state machine that governs them. Creating invoices
// is not this package's job; it reads them and drives their transitions.
package invoice

import (
	"errors"
	"fmt"
	"time"

	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
	"github.com/ahakem/bluemind-members-sub000/internal/money"
)

// Collection holds one document per invoice.
const Collection = "invoices"

// Document field names.
const (
	FieldMemberID            = "memberId"
	FieldMemberName          = "memberName"
	FieldAmount              = "amount"
	FieldStatus              = "status"
	FieldReference           = "uniquePaymentReference"
	FieldIsTopUp             = "isTopUp"
	FieldType                = "type"
	FieldDescription         = "description"
	FieldDueDate             = "dueDate"
	FieldCreatedAt           = "createdAt"
	FieldPaidAt              = "paidAt"
	FieldConfirmedBy         = "confirmedBy"
	FieldConfirmedAt         = "confirmedAt"
	FieldTransferInitiatedAt = "transferInitiatedAt"
	FieldCancelledAt         = "cancelledAt"
	FieldCancelledBy         = "cancelledBy"
)

// TypeMembership marks an invoice for the yearly membership fee.
const TypeMembership = "membership"

var (
	ErrNotFound          = errors.New("invoice not found")
	ErrInvalidTransition = errors.New("invalid invoice status transition")
	// ErrMalformed marks an invoice document that violates its own invariants,
	// such as a non-positive amount or an unknown status.
	ErrMalformed = errors.New("malformed invoice")
)

// Status is the lifecycle state of an invoice.
type Status string

const (
	StatusPending           Status = "pending"
	StatusTransferInitiated Status = "transfer_initiated"
	StatusPaid              Status = "paid"
	StatusOverdue           Status = "overdue"
	StatusCancelled         Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusTransferInitiated, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// transitions is the complete state machine. Overdue invoices may still be
// paid since late bank transfers do arrive.
var transitions = map[Status][]Status{
	StatusPending:           {StatusTransferInitiated, StatusPaid, StatusOverdue, StatusCancelled},
	StatusTransferInitiated: {StatusPaid, StatusOverdue},
	StatusOverdue:           {StatusPaid},
	StatusPaid:              nil,
	StatusCancelled:         nil,
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	InvoiceID string
	From      Status
	To        Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invoice %s: cannot move from %s to %s", e.InvoiceID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Invoice is a decoded invoice document.
type Invoice struct {
	ID                  string
	MemberID            string
	MemberName          string
	Amount              money.Amount
	Status              Status
	Reference           string
	IsTopUp             bool
	Type                string
	Description         string
	DueDate             time.Time
	CreatedAt           time.Time
	PaidAt              time.Time
	ConfirmedBy         string
	ConfirmedAt         time.Time
	TransferInitiatedAt time.Time
	CancelledAt         time.Time
	CancelledBy         string
}

// Ref addresses the invoice document.
func Ref(id string) docstore.Ref {
	return docstore.Doc(Collection, id)
}

// IsMembership reports whether paying the invoice activates a membership.
func (inv Invoice) IsMembership() bool {
	return inv.Type == TypeMembership
}

// CheckTransition returns a *TransitionError if inv cannot move to to.
func (inv Invoice) CheckTransition(to Status) error {
	if !CanTransition(inv.Status, to) {
		return &TransitionError{InvoiceID: inv.ID, From: inv.Status, To: to}
	}
	return nil
}

// IsPastDue reports whether the due date lies before now and the invoice can
// still become overdue.
func (inv Invoice) IsPastDue(now time.Time) bool {
	return !inv.DueDate.IsZero() && inv.DueDate.Before(now) && CanTransition(inv.Status, StatusOverdue)
}

// FromSnapshot decodes and validates an invoice document.
func FromSnapshot(snap docstore.Snapshot) (Invoice, error) {
	if !snap.Exists {
		return Invoice{}, fmt.Errorf("%w: %s", ErrNotFound, snap.Ref.ID)
	}
	f := snap.Fields

	raw, err := f.Decimal(FieldAmount)
	if err != nil {
		return Invoice{}, fmt.Errorf("%w: %s: %w", ErrMalformed, snap.Ref.ID, err)
	}
	inv := Invoice{
		ID:          snap.Ref.ID,
		MemberID:    f.String(FieldMemberID),
		MemberName:  f.String(FieldMemberName),
		Amount:      money.FromDecimal(raw),
		Status:      Status(f.String(FieldStatus)),
		Reference:   f.String(FieldReference),
		IsTopUp:     f.Bool(FieldIsTopUp),
		Type:        f.String(FieldType),
		Description: f.String(FieldDescription),
		ConfirmedBy: f.String(FieldConfirmedBy),
		CancelledBy: f.String(FieldCancelledBy),
	}
	if !inv.Status.Valid() {
		return Invoice{}, fmt.Errorf("%w: %s: unknown status %q", ErrMalformed, inv.ID, inv.Status)
	}
	if !inv.Amount.IsPositive() || inv.Amount.Exceeds(money.MaxAmount) {
		return Invoice{}, fmt.Errorf("%w: %s: amount %s", ErrMalformed, inv.ID, inv.Amount)
	}

	times := []struct {
		field string
		dst   *time.Time
	}{
		{FieldDueDate, &inv.DueDate},
		{FieldCreatedAt, &inv.CreatedAt},
		{FieldPaidAt, &inv.PaidAt},
		{FieldConfirmedAt, &inv.ConfirmedAt},
		{FieldTransferInitiatedAt, &inv.TransferInitiatedAt},
		{FieldCancelledAt, &inv.CancelledAt},
	}
	for _, ts := range times {
		if *ts.dst, err = f.Time(ts.field); err != nil {
			return Invoice{}, fmt.Errorf("%w: %s: %w", ErrMalformed, inv.ID, err)
		}
	}
	return inv, nil
}

// Fields renders inv as a full document.
func (inv Invoice) Fields() docstore.Fields {
	f := docstore.Fields{
		FieldMemberID:   inv.MemberID,
		FieldMemberName: inv.MemberName,
		FieldAmount:     inv.Amount.Float64(),
		FieldStatus:     string(inv.Status),
		FieldReference:  inv.Reference,
		FieldIsTopUp:    inv.IsTopUp,
	}
	if inv.Type != "" {
		f[FieldType] = inv.Type
	}
	if inv.Description != "" {
		f[FieldDescription] = inv.Description
	}
	if !inv.DueDate.IsZero() {
		f[FieldDueDate] = inv.DueDate
	}
	if !inv.CreatedAt.IsZero() {
		f[FieldCreatedAt] = inv.CreatedAt
	}
	return f
}

// PaidFields is the partial update written when a payment is confirmed.
func PaidFields(confirmedBy string, at time.Time) docstore.Fields {
	return docstore.Fields{
		FieldStatus:      string(StatusPaid),
		FieldPaidAt:      at,
		FieldConfirmedBy: confirmedBy,
		FieldConfirmedAt: at,
	}
}
