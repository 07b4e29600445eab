package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
	"github.com/ahakem/bluemind-members-sub000/internal/identity"
	"github.com/ahakem/bluemind-members-sub000/internal/invoice"
	"github.com/ahakem/bluemind-members-sub000/internal/member"
	"github.com/ahakem/bluemind-members-sub000/internal/notification"
)

// paymentKind picks the single club entry type for an inbound invoice payment.
func paymentKind(inv invoice.Invoice) ClubTransactionType {
	switch {
	case inv.IsMembership():
		return ClubManualAdd
	case inv.IsTopUp:
		return ClubMemberTopUp
	default:
		return ClubSessionPayment
	}
}

func paymentDescription(inv invoice.Invoice, memberName string) string {
	ref := inv.Reference
	if ref == "" {
		ref = inv.ID
	}
	switch paymentKind(inv) {
	case ClubManualAdd:
		return fmt.Sprintf("Membership fee paid by %s (%s)", memberName, ref)
	case ClubMemberTopUp:
		return fmt.Sprintf("Balance top-up by %s (%s)", memberName, ref)
	default:
		return fmt.Sprintf("Session payment by %s (%s)", memberName, ref)
	}
}

// ConfirmInvoicePayment marks an invoice paid and books the payment: the club
// balance rises by the invoice amount, a top-up also credits the member, and
// a membership invoice activates the membership. Exactly one club entry is
// recorded, plus one member entry for top-ups.
func (s *Service) ConfirmInvoicePayment(ctx context.Context, invoiceID string, actor identity.Actor) (Result, error) {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return Result{}, &ValidationError{Field: "invoiceId", Reason: "is required"}
	}
	if err := validateActor(actor); err != nil {
		return Result{}, err
	}

	var (
		res  Result
		paid invoice.Invoice
	)
	attempts, err := s.atomically(ctx, "confirm_invoice_payment", func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(ctx, invoice.Ref(invoiceID))
		if err != nil {
			return err
		}
		inv, err := invoice.FromSnapshot(snap)
		if err != nil {
			return err
		}
		club, err := readClubBalance(ctx, tx)
		if err != nil {
			return err
		}
		// Read the member up front whenever the invoice names one: both the
		// top-up and the membership branch write it, and no read may follow
		// a write.
		var (
			m          member.Member
			haveMember bool
		)
		if inv.MemberID != "" {
			m, err = readMember(ctx, tx, inv.MemberID)
			switch {
			case err == nil:
				haveMember = true
			case errors.Is(err, ErrMemberNotFound):
			default:
				return err
			}
		}
		needsMember := inv.IsTopUp || inv.IsMembership()
		if needsMember && !haveMember {
			return fmt.Errorf("%w: %q for invoice %s", ErrMemberNotFound, inv.MemberID, inv.ID)
		}
		if err := inv.CheckTransition(invoice.StatusPaid); err != nil {
			return err
		}

		memberName := inv.MemberName
		if memberName == "" && haveMember {
			memberName = m.FullName()
		}

		out := Result{InvoiceID: inv.ID}
		if err := tx.Update(invoice.Ref(inv.ID), invoice.PaidFields(actor.ID, s.now().UTC())); err != nil {
			return err
		}
		// Balance and membership changes go out as one member update.
		memberUpdate := docstore.Fields{}
		if inv.IsTopUp {
			balance, err := s.nextMemberBalance(m, inv.Amount)
			if err != nil {
				return err
			}
			memberUpdate[member.FieldBalance] = balance.Float64()
			out.MemberBalance = &balance
			out.MemberTransactionID, err = s.recordMemberTransaction(tx, m.ID, MemberTopUp, inv.Amount,
				fmt.Sprintf("Top-up via invoice %s", inv.Reference), actor)
			if err != nil {
				return err
			}
		}
		if inv.IsMembership() {
			memberUpdate[member.FieldMembershipStatus] = string(member.StatusActive)
		}
		if len(memberUpdate) > 0 {
			if err := tx.Update(member.Ref(m.ID), memberUpdate); err != nil {
				return err
			}
		}
		clubBalance, err := s.applyClubBalanceDelta(tx, club, inv.Amount, actor)
		if err != nil {
			return err
		}
		out.ClubBalance = &clubBalance
		out.ClubTransactionID, err = s.recordClubTransaction(tx, paymentKind(inv), inv.Amount,
			paymentDescription(inv, memberName), actor,
			Linkage{MemberID: inv.MemberID, MemberName: memberName, InvoiceID: inv.ID})
		if err != nil {
			return err
		}

		res, paid = out, inv
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("confirm invoice %s: %w", invoiceID, err)
	}
	res.Attempts = attempts
	s.committed("confirm_invoice_payment", paid.Amount, actor, res)
	if paid.MemberID != "" {
		s.notify(ctx, notification.Message{
			Kind:        notification.KindInvoicePaid,
			Destination: paid.MemberID,
			Body:        fmt.Sprintf("Payment of %s for invoice %s was received", paid.Amount, paid.Reference),
		})
	}
	return res, nil
}
