package ledger

import (
	"fmt"

	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
	"github.com/ahakem/bluemind-members-sub000/internal/identity"
	"github.com/ahakem/bluemind-members-sub000/internal/money"
)

// Linkage ties a club entry to the member, invoice or expense it concerns.
type Linkage struct {
	MemberID   string
	MemberName string
	InvoiceID  string
	ExpenseID  string
}

// recordClubTransaction appends a club entry in tx and returns its id.
// Entries are never updated or deleted afterwards.
func (s *Service) recordClubTransaction(tx docstore.Tx, typ ClubTransactionType, amount money.Amount, description string, actor identity.Actor, link Linkage) (string, error) {
	if !typ.Valid() {
		return "", fmt.Errorf("unknown club transaction type %q", typ)
	}
	ref := s.store.NewRef(ClubTransactionsCollection)
	fields := docstore.Fields{
		"type":          string(typ),
		"amount":        amount.Float64(),
		"description":   description,
		"createdBy":     actor.ID,
		"createdByName": actor.DisplayName(),
		"createdAt":     s.now().UTC(),
	}
	optional := map[string]string{
		"memberId":   link.MemberID,
		"memberName": link.MemberName,
		"invoiceId":  link.InvoiceID,
		"expenseId":  link.ExpenseID,
	}
	for k, v := range optional {
		if v != "" {
			fields[k] = v
		}
	}
	if err := tx.Create(ref, fields); err != nil {
		return "", err
	}
	return ref.ID, nil
}

// recordMemberTransaction appends a member entry in tx and returns its id.
func (s *Service) recordMemberTransaction(tx docstore.Tx, memberID string, typ MemberTransactionType, amount money.Amount, description string, actor identity.Actor) (string, error) {
	if !typ.Valid() {
		return "", fmt.Errorf("unknown member transaction type %q", typ)
	}
	ref := s.store.NewRef(MemberTransactionsCollection)
	err := tx.Create(ref, docstore.Fields{
		"memberId":    memberID,
		"type":        string(typ),
		"amount":      amount.Float64(),
		"description": description,
		"adminId":     actor.ID,
		"adminName":   actor.DisplayName(),
		"createdAt":   s.now().UTC(),
	})
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}
