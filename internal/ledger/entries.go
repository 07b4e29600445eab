package ledger

import (
	"fmt"
	"time"

	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
	"github.com/ahakem/bluemind-members-sub000/internal/money"
)

// ClubBalance is the singleton at settings/clubBalance.
type ClubBalance struct {
	Current     money.Amount `json:"currentBalance"`
	LastUpdated time.Time    `json:"lastUpdated"`
	UpdatedBy   string       `json:"updatedBy,omitempty"`
}

// ClubTransaction is an immutable club ledger entry.
type ClubTransaction struct {
	ID            string              `json:"id"`
	Type          ClubTransactionType `json:"type"`
	Amount        money.Amount        `json:"amount"`
	Description   string              `json:"description"`
	MemberID      string              `json:"memberId,omitempty"`
	MemberName    string              `json:"memberName,omitempty"`
	InvoiceID     string              `json:"invoiceId,omitempty"`
	ExpenseID     string              `json:"expenseId,omitempty"`
	CreatedBy     string              `json:"createdBy"`
	CreatedByName string              `json:"createdByName"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// MemberTransaction is an immutable member ledger entry.
type MemberTransaction struct {
	ID          string                `json:"id"`
	MemberID    string                `json:"memberId"`
	Type        MemberTransactionType `json:"type"`
	Amount      money.Amount          `json:"amount"`
	Description string                `json:"description"`
	AdminID     string                `json:"adminId"`
	AdminName   string                `json:"adminName"`
	CreatedAt   time.Time             `json:"createdAt"`
}

// ClubExpense is a paid outgoing expense.
type ClubExpense struct {
	ID          string       `json:"id"`
	Vendor      string       `json:"vendor"`
	Description string       `json:"description"`
	Amount      money.Amount `json:"amount"`
	Status      string       `json:"status"`
	PaidAt      time.Time    `json:"paidAt"`
	CreatedBy   string       `json:"createdBy"`
	CreatedAt   time.Time    `json:"createdAt"`
}

func decodeClubBalance(snap docstore.Snapshot) (ClubBalance, error) {
	if !snap.Exists {
		return ClubBalance{}, nil
	}
	raw, err := snap.Fields.Decimal("currentBalance")
	if err != nil {
		return ClubBalance{}, fmt.Errorf("club balance: %w", err)
	}
	updated, err := snap.Fields.Time("lastUpdated")
	if err != nil {
		return ClubBalance{}, fmt.Errorf("club balance: %w", err)
	}
	return ClubBalance{
		Current:     money.FromDecimal(raw),
		LastUpdated: updated,
		UpdatedBy:   snap.Fields.String("updatedBy"),
	}, nil
}

func decodeClubTransaction(snap docstore.Snapshot) (ClubTransaction, error) {
	f := snap.Fields
	amount, err := f.Decimal("amount")
	if err != nil {
		return ClubTransaction{}, fmt.Errorf("club transaction %s: %w", snap.Ref.ID, err)
	}
	created, err := f.Time("createdAt")
	if err != nil {
		return ClubTransaction{}, fmt.Errorf("club transaction %s: %w", snap.Ref.ID, err)
	}
	return ClubTransaction{
		ID:            snap.Ref.ID,
		Type:          ClubTransactionType(f.String("type")),
		Amount:        money.FromDecimal(amount),
		Description:   f.String("description"),
		MemberID:      f.String("memberId"),
		MemberName:    f.String("memberName"),
		InvoiceID:     f.String("invoiceId"),
		ExpenseID:     f.String("expenseId"),
		CreatedBy:     f.String("createdBy"),
		CreatedByName: f.String("createdByName"),
		CreatedAt:     created,
	}, nil
}

func decodeMemberTransaction(snap docstore.Snapshot) (MemberTransaction, error) {
	f := snap.Fields
	amount, err := f.Decimal("amount")
	if err != nil {
		return MemberTransaction{}, fmt.Errorf("member transaction %s: %w", snap.Ref.ID, err)
	}
	created, err := f.Time("createdAt")
	if err != nil {
		return MemberTransaction{}, fmt.Errorf("member transaction %s: %w", snap.Ref.ID, err)
	}
	return MemberTransaction{
		ID:          snap.Ref.ID,
		MemberID:    f.String("memberId"),
		Type:        MemberTransactionType(f.String("type")),
		Amount:      money.FromDecimal(amount),
		Description: f.String("description"),
		AdminID:     f.String("adminId"),
		AdminName:   f.String("adminName"),
		CreatedAt:   created,
	}, nil
}

func decodeClubExpense(snap docstore.Snapshot) (ClubExpense, error) {
	f := snap.Fields
	amount, err := f.Decimal("amount")
	if err != nil {
		return ClubExpense{}, fmt.Errorf("expense %s: %w", snap.Ref.ID, err)
	}
	paid, err := f.Time("paidAt")
	if err != nil {
		return ClubExpense{}, fmt.Errorf("expense %s: %w", snap.Ref.ID, err)
	}
	created, err := f.Time("createdAt")
	if err != nil {
		return ClubExpense{}, fmt.Errorf("expense %s: %w", snap.Ref.ID, err)
	}
	return ClubExpense{
		ID:          snap.Ref.ID,
		Vendor:      f.String("vendor"),
		Description: f.String("description"),
		Amount:      money.FromDecimal(amount),
		Status:      f.String("status"),
		PaidAt:      paid,
		CreatedBy:   f.String("createdBy"),
		CreatedAt:   created,
	}, nil
}
