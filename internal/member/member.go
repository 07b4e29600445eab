// Package member reads the member documents the ledger mutates. Only the
// ledger writes a member's balance; profile fields belong to other subsystems.
package member

import (
	"context"
	"fmt"
	"strings"

	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
	"github.com/ahakem/bluemind-members-sub000/internal/money"
)

// Collection holds one document per member.
const Collection = "members"

// Document field names.
const (
	FieldBalance          = "balance"
	FieldMembershipStatus = "membershipStatus"
	FieldFirstName        = "firstName"
	FieldLastName         = "lastName"
	FieldEmail            = "email"
)

// MembershipStatus is the lifecycle state of a membership.
type MembershipStatus string

const (
	StatusPending   MembershipStatus = "pending"
	StatusActive    MembershipStatus = "active"
	StatusInactive  MembershipStatus = "inactive"
	StatusSuspended MembershipStatus = "suspended"
)

// Valid reports whether s is a known status.
func (s MembershipStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusInactive, StatusSuspended:
		return true
	default:
		return false
	}
}

// Member is the ledger's view of a member document.
type Member struct {
	ID               string
	FirstName        string
	LastName         string
	Email            string
	Balance          money.Amount
	MembershipStatus MembershipStatus
}

// Ref addresses the member document.
func Ref(id string) docstore.Ref {
	return docstore.Doc(Collection, id)
}

// FullName joins first and last name, falling back to the email.
func (m Member) FullName() string {
	name := strings.TrimSpace(m.FirstName + " " + m.LastName)
	if name != "" {
		return name
	}
	return m.Email
}

// FromSnapshot decodes a member document. A missing balance reads as zero.
func FromSnapshot(snap docstore.Snapshot) (Member, error) {
	raw, err := snap.Fields.Decimal(FieldBalance)
	if err != nil {
		return Member{}, fmt.Errorf("member %s: %w", snap.Ref.ID, err)
	}
	return Member{
		ID:               snap.Ref.ID,
		FirstName:        snap.Fields.String(FieldFirstName),
		LastName:         snap.Fields.String(FieldLastName),
		Email:            snap.Fields.String(FieldEmail),
		Balance:          money.FromDecimal(raw),
		MembershipStatus: MembershipStatus(snap.Fields.String(FieldMembershipStatus)),
	}, nil
}

// Fields renders m as a full member document.
func (m Member) Fields() docstore.Fields {
	return docstore.Fields{
		FieldFirstName:        m.FirstName,
		FieldLastName:         m.LastName,
		FieldEmail:            m.Email,
		FieldBalance:          m.Balance.Float64(),
		FieldMembershipStatus: string(m.MembershipStatus),
	}
}

// Get reads a member outside any transaction. found is false when the
// document does not exist.
func Get(ctx context.Context, store docstore.Store, id string) (m Member, found bool, err error) {
	snap, err := store.Get(ctx, Ref(id))
	if err != nil {
		return Member{}, false, err
	}
	if !snap.Exists {
		return Member{}, false, nil
	}
	m, err = FromSnapshot(snap)
	return m, err == nil, err
}
