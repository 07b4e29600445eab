package ledger

import (
	"context"
	"fmt"

	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
	"github.com/ahakem/bluemind-members-sub000/internal/identity"
	"github.com/ahakem/bluemind-members-sub000/internal/member"
	"github.com/ahakem/bluemind-members-sub000/internal/money"
)

func clubBalanceRef() docstore.Ref {
	return docstore.Doc(SettingsCollection, ClubBalanceID)
}

// GetClubBalance returns the committed club balance, zero if never written.
func (s *Service) GetClubBalance(ctx context.Context) (ClubBalance, error) {
	snap, err := s.store.Get(ctx, clubBalanceRef())
	if err != nil {
		return ClubBalance{}, err
	}
	return decodeClubBalance(snap)
}

// GetMemberBalance returns a member's committed prepaid balance.
func (s *Service) GetMemberBalance(ctx context.Context, memberID string) (money.Amount, error) {
	m, found, err := member.Get(ctx, s.store, memberID)
	if err != nil {
		return money.Zero, err
	}
	if !found {
		return money.Zero, fmt.Errorf("%w: %s", ErrMemberNotFound, memberID)
	}
	return m.Balance, nil
}

// readClubBalance reads the balance inside tx. A missing document reads as zero.
func readClubBalance(ctx context.Context, tx docstore.Tx) (ClubBalance, error) {
	snap, err := tx.Get(ctx, clubBalanceRef())
	if err != nil {
		return ClubBalance{}, err
	}
	return decodeClubBalance(snap)
}

// applyClubBalanceDelta overwrites the balance document with current+delta.
// current must come from readClubBalance in the same transaction.
func (s *Service) applyClubBalanceDelta(tx docstore.Tx, current ClubBalance, delta money.Amount, actor identity.Actor) (money.Amount, error) {
	next := current.Current.Add(delta)
	if next.IsNegative() && delta.IsNegative() && !s.policy.AllowNegativeClubBalance {
		return money.Zero, fmt.Errorf("%w: %s", ErrNegativeClubBalance, next)
	}
	if next.Exceeds(money.MaxBalance) {
		return money.Zero, fmt.Errorf("%w: club balance %s", ErrBalanceOutOfRange, next)
	}
	err := tx.Set(clubBalanceRef(), docstore.Fields{
		"currentBalance": next.Float64(),
		"lastUpdated":    s.now().UTC(),
		"updatedBy":      actor.ID,
	})
	if err != nil {
		return money.Zero, err
	}
	return next, nil
}

// readMember reads a member inside tx, failing with ErrMemberNotFound.
func readMember(ctx context.Context, tx docstore.Tx, id string) (member.Member, error) {
	snap, err := tx.Get(ctx, member.Ref(id))
	if err != nil {
		return member.Member{}, err
	}
	if !snap.Exists {
		return member.Member{}, fmt.Errorf("%w: %s", ErrMemberNotFound, id)
	}
	return member.FromSnapshot(snap)
}

// nextMemberBalance computes m.Balance+delta and enforces the member floor.
// Credits are always accepted, even onto a balance that is already negative.
func (s *Service) nextMemberBalance(m member.Member, delta money.Amount) (money.Amount, error) {
	next := m.Balance.Add(delta)
	if next.IsNegative() && delta.IsNegative() && !s.policy.AllowNegativeMemberBalance {
		return money.Zero, fmt.Errorf("%w: member %s would hold %s", ErrNegativeMemberBalance, m.ID, next)
	}
	if next.Exceeds(money.MaxBalance) {
		return money.Zero, fmt.Errorf("%w: member %s balance %s", ErrBalanceOutOfRange, m.ID, next)
	}
	return next, nil
}

// applyMemberBalanceDelta writes m.Balance+delta. m must come from readMember
// in the same transaction.
func (s *Service) applyMemberBalanceDelta(tx docstore.Tx, m member.Member, delta money.Amount) (money.Amount, error) {
	next, err := s.nextMemberBalance(m, delta)
	if err != nil {
		return money.Zero, err
	}
	if err := tx.Update(member.Ref(m.ID), docstore.Fields{member.FieldBalance: next.Float64()}); err != nil {
		return money.Zero, err
	}
	return next, nil
}
