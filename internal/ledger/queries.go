package ledger

import (
	"context"
	"fmt"

	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
)

// DefaultListLimit caps list queries when the caller passes no limit.
const DefaultListLimit = 100

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

// ListClubTransactions returns club entries, newest first.
func (s *Service) ListClubTransactions(ctx context.Context, limit int) ([]ClubTransaction, error) {
	snaps, err := s.store.Query(ctx, docstore.Query{
		Collection: ClubTransactionsCollection,
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      listLimit(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list club transactions: %w", err)
	}
	return decodeAll(snaps, decodeClubTransaction)
}

// ListMemberTransactions returns one member's entries, newest first.
func (s *Service) ListMemberTransactions(ctx context.Context, memberID string, limit int) ([]MemberTransaction, error) {
	snaps, err := s.store.Query(ctx, docstore.Query{
		Collection: MemberTransactionsCollection,
		Where:      []docstore.Filter{{Field: "memberId", Equals: memberID}},
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      listLimit(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list member transactions: %w", err)
	}
	return decodeAll(snaps, decodeMemberTransaction)
}

// ListExpenses returns paid expenses, newest first.
func (s *Service) ListExpenses(ctx context.Context, limit int) ([]ClubExpense, error) {
	snaps, err := s.store.Query(ctx, docstore.Query{
		Collection: ClubExpensesCollection,
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      listLimit(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return decodeAll(snaps, decodeClubExpense)
}

// WatchClubBalance streams the club balance every time it changes. The
// channel closes when ctx is done.
func (s *Service) WatchClubBalance(ctx context.Context) (<-chan ClubBalance, error) {
	snaps, err := s.store.Watch(ctx, clubBalanceRef())
	if err != nil {
		return nil, err
	}
	out := make(chan ClubBalance)
	go func() {
		defer close(out)
		for snap := range snaps {
			balance, err := decodeClubBalance(snap)
			if err != nil {
				s.logger.Warn("skip undecodable club balance", "error", err)
				continue
			}
			select {
			case out <- balance:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func decodeAll[T any](snaps []docstore.Snapshot, decode func(docstore.Snapshot) (T, error)) ([]T, error) {
	out := make([]T, 0, len(snaps))
	for _, snap := range snaps {
		v, err := decode(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
