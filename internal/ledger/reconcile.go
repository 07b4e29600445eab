package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
	"github.com/ahakem/bluemind-members-sub000/internal/member"
	"github.com/ahakem/bluemind-members-sub000/internal/money"
)

// MemberDiscrepancy is a member whose balance differs from the sum of their
// ledger entries. Balances may legitimately move outside the ledger (session
// bookings deduct from them), so a discrepancy is information, not an error.
type MemberDiscrepancy struct {
	MemberID       string       `json:"memberId"`
	Balance        money.Amount `json:"balance"`
	TransactionSum money.Amount `json:"transactionSum"`
	Difference     money.Amount `json:"difference"`
	Missing        bool         `json:"missing,omitempty"`
}

// Report compares stored balances with the transaction history.
type Report struct {
	GeneratedAt          time.Time           `json:"generatedAt"`
	ClubBalance          money.Amount        `json:"clubBalance"`
	ClubTransactionSum   money.Amount        `json:"clubTransactionSum"`
	ClubTransactionCount int                 `json:"clubTransactionCount"`
	ClubDifference       money.Amount        `json:"clubDifference"`
	MembersChecked       int                 `json:"membersChecked"`
	Members              []MemberDiscrepancy `json:"memberDiscrepancies"`
}

// Balanced reports whether the club balance equals its transaction sum.
func (r Report) Balanced() bool {
	return r.ClubDifference.IsZero()
}

// Reconcile sums every club and member entry and compares the totals with the
// stored balances. The reads are not one snapshot, so a run that overlaps a
// ledger operation can report a transient difference. Nothing is corrected.
func (s *Service) Reconcile(ctx context.Context) (Report, error) {
	club, err := s.GetClubBalance(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("reconcile: %w", err)
	}
	clubEntries, err := s.store.Query(ctx, docstore.Query{Collection: ClubTransactionsCollection})
	if err != nil {
		return Report{}, fmt.Errorf("reconcile: %w", err)
	}
	clubTxs, err := decodeAll(clubEntries, decodeClubTransaction)
	if err != nil {
		return Report{}, fmt.Errorf("reconcile: %w", err)
	}

	report := Report{
		GeneratedAt:          s.now().UTC(),
		ClubBalance:          club.Current,
		ClubTransactionCount: len(clubTxs),
		Members:              []MemberDiscrepancy{},
	}
	for _, tx := range clubTxs {
		report.ClubTransactionSum = report.ClubTransactionSum.Add(tx.Amount)
	}
	report.ClubDifference = report.ClubBalance.Sub(report.ClubTransactionSum)

	memberEntries, err := s.store.Query(ctx, docstore.Query{Collection: MemberTransactionsCollection})
	if err != nil {
		return Report{}, fmt.Errorf("reconcile: %w", err)
	}
	memberTxs, err := decodeAll(memberEntries, decodeMemberTransaction)
	if err != nil {
		return Report{}, fmt.Errorf("reconcile: %w", err)
	}
	sums := make(map[string]money.Amount)
	for _, tx := range memberTxs {
		sums[tx.MemberID] = sums[tx.MemberID].Add(tx.Amount)
	}

	ids := make([]string, 0, len(sums))
	for id := range sums {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		m, found, err := member.Get(ctx, s.store, id)
		if err != nil {
			return Report{}, fmt.Errorf("reconcile member %s: %w", id, err)
		}
		report.MembersChecked++
		if !found {
			report.Members = append(report.Members, MemberDiscrepancy{
				MemberID: id, TransactionSum: sums[id], Difference: sums[id].Neg(), Missing: true,
			})
			continue
		}
		if diff := m.Balance.Sub(sums[id]); !diff.IsZero() {
			report.Members = append(report.Members, MemberDiscrepancy{
				MemberID: id, Balance: m.Balance, TransactionSum: sums[id], Difference: diff,
			})
		}
	}

	level := slog.LevelInfo
	if !report.Balanced() {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "ledger reconciled",
		slog.String("club_balance", report.ClubBalance.String()),
		slog.String("club_difference", report.ClubDifference.String()),
		slog.Int("member_discrepancies", len(report.Members)),
	)
	return report, nil
}
