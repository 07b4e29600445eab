package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
	"github.com/ahakem/bluemind-members-sub000/internal/identity"
	"github.com/ahakem/bluemind-members-sub000/internal/money"
	"github.com/ahakem/bluemind-members-sub000/internal/notification"
)

// Service exposes the ledger operations.
type Service struct {
	store    docstore.Store
	policy   Policy
	logger   *slog.Logger
	notifier notification.Notifier
	now      func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithNotifier sets where payment events are announced.
func WithNotifier(n notification.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock replaces time.Now for timestamps written to entries.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds a ledger service over store.
func NewService(store docstore.Store, policy Policy, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		policy:   policy,
		logger:   logger,
		notifier: notification.NewLoggerNotifier(logger),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RetryPolicy is the policy ledger transactions run with.
func (s *Service) RetryPolicy() docstore.RetryPolicy {
	return docstore.RetryPolicy{
		MaxAttempts: s.policy.MaxAttempts,
		BaseBackoff: s.policy.BaseBackoff,
		MaxBackoff:  s.policy.MaxBackoff,
	}
}

// atomically runs fn with the service retry policy. fn is re-executed from
// the top on every attempt, so it must only assign results, never accumulate.
func (s *Service) atomically(ctx context.Context, op string, fn docstore.TxFunc) (int, error) {
	policy := s.RetryPolicy()
	policy.OnConflict = func(attempt int, wait time.Duration, err error) {
		s.logger.Warn("ledger transaction conflict",
			slog.String("operation", op),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", wait),
			slog.Any("error", err),
		)
	}
	return docstore.RunWithRetry(ctx, s.store, policy, fn)
}

func (s *Service) committed(op string, amount money.Amount, actor identity.Actor, res Result) {
	attrs := []any{
		slog.String("operation", op),
		slog.String("amount", amount.String()),
		slog.String("actor_id", actor.ID),
		slog.Int("attempts", res.Attempts),
	}
	if res.ClubTransactionID != "" {
		attrs = append(attrs, slog.String("club_transaction_id", res.ClubTransactionID))
	}
	if res.MemberTransactionID != "" {
		attrs = append(attrs, slog.String("member_transaction_id", res.MemberTransactionID))
	}
	s.logger.Info("ledger operation committed", attrs...)
}

// notify is best effort; the money has already moved.
func (s *Service) notify(ctx context.Context, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("notification failed", slog.String("kind", msg.Kind), slog.Any("error", err))
	}
}

// AddClubFundsInput describes money added to the club by hand.
type AddClubFundsInput struct {
	Amount json.Number `json:"amount" validate:"required"`
	Reason string      `json:"reason" validate:"notblank,max=500"`
}

// AddClubFunds records a manual_add entry and raises the club balance.
func (s *Service) AddClubFunds(ctx context.Context, in AddClubFundsInput, actor identity.Actor) (Result, error) {
	if err := validateInput(in); err != nil {
		return Result{}, err
	}
	amount, err := parseAmount("amount", in.Amount)
	if err != nil {
		return Result{}, err
	}
	if err := validateActor(actor); err != nil {
		return Result{}, err
	}
	reason := strings.TrimSpace(in.Reason)

	var res Result
	attempts, err := s.atomically(ctx, "add_club_funds", func(ctx context.Context, tx docstore.Tx) error {
		club, err := readClubBalance(ctx, tx)
		if err != nil {
			return err
		}

		balance, err := s.applyClubBalanceDelta(tx, club, amount, actor)
		if err != nil {
			return err
		}
		txID, err := s.recordClubTransaction(tx, ClubManualAdd, amount, reason, actor, Linkage{})
		if err != nil {
			return err
		}
		res = Result{ClubTransactionID: txID, ClubBalance: &balance}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("add club funds: %w", err)
	}
	res.Attempts = attempts
	s.committed("add_club_funds", amount, actor, res)
	return res, nil
}

// PayExpenseInput describes a paid outgoing expense.
type PayExpenseInput struct {
	Vendor      string      `json:"vendor" validate:"notblank,max=200"`
	Description string      `json:"description" validate:"notblank,max=500"`
	Amount      json.Number `json:"amount" validate:"required"`
}

// PayExpense stores a paid ClubExpense, records the matching invoice_payment
// entry and lowers the club balance.
func (s *Service) PayExpense(ctx context.Context, in PayExpenseInput, actor identity.Actor) (Result, error) {
	if err := validateInput(in); err != nil {
		return Result{}, err
	}
	amount, err := parseAmount("amount", in.Amount)
	if err != nil {
		return Result{}, err
	}
	if err := validateActor(actor); err != nil {
		return Result{}, err
	}
	vendor, description := strings.TrimSpace(in.Vendor), strings.TrimSpace(in.Description)

	var res Result
	attempts, err := s.atomically(ctx, "pay_expense", func(ctx context.Context, tx docstore.Tx) error {
		club, err := readClubBalance(ctx, tx)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		expense := s.store.NewRef(ClubExpensesCollection)
		err = tx.Create(expense, docstore.Fields{
			"vendor":      vendor,
			"description": description,
			"amount":      amount.Float64(),
			"status":      ExpenseStatusPaid,
			"paidAt":      now,
			"createdBy":   actor.ID,
			"createdAt":   now,
		})
		if err != nil {
			return err
		}
		balance, err := s.applyClubBalanceDelta(tx, club, amount.Neg(), actor)
		if err != nil {
			return err
		}
		txID, err := s.recordClubTransaction(tx, ClubInvoicePayment, amount.Neg(),
			fmt.Sprintf("%s: %s", vendor, description), actor, Linkage{ExpenseID: expense.ID})
		if err != nil {
			return err
		}
		res = Result{ClubTransactionID: txID, ExpenseID: expense.ID, ClubBalance: &balance}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("pay expense: %w", err)
	}
	res.Attempts = attempts
	s.committed("pay_expense", amount, actor, res)
	return res, nil
}

// IssueRefundInput describes money returned to a member.
type IssueRefundInput struct {
	MemberID string      `json:"memberId" validate:"notblank"`
	Amount   json.Number `json:"amount" validate:"required"`
	Reason   string      `json:"reason" validate:"notblank,max=500"`
	// ToMemberBalance credits the refund to the member's prepaid balance
	// instead of paying it out.
	ToMemberBalance bool `json:"toMemberBalance"`
}

// IssueRefund lowers the club balance and, when crediting the member's
// balance, raises it by the same amount.
func (s *Service) IssueRefund(ctx context.Context, in IssueRefundInput, actor identity.Actor) (Result, error) {
	if err := validateInput(in); err != nil {
		return Result{}, err
	}
	amount, err := parseAmount("amount", in.Amount)
	if err != nil {
		return Result{}, err
	}
	if err := validateActor(actor); err != nil {
		return Result{}, err
	}
	memberID, reason := strings.TrimSpace(in.MemberID), strings.TrimSpace(in.Reason)

	var res Result
	attempts, err := s.atomically(ctx, "issue_refund", func(ctx context.Context, tx docstore.Tx) error {
		club, err := readClubBalance(ctx, tx)
		if err != nil {
			return err
		}
		m, err := readMember(ctx, tx, memberID)
		if err != nil {
			return err
		}

		out := Result{}
		clubBalance, err := s.applyClubBalanceDelta(tx, club, amount.Neg(), actor)
		if err != nil {
			return err
		}
		out.ClubBalance = &clubBalance
		out.ClubTransactionID, err = s.recordClubTransaction(tx, ClubRefund, amount.Neg(),
			fmt.Sprintf("Refund to %s: %s", m.FullName(), reason), actor,
			Linkage{MemberID: m.ID, MemberName: m.FullName()})
		if err != nil {
			return err
		}

		if in.ToMemberBalance {
			memberBalance, err := s.applyMemberBalanceDelta(tx, m, amount)
			if err != nil {
				return err
			}
			out.MemberBalance = &memberBalance
			out.MemberTransactionID, err = s.recordMemberTransaction(tx, m.ID, MemberRefund, amount, reason, actor)
			if err != nil {
				return err
			}
		}
		res = out
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("issue refund: %w", err)
	}
	res.Attempts = attempts
	s.committed("issue_refund", amount, actor, res)
	s.notify(ctx, notification.Message{
		Kind:        notification.KindRefundIssued,
		Destination: memberID,
		Body:        fmt.Sprintf("A refund of %s was issued: %s", amount, reason),
	})
	return res, nil
}

// AddMemberCreditInput describes a manual credit to a member's balance.
type AddMemberCreditInput struct {
	MemberID string      `json:"memberId" validate:"notblank"`
	Amount   json.Number `json:"amount" validate:"required"`
	Reason   string      `json:"reason" validate:"notblank,max=500"`
}

// AddMemberCredit raises a member's balance without touching the club balance.
func (s *Service) AddMemberCredit(ctx context.Context, in AddMemberCreditInput, actor identity.Actor) (Result, error) {
	if err := validateInput(in); err != nil {
		return Result{}, err
	}
	amount, err := parseAmount("amount", in.Amount)
	if err != nil {
		return Result{}, err
	}
	if err := validateActor(actor); err != nil {
		return Result{}, err
	}
	memberID, reason := strings.TrimSpace(in.MemberID), strings.TrimSpace(in.Reason)

	var res Result
	attempts, err := s.atomically(ctx, "add_member_credit", func(ctx context.Context, tx docstore.Tx) error {
		m, err := readMember(ctx, tx, memberID)
		if err != nil {
			return err
		}

		balance, err := s.applyMemberBalanceDelta(tx, m, amount)
		if err != nil {
			return err
		}
		txID, err := s.recordMemberTransaction(tx, m.ID, MemberAdminAdjustment, amount, reason, actor)
		if err != nil {
			return err
		}
		res = Result{MemberTransactionID: txID, MemberBalance: &balance}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("add member credit: %w", err)
	}
	res.Attempts = attempts
	s.committed("add_member_credit", amount, actor, res)
	s.notify(ctx, notification.Message{
		Kind:        notification.KindMemberCredited,
		Destination: memberID,
		Body:        fmt.Sprintf("%s was added to your balance: %s", amount, reason),
	})
	return res, nil
}
