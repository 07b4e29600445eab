package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
	"github.com/ahakem/bluemind-members-sub000/internal/identity"
)

// Service drives the invoice transitions that do not move money. Payment
// confirmation lives in the ledger because it touches balances.
type Service struct {
	store  docstore.Store
	retry  docstore.RetryPolicy
	logger *slog.Logger
	now    func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds an invoice service.
func NewService(store docstore.Store, retry docstore.RetryPolicy, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, retry: retry, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get reads one invoice.
func (s *Service) Get(ctx context.Context, id string) (Invoice, error) {
	snap, err := s.store.Get(ctx, Ref(id))
	if err != nil {
		return Invoice{}, err
	}
	return FromSnapshot(snap)
}

// MarkTransferInitiated records the payer's claim that the bank transfer was sent.
func (s *Service) MarkTransferInitiated(ctx context.Context, id string, actor identity.Actor) (Invoice, error) {
	if err := actor.Validate(); err != nil {
		return Invoice{}, err
	}
	return s.transition(ctx, id, StatusTransferInitiated, func(inv *Invoice, now time.Time) docstore.Fields {
		inv.TransferInitiatedAt = now
		return docstore.Fields{FieldTransferInitiatedAt: now}
	})
}

// Cancel withdraws a pending invoice.
func (s *Service) Cancel(ctx context.Context, id string, actor identity.Actor) (Invoice, error) {
	if err := actor.Validate(); err != nil {
		return Invoice{}, err
	}
	return s.transition(ctx, id, StatusCancelled, func(inv *Invoice, now time.Time) docstore.Fields {
		inv.CancelledAt, inv.CancelledBy = now, actor.ID
		return docstore.Fields{FieldCancelledAt: now, FieldCancelledBy: actor.ID}
	})
}

// MarkOverdue moves an unpaid invoice to overdue.
func (s *Service) MarkOverdue(ctx context.Context, id string) (Invoice, error) {
	return s.transition(ctx, id, StatusOverdue, nil)
}

// SweepOverdue marks every pending or transfer-initiated invoice whose due
// date has passed. Invoices that changed status concurrently are skipped.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	now := s.now()
	marked := 0
	for _, status := range []Status{StatusPending, StatusTransferInitiated} {
		snaps, err := s.store.Query(ctx, docstore.Query{
			Collection: Collection,
			Where:      []docstore.Filter{{Field: FieldStatus, Equals: string(status)}},
		})
		if err != nil {
			return marked, fmt.Errorf("list %s invoices: %w", status, err)
		}
		for _, snap := range snaps {
			inv, err := FromSnapshot(snap)
			if err != nil {
				s.logger.Warn("skip malformed invoice", slog.String("invoice_id", snap.Ref.ID), slog.Any("error", err))
				continue
			}
			if !inv.IsPastDue(now) {
				continue
			}
			if _, err := s.MarkOverdue(ctx, inv.ID); err != nil {
				if errors.Is(err, ErrInvalidTransition) {
					continue
				}
				return marked, err
			}
			marked++
		}
	}
	return marked, nil
}

type mutation func(inv *Invoice, now time.Time) docstore.Fields

func (s *Service) transition(ctx context.Context, id string, to Status, mutate mutation) (Invoice, error) {
	var out Invoice
	_, err := docstore.RunWithRetry(ctx, s.store, s.retry, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(ctx, Ref(id))
		if err != nil {
			return err
		}
		inv, err := FromSnapshot(snap)
		if err != nil {
			return err
		}
		if err := inv.CheckTransition(to); err != nil {
			return err
		}

		now := s.now().UTC()
		inv.Status = to
		fields := docstore.Fields{FieldStatus: string(to)}
		if mutate != nil {
			fields = docstore.Merge(fields, mutate(&inv, now))
		}
		if err := tx.Update(Ref(id), fields); err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}

	s.logger.Info("invoice status changed",
		slog.String("invoice_id", id),
		slog.String("status", string(to)),
	)
	return out, nil
}
