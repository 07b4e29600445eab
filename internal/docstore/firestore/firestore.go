// Package firestore adapts Cloud Firestore to docstore.Store. Firestore
// transactions are run with a single attempt so docstore.RunWithRetry stays
// the only retry policy.
package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
)

// Store wraps a Firestore client.
type Store struct {
	client *firestore.Client
}

var _ docstore.Store = (*Store)(nil)

// New builds a store over client. The caller owns the client.
func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) doc(ref docstore.Ref) *firestore.DocumentRef {
	return s.client.Collection(ref.Collection).Doc(ref.ID)
}

// NewRef allocates an id with Firestore's generator.
func (s *Store) NewRef(collection string) docstore.Ref {
	return docstore.Doc(collection, s.client.Collection(collection).NewDoc().ID)
}

// Get reads a document outside a transaction.
func (s *Store) Get(ctx context.Context, ref docstore.Ref) (docstore.Snapshot, error) {
	snap, err := s.doc(ref).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return docstore.Snapshot{Ref: ref}, nil
	}
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("get %s: %w", ref.Path(), translate(err))
	}
	return toSnapshot(ref, snap), nil
}

// Query maps q onto a Firestore query. Equality filters combined with an
// ordering need a composite index in the project.
func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	query := s.client.Collection(q.Collection).Query
	for _, f := range q.Where {
		query = query.Where(f.Field, "==", f.Equals)
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Descending {
			dir = firestore.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	it := query.Documents(ctx)
	defer it.Stop()

	var out []docstore.Snapshot
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Collection, translate(err))
		}
		out = append(out, toSnapshot(docstore.Doc(q.Collection, snap.Ref.ID), snap))
	}
	return out, nil
}

// RunTransaction runs fn in a single-attempt Firestore transaction.
func (s *Store) RunTransaction(ctx context.Context, fn docstore.TxFunc) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, ftx *firestore.Transaction) error {
		return fn(ctx, &transaction{store: s, ftx: ftx})
	}, firestore.MaxAttempts(1))
	return translate(err)
}

// Watch streams snapshots from Firestore's real-time listener.
func (s *Store) Watch(ctx context.Context, ref docstore.Ref) (<-chan docstore.Snapshot, error) {
	it := s.doc(ref).Snapshots(ctx)
	out := make(chan docstore.Snapshot, 1)
	go func() {
		defer close(out)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				return
			}
			next := docstore.Snapshot{Ref: ref}
			if snap.Exists() {
				next = toSnapshot(ref, snap)
			}
			select {
			case out <- next:
			default:
				select {
				case <-out:
				default:
				}
				out <- next
			}
		}
	}()
	return out, nil
}

type transaction struct {
	store *Store
	ftx   *firestore.Transaction
	wrote bool
}

func (t *transaction) Get(_ context.Context, ref docstore.Ref) (docstore.Snapshot, error) {
	if t.wrote {
		return docstore.Snapshot{}, docstore.ErrReadAfterWrite
	}
	snap, err := t.ftx.Get(t.store.doc(ref))
	if status.Code(err) == codes.NotFound {
		return docstore.Snapshot{Ref: ref}, nil
	}
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("get %s: %w", ref.Path(), translate(err))
	}
	return toSnapshot(ref, snap), nil
}

func (t *transaction) Create(ref docstore.Ref, fields docstore.Fields) error {
	t.wrote = true
	return t.ftx.Create(t.store.doc(ref), map[string]any(fields))
}

func (t *transaction) Set(ref docstore.Ref, fields docstore.Fields) error {
	t.wrote = true
	return t.ftx.Set(t.store.doc(ref), map[string]any(fields), firestore.MergeAll)
}

func (t *transaction) Update(ref docstore.Ref, fields docstore.Fields) error {
	t.wrote = true
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	return t.ftx.Update(t.store.doc(ref), updates)
}

func toSnapshot(ref docstore.Ref, snap *firestore.DocumentSnapshot) docstore.Snapshot {
	return docstore.Snapshot{
		Ref:     ref,
		Exists:  true,
		Fields:  docstore.Fields(snap.Data()),
		Version: snap.UpdateTime.UnixNano(),
	}
}

// translate maps gRPC status codes onto docstore errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.Aborted:
		return fmt.Errorf("%w: %v", docstore.ErrConflict, err)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %v", docstore.ErrAlreadyExists, err)
	case codes.NotFound:
		return fmt.Errorf("%w: %v", docstore.ErrNotFound, err)
	}
	return err
}
