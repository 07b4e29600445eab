// Package memory is an in-process docstore backend. It keeps a version per
// document and validates every read version at commit, which gives the same
// optimistic semantics as the networked backends. It backs unit tests and
// STORE_BACKEND=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
)

type document struct {
	fields  docstore.Fields
	version int64
}

// CommitHook runs under the store lock right before buffered writes are
// applied. Returning an error aborts the commit.
type CommitHook func(writes []Write) error

// Store is a concurrency-safe in-memory document store.
type Store struct {
	mu      sync.RWMutex
	docs    map[docstore.Ref]document
	version int64
	hook    CommitHook

	watchMu  sync.Mutex
	watchers map[docstore.Ref]map[*watcher]struct{}
}

var _ docstore.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		docs:     make(map[docstore.Ref]document),
		watchers: make(map[docstore.Ref]map[*watcher]struct{}),
	}
}

// SetCommitHook installs or clears a hook used to inject failures in tests.
func (s *Store) SetCommitHook(hook CommitHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

// NewRef allocates a random id.
func (s *Store) NewRef(collection string) docstore.Ref {
	return docstore.Doc(collection, uuid.NewString())
}

// Get reads the committed state of ref.
func (s *Store) Get(_ context.Context, ref docstore.Ref) (docstore.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(ref), nil
}

func (s *Store) snapshotLocked(ref docstore.Ref) docstore.Snapshot {
	doc, ok := s.docs[ref]
	if !ok {
		return docstore.Snapshot{Ref: ref}
	}
	return docstore.Snapshot{Ref: ref, Exists: true, Fields: doc.fields.Clone(), Version: doc.version}
}

// Query scans the collection. Ordering uses the timestamp in q.OrderBy.
func (s *Store) Query(_ context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	s.mu.RLock()
	var out []docstore.Snapshot
	for ref, doc := range s.docs {
		if ref.Collection != q.Collection || !matches(doc.fields, q.Where) {
			continue
		}
		out = append(out, docstore.Snapshot{Ref: ref, Exists: true, Fields: doc.fields.Clone(), Version: doc.version})
	}
	s.mu.RUnlock()

	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			ti, _ := out[i].Fields.Time(q.OrderBy)
			tj, _ := out[j].Fields.Time(q.OrderBy)
			if ti.Equal(tj) {
				return out[i].Ref.ID < out[j].Ref.ID
			}
			if q.Descending {
				return ti.After(tj)
			}
			return ti.Before(tj)
		})
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].Ref.ID < out[j].Ref.ID })
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matches(fields docstore.Fields, filters []docstore.Filter) bool {
	for _, f := range filters {
		if fields.String(f.Field) != f.Equals {
			return false
		}
	}
	return true
}

// RunTransaction runs fn once. Reads see committed state; the commit fails
// with docstore.ErrConflict if any document read by fn changed since.
func (s *Store) RunTransaction(ctx context.Context, fn docstore.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &transaction{store: s, reads: make(map[docstore.Ref]int64)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	changed, err := s.commit(tx)
	if err != nil {
		return err
	}
	s.notify(changed)
	return nil
}

func (s *Store) commit(tx *transaction) ([]docstore.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ref, seen := range tx.reads {
		if s.docs[ref].version != seen {
			return nil, docstore.ErrConflict
		}
	}

	// Validate every write against a staged view before touching s.docs so a
	// failing write leaves nothing applied.
	staged := make(map[docstore.Ref]document, len(tx.writes))
	current := func(ref docstore.Ref) (document, bool) {
		if doc, ok := staged[ref]; ok {
			return doc, true
		}
		doc, ok := s.docs[ref]
		return doc, ok
	}
	for _, w := range tx.writes {
		doc, exists := current(w.Ref)
		switch w.Kind {
		case WriteCreate:
			if exists {
				return nil, docstore.ErrAlreadyExists
			}
			doc = document{fields: w.Fields.Clone()}
		case WriteSet:
			doc.fields = docstore.Merge(doc.fields, w.Fields)
		case WriteUpdate:
			if !exists {
				return nil, docstore.ErrNotFound
			}
			doc.fields = docstore.Merge(doc.fields, w.Fields)
		}
		staged[w.Ref] = doc
	}

	if s.hook != nil {
		if err := s.hook(append([]Write(nil), tx.writes...)); err != nil {
			return nil, err
		}
	}

	changed := make([]docstore.Snapshot, 0, len(staged))
	for ref, doc := range staged {
		s.version++
		doc.version = s.version
		s.docs[ref] = doc
		changed = append(changed, docstore.Snapshot{Ref: ref, Exists: true, Fields: doc.fields.Clone(), Version: doc.version})
	}
	return changed, nil
}

// WriteKind distinguishes buffered write operations.
type WriteKind int

const (
	WriteCreate WriteKind = iota + 1
	WriteSet
	WriteUpdate
)

// Write is one buffered mutation, exposed to commit hooks.
type Write struct {
	Kind   WriteKind
	Ref    docstore.Ref
	Fields docstore.Fields
}

type transaction struct {
	store  *Store
	reads  map[docstore.Ref]int64
	writes []Write
}

func (t *transaction) Get(ctx context.Context, ref docstore.Ref) (docstore.Snapshot, error) {
	if len(t.writes) > 0 {
		return docstore.Snapshot{}, docstore.ErrReadAfterWrite
	}
	if err := ctx.Err(); err != nil {
		return docstore.Snapshot{}, err
	}
	t.store.mu.RLock()
	snap := t.store.snapshotLocked(ref)
	t.store.mu.RUnlock()
	if _, seen := t.reads[ref]; !seen {
		t.reads[ref] = snap.Version
	}
	return snap, nil
}

func (t *transaction) Create(ref docstore.Ref, fields docstore.Fields) error {
	return t.buffer(WriteCreate, ref, fields)
}

func (t *transaction) Set(ref docstore.Ref, fields docstore.Fields) error {
	return t.buffer(WriteSet, ref, fields)
}

func (t *transaction) Update(ref docstore.Ref, fields docstore.Fields) error {
	return t.buffer(WriteUpdate, ref, fields)
}

func (t *transaction) buffer(kind WriteKind, ref docstore.Ref, fields docstore.Fields) error {
	t.writes = append(t.writes, Write{Kind: kind, Ref: ref, Fields: normalize(fields)})
	return nil
}

// normalize stores timestamps in UTC so reads are independent of the caller's zone.
func normalize(fields docstore.Fields) docstore.Fields {
	out := fields.Clone()
	for k, v := range out {
		if ts, ok := v.(time.Time); ok {
			out[k] = ts.UTC()
		}
	}
	return out
}
