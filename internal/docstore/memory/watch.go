package memory

import (
	"context"

	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
)

type watcher struct {
	ch   chan docstore.Snapshot
	last int64
	sent bool
}

// offer replaces any undelivered snapshot with snap. Snapshots older than the
// last one offered are dropped, since commits may notify out of order.
func (w *watcher) offer(snap docstore.Snapshot) {
	if w.sent && snap.Version <= w.last {
		return
	}
	w.sent, w.last = true, snap.Version
	select {
	case w.ch <- snap:
		return
	default:
	}
	select {
	case <-w.ch:
	default:
	}
	select {
	case w.ch <- snap:
	default:
	}
}

// Watch emits the current state of ref followed by every committed change.
func (s *Store) Watch(ctx context.Context, ref docstore.Ref) (<-chan docstore.Snapshot, error) {
	w := &watcher{ch: make(chan docstore.Snapshot, 1)}

	s.watchMu.Lock()
	if s.watchers[ref] == nil {
		s.watchers[ref] = make(map[*watcher]struct{})
	}
	s.watchers[ref][w] = struct{}{}
	s.mu.RLock()
	w.offer(s.snapshotLocked(ref))
	s.mu.RUnlock()
	s.watchMu.Unlock()

	go func() {
		<-ctx.Done()
		s.watchMu.Lock()
		delete(s.watchers[ref], w)
		if len(s.watchers[ref]) == 0 {
			delete(s.watchers, ref)
		}
		close(w.ch)
		s.watchMu.Unlock()
	}()

	return w.ch, nil
}

func (s *Store) notify(changed []docstore.Snapshot) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for _, snap := range changed {
		for w := range s.watchers[snap.Ref] {
			w.offer(snap)
		}
	}
}
