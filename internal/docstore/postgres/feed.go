package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
)

const feedPrefix = "docstore:changes:"

func channelFor(ref docstore.Ref) string {
	return feedPrefix + ref.Path()
}

// publish announces committed writes. Delivery is best effort: the rows are
// already durable and watchers re-read the document on every message.
func (s *Store) publish(ctx context.Context, refs []docstore.Ref) {
	if s.feed == nil || len(refs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	seen := make(map[docstore.Ref]bool, len(refs))
	for _, ref := range refs {
		if seen[ref] {
			continue
		}
		seen[ref] = true
		if err := s.feed.Publish(ctx, channelFor(ref), ref.ID).Err(); err != nil {
			s.logger.Warn("publish document change", slog.String("ref", ref.Path()), slog.Any("error", err))
		}
	}
}

// Watch subscribes to change announcements for ref and re-reads the row on
// each one.
func (s *Store) Watch(ctx context.Context, ref docstore.Ref) (<-chan docstore.Snapshot, error) {
	if s.feed == nil {
		return nil, docstore.ErrWatchUnavailable
	}

	sub := s.feed.Subscribe(ctx, channelFor(ref))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	out := make(chan docstore.Snapshot, 1)
	go func() {
		defer close(out)
		defer sub.Close()

		var (
			last int64
			sent bool
		)
		emit := func() {
			snap, err := s.Get(ctx, ref)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("watch read failed", slog.String("ref", ref.Path()), slog.Any("error", err))
				}
				return
			}
			if sent && snap.Version <= last {
				return
			}
			sent, last = true, snap.Version
			select {
			case out <- snap:
			default:
				select {
				case <-out:
				default:
				}
				out <- snap
			}
		}

		emit()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				emit()
			}
		}
	}()
	return out, nil
}
