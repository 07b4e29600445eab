package ledger

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
	"github.com/ahakem/bluemind-members-sub000/internal/docstore/memory"
	"github.com/ahakem/bluemind-members-sub000/internal/identity"
	"github.com/ahakem/bluemind-members-sub000/internal/invoice"
	"github.com/ahakem/bluemind-members-sub000/internal/logging"
	"github.com/ahakem/bluemind-members-sub000/internal/member"
	"github.com/ahakem/bluemind-members-sub000/internal/money"
	"github.com/ahakem/bluemind-members-sub000/internal/notification"
)

var treasurer = identity.Actor{ID: "admin-1", Name: "Tess Treasurer", Email: "tess@club.test"}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notification.Message
}

func (r *recordingNotifier) Send(_ context.Context, m notification.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
	return nil
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *memory.Store
	svc      *Service
	notifier *recordingNotifier
}

func testPolicy() Policy {
	p := DefaultPolicy()
	p.BaseBackoff = 0
	return p
}

func newFixture(t *testing.T, policy Policy) *fixture {
	t.Helper()
	store := memory.New()
	notifier := &recordingNotifier{}
	var (
		mu    sync.Mutex
		clock = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	)
	svc := NewService(store, policy, logging.Discard(),
		WithNotifier(notifier),
		WithClock(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(time.Second)
			return clock
		}),
	)
	return &fixture{t: t, ctx: context.Background(), store: store, svc: svc, notifier: notifier}
}

func (f *fixture) seedClubBalance(amount string) {
	f.t.Helper()
	require.NoError(f.t, docstore.Put(f.ctx, f.store, clubBalanceRef(), docstore.Fields{
		"currentBalance": money.MustParse(amount).Float64(),
	}))
}

func (f *fixture) seedMember(id, balance string, status member.MembershipStatus) {
	f.t.Helper()
	m := member.Member{ID: id, FirstName: "Mara", LastName: "Deep", Email: id + "@club.test",
		Balance: money.MustParse(balance), MembershipStatus: status}
	require.NoError(f.t, docstore.Put(f.ctx, f.store, member.Ref(id), m.Fields()))
}

func (f *fixture) seedInvoice(inv invoice.Invoice) {
	f.t.Helper()
	require.NoError(f.t, docstore.Put(f.ctx, f.store, invoice.Ref(inv.ID), inv.Fields()))
}

func (f *fixture) clubBalance() money.Amount {
	f.t.Helper()
	b, err := f.svc.GetClubBalance(f.ctx)
	require.NoError(f.t, err)
	return b.Current
}

func (f *fixture) memberBalance(id string) money.Amount {
	f.t.Helper()
	b, err := f.svc.GetMemberBalance(f.ctx, id)
	require.NoError(f.t, err)
	return b
}

func (f *fixture) member(id string) member.Member {
	f.t.Helper()
	m, found, err := member.Get(f.ctx, f.store, id)
	require.NoError(f.t, err)
	require.True(f.t, found)
	return m
}

func (f *fixture) count(collection string) int {
	f.t.Helper()
	snaps, err := f.store.Query(f.ctx, docstore.Query{Collection: collection})
	require.NoError(f.t, err)
	return len(snaps)
}

func (f *fixture) clubTransactions() []ClubTransaction {
	f.t.Helper()
	txs, err := f.svc.ListClubTransactions(f.ctx, 0)
	require.NoError(f.t, err)
	return txs
}

func (f *fixture) memberTransactions(id string) []MemberTransaction {
	f.t.Helper()
	txs, err := f.svc.ListMemberTransactions(f.ctx, id, 0)
	require.NoError(f.t, err)
	return txs
}

func amt(s string) money.Amount { return money.MustParse(s) }

func num(s string) json.Number { return json.Number(s) }

func mustGet(t *testing.T, f *fixture, ref docstore.Ref) docstore.Snapshot {
	t.Helper()
	snap, err := f.store.Get(f.ctx, ref)
	require.NoError(t, err)
	return snap
}
