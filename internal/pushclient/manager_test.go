package pushclient

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/menuboard/internal/database"
	"github.com/dukerupert/menuboard/internal/model"
	"github.com/dukerupert/menuboard/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlatform struct {
	mu sync.Mutex

	supported  bool
	permission Permission
	grant      Permission
	reg        *Registration

	permErr  error
	subErr   error
	unsubErr error

	// gate, when set, blocks RequestPermission until closed.
	gate    chan struct{}
	entered chan struct{}

	subscribeCalls int
}

func newPlatform() *fakePlatform {
	return &fakePlatform{supported: true, permission: PermissionDefault, grant: PermissionGranted}
}

func (p *fakePlatform) Supported() bool { return p.supported }

func (p *fakePlatform) Permission() Permission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.permission
}

func (p *fakePlatform) RequestPermission(ctx context.Context) (Permission, error) {
	if p.entered != nil {
		select {
		case p.entered <- struct{}{}:
		default:
		}
	}
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.permErr != nil {
		return "", p.permErr
	}
	p.permission = p.grant
	return p.permission, nil
}

func (p *fakePlatform) Ready(context.Context) error { return nil }

func (p *fakePlatform) Subscription(context.Context) (*Registration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reg, nil
}

func (p *fakePlatform) Subscribe(_ context.Context, key string) (*Registration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribeCalls++
	if p.subErr != nil {
		return nil, p.subErr
	}
	p.reg = &Registration{Endpoint: "https://push.example.com/send/" + key, P256dh: "p256dh-key", Auth: "auth-secret"}
	return p.reg, nil
}

func (p *fakePlatform) Unsubscribe(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unsubErr != nil {
		return p.unsubErr
	}
	p.reg = nil
	return nil
}

// failingRecords wraps the real table and fails on demand.
type failingRecords struct {
	*store.PushStore
	upsertErr error
	deleteErr error
}

func (r *failingRecords) Upsert(ctx context.Context, sub *model.PushSubscription) (*model.PushSubscription, error) {
	if r.upsertErr != nil {
		return nil, r.upsertErr
	}
	return r.PushStore.Upsert(ctx, sub)
}

func (r *failingRecords) DeleteByScope(ctx context.Context, scope model.SubscriptionScope) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	return r.PushStore.DeleteByScope(ctx, scope)
}

func setup(t *testing.T) (*sql.DB, *failingRecords) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, &failingRecords{PushStore: store.NewPushStore(db)}
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM push_subscriptions`).Scan(&n))
	return n
}

var customer = Identity{EstablishmentID: "estX", CustomerPhone: "+5511999990000", UserAgent: "test-agent"}

func TestUnsupported(t *testing.T) {
	_, records := setup(t)
	p := newPlatform()
	p.supported = false
	m := New(p, records, "vapid", customer, nil)

	assert.Equal(t, StateUnsupported, m.State())
	assert.ErrorIs(t, m.Subscribe(context.Background()), ErrUnsupported)
	assert.ErrorIs(t, m.Unsubscribe(context.Background()), ErrUnsupported)
	assert.Equal(t, StateUnsupported, m.State())
}

func TestInitialStateFollowsPermission(t *testing.T) {
	_, records := setup(t)
	for perm, want := range map[Permission]State{
		PermissionDefault: StateDefault,
		PermissionDenied:  StateDenied,
		PermissionGranted: StateUnsubscribed,
	} {
		p := newPlatform()
		p.permission = perm
		assert.Equal(t, want, New(p, records, "vapid", customer, nil).State(), perm)
	}
}

func TestSubscribeStoresRecord(t *testing.T) {
	db, records := setup(t)
	ctx := context.Background()
	p := newPlatform()
	m := New(p, records, "vapid", customer, nil)

	require.NoError(t, m.Subscribe(ctx))
	assert.Equal(t, StateSubscribed, m.State())

	got, err := records.GetByScope(ctx, model.CustomerScope("estX", "+5511999990000"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "https://push.example.com/send/vapid", got.Endpoint)
	assert.Equal(t, "p256dh-key", got.P256dh)
	assert.Equal(t, "auth-secret", got.Auth)
	assert.Equal(t, "test-agent", got.UserAgent)
	assert.Equal(t, 1, countRows(t, db))
}

func TestSubscribeTwiceKeepsOneRecord(t *testing.T) {
	db, records := setup(t)
	ctx := context.Background()
	p := newPlatform()
	m := New(p, records, "vapid", customer, nil)

	require.NoError(t, m.Subscribe(ctx))
	require.NoError(t, m.Subscribe(ctx))

	assert.Equal(t, 1, p.subscribeCalls, "existing registration is reused")
	assert.Equal(t, 1, countRows(t, db))
}

func TestConcurrentSubscribeCoalesces(t *testing.T) {
	db, records := setup(t)
	p := newPlatform()
	p.gate = make(chan struct{})
	p.entered = make(chan struct{}, 1)
	m := New(p, records, "vapid", customer, nil)

	var wg sync.WaitGroup
	errs := make([]error, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[0] = m.Subscribe(context.Background())
	}()
	<-p.entered

	for i := 1; i < len(errs); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.Subscribe(context.Background())
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(p.gate)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, p.subscribeCalls)
	assert.Equal(t, 1, countRows(t, db))
	assert.Equal(t, StateSubscribed, m.State())
}

func TestSubscribePermissionDenied(t *testing.T) {
	db, records := setup(t)
	p := newPlatform()
	p.grant = PermissionDenied
	m := New(p, records, "vapid", customer, nil)

	err := m.Subscribe(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, StateDenied, m.State())
	assert.Equal(t, 0, p.subscribeCalls)
	assert.Equal(t, 0, countRows(t, db))
}

func TestSubscribePromptDismissed(t *testing.T) {
	_, records := setup(t)
	p := newPlatform()
	p.grant = PermissionDefault
	m := New(p, records, "vapid", customer, nil)

	assert.ErrorIs(t, m.Subscribe(context.Background()), ErrPermissionDenied)
	assert.Equal(t, StateDefault, m.State())
}

func TestSubscribeFailureLeavesState(t *testing.T) {
	t.Run("platform", func(t *testing.T) {
		_, records := setup(t)
		p := newPlatform()
		p.subErr = errors.New("push service rejected key")
		m := New(p, records, "vapid", customer, nil)

		require.Error(t, m.Subscribe(context.Background()))
		assert.Equal(t, StateDefault, m.State())
	})

	t.Run("record", func(t *testing.T) {
		db, records := setup(t)
		records.upsertErr = errors.New("network down")
		p := newPlatform()
		m := New(p, records, "vapid", customer, nil)

		err := m.Subscribe(context.Background())
		require.ErrorIs(t, err, records.upsertErr)
		assert.Equal(t, StateDefault, m.State())
		assert.Equal(t, 0, countRows(t, db))
	})
}

func TestUnsubscribe(t *testing.T) {
	db, records := setup(t)
	ctx := context.Background()
	p := newPlatform()
	m := New(p, records, "vapid", customer, nil)
	require.NoError(t, m.Subscribe(ctx))

	require.NoError(t, m.Unsubscribe(ctx))
	assert.Equal(t, StateUnsubscribed, m.State())
	assert.Nil(t, p.reg)
	assert.Equal(t, 0, countRows(t, db))
}

func TestUnsubscribeStepsAreIndependent(t *testing.T) {
	t.Run("record delete fails", func(t *testing.T) {
		_, records := setup(t)
		ctx := context.Background()
		p := newPlatform()
		m := New(p, records, "vapid", customer, nil)
		require.NoError(t, m.Subscribe(ctx))

		records.deleteErr = errors.New("network down")
		err := m.Unsubscribe(ctx)
		require.ErrorIs(t, err, records.deleteErr)
		assert.Nil(t, p.reg, "platform registration is still cancelled")
		assert.Equal(t, StateSubscribed, m.State())
	})

	t.Run("platform cancel fails", func(t *testing.T) {
		db, records := setup(t)
		ctx := context.Background()
		p := newPlatform()
		m := New(p, records, "vapid", customer, nil)
		require.NoError(t, m.Subscribe(ctx))

		p.unsubErr = errors.New("platform error")
		err := m.Unsubscribe(ctx)
		require.ErrorIs(t, err, p.unsubErr)
		assert.Equal(t, 0, countRows(t, db), "record is still deleted")
		assert.Equal(t, StateSubscribed, m.State())
	})
}

func TestDashboardIdentityUsesEndpointScope(t *testing.T) {
	_, records := setup(t)
	ctx := context.Background()
	p := newPlatform()
	m := New(p, records, "vapid", Identity{UserID: "admin-1"}, nil)

	require.NoError(t, m.Subscribe(ctx))
	subs, err := records.ListByUser(ctx, "admin-1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://push.example.com/send/vapid", subs[0].Endpoint)

	require.NoError(t, m.Unsubscribe(ctx))
	subs, err = records.ListByUser(ctx, "admin-1")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestRefreshDetectsRegistration(t *testing.T) {
	_, records := setup(t)
	p := newPlatform()
	p.permission = PermissionGranted
	p.reg = &Registration{Endpoint: "https://push.example.com/x"}
	m := New(p, records, "vapid", customer, nil)
	assert.Equal(t, StateUnsubscribed, m.State())

	state, err := m.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSubscribed, state)
}
