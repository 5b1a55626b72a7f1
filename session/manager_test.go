package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/keepselvesreal/xai-community-go/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI implements session.API with function fields.
type fakeAPI struct {
	mu        sync.Mutex
	refreshFn func(ctx context.Context, refreshToken string) (session.Grant, error)
	revokeFn  func(ctx context.Context, accessToken string) error

	refreshCalls int
	revokeCalls  int
	lastRevoked  string
}

func (f *fakeAPI) Refresh(ctx context.Context, refreshToken string) (session.Grant, error) {
	f.mu.Lock()
	f.refreshCalls++
	fn := f.refreshFn
	f.mu.Unlock()

	if fn == nil {
		return session.Grant{AccessToken: "at-new", RefreshToken: "rt-new", ExpiresIn: 3600}, nil
	}
	return fn(ctx, refreshToken)
}

func (f *fakeAPI) Revoke(ctx context.Context, accessToken string) error {
	f.mu.Lock()
	f.revokeCalls++
	f.lastRevoked = accessToken
	fn := f.revokeFn
	f.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx, accessToken)
}

func (f *fakeAPI) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

func newTestManager(api *fakeAPI, clock clockwork.Clock, cfg session.Config) (*session.Manager, *session.MemoryStore) {
	cfg.Clock = clock
	store := session.NewMemoryStore()
	return session.NewManager(api, store, cfg), store
}

func establish(t *testing.T, m *session.Manager, expiresIn int64) session.Session {
	t.Helper()
	s, err := m.Establish(context.Background(), session.Grant{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		ExpiresIn:    expiresIn,
	})
	require.NoError(t, err)
	return s
}

func TestToken_ReturnsCurrentWhileFresh(t *testing.T) {
	clock := clockwork.NewFakeClock()
	api := &fakeAPI{}
	m, _ := newTestManager(api, clock, session.Config{})

	establish(t, m, 3600)

	token, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-1", token)
	assert.Equal(t, 0, api.refreshCount())
}

func TestToken_RefreshesWithinSkew(t *testing.T) {
	clock := clockwork.NewFakeClock()
	api := &fakeAPI{}
	m, store := newTestManager(api, clock, session.Config{})

	establish(t, m, 3600)
	clock.Advance(3600*time.Second - 30*time.Second) // 30s left, inside the 60s skew

	token, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-new", token)
	assert.Equal(t, 1, api.refreshCount())

	// The rotated pair is persisted before callers observe it.
	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "at-new", stored.AccessToken)
	assert.Equal(t, "rt-new", stored.RefreshToken)
	assert.Equal(t, 1, stored.RefreshCount)
}

func TestToken_NotAuthenticated(t *testing.T) {
	m, _ := newTestManager(&fakeAPI{}, clockwork.NewFakeClock(), session.Config{})

	_, err := m.Token(context.Background())
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
}

func TestToken_SessionAgeForcesLogout(t *testing.T) {
	clock := clockwork.NewFakeClock()
	api := &fakeAPI{}
	m, store := newTestManager(api, clock, session.Config{MaxSessionAge: time.Hour})

	var reason session.Reason
	m.OnLogout(func(r session.Reason) { reason = r })

	establish(t, m, 600)
	clock.Advance(time.Hour)

	_, err := m.Token(context.Background())
	assert.ErrorIs(t, err, session.ErrSessionExpired)
	assert.Equal(t, session.ReasonSessionAge, reason)

	// The session is gone everywhere.
	assert.False(t, m.Authenticated())
	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stored)

	_, err = m.Token(context.Background())
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
}

func TestRefresh_LimitForcesLogout(t *testing.T) {
	clock := clockwork.NewFakeClock()
	api := &fakeAPI{}
	m, _ := newTestManager(api, clock, session.Config{MaxRefreshes: 2})

	var reason session.Reason
	m.OnLogout(func(r session.Reason) { reason = r })

	establish(t, m, 3600)

	require.NoError(t, m.Refresh(context.Background()))
	require.NoError(t, m.Refresh(context.Background()))

	err := m.Refresh(context.Background())
	assert.ErrorIs(t, err, session.ErrSessionExpired)
	assert.Equal(t, session.ReasonRefreshLimit, reason)
	assert.False(t, m.Authenticated())
	assert.Equal(t, 2, api.refreshCount(), "the third refresh must not reach the server")
}

func TestRefresh_RejectedForcesLogout(t *testing.T) {
	clock := clockwork.NewFakeClock()
	api := &fakeAPI{
		refreshFn: func(ctx context.Context, refreshToken string) (session.Grant, error) {
			return session.Grant{}, fmt.Errorf("%w: server said no", session.ErrRefreshRejected)
		},
	}
	m, _ := newTestManager(api, clock, session.Config{})

	var reason session.Reason
	m.OnLogout(func(r session.Reason) { reason = r })

	establish(t, m, 3600)

	err := m.Refresh(context.Background())
	assert.ErrorIs(t, err, session.ErrRefreshRejected)
	assert.Equal(t, session.ReasonRefreshRejected, reason)
	assert.False(t, m.Authenticated())
}

func TestRefresh_TransientErrorKeepsSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	api := &fakeAPI{
		refreshFn: func(ctx context.Context, refreshToken string) (session.Grant, error) {
			return session.Grant{}, errors.New("connection refused")
		},
	}
	m, _ := newTestManager(api, clock, session.Config{})

	establish(t, m, 3600)

	err := m.Refresh(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, session.ErrSessionExpired)
	assert.True(t, m.Authenticated(), "a transient refresh failure must not end the session")

	// The still-valid access token keeps working.
	token, tokenErr := m.Token(context.Background())
	require.NoError(t, tokenErr)
	assert.Equal(t, "at-1", token)
}

func TestRefresh_KeepsOldRefreshTokenWhenNotRotated(t *testing.T) {
	clock := clockwork.NewFakeClock()
	api := &fakeAPI{
		refreshFn: func(ctx context.Context, refreshToken string) (session.Grant, error) {
			return session.Grant{AccessToken: "at-2", ExpiresIn: 3600}, nil
		},
	}
	m, _ := newTestManager(api, clock, session.Config{})

	establish(t, m, 3600)
	require.NoError(t, m.Refresh(context.Background()))

	s, ok := m.Session()
	require.True(t, ok)
	assert.Equal(t, "at-2", s.AccessToken)
	assert.Equal(t, "rt-1", s.RefreshToken)
}

func TestRefresh_ConcurrentCallsCollapse(t *testing.T) {
	clock := clockwork.NewFakeClock()

	const callers = 8
	var startedOnce sync.Once
	started := make(chan struct{})
	release := make(chan struct{})
	api := &fakeAPI{}
	api.refreshFn = func(ctx context.Context, refreshToken string) (session.Grant, error) {
		startedOnce.Do(func() { close(started) })
		<-release
		return session.Grant{AccessToken: "at-new", RefreshToken: "rt-new", ExpiresIn: 3600}, nil
	}

	m, _ := newTestManager(api, clock, session.Config{})
	establish(t, m, 3600)

	var ready, wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		ready.Add(1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			ready.Done()
			errs[i] = m.Refresh(context.Background())
		}()
	}

	// First caller is inside the refresh; let the rest pile up behind the
	// singleflight, then release.
	ready.Wait()
	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
	assert.Equal(t, 1, api.refreshCount(), "concurrent refreshes must collapse into one round trip")

	s, ok := m.Session()
	require.True(t, ok)
	assert.Equal(t, 1, s.RefreshCount)
}

func TestChecker_RefreshesBeforeExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	api := &fakeAPI{}
	m, _ := newTestManager(api, clock, session.Config{CheckInterval: time.Minute})

	establish(t, m, 90) // expires in 90s; after one 60s tick it is inside the skew

	m.Start()
	defer m.Stop()

	clock.BlockUntil(1) // checker is waiting on its ticker
	clock.Advance(time.Minute)

	assert.Eventually(t, func() bool {
		return api.refreshCount() == 1
	}, time.Second, 5*time.Millisecond)

	s, ok := m.Session()
	require.True(t, ok)
	assert.Equal(t, "at-new", s.AccessToken)
}

func TestChecker_EndsExpiredSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	api := &fakeAPI{}
	m, _ := newTestManager(api, clock, session.Config{
		CheckInterval: time.Minute,
		MaxSessionAge: 30 * time.Minute,
	})

	logouts := make(chan session.Reason, 1)
	m.OnLogout(func(r session.Reason) { logouts <- r })

	establish(t, m, 7200)

	m.Start()
	defer m.Stop()

	clock.BlockUntil(1)
	clock.Advance(31 * time.Minute)

	select {
	case reason := <-logouts:
		assert.Equal(t, session.ReasonSessionAge, reason)
	case <-time.After(time.Second):
		t.Fatal("checker never ended the expired session")
	}
	assert.False(t, m.Authenticated())
}

func TestStartStop_Idempotent(t *testing.T) {
	m, _ := newTestManager(&fakeAPI{}, clockwork.NewFakeClock(), session.Config{})

	m.Start()
	m.Start()
	m.Stop()
	m.Stop()
}

func TestLogout_RevokesAndNotifies(t *testing.T) {
	clock := clockwork.NewFakeClock()
	api := &fakeAPI{}
	m, store := newTestManager(api, clock, session.Config{})

	var reason session.Reason
	m.OnLogout(func(r session.Reason) { reason = r })

	establish(t, m, 3600)
	require.NoError(t, m.Logout(context.Background()))

	assert.Equal(t, session.ReasonUser, reason)
	assert.Equal(t, "at-1", api.lastRevoked)
	assert.False(t, m.Authenticated())

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestLogout_SurvivesRevokeFailure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	api := &fakeAPI{
		revokeFn: func(ctx context.Context, accessToken string) error {
			return errors.New("server unreachable")
		},
	}
	m, _ := newTestManager(api, clock, session.Config{})

	establish(t, m, 3600)
	require.NoError(t, m.Logout(context.Background()), "revoke is best-effort")
	assert.False(t, m.Authenticated())
}

func TestRestore_ResumesLiveSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := session.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), &session.Session{
		AccessToken:     "at-stored",
		RefreshToken:    "rt-stored",
		LoginAt:         clock.Now().Add(-time.Hour),
		AccessExpiresAt: clock.Now().Add(30 * time.Minute),
		RefreshCount:    3,
	}))

	m := session.NewManager(&fakeAPI{}, store, session.Config{Clock: clock})

	restored, err := m.Restore(context.Background())
	require.NoError(t, err)
	assert.True(t, restored)

	token, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-stored", token)
}

func TestRestore_EndsOverageSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := session.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), &session.Session{
		AccessToken:     "at-stored",
		RefreshToken:    "rt-stored",
		LoginAt:         clock.Now().Add(-25 * time.Hour),
		AccessExpiresAt: clock.Now().Add(30 * time.Minute),
	}))

	m := session.NewManager(&fakeAPI{}, store, session.Config{Clock: clock})

	var reason session.Reason
	m.OnLogout(func(r session.Reason) { reason = r })

	restored, err := m.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, restored)
	assert.Equal(t, session.ReasonSessionAge, reason)

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestRestore_EmptyStore(t *testing.T) {
	m, _ := newTestManager(&fakeAPI{}, clockwork.NewFakeClock(), session.Config{})

	restored, err := m.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, restored)
}
