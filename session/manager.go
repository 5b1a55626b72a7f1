package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/keepselvesreal/xai-community-go/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// API is the slice of the community API the manager needs.
// community.AuthService implements it.
type API interface {
	// Refresh exchanges a refresh token for a new grant. Implementations
	// wrap rejections (revoked or unknown refresh token) with
	// ErrRefreshRejected; any other error is treated as transient.
	Refresh(ctx context.Context, refreshToken string) (Grant, error)

	// Revoke invalidates the access token server-side.
	Revoke(ctx context.Context, accessToken string) error
}

// Config bounds the session lifecycle.
type Config struct {
	// RefreshSkew refreshes the access token this long before it expires.
	RefreshSkew time.Duration
	// CheckInterval is how often the background checker inspects the session.
	CheckInterval time.Duration
	// MaxSessionAge ends the session this long after login, regardless of activity.
	MaxSessionAge time.Duration
	// MaxRefreshes ends the session once it has been refreshed this many times.
	MaxRefreshes int
	// Clock drives all timing decisions. Nil means the real clock.
	Clock clockwork.Clock
}

const (
	DefaultRefreshSkew   = 60 * time.Second
	DefaultCheckInterval = time.Minute
	DefaultMaxSessionAge = 24 * time.Hour
	DefaultMaxRefreshes  = 24
)

func (c Config) withDefaults() Config {
	if c.RefreshSkew <= 0 {
		c.RefreshSkew = DefaultRefreshSkew
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	if c.MaxSessionAge <= 0 {
		c.MaxSessionAge = DefaultMaxSessionAge
	}
	if c.MaxRefreshes <= 0 {
		c.MaxRefreshes = DefaultMaxRefreshes
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return c
}

// Manager owns the session and keeps its access token valid. It hands out
// tokens, refreshes them shortly before expiry (collapsing concurrent
// refreshes into one), enforces the age and refresh-count limits, and ends
// the session with a reason code when it cannot be kept alive.
type Manager struct {
	api   API
	store Store
	cfg   Config
	clock clockwork.Clock

	mu      sync.Mutex
	current *Session

	refreshGroup singleflight.Group

	callbackMu sync.Mutex
	onLogout   []func(Reason)

	stopCh    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewManager creates a manager using the given API for refresh/revoke calls
// and the given store for persistence. A nil store keeps the session in
// memory only.
func NewManager(api API, store Store, cfg Config) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	cfg = cfg.withDefaults()
	return &Manager{
		api:    api,
		store:  store,
		cfg:    cfg,
		clock:  cfg.Clock,
		stopCh: make(chan struct{}),
	}
}

// Restore loads a persisted session from the store, reporting whether a
// live session was restored. A stored session already past its maximum age
// is ended immediately (listeners hear ReasonSessionAge).
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	s, err := m.store.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load stored session: %w", err)
	}
	if s == nil {
		return false, nil
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	metrics.SessionActive.Set(1)

	if s.Age(m.clock.Now()) >= m.cfg.MaxSessionAge {
		m.forceLogout(ctx, ReasonSessionAge)
		return false, nil
	}

	slog.DebugContext(ctx, "Session restored",
		"login_at", s.LoginAt,
		"refresh_count", s.RefreshCount,
	)
	return true, nil
}

// Establish stores the session issued at login, marking now as login time.
func (m *Manager) Establish(ctx context.Context, g Grant) (Session, error) {
	now := m.clock.Now()
	s := Session{
		AccessToken:     g.AccessToken,
		RefreshToken:    g.RefreshToken,
		LoginAt:         now,
		AccessExpiresAt: now.Add(time.Duration(g.ExpiresIn) * time.Second),
	}

	if err := m.store.Save(ctx, &s); err != nil {
		return Session{}, fmt.Errorf("failed to persist session: %w", err)
	}

	m.mu.Lock()
	m.current = &s
	m.mu.Unlock()

	metrics.SessionActive.Set(1)
	slog.InfoContext(ctx, "Session established", "access_expires_at", s.AccessExpiresAt)
	return s, nil
}

// Session returns a copy of the current session, if one is held.
func (m *Manager) Session() (Session, bool) {
	return m.snapshot()
}

// Authenticated reports whether a session is currently held.
func (m *Manager) Authenticated() bool {
	_, ok := m.snapshot()
	return ok
}

// Token returns an access token that is valid for at least RefreshSkew,
// refreshing the pair first when needed. It returns ErrNotAuthenticated
// when no session is held and an error wrapping ErrSessionExpired when
// this call is the one that discovers the session cannot continue.
func (m *Manager) Token(ctx context.Context) (string, error) {
	s, ok := m.snapshot()
	if !ok {
		return "", ErrNotAuthenticated
	}

	now := m.clock.Now()
	if s.Age(now) >= m.cfg.MaxSessionAge {
		m.forceLogout(ctx, ReasonSessionAge)
		return "", fmt.Errorf("session exceeded maximum age %v: %w", m.cfg.MaxSessionAge, ErrSessionExpired)
	}

	if !s.NeedsRefresh(now, m.cfg.RefreshSkew) {
		return s.AccessToken, nil
	}

	if err := m.ensureFresh(ctx); err != nil {
		return "", err
	}

	s, ok = m.snapshot()
	if !ok {
		return "", ErrNotAuthenticated
	}
	return s.AccessToken, nil
}

// Refresh unconditionally exchanges the refresh token for a new access
// token, even when the current one still looks valid. Used after the
// server rejects a request with 401. Concurrent calls collapse into a
// single server round trip; every caller gets the same outcome.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		return nil, m.doRefresh(ctx, true)
	})
	return err
}

// ensureFresh refreshes only when the access token is within RefreshSkew
// of expiry. A caller that was queued behind an in-flight refresh finds
// the token already fresh and skips the round trip.
func (m *Manager) ensureFresh(ctx context.Context) error {
	_, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		return nil, m.doRefresh(ctx, false)
	})
	return err
}

func (m *Manager) doRefresh(ctx context.Context, force bool) error {
	m.mu.Lock()
	s := m.current
	if s == nil {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	if !force && !s.NeedsRefresh(m.clock.Now(), m.cfg.RefreshSkew) {
		m.mu.Unlock()
		return nil
	}
	if s.RefreshCount >= m.cfg.MaxRefreshes {
		m.mu.Unlock()
		m.forceLogout(ctx, ReasonRefreshLimit)
		return fmt.Errorf("session used all %d refreshes: %w", m.cfg.MaxRefreshes, ErrSessionExpired)
	}
	refreshToken := s.RefreshToken
	refreshCount := s.RefreshCount
	loginAt := s.LoginAt
	m.mu.Unlock()

	grant, err := m.api.Refresh(ctx, refreshToken)
	if errors.Is(err, ErrRefreshRejected) {
		metrics.TokenRefreshesTotal.WithLabelValues("rejected").Inc()
		slog.WarnContext(ctx, "Refresh token rejected by server", "error", err)
		m.forceLogout(ctx, ReasonRefreshRejected)
		return err
	}
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to refresh token: %w", err)
	}

	now := m.clock.Now()
	next := Session{
		AccessToken:     grant.AccessToken,
		RefreshToken:    grant.RefreshToken,
		LoginAt:         loginAt,
		AccessExpiresAt: now.Add(time.Duration(grant.ExpiresIn) * time.Second),
		RefreshCount:    refreshCount + 1,
	}
	if next.RefreshToken == "" {
		// Server did not rotate the refresh token, keep the old one.
		next.RefreshToken = refreshToken
	}

	m.mu.Lock()
	if m.current == nil {
		// Logged out while the refresh was in flight; discard the grant.
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	m.current = &next
	m.mu.Unlock()

	if err := m.store.Save(ctx, &next); err != nil {
		// The in-memory session stays valid; persistence catches up on the
		// next refresh.
		slog.ErrorContext(ctx, "Failed to persist refreshed session", "error", err)
	}

	metrics.TokenRefreshesTotal.WithLabelValues("success").Inc()
	slog.InfoContext(ctx, "Access token refreshed",
		"refresh_count", next.RefreshCount,
		"access_expires_at", next.AccessExpiresAt,
	)
	return nil
}

// Logout ends the session at the user's request. The access token is
// revoked server-side on a best-effort basis.
func (m *Manager) Logout(ctx context.Context) error {
	s, ok := m.snapshot()
	if !ok {
		return ErrNotAuthenticated
	}

	if err := m.api.Revoke(ctx, s.AccessToken); err != nil {
		slog.WarnContext(ctx, "Failed to revoke access token", "error", err)
	}

	m.forceLogout(ctx, ReasonUser)
	return nil
}

// OnLogout registers fn to run whenever the session ends. Callbacks run
// synchronously on the goroutine that ended the session.
func (m *Manager) OnLogout(fn func(Reason)) {
	m.callbackMu.Lock()
	defer m.callbackMu.Unlock()
	m.onLogout = append(m.onLogout, fn)
}

// Start launches the background checker that refreshes the token before
// expiry and enforces the session limits. Safe to call more than once.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		ticker := m.clock.NewTicker(m.cfg.CheckInterval)
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for {
				select {
				case <-ticker.Chan():
					m.check(context.Background())
				case <-m.stopCh:
					ticker.Stop()
					return
				}
			}
		}()
	})
}

// Stop terminates the background checker and waits for it to exit.
// Safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()
}

// check is one pass of the periodic session inspection.
func (m *Manager) check(ctx context.Context) {
	s, ok := m.snapshot()
	if !ok {
		return
	}

	now := m.clock.Now()
	if s.Age(now) >= m.cfg.MaxSessionAge {
		m.forceLogout(ctx, ReasonSessionAge)
		return
	}

	if !s.NeedsRefresh(now, m.cfg.RefreshSkew) {
		return
	}

	// ensureFresh enforces the refresh-count limit itself.
	if err := m.ensureFresh(ctx); err != nil {
		slog.WarnContext(ctx, "Background token refresh failed", "error", err)
	}
}

// forceLogout drops the session, clears the store, and notifies listeners.
// No-op when no session is held.
func (m *Manager) forceLogout(ctx context.Context, reason Reason) {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return
	}
	m.current = nil
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to clear stored session", "error", err)
	}

	metrics.SessionActive.Set(0)
	metrics.SessionLogoutsTotal.WithLabelValues(string(reason)).Inc()
	slog.InfoContext(ctx, "Session ended", "reason", reason)

	m.notify(reason)
}

func (m *Manager) notify(reason Reason) {
	m.callbackMu.Lock()
	callbacks := slices.Clone(m.onLogout)
	m.callbackMu.Unlock()

	for _, fn := range callbacks {
		fn(reason)
	}
}

func (m *Manager) snapshot() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Session{}, false
	}
	return *m.current, true
}
