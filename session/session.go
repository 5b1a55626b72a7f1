package session

import (
	"errors"
	"time"
)

// Session is the authenticated state of one user: the bearer token pair
// plus the bookkeeping needed to decide when it must be refreshed or torn
// down. The JSON shape is what stores persist.
type Session struct {
	AccessToken     string    `json:"access_token"`
	RefreshToken    string    `json:"refresh_token"`
	LoginAt         time.Time `json:"login_at"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
	RefreshCount    int       `json:"refresh_count"`
}

// Age returns how long the session has existed since login.
func (s Session) Age(now time.Time) time.Duration {
	return now.Sub(s.LoginAt)
}

// NeedsRefresh reports whether the access token expires within skew.
func (s Session) NeedsRefresh(now time.Time, skew time.Duration) bool {
	return s.AccessExpiresAt.Before(now.Add(skew))
}

// Grant is a token pair issued by the auth API on login or refresh.
// An empty RefreshToken on refresh means the server did not rotate it.
type Grant struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // access token lifetime in seconds
}

// Reason describes why a session ended.
type Reason string

const (
	// ReasonUser means the user logged out explicitly.
	ReasonUser Reason = "user"
	// ReasonSessionAge means the session exceeded its maximum total age.
	ReasonSessionAge Reason = "session_age"
	// ReasonRefreshLimit means the session used up its refresh allowance.
	ReasonRefreshLimit Reason = "refresh_limit"
	// ReasonRefreshRejected means the server refused the refresh token.
	ReasonRefreshRejected Reason = "refresh_rejected"
)

var (
	// ErrNotAuthenticated is returned when no session is held.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSessionExpired is returned by the call that discovers the session
	// can no longer be kept alive. Subsequent calls return ErrNotAuthenticated.
	ErrSessionExpired = errors.New("session expired")

	// ErrRefreshRejected marks a refresh the server refused (revoked or
	// invalid refresh token). The API client wraps 400/401 refresh
	// responses with it so the manager can distinguish rejection from
	// transient failure.
	ErrRefreshRejected = errors.New("refresh token rejected")
)
