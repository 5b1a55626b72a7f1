package community

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/keepselvesreal/xai-community-go/session"
)

// AuthService drives the authentication endpoints. It implements
// session.API, so it plugs straight into session.NewManager.
type AuthService struct {
	c *Client
}

var _ session.API = (*AuthService)(nil)

// LoginResult is what a successful login returns: the token pair plus the
// authenticated user's profile.
type LoginResult struct {
	Grant session.Grant
	User  User
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type grantResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         *User  `json:"user,omitempty"`
}

// Login exchanges credentials for a token pair. The caller hands the
// grant to session.Manager.Establish.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	r := request{
		resource:  "auth",
		method:    http.MethodPost,
		path:      "/api/auth/login",
		body:      loginRequest{Email: email, Password: password},
		anonymous: true,
	}

	var resp grantResponse
	if err := s.c.do(ctx, r, &resp); err != nil {
		return LoginResult{}, fmt.Errorf("login failed: %w", err)
	}

	result := LoginResult{
		Grant: session.Grant{
			AccessToken:  resp.AccessToken,
			RefreshToken: resp.RefreshToken,
			ExpiresIn:    resp.ExpiresIn,
		},
	}
	if resp.User != nil {
		result.User = *resp.User
	}
	return result, nil
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges the refresh token for a fresh grant. A 400 or 401
// from the refresh endpoint means the token was revoked or is unknown;
// those are wrapped with session.ErrRefreshRejected so the manager ends
// the session instead of retrying.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (session.Grant, error) {
	r := request{
		resource:  "auth",
		method:    http.MethodPost,
		path:      "/api/auth/refresh",
		body:      refreshRequest{RefreshToken: refreshToken},
		anonymous: true,
	}

	var resp grantResponse
	err := s.c.do(ctx, r, &resp)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) &&
			(apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusUnauthorized) {
			return session.Grant{}, fmt.Errorf("%w: %w", session.ErrRefreshRejected, err)
		}
		return session.Grant{}, fmt.Errorf("refresh failed: %w", err)
	}

	return session.Grant{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
	}, nil
}

type revokeRequest struct {
	AccessToken string `json:"access_token"`
}

// Revoke invalidates the access token server-side. The token is passed
// explicitly because the manager calls this while tearing the session
// down, when the token source is no longer usable.
func (s *AuthService) Revoke(ctx context.Context, accessToken string) error {
	r := request{
		resource: "auth",
		method:   http.MethodPost,
		path:     "/api/auth/revoke",
		body:     revokeRequest{AccessToken: accessToken},
		bearer:   accessToken,
	}

	if err := s.c.do(ctx, r, nil); err != nil {
		return fmt.Errorf("revoke failed: %w", err)
	}
	return nil
}
