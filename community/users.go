package community

import (
	"context"
	"fmt"
	"net/http"
)

// UsersService reads and updates the authenticated user's profile.
type UsersService struct {
	c *Client
}

// Me returns the profile behind the current access token. Never cached:
// it doubles as the "is my session alive" probe.
func (s *UsersService) Me(ctx context.Context) (User, error) {
	r := request{
		resource: "users",
		method:   http.MethodGet,
		path:     "/api/users/me",
	}

	var user User
	if err := s.c.do(ctx, r, &user); err != nil {
		return User{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return user, nil
}

// UpdateMe changes the fields set in update, leaving the rest alone.
func (s *UsersService) UpdateMe(ctx context.Context, update UserUpdate) (User, error) {
	r := request{
		resource: "users",
		method:   http.MethodPatch,
		path:     "/api/users/me",
		body:     update,
	}

	var user User
	if err := s.c.do(ctx, r, &user); err != nil {
		return User{}, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}
