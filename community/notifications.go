package community

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// NotificationsService reads and acknowledges the user's notifications.
type NotificationsService struct {
	c *Client
}

// List returns a page of notifications, newest first. With unreadOnly,
// already-read entries are filtered out server-side.
func (s *NotificationsService) List(ctx context.Context, unreadOnly bool, opts ListOptions) (Page[Notification], error) {
	q := listQuery(opts)
	if unreadOnly {
		q.Set("unread", "true")
	}

	var page Page[Notification]
	if err := s.c.get(ctx, "notifications", "/api/notifications", q, &page); err != nil {
		return Page[Notification]{}, fmt.Errorf("failed to list notifications: %w", err)
	}
	return page, nil
}

// MarkRead acknowledges one notification.
func (s *NotificationsService) MarkRead(ctx context.Context, id string) error {
	r := request{
		resource: "notifications",
		method:   http.MethodPost,
		path:     "/api/notifications/" + url.PathEscape(id) + "/read",
	}

	if err := s.c.do(ctx, r, nil); err != nil {
		return fmt.Errorf("failed to mark notification %s read: %w", id, err)
	}

	s.c.invalidate(nil, []string{"/api/notifications"})
	return nil
}

// MarkAllRead acknowledges every unread notification.
func (s *NotificationsService) MarkAllRead(ctx context.Context) error {
	r := request{
		resource: "notifications",
		method:   http.MethodPost,
		path:     "/api/notifications/read-all",
	}

	if err := s.c.do(ctx, r, nil); err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}

	s.c.invalidate(nil, []string{"/api/notifications"})
	return nil
}
