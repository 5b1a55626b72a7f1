package community

import (
	"context"
	"fmt"
	"net/url"
)

// TipsService reads the editorial living-tips articles.
type TipsService struct {
	c *Client
}

// List returns a page of tips. Query filters by category.
func (s *TipsService) List(ctx context.Context, opts ListOptions) (Page[Tip], error) {
	var page Page[Tip]
	if err := s.c.get(ctx, "tips", "/api/tips", listQuery(opts), &page); err != nil {
		return Page[Tip]{}, fmt.Errorf("failed to list tips: %w", err)
	}
	return page, nil
}

// Get returns one tip by ID.
func (s *TipsService) Get(ctx context.Context, id string) (Tip, error) {
	var tip Tip
	if err := s.c.get(ctx, "tips", "/api/tips/"+url.PathEscape(id), nil, &tip); err != nil {
		return Tip{}, fmt.Errorf("failed to get tip %s: %w", id, err)
	}
	return tip, nil
}
