package community

import (
	"context"
	"fmt"
	"net/url"
)

// BoardsService lists the site's posting areas.
type BoardsService struct {
	c *Client
}

// List returns all boards.
func (s *BoardsService) List(ctx context.Context) ([]Board, error) {
	var boards []Board
	if err := s.c.get(ctx, "boards", "/api/boards", nil, &boards); err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}
	return boards, nil
}

// Get returns one board by slug.
func (s *BoardsService) Get(ctx context.Context, slug string) (Board, error) {
	var board Board
	if err := s.c.get(ctx, "boards", "/api/boards/"+url.PathEscape(slug), nil, &board); err != nil {
		return Board{}, fmt.Errorf("failed to get board %q: %w", slug, err)
	}
	return board, nil
}
