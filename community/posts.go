package community

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// PostsService reads and writes board posts.
type PostsService struct {
	c *Client
}

// List returns a page of posts on a board, newest first.
func (s *PostsService) List(ctx context.Context, boardSlug string, opts ListOptions) (Page[Post], error) {
	var page Page[Post]
	path := "/api/boards/" + url.PathEscape(boardSlug) + "/posts"
	if err := s.c.get(ctx, "posts", path, listQuery(opts), &page); err != nil {
		return Page[Post]{}, fmt.Errorf("failed to list posts on %q: %w", boardSlug, err)
	}
	return page, nil
}

// Search returns posts matching the query across all boards.
func (s *PostsService) Search(ctx context.Context, opts ListOptions) (Page[Post], error) {
	var page Page[Post]
	if err := s.c.get(ctx, "posts", "/api/posts/search", listQuery(opts), &page); err != nil {
		return Page[Post]{}, fmt.Errorf("failed to search posts: %w", err)
	}
	return page, nil
}

// Get returns one post by ID.
func (s *PostsService) Get(ctx context.Context, id string) (Post, error) {
	var post Post
	if err := s.c.get(ctx, "posts", "/api/posts/"+url.PathEscape(id), nil, &post); err != nil {
		return Post{}, fmt.Errorf("failed to get post %s: %w", id, err)
	}
	return post, nil
}

// Create publishes a new post on the board.
func (s *PostsService) Create(ctx context.Context, boardSlug string, draft PostDraft) (Post, error) {
	r := request{
		resource: "posts",
		method:   http.MethodPost,
		path:     "/api/boards/" + url.PathEscape(boardSlug) + "/posts",
		body:     draft,
	}

	var post Post
	if err := s.c.do(ctx, r, &post); err != nil {
		return Post{}, fmt.Errorf("failed to create post: %w", err)
	}

	s.c.invalidate(nil, []string{
		"/api/boards/" + url.PathEscape(boardSlug) + "/posts",
		"/api/posts/search",
		"/api/boards", // post counts changed
	})
	return post, nil
}

// Update replaces the title and content of the caller's own post.
func (s *PostsService) Update(ctx context.Context, id string, draft PostDraft) (Post, error) {
	r := request{
		resource: "posts",
		method:   http.MethodPut,
		path:     "/api/posts/" + url.PathEscape(id),
		body:     draft,
	}

	var post Post
	if err := s.c.do(ctx, r, &post); err != nil {
		return Post{}, fmt.Errorf("failed to update post %s: %w", id, err)
	}

	s.c.invalidatePost(post.BoardSlug, id)
	return post, nil
}

// Delete removes the caller's own post.
func (s *PostsService) Delete(ctx context.Context, id string) error {
	r := request{
		resource: "posts",
		method:   http.MethodDelete,
		path:     "/api/posts/" + url.PathEscape(id),
	}

	if err := s.c.do(ctx, r, nil); err != nil {
		return fmt.Errorf("failed to delete post %s: %w", id, err)
	}

	// Board slug is unknown here; drop every post listing.
	s.c.invalidate(
		[]string{"/api/posts/" + url.PathEscape(id)},
		[]string{"/api/boards", "/api/posts/search"},
	)
	return nil
}

// invalidatePost drops the cached copies a post mutation makes stale.
func (c *Client) invalidatePost(boardSlug, id string) {
	prefixes := []string{"/api/posts/search"}
	if boardSlug != "" {
		prefixes = append(prefixes, "/api/boards/"+url.PathEscape(boardSlug)+"/posts")
	}
	c.invalidate([]string{"/api/posts/" + url.PathEscape(id)}, prefixes)
}
