package community

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// CommentsService reads and writes comments under posts.
type CommentsService struct {
	c *Client
}

// CommentDraft is the payload for creating or updating a comment. A
// non-empty ParentID creates a reply to that comment.
type CommentDraft struct {
	Content  string `json:"content"`
	ParentID string `json:"parent_id,omitempty"`
}

// List returns a page of comments on a post, oldest first, replies
// directly after their parent.
func (s *CommentsService) List(ctx context.Context, postID string, opts ListOptions) (Page[Comment], error) {
	var page Page[Comment]
	path := "/api/posts/" + url.PathEscape(postID) + "/comments"
	if err := s.c.get(ctx, "comments", path, listQuery(opts), &page); err != nil {
		return Page[Comment]{}, fmt.Errorf("failed to list comments on post %s: %w", postID, err)
	}
	return page, nil
}

// Create adds a comment (or, with ParentID set, a reply) to the post.
func (s *CommentsService) Create(ctx context.Context, postID string, draft CommentDraft) (Comment, error) {
	r := request{
		resource: "comments",
		method:   http.MethodPost,
		path:     "/api/posts/" + url.PathEscape(postID) + "/comments",
		body:     draft,
	}

	var comment Comment
	if err := s.c.do(ctx, r, &comment); err != nil {
		return Comment{}, fmt.Errorf("failed to create comment: %w", err)
	}

	s.c.invalidateComments(postID)
	return comment, nil
}

// Update replaces the content of the caller's own comment.
func (s *CommentsService) Update(ctx context.Context, id string, content string) (Comment, error) {
	r := request{
		resource: "comments",
		method:   http.MethodPut,
		path:     "/api/comments/" + url.PathEscape(id),
		body:     CommentDraft{Content: content},
	}

	var comment Comment
	if err := s.c.do(ctx, r, &comment); err != nil {
		return Comment{}, fmt.Errorf("failed to update comment %s: %w", id, err)
	}

	s.c.invalidateComments(comment.PostID)
	return comment, nil
}

// Delete removes the caller's own comment.
func (s *CommentsService) Delete(ctx context.Context, id string) error {
	r := request{
		resource: "comments",
		method:   http.MethodDelete,
		path:     "/api/comments/" + url.PathEscape(id),
	}

	if err := s.c.do(ctx, r, nil); err != nil {
		return fmt.Errorf("failed to delete comment %s: %w", id, err)
	}

	// Post ID is unknown here; drop every comment listing.
	s.c.invalidate(nil, []string{"/api/posts/"})
	return nil
}

// invalidateComments drops the comment listing and the post itself (its
// comment count changed).
func (c *Client) invalidateComments(postID string) {
	if postID == "" {
		c.invalidate(nil, []string{"/api/posts/"})
		return
	}
	c.invalidate(
		[]string{"/api/posts/" + url.PathEscape(postID)},
		[]string{"/api/posts/" + url.PathEscape(postID) + "/comments"},
	)
}
