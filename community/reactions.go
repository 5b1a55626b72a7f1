package community

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// ReactionsService toggles likes, dislikes, and bookmarks. Reactions
// toggle: reacting with a kind already active removes it, and like and
// dislike displace each other server-side.
type ReactionsService struct {
	c *Client
}

type reactionRequest struct {
	Kind ReactionKind `json:"kind"`
}

// TogglePost flips the caller's reaction of the given kind on a post and
// returns the resulting state.
func (s *ReactionsService) TogglePost(ctx context.Context, postID string, kind ReactionKind) (ReactionState, error) {
	r := request{
		resource: "reactions",
		method:   http.MethodPost,
		path:     "/api/posts/" + url.PathEscape(postID) + "/reactions",
		body:     reactionRequest{Kind: kind},
	}

	var state ReactionState
	if err := s.c.do(ctx, r, &state); err != nil {
		return ReactionState{}, fmt.Errorf("failed to toggle %s on post %s: %w", kind, postID, err)
	}

	s.c.invalidate([]string{"/api/posts/" + url.PathEscape(postID)}, nil)
	return state, nil
}

// ToggleComment flips the caller's reaction of the given kind on a
// comment and returns the resulting state.
func (s *ReactionsService) ToggleComment(ctx context.Context, commentID string, kind ReactionKind) (ReactionState, error) {
	r := request{
		resource: "reactions",
		method:   http.MethodPost,
		path:     "/api/comments/" + url.PathEscape(commentID) + "/reactions",
		body:     reactionRequest{Kind: kind},
	}

	var state ReactionState
	if err := s.c.do(ctx, r, &state); err != nil {
		return ReactionState{}, fmt.Errorf("failed to toggle %s on comment %s: %w", kind, commentID, err)
	}

	// Comment counts render inside the post's comment listing.
	s.c.invalidate(nil, []string{"/api/posts/"})
	return state, nil
}
