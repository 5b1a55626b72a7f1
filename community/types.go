package community

import "time"

// User is an account on the community site.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Nickname  string    `json:"nickname"`
	Apartment string    `json:"apartment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UserUpdate carries the mutable profile fields. Nil fields are left
// unchanged by the server.
type UserUpdate struct {
	Nickname  *string `json:"nickname,omitempty"`
	Apartment *string `json:"apartment,omitempty"`
}

// Board is a posting area, addressed by its slug (e.g. "free", "notice").
type Board struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PostCount   int    `json:"post_count"`
}

// Post is a board entry.
type Post struct {
	ID           string    `json:"id"`
	BoardSlug    string    `json:"board_slug"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	AuthorID     string    `json:"author_id"`
	AuthorName   string    `json:"author_name"`
	Likes        int       `json:"likes"`
	Dislikes     int       `json:"dislikes"`
	Bookmarks    int       `json:"bookmarks"`
	CommentCount int       `json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PostDraft is the payload for creating or updating a post.
type PostDraft struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Comment belongs to a post. A non-empty ParentID makes it a reply.
type Comment struct {
	ID         string    `json:"id"`
	PostID     string    `json:"post_id"`
	ParentID   string    `json:"parent_id,omitempty"`
	Content    string    `json:"content"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Likes      int       `json:"likes"`
	Dislikes   int       `json:"dislikes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ReactionKind is the action a user takes on a post or comment.
type ReactionKind string

const (
	ReactionLike     ReactionKind = "like"
	ReactionDislike  ReactionKind = "dislike"
	ReactionBookmark ReactionKind = "bookmark"
)

// ReactionState is the server's answer to a reaction toggle: whether the
// caller's reaction is now active and the updated counts.
type ReactionState struct {
	Kind      ReactionKind `json:"kind"`
	Active    bool         `json:"active"`
	Likes     int          `json:"likes"`
	Dislikes  int          `json:"dislikes"`
	Bookmarks int          `json:"bookmarks"`
}

// Service is a residential service listing (cleaning, moving, repairs).
type Service struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Description  string `json:"description,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Hours        string `json:"hours,omitempty"`
	InquiryCount int    `json:"inquiry_count"`
}

// Inquiry is a question sent to a service provider.
type Inquiry struct {
	ID        string    `json:"id"`
	ServiceID string    `json:"service_id"`
	Content   string    `json:"content"`
	Contact   string    `json:"contact,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Tip is an editorial living-tips article.
type Tip struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification tells a user something happened to their content.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	PostID    string    `json:"post_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// ListOptions select a page of a listing. Zero values mean the server
// defaults (first page, default size).
type ListOptions struct {
	Page  int
	Size  int
	Query string // full-text filter where the endpoint supports it
}

// Page is one page of a listing.
type Page[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
}
