package community_test

import (
	"context"
	"testing"

	"github.com/keepselvesreal/xai-community-go/community"
	"github.com/keepselvesreal/xai-community-go/community/communitytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPosts_CRUDRoundTrip(t *testing.T) {
	srv := communitytest.NewServer()
	defer srv.Close()

	client := newTestClient(t, srv)
	loginManager(t, srv, client)
	ctx := context.Background()

	created, err := client.Posts.Create(ctx, "free", community.PostDraft{
		Title:   "Night noise on the 12th floor",
		Content: "Please keep it down after 10pm.",
	})
	require.NoError(t, err)
	assert.Equal(t, "free", created.BoardSlug)
	assert.Equal(t, "tower-a-204", created.AuthorName)

	got, err := client.Posts.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, got.Title)

	updated, err := client.Posts.Update(ctx, created.ID, community.PostDraft{
		Title:   "Night noise (resolved)",
		Content: "Talked it out, thanks everyone.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Night noise (resolved)", updated.Title)

	require.NoError(t, client.Posts.Delete(ctx, created.ID))

	_, err = client.Posts.Get(ctx, created.ID)
	assert.True(t, community.IsNotFound(err))
}

func TestPosts_ListNewestFirstAndSearch(t *testing.T) {
	srv := communitytest.NewServer()
	defer srv.Close()

	client := newTestClient(t, srv)
	loginManager(t, srv, client)
	ctx := context.Background()

	_, err := client.Posts.Create(ctx, "free", community.PostDraft{Title: "first", Content: "a"})
	require.NoError(t, err)
	_, err = client.Posts.Create(ctx, "free", community.PostDraft{Title: "second", Content: "b"})
	require.NoError(t, err)
	_, err = client.Posts.Create(ctx, "market", community.PostDraft{Title: "selling bike", Content: "barely used"})
	require.NoError(t, err)

	page, err := client.Posts.List(ctx, "free", community.ListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "second", page.Items[0].Title)
	assert.Equal(t, "first", page.Items[1].Title)

	found, err := client.Posts.Search(ctx, community.ListOptions{Query: "bike"})
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "market", found.Items[0].BoardSlug)
}

func TestPosts_Pagination(t *testing.T) {
	srv := communitytest.NewServer()
	defer srv.Close()

	client := newTestClient(t, srv)
	loginManager(t, srv, client)
	ctx := context.Background()

	for i := range 5 {
		_, err := client.Posts.Create(ctx, "free", community.PostDraft{Title: "post", Content: string(rune('a' + i))})
		require.NoError(t, err)
	}

	page, err := client.Posts.List(ctx, "free", community.ListOptions{Page: 2, Size: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.Page)
}

func TestComments_CreateReplyAndOrdering(t *testing.T) {
	srv := communitytest.NewServer()
	defer srv.Close()

	client := newTestClient(t, srv)
	loginManager(t, srv, client)
	ctx := context.Background()

	post, err := client.Posts.Create(ctx, "free", community.PostDraft{Title: "q", Content: "anyone?"})
	require.NoError(t, err)

	first, err := client.Comments.Create(ctx, post.ID, community.CommentDraft{Content: "me"})
	require.NoError(t, err)

	reply, err := client.Comments.Create(ctx, post.ID, community.CommentDraft{Content: "same", ParentID: first.ID})
	require.NoError(t, err)
	assert.Equal(t, first.ID, reply.ParentID)

	page, err := client.Comments.List(ctx, post.ID, community.ListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, first.ID, page.Items[0].ID, "comments list oldest first")

	// Comment count reflects on the post.
	got, err := client.Posts.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CommentCount)
}

func TestComments_ReplyToForeignCommentRejected(t *testing.T) {
	srv := communitytest.NewServer()
	defer srv.Close()

	client := newTestClient(t, srv)
	loginManager(t, srv, client)
	ctx := context.Background()

	post, err := client.Posts.Create(ctx, "free", community.PostDraft{Title: "a", Content: "b"})
	require.NoError(t, err)

	_, err = client.Comments.Create(ctx, post.ID, community.CommentDraft{Content: "x", ParentID: "nonexistent"})
	require.Error(t, err)
	assert.True(t, community.HasType(err, community.TypeValidation))
}

func TestReactions_ToggleSemantics(t *testing.T) {
	srv := communitytest.NewServer()
	defer srv.Close()

	client := newTestClient(t, srv)
	loginManager(t, srv, client)
	ctx := context.Background()

	post, err := client.Posts.Create(ctx, "free", community.PostDraft{Title: "a", Content: "b"})
	require.NoError(t, err)

	state, err := client.Reactions.TogglePost(ctx, post.ID, community.ReactionLike)
	require.NoError(t, err)
	assert.True(t, state.Active)
	assert.Equal(t, 1, state.Likes)

	// Same kind again removes it.
	state, err = client.Reactions.TogglePost(ctx, post.ID, community.ReactionLike)
	require.NoError(t, err)
	assert.False(t, state.Active)
	assert.Equal(t, 0, state.Likes)

	// Like then dislike: dislike displaces the like.
	_, err = client.Reactions.TogglePost(ctx, post.ID, community.ReactionLike)
	require.NoError(t, err)
	state, err = client.Reactions.TogglePost(ctx, post.ID, community.ReactionDislike)
	require.NoError(t, err)
	assert.Equal(t, 0, state.Likes)
	assert.Equal(t, 1, state.Dislikes)

	// Bookmarks are independent.
	state, err = client.Reactions.TogglePost(ctx, post.ID, community.ReactionBookmark)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Bookmarks)
	assert.Equal(t, 1, state.Dislikes)
}

func TestReactions_OnComment(t *testing.T) {
	srv := communitytest.NewServer()
	defer srv.Close()

	client := newTestClient(t, srv)
	loginManager(t, srv, client)
	ctx := context.Background()

	post, err := client.Posts.Create(ctx, "free", community.PostDraft{Title: "a", Content: "b"})
	require.NoError(t, err)
	comment, err := client.Comments.Create(ctx, post.ID, community.CommentDraft{Content: "c"})
	require.NoError(t, err)

	state, err := client.Reactions.ToggleComment(ctx, comment.ID, community.ReactionLike)
	require.NoError(t, err)
	assert.True(t, state.Active)
	assert.Equal(t, 1, state.Likes)
}

func TestServices_ListGetAndInquire(t *testing.T) {
	srv := communitytest.NewServer()
	defer srv.Close()

	client := newTestClient(t, srv)
	loginManager(t, srv, client)
	ctx := context.Background()

	page, err := client.Services.List(ctx, community.ListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	cleaning, err := client.Services.List(ctx, community.ListOptions{Query: "cleaning"})
	require.NoError(t, err)
	require.Len(t, cleaning.Items, 1)

	inquiry, err := client.Services.Inquire(ctx, cleaning.Items[0].ID, community.InquiryDraft{
		Content: "Do you do move-out cleaning for a 84m2 unit?",
		Contact: "010-1111-2222",
	})
	require.NoError(t, err)
	assert.Equal(t, cleaning.Items[0].ID, inquiry.ServiceID)

	got, err := client.Services.Get(ctx, cleaning.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.InquiryCount)
}

func TestTips_ListAndGet(t *testing.T) {
	srv := communitytest.NewServer()
	defer srv.Close()

	client := newTestClient(t, srv)
	ctx := context.Background()

	page, err := client.Tips.List(ctx, community.ListOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, page.Items)

	tip, err := client.Tips.Get(ctx, page.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, page.Items[0].Title, tip.Title)
}

func TestUsers_UpdateProfile(t *testing.T) {
	srv := communitytest.NewServer()
	defer srv.Close()

	client := newTestClient(t, srv)
	loginManager(t, srv, client)
	ctx := context.Background()

	nickname := "tower-b-101"
	apartment := "B-101"
	user, err := client.Users.UpdateMe(ctx, community.UserUpdate{Nickname: &nickname, Apartment: &apartment})
	require.NoError(t, err)
	assert.Equal(t, "tower-b-101", user.Nickname)
	assert.Equal(t, "B-101", user.Apartment)

	// Partial update leaves the other field alone.
	apartment2 := "B-202"
	user, err = client.Users.UpdateMe(ctx, community.UserUpdate{Apartment: &apartment2})
	require.NoError(t, err)
	assert.Equal(t, "tower-b-101", user.Nickname)
	assert.Equal(t, "B-202", user.Apartment)
}

func TestNotifications_CommentNotifiesAuthorAndMarkRead(t *testing.T) {
	srv := communitytest.NewServer()
	defer srv.Close()

	author := newTestClient(t, srv)
	loginManager(t, srv, author)
	ctx := context.Background()

	post, err := author.Posts.Create(ctx, "free", community.PostDraft{Title: "a", Content: "b"})
	require.NoError(t, err)

	// A second resident comments on the author's post.
	srv.AddUser("neighbor@example.com", "secret", "tower-a-205")
	neighbor := newTestClient(t, srv)
	result, err := neighbor.Auth.Login(ctx, "neighbor@example.com", "secret")
	require.NoError(t, err)
	sessionManagerFor(t, neighbor, result)

	_, err = neighbor.Comments.Create(ctx, post.ID, community.CommentDraft{Content: "hello"})
	require.NoError(t, err)

	page, err := author.Notifications.List(ctx, true, community.ListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "comment", page.Items[0].Type)
	assert.Equal(t, post.ID, page.Items[0].PostID)

	require.NoError(t, author.Notifications.MarkRead(ctx, page.Items[0].ID))

	page, err = author.Notifications.List(ctx, true, community.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestForbidden_EditingForeignPost(t *testing.T) {
	srv := communitytest.NewServer()
	defer srv.Close()

	author := newTestClient(t, srv)
	loginManager(t, srv, author)
	ctx := context.Background()

	post, err := author.Posts.Create(ctx, "free", community.PostDraft{Title: "mine", Content: "x"})
	require.NoError(t, err)

	srv.AddUser("neighbor@example.com", "secret", "tower-a-205")
	neighbor := newTestClient(t, srv)
	result, err := neighbor.Auth.Login(ctx, "neighbor@example.com", "secret")
	require.NoError(t, err)
	sessionManagerFor(t, neighbor, result)

	_, err = neighbor.Posts.Update(ctx, post.ID, community.PostDraft{Title: "hijacked", Content: "y"})
	require.Error(t, err)
	assert.True(t, community.HasType(err, community.TypeForbidden))
}
