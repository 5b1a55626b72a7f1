package communitytest

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func (s *Server) handleListBoards(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]map[string]any, 0, len(s.boards))
	for _, b := range s.boards {
		out = append(out, s.boardJSON(b))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetBoard(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.boards {
		if b.Slug == c.Param("slug") {
			return c.JSON(http.StatusOK, s.boardJSON(b))
		}
	}
	return s.errorJSON(c, http.StatusNotFound, "board not found")
}

func (s *Server) boardJSON(b boardRecord) map[string]any {
	count := 0
	for _, p := range s.posts {
		if p.BoardSlug == b.Slug {
			count++
		}
	}
	return map[string]any{
		"slug":        b.Slug,
		"name":        b.Name,
		"description": b.Description,
		"post_count":  count,
	}
}

func (s *Server) handleListPosts(c echo.Context) error {
	slug := c.Param("slug")
	page, size := parsePage(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.boardExists(slug) {
		return s.errorJSON(c, http.StatusNotFound, "board not found")
	}

	var matched []*postRecord
	for _, p := range s.posts {
		if p.BoardSlug == slug {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq > matched[j].seq })

	out := make([]map[string]any, 0, len(matched))
	for _, p := range matched {
		out = append(out, s.postJSON(p))
	}
	return c.JSON(http.StatusOK, paginate(out, page, size))
}

func (s *Server) handleSearchPosts(c echo.Context) error {
	q := strings.ToLower(c.QueryParam("q"))
	page, size := parsePage(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*postRecord
	for _, p := range s.posts {
		if q == "" || strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(p.Content), q) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq > matched[j].seq })

	out := make([]map[string]any, 0, len(matched))
	for _, p := range matched {
		out = append(out, s.postJSON(p))
	}
	return c.JSON(http.StatusOK, paginate(out, page, size))
}

func (s *Server) handleGetPost(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[c.Param("id")]
	if !ok {
		return s.errorJSON(c, http.StatusNotFound, "post not found")
	}
	return c.JSON(http.StatusOK, s.postJSON(p))
}

func (s *Server) handleCreatePost(c echo.Context) error {
	user := c.Get("user").(*userRecord)
	slug := c.Param("slug")

	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil || req.Title == "" || req.Content == "" {
		return s.errorJSON(c, http.StatusBadRequest, "title and content are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.boardExists(slug) {
		return s.errorJSON(c, http.StatusNotFound, "board not found")
	}

	s.seq++
	p := &postRecord{
		ID:         uuid.NewString(),
		BoardSlug:  slug,
		Title:      req.Title,
		Content:    req.Content,
		AuthorID:   user.ID,
		AuthorName: user.Nickname,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		seq:        s.seq,
	}
	s.posts[p.ID] = p
	return c.JSON(http.StatusCreated, s.postJSON(p))
}

func (s *Server) handleUpdatePost(c echo.Context) error {
	user := c.Get("user").(*userRecord)

	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil || req.Title == "" || req.Content == "" {
		return s.errorJSON(c, http.StatusBadRequest, "title and content are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[c.Param("id")]
	if !ok {
		return s.errorJSON(c, http.StatusNotFound, "post not found")
	}
	if p.AuthorID != user.ID {
		return s.errorJSON(c, http.StatusForbidden, "not your post")
	}

	p.Title = req.Title
	p.Content = req.Content
	p.UpdatedAt = time.Now()
	return c.JSON(http.StatusOK, s.postJSON(p))
}

func (s *Server) handleDeletePost(c echo.Context) error {
	user := c.Get("user").(*userRecord)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[c.Param("id")]
	if !ok {
		return s.errorJSON(c, http.StatusNotFound, "post not found")
	}
	if p.AuthorID != user.ID {
		return s.errorJSON(c, http.StatusForbidden, "not your post")
	}

	delete(s.posts, p.ID)
	for id, cm := range s.comments {
		if cm.PostID == p.ID {
			delete(s.comments, id)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListComments(c echo.Context) error {
	postID := c.Param("id")
	page, size := parsePage(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[postID]; !ok {
		return s.errorJSON(c, http.StatusNotFound, "post not found")
	}

	var matched []*commentRecord
	for _, cm := range s.comments {
		if cm.PostID == postID {
			matched = append(matched, cm)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	out := make([]map[string]any, 0, len(matched))
	for _, cm := range matched {
		out = append(out, s.commentJSON(cm))
	}
	return c.JSON(http.StatusOK, paginate(out, page, size))
}

func (s *Server) handleCreateComment(c echo.Context) error {
	user := c.Get("user").(*userRecord)
	postID := c.Param("id")

	var req struct {
		Content  string `json:"content"`
		ParentID string `json:"parent_id"`
	}
	if err := c.Bind(&req); err != nil || req.Content == "" {
		return s.errorJSON(c, http.StatusBadRequest, "content is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return s.errorJSON(c, http.StatusNotFound, "post not found")
	}
	if req.ParentID != "" {
		parent, ok := s.comments[req.ParentID]
		if !ok || parent.PostID != postID {
			return s.errorJSON(c, http.StatusBadRequest, "parent comment not on this post")
		}
	}

	s.seq++
	cm := &commentRecord{
		ID:         uuid.NewString(),
		PostID:     postID,
		ParentID:   req.ParentID,
		Content:    req.Content,
		AuthorID:   user.ID,
		AuthorName: user.Nickname,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		seq:        s.seq,
	}
	s.comments[cm.ID] = cm

	if p.AuthorID != user.ID {
		s.addNotification(p.AuthorID, "comment", user.Nickname+" commented on your post", p.ID)
	}
	return c.JSON(http.StatusCreated, s.commentJSON(cm))
}

func (s *Server) handleUpdateComment(c echo.Context) error {
	user := c.Get("user").(*userRecord)

	var req struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil || req.Content == "" {
		return s.errorJSON(c, http.StatusBadRequest, "content is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cm, ok := s.comments[c.Param("id")]
	if !ok {
		return s.errorJSON(c, http.StatusNotFound, "comment not found")
	}
	if cm.AuthorID != user.ID {
		return s.errorJSON(c, http.StatusForbidden, "not your comment")
	}

	cm.Content = req.Content
	cm.UpdatedAt = time.Now()
	return c.JSON(http.StatusOK, s.commentJSON(cm))
}

func (s *Server) handleDeleteComment(c echo.Context) error {
	user := c.Get("user").(*userRecord)

	s.mu.Lock()
	defer s.mu.Unlock()

	cm, ok := s.comments[c.Param("id")]
	if !ok {
		return s.errorJSON(c, http.StatusNotFound, "comment not found")
	}
	if cm.AuthorID != user.ID {
		return s.errorJSON(c, http.StatusForbidden, "not your comment")
	}

	delete(s.comments, cm.ID)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleReactPost(c echo.Context) error {
	return s.handleReact(c, "post", c.Param("id"))
}

func (s *Server) handleReactComment(c echo.Context) error {
	return s.handleReact(c, "comment", c.Param("id"))
}

func (s *Server) handleReact(c echo.Context, target, id string) error {
	user := c.Get("user").(*userRecord)

	var req struct {
		Kind string `json:"kind"`
	}
	if err := c.Bind(&req); err != nil {
		return s.errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	switch req.Kind {
	case "like", "dislike", "bookmark":
	default:
		return s.errorJSON(c, http.StatusBadRequest, "kind must be like, dislike, or bookmark")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if target == "post" {
		if _, ok := s.posts[id]; !ok {
			return s.errorJSON(c, http.StatusNotFound, "post not found")
		}
	} else {
		if _, ok := s.comments[id]; !ok {
			return s.errorJSON(c, http.StatusNotFound, "comment not found")
		}
	}

	key := target + ":" + id
	if s.reactions[key] == nil {
		s.reactions[key] = make(map[string]bool)
	}
	slot := user.ID + ":" + req.Kind
	active := !s.reactions[key][slot]
	s.reactions[key][slot] = active

	// Like and dislike displace each other.
	if active && req.Kind == "like" {
		s.reactions[key][user.ID+":dislike"] = false
	}
	if active && req.Kind == "dislike" {
		s.reactions[key][user.ID+":like"] = false
	}

	likes, dislikes, bookmarks := s.reactionCounts(key)
	return c.JSON(http.StatusOK, map[string]any{
		"kind":      req.Kind,
		"active":    active,
		"likes":     likes,
		"dislikes":  dislikes,
		"bookmarks": bookmarks,
	})
}

func (s *Server) handleListServices(c echo.Context) error {
	q := strings.ToLower(c.QueryParam("q"))
	page, size := parsePage(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, svc := range s.services {
		if q == "" || strings.Contains(strings.ToLower(svc.Name), q) || strings.Contains(strings.ToLower(svc.Category), q) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, serviceJSON(s.services[id]))
	}
	return c.JSON(http.StatusOK, paginate(out, page, size))
}

func (s *Server) handleGetService(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	svc, ok := s.services[c.Param("id")]
	if !ok {
		return s.errorJSON(c, http.StatusNotFound, "service not found")
	}
	return c.JSON(http.StatusOK, serviceJSON(svc))
}

func (s *Server) handleInquiry(c echo.Context) error {
	var req struct {
		Content string `json:"content"`
		Contact string `json:"contact"`
	}
	if err := c.Bind(&req); err != nil || req.Content == "" {
		return s.errorJSON(c, http.StatusBadRequest, "content is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	svc, ok := s.services[c.Param("id")]
	if !ok {
		return s.errorJSON(c, http.StatusNotFound, "service not found")
	}
	svc.InquiryCount++

	return c.JSON(http.StatusCreated, map[string]any{
		"id":         uuid.NewString(),
		"service_id": svc.ID,
		"content":    req.Content,
		"contact":    req.Contact,
		"created_at": time.Now(),
	})
}

func (s *Server) handleListTips(c echo.Context) error {
	q := strings.ToLower(c.QueryParam("q"))
	page, size := parsePage(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]map[string]any, 0, len(s.tips))
	for _, tip := range s.tips {
		if q == "" || strings.Contains(strings.ToLower(tip.Category), q) {
			out = append(out, tipJSON(tip))
		}
	}
	return c.JSON(http.StatusOK, paginate(out, page, size))
}

func (s *Server) handleGetTip(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tip := range s.tips {
		if tip.ID == c.Param("id") {
			return c.JSON(http.StatusOK, tipJSON(tip))
		}
	}
	return s.errorJSON(c, http.StatusNotFound, "tip not found")
}

func (s *Server) handleMe(c echo.Context) error {
	user := c.Get("user").(*userRecord)
	return c.JSON(http.StatusOK, userJSON(user))
}

func (s *Server) handleUpdateMe(c echo.Context) error {
	user := c.Get("user").(*userRecord)

	var req struct {
		Nickname  *string `json:"nickname"`
		Apartment *string `json:"apartment"`
	}
	if err := c.Bind(&req); err != nil {
		return s.errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Nickname != nil {
		if *req.Nickname == "" {
			return s.errorJSON(c, http.StatusBadRequest, "nickname cannot be empty")
		}
		user.Nickname = *req.Nickname
	}
	if req.Apartment != nil {
		user.Apartment = *req.Apartment
	}
	return c.JSON(http.StatusOK, userJSON(user))
}

func (s *Server) handleListNotifications(c echo.Context) error {
	user := c.Get("user").(*userRecord)
	unreadOnly := c.QueryParam("unread") == "true"
	page, size := parsePage(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []map[string]any
	list := s.notifications[user.ID]
	for i := len(list) - 1; i >= 0; i-- {
		n := list[i]
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, notificationJSON(n))
	}
	if out == nil {
		out = []map[string]any{}
	}
	return c.JSON(http.StatusOK, paginate(out, page, size))
}

func (s *Server) handleMarkRead(c echo.Context) error {
	user := c.Get("user").(*userRecord)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications[user.ID] {
		if n.ID == c.Param("id") {
			n.Read = true
			return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
		}
	}
	return s.errorJSON(c, http.StatusNotFound, "notification not found")
}

func (s *Server) handleMarkAllRead(c echo.Context) error {
	user := c.Get("user").(*userRecord)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications[user.ID] {
		n.Read = true
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) addNotification(userID, kind, message, postID string) {
	s.notifications[userID] = append(s.notifications[userID], &notificationRecord{
		ID:        uuid.NewString(),
		Type:      kind,
		Message:   message,
		PostID:    postID,
		CreatedAt: time.Now(),
	})
}

func (s *Server) boardExists(slug string) bool {
	for _, b := range s.boards {
		if b.Slug == slug {
			return true
		}
	}
	return false
}

func (s *Server) reactionCounts(key string) (likes, dislikes, bookmarks int) {
	for slot, active := range s.reactions[key] {
		if !active {
			continue
		}
		switch {
		case strings.HasSuffix(slot, ":like"):
			likes++
		case strings.HasSuffix(slot, ":dislike"):
			dislikes++
		case strings.HasSuffix(slot, ":bookmark"):
			bookmarks++
		}
	}
	return likes, dislikes, bookmarks
}

func (s *Server) postJSON(p *postRecord) map[string]any {
	likes, dislikes, bookmarks := s.reactionCounts("post:" + p.ID)
	comments := 0
	for _, cm := range s.comments {
		if cm.PostID == p.ID {
			comments++
		}
	}
	return map[string]any{
		"id":            p.ID,
		"board_slug":    p.BoardSlug,
		"title":         p.Title,
		"content":       p.Content,
		"author_id":     p.AuthorID,
		"author_name":   p.AuthorName,
		"likes":         likes,
		"dislikes":      dislikes,
		"bookmarks":     bookmarks,
		"comment_count": comments,
		"created_at":    p.CreatedAt,
		"updated_at":    p.UpdatedAt,
	}
}

func (s *Server) commentJSON(cm *commentRecord) map[string]any {
	likes, dislikes, _ := s.reactionCounts("comment:" + cm.ID)
	return map[string]any{
		"id":          cm.ID,
		"post_id":     cm.PostID,
		"parent_id":   cm.ParentID,
		"content":     cm.Content,
		"author_id":   cm.AuthorID,
		"author_name": cm.AuthorName,
		"likes":       likes,
		"dislikes":    dislikes,
		"created_at":  cm.CreatedAt,
		"updated_at":  cm.UpdatedAt,
	}
}

func serviceJSON(svc *serviceRecord) map[string]any {
	return map[string]any{
		"id":            svc.ID,
		"name":          svc.Name,
		"category":      svc.Category,
		"description":   svc.Description,
		"phone":         svc.Phone,
		"hours":         svc.Hours,
		"inquiry_count": svc.InquiryCount,
	}
}

func tipJSON(tip tipRecord) map[string]any {
	return map[string]any{
		"id":         tip.ID,
		"title":      tip.Title,
		"content":    tip.Content,
		"category":   tip.Category,
		"created_at": tip.CreatedAt,
	}
}

func notificationJSON(n *notificationRecord) map[string]any {
	return map[string]any{
		"id":         n.ID,
		"type":       n.Type,
		"message":    n.Message,
		"post_id":    n.PostID,
		"read":       n.Read,
		"created_at": n.CreatedAt,
	}
}
