package communitytest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Server is a fake Xai-Community backend running on a loopback listener.
// All state lives in memory and is discarded on Close.
type Server struct {
	URL string

	echo *echo.Echo
	ts   *httptest.Server

	mu sync.Mutex

	// Auth state.
	users         map[string]*userRecord // keyed by email
	accessTokens  map[string]*grant      // access token -> issuing grant
	refreshTokens map[string]*grant      // refresh token -> issuing grant

	// Content state.
	boards        []boardRecord
	posts         map[string]*postRecord
	comments      map[string]*commentRecord
	services      map[string]*serviceRecord
	tips          []tipRecord
	notifications map[string][]*notificationRecord // keyed by user ID
	reactions     map[string]map[string]bool       // "post:<id>" or "comment:<id>" -> "<userID>:<kind>" -> active
	seq           int                              // creation order for stable sorting

	// Knobs, set before or between requests.
	AccessTokenTTL time.Duration // expires_in on issued grants
	MaxRefreshes   int           // refresh attempts before rejection; 0 = unlimited

	failRemaining int
	failStatus    int
	delay         time.Duration

	requests map[string]int // "METHOD /route/pattern" -> count
}

type userRecord struct {
	ID        string
	Email     string
	Password  string
	Nickname  string
	Apartment string
	CreatedAt time.Time
}

// grant tracks one issued token pair and its refresh lineage.
type grant struct {
	userID       string
	accessToken  string
	refreshToken string
	refreshCount int
	revoked      bool
}

type boardRecord struct {
	Slug        string
	Name        string
	Description string
}

type postRecord struct {
	ID         string
	BoardSlug  string
	Title      string
	Content    string
	AuthorID   string
	AuthorName string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	seq        int
}

type commentRecord struct {
	ID         string
	PostID     string
	ParentID   string
	Content    string
	AuthorID   string
	AuthorName string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	seq        int
}

type serviceRecord struct {
	ID           string
	Name         string
	Category     string
	Description  string
	Phone        string
	Hours        string
	InquiryCount int
}

type tipRecord struct {
	ID        string
	Title     string
	Content   string
	Category  string
	CreatedAt time.Time
}

type notificationRecord struct {
	ID        string
	Type      string
	Message   string
	PostID    string
	Read      bool
	CreatedAt time.Time
}

// NewServer starts a fake backend with the default fixtures (three
// boards, two services, two tips) and no users. Callers seed users with
// AddUser and must Close the server when done.
func NewServer() *Server {
	s := &Server{
		users:          make(map[string]*userRecord),
		accessTokens:   make(map[string]*grant),
		refreshTokens:  make(map[string]*grant),
		posts:          make(map[string]*postRecord),
		comments:       make(map[string]*commentRecord),
		services:       make(map[string]*serviceRecord),
		notifications:  make(map[string][]*notificationRecord),
		reactions:      make(map[string]map[string]bool),
		requests:       make(map[string]int),
		AccessTokenTTL: time.Hour,
	}
	s.seedFixtures()

	e := echo.New()
	e.HideBanner = true
	e.Use(s.countRequests)
	e.Use(s.injectFaults)
	s.registerRoutes(e)
	s.echo = e

	s.ts = httptest.NewServer(e)
	s.URL = s.ts.URL
	return s
}

// Close shuts the listener down.
func (s *Server) Close() {
	s.ts.Close()
}

func (s *Server) seedFixtures() {
	s.boards = []boardRecord{
		{Slug: "notice", Name: "공지사항", Description: "Management office notices"},
		{Slug: "free", Name: "자유게시판", Description: "Anything goes"},
		{Slug: "market", Name: "나눔장터", Description: "Buy, sell, give away"},
	}
	s.services["svc-1"] = &serviceRecord{
		ID: "svc-1", Name: "Sparkle Cleaning", Category: "cleaning",
		Description: "Move-in and regular cleaning", Phone: "010-1234-5678", Hours: "09:00-18:00",
	}
	s.services["svc-2"] = &serviceRecord{
		ID: "svc-2", Name: "Swift Movers", Category: "moving",
		Description: "Same-complex and long-distance moves", Phone: "010-8765-4321", Hours: "08:00-20:00",
	}
	s.tips = []tipRecord{
		{ID: "tip-1", Title: "Recycling schedule", Content: "Thursdays, by the B2 ramp.", Category: "living", CreatedAt: time.Now().Add(-48 * time.Hour)},
		{ID: "tip-2", Title: "Parking registration", Content: "Register visitor cars at the office.", Category: "living", CreatedAt: time.Now().Add(-24 * time.Hour)},
	}
}

// AddUser registers an account that can log in, returning its ID.
func (s *Server) AddUser(email, password, nickname string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &userRecord{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  password,
		Nickname:  nickname,
		CreatedAt: time.Now(),
	}
	s.users[email] = u
	return u.ID
}

// RevokeAccessToken invalidates an access token so the next request
// carrying it gets 401. The refresh token stays valid, which is exactly
// the shape the client's refresh-and-retry path expects.
func (s *Server) RevokeAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.accessTokens[token]; ok {
		g.revoked = true
	}
}

// RevokeAllRefreshTokens makes every future refresh attempt fail with
// 401, as if the sessions were terminated server-side.
func (s *Server) RevokeAllRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token := range s.refreshTokens {
		delete(s.refreshTokens, token)
	}
}

// FailNext makes the next n requests answer with the given status before
// normal handling resumes.
func (s *Server) FailNext(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRemaining = n
	s.failStatus = status
}

// SetDelay makes every request sleep d before being handled.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Requests returns how many times the route pattern was hit,
// e.g. Requests("GET", "/api/posts/:id").
func (s *Server) Requests(method, pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[method+" "+pattern]
}

func (s *Server) countRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		s.requests[c.Request().Method+" "+c.Path()]++
		s.mu.Unlock()
		return next(c)
	}
}

func (s *Server) injectFaults(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		delay := s.delay
		fail := false
		status := 0
		if s.failRemaining > 0 {
			s.failRemaining--
			fail = true
			status = s.failStatus
		}
		s.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if fail {
			return s.errorJSON(c, status, "injected failure")
		}
		return next(c)
	}
}

func (s *Server) registerRoutes(e *echo.Echo) {
	e.POST("/api/auth/login", s.handleLogin)
	e.POST("/api/auth/refresh", s.handleRefresh)
	e.POST("/api/auth/revoke", s.handleRevoke)

	e.GET("/api/boards", s.handleListBoards)
	e.GET("/api/boards/:slug", s.handleGetBoard)
	e.GET("/api/boards/:slug/posts", s.handleListPosts)

	e.GET("/api/posts/search", s.handleSearchPosts)
	e.GET("/api/posts/:id", s.handleGetPost)
	e.GET("/api/posts/:id/comments", s.handleListComments)

	e.GET("/api/services", s.handleListServices)
	e.GET("/api/services/:id", s.handleGetService)
	e.GET("/api/tips", s.handleListTips)
	e.GET("/api/tips/:id", s.handleGetTip)

	// Everything below requires a live access token.
	authed := e.Group("", s.requireBearer)
	authed.POST("/api/boards/:slug/posts", s.handleCreatePost)
	authed.PUT("/api/posts/:id", s.handleUpdatePost)
	authed.DELETE("/api/posts/:id", s.handleDeletePost)
	authed.POST("/api/posts/:id/comments", s.handleCreateComment)
	authed.PUT("/api/comments/:id", s.handleUpdateComment)
	authed.DELETE("/api/comments/:id", s.handleDeleteComment)
	authed.POST("/api/posts/:id/reactions", s.handleReactPost)
	authed.POST("/api/comments/:id/reactions", s.handleReactComment)
	authed.POST("/api/services/:id/inquiries", s.handleInquiry)
	authed.GET("/api/users/me", s.handleMe)
	authed.PATCH("/api/users/me", s.handleUpdateMe)
	authed.GET("/api/notifications", s.handleListNotifications)
	authed.POST("/api/notifications/:id/read", s.handleMarkRead)
	authed.POST("/api/notifications/read-all", s.handleMarkAllRead)
}

func (s *Server) errorJSON(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{
		"error": message,
		"type":  errorType(status),
	})
}

func errorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "validation"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		return "server"
	}
}

// requireBearer resolves the Authorization header into a user and stores
// it on the context under "user".
func (s *Server) requireBearer(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := s.authenticate(c)
		if err != nil {
			return s.errorJSON(c, http.StatusUnauthorized, err.Error())
		}
		c.Set("user", user)
		return next(c)
	}
}

func (s *Server) authenticate(c echo.Context) (*userRecord, error) {
	const prefix = "Bearer "
	header := c.Request().Header.Get("Authorization")
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return nil, fmt.Errorf("missing bearer token")
	}
	token := header[len(prefix):]

	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.accessTokens[token]
	if !ok || g.revoked {
		return nil, fmt.Errorf("invalid or expired access token")
	}
	for _, u := range s.users {
		if u.ID == g.userID {
			return u, nil
		}
	}
	return nil, fmt.Errorf("unknown user")
}

func (s *Server) issueGrant(userID string, refreshCount int) *grant {
	g := &grant{
		userID:       userID,
		accessToken:  "at-" + uuid.NewString(),
		refreshToken: "rt-" + uuid.NewString(),
		refreshCount: refreshCount,
	}
	s.accessTokens[g.accessToken] = g
	s.refreshTokens[g.refreshToken] = g
	return g
}

func (s *Server) grantJSON(g *grant, user *userRecord) map[string]any {
	resp := map[string]any{
		"access_token":  g.accessToken,
		"refresh_token": g.refreshToken,
		"expires_in":    int64(s.AccessTokenTTL / time.Second),
	}
	if user != nil {
		resp["user"] = userJSON(user)
	}
	return resp
}

func userJSON(u *userRecord) map[string]any {
	return map[string]any{
		"id":         u.ID,
		"email":      u.Email,
		"nickname":   u.Nickname,
		"apartment":  u.Apartment,
		"created_at": u.CreatedAt,
	}
}

func (s *Server) handleLogin(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil || req.Email == "" || req.Password == "" {
		return s.errorJSON(c, http.StatusBadRequest, "email and password are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[req.Email]
	if !ok || u.Password != req.Password {
		return s.errorJSON(c, http.StatusUnauthorized, "invalid credentials")
	}

	g := s.issueGrant(u.ID, 0)
	return c.JSON(http.StatusOK, s.grantJSON(g, u))
}

func (s *Server) handleRefresh(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return s.errorJSON(c, http.StatusBadRequest, "refresh_token is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.refreshTokens[req.RefreshToken]
	if !ok {
		return s.errorJSON(c, http.StatusUnauthorized, "unknown refresh token")
	}
	if s.MaxRefreshes > 0 && old.refreshCount >= s.MaxRefreshes {
		return s.errorJSON(c, http.StatusUnauthorized, "refresh limit reached")
	}

	// Rotation: the old pair dies with the exchange.
	delete(s.refreshTokens, req.RefreshToken)
	delete(s.accessTokens, old.accessToken)

	g := s.issueGrant(old.userID, old.refreshCount+1)
	return c.JSON(http.StatusOK, s.grantJSON(g, nil))
}

func (s *Server) handleRevoke(c echo.Context) error {
	var req struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.Bind(&req); err != nil || req.AccessToken == "" {
		return s.errorJSON(c, http.StatusBadRequest, "access_token is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.accessTokens[req.AccessToken]; ok {
		delete(s.accessTokens, g.accessToken)
		delete(s.refreshTokens, g.refreshToken)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// parsePage reads page/size query parameters with the server defaults.
func parsePage(c echo.Context) (page, size int) {
	page, size = 1, 20
	if v, err := strconv.Atoi(c.QueryParam("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(c.QueryParam("size")); err == nil && v > 0 {
		size = v
	}
	return page, size
}

func paginate[T any](items []T, page, size int) map[string]any {
	total := len(items)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return map[string]any{
		"items": items[start:end],
		"page":  page,
		"size":  size,
		"total": total,
	}
}
