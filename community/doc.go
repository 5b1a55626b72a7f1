// Package community is the Go client for the Xai-Community REST API.
//
// The Client speaks JSON over HTTP with bearer-token auth and exposes the
// API's surfaces as resource services (Boards, Posts, Comments, Reactions,
// Services, Tips, Users, Notifications). Requests carry an X-Request-ID,
// GET responses are cached briefly, transient failures are retried with
// backoff, and the transport is guarded by a circuit breaker. A request
// rejected with 401 is retried exactly once after a token refresh through
// the configured TokenSource.
package community
