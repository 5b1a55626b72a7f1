// Package communitytest provides an in-process fake of the Xai-Community
// backend for tests. It implements the slice of the REST contract the
// client consumes: auth with refresh rotation and limits, posts, comments,
// reactions with toggle semantics, board/service/tip fixtures, and
// notifications. Knobs allow revoking tokens mid-test and injecting
// failures to exercise the client's 401-retry, transient-retry, and
// circuit-breaker paths.
package communitytest
