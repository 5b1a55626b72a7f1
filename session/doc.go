// Package session manages the authenticated session of an API user.
//
// The Manager owns the access/refresh token pair and keeps it valid in the
// background: it refreshes the access token shortly before expiry, caps the
// session by total age and by refresh count, and tears the session down with
// a reason code when it can no longer be kept alive. Stores persist the
// session across process restarts (in memory, on disk, or in Redis).
package session
