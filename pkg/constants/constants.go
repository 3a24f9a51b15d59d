// Package constants defines the magic numbers shared across the listener
// and connection loop that don't belong to any one package's budget or
// limits struct.
package constants

import "time"

// Connection lifecycle timeouts. The per-connection loop applies
// DefaultIdleTimeout while waiting for a request and DefaultConnTimeout
// while handling it; MaxConnectionIdleTime and CleanupInterval are not
// referenced by any package.
const (
	DefaultIdleTimeout    = 90 * time.Second
	DefaultConnTimeout    = 10 * time.Second
	MaxConnectionIdleTime = 5 * time.Minute
	CleanupInterval       = 30 * time.Second
)

// MaxContentLength is a ceiling on a declared Content-Length value. The
// HTTP reader does not consult it; a declared length is checked only
// against the per-request budget.MaxBodySize, before any bytes are read.
const MaxContentLength = 1024 * 1024 * 1024 * 1024 // 1TB
