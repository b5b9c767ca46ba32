// Package ratelimit caps how often a single client may write consent
// decisions. The window is fixed and short; minor racing at the window edge
// is tolerated in exchange for a single round trip.
package ratelimit

import "context"

// Limiter decides whether one more request from key fits in the current
// window. The key is normally a client IP.
type Limiter interface {
	// Allow counts the request and reports whether it is within the cap.
	// The error is only for backend failures; callers decide whether to
	// fail open or closed.
	Allow(ctx context.Context, key string) (bool, error)
}
