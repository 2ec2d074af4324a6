package plugin

import "time"

// RateLimiter limits how often a plugin child may be respawned.
//
// At most Burst respawns are allowed in a window of Interval, starting at
// the first respawn of the window.
type RateLimiter struct {
	Interval time.Duration
	Burst    int

	start time.Time
	count int
}

// Allow records a respawn attempt at now, and reports whether it may happen immediately.
func (r *RateLimiter) Allow(now time.Time) bool {
	if r.start.IsZero() || now.Sub(r.start) > r.Interval {
		r.start = now
		r.count = 0
	}
	if r.count >= r.Burst {
		return false
	}
	r.count++
	return true
}

// Count returns the number of respawns in the current window.
func (r *RateLimiter) Count() int {
	return r.count
}

// Reset forgets all recorded respawns.
func (r *RateLimiter) Reset() {
	r.start = time.Time{}
	r.count = 0
}
