package model

import "time"

// CooldownWindow is the snapshot returned by the cooldown gate when a new
// attempt on a course is requested. The gate reports state at one instant;
// callers recompute elapsed time against their own clock.
type CooldownWindow struct {
	Active          bool      `json:"active"`
	RemainingMs     int64     `json:"remaining_ms"`
	NextAvailableAt time.Time `json:"next_available_at"`
}
