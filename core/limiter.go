package core

import "sync"

// RoundLimiter enforces a maximum number of tool-call round-trips per run.
// It prevents infinite tool-call cycles when the model repeatedly requests
// tools without converging on an answer.
type RoundLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewRoundLimiter creates a limiter with a maximum number of round-trips.
// If max == 0, unlimited round-trips are allowed.
func NewRoundLimiter(max int) *RoundLimiter {
	return &RoundLimiter{max: max}
}

// Increment counts one round-trip and reports whether the cap is still
// respected. The round that crosses the cap returns false.
func (rl *RoundLimiter) Increment() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.count++
	return rl.max == 0 || rl.count <= rl.max
}

// Count returns the number of round-trips recorded so far.
func (rl *RoundLimiter) Count() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return rl.count
}

// Remaining returns how many round-trips are left, or -1 if unlimited.
func (rl *RoundLimiter) Remaining() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.max == 0 {
		return -1
	}

	return rl.max - rl.count
}
