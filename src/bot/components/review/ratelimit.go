package review

import (
	"sync"
	"time"
)

// SubmitLimiter throttles how often a requester can open a new submission.
type SubmitLimiter struct {
	users map[string]time.Time
	mu    sync.Mutex
	limit time.Duration
}

func NewSubmitLimiter(limit time.Duration) *SubmitLimiter {
	return &SubmitLimiter{
		users: make(map[string]time.Time),
		limit: limit,
	}
}

func (rl *SubmitLimiter) CanUse(userID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lastUse, exists := rl.users[userID]
	if !exists || time.Since(lastUse) >= rl.limit {
		rl.users[userID] = time.Now()
		return true
	}

	return false
}

func (rl *SubmitLimiter) TimeUntilNext(userID string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lastUse, exists := rl.users[userID]
	if !exists {
		return 0
	}

	elapsed := time.Since(lastUse)
	if elapsed >= rl.limit {
		return 0
	}

	return rl.limit - elapsed
}
