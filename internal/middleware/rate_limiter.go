package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"github.com/mroshb/ludus_arena/pkg/errors"
)

// RateLimiter implements a simple in-memory fixed window rate limiter
type RateLimiter struct {
	ownerLimits map[string]*limit
	ipLimits    map[string]*limit
	mu          sync.Mutex

	ownerMaxRequests int
	ipMaxRequests    int
	window           time.Duration
	clock            clockwork.Clock

	stop     chan struct{}
	stopOnce sync.Once
}

type limit struct {
	requests  int
	resetTime time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(ownerMaxRequests, ipMaxRequests int, window time.Duration, clock clockwork.Clock) *RateLimiter {
	rl := &RateLimiter{
		ownerLimits:      make(map[string]*limit),
		ipLimits:         make(map[string]*limit),
		ownerMaxRequests: ownerMaxRequests,
		ipMaxRequests:    ipMaxRequests,
		window:           window,
		clock:            clock,
		stop:             make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// CheckOwnerLimit checks if owner has exceeded rate limit
func (rl *RateLimiter) CheckOwnerLimit(ownerID string) bool {
	return rl.check(rl.ownerLimits, ownerID, rl.ownerMaxRequests)
}

// CheckIPLimit checks if IP has exceeded rate limit
func (rl *RateLimiter) CheckIPLimit(ip string) bool {
	return rl.check(rl.ipLimits, ip, rl.ipMaxRequests)
}

func (rl *RateLimiter) check(limits map[string]*limit, key string, maxRequests int) bool {
	if maxRequests <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()

	l, exists := limits[key]
	if !exists || now.After(l.resetTime) {
		limits[key] = &limit{
			requests:  1,
			resetTime: now.Add(rl.window),
		}
		return true
	}

	if l.requests >= maxRequests {
		return false
	}

	l.requests++
	return true
}

// GetOwnerRemaining returns remaining requests for owner
func (rl *RateLimiter) GetOwnerRemaining(ownerID string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, exists := rl.ownerLimits[ownerID]
	if !exists || rl.clock.Now().After(l.resetTime) {
		return rl.ownerMaxRequests
	}

	remaining := rl.ownerMaxRequests - l.requests
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Handler rejects requests over the per-owner limit, or the per-IP limit
// for requests that are not authenticated yet.
func (rl *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ownerID := OwnerID(c); ownerID != "" {
			if !rl.CheckOwnerLimit(ownerID) {
				return errors.New(errors.ErrCodeRateLimitExceeded, "too many requests")
			}
			return c.Next()
		}

		if !rl.CheckIPLimit(c.IP()) {
			return errors.New(errors.ErrCodeRateLimitExceeded, "too many requests")
		}
		return c.Next()
	}
}

// cleanup removes expired entries
func (rl *RateLimiter) cleanup() {
	ticker := rl.clock.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.Chan():
		}

		rl.mu.Lock()
		now := rl.clock.Now()
		for key, l := range rl.ownerLimits {
			if now.After(l.resetTime) {
				delete(rl.ownerLimits, key)
			}
		}
		for key, l := range rl.ipLimits {
			if now.After(l.resetTime) {
				delete(rl.ipLimits, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Reset clears all rate limits (useful for testing)
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.ownerLimits = make(map[string]*limit)
	rl.ipLimits = make(map[string]*limit)
}
