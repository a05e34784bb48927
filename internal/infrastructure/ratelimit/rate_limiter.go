package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	ActionSendMessage = "send_message"
	ActionCreateChat  = "create_chat"
	ActionTyping      = "typing"
	ActionHTTP        = "http"
)

// Policy is a token bucket: Burst tokens, refilled one per Every.
type Policy struct {
	Burst int
	Every time.Duration
}

var defaultPolicies = map[string]Policy{
	// 10 messages per minute
	ActionSendMessage: {Burst: 10, Every: 6 * time.Second},
	// 5 chat creations per hour
	ActionCreateChat: {Burst: 5, Every: 12 * time.Minute},
	// 30 typing events per minute
	ActionTyping: {Burst: 30, Every: 2 * time.Second},
	ActionHTTP:   {Burst: 60, Every: 100 * time.Millisecond},
}

var defaultPolicy = Policy{Burst: 20, Every: 3 * time.Second}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one bucket per subject and action.
type RateLimiter struct {
	mutex    sync.Mutex
	buckets  map[string]*bucket
	policies map[string]Policy
	idleTTL  time.Duration
}

func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithPolicies(nil)
}

// NewRateLimiterWithPolicies overrides the default policy of the given actions.
func NewRateLimiterWithPolicies(overrides map[string]Policy) *RateLimiter {
	policies := make(map[string]Policy, len(defaultPolicies)+len(overrides))
	for action, p := range defaultPolicies {
		policies[action] = p
	}
	for action, p := range overrides {
		policies[action] = p
	}

	return &RateLimiter{
		buckets:  make(map[string]*bucket),
		policies: policies,
		idleTTL:  time.Hour,
	}
}

func (rl *RateLimiter) policy(action string) Policy {
	if p, ok := rl.policies[action]; ok {
		return p
	}
	return defaultPolicy
}

// Allow consumes a token for subject's action. When none is available it
// reports how long until the next one.
func (rl *RateLimiter) Allow(subject, action string) (bool, time.Duration) {
	key := subject + ":" + action
	now := time.Now()

	rl.mutex.Lock()
	b, exists := rl.buckets[key]
	if !exists {
		p := rl.policy(action)
		b = &bucket{limiter: rate.NewLimiter(rate.Every(p.Every), p.Burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mutex.Unlock()

	reservation := b.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, 0
	}
	if wait := reservation.DelayFrom(now); wait > 0 {
		reservation.CancelAt(now)
		return false, wait
	}
	return true, 0
}

// Tokens returns the tokens currently available for subject's action.
func (rl *RateLimiter) Tokens(subject, action string) float64 {
	rl.mutex.Lock()
	b, exists := rl.buckets[subject+":"+action]
	rl.mutex.Unlock()

	if !exists {
		return float64(rl.policy(action).Burst)
	}
	return b.limiter.Tokens()
}

// Cleanup drops buckets idle for longer than the idle TTL.
func (rl *RateLimiter) Cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.idleTTL {
			delete(rl.buckets, key)
		}
	}
}

func (rl *RateLimiter) StartCleanupRoutine(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup()
			}
		}
	}()
}
