package websocket

import (
	"sync"
	"time"
)

// Per-connection budgets for events that never reach the store. Persisted
// events are limited per user in Redis instead.
type RateLimits struct {
	MaxTypingEvents  int
	MaxReactions     int
	MaxCallSignals   int
	MaxSummaryEvents int
}

var DefaultRateLimits = RateLimits{
	MaxTypingEvents:  60,
	MaxReactions:     120,
	MaxCallSignals:   120,
	MaxSummaryEvents: 5,
}

// ClientRateLimiter is a token bucket per event class, refilled every minute.
type ClientRateLimiter struct {
	mu         sync.Mutex
	limits     RateLimits
	tokens     map[string]int
	lastRefill time.Time
	now        func() time.Time
}

func NewClientRateLimiter() *ClientRateLimiter {
	rl := &ClientRateLimiter{limits: DefaultRateLimits, now: time.Now}
	rl.lastRefill = rl.now()
	rl.refillTokens()
	return rl
}

// Allow consumes one token for event. Events without a budget always pass.
func (rl *ClientRateLimiter) Allow(event string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastRefill) >= time.Minute {
		rl.refillTokens()
		rl.lastRefill = now
	}

	class, ok := eventClass(event)
	if !ok {
		return true
	}
	if rl.tokens[class] <= 0 {
		return false
	}
	rl.tokens[class]--
	return true
}

func (rl *ClientRateLimiter) refillTokens() {
	rl.tokens = map[string]int{
		"typing":   rl.limits.MaxTypingEvents,
		"reaction": rl.limits.MaxReactions,
		"call":     rl.limits.MaxCallSignals,
		"summary":  rl.limits.MaxSummaryEvents,
	}
}

func eventClass(event string) (string, bool) {
	switch event {
	case EventTyping:
		return "typing", true
	case EventReactToMessage:
		return "reaction", true
	case EventAnswerCall, EventRejectCall, EventEndCall:
		return "call", true
	case EventGenerateSummary:
		return "summary", true
	}
	return "", false
}
