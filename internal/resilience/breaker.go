package resilience

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultCooldown is how long an open breaker waits before half-opening.
const DefaultCooldown = 30 * time.Second

// Breaker is a minimal failure-count circuit breaker. The document index
// wraps embedding calls with it so a dead embedding service does not get
// probed on every query: after FailureThreshold consecutive failures the
// breaker opens and Allow returns false until Cooldown elapses.
type Breaker struct {
	mu               sync.Mutex
	name             string
	failureThreshold int
	cooldown         time.Duration
	consecutiveFails int
	openedAt         time.Time
	open             bool
}

// NewBreaker creates a Breaker. failureThreshold must be >= 1; a cooldown
// of 0 means the breaker never half-opens again once tripped.
func NewBreaker(name string, failureThreshold int, cooldown time.Duration) *Breaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &Breaker{
		name:             name,
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
	}
}

// Allow reports whether a call may proceed. An open breaker half-opens
// (permits one probe) after the cooldown has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	if b.cooldown > 0 && time.Since(b.openedAt) >= b.cooldown {
		// Half-open: permit a probe; RecordSuccess closes, RecordFailure
		// re-opens with a fresh cooldown window.
		return true
	}
	return false
}

// RecordSuccess closes the breaker and resets the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open {
		zap.L().Info("circuit closed", zap.String("breaker", b.name))
	}
	b.open = false
	b.consecutiveFails = 0
}

// RecordFailure counts a failure and opens the breaker once the threshold
// is reached.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFails++
	if b.consecutiveFails >= b.failureThreshold && !b.open {
		b.open = true
		b.openedAt = time.Now()
		zap.L().Warn("circuit opened",
			zap.String("breaker", b.name),
			zap.Int("consecutive_failures", b.consecutiveFails),
		)
	} else if b.open {
		// Failed probe while half-open: restart the cooldown window.
		b.openedAt = time.Now()
	}
}

// Open reports whether the breaker is currently open.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}
