package client

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// circuitBreaker blocks outbound requests for a while after the backend answered HTTP 429.
type circuitBreaker struct {
	mutex     sync.RWMutex
	openUntil time.Time
	delay     time.Duration
	now       func() time.Time
}

func newCircuitBreaker(delay time.Duration) *circuitBreaker {
	return &circuitBreaker{
		delay: delay,
		now:   time.Now,
	}
}

// blocked returns the remaining block time and whether requests are currently blocked.
func (b *circuitBreaker) blocked() (time.Duration, bool) {
	b.mutex.RLock()
	now := b.now()
	until := b.openUntil
	b.mutex.RUnlock()

	if until.IsZero() {
		return 0, false
	}

	if now.Before(until) {
		return until.Sub(now), true
	}

	b.mutex.Lock()
	// Double-check after acquiring write lock
	if !b.openUntil.IsZero() && !now.Before(b.openUntil) {
		b.openUntil = time.Time{}
		log.Infof("✅ Circuit breaker closed - requests are allowed again")
	}
	b.mutex.Unlock()

	return 0, false
}

func (b *circuitBreaker) trip() {
	if b.delay <= 0 {
		return
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.openUntil = b.now().Add(b.delay)
	log.Warnf("🚫 Circuit breaker opened, requests disabled until %v", b.openUntil.Format("15:04:05"))
}
