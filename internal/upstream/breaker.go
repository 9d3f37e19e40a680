package upstream

import (
	"sync"
	"time"
)

// Breaker skips URLs that keep failing. After threshold consecutive
// failures a URL is held open for the cooldown window; any success resets
// it. A zero threshold disables the breaker.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	state     map[string]*breakerState
}

type breakerState struct {
	failures int
	openedAt time.Time
}

// NewBreaker builds a breaker with the given threshold and cooldown.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{threshold: threshold, cooldown: cooldown, state: map[string]*breakerState{}}
}

// Allow reports whether the URL may be tried now.
func (b *Breaker) Allow(url string) bool {
	if b == nil || b.threshold <= 0 {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.state[url]
	if !ok || st.failures < b.threshold {
		return true
	}
	if time.Since(st.openedAt) >= b.cooldown {
		st.failures = 0
		return true
	}
	return false
}

// Failure records one failed attempt against the URL.
func (b *Breaker) Failure(url string) {
	if b == nil || b.threshold <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.state[url]
	if !ok {
		st = &breakerState{}
		b.state[url] = st
	}
	st.failures++
	if st.failures >= b.threshold {
		st.openedAt = time.Now()
	}
}

// Success resets the URL's failure count.
func (b *Breaker) Success(url string) {
	if b == nil || b.threshold <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.state, url)
}
