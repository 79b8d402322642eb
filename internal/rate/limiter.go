package rate

import (
	"sync"
	"time"
)

// window is the per-identifier attempt state. Owned exclusively by the
// limiter; never handed out.
type window struct {
	count       int
	lastAttempt time.Time
}

// Limiter is an in-memory sliding-window attempt counter keyed by an
// arbitrary identifier (email, IP+action, ...). MaxAttempts and Window are
// fixed at construction.
//
// The check-then-increment is atomic per identifier: concurrent callers with
// the same identifier observe linearizable read-modify-write semantics, so
// at most MaxAttempts approvals can exist within one window.
type Limiter struct {
	maxAttempts int
	window      time.Duration
	now         func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// NewLimiter creates a sliding-window limiter permitting maxAttempts per
// identifier within windowDuration. Non-positive inputs fall back to
// 5 attempts / 15 minutes.
func NewLimiter(maxAttempts int, windowDuration time.Duration) *Limiter {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if windowDuration <= 0 {
		windowDuration = 15 * time.Minute
	}
	return &Limiter{
		maxAttempts: maxAttempts,
		window:      windowDuration,
		now:         time.Now,
		windows:     make(map[string]*window),
	}
}

// WithClock overrides the limiter's time source. Test hook.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow records an attempt for the identifier and reports whether it is
// within budget. A denied attempt is not counted and does not move the
// window's timestamp, so denial never extends the cooldown.
func (l *Limiter) Allow(identifier string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[identifier]
	if !ok {
		l.windows[identifier] = &window{count: 1, lastAttempt: now}
		return true
	}

	if now.Sub(w.lastAttempt) > l.window {
		w.count = 1
		w.lastAttempt = now
		return true
	}

	if w.count >= l.maxAttempts {
		return false
	}

	w.count++
	w.lastAttempt = now
	return true
}

// Remaining returns how long the identifier must wait before Allow can
// succeed again: zero when no window exists or the count is below the
// maximum, otherwise the unelapsed portion of the window, floored at zero.
func (l *Limiter) Remaining(identifier string) time.Duration {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[identifier]
	if !ok || w.count < l.maxAttempts {
		return 0
	}

	remaining := l.window - now.Sub(w.lastAttempt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset clears the attempt window for the identifier. Called after a
// successful sensitive operation.
func (l *Limiter) Reset(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, identifier)
}

// Prune drops windows whose last attempt is older than the window duration.
// Callers with long-lived limiters run it periodically to bound memory.
func (l *Limiter) Prune() int {
	threshold := l.now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, w := range l.windows {
		if w.lastAttempt.Before(threshold) {
			delete(l.windows, id)
			removed++
		}
	}
	return removed
}

// MaxAttempts returns the configured attempt budget.
func (l *Limiter) MaxAttempts() int {
	return l.maxAttempts
}

// Window returns the configured window duration.
func (l *Limiter) Window() time.Duration {
	return l.window
}
