// Package ratelimit admits callers against several sliding windows at once.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Rate limit errors
var (
	ErrAdmissionDenied = errors.New("[ratelimit] admission denied")
	errInvalidWindow   = errors.New("invalid window")
)

// Window allows up to N events within Span
type Window struct {
	N    int
	Span time.Duration
}

func (w Window) String() string {
	return fmt.Sprintf("%d/%s", w.N, w.Span)
}

// Validate checks window is usable
func (w Window) Validate() error {
	if w.N < 0 || w.Span <= 0 {
		return fmt.Errorf("%w: %s", errInvalidWindow, w)
	}
	return nil
}

// Default windows: burst guard followed by sustained-rate guards
func DefaultWindows() []Window {
	return []Window{
		{N: 3, Span: 10 * time.Second},
		{N: 10, Span: time.Minute},
		{N: 35, Span: 5 * time.Minute},
		{N: 100, Span: 2 * time.Hour},
		{N: 250, Span: 8 * time.Hour},
	}
}

// Limiter keeps per caller event logs.
// Caller is limited when any window holds strictly more than N events.
type Limiter struct {
	mu      sync.Mutex
	windows []Window
	longest time.Duration
	logs    map[int64][]time.Time
	now     func() time.Time
}

func New(now func() time.Time, windows ...Window) *Limiter {
	if now == nil {
		now = time.Now
	}

	var longest time.Duration
	for _, w := range windows {
		longest = max(longest, w.Span)
	}

	return &Limiter{
		windows: windows,
		longest: longest,
		logs:    make(map[int64][]time.Time),
		now:     now,
	}
}

// Register records admission event for caller now
func (l *Limiter) Register(caller int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.logs[caller] = append(l.logs[caller], now)
	l.prune(caller, now)
}

// IsLimited reports whether caller exceeds any window
func (l *Limiter) IsLimited(caller int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	log, ok := l.logs[caller]
	if !ok || len(log) == 0 {
		return false
	}

	now := l.now()
	for _, w := range l.windows {
		if countSince(log, now.Add(-w.Span)) > w.N {
			return true
		}
	}
	return false
}

// Admit registers event and fails if caller became limited
func (l *Limiter) Admit(caller int64) error {
	l.Register(caller)
	if l.IsLimited(caller) {
		return fmt.Errorf("%w: caller %d", ErrAdmissionDenied, caller)
	}
	return nil
}

// Events returns number of retained events for caller
func (l *Limiter) Events(caller int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.logs[caller])
}

// Drops events older than the longest window, removes empty logs
func (l *Limiter) prune(caller int64, now time.Time) {
	log := l.logs[caller]
	cut := now.Add(-l.longest)

	// Log is chronological, find first retained event
	start := 0
	for start < len(log) && !log[start].After(cut) {
		start++
	}

	if start == len(log) {
		delete(l.logs, caller)
		return
	}
	l.logs[caller] = log[start:]
}

// Counts events strictly after cut
func countSince(log []time.Time, cut time.Time) int {
	n := 0
	for i := len(log) - 1; i >= 0; i-- {
		if !log[i].After(cut) {
			break
		}
		n++
	}
	return n
}
