// Package ratelimit implements the sliding-window call limiter guarding the
// generation API. It tracks attempt timestamps only; token budgets live in
// the usage package.
package ratelimit

import (
	"fmt"
	"time"
)

const (
	// DefaultPerMinute is the default call ceiling over any trailing minute.
	DefaultPerMinute = 50
	// DefaultPerHour is the default call ceiling over any trailing hour.
	DefaultPerHour = 1000
)

// Limiter enforces per-minute and per-hour ceilings over a sliding window of
// attempted calls. It is not safe for concurrent use; each session owns its
// own Limiter and serializes access through the session lock.
type Limiter struct {
	perMinute int
	perHour   int
	window    []time.Time
	attempts  int64
}

// New creates a Limiter with the given ceilings. Non-positive values fall
// back to the defaults.
func New(perMinute, perHour int) *Limiter {
	if perMinute <= 0 {
		perMinute = DefaultPerMinute
	}
	if perHour <= 0 {
		perHour = DefaultPerHour
	}
	return &Limiter{perMinute: perMinute, perHour: perHour}
}

// Check reports whether a call attempted at now is within budget. Entries
// older than one hour are pruned first. The returned reason is empty when
// the call is allowed.
func (l *Limiter) Check(now time.Time) (bool, string) {
	l.prune(now)

	minuteAgo := now.Add(-time.Minute)
	inMinute := 0
	for _, t := range l.window {
		if t.After(minuteAgo) {
			inMinute++
		}
	}
	if inMinute >= l.perMinute {
		return false, fmt.Sprintf("per-minute limit reached (%d calls/min); wait a moment before trying again", l.perMinute)
	}
	if len(l.window) >= l.perHour {
		return false, fmt.Sprintf("hourly limit reached (%d calls/hr); try again later", l.perHour)
	}
	return true, ""
}

// Record charges one attempt at now. Callers must invoke it exactly once per
// attempted call, after an allowed Check, regardless of whether the call
// later fails in transport.
func (l *Limiter) Record(now time.Time) {
	l.window = append(l.window, now)
	l.attempts++
}

// Attempts returns the monotonic count of recorded attempts.
func (l *Limiter) Attempts() int64 {
	return l.attempts
}

// prune drops window entries older than one hour relative to now.
func (l *Limiter) prune(now time.Time) {
	hourAgo := now.Add(-time.Hour)
	keep := l.window[:0]
	for _, t := range l.window {
		if t.After(hourAgo) {
			keep = append(keep, t)
		}
	}
	l.window = keep
}
