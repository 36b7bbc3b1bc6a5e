package ratelimit

import (
	"testing"
	"time"
)

func TestMinuteCeiling(t *testing.T) {
	l := New(50, 1000)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// 50 allowed calls inside ten seconds.
	for i := 0; i < 50; i++ {
		now := base.Add(time.Duration(i) * 200 * time.Millisecond)
		ok, reason := l.Check(now)
		if !ok {
			t.Fatalf("call %d denied: %s", i+1, reason)
		}
		l.Record(now)
	}

	// The 51st inside the same minute is denied.
	ok, reason := l.Check(base.Add(11 * time.Second))
	if ok {
		t.Fatal("51st call within the minute should be denied")
	}
	if reason == "" {
		t.Error("denial should carry a reason")
	}

	// A minute later the window has slid past all 50 entries.
	ok, _ = l.Check(base.Add(time.Minute + 11*time.Second))
	if !ok {
		t.Error("call after the minute window slid should be allowed")
	}
}

func TestHourCeiling(t *testing.T) {
	l := New(10, 30)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// Spread 30 calls over 30 minutes so the minute ceiling never trips.
	for i := 0; i < 30; i++ {
		now := base.Add(time.Duration(i) * time.Minute)
		ok, reason := l.Check(now)
		if !ok {
			t.Fatalf("call %d denied: %s", i+1, reason)
		}
		l.Record(now)
	}

	ok, _ := l.Check(base.Add(31 * time.Minute))
	if ok {
		t.Fatal("31st call within the hour should be denied")
	}

	// 61 minutes after the first call, one slot has expired.
	ok, _ = l.Check(base.Add(61 * time.Minute))
	if !ok {
		t.Error("call should be allowed once the oldest entry left the window")
	}
}

func TestPruneDropsStaleEntries(t *testing.T) {
	l := New(5, 100)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		l.Record(base.Add(time.Duration(i) * time.Second))
	}
	if ok, _ := l.Check(base.Add(10 * time.Second)); ok {
		t.Fatal("expected minute ceiling to deny")
	}

	// Two hours later all entries are stale.
	if ok, _ := l.Check(base.Add(2 * time.Hour)); !ok {
		t.Error("stale entries should have been pruned")
	}
	if got := l.Attempts(); got != 5 {
		t.Errorf("attempts counter should be monotonic, got %d", got)
	}
}

func TestDefaults(t *testing.T) {
	l := New(0, -1)
	if l.perMinute != DefaultPerMinute || l.perHour != DefaultPerHour {
		t.Errorf("defaults not applied: %d/%d", l.perMinute, l.perHour)
	}
}
