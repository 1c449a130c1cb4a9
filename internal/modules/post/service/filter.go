package service

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

// IsWithinWindow reports whether a message created at ts falls inside the
// trailing window ending at now. The boundary is inclusive.
func IsWithinWindow(ts, now time.Time, window time.Duration) bool {
	return !ts.Before(WindowStart(now, window))
}

// WindowStart returns the oldest accepted timestamp. A negative window is
// treated as zero.
func WindowStart(now time.Time, window time.Duration) time.Time {
	return now.Add(-max(window, 0))
}

// KeywordFilter represents content filtering criteria
type KeywordFilter struct {
	Include []string
	Exclude []string
}

// Allows checks if text passes the filter. Matching is case-insensitive; an
// empty Include list accepts everything not excluded.
func (f KeywordFilter) Allows(text string) bool {
	text = strings.ToLower(text)
	matches := func(keyword string) bool {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		return keyword != "" && strings.Contains(text, keyword)
	}

	if lo.SomeBy(f.Exclude, matches) {
		return false
	}
	if len(f.Include) == 0 {
		return true
	}
	return lo.SomeBy(f.Include, matches)
}
