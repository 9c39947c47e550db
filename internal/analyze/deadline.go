package analyze

import (
	"strings"
	"time"
)

// timeNow is stubbed in tests.
var timeNow = time.Now

// Deadline parsing is a best-effort heuristic, not a full NLP date
// resolver. Relative phrases resolve to conventional times of day;
// anything else gets one pass through a small set of date layouts.

var deadlineLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2",
	"Jan 2",
}

// ParseDeadline extracts a deadline from free text.
//
//	"tomorrow"  -> next calendar day at 09:00 local
//	"today"     -> same day at 17:00 local
//	"next week" -> now + 7 days (same time of day)
//
// Otherwise each date layout is attempted against the trimmed text. The
// second return value is false when nothing parses.
func ParseDeadline(s string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(s)

	switch {
	case strings.Contains(lower, "tomorrow"):
		next := now.AddDate(0, 0, 1)
		return time.Date(next.Year(), next.Month(), next.Day(), 9, 0, 0, 0, now.Location()), true
	case strings.Contains(lower, "today"):
		return time.Date(now.Year(), now.Month(), now.Day(), 17, 0, 0, 0, now.Location()), true
	case strings.Contains(lower, "next week"):
		return now.AddDate(0, 0, 7), true
	}

	trimmed := strings.TrimSpace(s)
	for _, layout := range deadlineLayouts {
		parsed, err := time.ParseInLocation(layout, trimmed, now.Location())
		if err != nil {
			continue
		}
		// Year-less layouts parse as year 0; pin them to the current year.
		if parsed.Year() == 0 {
			parsed = parsed.AddDate(now.Year(), 0, 0)
		}
		return parsed, true
	}

	return time.Time{}, false
}
