package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

func ParseTimeFlexible(timeStr string) (time.Time, error) {
	// Try parsing as RFC3339 (ISO 8601)
	t, err := time.Parse(time.RFC3339Nano, timeStr)
	if err == nil {
		return t.UTC(), nil // Convert to UTC
	}
	t, err = time.Parse(time.RFC3339, timeStr) // Try without nano
	if err == nil {
		return t.UTC(), nil
	}

	// Try parsing as epoch milliseconds
	ms, err := strconv.ParseInt(timeStr, 10, 64)
	if err == nil {
		return time.UnixMilli(ms).UTC(), nil // Convert to UTC
	}

	// Looser layouts such as "2024-05-09 08:30" or "05/09/2024", read as UTC
	t, err = dateparse.ParseIn(timeStr, time.UTC)
	if err == nil {
		return t.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("invalid time format: %s", timeStr)
}

var relativeTimePattern = regexp.MustCompile(`^now(?:([+-])(\d+)([smhdw]))?$`)

// maxRelativeOffset keeps relative offsets well inside time.Duration's range.
const maxRelativeOffset = 100 * 365 * 24 * time.Hour

// ParseTimeInput accepts the relative forms the model emits ("now", "now-1h",
// "now-7d") in addition to everything ParseTimeFlexible understands.
func ParseTimeInput(input string, now time.Time) (time.Time, error) {
	s := strings.TrimSpace(input)
	m := relativeTimePattern.FindStringSubmatch(s)
	if m == nil {
		return ParseTimeFlexible(s)
	}
	if m[1] == "" {
		return now.UTC(), nil
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid relative time %q: %w", input, err)
	}
	var unit time.Duration
	switch m[3] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	case "w":
		unit = 7 * 24 * time.Hour
	}
	if n > int(maxRelativeOffset/unit) {
		return time.Time{}, fmt.Errorf("relative time %q is more than 100 years away", input)
	}
	offset := time.Duration(n) * unit
	if m[1] == "-" {
		offset = -offset
	}
	return now.Add(offset).UTC(), nil
}

// ParseTimestamp recognizes the ISO-8601 variants found in log documents.
func ParseTimestamp(s string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.000Z0700",
		"2006-01-02T15:04:05Z0700",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
