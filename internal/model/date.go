package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the bucket naming format: year-month-day without zero padding, e.g. 2026-3-7.
const DateLayout = "2006-1-2"

// DateOf truncates t to midnight of its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders the UTC calendar date of t as a bucket name.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate parses a bucket name or query date. Zero-padded input such as 2026-03-07 is accepted.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}
