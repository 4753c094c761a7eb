package util

import (
	"strconv"
	"strings"
	"time"
)

// BCBLayout is the day-first layout used by the Central Bank SGS API.
const BCBLayout = "02/01/2006"

var dateLayouts = []string{
	BCBLayout,
	"02-01-2006",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// ParseDate accepts day-first (dd/mm/yyyy, dd-mm-yyyy), ISO dates and RFC3339 timestamps.
// The result is truncated to a UTC calendar day.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// ParseDateDefault parses a date or returns def if empty/invalid.
func ParseDateDefault(s string, def time.Time) time.Time {
	if t, ok := ParseDate(s); ok {
		return t
	}
	return def
}

// FormatBCB renders t in the SGS query format.
func FormatBCB(t time.Time) string { return t.Format(BCBLayout) }

// Quarter returns 1..4 for the month of t.
func Quarter(t time.Time) int { return (int(t.Month())-1)/3 + 1 }

var monthNames = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// MonthName returns the lowercase Portuguese name of m.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthNames[m-1]
}

// ParseMonth accepts a Portuguese month name (case-insensitive, with or without
// the cedilla in "março") or a month number.
func ParseMonth(s string) (time.Month, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 1 && n <= 12 {
			return time.Month(n), true
		}
		return 0, false
	}
	if s == "marco" {
		return time.March, true
	}
	for i, name := range monthNames {
		if name == s {
			return time.Month(i + 1), true
		}
	}
	return 0, false
}
