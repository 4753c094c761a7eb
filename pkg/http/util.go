package http

import (
	"time"

	xutil "EconCast/pkg/util"
)

// ParseDate accepts day-first, ISO and RFC3339 dates. Returns (t, true) if any worked.
func ParseDate(s string) (time.Time, bool) { return xutil.ParseDate(s) }
