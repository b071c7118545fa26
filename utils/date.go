package utils

import (
	"time"
)

// FormatScheduleTime renders a backend schedule timestamp (RFC 3339) the way
// emails show it. Unparseable input is returned as-is rather than dropped.
func FormatScheduleTime(raw string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.Format("Mon, 02 Jan 2006 15:04")
}
