package utils

import (
	"time"
)

// PrettyDate renders a timestamp for notification messages.
func PrettyDate(t time.Time) string {
	return t.UTC().Format("Mon, 02 Jan 2006 15:04 MST")
}

// AgeDays returns the age of t relative to now in fractional days. Negative
// ages (timestamps in the future) are clamped to zero.
func AgeDays(t time.Time, now time.Time) float64 {
	age := now.Sub(t).Hours() / 24
	if age < 0 {
		return 0
	}
	return age
}
