package models

import "time"

// TimeLayout is the ISO-8601 form used for every stamp written by this
// module: UTC with millisecond precision, e.g. 2026-01-02T15:04:05.000Z.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Timestamp formats t in TimeLayout.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Now is the current time as a Timestamp.
func Now() string {
	return Timestamp(time.Now())
}
