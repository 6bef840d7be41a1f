package scheduler

import "time"

// Upstream statistics are only published for 5-minute buckets aligned
// to 5-minute boundaries. Polling at an arbitrary instant would keep
// returning the previous bucket, so the first poll is pushed to the
// next boundary plus a one-minute margin for upstream processing lag.

// NextSlot returns the first instant at or after now that lands one
// minute past a 5-minute boundary, on a whole second.
func NextSlot(now time.Time) time.Time {
	now = now.Truncate(time.Second)

	untilBoundary := (5 - now.Minute()%5) % 5
	delaySecs := (untilBoundary+1)*60 - now.Second()

	return now.Add(time.Duration(delaySecs) * time.Second)
}

// AlignDelay returns the startup delay until the next aligned slot.
// Always between one and six minutes.
func AlignDelay(now time.Time) time.Duration {
	return NextSlot(now).Sub(now.Truncate(time.Second))
}
