package margin

import (
	"fmt"
	"strings"
	"time"
)

// TimeDelta breaks an elapsed duration into whole days, hours, and
// minutes for human-readable "last signal" lines.
type TimeDelta struct {
	Days    int64
	Hours   int64
	Minutes int64
}

// DeltaBetween decomposes the time elapsed from the earlier instant to
// the later one.
func DeltaBetween(later, earlier time.Time) TimeDelta {
	return DeltaFromMinutes(int64(later.Sub(earlier).Minutes()))
}

// DeltaFromMinutes decomposes a minute count into days/hours/minutes.
func DeltaFromMinutes(minutes int64) TimeDelta {
	hours, mins := minutes/60, minutes%60
	days, hours := hours/24, hours%24

	return TimeDelta{Days: days, Hours: hours, Minutes: mins}
}

// IsZero reports whether the delta carries no elapsed time at all,
// which renders as "never".
func (d TimeDelta) IsZero() bool {
	return d.Days == 0 && d.Hours == 0 && d.Minutes == 0
}

func (d TimeDelta) String() string {
	var b strings.Builder

	if d.Days > 0 {
		fmt.Fprintf(&b, "%dd ", d.Days)
	}
	if d.Hours > 0 {
		fmt.Fprintf(&b, "%dh ", d.Hours)
	}
	if d.Minutes > 0 {
		fmt.Fprintf(&b, "%dmin ", d.Minutes)
	}

	return b.String()
}
