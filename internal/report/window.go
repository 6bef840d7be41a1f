package report

// Window identifies a retrospective look-back on the 5-minute grid
// upstream series are published on.
type Window int

const (
	WindowNow Window = iota
	Window5m
	Window15m
	Window1h
	Window4h
)

// ChangeWindows is the fixed, ordered set of look-backs change reports
// cover. WindowNow is excluded: a change against the latest point
// itself is always zero.
var ChangeWindows = [4]Window{Window5m, Window15m, Window1h, Window4h}

// Offset returns the window's position inside a series sorted
// descending by observation time. The table stays explicit constants:
// the 5-minute grid does not evenly divide every labelled window, so
// deriving offsets generically would be misleading.
func (w Window) Offset() int {
	switch w {
	case Window5m:
		return 1
	case Window15m:
		return 3
	case Window1h:
		return 12
	case Window4h:
		return 48
	default:
		return 0
	}
}

func (w Window) String() string {
	switch w {
	case WindowNow:
		return "now"
	case Window5m:
		return "5m"
	case Window15m:
		return "15m"
	case Window1h:
		return "1h"
	case Window4h:
		return "4h"
	default:
		return "unknown"
	}
}
