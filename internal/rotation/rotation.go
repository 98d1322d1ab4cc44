// Package rotation decides which quarterly bonus window is active at a
// given instant. The evaluation time is always an explicit parameter so
// callers can evaluate any quarter without touching the system clock.
package rotation

import "time"

// Quarter identifies one of the four fixed rotation windows.
type Quarter string

const (
	Q1 Quarter = "Q1" // Jan-Mar
	Q2 Quarter = "Q2" // Apr-Jun
	Q3 Quarter = "Q3" // Jul-Sep
	Q4 Quarter = "Q4" // Oct-Dec
)

// CurrentWindow maps an instant to its rotation window.
func CurrentWindow(now time.Time) Quarter {
	switch m := now.Month(); {
	case m <= time.March:
		return Q1
	case m <= time.June:
		return Q2
	case m <= time.September:
		return Q3
	default:
		return Q4
	}
}

// ParseQuarter validates a stored rotation-period label.
func ParseQuarter(s string) (Quarter, bool) {
	switch q := Quarter(s); q {
	case Q1, Q2, Q3, Q4:
		return q, true
	}
	return "", false
}

// String implements fmt.Stringer.
func (q Quarter) String() string { return string(q) }
