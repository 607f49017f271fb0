package schedule

import "time"

// FiresAt reports whether the descriptor fires at the given instant.
//
// The pattern is evaluated at minute granularity. A descriptor fires when any
// minute boundary in [at-tolerance, at] matches, so a tick that arrives late
// (or a skipped tick, when tolerance covers the gap) still picks the schedule
// up instead of missing it permanently. Keeping tolerance no larger than one
// tick interval is what prevents the same boundary firing twice.
//
// The caller must supply at already converted to the schedule's timezone;
// no conversion happens here. Pure and deterministic.
func (d Descriptor) FiresAt(at time.Time, tolerance time.Duration) bool {
	if d.sched == nil {
		return false
	}
	if tolerance < 0 {
		tolerance = 0
	}
	at = at.Truncate(time.Minute)

	// Next is exclusive of its argument, so back off one extra second to make
	// the window's lower bound inclusive.
	from := at.Add(-tolerance - time.Second)
	next := d.sched.Next(from)
	return !next.IsZero() && !next.After(at)
}
