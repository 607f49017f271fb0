// Package reconcile decides, per instance and per tick, whether a power-state
// transition is needed.
//
// The reconciler combines the instance's parsed schedule descriptors with the
// evaluation verdict for the current instant: no firing descriptor means no
// action, a single firing descriptor dictates the target state, and multiple
// simultaneous fires resolve deterministically (most specific pattern first,
// then the configured tie-break polarity). An instance already in its target
// state yields a skip, and an instance observed mid-transition is deferred to
// the next tick rather than raced.
package reconcile
