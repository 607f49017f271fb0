package reconcile

import (
	"fmt"
	"sort"
	"time"

	"fleetsched/internal/fleet"
	"fleetsched/internal/schedule"
)

// NoteKind classifies informational findings produced while reconciling one
// instance. Notes never stop the tick; they feed the run report.
type NoteKind int

const (
	// NoteMalformedExpression means one tag entry failed to parse. The
	// instance's remaining descriptors were still evaluated.
	NoteMalformedExpression NoteKind = iota
	// NoteAmbiguousSchedule means descriptors of both polarities fired at
	// the same instant and the tie-break decided. Operators should fix the
	// overlapping schedules.
	NoteAmbiguousSchedule
)

func (k NoteKind) String() string {
	switch k {
	case NoteMalformedExpression:
		return "malformed_expression"
	case NoteAmbiguousSchedule:
		return "ambiguous_schedule"
	default:
		return fmt.Sprintf("note(%d)", int(k))
	}
}

type Note struct {
	Kind       NoteKind
	InstanceID string
	Region     string
	Detail     string
}

// Decision is the per-instance verdict for one tick. At most one of Intent
// and Outcome is set; both nil means no action and nothing to report.
type Decision struct {
	Intent  *fleet.TransitionIntent
	Outcome *fleet.TickOutcome
	Notes   []Note
}

// Reconciler turns an observed instance into a transition decision.
//
// It is stateless: every call derives everything from the record and the
// supplied instant, which is what makes repeated ticks idempotent.
type Reconciler struct {
	// Tolerance is the backward-looking window descriptors are evaluated
	// with, guarding against delayed or skipped ticks.
	Tolerance time.Duration
	// TieBreak decides between start and stop when equally specific
	// descriptors of both polarities fire together. Defaults to stop
	// (fail safe toward cost savings).
	TieBreak schedule.Polarity
	// StartTagKey / StopTagKey name the metadata keys the raw expressions
	// came from; they label descriptors in reports.
	StartTagKey string
	StopTagKey  string
}

// Reconcile evaluates every descriptor on the record against now and decides
// whether the instance needs a power-state transition.
//
// now must already be in the schedule timezone; descriptors never convert.
func (r Reconciler) Reconcile(rec fleet.InstanceRecord, now time.Time) Decision {
	var dec Decision

	descs := r.parseTags(rec, &dec)

	firing := make([]schedule.Descriptor, 0, len(descs))
	for _, d := range descs {
		if d.FiresAt(now, r.Tolerance) {
			firing = append(firing, d)
		}
	}
	// Nothing fires: no action this tick, and that is not a failure.
	if len(firing) == 0 {
		return dec
	}

	winner := r.pick(firing)
	if conflicting(firing) {
		dec.Notes = append(dec.Notes, Note{
			Kind:       NoteAmbiguousSchedule,
			InstanceID: rec.ID,
			Region:     rec.Region,
			Detail:     fmt.Sprintf("%d descriptors fired, resolved to %s via %s", len(firing), winner.Polarity, winner),
		})
	}

	target := fleet.StateRunning
	if winner.Polarity == schedule.PolarityStop {
		target = fleet.StateStopped
	}

	// An in-flight provider-side transition is never raced; defer the
	// instance and let the next tick observe a settled state.
	if rec.State == fleet.StateTransitioning || rec.State == fleet.StateUnknown {
		dec.Outcome = &fleet.TickOutcome{
			InstanceID: rec.ID,
			Region:     rec.Region,
			Result:     fleet.ResultDeferred,
			Detail:     fmt.Sprintf("observed state %s, not acting", rec.State),
		}
		return dec
	}

	// Already where the schedule wants it: no redundant API call.
	if rec.State == target {
		dec.Outcome = &fleet.TickOutcome{
			InstanceID: rec.ID,
			Region:     rec.Region,
			Result:     fleet.ResultSkipped,
			Detail:     fmt.Sprintf("already %s", target),
		}
		return dec
	}

	dec.Intent = &fleet.TransitionIntent{
		InstanceID: rec.ID,
		Region:     rec.Region,
		From:       rec.State,
		To:         target,
		Reason:     winner.String(),
	}
	return dec
}

func (r Reconciler) parseTags(rec fleet.InstanceRecord, dec *Decision) []schedule.Descriptor {
	var descs []schedule.Descriptor

	add := func(raw string, polarity schedule.Polarity, key string) {
		if raw == "" {
			return
		}
		parsed, errs := schedule.ParseTag(raw, polarity, key)
		descs = append(descs, parsed...)
		for _, err := range errs {
			dec.Notes = append(dec.Notes, Note{
				Kind:       NoteMalformedExpression,
				InstanceID: rec.ID,
				Region:     rec.Region,
				Detail:     err.Error(),
			})
		}
	}

	add(rec.StartTag, schedule.PolarityStart, r.StartTagKey)
	add(rec.StopTag, schedule.PolarityStop, r.StopTagKey)
	return descs
}

// pick resolves simultaneously firing descriptors to a single winner.
//
// Most specific pattern first (fewest non-exact fields), then the configured
// tie-break polarity, then expression text as a last resort, so the result
// never depends on tag ordering.
func (r Reconciler) pick(firing []schedule.Descriptor) schedule.Descriptor {
	best := make([]schedule.Descriptor, 0, len(firing))
	min := -1
	for _, d := range firing {
		switch w := d.Wildcards(); {
		case min < 0 || w < min:
			min = w
			best = append(best[:0], d)
		case w == min:
			best = append(best, d)
		}
	}

	if tied := filterPolarity(best, r.TieBreak); len(tied) > 0 {
		best = tied
	}
	sort.Slice(best, func(i, j int) bool { return best[i].Expression < best[j].Expression })
	return best[0]
}

func filterPolarity(descs []schedule.Descriptor, p schedule.Polarity) []schedule.Descriptor {
	var out []schedule.Descriptor
	for _, d := range descs {
		if d.Polarity == p {
			out = append(out, d)
		}
	}
	return out
}

func conflicting(firing []schedule.Descriptor) bool {
	if len(firing) < 2 {
		return false
	}
	first := firing[0].Polarity
	for _, d := range firing[1:] {
		if d.Polarity != first {
			return true
		}
	}
	return false
}
