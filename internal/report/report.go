// Package report aggregates the per-instance outcomes of one tick into the
// summary handed to the logging collaborator. Pure aggregation: nothing here
// retries, mutates fleet state, or persists across ticks.
package report

import (
	"time"

	"fleetsched/internal/fleet"
	"fleetsched/internal/reconcile"
	logx "fleetsched/pkg/logx"
)

// RegionFailure records a region that could not be processed at all this
// tick (inventory enumeration failed). Other regions proceed regardless.
type RegionFailure struct {
	Region string
	Err    string
}

// Report is the per-tick summary. It is produced even when every region
// failed; the absence of a report would itself be a failure mode.
type Report struct {
	Tick    time.Time
	Elapsed time.Duration

	Regions   int // regions processed (attempted inventory)
	Instances int // scheduled instances seen

	Succeeded int
	Failed    int
	Skipped   int
	Deferred  int
	Ambiguous int
	Malformed int

	RegionFailures []RegionFailure
	Outcomes       []fleet.TickOutcome
	Notes          []reconcile.Note
}

// Summarize folds outcomes and reconcile notes into a Report.
func Summarize(tick time.Time, elapsed time.Duration, regions, instances int, outcomes []fleet.TickOutcome, notes []reconcile.Note, regionFailures []RegionFailure) Report {
	r := Report{
		Tick:           tick,
		Elapsed:        elapsed,
		Regions:        regions,
		Instances:      instances,
		RegionFailures: regionFailures,
		Outcomes:       outcomes,
		Notes:          notes,
	}
	for _, oc := range outcomes {
		switch oc.Result {
		case fleet.ResultSucceeded:
			r.Succeeded++
		case fleet.ResultFailed:
			r.Failed++
		case fleet.ResultSkipped:
			r.Skipped++
		case fleet.ResultDeferred:
			r.Deferred++
		}
	}
	for _, n := range notes {
		switch n.Kind {
		case reconcile.NoteAmbiguousSchedule:
			r.Ambiguous++
		case reconcile.NoteMalformedExpression:
			r.Malformed++
		}
	}
	return r
}

// Clean reports whether the tick finished without failures of any scope.
func (r Report) Clean() bool {
	return r.Failed == 0 && len(r.RegionFailures) == 0 && r.Malformed == 0
}

// Log emits the summary plus one entry per failure and per note.
func (r Report) Log(log logx.Logger) {
	log.Info("tick complete",
		logx.Time("tick", r.Tick),
		logx.Duration("elapsed", r.Elapsed),
		logx.Int("regions", r.Regions),
		logx.Int("instances", r.Instances),
		logx.Int("succeeded", r.Succeeded),
		logx.Int("failed", r.Failed),
		logx.Int("skipped", r.Skipped),
		logx.Int("deferred", r.Deferred),
		logx.Int("ambiguous", r.Ambiguous),
		logx.Int("malformed", r.Malformed),
	)

	for _, rf := range r.RegionFailures {
		log.Error("region unreachable",
			logx.String("region", rf.Region),
			logx.String("err", rf.Err),
		)
	}
	for _, oc := range r.Outcomes {
		if oc.Result != fleet.ResultFailed {
			continue
		}
		log.Warn("transition failed",
			logx.String("instance", oc.InstanceID),
			logx.String("region", oc.Region),
			logx.String("detail", oc.Detail),
		)
	}
	for _, n := range r.Notes {
		log.Warn("schedule note",
			logx.String("kind", n.Kind.String()),
			logx.String("instance", n.InstanceID),
			logx.String("region", n.Region),
			logx.String("detail", n.Detail),
		)
	}
}
