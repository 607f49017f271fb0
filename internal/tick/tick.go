// Package tick runs one full reconciliation pass: inventory, reconcile,
// execute, report. A tick owns no state beyond its own run; everything is
// re-derived from the provider, which is what makes repeated invocation the
// system's retry mechanism.
package tick

import (
	"context"
	"sync"
	"time"

	"fleetsched/internal/config"
	"fleetsched/internal/eventbus"
	"fleetsched/internal/executor"
	"fleetsched/internal/fleet"
	"fleetsched/internal/reconcile"
	"fleetsched/internal/report"
	logx "fleetsched/pkg/logx"
)

// Runner executes ticks against one provider.
type Runner struct {
	inv  fleet.Inventory
	exec *executor.Executor
	rec  reconcile.Reconciler

	loc     *time.Location
	regions []string // static override; empty = discover each tick
	budget  time.Duration

	log logx.Logger
	bus eventbus.Bus
}

// New wires a runner from resolved settings.
func New(provider fleet.Provider, s config.Settings, log logx.Logger, bus eventbus.Bus) *Runner {
	return &Runner{
		inv: provider,
		exec: executor.New(provider, executor.Config{
			ConcurrencyCap: s.ConcurrencyCap,
			RatePerSec:     s.RatePerSec,
			CallTimeout:    s.CallTimeout,
			BatchSize:      s.BatchSize,
		}, log),
		rec: reconcile.Reconciler{
			Tolerance:   s.Tolerance,
			TieBreak:    s.TieBreak,
			StartTagKey: s.StartTagKey,
			StopTagKey:  s.StopTagKey,
		},
		loc:     s.Location,
		regions: s.Regions,
		budget:  s.Budget,
		log:     log,
		bus:     bus,
	}
}

// Run performs one tick at the given instant and returns its report.
//
// Regions are processed concurrently and independently: one region failing
// inventory is reported and skipped while the others proceed. The report is
// always produced, even when every region failed.
func (r *Runner) Run(ctx context.Context, now time.Time) report.Report {
	start := time.Now()
	if r.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.budget)
		defer cancel()
	}
	if r.loc != nil {
		now = now.In(r.loc)
	}

	regions := r.regions
	if len(regions) == 0 {
		var err error
		regions, err = r.inv.Regions(ctx)
		if err != nil {
			r.log.Error("region discovery failed", logx.Err(err))
			rep := report.Summarize(now, time.Since(start), 0, 0, nil, nil,
				[]report.RegionFailure{{Region: "*", Err: err.Error()}})
			r.publish(rep)
			return rep
		}
	}

	var (
		mu        sync.Mutex
		outcomes  []fleet.TickOutcome
		notes     []reconcile.Note
		failures  []report.RegionFailure
		instances int
	)

	var wg sync.WaitGroup
	for _, region := range regions {
		region := region
		wg.Add(1)
		go func() {
			defer wg.Done()
			regOutcomes, regNotes, count, err := r.runRegion(ctx, region, now)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, report.RegionFailure{Region: region, Err: err.Error()})
				return
			}
			outcomes = append(outcomes, regOutcomes...)
			notes = append(notes, regNotes...)
			instances += count
		}()
	}
	wg.Wait()

	rep := report.Summarize(now, time.Since(start), len(regions), instances, outcomes, notes, failures)
	r.publish(rep)
	rep.Log(r.log)
	return rep
}

func (r *Runner) runRegion(ctx context.Context, region string, now time.Time) ([]fleet.TickOutcome, []reconcile.Note, int, error) {
	records, err := r.inv.ScheduledInstances(ctx, region)
	if err != nil {
		r.log.Warn("region skipped", logx.String("region", region), logx.Err(err))
		if r.bus != nil {
			r.bus.Publish(eventbus.Event{
				Type: eventbus.EventRegionFailed,
				Data: report.RegionFailure{Region: region, Err: err.Error()},
			})
		}
		return nil, nil, 0, err
	}

	var (
		intents  []fleet.TransitionIntent
		outcomes []fleet.TickOutcome
		notes    []reconcile.Note
	)
	for _, rec := range records {
		dec := r.rec.Reconcile(rec, now)
		notes = append(notes, dec.Notes...)
		if dec.Outcome != nil {
			outcomes = append(outcomes, *dec.Outcome)
		}
		if dec.Intent != nil {
			intents = append(intents, *dec.Intent)
		}
	}

	outcomes = append(outcomes, r.exec.Apply(ctx, region, intents)...)
	return outcomes, notes, len(records), nil
}

func (r *Runner) publish(rep report.Report) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(eventbus.Event{Type: eventbus.EventTickReport, Data: rep})
}
