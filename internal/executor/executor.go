package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"fleetsched/internal/fleet"
	logx "fleetsched/pkg/logx"
)

// Config bounds how hard one region's control API is driven.
//
// All limits are per region; regions run independently and each Apply call
// gets its own permit pool and rate limiter.
type Config struct {
	// ConcurrencyCap is the maximum number of in-flight control calls.
	ConcurrencyCap int
	// RatePerSec caps control calls per second against provider throttling.
	RatePerSec int
	// CallTimeout bounds every individual control call. A timed-out call is
	// a FAILED outcome; the next tick retries it by re-deriving intents.
	CallTimeout time.Duration
	// BatchSize is the maximum number of instance IDs folded into one
	// start/stop call. EC2 accepts up to 50.
	BatchSize int
}

func (c Config) withDefaults() Config {
	if c.ConcurrencyCap <= 0 {
		c.ConcurrencyCap = 4
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 10
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	if c.BatchSize <= 0 || c.BatchSize > 50 {
		c.BatchSize = 50
	}
	return c
}

// Executor applies transition intents against one region at a time.
type Executor struct {
	ctrl fleet.Controller
	cfg  Config
	log  logx.Logger
}

func New(ctrl fleet.Controller, cfg Config, log logx.Logger) *Executor {
	return &Executor{ctrl: ctrl, cfg: cfg.withDefaults(), log: log}
}

// Apply issues the region's transitions and returns one outcome per intent.
//
// Intents sharing a target state are folded into batched control calls.
// Batches run concurrently up to the configured cap and rate; there is no
// ordering guarantee between instances. Failures are never retried within
// the tick: the next tick re-derives intents from fresh inventory.
func (e *Executor) Apply(ctx context.Context, region string, intents []fleet.TransitionIntent) []fleet.TickOutcome {
	if len(intents) == 0 {
		return nil
	}

	byID := make(map[string]fleet.TransitionIntent, len(intents))
	var startIDs, stopIDs []string
	for _, in := range intents {
		byID[in.InstanceID] = in
		switch in.To {
		case fleet.StateRunning:
			startIDs = append(startIDs, in.InstanceID)
		case fleet.StateStopped:
			stopIDs = append(stopIDs, in.InstanceID)
		}
	}

	var (
		mu       sync.Mutex
		outcomes []fleet.TickOutcome
		wg       sync.WaitGroup
	)
	collect := func(batch []fleet.TickOutcome) {
		mu.Lock()
		outcomes = append(outcomes, batch...)
		mu.Unlock()
	}

	permits := make(chan struct{}, e.cfg.ConcurrencyCap)
	limiter := rate.NewLimiter(rate.Limit(e.cfg.RatePerSec), e.cfg.RatePerSec)

	run := func(ids []string, target fleet.PowerState) {
		for _, batch := range splitBatches(ids, e.cfg.BatchSize) {
			batch := batch
			wg.Add(1)
			go func() {
				defer wg.Done()

				select {
				case permits <- struct{}{}:
					defer func() { <-permits }()
				case <-ctx.Done():
					collect(e.abandoned(batch, byID, ctx.Err()))
					return
				}
				if err := limiter.Wait(ctx); err != nil {
					collect(e.abandoned(batch, byID, err))
					return
				}

				collect(e.callBatch(ctx, region, batch, target, byID))
			}()
		}
	}

	run(startIDs, fleet.StateRunning)
	run(stopIDs, fleet.StateStopped)
	wg.Wait()

	return outcomes
}

func (e *Executor) callBatch(ctx context.Context, region string, ids []string, target fleet.PowerState, byID map[string]fleet.TransitionIntent) []fleet.TickOutcome {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	var (
		changes []fleet.StateChange
		err     error
	)
	if target == fleet.StateRunning {
		changes, err = e.ctrl.StartInstances(callCtx, region, ids)
	} else {
		changes, err = e.ctrl.StopInstances(callCtx, region, ids)
	}
	if err != nil {
		e.log.Warn("control call failed",
			logx.String("region", region),
			logx.String("target", target.String()),
			logx.Int("instances", len(ids)),
			logx.Err(err),
		)
		out := make([]fleet.TickOutcome, 0, len(ids))
		for _, id := range ids {
			out = append(out, e.failed(id, byID, err.Error()))
		}
		return out
	}

	acked := make(map[string]fleet.StateChange, len(changes))
	for _, ch := range changes {
		acked[ch.InstanceID] = ch
	}

	out := make([]fleet.TickOutcome, 0, len(ids))
	for _, id := range ids {
		in := byID[id]
		ch, ok := acked[id]
		if !ok {
			out = append(out, e.failed(id, byID, "no state change in provider response"))
			continue
		}
		oc := fleet.TickOutcome{
			InstanceID: id,
			Region:     in.Region,
			Result:     fleet.ResultSucceeded,
			Intent:     &in,
		}
		// Lost a race: something else moved the instance first. Not an error.
		if ch.Previous == target {
			oc.Result = fleet.ResultSkipped
			oc.Detail = fmt.Sprintf("already %s before the call", target)
		}
		out = append(out, oc)
	}
	return out
}

func (e *Executor) failed(id string, byID map[string]fleet.TransitionIntent, detail string) fleet.TickOutcome {
	in := byID[id]
	return fleet.TickOutcome{
		InstanceID: id,
		Region:     in.Region,
		Result:     fleet.ResultFailed,
		Intent:     &in,
		Detail:     detail,
	}
}

// abandoned marks a batch the tick budget cut off. The instances are safe:
// the next tick re-derives their intents from fresh inventory.
func (e *Executor) abandoned(ids []string, byID map[string]fleet.TransitionIntent, cause error) []fleet.TickOutcome {
	out := make([]fleet.TickOutcome, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.failed(id, byID, fmt.Sprintf("abandoned: %v", cause)))
	}
	return out
}

func splitBatches(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	return append(out, ids)
}
