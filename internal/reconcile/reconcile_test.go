package reconcile

import (
	"testing"
	"time"

	"fleetsched/internal/fleet"
	"fleetsched/internal/schedule"
)

func testReconciler() Reconciler {
	return Reconciler{
		Tolerance:   time.Minute,
		TieBreak:    schedule.PolarityStop,
		StartTagKey: "fleetsched:start",
		StopTagKey:  "fleetsched:stop",
	}
}

func record(state fleet.PowerState, startTag, stopTag string) fleet.InstanceRecord {
	return fleet.InstanceRecord{
		ID:       "i-0123456789abcdef0",
		Region:   "eu-west-1",
		State:    state,
		StartTag: startTag,
		StopTag:  stopTag,
	}
}

// Daily stop schedule at 18:00, instance running at 18:00.
func TestStopScheduleEmitsStopIntent(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 4, 1, 18, 0, 0, 0, time.UTC)
	dec := testReconciler().Reconcile(record(fleet.StateRunning, "", "0 18 * * *"), now)

	if dec.Intent == nil {
		t.Fatal("expected a transition intent")
	}
	if dec.Intent.To != fleet.StateStopped || dec.Intent.From != fleet.StateRunning {
		t.Fatalf("intent %v, want running->stopped", dec.Intent)
	}
	if dec.Outcome != nil {
		t.Fatalf("unexpected outcome %v alongside intent", dec.Outcome)
	}
}

// Start "0 8 * * 1-5" and stop "0 8 * * *" both fire Monday 08:00: equally
// specific, so the stop tie-break wins.
func TestConflictingFiresResolveToStop(t *testing.T) {
	t.Parallel()
	monday8 := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	dec := testReconciler().Reconcile(record(fleet.StateRunning, "0 8 * * 1-5", "0 8 * * *"), monday8)

	if dec.Intent == nil || dec.Intent.To != fleet.StateStopped {
		t.Fatalf("decision %+v, want stop intent", dec)
	}
	if !hasNote(dec.Notes, NoteAmbiguousSchedule) {
		t.Fatal("expected an ambiguous-schedule note")
	}
}

// A strictly more specific start pattern beats a broader stop pattern.
func TestMoreSpecificDescriptorWins(t *testing.T) {
	t.Parallel()
	at := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	dec := testReconciler().Reconcile(record(fleet.StateStopped, "0 8 1 4 1", "* * * * *"), at)

	if dec.Intent == nil || dec.Intent.To != fleet.StateRunning {
		t.Fatalf("decision %+v, want start intent", dec)
	}
}

// Instance already stopped when the stop schedule fires: skip, no intent.
func TestAlreadyInTargetStateSkips(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 4, 1, 18, 0, 0, 0, time.UTC)
	dec := testReconciler().Reconcile(record(fleet.StateStopped, "", "0 18 * * *"), now)

	if dec.Intent != nil {
		t.Fatalf("unexpected intent %v", dec.Intent)
	}
	if dec.Outcome == nil || dec.Outcome.Result != fleet.ResultSkipped {
		t.Fatalf("outcome %+v, want skipped", dec.Outcome)
	}
}

// Observed mid-transition: deferred no matter what fires.
func TestTransitioningInstanceIsDeferred(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 4, 1, 18, 0, 0, 0, time.UTC)
	for _, state := range []fleet.PowerState{fleet.StateTransitioning, fleet.StateUnknown} {
		dec := testReconciler().Reconcile(record(state, "", "0 18 * * *"), now)
		if dec.Intent != nil {
			t.Fatalf("state %s: unexpected intent %v", state, dec.Intent)
		}
		if dec.Outcome == nil || dec.Outcome.Result != fleet.ResultDeferred {
			t.Fatalf("state %s: outcome %+v, want deferred", state, dec.Outcome)
		}
	}
}

// A malformed expression is scoped to its descriptor; the valid one on the
// same instance still drives the transition.
func TestMalformedExpressionDoesNotAbortInstance(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 4, 1, 18, 0, 0, 0, time.UTC)
	dec := testReconciler().Reconcile(record(fleet.StateRunning, "99 * * * *", "0 18 * * *"), now)

	if !hasNote(dec.Notes, NoteMalformedExpression) {
		t.Fatal("expected a malformed-expression note")
	}
	if dec.Intent == nil || dec.Intent.To != fleet.StateStopped {
		t.Fatalf("decision %+v, want stop intent from the valid descriptor", dec)
	}
}

func TestNoFiringDescriptorMeansNoAction(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 4, 1, 12, 30, 0, 0, time.UTC)
	dec := testReconciler().Reconcile(record(fleet.StateRunning, "0 8 * * *", "0 18 * * *"), now)

	if dec.Intent != nil || dec.Outcome != nil {
		t.Fatalf("decision %+v, want empty", dec)
	}
}

func TestInstanceWithoutTagsIsIgnored(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 4, 1, 18, 0, 0, 0, time.UTC)
	dec := testReconciler().Reconcile(record(fleet.StateRunning, "", ""), now)
	if dec.Intent != nil || dec.Outcome != nil || len(dec.Notes) != 0 {
		t.Fatalf("decision %+v, want empty", dec)
	}
}

// Tie-break must be pure and total: same inputs, same resolved target, no
// matter how often or in what tag order it runs.
func TestResolutionIsDeterministic(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	r := testReconciler()

	first := r.Reconcile(record(fleet.StateRunning, "0 8 * * 1-5; 0 8 * * *", "0 8 * * 1,2"), now)
	if first.Intent == nil {
		t.Fatal("expected an intent")
	}
	for i := 0; i < 50; i++ {
		dec := r.Reconcile(record(fleet.StateRunning, "0 8 * * 1-5; 0 8 * * *", "0 8 * * 1,2"), now)
		if dec.Intent == nil || dec.Intent.To != first.Intent.To || dec.Intent.Reason != first.Intent.Reason {
			t.Fatalf("run %d resolved differently: %+v vs %+v", i, dec.Intent, first.Intent)
		}
	}
}

// Configurable tie-break: with start precedence the same conflict resolves
// the other way.
func TestTieBreakIsConfigurable(t *testing.T) {
	t.Parallel()
	monday8 := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	r := testReconciler()
	r.TieBreak = schedule.PolarityStart

	dec := r.Reconcile(record(fleet.StateStopped, "0 8 * * 1-5", "0 8 * * *"), monday8)
	if dec.Intent == nil || dec.Intent.To != fleet.StateRunning {
		t.Fatalf("decision %+v, want start intent under start precedence", dec)
	}
}

func hasNote(notes []Note, kind NoteKind) bool {
	for _, n := range notes {
		if n.Kind == kind {
			return true
		}
	}
	return false
}
