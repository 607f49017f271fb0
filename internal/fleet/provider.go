package fleet

import "context"

// StateChange is the provider's acknowledgement of a start/stop call for a
// single instance. Previous equal to the requested target means the call was
// a no-op race (the instance was already where we wanted it).
type StateChange struct {
	InstanceID string
	Previous   PowerState
	Current    PowerState
}

// Inventory enumerates regions and the scheduled instances within them.
//
// Implementations must honor ctx cancellation and apply their own per-call
// timeouts; a failed region enumeration is reported and skipped for the tick,
// it never aborts other regions.
type Inventory interface {
	// Regions returns the regions to inspect this tick.
	Regions(ctx context.Context) ([]string, error)
	// ScheduledInstances returns every non-terminated instance in the region
	// that carries at least one schedule tag.
	ScheduledInstances(ctx context.Context, region string) ([]InstanceRecord, error)
}

// Controller issues power-state transitions against one region's control API.
// Both calls are idempotent from the caller's perspective: starting a running
// instance or stopping a stopped one is a no-op surfaced via StateChange.
type Controller interface {
	StartInstances(ctx context.Context, region string, ids []string) ([]StateChange, error)
	StopInstances(ctx context.Context, region string, ids []string) ([]StateChange, error)
}

// Provider is the full cloud-provider surface the tick pipeline needs.
type Provider interface {
	Inventory
	Controller
}
