package awsec2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"fleetsched/internal/fleet"
)

// StartInstances issues one batched start call. EC2 treats starting an
// already-running instance as a no-op; the returned state changes let the
// caller tell those races apart.
func (p *Provider) StartInstances(ctx context.Context, region string, ids []string) ([]fleet.StateChange, error) {
	out, err := p.client(region).StartInstances(ctx, &ec2.StartInstancesInput{
		InstanceIds: ids,
	})
	if err != nil {
		return nil, fmt.Errorf("start instances in %s: %w", region, err)
	}
	return stateChanges(out.StartingInstances), nil
}

// StopInstances issues one batched stop call, with the same no-op semantics.
func (p *Provider) StopInstances(ctx context.Context, region string, ids []string) ([]fleet.StateChange, error) {
	out, err := p.client(region).StopInstances(ctx, &ec2.StopInstancesInput{
		InstanceIds: ids,
	})
	if err != nil {
		return nil, fmt.Errorf("stop instances in %s: %w", region, err)
	}
	return stateChanges(out.StoppingInstances), nil
}

func stateChanges(changes []ec2types.InstanceStateChange) []fleet.StateChange {
	out := make([]fleet.StateChange, 0, len(changes))
	for _, ch := range changes {
		if ch.InstanceId == nil {
			continue
		}
		sc := fleet.StateChange{InstanceID: *ch.InstanceId}
		if ch.PreviousState != nil {
			sc.Previous = powerState(ch.PreviousState.Name)
		}
		if ch.CurrentState != nil {
			sc.Current = powerState(ch.CurrentState.Name)
		}
		out = append(out, sc)
	}
	return out
}
