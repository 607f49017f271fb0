package awsec2

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"fleetsched/internal/fleet"
	logx "fleetsched/pkg/logx"
)

func TestPowerStateMapping(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   ec2types.InstanceStateName
		want fleet.PowerState
	}{
		{ec2types.InstanceStateNameRunning, fleet.StateRunning},
		{ec2types.InstanceStateNameStopped, fleet.StateStopped},
		{ec2types.InstanceStateNamePending, fleet.StateTransitioning},
		{ec2types.InstanceStateNameStopping, fleet.StateTransitioning},
		{ec2types.InstanceStateNameShuttingDown, fleet.StateTransitioning},
		{ec2types.InstanceStateName("weird"), fleet.StateUnknown},
	}
	for _, tt := range tests {
		if got := powerState(tt.in); got != tt.want {
			t.Fatalf("powerState(%s) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRecordExtraction(t *testing.T) {
	t.Parallel()
	p := NewFromConfig(aws.Config{}, Options{
		StartTagKey: "sched:up",
		StopTagKey:  "sched:down",
	}, logx.Nop())

	inst := ec2types.Instance{
		InstanceId: aws.String("i-abc"),
		State:      &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
		Tags: []ec2types.Tag{
			{Key: aws.String("Name"), Value: aws.String("worker-1")},
			{Key: aws.String("sched:up"), Value: aws.String("0 8 * * 1-5")},
			{Key: aws.String("sched:down"), Value: aws.String("0 18 * * *")},
			{Key: aws.String("team"), Value: aws.String("data")},
		},
	}

	rec, ok := p.record("eu-west-1", inst)
	if !ok {
		t.Fatal("record dropped")
	}
	if rec.ID != "i-abc" || rec.Region != "eu-west-1" || rec.Name != "worker-1" {
		t.Fatalf("record %+v", rec)
	}
	if rec.State != fleet.StateRunning {
		t.Fatalf("State = %v, want running", rec.State)
	}
	if rec.StartTag != "0 8 * * 1-5" || rec.StopTag != "0 18 * * *" {
		t.Fatalf("tags %q/%q", rec.StartTag, rec.StopTag)
	}
}

func TestRecordSkipsTerminated(t *testing.T) {
	t.Parallel()
	p := NewFromConfig(aws.Config{}, Options{}, logx.Nop())
	inst := ec2types.Instance{
		InstanceId: aws.String("i-dead"),
		State:      &ec2types.InstanceState{Name: ec2types.InstanceStateNameTerminated},
	}
	if _, ok := p.record("eu-west-1", inst); ok {
		t.Fatal("terminated instance should be dropped")
	}
}

func TestStateChangesConversion(t *testing.T) {
	t.Parallel()
	in := []ec2types.InstanceStateChange{
		{
			InstanceId:    aws.String("i-1"),
			PreviousState: &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
			CurrentState:  &ec2types.InstanceState{Name: ec2types.InstanceStateNameStopping},
		},
		{InstanceId: nil},
	}
	out := stateChanges(in)
	if len(out) != 1 {
		t.Fatalf("got %d changes, want 1", len(out))
	}
	if out[0].Previous != fleet.StateRunning || out[0].Current != fleet.StateTransitioning {
		t.Fatalf("change %+v", out[0])
	}
}
