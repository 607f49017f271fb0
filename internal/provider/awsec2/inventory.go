package awsec2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"fleetsched/internal/fleet"
	logx "fleetsched/pkg/logx"
)

// Regions returns every region enabled for the account.
func (p *Provider) Regions(ctx context.Context) ([]string, error) {
	cctx, cancel := p.callCtx(ctx)
	defer cancel()

	// Region metadata lives behind any regional endpoint; the base config's
	// default region serves.
	out, err := p.client("").DescribeRegions(cctx, &ec2.DescribeRegionsInput{})
	if err != nil {
		return nil, fmt.Errorf("describe regions: %w", err)
	}

	regions := make([]string, 0, len(out.Regions))
	for _, r := range out.Regions {
		if r.RegionName != nil {
			regions = append(regions, *r.RegionName)
		}
	}
	return regions, nil
}

// ScheduledInstances lists every non-terminated instance in the region that
// carries at least one schedule tag. Raw tag values are returned untouched;
// expression parsing is the reconciler's job.
func (p *Provider) ScheduledInstances(ctx context.Context, region string) ([]fleet.InstanceRecord, error) {
	input := &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{
				Name:   aws.String("tag-key"),
				Values: []string{p.opts.StartTagKey, p.opts.StopTagKey},
			},
		},
	}

	var records []fleet.InstanceRecord
	pager := ec2.NewDescribeInstancesPaginator(p.client(region), input)
	for pager.HasMorePages() {
		cctx, cancel := p.callCtx(ctx)
		page, err := pager.NextPage(cctx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("describe instances in %s: %w", region, err)
		}
		for _, res := range page.Reservations {
			for _, inst := range res.Instances {
				rec, ok := p.record(region, inst)
				if !ok {
					continue
				}
				records = append(records, rec)
			}
		}
	}

	p.log.Debug("inventory collected",
		logx.String("region", region),
		logx.Int("instances", len(records)),
	)
	return records, nil
}

func (p *Provider) record(region string, inst ec2types.Instance) (fleet.InstanceRecord, bool) {
	if inst.InstanceId == nil || inst.State == nil {
		return fleet.InstanceRecord{}, false
	}
	// Terminated instances can linger in listings for a while; they have no
	// power state worth reconciling.
	if inst.State.Name == ec2types.InstanceStateNameTerminated {
		return fleet.InstanceRecord{}, false
	}

	rec := fleet.InstanceRecord{
		ID:     *inst.InstanceId,
		Region: region,
		State:  powerState(inst.State.Name),
	}
	for _, tag := range inst.Tags {
		if tag.Key == nil || tag.Value == nil {
			continue
		}
		switch *tag.Key {
		case p.opts.StartTagKey:
			rec.StartTag = *tag.Value
		case p.opts.StopTagKey:
			rec.StopTag = *tag.Value
		case "Name":
			rec.Name = *tag.Value
		}
	}
	return rec, true
}
