package awsec2

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"fleetsched/internal/fleet"
	logx "fleetsched/pkg/logx"
)

// Options tunes the provider. Tag keys select which instances count as
// scheduled; CallTimeout bounds each inventory API call.
type Options struct {
	StartTagKey string
	StopTagKey  string
	CallTimeout time.Duration
}

// Provider implements fleet.Provider against the EC2 control plane.
//
// The control API is region-scoped, so clients are created lazily per region
// from one base credential config and cached for the process lifetime.
type Provider struct {
	base aws.Config
	opts Options
	log  logx.Logger

	mu      sync.Mutex
	clients map[string]*ec2.Client
}

// New loads the default AWS credential chain and builds a provider.
func New(ctx context.Context, opts Options, log logx.Logger) (*Provider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg, opts, log), nil
}

// NewFromConfig builds a provider from an existing aws.Config.
func NewFromConfig(cfg aws.Config, opts Options, log logx.Logger) *Provider {
	return &Provider{
		base:    cfg,
		opts:    opts,
		log:     log,
		clients: map[string]*ec2.Client{},
	}
}

func (p *Provider) client(region string) *ec2.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[region]; ok {
		return c
	}
	c := ec2.NewFromConfig(p.base, func(o *ec2.Options) {
		if region != "" {
			o.Region = region
		}
	})
	p.clients[region] = c
	return c
}

func (p *Provider) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opts.CallTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.opts.CallTimeout)
}

// powerState maps EC2 instance states onto the scheduler's model. In-flight
// provider states are all "transitioning" so the reconciler defers them.
func powerState(name ec2types.InstanceStateName) fleet.PowerState {
	switch name {
	case ec2types.InstanceStateNameRunning:
		return fleet.StateRunning
	case ec2types.InstanceStateNameStopped:
		return fleet.StateStopped
	case ec2types.InstanceStateNamePending,
		ec2types.InstanceStateNameStopping,
		ec2types.InstanceStateNameShuttingDown:
		return fleet.StateTransitioning
	default:
		return fleet.StateUnknown
	}
}
