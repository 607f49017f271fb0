// Lambda entrypoint: the external timer is an EventBridge rule invoking this
// handler once per interval. Each invocation is exactly one tick.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"fleetsched/internal/app"
	logx "fleetsched/pkg/logx"
)

// Response is the invocation result surfaced to EventBridge/CloudWatch.
type Response struct {
	Regions   int `json:"regions"`
	Instances int `json:"instances"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Deferred  int `json:"deferred"`

	RegionFailures []string `json:"region_failures,omitempty"`
}

// bootLog covers failures before the app's own logging is up; CloudWatch
// captures stdout either way.
var bootLog = logx.NewConsole(os.Getenv("FLEETSCHED_LOG_LEVEL"))

func handler(ctx context.Context) (Response, error) {
	cfgPath := os.Getenv("FLEETSCHED_CONFIG")
	if cfgPath == "" {
		cfgPath = "./config.yaml"
	}

	a, err := app.New(cfgPath)
	if err != nil {
		bootLog.Error("config load failed", logx.String("path", cfgPath), logx.Err(err))
		return Response{}, err
	}
	rep, err := a.RunOnce(ctx)
	if err != nil {
		bootLog.Error("tick failed", logx.Err(err))
		return Response{}, err
	}

	resp := Response{
		Regions:   rep.Regions,
		Instances: rep.Instances,
		Succeeded: rep.Succeeded,
		Failed:    rep.Failed,
		Skipped:   rep.Skipped,
		Deferred:  rep.Deferred,
	}
	for _, rf := range rep.RegionFailures {
		resp.RegionFailures = append(resp.RegionFailures, rf.Region+": "+rf.Err)
	}
	return resp, nil
}

func main() {
	lambda.Start(handler)
}
