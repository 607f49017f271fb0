package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"

	"fleetsched/internal/app"
	"fleetsched/internal/eventbus"
	"fleetsched/internal/report"
)

func main() {
	var (
		cfgPath string
		once    bool
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.BoolVar(&once, "once", false, "run a single tick and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	if once {
		rep, err := a.RunOnce(ctx)
		if err != nil {
			fmt.Println("fatal tick:", err)
			os.Exit(1)
		}
		if !rep.Clean() {
			os.Exit(1)
		}
		return
	}

	events, stop := a.Bus().Subscribe(4,
		eventbus.EventTickReport, eventbus.EventRegionFailed)
	go statusLoop(ctx, events)

	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}

	<-ctx.Done()
	stop()
	_ = a.Stop(context.Background())
}

// statusLoop mirrors tick results into the systemd status line, so
// `systemctl status fleetsched` shows fleet health without digging in logs.
func statusLoop(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch data := ev.Data.(type) {
			case report.Report:
				_, _ = daemon.SdNotify(false, fmt.Sprintf(
					"STATUS=tick %s: %d regions, %d instances, %d transitioned, %d failed",
					data.Tick.Format("15:04"), data.Regions, data.Instances,
					data.Succeeded, data.Failed))
			case report.RegionFailure:
				_, _ = daemon.SdNotify(false, fmt.Sprintf(
					"STATUS=region %s unreachable: %s", data.Region, data.Err))
			}
		}
	}
}
