package config

import (
	"reflect"
	"sort"
	"strings"

	logx "fleetsched/pkg/logx"
)

// SummarizeChange returns (1) a compact list of changed sections and
// (2) structured attrs describing the new values, for the reload log line.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 12)

	// Scheduler (timer, evaluation window, timezone, tie-break)
	if strings.TrimSpace(oldCfg.Interval) != strings.TrimSpace(newCfg.Interval) ||
		strings.TrimSpace(oldCfg.ToleranceWindow) != strings.TrimSpace(newCfg.ToleranceWindow) ||
		strings.TrimSpace(oldCfg.TickBudget) != strings.TrimSpace(newCfg.TickBudget) ||
		strings.TrimSpace(oldCfg.DefaultTimezone) != strings.TrimSpace(newCfg.DefaultTimezone) ||
		strings.TrimSpace(oldCfg.TieBreak) != strings.TrimSpace(newCfg.TieBreak) {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.interval", strings.TrimSpace(newCfg.Interval)),
			logx.String("scheduler.tolerance_window", strings.TrimSpace(newCfg.ToleranceWindow)),
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.DefaultTimezone)),
			logx.String("scheduler.tie_break", strings.TrimSpace(newCfg.TieBreak)),
		)
	}

	// Regions (static list vs discovery)
	if !reflect.DeepEqual(oldCfg.Regions, newCfg.Regions) {
		changed = append(changed, "regions")
		attrs = append(attrs,
			logx.Int("regions.count", len(newCfg.Regions)),
			logx.Bool("regions.discovery", len(newCfg.Regions) == 0),
		)
	}

	// Tags (which instance tag keys carry schedules)
	if strings.TrimSpace(oldCfg.Tags.Start) != strings.TrimSpace(newCfg.Tags.Start) ||
		strings.TrimSpace(oldCfg.Tags.Stop) != strings.TrimSpace(newCfg.Tags.Stop) {
		changed = append(changed, "tags")
		attrs = append(attrs,
			logx.String("tags.start", strings.TrimSpace(newCfg.Tags.Start)),
			logx.String("tags.stop", strings.TrimSpace(newCfg.Tags.Stop)),
		)
	}

	// Executor (control-API limits)
	if oldCfg.Executor != newCfg.Executor {
		changed = append(changed, "executor")
		attrs = append(attrs,
			logx.Int("executor.concurrency_cap", newCfg.Executor.ConcurrencyCap),
			logx.Int("executor.rate_per_sec", newCfg.Executor.RatePerSec),
			logx.String("executor.call_timeout", strings.TrimSpace(newCfg.Executor.CallTimeout)),
			logx.Int("executor.batch_size", newCfg.Executor.BatchSize),
		)
	}

	// Logging
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
