package config

import (
	"fmt"
	"strings"
	"time"

	"fleetsched/internal/schedule"
)

// Settings is the resolved runtime form of Config: durations parsed,
// timezone loaded, defaults applied. Resolve validates as it goes, so a
// Settings value is always usable.
type Settings struct {
	Interval  time.Duration
	Tolerance time.Duration
	Budget    time.Duration
	Location  *time.Location
	Regions   []string
	TieBreak  schedule.Polarity

	StartTagKey string
	StopTagKey  string

	ConcurrencyCap int
	RatePerSec     int
	CallTimeout    time.Duration
	BatchSize      int
}

const (
	defaultInterval   = time.Minute
	defaultMargin     = 30 * time.Second
	defaultBudget     = 10 * time.Minute
	defaultStartTag   = "fleetsched:start"
	defaultStopTag    = "fleetsched:stop"
	defaultCallLimit  = 30 * time.Second
	defaultBatchLimit = 50
)

// durationOr parses a duration field, substituting def when the field is
// empty or zero. Every duration here is a deadline or window, so negatives
// are rejected rather than defaulted away.
func durationOr(name, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", name, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %q", name, raw)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}

// Resolve validates cfg and fills in defaults.
func (c *Config) Resolve() (Settings, error) {
	var s Settings
	var err error

	if s.Interval, err = durationOr("interval", c.Interval, defaultInterval); err != nil {
		return s, err
	}
	if s.Interval < time.Minute {
		return s, fmt.Errorf("interval: %s is below the minute granularity schedules support", s.Interval)
	}

	if s.Tolerance, err = durationOr("tolerance_window", c.ToleranceWindow, s.Interval+defaultMargin); err != nil {
		return s, err
	}
	if s.Budget, err = durationOr("tick_budget", c.TickBudget, defaultBudget); err != nil {
		return s, err
	}

	tz := strings.TrimSpace(c.DefaultTimezone)
	if tz == "" {
		tz = "UTC"
	}
	if s.Location, err = time.LoadLocation(tz); err != nil {
		return s, fmt.Errorf("default_timezone: unknown zone %q: %w", tz, err)
	}

	switch strings.ToLower(strings.TrimSpace(c.TieBreak)) {
	case "", "stop":
		s.TieBreak = schedule.PolarityStop
	case "start":
		s.TieBreak = schedule.PolarityStart
	default:
		return s, fmt.Errorf("tie_break: %q is not \"stop\" or \"start\"", c.TieBreak)
	}

	s.Regions = append([]string(nil), c.Regions...)

	s.StartTagKey = strings.TrimSpace(c.Tags.Start)
	if s.StartTagKey == "" {
		s.StartTagKey = defaultStartTag
	}
	s.StopTagKey = strings.TrimSpace(c.Tags.Stop)
	if s.StopTagKey == "" {
		s.StopTagKey = defaultStopTag
	}
	if s.StartTagKey == s.StopTagKey {
		return s, fmt.Errorf("tags: start and stop keys are both %q", s.StartTagKey)
	}

	s.ConcurrencyCap = c.Executor.ConcurrencyCap
	if s.ConcurrencyCap < 0 {
		return s, fmt.Errorf("executor.concurrency_cap: must be >= 0")
	}
	s.RatePerSec = c.Executor.RatePerSec
	if s.RatePerSec < 0 {
		return s, fmt.Errorf("executor.rate_per_sec: must be >= 0")
	}
	if s.CallTimeout, err = durationOr("executor.call_timeout", c.Executor.CallTimeout, defaultCallLimit); err != nil {
		return s, err
	}
	s.BatchSize = c.Executor.BatchSize
	if s.BatchSize < 0 || s.BatchSize > defaultBatchLimit {
		return s, fmt.Errorf("executor.batch_size: must be between 0 and %d", defaultBatchLimit)
	}

	return s, nil
}
