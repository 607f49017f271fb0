package config

// Config is the on-disk configuration (YAML or JSON).
//
// All durations are Go duration strings (e.g. "30s", "1m"). Unknown keys are
// rejected so typos surface at load time instead of silently defaulting.
type Config struct {
	// Interval is the nominal timer interval between ticks. Must be at
	// least one minute, the evaluator's granularity.
	Interval string `json:"interval,omitempty"`

	// ToleranceWindow is the backward-looking slack used when evaluating
	// schedules, so a delayed or skipped tick does not lose a fire.
	// Defaults to interval plus a 30s safety margin. Keeping it no larger
	// than one interval avoids double fires.
	ToleranceWindow string `json:"tolerance_window,omitempty"`

	// TickBudget bounds one whole tick. Work cut off by the budget is
	// picked up by the next tick.
	TickBudget string `json:"tick_budget,omitempty"`

	// DefaultTimezone is the IANA zone schedules are evaluated in.
	DefaultTimezone string `json:"default_timezone,omitempty"`

	// Regions statically overrides region discovery. Empty means discover
	// all enabled regions from the provider each tick.
	Regions []string `json:"regions,omitempty"`

	// TieBreak is "stop" or "start": which polarity wins when equally
	// specific descriptors of both polarities fire together.
	TieBreak string `json:"tie_break,omitempty"`

	Tags     TagsConfig     `json:"tags"`
	Executor ExecutorConfig `json:"executor"`
	Logging  LoggingConfig  `json:"logging"`
}

// TagsConfig names the instance tag keys that carry schedule expressions.
// An instance missing a key simply never fires that polarity.
type TagsConfig struct {
	Start string `json:"start,omitempty"`
	Stop  string `json:"stop,omitempty"`
}

// ExecutorConfig bounds control-API usage per region.
type ExecutorConfig struct {
	ConcurrencyCap int    `json:"concurrency_cap,omitempty"`
	RatePerSec     int    `json:"rate_per_sec,omitempty"`
	CallTimeout    string `json:"call_timeout,omitempty"`
	BatchSize      int    `json:"batch_size,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}
