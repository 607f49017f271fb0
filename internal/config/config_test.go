package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fleetsched/internal/schedule"
)

func TestResolveDefaults(t *testing.T) {
	t.Parallel()
	var cfg Config
	s, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if s.Interval != time.Minute {
		t.Fatalf("Interval = %v, want 1m", s.Interval)
	}
	if s.Tolerance != time.Minute+30*time.Second {
		t.Fatalf("Tolerance = %v, want interval+30s", s.Tolerance)
	}
	if s.Location.String() != "UTC" {
		t.Fatalf("Location = %v, want UTC", s.Location)
	}
	if s.TieBreak != schedule.PolarityStop {
		t.Fatalf("TieBreak = %v, want stop", s.TieBreak)
	}
	if s.StartTagKey == "" || s.StopTagKey == "" || s.StartTagKey == s.StopTagKey {
		t.Fatalf("tag keys %q/%q invalid", s.StartTagKey, s.StopTagKey)
	}
}

func TestResolveRejectsBadValues(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "sub-minute interval", cfg: Config{Interval: "10s"}},
		{name: "bad duration", cfg: Config{Interval: "soon"}},
		{name: "negative duration", cfg: Config{TickBudget: "-5s"}},
		{name: "unknown timezone", cfg: Config{DefaultTimezone: "Mars/Olympus"}},
		{name: "bad tie break", cfg: Config{TieBreak: "coinflip"}},
		{name: "identical tag keys", cfg: Config{Tags: TagsConfig{Start: "sched", Stop: "sched"}}},
		{name: "oversized batch", cfg: Config{Executor: ExecutorConfig{BatchSize: 500}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.cfg.Resolve(); err == nil {
				t.Fatalf("Resolve(%+v) succeeded, want error", tt.cfg)
			}
		})
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
interval: 1m
tolerance_window: 90s
default_timezone: Europe/Amsterdam
tie_break: start
regions:
  - eu-west-1
  - us-east-1
tags:
  start: "sched:up"
  stop: "sched:down"
executor:
  concurrency_cap: 8
  call_timeout: 10s
logging:
  level: debug
  console: true
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	s, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if s.Tolerance != 90*time.Second {
		t.Fatalf("Tolerance = %v, want 90s", s.Tolerance)
	}
	if s.TieBreak != schedule.PolarityStart {
		t.Fatalf("TieBreak = %v, want start", s.TieBreak)
	}
	if len(s.Regions) != 2 || s.Regions[0] != "eu-west-1" {
		t.Fatalf("Regions = %v", s.Regions)
	}
	if s.StartTagKey != "sched:up" || s.StopTagKey != "sched:down" {
		t.Fatalf("tag keys %q/%q", s.StartTagKey, s.StopTagKey)
	}
	if s.ConcurrencyCap != 8 || s.CallTimeout != 10*time.Second {
		t.Fatalf("executor settings %+v", s)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("intervall: 1m\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"interval": "2m", "regions": ["us-east-1"]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	s, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if s.Interval != 2*time.Minute || len(s.Regions) != 1 {
		t.Fatalf("settings %+v", s)
	}
}

func TestLoadRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"interval": "2m"} {"interval": "3m"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Interval: "1m", Regions: []string{"eu-west-1"}}
	newCfg := &Config{
		Interval: "2m",
		Regions:  []string{"eu-west-1"},
		Executor: ExecutorConfig{ConcurrencyCap: 8},
	}

	changed, attrs := SummarizeChange(oldCfg, newCfg)
	want := []string{"executor", "scheduler"}
	if len(changed) != len(want) || changed[0] != want[0] || changed[1] != want[1] {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
	if len(attrs) == 0 {
		t.Fatal("no attrs for changed sections")
	}

	if changed, _ := SummarizeChange(newCfg, newCfg); len(changed) != 0 {
		t.Fatalf("identical configs reported changes: %v", changed)
	}
}

func TestWatchPublishesValidatedReload(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	write := func(data string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("interval: 1m\n")

	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	m.SetValidator(func(c *Config) error {
		_, err := c.Resolve()
		return err
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()

	updates := m.Subscribe(1)
	defer m.Unsubscribe(updates)

	// The watcher registers asynchronously; rewrite until the reload lands.
	// Retries are spaced wider than the manager's debounce so a pending
	// reload is never pushed back by the next write.
	var got *Config
	deadline := time.After(10 * time.Second)
	retry := time.NewTicker(600 * time.Millisecond)
	defer retry.Stop()
	for got == nil {
		select {
		case got = <-updates:
		case <-retry.C:
			write("interval: 2m\n")
		case <-deadline:
			t.Fatal("no reload published")
		}
	}
	if got.Interval != "2m" {
		t.Fatalf("published interval %q, want 2m", got.Interval)
	}

	// An edit the validator rejects is dropped; the committed config stays.
	write("interval: 10s\n")
	select {
	case cfg := <-updates:
		t.Fatalf("rejected config was published: %+v", cfg)
	case <-time.After(1500 * time.Millisecond):
	}
	if got := m.Get().Interval; got != "2m" {
		t.Fatalf("committed interval %q after rejected edit, want 2m", got)
	}

	cancel()
	<-done
}
