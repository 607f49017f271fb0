// Package schedule parses per-instance cron schedule tags and evaluates
// whether they fire at a given instant.
//
// A Descriptor pairs one five-field cron expression with the power-state
// polarity it drives (start or stop). Polarity is determined by the tag key
// the expression was read from, never by the expression text. Evaluation is
// pure: given the same descriptor, instant and tolerance window, FiresAt
// always returns the same answer.
package schedule
