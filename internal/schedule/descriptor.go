package schedule

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Polarity is the power-state a descriptor drives when it fires.
type Polarity int

const (
	PolarityStart Polarity = iota
	PolarityStop
)

func (p Polarity) String() string {
	if p == PolarityStop {
		return "stop"
	}
	return "start"
}

// ErrMalformedExpression marks schedule expressions that failed to parse.
// Use errors.Is to test for it.
var ErrMalformedExpression = errors.New("malformed schedule expression")

// ParseError wraps a cron parse failure with the expression and the tag it
// came from, so reports can point operators at the exact bad tag value.
type ParseError struct {
	Expression string
	SourceTag  string
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("tag %s: malformed expression %q: %v", e.SourceTag, e.Expression, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrMalformedExpression }

// fiveField accepts the conventional five-field cron syntax
// (minute hour day-of-month month day-of-week) with *, values, lists,
// ranges and steps. No @descriptors: polarity comes from the tag key, and
// shorthand like @daily would hide which key fired.
var fiveField = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Descriptor is one parsed schedule expression plus the polarity it controls.
// Immutable once parsed.
type Descriptor struct {
	Polarity   Polarity
	Expression string
	SourceTag  string

	// wildcards counts fields that do not pin a single exact value; fewer
	// means a more specific pattern and wins the reconciler's tie-break.
	wildcards int
	sched     cron.Schedule
}

// Wildcards reports how many of the five fields are non-exact: bare "*",
// steps, ranges and lists all count, since none of them pins one value.
func (d Descriptor) Wildcards() int { return d.wildcards }

func (d Descriptor) String() string {
	return fmt.Sprintf("%s=%q", d.SourceTag, d.Expression)
}

// Parse validates a single cron expression and binds it to a polarity.
//
// The parser never infers polarity from the expression text; it is derived
// entirely from which tag key the expression was read from.
func Parse(expr string, polarity Polarity, sourceTag string) (Descriptor, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Descriptor{}, &ParseError{Expression: expr, SourceTag: sourceTag, Err: errors.New("empty expression")}
	}
	if n := len(strings.Fields(expr)); n != 5 {
		return Descriptor{}, &ParseError{
			Expression: expr,
			SourceTag:  sourceTag,
			Err:        fmt.Errorf("expected 5 fields, got %d", n),
		}
	}
	sched, err := fiveField.Parse(expr)
	if err != nil {
		return Descriptor{}, &ParseError{Expression: expr, SourceTag: sourceTag, Err: err}
	}
	return Descriptor{
		Polarity:   polarity,
		Expression: expr,
		SourceTag:  sourceTag,
		wildcards:  countWildcards(expr),
		sched:      sched,
	}, nil
}

// ParseTag parses a raw tag value holding one or more expressions.
//
// Each expression is parsed independently: a malformed entry contributes a
// ParseError without discarding the valid entries around it.
func ParseTag(raw string, polarity Polarity, sourceTag string) ([]Descriptor, []error) {
	var (
		descs []Descriptor
		errs  []error
	)
	for _, expr := range SplitTag(raw) {
		d, err := Parse(expr, polarity, sourceTag)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		descs = append(descs, d)
	}
	return descs, errs
}

// SplitTag splits a tag value into candidate expressions.
//
// Expressions are separated by ";". A comma is also accepted as a separator,
// but only when every comma-delimited piece is itself a full five-field
// expression; otherwise commas are left alone so list syntax inside a field
// ("0 8 * * 1,5") keeps working.
func SplitTag(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ";")
	if len(parts) == 1 && strings.Contains(raw, ",") {
		cand := strings.Split(raw, ",")
		full := true
		for _, c := range cand {
			if len(strings.Fields(c)) != 5 {
				full = false
				break
			}
		}
		if full {
			parts = cand
		}
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func countWildcards(expr string) int {
	n := 0
	for _, f := range strings.Fields(expr) {
		if strings.ContainsAny(f, "*-/,") {
			n++
		}
	}
	return n
}
