package harness

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/roach88/typewriter/internal/executor"
	"github.com/roach88/typewriter/internal/fault"
	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/planfile"
)

// AssertionError represents a failed expectation with context.
type AssertionError struct {
	Field    string
	Expected string
	Actual   string
	Message  string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: %s (expected %s, got %s)", e.Field, e.Message, e.Expected, e.Actual)
}

// checkExpect compares a step outcome with its expect clause and returns
// one message per mismatch.
func checkExpect(step Step, out outcome) []string {
	exp := step.Expect

	if exp.Error != "" {
		if out.err == nil {
			return []string{fmt.Sprintf("expected error %s, step succeeded", exp.Error)}
		}
		if got := fault.CodeOf(out.err); string(got) != exp.Error {
			return []string{fmt.Sprintf("expected error %s, got %s: %v", exp.Error, got, out.err)}
		}
		return nil
	}
	if out.err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", out.err)}
	}

	switch step.kind() {
	case RunCount, RunDelete:
		if exp.Count != nil && *exp.Count != *out.count {
			return []string{mismatch("count", *exp.Count, *out.count)}
		}
	case RunExists:
		if exp.Exists != nil && *exp.Exists != *out.exists {
			return []string{mismatch("exists", *exp.Exists, *out.exists)}
		}
	case RunValue:
		return checkValue(exp, out)
	default:
		return checkRecords(exp, out.records)
	}
	return nil
}

func checkValue(exp *Expect, out outcome) []string {
	if exp.Null {
		if !ir.IsNull(out.value) {
			return []string{mismatch("value", "null", ir.Format(out.value))}
		}
		return nil
	}
	if exp.Value == nil {
		return nil
	}
	want, err := planfile.Value(out.column, exp.Value)
	if err != nil {
		return []string{fmt.Sprintf("expected value: %v", err)}
	}
	if !ir.Equal(want, out.value) {
		return []string{mismatch("value", ir.Format(want), ir.Format(out.value))}
	}
	return nil
}

func checkRecords(exp *Expect, recs []executor.Record) []string {
	if exp.Empty {
		if len(recs) > 0 {
			return []string{mismatch("record count", 0, len(recs))}
		}
		return nil
	}
	if exp.Records == nil {
		return nil
	}
	if len(recs) != len(exp.Records) {
		return []string{mismatch("record count", len(exp.Records), len(recs))}
	}

	var errs []string
	for i, want := range exp.Records {
		if err := matchRecord(recs[i], want); err != nil {
			errs = append(errs, fmt.Sprintf("record %d: %v", i, err))
		}
	}
	return errs
}

// matchRecord checks the fields of want against rec. Fields want omits are
// not checked. Keys are visited in sorted order so messages are stable.
func matchRecord(rec executor.Record, want map[string]any) error {
	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		idx := -1
		for i, f := range rec.Fields {
			if f.Name == k {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("no field %q in %s", k, rec)
		}
		wantVal, err := planfile.Value(rec.Fields[idx], want[k])
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		if !ir.Equal(wantVal, rec.Values[idx]) {
			return &AssertionError{
				Field:    k,
				Expected: ir.Format(wantVal),
				Actual:   ir.Format(rec.Values[idx]),
				Message:  "field value mismatch",
			}
		}
	}
	return nil
}

func mismatch(what string, want, got any) string {
	return fmt.Sprintf("%s: expected %v, got %v", what, want, got)
}

// EvaluateEquivalence compares the traces of results run on different
// backends and returns one message per backend whose trace differs from
// the first.
func EvaluateEquivalence(results []*Result) []string {
	if len(results) < 2 {
		return nil
	}
	base, err := traceJSON(results[0].Trace)
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", results[0].Backend, err)}
	}

	var errs []string
	for _, r := range results[1:] {
		got, err := traceJSON(r.Trace)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", r.Backend, err))
			continue
		}
		if !bytes.Equal(base, got) {
			errs = append(errs, fmt.Sprintf("%s trace differs from %s:\n  %s\n  %s",
				r.Backend, results[0].Backend, got, base))
		}
	}
	return errs
}
