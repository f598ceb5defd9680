package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/typewriter/internal/ir"
)

// traceJSON renders a trace as canonical JSON.
// ir.MarshalCanonical only handles IR types and primitives, so events are
// converted to maps first.
func traceJSON(trace []TraceEvent) ([]byte, error) {
	events := make([]any, len(trace))
	for i, ev := range trace {
		m := map[string]any{
			"seq":  ev.Seq,
			"step": ev.Step,
			"run":  ev.Run,
		}
		if ev.Records != nil {
			recs := make([]any, len(ev.Records))
			for j, rec := range ev.Records {
				fields := make(map[string]any, len(rec))
				for k, v := range rec {
					fields[k] = v
				}
				recs[j] = fields
			}
			m["records"] = recs
		}
		if ev.Count != nil {
			m["count"] = *ev.Count
		}
		if ev.Exists != nil {
			m["exists"] = *ev.Exists
		}
		if ev.Value != "" {
			m["value"] = ev.Value
		}
		if ev.Error != "" {
			m["error"] = ev.Error
		}
		events[i] = m
	}
	return ir.MarshalCanonical(events)
}

// RunWithGolden runs a scenario on each of its backends and compares every
// trace with the golden file testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the results for further checks. Test failure (via goldie) occurs
// if a trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) ([]*Result, error) {
	t.Helper()

	results, err := RunAll(context.Background(), scenario)
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		if err := AssertGolden(t, scenario.Name, r); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// AssertGolden compares the given result's trace against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := traceJSON(result.Trace)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
