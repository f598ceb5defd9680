package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const personModel = `model:
  source: person
  identity: id
  fields:
    - {name: id, type: numeric}
    - {name: name, type: string}
    - {name: age, type: numeric}
`

func TestScenarios(t *testing.T) {
	scenarios, err := LoadScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			results, err := RunWithGolden(t, s)
			require.NoError(t, err)
			require.Len(t, results, len(Backends))

			for _, r := range results {
				assert.True(t, r.Pass, "%s: %v", r.Backend, r.Errors)
				assert.Len(t, r.Trace, len(s.Steps))
			}
			assert.Empty(t, EvaluateEquivalence(results))
		})
	}
}

func TestRunReportsMismatches(t *testing.T) {
	s, err := ParseScenario([]byte(`name: wrong
description: "expectations that do not hold"
` + personModel + `seed:
  - {id: 1, name: a, age: 10}
  - {id: 2, name: b, age: 20}
steps:
  - name: too_many
    plan: {}
    expect:
      records:
        - {id: 1}
  - name: wrong_value
    plan:
      sort: [{field: id}]
    expect:
      records:
        - {id: 1, name: z}
        - {id: 2}
  - name: wrong_count
    run: count
    plan: {}
    expect:
      count: 5
  - name: no_error
    run: exists
    plan: {}
    expect:
      error: INVALID_QUERY
`))
	require.NoError(t, err)

	for _, backend := range Backends {
		t.Run(backend, func(t *testing.T) {
			r, err := Run(context.Background(), s, backend)
			require.NoError(t, err)
			assert.False(t, r.Pass)
			require.Len(t, r.Errors, 4)
			assert.Equal(t, "step too_many: record count: expected 1, got 2", r.Errors[0])
			assert.Contains(t, r.Errors[1], `name: field value mismatch (expected "z", got "a")`)
			assert.Equal(t, "step wrong_count: count: expected 5, got 2", r.Errors[2])
			assert.Equal(t, "step no_error: expected error INVALID_QUERY, step succeeded", r.Errors[3])
		})
	}
}

func TestRunUnexpectedError(t *testing.T) {
	s, err := ParseScenario([]byte(`name: broken
description: "a step without expect fails on error"
` + personModel + `steps:
  - name: bad_op
    plan:
      where: {field: name, op: near, value: x}
`))
	require.NoError(t, err)

	r, err := Run(context.Background(), s, BackendMemory)
	require.NoError(t, err)
	assert.False(t, r.Pass)
	require.Len(t, r.Trace, 1)
	assert.Equal(t, "INVALID_QUERY", r.Trace[0].Error)
	assert.Contains(t, r.Errors[0], "step bad_op")
}

func TestRunRejectsUnknownSeedField(t *testing.T) {
	s, err := ParseScenario([]byte(`name: seed
description: "seed typo"
` + personModel + `seed:
  - {id: 1, nmae: a}
steps:
  - name: all
    plan: {}
`))
	require.NoError(t, err)

	_, err = Run(context.Background(), s, BackendMemory)
	assert.ErrorContains(t, err, `unknown field "nmae"`)
}

func TestRunOnSelectedBackends(t *testing.T) {
	s, err := ParseScenario([]byte(`name: memory_only
description: "restricted to the document store"
backends: [memory]
` + personModel + `steps:
  - name: none
    run: count
    plan: {}
    expect:
      count: 0
`))
	require.NoError(t, err)

	results, err := RunAll(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, BackendMemory, results[0].Backend)
	assert.True(t, results[0].Pass, results[0].Errors)
}

func TestParseScenarioRejects(t *testing.T) {
	steps := "steps:\n  - name: all\n    plan: {}\n"
	tests := []struct {
		name    string
		body    string
		mention string
	}{
		{"no name", "description: d\n" + personModel + steps, "name is required"},
		{"no description", "name: n\n" + personModel + steps, "description is required"},
		{"no model", "name: n\ndescription: d\n" + steps, "model source is required"},
		{"no steps", "name: n\ndescription: d\n" + personModel, "steps list is required"},
		{"typo", "name: n\ndescription: d\n" + personModel + steps + "asserts: []\n", "asserts"},
		{"unknown backend", "name: n\ndescription: d\nbackends: [oracle]\n" + personModel + steps, `unknown backend "oracle"`},
		{"unknown run", "name: n\ndescription: d\n" + personModel + "steps:\n  - name: all\n    run: sum\n    plan: {}\n", `unknown run "sum"`},
		{"plan with model", "name: n\ndescription: d\n" + personModel + "steps:\n  - name: all\n    plan: {model: person}\n", "must not name a model"},
		{"unnamed step", "name: n\ndescription: d\n" + personModel + "steps:\n  - plan: {}\n", "step 0: name is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.mention)
		})
	}
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestLoadScenariosRejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	body := []byte("name: same\ndescription: d\n" + personModel + "steps:\n  - name: all\n    plan: {}\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), body, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), body, 0o644))

	_, err := LoadScenarios(dir)
	assert.ErrorContains(t, err, `scenario name "same" already used by a.yaml`)
}

func TestEvaluateEquivalence(t *testing.T) {
	two := int64(2)
	three := int64(3)
	a := NewResult(BackendSQLite)
	a.AddTrace(TraceEvent{Seq: 1, Step: "count", Run: RunCount, Count: &two})
	b := NewResult(BackendMemory)
	b.AddTrace(TraceEvent{Seq: 1, Step: "count", Run: RunCount, Count: &two})

	assert.Empty(t, EvaluateEquivalence([]*Result{a, b}))

	c := NewResult(BackendMemory)
	c.AddTrace(TraceEvent{Seq: 1, Step: "count", Run: RunCount, Count: &three})
	errs := EvaluateEquivalence([]*Result{a, c})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "memory trace differs from sqlite")
}

func TestTraceJSONIsCanonical(t *testing.T) {
	found := true
	data, err := traceJSON([]TraceEvent{
		{Seq: 1, Step: "s", Run: RunCollect, Records: []map[string]string{{"name": `"b"`, "id": "2"}}},
		{Seq: 2, Step: "e", Run: RunExists, Exists: &found},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`[{"records":[{"id":"2","name":"\"b\""}],"run":"collect","seq":1,"step":"s"},{"exists":true,"run":"exists","seq":2,"step":"e"}]`,
		string(data))
}
