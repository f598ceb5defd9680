package harness

import (
	"github.com/roach88/typewriter/internal/executor"
	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/queryir"
)

// TraceEvent is the rendered outcome of one step. Values are rendered with
// ir.Format so that traces of different backends compare as text.
type TraceEvent struct {
	Seq     int64               `json:"seq"`
	Step    string              `json:"step"`
	Run     string              `json:"run"`
	Records []map[string]string `json:"records,omitempty"`
	Count   *int64              `json:"count,omitempty"`
	Exists  *bool               `json:"exists,omitempty"`
	Value   string              `json:"value,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// Result is the outcome of a scenario on one backend.
type Result struct {
	Backend string `json:"backend"`

	// Pass is true if every expect clause matched.
	Pass bool `json:"pass"`

	// Trace holds one event per step, in step order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(backend string) *Result {
	return &Result{
		Backend: backend,
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step event.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}

// outcome is what a step produced before rendering.
type outcome struct {
	records []executor.Record
	count   *int64
	exists  *bool
	value   ir.IRValue
	column  queryir.Field // type of value
	err     error
}

func renderRecords(recs []executor.Record) []map[string]string {
	if len(recs) == 0 {
		return nil
	}
	out := make([]map[string]string, len(recs))
	for i, rec := range recs {
		m := make(map[string]string, len(rec.Fields))
		for j, f := range rec.Fields {
			m[f.Name] = ir.Format(rec.Values[j])
		}
		out[i] = m
	}
	return out
}
