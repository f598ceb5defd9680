package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/typewriter/internal/config"
	"github.com/roach88/typewriter/internal/field"
	"github.com/roach88/typewriter/internal/planfile"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model declares the record type every step queries.
	Model config.Model `yaml:"model"`

	// Backends restricts the scenario to some backends. Empty means all.
	Backends []string `yaml:"backends,omitempty"`

	// Seed holds the records saved before the first step, keyed by field name.
	Seed []map[string]any `yaml:"seed,omitempty"`

	// Steps run in order against the seeded store.
	Steps []Step `yaml:"steps"`
}

// Step runs one plan file.
type Step struct {
	Name string `yaml:"name"`

	// Run is collect, count, exists, value or delete. Empty means collect.
	Run string `yaml:"run,omitempty"`

	// Plan is resolved against the scenario model. It names no model,
	// source or fields of its own.
	Plan planfile.PlanFile `yaml:"plan"`

	// Expect is checked against the outcome. If nil the step only
	// contributes to the trace.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is the expected outcome of a step. Only the part matching the
// step's run kind is checked.
type Expect struct {
	// Records are matched in order, each by subset.
	Records []map[string]any `yaml:"records,omitempty"`

	// Empty expects a collect step to return no records.
	Empty bool `yaml:"empty,omitempty"`

	// Count is the count of a count step or the removed records of a
	// delete step.
	Count *int64 `yaml:"count,omitempty"`

	Exists *bool `yaml:"exists,omitempty"`

	// Value is the accumulated value of a value step. Null expects null.
	Value any  `yaml:"value,omitempty"`
	Null  bool `yaml:"null,omitempty"`

	// Error is the fault code the step must fail with, e.g. INVALID_QUERY.
	Error string `yaml:"error,omitempty"`
}

// Step run kinds.
const (
	RunCollect = "collect"
	RunCount   = "count"
	RunExists  = "exists"
	RunValue   = "value"
	RunDelete  = "delete"
)

var runKinds = []string{RunCollect, RunCount, RunExists, RunValue, RunDelete}

func (s Step) kind() string {
	if s.Run == "" {
		return RunCollect
	}
	return s.Run
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses a scenario held in memory.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "step:" vs "steps:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	names := make(map[string]string, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if prev, dup := names[s.Name]; dup {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", filepath.Base(path), s.Name, prev)
		}
		names[s.Name] = filepath.Base(path)
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Model.Source == "" {
		return fmt.Errorf("model source is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for _, b := range s.Backends {
		if !slices.Contains(Backends, b) {
			return fmt.Errorf("unknown backend %q (want one of %v)", b, Backends)
		}
	}

	for i, step := range s.Steps {
		if step.Name == "" {
			return fmt.Errorf("step %d: name is required", i)
		}
		if !slices.Contains(runKinds, step.kind()) {
			return fmt.Errorf("step %s: unknown run %q", step.Name, step.Run)
		}
		if step.Plan.Model != "" || step.Plan.Source != "" || len(step.Plan.Fields) > 0 {
			return fmt.Errorf("step %s: plan must not name a model, source or fields", step.Name)
		}
	}

	return nil
}

// model declares the scenario model.
func (s *Scenario) model() (*field.Model, error) {
	cfg := config.Config{Models: map[string]config.Model{s.Name: s.Model}}
	return cfg.BuildModel(s.Name, nil)
}

// backends returns the backends the scenario runs on.
func (s *Scenario) backends() []string {
	if len(s.Backends) == 0 {
		return Backends
	}
	return s.Backends
}
