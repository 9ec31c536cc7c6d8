package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a workout flow with expectations on the trace and on the
// final local state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Plan is the plan file the session is started from. Relative paths
	// are resolved against the scenario file.
	Plan string `yaml:"plan"`

	// Day selects the plan day. Empty selects the only day.
	Day string `yaml:"day,omitempty"`

	// User defaults to "user-1".
	User string `yaml:"user,omitempty"`

	Flow []Step `yaml:"flow"`

	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation of the flow.
type Step struct {
	Op     string         `yaml:"op"`
	Args   map[string]any `yaml:"args,omitempty"`
	Expect *Expect        `yaml:"expect,omitempty"`
}

// Expect is checked against the step's trace event. Only the fields that
// are set are compared.
type Expect struct {
	Phase        string `yaml:"phase,omitempty"`
	Transition   string `yaml:"transition,omitempty"`
	Error        string `yaml:"error,omitempty"`
	Synced       *int   `yaml:"synced,omitempty"`
	Failed       *int   `yaml:"failed,omitempty"`
	DeadLettered *int   `yaml:"dead_lettered,omitempty"`
}

// Assertion validates the request log or the final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Request is "METHOD /path" (request_count).
	Request string `yaml:"request,omitempty"`

	// Requests is the expected relative order (request_order).
	Requests []string `yaml:"requests,omitempty"`

	// Count is used by request_count, queue_length, dead_letters and
	// record_count.
	Count int `yaml:"count"`

	// Phase is used by session_phase.
	Phase string `yaml:"phase,omitempty"`

	// Collection is used by record_count.
	Collection string `yaml:"collection,omitempty"`
}

// Assertion type constants.
const (
	AssertRequestOrder = "request_order"
	AssertRequestCount = "request_count"
	AssertQueueLength  = "queue_length"
	AssertDeadLetters  = "dead_letters"
	AssertSessionPhase = "session_phase"
	AssertRecordCount  = "record_count"
)

var knownOps = map[string]bool{
	"start": true, "set": true, "tick": true, "skip_rest": true,
	"pause": true, "resume": true, "finish": true, "abandon": true,
	"weight": true, "advance": true, "online": true, "offline": true,
	"respond": true, "sync": true, "drain": true, "requeue": true,
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Plan != "" && !filepath.IsAbs(scenario.Plan) {
		scenario.Plan = filepath.Join(filepath.Dir(path), scenario.Plan)
	}
	if scenario.User == "" {
		scenario.User = "user-1"
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Plan == "" {
		return fmt.Errorf("plan is required")
	}
	if _, err := os.Stat(s.Plan); os.IsNotExist(err) {
		return fmt.Errorf("plan file not found: %s", s.Plan)
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if step.Op == "" {
			return fmt.Errorf("flow[%d]: op is required", i)
		}
		if !knownOps[step.Op] {
			return fmt.Errorf("flow[%d]: unknown op %q", i, step.Op)
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRequestOrder:
		if len(a.Requests) == 0 {
			return fmt.Errorf("assertions[%d]: requests list is required for request_order", index)
		}
	case AssertRequestCount:
		if a.Request == "" {
			return fmt.Errorf("assertions[%d]: request is required for request_count", index)
		}
	case AssertQueueLength, AssertDeadLetters:
	case AssertSessionPhase:
		if a.Phase == "" {
			return fmt.Errorf("assertions[%d]: phase is required for session_phase", index)
		}
	case AssertRecordCount:
		if a.Collection == "" {
			return fmt.Errorf("assertions[%d]: collection is required for record_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}
