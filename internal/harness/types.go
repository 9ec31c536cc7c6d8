package harness

// TraceEvent is the observable outcome of one flow step.
type TraceEvent struct {
	Seq        int          `json:"seq"`
	Op         string       `json:"op"`
	Phase      string       `json:"phase,omitempty"`
	Transition string       `json:"transition,omitempty"`
	Error      string       `json:"error,omitempty"`
	Sync       *SyncOutcome `json:"sync,omitempty"`
	Requests   []string     `json:"requests,omitempty"`
}

// SyncOutcome summarizes the report of a sync or drain step.
type SyncOutcome struct {
	Attempted    int `json:"attempted"`
	Succeeded    int `json:"succeeded"`
	Failed       int `json:"failed"`
	DeadLettered int `json:"dead_lettered"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Requests lists every remote call as "METHOD /path" in order.
	Requests []string `json:"requests"`

	// Queue and DeadLetters are the action counts left after the flow.
	Queue       int `json:"queue"`
	DeadLetters int `json:"dead_letters"`

	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Requests: []string{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
