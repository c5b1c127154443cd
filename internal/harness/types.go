package harness

// TraceEvent records one executed step and what came of it.
type TraceEvent struct {
	Seq     int                    `json:"seq"`
	Action  string                 `json:"action"`
	Input   map[string]interface{} `json:"input,omitempty"`
	Outcome map[string]interface{} `json:"outcome"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace lists executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addTrace appends a step to the trace and returns it.
func (r *Result) addTrace(action string, input, outcome map[string]interface{}) TraceEvent {
	ev := TraceEvent{
		Seq:     len(r.Trace) + 1,
		Action:  action,
		Input:   input,
		Outcome: outcome,
	}
	if len(ev.Input) == 0 {
		ev.Input = nil
	}
	r.Trace = append(r.Trace, ev)
	return ev
}
