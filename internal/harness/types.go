package harness

import "github.com/roach88/carbonspin/internal/runner"

// TraceEvent is one logged disturbance, read back from the event log.
type TraceEvent struct {
	Seq         int64  `json:"seq"`
	Unit        string `json:"unit"`
	Phase       string `json:"phase"`
	Year        int    `json:"year"`
	Disturbance string `json:"disturbance"`
	TypeCode    int    `json:"type_code"`
	Transition  int    `json:"transition"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace holds every logged disturbance, unit by unit in run order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds assertion failure messages. Empty when Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Units holds the per-unit results in run order.
	Units []*runner.UnitResult `json:"units"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Unit returns the named unit's result.
func (r *Result) Unit(name string) (*runner.UnitResult, bool) {
	for _, u := range r.Units {
		if u.Unit == name {
			return u, true
		}
	}
	return nil, false
}
