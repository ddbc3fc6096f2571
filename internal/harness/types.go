package harness

import "github.com/roach88/opgraph/internal/ir"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// QueryID is the forward graph query ID used for execution.
	QueryID string `json:"query_id"`

	// Type is the refined output type, rendered.
	Type string `json:"type,omitempty"`

	// Value is the executed result. Nil when evaluation failed.
	Value ir.Value `json:"-"`

	// ErrorCode and ErrorMessage describe a failed evaluation.
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	// Errors contains assertion failure messages.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(queryID string) *Result {
	return &Result{
		Pass:    true,
		QueryID: queryID,
		Errors:  []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Failed reports whether evaluation produced an error.
func (r *Result) Failed() bool {
	return r.ErrorCode != ""
}
