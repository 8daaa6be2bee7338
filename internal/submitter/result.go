// internal/submitter/result.go
package submitter

// SubmissionOutcome records the fate of one input row. Outcomes are appended
// to the run accumulator and never mutated afterwards.
type SubmissionOutcome struct {
	// RowIndex is the 1-based position of the row in the input dataset.
	RowIndex int `json:"row_index"`
	// Success means the submission was confirmed and every matched field
	// filled. An unconfirmed submission is never a success, even when the
	// submit control was activated.
	Success bool `json:"success"`
	// FailedFields names the fields that exhausted their fill retries.
	FailedFields []string `json:"failed_fields,omitempty"`
	// ErrorMessage carries the row-level failure reason, if any.
	ErrorMessage string `json:"error_message,omitempty"`
}

// RunResult aggregates a full run. It is owned by the caller after Run
// returns.
type RunResult struct {
	TotalRows    int                 `json:"total_rows"`
	SuccessCount int                 `json:"success_count"`
	FailCount    int                 `json:"fail_count"`
	Errors       []string            `json:"errors"`
	Outcomes     []SubmissionOutcome `json:"outcomes,omitempty"`
}

func (r *RunResult) record(outcome SubmissionOutcome, messages ...string) {
	if outcome.Success {
		r.SuccessCount++
	} else {
		r.FailCount++
	}
	r.Errors = append(r.Errors, messages...)
	r.Outcomes = append(r.Outcomes, outcome)
}

// Progress is invoked after every processed row. Purely a notification; the
// return value of the run does not depend on it.
type Progress func(currentRow, totalRows, successCount, failCount int, message string)
