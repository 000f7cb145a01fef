package models

import "fmt"

// ItemResult is the outcome of one unit of work inside a batch.
type ItemResult struct {
	Key string
	Err error
}

func (r ItemResult) OK() bool {
	return r.Err == nil
}

// BatchErrors collects per-item failures as display strings.
type BatchErrors []string

func (b *BatchErrors) Record(r ItemResult) {
	if r.Err == nil {
		return
	}
	*b = append(*b, fmt.Sprintf("%s: %v", r.Key, r.Err))
}

// DiscoverReport summarises one discovery run.
type DiscoverReport struct {
	Discovered int         `json:"discovered"`
	Errors     BatchErrors `json:"errors"`
}

func (r DiscoverReport) ErrorCount() int {
	return len(r.Errors)
}

func (r DiscoverReport) GetSummary() string {
	return fmt.Sprintf("discovered %d new videos, %d errors", r.Discovered, len(r.Errors))
}

// ProcessReport summarises one process-and-post run.
type ProcessReport struct {
	Analyzed int         `json:"analyzed"`
	Posted   int         `json:"posted"`
	Errors   BatchErrors `json:"errors"`
}

func (r ProcessReport) ErrorCount() int {
	return len(r.Errors)
}

func (r ProcessReport) GetSummary() string {
	return fmt.Sprintf("analyzed %d, posted %d, %d errors", r.Analyzed, r.Posted, len(r.Errors))
}

// RunError is the single failure returned when an operation aborts before
// completing its batch.
type RunError struct {
	Op      string `json:"op"`
	Details string `json:"details"`
	cause   error
}

func NewRunError(op string, cause error) *RunError {
	return &RunError{Op: op, Details: cause.Error(), cause: cause}
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Details)
}

func (e *RunError) Unwrap() error {
	return e.cause
}
