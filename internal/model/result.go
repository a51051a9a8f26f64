package model

import "fmt"

// Stage names the layer that made a FetchAttempt.
type Stage string

const (
	StageResolve  Stage = "resolve"
	StageTransfer Stage = "transfer"
)

// Outcome is the result of a FetchAttempt.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
)

// FetchAttempt records one try of one profile against one URL.
type FetchAttempt struct {
	URL     string
	Profile string
	Stage   Stage
	Outcome Outcome

	// Reason is the failure cause, nil on success.
	Reason error

	// Bytes and Total count payload bytes; Total is 0 when unknown.
	Bytes int64
	Total int64
}

// Failed reports whether the attempt did not succeed.
func (a FetchAttempt) Failed() bool {
	return a.Outcome != OutcomeSuccess
}

// ItemFailure describes an item that produced no output.
type ItemFailure struct {
	ItemID string
	Title  string
	Index  int
	URL    string
	Reason error
}

// Error implements error so failures can be reported directly.
func (f ItemFailure) Error() string {
	label := f.ItemID
	if label == "" {
		label = f.URL
	}
	if f.Title != "" {
		label = fmt.Sprintf("%s (%s)", label, f.Title)
	}
	return fmt.Sprintf("%s: %v", label, f.Reason)
}

// Unwrap exposes the reason to errors.Is and errors.As.
func (f ItemFailure) Unwrap() error {
	return f.Reason
}

// DownloadResult is the outcome of fetching every item of a resolution.
type DownloadResult struct {
	// Paths are verified output files in source order.
	Paths []string

	// Failures are items that produced no output, in source order.
	Failures []ItemFailure
}

// Succeeded reports whether at least one output was produced.
func (r DownloadResult) Succeeded() bool {
	return len(r.Paths) > 0
}

// Partial reports whether some, but not all, items produced output.
func (r DownloadResult) Partial() bool {
	return len(r.Paths) > 0 && len(r.Failures) > 0
}
