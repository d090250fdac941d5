package tool

import "errors"

// Sentinel errors shared by all tools. The routing engine maps these onto
// the evidence transcript: ErrEmptyResult becomes non-failing empty
// evidence, everything else becomes failed evidence the session can still
// recover from on a later round.
var (
	// ErrEmptyResult means the backend answered and nothing relevant was
	// found. Not a failure.
	ErrEmptyResult = errors.New("no relevant results")

	// ErrToolTimeout means the invocation exceeded its per-call deadline.
	ErrToolTimeout = errors.New("tool invocation timed out")

	// ErrQueryFailed means the tool could not turn the query into a valid
	// backend request, or the backend rejected the request it built.
	ErrQueryFailed = errors.New("query execution failed")

	// ErrBackendUnavailable means the tool's backing store or model server
	// could not be reached.
	ErrBackendUnavailable = errors.New("tool backend unavailable")
)
