// Package tool defines the retrieval tools the routing engine can invoke
// and the evidence contract they all share. Every tool takes one natural
// language query string and returns evidence for the answer synthesizer;
// failures are reported through the package's sentinel errors so the caller
// can tell a retrieval failure from a genuinely empty result.
package tool

import "context"

// Spec describes a tool to the routing model. Description is surfaced
// verbatim in the routing prompt, so it states what the tool is good for
// and when to pick it.
type Spec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Evidence is one retrieval outcome, appended to the session transcript.
type Evidence struct {
	ID       string   `json:"id"`
	ToolName string   `json:"toolName"`
	Round    int      `json:"round"`
	Query    string   `json:"query"`
	Payload  string   `json:"payload"`           // retrieved text, "" when empty or failed
	Sources  []string `json:"sources,omitempty"` // document/table identifiers behind Payload
	Empty    bool     `json:"empty"`             // tool ran fine but found nothing relevant
	Err      string   `json:"error,omitempty"`   // non-empty when the invocation failed
}

// Tool is a single retrieval capability.
type Tool interface {
	Spec() Spec

	// Invoke runs the tool for one query and returns evidence with Payload
	// and Sources set. When the backend answered but nothing relevant was
	// found, Invoke returns ErrEmptyResult (possibly wrapped) and no
	// evidence; the engine records that as non-failing empty evidence.
	// Round, ID, Empty and Err are filled in by the engine, not the tool.
	Invoke(ctx context.Context, query string) (*Evidence, error)
}
