// Package router implements the question-answering orchestrator: the
// decision loop that selects retrieval tools, accumulates their evidence,
// and hands the transcript to the synthesizer. The loop is catalogue-driven;
// tools are only ever addressed through their specs, never by concrete type.
package router

import (
	"github.com/mjsoler/ragmux/internal/infra/llm"
	"github.com/mjsoler/ragmux/internal/tool"
)

// SessionState is the phase of one question-answering session.
type SessionState int

const (
	StateRouting SessionState = iota
	StateToolExecution
	StateSynthesizing
	StateDone
)

func (s SessionState) String() string {
	switch s {
	case StateRouting:
		return "routing"
	case StateToolExecution:
		return "tool_execution"
	case StateSynthesizing:
		return "synthesizing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// RouterState is the session-scoped mutable state: the question under
// answer, prior conversation turns, the growing evidence list, and the
// round counter. Created per question, discarded after the answer.
// The evidence list only grows within a session.
type RouterState struct {
	Question   string
	History    []llm.Message
	Evidence   []tool.Evidence
	Round      int
	Terminated bool
}

// NewRouterState starts a session for one question.
func NewRouterState(question string, history []llm.Message) *RouterState {
	return &RouterState{Question: question, History: history}
}

// Append records one round's evidence.
func (s *RouterState) Append(ev tool.Evidence) {
	s.Evidence = append(s.Evidence, ev)
}

// UsableEvidence reports whether any collected evidence carries a payload
// (neither empty nor failed).
func (s *RouterState) UsableEvidence() bool {
	for _, ev := range s.Evidence {
		if ev.Err == "" && !ev.Empty {
			return true
		}
	}
	return false
}
