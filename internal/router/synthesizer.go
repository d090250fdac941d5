package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mjsoler/ragmux/internal/infra/llm"
	"github.com/mjsoler/ragmux/internal/tool"
)

// ErrSynthesisFailure means the generation model was unusable at the final
// step. Not locally recoverable; the session is discarded.
var ErrSynthesisFailure = errors.New("answer synthesis failed")

// InsufficientAnswer is returned verbatim when no usable evidence was
// gathered. Emitted without consulting the model so a dead model backend
// cannot turn "nothing found" into a hard failure.
const InsufficientAnswer = "I could not find enough information to answer that question."

// Synthesizer merges accumulated evidence into one grounded answer.
type Synthesizer struct {
	chat llm.Provider
	log  *zap.Logger
}

func NewSynthesizer(chat llm.Provider, log *zap.Logger) *Synthesizer {
	return &Synthesizer{chat: chat, log: log}
}

// Synthesize produces the final answer from the session transcript.
// Evidence blocks are numbered and tagged with their source tool so the
// model can attribute claims; the prompt forbids material beyond them.
func (s *Synthesizer) Synthesize(ctx context.Context, state *RouterState) (string, error) {
	if !state.UsableEvidence() {
		return InsufficientAnswer, nil
	}

	resp, err := s.chat.ChatCompletion(ctx, llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: buildSynthesisPrompt(state)}},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSynthesisFailure, err)
	}
	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return "", fmt.Errorf("%w: model returned an empty answer", ErrSynthesisFailure)
	}
	s.log.Debug("synthesized answer",
		zap.Int("evidence", len(state.Evidence)),
		zap.Int("length", len(answer)))
	return answer, nil
}

func buildSynthesisPrompt(state *RouterState) string {
	var sb strings.Builder

	sb.WriteString("Answer the user's question using ONLY the evidence below.\n")
	sb.WriteString("Do not state anything the evidence does not support. If the evidence\n")
	sb.WriteString("only partially covers the question, answer the covered part and say\n")
	sb.WriteString("what is missing. Mention the sources you drew on.\n")

	if len(state.History) > 0 {
		sb.WriteString("\nConversation so far:\n")
		for _, m := range state.History {
			fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
		}
	}

	fmt.Fprintf(&sb, "\nQuestion: %s\n\nEvidence:\n", state.Question)
	n := 0
	for _, ev := range usable(state.Evidence) {
		n++
		fmt.Fprintf(&sb, "[%d] from %s", n, ev.ToolName)
		if len(ev.Sources) > 0 {
			fmt.Fprintf(&sb, " (sources: %s)", strings.Join(ev.Sources, ", "))
		}
		fmt.Fprintf(&sb, ":\n%s\n\n", ev.Payload)
	}

	sb.WriteString("Answer:")
	return sb.String()
}

func usable(evidence []tool.Evidence) []tool.Evidence {
	out := make([]tool.Evidence, 0, len(evidence))
	for _, ev := range evidence {
		if ev.Err == "" && !ev.Empty {
			out = append(out, ev)
		}
	}
	return out
}
