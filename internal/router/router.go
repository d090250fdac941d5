package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mjsoler/ragmux/internal/infra/llm"
	"github.com/mjsoler/ragmux/internal/tool"
)

// ErrRoutingFailure means the language model could not produce a usable
// routing decision. Not locally recoverable; the session is discarded.
var ErrRoutingFailure = errors.New("routing failed")

// DecisionKind is what the router chose to do next.
type DecisionKind int

const (
	DecisionInvoke DecisionKind = iota
	DecisionFinish
)

// Decision is one routing step: invoke a named tool with a rewritten
// sub-query, or stop gathering and synthesize.
type Decision struct {
	Kind     DecisionKind
	ToolName string
	Query    string
}

// Router maps the current question plus the tool catalogue to the next
// Decision using the chat model's structured output. It holds no per-session
// state and is safe for concurrent sessions.
type Router struct {
	chat      llm.Provider
	specs     []tool.Spec
	maxRounds int
	log       *zap.Logger
}

func NewRouter(chat llm.Provider, specs []tool.Spec, maxRounds int, log *zap.Logger) *Router {
	if maxRounds <= 0 {
		maxRounds = 5
	}
	return &Router{chat: chat, specs: specs, maxRounds: maxRounds, log: log}
}

// routeReply is the JSON shape the model must return.
type routeReply struct {
	Action string `json:"action"` // "invoke" or "finish"
	Tool   string `json:"tool,omitempty"`
	Query  string `json:"query,omitempty"`
}

// Route decides the next step for a session. The round cap forces Finish
// without consulting the model. A malformed model reply gets one retry;
// a second malformed reply or a model error is ErrRoutingFailure.
func (r *Router) Route(ctx context.Context, state *RouterState) (Decision, error) {
	if state.Round >= r.maxRounds {
		r.log.Debug("round cap reached, forcing finish",
			zap.Int("round", state.Round))
		return Decision{Kind: DecisionFinish}, nil
	}

	prompt := r.buildPrompt(state)
	reply, err := r.ask(ctx, prompt)
	if err != nil {
		// One corrective retry with the parse failure spelled out.
		r.log.Warn("routing reply malformed, retrying", zap.Error(err))
		reply, err = r.ask(ctx, prompt+
			"\n\nYour previous reply was not valid. Reply with ONLY the JSON object, nothing else.")
		if err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrRoutingFailure, err)
		}
	}

	switch reply.Action {
	case "finish":
		return Decision{Kind: DecisionFinish}, nil
	case "invoke":
		if !r.knownTool(reply.Tool) {
			return Decision{}, fmt.Errorf("%w: model chose unknown tool %q", ErrRoutingFailure, reply.Tool)
		}
		query := strings.TrimSpace(reply.Query)
		if query == "" {
			query = state.Question
		}
		return Decision{Kind: DecisionInvoke, ToolName: reply.Tool, Query: query}, nil
	default:
		return Decision{}, fmt.Errorf("%w: model chose unknown action %q", ErrRoutingFailure, reply.Action)
	}
}

func (r *Router) ask(ctx context.Context, prompt string) (*routeReply, error) {
	resp, err := r.chat.ChatCompletion(ctx, llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, err
	}
	return parseRouteReply(resp.Content)
}

// parseRouteReply extracts the decision JSON from a model reply, tolerating
// surrounding prose and markdown fences.
func parseRouteReply(content string) (*routeReply, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in reply")
	}
	var reply routeReply
	if err := json.Unmarshal([]byte(content[start:end+1]), &reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return &reply, nil
}

func (r *Router) knownTool(name string) bool {
	for _, s := range r.specs {
		if s.Name == name {
			return true
		}
	}
	return false
}

func (r *Router) buildPrompt(state *RouterState) string {
	var sb strings.Builder

	sb.WriteString("You are a routing agent. Decide the single next step toward answering the user's question.\n\n")
	sb.WriteString("Available tools:\n")
	for i, s := range r.specs {
		fmt.Fprintf(&sb, "%d. %s: %s\n", i+1, s.Name, s.Description)
	}

	if len(state.History) > 0 {
		sb.WriteString("\nConversation so far:\n")
		for _, m := range state.History {
			fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
		}
	}

	fmt.Fprintf(&sb, "\nQuestion: %s\n", state.Question)

	if len(state.Evidence) > 0 {
		sb.WriteString("\nEvidence gathered so far:\n")
		for _, ev := range state.Evidence {
			switch {
			case ev.Err != "":
				fmt.Fprintf(&sb, "- round %d, %s(%q): FAILED (%s)\n", ev.Round, ev.ToolName, ev.Query, ev.Err)
			case ev.Empty:
				fmt.Fprintf(&sb, "- round %d, %s(%q): no relevant results\n", ev.Round, ev.ToolName, ev.Query)
			default:
				fmt.Fprintf(&sb, "- round %d, %s(%q): %s\n", ev.Round, ev.ToolName, ev.Query, summarize(ev.Payload))
			}
		}
	}

	sb.WriteString(`
Pick the ONE tool whose description best covers the question, with a focused
sub-query for it. If the question spans several domains, gather from one tool
per round. If the evidence above already suffices to answer, or no tool can
help further, finish.

Reply with exactly one JSON object, no other text:
{"action": "invoke", "tool": "<tool name>", "query": "<sub-query>"}
or
{"action": "finish"}`)

	return sb.String()
}

// summarize truncates an evidence payload for the routing prompt; full
// payloads go to the synthesizer, the router only needs the gist.
func summarize(payload string) string {
	const max = 400
	payload = strings.ReplaceAll(payload, "\n", " ")
	if len(payload) <= max {
		return payload
	}
	return payload[:max] + "..."
}
