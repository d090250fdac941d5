package router

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mjsoler/ragmux/internal/infra/llm"
	"github.com/mjsoler/ragmux/internal/tool"
	"github.com/mjsoler/ragmux/pkg/uuid"
)

// Answer is the outcome of one session.
type Answer struct {
	Text     string          `json:"answer"`
	Sources  []string        `json:"sources"`
	Rounds   int             `json:"rounds"`
	Evidence []tool.Evidence `json:"evidence,omitempty"`
}

// Engine drives one question through the session state machine:
// routing → tool execution → (more routing) → synthesis. Tool-level
// failures become tagged evidence and the session continues; only
// ErrRoutingFailure and ErrSynthesisFailure abort it.
type Engine struct {
	router      *Router
	synth       *Synthesizer
	registry    *tool.Registry
	toolTimeout time.Duration
	log         *zap.Logger
}

func NewEngine(router *Router, synth *Synthesizer, registry *tool.Registry, toolTimeout time.Duration, log *zap.Logger) *Engine {
	if toolTimeout <= 0 {
		toolTimeout = 30 * time.Second
	}
	return &Engine{
		router:      router,
		synth:       synth,
		registry:    registry,
		toolTimeout: toolTimeout,
		log:         log,
	}
}

// Answer runs one complete session. Session state lives on the stack of
// this call and is discarded when it returns, success or not.
func (e *Engine) Answer(ctx context.Context, question string, history []llm.Message) (*Answer, error) {
	state := NewRouterState(question, history)
	phase := StateRouting

	var decision Decision
	for phase != StateDone {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch phase {
		case StateRouting:
			d, err := e.router.Route(ctx, state)
			if err != nil {
				return nil, err
			}
			decision = d
			if d.Kind == DecisionFinish {
				state.Terminated = true
				phase = StateSynthesizing
			} else {
				phase = StateToolExecution
			}

		case StateToolExecution:
			state.Round++
			state.Append(e.invoke(ctx, decision, state.Round))
			phase = StateRouting

		case StateSynthesizing:
			text, err := e.synth.Synthesize(ctx, state)
			if err != nil {
				return nil, err
			}
			e.log.Info("session answered",
				zap.Int("rounds", state.Round),
				zap.Int("evidence", len(state.Evidence)))
			return &Answer{
				Text:     text,
				Sources:  collectSources(state.Evidence),
				Rounds:   state.Round,
				Evidence: state.Evidence,
			}, nil
		}
	}
	return nil, ErrRoutingFailure
}

// invoke runs one tool call under the per-call timeout and converts every
// outcome into evidence. Failures never propagate from here.
func (e *Engine) invoke(ctx context.Context, d Decision, round int) tool.Evidence {
	ev := tool.Evidence{
		ID:       uuid.NewV7().String(),
		ToolName: d.ToolName,
		Round:    round,
		Query:    d.Query,
	}

	impl, err := e.registry.Get(d.ToolName)
	if err != nil {
		ev.Err = err.Error()
		return ev
	}

	callCtx, cancel := context.WithTimeout(ctx, e.toolTimeout)
	defer cancel()

	result, err := impl.Invoke(callCtx, d.Query)
	switch {
	case errors.Is(err, tool.ErrEmptyResult):
		ev.Empty = true
		e.log.Debug("tool returned no results",
			zap.String("tool", d.ToolName), zap.String("query", d.Query))
	case err != nil:
		if callCtx.Err() != nil && !errors.Is(err, tool.ErrToolTimeout) {
			err = tool.ErrToolTimeout
		}
		ev.Err = err.Error()
		e.log.Warn("tool invocation failed",
			zap.String("tool", d.ToolName),
			zap.String("query", d.Query),
			zap.Error(err))
	default:
		ev.Payload = result.Payload
		ev.Sources = result.Sources
	}
	return ev
}

func collectSources(evidence []tool.Evidence) []string {
	var (
		out  []string
		seen = map[string]bool{}
	)
	for _, ev := range evidence {
		for _, src := range ev.Sources {
			if !seen[src] {
				seen[src] = true
				out = append(out, src)
			}
		}
	}
	return out
}
