package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mjsoler/ragmux/internal/infra/llm"
	"github.com/mjsoler/ragmux/internal/router"
)

// AnswerService is the orchestration capability the ask endpoint needs.
type AnswerService interface {
	Answer(ctx context.Context, question string, history []llm.Message) (*router.Answer, error)
}

type AskHandler struct {
	engine AnswerService
}

func NewAskHandler(engine AnswerService) *AskHandler {
	return &AskHandler{engine: engine}
}

type askTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type askRequest struct {
	Question string    `json:"question"`
	History  []askTurn `json:"history,omitempty"`
}

type askResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	Rounds  int      `json:"rounds"`
}

// Ask handles POST /api/v1/ask. Routing or synthesis failure is the one
// case the orchestrator cannot recover from, surfaced as 502 so callers can
// distinguish a dead model backend from a bad request.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	history := make([]llm.Message, 0, len(req.History))
	for _, turn := range req.History {
		if turn.Role == "" || turn.Content == "" {
			writeError(w, http.StatusBadRequest, "history turns need role and content")
			return
		}
		history = append(history, llm.Message{Role: turn.Role, Content: turn.Content})
	}

	ans, err := h.engine.Answer(r.Context(), req.Question, history)
	switch {
	case errors.Is(err, router.ErrRoutingFailure), errors.Is(err, router.ErrSynthesisFailure):
		writeError(w, http.StatusBadGateway, "could not answer: language model unavailable")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "could not answer")
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Answer:  ans.Text,
		Sources: ans.Sources,
		Rounds:  ans.Rounds,
	})
}
