package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Rebuilder rebuilds one corpus index from its source documents.
type Rebuilder interface {
	Rebuild(ctx context.Context, corpus string) error
}

// ReindexHandler kicks off corpus rebuilds in the background. One rebuild
// per corpus at a time; a second request while one runs gets 409.
type ReindexHandler struct {
	rebuilder Rebuilder
	corpora   map[string]bool
	log       *zap.Logger

	mu      sync.Mutex
	running map[string]bool
}

func NewReindexHandler(rebuilder Rebuilder, corpora []string, log *zap.Logger) *ReindexHandler {
	known := make(map[string]bool, len(corpora))
	for _, c := range corpora {
		known[c] = true
	}
	return &ReindexHandler{
		rebuilder: rebuilder,
		corpora:   known,
		log:       log,
		running:   make(map[string]bool),
	}
}

// Rebuild handles POST /api/v1/indexes/{corpus}/rebuild.
func (h *ReindexHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	corpus := chi.URLParam(r, "corpus")
	if !h.corpora[corpus] {
		writeError(w, http.StatusNotFound, "unknown corpus")
		return
	}

	h.mu.Lock()
	if h.running[corpus] {
		h.mu.Unlock()
		writeError(w, http.StatusConflict, "rebuild already in progress")
		return
	}
	h.running[corpus] = true
	h.mu.Unlock()

	// The rebuild outlives the request; it must not die with its context.
	go func() {
		defer func() {
			h.mu.Lock()
			h.running[corpus] = false
			h.mu.Unlock()
		}()
		if err := h.rebuilder.Rebuild(context.Background(), corpus); err != nil {
			h.log.Error("corpus rebuild failed",
				zap.String("corpus", corpus), zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"corpus": corpus,
		"status": "rebuilding",
	})
}
