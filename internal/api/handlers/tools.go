package handlers

import (
	"net/http"

	"github.com/mjsoler/ragmux/internal/tool"
)

// ToolsHandler lists the tool catalogue the router selects from.
type ToolsHandler struct {
	registry *tool.Registry
}

func NewToolsHandler(registry *tool.Registry) *ToolsHandler {
	return &ToolsHandler{registry: registry}
}

// List handles GET /api/v1/tools.
func (h *ToolsHandler) List(w http.ResponseWriter, r *http.Request) {
	specs := h.registry.Specs()
	writeJSON(w, http.StatusOK, map[string]any{
		"data": specs,
		"meta": map[string]int{"total": len(specs)},
	})
}
