package handlers

import (
	"encoding/json"
	"net/http"

	pkgauth "github.com/mjsoler/ragmux/pkg/auth"
)

// TokenHandler exchanges a pre-shared access key for a short-lived JWT.
// The bcrypt hash of the valid key is configured at startup; no client
// database exists.
type TokenHandler struct {
	accessKeyHash string
}

func NewTokenHandler(accessKeyHash string) *TokenHandler {
	return &TokenHandler{accessKeyHash: accessKeyHash}
}

type tokenRequest struct {
	ClientID  string `json:"clientId"`
	AccessKey string `json:"accessKey"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Issue handles POST /auth/token.
func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	if h.accessKeyHash == "" {
		writeError(w, http.StatusServiceUnavailable, "token issuance not configured")
		return
	}

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ClientID == "" || req.AccessKey == "" {
		writeError(w, http.StatusBadRequest, "clientId and accessKey are required")
		return
	}

	if !pkgauth.VerifyAccessKey(h.accessKeyHash, req.AccessKey) {
		writeError(w, http.StatusUnauthorized, "invalid access key")
		return
	}

	token, err := pkgauth.GenerateToken(req.ClientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}
