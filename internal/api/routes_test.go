package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mjsoler/ragmux/internal/infra/llm"
	"github.com/mjsoler/ragmux/internal/router"
	"github.com/mjsoler/ragmux/internal/tool"
	pkgauth "github.com/mjsoler/ragmux/pkg/auth"
)

type stubEngine struct {
	answer *router.Answer
	err    error
	gotQ   string
}

func (s *stubEngine) Answer(_ context.Context, question string, _ []llm.Message) (*router.Answer, error) {
	s.gotQ = question
	if s.err != nil {
		return nil, s.err
	}
	return s.answer, nil
}

type stubRebuilder struct {
	mu     sync.Mutex
	called []string
	err    error
}

func (s *stubRebuilder) Rebuild(_ context.Context, corpus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.called = append(s.called, corpus)
	return s.err
}

type noopTool struct{ name string }

func (n *noopTool) Spec() tool.Spec { return tool.Spec{Name: n.name, Description: "stub"} }
func (n *noopTool) Invoke(_ context.Context, q string) (*tool.Evidence, error) {
	return &tool.Evidence{ToolName: n.name, Query: q}, nil
}

func newTestRouter(t *testing.T, engine *stubEngine, rebuilder *stubRebuilder) http.Handler {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")

	hash, err := pkgauth.HashAccessKey("letmein")
	if err != nil {
		t.Fatalf("hash access key: %v", err)
	}

	reg := tool.NewRegistry()
	if err := reg.Register(&noopTool{name: tool.NameStructuredQuery}); err != nil {
		t.Fatalf("register: %v", err)
	}

	return NewRouter(Deps{
		Engine:        engine,
		Registry:      reg,
		Rebuilder:     rebuilder,
		Corpora:       []string{"product_docs", "feedback"},
		AccessKeyHash: hash,
		Log:           zap.NewNop(),
	})
}

func bearerToken(t *testing.T) string {
	t.Helper()
	token, err := pkgauth.GenerateToken("test-client")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return "Bearer " + token
}

func TestHealth_Public(t *testing.T) {
	h := newTestRouter(t, &stubEngine{}, &stubRebuilder{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAsk_RequiresToken(t *testing.T) {
	h := newTestRouter(t, &stubEngine{}, &stubRebuilder{})
	body := bytes.NewBufferString(`{"question": "q"}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/ask", body))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestAsk_AnswersWithToken(t *testing.T) {
	engine := &stubEngine{answer: &router.Answer{
		Text:    "The composer is Angus Young.",
		Sources: []string{"Track"},
		Rounds:  1,
	}}
	h := newTestRouter(t, engine, &stubRebuilder{})

	body := bytes.NewBufferString(`{"question": "Who composed it?", "history": [{"role": "user", "content": "hi"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", body)
	req.Header.Set("Authorization", bearerToken(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Answer  string   `json:"answer"`
		Sources []string `json:"sources"`
		Rounds  int      `json:"rounds"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "The composer is Angus Young." || resp.Rounds != 1 {
		t.Errorf("unexpected response %+v", resp)
	}
	if engine.gotQ != "Who composed it?" {
		t.Errorf("engine got question %q", engine.gotQ)
	}
}

func TestAsk_RoutingFailure_Is502(t *testing.T) {
	engine := &stubEngine{err: router.ErrRoutingFailure}
	h := newTestRouter(t, engine, &stubRebuilder{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", bytes.NewBufferString(`{"question": "q"}`))
	req.Header.Set("Authorization", bearerToken(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestAsk_EmptyQuestion_Is400(t *testing.T) {
	h := newTestRouter(t, &stubEngine{}, &stubRebuilder{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", bytes.NewBufferString(`{}`))
	req.Header.Set("Authorization", bearerToken(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTokenIssue_ValidKey(t *testing.T) {
	h := newTestRouter(t, &stubEngine{}, &stubRebuilder{})
	body := bytes.NewBufferString(`{"clientId": "cli", "accessKey": "letmein"}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/token", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := pkgauth.ParseToken(resp.Token)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.ClientID != "cli" {
		t.Errorf("expected client cli, got %q", claims.ClientID)
	}
}

func TestTokenIssue_WrongKey(t *testing.T) {
	h := newTestRouter(t, &stubEngine{}, &stubRebuilder{})
	body := bytes.NewBufferString(`{"clientId": "cli", "accessKey": "wrong"}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/token", body))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestToolsList(t *testing.T) {
	h := newTestRouter(t, &stubEngine{}, &stubRebuilder{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tools", nil)
	req.Header.Set("Authorization", bearerToken(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Data []tool.Spec    `json:"data"`
		Meta map[string]int `json:"meta"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].Name != tool.NameStructuredQuery {
		t.Errorf("unexpected catalogue %+v", resp.Data)
	}
}

func TestReindex_KicksBackgroundRebuild(t *testing.T) {
	rb := &stubRebuilder{}
	h := newTestRouter(t, &stubEngine{}, rb)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/indexes/feedback/rebuild", nil)
	req.Header.Set("Authorization", bearerToken(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rb.mu.Lock()
		n := len(rb.called)
		rb.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("rebuild never ran")
}

func TestReindex_UnknownCorpus_Is404(t *testing.T) {
	h := newTestRouter(t, &stubEngine{}, &stubRebuilder{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/indexes/nope/rebuild", nil)
	req.Header.Set("Authorization", bearerToken(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAsk_UnexpectedEngineError_Is500(t *testing.T) {
	engine := &stubEngine{err: errors.New("boom")}
	h := newTestRouter(t, engine, &stubRebuilder{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", bytes.NewBufferString(`{"question": "q"}`))
	req.Header.Set("Authorization", bearerToken(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
