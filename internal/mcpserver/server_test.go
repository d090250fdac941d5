package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mjsoler/ragmux/internal/tool"
)

type fakeTool struct {
	spec tool.Spec
	ev   *tool.Evidence
	err  error
}

func (f *fakeTool) Spec() tool.Spec { return f.spec }

func (f *fakeTool) Invoke(_ context.Context, _ string) (*tool.Evidence, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ev, nil
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected one content block, got %d", len(res.Content))
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return tc.Text
}

func TestInvokeHandlerReturnsPayloadAndSources(t *testing.T) {
	impl := &fakeTool{
		spec: tool.Spec{Name: "structured_data_query"},
		ev: &tool.Evidence{
			ToolName: "structured_data_query",
			Payload:  "Name=AC/DC",
			Sources:  []string{"Artist"},
		},
	}
	handler := invokeHandler(impl)

	res, _, err := handler(context.Background(), nil, QueryInput{Query: "which artists exist"})
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if res.IsError {
		t.Fatal("expected a success result")
	}
	text := textOf(t, res)
	if !strings.Contains(text, "Name=AC/DC") {
		t.Errorf("payload missing from result: %q", text)
	}
	if !strings.Contains(text, "Sources: Artist") {
		t.Errorf("sources missing from result: %q", text)
	}
}

func TestInvokeHandlerEmptyResult(t *testing.T) {
	impl := &fakeTool{
		spec: tool.Spec{Name: "customer_feedback_search"},
		err:  tool.ErrEmptyResult,
	}
	handler := invokeHandler(impl)

	res, _, err := handler(context.Background(), nil, QueryInput{Query: "anything"})
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if res.IsError {
		t.Fatal("empty result should not be a protocol error")
	}
	if got := textOf(t, res); got != "No relevant results found." {
		t.Errorf("unexpected text: %q", got)
	}
}

func TestInvokeHandlerToolFailure(t *testing.T) {
	impl := &fakeTool{
		spec: tool.Spec{Name: "product_details_search"},
		err:  tool.ErrBackendUnavailable,
	}
	handler := invokeHandler(impl)

	res, _, err := handler(context.Background(), nil, QueryInput{Query: "anything"})
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected an error result")
	}
	if got := textOf(t, res); !strings.Contains(got, "unavailable") {
		t.Errorf("unexpected text: %q", got)
	}
}

func TestInvokeHandlerRejectsBlankQuery(t *testing.T) {
	handler := invokeHandler(&fakeTool{spec: tool.Spec{Name: "structured_data_query"}})

	res, _, err := handler(context.Background(), nil, QueryInput{Query: "   "})
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected an error result for a blank query")
	}
}

func TestNewRegistersEveryTool(t *testing.T) {
	reg := tool.NewRegistry()
	for _, name := range []string{"structured_data_query", "product_details_search", "customer_feedback_search"} {
		if err := reg.Register(&fakeTool{spec: tool.Spec{Name: name, Description: name + " desc"}}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	srv, err := New(reg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if srv == nil {
		t.Fatal("expected a server")
	}
}
