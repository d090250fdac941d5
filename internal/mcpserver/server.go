// Package mcpserver exposes the retrieval tools over the Model Context
// Protocol so MCP clients can query the same back-ends the HTTP router
// orchestrates. Each registered tool takes one free-text query and returns
// the evidence payload as text.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mjsoler/ragmux/internal/tool"
	"github.com/mjsoler/ragmux/internal/version"
)

// QueryInput is the single-argument schema every retrieval tool shares.
type QueryInput struct {
	Query string `json:"query" jsonschema:"Natural language query for this tool"`
}

// New creates an MCP server with every registered retrieval tool exposed
// under its catalogue name and description.
func New(registry *tool.Registry) (*mcp.Server, error) {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "ragmux",
		Version: version.Version,
	}, nil)

	for _, spec := range registry.Specs() {
		impl, err := registry.Get(spec.Name)
		if err != nil {
			return nil, fmt.Errorf("mcpserver: %w", err)
		}
		mcp.AddTool(srv, &mcp.Tool{
			Name:        spec.Name,
			Description: spec.Description,
		}, invokeHandler(impl))
	}
	return srv, nil
}

// Run serves MCP over stdio until ctx is done.
func Run(ctx context.Context, registry *tool.Registry) error {
	srv, err := New(registry)
	if err != nil {
		return err
	}
	return srv.Run(ctx, &mcp.StdioTransport{})
}

// invokeHandler adapts one retrieval tool to the MCP call contract.
// Empty results and tool failures are reported as text rather than protocol
// errors so the calling model can react to them.
func invokeHandler(impl tool.Tool) func(context.Context, *mcp.CallToolRequest, QueryInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (*mcp.CallToolResult, any, error) {
		query := strings.TrimSpace(input.Query)
		if query == "" {
			return errorResult("query must not be empty"), nil, nil
		}

		ev, err := impl.Invoke(ctx, query)
		switch {
		case errors.Is(err, tool.ErrEmptyResult):
			return textResult("No relevant results found."), nil, nil
		case err != nil:
			return errorResult(err.Error()), nil, nil
		}

		var sb strings.Builder
		sb.WriteString(ev.Payload)
		if len(ev.Sources) > 0 {
			fmt.Fprintf(&sb, "\n\nSources: %s", strings.Join(ev.Sources, ", "))
		}
		return textResult(sb.String()), nil, nil
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
