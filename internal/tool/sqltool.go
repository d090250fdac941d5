package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mjsoler/ragmux/internal/translator"
)

// StructuredQuery answers questions about facts held in the relational
// store by delegating to the translator. The translator owns query
// generation and the read-only guard; this wrapper only maps outcomes onto
// the shared evidence contract.
type StructuredQuery struct {
	spec Spec
	tr   *translator.Translator
}

func NewStructuredQuery(spec Spec, tr *translator.Translator) *StructuredQuery {
	return &StructuredQuery{spec: spec, tr: tr}
}

func (s *StructuredQuery) Spec() Spec { return s.spec }

func (s *StructuredQuery) Invoke(ctx context.Context, query string) (*Evidence, error) {
	res, err := s.tr.Query(ctx, query)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return nil, fmt.Errorf("%w: %v", ErrToolTimeout, err)
	case errors.Is(err, translator.ErrGeneration):
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	if len(res.Rows) == 0 {
		return nil, ErrEmptyResult
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\n", res.SQL)
	for _, row := range res.Rows {
		sb.WriteString(row)
		sb.WriteString("\n")
	}

	return &Evidence{
		ToolName: s.spec.Name,
		Query:    query,
		Payload:  strings.TrimRight(sb.String(), "\n"),
		Sources:  res.Tables,
	}, nil
}
