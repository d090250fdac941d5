package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/mjsoler/ragmux/internal/infra/llm"
	"github.com/mjsoler/ragmux/internal/vecindex"
)

// SemanticSearch answers a query by embedding it and running nearest-neighbor
// retrieval against one corpus index. The same tool type backs both
// the product-documentation corpus and the customer-feedback corpus; only
// the spec and corpus name differ.
type SemanticSearch struct {
	spec          Spec
	corpus        string
	catalog       *vecindex.Catalog
	provider      llm.Provider
	searchK       int
	minSimilarity float32
}

// NewSemanticSearch wires a semantic retrieval tool over one corpus.
func NewSemanticSearch(spec Spec, corpus string, catalog *vecindex.Catalog, provider llm.Provider, searchK int, minSimilarity float32) *SemanticSearch {
	if searchK <= 0 {
		searchK = 4
	}
	return &SemanticSearch{
		spec:          spec,
		corpus:        corpus,
		catalog:       catalog,
		provider:      provider,
		searchK:       searchK,
		minSimilarity: minSimilarity,
	}
}

func (s *SemanticSearch) Spec() Spec { return s.spec }

// Invoke embeds the query, retrieves the top-k chunks, drops hits below the
// similarity floor, and concatenates the survivors into one evidence payload
// with their source identifiers. All hits below the floor is a normal empty
// outcome, not a failure.
func (s *SemanticSearch) Invoke(ctx context.Context, query string) (*Evidence, error) {
	idx, err := s.catalog.Get(s.corpus)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	emb, err := s.provider.Embed(ctx, llm.EmbedRequest{Texts: []string{query}})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: embedding: %v", ErrToolTimeout, err)
		}
		return nil, fmt.Errorf("%w: embedding: %v", ErrBackendUnavailable, err)
	}
	if len(emb.Embeddings) != 1 {
		return nil, fmt.Errorf("%w: embedding returned %d vectors", ErrBackendUnavailable, len(emb.Embeddings))
	}

	hits, err := idx.Search(ctx, emb.Embeddings[0], s.searchK)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: search: %v", ErrToolTimeout, err)
		}
		return nil, fmt.Errorf("%w: search: %v", ErrBackendUnavailable, err)
	}

	var (
		sb      strings.Builder
		sources []string
		seen    = map[string]bool{}
	)
	for _, h := range hits {
		if h.Similarity < s.minSimilarity {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%s#%d] %s", h.DocID, h.Offset, h.Text)
		if !seen[h.DocID] {
			seen[h.DocID] = true
			sources = append(sources, h.DocID)
		}
	}
	if sb.Len() == 0 {
		return nil, ErrEmptyResult
	}

	return &Evidence{
		ToolName: s.spec.Name,
		Query:    query,
		Payload:  sb.String(),
		Sources:  sources,
	}, nil
}
