// Package vecindex implements the persistent vector indexes behind the
// semantic retrieval tools. An index is built offline from a document corpus
// and served read-only at query time; rebuilds go to a scratch location and
// are swapped in atomically so in-flight sessions keep their old handle.
package vecindex

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
)

// Record is one embedded chunk as persisted in an index.
type Record struct {
	ID     string    // unique chunk identifier
	DocID  string    // source document identifier
	Offset int       // chunk ordinal within the source document
	Text   string    // chunk text
	Vector []float32 // embedding, same model as query-time embedding
}

// Hit is a single nearest-neighbor result.
type Hit struct {
	Record
	Similarity float32 // cosine similarity in [−1, 1]
}

// Index is the read side: k-nearest-neighbor lookup over embedded chunks.
// Implementations must be safe for concurrent readers.
type Index interface {
	// Search returns up to k records closest to vector, ordered by
	// descending cosine similarity.
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)

	// Count reports how many records the index holds.
	Count(ctx context.Context) (int, error)

	Close() error
}

// Writer is the build side, used only by the offline Builder.
// Init prepares the scratch target, Append adds embedded records, and Commit
// atomically publishes the finished index for new readers.
type Writer interface {
	Init(ctx context.Context) error
	Append(ctx context.Context, recs []Record) error
	Commit(ctx context.Context) error
}

// cosineSimilarity computes cosine similarity between two float32 vectors.
// Returns 0 if either vector has zero magnitude or lengths differ.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}

// encodeEmbedding serialises a float32 slice to JSON TEXT for storage.
// e.g. [0.1, 0.2, 0.3] → "[0.1,0.2,0.3]"
func encodeEmbedding(vec []float32) (string, error) {
	b, err := json.Marshal(vec)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeEmbedding deserialises a JSON TEXT vector back to []float32.
func decodeEmbedding(jsonStr string) ([]float32, error) {
	var vec []float32
	if err := json.Unmarshal([]byte(jsonStr), &vec); err != nil {
		return nil, fmt.Errorf("decodeEmbedding: %w", err)
	}
	return vec, nil
}
