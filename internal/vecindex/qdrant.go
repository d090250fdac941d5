package vecindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Qdrant is a minimal REST client to a Qdrant collection. It implements both
// Index and Writer. Reads go through an alias; rebuilds write into a fresh
// generation-stamped backing collection and Commit re-points the alias in one
// aliases request, so readers always see a complete index.
type Qdrant struct {
	baseURL    string
	apiKey     string
	collection string // alias readers query
	building   string // backing collection of the in-progress rebuild
	dimension  int
	client     *http.Client
}

// QdrantConfig carries connection settings for a Qdrant instance.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

// NewQdrant builds a client; the collection is not created until Init.
func NewQdrant(cfg QdrantConfig) *Qdrant {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Qdrant{
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		client:     &http.Client{Timeout: timeout},
	}
}

// Init creates a fresh backing collection for a rebuild.
func (q *Qdrant) Init(ctx context.Context) error {
	if q.dimension <= 0 {
		return fmt.Errorf("vecindex: qdrant dimension must be positive")
	}
	q.building = fmt.Sprintf("%s-%d", q.collection, time.Now().UnixMilli())
	body := map[string]any{
		"vectors": map[string]any{
			"size":     q.dimension,
			"distance": "Cosine",
		},
	}
	url := fmt.Sprintf("%s/collections/%s", q.baseURL, q.building)
	return q.putJSON(ctx, url, body)
}

// Append upserts a batch of records into the scratch collection.
func (q *Qdrant) Append(ctx context.Context, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	points := make([]map[string]any, len(recs))
	for i, rec := range recs {
		points[i] = map[string]any{
			"id":     rec.ID,
			"vector": rec.Vector,
			"payload": map[string]any{
				"doc_id": rec.DocID,
				"offset": rec.Offset,
				"text":   rec.Text,
			},
		}
	}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", q.baseURL, q.building)
	return q.putJSON(ctx, url, map[string]any{"points": points})
}

// Commit re-points the read alias at the freshly built collection. Qdrant
// applies all alias operations in one request atomically, so a reader sees
// either the previous index or the new one. Superseded backing collections
// are dropped best-effort afterwards.
func (q *Qdrant) Commit(ctx context.Context) error {
	if q.building == "" {
		return fmt.Errorf("vecindex: qdrant writer not initialized")
	}
	prev, _ := q.aliasTarget(ctx)
	ops := []map[string]any{}
	if prev != "" {
		ops = append(ops, map[string]any{
			"delete_alias": map[string]any{"alias_name": q.collection},
		})
	}
	ops = append(ops, map[string]any{
		"create_alias": map[string]any{
			"collection_name": q.building,
			"alias_name":      q.collection,
		},
	})
	url := fmt.Sprintf("%s/collections/aliases", q.baseURL)
	if err := q.postJSON(ctx, url, map[string]any{"actions": ops}, nil); err != nil {
		return fmt.Errorf("vecindex: qdrant promote: %w", err)
	}
	if prev != "" && prev != q.building {
		_ = q.deleteCollection(ctx, prev)
	}
	q.building = ""
	return nil
}

// aliasTarget resolves which backing collection the read alias points at.
func (q *Qdrant) aliasTarget(ctx context.Context) (string, error) {
	var resp struct {
		Result struct {
			Aliases []struct {
				AliasName      string `json:"alias_name"`
				CollectionName string `json:"collection_name"`
			} `json:"aliases"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/aliases", q.baseURL)
	if err := q.getJSON(ctx, url, &resp); err != nil {
		return "", err
	}
	for _, a := range resp.Result.Aliases {
		if a.AliasName == q.collection {
			return a.CollectionName, nil
		}
	}
	return "", nil
}

// Search queries the active collection for the top-k nearest points.
func (q *Qdrant) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		k = 4
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float32        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", q.baseURL, q.collection)
	if err := q.postJSON(ctx, url, req, &resp); err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		rec := Record{ID: fmt.Sprint(r.ID)}
		if v, ok := r.Payload["doc_id"].(string); ok {
			rec.DocID = v
		}
		if v, ok := r.Payload["offset"].(float64); ok {
			rec.Offset = int(v)
		}
		if v, ok := r.Payload["text"].(string); ok {
			rec.Text = v
		}
		hits = append(hits, Hit{Record: rec, Similarity: r.Score})
	}
	return hits, nil
}

// Count reports the number of points in the active collection.
func (q *Qdrant) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/count", q.baseURL, q.collection)
	if err := q.postJSON(ctx, url, map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Close is a no-op; the HTTP client holds no persistent connections worth
// tearing down explicitly.
func (q *Qdrant) Close() error { return nil }

func (q *Qdrant) deleteCollection(ctx context.Context, name string) error {
	url := fmt.Sprintf("%s/collections/%s", q.baseURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	q.setHeaders(req)
	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (q *Qdrant) putJSON(ctx context.Context, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	q.setHeaders(req)
	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("vecindex: qdrant PUT %s: %s", url, resp.Status)
	}
	return nil
}

func (q *Qdrant) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	q.setHeaders(req)
	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("vecindex: qdrant POST %s: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (q *Qdrant) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	q.setHeaders(req)
	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("vecindex: qdrant GET %s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (q *Qdrant) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
}
