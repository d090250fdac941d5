package vecindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mjsoler/ragmux/internal/infra/db"
)

// indexFileName is the sqlite file inside every index directory.
const indexFileName = "index.db"

// buildingSuffix marks the scratch directory a rebuild writes into before the
// atomic swap.
const buildingSuffix = ".building"

var errIndexNotBuilt = errors.New("vector index not built")

// Meta keys every index records at build time. Query-time embeddings are
// only comparable to stored ones when both come from the same model, so the
// catalog checks MetaEmbedModel before serving an index.
const (
	MetaEmbedModel = "embed_model"
	MetaDimension  = "dimension"
)

const localSchema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chunk (
	id           TEXT PRIMARY KEY,
	doc_id       TEXT NOT NULL,
	chunk_offset INTEGER NOT NULL,
	chunk_text   TEXT NOT NULL,
	embedding    TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunk_doc ON chunk(doc_id);
`

// Local is a directory-addressable index backed by a sqlite file.
// k-NN is exact: all vectors are loaded and scored with in-memory cosine
// similarity, which is fine for corpus sizes in the tens of thousands.
type Local struct {
	dir  string
	conn *sql.DB
}

// OpenLocal opens the index stored in dir for read-only querying.
// Returns errIndexNotBuilt (wrapped) if the directory has no index file.
func OpenLocal(dir string) (*Local, error) {
	path := filepath.Join(dir, indexFileName)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("vecindex: open %s: %w", dir, errIndexNotBuilt)
	}
	conn, err := db.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("vecindex: open %s: %w", dir, err)
	}
	return &Local{dir: dir, conn: conn}, nil
}

// Search loads all vectors, scores them against the query vector, and returns
// the top-k by cosine similarity.
func (l *Local) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		k = 4
	}

	rows, err := l.conn.QueryContext(ctx, `
		SELECT id, doc_id, chunk_offset, chunk_text, embedding
		FROM chunk
	`)
	if err != nil {
		return nil, fmt.Errorf("vecindex: search fetch: %w", err)
	}
	defer rows.Close()

	var scored []Hit
	for rows.Next() {
		var (
			rec     Record
			rawEmb  string
		)
		if scanErr := rows.Scan(&rec.ID, &rec.DocID, &rec.Offset, &rec.Text, &rawEmb); scanErr != nil {
			return nil, fmt.Errorf("vecindex: search scan: %w", scanErr)
		}
		vec, decodeErr := decodeEmbedding(rawEmb)
		if decodeErr != nil {
			continue // skip malformed vectors
		}
		rec.Vector = vec
		scored = append(scored, Hit{Record: rec, Similarity: cosineSimilarity(vector, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vecindex: search rows: %w", err)
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Count reports how many chunks the index holds.
func (l *Local) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunk`).Scan(&n); err != nil {
		return 0, fmt.Errorf("vecindex: count: %w", err)
	}
	return n, nil
}

// Meta returns the stored value for key ("" if absent). Used to check that
// the query-time embed model matches the one the index was built with.
func (l *Local) Meta(ctx context.Context, key string) (string, error) {
	var v string
	err := l.conn.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("vecindex: meta %q: %w", key, err)
	}
	return v, nil
}

// Close releases the underlying sqlite handle.
func (l *Local) Close() error {
	return l.conn.Close()
}

// ─── build side ──────────────────────────────────────────────────────────────

// LocalWriter builds a new index into <dir>.building and swaps it into <dir>
// on Commit. The swap is a directory rename, so readers opened against the
// old directory contents keep working on their open sqlite handle.
type LocalWriter struct {
	dir        string
	embedModel string
	dim        int
	conn       *sql.DB
}

// NewLocalWriter prepares a writer targeting dir.
func NewLocalWriter(dir, embedModel string) *LocalWriter {
	return &LocalWriter{dir: dir, embedModel: embedModel}
}

// Init creates the scratch directory and an empty index schema inside it.
// Any leftover scratch from an aborted build is discarded first.
func (w *LocalWriter) Init(ctx context.Context) error {
	scratch := w.dir + buildingSuffix
	if err := os.RemoveAll(scratch); err != nil {
		return fmt.Errorf("vecindex: clear scratch %s: %w", scratch, err)
	}
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return fmt.Errorf("vecindex: create scratch %s: %w", scratch, err)
	}

	conn, err := db.NewSQLite(filepath.Join(scratch, indexFileName))
	if err != nil {
		return fmt.Errorf("vecindex: open scratch db: %w", err)
	}
	if _, err := conn.ExecContext(ctx, localSchema); err != nil {
		conn.Close()
		return fmt.Errorf("vecindex: create schema: %w", err)
	}
	if _, err := conn.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)`, MetaEmbedModel, w.embedModel); err != nil {
		conn.Close()
		return fmt.Errorf("vecindex: write meta: %w", err)
	}
	w.conn = conn
	return nil
}

// Append stores a batch of embedded records in a single transaction.
func (w *LocalWriter) Append(ctx context.Context, recs []Record) error {
	if w.conn == nil {
		return fmt.Errorf("vecindex: writer not initialized")
	}
	if len(recs) == 0 {
		return nil
	}

	tx, err := w.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vecindex: append begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// The embedding model fixes the dimension; record it with the first batch.
	if w.dim == 0 && len(recs[0].Vector) > 0 {
		w.dim = len(recs[0].Vector)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?)`, MetaDimension, w.dim); err != nil {
			return fmt.Errorf("vecindex: write dimension meta: %w", err)
		}
	}

	now := time.Now().UTC()
	for i, rec := range recs {
		emb, encErr := encodeEmbedding(rec.Vector)
		if encErr != nil {
			return fmt.Errorf("vecindex: encode embedding[%d]: %w", i, encErr)
		}
		if _, execErr := tx.ExecContext(ctx, `
			INSERT INTO chunk (id, doc_id, chunk_offset, chunk_text, embedding, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rec.ID, rec.DocID, rec.Offset, rec.Text, emb, now); execErr != nil {
			return fmt.Errorf("vecindex: insert chunk[%d]: %w", i, execErr)
		}
	}
	return tx.Commit()
}

// Commit closes the scratch database and swaps the scratch directory into
// place. The previous index directory (if any) is removed after the swap.
func (w *LocalWriter) Commit(_ context.Context) error {
	if w.conn == nil {
		return fmt.Errorf("vecindex: writer not initialized")
	}
	if err := w.conn.Close(); err != nil {
		return fmt.Errorf("vecindex: close scratch db: %w", err)
	}
	w.conn = nil

	scratch := w.dir + buildingSuffix
	old := w.dir + ".old"

	// Move the current index aside (ignore if it never existed), then put
	// the new one in place. Rename is atomic within a filesystem.
	_ = os.RemoveAll(old)
	if _, err := os.Stat(w.dir); err == nil {
		if err := os.Rename(w.dir, old); err != nil {
			return fmt.Errorf("vecindex: move old index aside: %w", err)
		}
	}
	if err := os.Rename(scratch, w.dir); err != nil {
		return fmt.Errorf("vecindex: swap in new index: %w", err)
	}
	_ = os.RemoveAll(old)
	return nil
}
