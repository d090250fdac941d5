package vecindex

import (
	"context"
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mjsoler/ragmux/internal/infra/eventbus"
	"github.com/mjsoler/ragmux/internal/infra/llm"
	"github.com/mjsoler/ragmux/pkg/uuid"
)

// Chunking and batching parameters for corpus ingestion.
const (
	chunkTokens  = 200
	chunkOverlap = 40
	embedBatch   = 16
)

// Builder turns a directory of source documents into a searchable index.
// Plain-text and markdown files are split into overlapping token windows;
// CSV files contribute one chunk per data row, each prefixed with the header
// so a row stays interpretable on its own.
type Builder struct {
	provider llm.Provider
	bus      *eventbus.Bus
	log      *zap.Logger
}

// NewBuilder wires a corpus builder. bus may be nil when no one listens for
// rebuild notifications (the offline CLI path).
func NewBuilder(provider llm.Provider, bus *eventbus.Bus, log *zap.Logger) *Builder {
	return &Builder{provider: provider, bus: bus, log: log}
}

// Build walks srcDir, embeds every chunk, and streams records into w.
// On success the finished index is published under corpus via Commit's
// atomic swap, and a rebuild event is emitted so live readers reload.
func (b *Builder) Build(ctx context.Context, corpus, srcDir string, w Writer) error {
	if err := w.Init(ctx); err != nil {
		return fmt.Errorf("vecindex: init writer for %s: %w", corpus, err)
	}

	var (
		docs   int
		chunks int
		batch  []Record
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].Text
		}
		resp, err := b.provider.Embed(ctx, llm.EmbedRequest{Texts: texts})
		if err != nil {
			return fmt.Errorf("vecindex: embed batch: %w", err)
		}
		if len(resp.Embeddings) != len(batch) {
			return fmt.Errorf("vecindex: embed batch: got %d vectors for %d texts",
				len(resp.Embeddings), len(batch))
		}
		for i := range batch {
			batch[i].Vector = resp.Embeddings[i]
		}
		if err := w.Append(ctx, batch); err != nil {
			return err
		}
		chunks += len(batch)
		batch = batch[:0]
		return nil
	}

	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		var pieces []string
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
			data, readErr := os.ReadFile(path)
			if readErr != nil {
				return readErr
			}
			pieces = Chunk(string(data), chunkTokens, chunkOverlap)
		case ".csv":
			pieces, err = csvRows(path)
			if err != nil {
				return err
			}
		default:
			return nil // unsupported file type, skip
		}
		if len(pieces) == 0 {
			return nil
		}

		docID, relErr := filepath.Rel(srcDir, path)
		if relErr != nil {
			docID = filepath.Base(path)
		}
		for i, text := range pieces {
			batch = append(batch, Record{
				ID:     uuid.NewV7().String(),
				DocID:  docID,
				Offset: i,
				Text:   text,
			})
			if len(batch) >= embedBatch {
				if flushErr := flush(); flushErr != nil {
					return flushErr
				}
			}
		}
		docs++
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("vecindex: walk %s: %w", srcDir, walkErr)
	}
	if err := flush(); err != nil {
		return err
	}
	if docs == 0 {
		return fmt.Errorf("vecindex: no ingestable documents under %s", srcDir)
	}

	if err := w.Commit(ctx); err != nil {
		return fmt.Errorf("vecindex: commit %s: %w", corpus, err)
	}

	b.log.Info("index rebuilt",
		zap.String("corpus", corpus),
		zap.Int("documents", docs),
		zap.Int("chunks", chunks))

	if b.bus != nil {
		b.bus.Publish(eventbus.TopicIndexRebuilt, corpus)
	}
	return nil
}

// csvRows reads a CSV file and renders each data row as "header: value"
// pairs joined on one line. A file with only a header yields nothing.
func csvRows(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("vecindex: parse csv %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	header := records[0]
	rows := make([]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		var sb strings.Builder
		for i, field := range rec {
			if strings.TrimSpace(field) == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString("; ")
			}
			if i < len(header) {
				sb.WriteString(header[i])
				sb.WriteString(": ")
			}
			sb.WriteString(field)
		}
		if sb.Len() > 0 {
			rows = append(rows, sb.String())
		}
	}
	return rows, nil
}
