package tool

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mjsoler/ragmux/internal/infra/db"
	"github.com/mjsoler/ragmux/internal/infra/llm"
	"github.com/mjsoler/ragmux/internal/translator"
)

type cannedChat struct {
	reply string
	err   error
}

func (c *cannedChat) ChatCompletion(_ context.Context, _ llm.ChatRequest) (*llm.ChatResponse, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &llm.ChatResponse{Content: c.reply}, nil
}

func (c *cannedChat) Embed(_ context.Context, _ llm.EmbedRequest) (*llm.EmbedResponse, error) {
	return nil, errors.New("not implemented")
}

func (c *cannedChat) ModelInfo() llm.ModelMeta          { return llm.ModelMeta{Provider: "canned"} }
func (c *cannedChat) HealthCheck(_ context.Context) error { return nil }

func seedArtists(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	for _, s := range []string{
		`CREATE TABLE "Artist" ("ArtistId" INTEGER PRIMARY KEY, "Name" TEXT)`,
		`INSERT INTO "Artist" VALUES (1, 'AC/DC')`,
	} {
		if _, err := conn.Exec(s); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return conn
}

func TestStructuredQuery_RowsBecomeEvidence(t *testing.T) {
	conn := seedArtists(t)
	tr := translator.New(conn, &cannedChat{reply: `SELECT "Name" FROM "Artist"`}, zap.NewNop())
	sq := NewStructuredQuery(StructuredQuerySpec, tr)

	ev, err := sq.Invoke(context.Background(), "list the artists")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(ev.Payload, "Name=AC/DC") {
		t.Errorf("expected serialized row in payload, got %q", ev.Payload)
	}
	if len(ev.Sources) != 1 || ev.Sources[0] != "Artist" {
		t.Errorf("expected sources [Artist], got %v", ev.Sources)
	}
}

func TestStructuredQuery_ZeroRows_IsEmptyResult(t *testing.T) {
	conn := seedArtists(t)
	tr := translator.New(conn, &cannedChat{reply: `SELECT "Name" FROM "Artist" WHERE "ArtistId" = 99`}, zap.NewNop())
	sq := NewStructuredQuery(StructuredQuerySpec, tr)

	_, err := sq.Invoke(context.Background(), "find artist 99")
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
}

func TestStructuredQuery_UnsafeStatement_IsQueryFailed(t *testing.T) {
	conn := seedArtists(t)
	tr := translator.New(conn, &cannedChat{reply: `DROP TABLE "Artist"`}, zap.NewNop())
	sq := NewStructuredQuery(StructuredQuerySpec, tr)

	_, err := sq.Invoke(context.Background(), "remove the artists table")
	if !errors.Is(err, ErrQueryFailed) {
		t.Fatalf("expected ErrQueryFailed, got %v", err)
	}
}

func TestStructuredQuery_GenerationFailure_IsBackendUnavailable(t *testing.T) {
	conn := seedArtists(t)
	tr := translator.New(conn, &cannedChat{err: errors.New("model down")}, zap.NewNop())
	sq := NewStructuredQuery(StructuredQuerySpec, tr)

	_, err := sq.Invoke(context.Background(), "anything")
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}
