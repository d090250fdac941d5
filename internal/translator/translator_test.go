package translator

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/mjsoler/ragmux/internal/infra/db"
	"github.com/mjsoler/ragmux/internal/infra/llm"
)

// scriptedChat returns canned SQL statements, one per ChatCompletion call.
// With repeat set, the last reply is reused once the script runs out.
type scriptedChat struct {
	mu      sync.Mutex
	replies []string
	calls   int
	err     error
	repeat  bool
}

func (s *scriptedChat) ChatCompletion(_ context.Context, _ llm.ChatRequest) (*llm.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.calls >= len(s.replies) {
		if !s.repeat || len(s.replies) == 0 {
			return nil, errors.New("no scripted reply left")
		}
		return &llm.ChatResponse{Content: s.replies[len(s.replies)-1]}, nil
	}
	reply := s.replies[s.calls]
	s.calls++
	return &llm.ChatResponse{Content: reply}, nil
}

func (s *scriptedChat) Embed(_ context.Context, _ llm.EmbedRequest) (*llm.EmbedResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *scriptedChat) ModelInfo() llm.ModelMeta         { return llm.ModelMeta{Provider: "scripted"} }
func (s *scriptedChat) HealthCheck(_ context.Context) error { return nil }

func seedMusicStore(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	stmts := []string{
		`CREATE TABLE "Artist" ("ArtistId" INTEGER PRIMARY KEY, "Name" TEXT)`,
		`CREATE TABLE "Album" ("AlbumId" INTEGER PRIMARY KEY, "Title" TEXT, "ArtistId" INTEGER)`,
		`CREATE TABLE "Track" ("TrackId" INTEGER PRIMARY KEY, "Name" TEXT, "AlbumId" INTEGER, "Composer" TEXT)`,
		`INSERT INTO "Artist" VALUES (1, 'AC/DC')`,
		`INSERT INTO "Album" VALUES (1, 'For Those About To Rock We Salute You', 1)`,
		`INSERT INTO "Track" VALUES (1, 'For Those About To Rock (We Salute You)', 1, 'Angus Young, Malcolm Young, Brian Johnson')`,
		`INSERT INTO "Track" VALUES (2, 'Put The Finger On You', 1, 'Angus Young, Malcolm Young, Brian Johnson')`,
	}
	for _, s := range stmts {
		if _, err := conn.Exec(s); err != nil {
			t.Fatalf("seed %q: %v", s, err)
		}
	}
	return conn
}

func TestTranslator_Query_ComposerLookup(t *testing.T) {
	conn := seedMusicStore(t)
	chat := &scriptedChat{replies: []string{
		"```sql\nSELECT \"Composer\" FROM \"Track\" WHERE \"Name\" LIKE 'For Those About To Rock%'\n```",
	}}
	tr := New(conn, chat, zap.NewNop())

	res, err := tr.Query(context.Background(), "Who is the composer for the track 'For Those About to Rock'?")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d: %v", len(res.Rows), res.Rows)
	}
	if !strings.Contains(res.Rows[0], "Composer=Angus Young") {
		t.Errorf("expected column=value serialization, got %q", res.Rows[0])
	}
	if !strings.HasSuffix(res.SQL, "LIMIT 50") {
		t.Errorf("expected row cap injected, got %q", res.SQL)
	}
	if len(res.Tables) != 1 || res.Tables[0] != "Track" {
		t.Errorf("expected referenced tables [Track], got %v", res.Tables)
	}
}

func TestTranslator_Query_RejectsDataModification(t *testing.T) {
	conn := seedMusicStore(t)
	chat := &scriptedChat{replies: []string{`DELETE FROM "Artist"`}}
	tr := New(conn, chat, zap.NewNop())

	_, err := tr.Query(context.Background(), "remove all artists")
	if !errors.Is(err, ErrUnsafe) {
		t.Fatalf("expected ErrUnsafe, got %v", err)
	}

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM "Artist"`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("guarded statement must never execute, artist count = %d", n)
	}
}

func TestTranslator_Query_ZeroRowsIsNotAnError(t *testing.T) {
	conn := seedMusicStore(t)
	chat := &scriptedChat{replies: []string{`SELECT "Name" FROM "Artist" WHERE "Name" = 'Nobody'`}}
	tr := New(conn, chat, zap.NewNop())

	res, err := tr.Query(context.Background(), "find the artist named Nobody")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res.Rows) != 0 {
		t.Errorf("expected zero rows, got %v", res.Rows)
	}
}

func TestTranslator_Query_GenerationFailure(t *testing.T) {
	conn := seedMusicStore(t)
	chat := &scriptedChat{err: errors.New("model unreachable")}
	tr := New(conn, chat, zap.NewNop())

	_, err := tr.Query(context.Background(), "anything")
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestTranslator_Query_BadSQLIsExecutionFailure(t *testing.T) {
	conn := seedMusicStore(t)
	chat := &scriptedChat{replies: []string{`SELECT "NoSuchColumn" FROM "Artist"`}}
	tr := New(conn, chat, zap.NewNop())

	_, err := tr.Query(context.Background(), "nonsense")
	if !errors.Is(err, ErrExecution) {
		t.Fatalf("expected ErrExecution, got %v", err)
	}
}

func TestTranslator_Query_ConcurrentSessionsShareOneTranslator(t *testing.T) {
	conn := seedMusicStore(t)
	chat := &scriptedChat{
		replies: []string{`SELECT "Name" FROM "Artist"`},
		repeat:  true,
	}
	tr := New(conn, chat, zap.NewNop())

	// All sessions race on the first schema introspection.
	const sessions = 8
	var wg sync.WaitGroup
	errs := make([]error, sessions)
	rows := make([]int, sessions)
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := tr.Query(context.Background(), "list every artist")
			if err != nil {
				errs[i] = err
				return
			}
			rows[i] = len(res.Rows)
		}(i)
	}
	wg.Wait()

	for i := 0; i < sessions; i++ {
		if errs[i] != nil {
			t.Fatalf("session %d: %v", i, errs[i])
		}
		if rows[i] != 1 {
			t.Errorf("session %d: expected 1 row, got %d", i, rows[i])
		}
	}
}

func TestTranslator_SchemaRendering_OnlyAllowListedTables(t *testing.T) {
	conn := seedMusicStore(t)
	if _, err := conn.Exec(`CREATE TABLE "Secret" ("Key" TEXT)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	tr := New(conn, &scriptedChat{}, zap.NewNop())

	schema, err := tr.renderSchema(context.Background())
	if err != nil {
		t.Fatalf("renderSchema: %v", err)
	}
	if strings.Contains(schema, "Secret") {
		t.Errorf("schema must not expose tables outside the allow-list: %s", schema)
	}
	for _, want := range []string{"Artist", "Album", "Track", "Composer"} {
		if !strings.Contains(schema, want) {
			t.Errorf("schema missing %s: %s", want, schema)
		}
	}
}
