// Package translator converts a natural-language question into one
// read-only SQL query against the music-store schema, executes it, and
// serializes the result rows to text. Generated statements pass Guard
// before execution; the allow-listed tables are the only schema surface the
// generation prompt ever sees.
package translator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mjsoler/ragmux/internal/infra/llm"
)

// AllowedTables is the schema surface exposed to query generation. The
// database may hold more tables; the translator never mentions them.
var AllowedTables = []string{
	"Artist", "Album", "Track", "Customer", "Employee", "Invoice", "InvoiceLine",
}

// Serialization caps. Rows beyond rowCap are cut by a LIMIT injected into
// the statement; columns beyond colCap are cut at serialization with a note.
const (
	rowCap = 50
	colCap = 12
)

// Translator-level failure classes, wrapped into every returned error.
var (
	ErrGeneration = errors.New("sql generation failed")
	ErrUnsafe     = errors.New("generated statement rejected")
	ErrExecution  = errors.New("sql execution failed")
)

// Result is one executed query with its serialized rows.
type Result struct {
	SQL       string
	Columns   []string
	Rows      []string // one "col=val col=val ..." line per row
	Tables    []string // allow-listed tables the statement references
	Truncated bool     // column cap applied
}

type Translator struct {
	db   *sql.DB
	chat llm.Provider
	log  *zap.Logger

	// One Translator serves every concurrent session; the cached schema
	// must not be written bare.
	schemaMu sync.Mutex
	schema   string // rendered once, on first successful introspection
}

func New(db *sql.DB, chat llm.Provider, log *zap.Logger) *Translator {
	return &Translator{db: db, chat: chat, log: log}
}

// Query turns question into SQL, validates, executes, and serializes.
// A valid query with zero rows returns a Result with empty Rows and nil
// error; callers decide what an empty result means.
func (t *Translator) Query(ctx context.Context, question string) (*Result, error) {
	schema, err := t.renderSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: introspect schema: %v", ErrExecution, err)
	}

	stmt, err := t.generate(ctx, schema, question)
	if err != nil {
		return nil, err
	}
	if err := Guard(stmt); err != nil {
		t.log.Warn("rejected generated statement",
			zap.String("sql", stmt), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnsafe, err)
	}
	stmt = ensureLimit(stmt, rowCap)

	res, err := t.execute(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	res.Tables = referencedTables(stmt)
	t.log.Debug("translated query",
		zap.String("question", question),
		zap.String("sql", stmt),
		zap.Int("rows", len(res.Rows)))
	return res, nil
}

const generatePrompt = `You translate questions into SQL for a music store database.

Schema:
%s

Rules:
- Produce exactly one SQL SELECT statement answering the question.
- Use only the tables and columns shown above.
- Quote table and column names with double quotes.
- Never modify data. No INSERT, UPDATE, DELETE, DDL.
- Reply with the SQL statement only, no explanation, no markdown.

Question: %s`

func (t *Translator) generate(ctx context.Context, schema, question string) (string, error) {
	resp, err := t.chat.ChatCompletion(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf(generatePrompt, schema, question)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	stmt := strings.TrimSpace(resp.Content)
	stmt = strings.TrimPrefix(stmt, "```sql")
	stmt = strings.TrimPrefix(stmt, "```")
	stmt = strings.TrimSuffix(stmt, "```")
	stmt = strings.TrimSpace(stmt)
	if stmt == "" {
		return "", fmt.Errorf("%w: model returned no statement", ErrGeneration)
	}
	return stmt, nil
}

// renderSchema introspects the allow-listed tables into a compact prompt
// block. "SELECT * ... LIMIT 0" works across postgres and sqlite, so the
// same rendering serves both drivers. Missing tables are skipped. The
// result is cached on success only, so a transient introspection failure
// does not poison later sessions.
func (t *Translator) renderSchema(ctx context.Context) (string, error) {
	t.schemaMu.Lock()
	defer t.schemaMu.Unlock()
	if t.schema != "" {
		return t.schema, nil
	}

	var sb strings.Builder
	found := 0
	for _, table := range AllowedTables {
		rows, err := t.db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %q LIMIT 0`, table))
		if err != nil {
			continue
		}
		types, typesErr := rows.ColumnTypes()
		rows.Close()
		if typesErr != nil {
			return "", typesErr
		}
		cols := make([]string, 0, len(types))
		for _, ct := range types {
			name := ct.Name()
			if dbType := ct.DatabaseTypeName(); dbType != "" {
				name += " " + dbType
			}
			cols = append(cols, name)
		}
		fmt.Fprintf(&sb, "%s(%s)\n", table, strings.Join(cols, ", "))
		found++
	}
	if found == 0 {
		return "", fmt.Errorf("none of the expected tables exist")
	}
	t.schema = sb.String()
	return t.schema, nil
}

func (t *Translator) execute(ctx context.Context, stmt string) (*Result, error) {
	rows, err := t.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &Result{SQL: stmt, Columns: cols}
	shown := cols
	if len(shown) > colCap {
		shown = shown[:colCap]
		res.Truncated = true
	}

	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		var line strings.Builder
		for i, col := range shown {
			if i > 0 {
				line.WriteString(" ")
			}
			fmt.Fprintf(&line, "%s=%s", col, renderValue(raw[i]))
		}
		if res.Truncated {
			fmt.Fprintf(&line, " (+%d more columns)", len(cols)-colCap)
		}
		res.Rows = append(res.Rows, line.String())
	}
	return res, rows.Err()
}

func renderValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// ensureLimit appends a row cap when the statement has none.
func ensureLimit(stmt string, n int) string {
	if containsKeyword(strings.ToUpper(stmt), "LIMIT") {
		return stmt
	}
	return fmt.Sprintf("%s LIMIT %d", strings.TrimSuffix(strings.TrimSpace(stmt), ";"), n)
}

// referencedTables lists the allow-listed tables named in the statement.
func referencedTables(stmt string) []string {
	upper := strings.ToUpper(stmt)
	var out []string
	for _, table := range AllowedTables {
		if containsKeyword(upper, strings.ToUpper(table)) {
			out = append(out, table)
		}
	}
	return out
}
