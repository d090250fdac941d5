package translator

import (
	"fmt"
	"strings"
)

// forbiddenKeywords are rejected anywhere in a candidate statement, even
// inside subqueries. The list is deliberately broader than what a read-only
// connection would block; the guard is the invariant, the connection options
// are backstop.
var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE", "TRUNCATE",
	"GRANT", "REVOKE", "ATTACH", "PRAGMA", "COPY", "EXEC", "MERGE",
	"VACUUM", "REPLACE", "INTO",
}

// Guard validates that a model-generated statement is a single read-only
// query. A statement that fails the guard is never executed.
func Guard(stmt string) error {
	cleaned := stripComments(stmt)
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimSuffix(cleaned, ";")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return fmt.Errorf("empty statement")
	}
	if strings.Contains(cleaned, ";") {
		return fmt.Errorf("multiple statements")
	}

	upper := strings.ToUpper(cleaned)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("only SELECT statements are allowed")
	}

	for _, kw := range forbiddenKeywords {
		if containsKeyword(upper, kw) {
			return fmt.Errorf("forbidden keyword %s", kw)
		}
	}
	return nil
}

// stripComments removes SQL line comments (-- ...) and block comments
// (/* ... */) so forbidden keywords cannot hide inside them and commented
// statements cannot smuggle a second one.
func stripComments(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); {
		if i+1 < len(s) && s[i] == '-' && s[i+1] == '-' {
			for i < len(s) && s[i] != '\n' {
				i++
			}
			continue
		}
		if i+1 < len(s) && s[i] == '/' && s[i+1] == '*' {
			i += 2
			for i+1 < len(s) && !(s[i] == '*' && s[i+1] == '/') {
				i++
			}
			i += 2
			sb.WriteByte(' ')
			continue
		}
		sb.WriteByte(s[i])
		i++
	}
	return sb.String()
}

// containsKeyword reports whether upper contains kw as a whole word.
// Both inputs must already be upper-cased.
func containsKeyword(upper, kw string) bool {
	for start := 0; ; {
		idx := strings.Index(upper[start:], kw)
		if idx < 0 {
			return false
		}
		idx += start
		before := idx == 0 || !isWordByte(upper[idx-1])
		afterIdx := idx + len(kw)
		after := afterIdx >= len(upper) || !isWordByte(upper[afterIdx])
		if before && after {
			return true
		}
		start = idx + len(kw)
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z')
}
