package migrate

import (
	"errors"
	"regexp"
	"strings"
)

var createTableHeader = regexp.MustCompile(`(?is)^\s*create\s+(?:or\s+replace\s+)?(?:(?:global|local)\s+)?(?:(?:transient|temporary|temp|volatile|unlogged)\s+)?table\s+(?:if\s+not\s+exists\s+)?`)

// qualifierRewrite maps one spelling of the source qualifier to the target's.
type qualifierRewrite struct {
	from, to string
}

// rewriteDDL points a CREATE TABLE statement at the target catalog. The table
// name in the header is replaced by targetTable. Elsewhere, source
// qualifiers are replaced only where they qualify a name (followed by '.')
// and never inside string literals or comments.
func rewriteDDL(ddl, targetTable string, rewrites []qualifierRewrite) (string, error) {
	loc := createTableHeader.FindStringIndex(ddl)
	if loc == nil {
		return "", errors.New("statement is not a CREATE TABLE")
	}

	nameEnd, ok := scanQualifiedName(ddl, loc[1])
	if !ok {
		return "", errors.New("CREATE TABLE statement has no table name")
	}

	var b strings.Builder
	b.WriteString(ddl[:loc[1]])
	b.WriteString(targetTable)
	b.WriteString(substituteQualifiers(ddl[nameEnd:], rewrites))
	return b.String(), nil
}

// scanQualifiedName returns the end offset of a dotted, possibly quoted
// identifier starting at pos.
func scanQualifiedName(s string, pos int) (int, bool) {
	end := pos
	parts := 0
	for {
		next, ok := scanIdentPart(s, pos)
		if !ok {
			break
		}
		parts++
		end = next

		i := skipSpaces(s, end)
		if i < len(s) && s[i] == '.' {
			pos = skipSpaces(s, i+1)
			continue
		}
		break
	}
	return end, parts > 0
}

func scanIdentPart(s string, pos int) (int, bool) {
	if pos >= len(s) {
		return pos, false
	}
	switch s[pos] {
	case '"', '`':
		return scanQuoted(s, pos, s[pos])
	case '[':
		return scanQuoted(s, pos, ']')
	}
	i := pos
	for i < len(s) && isIdentChar(s[i]) {
		i++
	}
	return i, i > pos
}

// scanQuoted scans a quoted identifier whose closing character is doubled to
// escape it.
func scanQuoted(s string, pos int, closing byte) (int, bool) {
	for i := pos + 1; i < len(s); i++ {
		if s[i] != closing {
			continue
		}
		if i+1 < len(s) && s[i+1] == closing {
			i++
			continue
		}
		return i + 1, true
	}
	return pos, false
}

func substituteQualifiers(s string, rewrites []qualifierRewrite) string {
	active := rewrites[:0:0]
	for _, r := range rewrites {
		if r.from != "" && r.from != r.to {
			active = append(active, r)
		}
	}
	if len(active) == 0 {
		return s
	}

	var b strings.Builder
	i := 0
	for i < len(s) {
		switch {
		case s[i] == '\'':
			end := skipStringLiteral(s, i)
			b.WriteString(s[i:end])
			i = end
			continue
		case strings.HasPrefix(s[i:], "--"):
			end := strings.IndexByte(s[i:], '\n')
			if end < 0 {
				end = len(s) - i
			}
			b.WriteString(s[i : i+end])
			i += end
			continue
		case strings.HasPrefix(s[i:], "/*"):
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				b.WriteString(s[i:])
				return b.String()
			}
			b.WriteString(s[i : i+2+end+2])
			i += 2 + end + 2
			continue
		}

		if r, ok := matchQualifier(s, i, active); ok {
			b.WriteString(r.to)
			i += len(r.from)
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

func matchQualifier(s string, i int, rewrites []qualifierRewrite) (qualifierRewrite, bool) {
	if i > 0 {
		prev := s[i-1]
		if isIdentChar(prev) || prev == '.' || prev == '"' || prev == '`' || prev == ']' {
			return qualifierRewrite{}, false
		}
	}
	for _, r := range rewrites {
		if !strings.HasPrefix(s[i:], r.from) {
			continue
		}
		if j := skipSpaces(s, i+len(r.from)); j < len(s) && s[j] == '.' {
			return r, true
		}
	}
	return qualifierRewrite{}, false
}

func skipStringLiteral(s string, pos int) int {
	for i := pos + 1; i < len(s); i++ {
		if s[i] != '\'' {
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			i++
			continue
		}
		return i + 1
	}
	return len(s)
}

func skipSpaces(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
		c >= 0x80
}
