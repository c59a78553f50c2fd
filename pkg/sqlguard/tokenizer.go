// Package sqlguard restricts untrusted, AI-generated SQL to an explicit
// table allow-list. Table references are rewritten to canonical
// fully-qualified form; anything that cannot be resolved cleanly rejects the
// whole statement.
package sqlguard

import (
	"strings"
)

// TableRef is one table reference found in a statement: the keyword that
// introduced it, its dotted identifier parts, any inline alias, and the byte
// span of the identifier text for rewriting.
type TableRef struct {
	Keyword string   // FROM, JOIN, UPDATE or INTO
	Parts   []string // identifier parts with quoting stripped
	Alias   string
	Start   int // byte offset of the identifier's first character
	End     int // byte offset just past the identifier's last character
}

// Name returns the reference as written, joined with dots.
func (r *TableRef) Name() string {
	return strings.Join(r.Parts, ".")
}

type tokenKind int

const (
	tokenIdent tokenKind = iota
	tokenQuotedIdent
	tokenString
	tokenNumber
	tokenSymbol
)

type token struct {
	kind  tokenKind
	text  string // unquoted text for identifiers
	start int
	end   int
}

// lex splits the statement into tokens, discarding comments and tracking
// byte offsets. String literals are kept as single tokens so their content
// never looks like an identifier.
func lex(sql string) []token {
	var tokens []token
	i := 0
	n := len(sql)

	for i < n {
		c := sql[i]

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '-' && i+1 < n && sql[i+1] == '-':
			for i < n && sql[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < n && sql[i+1] == '*':
			i += 2
			for i+1 < n && !(sql[i] == '*' && sql[i+1] == '/') {
				i++
			}
			i += 2

		case c == '\'':
			start := i
			i++
			for i < n {
				if sql[i] == '\'' {
					if i+1 < n && sql[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			tokens = append(tokens, token{kind: tokenString, text: sql[start:i], start: start, end: i})

		case c == '`':
			start := i
			i++
			for i < n && sql[i] != '`' {
				i++
			}
			inner := sql[start+1 : i]
			if i < n {
				i++
			}
			tokens = append(tokens, token{kind: tokenQuotedIdent, text: inner, start: start, end: i})

		case c == '"':
			start := i
			i++
			for i < n && sql[i] != '"' {
				i++
			}
			inner := sql[start+1 : i]
			if i < n {
				i++
			}
			tokens = append(tokens, token{kind: tokenQuotedIdent, text: inner, start: start, end: i})

		case isIdentStart(c):
			start := i
			for i < n && isIdentPart(sql[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokenIdent, text: sql[start:i], start: start, end: i})

		case c >= '0' && c <= '9':
			start := i
			for i < n && (isIdentPart(sql[i]) || sql[i] == '.') {
				i++
			}
			tokens = append(tokens, token{kind: tokenNumber, text: sql[start:i], start: start, end: i})

		default:
			tokens = append(tokens, token{kind: tokenSymbol, text: string(c), start: i, end: i + 1})
			i++
		}
	}

	return tokens
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '$'
}

// Keywords that terminate an implicit alias position. A bare identifier
// after a table reference is an alias unless it is one of these.
var aliasStoppers = map[string]bool{
	"ON": true, "USING": true, "WHERE": true, "GROUP": true, "ORDER": true,
	"HAVING": true, "LIMIT": true, "OFFSET": true, "UNION": true, "EXCEPT": true,
	"INTERSECT": true, "JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true,
	"FULL": true, "CROSS": true, "OUTER": true, "SET": true, "RETURNING": true,
	"WINDOW": true, "QUALIFY": true, "FETCH": true, "FOR": true, "AS": true,
	"VALUES": true, "SELECT": true, "TABLESAMPLE": true,
}

// ScanTableRefs finds every table reference introduced by FROM, JOIN, UPDATE
// or INTO. Subqueries, UNNEST constructs and names defined by the
// statement's own WITH clause are skipped.
func ScanTableRefs(sql string) []TableRef {
	tokens := lex(sql)
	cteNames := collectCTENames(tokens)

	var refs []TableRef
	i := 0
	for i < len(tokens) {
		t := tokens[i]
		if t.kind != tokenIdent {
			i++
			continue
		}

		keyword := strings.ToUpper(t.text)
		switch keyword {
		case "FROM", "JOIN", "UPDATE", "INTO":
			i = scanRefList(tokens, i+1, keyword, cteNames, &refs)
		default:
			i++
		}
	}

	return refs
}

// scanRefList consumes one table reference after the keyword, plus any
// comma-separated siblings (FROM a, b). Returns the index to resume at.
func scanRefList(tokens []token, i int, keyword string, cteNames map[string]bool, refs *[]TableRef) int {
	for {
		if i >= len(tokens) {
			return i
		}

		t := tokens[i]

		// Subquery: not a table reference, and its own FROM clauses get
		// picked up by the outer scan.
		if t.kind == tokenSymbol && t.text == "(" {
			return i + 1
		}

		// UNNEST(expr) introduces array elements, not a table.
		if t.kind == tokenIdent && strings.EqualFold(t.text, "UNNEST") {
			return skipParens(tokens, i+1)
		}

		if t.kind != tokenIdent && t.kind != tokenQuotedIdent {
			return i
		}

		ref, next := parseDottedName(tokens, i)
		i = next

		// Inline alias, with or without AS.
		if i < len(tokens) && tokens[i].kind == tokenIdent && strings.EqualFold(tokens[i].text, "AS") {
			i++
		}
		if i < len(tokens) && tokens[i].kind == tokenIdent && !aliasStoppers[strings.ToUpper(tokens[i].text)] {
			ref.Alias = tokens[i].text
			i++
		}

		// CTE names are statement-local, never allow-list subjects.
		if len(ref.Parts) != 1 || !cteNames[strings.ToLower(ref.Parts[0])] {
			ref.Keyword = keyword
			*refs = append(*refs, ref)
		}

		// FROM (and DELETE FROM) may carry a comma-separated list.
		if keyword == "FROM" && i < len(tokens) && tokens[i].kind == tokenSymbol && tokens[i].text == "," {
			i++
			continue
		}
		return i
	}
}

// parseDottedName assembles ident(.ident)* starting at i. Back-quoted
// multi-part identifiers contribute all their dotted parts at once.
func parseDottedName(tokens []token, i int) (TableRef, int) {
	ref := TableRef{Start: tokens[i].start}

	for {
		t := tokens[i]
		if t.kind == tokenQuotedIdent {
			ref.Parts = append(ref.Parts, strings.Split(t.text, ".")...)
		} else {
			ref.Parts = append(ref.Parts, t.text)
		}
		ref.End = t.end
		i++

		if i+1 < len(tokens) &&
			tokens[i].kind == tokenSymbol && tokens[i].text == "." &&
			(tokens[i+1].kind == tokenIdent || tokens[i+1].kind == tokenQuotedIdent) {
			i++
			continue
		}
		return ref, i
	}
}

// collectCTENames gathers names declared by WITH clauses, so references to
// them are not mistaken for physical tables.
func collectCTENames(tokens []token) map[string]bool {
	names := make(map[string]bool)

	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		if t.kind != tokenIdent || !strings.EqualFold(t.text, "WITH") {
			continue
		}

		j := i + 1
		if j < len(tokens) && tokens[j].kind == tokenIdent && strings.EqualFold(tokens[j].text, "RECURSIVE") {
			j++
		}

		for j < len(tokens) {
			if tokens[j].kind != tokenIdent && tokens[j].kind != tokenQuotedIdent {
				break
			}
			name := tokens[j].text
			j++

			// Optional column list.
			if j < len(tokens) && tokens[j].kind == tokenSymbol && tokens[j].text == "(" {
				j = skipParens(tokens, j)
			}

			if j >= len(tokens) || tokens[j].kind != tokenIdent || !strings.EqualFold(tokens[j].text, "AS") {
				break
			}
			j++

			if j >= len(tokens) || tokens[j].kind != tokenSymbol || tokens[j].text != "(" {
				break
			}
			names[strings.ToLower(name)] = true
			j = skipParens(tokens, j)

			if j < len(tokens) && tokens[j].kind == tokenSymbol && tokens[j].text == "," {
				j++
				continue
			}
			break
		}
	}

	return names
}

// skipParens advances past a balanced parenthesized group starting at or
// just before index i.
func skipParens(tokens []token, i int) int {
	if i >= len(tokens) || tokens[i].kind != tokenSymbol || tokens[i].text != "(" {
		return i
	}
	depth := 0
	for ; i < len(tokens); i++ {
		if tokens[i].kind != tokenSymbol {
			continue
		}
		switch tokens[i].text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return i
}
