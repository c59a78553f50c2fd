package sqlguard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quarrybi/semantic-engine/pkg/models"
)

// Error codes surfaced to callers when a statement is rejected.
const (
	CodeTableBlocked      = "SQL_TABLE_BLOCKED"
	CodeTableAmbiguous    = "SQL_TABLE_AMBIGUOUS"
	CodeSuspiciousLiteral = "SQL_SUSPICIOUS_LITERAL"
)

// GuardError is a fail-closed rejection. Identifier names the reference that
// could not be resolved so the caller can render precise feedback.
type GuardError struct {
	Code       string
	Identifier string
}

func (e *GuardError) Error() string {
	switch e.Code {
	case CodeTableAmbiguous:
		return fmt.Sprintf("table reference %q matches more than one allowed table", e.Identifier)
	case CodeSuspiciousLiteral:
		return fmt.Sprintf("statement literal matches injection fingerprint %q", e.Identifier)
	default:
		return fmt.Sprintf("table reference %q is not in the allowed table list", e.Identifier)
	}
}

// Guard rewrites table references in untrusted SQL to canonical form,
// restricted to an explicit allow-list.
type Guard struct {
	engine string

	// exact maps every acceptable spelling (lowercased) to candidate
	// canonical refs; relaxed additionally strips non-alphanumerics to
	// absorb model-generated naming quirks.
	exact   map[string][]string
	relaxed map[string][]string
}

// NewGuard builds a guard for the engine from the caller's selected tables.
// Tables without a runtime reference contribute nothing and can therefore
// never be referenced.
func NewGuard(engine string, tables []*models.ModelTable) *Guard {
	g := &Guard{
		engine:  engine,
		exact:   make(map[string][]string),
		relaxed: make(map[string][]string),
	}
	for _, t := range tables {
		if t.RuntimeRef == "" {
			continue
		}
		for _, spelling := range spellings(t.RuntimeRef) {
			g.addSpelling(spelling, t.RuntimeRef)
		}
	}
	return g
}

func (g *Guard) addSpelling(spelling, canonical string) {
	exactKey := strings.ToLower(spelling)
	if !contains(g.exact[exactKey], canonical) {
		g.exact[exactKey] = append(g.exact[exactKey], canonical)
	}
	relaxedKey := relax(spelling)
	if relaxedKey != "" && !contains(g.relaxed[relaxedKey], canonical) {
		g.relaxed[relaxedKey] = append(g.relaxed[relaxedKey], canonical)
	}
}

// Rewrite resolves every table reference in the statement against the
// allow-list and returns the statement with each reference replaced by its
// canonical quoted form, aliases preserved. Any unresolved or ambiguous
// reference rejects the whole statement; no partial rewrite is ever
// returned.
func (g *Guard) Rewrite(sql string) (string, error) {
	refs := ScanTableRefs(sql)

	type replacement struct {
		start, end int
		text       string
	}
	replacements := make([]replacement, 0, len(refs))

	for i := range refs {
		ref := &refs[i]
		canonical, err := g.resolve(ref)
		if err != nil {
			return "", err
		}
		replacements = append(replacements, replacement{
			start: ref.Start,
			end:   ref.End,
			text:  g.quote(canonical),
		})
	}

	sort.Slice(replacements, func(i, j int) bool {
		return replacements[i].start < replacements[j].start
	})

	var b strings.Builder
	prev := 0
	for _, r := range replacements {
		if r.start < prev {
			// Overlapping spans would corrupt the statement.
			return "", fmt.Errorf("conflicting table reference spans at offset %d", r.start)
		}
		b.WriteString(sql[prev:r.start])
		b.WriteString(r.text)
		prev = r.end
	}
	b.WriteString(sql[prev:])

	return b.String(), nil
}

// resolve maps one reference to exactly one canonical table, exact spelling
// first, relaxed second. Ambiguity is an error, never a silent pick.
func (g *Guard) resolve(ref *TableRef) (string, error) {
	name := ref.Name()

	candidates := g.exact[strings.ToLower(name)]
	if len(candidates) == 0 {
		candidates = g.relaxed[relax(name)]
	}

	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		return "", &GuardError{Code: CodeTableBlocked, Identifier: name}
	default:
		return "", &GuardError{Code: CodeTableAmbiguous, Identifier: name}
	}
}

// quote renders a canonical ref for the target engine.
func (g *Guard) quote(canonical string) string {
	if g.engine == models.EnginePostgres {
		parts := strings.Split(canonical, ".")
		for i, p := range parts {
			parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
		}
		return strings.Join(parts, ".")
	}
	return "`" + canonical + "`"
}

// spellings enumerates every acceptable way to write a canonical ref:
// each dotted suffix plus underscore-joined variants of the multi-part
// forms.
func spellings(canonical string) []string {
	parts := strings.Split(canonical, ".")
	var out []string
	for i := 0; i < len(parts); i++ {
		suffix := parts[i:]
		out = append(out, strings.Join(suffix, "."))
		if len(suffix) > 1 {
			out = append(out, strings.Join(suffix, "_"))
		}
	}
	return out
}

// relax lowercases and strips everything but letters and digits.
func relax(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	return b.String()
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
