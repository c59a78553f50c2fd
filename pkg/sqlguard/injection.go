package sqlguard

import (
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a filter value that looks like a SQL
// injection attempt.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Column      string // Column the value was bound to
	Value       any    // The value that was checked
}

// CheckStatementLiterals screens the quoted literals of a raw statement.
// The scoped rewrite constrains which tables a statement may touch, not
// what its literals say; a payload smuggled into a literal is rejected
// here before anything executes.
func CheckStatementLiterals(sql string) error {
	for _, lit := range stringLiterals(sql) {
		if isSQLi, fingerprint := libinjection.IsSQLi(lit); isSQLi {
			return &GuardError{Code: CodeSuspiciousLiteral, Identifier: string(fingerprint)}
		}
	}
	return nil
}

// stringLiterals returns the contents of every single-quoted literal in the
// statement, with doubled quotes collapsed.
func stringLiterals(sql string) []string {
	var literals []string
	for i := 0; i < len(sql); i++ {
		if sql[i] != '\'' {
			continue
		}
		var b strings.Builder
		i++
		for i < len(sql) {
			if sql[i] == '\'' {
				if i+1 < len(sql) && sql[i+1] == '\'' {
					b.WriteByte('\'')
					i += 2
					continue
				}
				break
			}
			b.WriteByte(sql[i])
			i++
		}
		literals = append(literals, b.String())
	}
	return literals
}

// CheckValueForInjection uses libinjection to detect SQL injection patterns
// in a bound filter value. Only string values are checked - numbers,
// booleans, and other types cannot carry injection payloads and return nil.
func CheckValueForInjection(column string, value any) *InjectionCheckResult {
	strValue, ok := value.(string)
	if !ok {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if isSQLi {
		return &InjectionCheckResult{
			IsSQLi:      true,
			Fingerprint: string(fingerprint),
			Column:      column,
			Value:       value,
		}
	}

	return nil
}
