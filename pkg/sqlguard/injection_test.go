package sqlguard

import (
	"errors"
	"reflect"
	"testing"
)

func TestCheckValueForInjection(t *testing.T) {
	tests := []struct {
		name  string
		value any
		sqli  bool
	}{
		{"plain string", "east", false},
		{"classic tautology", "x' OR '1'='1", true},
		{"union probe", "1 UNION SELECT password FROM users", true},
		{"number untouched", 42, false},
		{"bool untouched", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckValueForInjection("region", tt.value)
			if (result != nil) != tt.sqli {
				t.Errorf("CheckValueForInjection(%v) = %+v, want sqli=%v", tt.value, result, tt.sqli)
			}
		})
	}
}

func TestStringLiterals(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{"no literals", "SELECT region FROM orders", nil},
		{"one literal", "SELECT 1 WHERE region = 'east'", []string{"east"}},
		{"two literals", "WHERE a = 'x' AND b = 'y'", []string{"x", "y"}},
		{"escaped quote", "WHERE name = 'O''Brien'", []string{"O'Brien"}},
		{"empty literal", "WHERE a = ''", []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stringLiterals(tt.sql)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("stringLiterals(%q) = %#v, want %#v", tt.sql, got, tt.want)
			}
		})
	}
}

func TestCheckStatementLiterals(t *testing.T) {
	if err := CheckStatementLiterals("SELECT region FROM orders WHERE region = 'east'"); err != nil {
		t.Errorf("benign literal rejected: %v", err)
	}

	err := CheckStatementLiterals("SELECT region FROM orders WHERE region = '1'' OR ''1''=''1'")
	var guardErr *GuardError
	if !errors.As(err, &guardErr) {
		t.Fatalf("expected GuardError, got %v", err)
	}
	if guardErr.Code != CodeSuspiciousLiteral {
		t.Errorf("code = %q, want %q", guardErr.Code, CodeSuspiciousLiteral)
	}
}
