package services

import (
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/quarrybi/semantic-engine/pkg/models"
)

// Naming evidence strength. Strong evidence lowers the statistical proof a
// candidate needs; none means the pair should not be suggested at all.
const (
	namingStrong = "strong"
	namingWeak   = "weak"
	namingNone   = "none"
)

// NamingEvidence is the result of analyzing one candidate column pair by
// name and declared type alone, before any live profiling.
type NamingEvidence struct {
	Strength        string
	TypesCompatible bool

	// AssumedCardinality is the cardinality implied by the naming shape
	// (FK to PK implies n-1, PK to PK implies 1-1). Profiling may refine it.
	AssumedCardinality string

	Reasons []string
}

// genericColumnNames are FK-like bases too common to identify a target table
// on their own. A match through one of these is penalized, not trusted.
var genericColumnNames = map[string]bool{
	"id": true, "key": true, "code": true, "type": true, "name": true,
	"value": true, "status": true, "date": true, "uuid": true, "guid": true,
	"ref": true, "reference": true,
}

// fkSuffixes mark a column as foreign-key shaped, checked in order.
var fkSuffixes = []string{"_id", "_key", "_code", "_uuid"}

// normalizeName lowercases and trims an identifier for comparison.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// tableBaseName reduces a table's display name to a singular base form:
// "public.customers" and "Customers" both become "customer".
func tableBaseName(t *models.ModelTable) string {
	name := normalizeName(t.DisplayName)
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return inflection.Singular(name)
}

// foreignKeyBase strips a recognized FK suffix and returns the remaining
// base, or "" when the column is not foreign-key shaped.
func foreignKeyBase(column string) string {
	col := normalizeName(column)
	for _, suffix := range fkSuffixes {
		if base, ok := strings.CutSuffix(col, suffix); ok && base != "" {
			return base
		}
	}
	return ""
}

// isForeignKeyShaped reports whether the column looks like a reference to
// another table.
func isForeignKeyShaped(column string) bool {
	return foreignKeyBase(column) != ""
}

// isPrimaryKeyShaped reports whether the column looks like the table's own
// key: "id" or "<table>_id" matching the owning table.
func isPrimaryKeyShaped(t *models.ModelTable, column string) bool {
	col := normalizeName(column)
	if col == "id" {
		return true
	}
	base := foreignKeyBase(col)
	if base == "" {
		return false
	}
	tableBase := tableBaseName(t)
	return base == tableBase || inflection.Singular(base) == tableBase
}

// referencesTable reports whether an FK-shaped column names the given table:
// "customer_id" references "customers" (and "customer").
func referencesTable(column string, target *models.ModelTable) bool {
	base := foreignKeyBase(column)
	if base == "" {
		return false
	}
	targetBase := tableBaseName(target)
	return base == targetBase || inflection.Singular(base) == targetBase
}

// typesCompatible compares declared types loosely across engines. Only
// category-level agreement matters; a bigint can join a int64 but a
// timestamp never joins a text id.
func typesCompatible(a, b string) bool {
	ca, cb := typeCategory(a), typeCategory(b)
	if ca == "other" || cb == "other" {
		// Unknown types get the benefit of the doubt; profiling casts to
		// text anyway.
		return true
	}
	return ca == cb
}

func typeCategory(dataType string) string {
	t := normalizeName(dataType)
	switch {
	case strings.Contains(t, "int") || strings.Contains(t, "serial") ||
		strings.Contains(t, "numeric") || strings.Contains(t, "decimal") ||
		strings.Contains(t, "number"):
		return "numeric"
	case strings.Contains(t, "char") || strings.Contains(t, "text") ||
		strings.Contains(t, "string") || strings.Contains(t, "uuid"):
		return "text"
	case strings.Contains(t, "bool"):
		return "bool"
	case strings.Contains(t, "date") || strings.Contains(t, "time"):
		return "temporal"
	case strings.Contains(t, "float") || strings.Contains(t, "double") || strings.Contains(t, "real"):
		return "numeric"
	default:
		return "other"
	}
}

// analyzePair classifies a candidate edge from.fromColumn -> to.toColumn by
// naming alone. It never consults live data.
func analyzePair(from *models.ModelTable, fromColumn string, to *models.ModelTable, toColumn string) NamingEvidence {
	evidence := NamingEvidence{Strength: namingNone}

	fromCol := from.Column(fromColumn)
	toCol := to.Column(toColumn)
	if fromCol == nil || toCol == nil {
		return evidence
	}
	evidence.TypesCompatible = typesCompatible(fromCol.DataType, toCol.DataType)
	if !evidence.TypesCompatible {
		evidence.Reasons = append(evidence.Reasons, models.ReasonTypeMismatch)
	}

	fromFK := isForeignKeyShaped(fromColumn)
	toPK := isPrimaryKeyShaped(to, toColumn)

	switch {
	case fromFK && toPK && referencesTable(fromColumn, to):
		// orders.customer_id -> customers.id: the classic FK shape.
		evidence.Strength = namingStrong
		evidence.AssumedCardinality = models.CardinalityNTo1
		evidence.Reasons = append(evidence.Reasons,
			models.ReasonForeignKeyPattern, models.ReasonTableReferencePattern)

	case fromFK && toPK:
		// FK-shaped but the base does not name the target table.
		evidence.Strength = namingWeak
		evidence.AssumedCardinality = models.CardinalityNTo1
		evidence.Reasons = append(evidence.Reasons, models.ReasonForeignKeyPattern)

	case isPrimaryKeyShaped(from, fromColumn) && toPK &&
		normalizeName(fromColumn) == normalizeName(toColumn):
		// Matching key columns on both sides suggest a 1-1 extension table.
		evidence.Strength = namingWeak
		evidence.AssumedCardinality = models.Cardinality1To1
		evidence.Reasons = append(evidence.Reasons, models.ReasonPrimaryKeyPair)
	}

	// Penalize matches through a base too common to identify a target table,
	// including bare "id" on both sides.
	if base := foreignKeyBase(fromColumn); genericColumnNames[base] || genericColumnNames[normalizeName(fromColumn)] {
		evidence.Reasons = append(evidence.Reasons, models.ReasonGenericColumnName)
	}

	return evidence
}

// isSharedForeignKey detects the "shared FK to a third dimension" trap: both
// columns are FK-shaped with the same base, and neither names the other
// table. Two fact tables both carrying tenant_id are related to the tenant
// dimension, not to each other.
func isSharedForeignKey(from *models.ModelTable, fromColumn string, to *models.ModelTable, toColumn string) bool {
	fromBase := foreignKeyBase(fromColumn)
	toBase := foreignKeyBase(toColumn)
	if fromBase == "" || toBase == "" || fromBase != toBase {
		return false
	}
	return !referencesTable(fromColumn, to) && !referencesTable(toColumn, from)
}
