package models

import (
	"fmt"

	"github.com/google/uuid"
)

// Reason tags attached to relationship suggestions. The UI renders these to
// explain why a join edge was proposed.
const (
	ReasonForeignKeyPattern     = "foreign_key_pattern"
	ReasonTableReferencePattern = "table_reference_pattern"
	ReasonPrimaryKeyPair        = "primary_key_pair"
	ReasonSharedForeignKey      = "shared_foreign_key"
	ReasonTypeMismatch          = "type_mismatch"
	ReasonGenericColumnName     = "generic_column_name"
	ReasonZeroOverlap           = "zero_overlap"
)

// ProfileCardinalityReason tags a suggestion with the cardinality derived
// from live profiling, e.g. "profile_1-n".
func ProfileCardinalityReason(cardinality string) string {
	return "profile_" + cardinality
}

// OverlapReason tags a suggestion with the observed overlap coverage,
// e.g. "overlap_87pct".
func OverlapReason(coverage float64) string {
	return fmt.Sprintf("overlap_%dpct", int(coverage*100))
}

// RelationshipSuggestion is a non-persisted candidate edge produced by
// auto-detect. Recomputed on every call, never stored.
type RelationshipSuggestion struct {
	FromTableID uuid.UUID `json:"from_table_id"`
	FromColumn  string    `json:"from_column"`
	ToTableID   uuid.UUID `json:"to_table_id"`
	ToColumn    string    `json:"to_column"`

	Type             string   `json:"relationship_type"`
	Confidence       int      `json:"confidence"`
	ValidationStatus string   `json:"validation_status"`
	Reasons          []string `json:"reasons"`
}

// CanonicalKey returns the order-independent identity of the suggested edge.
func (s *RelationshipSuggestion) CanonicalKey() string {
	return CanonicalPairKey(s.FromTableID, s.FromColumn, s.ToTableID, s.ToColumn)
}
