package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Relationship cardinality constants.
const (
	Cardinality1To1 = "1-1"
	Cardinality1ToN = "1-n"
	CardinalityNTo1 = "n-1"
	CardinalityNToN = "n-n"
)

// Cross-filter direction constants.
const (
	CrossFilterSingle = "single"
	CrossFilterBoth   = "both"
)

// Validation status constants.
const (
	ValidationValid   = "valid"
	ValidationInvalid = "invalid"
)

// ReasonManyToMany is the stored validation reason for n-n relationships,
// which are never executable without a bridge table.
const ReasonManyToMany = "many-to-many relationships require a bridge table and cannot be joined directly"

// ModelRelationship is a join edge between two ModelTables on specific
// columns. Identity is order-independent: the edge (A.x, B.y) and the edge
// (B.y, A.x) share one canonical key, so concurrent creation from either
// direction converges to one row.
type ModelRelationship struct {
	ID          uuid.UUID `json:"id"`
	DataModelID uuid.UUID `json:"data_model_id"`

	FromTableID uuid.UUID `json:"from_table_id"`
	FromColumn  string    `json:"from_column"`
	ToTableID   uuid.UUID `json:"to_table_id"`
	ToColumn    string    `json:"to_column"`

	Type                 string `json:"relationship_type"`
	CrossFilterDirection string `json:"cross_filter_direction"`
	ValidationStatus     string `json:"validation_status"`
	ValidationReason     string `json:"validation_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanonicalKey returns the order-independent identity of this relationship.
func (r *ModelRelationship) CanonicalKey() string {
	return CanonicalPairKey(r.FromTableID, r.FromColumn, r.ToTableID, r.ToColumn)
}

// CanonicalPairKey builds an order-independent key for a (table,column) pair
// edge. The lexicographically smaller endpoint always comes first, so A→B and
// B→A proposals collapse to the same key.
func CanonicalPairKey(fromTableID uuid.UUID, fromColumn string, toTableID uuid.UUID, toColumn string) string {
	a := fmt.Sprintf("%s:%s", fromTableID, strings.ToLower(fromColumn))
	b := fmt.Sprintf("%s:%s", toTableID, strings.ToLower(toColumn))
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// ReverseCardinality returns the cardinality as seen from the opposite
// endpoint. Symmetric cardinalities (1-1, n-n) are unchanged.
func ReverseCardinality(cardinality string) string {
	switch cardinality {
	case CardinalityNTo1:
		return Cardinality1ToN
	case Cardinality1ToN:
		return CardinalityNTo1
	default:
		return cardinality
	}
}

// DefaultCrossFilterDirection returns the cross-filter direction applied when
// the caller does not request one explicitly.
func DefaultCrossFilterDirection(cardinality string) string {
	if cardinality == Cardinality1To1 {
		return CrossFilterBoth
	}
	return CrossFilterSingle
}
