package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCanonicalPairKeyOrderIndependent(t *testing.T) {
	tableA := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	tableB := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	forward := CanonicalPairKey(tableA, "customer_id", tableB, "id")
	reverse := CanonicalPairKey(tableB, "id", tableA, "customer_id")

	assert.Equal(t, forward, reverse, "canonical key must not depend on direction")
}

func TestCanonicalPairKeyCaseInsensitiveColumns(t *testing.T) {
	tableA := uuid.New()
	tableB := uuid.New()

	a := CanonicalPairKey(tableA, "Customer_ID", tableB, "ID")
	b := CanonicalPairKey(tableA, "customer_id", tableB, "id")

	assert.Equal(t, a, b, "canonical key should ignore column case")
}

func TestCanonicalPairKeyDistinguishesColumns(t *testing.T) {
	tableA := uuid.New()
	tableB := uuid.New()

	a := CanonicalPairKey(tableA, "customer_id", tableB, "id")
	b := CanonicalPairKey(tableA, "account_id", tableB, "id")

	assert.NotEqual(t, a, b, "different column pairs must not share a canonical key")
}

func TestReverseCardinality(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{Cardinality1To1, Cardinality1To1},
		{Cardinality1ToN, CardinalityNTo1},
		{CardinalityNTo1, Cardinality1ToN},
		{CardinalityNToN, CardinalityNToN},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ReverseCardinality(tt.in), "ReverseCardinality(%q)", tt.in)
	}
}

func TestDefaultCrossFilterDirection(t *testing.T) {
	assert.Equal(t, CrossFilterBoth, DefaultCrossFilterDirection(Cardinality1To1))
	for _, cardinality := range []string{CardinalityNTo1, Cardinality1ToN, CardinalityNToN} {
		assert.Equal(t, CrossFilterSingle, DefaultCrossFilterDirection(cardinality), "cardinality %s", cardinality)
	}
}
