package models

import (
	"fmt"

	"github.com/google/uuid"
)

// Aggregation names accepted in a select item.
const (
	AggNone          = "none"
	AggSum           = "sum"
	AggAvg           = "avg"
	AggCount         = "count"
	AggCountDistinct = "countDistinct"
	AggMin           = "min"
	AggMax           = "max"
)

// ValidAggregation reports whether agg is a recognized aggregation name.
// The empty string is treated as AggNone.
func ValidAggregation(agg string) bool {
	switch agg {
	case "", AggNone, AggSum, AggAvg, AggCount, AggCountDistinct, AggMin, AggMax:
		return true
	}
	return false
}

// Date-hierarchy extraction levels for time columns.
const (
	DateYear    = "year"
	DateQuarter = "quarter"
	DateHalf    = "half"
	DateMonth   = "month"
	DateDay     = "day"
	DateHour    = "hour"
	DateMinute  = "minute"
	DateSecond  = "second"
)

// ValidDateHierarchy reports whether level is a recognized extraction level.
// The empty string means no extraction.
func ValidDateHierarchy(level string) bool {
	switch level {
	case "", DateYear, DateQuarter, DateHalf, DateMonth, DateDay, DateHour, DateMinute, DateSecond:
		return true
	}
	return false
}

// Filter operators.
const (
	OpEqual          = "eq"
	OpNotEqual       = "neq"
	OpGreaterThan    = "gt"
	OpGreaterOrEqual = "gte"
	OpLessThan       = "lt"
	OpLessOrEqual    = "lte"
	OpIn             = "in"
	OpNotIn          = "notIn"
	OpContains       = "contains"
	OpIsNull         = "isNull"
	OpIsNotNull      = "isNotNull"
)

// SelectItem is one output column of a semantic query: a table column with an
// optional aggregation and an optional date-hierarchy extraction.
type SelectItem struct {
	TableID       uuid.UUID `json:"table_id"`
	Column        string    `json:"column"`
	Aggregation   string    `json:"aggregation,omitempty"`
	DateHierarchy string    `json:"date_hierarchy,omitempty"`
	Alias         string    `json:"alias,omitempty"`
}

// IsDimension reports whether the item is a plain (non-aggregated) column.
func (s *SelectItem) IsDimension() bool {
	return s.Aggregation == "" || s.Aggregation == AggNone
}

// Filter restricts rows before aggregation. Values carry the bound parameter
// values; IsNull/IsNotNull take none.
type Filter struct {
	TableID  uuid.UUID `json:"table_id"`
	Column   string    `json:"column"`
	Operator string    `json:"operator"`
	Values   []any     `json:"values,omitempty"`
}

// ColumnRef names a table column, used by explicit group-by.
type ColumnRef struct {
	TableID uuid.UUID `json:"table_id"`
	Column  string    `json:"column"`
}

// OrderItem orders output by a select-list column.
type OrderItem struct {
	TableID    uuid.UUID `json:"table_id"`
	Column     string    `json:"column"`
	Descending bool      `json:"descending,omitempty"`
}

// SemanticQuerySpec is a logical "select columns + filters + group-by across
// related tables" request. Stateless; constructed per call.
type SemanticQuerySpec struct {
	DataModelID uuid.UUID    `json:"data_model_id"`
	Select      []SelectItem `json:"select"`
	Filters     []Filter     `json:"filters,omitempty"`
	GroupBy     []ColumnRef  `json:"group_by,omitempty"`
	OrderBy     []OrderItem  `json:"order_by,omitempty"`
	Limit       int          `json:"limit,omitempty"`
}

// Validate performs structural validation of the spec. Table and column
// existence are checked later against the catalog.
func (s *SemanticQuerySpec) Validate() error {
	if len(s.Select) == 0 {
		return fmt.Errorf("select list must not be empty")
	}
	for i, item := range s.Select {
		if item.TableID == uuid.Nil {
			return fmt.Errorf("select[%d]: table_id is required", i)
		}
		if item.Column == "" {
			return fmt.Errorf("select[%d]: column is required", i)
		}
		if !ValidAggregation(item.Aggregation) {
			return fmt.Errorf("select[%d]: unknown aggregation %q", i, item.Aggregation)
		}
		if !ValidDateHierarchy(item.DateHierarchy) {
			return fmt.Errorf("select[%d]: unknown date hierarchy %q", i, item.DateHierarchy)
		}
	}
	for i, f := range s.Filters {
		if f.TableID == uuid.Nil || f.Column == "" {
			return fmt.Errorf("filters[%d]: table_id and column are required", i)
		}
		switch f.Operator {
		case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual, OpContains:
			if len(f.Values) != 1 {
				return fmt.Errorf("filters[%d]: operator %q requires exactly one value", i, f.Operator)
			}
		case OpIn, OpNotIn:
			if len(f.Values) == 0 {
				return fmt.Errorf("filters[%d]: operator %q requires at least one value", i, f.Operator)
			}
		case OpIsNull, OpIsNotNull:
			if len(f.Values) != 0 {
				return fmt.Errorf("filters[%d]: operator %q takes no values", i, f.Operator)
			}
		default:
			return fmt.Errorf("filters[%d]: unknown operator %q", i, f.Operator)
		}
	}
	if s.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	return nil
}

// QueryPlan is the compiled output of the planner: one executable statement
// plus the tables and relationships it actually uses, for explainability.
// Consumed once by the executor; never persisted.
type QueryPlan struct {
	Engine          string      `json:"engine"`
	SQL             string      `json:"sql"`
	Params          []any       `json:"params,omitempty"`
	RootTableID     uuid.UUID   `json:"root_table_id"`
	TableIDs        []uuid.UUID `json:"table_ids"`
	RelationshipIDs []uuid.UUID `json:"relationship_ids"`
}
