package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestSemanticQuerySpecValidate(t *testing.T) {
	tableID := uuid.New()

	valid := func() *SemanticQuerySpec {
		return &SemanticQuerySpec{
			Select: []SelectItem{
				{TableID: tableID, Column: "region"},
				{TableID: tableID, Column: "amount", Aggregation: AggSum},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*SemanticQuerySpec)
		wantErr bool
	}{
		{
			name:   "dimensions and aggregation",
			mutate: func(s *SemanticQuerySpec) {},
		},
		{
			name:    "empty select list",
			mutate:  func(s *SemanticQuerySpec) { s.Select = nil },
			wantErr: true,
		},
		{
			name:    "select item without table",
			mutate:  func(s *SemanticQuerySpec) { s.Select[0].TableID = uuid.Nil },
			wantErr: true,
		},
		{
			name:    "select item without column",
			mutate:  func(s *SemanticQuerySpec) { s.Select[0].Column = "" },
			wantErr: true,
		},
		{
			name:    "unknown aggregation",
			mutate:  func(s *SemanticQuerySpec) { s.Select[1].Aggregation = "median" },
			wantErr: true,
		},
		{
			name:   "none aggregation spelled out",
			mutate: func(s *SemanticQuerySpec) { s.Select[0].Aggregation = AggNone },
		},
		{
			name:   "date hierarchy",
			mutate: func(s *SemanticQuerySpec) { s.Select[0].DateHierarchy = DateQuarter },
		},
		{
			name:    "unknown date hierarchy",
			mutate:  func(s *SemanticQuerySpec) { s.Select[0].DateHierarchy = "fortnight" },
			wantErr: true,
		},
		{
			name: "comparison filter with one value",
			mutate: func(s *SemanticQuerySpec) {
				s.Filters = []Filter{{TableID: tableID, Column: "status", Operator: OpEqual, Values: []any{"open"}}}
			},
		},
		{
			name: "comparison filter with two values",
			mutate: func(s *SemanticQuerySpec) {
				s.Filters = []Filter{{TableID: tableID, Column: "status", Operator: OpEqual, Values: []any{"a", "b"}}}
			},
			wantErr: true,
		},
		{
			name: "in filter with values",
			mutate: func(s *SemanticQuerySpec) {
				s.Filters = []Filter{{TableID: tableID, Column: "status", Operator: OpIn, Values: []any{"a", "b"}}}
			},
		},
		{
			name: "in filter without values",
			mutate: func(s *SemanticQuerySpec) {
				s.Filters = []Filter{{TableID: tableID, Column: "status", Operator: OpIn}}
			},
			wantErr: true,
		},
		{
			name: "null check takes no values",
			mutate: func(s *SemanticQuerySpec) {
				s.Filters = []Filter{{TableID: tableID, Column: "status", Operator: OpIsNull, Values: []any{"x"}}}
			},
			wantErr: true,
		},
		{
			name: "null check without values",
			mutate: func(s *SemanticQuerySpec) {
				s.Filters = []Filter{{TableID: tableID, Column: "status", Operator: OpIsNotNull}}
			},
		},
		{
			name: "unknown operator",
			mutate: func(s *SemanticQuerySpec) {
				s.Filters = []Filter{{TableID: tableID, Column: "status", Operator: "like", Values: []any{"x"}}}
			},
			wantErr: true,
		},
		{
			name:    "negative limit",
			mutate:  func(s *SemanticQuerySpec) { s.Limit = -1 },
			wantErr: true,
		},
		{
			name:   "positive limit",
			mutate: func(s *SemanticQuerySpec) { s.Limit = 100 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := valid()
			tt.mutate(spec)
			err := spec.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestSelectItemIsDimension(t *testing.T) {
	if !(&SelectItem{Column: "region"}).IsDimension() {
		t.Error("plain column should be a dimension")
	}
	if !(&SelectItem{Column: "region", Aggregation: AggNone}).IsDimension() {
		t.Error("explicit none aggregation should be a dimension")
	}
	if (&SelectItem{Column: "amount", Aggregation: AggSum}).IsDimension() {
		t.Error("aggregated column should not be a dimension")
	}
}
