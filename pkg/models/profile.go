package models

// ColumnProfile holds derived statistics for one column, computed on demand
// during relationship inference and cached per invocation only.
type ColumnProfile struct {
	TotalRows    int64 `json:"total_rows"`
	NonNullRows  int64 `json:"non_null_rows"`
	DistinctRows int64 `json:"distinct_rows"`

	// Unique is true when every non-null value is distinct.
	Unique bool `json:"unique"`
}

// OverlapProfile holds derived statistics for a column pair, used to confirm
// or reject a candidate join key. Distinct values are sampled up to a bound
// on each side to keep profiling cost predictable.
type OverlapProfile struct {
	FromDistinct    int64 `json:"from_distinct"`
	ToDistinct      int64 `json:"to_distinct"`
	OverlapDistinct int64 `json:"overlap_distinct"`

	// FromCoverage is the share of the from-side distinct values found on
	// the to side; ToCoverage is the reverse.
	FromCoverage float64 `json:"from_coverage"`
	ToCoverage   float64 `json:"to_coverage"`
}

// BestCoverage returns the larger of the two coverage ratios.
func (o *OverlapProfile) BestCoverage() float64 {
	if o.FromCoverage > o.ToCoverage {
		return o.FromCoverage
	}
	return o.ToCoverage
}
