// Package postgres implements datasource adapters for PostgreSQL sources.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quarrybi/semantic-engine/pkg/models"
)

// Profiler gathers column statistics from a live PostgreSQL source.
type Profiler struct {
	pool     *pgxpool.Pool
	ownsPool bool
}

// NewProfiler creates a profiler connected to the given source DSN.
func NewProfiler(ctx context.Context, dsn string) (*Profiler, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres source: %w", err)
	}
	return &Profiler{pool: pool, ownsPool: true}, nil
}

// NewProfilerWithPool creates a profiler over an existing pool. The caller
// retains ownership of the pool.
func NewProfilerWithPool(pool *pgxpool.Pool) *Profiler {
	return &Profiler{pool: pool}
}

// ProfileColumn gathers row, non-null and distinct counts for a column.
func (p *Profiler) ProfileColumn(ctx context.Context, tableRef, column string) (*models.ColumnProfile, error) {
	quotedCol := pgx.Identifier{column}.Sanitize()
	quotedTable := quoteTableRef(tableRef)

	query := fmt.Sprintf(`
		SELECT
			COUNT(*) as row_count,
			COUNT(%s) as non_null_count,
			COUNT(DISTINCT %s) as distinct_count
		FROM %s
	`, quotedCol, quotedCol, quotedTable)

	profile := &models.ColumnProfile{}
	row := p.pool.QueryRow(ctx, query)
	if err := row.Scan(&profile.TotalRows, &profile.NonNullRows, &profile.DistinctRows); err != nil {
		return nil, fmt.Errorf("profile column %s.%s: %w", tableRef, column, err)
	}

	profile.Unique = profile.NonNullRows > 0 && profile.DistinctRows == profile.NonNullRows
	return profile, nil
}

// ProfileOverlap measures distinct-value overlap between two columns.
// Values are cast to text so cross-type candidates (text vs bigint) still
// compare. At most sampleLimit distinct values are taken per side.
func (p *Profiler) ProfileOverlap(ctx context.Context, fromRef, fromColumn, toRef, toColumn string, sampleLimit int) (*models.OverlapProfile, error) {
	fromTable := quoteTableRef(fromRef)
	toTable := quoteTableRef(toRef)
	fromCol := pgx.Identifier{fromColumn}.Sanitize()
	toCol := pgx.Identifier{toColumn}.Sanitize()

	query := fmt.Sprintf(`
		WITH from_vals AS (
			SELECT DISTINCT %s::text as val
			FROM %s
			WHERE %s IS NOT NULL
			LIMIT $1
		),
		to_vals AS (
			SELECT DISTINCT %s::text as val
			FROM %s
			WHERE %s IS NOT NULL
			LIMIT $1
		)
		SELECT
			(SELECT COUNT(*) FROM from_vals) as from_distinct,
			(SELECT COUNT(*) FROM to_vals) as to_distinct,
			(SELECT COUNT(*) FROM from_vals f JOIN to_vals t ON f.val = t.val) as matched_count
	`, fromCol, fromTable, fromCol, toCol, toTable, toCol)

	overlap := &models.OverlapProfile{}
	row := p.pool.QueryRow(ctx, query, sampleLimit)
	if err := row.Scan(&overlap.FromDistinct, &overlap.ToDistinct, &overlap.OverlapDistinct); err != nil {
		return nil, fmt.Errorf("profile overlap %s.%s vs %s.%s: %w", fromRef, fromColumn, toRef, toColumn, err)
	}

	if overlap.FromDistinct > 0 {
		overlap.FromCoverage = float64(overlap.OverlapDistinct) / float64(overlap.FromDistinct)
	}
	if overlap.ToDistinct > 0 {
		overlap.ToCoverage = float64(overlap.OverlapDistinct) / float64(overlap.ToDistinct)
	}

	return overlap, nil
}

// Close releases the pool if this profiler created it.
func (p *Profiler) Close() error {
	if p.ownsPool && p.pool != nil {
		p.pool.Close()
	}
	return nil
}

// quoteTableRef quotes each dotted part of a table reference, so both
// "orders" and "public.orders" are handled safely.
func quoteTableRef(tableRef string) string {
	parts := strings.Split(tableRef, ".")
	quoted := make([]string, len(parts))
	for i, part := range parts {
		quoted[i] = pgx.Identifier{part}.Sanitize()
	}
	return strings.Join(quoted, ".")
}
