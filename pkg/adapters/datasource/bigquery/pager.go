package bigquery

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/quarrybi/semantic-engine/pkg/adapters/datasource"
)

// fetchAllResults downloads the complete result set of a finished job.
// The first page establishes the schema and total row count; remaining pages
// are fetched in parallel, bounded by the configured concurrency. Any page
// failure fails the whole fetch, so callers never see a partial result
// presented as complete.
func (c *Client) fetchAllResults(ctx context.Context, ref *jobReference) (*datasource.QueryResult, error) {
	first, err := c.fetchResultsPage(ctx, ref, 0, c.pageSize)
	if err != nil {
		return nil, err
	}
	if !first.JobComplete {
		return nil, fmt.Errorf("job %s reported results before completion", ref.JobID)
	}

	totalRows := uint64(0)
	if first.TotalRows != "" {
		totalRows, err = strconv.ParseUint(first.TotalRows, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid totalRows %q: %w", first.TotalRows, err)
		}
	}

	columns := make([]string, len(first.Schema.Fields))
	for i, f := range first.Schema.Fields {
		columns[i] = f.Name
	}

	result := &datasource.QueryResult{
		Columns:  columns,
		RowCount: int64(totalRows),
	}

	firstRows, err := decodeRows(first.Schema, first.Rows)
	if err != nil {
		return nil, err
	}

	fetched := uint64(len(firstRows))
	if fetched >= totalRows {
		result.Rows = firstRows
		return result, nil
	}

	// Remaining pages are addressed by row offset, so they can download in
	// parallel and land in order.
	pageSize := uint64(c.pageSize)
	pageCount := int((totalRows - fetched + pageSize - 1) / pageSize)
	pages := make([][][]any, pageCount)

	sem := semaphore.NewWeighted(int64(c.fetchConcurrency))
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < pageCount; i++ {
		// Acquiring here, not in the goroutine, stops launching new pages
		// as soon as the context is cancelled.
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}

		startIndex := fetched + uint64(i)*pageSize
		g.Go(func() error {
			defer sem.Release(1)

			page, err := c.fetchResultsPage(gctx, ref, startIndex, c.pageSize)
			if err != nil {
				return err
			}
			rows, err := decodeRows(first.Schema, page.Rows)
			if err != nil {
				return err
			}
			pages[int((startIndex-fetched)/pageSize)] = rows
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := gctx.Err(); err != nil {
		return nil, err
	}

	result.Rows = firstRows
	for _, page := range pages {
		result.Rows = append(result.Rows, page...)
	}

	if uint64(len(result.Rows)) != totalRows {
		return nil, fmt.Errorf("job %s returned %d rows, expected %d",
			ref.JobID, len(result.Rows), totalRows)
	}

	return result, nil
}

// decodeRows converts wire rows ({"f":[{"v":...}]}) into typed values using
// the result schema. Unknown types pass through as strings.
func decodeRows(schema tableSchema, rows []tableRow) ([][]any, error) {
	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		if len(row.F) != len(schema.Fields) {
			return nil, fmt.Errorf("row has %d cells, schema has %d fields", len(row.F), len(schema.Fields))
		}
		decoded := make([]any, len(row.F))
		for i, cell := range row.F {
			val, err := decodeCell(schema.Fields[i].Type, cell.V)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", schema.Fields[i].Name, err)
			}
			decoded[i] = val
		}
		out = append(out, decoded)
	}
	return out, nil
}

func decodeCell(fieldType string, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	str, ok := raw.(string)
	if !ok {
		// Nested records and repeated fields pass through undecoded.
		return raw, nil
	}

	switch fieldType {
	case "INTEGER", "INT64":
		n, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", str, err)
		}
		return n, nil
	case "FLOAT", "FLOAT64":
		f, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q: %w", str, err)
		}
		return f, nil
	case "BOOLEAN", "BOOL":
		b, err := strconv.ParseBool(str)
		if err != nil {
			return nil, fmt.Errorf("invalid bool %q: %w", str, err)
		}
		return b, nil
	default:
		// STRING, TIMESTAMP, DATE, NUMERIC and friends stay textual.
		return str, nil
	}
}
