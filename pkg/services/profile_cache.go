package services

import (
	"context"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quarrybi/semantic-engine/pkg/adapters/datasource"
	"github.com/quarrybi/semantic-engine/pkg/models"
)

// columnKey identifies one column for the in-call memo cache.
type columnKey struct {
	TableID uuid.UUID
	Column  string
}

// pairKey identifies an ordered column pair.
type pairKey struct {
	From columnKey
	To   columnKey
}

const profileCacheSize = 4096

// profileCache memoizes profiling results within a single auto-detect
// invocation, so the same column's statistics are never computed twice in
// one call. Discarded when the call returns; nothing survives across
// requests.
type profileCache struct {
	profiler    datasource.ColumnProfiler
	sampleLimit int

	columns  *lru.Cache[columnKey, *models.ColumnProfile]
	overlaps *lru.Cache[pairKey, *models.OverlapProfile]
}

func newProfileCache(profiler datasource.ColumnProfiler, sampleLimit int) (*profileCache, error) {
	columns, err := lru.New[columnKey, *models.ColumnProfile](profileCacheSize)
	if err != nil {
		return nil, err
	}
	overlaps, err := lru.New[pairKey, *models.OverlapProfile](profileCacheSize)
	if err != nil {
		return nil, err
	}
	return &profileCache{
		profiler:    profiler,
		sampleLimit: sampleLimit,
		columns:     columns,
		overlaps:    overlaps,
	}, nil
}

func (c *profileCache) column(ctx context.Context, table *models.ModelTable, column string) (*models.ColumnProfile, error) {
	key := columnKey{TableID: table.ID, Column: column}
	if cached, ok := c.columns.Get(key); ok {
		return cached, nil
	}

	profile, err := c.profiler.ProfileColumn(ctx, table.RuntimeRef, column)
	if err != nil {
		return nil, err
	}
	c.columns.Add(key, profile)
	return profile, nil
}

func (c *profileCache) overlap(ctx context.Context, from *models.ModelTable, fromColumn string, to *models.ModelTable, toColumn string) (*models.OverlapProfile, error) {
	key := pairKey{
		From: columnKey{TableID: from.ID, Column: fromColumn},
		To:   columnKey{TableID: to.ID, Column: toColumn},
	}
	if cached, ok := c.overlaps.Get(key); ok {
		return cached, nil
	}

	overlap, err := c.profiler.ProfileOverlap(ctx, from.RuntimeRef, fromColumn, to.RuntimeRef, toColumn, c.sampleLimit)
	if err != nil {
		return nil, err
	}
	c.overlaps.Add(key, overlap)
	return overlap, nil
}
