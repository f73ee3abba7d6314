// Package engine implements the two sort/merge policies a table can
// declare: MergeTree (stable sort by ORDER BY) and ReplacingMergeTree
// (stable sort, then dedup by PRIMARY KEY keeping the newest row).
package engine

import (
	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/toucherr"
)

// Engine is the per-table merge policy: it orders a fresh batch of
// columns for insert, and merges two already-ordered parts' worth of
// columns into one during background merge.
type Engine interface {
	// OrderColumns sorts columns (all same row count) by orderBy, using
	// primaryKey to decide row survival on ties where the engine dedups.
	OrderColumns(columns []schema.Column, orderBy, primaryKey []schema.ColumnDef) ([]schema.Column, error)
}

// For orders the named engine's implementation.
func For(name schema.EngineName) Engine {
	switch name {
	case schema.EngineReplacingMergeTree:
		return ReplacingMergeTreeEngine{}
	default:
		return MergeTreeEngine{}
	}
}

func columnRowCount(columns []schema.Column) (int, error) {
	if len(columns) == 0 {
		return 0, toucherr.New(toucherr.NoColumnsSpecified, "no columns supplied to engine")
	}
	n := len(columns[0].Data)
	for _, c := range columns {
		if len(c.Data) != n {
			return 0, toucherr.New(toucherr.InvalidColumnsSpecified, "columns have mismatched row counts")
		}
	}
	return n, nil
}

func resolveIndices(columns []schema.Column, cols []schema.ColumnDef) ([]int, error) {
	indices := make([]int, 0, len(cols))
	for _, want := range cols {
		idx := -1
		for i, c := range columns {
			if c.Def.Name == want.Name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, toucherr.Newf(toucherr.InvalidColumnsSpecified, "column %q not present in insert batch", want.Name)
		}
		indices = append(indices, idx)
	}
	return indices, nil
}

// compareRows compares row a against row b across the given column
// indices in order, returning the first non-zero comparison. Every
// column along an ORDER BY clause is guaranteed same-typed within
// itself, so CompareTo's "not comparable" case never fires here.
func compareRows(columns []schema.Column, indices []int, a, b int) int {
	for _, idx := range indices {
		cmp, ok := columns[idx].Data[a].CompareTo(columns[idx].Data[b])
		if !ok || cmp != 0 {
			return cmp
		}
	}
	return 0
}
