package engine

import (
	"sort"

	"github.com/touchhouse/touchhouse/schema"
)

// ReplacingMergeTreeEngine stably sorts rows by ORDER BY, then collapses
// runs that share the same PRIMARY KEY down to a single row: the one
// that sorted last among the run, i.e. the newest insert wins.
type ReplacingMergeTreeEngine struct{}

func (ReplacingMergeTreeEngine) OrderColumns(columns []schema.Column, orderBy, primaryKey []schema.ColumnDef) ([]schema.Column, error) {
	rowCount, err := columnRowCount(columns)
	if err != nil {
		return nil, err
	}
	orderIdx, err := resolveIndices(columns, orderBy)
	if err != nil {
		return nil, err
	}
	pkIdx, err := resolveIndices(columns, primaryKey)
	if err != nil {
		return nil, err
	}

	perm := make([]int, rowCount)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		return compareRows(columns, orderIdx, perm[a], perm[b]) < 0
	})

	applyPermutation(columns, perm)

	// perm is now in ascending order; reverse, dedup keeping the first
	// survivor of each PK run (which, after the reverse, is the row that
	// was newest/last in ascending order), then reverse back.
	reverseRows(columns, rowCount)
	keep := dedupAdjacentByKey(columns, rowCount, pkIdx)
	reverseRows(columns, keep)

	for i := range columns {
		columns[i].Data = columns[i].Data[:keep]
	}
	return columns, nil
}

func reverseRows(columns []schema.Column, n int) {
	for _, col := range columns {
		data := col.Data[:n]
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			data[i], data[j] = data[j], data[i]
		}
	}
}

// dedupAdjacentByKey compacts columns' first n rows in place, keeping
// only the first row of each run of rows sharing the same pkIdx values,
// and returns the surviving row count.
func dedupAdjacentByKey(columns []schema.Column, n int, pkIdx []int) int {
	if n == 0 {
		return 0
	}
	keep := 1
	for i := 1; i < n; i++ {
		if sameKey(columns, pkIdx, i, keep-1) {
			continue
		}
		if keep != i {
			for _, col := range columns {
				col.Data[keep] = col.Data[i]
			}
		}
		keep++
	}
	return keep
}

func sameKey(columns []schema.Column, pkIdx []int, a, b int) bool {
	for _, idx := range pkIdx {
		cmp, ok := columns[idx].Data[a].CompareTo(columns[idx].Data[b])
		if !ok || cmp != 0 {
			return false
		}
	}
	return true
}
