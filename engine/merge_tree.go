package engine

import (
	"sort"

	"github.com/touchhouse/touchhouse/schema"
)

// MergeTreeEngine stably sorts rows by ORDER BY and keeps every row.
type MergeTreeEngine struct{}

func (MergeTreeEngine) OrderColumns(columns []schema.Column, orderBy, _ []schema.ColumnDef) ([]schema.Column, error) {
	rowCount, err := columnRowCount(columns)
	if err != nil {
		return nil, err
	}
	orderIdx, err := resolveIndices(columns, orderBy)
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
	return columns, nil
}

// applyPermutation reorders every column's Data in place according to
// perm (perm[i] is the source row now living at destination i), using
// cycle decomposition so no full extra copy of the data is needed.
func applyPermutation(columns []schema.Column, perm []int) {
	n := len(perm)
	for _, col := range columns {
		visited := make([]bool, n)
		for start := 0; start < n; start++ {
			if visited[start] || perm[start] == start {
				visited[start] = true
				continue
			}
			cur := start
			carried := col.Data[start]
			for {
				visited[cur] = true
				next := perm[cur]
				if next == start {
					col.Data[cur] = carried
					break
				}
				col.Data[cur] = col.Data[next]
				cur = next
			}
		}
	}
}
