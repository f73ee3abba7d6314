// Package scan implements the read path of spec.md §5: plan the columns
// to materialize, compile and prune the filter, decode granules in
// parallel from memory-mapped column files, evaluate the filter one row
// at a time over archived values (no per-granule boolean mask is
// built), and post-process (sort, project,
// offset/limit) the surviving rows.
package scan

import (
	"github.com/touchhouse/touchhouse/filter"
	"github.com/touchhouse/touchhouse/schema"
)

// Plan is the physical plan spec.md §5 takes as input to a scan.
type Plan struct {
	Columns []string // projection
	Filter  *filter.Predicate
	SortBy  []string
	Limit   *int
	Offset  int
}

// resolvedPlan is Plan with names resolved against a concrete schema and
// the predicate lowered to a CompiledFilter.
type resolvedPlan struct {
	projection []int // indices into tableSchema.Columns
	sortBy     []int
	compiled   *filter.CompiledFilter
	limit      *int
	offset     int
	readSet    []int // union of projection, filter refs, sort-by, in tableSchema order
}

func resolve(p Plan, tableSchema *schema.TableSchema) (*resolvedPlan, error) {
	colIndex := func(name string) int { return tableSchema.ColumnIndex(name) }

	rp := &resolvedPlan{limit: p.Limit, offset: p.Offset}

	for _, name := range p.Columns {
		rp.projection = append(rp.projection, colIndex(name))
	}
	for _, name := range p.SortBy {
		rp.sortBy = append(rp.sortBy, colIndex(name))
	}

	var compiled *filter.CompiledFilter
	if p.Filter != nil {
		cf, err := filter.Compile(*p.Filter, tableSchema.Columns)
		if err != nil {
			return nil, err
		}
		compiled = cf
	}
	rp.compiled = compiled

	seen := map[int]bool{}
	add := func(idx int) {
		if idx >= 0 && !seen[idx] {
			seen[idx] = true
			rp.readSet = append(rp.readSet, idx)
		}
	}
	for _, idx := range rp.projection {
		add(idx)
	}
	for _, idx := range rp.sortBy {
		add(idx)
	}
	if compiled != nil {
		for _, idx := range compiled.ReferencedColumns() {
			add(idx)
		}
	}
	return rp, nil
}
