// Package part implements the immutable, directory-shaped unit of storage:
// writing a freshly-sorted set of columns as granule-framed column files
// plus a sparse primary-key mark index, and reading them back.
package part

import (
	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/value"
)

// Column is one named column's full in-memory data, row-aligned with its
// siblings in the same part. It is schema.Column under the hood so the
// engine package (which orders columns for insert) needs no dependency
// on package part.
type Column = schema.Column

// ByteRange is the [Start, End) span of one granule's compressed bytes
// within one column's .bin file payload (i.e. relative to the first byte
// after the file's magic prefix, not to the file itself).
type ByteRange struct {
	Start int64
	End   int64
}

// Mark is the sparse index entry for one granule: the primary-key tuple
// at the granule's first row, plus the byte range of that granule within
// every column present in the part.
type Mark struct {
	Index  []value.Value // primary key columns, in PRIMARY KEY order
	Ranges []ByteRange   // aligned with Info.ColumnDefs
}

// Info is the part-info sidecar (part.inf): everything needed to read a
// part back without touching the column files except by seek+read.
type Info struct {
	Name       string
	RowCount   uint64
	ColumnDefs []schema.ColumnDef
	Marks      []Mark
}

// ColumnIndex returns the position of name within ColumnDefs, or -1 if the
// part does not carry that column (it was added to the table schema after
// this part was written).
func (i *Info) ColumnIndex(name string) int {
	for idx, c := range i.ColumnDefs {
		if c.Name == name {
			return idx
		}
	}
	return -1
}

// GranuleRowCount returns how many rows granule g holds, accounting for
// the final, possibly partial, granule.
func (i *Info) GranuleRowCount(g int, granularity uint32) int {
	start := uint64(g) * uint64(granularity)
	if start >= i.RowCount {
		return 0
	}
	remaining := i.RowCount - start
	if remaining > uint64(granularity) {
		return int(granularity)
	}
	return int(remaining)
}
