package scan

import (
	"context"
	"path/filepath"
	"sort"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/touchhouse/touchhouse/filter"
	"github.com/touchhouse/touchhouse/part"
	"github.com/touchhouse/touchhouse/registry"
	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/toucherr"
	"github.com/touchhouse/touchhouse/value"
)

// granuleChunkSize matches spec.md §5(e)'s "fixed-size chunks (e.g., 10
// granules per task)".
const granuleChunkSize = 10

// WorkerCount bounds the scan engine's decode worker pool.
var WorkerCount = 8

// Result is the materialized, post-processed output of a scan: one
// schema.Column per projected column, all the same length.
type Result struct {
	Columns []schema.Column
}

// Execute runs plan against entry's current snapshot of parts. Callers
// must already hold an Acquire()'d handle on entry for the duration of
// the call (the caller releases it; Execute never calls Acquire itself,
// since a single handle typically spans planning, execution and
// response serialization).
func Execute(ctx context.Context, entry *registry.Entry, plan Plan) (*Result, error) {
	rp, err := resolve(plan, &entry.Meta.Schema)
	if err != nil {
		return nil, err
	}

	snapshot := entry.Load()
	prunable := rp.compiled != nil && filter.Prunable(rp.compiled, entry.Meta.Schema.Columns, entry.Meta.Schema.PrimaryKey)

	cols := entry.Meta.Schema.Columns
	var rowsMu rowAccumulator
	rowsMu.init(rp.readSet)
	// A LIMIT with no ORDER BY lets the scan stop the instant it has kept
	// enough rows, per spec.md §4.4(e)/§5: once offset+limit rows are in
	// hand, every further granule is pruning surplus work. An ORDER BY
	// needs every matching row materialized before it can trim correctly,
	// so the cap only applies when rp.sortBy is empty.
	if len(rp.sortBy) == 0 && rp.limit != nil {
		rowsMu.setLimit(rp.offset + *rp.limit)
	}

	for _, info := range snapshot.Parts {
		if rowsMu.shouldStop() {
			break
		}
		if err := scanPart(ctx, entry.Dir, info, &entry.Meta.Schema, rp, prunable, &rowsMu); err != nil {
			return nil, err
		}
	}

	return postProcess(rp, cols, rowsMu.drain())
}

// scanPart decodes and filters one part, appending surviving rows'
// values (for every column in rp.readSet) into acc.
func scanPart(ctx context.Context, tableDir string, info *part.Info, tableSchema *schema.TableSchema, rp *resolvedPlan, prunable bool, acc *rowAccumulator) error {
	reader, err := part.Open(filepath.Join(tableDir, info.Name), info)
	if err != nil {
		return err
	}
	defer reader.Close()

	granuleCount := reader.GranuleCount()
	var candidates []int
	if prunable {
		marks := buildMarkValues(info, tableSchema)
		bm := filter.PruneGranules(rp.compiled, marks, granuleCount)
		it := bm.Iterator()
		for it.HasNext() {
			candidates = append(candidates, int(it.Next()))
		}
	} else {
		candidates = make([]int, granuleCount)
		for g := range candidates {
			candidates[g] = g
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(WorkerCount)

	for start := 0; start < len(candidates); start += granuleChunkSize {
		if acc.shouldStop() {
			break
		}
		end := start + granuleChunkSize
		if end > len(candidates) {
			end = len(candidates)
		}
		chunk := candidates[start:end]
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			if acc.shouldStop() {
				return nil
			}
			return scanChunk(reader, info, tableSchema, rp, chunk, acc)
		})
	}
	return g.Wait()
}

// scanChunk decodes every granule in chunk for every column in
// rp.readSet, evaluates the filter row by row, and appends surviving
// rows' values to acc.
func scanChunk(reader *part.Reader, info *part.Info, tableSchema *schema.TableSchema, rp *resolvedPlan, chunk []int, acc *rowAccumulator) error {
	numCols := len(tableSchema.Columns)

	for _, g := range chunk {
		if acc.shouldStop() {
			return nil
		}
		perColumn := make(map[int][]value.Archived, len(rp.readSet))
		maxRows := 0
		for _, tIdx := range rp.readSet {
			name := tableSchema.Columns[tIdx].Name
			if info.ColumnIndex(name) < 0 {
				continue // column absent from this part: treated as null below
			}
			comp := part.ColumnCompression(tableSchema, name)
			archived, err := reader.Granule(name, g, comp)
			if err != nil {
				return err
			}
			perColumn[tIdx] = archived
			if len(archived) > maxRows {
				maxRows = len(archived)
			}
		}

		nullArchived := nullArchivedValue()
		for row := 0; row < maxRows; row++ {
			full := make([]value.Archived, numCols)
			for _, tIdx := range rp.readSet {
				vals, ok := perColumn[tIdx]
				if ok && row < len(vals) {
					full[tIdx] = vals[row]
				} else {
					full[tIdx] = nullArchived
				}
			}

			keep := true
			if rp.compiled != nil {
				var err error
				keep, err = filter.EvalRow(rp.compiled, full)
				if err != nil {
					return err
				}
			}
			if keep {
				acc.append(full)
			}
		}
	}
	return nil
}

func nullArchivedValue() value.Archived {
	a, _, _ := value.DecodeArchived(value.Null().Encode())
	return a
}

// buildMarkValues projects a part's marks onto the table's primary-key
// column indices, producing the per-column sorted sequences
// filter.PruneGranules needs.
func buildMarkValues(info *part.Info, tableSchema *schema.TableSchema) map[int][]value.Value {
	out := make(map[int][]value.Value, len(tableSchema.PrimaryKey))
	for pkPos, pk := range tableSchema.PrimaryKey {
		tIdx := tableSchema.ColumnIndex(pk.Name)
		if tIdx < 0 {
			continue
		}
		vals := make([]value.Value, len(info.Marks))
		for g, m := range info.Marks {
			if pkPos < len(m.Index) {
				vals[g] = m.Index[pkPos]
			} else {
				vals[g] = value.Null()
			}
		}
		out[tIdx] = vals
	}
	return out
}

// rowAccumulator collects materialized rows (one value.Value per
// readSet column) behind a mutex, since multiple granule-chunk tasks
// append concurrently. It also carries the shared atomic "rows kept"
// count that implements spec.md §4.4(e)'s early-stop: once a LIMIT-
// bounded plan has kept enough rows, shouldStop lets in-flight
// granule-chunk tasks skip their remaining work instead of decoding and
// filtering granules whose output can never make the final cut.
type rowAccumulator struct {
	mu      chan struct{} // binary semaphore; avoids importing sync just for this
	readSet []int
	rows    [][]value.Value // each row has len(readSet) entries, aligned with readSet

	kept   atomic.Int64
	stopAt int // <= 0 means uncapped
}

func (a *rowAccumulator) init(readSet []int) {
	a.mu = make(chan struct{}, 1)
	a.mu <- struct{}{}
	a.readSet = readSet
}

// setLimit arms the early-stop at n kept rows (offset+limit). Leaving
// it unset (stopAt stays 0) keeps every row.
func (a *rowAccumulator) setLimit(n int) {
	a.stopAt = n
}

// shouldStop reports whether enough rows have already been kept that
// further scanning is pure waste.
func (a *rowAccumulator) shouldStop() bool {
	return a.stopAt > 0 && a.kept.Load() >= int64(a.stopAt)
}

func (a *rowAccumulator) append(full []value.Archived) {
	row := make([]value.Value, len(a.readSet))
	for i, tIdx := range a.readSet {
		row[i] = full[tIdx].Materialize()
	}
	<-a.mu
	a.rows = append(a.rows, row)
	a.mu <- struct{}{}
	a.kept.Add(1)
}

func (a *rowAccumulator) drain() [][]value.Value {
	<-a.mu
	rows := a.rows
	a.rows = nil
	a.mu <- struct{}{}
	return rows
}

// postProcess applies sort, projection, offset and limit to the
// flattened candidate row set — the exact trim documented as Open
// Question 2 in DESIGN.md.
func postProcess(rp *resolvedPlan, tableCols []schema.ColumnDef, rows [][]value.Value) (*Result, error) {
	readPos := make(map[int]int, len(rp.readSet))
	for i, tIdx := range rp.readSet {
		readPos[tIdx] = i
	}

	if len(rp.sortBy) > 0 {
		sortIdx := make([]int, len(rp.sortBy))
		for i, tIdx := range rp.sortBy {
			sortIdx[i] = readPos[tIdx]
		}
		sort.SliceStable(rows, func(a, b int) bool {
			for _, pos := range sortIdx {
				cmp, ok := rows[a][pos].CompareTo(rows[b][pos])
				if !ok || cmp != 0 {
					return ok && cmp < 0
				}
			}
			return false
		})
	}

	start := rp.offset
	if start > len(rows) {
		start = len(rows)
	}
	end := len(rows)
	if rp.limit != nil {
		want := start + *rp.limit
		if want < end {
			end = want
		}
	}
	trimmed := rows[start:end]

	projection := rp.projection
	if len(projection) == 0 {
		projection = make([]int, len(rp.readSet))
		copy(projection, rp.readSet)
	}

	out := make([]schema.Column, len(projection))
	for i, tIdx := range projection {
		if tIdx < 0 || tIdx >= len(tableCols) {
			return nil, toucherr.New(toucherr.ColumnNotFound, "projected column not found in table schema")
		}
		pos, ok := readPos[tIdx]
		data := make([]value.Value, len(trimmed))
		for r, row := range trimmed {
			if ok {
				data[r] = row[pos]
			} else {
				data[r] = value.Null()
			}
		}
		out[i] = schema.Column{Def: tableCols[tIdx], Data: data}
	}
	return &Result{Columns: out}, nil
}
