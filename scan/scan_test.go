package scan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/touchhouse/touchhouse/filter"
	"github.com/touchhouse/touchhouse/part"
	"github.com/touchhouse/touchhouse/registry"
	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/value"
)

func buildTestEntry(t *testing.T, granularity uint32, rows []int64) *registry.Entry {
	t.Helper()
	dir := t.TempDir()

	idCol := schema.ColumnDef{Name: "id", Type: value.TypeInt64}
	nameCol := schema.ColumnDef{Name: "name", Type: value.TypeString}
	s := schema.TableSchema{
		Columns:    []schema.ColumnDef{idCol, nameCol},
		OrderBy:    []schema.ColumnDef{idCol},
		PrimaryKey: []schema.ColumnDef{idCol},
	}
	meta, err := schema.NewMetadata(s, schema.TableSettings{IndexGranularity: granularity, Engine: schema.EngineMergeTree}, 0)
	require.NoError(t, err)

	ids := make([]value.Value, len(rows))
	names := make([]value.Value, len(rows))
	for i, id := range rows {
		ids[i] = value.Int64(id)
		names[i] = value.String(someName(id))
	}
	columns := []part.Column{
		{Def: idCol, Data: ids},
		{Def: nameCol, Data: names},
	}

	info, rawDir, err := part.Build(dir, meta, columns)
	require.NoError(t, err)
	require.NoError(t, part.Publish(rawDir, dir, info.Name))

	reg := registry.New()
	def := schema.TableDef{Database: "db", Table: "t"}
	entry, err := reg.Insert(def, meta, dir)
	require.NoError(t, err)
	entry.Lock()
	entry.Store(&registry.Snapshot{Parts: []*part.Info{info}})
	entry.Unlock()
	return entry
}

func someName(id int64) string {
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	return names[int(id)%len(names)]
}

func TestExecuteProjectsAndFilters(t *testing.T) {
	entry := buildTestEntry(t, 2, []int64{5, 1, 3, 4, 2})

	pred := filter.Predicate{Kind: filter.KindCompare, ColumnName: "id", Op: filter.OpGt, Literal: value.Int64(2)}
	plan := Plan{Columns: []string{"id"}, Filter: &pred, SortBy: []string{"id"}}

	res, err := Execute(context.Background(), entry, plan)
	require.NoError(t, err)
	require.Equal(t, 1, len(res.Columns))

	var got []int64
	for _, v := range res.Columns[0].Data {
		got = append(got, v.AsInt())
	}
	require.Equal(t, []int64{3, 4, 5}, got)
}

func TestExecuteLimitOffset(t *testing.T) {
	entry := buildTestEntry(t, 2, []int64{1, 2, 3, 4, 5})

	limit := 2
	plan := Plan{Columns: []string{"id"}, SortBy: []string{"id"}, Limit: &limit, Offset: 1}

	res, err := Execute(context.Background(), entry, plan)
	require.NoError(t, err)

	var got []int64
	for _, v := range res.Columns[0].Data {
		got = append(got, v.AsInt())
	}
	require.Equal(t, []int64{2, 3}, got)
}

func TestExecuteLimitWithoutSortByReturnsExactCount(t *testing.T) {
	entry := buildTestEntry(t, 2, []int64{1, 2, 3, 4, 5})

	limit := 2
	plan := Plan{Columns: []string{"id"}, Limit: &limit}

	res, err := Execute(context.Background(), entry, plan)
	require.NoError(t, err)
	require.Equal(t, 2, len(res.Columns[0].Data))
}

func TestRowAccumulatorStopsOnceLimitKept(t *testing.T) {
	var acc rowAccumulator
	acc.init([]int{0})
	acc.setLimit(2)
	require.False(t, acc.shouldStop())

	acc.append([]value.Archived{nullArchivedValue()})
	require.False(t, acc.shouldStop())

	acc.append([]value.Archived{nullArchivedValue()})
	require.True(t, acc.shouldStop())
}

func TestRowAccumulatorUncappedNeverStops(t *testing.T) {
	var acc rowAccumulator
	acc.init([]int{0})
	for i := 0; i < 100; i++ {
		acc.append([]value.Archived{nullArchivedValue()})
	}
	require.False(t, acc.shouldStop())
}

func TestExecuteNoFilterReturnsAllRows(t *testing.T) {
	entry := buildTestEntry(t, 3, []int64{1, 2, 3, 4})
	plan := Plan{Columns: []string{"id", "name"}, SortBy: []string{"id"}}

	res, err := Execute(context.Background(), entry, plan)
	require.NoError(t, err)
	require.Equal(t, 4, len(res.Columns[0].Data))
	require.Equal(t, 2, len(res.Columns))
}
