package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/value"
)

func TestReplacingMergeTreeKeepsNewestPerKey(t *testing.T) {
	id := col("id", value.Int64(1), value.Int64(1), value.Int64(2), value.Int64(2), value.Int64(3), value.Int64(1))
	version := col("version", value.String("v1"), value.String("v2"), value.String("v1"), value.String("v3"), value.String("v1"), value.String("v3"))
	data := col("data", value.String("old"), value.String("mid"), value.String("old"), value.String("new"), value.String("only"), value.String("newest"))

	orderBy := []schema.ColumnDef{{Name: "id"}, {Name: "version"}}
	primaryKey := []schema.ColumnDef{{Name: "id"}}

	ordered, err := ReplacingMergeTreeEngine{}.OrderColumns([]schema.Column{id, version, data}, orderBy, primaryKey)
	require.NoError(t, err)
	require.Equal(t, 3, len(ordered[0].Data))

	gotID := make([]int64, 3)
	gotData := make([]string, 3)
	for i := 0; i < 3; i++ {
		gotID[i] = ordered[0].Data[i].AsInt()
		gotData[i] = ordered[2].Data[i].AsString()
	}
	require.Equal(t, []int64{1, 2, 3}, gotID)
	require.Equal(t, []string{"newest", "new", "only"}, gotData)
}

func TestReplacingMergeTreeKeepsNonCollidingRows(t *testing.T) {
	col1 := col("col_1", value.String("a"), value.String("b"), value.String("b"), value.String("c"), value.String("a"), value.String("d"), value.String("b"))
	col2 := col("col_2", value.String("q"), value.String("w"), value.String("e"), value.String("d"), value.String("q"), value.String("w"), value.String("w"))
	col3 := col("col_3", value.String("1"), value.String("2"), value.String("3"), value.String("4"), value.String("5"), value.String("6"), value.String("7"))

	orderBy := []schema.ColumnDef{{Name: "col_1"}, {Name: "col_2"}, {Name: "col_3"}}
	primaryKey := []schema.ColumnDef{{Name: "col_1"}, {Name: "col_2"}}

	ordered, err := ReplacingMergeTreeEngine{}.OrderColumns([]schema.Column{col1, col2, col3}, orderBy, primaryKey)
	require.NoError(t, err)

	wantCol1 := []string{"a", "b", "b", "c", "d"}
	wantCol2 := []string{"q", "e", "w", "d", "w"}
	wantCol3 := []string{"5", "3", "7", "4", "6"}
	require.Equal(t, len(wantCol1), len(ordered[0].Data))
	for i := range wantCol1 {
		require.Equal(t, wantCol1[i], ordered[0].Data[i].AsString())
		require.Equal(t, wantCol2[i], ordered[1].Data[i].AsString())
		require.Equal(t, wantCol3[i], ordered[2].Data[i].AsString())
	}
}
