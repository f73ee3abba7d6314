package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/value"
)

func col(name string, vs ...value.Value) schema.Column {
	return schema.Column{Def: schema.ColumnDef{Name: name}, Data: vs}
}

func TestMergeTreeOrderColumnsStableSort(t *testing.T) {
	a := col("a", value.Int64(3), value.Int64(1), value.Int64(2), value.Int64(1))
	b := col("b", value.String("x"), value.String("y"), value.String("z"), value.String("w"))

	ordered, err := MergeTreeEngine{}.OrderColumns([]schema.Column{a, b}, []schema.ColumnDef{{Name: "a"}}, nil)
	require.NoError(t, err)

	gotA := make([]int64, len(ordered[0].Data))
	for i, v := range ordered[0].Data {
		gotA[i] = v.AsInt()
	}
	require.Equal(t, []int64{1, 1, 2, 3}, gotA)

	gotB := make([]string, len(ordered[1].Data))
	for i, v := range ordered[1].Data {
		gotB[i] = v.AsString()
	}
	// rows with a==1 keep their relative order: "y" before "w"
	require.Equal(t, []string{"y", "w", "z", "x"}, gotB)
}

func TestMergeTreeOrderColumnsRejectsMismatchedLengths(t *testing.T) {
	a := col("a", value.Int64(1))
	b := col("b", value.Int64(1), value.Int64(2))
	_, err := MergeTreeEngine{}.OrderColumns([]schema.Column{a, b}, []schema.ColumnDef{{Name: "a"}}, nil)
	require.Error(t, err)
}
