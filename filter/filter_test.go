package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/value"
)

func TestCompileAndEvalRow(t *testing.T) {
	cols := []schema.ColumnDef{{Name: "id", Type: value.TypeInt64}, {Name: "name", Type: value.TypeString}}
	pred := Predicate{Kind: KindCompare, ColumnName: "id", Op: OpGt, Literal: value.Int64(3)}
	cf, err := Compile(pred, cols)
	require.NoError(t, err)

	row := []value.Archived{archive(value.Int64(5)), archive(value.String("x"))}
	ok, err := EvalRow(cf, row)
	require.NoError(t, err)
	require.True(t, ok)

	row2 := []value.Archived{archive(value.Int64(1)), archive(value.String("x"))}
	ok, err = EvalRow(cf, row2)
	require.NoError(t, err)
	require.False(t, ok)
}

func archive(v value.Value) value.Archived {
	a, _, err := value.DecodeArchived(v.Encode())
	if err != nil {
		panic(err)
	}
	return a
}

func TestFoldAndDropsConstantTrue(t *testing.T) {
	cols := []schema.ColumnDef{{Name: "id"}}
	pred := Predicate{
		Kind: KindAnd,
		Children: []Predicate{
			{Kind: KindConst, ConstBool: true},
			{Kind: KindCompare, ColumnName: "id", Op: OpEq, Literal: value.Int64(1)},
		},
	}
	cf, err := Compile(pred, cols)
	require.NoError(t, err)
	require.Equal(t, KindCompare, cf.Kind)
}

func TestFoldAndShortCircuitsConstantFalse(t *testing.T) {
	cols := []schema.ColumnDef{{Name: "id"}}
	pred := Predicate{
		Kind: KindAnd,
		Children: []Predicate{
			{Kind: KindConst, ConstBool: false},
			{Kind: KindCompare, ColumnName: "id", Op: OpEq, Literal: value.Int64(1)},
		},
	}
	cf, err := Compile(pred, cols)
	require.NoError(t, err)
	require.Equal(t, KindConst, cf.Kind)
	require.False(t, cf.Const)
}

func TestPruneGranulesEquality(t *testing.T) {
	cols := []schema.ColumnDef{{Name: "id", Type: value.TypeInt64}}
	pred := Predicate{Kind: KindCompare, ColumnName: "id", Op: OpEq, Literal: value.Int64(6)}
	cf, err := Compile(pred, cols)
	require.NoError(t, err)
	require.True(t, Prunable(cf, cols, cols))

	marks := map[int][]value.Value{
		0: {value.Int64(1), value.Int64(3), value.Int64(5), value.Int64(7), value.Int64(9)},
	}
	bm := PruneGranules(cf, marks, 5)
	require.True(t, bm.ContainsInt(2))
	require.False(t, bm.ContainsInt(0))
	require.False(t, bm.ContainsInt(4))
}

func TestPruneGranulesLessThan(t *testing.T) {
	cols := []schema.ColumnDef{{Name: "id", Type: value.TypeInt64}}
	pred := Predicate{Kind: KindCompare, ColumnName: "id", Op: OpLt, Literal: value.Int64(4)}
	cf, err := Compile(pred, cols)
	require.NoError(t, err)

	marks := map[int][]value.Value{
		0: {value.Int64(1), value.Int64(3), value.Int64(5), value.Int64(7), value.Int64(9)},
	}
	bm := PruneGranules(cf, marks, 5)
	require.Equal(t, uint64(2), bm.GetCardinality())
	require.True(t, bm.ContainsInt(0))
	require.True(t, bm.ContainsInt(1))
}

func TestNotPrunableWithCompareColumns(t *testing.T) {
	cols := []schema.ColumnDef{{Name: "id"}, {Name: "other"}}
	cf := compareColumns(0, OpEq, 1)
	require.False(t, Prunable(cf, cols, cols))
}
