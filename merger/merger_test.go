package merger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/value"
)

func TestUuidTimeCompareOrdersByEmbeddedTimestamp(t *testing.T) {
	// Embedded millisecond timestamps about three days apart (UUIDv7 keeps
	// them in the first 6 bytes).
	older := "018f1000-0000-7000-8000-000000000000"
	newer := "018f2000-0000-7000-8000-000000000000"
	require.True(t, uuidTimeCompare(older, newer) < 0)
	require.True(t, uuidTimeCompare(newer, older) > 0)
	require.Equal(t, 0, uuidTimeCompare(older, older))
}

func TestUuidTimeCompareFallsBackToLexicographic(t *testing.T) {
	require.True(t, uuidTimeCompare("not-a-uuid-a", "not-a-uuid-b") < 0)
}

func TestMergeColumnsConcatenatesMatchingColumns(t *testing.T) {
	a := []schema.Column{
		{Def: schema.ColumnDef{Name: "id"}, Data: []value.Value{value.Int64(1), value.Int64(2)}},
	}
	b := []schema.Column{
		{Def: schema.ColumnDef{Name: "id"}, Data: []value.Value{value.Int64(3)}},
	}
	merged := mergeColumns(a, b)
	require.Equal(t, 1, len(merged))
	require.Equal(t, 3, len(merged[0].Data))
	require.Equal(t, int64(3), merged[0].Data[2].AsInt())
}

func TestMergeColumnsNullPadsMissingColumn(t *testing.T) {
	a := []schema.Column{
		{Def: schema.ColumnDef{Name: "id"}, Data: []value.Value{value.Int64(1), value.Int64(2)}},
	}
	b := []schema.Column{
		{Def: schema.ColumnDef{Name: "id"}, Data: []value.Value{value.Int64(3)}},
		{Def: schema.ColumnDef{Name: "tag"}, Data: []value.Value{value.String("x")}},
	}
	merged := mergeColumns(a, b)
	require.Equal(t, 2, len(merged))

	var tagCol *schema.Column
	for i := range merged {
		if merged[i].Def.Name == "tag" {
			tagCol = &merged[i]
		}
	}
	require.NotNil(t, tagCol)
	require.Equal(t, 3, len(tagCol.Data))
	require.True(t, tagCol.Data[0].IsNull())
	require.True(t, tagCol.Data[1].IsNull())
	require.Equal(t, "x", tagCol.Data[2].AsString())
}
