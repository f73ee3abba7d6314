package merger

import (
	"context"
	"testing"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/touchhouse/touchhouse/part"
	"github.com/touchhouse/touchhouse/registry"
	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/value"
)

func testTableMeta(t *testing.T) *schema.TableMetadata {
	idCol := schema.ColumnDef{Name: "id", Type: value.TypeInt64}
	s := schema.TableSchema{
		Columns:    []schema.ColumnDef{idCol},
		OrderBy:    []schema.ColumnDef{idCol},
		PrimaryKey: []schema.ColumnDef{idCol},
	}
	meta, err := schema.NewMetadata(s, schema.TableSettings{IndexGranularity: 8192, Engine: schema.EngineMergeTree}, 0)
	require.NoError(t, err)
	return meta
}

func buildPublishedPart(t *testing.T, dir string, meta *schema.TableMetadata, ids []int64) *part.Info {
	data := make([]value.Value, len(ids))
	for i, id := range ids {
		data[i] = value.Int64(id)
	}
	columns := []part.Column{{Def: meta.Schema.Columns[0], Data: data}}
	info, rawDir, err := part.Build(dir, meta, columns)
	require.NoError(t, err)
	require.NoError(t, part.Publish(rawDir, dir, info.Name))
	return info
}

// A merged part must inherit the name of the newer (later-UUIDv7) of its
// two source parts, so a table's part-name chain keeps extending across
// repeated merges instead of restarting every time.
func TestMergeOnceNamesResultAfterNewerPart(t *testing.T) {
	dir := t.TempDir()
	meta := testTableMeta(t)

	older := buildPublishedPart(t, dir, meta, []int64{1, 2})
	newer := buildPublishedPart(t, dir, meta, []int64{3, 4})
	require.NotEqual(t, older.Name, newer.Name)

	reg := registry.New()
	def := schema.TableDef{Database: "db", Table: "t"}
	entry, err := reg.Insert(def, meta, dir)
	require.NoError(t, err)
	entry.Store(&registry.Snapshot{Parts: []*part.Info{older, newer}})

	m := New(reg, log.NewNopLogger(), 0, prometheus.NewRegistry())
	merged, err := m.mergeOnce(context.Background())
	require.NoError(t, err)
	require.True(t, merged)

	snapshot := entry.Load()
	require.Equal(t, 1, len(snapshot.Parts))
	require.Equal(t, newer.Name, snapshot.Parts[0].Name)
	require.Equal(t, uint64(4), snapshot.Parts[0].RowCount)
}
