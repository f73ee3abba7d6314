package recovery_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"

	"github.com/touchhouse/touchhouse/recovery"
	"github.com/touchhouse/touchhouse/registry"
	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/value"
)

func testSchema() schema.TableSchema {
	cols := []schema.ColumnDef{
		{Name: "id", Type: value.TypeUInt64},
		{Name: "val", Type: value.TypeString},
	}
	return schema.TableSchema{Columns: cols, OrderBy: cols[:1], PrimaryKey: cols[:1]}
}

func writeTable(t *testing.T, storageDir, db, table string) string {
	t.Helper()
	tableDir := filepath.Join(storageDir, db, table)
	require.NoError(t, os.MkdirAll(tableDir, 0o755))

	meta, err := schema.NewMetadata(testSchema(), schema.TableSettings{IndexGranularity: schema.DefaultIndexGranularity}, 0)
	require.NoError(t, err)
	require.NoError(t, meta.WriteTo(tableDir))
	return tableDir
}

func TestRunRegistersTablesFromDisk(t *testing.T) {
	storageDir := t.TempDir()
	writeTable(t, storageDir, "default", "events")

	reg := registry.New()
	require.NoError(t, recovery.Run(storageDir, reg, log.NewNopLogger()))

	entry, ok := reg.Get(schema.TableDef{Database: "default", Table: "events"})
	require.True(t, ok)
	require.Equal(t, "default", entry.Def.Database)
	require.Equal(t, "events", entry.Def.Table)
	require.NotNil(t, entry.Load())
	require.Empty(t, entry.Load().Parts)
}

func TestRunPurgesStaleRawDirectory(t *testing.T) {
	storageDir := t.TempDir()
	tableDir := writeTable(t, storageDir, "default", "events")
	rawDir := filepath.Join(tableDir, "raw")
	require.NoError(t, os.MkdirAll(rawDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(rawDir, "leftover"), []byte("x"), 0o644))

	reg := registry.New()
	require.NoError(t, recovery.Run(storageDir, reg, log.NewNopLogger()))

	_, err := os.Stat(rawDir)
	require.True(t, os.IsNotExist(err))
}

func TestRunSkipsLeftoverMergeSwapDirectory(t *testing.T) {
	storageDir := t.TempDir()
	tableDir := writeTable(t, storageDir, "default", "events")
	require.NoError(t, os.MkdirAll(filepath.Join(tableDir, "part-1.old"), 0o755))

	reg := registry.New()
	require.NoError(t, recovery.Run(storageDir, reg, log.NewNopLogger()))

	entry, ok := reg.Get(schema.TableDef{Database: "default", Table: "events"})
	require.True(t, ok)
	require.Empty(t, entry.Load().Parts)
}

func TestRunSkipsTableWithoutMetadata(t *testing.T) {
	storageDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(storageDir, "default", "noschema"), 0o755))

	reg := registry.New()
	require.NoError(t, recovery.Run(storageDir, reg, log.NewNopLogger()))

	_, ok := reg.Get(schema.TableDef{Database: "default", Table: "noschema"})
	require.False(t, ok)
}

func TestRunToleratesMissingStorageDirectory(t *testing.T) {
	reg := registry.New()
	require.NoError(t, recovery.Run(filepath.Join(t.TempDir(), "absent"), reg, log.NewNopLogger()))
	require.Empty(t, reg.List())
}
