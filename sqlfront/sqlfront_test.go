package sqlfront_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/touchhouse/touchhouse/filter"
	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/sqlfront"
	"github.com/touchhouse/touchhouse/value"
)

type stubLookup map[schema.TableDef]*schema.TableSchema

func (s stubLookup) Schema(def schema.TableDef) (*schema.TableSchema, bool) {
	v, ok := s[def]
	return v, ok
}

func eventsSchema() *schema.TableSchema {
	cols := []schema.ColumnDef{
		{Name: "id", Type: value.TypeUInt64},
		{Name: "name", Type: value.TypeString, Constraints: schema.Constraints{Nullable: true}},
		{Name: "count", Type: value.TypeInt32, Constraints: schema.Constraints{Default: valuePtr(value.Int32(0))}},
	}
	return &schema.TableSchema{Columns: cols, OrderBy: cols[:1], PrimaryKey: cols[:1]}
}

func valuePtr(v value.Value) *value.Value { return &v }

func TestParseCreateDatabase(t *testing.T) {
	stmt, err := sqlfront.Parse("CREATE DATABASE analytics", nil)
	require.NoError(t, err)
	require.Equal(t, sqlfront.StmtCreateDatabase, stmt.Kind)
	require.Equal(t, "analytics", stmt.Database)
}

func TestParseDropDatabase(t *testing.T) {
	stmt, err := sqlfront.Parse("DROP DATABASE analytics", nil)
	require.NoError(t, err)
	require.Equal(t, sqlfront.StmtDropDatabase, stmt.Kind)
	require.Equal(t, "analytics", stmt.Database)
}

func TestParseDropTable(t *testing.T) {
	stmt, err := sqlfront.Parse("DROP TABLE default.events", nil)
	require.NoError(t, err)
	require.Equal(t, sqlfront.StmtDropTable, stmt.Kind)
	require.Equal(t, "events", stmt.Table.Table)
}

func TestParseCreateTableBasic(t *testing.T) {
	sql := `CREATE TABLE default.events (id UInt64, name String, count Int32 DEFAULT 0)
		ENGINE = MergeTree() ORDER BY (id) SETTINGS index_granularity = 4096`
	stmt, err := sqlfront.Parse(sql, nil)
	require.NoError(t, err)
	require.Equal(t, sqlfront.StmtCreateTable, stmt.Kind)
	require.Equal(t, "default", stmt.Table.Database)
	require.Equal(t, "events", stmt.Table.Table)
	require.Len(t, stmt.Schema.Columns, 3)
	require.Equal(t, uint32(4096), stmt.Settings.IndexGranularity)
	require.Equal(t, schema.EngineMergeTree, stmt.Settings.Engine)
	require.Equal(t, []schema.ColumnDef{stmt.Schema.Columns[0]}, stmt.Schema.OrderBy)
	require.NotNil(t, stmt.Schema.Columns[2].Constraints.Default)
}

func TestParseCreateTableWithPrimaryKey(t *testing.T) {
	sql := `CREATE TABLE IF NOT EXISTS events (id UInt64, ts Int64, name String)
		ENGINE = ReplacingMergeTree ORDER BY (id, ts) PRIMARY KEY (id)`
	stmt, err := sqlfront.Parse(sql, nil)
	require.NoError(t, err)
	require.Equal(t, schema.EngineReplacingMergeTree, stmt.Settings.Engine)
	require.Len(t, stmt.Schema.OrderBy, 2)
	require.Len(t, stmt.Schema.PrimaryKey, 1)
	require.Equal(t, "id", stmt.Schema.PrimaryKey[0].Name)
}

func TestParseCreateTableUnknownTypeFails(t *testing.T) {
	sql := `CREATE TABLE events (id Float64) ENGINE = MergeTree() ORDER BY (id)`
	_, err := sqlfront.Parse(sql, nil)
	require.Error(t, err)
}

func TestParseInsertExplicitColumns(t *testing.T) {
	lookup := stubLookup{{Database: "default", Table: "events"}: eventsSchema()}
	stmt, err := sqlfront.Parse("INSERT INTO default.events (id, name) VALUES (1, 'a'), (2, 'b')", lookup)
	require.NoError(t, err)
	require.Equal(t, sqlfront.StmtInsert, stmt.Kind)
	require.Equal(t, []string{"id", "name"}, stmt.InsertColumns)
	require.Len(t, stmt.InsertValues, 2)
}

func TestParseInsertDefaultColumnOrder(t *testing.T) {
	lookup := stubLookup{{Database: "default", Table: "events"}: eventsSchema()}
	stmt, err := sqlfront.Parse("INSERT INTO default.events VALUES (1, 'a', 5)", lookup)
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name", "count"}, stmt.InsertColumns)
}

func TestColumnsToPartsFillsDefaultForOmittedColumn(t *testing.T) {
	tableSchema := eventsSchema()
	lookup := stubLookup{{Database: "default", Table: "events"}: tableSchema}
	stmt, err := sqlfront.Parse("INSERT INTO default.events (id, name) VALUES (1, 'a')", lookup)
	require.NoError(t, err)

	cols, err := sqlfront.ColumnsToParts(stmt, tableSchema)
	require.NoError(t, err)
	require.Len(t, cols, 3)
	require.Equal(t, "count", cols[2].Def.Name)
	require.Equal(t, value.Int32(0), cols[2].Data[0])
}

func TestColumnsToPartsErrorsWithoutDefaultOrNullable(t *testing.T) {
	cols := []schema.ColumnDef{
		{Name: "id", Type: value.TypeUInt64},
		{Name: "required", Type: value.TypeString},
	}
	tableSchema := &schema.TableSchema{Columns: cols, OrderBy: cols[:1], PrimaryKey: cols[:1]}
	lookup := stubLookup{{Database: "default", Table: "t"}: tableSchema}

	stmt, err := sqlfront.Parse("INSERT INTO default.t (id) VALUES (1)", lookup)
	require.NoError(t, err)

	_, err = sqlfront.ColumnsToParts(stmt, tableSchema)
	require.Error(t, err)
}

func TestParseSelectWithWhereAndLimit(t *testing.T) {
	lookup := stubLookup{{Database: "default", Table: "events"}: eventsSchema()}
	stmt, err := sqlfront.Parse("SELECT id, name FROM default.events WHERE id > 10 AND name != 'x' ORDER BY id LIMIT 5 OFFSET 2", lookup)
	require.NoError(t, err)
	require.Equal(t, sqlfront.StmtSelect, stmt.Kind)
	require.Equal(t, []string{"id", "name"}, stmt.Select.Columns)
	require.NotNil(t, stmt.Select.Filter)
	require.Equal(t, filter.KindAnd, stmt.Select.Filter.Kind)
	require.Equal(t, []string{"id"}, stmt.Select.SortBy)
	require.NotNil(t, stmt.Select.Limit)
	require.Equal(t, 5, *stmt.Select.Limit)
	require.Equal(t, 2, stmt.Select.Offset)
}

func TestParseSelectWildcard(t *testing.T) {
	lookup := stubLookup{{Database: "default", Table: "events"}: eventsSchema()}
	stmt, err := sqlfront.Parse("SELECT * FROM default.events", lookup)
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name", "count"}, stmt.Select.Columns)
	require.Nil(t, stmt.Select.Filter)
}

func TestParseSelectMirroredComparison(t *testing.T) {
	lookup := stubLookup{{Database: "default", Table: "events"}: eventsSchema()}
	stmt, err := sqlfront.Parse("SELECT id FROM default.events WHERE 10 < id", lookup)
	require.NoError(t, err)
	require.Equal(t, filter.KindCompare, stmt.Select.Filter.Kind)
	require.Equal(t, filter.OpGt, stmt.Select.Filter.Op)
	require.Equal(t, "id", stmt.Select.Filter.ColumnName)
}

func TestParseSelectUnknownTableFails(t *testing.T) {
	_, err := sqlfront.Parse("SELECT * FROM default.missing", stubLookup{})
	require.Error(t, err)
}
