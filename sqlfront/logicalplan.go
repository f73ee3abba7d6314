// Package sqlfront adapts SQL text into the logical-plan types the core
// engine consumes — registry/part/engine/scan never import this package,
// only the plan values it produces, keeping the §6 boundary intact.
package sqlfront

import (
	"github.com/touchhouse/touchhouse/filter"
	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/value"
)

// StatementKind tags which of the six supported commands a Statement is.
type StatementKind uint8

const (
	StmtCreateDatabase StatementKind = iota
	StmtDropDatabase
	StmtCreateTable
	StmtDropTable
	StmtInsert
	StmtSelect
)

func (k StatementKind) String() string {
	switch k {
	case StmtCreateDatabase:
		return "create_database"
	case StmtDropDatabase:
		return "drop_database"
	case StmtCreateTable:
		return "create_table"
	case StmtDropTable:
		return "drop_table"
	case StmtInsert:
		return "insert"
	case StmtSelect:
		return "select"
	default:
		return "unknown"
	}
}

// Statement is the result of parsing one SQL command.
type Statement struct {
	Kind StatementKind

	Database string // StmtCreateDatabase, StmtDropDatabase

	Table    schema.TableDef // StmtCreateTable, StmtDropTable, StmtInsert, StmtSelect
	Schema   schema.TableSchema // StmtCreateTable
	Settings schema.TableSettings // StmtCreateTable

	InsertColumns []string          // StmtInsert: column names in source order (every table column, in schema order, when the statement lists none)
	InsertValues  [][]value.Value   // StmtInsert: row-major literal values, already typed against Table's schema

	Select SelectPlan // StmtSelect
}

// SelectPlan is the SELECT-specific payload, shaped to convert directly
// into scan.Plan once the caller resolves it against a live registry
// entry (sqlfront itself never touches package scan or registry).
type SelectPlan struct {
	Columns []string
	Filter  *filter.Predicate
	SortBy  []string
	Limit   *int
	Offset  int
}
