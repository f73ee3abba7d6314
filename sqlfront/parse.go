package sqlfront

import (
	"strings"

	"github.com/pingcap/tidb/parser"
	"github.com/pingcap/tidb/parser/ast"
	_ "github.com/pingcap/tidb/parser/test_driver" // registers literal ValueExpr handling the parser needs

	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/toucherr"
)

// TableLookup resolves a table's schema for statements (INSERT, SELECT)
// that need to type-check against existing columns. Implemented by the
// server's registry wrapper; sqlfront depends only on this interface,
// never on package registry itself.
type TableLookup interface {
	Schema(def schema.TableDef) (*schema.TableSchema, bool)
}

// Parse lowers one SQL statement into a Statement. CREATE TABLE is
// recognized and parsed by a dedicated hand-rolled tokenizer (see
// create_table.go) since its ClickHouse-style ENGINE/ORDER BY/SETTINGS
// clauses aren't MySQL grammar; every other statement goes through
// github.com/pingcap/tidb/parser.
func Parse(sql string, lookup TableLookup) (*Statement, error) {
	trimmed := strings.TrimSpace(sql)
	if isCreateTable(trimmed) {
		return parseCreateTable(trimmed)
	}

	p := parser.New()
	stmtNodes, _, err := p.Parse(trimmed, "", "")
	if err != nil {
		return nil, toucherr.Newf(toucherr.SqlToAstConversion, "parse SQL: %v", err)
	}
	if len(stmtNodes) != 1 {
		return nil, toucherr.New(toucherr.SqlToAstConversion, "expected exactly one SQL statement")
	}

	switch n := stmtNodes[0].(type) {
	case *ast.CreateDatabaseStmt:
		return &Statement{Kind: StmtCreateDatabase, Database: n.Name.O}, nil
	case *ast.DropDatabaseStmt:
		return &Statement{Kind: StmtDropDatabase, Database: n.Name.O}, nil
	case *ast.DropTableStmt:
		if len(n.Tables) != 1 {
			return nil, toucherr.New(toucherr.UnsupportedCommand, "DROP TABLE supports exactly one table")
		}
		return &Statement{Kind: StmtDropTable, Table: tableDefFrom(n.Tables[0])}, nil
	case *ast.InsertStmt:
		return parseInsert(n, lookup)
	case *ast.SelectStmt:
		return parseSelect(n, lookup)
	default:
		return nil, toucherr.Newf(toucherr.UnsupportedCommand, "unsupported statement %T", n)
	}
}

func tableDefFrom(n *ast.TableName) schema.TableDef {
	return schema.TableDef{Database: n.Schema.O, Table: n.Name.O}
}
