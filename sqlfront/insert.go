package sqlfront

import (
	"github.com/pingcap/tidb/parser/ast"

	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/toucherr"
	"github.com/touchhouse/touchhouse/value"
)

func parseInsert(n *ast.InsertStmt, lookup TableLookup) (*Statement, error) {
	tn, err := singleTableFrom(n.Table)
	if err != nil {
		return nil, err
	}
	def := tableDefFrom(tn)

	tableSchema, ok := lookup.Schema(def)
	if !ok {
		return nil, toucherr.Newf(toucherr.TableNotFound, "table %s not found", def)
	}

	names := make([]string, len(n.Columns))
	for i, c := range n.Columns {
		names[i] = c.Name.O
	}
	if len(names) == 0 {
		names = make([]string, len(tableSchema.Columns))
		for i, c := range tableSchema.Columns {
			names[i] = c.Name
		}
	}

	targetTypes := make([]value.Type, len(names))
	for i, name := range names {
		col, ok := tableSchema.Column(name)
		if !ok {
			return nil, toucherr.Newf(toucherr.ColumnNotFound, "insert references unknown column %q", name)
		}
		targetTypes[i] = col.Type
	}

	rows := make([][]value.Value, len(n.Lists))
	for r, list := range n.Lists {
		if len(list) != len(names) {
			return nil, toucherr.New(toucherr.InvalidColumnsSpecified, "insert row has wrong number of values")
		}
		row := make([]value.Value, len(list))
		for i, expr := range list {
			v, err := literalToValue(expr, targetTypes[i])
			if err != nil {
				return nil, err
			}
			row[i] = v
		}
		rows[r] = row
	}

	return &Statement{
		Kind:          StmtInsert,
		Table:         def,
		InsertColumns: names,
		InsertValues:  rows,
	}, nil
}

// ColumnsToParts converts the row-major InsertValues of a StmtInsert
// statement into column-major schema.Column values ready for
// part.Build, filling any column omitted from InsertColumns with its
// declared default (or Null).
func ColumnsToParts(stmt *Statement, tableSchema *schema.TableSchema) ([]schema.Column, error) {
	if stmt.Kind != StmtInsert {
		return nil, toucherr.New(toucherr.UnsupportedCommand, "ColumnsToParts requires an INSERT statement")
	}
	present := make(map[string]int, len(stmt.InsertColumns))
	for i, name := range stmt.InsertColumns {
		present[name] = i
	}

	out := make([]schema.Column, len(tableSchema.Columns))
	for ci, def := range tableSchema.Columns {
		data := make([]value.Value, len(stmt.InsertValues))
		srcIdx, ok := present[def.Name]
		for r, row := range stmt.InsertValues {
			switch {
			case ok:
				data[r] = row[srcIdx]
			case def.Constraints.Default != nil:
				data[r] = *def.Constraints.Default
			case def.Constraints.Nullable:
				data[r] = value.Null()
			default:
				return nil, toucherr.Newf(toucherr.InvalidSource, "column %q missing and has no default", def.Name)
			}
		}
		out[ci] = schema.Column{Def: def, Data: data}
	}
	return out, nil
}

func singleTableFrom(refs *ast.TableRefsClause) (*ast.TableName, error) {
	if refs == nil || refs.TableRefs == nil {
		return nil, toucherr.New(toucherr.InvalidSource, "missing table reference")
	}
	src, ok := refs.TableRefs.Left.(*ast.TableSource)
	if !ok {
		return nil, toucherr.New(toucherr.UnsupportedCommand, "only single-table statements are supported")
	}
	tn, ok := src.Source.(*ast.TableName)
	if !ok {
		return nil, toucherr.New(toucherr.UnsupportedCommand, "only plain table references are supported")
	}
	return tn, nil
}
