package sqlfront

import (
	"github.com/pingcap/tidb/parser/ast"
	driver "github.com/pingcap/tidb/parser/test_driver"

	"github.com/touchhouse/touchhouse/filter"
	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/toucherr"
	"github.com/touchhouse/touchhouse/value"
)

func colTypeOf(tableSchema *schema.TableSchema, name string) (value.Type, bool) {
	col, ok := tableSchema.Column(name)
	if !ok {
		return 0, false
	}
	return col.Type, true
}

func parseSelect(n *ast.SelectStmt, lookup TableLookup) (*Statement, error) {
	if n.From == nil {
		return nil, toucherr.New(toucherr.UnsupportedCommand, "SELECT without FROM is not supported")
	}
	tn, err := singleTableFrom(n.From)
	if err != nil {
		return nil, err
	}
	def := tableDefFrom(tn)

	tableSchema, ok := lookup.Schema(def)
	if !ok {
		return nil, toucherr.Newf(toucherr.TableNotFound, "table %s not found", def)
	}
	colType := func(name string) (value.Type, bool) { return colTypeOf(tableSchema, name) }

	var columns []string
	if n.Fields != nil {
		for _, f := range n.Fields.Fields {
			if f.WildCard != nil {
				columns = nil
				for _, c := range tableSchema.Columns {
					columns = append(columns, c.Name)
				}
				break
			}
			ce, ok := f.Expr.(*ast.ColumnNameExpr)
			if !ok {
				return nil, toucherr.New(toucherr.UnsupportedCommand, "only bare column projections are supported")
			}
			columns = append(columns, ce.Name.Name.O)
		}
	}

	var pred *filter.Predicate
	if n.Where != nil {
		p, err := exprToPredicate(n.Where, colType)
		if err != nil {
			return nil, err
		}
		pred = &p
	}

	var sortBy []string
	if n.OrderBy != nil {
		for _, item := range n.OrderBy.Items {
			if item.Desc {
				return nil, toucherr.New(toucherr.UnsupportedCommand, "ORDER BY DESC is not supported")
			}
			ce, ok := item.Expr.(*ast.ColumnNameExpr)
			if !ok {
				return nil, toucherr.New(toucherr.UnsupportedCommand, "ORDER BY requires a bare column")
			}
			sortBy = append(sortBy, ce.Name.Name.O)
		}
	}

	var limit *int
	offset := 0
	if n.Limit != nil {
		if n.Limit.Count != nil {
			ve, ok := n.Limit.Count.(*driver.ValueExpr)
			if !ok {
				return nil, toucherr.New(toucherr.InvalidLimitValue, "LIMIT requires a literal")
			}
			v := int(ve.Datum.GetInt64())
			limit = &v
		}
		if n.Limit.Offset != nil {
			ve, ok := n.Limit.Offset.(*driver.ValueExpr)
			if !ok {
				return nil, toucherr.New(toucherr.InvalidLimitValue, "OFFSET requires a literal")
			}
			offset = int(ve.Datum.GetInt64())
		}
	}

	return &Statement{
		Kind:  StmtSelect,
		Table: def,
		Select: SelectPlan{
			Columns: columns,
			Filter:  pred,
			SortBy:  sortBy,
			Limit:   limit,
			Offset:  offset,
		},
	}, nil
}
