package sqlfront

import (
	"github.com/pingcap/tidb/parser/ast"
	"github.com/pingcap/tidb/parser/opcode"
	driver "github.com/pingcap/tidb/parser/test_driver"

	"github.com/touchhouse/touchhouse/filter"
	"github.com/touchhouse/touchhouse/toucherr"
	"github.com/touchhouse/touchhouse/value"
)

// literalToValue converts a parsed SQL literal expression to a Value of
// the given target type, the logical-plan half of the original's
// TryFrom<(SQLValue, &ValueType)> conversion (see DESIGN.md's value ledger
// entry).
func literalToValue(expr ast.ExprNode, target value.Type) (value.Value, error) {
	negate := false
	if u, ok := expr.(*ast.UnaryOperationExpr); ok && u.Op == opcode.Minus {
		expr = u.V
		negate = true
	}

	ve, ok := expr.(*driver.ValueExpr)
	if !ok {
		return value.Value{}, toucherr.New(toucherr.InvalidSource, "expected a literal value")
	}
	if ve.Datum.IsNull() {
		return value.Null(), nil
	}

	switch target {
	case value.TypeString:
		return value.String(ve.Datum.GetString()), nil
	case value.TypeBool:
		return value.Bool(ve.Datum.GetInt64() != 0), nil
	case value.TypeUuid:
		id, err := value.ParseUuid(ve.Datum.GetString())
		if err != nil {
			return value.Value{}, toucherr.Newf(toucherr.InvalidSource, "invalid uuid literal: %v", err)
		}
		return value.Uuid(id), nil
	case value.TypeInt8, value.TypeInt16, value.TypeInt32, value.TypeInt64:
		n := ve.Datum.GetInt64()
		if negate {
			n = -n
		}
		switch target {
		case value.TypeInt8:
			return value.Int8(int8(n)), nil
		case value.TypeInt16:
			return value.Int16(int16(n)), nil
		case value.TypeInt32:
			return value.Int32(int32(n)), nil
		default:
			return value.Int64(n), nil
		}
	case value.TypeUInt8, value.TypeUInt16, value.TypeUInt32, value.TypeUInt64:
		if negate {
			return value.Value{}, toucherr.New(toucherr.InvalidSource, "negative literal for unsigned column")
		}
		n := ve.Datum.GetUint64()
		switch target {
		case value.TypeUInt8:
			return value.UInt8(uint8(n)), nil
		case value.TypeUInt16:
			return value.UInt16(uint16(n)), nil
		case value.TypeUInt32:
			return value.UInt32(uint32(n)), nil
		default:
			return value.UInt64(n), nil
		}
	default:
		return value.Value{}, toucherr.Newf(toucherr.InvalidSource, "unsupported literal target type %v", target)
	}
}

// exprToPredicate lowers a WHERE clause into a filter.Predicate tree.
// Only the comparison/boolean shapes spec.md §5 names are supported
// (=, !=, <, <=, >, >=, AND, OR, NOT); anything else is UnsupportedFilter.
func exprToPredicate(expr ast.ExprNode, colType func(name string) (value.Type, bool)) (filter.Predicate, error) {
	switch n := expr.(type) {
	case *ast.BinaryOperationExpr:
		switch n.Op {
		case opcode.LogicAnd, opcode.LogicOr:
			l, err := exprToPredicate(n.L, colType)
			if err != nil {
				return filter.Predicate{}, err
			}
			r, err := exprToPredicate(n.R, colType)
			if err != nil {
				return filter.Predicate{}, err
			}
			kind := filter.KindAnd
			if n.Op == opcode.LogicOr {
				kind = filter.KindOr
			}
			return filter.Predicate{Kind: kind, Children: []filter.Predicate{l, r}}, nil
		case opcode.EQ, opcode.NE, opcode.LT, opcode.LE, opcode.GT, opcode.GE:
			return compareToPredicate(n, colType)
		default:
			return filter.Predicate{}, toucherr.Newf(toucherr.UnsupportedFilter, "unsupported operator %v", n.Op)
		}
	case *ast.UnaryOperationExpr:
		if n.Op != opcode.Not {
			return filter.Predicate{}, toucherr.Newf(toucherr.UnsupportedFilter, "unsupported unary operator %v", n.Op)
		}
		child, err := exprToPredicate(n.V, colType)
		if err != nil {
			return filter.Predicate{}, err
		}
		return filter.Predicate{Kind: filter.KindNot, Child: &child}, nil
	case *ast.ParenthesesExpr:
		return exprToPredicate(n.Expr, colType)
	default:
		return filter.Predicate{}, toucherr.Newf(toucherr.UnsupportedFilter, "unsupported WHERE expression %T", n)
	}
}

func compareToPredicate(n *ast.BinaryOperationExpr, colType func(name string) (value.Type, bool)) (filter.Predicate, error) {
	op := compareOp(n.Op)

	lCol, lIsCol := n.L.(*ast.ColumnNameExpr)
	rCol, rIsCol := n.R.(*ast.ColumnNameExpr)

	switch {
	case lIsCol && !rIsCol:
		name := lCol.Name.Name.O
		typ, ok := colType(name)
		if !ok {
			return filter.Predicate{}, toucherr.Newf(toucherr.ColumnNotFound, "unknown column %q", name)
		}
		lit, err := literalToValue(n.R, typ)
		if err != nil {
			return filter.Predicate{}, err
		}
		return filter.Predicate{Kind: filter.KindCompare, ColumnName: name, Op: op, Literal: lit}, nil
	case rIsCol && !lIsCol:
		name := rCol.Name.Name.O
		typ, ok := colType(name)
		if !ok {
			return filter.Predicate{}, toucherr.Newf(toucherr.ColumnNotFound, "unknown column %q", name)
		}
		lit, err := literalToValue(n.L, typ)
		if err != nil {
			return filter.Predicate{}, err
		}
		return filter.Predicate{Kind: filter.KindCompare, ColumnName: name, Op: mirrorOp(op), Literal: lit}, nil
	case lIsCol && rIsCol:
		return filter.Predicate{
			Kind:            filter.KindCompareColumns,
			ColumnName:      lCol.Name.Name.O,
			Op:              op,
			RightColumnName: rCol.Name.Name.O,
		}, nil
	default:
		return filter.Predicate{}, toucherr.New(toucherr.UnsupportedFilter, "comparison requires at least one column reference")
	}
}

func compareOp(op opcode.Op) filter.Op {
	switch op {
	case opcode.EQ:
		return filter.OpEq
	case opcode.NE:
		return filter.OpNe
	case opcode.LT:
		return filter.OpLt
	case opcode.LE:
		return filter.OpLe
	case opcode.GT:
		return filter.OpGt
	default:
		return filter.OpGe
	}
}

// mirrorOp flips an operator for the `literal OP column` case, rewritten
// as `column OP' literal`.
func mirrorOp(op filter.Op) filter.Op {
	switch op {
	case filter.OpLt:
		return filter.OpGt
	case filter.OpLe:
		return filter.OpGe
	case filter.OpGt:
		return filter.OpLt
	case filter.OpGe:
		return filter.OpLe
	default:
		return op
	}
}
