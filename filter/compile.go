package filter

import (
	"github.com/touchhouse/touchhouse/schema"
	"github.com/touchhouse/touchhouse/toucherr"
	"github.com/touchhouse/touchhouse/value"
)

// Predicate is the uncompiled predicate shape a SQL front end builds:
// binary/unary operators over column identifiers and literals. It is
// the input to Compile, which lowers it to a CompiledFilter.
type Predicate struct {
	Kind Kind // reuses the CompiledFilter tag set

	ColumnName      string
	Op              Op
	Literal         value.Value
	RightColumnName string

	Children []Predicate
	Child     *Predicate
	ConstBool bool
}

// Compile lowers a Predicate into a CompiledFilter, resolving column
// names to indices against cols and folding constant subtrees (spec.md
// §5(b)): an And/Or with a Const child simplifies, and a double Not
// cancels.
func Compile(p Predicate, cols []schema.ColumnDef) (*CompiledFilter, error) {
	idx := func(name string) (int, error) {
		for i, c := range cols {
			if c.Name == name {
				return i, nil
			}
		}
		return 0, toucherr.Newf(toucherr.ColumnNotFound, "column %q not found", name)
	}

	switch p.Kind {
	case KindConst:
		return constBool(p.ConstBool), nil
	case KindCompare:
		i, err := idx(p.ColumnName)
		if err != nil {
			return nil, err
		}
		return compare(i, p.Op, p.Literal), nil
	case KindCompareColumns:
		l, err := idx(p.ColumnName)
		if err != nil {
			return nil, err
		}
		r, err := idx(p.RightColumnName)
		if err != nil {
			return nil, err
		}
		return compareColumns(l, p.Op, r), nil
	case KindColumn:
		i, err := idx(p.ColumnName)
		if err != nil {
			return nil, err
		}
		return column(i), nil
	case KindAnd:
		children, err := compileChildren(p.Children, cols)
		if err != nil {
			return nil, err
		}
		return foldAnd(children), nil
	case KindOr:
		children, err := compileChildren(p.Children, cols)
		if err != nil {
			return nil, err
		}
		return foldOr(children), nil
	case KindNot:
		child, err := Compile(*p.Child, cols)
		if err != nil {
			return nil, err
		}
		return foldNot(child), nil
	default:
		return nil, toucherr.New(toucherr.Internal, "unknown predicate kind")
	}
}

func compileChildren(ps []Predicate, cols []schema.ColumnDef) ([]*CompiledFilter, error) {
	out := make([]*CompiledFilter, 0, len(ps))
	for _, c := range ps {
		cf, err := Compile(c, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, cf)
	}
	return out, nil
}

// foldAnd drops constant-true children and short-circuits to Const(false)
// if any child is constant-false.
func foldAnd(children []*CompiledFilter) *CompiledFilter {
	kept := children[:0:0]
	for _, c := range children {
		if c.Kind == KindConst {
			if !c.Const {
				return constBool(false)
			}
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return constBool(true)
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return and(kept...)
}

// foldOr drops constant-false children and short-circuits to Const(true)
// if any child is constant-true.
func foldOr(children []*CompiledFilter) *CompiledFilter {
	kept := children[:0:0]
	for _, c := range children {
		if c.Kind == KindConst {
			if c.Const {
				return constBool(true)
			}
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return constBool(false)
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return or(kept...)
}

// foldNot cancels a double negation and collapses Not(Const(b)).
func foldNot(child *CompiledFilter) *CompiledFilter {
	switch child.Kind {
	case KindConst:
		return constBool(!child.Const)
	case KindNot:
		return child.Child
	default:
		return not(child)
	}
}

// Prunable reports whether every column f references is a member of
// primaryKey — the precondition spec.md §5(c) requires before
// PruneGranules can be used instead of a full scan.
func Prunable(f *CompiledFilter, cols []schema.ColumnDef, primaryKey []schema.ColumnDef) bool {
	pk := make(map[string]bool, len(primaryKey))
	for _, c := range primaryKey {
		pk[c.Name] = true
	}
	var ok = true
	var walk func(*CompiledFilter)
	walk = func(n *CompiledFilter) {
		if n == nil || !ok {
			return
		}
		switch n.Kind {
		case KindCompare:
			if n.ColIdx >= len(cols) || !pk[cols[n.ColIdx].Name] {
				ok = false
			}
		case KindCompareColumns, KindColumn:
			ok = false
		case KindAnd, KindOr:
			for _, c := range n.Children {
				walk(c)
			}
		case KindNot:
			walk(n.Child)
		}
	}
	walk(f)
	return ok
}
