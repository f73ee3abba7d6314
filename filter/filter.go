// Package filter compiles a predicate over column names into a small
// tagged evaluator tree, and uses that tree to prune a part's granules
// via its sparse marks before any data is decompressed.
//
// Grounded on spec.md §5(b)-(c): CompiledFilter mirrors the predicate
// shapes spec.md names directly (Compare/CompareColumns/And/Or/Not/
// Column/Const), and granule pruning follows the partition_point-based
// ranges spec.md §5(c) spells out for each comparison operator.
package filter

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/touchhouse/touchhouse/toucherr"
	"github.com/touchhouse/touchhouse/value"
)

// Op is a comparison operator over two comparable values.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

// Kind tags the variant of a CompiledFilter node.
type Kind int

const (
	KindCompare Kind = iota
	KindCompareColumns
	KindAnd
	KindOr
	KindNot
	KindColumn
	KindConst
)

// CompiledFilter is the evaluator tree a predicate AST lowers to. Only
// the fields relevant to Kind are populated.
type CompiledFilter struct {
	Kind Kind

	// KindCompare
	ColIdx int
	Op     Op
	Value  value.Value

	// KindCompareColumns
	LeftIdx  int
	RightIdx int

	// KindAnd / KindOr
	Children []*CompiledFilter

	// KindNot
	Child *CompiledFilter

	// KindColumn
	BoolColIdx int

	// KindConst
	Const bool
}

func compare(colIdx int, op Op, v value.Value) *CompiledFilter {
	return &CompiledFilter{Kind: KindCompare, ColIdx: colIdx, Op: op, Value: v}
}

func compareColumns(left int, op Op, right int) *CompiledFilter {
	return &CompiledFilter{Kind: KindCompareColumns, LeftIdx: left, Op: op, RightIdx: right}
}

func and(children ...*CompiledFilter) *CompiledFilter {
	return &CompiledFilter{Kind: KindAnd, Children: children}
}

func or(children ...*CompiledFilter) *CompiledFilter {
	return &CompiledFilter{Kind: KindOr, Children: children}
}

func not(child *CompiledFilter) *CompiledFilter {
	return &CompiledFilter{Kind: KindNot, Child: child}
}

func column(idx int) *CompiledFilter {
	return &CompiledFilter{Kind: KindColumn, BoolColIdx: idx}
}

func constBool(b bool) *CompiledFilter {
	return &CompiledFilter{Kind: KindConst, Const: b}
}

// ReferencedColumns collects every column index this filter tree reads,
// deduplicated, for the "plan the read" union in spec.md §5(a).
func (f *CompiledFilter) ReferencedColumns() []int {
	seen := map[int]bool{}
	var walk func(*CompiledFilter)
	walk = func(n *CompiledFilter) {
		if n == nil {
			return
		}
		switch n.Kind {
		case KindCompare:
			seen[n.ColIdx] = true
		case KindCompareColumns:
			seen[n.LeftIdx] = true
			seen[n.RightIdx] = true
		case KindColumn:
			seen[n.BoolColIdx] = true
		case KindAnd, KindOr:
			for _, c := range n.Children {
				walk(c)
			}
		case KindNot:
			walk(n.Child)
		}
	}
	walk(f)
	out := make([]int, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	return out
}

// EvalRow evaluates f against one row's archived values, keyed by
// column index. A column the part has no data for must be supplied as
// an archived Null (scanChunk does this); a zero Archived is not
// accepted.
func EvalRow(f *CompiledFilter, row []value.Archived) (bool, error) {
	switch f.Kind {
	case KindConst:
		return f.Const, nil
	case KindCompare:
		a := row[f.ColIdx]
		cmp, ok := a.CompareToOwned(f.Value)
		return evalOp(f.Op, cmp, ok)
	case KindCompareColumns:
		l, r := row[f.LeftIdx], row[f.RightIdx]
		cmp, ok := l.CompareTo(r)
		return evalOp(f.Op, cmp, ok)
	case KindColumn:
		a := row[f.BoolColIdx]
		if a.IsNull() {
			return true, nil
		}
		return a.Type() != value.TypeBool || a.AsBool(), nil
	case KindAnd:
		for _, c := range f.Children {
			ok, err := EvalRow(c, row)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case KindOr:
		for _, c := range f.Children {
			ok, err := EvalRow(c, row)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case KindNot:
		ok, err := EvalRow(f.Child, row)
		if err != nil {
			return false, err
		}
		return !ok, nil
	default:
		return false, toucherr.New(toucherr.Internal, "unknown compiled filter kind")
	}
}

func evalOp(op Op, cmp int, ok bool) (bool, error) {
	if !ok {
		// Cross-type comparisons never match (spec.md's strict typing —
		// see value.Value.CompareTo); != is the exception since the
		// values are, definitionally, not equal.
		return op == OpNe, nil
	}
	switch op {
	case OpEq:
		return cmp == 0, nil
	case OpNe:
		return cmp != 0, nil
	case OpLt:
		return cmp < 0, nil
	case OpLe:
		return cmp <= 0, nil
	case OpGt:
		return cmp > 0, nil
	case OpGe:
		return cmp >= 0, nil
	default:
		return false, toucherr.New(toucherr.Internal, "unknown comparison operator")
	}
}

// PruneGranules returns the set of granule indices that might contain a
// matching row, given the sorted per-granule mark values for every
// primary-key column (marks[colIdx][g] is the PK column's value at
// granule g's first row). total is the part's granule count.
//
// A filter is only usable for pruning if every column it references is
// a primary-key column (checked by the caller via Prunable). A Compare
// whose column has no entry in marks does not prune: every granule is
// kept for it.
func PruneGranules(f *CompiledFilter, marks map[int][]value.Value, total int) *roaring.Bitmap {
	switch f.Kind {
	case KindConst:
		out := roaring.New()
		if f.Const {
			out.AddRange(0, uint64(total))
		}
		return out
	case KindCompare:
		return pruneCompare(f, marks[f.ColIdx], total)
	case KindAnd:
		out := roaring.New()
		out.AddRange(0, uint64(total))
		for _, c := range f.Children {
			out.And(PruneGranules(c, marks, total))
		}
		return out
	case KindOr:
		out := roaring.New()
		for _, c := range f.Children {
			out.Or(PruneGranules(c, marks, total))
		}
		return out
	case KindNot:
		out := roaring.New()
		out.AddRange(0, uint64(total))
		out.AndNot(PruneGranules(f.Child, marks, total))
		return out
	default:
		// Column(idx) and CompareColumns aren't expressible against a
		// single PK's sorted mark sequence; the caller's prunable check
		// should have already excluded these, but fall back to "scan
		// everything" defensively.
		out := roaring.New()
		out.AddRange(0, uint64(total))
		return out
	}
}

// pruneCompare implements the per-operator partition_point ranges from
// spec.md §5(c).
func pruneCompare(f *CompiledFilter, marks []value.Value, total int) *roaring.Bitmap {
	out := roaring.New()
	if marks == nil {
		out.AddRange(0, uint64(total))
		return out
	}

	ltV := partitionPoint(marks, func(x value.Value) bool { cmp, ok := x.CompareTo(f.Value); return ok && cmp < 0 })
	leV := partitionPoint(marks, func(x value.Value) bool { cmp, ok := x.CompareTo(f.Value); return ok && cmp <= 0 })

	saturatingSub1 := func(n int) int {
		if n == 0 {
			return 0
		}
		return n - 1
	}

	switch f.Op {
	case OpEq:
		addRange(out, saturatingSub1(ltV), leV)
	case OpLt:
		addRange(out, 0, ltV)
	case OpLe:
		addRange(out, 0, leV)
	case OpGt:
		addRange(out, saturatingSub1(leV), total)
	case OpGe:
		addRange(out, saturatingSub1(ltV), total)
	case OpNe:
		out.AddRange(0, uint64(total))
	}
	return out
}

func addRange(b *roaring.Bitmap, lo, hi int) {
	if hi <= lo {
		return
	}
	b.AddRange(uint64(lo), uint64(hi))
}

// partitionPoint returns the first index in a sorted sequence (per pred,
// monotonically true-then-false) where pred no longer holds, matching
// the semantics spec.md's partition_point calls expect.
func partitionPoint(xs []value.Value, pred func(value.Value) bool) int {
	lo, hi := 0, len(xs)
	for lo < hi {
		mid := (lo + hi) / 2
		if pred(xs[mid]) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
