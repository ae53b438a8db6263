package layout

// Cond is a predicate over a Layout's (canvas vs target) size comparison,
// used by Step's SkipIf/SkipUnless to conditionally short-circuit a
// sequence of steps.
type Cond struct {
	kind condKind
	pair [2]Ordering // used by condIs/condNot
	ord  Ordering    // used by the single-axis variants
}

type condKind int

const (
	condIs condKind = iota
	condNot
	condWidthIs
	condHeightIs
	condBoth
	condWidthNot
	condHeightNot
	condNeither
	condEither
	condLarger2D
	condSmaller2D
	condLarger1DSmaller1D
	condEqual
	condDiffers2D
	condTrue
)

func CondIs(w, h Ordering) Cond     { return Cond{kind: condIs, pair: [2]Ordering{w, h}} }
func CondNot(w, h Ordering) Cond    { return Cond{kind: condNot, pair: [2]Ordering{w, h}} }
func CondWidthIs(o Ordering) Cond   { return Cond{kind: condWidthIs, ord: o} }
func CondHeightIs(o Ordering) Cond  { return Cond{kind: condHeightIs, ord: o} }
func CondBoth(o Ordering) Cond      { return Cond{kind: condBoth, ord: o} }
func CondWidthNot(o Ordering) Cond  { return Cond{kind: condWidthNot, ord: o} }
func CondHeightNot(o Ordering) Cond { return Cond{kind: condHeightNot, ord: o} }
func CondNeither(o Ordering) Cond   { return Cond{kind: condNeither, ord: o} }
func CondEither(o Ordering) Cond    { return Cond{kind: condEither, ord: o} }
func CondLarger2D() Cond            { return Cond{kind: condLarger2D} }
func CondSmaller2D() Cond           { return Cond{kind: condSmaller2D} }
func CondLarger1DSmaller1D() Cond   { return Cond{kind: condLarger1DSmaller1D} }
func CondEqual() Cond               { return Cond{kind: condEqual} }
func CondDiffers2D() Cond           { return Cond{kind: condDiffers2D} }
func CondTrue() Cond                { return Cond{kind: condTrue} }

// Matches evaluates the condition against a (width, height) comparison
// pair, as produced by AspectRatio.CmpSize.
func (c Cond) Matches(cmp [2]Ordering) bool {
	switch c.kind {
	case condIs:
		return c.pair == cmp
	case condNot:
		return c.pair != cmp
	case condLarger2D:
		return CondBoth(OrderingGreater).Matches(cmp)
	case condSmaller2D:
		return CondBoth(OrderingLess).Matches(cmp)
	case condEqual:
		return CondBoth(OrderingEqual).Matches(cmp)
	case condTrue:
		return true
	case condLarger1DSmaller1D:
		return cmp == [2]Ordering{OrderingGreater, OrderingLess} || cmp == [2]Ordering{OrderingLess, OrderingGreater}
	case condDiffers2D:
		return CondNeither(OrderingEqual).Matches(cmp)
	case condWidthIs:
		return cmp[0] == c.ord
	case condWidthNot:
		return cmp[0] != c.ord
	case condHeightIs:
		return cmp[1] == c.ord
	case condHeightNot:
		return cmp[1] != c.ord
	case condBoth:
		return cmp[0] == c.ord && cmp[1] == c.ord
	case condNeither:
		return cmp[0] != c.ord && cmp[1] != c.ord
	case condEither:
		return cmp[0] == c.ord || cmp[1] == c.ord
	default:
		return false
	}
}
