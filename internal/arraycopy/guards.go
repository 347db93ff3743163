package arraycopy

import (
	"fmt"

	"copyir/internal/diag"
	"copyir/internal/ir"
	"copyir/internal/types"
)

// Site is a source-level copy of Length elements from Src[SrcPos:] to
// Dest[DestPos:]. Operands are value nodes of the builder's graph.
type Site struct {
	Origin  uint32
	Src     ir.NodeID
	SrcPos  ir.NodeID
	Dest    ir.NodeID
	DestPos ir.NodeID
	Length  ir.NodeID
	// NoAlias asserts that Src and Dest never refer to the same array.
	NoAlias bool
	Span    diag.Span
}

// Result describes what Build emitted for a site.
type Result struct {
	// Copy is the ArrayCopy node, NoNodeID when none was built.
	Copy     ir.NodeID
	Decision Decision
	// Elided is set for constant zero-length copies: guards only, no copy.
	Elided bool
	// Throws is set when a guard fails statically; the path ends in a Throw.
	Throws bool
}

// Build appends the guards and the copy node for site at the builder's
// insertion point. Copies that always fail are folded to a Throw and
// reported as warnings; constant zero-length copies emit no copy node.
func Build(b *ir.Builder, site Site, r diag.Reporter) (Result, error) {
	if r == nil {
		r = diag.NopReporter{}
	}
	g := b.Graph()
	if site.Origin == 0 {
		return Result{}, fmt.Errorf("copy site %q: origin must be non-zero", site.Span.Site)
	}
	span := site.Span
	span.Origin = site.Origin

	for _, op := range []struct {
		id   ir.NodeID
		name string
	}{{site.Src, "source"}, {site.Dest, "destination"}} {
		if isNullConst(g, op.id) {
			diag.ReportWarning(r, diag.LowAlwaysNull, span, fmt.Sprintf("%s array is always null", op.name)).Emit()
			b.Throw(ir.ThrowNullPointer, site.Origin, ir.NoNodeID)
			return Result{Throws: true}, b.Err()
		}
	}
	b.NullCheck(site.Src)
	b.NullCheck(site.Dest)

	for _, op := range []struct {
		id   ir.NodeID
		name string
	}{{site.SrcPos, "source offset"}, {site.DestPos, "destination offset"}, {site.Length, "length"}} {
		if v, ok := intConst(g, op.id); ok && v < 0 {
			diag.ReportWarning(r, diag.LowNegativeArgument, span, fmt.Sprintf("%s is always negative (%d)", op.name, v)).Emit()
			b.Throw(ir.ThrowIndexOutOfBounds, site.Origin, ir.NoNodeID)
			return Result{Throws: true}, b.Err()
		}
	}
	b.BoundsCheck(site.Src, site.SrcPos, site.Length)
	b.BoundsCheck(site.Dest, site.DestPos, site.Length)

	if v, ok := intConst(g, site.Length); ok && v == 0 {
		diag.ReportInfo(r, diag.LowZeroLength, span, "zero-length copy has no effect").Emit()
		return Result{Elided: true}, b.Err()
	}

	d := Select(g.Types, typeOf(g, site.Src), typeOf(g, site.Dest))
	d.Disjoint = disjoint(g, site)
	id := b.Append(ir.Node{
		Kind: ir.NodeArrayCopy,
		Type: resultType(g.Types, d.Variant),
		Copy: ir.CopyData{
			Variant:  d.Variant,
			Origin:   site.Origin,
			Elem:     d.Elem,
			Disjoint: d.Disjoint,
		},
	}, site.Src, site.SrcPos, site.Dest, site.DestPos, site.Length)
	if err := b.Err(); err != nil {
		return Result{}, err
	}
	return Result{Copy: id, Decision: d}, nil
}

// disjoint reports whether the source and destination ranges provably do
// not overlap.
func disjoint(g *ir.Graph, site Site) bool {
	if site.Src != site.Dest {
		return site.NoAlias
	}
	sp, ok1 := intConst(g, site.SrcPos)
	dp, ok2 := intConst(g, site.DestPos)
	n, ok3 := intConst(g, site.Length)
	if !ok1 || !ok2 || !ok3 {
		return false
	}
	// Negative constants never reach here, so the differences cannot overflow.
	if sp <= dp {
		return dp-sp >= n
	}
	return sp-dp >= n
}

func typeOf(g *ir.Graph, id ir.NodeID) types.TypeID {
	if n := g.Node(id); n != nil {
		return n.Type
	}
	return types.NoTypeID
}

func isNullConst(g *ir.Graph, id ir.NodeID) bool {
	n := g.Node(id)
	return n != nil && n.Kind == ir.NodeConst && n.Const.Null
}

func intConst(g *ir.Graph, id ir.NodeID) (int64, bool) {
	n := g.Node(id)
	if n == nil || n.Kind != ir.NodeConst || n.Const.Null {
		return 0, false
	}
	return n.Const.Value, true
}
