package unit

import (
	"fmt"
	"slices"

	"copyir/internal/arraycopy"
	"copyir/internal/diag"
	"copyir/internal/ir"
)

// SiteGraph is the graph of a single copy site. Params lists the declared
// value bound to each Param index.
type SiteGraph struct {
	Copy   CopyDecl
	Graph  *ir.Graph
	Params []string
	Result arraycopy.Result
}

// Build emits one graph per copy site in origin order. Static findings go to
// r; the error is reserved for malformed graphs.
func (p *Program) Build(r diag.Reporter) ([]*SiteGraph, error) {
	copies := slices.Clone(p.File.Copies)
	slices.SortFunc(copies, func(a, b CopyDecl) int { return int(a.Origin) - int(b.Origin) })
	out := make([]*SiteGraph, 0, len(copies))
	for _, cp := range copies {
		sg, err := p.BuildSite(cp, r)
		if err != nil {
			return out, err
		}
		out = append(out, sg)
	}
	return out, nil
}

// BuildSite emits the graph for one copy site: the operands, the guards, the
// copy node and a Return.
func (p *Program) BuildSite(cp CopyDecl, r diag.Reporter) (*SiteGraph, error) {
	g := ir.NewGraph(fmt.Sprintf("%s#%d", p.File.Name, cp.Origin), p.Types)
	b := ir.NewBuilder(g)
	sb := &siteBuilder{p: p, b: b, bound: make(map[string]ir.NodeID)}

	site := arraycopy.Site{
		Origin:  cp.Origin,
		Src:     sb.arrayOperand(cp.Src),
		SrcPos:  sb.intOperand(cp.SrcPos),
		Dest:    sb.arrayOperand(cp.Dest),
		DestPos: sb.intOperand(cp.DestPos),
		Length:  sb.intOperand(cp.Length),
		NoAlias: cp.NoAlias,
		Span:    diag.Span{File: p.File.Path, Site: p.File.Name},
	}
	if sb.err != nil {
		return nil, sb.err
	}
	res, err := arraycopy.Build(b, site, r)
	if err != nil {
		return nil, err
	}
	if !b.Terminated() {
		b.Return()
	}
	if err := b.Err(); err != nil {
		return nil, err
	}
	return &SiteGraph{Copy: cp, Graph: g, Params: sb.params, Result: res}, nil
}

type siteBuilder struct {
	p      *Program
	b      *ir.Builder
	bound  map[string]ir.NodeID
	params []string
	err    error
}

func (sb *siteBuilder) arrayOperand(op Operand) ir.NodeID {
	if op.IsNull() {
		return sb.b.Null(sb.p.Types.Builtins().Object)
	}
	if id, ok := sb.bound[op.Name]; ok {
		return id
	}
	a, ok := sb.p.arrays[op.Name]
	if !ok {
		sb.fail("undeclared array %s", op)
		return ir.NoNodeID
	}
	return sb.param(op.Name, func(idx int) ir.NodeID {
		return sb.b.Param(idx, op.Name, a.Static, a.Decl.NonNull)
	})
}

func (sb *siteBuilder) intOperand(op Operand) ir.NodeID {
	switch {
	case !op.Set:
		return sb.b.Const(0)
	case op.IsConst():
		return sb.b.Const(op.Const)
	}
	if id, ok := sb.bound[op.Name]; ok {
		return id
	}
	if _, ok := sb.p.ints[op.Name]; !ok {
		sb.fail("undeclared int %s", op)
		return ir.NoNodeID
	}
	return sb.param(op.Name, func(idx int) ir.NodeID {
		return sb.b.Param(idx, op.Name, sb.p.Types.Builtins().Int, false)
	})
}

func (sb *siteBuilder) param(name string, mk func(int) ir.NodeID) ir.NodeID {
	id := mk(len(sb.params))
	sb.params = append(sb.params, name)
	sb.bound[name] = id
	return id
}

func (sb *siteBuilder) fail(format string, args ...any) {
	if sb.err == nil {
		sb.err = fmt.Errorf(format, args...)
	}
}
