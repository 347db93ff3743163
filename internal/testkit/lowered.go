// Package testkit holds graph invariants shared by tests of the lowering
// packages.
package testkit

import (
	"errors"
	"fmt"
	"slices"

	"copyir/internal/ir"
	"copyir/internal/stub"
)

// CheckLowered verifies a graph after arraycopy.LowerAll:
//  1. the graph validates and no ArrayCopy node is left
//  2. every stub call targets a linked stub with its full argument list
//     and is skipped when the length is 0
//  3. every stub status is compared with 0 and complemented on the throw path
//  4. raw moves never kill every location
func CheckLowered(g *ir.Graph) error {
	if g == nil {
		return fmt.Errorf("nil graph")
	}
	var errs []error
	if err := ir.Validate(g); err != nil {
		errs = append(errs, err)
	}
	for _, id := range g.NodesOf(ir.NodeArrayCopy) {
		errs = append(errs, fmt.Errorf("node %d: arraycopy left after lowering", id))
	}
	for _, id := range g.NodesOf(ir.NodeForeignCall) {
		if err := checkCall(g, id); err != nil {
			errs = append(errs, err)
		}
	}
	for _, id := range g.NodesOf(ir.NodeMemMove) {
		if g.Node(id).Move.Location.IsAny() {
			errs = append(errs, fmt.Errorf("node %d: memmove kills any location", id))
		}
	}
	return errors.Join(errs...)
}

func checkCall(g *ir.Graph, id ir.NodeID) error {
	n := g.Node(id)
	link, ok := stub.Lookup(stub.Name(n.Call.Target))
	if !ok {
		return fmt.Errorf("node %d: call to unknown stub %q", id, n.Call.Target)
	}
	if got := len(n.ValueInputs()); got != len(link.Params) {
		return fmt.Errorf("node %d: %s called with %d arguments, want %d", id, link.Name, got, len(link.Params))
	}
	if n.Call.Kill != link.Kill {
		return fmt.Errorf("node %d: call kills %s, stub kills %s", id, n.Call.Kill, link.Kill)
	}

	if !skipsEmpty(g, id, n.ValueInputs()[4]) {
		return fmt.Errorf("node %d: %s is reachable with length 0", id, link.Name)
	}

	var sawTest, sawThrow bool
	for _, u := range g.Usages(id) {
		user := g.Node(u)
		if user.Kind != ir.NodeBinary {
			continue
		}
		other := otherOperand(user, id)
		c := g.Node(other)
		if c == nil || c.Kind != ir.NodeConst {
			return fmt.Errorf("node %d: status combined with non-constant %d", id, other)
		}
		switch user.Binary.Op {
		case ir.OpEq:
			if c.Const.Value != 0 || !usedBy(g, u, ir.NodeIf) {
				return fmt.Errorf("node %d: status test %d is not an If on status == 0", id, u)
			}
			sawTest = true
		case ir.OpXor:
			if c.Const.Value != -1 || !throwsArrayStore(g, u, n.Call.Origin) {
				return fmt.Errorf("node %d: status complement %d does not feed an ArrayStore throw", id, u)
			}
			sawThrow = true
		default:
			return fmt.Errorf("node %d: unexpected status use %s", id, user.Binary.Op)
		}
	}
	if !sawTest || !sawThrow {
		return fmt.Errorf("node %d: %s status is not decoded", id, link.Name)
	}
	return nil
}

func otherOperand(n *ir.Node, id ir.NodeID) ir.NodeID {
	for _, v := range n.ValueInputs() {
		if v != id {
			return v
		}
	}
	return ir.NoNodeID
}

func usedBy(g *ir.Graph, id ir.NodeID, kind ir.NodeKind) bool {
	for _, u := range g.Usages(id) {
		if g.Node(u).Kind == kind {
			return true
		}
	}
	return false
}

func throwsArrayStore(g *ir.Graph, id ir.NodeID, origin uint32) bool {
	for _, u := range g.Usages(id) {
		n := g.Node(u)
		if n.Kind == ir.NodeThrow && n.Throw.Kind == ir.ThrowArrayStore && n.Throw.Origin == origin {
			return true
		}
	}
	return false
}

// skipsEmpty reports whether call sits on the false branch of length == 0.
func skipsEmpty(g *ir.Graph, call, length ir.NodeID) bool {
	begin := g.Node(g.ControlInput(call))
	if begin == nil || begin.Kind != ir.NodeBegin || begin.Begin.Branch {
		return false
	}
	test := g.Node(g.ControlInput(begin.ID))
	if test == nil || test.Kind != ir.NodeIf {
		return false
	}
	cond := g.Node(test.ValueInputs()[0])
	if cond == nil || cond.Kind != ir.NodeBinary || cond.Binary.Op != ir.OpEq {
		return false
	}
	ops := cond.ValueInputs()
	if !slices.Contains(ops, length) {
		return false
	}
	c := g.Node(otherOperand(cond, length))
	return c != nil && c.Kind == ir.NodeConst && !c.Const.Null && c.Const.Value == 0
}
