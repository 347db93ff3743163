package ir

import (
	"errors"
)

// Validate checks graph invariants and returns every violation found, joined.
// Any error returned here is fatal for the unit.
func Validate(g *Graph) error {
	if g == nil {
		return nil
	}
	var errs []error

	// 1. Edges point at live nodes of an allowed kind, usages mirror inputs
	if err := validateEdges(g); err != nil {
		errs = append(errs, err)
	}

	// 2. Fixed nodes are linked into the control chain
	if err := validateControl(g); err != nil {
		errs = append(errs, err)
	}

	// 3. Copy-family nodes have the expected operand shape
	if err := validateCopies(g); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateEdges(g *Graph) error {
	var errs []error
	for _, id := range g.Live() {
		n := g.Node(id)
		for i, in := range n.Inputs {
			p := g.Node(in.Node)
			if p == nil {
				errs = append(errs, g.invariant(id, "input %d references dead or foreign node n%d", i, in.Node))
				continue
			}
			if !p.Kind.Allows(in.Type) {
				errs = append(errs, g.invariant(id, "input %d uses %v n%d as %v", i, p.Kind, in.Node, in.Type))
			}
			if countID(p.usages, id) != countInputs(n, in.Node) {
				errs = append(errs, g.invariant(in.Node, "usage list out of sync with inputs of n%d", id))
			}
		}
		for _, u := range n.usages {
			un := g.Node(u)
			if un == nil {
				errs = append(errs, g.invariant(id, "usage n%d is dead", u))
				continue
			}
			if countInputs(un, id) == 0 {
				errs = append(errs, g.invariant(id, "usage n%d does not consume this node", u))
			}
		}
	}
	return errors.Join(errs...)
}

func validateControl(g *Graph) error {
	var errs []error
	for _, id := range g.Live() {
		n := g.Node(id)
		info := n.Kind.Info()
		switch {
		case n.Kind == NodeStart:
		case info.Fixed:
			if g.ControlInput(id) == NoNodeID {
				errs = append(errs, g.invariant(id, "fixed %v has no control predecessor", n.Kind))
			}
		default:
			for _, in := range n.Inputs {
				if in.Type != InputValue {
					errs = append(errs, g.invariant(id, "floating %v has a %v input", n.Kind, in.Type))
				}
			}
		}
		preds := len(g.controlInputs(id))
		switch {
		case n.Kind == NodeMerge && preds != 2:
			errs = append(errs, g.invariant(id, "merge has %d control inputs, want 2", preds))
		case n.Kind != NodeMerge && preds > 1:
			errs = append(errs, g.invariant(id, "%v has %d control inputs", n.Kind, preds))
		}
		if info.Memory && g.MemoryInput(id) == NoNodeID {
			errs = append(errs, g.invariant(id, "%v has no memory input", n.Kind))
		}
		succ := g.ControlSuccessors(id)
		switch n.Kind {
		case NodeIf:
			if len(succ) != 2 {
				errs = append(errs, g.invariant(id, "if has %d successors, want 2", len(succ)))
				break
			}
			a, b := g.Node(succ[0]), g.Node(succ[1])
			if a.Kind != NodeBegin || b.Kind != NodeBegin || a.Begin.Branch == b.Begin.Branch {
				errs = append(errs, g.invariant(id, "if successors must be one true and one false begin"))
			}
		case NodeThrow, NodeReturn:
			if len(succ) != 0 {
				errs = append(errs, g.invariant(id, "%v has control successors", n.Kind))
			}
		default:
			if len(succ) > 1 {
				errs = append(errs, g.invariant(id, "%v has %d control successors", n.Kind, len(succ)))
			}
		}
	}
	return errors.Join(errs...)
}

func validateCopies(g *Graph) error {
	var errs []error
	origins := make(map[uint32]NodeID)
	for _, id := range g.Live() {
		n := g.Node(id)
		switch n.Kind {
		case NodeArrayCopy, NodeMemMove, NodeForeignCall:
			if ops := n.ValueInputs(); len(ops) != 5 {
				errs = append(errs, g.invariant(id, "%v has %d operands, want 5", n.Kind, len(ops)))
			}
		}
		if n.Kind != NodeArrayCopy {
			continue
		}
		if n.Copy.Variant != CopySpecialized && !g.KilledLocation(id).IsAny() {
			errs = append(errs, g.invariant(id, "%s copy must kill any", n.Copy.Variant))
		}
		if prev, ok := origins[n.Copy.Origin]; ok {
			errs = append(errs, g.invariant(id, "copy origin %d already represented by n%d", n.Copy.Origin, prev))
			continue
		}
		origins[n.Copy.Origin] = id
	}
	return errors.Join(errs...)
}

func countID(ids []NodeID, id NodeID) int {
	c := 0
	for _, x := range ids {
		if x == id {
			c++
		}
	}
	return c
}

func countInputs(n *Node, id NodeID) int {
	c := 0
	for _, in := range n.Inputs {
		if in.Node == id {
			c++
		}
	}
	return c
}
