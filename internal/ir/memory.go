package ir

import (
	"errors"
	"maps"
)

// KilledLocation returns the single location a node may invalidate.
// Conservative over-declaration is always safe; generic and checked copies
// declare Any because the stub's write set is not statically known.
func (g *Graph) KilledLocation(id NodeID) LocationIdentity {
	n := g.Node(id)
	if n == nil {
		return NoLocation()
	}
	switch n.Kind {
	case NodeStart:
		return Any()
	case NodeStore:
		return n.Mem.Location
	case NodeArrayCopy:
		if n.Copy.Variant == CopySpecialized {
			return ArrayLocation(g.Types, n.Copy.Elem)
		}
		return Any()
	case NodeMemMove:
		return n.Move.Location
	case NodeForeignCall:
		return n.Call.Kill
	}
	return NoLocation()
}

// ReadLocation returns the location a node observes.
func (g *Graph) ReadLocation(id NodeID) LocationIdentity {
	n := g.Node(id)
	if n == nil {
		return NoLocation()
	}
	switch n.Kind {
	case NodeLoad:
		return n.Mem.Location
	case NodeArrayCopy, NodeMemMove, NodeForeignCall:
		return g.KilledLocation(id)
	case NodeReturn:
		return Any()
	}
	return NoLocation()
}

// IsMemoryNode reports whether id reads or kills any location.
func (g *Graph) IsMemoryNode(id NodeID) bool {
	return !g.KilledLocation(id).IsNone() || !g.ReadLocation(id).IsNone()
}

// MayReorder reports whether the memory effects of a and b commute: neither
// kills a location the other reads or kills.
func (g *Graph) MayReorder(a, b NodeID) bool {
	ka, ra := g.KilledLocation(a), g.ReadLocation(a)
	kb, rb := g.KilledLocation(b), g.ReadLocation(b)
	return !Overlaps(ka, kb) && !Overlaps(ka, rb) && !Overlaps(ra, kb)
}

// Ordered reports whether one of a, b depends on the other through control or
// memory edges, which pins their relative order in both directions.
func (g *Graph) Ordered(a, b NodeID) bool {
	if a == b {
		return true
	}
	return g.dependsOn(a, b) || g.dependsOn(b, a)
}

// dependsOn walks control and memory inputs backwards from from.
func (g *Graph) dependsOn(from, target NodeID) bool {
	seen := make(map[NodeID]struct{}, 16)
	stack := []NodeID{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := g.Node(cur)
		if n == nil {
			continue
		}
		for _, in := range n.Inputs {
			if in.Type == InputValue {
				continue
			}
			if in.Node == target {
				return true
			}
			if _, ok := seen[in.Node]; ok {
				continue
			}
			seen[in.Node] = struct{}{}
			stack = append(stack, in.Node)
		}
	}
	return false
}

// ValidateMemoryOrder checks that every pair of live nodes with conflicting
// memory effects is ordered. Pairs on mutually exclusive branches are not
// compared.
func ValidateMemoryOrder(g *Graph) error {
	var mem []NodeID
	for _, id := range g.Live() {
		if g.IsMemoryNode(id) {
			mem = append(mem, id)
		}
	}
	var errs []error
	for i := range mem {
		for j := i + 1; j < len(mem); j++ {
			a, b := mem[i], mem[j]
			if g.MayReorder(a, b) || g.Ordered(a, b) {
				continue
			}
			if g.exclusivePaths(a, b) {
				continue
			}
			errs = append(errs, g.invariant(a, "memory effect %s is unordered with n%d (%s)",
				g.KilledLocation(a), b, g.KilledLocation(b)))
		}
	}
	return errors.Join(errs...)
}

// exclusivePaths reports whether a and b sit below different outcomes of the
// same If, so they can never both execute.
func (g *Graph) exclusivePaths(a, b NodeID) bool {
	ba := g.branchPath(a)
	bb := g.branchPath(b)
	for ifn, outcome := range ba {
		if other, ok := bb[ifn]; ok && other != outcome {
			return true
		}
	}
	return false
}

// branchPath maps each If dominating id to the outcome taken to reach it.
func (g *Graph) branchPath(id NodeID) map[NodeID]bool {
	out := make(map[NodeID]bool)
	for cur := id; cur != NoNodeID; {
		n := g.Node(cur)
		if n == nil {
			break
		}
		switch n.Kind {
		case NodeBegin:
			out[g.ControlInput(cur)] = n.Begin.Branch
		case NodeMerge:
			// Below a join only outcomes shared by every joined path hold.
			preds := g.controlInputs(cur)
			if len(preds) == 0 {
				return out
			}
			common := g.branchPath(preds[0])
			for _, p := range preds[1:] {
				other := g.branchPath(p)
				for ifn, outcome := range common {
					if o, ok := other[ifn]; !ok || o != outcome {
						delete(common, ifn)
					}
				}
			}
			maps.Copy(out, common)
			return out
		}
		cur = g.ControlInput(cur)
	}
	return out
}
