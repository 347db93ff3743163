package ir

import (
	"fmt"
	"slices"
)

// InvariantError reports a structural defect in a graph. It always indicates
// a compiler bug; compilation of the unit must stop.
type InvariantError struct {
	Graph string
	Node  NodeID
	Msg   string
}

func (e *InvariantError) Error() string {
	if e.Node == NoNodeID {
		return fmt.Sprintf("graph %s: %s", e.Graph, e.Msg)
	}
	return fmt.Sprintf("graph %s: n%d: %s", e.Graph, e.Node, e.Msg)
}

func (g *Graph) invariant(id NodeID, format string, args ...any) *InvariantError {
	return &InvariantError{Graph: g.Name, Node: id, Msg: fmt.Sprintf(format, args...)}
}

// Add appends a node and wires usage edges for each of its inputs. The node's
// ID, usages and liveness are assigned by the graph.
func (g *Graph) Add(n Node) (NodeID, error) {
	if n.Kind == NodeInvalid || int(n.Kind) >= len(kindInfo) {
		return NoNodeID, g.invariant(NoNodeID, "cannot add node of kind %v", n.Kind)
	}
	if n.Kind == NodeStart {
		return NoNodeID, g.invariant(NoNodeID, "graph already has a start node")
	}
	for i, in := range n.Inputs {
		p := g.Node(in.Node)
		if p == nil {
			return NoNodeID, g.invariant(NoNodeID, "%v input %d references missing node n%d", n.Kind, i, in.Node)
		}
		if !p.Kind.Allows(in.Type) {
			return NoNodeID, g.invariant(NoNodeID, "%v input %d: %v n%d cannot be used as %v", n.Kind, i, p.Kind, in.Node, in.Type)
		}
	}
	n.Inputs = slices.Clone(n.Inputs)
	return g.alloc(n), nil
}

// Replace substitutes repl for old: every usage edge of old is redirected to
// repl, old is detached from its own inputs and freed. Result types must match
// when old has value usages. All checks happen
// before the first mutation, so a failed Replace leaves the graph untouched
// and a successful one is never observable half-done.
func (g *Graph) Replace(old, repl NodeID) error {
	on := g.Node(old)
	if on == nil {
		return g.invariant(old, "replace: node is not live")
	}
	rn := g.Node(repl)
	if rn == nil {
		return g.invariant(repl, "replace: replacement is not live")
	}
	if old == repl {
		return g.invariant(old, "replace: node replaced by itself")
	}
	if on.Kind == NodeStart {
		return g.invariant(old, "replace: start node cannot be replaced")
	}
	if on.Type != rn.Type && g.hasValueUsage(old) {
		return g.invariant(old, "replace: result type differs from n%d", repl)
	}
	for _, in := range rn.Inputs {
		if in.Node == old {
			return g.invariant(repl, "replace: replacement consumes the node it replaces (n%d)", old)
		}
	}
	for _, u := range on.usages {
		un := g.Node(u)
		for _, in := range un.Inputs {
			if in.Node == old && !rn.Kind.Allows(in.Type) {
				return g.invariant(u, "replace: %v n%d cannot serve %v usage of n%d", rn.Kind, repl, in.Type, old)
			}
		}
	}

	users := on.usages
	for _, u := range dedupIDs(users) {
		un := &g.nodes[u-1]
		for i := range un.Inputs {
			if un.Inputs[i].Node == old {
				un.Inputs[i].Node = repl
				rn.usages = append(rn.usages, u)
			}
		}
	}
	g.detach(on)
	return nil
}

func (g *Graph) hasValueUsage(id NodeID) bool {
	n := g.Node(id)
	for _, u := range n.usages {
		for _, in := range g.nodes[u-1].Inputs {
			if in.Node == id && in.Type == InputValue {
				return true
			}
		}
	}
	return false
}

// ReplaceInput redirects one input slot of user to repl. The value operands of
// copy nodes are immutable; only their control and memory inputs may move.
func (g *Graph) ReplaceInput(user NodeID, slot int, repl NodeID) error {
	un := g.Node(user)
	if un == nil {
		return g.invariant(user, "replace input: node is not live")
	}
	if slot < 0 || slot >= len(un.Inputs) {
		return g.invariant(user, "replace input: slot %d out of range", slot)
	}
	in := un.Inputs[slot]
	if un.Kind == NodeArrayCopy && in.Type == InputValue {
		return g.invariant(user, "copy operands are immutable")
	}
	rn := g.Node(repl)
	if rn == nil {
		return g.invariant(repl, "replace input: replacement is not live")
	}
	if !rn.Kind.Allows(in.Type) {
		return g.invariant(user, "replace input: %v n%d cannot be used as %v", rn.Kind, repl, in.Type)
	}
	if in.Node == repl {
		return nil
	}
	g.dropUsage(in.Node, user)
	un.Inputs[slot].Node = repl
	rn.usages = append(rn.usages, user)
	return nil
}

// Mark is a position in a graph's node arena, taken before a multi-node
// rewrite so that a failed rewrite can be undone with Rollback.
type Mark int

// Mark returns the current end of the node arena.
func (g *Graph) Mark() Mark { return Mark(len(g.nodes)) }

// Rollback frees every live node added after m, newest first. It fails if a
// node older than m still uses one of them, in which case nothing is freed.
func (g *Graph) Rollback(m Mark) error {
	for i := int(m); i < len(g.nodes); i++ {
		n := &g.nodes[i]
		if n.dead {
			continue
		}
		for _, u := range n.usages {
			if int(u) <= int(m) {
				return g.invariant(n.ID, "rollback: still used by n%d", u)
			}
		}
	}
	for i := len(g.nodes) - 1; i >= int(m); i-- {
		if n := &g.nodes[i]; !n.dead {
			g.detach(n)
		}
	}
	return nil
}

// Remove frees a node that has no remaining usages.
func (g *Graph) Remove(id NodeID) error {
	n := g.Node(id)
	if n == nil {
		return g.invariant(id, "remove: node is not live")
	}
	if id == g.start {
		return g.invariant(id, "remove: start node cannot be removed")
	}
	if len(n.usages) > 0 {
		return g.invariant(id, "remove: node still has %d usages", len(n.usages))
	}
	g.detach(n)
	return nil
}

// detach unregisters n from its inputs and marks it dead.
func (g *Graph) detach(n *Node) {
	for _, in := range n.Inputs {
		g.dropUsage(in.Node, n.ID)
	}
	n.Inputs = nil
	n.usages = nil
	n.dead = true
	g.live--
}

// dropUsage removes one usage entry of user from producer.
func (g *Graph) dropUsage(producer, user NodeID) {
	p := g.Node(producer)
	if p == nil {
		return
	}
	if i := slices.Index(p.usages, user); i >= 0 {
		p.usages = slices.Delete(p.usages, i, i+1)
	}
}

func dedupIDs(ids []NodeID) []NodeID {
	out := make([]NodeID, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
