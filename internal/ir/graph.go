package ir

import (
	"fmt"
	"slices"

	"fortio.org/safecast"

	"copyir/internal/types"
)

// Graph is an arena of nodes for one compilation unit. A graph is owned by
// exactly one goroutine for its whole lifetime and is not safe for concurrent
// use.
type Graph struct {
	Name  string
	Types *types.Interner

	nodes []Node
	start NodeID
	live  int
}

// NewGraph creates a graph containing only its Start node.
func NewGraph(name string, typesIn *types.Interner) *Graph {
	g := &Graph{
		Name:  name,
		Types: typesIn,
		nodes: make([]Node, 0, 32),
	}
	g.start = g.alloc(Node{Kind: NodeStart})
	return g
}

// Start returns the entry node.
func (g *Graph) Start() NodeID { return g.start }

// Node returns a read-only view of a live node, or nil.
func (g *Graph) Node(id NodeID) *Node {
	if g == nil || id == NoNodeID || int(id) > len(g.nodes) {
		return nil
	}
	n := &g.nodes[id-1]
	if n.dead {
		return nil
	}
	return n
}

// IsLive reports whether id refers to a live node of g.
func (g *Graph) IsLive(id NodeID) bool {
	return g.Node(id) != nil
}

// Len returns the number of live nodes.
func (g *Graph) Len() int { return g.live }

// Live returns IDs of all live nodes in allocation order.
func (g *Graph) Live() []NodeID {
	out := make([]NodeID, 0, g.live)
	for i := range g.nodes {
		if !g.nodes[i].dead {
			out = append(out, g.nodes[i].ID)
		}
	}
	return out
}

// NodesOf returns live nodes of the given kind in allocation order.
func (g *Graph) NodesOf(kind NodeKind) []NodeID {
	var out []NodeID
	for i := range g.nodes {
		if !g.nodes[i].dead && g.nodes[i].Kind == kind {
			out = append(out, g.nodes[i].ID)
		}
	}
	return out
}

// Usages returns the consumers of id, one entry per input edge.
func (g *Graph) Usages(id NodeID) []NodeID {
	n := g.Node(id)
	if n == nil {
		return nil
	}
	out := make([]NodeID, len(n.usages))
	copy(out, n.usages)
	return out
}

// Input returns the producer in the given input slot of id.
func (g *Graph) Input(id NodeID, slot int) NodeID {
	n := g.Node(id)
	if n == nil || slot < 0 || slot >= len(n.Inputs) {
		return NoNodeID
	}
	return n.Inputs[slot].Node
}

// ControlInput returns the control predecessor of a fixed node.
func (g *Graph) ControlInput(id NodeID) NodeID {
	n := g.Node(id)
	if n == nil || len(n.Inputs) == 0 || n.Inputs[SlotControl].Type != InputControl {
		return NoNodeID
	}
	return n.Inputs[SlotControl].Node
}

// MemoryInput returns the memory input of a memory node.
func (g *Graph) MemoryInput(id NodeID) NodeID {
	n := g.Node(id)
	if n == nil || len(n.Inputs) <= SlotMemory || n.Inputs[SlotMemory].Type != InputMemory {
		return NoNodeID
	}
	return n.Inputs[SlotMemory].Node
}

// ControlSuccessors returns fixed nodes that take id as a control input.
func (g *Graph) ControlSuccessors(id NodeID) []NodeID {
	n := g.Node(id)
	if n == nil {
		return nil
	}
	var out []NodeID
	for _, u := range n.usages {
		if slices.Contains(out, u) {
			continue
		}
		for _, in := range g.nodes[u-1].Inputs {
			if in.Type == InputControl && in.Node == id {
				out = append(out, u)
				break
			}
		}
	}
	return out
}

// controlInputs returns every control predecessor of id; only Merge has more
// than one.
func (g *Graph) controlInputs(id NodeID) []NodeID {
	n := g.Node(id)
	if n == nil {
		return nil
	}
	var out []NodeID
	for _, in := range n.Inputs {
		if in.Type == InputControl {
			out = append(out, in.Node)
		}
	}
	return out
}

func (g *Graph) alloc(n Node) NodeID {
	next, err := safecast.Conv[uint32](len(g.nodes) + 1)
	if err != nil {
		panic(fmt.Errorf("graph %s: node count overflow: %w", g.Name, err))
	}
	n.ID = NodeID(next)
	n.usages = nil
	n.dead = false
	g.nodes = append(g.nodes, n)
	g.live++
	for _, in := range n.Inputs {
		p := &g.nodes[in.Node-1]
		p.usages = append(p.usages, n.ID)
	}
	return n.ID
}
