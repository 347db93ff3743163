package ir

import (
	"copyir/internal/types"
)

// Builder appends nodes to a graph at a control/memory insertion point.
// Errors are sticky: after the first failure every method returns NoNodeID
// and Err reports the cause.
type Builder struct {
	g    *Graph
	ctrl NodeID
	mem  NodeID
	err  error
	safe map[NodeID]bool
}

// NewBuilder positions a builder right after the graph's start node.
func NewBuilder(g *Graph) *Builder {
	return NewBuilderAt(g, g.Start(), g.Start())
}

// NewBuilderAt positions a builder after ctrl with mem as the current memory
// state.
func NewBuilderAt(g *Graph, ctrl, mem NodeID) *Builder {
	return &Builder{g: g, ctrl: ctrl, mem: mem, safe: make(map[NodeID]bool)}
}

// Graph returns the graph being built.
func (b *Builder) Graph() *Graph { return b.g }

// Err returns the first error encountered.
func (b *Builder) Err() error { return b.err }

// Control returns the current control tail (NoNodeID once the path ended).
func (b *Builder) Control() NodeID { return b.ctrl }

// Memory returns the last memory kill on this path.
func (b *Builder) Memory() NodeID { return b.mem }

// Terminated reports whether the path ended in a Throw or Return.
func (b *Builder) Terminated() bool { return b.ctrl == NoNodeID }

func (b *Builder) add(n Node) NodeID {
	if b.err != nil {
		return NoNodeID
	}
	id, err := b.g.Add(n)
	if err != nil {
		b.err = err
		return NoNodeID
	}
	return id
}

// Param adds an incoming argument.
func (b *Builder) Param(index int, name string, typ types.TypeID, nonNull bool) NodeID {
	return b.add(Node{Kind: NodeParam, Type: typ, Param: ParamData{Index: index, Name: name, NonNull: nonNull}})
}

// Const adds an int constant.
func (b *Builder) Const(v int64) NodeID {
	return b.add(Node{Kind: NodeConst, Type: b.g.Types.Builtins().Int, Const: ConstData{Value: v}})
}

// Null adds a null constant of a reference type.
func (b *Builder) Null(typ types.TypeID) NodeID {
	return b.add(Node{Kind: NodeConst, Type: typ, Const: ConstData{Null: true}})
}

// Binary adds a pure operation. Comparisons produce boolean values.
func (b *Builder) Binary(op BinaryOp, x, y NodeID) NodeID {
	typ := b.g.Types.Builtins().Int
	if op == OpEq || op == OpLt {
		typ = b.g.Types.Builtins().Bool
	}
	return b.add(Node{
		Kind:   NodeBinary,
		Type:   typ,
		Binary: BinaryData{Op: op},
		Inputs: valueInputs(x, y),
	})
}

// Append links a fixed node after the current control tail. Control and, for
// memory nodes, memory inputs are prepended to values.
func (b *Builder) Append(n Node, values ...NodeID) NodeID {
	if b.err != nil {
		return NoNodeID
	}
	if b.Terminated() {
		b.err = b.g.invariant(NoNodeID, "append %v after the path ended", n.Kind)
		return NoNodeID
	}
	info := n.Kind.Info()
	inputs := make([]Input, 0, len(values)+2)
	inputs = append(inputs, Input{Type: InputControl, Node: b.ctrl})
	if info.Memory {
		inputs = append(inputs, Input{Type: InputMemory, Node: b.mem})
	}
	inputs = append(inputs, valueInputs(values...)...)
	n.Inputs = inputs
	id := b.add(n)
	if id == NoNodeID {
		return id
	}
	switch n.Kind {
	case NodeThrow, NodeReturn:
		b.ctrl = NoNodeID
	default:
		b.ctrl = id
	}
	if !b.g.KilledLocation(id).IsNone() {
		b.mem = id
	}
	return id
}

// NullCheck guards v against null unless that is already proven.
func (b *Builder) NullCheck(v NodeID) NodeID {
	if b.NonNull(v) {
		return NoNodeID
	}
	id := b.Append(Node{Kind: NodeNullCheck}, v)
	if id != NoNodeID {
		b.safe[v] = true
	}
	return id
}

// NonNull reports whether v is known to be non-null on this path.
func (b *Builder) NonNull(v NodeID) bool {
	if b.safe[v] {
		return true
	}
	n := b.g.Node(v)
	return n != nil && n.Kind == NodeParam && n.Param.NonNull
}

// BoundsCheck guards pos >= 0, length >= 0 and pos+length <= len(array).
func (b *Builder) BoundsCheck(array, pos, length NodeID) NodeID {
	return b.Append(Node{Kind: NodeBoundsCheck}, array, pos, length)
}

// Load reads array[index] from loc.
func (b *Builder) Load(typ types.TypeID, loc LocationIdentity, array, index NodeID) NodeID {
	return b.Append(Node{Kind: NodeLoad, Type: typ, Mem: MemData{Location: loc}}, array, index)
}

// Store writes value to array[index] in loc.
func (b *Builder) Store(loc LocationIdentity, array, index, value NodeID) NodeID {
	return b.Append(Node{Kind: NodeStore, Mem: MemData{Location: loc}}, array, index, value)
}

// If ends the current path with a branch on cond and returns builders for the
// true and false outcomes.
func (b *Builder) If(cond NodeID) (then, els *Builder) {
	ifn := b.Append(Node{Kind: NodeIf}, cond)
	t := b.add(Node{Kind: NodeBegin, Begin: BeginData{Branch: true}, Inputs: []Input{{Type: InputControl, Node: ifn}}})
	f := b.add(Node{Kind: NodeBegin, Begin: BeginData{Branch: false}, Inputs: []Input{{Type: InputControl, Node: ifn}}})
	then = b.fork(t)
	els = b.fork(f)
	b.ctrl = NoNodeID
	return then, els
}

func (b *Builder) fork(ctrl NodeID) *Builder {
	nb := NewBuilderAt(b.g, ctrl, b.mem)
	nb.err = b.err
	for k, v := range b.safe {
		nb.safe[k] = v
	}
	return nb
}

// Merge joins this path with the path ending at other and continues below
// the join. mem becomes the memory state after the join; it must be ordered
// after every kill on both paths. Null-check facts do not survive the join.
func (b *Builder) Merge(other, mem NodeID) NodeID {
	if b.err != nil {
		return NoNodeID
	}
	if b.Terminated() || other == NoNodeID {
		b.err = b.g.invariant(NoNodeID, "merge with an ended path")
		return NoNodeID
	}
	id := b.add(Node{Kind: NodeMerge, Inputs: []Input{
		{Type: InputControl, Node: b.ctrl},
		{Type: InputControl, Node: other},
	}})
	if id == NoNodeID {
		return id
	}
	b.ctrl = id
	b.mem = mem
	clear(b.safe)
	return id
}

// Throw ends the path with a runtime error; value carries the error detail
// (e.g. the copied element count) and may be NoNodeID.
func (b *Builder) Throw(kind ThrowKind, origin uint32, value NodeID) NodeID {
	n := Node{Kind: NodeThrow, Throw: ThrowData{Kind: kind, Origin: origin}}
	if value == NoNodeID {
		return b.Append(n)
	}
	return b.Append(n, value)
}

// Return ends the path normally.
func (b *Builder) Return() NodeID {
	return b.Append(Node{Kind: NodeReturn})
}

func valueInputs(ids ...NodeID) []Input {
	out := make([]Input, len(ids))
	for i, id := range ids {
		out[i] = Input{Type: InputValue, Node: id}
	}
	return out
}
