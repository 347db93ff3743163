package ir

import (
	"fmt"

	"copyir/internal/types"
)

// NodeID addresses a node inside its graph's arena (1-based).
type NodeID uint32

// NoNodeID marks the absence of a node.
const NoNodeID NodeID = 0

// InputType classifies an edge from a consumer to a producer.
type InputType uint8

const (
	// InputValue consumes the producer's result.
	InputValue InputType = iota
	// InputMemory orders the consumer after the producer's memory effect.
	InputMemory
	// InputControl makes the producer the consumer's control predecessor.
	InputControl
)

func (t InputType) String() string {
	switch t {
	case InputValue:
		return "value"
	case InputMemory:
		return "memory"
	case InputControl:
		return "control"
	default:
		return fmt.Sprintf("InputType(%d)", t)
	}
}

// Input is a typed edge to a producer node.
type Input struct {
	Type InputType
	Node NodeID
}

// NodeKind enumerates node kinds in the graph.
type NodeKind uint8

const (
	NodeInvalid NodeKind = iota
	// NodeStart is the graph entry and the initial memory state.
	NodeStart
	// NodeParam is an incoming argument.
	NodeParam
	// NodeConst is an integer or null constant.
	NodeConst
	// NodeBinary is a pure two-operand operation.
	NodeBinary
	// NodeBegin starts one outcome of an If.
	NodeBegin
	// NodeIf branches on a boolean value.
	NodeIf
	// NodeMerge joins two control paths; it has two control inputs.
	NodeMerge
	// NodeNullCheck raises a null-pointer error if its operand is null.
	NodeNullCheck
	// NodeBoundsCheck validates (array, pos, length) against the array length.
	NodeBoundsCheck
	// NodeLoad reads an array element.
	NodeLoad
	// NodeStore writes an array element.
	NodeStore
	// NodeArrayCopy is a source-level bulk array copy (see CopyVariant).
	NodeArrayCopy
	// NodeMemMove is a raw, check-free bulk element move.
	NodeMemMove
	// NodeForeignCall calls a pre-linked runtime stub.
	NodeForeignCall
	// NodeThrow raises a runtime error and ends its control path.
	NodeThrow
	// NodeReturn ends the graph normally.
	NodeReturn
)

func (k NodeKind) String() string {
	switch k {
	case NodeStart:
		return "Start"
	case NodeParam:
		return "Param"
	case NodeConst:
		return "Const"
	case NodeBinary:
		return "Binary"
	case NodeBegin:
		return "Begin"
	case NodeIf:
		return "If"
	case NodeMerge:
		return "Merge"
	case NodeNullCheck:
		return "NullCheck"
	case NodeBoundsCheck:
		return "BoundsCheck"
	case NodeLoad:
		return "Load"
	case NodeStore:
		return "Store"
	case NodeArrayCopy:
		return "ArrayCopy"
	case NodeMemMove:
		return "MemMove"
	case NodeForeignCall:
		return "ForeignCall"
	case NodeThrow:
		return "Throw"
	case NodeReturn:
		return "Return"
	default:
		return "Invalid"
	}
}

// Cost is a rough estimate used by KindInfo; CostUnknown means the node's
// expense depends on runtime data (e.g. the number of copied elements).
type Cost int8

const CostUnknown Cost = -1

// KindInfo is the static metadata shared by all nodes of a kind.
type KindInfo struct {
	// Fixed nodes are anchored in the control chain.
	Fixed bool
	// Memory nodes carry a memory input in slot SlotMemory.
	Memory bool
	// Allowed lists the edge types consumers may use to reference the node.
	Allowed []InputType
	Cycles  Cost
	Size    Cost
}

var (
	valueOnly      = []InputType{InputValue}
	controlOnly    = []InputType{InputControl}
	controlMemory  = []InputType{InputControl, InputMemory}
	valueCtlMemory = []InputType{InputValue, InputControl, InputMemory}
)

var kindInfo = [...]KindInfo{
	NodeInvalid:     {},
	NodeStart:       {Fixed: true, Allowed: controlMemory, Cycles: 0, Size: 0},
	NodeParam:       {Allowed: valueOnly, Cycles: 0, Size: 0},
	NodeConst:       {Allowed: valueOnly, Cycles: 0, Size: 1},
	NodeBinary:      {Allowed: valueOnly, Cycles: 1, Size: 1},
	NodeBegin:       {Fixed: true, Allowed: controlOnly, Cycles: 0, Size: 0},
	NodeIf:          {Fixed: true, Allowed: controlOnly, Cycles: 2, Size: 2},
	NodeMerge:       {Fixed: true, Allowed: controlOnly, Cycles: 0, Size: 0},
	NodeNullCheck:   {Fixed: true, Allowed: controlOnly, Cycles: 2, Size: 2},
	NodeBoundsCheck: {Fixed: true, Allowed: controlOnly, Cycles: 4, Size: 8},
	NodeLoad:        {Fixed: true, Memory: true, Allowed: valueCtlMemory, Cycles: 2, Size: 1},
	NodeStore:       {Fixed: true, Memory: true, Allowed: controlMemory, Cycles: 2, Size: 1},
	NodeArrayCopy:   {Fixed: true, Memory: true, Allowed: valueCtlMemory, Cycles: CostUnknown, Size: CostUnknown},
	NodeMemMove:     {Fixed: true, Memory: true, Allowed: controlMemory, Cycles: CostUnknown, Size: CostUnknown},
	NodeForeignCall: {Fixed: true, Memory: true, Allowed: valueCtlMemory, Cycles: CostUnknown, Size: 4},
	NodeThrow:       {Fixed: true, Allowed: nil, Cycles: CostUnknown, Size: 4},
	NodeReturn:      {Fixed: true, Memory: true, Allowed: nil, Cycles: 1, Size: 1},
}

// Info returns static metadata for the kind.
func (k NodeKind) Info() KindInfo {
	if int(k) >= len(kindInfo) {
		return KindInfo{}
	}
	return kindInfo[k]
}

// Allows reports whether consumers may reference a node of this kind through t.
func (k NodeKind) Allows(t InputType) bool {
	for _, a := range k.Info().Allowed {
		if a == t {
			return true
		}
	}
	return false
}

// Fixed input slots.
const (
	// SlotControl holds the control predecessor of every fixed node but Start.
	SlotControl = 0
	// SlotMemory holds the memory input of memory nodes.
	SlotMemory = 1
)

// BinaryOp enumerates pure binary operations.
type BinaryOp uint8

const (
	OpEq BinaryOp = iota
	OpLt
	OpAdd
	OpXor
)

func (op BinaryOp) String() string {
	switch op {
	case OpEq:
		return "eq"
	case OpLt:
		return "lt"
	case OpAdd:
		return "add"
	case OpXor:
		return "xor"
	default:
		return fmt.Sprintf("BinaryOp(%d)", op)
	}
}

// CopyVariant is the closed set of array-copy node variants.
type CopyVariant uint8

const (
	// CopyGeneric copies between arrays whose element types are unknown; its
	// result is the stub status.
	CopyGeneric CopyVariant = iota
	// CopyChecked copies reference arrays with a per-element store check.
	CopyChecked
	// CopySpecialized copies with statically proven element compatibility.
	CopySpecialized
)

func (v CopyVariant) String() string {
	switch v {
	case CopyGeneric:
		return "generic"
	case CopyChecked:
		return "checked"
	case CopySpecialized:
		return "specialized"
	default:
		return fmt.Sprintf("CopyVariant(%d)", v)
	}
}

// ThrowKind enumerates runtime errors raised by Throw nodes.
type ThrowKind uint8

const (
	ThrowNullPointer ThrowKind = iota
	ThrowIndexOutOfBounds
	ThrowArrayStore
)

func (k ThrowKind) String() string {
	switch k {
	case ThrowNullPointer:
		return "null_pointer"
	case ThrowIndexOutOfBounds:
		return "index_out_of_bounds"
	case ThrowArrayStore:
		return "array_store"
	default:
		return fmt.Sprintf("ThrowKind(%d)", k)
	}
}

// ConstData is the payload of NodeConst.
type ConstData struct {
	Value int64
	Null  bool
}

// ParamData is the payload of NodeParam.
type ParamData struct {
	Index   int
	Name    string
	NonNull bool
}

// BinaryData is the payload of NodeBinary.
type BinaryData struct {
	Op BinaryOp
}

// BeginData is the payload of NodeBegin.
type BeginData struct {
	// Branch is the If outcome this block starts.
	Branch bool
}

// MemData is the payload of NodeLoad and NodeStore.
type MemData struct {
	Location LocationIdentity
}

// CopyData is the payload of NodeArrayCopy.
type CopyData struct {
	Variant CopyVariant
	// Origin identifies the source-level copy this node represents.
	Origin uint32
	// Elem is the proven element type (NoTypeID for CopyGeneric).
	Elem     types.TypeID
	Disjoint bool
}

// MoveData is the payload of NodeMemMove.
type MoveData struct {
	Origin   uint32
	Elem     types.TypeID
	ElemSize int
	Disjoint bool
	Location LocationIdentity
}

// CallData is the payload of NodeForeignCall.
type CallData struct {
	Target string
	Kill   LocationIdentity
	Origin uint32
}

// ThrowData is the payload of NodeThrow.
type ThrowData struct {
	Kind   ThrowKind
	Origin uint32
}

// Node is one operation in a graph. Nodes are owned by their graph and must
// only be mutated through Graph methods; pointers returned by Graph.Node are
// read-only views.
type Node struct {
	ID     NodeID
	Kind   NodeKind
	Type   types.TypeID
	Inputs []Input

	Const  ConstData
	Param  ParamData
	Binary BinaryData
	Begin  BeginData
	Mem    MemData
	Copy   CopyData
	Move   MoveData
	Call   CallData
	Throw  ThrowData

	usages []NodeID
	dead   bool
}

// ValueInputs returns the node's value operands in order.
func (n *Node) ValueInputs() []NodeID {
	if n == nil {
		return nil
	}
	out := make([]NodeID, 0, len(n.Inputs))
	for _, in := range n.Inputs {
		if in.Type == InputValue {
			out = append(out, in.Node)
		}
	}
	return out
}

// IsCopy reports whether the node is a source-level copy operation.
func (n *Node) IsCopy() bool {
	return n != nil && n.Kind == NodeArrayCopy
}
