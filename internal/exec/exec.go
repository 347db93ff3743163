// Package exec runs lowered (or unlowered) graphs against the reference heap
// of package rt. It is the harness that makes copy lowering observable: the
// stub status flows through the decode nodes built by arraycopy and comes out
// as the error the compiled code would raise.
package exec

import (
	"context"
	"fmt"

	"fortio.org/safecast"

	"copyir/internal/ir"
	"copyir/internal/rt"
	"copyir/internal/stub"
	"copyir/internal/trace"
)

// Call records one stub invocation.
type Call struct {
	Target string
	Origin uint32
	Status int32
}

// Result summarises one run.
type Result struct {
	Steps int
	Calls []Call
	Moves int
}

// Machine executes one graph. A Machine is single-use and not safe for
// concurrent use.
type Machine struct {
	g      *ir.Graph
	heap   *rt.Heap
	args   []rt.Value
	values map[ir.NodeID]rt.Value
	tracer trace.Tracer
	parent uint64
	res    Result
}

// Run executes g from its Start node with the given arguments, indexed by
// Param.Index. It returns the error raised by a Throw node (or by a broken
// stub precondition) and nil when the graph reaches Return.
func Run(ctx context.Context, g *ir.Graph, heap *rt.Heap, args []rt.Value) (Result, error) {
	m := &Machine{
		g:      g,
		heap:   heap,
		args:   args,
		values: make(map[ir.NodeID]rt.Value, g.Len()),
		tracer: trace.FromContext(ctx),
		parent: trace.CurrentSpan(ctx).SpanID,
	}
	err := m.run(ctx)
	return m.res, err
}

func (m *Machine) run(ctx context.Context) error {
	cur := m.g.Start()
	for {
		if m.res.Steps%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		m.res.Steps++

		done, err := m.step(cur)
		if err != nil || done {
			return err
		}
		next, err := m.next(cur)
		if err != nil {
			return err
		}
		cur = next
	}
}

// next picks the control successor of cur; If nodes choose by condition.
func (m *Machine) next(cur ir.NodeID) (ir.NodeID, error) {
	n := m.g.Node(cur)
	succ := m.g.ControlSuccessors(cur)
	if n.Kind == ir.NodeIf {
		cond, err := m.eval(n.ValueInputs()[0])
		if err != nil {
			return ir.NoNodeID, err
		}
		taken := cond.Int != 0
		for _, s := range succ {
			if m.g.Node(s).Begin.Branch == taken {
				return s, nil
			}
		}
		return ir.NoNodeID, m.fail(cur, "if has no %t branch", taken)
	}
	if len(succ) != 1 {
		return ir.NoNodeID, m.fail(cur, "%v has %d control successors", n.Kind, len(succ))
	}
	return succ[0], nil
}

// step executes one fixed node and reports whether execution ended.
func (m *Machine) step(id ir.NodeID) (bool, error) {
	n := m.g.Node(id)
	ops := n.ValueInputs()
	switch n.Kind {
	case ir.NodeStart, ir.NodeBegin, ir.NodeIf, ir.NodeMerge:
		return false, nil

	case ir.NodeReturn:
		return true, nil

	case ir.NodeNullCheck:
		v, err := m.eval(ops[0])
		if err != nil {
			return false, err
		}
		if v.IsNull() {
			return true, &rt.RuntimeError{Code: rt.ErrNullPointer, Message: "null array reference"}
		}
		return false, nil

	case ir.NodeBoundsCheck:
		return false, m.boundsCheck(ops)

	case ir.NodeLoad:
		vals, err := m.evalAll(ops)
		if err != nil {
			return false, err
		}
		v, err := m.heap.Load(vals[0], vals[1].Int)
		if err != nil {
			return true, err
		}
		m.values[id] = v
		return false, nil

	case ir.NodeStore:
		vals, err := m.evalAll(ops)
		if err != nil {
			return false, err
		}
		return false, m.heap.Store(vals[0], vals[1].Int, vals[2])

	case ir.NodeMemMove:
		src, srcPos, dest, destPos, length, err := m.copyArgs(ops)
		if err != nil {
			return false, err
		}
		m.res.Moves++
		return false, m.heap.MemMove(src, srcPos, dest, destPos, length)

	case ir.NodeArrayCopy:
		return false, m.execCopy(id, n)

	case ir.NodeForeignCall:
		return false, m.call(id, stub.Name(n.Call.Target), n.Call.Origin, ops)

	case ir.NodeThrow:
		return true, m.throw(n)
	}
	return true, m.fail(id, "cannot execute %v", n.Kind)
}

// execCopy runs a copy node that was never lowered, with the semantics its
// lowering would have.
func (m *Machine) execCopy(id ir.NodeID, n *ir.Node) error {
	ops := n.ValueInputs()
	if len(ops) != 5 {
		return m.fail(id, "copy has %d operands, want 5", len(ops))
	}
	if n.Copy.Variant == ir.CopySpecialized {
		src, srcPos, dest, destPos, length, err := m.copyArgs(ops)
		if err != nil {
			return err
		}
		m.res.Moves++
		return m.heap.MemMove(src, srcPos, dest, destPos, length)
	}
	length, err := m.eval(ops[4])
	if err != nil {
		return err
	}
	if length.Int == 0 {
		return nil
	}
	link, ok := stub.ForVariant(n.Copy.Variant)
	if !ok {
		return m.fail(id, "no stub for %s copy", n.Copy.Variant)
	}
	if err := m.call(id, link.Name, n.Copy.Origin, ops); err != nil {
		return err
	}
	status := m.values[id]
	return rt.StatusError(int32(status.Int), n.Copy.Origin)
}

func (m *Machine) call(id ir.NodeID, target stub.Name, origin uint32, ops []ir.NodeID) error {
	fn, ok := rt.LookupStub(target)
	if !ok {
		return m.fail(id, "unknown stub %q", target)
	}
	src, srcPos, dest, destPos, length, err := m.copyArgs(ops)
	if err != nil {
		return err
	}
	status, err := fn(m.heap, src, srcPos, dest, destPos, length)
	if err != nil {
		return err
	}
	m.values[id] = rt.MakeInt(int64(status))
	m.res.Calls = append(m.res.Calls, Call{Target: target.String(), Origin: origin, Status: status})
	trace.Point(m.tracer, trace.ScopeNode, "stub:"+target.String(),
		fmt.Sprintf("copy #%d status=%d", origin, status), m.parent)
	return nil
}

func (m *Machine) throw(n *ir.Node) error {
	origin := n.Throw.Origin
	switch n.Throw.Kind {
	case ir.ThrowNullPointer:
		return &rt.RuntimeError{Code: rt.ErrNullPointer, Message: "null array reference", Origin: origin}
	case ir.ThrowIndexOutOfBounds:
		return &rt.RuntimeError{Code: rt.ErrIndexOutOfBounds, Message: "negative offset or length", Origin: origin}
	case ir.ThrowArrayStore:
		copied := 0
		if ops := n.ValueInputs(); len(ops) > 0 {
			v, err := m.eval(ops[0])
			if err != nil {
				return err
			}
			copied = int(v.Int)
		}
		return &rt.ArrayStoreError{Copied: copied, Index: copied, Origin: origin}
	}
	return m.fail(n.ID, "unknown throw kind %v", n.Throw.Kind)
}

func (m *Machine) boundsCheck(ops []ir.NodeID) error {
	vals, err := m.evalAll(ops)
	if err != nil {
		return err
	}
	n, err := m.heap.Len(vals[0])
	if err != nil {
		return err
	}
	pos, length := vals[1].Int, vals[2].Int
	if pos < 0 || length < 0 || pos > int64(n)-length {
		return &rt.RuntimeError{Code: rt.ErrIndexOutOfBounds,
			Message: fmt.Sprintf("offset %d and length %d out of bounds for length %d", pos, length, n)}
	}
	return nil
}

func (m *Machine) copyArgs(ops []ir.NodeID) (src rt.Value, srcPos int32, dest rt.Value, destPos, length int32, err error) {
	vals, err := m.evalAll(ops)
	if err != nil {
		return rt.Value{}, 0, rt.Value{}, 0, 0, err
	}
	if len(vals) != 5 {
		return rt.Value{}, 0, rt.Value{}, 0, 0, fmt.Errorf("copy expects 5 operands, got %d", len(vals))
	}
	if srcPos, err = safecast.Conv[int32](vals[1].Int); err != nil {
		return rt.Value{}, 0, rt.Value{}, 0, 0, err
	}
	if destPos, err = safecast.Conv[int32](vals[3].Int); err != nil {
		return rt.Value{}, 0, rt.Value{}, 0, 0, err
	}
	if length, err = safecast.Conv[int32](vals[4].Int); err != nil {
		return rt.Value{}, 0, rt.Value{}, 0, 0, err
	}
	return vals[0], srcPos, vals[2], destPos, length, nil
}

func (m *Machine) evalAll(ids []ir.NodeID) ([]rt.Value, error) {
	out := make([]rt.Value, len(ids))
	for i, id := range ids {
		v, err := m.eval(id)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// eval computes a value node. Floating nodes are memoised; fixed nodes must
// already have executed.
func (m *Machine) eval(id ir.NodeID) (rt.Value, error) {
	if v, ok := m.values[id]; ok {
		return v, nil
	}
	n := m.g.Node(id)
	if n == nil {
		return rt.Value{}, m.fail(id, "value of dead node")
	}
	var v rt.Value
	switch n.Kind {
	case ir.NodeParam:
		if n.Param.Index < 0 || n.Param.Index >= len(m.args) {
			return rt.Value{}, m.fail(id, "missing argument %d (%s)", n.Param.Index, n.Param.Name)
		}
		v = m.args[n.Param.Index]
	case ir.NodeConst:
		if n.Const.Null {
			v = rt.Null()
		} else {
			v = rt.MakeInt(n.Const.Value)
		}
	case ir.NodeBinary:
		ops := n.ValueInputs()
		x, err := m.eval(ops[0])
		if err != nil {
			return rt.Value{}, err
		}
		y, err := m.eval(ops[1])
		if err != nil {
			return rt.Value{}, err
		}
		v = binary(n.Binary.Op, x, y)
	default:
		return rt.Value{}, m.fail(id, "%v used before it executed", n.Kind)
	}
	m.values[id] = v
	return v, nil
}

func binary(op ir.BinaryOp, x, y rt.Value) rt.Value {
	switch op {
	case ir.OpEq:
		return boolValue(x == y)
	case ir.OpLt:
		return boolValue(x.Int < y.Int)
	case ir.OpAdd:
		return rt.MakeInt(x.Int + y.Int)
	case ir.OpXor:
		return rt.MakeInt(x.Int ^ y.Int)
	}
	return rt.Value{}
}

func boolValue(b bool) rt.Value {
	if b {
		return rt.MakeInt(1)
	}
	return rt.MakeInt(0)
}

// fail reports a malformed graph. These are compiler bugs, not program errors.
func (m *Machine) fail(id ir.NodeID, format string, args ...any) error {
	return &ir.InvariantError{Graph: m.g.Name, Node: id, Msg: "exec: " + fmt.Sprintf(format, args...)}
}
