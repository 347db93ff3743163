package ir

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"copyir/internal/types"
)

const opColumn = 30

// Dump writes a human-readable listing of the live nodes of g.
func Dump(w io.Writer, g *Graph) error {
	if w == nil || g == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "graph %s (nodes=%d)\n", g.Name, g.Len()); err != nil {
		return err
	}
	for _, id := range g.Live() {
		if _, err := fmt.Fprintf(w, "  %s\n", FormatNode(g, id)); err != nil {
			return err
		}
	}
	return nil
}

// FormatNode renders one node as "nID op : type (inputs) attrs".
func FormatNode(g *Graph, id NodeID) string {
	n := g.Node(id)
	if n == nil {
		return fmt.Sprintf("n%d <dead>", id)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "n%-3d ", id)

	op := formatOp(g, n)
	if n.Type != types.NoTypeID {
		op += " : " + types.Label(g.Types, n.Type)
	}
	sb.WriteString(runewidth.FillRight(op, opColumn))

	var ins []string
	for _, in := range n.Inputs {
		switch in.Type {
		case InputControl:
			ins = append(ins, fmt.Sprintf("ctl=n%d", in.Node))
		case InputMemory:
			ins = append(ins, fmt.Sprintf("mem=n%d", in.Node))
		default:
			ins = append(ins, fmt.Sprintf("n%d", in.Node))
		}
	}
	if len(ins) > 0 {
		sb.WriteString(" (")
		sb.WriteString(strings.Join(ins, ", "))
		sb.WriteString(")")
	}
	if kill := g.KilledLocation(id); !kill.IsNone() {
		sb.WriteString(" kill=")
		sb.WriteString(kill.String())
	}
	return strings.TrimRight(sb.String(), " ")
}

func formatOp(g *Graph, n *Node) string {
	switch n.Kind {
	case NodeParam:
		s := fmt.Sprintf("Param #%d %s", n.Param.Index, n.Param.Name)
		if n.Param.NonNull {
			s += "!"
		}
		return s
	case NodeConst:
		if n.Const.Null {
			return "Const null"
		}
		return fmt.Sprintf("Const %d", n.Const.Value)
	case NodeBinary:
		return "Binary " + n.Binary.Op.String()
	case NodeBegin:
		return fmt.Sprintf("Begin %t", n.Begin.Branch)
	case NodeLoad, NodeStore:
		return fmt.Sprintf("%v @%s", n.Kind, n.Mem.Location)
	case NodeArrayCopy:
		s := fmt.Sprintf("ArrayCopy<%s> #%d", n.Copy.Variant, n.Copy.Origin)
		if n.Copy.Variant != CopyGeneric {
			s += " " + types.Label(g.Types, n.Copy.Elem)
		}
		if n.Copy.Disjoint {
			s += " disjoint"
		}
		return s
	case NodeMemMove:
		s := fmt.Sprintf("MemMove #%d %s*%d", n.Move.Origin, types.Label(g.Types, n.Move.Elem), n.Move.ElemSize)
		if n.Move.Disjoint {
			s += " disjoint"
		}
		return s
	case NodeForeignCall:
		return fmt.Sprintf("ForeignCall %s #%d", n.Call.Target, n.Call.Origin)
	case NodeThrow:
		return fmt.Sprintf("Throw %s #%d", n.Throw.Kind, n.Throw.Origin)
	}
	return n.Kind.String()
}
