package unit

import (
	"fmt"

	"copyir/internal/rt"
)

// Heap is a materialised set of sample values.
type Heap struct {
	*rt.Heap
	Values map[string]rt.Value
}

// Materialize allocates every declared array with its sample contents.
func (p *Program) Materialize() (*Heap, error) {
	h := &Heap{Heap: rt.NewHeap(p.Types), Values: make(map[string]rt.Value)}
	for _, d := range p.File.Arrays {
		a, ok := p.arrays[d.Name]
		if !ok {
			return nil, fmt.Errorf("array %s was rejected by the checker", d.Name)
		}
		if d.Null {
			h.Values[d.Name] = rt.Null()
			continue
		}
		v, err := h.alloc(p, a)
		if err != nil {
			return nil, fmt.Errorf("array %s: %w", d.Name, err)
		}
		h.Values[d.Name] = v
	}
	for _, d := range p.File.Ints {
		h.Values[d.Name] = rt.MakeInt(d.Value)
	}
	return h, nil
}

func (h *Heap) alloc(p *Program, a *Array) (rt.Value, error) {
	d := a.Decl
	n := max(d.Len, len(d.Ints), len(d.Objects))
	elems := make([]rt.Value, n)
	elem, _ := p.Types.ElemOf(a.Runtime)
	for i := range elems {
		switch {
		case i < len(d.Ints):
			elems[i] = rt.MakeInt(d.Ints[i])
		case i < len(d.Objects) && d.Objects[i] != NullOperand:
			cls, _ := p.Types.ClassByName(d.Objects[i])
			r, err := h.AllocObject(cls)
			if err != nil {
				return rt.Value{}, err
			}
			elems[i] = rt.MakeRef(r)
		case p.Types.IsPrimitive(elem):
			elems[i] = rt.MakeInt(0)
		default:
			elems[i] = rt.Null()
		}
	}
	r, err := h.AllocArray(a.Runtime, elems)
	if err != nil {
		return rt.Value{}, err
	}
	return rt.MakeRef(r), nil
}

// Args binds the params of sg to the sample values.
func (h *Heap) Args(sg *SiteGraph) ([]rt.Value, error) {
	args := make([]rt.Value, len(sg.Params))
	for i, name := range sg.Params {
		v, ok := h.Values[name]
		if !ok {
			return nil, fmt.Errorf("no sample value for %s", name)
		}
		args[i] = v
	}
	return args, nil
}
