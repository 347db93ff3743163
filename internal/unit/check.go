package unit

import (
	"fmt"
	"slices"

	"fortio.org/safecast"

	"copyir/internal/diag"
	"copyir/internal/types"
)

// Program is a checked unit: every name is resolved and every type interned.
type Program struct {
	File   *File
	Types  *types.Interner
	arrays map[string]*Array
	ints   map[string]IntDecl
}

// Array is a resolved array declaration.
type Array struct {
	Decl    ArrayDecl
	Static  types.TypeID
	Runtime types.TypeID
}

// Array returns the resolved declaration of name.
func (p *Program) Array(name string) (*Array, bool) {
	a, ok := p.arrays[name]
	return a, ok
}

type checker struct {
	f    *File
	in   *types.Interner
	r    diag.Reporter
	errs int
}

func (c *checker) span(site string, origin uint32) diag.Span {
	return diag.Span{File: c.f.Path, Site: site, Origin: origin}
}

func (c *checker) errorf(code diag.Code, sp diag.Span, format string, args ...any) {
	c.errs++
	diag.ReportError(c.r, code, sp, fmt.Sprintf(format, args...)).Emit()
}

// Check resolves f. Problems are reported to r; the returned bool is false
// when any of them was an error.
func Check(f *File, r diag.Reporter) (*Program, bool) {
	if r == nil {
		r = diag.NopReporter{}
	}
	c := &checker{f: f, in: types.NewInterner(), r: r}
	p := &Program{
		File:   f,
		Types:  c.in,
		arrays: make(map[string]*Array, len(f.Arrays)),
		ints:   make(map[string]IntDecl, len(f.Ints)),
	}
	for _, k := range f.Undecoded {
		c.errorf(diag.UnitParse, c.span(f.Name, 0), "unknown key %q", k)
	}
	c.classes()
	c.values(p)
	c.copies(p)
	return p, c.errs == 0
}

// classes registers the hierarchy. Declarations may appear in any order.
func (c *checker) classes() {
	seen := make(map[string]bool, len(c.f.Classes))
	var pending []ClassDecl
	for _, cl := range c.f.Classes {
		sp := c.span("class "+cl.Name, 0)
		switch {
		case cl.Name == "":
			c.errorf(diag.UnitBadClass, sp, "class without a name")
		case seen[cl.Name]:
			c.errorf(diag.UnitDuplicateName, sp, "class %s declared twice", cl.Name)
		default:
			seen[cl.Name] = true
			pending = append(pending, cl)
		}
	}
	for len(pending) > 0 {
		progress := false
		pending = slices.DeleteFunc(pending, func(cl ClassDecl) bool {
			super := types.NoTypeID
			if cl.Super != "" {
				id, ok := c.in.ClassByName(cl.Super)
				if !ok {
					if !seen[cl.Super] {
						c.errorf(diag.UnitBadClass, c.span("class "+cl.Name, 0), "unknown superclass %s", cl.Super)
						return true
					}
					return false
				}
				super = id
			}
			if _, err := c.in.RegisterClass(cl.Name, super); err != nil {
				c.errorf(diag.UnitBadClass, c.span("class "+cl.Name, 0), "%v", err)
			}
			progress = true
			return true
		})
		if !progress {
			for _, cl := range pending {
				c.errorf(diag.UnitBadClass, c.span("class "+cl.Name, 0), "inheritance cycle through %s", cl.Name)
			}
			return
		}
	}
}

func (c *checker) values(p *Program) {
	taken := map[string]bool{NullOperand: true}
	claim := func(name, what string) bool {
		sp := c.span(what+" "+name, 0)
		if name == "" {
			c.errorf(diag.UnitDuplicateName, sp, "%s without a name", what)
			return false
		}
		if taken[name] {
			c.errorf(diag.UnitDuplicateName, sp, "%s is already declared", name)
			return false
		}
		taken[name] = true
		return true
	}

	for _, d := range c.f.Arrays {
		if !claim(d.Name, "array") {
			continue
		}
		sp := c.span("array "+d.Name, 0)
		static, err := c.in.Parse(d.Type)
		if err != nil {
			c.errorf(diag.UnitUnknownType, sp, "%v", err)
			continue
		}
		if !c.in.IsReference(static) {
			c.errorf(diag.UnitOperandMismatch, sp, "type %s is not a reference type", d.Type)
			continue
		}
		runtime := static
		if d.Runtime != "" {
			if runtime, err = c.in.Parse(d.Runtime); err != nil {
				c.errorf(diag.UnitUnknownType, sp, "%v", err)
				continue
			}
		}
		if !c.in.IsArray(runtime) {
			c.errorf(diag.UnitOperandMismatch, sp, "%s needs a runtime array type", d.Name)
			continue
		}
		if !c.in.IsSubtype(runtime, static) {
			c.errorf(diag.UnitOperandMismatch, sp, "runtime type %s is not assignable to %s",
				types.Label(c.in, runtime), types.Label(c.in, static))
			continue
		}
		if d.Null && d.NonNull {
			c.errorf(diag.UnitOperandMismatch, sp, "%s is declared both null and non_null", d.Name)
			continue
		}
		if !c.contents(d, runtime, sp) {
			continue
		}
		p.arrays[d.Name] = &Array{Decl: d, Static: static, Runtime: runtime}
	}
	for _, d := range c.f.Ints {
		if !claim(d.Name, "int") {
			continue
		}
		if !fitsOperand(d.Value) {
			c.errorf(diag.UnitIntRange, c.span("int "+d.Name, 0), "%s = %d does not fit in int32", d.Name, d.Value)
		}
		p.ints[d.Name] = d
	}
}

func (c *checker) contents(d ArrayDecl, arrayT types.TypeID, sp diag.Span) bool {
	elem, _ := c.in.ElemOf(arrayT)
	if len(d.Ints) > 0 && len(d.Objects) > 0 {
		c.errorf(diag.UnitOperandMismatch, sp, "%s has both ints and objects", d.Name)
		return false
	}
	if len(d.Ints) > 0 && !c.in.IsPrimitive(elem) {
		c.errorf(diag.UnitOperandMismatch, sp, "%s holds references, not ints", d.Name)
		return false
	}
	if len(d.Objects) > 0 && !c.in.IsReference(elem) {
		c.errorf(diag.UnitOperandMismatch, sp, "%s holds primitives, not objects", d.Name)
		return false
	}
	n := max(len(d.Ints), len(d.Objects))
	if !fitsOperand(int64(d.Len)) {
		c.errorf(diag.UnitIntRange, sp, "%s: len %d does not fit in int32", d.Name, d.Len)
		return false
	}
	if d.Len < 0 || (d.Len > 0 && d.Len < n) {
		c.errorf(diag.UnitOperandMismatch, sp, "%s: len %d is smaller than its %d elements", d.Name, d.Len, n)
		return false
	}
	for _, name := range d.Objects {
		if name == NullOperand {
			continue
		}
		cls, ok := c.in.ClassByName(name)
		if !ok {
			c.errorf(diag.UnitUnknownType, sp, "unknown class %s in %s", name, d.Name)
			return false
		}
		if !c.in.IsSubtype(cls, elem) {
			c.errorf(diag.UnitOperandMismatch, sp, "%s cannot hold a %s", d.Name, name)
			return false
		}
	}
	return true
}

func (c *checker) copies(p *Program) {
	origins := make(map[uint32]bool, len(c.f.Copies))
	for _, cp := range c.f.Copies {
		sp := c.span(c.f.Name, cp.Origin)
		if cp.Origin == 0 {
			c.errorf(diag.UnitUnknownOperand, sp, "copy site without an origin")
			continue
		}
		if origins[cp.Origin] {
			c.errorf(diag.UnitDuplicateName, sp, "copy #%d declared twice", cp.Origin)
			continue
		}
		origins[cp.Origin] = true

		for _, op := range []struct {
			name string
			op   Operand
		}{{"src", cp.Src}, {"dest", cp.Dest}} {
			switch {
			case !op.op.Set:
				c.errorf(diag.UnitUnknownOperand, sp, "missing %s", op.name)
			case op.op.IsConst():
				c.errorf(diag.UnitOperandMismatch, sp, "%s must name an array, got %d", op.name, op.op.Const)
			case op.op.IsNull():
			default:
				if _, ok := p.arrays[op.op.Name]; !ok {
					c.errorf(diag.UnitUnknownOperand, sp, "%s refers to undeclared array %s", op.name, op.op.Name)
				}
			}
		}
		for _, op := range []struct {
			name     string
			op       Operand
			required bool
		}{{"src_pos", cp.SrcPos, false}, {"dest_pos", cp.DestPos, false}, {"length", cp.Length, true}} {
			switch {
			case !op.op.Set:
				if op.required {
					c.errorf(diag.UnitUnknownOperand, sp, "missing %s", op.name)
				}
			case op.op.IsConst():
				if !fitsOperand(op.op.Const) {
					c.errorf(diag.UnitIntRange, sp, "%s %d does not fit in int32", op.name, op.op.Const)
				}
			default:
				if _, ok := p.ints[op.op.Name]; !ok {
					c.errorf(diag.UnitUnknownOperand, sp, "%s refers to undeclared int %s", op.name, op.op.Name)
				}
			}
		}
	}
}

// fitsOperand reports whether v can be passed to a copy stub, whose offsets
// and length are int32.
func fitsOperand(v int64) bool {
	_, err := safecast.Conv[int32](v)
	return err == nil
}
