package unit_test

import (
	"strings"
	"testing"

	"copyir/internal/diag"
	"copyir/internal/ir"
	"copyir/internal/rt"
	"copyir/internal/types"
	"copyir/internal/unit"
)

func loadZoo(t *testing.T) *unit.Program {
	t.Helper()
	f, err := unit.Load("testdata/zoo.toml")
	if err != nil {
		t.Fatal(err)
	}
	bag := diag.NewBag(0)
	p, ok := unit.Check(f, diag.BagReporter{Bag: bag})
	if !ok {
		t.Fatalf("zoo.toml rejected:\n%s", diag.FormatShortDiagnostics(bag.Items(), true))
	}
	return p
}

func TestLoadDecodesOperands(t *testing.T) {
	f, err := unit.Load("testdata/zoo.toml")
	if err != nil {
		t.Fatal(err)
	}
	if f.Name != "zoo" || len(f.Copies) != 4 {
		t.Fatalf("decoded %q with %d copies", f.Name, len(f.Copies))
	}
	first := f.Copies[0]
	if first.Src.Name != "animals" || first.Length.Name != "n" || first.SrcPos.Set {
		t.Fatalf("copy #1 operands: %+v", first)
	}
	if second := f.Copies[1]; !second.DestPos.IsConst() || second.DestPos.Const != 2 {
		t.Fatalf("copy #2 dest_pos: %+v", second.DestPos)
	}
}

func TestBuildSelectsPerSite(t *testing.T) {
	p := loadZoo(t)
	bag := diag.NewBag(0)
	sites, err := p.Build(diag.BagReporter{Bag: bag})
	if err != nil {
		t.Fatal(err)
	}
	if len(sites) != 4 {
		t.Fatalf("got %d site graphs", len(sites))
	}

	want := []struct {
		variant ir.CopyVariant
		params  []string
		elided  bool
	}{
		{ir.CopyChecked, []string{"animals", "kennel", "n"}, false},
		{ir.CopySpecialized, []string{"counts"}, false},
		{ir.CopyGeneric, []string{"boxed", "animals"}, false},
		{0, []string{"animals", "kennel"}, true},
	}
	for i, sg := range sites {
		w := want[i]
		if err := ir.Validate(sg.Graph); err != nil {
			t.Fatalf("site %d: %v", i+1, err)
		}
		if got := strings.Join(sg.Params, ","); got != strings.Join(w.params, ",") {
			t.Errorf("site %d params = %s", i+1, got)
		}
		if sg.Result.Elided != w.elided {
			t.Errorf("site %d elided = %v", i+1, sg.Result.Elided)
		}
		if w.elided {
			continue
		}
		if got := sg.Graph.Node(sg.Result.Copy).Copy.Variant; got != w.variant {
			t.Errorf("site %d variant = %s, want %s", i+1, got, w.variant)
		}
	}
	if sites[1].Result.Decision.Disjoint {
		t.Errorf("overlapping self copy must not be disjoint")
	}
	if bag.Len() != 1 || bag.Items()[0].Code != diag.LowZeroLength {
		t.Errorf("diagnostics:\n%s", diag.FormatShortDiagnostics(bag.Items(), false))
	}
}

func TestMaterializeSamples(t *testing.T) {
	p := loadZoo(t)
	h, err := p.Materialize()
	if err != nil {
		t.Fatal(err)
	}
	elems, err := h.Snapshot(h.Values["animals"])
	if err != nil {
		t.Fatal(err)
	}
	if len(elems) != 6 || !elems[2].IsNull() || elems[4].IsNull() {
		t.Fatalf("animals = %v", elems)
	}
	kennel, _ := h.Snapshot(h.Values["kennel"])
	for i, v := range kennel {
		if !v.IsNull() {
			t.Fatalf("kennel[%d] = %v, want null", i, v)
		}
	}
	_, elem, err := h.Array(h.Values["boxed"])
	if err != nil {
		t.Fatal(err)
	}
	animal, _ := p.Types.ClassByName("Animal")
	if elem != animal {
		t.Fatalf("boxed runtime element = %s", types.Label(p.Types, elem))
	}

	sites, err := p.Build(nil)
	if err != nil {
		t.Fatal(err)
	}
	args, err := h.Args(sites[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(args) != 3 || args[2] != rt.MakeInt(6) {
		t.Fatalf("args = %v", args)
	}
}

func TestCheckRejects(t *testing.T) {
	const classes = `
[[class]]
name = "Animal"
[[class]]
name = "Dog"
super = "Animal"
`
	tests := []struct {
		name string
		src  string
		code diag.Code
		msg  string
	}{
		{"unknown key", `colour = "red"`, diag.UnitParse, "colour"},
		{"unknown superclass", `
[[class]]
name = "Dog"
super = "Wolf"`, diag.UnitBadClass, "unknown superclass Wolf"},
		{"inheritance cycle", `
[[class]]
name = "A"
super = "B"
[[class]]
name = "B"
super = "A"`, diag.UnitBadClass, "cycle"},
		{"duplicate class", classes + `
[[class]]
name = "Dog"`, diag.UnitDuplicateName, "declared twice"},
		{"unknown type", `
[[array]]
name = "a"
type = "Wolf[]"`, diag.UnitUnknownType, "Wolf"},
		{"primitive value", `
[[array]]
name = "a"
type = "int"`, diag.UnitOperandMismatch, "not a reference"},
		{"runtime not assignable", classes + `
[[array]]
name = "a"
type = "Dog[]"
runtime = "Animal[]"`, diag.UnitOperandMismatch, "not assignable"},
		{"element not assignable", classes + `
[[array]]
name = "a"
type = "Dog[]"
objects = ["Animal"]`, diag.UnitOperandMismatch, "cannot hold"},
		{"ints in reference array", classes + `
[[array]]
name = "a"
type = "Dog[]"
ints = [1]`, diag.UnitOperandMismatch, "holds references"},
		{"name reused", `
[[array]]
name = "n"
type = "int[]"
[[int]]
name = "n"`, diag.UnitDuplicateName, "already declared"},
		{"int out of range", `
[[int]]
name = "n"
value = 2147483648`, diag.UnitIntRange, "does not fit in int32"},
		{"constant offset out of range", `
[[copy]]
origin = 1
src = "null"
dest = "null"
src_pos = 9223372036854775807
length = 1`, diag.UnitIntRange, "src_pos 9223372036854775807"},
		{"undeclared array", `
[[copy]]
origin = 1
src = "a"
dest = "null"
length = 1`, diag.UnitUnknownOperand, "undeclared array a"},
		{"constant source", `
[[copy]]
origin = 1
src = 3
dest = "null"
length = 1`, diag.UnitOperandMismatch, "must name an array"},
		{"missing length", `
[[copy]]
origin = 1
src = "null"
dest = "null"`, diag.UnitUnknownOperand, "missing length"},
		{"zero origin", `
[[copy]]
src = "null"
dest = "null"
length = 1`, diag.UnitUnknownOperand, "without an origin"},
		{"duplicate origin", `
[[copy]]
origin = 7
src = "null"
dest = "null"
length = 1
[[copy]]
origin = 7
src = "null"
dest = "null"
length = 1`, diag.UnitDuplicateName, "#7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := unit.Parse("bad.toml", tt.src)
			if err != nil {
				t.Fatal(err)
			}
			bag := diag.NewBag(0)
			if _, ok := unit.Check(f, diag.BagReporter{Bag: bag}); ok {
				t.Fatal("expected rejection")
			}
			for _, d := range bag.Items() {
				if d.Code == tt.code && strings.Contains(d.Message, tt.msg) {
					return
				}
			}
			t.Fatalf("want %s containing %q, got:\n%s", tt.code.ID(), tt.msg,
				diag.FormatShortDiagnostics(bag.Items(), false))
		})
	}
}

func TestParseRejectsBadOperand(t *testing.T) {
	_, err := unit.Parse("bad.toml", `
[[copy]]
origin = 1
src = 1.5
`)
	if err == nil {
		t.Fatal("float operand accepted")
	}
}

func TestNullOperandsBuildThrow(t *testing.T) {
	f, err := unit.Parse("null.toml", `
[[copy]]
origin = 1
src = "null"
dest = "null"
length = 1
`)
	if err != nil {
		t.Fatal(err)
	}
	p, ok := unit.Check(f, nil)
	if !ok {
		t.Fatal("rejected")
	}
	bag := diag.NewBag(0)
	sites, err := p.Build(diag.BagReporter{Bag: bag})
	if err != nil {
		t.Fatal(err)
	}
	if !sites[0].Result.Throws || len(sites[0].Params) != 0 {
		t.Fatalf("result = %+v", sites[0].Result)
	}
	if bag.Len() != 1 || bag.Items()[0].Code != diag.LowAlwaysNull {
		t.Fatalf("diagnostics:\n%s", diag.FormatShortDiagnostics(bag.Items(), false))
	}
}
