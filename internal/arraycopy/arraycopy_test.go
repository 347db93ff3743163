package arraycopy_test

import (
	"math"
	"slices"
	"testing"

	"copyir/internal/arraycopy"
	"copyir/internal/diag"
	"copyir/internal/ir"
	"copyir/internal/layout"
	"copyir/internal/stub"
	"copyir/internal/testkit"
	"copyir/internal/types"
)

type fixture struct {
	in   *types.Interner
	g    *ir.Graph
	b    *ir.Builder
	bag  *diag.Bag
	site arraycopy.Site
}

// newFixture declares five params (src, srcPos, dest, destPos, length) with
// the given array types. A non-negative length becomes a constant instead.
func newFixture(t *testing.T, in *types.Interner, src, dest types.TypeID, length int64) *fixture {
	t.Helper()
	g := ir.NewGraph(t.Name(), in)
	b := ir.NewBuilder(g)
	i32 := in.Builtins().Int
	site := arraycopy.Site{
		Origin:  1,
		Src:     b.Param(0, "src", src, false),
		SrcPos:  b.Param(1, "srcPos", i32, false),
		Dest:    b.Param(2, "dest", dest, false),
		DestPos: b.Param(3, "destPos", i32, false),
		Span:    diag.Span{File: "test.toml", Site: "copy"},
	}
	if length >= 0 {
		site.Length = b.Const(length)
	} else {
		site.Length = b.Param(4, "length", i32, false)
	}
	return &fixture{in: in, g: g, b: b, bag: diag.NewBag(16), site: site}
}

func (f *fixture) build(t *testing.T) arraycopy.Result {
	t.Helper()
	res, err := arraycopy.Build(f.b, f.site, diag.BagReporter{Bag: f.bag})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !f.b.Terminated() {
		f.b.Return()
	}
	if err := f.b.Err(); err != nil {
		t.Fatalf("builder: %v", err)
	}
	if err := ir.Validate(f.g); err != nil {
		t.Fatalf("graph invalid after build: %v", err)
	}
	return res
}

func lowerAll(t *testing.T, g *ir.Graph) arraycopy.Stats {
	t.Helper()
	st, err := arraycopy.LowerAll(g, layout.New(layout.X86_64LinuxGNU(), g.Types))
	if err != nil {
		t.Fatalf("LowerAll: %v", err)
	}
	if err := testkit.CheckLowered(g); err != nil {
		t.Fatalf("lowered graph: %v", err)
	}
	return st
}

func TestZeroLengthCopyIsElided(t *testing.T) {
	in := types.NewInterner()
	intArr := in.ArrayOf(in.Builtins().Int)
	f := newFixture(t, in, in.Builtins().Object, intArr, 0)
	res := f.build(t)
	if !res.Elided || res.Copy != ir.NoNodeID {
		t.Fatalf("zero-length copy should be elided, got %+v", res)
	}
	if n := len(f.g.NodesOf(ir.NodeArrayCopy)); n != 0 {
		t.Fatalf("found %d copy nodes", n)
	}
	st := lowerAll(t, f.g)
	if st.Calls != 0 || len(f.g.NodesOf(ir.NodeForeignCall)) != 0 {
		t.Fatalf("zero-length copy reached a stub call")
	}
	if f.bag.Len() != 1 || f.bag.Items()[0].Code != diag.LowZeroLength {
		t.Fatalf("expected one zero-length note, got %+v", f.bag.Items())
	}
}

func TestSpecializedCopyNeverCallsStub(t *testing.T) {
	in := types.NewInterner()
	intArr := in.ArrayOf(in.Builtins().Int)
	for _, length := range []int64{-1, 1, 7, 1 << 20} {
		f := newFixture(t, in, intArr, intArr, length)
		res := f.build(t)
		if res.Decision.Variant != ir.CopySpecialized {
			t.Fatalf("length %d: variant %s", length, res.Decision.Variant)
		}
		st := lowerAll(t, f.g)
		if st.Calls != 0 || len(f.g.NodesOf(ir.NodeForeignCall)) != 0 {
			t.Fatalf("length %d: specialized copy produced a stub call", length)
		}
		moves := f.g.NodesOf(ir.NodeMemMove)
		if len(moves) != 1 {
			t.Fatalf("length %d: expected one MemMove, got %d", length, len(moves))
		}
		mv := f.g.Node(moves[0])
		if mv.Move.ElemSize != 4 || mv.Move.Location != ir.Named("array:int") || mv.Move.Origin != 1 {
			t.Fatalf("unexpected move payload %+v", mv.Move)
		}
	}
}

func TestGenericLoweringPreservesOperandsAndKill(t *testing.T) {
	in := types.NewInterner()
	obj := in.Builtins().Object
	f := newFixture(t, in, obj, obj, -1)
	res := f.build(t)
	if res.Decision.Variant != ir.CopyGeneric {
		t.Fatalf("variant = %s", res.Decision.Variant)
	}
	before := f.g.Node(res.Copy)
	wantOps := before.ValueInputs()
	wantCtl := f.g.ControlInput(res.Copy)
	wantMem := f.g.MemoryInput(res.Copy)

	call, err := arraycopy.Lower(f.g, res.Copy, layout.New(layout.X86_64LinuxGNU(), in))
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if f.g.IsLive(res.Copy) {
		t.Fatalf("copy node survived lowering")
	}
	n := f.g.Node(call)
	if n.Kind != ir.NodeForeignCall || n.Call.Target != stub.GenericArraycopy.String() {
		t.Fatalf("lowered to %v %q", n.Kind, n.Call.Target)
	}
	gotOps := n.ValueInputs()
	for i := range wantOps {
		if gotOps[i] != wantOps[i] {
			t.Fatalf("operand %d = n%d, want n%d", i, gotOps[i], wantOps[i])
		}
	}
	if f.g.MemoryInput(call) != wantMem {
		t.Fatalf("call lost the copy's memory input")
	}
	begin := f.g.Node(f.g.ControlInput(call))
	if begin.Kind != ir.NodeBegin || begin.Begin.Branch {
		t.Fatalf("call must sit on the false branch of the length test, control is %v", begin.Kind)
	}
	test := f.g.ControlInput(begin.ID)
	if f.g.Node(test).Kind != ir.NodeIf || f.g.ControlInput(test) != wantCtl {
		t.Fatalf("length test must take over the copy's control input")
	}
	cond := f.g.Node(f.g.Node(test).ValueInputs()[0])
	if cond.Kind != ir.NodeBinary || cond.Binary.Op != ir.OpEq || cond.ValueInputs()[0] != wantOps[4] {
		t.Fatalf("length test is not length == 0")
	}
	if !f.g.KilledLocation(call).IsAny() {
		t.Fatalf("call kills %s, want any", f.g.KilledLocation(call))
	}
	if n.Type != in.Builtins().Int {
		t.Fatalf("call result type = %s", types.Label(in, n.Type))
	}
	if err := ir.Validate(f.g); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := ir.ValidateMemoryOrder(f.g); err != nil {
		t.Fatalf("memory order: %v", err)
	}
}

func TestDecodeShape(t *testing.T) {
	in := types.NewInterner()
	obj := in.Builtins().Object
	f := newFixture(t, in, obj, obj, -1)
	f.build(t)
	lowerAll(t, f.g)

	calls := f.g.NodesOf(ir.NodeForeignCall)
	if len(calls) != 1 {
		t.Fatalf("expected one call, got %d", len(calls))
	}
	call := calls[0]

	var status ir.NodeID
	for _, id := range f.g.ControlSuccessors(call) {
		if f.g.Node(id).Kind == ir.NodeIf {
			status = id
		}
	}
	if status == ir.NoNodeID || len(f.g.NodesOf(ir.NodeIf)) != 2 {
		t.Fatalf("status branch must directly follow the call")
	}
	cond := f.g.Node(f.g.Node(status).ValueInputs()[0])
	if cond.Kind != ir.NodeBinary || cond.Binary.Op != ir.OpEq || cond.ValueInputs()[0] != call {
		t.Fatalf("branch condition is not status == 0")
	}

	throws := f.g.NodesOf(ir.NodeThrow)
	if len(throws) != 1 {
		t.Fatalf("expected one throw, got %d", len(throws))
	}
	th := f.g.Node(throws[0])
	if th.Throw.Kind != ir.ThrowArrayStore || th.Throw.Origin != 1 {
		t.Fatalf("unexpected throw %+v", th.Throw)
	}
	copied := f.g.Node(th.ValueInputs()[0])
	if copied.Kind != ir.NodeBinary || copied.Binary.Op != ir.OpXor {
		t.Fatalf("copied count is not status ^ -1")
	}
	allOnes := f.g.Node(copied.ValueInputs()[1])
	if allOnes.Kind != ir.NodeConst || allOnes.Const.Value != -1 {
		t.Fatalf("xor mask = %+v", allOnes.Const)
	}

	// The skipped call and the successful call rejoin before the return.
	ret := f.g.NodesOf(ir.NodeReturn)
	join := f.g.Node(f.g.ControlInput(ret[0]))
	if join.Kind != ir.NodeMerge {
		t.Fatalf("return must follow the merge, got %v", join.Kind)
	}
	var ifs []ir.NodeID
	for _, in := range join.Inputs {
		begin := f.g.Node(in.Node)
		if begin.Kind != ir.NodeBegin || !begin.Begin.Branch {
			t.Fatalf("merge input n%d is not a true branch", in.Node)
		}
		ifs = append(ifs, f.g.ControlInput(in.Node))
	}
	if len(ifs) != 2 || ifs[0] == ifs[1] || !slices.Contains(ifs, status) {
		t.Fatalf("merge must join the length test and the status test, got %v", ifs)
	}
}

func TestLoweredCallsChain(t *testing.T) {
	in := types.NewInterner()
	obj := in.Builtins().Object
	g := ir.NewGraph("chain", in)
	b := ir.NewBuilder(g)
	i32 := in.Builtins().Int
	src := b.Param(0, "src", obj, false)
	dst := b.Param(1, "dst", obj, false)
	n := b.Param(2, "n", i32, false)
	zero := b.Const(0)
	for origin := uint32(1); origin <= 2; origin++ {
		site := arraycopy.Site{Origin: origin, Src: src, SrcPos: zero, Dest: dst, DestPos: zero, Length: n}
		if _, err := arraycopy.Build(b, site, nil); err != nil {
			t.Fatal(err)
		}
	}
	b.Return()
	st := lowerAll(t, g)
	if st.Calls != 2 || len(g.NodesOf(ir.NodeMerge)) != 2 {
		t.Fatalf("stats = %+v, merges = %d", st, len(g.NodesOf(ir.NodeMerge)))
	}
}

func TestCheckedLowering(t *testing.T) {
	in := types.NewInterner()
	animal, _ := in.RegisterClass("Animal", types.NoTypeID)
	dog, _ := in.RegisterClass("Dog", animal)
	f := newFixture(t, in, in.ArrayOf(animal), in.ArrayOf(dog), 3)
	res := f.build(t)
	if res.Decision.Variant != ir.CopyChecked {
		t.Fatalf("variant = %s", res.Decision.Variant)
	}
	st := lowerAll(t, f.g)
	if st.Checked != 1 || st.Calls != 1 || st.Total() != 1 {
		t.Fatalf("stats = %+v", st)
	}
	call := f.g.Node(f.g.NodesOf(ir.NodeForeignCall)[0])
	if call.Call.Target != stub.CheckcastArraycopy.String() {
		t.Fatalf("checked copy calls %q", call.Call.Target)
	}
}

func TestReselectIgnoresLoweredCalls(t *testing.T) {
	in := types.NewInterner()
	obj := in.Builtins().Object
	f := newFixture(t, in, obj, obj, 5)
	f.build(t)
	lowerAll(t, f.g)
	before := f.g.Len()
	for _, id := range f.g.Live() {
		changed, err := arraycopy.Reselect(f.g, id)
		if err != nil || changed {
			t.Fatalf("Reselect(n%d) = %v, %v on a lowered graph", id, changed, err)
		}
	}
	if f.g.Len() != before {
		t.Fatalf("Reselect modified a lowered graph")
	}
}

func TestReselectReplacesStaleVariant(t *testing.T) {
	in := types.NewInterner()
	intArr := in.ArrayOf(in.Builtins().Int)
	g := ir.NewGraph("stale", in)
	b := ir.NewBuilder(g)
	i32 := in.Builtins().Int
	src := b.Param(0, "src", intArr, true)
	dst := b.Param(1, "dst", intArr, true)
	zero := b.Const(0)
	n := b.Const(3)
	cp := b.Append(ir.Node{Kind: ir.NodeArrayCopy, Type: i32, Copy: ir.CopyData{Variant: ir.CopyGeneric, Origin: 9}}, src, zero, dst, zero, n)
	b.Return()

	changed, err := arraycopy.Reselect(g, cp)
	if err != nil || !changed {
		t.Fatalf("Reselect = %v, %v", changed, err)
	}
	copies := g.NodesOf(ir.NodeArrayCopy)
	if len(copies) != 1 || copies[0] == cp {
		t.Fatalf("expected the stale node to be replaced, copies=%v", copies)
	}
	nn := g.Node(copies[0])
	if nn.Copy.Variant != ir.CopySpecialized || nn.Copy.Origin != 9 {
		t.Fatalf("replacement = %+v", nn.Copy)
	}
	if err := ir.Validate(g); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if changed, _ := arraycopy.Reselect(g, copies[0]); changed {
		t.Fatalf("second Reselect must be a no-op")
	}
}

func TestStaticFailures(t *testing.T) {
	in := types.NewInterner()
	intArr := in.ArrayOf(in.Builtins().Int)

	t.Run("null source", func(t *testing.T) {
		f := newFixture(t, in, intArr, intArr, 4)
		f.site.Src = f.b.Null(intArr)
		res := f.build(t)
		assertThrow(t, f, res, ir.ThrowNullPointer, diag.LowAlwaysNull)
	})
	t.Run("negative length", func(t *testing.T) {
		f := newFixture(t, in, intArr, intArr, 0)
		f.site.Length = f.b.Const(-3)
		res := f.build(t)
		assertThrow(t, f, res, ir.ThrowIndexOutOfBounds, diag.LowNegativeArgument)
	})
	t.Run("negative offset", func(t *testing.T) {
		f := newFixture(t, in, intArr, intArr, 2)
		f.site.DestPos = f.b.Const(-1)
		res := f.build(t)
		assertThrow(t, f, res, ir.ThrowIndexOutOfBounds, diag.LowNegativeArgument)
	})
}

func assertThrow(t *testing.T, f *fixture, res arraycopy.Result, kind ir.ThrowKind, code diag.Code) {
	t.Helper()
	if !res.Throws || res.Copy != ir.NoNodeID {
		t.Fatalf("expected a static throw, got %+v", res)
	}
	if len(f.g.NodesOf(ir.NodeArrayCopy)) != 0 || len(f.g.NodesOf(ir.NodeForeignCall)) != 0 {
		t.Fatalf("statically failing copy emitted a copy or call")
	}
	throws := f.g.NodesOf(ir.NodeThrow)
	if len(throws) != 1 || f.g.Node(throws[0]).Throw.Kind != kind {
		t.Fatalf("expected a %s throw", kind)
	}
	if f.bag.Len() != 1 || f.bag.Items()[0].Code != code || f.bag.Items()[0].Severity != diag.SevWarning {
		t.Fatalf("diagnostics = %+v", f.bag.Items())
	}
}

func TestGuardsPrecedeCopy(t *testing.T) {
	in := types.NewInterner()
	obj := in.Builtins().Object
	f := newFixture(t, in, obj, obj, -1)
	res := f.build(t)

	var kinds []ir.NodeKind
	for cur := f.g.ControlInput(res.Copy); cur != f.g.Start(); cur = f.g.ControlInput(cur) {
		kinds = append(kinds, f.g.Node(cur).Kind)
	}
	want := []ir.NodeKind{ir.NodeBoundsCheck, ir.NodeBoundsCheck, ir.NodeNullCheck, ir.NodeNullCheck}
	if len(kinds) != len(want) {
		t.Fatalf("guards = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("guards = %v, want %v", kinds, want)
		}
	}
}

func TestDisjointness(t *testing.T) {
	in := types.NewInterner()
	intArr := in.ArrayOf(in.Builtins().Int)
	g := ir.NewGraph("disjoint", in)
	b := ir.NewBuilder(g)
	arr := b.Param(0, "a", intArr, true)
	other := b.Param(1, "b", intArr, true)

	tests := []struct {
		name          string
		src, dst      ir.NodeID
		sp, dp, n     int64
		noAlias, want bool
	}{
		{"same array apart", arr, arr, 0, 4, 4, false, true},
		{"same array overlapping", arr, arr, 0, 2, 4, false, false},
		{"distinct declared no-alias", arr, other, 0, 0, 4, true, true},
		{"distinct may alias", arr, other, 0, 0, 4, false, false},
		{"same array huge length", arr, arr, 0, 4, math.MaxInt64, false, false},
		{"same array huge offset", arr, arr, math.MaxInt64, 0, 1, false, true},
	}
	for i, tt := range tests {
		site := arraycopy.Site{
			Origin: uint32(i + 1), Src: tt.src, Dest: tt.dst,
			SrcPos: b.Const(tt.sp), DestPos: b.Const(tt.dp), Length: b.Const(tt.n),
			NoAlias: tt.noAlias,
		}
		res, err := arraycopy.Build(b, site, nil)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if res.Decision.Disjoint != tt.want {
			t.Errorf("%s: disjoint = %v, want %v", tt.name, res.Decision.Disjoint, tt.want)
		}
	}
}
