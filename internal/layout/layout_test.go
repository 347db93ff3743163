package layout_test

import (
	"errors"
	"testing"

	"copyir/internal/layout"
	"copyir/internal/types"
)

func TestLayoutOfElementTypes(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	e := layout.New(layout.X86_64LinuxGNU(), in)

	tests := []struct {
		name string
		id   types.TypeID
		size int
	}{
		{"boolean", b.Bool, 1},
		{"byte", b.Byte, 1},
		{"char", b.Char, 2},
		{"short", b.Short, 2},
		{"int", b.Int, 4},
		{"long", b.Long, 8},
		{"float", b.Float, 4},
		{"double", b.Double, 8},
		{"Object", b.Object, 8},
		{"int[]", in.ArrayOf(b.Int), 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := e.LayoutOf(tt.id)
			if err != nil {
				t.Fatalf("LayoutOf: %v", err)
			}
			if l.Size != tt.size || l.Align != tt.size {
				t.Fatalf("layout = %+v, want size=align=%d", l, tt.size)
			}
		})
	}
}

func TestElemSize(t *testing.T) {
	in := types.NewInterner()
	e := layout.New(layout.X86_64LinuxGNU(), in)

	n, err := e.ElemSize(in.ArrayOf(in.Builtins().Long))
	if err != nil || n != 8 {
		t.Fatalf("ElemSize(long[]) = %d, %v", n, err)
	}
	_, err = e.ElemSize(in.Builtins().Int)
	var lerr *layout.LayoutError
	if !errors.As(err, &lerr) || lerr.Kind != layout.LayoutErrNotArray {
		t.Fatalf("expected not-array error, got %v", err)
	}
}

func TestUnknownTypeIsUnsized(t *testing.T) {
	in := types.NewInterner()
	e := layout.New(layout.X86_64LinuxGNU(), in)
	_, err := e.SizeOf(in.Builtins().Unknown)
	var lerr *layout.LayoutError
	if !errors.As(err, &lerr) || lerr.Kind != layout.LayoutErrUnsized {
		t.Fatalf("expected unsized error, got %v", err)
	}
	// Cached errors are reported again.
	if _, err := e.SizeOf(in.Builtins().Unknown); err == nil {
		t.Fatalf("cached lookup lost the error")
	}
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align, want uint64
	}{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 16, 16},
		{13, 0, 13},
		{13, 12, 13},
	}
	for _, tt := range tests {
		if got := layout.AlignUp(tt.n, tt.align); got != tt.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.n, tt.align, got, tt.want)
		}
	}
}
