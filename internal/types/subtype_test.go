package types

import "testing"

func TestIsSubtype(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	number, _ := in.RegisterClass("Number", NoTypeID)
	integer, _ := in.RegisterClass("Integer", number)
	str, _ := in.RegisterClass("String", NoTypeID)

	tests := []struct {
		name       string
		sub, super TypeID
		want       bool
	}{
		{"same primitive", b.Int, b.Int, true},
		{"widening is not subtyping", b.Int, b.Long, false},
		{"class to super", integer, number, true},
		{"class to Object", str, b.Object, true},
		{"super to class", number, integer, false},
		{"siblings", str, number, false},
		{"covariant arrays", in.ArrayOf(integer), in.ArrayOf(number), true},
		{"contravariant arrays", in.ArrayOf(number), in.ArrayOf(integer), false},
		{"primitive array to Object", in.ArrayOf(b.Int), b.Object, true},
		{"primitive array to Object[]", in.ArrayOf(b.Int), in.ArrayOf(b.Object), false},
		{"int[] to long[]", in.ArrayOf(b.Int), in.ArrayOf(b.Long), false},
		{"unknown", b.Unknown, b.Object, false},
		{"none", NoTypeID, NoTypeID, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := in.IsSubtype(tt.sub, tt.super); got != tt.want {
				t.Errorf("IsSubtype(%s, %s) = %v, want %v", Label(in, tt.sub), Label(in, tt.super), got, tt.want)
			}
		})
	}
}
