// Package unit reads compilation units: TOML files that declare a class
// hierarchy, the arrays and ints a piece of code works with, and the copy
// sites between them. Declared values carry sample contents so lowered
// graphs can also be executed.
package unit

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// File is a decoded unit file.
type File struct {
	Path    string      `toml:"-"`
	Name    string      `toml:"name"`
	Classes []ClassDecl `toml:"class"`
	Arrays  []ArrayDecl `toml:"array"`
	Ints    []IntDecl   `toml:"int"`
	Copies  []CopyDecl  `toml:"copy"`

	// Undecoded lists keys the decoder did not recognise.
	Undecoded []string `toml:"-"`
}

type ClassDecl struct {
	Name  string `toml:"name"`
	Super string `toml:"super"`
}

// ArrayDecl declares an array-valued parameter. Type is the static type seen
// by the compiler; Runtime is the class of the array actually passed and
// defaults to Type.
type ArrayDecl struct {
	Name    string   `toml:"name"`
	Type    string   `toml:"type"`
	Runtime string   `toml:"runtime"`
	NonNull bool     `toml:"non_null"`
	Null    bool     `toml:"null"`
	Len     int      `toml:"len"`
	Ints    []int64  `toml:"ints"`
	Objects []string `toml:"objects"`
}

// IntDecl declares an int parameter with its sample value.
type IntDecl struct {
	Name  string `toml:"name"`
	Value int64  `toml:"value"`
}

// CopyDecl is one copy site.
type CopyDecl struct {
	Origin  uint32  `toml:"origin"`
	Src     Operand `toml:"src"`
	SrcPos  Operand `toml:"src_pos"`
	Dest    Operand `toml:"dest"`
	DestPos Operand `toml:"dest_pos"`
	Length  Operand `toml:"length"`
	NoAlias bool    `toml:"no_alias"`
}

// NullOperand is the operand spelling of a null array constant.
const NullOperand = "null"

// Operand is either a constant or the name of a declared value.
type Operand struct {
	Set   bool
	Name  string
	Const int64
}

// UnmarshalTOML accepts integers and names.
func (o *Operand) UnmarshalTOML(v any) error {
	switch x := v.(type) {
	case int64:
		*o = Operand{Set: true, Const: x}
	case string:
		name := strings.TrimSpace(x)
		if name == "" {
			return fmt.Errorf("empty operand")
		}
		*o = Operand{Set: true, Name: name}
	default:
		return fmt.Errorf("operand must be an integer or a name, got %T", v)
	}
	return nil
}

// IsConst reports whether the operand is an integer literal.
func (o Operand) IsConst() bool { return o.Set && o.Name == "" }

// IsNull reports whether the operand is the null literal.
func (o Operand) IsNull() bool { return o.Name == NullOperand }

func (o Operand) String() string {
	switch {
	case !o.Set:
		return "<unset>"
	case o.Name != "":
		return o.Name
	default:
		return fmt.Sprint(o.Const)
	}
}

// Load decodes the unit file at path.
func Load(path string) (*File, error) {
	var f File
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	f.finish(path, meta)
	return &f, nil
}

// Parse decodes unit source held in memory; path is used for naming only.
func Parse(path, src string) (*File, error) {
	var f File
	meta, err := toml.Decode(src, &f)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	f.finish(path, meta)
	return &f, nil
}

func (f *File) finish(path string, meta toml.MetaData) {
	f.Path = path
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	for _, k := range meta.Undecoded() {
		f.Undecoded = append(f.Undecoded, k.String())
	}
}
