package llvm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Types
//
// Every type renders itself in LLVM assembly syntax. Two types are equal
// exactly when they render the same; named types compare by name.
// ---------------------------------------------------------------------------

// Type is an LLVM first-class or aggregate type.
type Type interface {
	String() string
	isType()
}

// IntegerType is iN.
type IntegerType struct{ Bits int }

// FloatingPointType is float or double.
type FloatingPointType struct{ name string }

// VoidType is the void return type.
type VoidType struct{}

// PointerType is Base*.
type PointerType struct{ Base Type }

// ArrayType is [Size x Elem].
type ArrayType struct {
	Size int
	Elem Type
}

// StructureType is a literal or, when Name is set, identified structure.
type StructureType struct {
	Name   string
	Fields []Type
	Packed bool
}

// OpaqueType is a named type without a body.
type OpaqueType struct{ Name string }

// FunctionType is Return (Params...).
type FunctionType struct {
	Return  Type
	Params  []Type
	Varargs bool
}

var (
	Void   Type = &VoidType{}
	I1          = &IntegerType{Bits: 1}
	I8          = &IntegerType{Bits: 8}
	I16         = &IntegerType{Bits: 16}
	I32         = &IntegerType{Bits: 32}
	I64         = &IntegerType{Bits: 64}
	Float       = &FloatingPointType{name: "float"}
	Double      = &FloatingPointType{name: "double"}
	I8Ptr       = PointerTo(I8)
	I8PtrPtr    = PointerTo(I8Ptr)
	I32Ptr      = PointerTo(I32)
)

// PointerTo returns the pointer type to t.
func PointerTo(t Type) *PointerType { return &PointerType{Base: t} }

// NewFunctionType builds a non-variadic function type.
func NewFunctionType(ret Type, params ...Type) *FunctionType {
	return &FunctionType{Return: ret, Params: params}
}

// NewStructureType builds a literal structure type.
func NewStructureType(fields ...Type) *StructureType {
	return &StructureType{Fields: fields}
}

// NewNamedStructureType builds an identified structure type.
func NewNamedStructureType(name string, fields ...Type) *StructureType {
	return &StructureType{Name: name, Fields: fields}
}

func (t *IntegerType) String() string       { return fmt.Sprintf("i%d", t.Bits) }
func (t *FloatingPointType) String() string { return t.name }
func (t *VoidType) String() string          { return "void" }
func (t *PointerType) String() string       { return t.Base.String() + "*" }
func (t *ArrayType) String() string         { return fmt.Sprintf("[%d x %s]", t.Size, t.Elem) }
func (t *OpaqueType) String() string        { return "%" + quoteName(t.Name) }

func (t *StructureType) String() string {
	if t.Name != "" {
		return "%" + quoteName(t.Name)
	}
	return t.Body()
}

// Body renders the structure's field list regardless of its name.
func (t *StructureType) Body() string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.String()
	}
	if len(parts) == 0 {
		if t.Packed {
			return "<{}>"
		}
		return "{}"
	}
	if t.Packed {
		return "<{ " + strings.Join(parts, ", ") + " }>"
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func (t *FunctionType) String() string {
	parts := make([]string, 0, len(t.Params)+1)
	for _, p := range t.Params {
		parts = append(parts, p.String())
	}
	if t.Varargs {
		parts = append(parts, "...")
	}
	return t.Return.String() + " (" + strings.Join(parts, ", ") + ")"
}

func (*IntegerType) isType()       {}
func (*FloatingPointType) isType() {}
func (*VoidType) isType()          {}
func (*PointerType) isType()       {}
func (*ArrayType) isType()         {}
func (*StructureType) isType()     {}
func (*OpaqueType) isType()        {}
func (*FunctionType) isType()      {}

// TypeEqual reports whether a and b denote the same type.
func TypeEqual(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}

// IsInteger reports whether t is an integer type.
func IsInteger(t Type) bool {
	_, ok := t.(*IntegerType)
	return ok
}

// IsFloatingPoint reports whether t is float or double.
func IsFloatingPoint(t Type) bool {
	_, ok := t.(*FloatingPointType)
	return ok
}

// IsPointer reports whether t is a pointer type.
func IsPointer(t Type) bool {
	_, ok := t.(*PointerType)
	return ok
}

// Pointee returns the element type of a pointer, or nil.
func Pointee(t Type) Type {
	if p, ok := t.(*PointerType); ok {
		return p.Base
	}
	return nil
}

// namedType is a type that gets a top-level definition.
type namedType interface {
	Type
	definition() string
}

func (t *StructureType) definition() string {
	return "%" + quoteName(t.Name) + " = type " + t.Body()
}

func (t *OpaqueType) definition() string {
	return "%" + quoteName(t.Name) + " = type opaque"
}

// ---------------------------------------------------------------------------
// Identifiers
// ---------------------------------------------------------------------------

// quoteName returns name as an LLVM identifier body, quoting it when it
// contains characters outside [-a-zA-Z$._0-9] or starts with a digit.
func quoteName(name string) string {
	if isPlainName(name) {
		return name
	}
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '"' || c == '\\' || c < 0x20 || c >= 0x7f {
			fmt.Fprintf(&sb, "\\%02X", c)
			continue
		}
		sb.WriteByte(c)
	}
	sb.WriteByte('"')
	return sb.String()
}

func isPlainName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '-', c == '$', c == '.', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
