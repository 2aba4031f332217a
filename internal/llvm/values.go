package llvm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Values
//
// String renders a value as an operand without its type; Typed renders
// "type value" as used in most instruction operand positions.
// ---------------------------------------------------------------------------

// Value is anything usable as an instruction operand.
type Value interface {
	Type() Type
	String() string
}

// Composite is implemented by values built from other values. The module
// walks composites to find referenced symbols.
type Composite interface {
	Value
	Operands() []Value
}

// Typed renders v as "type value".
func Typed(v Value) string {
	return v.Type().String() + " " + v.String()
}

// IntegerConstant is an integer literal.
type IntegerConstant struct {
	T     *IntegerType
	Value int64
}

// NewInteger returns a constant of type t.
func NewInteger(t *IntegerType, v int64) *IntegerConstant {
	return &IntegerConstant{T: t, Value: v}
}

func ConstI32(v int32) *IntegerConstant { return NewInteger(I32, int64(v)) }
func ConstI64(v int64) *IntegerConstant { return NewInteger(I64, v) }

func (c *IntegerConstant) Type() Type { return c.T }

func (c *IntegerConstant) String() string {
	if c.T.Bits == 1 {
		if c.Value != 0 {
			return "true"
		}
		return "false"
	}
	return strconv.FormatInt(c.Value, 10)
}

// FloatingPointConstant is a float or double literal. It always renders
// in the exact hexadecimal double form LLVM accepts for both widths.
type FloatingPointConstant struct {
	T     *FloatingPointType
	Value float64
}

func ConstFloat(v float32) *FloatingPointConstant {
	return &FloatingPointConstant{T: Float, Value: float64(v)}
}

func ConstDouble(v float64) *FloatingPointConstant {
	return &FloatingPointConstant{T: Double, Value: v}
}

func (c *FloatingPointConstant) Type() Type { return c.T }

func (c *FloatingPointConstant) String() string {
	return fmt.Sprintf("0x%016X", math.Float64bits(c.Value))
}

// NullConstant is the null pointer of type T.
type NullConstant struct{ T Type }

func NewNull(t Type) *NullConstant     { return &NullConstant{T: t} }
func (c *NullConstant) Type() Type     { return c.T }
func (c *NullConstant) String() string { return "null" }

// ZeroInitializer is the all-zero value of an aggregate type.
type ZeroInitializer struct{ T Type }

func (c *ZeroInitializer) Type() Type     { return c.T }
func (c *ZeroInitializer) String() string { return "zeroinitializer" }

// Undef is an undefined value of type T.
type Undef struct{ T Type }

func (c *Undef) Type() Type     { return c.T }
func (c *Undef) String() string { return "undef" }

// Variable is a local SSA value or parameter, %name.
type Variable struct {
	Name string
	T    Type
}

func (v *Variable) Type() Type     { return v.T }
func (v *Variable) String() string { return "%" + quoteName(v.Name) }

// GlobalRef is the address of a global variable, @name. Its type is a
// pointer to the global's value type.
type GlobalRef struct {
	Name      string
	ValueType Type
}

// NewGlobalRef refers to a global of value type t.
func NewGlobalRef(name string, t Type) *GlobalRef {
	return &GlobalRef{Name: name, ValueType: t}
}

func (g *GlobalRef) Type() Type     { return PointerTo(g.ValueType) }
func (g *GlobalRef) String() string { return "@" + quoteName(g.Name) }

// FunctionRef is the address of a function, @name.
type FunctionRef struct {
	Name string
	Sig  *FunctionType
}

// NewFunctionRef refers to a function with signature sig.
func NewFunctionRef(name string, sig *FunctionType) *FunctionRef {
	return &FunctionRef{Name: name, Sig: sig}
}

func (f *FunctionRef) Type() Type     { return PointerTo(f.Sig) }
func (f *FunctionRef) String() string { return "@" + quoteName(f.Name) }

// ConstantBitcast is bitcast (v to T).
type ConstantBitcast struct {
	V Value
	T Type
}

func NewConstantBitcast(v Value, t Type) *ConstantBitcast {
	return &ConstantBitcast{V: v, T: t}
}

func (c *ConstantBitcast) Type() Type        { return c.T }
func (c *ConstantBitcast) Operands() []Value { return []Value{c.V} }
func (c *ConstantBitcast) String() string {
	return fmt.Sprintf("bitcast (%s to %s)", Typed(c.V), c.T)
}

// ConstantPtrtoint is ptrtoint (v to T).
type ConstantPtrtoint struct {
	V Value
	T Type
}

func (c *ConstantPtrtoint) Type() Type        { return c.T }
func (c *ConstantPtrtoint) Operands() []Value { return []Value{c.V} }
func (c *ConstantPtrtoint) String() string {
	return fmt.Sprintf("ptrtoint (%s to %s)", Typed(c.V), c.T)
}

// ConstantGetelementptr is an inbounds constant address computation. T is
// the resulting pointer type.
type ConstantGetelementptr struct {
	Base    Value
	Indices []int
	T       Type
}

func (c *ConstantGetelementptr) Type() Type        { return c.T }
func (c *ConstantGetelementptr) Operands() []Value { return []Value{c.Base} }
func (c *ConstantGetelementptr) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "getelementptr inbounds (%s, %s", Pointee(c.Base.Type()), Typed(c.Base))
	for _, i := range c.Indices {
		fmt.Fprintf(&sb, ", i32 %d", i)
	}
	sb.WriteByte(')')
	return sb.String()
}

// StructureConstant is { v1, v2, ... } of type T.
type StructureConstant struct {
	T      *StructureType
	Values []Value
}

// NewStructureConstant builds a literal structure constant whose type is
// derived from the values.
func NewStructureConstant(values ...Value) *StructureConstant {
	fields := make([]Type, len(values))
	for i, v := range values {
		fields[i] = v.Type()
	}
	return &StructureConstant{T: NewStructureType(fields...), Values: values}
}

func (c *StructureConstant) Type() Type        { return c.T }
func (c *StructureConstant) Operands() []Value { return c.Values }
func (c *StructureConstant) String() string {
	if len(c.Values) == 0 {
		return "{}"
	}
	parts := make([]string, len(c.Values))
	for i, v := range c.Values {
		parts[i] = Typed(v)
	}
	if c.T.Packed {
		return "<{ " + strings.Join(parts, ", ") + " }>"
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// ArrayConstant is [ v1, v2, ... ] of type T.
type ArrayConstant struct {
	T      *ArrayType
	Values []Value
}

// NewArrayConstant builds an array of elem from values.
func NewArrayConstant(elem Type, values ...Value) *ArrayConstant {
	return &ArrayConstant{T: &ArrayType{Size: len(values), Elem: elem}, Values: values}
}

func (c *ArrayConstant) Type() Type        { return c.T }
func (c *ArrayConstant) Operands() []Value { return c.Values }
func (c *ArrayConstant) String() string {
	parts := make([]string, len(c.Values))
	for i, v := range c.Values {
		parts[i] = Typed(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// BytesConstant is a c"..." byte array. No terminator is appended.
type BytesConstant struct{ Data []byte }

func (c *BytesConstant) Type() Type {
	return &ArrayType{Size: len(c.Data), Elem: I8}
}

func (c *BytesConstant) String() string {
	var sb strings.Builder
	sb.WriteString(`c"`)
	for _, b := range c.Data {
		if b < 0x20 || b >= 0x7f || b == '"' || b == '\\' {
			fmt.Fprintf(&sb, "\\%02X", b)
			continue
		}
		sb.WriteByte(b)
	}
	sb.WriteByte('"')
	return sb.String()
}
