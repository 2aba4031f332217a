package ast

import (
	"fmt"
	"strings"
)

// TypeKind discriminates JVM types.
type TypeKind int

const (
	VoidKind TypeKind = iota
	BooleanKind
	ByteKind
	CharKind
	ShortKind
	IntKind
	LongKind
	FloatKind
	DoubleKind
	ClassKind
	ArrayKind
	NullKind
)

// Type is a JVM type. ClassName is set for ClassKind; Elem for ArrayKind.
type Type struct {
	Kind      TypeKind
	ClassName string
	Elem      *Type
}

var (
	VoidType    = &Type{Kind: VoidKind}
	BooleanType = &Type{Kind: BooleanKind}
	ByteType    = &Type{Kind: ByteKind}
	CharType    = &Type{Kind: CharKind}
	ShortType   = &Type{Kind: ShortKind}
	IntType     = &Type{Kind: IntKind}
	LongType    = &Type{Kind: LongKind}
	FloatType   = &Type{Kind: FloatKind}
	DoubleType  = &Type{Kind: DoubleKind}
	NullType    = &Type{Kind: NullKind}
)

// ObjectType returns the class type for an internal name.
func ObjectType(name string) *Type {
	return &Type{Kind: ClassKind, ClassName: name}
}

// ArrayOf returns the array type with the given element type.
func ArrayOf(elem *Type) *Type {
	return &Type{Kind: ArrayKind, Elem: elem}
}

var primitiveNames = map[string]*Type{
	"void":    VoidType,
	"boolean": BooleanType,
	"byte":    ByteType,
	"char":    CharType,
	"short":   ShortType,
	"int":     IntType,
	"long":    LongType,
	"float":   FloatType,
	"double":  DoubleType,
}

// PrimitiveByName returns the primitive type for a Java keyword such as "int".
func PrimitiveByName(name string) (*Type, bool) {
	t, ok := primitiveNames[name]
	return t, ok
}

// IsPrimitive reports whether t is a primitive (non-void) type.
func (t *Type) IsPrimitive() bool {
	return t.Kind >= BooleanKind && t.Kind <= DoubleKind
}

// IsRef reports whether t is a reference type (class, array or null).
func (t *Type) IsRef() bool {
	return t.Kind == ClassKind || t.Kind == ArrayKind || t.Kind == NullKind
}

// IsIntegral reports whether t is held in an integer register.
func (t *Type) IsIntegral() bool {
	return t.Kind >= BooleanKind && t.Kind <= LongKind
}

// IsFloating reports whether t is float or double.
func (t *Type) IsFloating() bool {
	return t.Kind == FloatKind || t.Kind == DoubleKind
}

// IsSubInt reports whether t is narrower than int.
func (t *Type) IsSubInt() bool {
	return t.Kind >= BooleanKind && t.Kind <= ShortKind
}

// IsArray reports whether t is an array type.
func (t *Type) IsArray() bool { return t.Kind == ArrayKind }

// IsPrimitiveArray reports whether t is an array whose innermost element is
// primitive.
func (t *Type) IsPrimitiveArray() bool {
	return t.Kind == ArrayKind && t.BaseType().IsPrimitive()
}

// Dimensions returns the number of array dimensions.
func (t *Type) Dimensions() int {
	n := 0
	for c := t; c != nil && c.Kind == ArrayKind; c = c.Elem {
		n++
	}
	return n
}

// BaseType returns the innermost element type of an array, or t itself.
func (t *Type) BaseType() *Type {
	c := t
	for c.Kind == ArrayKind {
		c = c.Elem
	}
	return c
}

// Equal reports structural equality.
func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case ClassKind:
		return t.ClassName == o.ClassName
	case ArrayKind:
		return t.Elem.Equal(o.Elem)
	}
	return true
}

// Descriptor returns the JVM field descriptor of t.
func (t *Type) Descriptor() string {
	switch t.Kind {
	case VoidKind:
		return "V"
	case BooleanKind:
		return "Z"
	case ByteKind:
		return "B"
	case CharKind:
		return "C"
	case ShortKind:
		return "S"
	case IntKind:
		return "I"
	case LongKind:
		return "J"
	case FloatKind:
		return "F"
	case DoubleKind:
		return "D"
	case ClassKind:
		return "L" + t.ClassName + ";"
	case ArrayKind:
		return "[" + t.Elem.Descriptor()
	}
	return "Ljava/lang/Object;"
}

// InternalName returns the name used for class lookups: the class name for
// class types and the descriptor for array types.
func (t *Type) InternalName() string {
	if t.Kind == ClassKind {
		return t.ClassName
	}
	return t.Descriptor()
}

func (t *Type) String() string {
	switch t.Kind {
	case ClassKind:
		return strings.ReplaceAll(t.ClassName, "/", ".")
	case ArrayKind:
		return t.Elem.String() + "[]"
	case NullKind:
		return "null_type"
	}
	for name, p := range primitiveNames {
		if p.Kind == t.Kind {
			return name
		}
	}
	return "?"
}

// MethodDescriptor builds a descriptor from parameter and return types.
func MethodDescriptor(params []*Type, ret *Type) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range params {
		sb.WriteString(p.Descriptor())
	}
	sb.WriteByte(')')
	sb.WriteString(ret.Descriptor())
	return sb.String()
}

// ParseDescriptor parses a single field descriptor.
func ParseDescriptor(desc string) (*Type, error) {
	t, rest, err := parseDesc(desc)
	if err != nil {
		return nil, err
	}
	if rest != "" {
		return nil, fmt.Errorf("trailing characters in descriptor %q", desc)
	}
	return t, nil
}

// ParseMethodDescriptor splits a method descriptor into parameter and
// return types.
func ParseMethodDescriptor(desc string) ([]*Type, *Type, error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, nil, fmt.Errorf("invalid method descriptor %q", desc)
	}
	rest := desc[1:]
	var params []*Type
	for !strings.HasPrefix(rest, ")") {
		if rest == "" {
			return nil, nil, fmt.Errorf("unterminated method descriptor %q", desc)
		}
		t, r, err := parseDesc(rest)
		if err != nil {
			return nil, nil, err
		}
		params = append(params, t)
		rest = r
	}
	ret, err := ParseDescriptor(rest[1:])
	if err != nil {
		return nil, nil, err
	}
	return params, ret, nil
}

func parseDesc(s string) (*Type, string, error) {
	if s == "" {
		return nil, "", fmt.Errorf("empty descriptor")
	}
	switch s[0] {
	case 'V':
		return VoidType, s[1:], nil
	case 'Z':
		return BooleanType, s[1:], nil
	case 'B':
		return ByteType, s[1:], nil
	case 'C':
		return CharType, s[1:], nil
	case 'S':
		return ShortType, s[1:], nil
	case 'I':
		return IntType, s[1:], nil
	case 'J':
		return LongType, s[1:], nil
	case 'F':
		return FloatType, s[1:], nil
	case 'D':
		return DoubleType, s[1:], nil
	case 'L':
		end := strings.IndexByte(s, ';')
		if end < 0 {
			return nil, "", fmt.Errorf("unterminated class descriptor %q", s)
		}
		return ObjectType(s[1:end]), s[end+1:], nil
	case '[':
		elem, rest, err := parseDesc(s[1:])
		if err != nil {
			return nil, "", err
		}
		return ArrayOf(elem), rest, nil
	}
	return nil, "", fmt.Errorf("invalid descriptor %q", s)
}
