package ast

import "strconv"

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

type IntConst struct{ Value int32 }
type LongConst struct{ Value int64 }
type FloatConst struct{ Value float32 }
type DoubleConst struct{ Value float64 }
type NullConst struct{}

// StringConst is a java/lang/String literal.
type StringConst struct{ Value string }

// ClassConst is a class literal. For array classes Class is an array type.
type ClassConst struct{ Class *Type }

func (c *IntConst) Type() *Type    { return IntType }
func (c *LongConst) Type() *Type   { return LongType }
func (c *FloatConst) Type() *Type  { return FloatType }
func (c *DoubleConst) Type() *Type { return DoubleType }
func (c *NullConst) Type() *Type   { return NullType }
func (c *StringConst) Type() *Type { return ObjectType("java/lang/String") }
func (c *ClassConst) Type() *Type  { return ObjectType("java/lang/Class") }

func (c *IntConst) valueNode()    {}
func (c *LongConst) valueNode()   {}
func (c *FloatConst) valueNode()  {}
func (c *DoubleConst) valueNode() {}
func (c *NullConst) valueNode()   {}
func (c *StringConst) valueNode() {}
func (c *ClassConst) valueNode()  {}

func (c *IntConst) String() string { return strconv.FormatInt(int64(c.Value), 10) }

// IsConstant reports whether v is a constant immediate.
func IsConstant(v Value) bool {
	switch v.(type) {
	case *IntConst, *LongConst, *FloatConst, *DoubleConst, *NullConst, *StringConst, *ClassConst:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Member references
// ---------------------------------------------------------------------------

// FieldRef names a field by owner, name and type.
type FieldRef struct {
	Owner string
	Name  string
	Type  *Type
}

// Descriptor returns the field descriptor.
func (f FieldRef) Descriptor() string { return f.Type.Descriptor() }

// MethodRef names a method by owner, name and signature.
type MethodRef struct {
	Owner  string
	Name   string
	Params []*Type
	Return *Type
}

// Descriptor returns the method descriptor.
func (m MethodRef) Descriptor() string { return MethodDescriptor(m.Params, m.Return) }

func (m MethodRef) String() string { return m.Owner + "." + m.Name + m.Descriptor() }

// ---------------------------------------------------------------------------
// References (l-values and identity sources)
// ---------------------------------------------------------------------------

// ThisRef is the receiver of an instance method.
type ThisRef struct{ Class *Type }

// ParamRef is the Index-th declared parameter (0-based, excluding this).
type ParamRef struct {
	Index     int
	ParamType *Type
}

// CaughtExceptionRef is the exception being handled at a trap handler.
type CaughtExceptionRef struct{}

// ArrayRef is Base[Index].
type ArrayRef struct {
	Base  Value
	Index Value
}

// InstanceFieldRef is Base.<Field>.
type InstanceFieldRef struct {
	Base  Value
	Field FieldRef
}

// StaticFieldRef is <Field>.
type StaticFieldRef struct{ Field FieldRef }

func (r *ThisRef) Type() *Type            { return r.Class }
func (r *ParamRef) Type() *Type           { return r.ParamType }
func (r *CaughtExceptionRef) Type() *Type { return ObjectType("java/lang/Throwable") }
func (r *InstanceFieldRef) Type() *Type   { return r.Field.Type }
func (r *StaticFieldRef) Type() *Type     { return r.Field.Type }

// Type returns the array element type. Untyped bases yield Object.
func (r *ArrayRef) Type() *Type {
	bt := r.Base.Type()
	if bt.Kind == ArrayKind {
		return bt.Elem
	}
	return ObjectType("java/lang/Object")
}

func (r *ThisRef) valueNode()            {}
func (r *ParamRef) valueNode()           {}
func (r *CaughtExceptionRef) valueNode() {}
func (r *ArrayRef) valueNode()           {}
func (r *InstanceFieldRef) valueNode()   {}
func (r *StaticFieldRef) valueNode()     {}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// BinOp is a binary or comparison operator.
type BinOp int

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Rem
	And
	Or
	Xor
	Shl
	Shr
	Ushr
	Cmp
	Cmpl
	Cmpg
	Eq
	Ne
	Gt
	Ge
	Lt
	Le
)

var binOpNames = [...]string{
	Add: "+", Sub: "-", Mul: "*", Div: "/", Rem: "%",
	And: "&", Or: "|", Xor: "^", Shl: "<<", Shr: ">>", Ushr: ">>>",
	Cmp: "cmp", Cmpl: "cmpl", Cmpg: "cmpg",
	Eq: "==", Ne: "!=", Gt: ">", Ge: ">=", Lt: "<", Le: "<=",
}

func (op BinOp) String() string { return binOpNames[op] }

// IsCondition reports whether op is one of the branch comparison operators.
func (op BinOp) IsCondition() bool { return op >= Eq }

// IsShift reports whether op is a shift.
func (op BinOp) IsShift() bool { return op == Shl || op == Shr || op == Ushr }

// BinopExpr is X op Y.
type BinopExpr struct {
	Op BinOp
	X  Value
	Y  Value
}

// Type follows JVM numeric promotion: comparisons yield int, sub-int
// operands yield int.
func (e *BinopExpr) Type() *Type {
	if e.Op == Cmp || e.Op == Cmpl || e.Op == Cmpg || e.Op.IsCondition() {
		return IntType
	}
	t := e.X.Type()
	if t.IsSubInt() {
		return IntType
	}
	return t
}

// NegExpr is -X.
type NegExpr struct{ X Value }

// LengthExpr is lengthof X.
type LengthExpr struct{ X Value }

// CastExpr is (To) X.
type CastExpr struct {
	X  Value
	To *Type
}

// InstanceOfExpr is X instanceof Check.
type InstanceOfExpr struct {
	X     Value
	Check *Type
}

// NewExpr allocates an instance of Class.
type NewExpr struct{ Class string }

// NewArrayExpr allocates a one-dimensional array of Elem.
type NewArrayExpr struct {
	Elem *Type
	Size Value
}

// NewMultiArrayExpr allocates ArrayType with the leading len(Sizes)
// dimensions sized.
type NewMultiArrayExpr struct {
	ArrayType *Type
	Sizes     []Value
}

// InvokeKind selects the dispatch flavour of an invoke.
type InvokeKind int

const (
	StaticInvoke InvokeKind = iota
	VirtualInvoke
	SpecialInvoke
	InterfaceInvoke
)

func (k InvokeKind) String() string {
	switch k {
	case StaticInvoke:
		return "staticinvoke"
	case VirtualInvoke:
		return "virtualinvoke"
	case SpecialInvoke:
		return "specialinvoke"
	case InterfaceInvoke:
		return "interfaceinvoke"
	}
	return "invoke"
}

// InvokeExpr is a method call. Base is nil for static invokes.
type InvokeExpr struct {
	Kind   InvokeKind
	Base   Value
	Method MethodRef
	Args   []Value
}

func (e *NegExpr) Type() *Type {
	if t := e.X.Type(); !t.IsSubInt() {
		return t
	}
	return IntType
}
func (e *LengthExpr) Type() *Type        { return IntType }
func (e *CastExpr) Type() *Type          { return e.To }
func (e *InstanceOfExpr) Type() *Type    { return BooleanType }
func (e *NewExpr) Type() *Type           { return ObjectType(e.Class) }
func (e *NewArrayExpr) Type() *Type      { return ArrayOf(e.Elem) }
func (e *NewMultiArrayExpr) Type() *Type { return e.ArrayType }
func (e *InvokeExpr) Type() *Type        { return e.Method.Return }

func (e *BinopExpr) valueNode()         {}
func (e *NegExpr) valueNode()           {}
func (e *LengthExpr) valueNode()        {}
func (e *CastExpr) valueNode()          {}
func (e *InstanceOfExpr) valueNode()    {}
func (e *NewExpr) valueNode()           {}
func (e *NewArrayExpr) valueNode()      {}
func (e *NewMultiArrayExpr) valueNode() {}
func (e *InvokeExpr) valueNode()        {}
