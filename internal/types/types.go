// Package types maps JVM types and descriptors to LLVM types and defines
// the opaque runtime types every generated module refers to.
package types

import (
	"fmt"

	"aura/internal/ast"
	"aura/internal/llvm"
)

// ---------------------------------------------------------------------------
// Runtime types
// ---------------------------------------------------------------------------

var (
	Env    = &llvm.OpaqueType{Name: "Env"}
	Object = &llvm.OpaqueType{Name: "Object"}
	Class  = &llvm.OpaqueType{Name: "Class"}

	EnvPtr    = llvm.PointerTo(Env)
	ObjectPtr = llvm.PointerTo(Object)
	ClassPtr  = llvm.PointerTo(Class)

	// TrycatchContext is the runtime's exception context: the previous
	// context, the active selector and the saved jump state.
	TrycatchContext = llvm.NewNamedStructureType("TrycatchContext",
		llvm.I8Ptr, llvm.I32, &llvm.ArrayType{Size: jmpBufWords, Elem: llvm.I8Ptr})
	TrycatchContextPtr = llvm.PointerTo(TrycatchContext)

	// BcTrycatchContext extends TrycatchContext with the method's landing
	// pad table.
	BcTrycatchContext    = llvm.NewNamedStructureType("BcTrycatchContext", TrycatchContext, llvm.I8Ptr)
	BcTrycatchContextPtr = llvm.PointerTo(BcTrycatchContext)

	// LandingPadEntry pairs a catch class info pointer with the handler
	// dispatch index.
	LandingPadEntry = llvm.NewStructureType(llvm.I8Ptr, llvm.I32)
)

const jmpBufWords = 32

// Runtime returns the named types every module must define.
func Runtime() []llvm.Type {
	return []llvm.Type{Env, Object, Class, TrycatchContext, BcTrycatchContext}
}

// ---------------------------------------------------------------------------
// JVM -> LLVM
// ---------------------------------------------------------------------------

// Of returns the storage type of t: booleans and bytes are i8, chars and
// shorts i16 and every reference an Object*.
func Of(t *ast.Type) llvm.Type {
	switch t.Kind {
	case ast.VoidKind:
		return llvm.Void
	case ast.BooleanKind, ast.ByteKind:
		return llvm.I8
	case ast.CharKind, ast.ShortKind:
		return llvm.I16
	case ast.IntKind:
		return llvm.I32
	case ast.LongKind:
		return llvm.I64
	case ast.FloatKind:
		return llvm.Float
	case ast.DoubleKind:
		return llvm.Double
	}
	return ObjectPtr
}

// Local returns the type t has in computation positions. Sub-int types
// widen to i32.
func Local(t *ast.Type) llvm.Type {
	if t.IsSubInt() {
		return llvm.I32
	}
	return Of(t)
}

// OfDescriptor parses a field descriptor and maps it.
func OfDescriptor(desc string) (llvm.Type, error) {
	t, err := ast.ParseDescriptor(desc)
	if err != nil {
		return nil, err
	}
	return Of(t), nil
}

// IsUnsigned reports whether t zero-extends when widened.
func IsUnsigned(t *ast.Type) bool {
	return t.Kind == ast.CharKind || t.Kind == ast.BooleanKind
}

// MethodType returns the function type of a compiled method: Env* first,
// then the receiver for instance methods, then the parameters.
func MethodType(params []*ast.Type, ret *ast.Type, static bool) *llvm.FunctionType {
	ps := []llvm.Type{EnvPtr}
	if !static {
		ps = append(ps, ObjectPtr)
	}
	for _, p := range params {
		ps = append(ps, Of(p))
	}
	return llvm.NewFunctionType(Of(ret), ps...)
}

// MethodTypeOf is MethodType for a declared method.
func MethodTypeOf(m *ast.Method) *llvm.FunctionType {
	return MethodType(m.Params, m.Return, m.IsStatic())
}

// MethodTypeFromDescriptor is MethodType for a method descriptor.
func MethodTypeFromDescriptor(desc string, static bool) (*llvm.FunctionType, error) {
	params, ret, err := ast.ParseMethodDescriptor(desc)
	if err != nil {
		return nil, err
	}
	return MethodType(params, ret, static), nil
}

// ---------------------------------------------------------------------------
// Primitive array helpers
// ---------------------------------------------------------------------------

var primitiveNames = map[ast.TypeKind]string{
	ast.BooleanKind: "Boolean",
	ast.ByteKind:    "Byte",
	ast.CharKind:    "Char",
	ast.ShortKind:   "Short",
	ast.IntKind:     "Int",
	ast.LongKind:    "Long",
	ast.FloatKind:   "Float",
	ast.DoubleKind:  "Double",
}

// PrimitiveName returns the capitalised name used in runtime helper
// symbols, e.g. "Int" for int.
func PrimitiveName(t *ast.Type) string {
	if n, ok := primitiveNames[t.Kind]; ok {
		return n
	}
	return "Object"
}

// ElementSuffix returns the suffix of the array load/store helpers for
// element type t: the descriptor character, or "L" for references.
func ElementSuffix(t *ast.Type) string {
	if t.IsPrimitive() {
		return t.Descriptor()
	}
	return "L"
}

// ArrayClassSymbol returns the global holding the Class* of the
// one-dimensional array with primitive element type elem.
func ArrayClassSymbol(elem *ast.Type) string {
	if !elem.IsPrimitive() {
		panic(fmt.Sprintf("types: %s is not primitive", elem))
	}
	return "array_" + elem.Descriptor()
}

// HasPrimitiveElements reports whether t is a one-dimensional array of a
// primitive type.
func HasPrimitiveElements(t *ast.Type) bool {
	return t.Kind == ast.ArrayKind && t.Elem.IsPrimitive()
}

// ---------------------------------------------------------------------------
// Width conversion
// ---------------------------------------------------------------------------

// Truncate narrows a 32-bit value to the storage width of t, as a store
// to a sub-int location does.
func Truncate(v int32, t *ast.Type) int32 {
	switch t.Kind {
	case ast.BooleanKind, ast.ByteKind:
		return int32(int8(v))
	case ast.CharKind, ast.ShortKind:
		return int32(int16(v))
	}
	return v
}

// Extend widens a stored sub-int value back to 32 bits using the
// signedness of t.
func Extend(v int32, t *ast.Type) int32 {
	switch t.Kind {
	case ast.BooleanKind:
		return int32(uint8(v))
	case ast.ByteKind:
		return int32(int8(v))
	case ast.CharKind:
		return int32(uint16(v))
	case ast.ShortKind:
		return int32(int16(v))
	}
	return v
}
