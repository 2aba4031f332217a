package types

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"aura/internal/ast"
	"aura/internal/llvm"
)

func TestOf(t *testing.T) {
	tests := []struct {
		typ   *ast.Type
		want  string
		local string
	}{
		{ast.BooleanType, "i8", "i32"},
		{ast.ByteType, "i8", "i32"},
		{ast.CharType, "i16", "i32"},
		{ast.ShortType, "i16", "i32"},
		{ast.IntType, "i32", "i32"},
		{ast.LongType, "i64", "i64"},
		{ast.FloatType, "float", "float"},
		{ast.DoubleType, "double", "double"},
		{ast.VoidType, "void", "void"},
		{ast.ObjectType("java/lang/String"), "%Object*", "%Object*"},
		{ast.ArrayOf(ast.IntType), "%Object*", "%Object*"},
		{ast.NullType, "%Object*", "%Object*"},
	}
	for _, tt := range tests {
		if got := Of(tt.typ).String(); got != tt.want {
			t.Errorf("Of(%s) = %s, want %s", tt.typ, got, tt.want)
		}
		if got := Local(tt.typ).String(); got != tt.local {
			t.Errorf("Local(%s) = %s, want %s", tt.typ, got, tt.local)
		}
	}
}

func TestMethodType(t *testing.T) {
	ft, err := MethodTypeFromDescriptor("(IZLjava/lang/Object;)J", false)
	if err != nil {
		t.Fatal(err)
	}
	if got := ft.String(); got != "i64 (%Env*, %Object*, i32, i8, %Object*)" {
		t.Errorf("instance: got %s", got)
	}
	ft, _ = MethodTypeFromDescriptor("()V", true)
	if got := ft.String(); got != "void (%Env*)" {
		t.Errorf("static: got %s", got)
	}
	if _, err := MethodTypeFromDescriptor("(Q)V", true); err == nil {
		t.Errorf("expected an error for an invalid descriptor")
	}
}

func TestIsUnsigned(t *testing.T) {
	for _, typ := range []*ast.Type{ast.CharType, ast.BooleanType} {
		if !IsUnsigned(typ) {
			t.Errorf("%s should be unsigned", typ)
		}
	}
	for _, typ := range []*ast.Type{ast.ByteType, ast.ShortType, ast.IntType, ast.LongType} {
		if IsUnsigned(typ) {
			t.Errorf("%s should be signed", typ)
		}
	}
}

// Narrowing a widened value and widening it again must reproduce the
// widened bit pattern for every value the narrow type can hold.
func TestNarrowWidenRoundTrip(t *testing.T) {
	tests := []struct {
		typ      *ast.Type
		min, max int32
	}{
		{ast.ByteType, math.MinInt8, math.MaxInt8},
		{ast.ShortType, math.MinInt16, math.MaxInt16},
		{ast.CharType, 0, math.MaxUint16},
		{ast.BooleanType, 0, 1},
	}
	for _, tt := range tests {
		for v := tt.min; v <= tt.max; v++ {
			if got := Extend(Truncate(v, tt.typ), tt.typ); got != v {
				t.Fatalf("%s: %d round-tripped to %d", tt.typ, v, got)
			}
		}
	}
	if got := Extend(Truncate(math.MinInt32, ast.IntType), ast.IntType); got != math.MinInt32 {
		t.Errorf("int must pass through unchanged, got %d", got)
	}
}

func TestArrayHelpers(t *testing.T) {
	if got := ArrayClassSymbol(ast.IntType); got != "array_I" {
		t.Errorf("got %s", got)
	}
	if !HasPrimitiveElements(ast.ArrayOf(ast.ByteType)) {
		t.Errorf("byte[] has primitive elements")
	}
	if HasPrimitiveElements(ast.ArrayOf(ast.ArrayOf(ast.ByteType))) {
		t.Errorf("byte[][] has reference elements")
	}
	if ElementSuffix(ast.ObjectType("x/Y")) != "L" || ElementSuffix(ast.CharType) != "C" {
		t.Errorf("unexpected element suffixes")
	}
	if PrimitiveName(ast.LongType) != "Long" {
		t.Errorf("got %s", PrimitiveName(ast.LongType))
	}
}

func TestRuntimeTypes(t *testing.T) {
	m := llvm.NewModule()
	for _, rt := range Runtime() {
		m.AddType(rt)
	}
	out := m.String()
	for _, want := range []string{
		"%Env = type opaque",
		"%TrycatchContext = type { i8*, i32, [32 x i8*] }",
		"%BcTrycatchContext = type { %TrycatchContext, i8* }",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

// ---------------------------------------------------------------------------
// Symbols
// ---------------------------------------------------------------------------

func TestSymbols(t *testing.T) {
	c := &ast.Class{Name: "a/B"}
	m := &ast.Method{Name: "f", Params: []*ast.Type{ast.IntType}, Return: ast.VoidType, Class: c}
	tests := []struct{ got, want string }{
		{MethodSymbolOf(m), "[J]a/B.f(I)V"},
		{SynchronizedWrapperSymbol("a/B", "f", "(I)V"), "[J]a/B.f(I)V[synchronized]"},
		{BridgePtrSymbol(m), "[J]a/B.f(I)V[bridgeptr]"},
		{GetterSymbol("a/B", "x", "J"), "[J]a/B.x(J)[get]"},
		{SetterSymbol("a/B", "x", "J"), "[J]a/B.x(J)[set]"},
		{AllocatorSymbol("a/B"), "[J]a/B[allocator]"},
		{LdcInternalSymbol("a/B"), "[J]a/B[ldcint]"},
		{InfoStructSymbol("a/B"), "[J]a/B[info]"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %s, want %s", tt.got, tt.want)
		}
	}
	cs := BridgeCSymbol(m)
	if !strings.HasPrefix(cs, "bridge_a_B_f_") || cs != BridgeCSymbol(m) {
		t.Errorf("unstable or unsafe C symbol %q", cs)
	}
	m2 := &ast.Method{Name: "f", Params: []*ast.Type{ast.LongType}, Return: ast.VoidType, Class: c}
	if BridgeCSymbol(m2) == cs {
		t.Errorf("overloads share a C symbol")
	}
}

func TestLdcStringSymbolIsStable(t *testing.T) {
	a := LdcStringSymbol(ModifiedUTF8("hello"))
	b := LdcStringSymbol(ModifiedUTF8("hello"))
	if a != b {
		t.Errorf("symbol not deterministic: %s vs %s", a, b)
	}
	if a == LdcStringSymbol(ModifiedUTF8("hellO")) {
		t.Errorf("different strings share a symbol")
	}
	if LdcStringPtrSymbol(ModifiedUTF8("hello")) != a+"[ptr]" {
		t.Errorf("ptr symbol does not extend the accessor symbol")
	}
}

// ---------------------------------------------------------------------------
// Strings
// ---------------------------------------------------------------------------

func TestModifiedUTF8(t *testing.T) {
	tests := []struct {
		in   string
		want []byte
		n    int
	}{
		{"abc", []byte("abc"), 3},
		{"a\x00b", []byte{'a', 0xc0, 0x80, 'b'}, 3},
		{"é", []byte{0xc3, 0xa9}, 1},
		{"€", []byte{0xe2, 0x82, 0xac}, 1},
		// U+1F600 is a surrogate pair, each half encoded on its own.
		{"\U0001F600", []byte{0xed, 0xa0, 0xbd, 0xed, 0xb8, 0x80}, 2},
	}
	for _, tt := range tests {
		if got := ModifiedUTF8(tt.in); !bytes.Equal(got, tt.want) {
			t.Errorf("ModifiedUTF8(%q) = % x, want % x", tt.in, got, tt.want)
		}
		if got := JavaLength(tt.in); got != tt.n {
			t.Errorf("JavaLength(%q) = %d, want %d", tt.in, got, tt.n)
		}
	}
}

func TestCSafe(t *testing.T) {
	if got := CSafe("java/lang/Object.<init>"); got != "java_lang_Object__init_" {
		t.Errorf("got %s", got)
	}
}
