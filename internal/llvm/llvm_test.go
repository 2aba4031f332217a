package llvm

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Types and values
// ---------------------------------------------------------------------------

func TestTypeStrings(t *testing.T) {
	ctx := NewNamedStructureType("Ctx", I8Ptr, I32)
	tests := []struct {
		typ  Type
		want string
	}{
		{I1, "i1"},
		{I64, "i64"},
		{Double, "double"},
		{PointerTo(PointerTo(I8)), "i8**"},
		{&ArrayType{Size: 3, Elem: I16}, "[3 x i16]"},
		{NewStructureType(I8Ptr, I32), "{ i8*, i32 }"},
		{&StructureType{Fields: []Type{I8, I64}, Packed: true}, "<{ i8, i64 }>"},
		{ctx, "%Ctx"},
		{&OpaqueType{Name: "Env"}, "%Env"},
		{NewFunctionType(I32, I8Ptr, I64), "i32 (i8*, i64)"},
		{&FunctionType{Return: Void, Params: []Type{I8Ptr}, Varargs: true}, "void (i8*, ...)"},
		{&OpaqueType{Name: "[J]a/B"}, `%"[J]a/B"`},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
	if !TypeEqual(PointerTo(I32), I32Ptr) {
		t.Errorf("equal pointer types compare unequal")
	}
	if TypeEqual(ctx, NewStructureType(I8Ptr, I32)) {
		t.Errorf("named structure compared equal to literal")
	}
}

func TestConstants(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{NewInteger(I1, 1), "i1 true"},
		{NewInteger(I8, -1), "i8 -1"},
		{ConstI64(1 << 40), "i64 1099511627776"},
		{ConstDouble(1.0), "double 0x3FF0000000000000"},
		{ConstFloat(0.1), "float 0x3FB99999A0000000"},
		{NewNull(I8Ptr), "i8* null"},
		{NewStructureConstant(NewNull(I8Ptr), ConstI32(0)), "{ i8*, i32 } { i8* null, i32 0 }"},
		{NewArrayConstant(I32, ConstI32(1), ConstI32(2)), "[2 x i32] [i32 1, i32 2]"},
		{&BytesConstant{Data: []byte("a\"b\x00")}, `[4 x i8] c"a\22b\00"`},
		{NewConstantBitcast(NewGlobalRef("g", I32), I8Ptr), "i8* bitcast (i32* @g to i8*)"},
	}
	for _, tt := range tests {
		if got := Typed(tt.v); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

func TestQuoteName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"simple_name.1", "simple_name.1"},
		{"1abc", `"1abc"`},
		{"[J]java/lang/Object.<init>()V", `"[J]java/lang/Object.<init>()V"`},
		{`a"b`, `"a\22b"`},
	}
	for _, tt := range tests {
		if got := quoteName(tt.in); got != tt.want {
			t.Errorf("quoteName(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

func TestFunctionRendering(t *testing.T) {
	f := NewFunction("max", External, NewFunctionType(I32, I32, I32), "nounwind")
	entry := f.Entry()
	slot := entry.AllocaNamed("local.x", I32)
	entry.Store(f.Param(0), slot, true)
	gt := entry.Icmp(CondSgt, f.Param(0), f.Param(1))
	then := f.NewBasicBlock("then")
	els := f.NewBasicBlock("then")
	entry.CondBr(gt, then, els)
	then.Ret(then.Load(slot, true))
	els.Ret(f.Param(1))

	want := `define i32 @max(i32 %p0, i32 %p1) nounwind {
entry:
    %local.x = alloca i32
    store volatile i32 %p0, i32* %local.x
    %t0 = icmp sgt i32 %p0, %p1
    br i1 %t0, label %then, label %then.1

then:
    %t1 = load volatile i32, i32* %local.x
    ret i32 %t1

then.1:
    ret i32 %p1
}
`
	if got := f.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
	if !entry.Terminated() || f.Block("then.1") != els {
		t.Errorf("block bookkeeping is wrong")
	}
}

func TestCallAndSwitch(t *testing.T) {
	f := NewFunction("f", Internal, NewFunctionType(Void, I32))
	b := f.Entry()
	callee := NewFunctionRef("printf", &FunctionType{Return: I32, Params: []Type{I8Ptr}, Varargs: true})
	r := b.Call(callee, NewNull(I8Ptr), f.Param(0))
	if r == nil {
		t.Fatal("non-void call returned nil")
	}
	if v := b.Call(NewFunctionRef("g", NewFunctionType(Void))); v != nil {
		t.Errorf("void call returned %v", v)
	}
	d := f.NewBasicBlock("d")
	c := f.NewBasicBlock("c")
	b.Switch(f.Param(0), d, SwitchCase{Value: ConstI32(7), Target: c})
	d.Ret(nil)
	c.Unreachable()

	out := f.String()
	for _, want := range []string{
		"define internal void @f(i32 %p0) {",
		"%t0 = call i32 (i8*, ...) @printf(i8* null, i32 %p0)",
		"call void @g()",
		"switch i32 %p0, label %d [\n    i32 7, label %c\n  ]",
		"ret void",
		"unreachable",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

// ---------------------------------------------------------------------------
// Modules
// ---------------------------------------------------------------------------

func TestModuleAutoDeclares(t *testing.T) {
	m := NewModule()
	m.Header = []string{`target triple = "x86_64-unknown-linux-gnu"`}
	m.AddType(&OpaqueType{Name: "Env"})
	m.AddType(&OpaqueType{Name: "Env"})

	f := NewFunction("main", External, NewFunctionType(I32))
	b := f.Entry()
	b.Call(NewFunctionRef("helper", NewFunctionType(Void, I8Ptr)), m.GetString([]byte("hi")))
	b.Load(NewGlobalRef("counter", I32), false)
	b.Call(NewFunctionRef("declared", NewFunctionType(Void)))
	b.Ret(ConstI32(0))
	if err := m.AddFunction(f); err != nil {
		t.Fatal(err)
	}
	m.AddDeclaration(&FunctionDeclaration{Name: "declared", Sig: NewFunctionType(Void)})
	if err := m.AddFunction(NewFunction("main", External, NewFunctionType(I32))); err == nil {
		t.Errorf("expected duplicate symbol error")
	}

	out := m.String()
	for _, want := range []string{
		`target triple = "x86_64-unknown-linux-gnu"`,
		"%Env = type opaque",
		`@str.0 = private unnamed_addr constant [3 x i8] c"hi\00"`,
		"@counter = external global i32",
		"declare void @declared()",
		"declare void @helper(i8*)",
		"getelementptr inbounds ([3 x i8], [3 x i8]* @str.0, i32 0, i32 0)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Count(out, "%Env = type opaque") != 1 {
		t.Errorf("type emitted twice")
	}
	if strings.Count(out, "declare void @declared()") != 1 {
		t.Errorf("declaration emitted twice")
	}
}

func TestGetStringDeduplicates(t *testing.T) {
	m := NewModule()
	a := m.GetString([]byte("x"))
	b := m.GetString([]byte("x"))
	c := m.GetString([]byte("y"))
	if a.String() != b.String() {
		t.Errorf("same string produced different globals")
	}
	if a.String() == c.String() {
		t.Errorf("different strings share a global")
	}
	if len(m.Globals()) != 2 {
		t.Errorf("expected 2 globals, got %d", len(m.Globals()))
	}
}
