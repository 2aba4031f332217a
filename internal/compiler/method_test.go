package compiler

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"aura/internal/ast"
	"aura/internal/classpath"
	"aura/internal/codegen"
	"aura/internal/llvm"
	"aura/internal/parser"
	"aura/internal/trampoline"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

const baseClasses = `
class java.lang.Object {
}
class java.lang.Throwable {
}
class java.lang.Exception extends java.lang.Throwable {
}
`

func testConfig(t *testing.T) *Config {
	t.Helper()
	target, err := codegen.ResolveTarget("linux", "amd64")
	if err != nil {
		t.Fatal(err)
	}
	cfg := &Config{
		Target:  target,
		Threads: 2,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if err := cfg.Normalize(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

// testClassPath parses src together with the java.lang basics.
func testClassPath(t *testing.T, src string) *classpath.ClassPath {
	t.Helper()
	classes, err := parser.ParseSource(baseClasses + src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cp := classpath.New()
	for _, c := range classes {
		cp.Add(c)
	}
	return cp
}

func findMethod(t *testing.T, cp *classpath.ClassPath, class, name string) *ast.Method {
	t.Helper()
	c := cp.Lookup(class)
	if c == nil {
		t.Fatalf("class %s not found", class)
	}
	for _, m := range c.Methods {
		if m.Name == name {
			return m
		}
	}
	t.Fatalf("method %s.%s not found", class, name)
	return nil
}

// compileMethod compiles class.name from src into a fresh module.
func compileMethod(t *testing.T, cfg *Config, src, class, name string) (*llvm.Module, *Result, error) {
	t.Helper()
	cp := testClassPath(t, src)
	mc := NewClassCompiler(cfg, cp).Methods
	m := llvm.NewModule()
	res, err := mc.Compile(m, findMethod(t, cp, class, name))
	return m, res, err
}

func mustCompileMethod(t *testing.T, src, class, name string) (*llvm.Module, *Result) {
	t.Helper()
	m, res, err := compileMethod(t, testConfig(t), src, class, name)
	if err != nil {
		t.Fatalf("compile %s.%s: %v", class, name, err)
	}
	return m, res
}

// ---------------------------------------------------------------------------
// Lowering
// ---------------------------------------------------------------------------

func TestCompileSimpleMethod(t *testing.T) {
	_, res := mustCompileMethod(t, `
class T {
    static int add(int, int) {
        int a, b, r;
        a := @parameter0: int;
        b := @parameter1: int;
        r = a + b;
        return r;
    }
}`, "T", "add")
	fn := res.Function
	if fn.Name != "[J]T.add(II)I" {
		t.Errorf("symbol = %s", fn.Name)
	}
	if fn.Linkage != llvm.Weak {
		t.Errorf("linkage = %q, want weak on linux", fn.Linkage)
	}
	text := fn.String()
	for _, want := range []string{" = add i32 ", "ret i32 "} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in\n%s", want, text)
		}
	}
	if strings.Contains(text, "_bcTrycatchEnter") {
		t.Errorf("method without traps enters a trycatch context:\n%s", text)
	}
	if res.Trampolines.Len() != 0 || res.Synchronized != nil {
		t.Errorf("unexpected trampolines %v or wrapper", res.Trampolines.List())
	}
}

func TestCompileRuntimeArithmetic(t *testing.T) {
	_, res := mustCompileMethod(t, `
class T {
    static int f(int, int, float) {
        int a, b, q, c;
        float x;
        a := @parameter0: int;
        b := @parameter1: int;
        x := @parameter2: float;
        q = a / b;
        c = (int) x;
        q = q + c;
        return q;
    }
}`, "T", "f")
	text := res.Function.String()
	for _, want := range []string{"@_bcIdiv(", "@_bcF2i("} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in\n%s", want, text)
		}
	}
}

func TestCompileCheckTags(t *testing.T) {
	src := `
class T {
    static void f(int[]) {
        int[] a;
        a := @parameter0: int[];
        a[1] = 5%s;
        return;
    }
}`
	_, checked := mustCompileMethod(t, strings.Replace(src, "%s", "", 1), "T", "f")
	_, unchecked := mustCompileMethod(t, strings.Replace(src, "%s", " #nocheck", 1), "T", "f")
	for _, fn := range []string{"@_bcCheckNull(", "@_bcCheckLower(", "@_bcCheckUpper("} {
		if !strings.Contains(checked.Function.String(), fn) {
			t.Errorf("checked store does not call %s", fn)
		}
		if strings.Contains(unchecked.Function.String(), fn) {
			t.Errorf("#nocheck store calls %s", fn)
		}
	}
}

func TestCompileMissingReturnIsMalformed(t *testing.T) {
	_, _, err := compileMethod(t, testConfig(t), `
class T {
    static int f(int) {
        int a;
        a := @parameter0: int;
    }
}`, "T", "f")
	var ce *CompileError
	if !errors.As(err, &ce) || ce.Kind != Malformed {
		t.Fatalf("err = %v, want a malformed input error", err)
	}
	if ce.Class != "T" || ce.Method != "f(I)I" {
		t.Errorf("error location = %s.%s", ce.Class, ce.Method)
	}
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

const callsSource = `
class T {
    static int g(int) {
        int x;
        x := @parameter0: int;
        return x;
    }
    int v() {
        T r0;
        r0 := @this: T;
        return 1;
    }
    private int p() {
        T r0;
        r0 := @this: T;
        return 2;
    }
    void caller() {
        T r0;
        int i;
        r0 := @this: T;
        i = staticinvoke <T: int g(int)>(1);
        i = virtualinvoke r0.<T: int v()>();
        i = virtualinvoke r0.<T: int p()>();
        i = interfaceinvoke r0.<T: int v()>();
        staticinvoke <U: void h()>();
        return;
    }
}`

func TestPanicsBecomeInternalErrors(t *testing.T) {
	cp := testClassPath(t, "class T {\nstatic void f() {\nreturn;\n}\n}")
	m := findMethod(t, cp, "T", "f")
	cause := errors.New("bad descriptor")
	err := func() (err error) {
		defer recoverFailure(m, &err)
		panic(cause)
	}()
	var ce *CompileError
	if !errors.As(err, &ce) || ce.Kind != Internal || ce.Class != "T" {
		t.Fatalf("got %v, want an internal CompileError for T", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("%v does not wrap the panic value", err)
	}

	err = func() (err error) {
		defer recoverFailure(m, &err)
		panic("trampoline: unknown kind 99")
	}()
	if !errors.As(err, &ce) || !strings.Contains(ce.Reason, "unknown kind 99") || ce.Panic == nil {
		t.Errorf("string panic not kept: %v", err)
	}
}

func TestDirectCallEligibility(t *testing.T) {
	_, res := mustCompileMethod(t, callsSource, "T", "caller")
	text := res.Function.String()

	if !strings.Contains(text, `@"[J]T.g(I)I"(`) {
		t.Errorf("static call to own class is not direct:\n%s", text)
	}
	if !strings.Contains(text, `@"[J]T.p()I"(`) {
		t.Errorf("private virtual call is not direct:\n%s", text)
	}
	if own := trampoline.Invoke(trampoline.Invokestatic, "T", "T", "g", "(I)I"); res.Trampolines.Contains(own) {
		t.Errorf("direct call also requested %s", own)
	}
	virtual := trampoline.Invoke(trampoline.Invokevirtual, "T", "T", "v", "()I")
	if !res.Trampolines.Contains(virtual) || strings.Contains(text, `@"[J]T.v()I"(`) {
		t.Errorf("overridable call must go through %s", virtual)
	}
	iface := trampoline.Invoke(trampoline.Invokeinterface, "T", "T", "v", "()I")
	if !res.Trampolines.Contains(iface) {
		t.Errorf("interface call must go through %s", iface)
	}
	other := trampoline.Invoke(trampoline.Invokestatic, "T", "U", "h", "()V")
	if !res.Trampolines.Contains(other) {
		t.Errorf("call into another class must go through %s", other)
	}
	if !strings.Contains(text, "@_bcCheckNull(") {
		t.Errorf("virtual calls do not null check the receiver")
	}
}

func TestVMMemmoveIntrinsic(t *testing.T) {
	_, res := mustCompileMethod(t, `
class T {
    static void f(long, long) {
        long a, b;
        a := @parameter0: long;
        b := @parameter1: long;
        staticinvoke <aura.rt.VM: void memmove8(long,long,long)>(a, b, 8L);
        staticinvoke <com.foo.VM: void memmove8(long,long,long)>(a, b, 8L);
        return;
    }
}`, "T", "f")
	text := res.Function.String()
	if n := strings.Count(text, "@intrinsics.aura_rt_VM_memmove8("); n != 1 {
		t.Errorf("got %d memmove intrinsics, want 1:\n%s", n, text)
	}
	other := trampoline.Invoke(trampoline.Invokestatic, "T", "com/foo/VM", "memmove8", "(JJJ)V")
	if !res.Trampolines.Contains(other) {
		t.Errorf("unrelated VM class must be called through %s", other)
	}
}

func TestIntrinsicsAndDebug(t *testing.T) {
	src := `
class T {
    static double f(double) {
        double d;
        d := @parameter0: double;
        d = staticinvoke <java.lang.Math: double sqrt(double)>(d);
        return d;
    }
}`
	_, res := mustCompileMethod(t, src, "T", "f")
	if !strings.Contains(res.Function.String(), "@intrinsics.java_lang_Math_sqrt(") {
		t.Errorf("Math.sqrt is not replaced:\n%s", res.Function)
	}
	if res.Trampolines.Len() != 0 {
		t.Errorf("intrinsic call recorded trampolines %v", res.Trampolines.List())
	}

	cfg := testConfig(t)
	cfg.Debug = true
	_, res, err := compileMethod(t, cfg, src, "T", "f")
	if err != nil {
		t.Fatal(err)
	}
	want := trampoline.Invoke(trampoline.Invokestatic, "T", "java/lang/Math", "sqrt", "(D)D")
	if !res.Trampolines.Contains(want) {
		t.Errorf("debug build must call %s", want)
	}
}

// ---------------------------------------------------------------------------
// Exceptions
// ---------------------------------------------------------------------------

const trapsSource = `
class T {
    static void f() {
        java.lang.Throwable e;
     s0: nop;
        nop;
     s2: nop;
        nop;
        nop;
     s5: nop;
        nop;
        nop;
     s8: return;
     h1: e := @caughtexception;
        return;
     h2: e := @caughtexception;
        return;
        catch java.lang.Exception from s0 to s5 with h1;
        catch java.lang.Throwable from s2 to s8 with h2;
    }
}`

func TestTrapSelectors(t *testing.T) {
	cp := testClassPath(t, trapsSource)
	ti := newTrapIndex(findMethod(t, cp, "T", "f").Body)

	want := map[int]int{0: 1, 2: 2, 5: 3, 8: 0, 9: 0, 11: 0}
	for i := range 13 {
		sel, ok := ti.selectorAt(i)
		w, stored := want[i]
		if ok != stored || sel != w {
			t.Errorf("statement %d: selector (%d, %v), want (%d, %v)", i, sel, ok, w, stored)
		}
	}
	if len(ti.sets) != 3 {
		t.Fatalf("got %d trap sets, want 3", len(ti.sets))
	}
	both := ti.sets[1]
	if len(both) != 2 || both[0].Handler != 9 || both[1].Handler != 11 {
		t.Errorf("overlapping set = %+v, want both handlers in table order", both)
	}
	if ti.handlers[9] != 0 || ti.handlers[11] != 1 {
		t.Errorf("handler dispatch order = %v", ti.handlers)
	}
}

func TestCompileLandingPads(t *testing.T) {
	m, res := mustCompileMethod(t, trapsSource, "T", "f")
	fn := res.Function
	if m.Global(fn.Name+"[landingpads]") == nil {
		t.Fatalf("no landing pad table")
	}
	for _, g := range []string{"[lp1]", "[lp2]", "[lp3]"} {
		if m.Global(fn.Name+g) == nil {
			t.Errorf("missing landing pad %s", g)
		}
	}
	// Throwable matches everything and needs no info struct.
	if len(res.Catches) != 1 || res.Catches[0] != "java/lang/Exception" {
		t.Errorf("catches = %v", res.Catches)
	}
	text := fn.String()
	if !strings.Contains(text, "@_bcTrycatchEnter(") || !strings.Contains(text, "switch i32 ") {
		t.Errorf("missing trycatch dispatch:\n%s", text)
	}
}

// ---------------------------------------------------------------------------
// Synchronized methods
// ---------------------------------------------------------------------------

func TestSynchronizedStaticWrapper(t *testing.T) {
	_, res := mustCompileMethod(t, `
class T {
    public static synchronized int get() {
        return 1;
    }
}`, "T", "get")
	w := res.Synchronized
	if w == nil {
		t.Fatal("no synchronized wrapper")
	}
	if w.Name != "[J]T.get()I[synchronized]" {
		t.Errorf("wrapper symbol = %s", w.Name)
	}
	text := w.String()
	if !strings.Contains(text, `@"[J]T[ldcint]"(`) {
		t.Errorf("static wrapper does not lock the class object:\n%s", text)
	}
	if n := strings.Count(text, "@_bcMonitorEnter("); n != 1 {
		t.Errorf("monitor entered %d times", n)
	}
	if n := strings.Count(text, "@_bcMonitorExit("); n != 2 {
		t.Errorf("monitor released on %d paths, want 2", n)
	}
	if !strings.Contains(text, `@"[J]T.get()I"(`) {
		t.Errorf("wrapper does not call the method body:\n%s", text)
	}
}

func TestCallToSynchronizedMethodUsesWrapper(t *testing.T) {
	_, res := mustCompileMethod(t, `
class T {
    static synchronized void locked() {
        return;
    }
    static void caller() {
        staticinvoke <T: void locked()>();
        return;
    }
}`, "T", "caller")
	if !strings.Contains(res.Function.String(), `@"[J]T.locked()V[synchronized]"(`) {
		t.Errorf("direct call bypasses the monitor:\n%s", res.Function)
	}
}

func TestCompileBranches(t *testing.T) {
	_, res := mustCompileMethod(t, `
class T {
    static int sign(int) {
        int x;
        x := @parameter0: int;
        if x <= 0 goto nonpositive;
        return 1;
     nonpositive:
        return 0;
    }
}`, "T", "sign")
	fn := res.Function
	text := fn.String()
	if !strings.Contains(text, "br i1 ") {
		t.Errorf("no conditional branch:\n%s", text)
	}
	if strings.Contains(text, "_bcTrycatchEnter") {
		t.Errorf("method without traps enters a trap context:\n%s", text)
	}
	if n := strings.Count(text, "ret i32 "); n != 2 {
		t.Errorf("got %d returns, want 2", n)
	}
	for _, b := range fn.Blocks() {
		if !b.Terminated() {
			t.Errorf("block %s has no terminator", b.Label)
		}
	}
}

func TestMultiArrayDimensionsBuffer(t *testing.T) {
	_, res := mustCompileMethod(t, `
class T {
    static void grid(int, int, int) {
        int a, b, c;
        java.lang.Object o, p;
        a := @parameter0: int;
        b := @parameter1: int;
        c := @parameter2: int;
        o = newmultiarray (int)[a][b][c];
        p = newmultiarray (int)[a][b][];
        return;
    }
}`, "T", "grid")
	text := res.Function.String()
	if n := strings.Count(text, "alloca [3 x i32]"); n != 1 {
		t.Errorf("dims buffer allocated %d times, want once with three slots:\n%s", n, text)
	}
	if strings.Contains(text, "alloca [2 x i32]") {
		t.Errorf("second allocation sized the buffer separately")
	}
}

// ---------------------------------------------------------------------------
// Shadow frames
// ---------------------------------------------------------------------------

const shadowSource = `
class T {
    static int f(int) {
        int x;
        x := @parameter0: int;
        x = x + 1; x = x * 2;
        if x <= 0 goto done;
        return x;
     done:
        return 0;
    }
    static void g(java.lang.Throwable) {
        java.lang.Throwable e;
        e := @parameter0: java.lang.Throwable;
        throw e;
    }
    static void empty() {
        return;
    }
}`

func TestShadowFrames(t *testing.T) {
	cfg := testConfig(t)
	cfg.ShadowFrames = true
	_, res, err := compileMethod(t, cfg, shadowSource, "T", "f")
	if err != nil {
		t.Fatal(err)
	}
	text := res.Function.String()
	if !strings.Contains(text, `bitcast (i32 (%Env*, i32)* @"[J]T.f(I)I" to i8*)`) {
		t.Errorf("frame does not carry the function address:\n%s", text)
	}
	if n := strings.Count(text, "@_bcPushShadowFrame("); n != 1 {
		t.Errorf("frame pushed %d times", n)
	}
	// Three lines in the first block, then one in each return block.
	if n := strings.Count(text, "@_bcPushShadowLineNumber("); n != 5 {
		t.Errorf("got %d line updates, want 5:\n%s", n, text)
	}
	if n := strings.Count(text, "@_bcPopShadowFrame("); n != 2 {
		t.Errorf("frame popped on %d paths, want 2", n)
	}
	for _, b := range res.Function.Blocks() {
		n := len(b.Instructions)
		if _, ok := b.Terminator().(*llvm.Ret); !ok {
			continue
		}
		if n < 2 || !strings.Contains(b.Instructions[n-2].String(), "@_bcPopShadowFrame(") {
			t.Errorf("block %s returns without popping the frame", b.Label)
		}
	}
}

func TestShadowFrameExits(t *testing.T) {
	cfg := testConfig(t)
	cfg.ShadowFrames = true

	_, res, err := compileMethod(t, cfg, shadowSource, "T", "g")
	if err != nil {
		t.Fatal(err)
	}
	text := res.Function.String()
	pop := strings.Index(text, "@_bcPopShadowFrame(")
	if pop < 0 || pop > strings.Index(text, "unreachable") {
		t.Errorf("throwing exit does not pop the frame:\n%s", text)
	}

	_, res, err = compileMethod(t, cfg, shadowSource, "T", "empty")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(res.Function.String(), "Shadow") {
		t.Errorf("method with only a return maintains a frame:\n%s", res.Function)
	}

	_, res = mustCompileMethod(t, shadowSource, "T", "f")
	if strings.Contains(res.Function.String(), "Shadow") {
		t.Errorf("shadow frames emitted while disabled")
	}
}

// ---------------------------------------------------------------------------
// Lowering rules
// ---------------------------------------------------------------------------

const loweringSource = `
class T {
    byte b;

    static int shl(int, int) {
        int x, n;
        x := @parameter0: int;
        n := @parameter1: int;
        x = x << n;
        return x;
    }
    static int shr(int, int) {
        int x, n;
        x := @parameter0: int;
        n := @parameter1: int;
        x = x >> n;
        return x;
    }
    static long ushr(long, int) {
        long x;
        int n;
        x := @parameter0: long;
        n := @parameter1: int;
        x = x >>> n;
        return x;
    }
    static long ldiv(long, long) {
        long x, y;
        x := @parameter0: long;
        y := @parameter1: long;
        x = x / y;
        x = x % y;
        return x;
    }
    static float frem(float, float) {
        float x, y;
        x := @parameter0: float;
        y := @parameter1: float;
        x = x % y;
        return x;
    }
    static double drem(double, double) {
        double x, y;
        x := @parameter0: double;
        y := @parameter1: double;
        x = x % y;
        return x;
    }
    static int fcmpl(float, float) {
        float x, y;
        int r;
        x := @parameter0: float;
        y := @parameter1: float;
        r = x cmpl y;
        return r;
    }
    static int dcmpg(double, double) {
        double x, y;
        int r;
        x := @parameter0: double;
        y := @parameter1: double;
        r = x cmpg y;
        return r;
    }
    static int lcmp(long, long) {
        long x, y;
        int r;
        x := @parameter0: long;
        y := @parameter1: long;
        r = x cmp y;
        return r;
    }
    static void arrayStore(byte[], int) {
        byte[] a;
        int i;
        byte v;
        a := @parameter0: byte[];
        i := @parameter1: int;
        v = (byte) i;
        a[0] = v;
        return;
    }
    static byte arrayLoad(byte[]) {
        byte[] a;
        byte v;
        a := @parameter0: byte[];
        v = a[0];
        return v;
    }
    void fieldStore(int) {
        T r0;
        int i;
        byte v;
        r0 := @this: T;
        i := @parameter0: int;
        v = (byte) i;
        r0.<T: byte b> = v;
        return;
    }
    static void staticStore(short) {
        short v;
        v := @parameter0: short;
        <U: short s> = v;
        return;
    }
    static void argument(int) {
        int i;
        char ch;
        i := @parameter0: int;
        ch = (char) i;
        staticinvoke <U: void take(char)>(ch);
        return;
    }
    static long f2l(float) {
        float x;
        long l;
        x := @parameter0: float;
        l = (long) x;
        return l;
    }
    static int d2i(double) {
        double x;
        int i;
        x := @parameter0: double;
        i = (int) x;
        return i;
    }
    static int l2i(long) {
        long l;
        int i;
        l := @parameter0: long;
        i = (int) l;
        return i;
    }
    static char i2c(int) {
        int i;
        char ch;
        i := @parameter0: int;
        ch = (char) i;
        return ch;
    }
    static java.lang.Object primCast(java.lang.Object) {
        java.lang.Object o;
        int[] a;
        o := @parameter0: java.lang.Object;
        a = (int[]) o;
        return a;
    }
    static int primInstanceOf(java.lang.Object) {
        java.lang.Object o;
        int i;
        o := @parameter0: java.lang.Object;
        i = o instanceof int[];
        return i;
    }
    static java.lang.Object classLiterals() {
        java.lang.Object o;
        o = class "[I";
        o = class "T";
        o = class "java/lang/String";
        return o;
    }
    void monitors() {
        T r0;
        r0 := @this: T;
        entermonitor r0;
        exitmonitor r0;
        return;
    }
    static java.lang.Object strings() {
        java.lang.Object o;
        o = "hello";
        o = "hello";
        return o;
    }
    static java.lang.Object moreStrings() {
        java.lang.Object o;
        o = "hello";
        return o;
    }
}`

func TestLoweringRules(t *testing.T) {
	tests := []struct {
		method      string
		want        []string // in order
		reject      []string
		trampolines []trampoline.Trampoline
	}{
		{method: "shl", want: []string{"and i32 %", ", 31", "shl i32 "}},
		{method: "shr", want: []string{"and i32 %", ", 31", "ashr i32 "}},
		{method: "ushr", want: []string{"and i32 %", ", 63", "zext i32 ", "lshr i64 "}},
		{
			method: "ldiv",
			want:   []string{"@_bcLdiv(", "@_bcLrem("},
			reject: []string{"sdiv", "srem"},
		},
		{method: "frem", want: []string{"@_bcFrem("}, reject: []string{"frem float"}},
		{method: "drem", want: []string{"@_bcDrem("}, reject: []string{"frem double"}},
		{method: "fcmpl", want: []string{"@_bcFcmpl("}, reject: []string{"@_bcFcmpg(", "fcmp"}},
		{method: "dcmpg", want: []string{"@_bcDcmpg("}, reject: []string{"@_bcDcmpl(", "fcmp"}},
		{method: "lcmp", want: []string{"icmp slt i64 ", "icmp sgt i64 ", "sub i32 "}},
		{
			method: "arrayStore",
			want:   []string{"@_bcCheckNull(", "to i8", "@_bcArrayStore_B(", ", i8 %t"},
		},
		{method: "arrayLoad", want: []string{"@_bcArrayLoad_B(", "sext i8 "}},
		{method: "fieldStore", want: []string{"to i8", `(B)[set]"(`, ", i8 %t"}},
		{
			method:      "staticStore",
			want:        []string{"trunc i32 ", "to i16", "i16 %t"},
			trampolines: []trampoline.Trampoline{trampoline.Field(trampoline.PutStatic, "T", "U", "s", "S")},
		},
		{
			method:      "argument",
			want:        []string{"zext i16 ", "trunc i32 ", `(C)V"(%Env* %p0, i16 %t`},
			trampolines: []trampoline.Trampoline{trampoline.Invoke(trampoline.Invokestatic, "T", "U", "take", "(C)V")},
		},
		{method: "f2l", want: []string{"@_bcF2l("}, reject: []string{"fptosi"}},
		{method: "d2i", want: []string{"@_bcD2i("}, reject: []string{"fptosi"}},
		{method: "l2i", want: []string{"trunc i64 ", " to i32"}},
		{method: "i2c", want: []string{"trunc i32 ", " to i16", "zext i16 "}, reject: []string{"sext i16"}},
		{
			method: "primCast",
			want:   []string{"@array_I", "@_bcCheckcastPrimArray("},
			reject: []string{"[T]checkcast"},
		},
		{method: "primInstanceOf", want: []string{"@array_I", "@_bcInstanceofPrimArray("}},
		{
			method:      "classLiterals",
			want:        []string{"@array_I", `@"[J]T[ldcint]"(`, `@"[T]`},
			trampolines: []trampoline.Trampoline{trampoline.Class(trampoline.LdcClass, "T", "java/lang/String")},
		},
		{
			method: "monitors",
			want:   []string{"@_bcCheckNull(", "@_bcMonitorEnter(", "@_bcCheckNull(", "@_bcMonitorExit("},
		},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			_, res := mustCompileMethod(t, loweringSource, "T", tt.method)
			text := res.Function.String()
			rest := text
			for _, w := range tt.want {
				i := strings.Index(rest, w)
				if i < 0 {
					t.Fatalf("missing %q (in order) in\n%s", w, text)
				}
				rest = rest[i+len(w):]
			}
			for _, r := range tt.reject {
				if strings.Contains(text, r) {
					t.Errorf("unexpected %q in\n%s", r, text)
				}
			}
			if res.Trampolines.Len() != len(tt.trampolines) {
				t.Errorf("trampolines = %v, want %v", res.Trampolines.List(), tt.trampolines)
			}
			for _, tr := range tt.trampolines {
				if !res.Trampolines.Contains(tr) {
					t.Errorf("missing trampoline %s", tr.Symbol())
				}
			}
		})
	}
}

func TestStringLiteralsShareAccessor(t *testing.T) {
	cfg := testConfig(t)
	cp := testClassPath(t, loweringSource)
	mc := NewClassCompiler(cfg, cp).Methods
	m := llvm.NewModule()
	var bodies []string
	for _, name := range []string{"strings", "moreStrings"} {
		res, err := mc.Compile(m, findMethod(t, cp, "T", name))
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		bodies = append(bodies, res.Function.String())
	}

	var accessors []*llvm.Function
	for _, fn := range m.Functions() {
		if strings.HasPrefix(fn.Name, "[J]ldcstring_") {
			accessors = append(accessors, fn)
		}
	}
	if len(accessors) != 1 {
		t.Fatalf("got %d string accessors, want 1", len(accessors))
	}
	acc := accessors[0]
	if !strings.Contains(acc.String(), "@_bcLdcString(") {
		t.Errorf("accessor does not intern through the runtime:\n%s", acc)
	}
	if m.Global(acc.Name+"[ptr]") == nil {
		t.Errorf("missing cache slot %s[ptr]", acc.Name)
	}
	call := "@" + `"` + acc.Name + `"(`
	for i, want := range []int{2, 1} {
		if n := strings.Count(bodies[i], call); n != want {
			t.Errorf("method %d calls the accessor %d times, want %d", i, n, want)
		}
		if strings.Contains(bodies[i], "@_bcLdcString(") {
			t.Errorf("method %d interns inline", i)
		}
	}
}

func TestTrapSelectorReuse(t *testing.T) {
	cp := testClassPath(t, `
class T {
    static void f() {
        java.lang.Throwable e;
     s0: nop;
        nop;
     s2: nop;
        nop;
     s4: nop;
        nop;
     s6: return;
     h1: e := @caughtexception;
        return;
     h2: e := @caughtexception;
        return;
        catch java.lang.Exception from s0 to s2 with h1;
        catch java.lang.Throwable from s2 to s4 with h2;
        catch java.lang.Exception from s4 to s6 with h1;
    }
}`)
	ti := newTrapIndex(findMethod(t, cp, "T", "f").Body)

	want := map[int]int{0: 1, 2: 2, 4: 1, 6: 0, 7: 0, 9: 0}
	for i := range 11 {
		sel, ok := ti.selectorAt(i)
		w, stored := want[i]
		if ok != stored || sel != w {
			t.Errorf("statement %d: selector (%d, %v), want (%d, %v)", i, sel, ok, w, stored)
		}
	}
	if len(ti.sets) != 2 {
		t.Errorf("got %d trap sets, want 2: %+v", len(ti.sets), ti.sets)
	}
}
