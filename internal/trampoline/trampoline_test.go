package trampoline

import (
	"strings"
	"sync"
	"testing"

	"gopkg.in/yaml.v3"

	"aura/internal/classpath"
	"aura/internal/parser"
)

func TestSymbolAndFunctionType(t *testing.T) {
	tests := []struct {
		t      Trampoline
		symbol string
		sig    string
	}{
		{
			Invoke(Invokestatic, "a/A", "b/B", "f", "(IJ)V"),
			"[T]invokestatic:a/A:b/B.f(IJ)V",
			"void (%Env*, i32, i64)",
		},
		{
			Invoke(Invokevirtual, "a/A", "b/B", "g", "()Z").WithRuntimeClass("b/C"),
			"[T]invokevirtual:a/A:b/B.g()Z@b/C",
			"i8 (%Env*, %Object*)",
		},
		{
			Field(GetField, "a/A", "b/B", "x", "S"),
			"[T]getfield:a/A:b/B.x(S)",
			"i16 (%Env*, %Object*)",
		},
		{
			Field(PutStatic, "a/A", "b/B", "y", "Ljava/lang/String;"),
			"[T]putstatic:a/A:b/B.y(Ljava/lang/String;)",
			"void (%Env*, %Object*)",
		},
		{Class(New, "a/A", "b/B"), "[T]new:a/A:b/B", "%Object* (%Env*)"},
		{Class(Checkcast, "a/A", "[Lb/B;"), "[T]checkcast:a/A:[Lb/B;", "%Object* (%Env*, %Object*)"},
		{Class(Instanceof, "a/A", "b/B"), "[T]instanceof:a/A:b/B", "i32 (%Env*, %Object*)"},
		{Class(Multianewarray, "a/A", "[[I"), "[T]multianewarray:a/A:[[I", "%Object* (%Env*, i32, i32*)"},
	}
	for _, tt := range tests {
		if got := tt.t.Symbol(); got != tt.symbol {
			t.Errorf("symbol: got %s, want %s", got, tt.symbol)
		}
		if got := tt.t.FunctionType().String(); got != tt.sig {
			t.Errorf("%s: signature %s, want %s", tt.symbol, got, tt.sig)
		}
	}
}

func TestWithRuntimeClassDropsTarget(t *testing.T) {
	a := Invoke(Invokevirtual, "a/A", "b/B", "g", "()V")
	if a.WithRuntimeClass("b/B") != a {
		t.Errorf("runtime class equal to the target must not change the key")
	}
}

// Requesting the same trampoline twice yields the same symbol and one
// set entry.
func TestSetIsIdempotent(t *testing.T) {
	s := NewSet()
	r1 := s.Add(Class(New, "a/A", "b/B"))
	r2 := s.Add(Class(New, "a/A", "b/B"))
	s.Add(Class(New, "a/A", "b/C"))
	if r1.Name != r2.Name {
		t.Errorf("symbols differ: %s vs %s", r1.Name, r2.Name)
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", s.Len())
	}
	if !s.Contains(Class(New, "a/A", "b/C")) || s.Contains(Class(New, "a/X", "b/C")) {
		t.Errorf("Contains is wrong")
	}
	o := NewSet()
	o.Add(Class(New, "a/A", "b/B"))
	o.Add(Class(LdcClass, "a/A", "b/B"))
	s.AddAll(o)
	if s.Len() != 3 || s.List()[2].Kind != LdcClass {
		t.Errorf("AddAll: got %v", s.List())
	}
}

func TestRegistryConcurrentAdd(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	added := make([]int, 8)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			added[w] = r.Add(
				Class(New, "a/A", "b/B"),
				Invoke(Invokestatic, "a/A", "b/B", "f", "()V"),
			)
		}(w)
	}
	wg.Wait()
	total := 0
	for _, n := range added {
		total += n
	}
	if total != 2 || r.Len() != 2 {
		t.Errorf("expected 2 insertions, got %d (len %d)", total, r.Len())
	}
	if got := r.TargetClasses(); len(got) != 1 || got[0] != "b/B" {
		t.Errorf("TargetClasses = %v", got)
	}
}

func TestTrampolineYAML(t *testing.T) {
	in := []Trampoline{
		Invoke(Invokeinterface, "a/A", "b/I", "run", "()V"),
		Field(GetStatic, "a/A", "b/B", "x", "I"),
	}
	data, err := yaml.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "kind: invokeinterface") {
		t.Errorf("kind not written by name:\n%s", data)
	}
	var out []Trampoline
	if err := yaml.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0] != in[0] || out[1] != in[1] {
		t.Errorf("got %+v", out)
	}
	if err := yaml.Unmarshal([]byte("- kind: jump\n"), &out); err == nil {
		t.Errorf("expected an error for an unknown kind")
	}
}

// ---------------------------------------------------------------------------
// Generator
// ---------------------------------------------------------------------------

func testClassPath(t *testing.T) *classpath.ClassPath {
	t.Helper()
	classes, err := parser.ParseSource(`
class java.lang.Object {
}
class b.B {
    static int count;
    int size;
    static void f() { return; }
    void g() { return; }
    final void h() { return; }
    synchronized void s() { return; }
}
abstract class b.Abs {
    public abstract void run();
}
interface b.I {
    public abstract void run();
}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cp := classpath.New()
	for _, c := range classes {
		cp.Add(c)
	}
	return cp
}

func generate(t *testing.T, ts ...Trampoline) string {
	t.Helper()
	g := &Generator{Resolver: testClassPath(t)}
	m, err := g.Generate(ts)
	if err != nil {
		t.Fatal(err)
	}
	return m.String()
}

func TestGeneratorForwardsResolvedTargets(t *testing.T) {
	out := generate(t,
		Invoke(Invokestatic, "a/A", "b/B", "f", "()V"),
		Invoke(Invokevirtual, "a/A", "b/B", "h", "()V"),
		Invoke(Invokespecial, "a/A", "b/B", "s", "()V"),
		Field(GetStatic, "a/A", "b/B", "count", "I"),
		Field(PutField, "a/A", "b/B", "size", "I"),
		Class(New, "a/A", "b/B"),
	)
	for _, want := range []string{
		`call void @"[J]b/B.f()V"(%Env* %p0)`,
		`call void @"[J]b/B.h()V"(%Env* %p0, %Object* %p1)`,
		`call void @"[J]b/B.s()V[synchronized]"(%Env* %p0, %Object* %p1)`,
		`call i32 @"[J]b/B.count(I)[get]"(%Env* %p0)`,
		`call void @"[J]b/B.size(I)[set]"(%Env* %p0, %Object* %p1, i32 %p2)`,
		`call %Object* @"[J]b/B[allocator]"(%Env* %p0)`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestGeneratorDispatchesDynamically(t *testing.T) {
	out := generate(t,
		Invoke(Invokevirtual, "a/A", "b/B", "g", "()V"),
		Invoke(Invokeinterface, "a/A", "b/I", "run", "()V"),
	)
	if strings.Count(out, "call i8* @_bcResolveMethod(") != 2 {
		t.Errorf("expected two dynamic dispatches in:\n%s", out)
	}
	if !strings.Contains(out, `@"[T]invokevirtual:a/A:b/B.g()V[class]" = internal global %Class* null`) {
		t.Errorf("missing class cache in:\n%s", out)
	}
}

func TestGeneratorLinkageErrors(t *testing.T) {
	tests := []struct {
		t    Trampoline
		want string
	}{
		{Invoke(Invokestatic, "a/A", "x/Missing", "f", "()V"), "_bcThrowNoClassDefFoundError"},
		{Invoke(Invokestatic, "a/A", "b/B", "nope", "()V"), "_bcThrowNoSuchMethodError"},
		{Invoke(Invokestatic, "a/A", "b/B", "g", "()V"), "_bcThrowIncompatibleClassChangeError"},
		{Invoke(Invokespecial, "a/A", "b/Abs", "run", "()V"), "_bcThrowAbstractMethodError"},
		{Field(GetField, "a/A", "b/B", "count", "I"), "_bcThrowIncompatibleClassChangeError"},
		{Field(GetField, "a/A", "b/B", "size", "J"), "_bcThrowNoSuchFieldError"},
		{Class(New, "a/A", "b/I"), "_bcThrowInstantiationError"},
		{Class(Checkcast, "a/A", "[Lx/Missing;"), "_bcThrowNoClassDefFoundError"},
	}
	for _, tt := range tests {
		out := generate(t, tt.t)
		if !strings.Contains(out, "call void @"+tt.want+"(") || !strings.Contains(out, "unreachable") {
			t.Errorf("%s: expected %s in:\n%s", tt.t, tt.want, out)
		}
	}
}

func TestGeneratorPrimitiveArrayNeedsNoClass(t *testing.T) {
	out := generate(t, Class(Anewarray, "a/A", "[I"))
	if !strings.Contains(out, "call %Object* @_bcNewObjectArray(") {
		t.Errorf("expected an array allocation in:\n%s", out)
	}
}

func TestGeneratorSkipsDuplicates(t *testing.T) {
	out := generate(t, Class(New, "a/A", "b/B"), Class(New, "a/A", "b/B"))
	if strings.Count(out, `define %Object* @"[T]new:a/A:b/B"`) != 1 {
		t.Errorf("stub emitted twice:\n%s", out)
	}
}

func TestGeneratorInitializesClassBeforeStaticAccess(t *testing.T) {
	g := &Generator{Resolver: testClassPath(t)}
	ts := []Trampoline{
		Invoke(Invokestatic, "a/A", "b/B", "f", "()V"),
		Field(GetStatic, "a/A", "b/B", "count", "I"),
		Field(PutStatic, "a/A", "b/B", "count", "I"),
	}
	m, err := g.Generate(ts)
	if err != nil {
		t.Fatal(err)
	}
	forwards := []string{
		`@"[J]b/B.f()V"(`,
		`@"[J]b/B.count(I)[get]"(`,
		`@"[J]b/B.count(I)[set]"(`,
	}
	for i, tr := range ts {
		text := m.Function(tr.Symbol()).String()
		init := strings.Index(text, "call void @_bcInitializeClass(")
		fwd := strings.Index(text, forwards[i])
		if init < 0 || fwd < 0 || init > fwd {
			t.Errorf("%s does not initialize b/B before forwarding:\n%s", tr, text)
		}
	}
}

func TestGeneratorSkipsInitializationForInstanceAndOwnAccess(t *testing.T) {
	out := generate(t,
		Field(PutField, "a/A", "b/B", "size", "I"),
		Invoke(Invokevirtual, "a/A", "b/B", "h", "()V"),
		Field(GetStatic, "b/B", "b/B", "count", "I"),
	)
	if strings.Contains(out, "_bcInitializeClass") {
		t.Errorf("unexpected class initialization in:\n%s", out)
	}
}
