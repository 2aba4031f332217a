package classpath

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"aura/internal/ast"
	"aura/internal/parser"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

func TestLoadAndLookup(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "com/example/A.jimple", `
class com.example.A {
    static int f() {
        return 1;
    }
}`)
	writeFile(t, dir, "com/example/B.jimple", `class com.example.B extends com.example.A { }`)
	writeFile(t, dir, "README.txt", "ignored")

	cp, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cp.Names(); !reflect.DeepEqual(got, []string{"com/example/A", "com/example/B"}) {
		t.Errorf("Names = %v", got)
	}
	a := cp.Lookup("com/example/A")
	if a == nil || a.FindMethod("f", "()I") == nil {
		t.Fatalf("A.f not found")
	}
	if e := cp.Entry("com/example/A"); e == nil || e.ModTime.IsZero() || !strings.HasSuffix(e.File, "A.jimple") {
		t.Errorf("entry: got %+v", e)
	}
	if cp.Lookup("com/example/Missing") != nil {
		t.Errorf("expected nil for unknown class")
	}
	if !cp.IsSubclass("com/example/B", "com/example/A") {
		t.Errorf("B should be a subclass of A")
	}
	if cp.IsSubclass("com/example/A", "com/example/B") {
		t.Errorf("A is not a subclass of B")
	}
}

func TestLoadEarlierDirectoryWins(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writeFile(t, first, "X.jimple", `class X { static native void a(); }`)
	writeFile(t, second, "X.jimple", `class X { static native void b(); }`)

	cp, err := Load(first, second)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	x := cp.Lookup("X")
	if x == nil || x.Methods[0].Name != "a" {
		t.Errorf("expected X from the first directory, got %+v", x)
	}
}

func TestLoadCollectsErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Bad.jimple", `class Bad { static int f() { goto nowhere; } }`)
	writeFile(t, dir, "Worse.jimple", `class Worse { static int g() { nop; } }`)

	_, err := Load(dir, filepath.Join(dir, "does-not-exist"))
	if err == nil {
		t.Fatal("expected errors")
	}
	errs, ok := err.(LoadErrors)
	if !ok {
		t.Fatalf("expected LoadErrors, got %T", err)
	}
	if len(errs) < 3 {
		t.Errorf("expected at least 3 errors, got %d: %v", len(errs), err)
	}
	if !strings.Contains(err.Error(), "does-not-exist") {
		t.Errorf("missing directory not reported: %v", err)
	}
}

func TestServiceImplementations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "META-INF/services/com.example.Plugin", `
# providers
com.example.PluginA
com.example.PluginB   # trailing comment
com.example.PluginA
`)
	cp, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := cp.ServiceImplementations("com/example/Plugin")
	want := []string{"com/example/PluginA", "com/example/PluginB"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ServiceImplementations = %v, want %v", got, want)
	}
	if cp.ServiceImplementations("com/example/Other") != nil {
		t.Errorf("expected no providers for unknown interface")
	}
}

func TestAddKeepsExisting(t *testing.T) {
	cp := New()
	cp.Add(&ast.Class{Name: "A", Source: "one"})
	cp.Add(&ast.Class{Name: "A", Source: "two"})
	if got := cp.Entry("A").File; got != "one" {
		t.Errorf("Add replaced existing class: File = %q", got)
	}
}

// ---------------------------------------------------------------------------
// Dependencies
// ---------------------------------------------------------------------------

func TestDependencies(t *testing.T) {
	classes, err := parser.ParseSource(`
class com.example.Main extends com.example.Base implements com.example.Iface {
    static com.example.Field f;

    static com.example.Ret run(com.example.Param[]) {
        com.example.Local l0;
        java.lang.Object o;
        int n;
        label1:
        o = new com.example.New;
        l0 = (com.example.Local) o;
        n = staticinvoke <com.example.Util: int count(java.lang.Object)>(o);
        o = <com.example.Statics: java.lang.Object shared>;
        o = "text";
        o = class "[Lcom/example/Elem;";
        return null;
        label2:
        o := @caughtexception;
        return null;
        catch com.example.Oops from label1 to label2 with label2;
    }
}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := Dependencies(classes[0])
	want := []string{
		"com/example/Base",
		"com/example/Elem",
		"com/example/Field",
		"com/example/Iface",
		"com/example/Local",
		"com/example/New",
		"com/example/Oops",
		"com/example/Param",
		"com/example/Ret",
		"com/example/Statics",
		"com/example/Util",
		"java/lang/Object",
		"java/lang/String",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Dependencies =\n  %v\nwant\n  %v", got, want)
	}
}

func TestDependenciesExcludesSelf(t *testing.T) {
	classes, err := parser.ParseSource(`class Self { static Self make() { Self s; s = new Self; return s; } }`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := Dependencies(classes[0])
	if !reflect.DeepEqual(got, []string{"java/lang/Object"}) {
		t.Errorf("Dependencies = %v", got)
	}
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

func mustAddSource(t *testing.T, cp *ClassPath, src string) {
	t.Helper()
	classes, err := parser.ParseSource(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, c := range classes {
		cp.Add(c)
	}
}

func TestResolveMethodWalksSupersAndInterfaces(t *testing.T) {
	cp := New()
	mustAddSource(t, cp, `
class java.lang.Object {
    public native int hashCode();
}
interface p.Named {
    public abstract java.lang.String name();
}
class p.Base implements p.Named {
    public void run() { return; }
}
class p.Leaf extends p.Base {
}`)
	if m := cp.ResolveMethod("p/Leaf", "run", "()V"); m == nil || m.Class.Name != "p/Base" {
		t.Errorf("run: got %v", m)
	}
	if m := cp.ResolveMethod("p/Leaf", "hashCode", "()I"); m == nil || m.Class.Name != "java/lang/Object" {
		t.Errorf("hashCode: got %v", m)
	}
	if m := cp.ResolveMethod("p/Leaf", "name", "()Ljava/lang/String;"); m == nil || m.Class.Name != "p/Named" {
		t.Errorf("name: got %v", m)
	}
	if m := cp.ResolveMethod("p/Leaf", "missing", "()V"); m != nil {
		t.Errorf("missing: got %v", m)
	}
	if m := cp.ResolveMethod("p/Unknown", "run", "()V"); m != nil {
		t.Errorf("unknown class: got %v", m)
	}
}

func TestCyclicHierarchyTerminates(t *testing.T) {
	cp := New()
	mustAddSource(t, cp, `
class p.A extends p.B {
}
class p.B extends p.A {
    void run() { return; }
}`)
	if cp.IsSubclass("p/A", "p/C") {
		t.Errorf("p/A is not a subclass of p/C")
	}
	if !cp.IsSubclass("p/A", "p/B") {
		t.Errorf("p/A extends p/B")
	}
	if m := cp.ResolveMethod("p/A", "run", "()V"); m == nil || m.Class.Name != "p/B" {
		t.Errorf("run: got %v", m)
	}
	if m := cp.ResolveMethod("p/A", "missing", "()V"); m != nil {
		t.Errorf("missing: got %v", m)
	}
	if f := cp.ResolveField("p/A", "x", "I"); f != nil {
		t.Errorf("x: got %v", f)
	}
}

func TestResolveField(t *testing.T) {
	cp := New()
	mustAddSource(t, cp, `
interface p.Consts {
    static final int LIMIT = 3;
}
class p.Base {
    int count;
}
class p.Leaf extends p.Base implements p.Consts {
}`)
	if f := cp.ResolveField("p/Leaf", "count", "I"); f == nil || f.Class.Name != "p/Base" {
		t.Errorf("count: got %v", f)
	}
	if f := cp.ResolveField("p/Leaf", "LIMIT", "I"); f == nil || f.Class.Name != "p/Consts" {
		t.Errorf("LIMIT: got %v", f)
	}
	if f := cp.ResolveField("p/Leaf", "count", "J"); f != nil {
		t.Errorf("wrong descriptor resolved: %v", f)
	}
}
