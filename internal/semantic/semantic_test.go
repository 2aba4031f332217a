package semantic_test

import (
	"strings"
	"testing"

	"aura/internal/lexer"
	"aura/internal/parser"
	"aura/internal/semantic"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func analyze(t *testing.T, input string) []semantic.Diagnostic {
	t.Helper()
	tokens, lexErrs := lexer.Lex(input)
	if len(lexErrs) > 0 {
		t.Fatalf("lex errors: %v", lexErrs)
	}
	classes, parseErrs := parser.Parse(tokens)
	if len(parseErrs) > 0 {
		t.Fatalf("parse errors: %v", parseErrs)
	}
	return semantic.Analyze(classes)
}

func countErrors(diags []semantic.Diagnostic) int {
	n := 0
	for _, d := range diags {
		if d.Severity == semantic.Error {
			n++
		}
	}
	return n
}

func expectErrors(t *testing.T, diags []semantic.Diagnostic, want int) {
	t.Helper()
	got := countErrors(diags)
	if got != want {
		t.Errorf("expected %d error(s), got %d", want, got)
		for _, d := range diags {
			t.Logf("  %s", d.Error())
		}
	}
}

func expectMessage(t *testing.T, diags []semantic.Diagnostic, substr string) {
	t.Helper()
	for _, d := range diags {
		if strings.Contains(d.Message, substr) {
			return
		}
	}
	t.Errorf("no diagnostic containing %q in %v", substr, diags)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestValidMethod(t *testing.T) {
	diags := analyze(t, `
class T {
    static int sign(int) {
        int x;
        x := @parameter0: int;
        if x <= 0 goto neg;
        return 1;
     neg:
        return 0;
    }
    native void n();
    abstract void a();
}`)
	expectErrors(t, diags, 0)
}

func TestFallOffEnd(t *testing.T) {
	diags := analyze(t, "class T { static void f() { nop; } }")
	expectErrors(t, diags, 1)
	expectMessage(t, diags, "falls off the end")
}

func TestParameterMismatch(t *testing.T) {
	diags := analyze(t, `
class T {
    static void f(int) {
        long a;
        java.lang.Object o;
        a := @parameter0: long;
        o := @parameter1: java.lang.Object;
        return;
    }
}`)
	expectErrors(t, diags, 2)
	expectMessage(t, diags, "has type long")
	expectMessage(t, diags, "out of range")
}

func TestThisInStaticMethod(t *testing.T) {
	diags := analyze(t, `
class T {
    static void f() {
        T r0;
        r0 := @this: T;
        return;
    }
}`)
	expectErrors(t, diags, 1)
}

func TestReturnMismatch(t *testing.T) {
	diags := analyze(t, `
class T {
    static void f() { return 1; }
    static int g() { return; }
}`)
	expectErrors(t, diags, 2)
}

func TestUnassignedLocal(t *testing.T) {
	diags := analyze(t, `
class T {
    static int f() {
        int x;
        return x;
    }
}`)
	expectErrors(t, diags, 1)
	expectMessage(t, diags, "never assigned")
}

func TestDuplicateMembers(t *testing.T) {
	diags := analyze(t, `
class T {
    int a;
    long a;
    native void f();
    native void f();
}`)
	expectErrors(t, diags, 2)
}

func TestTrapHandlerWarning(t *testing.T) {
	diags := analyze(t, `
class T {
    static void f() {
     a: nop;
     b: return;
        catch java.lang.Throwable from a to b with b;
    }
}`)
	expectErrors(t, diags, 0)
	if len(diags) != 1 || diags[0].Severity != semantic.Warning {
		t.Errorf("expected one warning, got %v", diags)
	}
	if !strings.Contains(diags[0].Error(), "T.f()V") {
		t.Errorf("diagnostic should name the method: %s", diags[0].Error())
	}
}
