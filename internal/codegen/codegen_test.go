package codegen

import (
	"path/filepath"
	"strings"
	"testing"

	"aura/internal/llvm"
)

// ---------------------------------------------------------------------------
// Target helpers for tests
// ---------------------------------------------------------------------------

func linuxAMD64Target() *Target {
	tgt, _ := ResolveTarget("linux", "amd64")
	return tgt
}

func darwinARM64Target() *Target {
	tgt, _ := ResolveTarget("darwin", "arm64")
	return tgt
}

func linux386Target() *Target {
	tgt, _ := ResolveTarget("linux", "386")
	return tgt
}

// ---------------------------------------------------------------------------
// Target resolution
// ---------------------------------------------------------------------------

func TestResolveTarget(t *testing.T) {
	tests := []struct {
		os, arch string
		triple   string
		ptr      int
	}{
		{"linux", "amd64", "x86_64-unknown-linux-gnu", 8},
		{"linux", "x86_64", "x86_64-unknown-linux-gnu", 8},
		{"darwin", "arm64", "arm64-apple-macosx11.0.0", 8},
		{"macos", "amd64", "x86_64-apple-macosx10.9.0", 8},
		{"windows", "amd64", "x86_64-pc-windows-msvc", 8},
		{"linux", "386", "i686-unknown-linux-gnu", 4},
		{"linux", "aarch64", "aarch64-unknown-linux-gnu", 8},
	}
	for _, tt := range tests {
		tgt, err := ResolveTarget(tt.os, tt.arch)
		if err != nil {
			t.Fatalf("ResolveTarget(%s, %s): %v", tt.os, tt.arch, err)
		}
		if tgt.Triple != tt.triple {
			t.Errorf("%s/%s: triple = %q, want %q", tt.os, tt.arch, tgt.Triple, tt.triple)
		}
		if tgt.PtrSize != tt.ptr {
			t.Errorf("%s/%s: ptr size = %d, want %d", tt.os, tt.arch, tgt.PtrSize, tt.ptr)
		}
		if tgt.DataLayout == "" {
			t.Errorf("%s/%s: empty data layout", tt.os, tt.arch)
		}
	}
}

func TestResolveTargetUnsupported(t *testing.T) {
	if _, err := ResolveTarget("plan9", "amd64"); err == nil {
		t.Error("expected error for unsupported OS")
	}
	if _, err := ResolveTarget("linux", "mips"); err == nil {
		t.Error("expected error for unsupported architecture")
	}
}

func TestHeader(t *testing.T) {
	h := linuxAMD64Target().Header()
	if len(h) != 2 {
		t.Fatalf("expected 2 header lines, got %d", len(h))
	}
	if !strings.HasPrefix(h[0], "target datalayout = ") {
		t.Errorf("first line = %q", h[0])
	}
	if h[1] != `target triple = "x86_64-unknown-linux-gnu"` {
		t.Errorf("second line = %q", h[1])
	}
}

func TestStrongMethodLinkage(t *testing.T) {
	darwinX86, _ := ResolveTarget("darwin", "amd64")
	if !darwinX86.StrongMethodLinkage() {
		t.Error("darwin/amd64 should use strong method linkage")
	}
	if linuxAMD64Target().StrongMethodLinkage() {
		t.Error("linux/amd64 should use weak method linkage")
	}
	if darwinARM64Target().StrongMethodLinkage() {
		t.Error("darwin/arm64 should use weak method linkage")
	}
}

// ---------------------------------------------------------------------------
// Data layout
// ---------------------------------------------------------------------------

func TestSizeAndAlign(t *testing.T) {
	tgt := linuxAMD64Target()
	tests := []struct {
		ty    llvm.Type
		size  int
		align int
	}{
		{llvm.I8, 1, 1},
		{llvm.I16, 2, 2},
		{llvm.I32, 4, 4},
		{llvm.I64, 8, 8},
		{llvm.Float, 4, 4},
		{llvm.Double, 8, 8},
		{llvm.I8Ptr, 8, 8},
		{&llvm.ArrayType{Size: 3, Elem: llvm.I32}, 12, 4},
		{llvm.NewStructureType(llvm.I8, llvm.I32), 8, 4},
		{llvm.NewStructureType(llvm.I8, llvm.I64, llvm.I8), 24, 8},
	}
	for _, tt := range tests {
		if got := tgt.SizeOf(tt.ty); got != tt.size {
			t.Errorf("SizeOf(%s) = %d, want %d", tt.ty, got, tt.size)
		}
		if got := tgt.AlignOf(tt.ty); got != tt.align {
			t.Errorf("AlignOf(%s) = %d, want %d", tt.ty, got, tt.align)
		}
	}
}

func TestSizeOn32BitX86(t *testing.T) {
	tgt := linux386Target()
	st := llvm.NewStructureType(llvm.I32, llvm.Double)
	if got := tgt.SizeOf(st); got != 12 {
		t.Errorf("SizeOf(%s) = %d, want 12", st, got)
	}
	if got := tgt.SizeOf(llvm.I8Ptr); got != 4 {
		t.Errorf("pointer size = %d, want 4", got)
	}
}

func TestOffsetOf(t *testing.T) {
	tgt := linuxAMD64Target()
	st := llvm.NewStructureType(llvm.I8, llvm.I32, llvm.I8Ptr, llvm.I16)
	want := []int{0, 4, 8, 16}
	for i, w := range want {
		if got := tgt.OffsetOf(st, i); got != w {
			t.Errorf("OffsetOf(%d) = %d, want %d", i, got, w)
		}
	}
	packed := &llvm.StructureType{Fields: []llvm.Type{llvm.I8, llvm.I32}, Packed: true}
	if got := tgt.OffsetOf(packed, 1); got != 1 {
		t.Errorf("packed OffsetOf(1) = %d, want 1", got)
	}
}

// ---------------------------------------------------------------------------
// Toolchain
// ---------------------------------------------------------------------------

func TestObjectForIsUniquePerPath(t *testing.T) {
	tc := NewToolchain(linuxAMD64Target(), "out")
	a := tc.ObjectFor(filepath.Join("cache", "a", "lang", "String.ll"))
	b := tc.ObjectFor(filepath.Join("cache", "b", "lang", "String.ll"))
	if a == b {
		t.Errorf("distinct sources share object %s", a)
	}
	if !strings.HasSuffix(a, ".o") || filepath.Dir(a) != "out" {
		t.Errorf("unexpected object path %s", a)
	}
	win, _ := ResolveTarget("windows", "amd64")
	if obj := NewToolchain(win, "out").ObjectFor("bridges.c"); !strings.HasSuffix(obj, "bridges.obj") {
		t.Errorf("windows object = %s", obj)
	}
}

func TestDetectToolchainMissing(t *testing.T) {
	missing := DetectToolchain("aura-no-such-clang")
	if len(missing) != 1 || missing[0] != "aura-no-such-clang" {
		t.Errorf("missing = %v", missing)
	}
}
