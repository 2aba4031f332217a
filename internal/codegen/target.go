package codegen

import (
	"fmt"
	"runtime"

	"aura/internal/llvm"
)

// ---------------------------------------------------------------------------
// OS / Architecture enums
// ---------------------------------------------------------------------------

// OS represents a target operating system.
type OS int

const (
	OS_Linux  OS = iota
	OS_Darwin    // macOS
	OS_Windows
)

func (o OS) String() string {
	switch o {
	case OS_Linux:
		return "linux"
	case OS_Darwin:
		return "darwin"
	case OS_Windows:
		return "windows"
	default:
		return "unknown"
	}
}

// Arch represents a target CPU architecture.
type Arch int

const (
	Arch_x86_64 Arch = iota
	Arch_x86         // 32-bit x86
	Arch_ARM64       // AArch64
)

func (a Arch) String() string {
	switch a {
	case Arch_x86_64:
		return "x86_64"
	case Arch_x86:
		return "x86"
	case Arch_ARM64:
		return "arm64"
	default:
		return "unknown"
	}
}

// ---------------------------------------------------------------------------
// Target: a fully-resolved compilation target
// ---------------------------------------------------------------------------

// Target describes the machine the generated IR is compiled for: its LLVM
// triple, data layout and the sizes the compiler needs to lay out structs.
type Target struct {
	OS   OS
	Arch Arch

	// PtrSize is the size of a pointer in bytes (4 or 8).
	PtrSize int

	// Triple is the LLVM target triple.
	Triple string

	// DataLayout is the LLVM data layout string.
	DataLayout string

	// Int64Align is the ABI alignment of i64 and double. 32-bit x86 aligns
	// them to 4 bytes.
	Int64Align int
}

// HostTarget returns a Target matching the current Go runtime (GOOS/GOARCH).
func HostTarget() (*Target, error) {
	return ResolveTarget(runtime.GOOS, runtime.GOARCH)
}

// ResolveTarget builds a Target from OS/Arch name strings (same names Go uses).
func ResolveTarget(osName, archName string) (*Target, error) {
	t := &Target{}

	switch osName {
	case "linux":
		t.OS = OS_Linux
	case "darwin", "macos":
		t.OS = OS_Darwin
	case "windows":
		t.OS = OS_Windows
	default:
		return nil, fmt.Errorf("unsupported OS: %s", osName)
	}

	switch archName {
	case "amd64", "x86_64":
		t.Arch = Arch_x86_64
	case "386", "x86":
		t.Arch = Arch_x86
	case "arm64", "aarch64":
		t.Arch = Arch_ARM64
	default:
		return nil, fmt.Errorf("unsupported architecture: %s", archName)
	}

	switch t.Arch {
	case Arch_x86_64:
		t.fillX86_64()
	case Arch_x86:
		t.fillX86()
	case Arch_ARM64:
		t.fillARM64()
	}
	return t, nil
}

// ---------------------------------------------------------------------------
// Architecture-specific initialization
// ---------------------------------------------------------------------------

func (t *Target) fillX86_64() {
	t.PtrSize = 8
	t.Int64Align = 8
	switch t.OS {
	case OS_Darwin:
		t.Triple = "x86_64-apple-macosx10.9.0"
		t.DataLayout = "e-m:o-i64:64-f80:128-n8:16:32:64-S128"
	case OS_Windows:
		t.Triple = "x86_64-pc-windows-msvc"
		t.DataLayout = "e-m:w-i64:64-f80:128-n8:16:32:64-S128"
	default:
		t.Triple = "x86_64-unknown-linux-gnu"
		t.DataLayout = "e-m:e-i64:64-f80:128-n8:16:32:64-S128"
	}
}

func (t *Target) fillX86() {
	t.PtrSize = 4
	t.Int64Align = 4
	switch t.OS {
	case OS_Darwin:
		t.Triple = "i386-apple-macosx10.9.0"
		t.DataLayout = "e-m:o-p:32:32-f64:32:64-f80:128-n8:16:32-S128"
	case OS_Windows:
		t.Triple = "i686-pc-windows-msvc"
		t.DataLayout = "e-m:x-p:32:32-i64:64-f80:32-n8:16:32-a:0:32-S32"
		t.Int64Align = 8
	default:
		t.Triple = "i686-unknown-linux-gnu"
		t.DataLayout = "e-m:e-p:32:32-f64:32:64-f80:32-n8:16:32-S128"
	}
}

func (t *Target) fillARM64() {
	t.PtrSize = 8
	t.Int64Align = 8
	switch t.OS {
	case OS_Darwin:
		t.Triple = "arm64-apple-macosx11.0.0"
		t.DataLayout = "e-m:o-i64:64-i128:128-n32:64-S128"
	case OS_Windows:
		t.Triple = "aarch64-pc-windows-msvc"
		t.DataLayout = "e-m:w-p:64:64-i32:32-i64:64-i128:128-n32:64-S128"
	default:
		t.Triple = "aarch64-unknown-linux-gnu"
		t.DataLayout = "e-m:e-i8:8:32-i16:16:32-i64:64-i128:128-n32:64-S128"
	}
}

// ---------------------------------------------------------------------------
// Helper queries
// ---------------------------------------------------------------------------

// FileExtObj returns the platform object file extension (.o or .obj).
func (t *Target) FileExtObj() string {
	if t.OS == OS_Windows {
		return ".obj"
	}
	return ".o"
}

// FileExtExe returns the platform executable extension ("" or ".exe").
func (t *Target) FileExtExe() string {
	if t.OS == OS_Windows {
		return ".exe"
	}
	return ""
}

// Is64Bit reports whether the target is a 64-bit architecture.
func (t *Target) Is64Bit() bool {
	return t.PtrSize == 8
}

// IsX86Family reports whether the target is x86 or x86-64.
func (t *Target) IsX86Family() bool {
	return t.Arch == Arch_x86_64 || t.Arch == Arch_x86
}

// StrongMethodLinkage reports whether method functions must be emitted with
// external rather than weak linkage. The darwin x86 linkers mishandle weak
// definitions referenced from the same object.
func (t *Target) StrongMethodLinkage() bool {
	return t.OS == OS_Darwin && t.IsX86Family()
}

// Header returns the module header lines for this target.
func (t *Target) Header() []string {
	return []string{
		fmt.Sprintf("target datalayout = %q", t.DataLayout),
		fmt.Sprintf("target triple = %q", t.Triple),
	}
}

// OSName returns the OS as a lowercase string.
func (t *Target) OSName() string {
	return t.OS.String()
}

// ArchName returns the architecture using Go-style names: "amd64", "arm64", "x86".
func (t *Target) ArchName() string {
	switch t.Arch {
	case Arch_x86_64:
		return "amd64"
	case Arch_x86:
		return "x86"
	case Arch_ARM64:
		return "arm64"
	default:
		return "unknown"
	}
}

// ---------------------------------------------------------------------------
// Data layout
// ---------------------------------------------------------------------------

// AlignOf returns the ABI alignment of ty in bytes.
func (t *Target) AlignOf(ty llvm.Type) int {
	switch ty := ty.(type) {
	case *llvm.IntegerType:
		switch {
		case ty.Bits <= 8:
			return 1
		case ty.Bits <= 16:
			return 2
		case ty.Bits <= 32:
			return 4
		}
		return t.Int64Align
	case *llvm.FloatingPointType:
		if ty.String() == "float" {
			return 4
		}
		return t.Int64Align
	case *llvm.PointerType, *llvm.FunctionType:
		return t.PtrSize
	case *llvm.ArrayType:
		return t.AlignOf(ty.Elem)
	case *llvm.StructureType:
		if ty.Packed {
			return 1
		}
		align := 1
		for _, f := range ty.Fields {
			if a := t.AlignOf(f); a > align {
				align = a
			}
		}
		return align
	}
	return t.PtrSize
}

// SizeOf returns the allocation size of ty in bytes, including tail
// padding.
func (t *Target) SizeOf(ty llvm.Type) int {
	switch ty := ty.(type) {
	case *llvm.IntegerType:
		return (ty.Bits + 7) / 8
	case *llvm.FloatingPointType:
		if ty.String() == "float" {
			return 4
		}
		return 8
	case *llvm.PointerType, *llvm.FunctionType:
		return t.PtrSize
	case *llvm.ArrayType:
		return ty.Size * t.SizeOf(ty.Elem)
	case *llvm.StructureType:
		size := 0
		for _, f := range ty.Fields {
			if !ty.Packed {
				size = alignTo(size, t.AlignOf(f))
			}
			size += t.SizeOf(f)
		}
		return alignTo(size, t.AlignOf(ty))
	}
	return 0
}

// OffsetOf returns the byte offset of field i of st.
func (t *Target) OffsetOf(st *llvm.StructureType, i int) int {
	off := 0
	for j, f := range st.Fields {
		if !st.Packed {
			off = alignTo(off, t.AlignOf(f))
		}
		if j == i {
			return off
		}
		off += t.SizeOf(f)
	}
	return off
}

func alignTo(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}
