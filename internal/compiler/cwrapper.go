package compiler

import (
	"fmt"
	"slices"
	"strings"

	"aura/internal/llvm"
)

// A compatibility wrapper is a C function called with the simple
// convention the generated IR can express: the target pointer first,
// a result pointer when the native function returns a struct, and every
// struct or pointer argument as void*. The wrapper restores the real
// signature so the C compiler applies the platform ABI, including
// by-value structs and variadic calls.

// cType names t in the wrapper's outer signature.
func cType(t llvm.Type) string {
	switch t := t.(type) {
	case *llvm.VoidType:
		return "void"
	case *llvm.IntegerType:
		switch t.Bits {
		case 8:
			return "char"
		case 16:
			return "short"
		case 32:
			return "int"
		case 64:
			return "long long"
		}
	case *llvm.FloatingPointType:
		return t.String()
	}
	return "void*"
}

// cNativeType names t as the native function sees it. Structs become
// local struct declarations named after base and idx, collected in
// structs.
func cNativeType(t llvm.Type, base string, idx int, structs map[string]string) string {
	st, ok := t.(*llvm.StructureType)
	if !ok {
		return cType(t)
	}
	name := fmt.Sprintf("%s_%d", base, idx)
	var body strings.Builder
	body.WriteString("{")
	for i, f := range st.Fields {
		fmt.Fprintf(&body, "%s m%d;", cNativeType(f, name, i, structs), i)
	}
	body.WriteString("}")
	structs[name] = body.String()
	return "struct " + name
}

func isStruct(t llvm.Type) bool {
	_, ok := t.(*llvm.StructureType)
	return ok
}

// cWrapperType is the IR signature used to call the wrapper of sig.
func cWrapperType(sig *llvm.FunctionType) *llvm.FunctionType {
	params := []llvm.Type{llvm.I8Ptr}
	ret := sig.Return
	if isStruct(ret) {
		params = append(params, llvm.I8Ptr)
		ret = llvm.Void
	}
	for _, p := range sig.Params {
		if isStruct(p) || llvm.IsPointer(p) {
			p = llvm.I8Ptr
		}
		params = append(params, p)
	}
	return llvm.NewFunctionType(ret, params...)
}

// cWrapperSource returns the C text of the wrapper called name for a
// native function of type sig. A non-negative fixed makes the native
// function variadic after its first fixed parameters.
func cWrapperSource(name string, sig *llvm.FunctionType, fixed int) string {
	structRet := isStruct(sig.Return)
	structs := make(map[string]string)

	var hi strings.Builder
	if structRet {
		hi.WriteString("void")
	} else {
		hi.WriteString(cType(sig.Return))
	}
	fmt.Fprintf(&hi, " %s(void* target", name)
	if structRet {
		hi.WriteString(", void* ret")
	}
	for i, p := range sig.Params {
		fmt.Fprintf(&hi, ", %s p%d", cType(p), i)
	}
	hi.WriteString(")")

	loRet := cNativeType(sig.Return, name, 0, structs)
	n := len(sig.Params)
	if fixed >= 0 {
		n = fixed
	}
	var lo, args []string
	for i, p := range sig.Params {
		t := cNativeType(p, name, i+1, structs)
		if i < n {
			lo = append(lo, t)
		}
		if isStruct(p) {
			args = append(args, fmt.Sprintf("*((%s*)p%d)", t, i))
		} else {
			args = append(args, fmt.Sprintf("p%d", i))
		}
	}
	switch {
	case fixed >= 0:
		lo = append(lo, "...")
	case len(lo) == 0:
		lo = append(lo, "void")
	}

	var sb strings.Builder
	sb.WriteString(hi.String())
	sb.WriteString(" {\n")
	// Nested structs have longer names and must be declared first.
	names := make([]string, 0, len(structs))
	for k := range structs {
		names = append(names, k)
	}
	slices.Sort(names)
	slices.Reverse(names)
	for _, k := range names {
		fmt.Fprintf(&sb, "    struct %s %s;\n", k, structs[k])
	}
	sb.WriteString("    ")
	switch {
	case structRet:
		fmt.Fprintf(&sb, "*((%s*)ret) = ", loRet)
	case !isVoid(sig.Return):
		sb.WriteString("return ")
	}
	fmt.Fprintf(&sb, "((%s (*)(%s)) target)(%s);\n", loRet, strings.Join(lo, ", "), strings.Join(args, ", "))
	sb.WriteString("}\n")
	return sb.String()
}

func isVoid(t llvm.Type) bool {
	_, ok := t.(*llvm.VoidType)
	return ok
}
