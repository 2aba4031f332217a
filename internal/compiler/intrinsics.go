package compiler

import (
	"strings"

	"aura/internal/ast"
	"aura/internal/llvm"
)

// Intrinsics replace calls to well-known library methods with runtime
// routines. Each routine has the signature of the method it replaces, so
// the call site passes the same arguments either way.

func intrinsicFn(name string, ret llvm.Type, params ...llvm.Type) *llvm.FunctionRef {
	return runtimeFn("intrinsics."+name, ret, append([]llvm.Type{env}, params...)...)
}

// simpleIntrinsics is keyed by owner.name+descriptor.
var simpleIntrinsics = map[string]*llvm.FunctionRef{
	"java/lang/Class.getSuperclass()Ljava/lang/Class;":    intrinsicFn("java_lang_Class_getSuperclass", obj, obj),
	"java/lang/Class.getComponentType()Ljava/lang/Class;": intrinsicFn("java_lang_Class_getComponentType", obj, obj),
	"java/lang/Class.isArray()Z":                          intrinsicFn("java_lang_Class_isArray", llvm.I8, obj),
	"java/lang/Class.isPrimitive()Z":                      intrinsicFn("java_lang_Class_isPrimitive", llvm.I8, obj),
	"java/lang/Object.getClass()Ljava/lang/Class;":        intrinsicFn("java_lang_Object_getClass", obj, obj),
	"java/lang/Math.abs(F)F":                              intrinsicFn("java_lang_Math_abs_F", llvm.Float, llvm.Float),
	"java/lang/Math.abs(D)D":                              intrinsicFn("java_lang_Math_abs_D", llvm.Double, llvm.Double),
	"java/lang/Math.sqrt(D)D":                             intrinsicFn("java_lang_Math_sqrt", llvm.Double, llvm.Double),
	"java/lang/Math.cos(D)D":                              intrinsicFn("java_lang_Math_cos", llvm.Double, llvm.Double),
	"java/lang/Math.sin(D)D":                              intrinsicFn("java_lang_Math_sin", llvm.Double, llvm.Double),
}

type intrinsicHandler func(mb *methodBuilder, e *ast.InvokeExpr) *llvm.FunctionRef

// intrinsicHandlers match invokes that depend on more than the callee.
var intrinsicHandlers = []intrinsicHandler{
	vmMemmove,
	stringGetCharsArraycopy,
}

// intrinsic returns the routine replacing e, or nil.
func (mb *methodBuilder) intrinsic(e *ast.InvokeExpr) *llvm.FunctionRef {
	if fn, ok := simpleIntrinsics[e.Method.String()]; ok {
		return fn
	}
	for _, h := range intrinsicHandlers {
		if fn := h(mb, e); fn != nil {
			return fn
		}
	}
	return nil
}

// vmClass holds the raw memory primitives of the runtime library.
const vmClass = "aura/rt/VM"

// vmMemmove maps VM.memmove8/16/32/64(long, long, long) to raw moves.
func vmMemmove(mb *methodBuilder, e *ast.InvokeExpr) *llvm.FunctionRef {
	ref := e.Method
	if ref.Owner != vmClass || !strings.HasPrefix(ref.Name, "memmove") || ref.Descriptor() != "(JJJ)V" {
		return nil
	}
	return intrinsicFn("aura_rt_VM_"+ref.Name, llvm.Void, llvm.I64, llvm.I64, llvm.I64)
}

// stringGetCharsArraycopy specialises the char copy String._getChars
// performs.
func stringGetCharsArraycopy(mb *methodBuilder, e *ast.InvokeExpr) *llvm.FunctionRef {
	if e.Method.Owner != "java/lang/System" || e.Method.Name != "arraycopy" {
		return nil
	}
	if mb.class.Name != "java/lang/String" || mb.method.Name != "_getChars" {
		return nil
	}
	return intrinsicFn("java_lang_System_arraycopy_C", llvm.Void, obj, llvm.I32, obj, llvm.I32, llvm.I32)
}

// primitiveTypeFields maps the wrapper classes whose TYPE field holds a
// primitive Class object to the primitive's descriptor.
var primitiveTypeFields = map[string]string{
	"java/lang/Boolean":   "Z",
	"java/lang/Byte":      "B",
	"java/lang/Character": "C",
	"java/lang/Short":     "S",
	"java/lang/Integer":   "I",
	"java/lang/Long":      "J",
	"java/lang/Float":     "F",
	"java/lang/Double":    "D",
}

// staticFieldIntrinsic returns the routine loading f, or nil.
func staticFieldIntrinsic(f ast.FieldRef) *llvm.FunctionRef {
	if f.Name != "TYPE" {
		return nil
	}
	desc, ok := primitiveTypeFields[f.Owner]
	if !ok {
		return nil
	}
	return intrinsicFn("ldc_prim_"+desc, obj)
}
