package compiler

import (
	"aura/internal/ast"
	"aura/internal/llvm"
	"aura/internal/types"
)

// ---------------------------------------------------------------------------
// Runtime entry points
//
// Every function here is implemented by the runtime library. The module
// renderer declares the ones a module references.
// ---------------------------------------------------------------------------

func runtimeFn(name string, ret llvm.Type, params ...llvm.Type) *llvm.FunctionRef {
	return llvm.NewFunctionRef(name, llvm.NewFunctionType(ret, params...))
}

var (
	env = types.EnvPtr
	obj = types.ObjectPtr
	cls = types.ClassPtr
)

var (
	fnTrycatchEnter            = runtimeFn("_bcTrycatchEnter", llvm.I32, env, types.TrycatchContextPtr)
	fnTrycatchLeave            = runtimeFn("_bcTrycatchLeave", llvm.Void, env)
	fnThrow                    = runtimeFn("_bcThrow", llvm.Void, env, obj)
	fnExceptionClear           = runtimeFn("_bcExceptionClear", obj, env)
	fnThrowIfExceptionOccurred = runtimeFn("_bcThrowIfExceptionOccurred", llvm.Void, env)

	fnCheckNull          = runtimeFn("_bcCheckNull", llvm.Void, env, obj)
	fnCheckLower         = runtimeFn("_bcCheckLower", llvm.Void, env, obj, llvm.I32)
	fnCheckUpper         = runtimeFn("_bcCheckUpper", llvm.Void, env, obj, llvm.I32)
	fnCheckStackOverflow = runtimeFn("_bcCheckStackOverflow", llvm.Void, env)

	fnIdiv = runtimeFn("_bcIdiv", llvm.I32, env, llvm.I32, llvm.I32)
	fnIrem = runtimeFn("_bcIrem", llvm.I32, env, llvm.I32, llvm.I32)
	fnLdiv = runtimeFn("_bcLdiv", llvm.I64, env, llvm.I64, llvm.I64)
	fnLrem = runtimeFn("_bcLrem", llvm.I64, env, llvm.I64, llvm.I64)
	fnFrem = runtimeFn("_bcFrem", llvm.Float, env, llvm.Float, llvm.Float)
	fnDrem = runtimeFn("_bcDrem", llvm.Double, env, llvm.Double, llvm.Double)

	fnFcmpl = runtimeFn("_bcFcmpl", llvm.I32, llvm.Float, llvm.Float)
	fnFcmpg = runtimeFn("_bcFcmpg", llvm.I32, llvm.Float, llvm.Float)
	fnDcmpl = runtimeFn("_bcDcmpl", llvm.I32, llvm.Double, llvm.Double)
	fnDcmpg = runtimeFn("_bcDcmpg", llvm.I32, llvm.Double, llvm.Double)

	fnF2i = runtimeFn("_bcF2i", llvm.I32, llvm.Float)
	fnF2l = runtimeFn("_bcF2l", llvm.I64, llvm.Float)
	fnD2i = runtimeFn("_bcD2i", llvm.I32, llvm.Double)
	fnD2l = runtimeFn("_bcD2l", llvm.I64, llvm.Double)

	fnArrayLength           = runtimeFn("_bcArrayLength", llvm.I32, obj)
	fnSetObjectArrayElement = runtimeFn("_bcSetObjectArrayElement", llvm.Void, env, obj, llvm.I32, obj)
	fnCheckcastPrimArray    = runtimeFn("_bcCheckcastPrimArray", obj, env, cls, obj)
	fnInstanceofPrimArray   = runtimeFn("_bcInstanceofPrimArray", llvm.I32, env, cls, obj)

	fnMonitorEnter = runtimeFn("_bcMonitorEnter", llvm.Void, env, obj)
	fnMonitorExit  = runtimeFn("_bcMonitorExit", llvm.Void, env, obj)

	fnLdcString           = runtimeFn("_bcLdcString", obj, env, llvm.PointerTo(obj), llvm.I8Ptr, llvm.I32)
	fnRegisterFinalizable = runtimeFn("_bcRegisterFinalizable", llvm.Void, env, obj)

	fnPushNativeFrame = runtimeFn("_bcPushNativeFrame", llvm.Void, env)
	fnPopNativeFrame  = runtimeFn("_bcPopNativeFrame", llvm.Void, env)
	fnCopyStruct      = runtimeFn("_bcCopyStruct", llvm.I8Ptr, env, llvm.I8Ptr, llvm.I32)

	fnThrowBridgeNotBound = runtimeFn("_bcThrowUnsatisfiedLinkErrorBridgeNotBound",
		llvm.Void, env, llvm.I8Ptr, llvm.I8Ptr, llvm.I8Ptr)
	fnThrowOptionalBridgeNotBound = runtimeFn("_bcThrowUnsatisfiedLinkErrorOptionalBridgeNotBound",
		llvm.Void, env, llvm.I8Ptr, llvm.I8Ptr, llvm.I8Ptr)

	fnAllocate        = runtimeFn("_bcAllocate", obj, env, cls, llvm.I32)
	fnFindClass       = runtimeFn("_bcFindClass", cls, env, llvm.I8Ptr, llvm.I8Ptr)
	fnInitializeClass = runtimeFn("_bcInitializeClass", llvm.Void, env, cls)
)

// arrayLoadFn returns the element reader for arrays of elem.
func arrayLoadFn(elem *ast.Type) *llvm.FunctionRef {
	return runtimeFn("_bcArrayLoad_"+types.ElementSuffix(elem), types.Of(elem), obj, llvm.I32)
}

// arrayStoreFn returns the element writer for arrays of primitive elem.
func arrayStoreFn(elem *ast.Type) *llvm.FunctionRef {
	return runtimeFn("_bcArrayStore_"+types.ElementSuffix(elem), llvm.Void, obj, llvm.I32, types.Of(elem))
}

// newPrimArrayFn returns the allocator for one-dimensional arrays of elem.
func newPrimArrayFn(elem *ast.Type) *llvm.FunctionRef {
	return runtimeFn("_bcNew"+types.PrimitiveName(elem)+"Array", obj, env, llvm.I32)
}

// ---------------------------------------------------------------------------
// Symbols defined by class compilation
// ---------------------------------------------------------------------------

func methodRef(owner, name, desc string, static bool) *llvm.FunctionRef {
	ft, err := types.MethodTypeFromDescriptor(desc, static)
	if err != nil {
		panic(err)
	}
	return llvm.NewFunctionRef(types.MethodSymbol(owner, name, desc), ft)
}

func allocatorRef(class string) *llvm.FunctionRef {
	return llvm.NewFunctionRef(types.AllocatorSymbol(class), llvm.NewFunctionType(obj, env))
}

func ldcInternalRef(class string) *llvm.FunctionRef {
	return llvm.NewFunctionRef(types.LdcInternalSymbol(class), llvm.NewFunctionType(obj, env))
}

func getterRef(f ast.FieldRef, static bool) *llvm.FunctionRef {
	sym := types.GetterSymbol(f.Owner, f.Name, f.Descriptor())
	if static {
		return llvm.NewFunctionRef(sym, llvm.NewFunctionType(types.Of(f.Type), env))
	}
	return llvm.NewFunctionRef(sym, llvm.NewFunctionType(types.Of(f.Type), env, obj))
}

func setterRef(f ast.FieldRef, static bool) *llvm.FunctionRef {
	sym := types.SetterSymbol(f.Owner, f.Name, f.Descriptor())
	if static {
		return llvm.NewFunctionRef(sym, llvm.NewFunctionType(llvm.Void, env, types.Of(f.Type)))
	}
	return llvm.NewFunctionRef(sym, llvm.NewFunctionType(llvm.Void, env, obj, types.Of(f.Type)))
}
