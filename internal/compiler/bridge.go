package compiler

import (
	"strconv"

	"aura/internal/ast"
	"aura/internal/llvm"
	"aura/internal/trampoline"
	"aura/internal/types"
)

// MarshaledArg is an object converted to a native handle for one bridge
// call. Its marshaler's afterBridgeCall hook sees it again after the call.
type MarshaledArg struct {
	ParamIndex int
	Object     llvm.Value
	Handle     llvm.Value
	Marshaler  *MarshalerMethod
}

// bridgeBuilder compiles one @Bridge method.
type bridgeBuilder struct {
	*methodBuilder

	dynamic  bool
	optional bool
	variadic int

	// sig is the native function's type: receiver and declared
	// parameters in native form, without the dynamic handle.
	sig *llvm.FunctionType
	// useC routes the call through a C compatibility wrapper.
	useC bool

	marshalers map[int]*MarshalerMethod
	marshaled  []MarshaledArg
}

func (c *MethodCompiler) compileBridge(m *llvm.Module, method *ast.Method, res *Result) *llvm.Function {
	if err := validateBridge(method); err != nil {
		panic(failure{err})
	}
	ann := method.Annotations.Find("Bridge")
	fn := llvm.NewFunction(types.MethodSymbolOf(method), c.methodLinkage(), types.MethodTypeOf(method))
	bb := &bridgeBuilder{
		methodBuilder: c.newBuilder(m, method, fn, res),
		dynamic:       ann.Bool("dynamic"),
		optional:      ann.Bool("optional"),
		variadic:      -1,
		marshalers:    make(map[int]*MarshalerMethod),
	}
	if v := method.Annotations.Find("Variadic"); v != nil {
		s, _ := v.Get("value")
		bb.variadic, _ = strconv.Atoi(s)
	}
	bb.build()
	return fn
}

// validateBridge checks the annotations of a bridge method before any
// code is generated.
func validateBridge(m *ast.Method) *CompileError {
	if !m.IsNative() {
		return validationError(m, "@Bridge method must be native")
	}
	ann := m.Annotations.Find("Bridge")
	if ann.Bool("dynamic") {
		if !m.IsStatic() {
			return validationError(m, "dynamic @Bridge method must be static")
		}
		if len(m.Params) == 0 || m.Params[0].Kind != ast.LongKind {
			return validationError(m, "dynamic @Bridge method must take the function pointer as its first long parameter")
		}
	}
	for i, p := range m.Params {
		if m.ParamAnnotation(i, "Pointer") != nil && p.Kind != ast.LongKind {
			return validationError(m, "@Pointer parameter %d must be long", i+1)
		}
		if m.ParamAnnotation(i, "ByVal") != nil && p.Kind != ast.ClassKind {
			return validationError(m, "@ByVal parameter %d must be a struct", i+1)
		}
	}
	if m.Annotations.Has("ByVal") && m.Return.Kind != ast.ClassKind {
		return validationError(m, "@ByVal return type must be a struct")
	}

	v := m.Annotations.Find("Variadic")
	if v == nil {
		return nil
	}
	s, _ := v.Get("value")
	first, err := strconv.Atoi(s)
	if err != nil {
		return validationError(m, "invalid @Variadic index %q", s)
	}
	// Positions count native parameters: the receiver, then the declared
	// parameters without the dynamic handle.
	var native []int
	if !m.IsStatic() {
		native = append(native, Receiver)
	}
	for i := range m.Params {
		if i == 0 && ann.Bool("dynamic") {
			continue
		}
		native = append(native, i)
	}
	if first < 1 || first > len(native) {
		return validationError(m, "@Variadic index %d out of range [1, %d]", first, len(native))
	}
	for _, i := range native[first:] {
		if m.ParamAnnotation(i, "ByVal") != nil {
			return validationError(m, "@ByVal parameter %d after the @Variadic index %d", i+1, first)
		}
	}
	return nil
}

func (bb *bridgeBuilder) invalid(format string, args ...any) {
	panic(failure{validationError(bb.method, format, args...)})
}

func (bb *bridgeBuilder) marshaler(param int) *MarshalerMethod {
	if mm, ok := bb.marshalers[param]; ok {
		return mm
	}
	if bb.Marshalers == nil {
		bb.invalid("no marshaler lookup configured")
	}
	mm, err := bb.Marshalers.Find(MarshalSite{Method: bb.method, Param: param})
	if err != nil {
		bb.invalid("%v", err)
	}
	bb.marshalers[param] = mm
	return mm
}

func (bb *bridgeBuilder) siteAnnotated(param int, name string) bool {
	return MarshalSite{Method: bb.method, Param: param}.annotation(name) != nil
}

// nativeType returns the native form of the value at site param.
func (bb *bridgeBuilder) nativeType(param int) llvm.Type {
	t := MarshalSite{Method: bb.method, Param: param}.Type()
	if !t.IsRef() {
		if t.Kind == ast.LongKind && bb.siteAnnotated(param, "Pointer") {
			return llvm.I8Ptr
		}
		return types.Of(t)
	}
	mm := bb.marshaler(param)
	if mm.Kind == ValueMarshaler {
		if bb.siteAnnotated(param, "ByVal") {
			bb.invalid("%s is marshaled by value and cannot be @ByVal", MarshalSite{Method: bb.method, Param: param})
		}
		return mm.NativeType
	}
	if bb.siteAnnotated(param, "ByVal") {
		st, err := bb.Marshalers.StructType(t.ClassName)
		if err != nil {
			bb.invalid("%v", err)
		}
		return st
	}
	return llvm.I8Ptr
}

// nativeParams lists the native parameter positions in call order.
func (bb *bridgeBuilder) nativeParams() []int {
	var ps []int
	if !bb.method.IsStatic() {
		ps = append(ps, Receiver)
	}
	for i := range bb.method.Params {
		if i == 0 && bb.dynamic {
			continue
		}
		ps = append(ps, i)
	}
	return ps
}

// nativeSignature computes sig and whether a C wrapper is needed: for
// variadic functions and whenever a struct crosses by value.
func (bb *bridgeBuilder) nativeSignature() {
	ret := bb.nativeType(Return)
	var params []llvm.Type
	for _, p := range bb.nativeParams() {
		params = append(params, bb.nativeType(p))
	}
	bb.sig = llvm.NewFunctionType(ret, params...)
	bb.useC = bb.variadic >= 0 || isStruct(ret)
	for _, p := range params {
		if isStruct(p) {
			bb.useC = true
		}
	}
}

// arg returns the Java value of native position p.
func (bb *bridgeBuilder) arg(p int) llvm.Value {
	if p == Receiver {
		return bb.this()
	}
	idx := 1 + p
	if !bb.method.IsStatic() {
		idx++
	}
	return bb.fn.Param(idx)
}

func (bb *bridgeBuilder) build() {
	bb.nativeSignature()
	entry := bb.fn.Entry()
	bb.b = entry
	env := bb.env()

	ctx := entry.AllocaNamed("trycatch", types.TrycatchContext)
	var retSlot *llvm.Variable
	if isStruct(bb.sig.Return) {
		retSlot = entry.AllocaNamed("ret", bb.sig.Return)
	}

	target := bb.loadTarget()

	var callee llvm.Value
	var args []llvm.Value
	if bb.useC {
		sym := types.BridgeCSymbol(bb.method)
		fixed := -1
		if bb.variadic >= 0 {
			fixed = bb.variadic
		}
		bb.res.CWrappers = append(bb.res.CWrappers, CWrapper{
			Symbol: sym,
			Source: cWrapperSource(sym, bb.sig, fixed),
		})
		callee = llvm.NewFunctionRef(sym, cWrapperType(bb.sig))
		args = append(args, target)
		if retSlot != nil {
			args = append(args, bb.b.Bitcast(retSlot, llvm.I8Ptr))
		}
	} else {
		callee = bb.b.Bitcast(target, llvm.PointerTo(bb.sig))
	}

	for i, p := range bb.nativeParams() {
		args = append(args, bb.marshalParam(p, bb.sig.Params[i]))
	}

	bb.b.Call(fnPushNativeFrame, env)
	sel := bb.b.GEP(llvm.I32Ptr, ctx, llvm.ConstI32(0), llvm.ConstI32(1))
	bb.b.Store(llvm.ConstI32(1), sel, false)
	caught := bb.b.Call(fnTrycatchEnter, env, bb.b.Bitcast(ctx, types.TrycatchContextPtr))
	success := bb.fn.NewBasicBlock("success")
	failure := bb.fn.NewBasicBlock("failure")
	bb.b.CondBr(bb.b.Icmp(llvm.CondEq, caught, llvm.ConstI32(0)), success, failure)

	bb.b = success
	result := bb.b.Call(callee, args...)
	bb.b.Call(fnTrycatchLeave, env)
	bb.b.Call(fnPopNativeFrame, env)
	bb.updateObjects()
	bb.b.Ret(bb.marshalReturn(result, retSlot))

	bb.b = failure
	bb.b.Call(fnTrycatchLeave, env)
	bb.b.Call(fnPopNativeFrame, env)
	ex := bb.b.Call(fnExceptionClear, env)
	bb.updateObjects()
	bb.b.Call(fnThrow, env, ex)
	bb.b.Unreachable()
}

// loadTarget returns the native function pointer. A dynamic bridge gets
// it as its first argument. Others read the slot filled when the method
// is bound and throw UnsatisfiedLinkError while it is null.
func (bb *bridgeBuilder) loadTarget() llvm.Value {
	if bb.dynamic {
		return bb.b.Convert(llvm.OpInttoptr, bb.fn.Param(1), llvm.I8Ptr)
	}
	slot := &llvm.Global{
		Name:  types.BridgePtrSymbol(bb.method),
		T:     llvm.I8Ptr,
		Value: llvm.NewNull(llvm.I8Ptr),
	}
	bb.addGlobal(slot)
	target := bb.b.Load(slot.Ref(), false)

	unbound := bb.fn.NewBasicBlock("unbound")
	bound := bb.fn.NewBasicBlock("bound")
	bb.b.CondBr(bb.b.Icmp(llvm.CondEq, target, llvm.NewNull(llvm.I8Ptr)), unbound, bound)

	thrower := fnThrowBridgeNotBound
	if bb.optional {
		thrower = fnThrowOptionalBridgeNotBound
	}
	m := bb.method
	unbound.Call(thrower, bb.env(),
		bb.mod.GetString([]byte(m.Class.Name)),
		bb.mod.GetString([]byte(m.Name)),
		bb.mod.GetString([]byte(m.Descriptor())))
	unbound.Unreachable()

	bb.b = bound
	return target
}

// marshalParam converts the Java value at native position p to nt.
func (bb *bridgeBuilder) marshalParam(p int, nt llvm.Type) llvm.Value {
	v := bb.arg(p)
	t := MarshalSite{Method: bb.method, Param: p}.Type()
	if !t.IsRef() {
		if llvm.IsPointer(nt) {
			return bb.b.Convert(llvm.OpInttoptr, v, nt)
		}
		return v
	}
	mm := bb.marshaler(p)
	if mm.Kind == ValueMarshaler {
		return bb.b.Call(bb.marshalerCall(mm.ToNative), bb.env(), v, llvm.ConstI64(marshalerCallTypeBridge))
	}
	if bb.siteAnnotated(p, "ByVal") || bb.siteAnnotated(p, "StructRet") {
		bb.checkNull(v)
	}
	handle := bb.b.Call(bb.marshalerCall(mm.ToNative), bb.env(), v, llvm.ConstI64(marshalerCallTypeBridge))
	bb.marshaled = append(bb.marshaled, MarshaledArg{ParamIndex: p, Object: v, Handle: handle, Marshaler: mm})
	if isStruct(nt) {
		nt = llvm.I8Ptr
	}
	return bb.b.Convert(llvm.OpInttoptr, handle, nt)
}

// marshalReturn converts the native result to the method's return value.
func (bb *bridgeBuilder) marshalReturn(v llvm.Value, retSlot *llvm.Variable) llvm.Value {
	ret := bb.method.Return
	switch {
	case ret.Kind == ast.VoidKind:
		return nil
	case !ret.IsRef():
		if llvm.IsPointer(bb.sig.Return) {
			return bb.b.Convert(llvm.OpPtrtoint, v, llvm.I64)
		}
		return v
	}
	mm := bb.marshaler(Return)
	flags := llvm.ConstI64(marshalerCallTypeBridge)
	class := bb.classLiteral(ret)
	if mm.Kind == ValueMarshaler {
		return bb.b.Call(bb.marshalerCall(mm.ToObject), bb.env(), class, v, flags)
	}
	if retSlot != nil {
		size := llvm.ConstI32(int32(bb.Marshalers.SizeOf(bb.sig.Return)))
		v = bb.b.Call(fnCopyStruct, bb.env(), bb.b.Bitcast(retSlot, llvm.I8Ptr), size)
	}
	handle := bb.b.Convert(llvm.OpPtrtoint, v, llvm.I64)
	return bb.b.Call(bb.marshalerCall(mm.ToObject), bb.env(), class, handle, flags)
}

// updateObjects lets marshalers copy native changes back into the
// objects they converted, in argument order.
func (bb *bridgeBuilder) updateObjects() {
	for _, a := range bb.marshaled {
		if a.Marshaler.AfterBridgeCall == nil {
			continue
		}
		bb.b.Call(bb.marshalerCall(*a.Marshaler.AfterBridgeCall), bb.env(),
			a.Object, a.Handle, llvm.ConstI64(marshalerCallTypeBridge))
	}
}

func (bb *bridgeBuilder) marshalerCall(ref ast.MethodRef) *llvm.FunctionRef {
	return bb.trampoline(trampoline.Invoke(trampoline.Invokestatic, bb.class.Name, ref.Owner, ref.Name, ref.Descriptor()))
}
