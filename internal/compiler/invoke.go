package compiler

import (
	"aura/internal/ast"
	"aura/internal/llvm"
	"aura/internal/trampoline"
	"aura/internal/types"
)

var invokeKinds = map[ast.InvokeKind]trampoline.Kind{
	ast.StaticInvoke:    trampoline.Invokestatic,
	ast.VirtualInvoke:   trampoline.Invokevirtual,
	ast.SpecialInvoke:   trampoline.Invokespecial,
	ast.InterfaceInvoke: trampoline.Invokeinterface,
}

// invoke lowers a call and returns its widened result, or nil for void
// methods.
func (mb *methodBuilder) invoke(e *ast.InvokeExpr) llvm.Value {
	ref := e.Method
	if len(e.Args) != len(ref.Params) {
		mb.fail(mb.info.Pos, "%s takes %d arguments, got %d", ref, len(ref.Params), len(e.Args))
	}
	args := []llvm.Value{mb.env()}
	switch {
	case e.Kind == ast.StaticInvoke && e.Base != nil:
		mb.fail(mb.info.Pos, "static invoke of %s with a receiver", ref)
	case e.Kind != ast.StaticInvoke:
		if e.Base == nil {
			mb.fail(mb.info.Pos, "%s of %s without a receiver", e.Kind, ref)
		}
		base := mb.value(e.Base)
		mb.checkNull(base)
		args = append(args, base)
	}
	for i, a := range e.Args {
		args = append(args, mb.narrow(mb.value(a), ref.Params[i]))
	}

	if !mb.Config.Debug {
		if fn := mb.intrinsic(e); fn != nil {
			return mb.result(mb.b.Call(fn, args...), ref.Return)
		}
	}

	var callee llvm.Value
	if target := mb.directTarget(e); target != nil {
		sym := types.MethodSymbolOf(target)
		if target.IsSynchronized() {
			sym = types.SynchronizedWrapperSymbol(target.Class.Name, target.Name, target.Descriptor())
		}
		callee = llvm.NewFunctionRef(sym, types.MethodTypeOf(target))
	} else {
		t := trampoline.Invoke(invokeKinds[e.Kind], mb.class.Name, ref.Owner, ref.Name, ref.Descriptor())
		if e.Kind == ast.VirtualInvoke || e.Kind == ast.SpecialInvoke {
			t = t.WithRuntimeClass(runtimeClass(e.Base, ref.Owner))
		}
		callee = mb.trampoline(t)
	}
	return mb.result(mb.b.Call(callee, args...), ref.Return)
}

func (mb *methodBuilder) result(v llvm.Value, ret *ast.Type) llvm.Value {
	if v == nil {
		return nil
	}
	return mb.widen(v, ret)
}

// directTarget returns the method an invoke can call without a
// trampoline, or nil. Only methods of the class being compiled qualify,
// and a virtual call only when the target cannot be overridden.
// Interface calls always dispatch through a trampoline.
func (mb *methodBuilder) directTarget(e *ast.InvokeExpr) *ast.Method {
	if e.Kind == ast.InterfaceInvoke || e.Method.Owner != mb.class.Name {
		return nil
	}
	m := mb.class.FindMethod(e.Method.Name, e.Method.Descriptor())
	if m == nil || m.IsAbstract() {
		return nil
	}
	if m.IsStatic() != (e.Kind == ast.StaticInvoke) {
		return nil
	}
	switch e.Kind {
	case ast.StaticInvoke, ast.SpecialInvoke:
		return m
	}
	if mb.class.Modifiers.Has(ast.Final) || m.Modifiers.Has(ast.Final) || m.Modifiers.Has(ast.Private) {
		return m
	}
	return nil
}
