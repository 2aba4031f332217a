package compiler

import (
	"aura/internal/ast"
	"aura/internal/llvm"
	"aura/internal/types"
)

// compileSynchronized builds the wrapper that holds the method's monitor
// around a call to target. The monitor is the class object for static
// methods and the receiver otherwise. It is released on both the normal
// and the exceptional path.
func (c *MethodCompiler) compileSynchronized(method *ast.Method, target *llvm.Function) *llvm.Function {
	sym := types.SynchronizedWrapperSymbol(method.Class.Name, method.Name, method.Descriptor())
	fn := llvm.NewFunction(sym, c.methodLinkage(), target.Sig)
	b := fn.Entry()
	env := fn.Param(0)

	var monitor llvm.Value
	if method.IsStatic() {
		monitor = b.Call(ldcInternalRef(method.Class.Name), env)
	} else {
		monitor = fn.Param(1)
	}
	b.Call(fnMonitorEnter, env, monitor)

	ctx := b.AllocaNamed("trycatch", types.TrycatchContext)
	sel := b.GEP(llvm.I32Ptr, ctx, llvm.ConstI32(0), llvm.ConstI32(1))
	b.Store(llvm.ConstI32(1), sel, false)
	caught := b.Call(fnTrycatchEnter, env, ctx)

	success := fn.NewBasicBlock("success")
	failure := fn.NewBasicBlock("failure")
	b.CondBr(b.Icmp(llvm.CondEq, caught, llvm.ConstI32(0)), success, failure)

	result := success.Call(target.Ref(), fn.Params()...)
	success.Call(fnTrycatchLeave, env)
	success.Call(fnMonitorExit, env, monitor)
	success.Ret(result)

	failure.Call(fnTrycatchLeave, env)
	failure.Call(fnMonitorExit, env, monitor)
	failure.Call(fnThrowIfExceptionOccurred, env)
	failure.Unreachable()
	return fn
}
