package trampoline

import (
	"fmt"

	"aura/internal/ast"
	"aura/internal/llvm"
	"aura/internal/types"
)

// Resolver answers the class hierarchy questions stub generation needs.
// *classpath.ClassPath implements it.
type Resolver interface {
	Lookup(name string) *ast.Class
	ResolveMethod(owner, name, desc string) *ast.Method
	ResolveField(owner, name, desc string) *ast.Field
}

// Runtime entry points used only by stubs.
var (
	findClass = llvm.NewFunctionRef("_bcFindClass",
		llvm.NewFunctionType(types.ClassPtr, types.EnvPtr, llvm.I8Ptr, llvm.I8Ptr))
	resolveMethod = llvm.NewFunctionRef("_bcResolveMethod",
		llvm.NewFunctionType(llvm.I8Ptr, types.EnvPtr, types.ObjectPtr, types.ClassPtr, llvm.I8Ptr, llvm.I8Ptr))
	checkcast = llvm.NewFunctionRef("_bcCheckcast",
		llvm.NewFunctionType(types.ObjectPtr, types.EnvPtr, types.ClassPtr, types.ObjectPtr))
	instanceof = llvm.NewFunctionRef("_bcInstanceof",
		llvm.NewFunctionType(llvm.I32, types.EnvPtr, types.ClassPtr, types.ObjectPtr))
	newObjectArray = llvm.NewFunctionRef("_bcNewObjectArray",
		llvm.NewFunctionType(types.ObjectPtr, types.EnvPtr, types.ClassPtr, llvm.I32))
	newMultiArray = llvm.NewFunctionRef("_bcNewMultiArray",
		llvm.NewFunctionType(types.ObjectPtr, types.EnvPtr, types.ClassPtr, llvm.I32, llvm.I32Ptr))
	initializeClass = llvm.NewFunctionRef("_bcInitializeClass",
		llvm.NewFunctionType(llvm.Void, types.EnvPtr, types.ClassPtr))

	throwNoClassDefFound     = thrower("_bcThrowNoClassDefFoundError")
	throwNoSuchMethod        = thrower("_bcThrowNoSuchMethodError")
	throwNoSuchField         = thrower("_bcThrowNoSuchFieldError")
	throwAbstractMethod      = thrower("_bcThrowAbstractMethodError")
	throwIncompatibleChange  = thrower("_bcThrowIncompatibleClassChangeError")
	throwInstantiationFailed = thrower("_bcThrowInstantiationError")
)

func thrower(name string) *llvm.FunctionRef {
	return llvm.NewFunctionRef(name, llvm.NewFunctionType(llvm.Void, types.EnvPtr, llvm.I8Ptr))
}

// Generator materialises one stub per trampoline. Stubs whose target can
// be resolved against the class path forward to the target symbol; the
// rest resolve lazily through the runtime or raise the linkage error the
// JVM would raise.
type Generator struct {
	Resolver Resolver
	// Header lines (target triple, data layout) for the generated module.
	Header []string
}

// Generate builds the link module for ts.
func (g *Generator) Generate(ts []Trampoline) (m *llvm.Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("generating stubs: %v", r)
		}
	}()
	m = llvm.NewModule()
	m.Header = g.Header
	for _, rt := range types.Runtime() {
		m.AddType(rt)
	}
	for _, t := range ts {
		if m.HasSymbol(t.Symbol()) {
			continue
		}
		fn := llvm.NewFunction(t.Symbol(), llvm.External, t.FunctionType())
		g.emit(m, fn, t)
		if err := m.AddFunction(fn); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (g *Generator) emit(m *llvm.Module, fn *llvm.Function, t Trampoline) {
	b := fn.Entry()
	switch t.Kind {
	case Invokestatic, Invokespecial, Invokevirtual, Invokeinterface:
		g.emitInvoke(m, b, t)
	case GetField, PutField, GetStatic, PutStatic:
		g.emitField(m, b, t)
	case New:
		c := g.Resolver.Lookup(t.TargetClass)
		switch {
		case c == nil:
			throw(m, b, throwNoClassDefFound, t.TargetClass)
		case c.IsInterface() || c.Modifiers.Has(ast.Abstract):
			throw(m, b, throwInstantiationFailed, t.TargetClass)
		default:
			forward(b, types.AllocatorSymbol(c.Name))
		}
	default:
		g.emitClassOp(m, b, t)
	}
}

func (g *Generator) emitInvoke(m *llvm.Module, b *llvm.BasicBlock, t Trampoline) {
	member := t.TargetClass + "." + t.Name + t.Desc
	c := g.Resolver.Lookup(t.TargetClass)
	if c == nil {
		throw(m, b, throwNoClassDefFound, t.TargetClass)
		return
	}
	if (t.Kind == Invokeinterface && !c.IsInterface()) || (t.Kind == Invokevirtual && c.IsInterface()) {
		throw(m, b, throwIncompatibleChange, t.TargetClass)
		return
	}
	target := g.Resolver.ResolveMethod(t.TargetClass, t.Name, t.Desc)
	if target == nil {
		throw(m, b, throwNoSuchMethod, member)
		return
	}
	if target.IsStatic() != (t.Kind == Invokestatic) {
		throw(m, b, throwIncompatibleChange, member)
		return
	}
	switch t.Kind {
	case Invokestatic, Invokespecial:
		if target.IsAbstract() {
			throw(m, b, throwAbstractMethod, member)
			return
		}
		if t.Kind == Invokestatic {
			b = initialized(m, b, t, target.Class.Name)
		}
		forward(b, implSymbol(target))
		return
	case Invokevirtual:
		if !target.IsAbstract() && (target.Modifiers.Has(ast.Private) ||
			target.Modifiers.Has(ast.Final) || target.Class.Modifiers.Has(ast.Final)) {
			forward(b, implSymbol(target))
			return
		}
	}
	// Dynamic dispatch on the receiver's class.
	fn := b.Function()
	b, cls := lazyClass(m, b, t, t.TargetClass)
	impl := b.Call(resolveMethod, fn.Param(0), fn.Param(1), cls,
		m.GetString([]byte(t.Name)), m.GetString([]byte(t.Desc)))
	callee := b.Bitcast(impl, llvm.PointerTo(fn.Sig))
	b.Ret(b.Call(callee, fn.Params()...))
}

func (g *Generator) emitField(m *llvm.Module, b *llvm.BasicBlock, t Trampoline) {
	member := t.TargetClass + "." + t.Name
	if g.Resolver.Lookup(t.TargetClass) == nil {
		throw(m, b, throwNoClassDefFound, t.TargetClass)
		return
	}
	f := g.Resolver.ResolveField(t.TargetClass, t.Name, t.Desc)
	if f == nil {
		throw(m, b, throwNoSuchField, member)
		return
	}
	static := t.Kind == GetStatic || t.Kind == PutStatic
	if f.IsStatic() != static {
		throw(m, b, throwIncompatibleChange, member)
		return
	}
	if static {
		b = initialized(m, b, t, f.Class.Name)
	}
	desc := f.Type.Descriptor()
	if t.Kind == GetField || t.Kind == GetStatic {
		forward(b, types.GetterSymbol(f.Class.Name, f.Name, desc))
	} else {
		forward(b, types.SetterSymbol(f.Class.Name, f.Name, desc))
	}
}

func (g *Generator) emitClassOp(m *llvm.Module, b *llvm.BasicBlock, t Trampoline) {
	if base := baseClass(t.TargetClass); base != "" && g.Resolver.Lookup(base) == nil {
		throw(m, b, throwNoClassDefFound, base)
		return
	}
	fn := b.Function()
	b, cls := lazyClass(m, b, t, t.TargetClass)
	switch t.Kind {
	case Anewarray:
		b.Ret(b.Call(newObjectArray, fn.Param(0), cls, fn.Param(1)))
	case Multianewarray:
		b.Ret(b.Call(newMultiArray, fn.Param(0), cls, fn.Param(1), fn.Param(2)))
	case Checkcast:
		b.Ret(b.Call(checkcast, fn.Param(0), cls, fn.Param(1)))
	case Instanceof:
		b.Ret(b.Call(instanceof, fn.Param(0), cls, fn.Param(1)))
	case LdcClass:
		b.Ret(b.Bitcast(cls, types.ObjectPtr))
	default:
		panic(fmt.Sprintf("trampoline: unexpected kind %s", t.Kind))
	}
}

// lazyClass loads the Class* of name, resolving it through the runtime on
// first use and caching it in a per-stub global. It returns the block
// that continues after resolution.
func lazyClass(m *llvm.Module, b *llvm.BasicBlock, t Trampoline, name string) (*llvm.BasicBlock, llvm.Value) {
	fn := b.Function()
	cache := &llvm.Global{
		Name:    t.Symbol() + "[class]",
		T:       types.ClassPtr,
		Value:   llvm.NewNull(types.ClassPtr),
		Linkage: llvm.Internal,
	}
	m.AddGlobal(cache)

	resolve := fn.NewBasicBlock("resolve")
	done := fn.NewBasicBlock("resolved")
	cached := b.Load(cache.Ref(), false)
	b.CondBr(b.Icmp(llvm.CondEq, cached, llvm.NewNull(types.ClassPtr)), resolve, done)

	found := resolve.Call(findClass, fn.Param(0),
		m.GetString([]byte(name)), m.GetString([]byte(t.CallingClass)))
	resolve.Store(found, cache.Ref(), false)
	resolve.Br(done)

	return done, done.Load(cache.Ref(), false)
}

// initialized runs the static initializer of class before the stub
// touches one of its static members. It returns the block that continues
// afterwards. A class never initializes itself through a stub.
func initialized(m *llvm.Module, b *llvm.BasicBlock, t Trampoline, class string) *llvm.BasicBlock {
	if class == t.CallingClass {
		return b
	}
	b, cls := lazyClass(m, b, t, class)
	b.Call(initializeClass, b.Function().Param(0), cls)
	return b
}

// forward makes the stub a tail call to symbol with the stub's own
// signature.
func forward(b *llvm.BasicBlock, symbol string) {
	fn := b.Function()
	b.Ret(b.Call(llvm.NewFunctionRef(symbol, fn.Sig), fn.Params()...))
}

func throw(m *llvm.Module, b *llvm.BasicBlock, thrower *llvm.FunctionRef, what string) {
	fn := b.Function()
	b.Call(thrower, fn.Param(0), m.GetString([]byte(what)))
	b.Unreachable()
}

func implSymbol(target *ast.Method) string {
	if target.IsSynchronized() {
		return types.SynchronizedWrapperSymbol(target.Class.Name, target.Name, target.Descriptor())
	}
	return types.MethodSymbolOf(target)
}

// baseClass returns the class name behind an internal name or array
// descriptor, or "" when the element type is primitive.
func baseClass(name string) string {
	if len(name) == 0 || name[0] != '[' {
		return name
	}
	t, err := ast.ParseDescriptor(name)
	if err != nil {
		return ""
	}
	if bt := t.BaseType(); bt.Kind == ast.ClassKind {
		return bt.ClassName
	}
	return ""
}
