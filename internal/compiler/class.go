package compiler

import (
	"fmt"
	"log/slog"
	"slices"

	"aura/internal/ast"
	"aura/internal/llvm"
	"aura/internal/semantic"
	"aura/internal/trampoline"
	"aura/internal/types"
)

// objectHeader is the part of every object preceding its fields: the
// Class* and the lock word.
var objectHeader = []llvm.Type{cls, llvm.I8Ptr}

// ClassCompiler turns one class into an LLVM module. Like MethodCompiler
// it is read-only and shared by all workers.
type ClassCompiler struct {
	Config  *Config
	Methods *MethodCompiler
}

// NewClassCompiler wires a class compiler over classes.
func NewClassCompiler(cfg *Config, classes Resolver) *ClassCompiler {
	return &ClassCompiler{
		Config: cfg,
		Methods: &MethodCompiler{
			Config:     cfg,
			Classes:    classes,
			Marshalers: NewMarshalerLookup(classes, cfg.Target, cfg.Marshalers),
		},
	}
}

// ClassResult is a compiled class.
type ClassResult struct {
	Class       string
	Module      *llvm.Module
	Trampolines *trampoline.Set
	// Catches lists the exception classes the landing pads match.
	Catches   []string
	CWrappers []CWrapper
	// Methods is the number of method bodies compiled.
	Methods int
}

// Compile compiles every concrete method of c together with the class's
// accessors, allocator and runtime description.
func (cc *ClassCompiler) Compile(c *ast.Class) (*ClassResult, error) {
	log := cc.Config.Logger
	diags := semantic.Analyze([]*ast.Class{c})
	for _, d := range diags {
		if d.Severity == semantic.Error {
			return nil, fmt.Errorf("compiling %s: %w", c.Name, d)
		}
		log.Debug("class check", "class", c.Name, "warning", d.Error())
	}

	m := llvm.NewModule()
	if cc.Config.Target != nil {
		m.Header = cc.Config.Target.Header()
	}
	for _, t := range types.Runtime() {
		m.AddType(t)
	}

	res := &ClassResult{Class: c.Name, Module: m, Trampolines: trampoline.NewSet()}
	layout, index, err := cc.instanceLayout(c)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", c.Name, err)
	}
	if err := cc.emitClassData(m, c, layout, index); err != nil {
		return nil, fmt.Errorf("compiling %s: %w", c.Name, err)
	}

	for _, method := range c.Methods {
		switch {
		case method.IsAbstract():
			continue
		case method.IsNative() && !method.Annotations.Has("Bridge"):
			// Bound by the runtime's native method registry.
			continue
		}
		mr, err := cc.Methods.Compile(m, method)
		if err != nil {
			return nil, fmt.Errorf("compiling %s: %w", c.Name, err)
		}
		res.Methods++
		res.Trampolines.AddAll(mr.Trampolines)
		for _, name := range mr.Catches {
			if !slices.Contains(res.Catches, name) {
				res.Catches = append(res.Catches, name)
			}
		}
		res.CWrappers = append(res.CWrappers, mr.CWrappers...)
	}
	log.Debug("compiled class", slog.String("class", c.Name),
		slog.Int("methods", res.Methods), slog.Int("trampolines", res.Trampolines.Len()))
	return res, nil
}

// instanceLayout returns the object layout of c: the header, then the
// instance fields of each super class outermost first, then c's own.
// index maps c's own fields to their struct positions.
func (cc *ClassCompiler) instanceLayout(c *ast.Class) (*llvm.StructureType, map[*ast.Field]int, error) {
	var chain []*ast.Class
	seen := make(map[string]bool)
	for k := c; k != nil; {
		if seen[k.Name] {
			return nil, nil, fmt.Errorf("class %s is its own super class", k.Name)
		}
		seen[k.Name] = true
		chain = append(chain, k)
		if k.Super == "" || k.IsInterface() {
			break
		}
		next := cc.Methods.Classes.Lookup(k.Super)
		if next == nil {
			return nil, nil, fmt.Errorf("super class %s of %s not found", k.Super, k.Name)
		}
		k = next
	}
	fields := slices.Clone(objectHeader)
	index := make(map[*ast.Field]int)
	for i := len(chain) - 1; i >= 0; i-- {
		for _, f := range chain[i].Fields {
			if f.IsStatic() {
				continue
			}
			if chain[i] == c {
				index[f] = len(fields)
			}
			fields = append(fields, types.Of(f.Type))
		}
	}
	return llvm.NewStructureType(fields...), index, nil
}

func (cc *ClassCompiler) emitClassData(m *llvm.Module, c *ast.Class, layout *llvm.StructureType, index map[*ast.Field]int) error {
	size := int32(0)
	if cc.Config.Target != nil {
		size = int32(cc.Config.Target.SizeOf(layout))
	}

	var super llvm.Value = llvm.NewNull(llvm.I8Ptr)
	if c.Super != "" {
		super = m.GetString([]byte(c.Super))
	}
	var methods int32
	for _, method := range c.Methods {
		if !method.IsAbstract() {
			methods++
		}
	}
	data := llvm.NewStructureConstant(
		llvm.ConstI32(int32(c.Modifiers)),
		m.GetString([]byte(c.Name)),
		super,
		llvm.ConstI32(size),
		llvm.ConstI32(int32(len(c.Fields))),
		llvm.ConstI32(methods),
	)
	dataSym := types.InfoStructSymbol(c.Name) + "data"
	globals := []*llvm.Global{
		{Name: dataSym, T: data.Type(), Value: data, Linkage: llvm.Private, Constant: true},
		{
			Name:     types.InfoStructSymbol(c.Name),
			T:        llvm.I8Ptr,
			Value:    llvm.NewConstantBitcast(llvm.NewGlobalRef(dataSym, data.Type()), llvm.I8Ptr),
			Constant: true,
		},
		{Name: types.ClassCacheSymbol(c.Name), T: cls, Value: llvm.NewNull(cls), Linkage: llvm.Internal},
	}
	for _, g := range globals {
		if err := m.AddGlobal(g); err != nil {
			return err
		}
	}

	fns := []*llvm.Function{cc.ldcInternal(m, c)}
	if !c.IsInterface() && !c.Modifiers.Has(ast.Abstract) {
		fns = append(fns, allocator(c, size))
	}
	for _, f := range c.Fields {
		if f.IsStatic() {
			g := &llvm.Global{
				Name:    types.StaticStorageSymbol(c.Name, f.Name, f.Type.Descriptor()),
				T:       types.Of(f.Type),
				Value:   &llvm.ZeroInitializer{T: types.Of(f.Type)},
				Linkage: llvm.Internal,
			}
			if err := m.AddGlobal(g); err != nil {
				return err
			}
			fns = append(fns, staticGetter(c, f, g), staticSetter(c, f, g))
			continue
		}
		fns = append(fns, instanceGetter(c, f, layout, index[f]), instanceSetter(c, f, layout, index[f]))
	}
	for _, fn := range fns {
		if err := m.AddFunction(fn); err != nil {
			return err
		}
	}
	return nil
}

// ldcInternal returns the class object of c, resolving it on first use.
func (cc *ClassCompiler) ldcInternal(m *llvm.Module, c *ast.Class) *llvm.Function {
	ref := ldcInternalRef(c.Name)
	fn := llvm.NewFunction(ref.Name, llvm.External, ref.Sig)
	b := fn.Entry()
	cache := llvm.NewGlobalRef(types.ClassCacheSymbol(c.Name), cls)
	resolve := fn.NewBasicBlock("resolve")
	done := fn.NewBasicBlock("resolved")
	b.CondBr(b.Icmp(llvm.CondEq, b.Load(cache, false), llvm.NewNull(cls)), resolve, done)

	found := resolve.Call(fnFindClass, fn.Param(0), m.GetString([]byte(c.Name)), llvm.NewNull(llvm.I8Ptr))
	resolve.Store(found, cache, false)
	resolve.Br(done)

	done.Ret(done.Bitcast(done.Load(cache, false), obj))
	return fn
}

func allocator(c *ast.Class, size int32) *llvm.Function {
	ref := allocatorRef(c.Name)
	fn := llvm.NewFunction(ref.Name, llvm.External, ref.Sig)
	b := fn.Entry()
	class := b.Bitcast(b.Call(ldcInternalRef(c.Name), fn.Param(0)), cls)
	b.Call(fnInitializeClass, fn.Param(0), class)
	b.Ret(b.Call(fnAllocate, fn.Param(0), class, llvm.ConstI32(size)))
	return fn
}

func fieldRefOf(c *ast.Class, f *ast.Field) ast.FieldRef {
	return ast.FieldRef{Owner: c.Name, Name: f.Name, Type: f.Type}
}

func staticGetter(c *ast.Class, f *ast.Field, g *llvm.Global) *llvm.Function {
	ref := getterRef(fieldRefOf(c, f), true)
	fn := llvm.NewFunction(ref.Name, llvm.External, ref.Sig)
	b := fn.Entry()
	b.Ret(b.Load(g.Ref(), f.Modifiers.Has(ast.Volatile)))
	return fn
}

func staticSetter(c *ast.Class, f *ast.Field, g *llvm.Global) *llvm.Function {
	ref := setterRef(fieldRefOf(c, f), true)
	fn := llvm.NewFunction(ref.Name, llvm.External, ref.Sig)
	b := fn.Entry()
	b.Store(fn.Param(1), g.Ref(), f.Modifiers.Has(ast.Volatile))
	b.Ret(nil)
	return fn
}

func fieldPtr(b *llvm.BasicBlock, o llvm.Value, f *ast.Field, layout *llvm.StructureType, idx int) llvm.Value {
	p := b.Bitcast(o, llvm.PointerTo(layout))
	return b.GEP(llvm.PointerTo(types.Of(f.Type)), p, llvm.ConstI32(0), llvm.ConstI32(int32(idx)))
}

func instanceGetter(c *ast.Class, f *ast.Field, layout *llvm.StructureType, idx int) *llvm.Function {
	ref := getterRef(fieldRefOf(c, f), false)
	fn := llvm.NewFunction(ref.Name, llvm.External, ref.Sig)
	b := fn.Entry()
	b.Ret(b.Load(fieldPtr(b, fn.Param(1), f, layout, idx), f.Modifiers.Has(ast.Volatile)))
	return fn
}

func instanceSetter(c *ast.Class, f *ast.Field, layout *llvm.StructureType, idx int) *llvm.Function {
	ref := setterRef(fieldRefOf(c, f), false)
	fn := llvm.NewFunction(ref.Name, llvm.External, ref.Sig)
	b := fn.Entry()
	b.Store(fn.Param(2), fieldPtr(b, fn.Param(1), f, layout, idx), f.Modifiers.Has(ast.Volatile))
	b.Ret(nil)
	return fn
}
