package compiler

import (
	"fmt"

	"aura/internal/ast"
	"aura/internal/llvm"
	"aura/internal/trampoline"
	"aura/internal/types"
)

// Resolver answers the class questions method compilation asks.
// *classpath.ClassPath implements it.
type Resolver interface {
	Lookup(name string) *ast.Class
	IsSubclass(name, super string) bool
}

// MethodCompiler lowers single methods into an LLVM module. It holds only
// read-only state and may be shared by goroutines compiling different
// classes.
type MethodCompiler struct {
	Config     *Config
	Classes    Resolver
	Marshalers *MarshalerLookup
}

// CWrapper is the C source of a bridge compatibility wrapper.
type CWrapper struct {
	Symbol string `yaml:"symbol"`
	Source string `yaml:"source"`
}

// Result is everything one method compilation produced besides the
// definitions added to the module.
type Result struct {
	Function *llvm.Function
	// Synchronized is the monitor-holding wrapper of a synchronized method.
	Synchronized *llvm.Function
	Trampolines  *trampoline.Set
	// Catches lists the classes whose info structs the landing pads
	// reference, in first-use order.
	Catches   []string
	CWrappers []CWrapper
}

// Compile lowers method into m. A module that received a failed method
// must be discarded; the class compiler never writes one out.
func (c *MethodCompiler) Compile(m *llvm.Module, method *ast.Method) (res *Result, err error) {
	defer func() {
		if err != nil {
			res = nil
		}
	}()
	defer recoverFailure(method, &err)

	res = &Result{Trampolines: trampoline.NewSet()}
	var fn *llvm.Function
	if method.Annotations.Has("Bridge") {
		fn = c.compileBridge(m, method, res)
	} else {
		if method.Body == nil {
			return nil, &CompileError{
				Kind:   Malformed,
				Class:  method.Class.Name,
				Method: method.Name + method.Descriptor(),
				Pos:    method.Pos,
				Reason: "method has no body",
			}
		}
		fn = c.compileBody(m, method, res)
	}
	if err := m.AddFunction(fn); err != nil {
		return nil, err
	}
	res.Function = fn
	if method.IsSynchronized() {
		wrapper := c.compileSynchronized(method, fn)
		if err := m.AddFunction(wrapper); err != nil {
			return nil, err
		}
		res.Synchronized = wrapper
	}
	return res, nil
}

func (c *MethodCompiler) methodLinkage() llvm.Linkage {
	if c.Config.Target != nil && c.Config.Target.StrongMethodLinkage() {
		return llvm.External
	}
	return llvm.Weak
}

// ---------------------------------------------------------------------------
// Per-method state
// ---------------------------------------------------------------------------

// methodBuilder owns the state of one method compilation. It is never
// shared.
type methodBuilder struct {
	*MethodCompiler

	mod    *llvm.Module
	class  *ast.Class
	method *ast.Method
	body   *ast.Body
	fn     *llvm.Function
	res    *Result

	// b is the block receiving instructions.
	b *llvm.BasicBlock
	// info is the metadata of the statement being lowered.
	info *ast.StmtInfo

	locals   map[*ast.Local]*llvm.Variable
	volatile bool
	dims     *llvm.Variable
	ctx      *llvm.Variable

	traps   *trapIndex
	blocks  map[int]*llvm.BasicBlock
	catches map[string]bool

	// shadow is set once the method pushed a shadow frame; line is the
	// last line published in the current block.
	shadow bool
	line   int
}

func (c *MethodCompiler) newBuilder(m *llvm.Module, method *ast.Method, fn *llvm.Function, res *Result) *methodBuilder {
	return &methodBuilder{
		MethodCompiler: c,
		mod:            m,
		class:          method.Class,
		method:         method,
		body:           method.Body,
		fn:             fn,
		res:            res,
		locals:         make(map[*ast.Local]*llvm.Variable),
		blocks:         make(map[int]*llvm.BasicBlock),
		catches:        make(map[string]bool),
		info:           &ast.StmtInfo{Pos: method.Pos},
	}
}

func (c *MethodCompiler) compileBody(m *llvm.Module, method *ast.Method, res *Result) *llvm.Function {
	fn := llvm.NewFunction(types.MethodSymbolOf(method), c.methodLinkage(), types.MethodTypeOf(method))
	mb := c.newBuilder(m, method, fn, res)
	mb.build()
	return fn
}

func (mb *methodBuilder) build() {
	stmts := mb.body.Stmts
	mb.b = mb.fn.Entry()
	mb.traps = newTrapIndex(mb.body)
	mb.volatile = mb.traps.hasTraps()

	mb.declareLocals()
	if n := maxDimensions(stmts); n > 0 {
		mb.dims = mb.b.AllocaNamed("dims", &llvm.ArrayType{Size: n, Elem: llvm.I32})
	}
	if mb.Config.ShadowFrames && len(stmts) > 1 {
		mb.pushShadowFrame()
	}
	if hasInvoke(stmts) {
		mb.b.Call(fnCheckStackOverflow, mb.env())
	}
	if mb.method.Name == "<clinit>" {
		mb.initConstantFields()
	}

	if len(stmts) == 0 {
		if mb.method.Return.Kind != ast.VoidKind {
			mb.fail(mb.method.Pos, "empty body in a method returning %s", mb.method.Return)
		}
		mb.emitReturn(nil)
		return
	}

	for i := range stmts {
		if mb.traps.isBlockStart(i) {
			mb.blocks[i] = mb.fn.NewBasicBlock(fmt.Sprintf("L%d", i))
		}
	}
	if mb.traps.hasTraps() {
		mb.enterTrycatch()
	} else {
		mb.b.Br(mb.blocks[0])
	}

	for i, s := range stmts {
		if blk := mb.blocks[i]; blk != nil {
			if !mb.b.Terminated() {
				mb.b.Br(blk)
			}
			mb.b = blk
			mb.line = 0
		} else if mb.b.Terminated() {
			mb.b = mb.fn.NewBasicBlock(fmt.Sprintf("U%d", i))
			mb.line = 0
		}
		mb.info = s.Info()
		mb.markLine(mb.info.Pos.Line)
		if mb.traps.hasTraps() {
			if sel, ok := mb.traps.selectorAt(i); ok {
				mb.storeSelector(sel)
			}
		}
		mb.stmt(i, s)
	}
	if !mb.b.Terminated() {
		mb.fail(stmts[len(stmts)-1].GetPos(), "control falls off the end of the method")
	}
}

// declareLocals reserves one slot per local in the order of first
// definition. Later definitions of the same local reuse the slot.
func (mb *methodBuilder) declareLocals() {
	for _, s := range mb.body.Stmts {
		as, ok := s.(*ast.AssignStmt)
		if !ok {
			continue
		}
		l, ok := as.Left.(*ast.Local)
		if !ok || mb.locals[l] != nil {
			continue
		}
		mb.locals[l] = mb.b.AllocaNamed("l."+l.Name, types.Local(l.DeclType))
	}
}

func (mb *methodBuilder) localSlot(l *ast.Local) *llvm.Variable {
	slot := mb.locals[l]
	if slot == nil {
		mb.fail(mb.info.Pos, "local %s is used but never assigned", l.Name)
	}
	return slot
}

// maxDimensions returns the largest number of sized dimensions of any
// multi-dimensional array allocation in stmts.
func maxDimensions(stmts []ast.Stmt) int {
	n := 0
	for _, s := range stmts {
		if as, ok := s.(*ast.AssignStmt); ok {
			if e, ok := as.Right.(*ast.NewMultiArrayExpr); ok && len(e.Sizes) > n {
				n = len(e.Sizes)
			}
		}
	}
	return n
}

func hasInvoke(stmts []ast.Stmt) bool {
	for _, s := range stmts {
		if ast.InvokeOf(s) != nil {
			return true
		}
	}
	return false
}

// env returns the Env* parameter.
func (mb *methodBuilder) env() llvm.Value { return mb.fn.Param(0) }

// this returns the receiver of an instance method.
func (mb *methodBuilder) this() llvm.Value { return mb.fn.Param(1) }

// param returns declared parameter i widened to its local type.
func (mb *methodBuilder) param(i int) llvm.Value {
	if i < 0 || i >= len(mb.method.Params) {
		mb.fail(mb.info.Pos, "parameter %d out of range", i)
	}
	idx := 1 + i
	if !mb.method.IsStatic() {
		idx++
	}
	return mb.widen(mb.fn.Param(idx), mb.method.Params[i])
}

// ---------------------------------------------------------------------------
// Width discipline
// ---------------------------------------------------------------------------

// widen extends a stored sub-int value to i32 using the signedness of t.
func (mb *methodBuilder) widen(v llvm.Value, t *ast.Type) llvm.Value {
	if !t.IsSubInt() {
		return v
	}
	if types.IsUnsigned(t) {
		return mb.b.Convert(llvm.OpZext, v, llvm.I32)
	}
	return mb.b.Convert(llvm.OpSext, v, llvm.I32)
}

// narrow truncates an i32 computation value to the storage width of t.
func (mb *methodBuilder) narrow(v llvm.Value, t *ast.Type) llvm.Value {
	if !t.IsSubInt() {
		return v
	}
	return mb.b.Convert(llvm.OpTrunc, v, types.Of(t))
}

// ---------------------------------------------------------------------------
// Checks
// ---------------------------------------------------------------------------

func (mb *methodBuilder) checkNull(v llvm.Value) {
	if !mb.info.NoNullCheck {
		mb.b.Call(fnCheckNull, mb.env(), v)
	}
}

func (mb *methodBuilder) checkBounds(base, index llvm.Value) {
	if !mb.info.NoLowerCheck {
		mb.b.Call(fnCheckLower, mb.env(), base, index)
	}
	if !mb.info.NoUpperCheck {
		mb.b.Call(fnCheckUpper, mb.env(), base, index)
	}
}

// trampoline records t and returns its call target.
func (mb *methodBuilder) trampoline(t trampoline.Trampoline) *llvm.FunctionRef {
	return mb.res.Trampolines.Add(t)
}
