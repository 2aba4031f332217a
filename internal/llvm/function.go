package llvm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Linkage
// ---------------------------------------------------------------------------

// Linkage is an LLVM linkage type. The zero value is external.
type Linkage string

const (
	External    Linkage = ""
	Internal    Linkage = "internal"
	Private     Linkage = "private"
	Weak        Linkage = "weak"
	LinkonceODR Linkage = "linkonce_odr"
	ExternWeak  Linkage = "extern_weak"
)

// ---------------------------------------------------------------------------
// BasicBlock
// ---------------------------------------------------------------------------

// BasicBlock is a labelled instruction list. Builder methods allocate
// result variables from the owning function.
type BasicBlock struct {
	Label        string
	Instructions []Instruction
	fn           *Function
}

// Ref renders the block as a label operand.
func (b *BasicBlock) Ref() string { return "%" + quoteName(b.Label) }

// Function returns the function that owns b.
func (b *BasicBlock) Function() *Function { return b.fn }

// Terminated reports whether the last instruction ends the block.
func (b *BasicBlock) Terminated() bool {
	if len(b.Instructions) == 0 {
		return false
	}
	_, ok := b.Instructions[len(b.Instructions)-1].(Terminator)
	return ok
}

// Terminator returns the block's terminator, or nil.
func (b *BasicBlock) Terminator() Terminator {
	if !b.Terminated() {
		return nil
	}
	return b.Instructions[len(b.Instructions)-1].(Terminator)
}

// Add appends an instruction.
func (b *BasicBlock) Add(i Instruction) {
	b.Instructions = append(b.Instructions, i)
}

func (b *BasicBlock) Comment(format string, args ...any) {
	b.Add(&Comment{Text: fmt.Sprintf(format, args...)})
}

// Alloca reserves a slot of type t and returns its address.
func (b *BasicBlock) Alloca(t Type) *Variable {
	r := b.fn.NewVariable(PointerTo(t))
	b.Add(&Alloca{Result: r, T: t})
	return r
}

// AllocaNamed is Alloca with an explicit result name. The caller keeps
// names unique.
func (b *BasicBlock) AllocaNamed(name string, t Type) *Variable {
	r := &Variable{Name: name, T: PointerTo(t)}
	b.Add(&Alloca{Result: r, T: t})
	return r
}

// Load reads the value ptr points to.
func (b *BasicBlock) Load(ptr Value, volatile bool) *Variable {
	r := b.fn.NewVariable(Pointee(ptr.Type()))
	b.Add(&Load{Result: r, Ptr: ptr, Volatile: volatile})
	return r
}

// Store writes v through ptr.
func (b *BasicBlock) Store(v, ptr Value, volatile bool) {
	b.Add(&Store{V: v, Ptr: ptr, Volatile: volatile})
}

// Binary computes x op y.
func (b *BasicBlock) Binary(op BinaryOp, x, y Value) *Variable {
	r := b.fn.NewVariable(x.Type())
	b.Add(&Binary{Result: r, Op: op, X: x, Y: y})
	return r
}

// Icmp compares integers or pointers and yields an i1.
func (b *BasicBlock) Icmp(cond Condition, x, y Value) *Variable {
	r := b.fn.NewVariable(I1)
	b.Add(&Icmp{Result: r, Cond: cond, X: x, Y: y})
	return r
}

// Fcmp compares floating point values and yields an i1.
func (b *BasicBlock) Fcmp(cond Condition, x, y Value) *Variable {
	r := b.fn.NewVariable(I1)
	b.Add(&Fcmp{Result: r, Cond: cond, X: x, Y: y})
	return r
}

// Convert casts v to type to.
func (b *BasicBlock) Convert(op ConversionOp, v Value, to Type) *Variable {
	r := b.fn.NewVariable(to)
	b.Add(&Conversion{Result: r, Op: op, V: v})
	return r
}

// Bitcast casts v to t, or returns v unchanged when it already has type t.
func (b *BasicBlock) Bitcast(v Value, t Type) Value {
	if TypeEqual(v.Type(), t) {
		return v
	}
	return b.Convert(OpBitcast, v, t)
}

// GEP computes an element address. t is the resulting pointer type.
func (b *BasicBlock) GEP(t Type, base Value, indices ...Value) *Variable {
	r := b.fn.NewVariable(t)
	b.Add(&Getelementptr{Result: r, Base: base, Indices: indices})
	return r
}

// Select picks x when cond holds, y otherwise.
func (b *BasicBlock) Select(cond, x, y Value) *Variable {
	r := b.fn.NewVariable(x.Type())
	b.Add(&Select{Result: r, Cond: cond, X: x, Y: y})
	return r
}

// Call invokes fn and returns its result, or nil for void functions.
func (b *BasicBlock) Call(fn Value, args ...Value) Value {
	call := &Call{Fn: fn, Args: args}
	if ret := call.signature().Return; !TypeEqual(ret, Void) {
		call.Result = b.fn.NewVariable(ret)
	}
	b.Add(call)
	if call.Result == nil {
		return nil
	}
	return call.Result
}

// Ret returns v; a nil v returns void.
func (b *BasicBlock) Ret(v Value) {
	b.Add(&Ret{V: v})
}

func (b *BasicBlock) Br(target *BasicBlock) {
	b.Add(&Br{Target: target})
}

func (b *BasicBlock) CondBr(c Value, t, f *BasicBlock) {
	b.Add(&CondBr{Cond: c, True: t, False: f})
}

func (b *BasicBlock) Unreachable() {
	b.Add(&Unreachable{})
}

// Switch dispatches v over cases.
func (b *BasicBlock) Switch(v Value, def *BasicBlock, cases ...SwitchCase) {
	b.Add(&Switch{V: v, Default: def, Cases: cases})
}

// ---------------------------------------------------------------------------
// Function
// ---------------------------------------------------------------------------

// Function is a function definition. Parameters are named p0, p1, ...
// Block labels are unique within the function.
type Function struct {
	Name       string
	Sig        *FunctionType
	Linkage    Linkage
	Attributes []string
	Section    string

	blocks  []*BasicBlock
	byLabel map[string]*BasicBlock
	nextVar int
}

// NewFunction creates an empty function definition.
func NewFunction(name string, linkage Linkage, sig *FunctionType, attrs ...string) *Function {
	return &Function{
		Name:       name,
		Sig:        sig,
		Linkage:    linkage,
		Attributes: attrs,
		byLabel:    make(map[string]*BasicBlock),
	}
}

// Ref returns a reference to f usable as a call target.
func (f *Function) Ref() *FunctionRef { return NewFunctionRef(f.Name, f.Sig) }

// Param returns parameter i.
func (f *Function) Param(i int) *Variable {
	return &Variable{Name: fmt.Sprintf("p%d", i), T: f.Sig.Params[i]}
}

// Params returns all parameters.
func (f *Function) Params() []Value {
	out := make([]Value, len(f.Sig.Params))
	for i := range f.Sig.Params {
		out[i] = f.Param(i)
	}
	return out
}

// NewVariable allocates a fresh temporary of type t.
func (f *Function) NewVariable(t Type) *Variable {
	v := &Variable{Name: fmt.Sprintf("t%d", f.nextVar), T: t}
	f.nextVar++
	return v
}

// Entry returns the first block, creating it on demand.
func (f *Function) Entry() *BasicBlock {
	if len(f.blocks) == 0 {
		return f.NewBasicBlock("entry")
	}
	return f.blocks[0]
}

// NewBasicBlock appends a block. A label already in use gets a numeric
// suffix.
func (f *Function) NewBasicBlock(label string) *BasicBlock {
	unique := label
	for n := 1; f.byLabel[unique] != nil; n++ {
		unique = fmt.Sprintf("%s.%d", label, n)
	}
	b := &BasicBlock{Label: unique, fn: f}
	f.blocks = append(f.blocks, b)
	f.byLabel[unique] = b
	return b
}

// Block returns the block with the given label, or nil.
func (f *Function) Block(label string) *BasicBlock { return f.byLabel[label] }

// Blocks returns the blocks in emission order.
func (f *Function) Blocks() []*BasicBlock { return f.blocks }

func (f *Function) String() string {
	var sb strings.Builder
	sb.WriteString("define ")
	if f.Linkage != External {
		sb.WriteString(string(f.Linkage))
		sb.WriteByte(' ')
	}
	fmt.Fprintf(&sb, "%s @%s(", f.Sig.Return, quoteName(f.Name))
	for i, p := range f.Params() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(Typed(p))
	}
	if f.Sig.Varargs {
		if len(f.Sig.Params) > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("...")
	}
	sb.WriteByte(')')
	for _, a := range f.Attributes {
		sb.WriteByte(' ')
		sb.WriteString(a)
	}
	if f.Section != "" {
		fmt.Fprintf(&sb, " section %q", f.Section)
	}
	sb.WriteString(" {\n")
	for i, b := range f.blocks {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(quoteName(b.Label))
		sb.WriteString(":\n")
		for _, instr := range b.Instructions {
			sb.WriteString("    ")
			sb.WriteString(instr.String())
			sb.WriteByte('\n')
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}
