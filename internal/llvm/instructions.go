package llvm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

// Instruction is a single line in a basic block.
type Instruction interface {
	String() string
	// Operands lists the values the instruction reads, including callees
	// and branch conditions but not block labels.
	Operands() []Value
}

// Terminator ends a basic block.
type Terminator interface {
	Instruction
	Successors() []*BasicBlock
}

// Alloca reserves a stack slot: %r = alloca T.
type Alloca struct {
	Result *Variable
	T      Type
}

func (i *Alloca) String() string    { return fmt.Sprintf("%s = alloca %s", i.Result, i.T) }
func (i *Alloca) Operands() []Value { return nil }

// Load reads through Ptr.
type Load struct {
	Result   *Variable
	Ptr      Value
	Volatile bool
}

func (i *Load) String() string {
	v := ""
	if i.Volatile {
		v = "volatile "
	}
	return fmt.Sprintf("%s = load %s%s, %s", i.Result, v, i.Result.T, Typed(i.Ptr))
}
func (i *Load) Operands() []Value { return []Value{i.Ptr} }

// Store writes V through Ptr.
type Store struct {
	V        Value
	Ptr      Value
	Volatile bool
}

func (i *Store) String() string {
	v := ""
	if i.Volatile {
		v = "volatile "
	}
	return fmt.Sprintf("store %s%s, %s", v, Typed(i.V), Typed(i.Ptr))
}
func (i *Store) Operands() []Value { return []Value{i.V, i.Ptr} }

// BinaryOp names an arithmetic or bitwise instruction.
type BinaryOp string

const (
	OpAdd  BinaryOp = "add"
	OpSub  BinaryOp = "sub"
	OpMul  BinaryOp = "mul"
	OpSdiv BinaryOp = "sdiv"
	OpSrem BinaryOp = "srem"
	OpAnd  BinaryOp = "and"
	OpOr   BinaryOp = "or"
	OpXor  BinaryOp = "xor"
	OpShl  BinaryOp = "shl"
	OpAshr BinaryOp = "ashr"
	OpLshr BinaryOp = "lshr"
	OpFadd BinaryOp = "fadd"
	OpFsub BinaryOp = "fsub"
	OpFmul BinaryOp = "fmul"
	OpFdiv BinaryOp = "fdiv"
	OpFrem BinaryOp = "frem"
)

// Binary is %r = op T x, y.
type Binary struct {
	Result *Variable
	Op     BinaryOp
	X, Y   Value
}

func (i *Binary) String() string {
	return fmt.Sprintf("%s = %s %s, %s", i.Result, i.Op, Typed(i.X), i.Y)
}
func (i *Binary) Operands() []Value { return []Value{i.X, i.Y} }

// Condition is an icmp or fcmp predicate.
type Condition string

const (
	CondEq  Condition = "eq"
	CondNe  Condition = "ne"
	CondSgt Condition = "sgt"
	CondSge Condition = "sge"
	CondSlt Condition = "slt"
	CondSle Condition = "sle"
	CondUlt Condition = "ult"
	CondOeq Condition = "oeq"
	CondOgt Condition = "ogt"
	CondOlt Condition = "olt"
	CondUno Condition = "uno"
)

// Icmp compares integers or pointers.
type Icmp struct {
	Result *Variable
	Cond   Condition
	X, Y   Value
}

func (i *Icmp) String() string {
	return fmt.Sprintf("%s = icmp %s %s, %s", i.Result, i.Cond, Typed(i.X), i.Y)
}
func (i *Icmp) Operands() []Value { return []Value{i.X, i.Y} }

// Fcmp compares floating point values.
type Fcmp struct {
	Result *Variable
	Cond   Condition
	X, Y   Value
}

func (i *Fcmp) String() string {
	return fmt.Sprintf("%s = fcmp %s %s, %s", i.Result, i.Cond, Typed(i.X), i.Y)
}
func (i *Fcmp) Operands() []Value { return []Value{i.X, i.Y} }

// ConversionOp names a cast instruction.
type ConversionOp string

const (
	OpTrunc    ConversionOp = "trunc"
	OpZext     ConversionOp = "zext"
	OpSext     ConversionOp = "sext"
	OpFptrunc  ConversionOp = "fptrunc"
	OpFpext    ConversionOp = "fpext"
	OpFptosi   ConversionOp = "fptosi"
	OpSitofp   ConversionOp = "sitofp"
	OpBitcast  ConversionOp = "bitcast"
	OpPtrtoint ConversionOp = "ptrtoint"
	OpInttoptr ConversionOp = "inttoptr"
)

// Conversion is %r = op T v to U. The target type is Result.T.
type Conversion struct {
	Result *Variable
	Op     ConversionOp
	V      Value
}

func (i *Conversion) String() string {
	return fmt.Sprintf("%s = %s %s to %s", i.Result, i.Op, Typed(i.V), i.Result.T)
}
func (i *Conversion) Operands() []Value { return []Value{i.V} }

// Getelementptr computes an address from Base.
type Getelementptr struct {
	Result  *Variable
	Base    Value
	Indices []Value
}

func (i *Getelementptr) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s = getelementptr %s, %s", i.Result, Pointee(i.Base.Type()), Typed(i.Base))
	for _, idx := range i.Indices {
		sb.WriteString(", ")
		sb.WriteString(Typed(idx))
	}
	return sb.String()
}
func (i *Getelementptr) Operands() []Value {
	return append([]Value{i.Base}, i.Indices...)
}

// Select is %r = select i1 c, T x, T y.
type Select struct {
	Result *Variable
	Cond   Value
	X, Y   Value
}

func (i *Select) String() string {
	return fmt.Sprintf("%s = select %s, %s, %s", i.Result, Typed(i.Cond), Typed(i.X), Typed(i.Y))
}
func (i *Select) Operands() []Value { return []Value{i.Cond, i.X, i.Y} }

// Call invokes Fn. Result is nil for void calls.
type Call struct {
	Result *Variable
	Fn     Value
	Args   []Value
}

func (i *Call) signature() *FunctionType {
	if ft, ok := Pointee(i.Fn.Type()).(*FunctionType); ok {
		return ft
	}
	return NewFunctionType(Void)
}

func (i *Call) String() string {
	ft := i.signature()
	args := make([]string, len(i.Args))
	for n, a := range i.Args {
		args[n] = Typed(a)
	}
	callee := ft.Return.String()
	if ft.Varargs {
		callee = ft.String()
	}
	s := fmt.Sprintf("call %s %s(%s)", callee, i.Fn, strings.Join(args, ", "))
	if i.Result != nil {
		s = i.Result.String() + " = " + s
	}
	return s
}
func (i *Call) Operands() []Value { return append([]Value{i.Fn}, i.Args...) }

// Comment is a "; text" line.
type Comment struct{ Text string }

func (i *Comment) String() string    { return "; " + i.Text }
func (i *Comment) Operands() []Value { return nil }

// ---------------------------------------------------------------------------
// Terminators
// ---------------------------------------------------------------------------

// Ret returns V, or void when V is nil.
type Ret struct{ V Value }

func (i *Ret) String() string {
	if i.V == nil {
		return "ret void"
	}
	return "ret " + Typed(i.V)
}
func (i *Ret) Operands() []Value {
	if i.V == nil {
		return nil
	}
	return []Value{i.V}
}
func (i *Ret) Successors() []*BasicBlock { return nil }

// Br is an unconditional branch.
type Br struct{ Target *BasicBlock }

func (i *Br) String() string            { return "br label " + i.Target.Ref() }
func (i *Br) Operands() []Value         { return nil }
func (i *Br) Successors() []*BasicBlock { return []*BasicBlock{i.Target} }

// CondBr branches on an i1.
type CondBr struct {
	Cond        Value
	True, False *BasicBlock
}

func (i *CondBr) String() string {
	return fmt.Sprintf("br %s, label %s, label %s", Typed(i.Cond), i.True.Ref(), i.False.Ref())
}
func (i *CondBr) Operands() []Value         { return []Value{i.Cond} }
func (i *CondBr) Successors() []*BasicBlock { return []*BasicBlock{i.True, i.False} }

// SwitchCase is one arm of a Switch.
type SwitchCase struct {
	Value  *IntegerConstant
	Target *BasicBlock
}

// Switch dispatches on an integer.
type Switch struct {
	V       Value
	Default *BasicBlock
	Cases   []SwitchCase
}

func (i *Switch) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "switch %s, label %s [", Typed(i.V), i.Default.Ref())
	for _, c := range i.Cases {
		fmt.Fprintf(&sb, "\n    %s, label %s", Typed(c.Value), c.Target.Ref())
	}
	if len(i.Cases) > 0 {
		sb.WriteString("\n  ")
	}
	sb.WriteByte(']')
	return sb.String()
}
func (i *Switch) Operands() []Value { return []Value{i.V} }
func (i *Switch) Successors() []*BasicBlock {
	out := []*BasicBlock{i.Default}
	for _, c := range i.Cases {
		out = append(out, c.Target)
	}
	return out
}

// Unreachable marks a point control never reaches.
type Unreachable struct{}

func (i *Unreachable) String() string            { return "unreachable" }
func (i *Unreachable) Operands() []Value         { return nil }
func (i *Unreachable) Successors() []*BasicBlock { return nil }
