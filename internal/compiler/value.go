package compiler

import (
	"aura/internal/ast"
	"aura/internal/llvm"
	"aura/internal/trampoline"
	"aura/internal/types"
)

// value evaluates v in computation position: sub-int results are widened
// to i32.
func (mb *methodBuilder) value(v ast.Value) llvm.Value {
	switch v := v.(type) {
	case *ast.Local:
		return mb.b.Load(mb.localSlot(v), mb.volatile)
	case *ast.IntConst:
		return llvm.ConstI32(v.Value)
	case *ast.LongConst:
		return llvm.ConstI64(v.Value)
	case *ast.FloatConst:
		return llvm.ConstFloat(v.Value)
	case *ast.DoubleConst:
		return llvm.ConstDouble(v.Value)
	case *ast.NullConst:
		return llvm.NewNull(obj)
	case *ast.StringConst:
		return mb.ldcString(v.Value)
	case *ast.ClassConst:
		return mb.classLiteral(v.Class)
	case *ast.ThisRef:
		if mb.method.IsStatic() {
			mb.fail(mb.info.Pos, "@this in a static method")
		}
		return mb.this()
	case *ast.ParamRef:
		return mb.param(v.Index)
	case *ast.CaughtExceptionRef:
		return mb.b.Call(fnExceptionClear, mb.env())
	case *ast.ArrayRef:
		return mb.arrayLoad(v)
	case *ast.InstanceFieldRef:
		return mb.getField(v)
	case *ast.StaticFieldRef:
		return mb.getStatic(v.Field)
	case *ast.BinopExpr:
		return mb.binop(v)
	case *ast.NegExpr:
		return mb.neg(v)
	case *ast.LengthExpr:
		x := mb.value(v.X)
		mb.checkNull(x)
		return mb.b.Call(fnArrayLength, x)
	case *ast.CastExpr:
		return mb.cast(v)
	case *ast.InstanceOfExpr:
		return mb.instanceOf(v)
	case *ast.NewExpr:
		if v.Class == mb.class.Name {
			return mb.b.Call(allocatorRef(v.Class), mb.env())
		}
		t := trampoline.Class(trampoline.New, mb.class.Name, v.Class)
		return mb.b.Call(mb.trampoline(t), mb.env())
	case *ast.NewArrayExpr:
		return mb.newArray(v.Elem, mb.value(v.Size))
	case *ast.NewMultiArrayExpr:
		return mb.newMultiArray(v)
	case *ast.InvokeExpr:
		r := mb.invoke(v)
		if r == nil {
			mb.fail(mb.info.Pos, "void result of %s used as a value", v.Method)
		}
		return r
	case nil:
		mb.fail(mb.info.Pos, "missing value")
	}
	mb.fail(mb.info.Pos, "unsupported value %T", v)
	return nil
}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

// ldcString calls the module's accessor for the string literal s,
// defining the accessor and its cache slot on first use.
func (mb *methodBuilder) ldcString(s string) llvm.Value {
	data := types.ModifiedUTF8(s)
	name := types.LdcStringSymbol(data)
	sig := llvm.NewFunctionType(obj, env)
	if !mb.mod.HasSymbol(name) {
		slot := &llvm.Global{
			Name:    types.LdcStringPtrSymbol(data),
			T:       obj,
			Value:   llvm.NewNull(obj),
			Linkage: llvm.Weak,
		}
		mb.addGlobal(slot)
		fn := llvm.NewFunction(name, llvm.Weak, sig)
		b := fn.Entry()
		str := b.Call(fnLdcString, fn.Param(0), slot.Ref(), mb.mod.GetString(data),
			llvm.ConstI32(int32(types.JavaLength(s))))
		b.Ret(str)
		if err := mb.mod.AddFunction(fn); err != nil {
			mb.fail(mb.info.Pos, "%v", err)
		}
	}
	return mb.b.Call(llvm.NewFunctionRef(name, sig), mb.env())
}

// arrayClass loads the Class* of a one-dimensional primitive array type.
func (mb *methodBuilder) arrayClass(t *ast.Type) llvm.Value {
	return mb.b.Load(llvm.NewGlobalRef(types.ArrayClassSymbol(t.Elem), cls), false)
}

func (mb *methodBuilder) classLiteral(t *ast.Type) llvm.Value {
	switch {
	case types.HasPrimitiveElements(t):
		return mb.b.Bitcast(mb.arrayClass(t), obj)
	case t.Kind == ast.ClassKind && t.ClassName == mb.class.Name:
		return mb.b.Call(ldcInternalRef(t.ClassName), mb.env())
	case t.IsRef():
		c := trampoline.Class(trampoline.LdcClass, mb.class.Name, t.InternalName())
		return mb.b.Call(mb.trampoline(c), mb.env())
	}
	mb.fail(mb.info.Pos, "class literal of %s", t)
	return nil
}

// ---------------------------------------------------------------------------
// Arrays and fields
// ---------------------------------------------------------------------------

func (mb *methodBuilder) arrayLoad(r *ast.ArrayRef) llvm.Value {
	base := mb.value(r.Base)
	idx := mb.value(r.Index)
	mb.checkNull(base)
	mb.checkBounds(base, idx)
	elem := r.Type()
	return mb.widen(mb.b.Call(arrayLoadFn(elem), base, idx), elem)
}

func (mb *methodBuilder) getField(r *ast.InstanceFieldRef) llvm.Value {
	base := mb.value(r.Base)
	mb.checkNull(base)
	f := r.Field
	var v llvm.Value
	if mb.canAccessDirectly(f, false) {
		v = mb.b.Call(getterRef(f, false), mb.env(), base)
	} else {
		t := trampoline.Field(trampoline.GetField, mb.class.Name, f.Owner, f.Name, f.Descriptor()).
			WithRuntimeClass(runtimeClass(r.Base, f.Owner))
		v = mb.b.Call(mb.trampoline(t), mb.env(), base)
	}
	return mb.widen(v, f.Type)
}

func (mb *methodBuilder) getStatic(f ast.FieldRef) llvm.Value {
	if !mb.Config.Debug {
		if fn := staticFieldIntrinsic(f); fn != nil {
			return mb.b.Call(fn, mb.env())
		}
	}
	var v llvm.Value
	if mb.canAccessDirectly(f, true) {
		v = mb.b.Call(getterRef(f, true), mb.env())
	} else {
		t := trampoline.Field(trampoline.GetStatic, mb.class.Name, f.Owner, f.Name, f.Descriptor())
		v = mb.b.Call(mb.trampoline(t), mb.env())
	}
	return mb.widen(v, f.Type)
}

// ---------------------------------------------------------------------------
// Allocation
// ---------------------------------------------------------------------------

func (mb *methodBuilder) newArray(elem *ast.Type, size llvm.Value) llvm.Value {
	if elem.IsPrimitive() {
		return mb.b.Call(newPrimArrayFn(elem), mb.env(), size)
	}
	t := trampoline.Class(trampoline.Anewarray, mb.class.Name, ast.ArrayOf(elem).Descriptor())
	return mb.b.Call(mb.trampoline(t), mb.env(), size)
}

// newMultiArray passes the dimension sizes through the method's shared
// dims buffer.
func (mb *methodBuilder) newMultiArray(e *ast.NewMultiArrayExpr) llvm.Value {
	if len(e.Sizes) == 0 || e.ArrayType.Dimensions() < len(e.Sizes) {
		mb.fail(mb.info.Pos, "%d sizes for %s", len(e.Sizes), e.ArrayType)
	}
	if len(e.Sizes) == 1 {
		return mb.newArray(e.ArrayType.Elem, mb.value(e.Sizes[0]))
	}
	for i, s := range e.Sizes {
		v := mb.value(s)
		p := mb.b.GEP(llvm.I32Ptr, mb.dims, llvm.ConstI32(0), llvm.ConstI32(int32(i)))
		mb.b.Store(v, p, false)
	}
	first := mb.b.GEP(llvm.I32Ptr, mb.dims, llvm.ConstI32(0), llvm.ConstI32(0))
	t := trampoline.Class(trampoline.Multianewarray, mb.class.Name, e.ArrayType.Descriptor())
	return mb.b.Call(mb.trampoline(t), mb.env(), llvm.ConstI32(int32(len(e.Sizes))), first)
}

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

var (
	intOps = map[ast.BinOp]llvm.BinaryOp{
		ast.Add:  llvm.OpAdd,
		ast.Sub:  llvm.OpSub,
		ast.Mul:  llvm.OpMul,
		ast.And:  llvm.OpAnd,
		ast.Or:   llvm.OpOr,
		ast.Xor:  llvm.OpXor,
		ast.Shl:  llvm.OpShl,
		ast.Shr:  llvm.OpAshr,
		ast.Ushr: llvm.OpLshr,
	}
	floatOps = map[ast.BinOp]llvm.BinaryOp{
		ast.Add: llvm.OpFadd,
		ast.Sub: llvm.OpFsub,
		ast.Mul: llvm.OpFmul,
		ast.Div: llvm.OpFdiv,
	}
)

func (mb *methodBuilder) binop(e *ast.BinopExpr) llvm.Value {
	x := mb.value(e.X)
	y := mb.value(e.Y)
	b := mb.b

	if e.Op.IsShift() {
		xt, ok := x.Type().(*llvm.IntegerType)
		if !ok || !llvm.TypeEqual(y.Type(), llvm.I32) {
			mb.fail(mb.info.Pos, "cannot shift %s by %s", x.Type(), y.Type())
		}
		n := b.Binary(llvm.OpAnd, y, llvm.ConstI32(int32(xt.Bits-1)))
		var amount llvm.Value = n
		if xt.Bits == 64 {
			amount = b.Convert(llvm.OpZext, n, llvm.I64)
		}
		return b.Binary(intOps[e.Op], x, amount)
	}

	if !llvm.TypeEqual(x.Type(), y.Type()) {
		mb.fail(mb.info.Pos, "operands of %s have types %s and %s", e.Op, x.Type(), y.Type())
	}
	t := x.Type()
	floating := llvm.IsFloatingPoint(t)
	if !floating && !llvm.IsInteger(t) && !e.Op.IsCondition() {
		mb.fail(mb.info.Pos, "arithmetic on %s", t)
	}
	double := llvm.TypeEqual(t, llvm.Double)
	long := llvm.TypeEqual(t, llvm.I64)

	switch e.Op {
	case ast.Add, ast.Sub, ast.Mul:
		if floating {
			return b.Binary(floatOps[e.Op], x, y)
		}
		return b.Binary(intOps[e.Op], x, y)
	case ast.Div:
		switch {
		case floating:
			return b.Binary(llvm.OpFdiv, x, y)
		case long:
			return b.Call(fnLdiv, mb.env(), x, y)
		}
		return b.Call(fnIdiv, mb.env(), x, y)
	case ast.Rem:
		switch {
		case double:
			return b.Call(fnDrem, mb.env(), x, y)
		case floating:
			return b.Call(fnFrem, mb.env(), x, y)
		case long:
			return b.Call(fnLrem, mb.env(), x, y)
		}
		return b.Call(fnIrem, mb.env(), x, y)
	case ast.And, ast.Or, ast.Xor:
		if floating {
			mb.fail(mb.info.Pos, "bitwise %s on %s", e.Op, t)
		}
		return b.Binary(intOps[e.Op], x, y)
	case ast.Cmp:
		if floating {
			mb.fail(mb.info.Pos, "cmp on %s", t)
		}
		lt := b.Convert(llvm.OpZext, b.Icmp(llvm.CondSlt, x, y), llvm.I32)
		gt := b.Convert(llvm.OpZext, b.Icmp(llvm.CondSgt, x, y), llvm.I32)
		return b.Binary(llvm.OpSub, gt, lt)
	case ast.Cmpl, ast.Cmpg:
		if !floating {
			mb.fail(mb.info.Pos, "%s on %s", e.Op, t)
		}
		fn := map[bool]map[ast.BinOp]*llvm.FunctionRef{
			false: {ast.Cmpl: fnFcmpl, ast.Cmpg: fnFcmpg},
			true:  {ast.Cmpl: fnDcmpl, ast.Cmpg: fnDcmpg},
		}[double][e.Op]
		return b.Call(fn, x, y)
	}
	if e.Op.IsCondition() {
		return b.Convert(llvm.OpZext, mb.compare(e), llvm.I32)
	}
	mb.fail(mb.info.Pos, "unsupported operator %s", e.Op)
	return nil
}

func (mb *methodBuilder) neg(e *ast.NegExpr) llvm.Value {
	x := mb.value(e.X)
	switch t := x.Type(); {
	case llvm.TypeEqual(t, llvm.I32):
		return mb.b.Binary(llvm.OpSub, llvm.ConstI32(0), x)
	case llvm.TypeEqual(t, llvm.I64):
		return mb.b.Binary(llvm.OpSub, llvm.ConstI64(0), x)
	case llvm.TypeEqual(t, llvm.Float):
		return mb.b.Binary(llvm.OpFmul, x, llvm.ConstFloat(-1))
	case llvm.TypeEqual(t, llvm.Double):
		return mb.b.Binary(llvm.OpFmul, x, llvm.ConstDouble(-1))
	}
	mb.fail(mb.info.Pos, "negation of %s", x.Type())
	return nil
}

// ---------------------------------------------------------------------------
// Casts and type checks
// ---------------------------------------------------------------------------

func (mb *methodBuilder) cast(e *ast.CastExpr) llvm.Value {
	from, to := e.X.Type(), e.To
	v := mb.value(e.X)
	switch {
	case from.IsPrimitive() && to.IsPrimitive():
		return mb.convert(v, from, to)
	case from.IsRef() && to.IsRef():
		switch {
		case types.HasPrimitiveElements(to):
			return mb.b.Call(fnCheckcastPrimArray, mb.env(), mb.arrayClass(to), v)
		case to.Kind == ast.ClassKind && to.ClassName == "java/lang/Object":
			return v
		}
		t := trampoline.Class(trampoline.Checkcast, mb.class.Name, to.InternalName())
		return mb.b.Call(mb.trampoline(t), mb.env(), v)
	}
	mb.fail(mb.info.Pos, "cannot cast %s to %s", from, to)
	return nil
}

// convert applies a primitive conversion to a widened value.
func (mb *methodBuilder) convert(v llvm.Value, from, to *ast.Type) llvm.Value {
	b := mb.b
	switch {
	case from.IsIntegral() && to.IsIntegral():
		if to.Kind == ast.LongKind {
			if from.Kind == ast.LongKind {
				return v
			}
			return b.Convert(llvm.OpSext, v, llvm.I64)
		}
		if from.Kind == ast.LongKind {
			v = b.Convert(llvm.OpTrunc, v, llvm.I32)
		}
		return mb.narrowToLocal(v, to)
	case from.IsIntegral() && to.IsFloating():
		return b.Convert(llvm.OpSitofp, v, types.Of(to))
	case from.IsFloating() && to.IsIntegral():
		fn := map[ast.TypeKind]map[bool]*llvm.FunctionRef{
			ast.FloatKind:  {false: fnF2i, true: fnF2l},
			ast.DoubleKind: {false: fnD2i, true: fnD2l},
		}[from.Kind][to.Kind == ast.LongKind]
		r := b.Call(fn, v)
		if to.Kind == ast.LongKind {
			return r
		}
		return mb.narrowToLocal(r, to)
	case from.IsFloating() && to.IsFloating():
		switch {
		case from.Kind == to.Kind:
			return v
		case to.Kind == ast.DoubleKind:
			return b.Convert(llvm.OpFpext, v, llvm.Double)
		}
		return b.Convert(llvm.OpFptrunc, v, llvm.Float)
	}
	mb.fail(mb.info.Pos, "cannot convert %s to %s", from, to)
	return nil
}

// narrowToLocal truncates an i32 to the width of a sub-int type and
// extends it back, leaving other types unchanged.
func (mb *methodBuilder) narrowToLocal(v llvm.Value, t *ast.Type) llvm.Value {
	if !t.IsSubInt() {
		return v
	}
	return mb.widen(mb.narrow(v, t), t)
}

func (mb *methodBuilder) instanceOf(e *ast.InstanceOfExpr) llvm.Value {
	v := mb.value(e.X)
	if !e.Check.IsRef() {
		mb.fail(mb.info.Pos, "instanceof %s", e.Check)
	}
	if types.HasPrimitiveElements(e.Check) {
		return mb.b.Call(fnInstanceofPrimArray, mb.env(), mb.arrayClass(e.Check), v)
	}
	t := trampoline.Class(trampoline.Instanceof, mb.class.Name, e.Check.InternalName())
	return mb.b.Call(mb.trampoline(t), mb.env(), v)
}
