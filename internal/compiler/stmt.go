package compiler

import (
	"aura/internal/ast"
	"aura/internal/llvm"
	"aura/internal/trampoline"
	"aura/internal/types"
)

// stmt lowers statement i into the current block.
func (mb *methodBuilder) stmt(i int, s ast.Stmt) {
	switch s := s.(type) {
	case *ast.AssignStmt:
		mb.assign(s)
	case *ast.ReturnStmt:
		if mb.method.Return.Kind == ast.VoidKind {
			mb.fail(s.Pos, "value returned from a void method")
		}
		v := mb.value(s.Value)
		mb.emitReturn(mb.narrow(v, mb.method.Return))
	case *ast.ReturnVoidStmt:
		if mb.method.Return.Kind != ast.VoidKind {
			mb.fail(s.Pos, "missing return value")
		}
		mb.emitReturn(nil)
	case *ast.IfStmt:
		mb.ifStmt(i, s)
	case *ast.GotoStmt:
		mb.b.Br(mb.target(s.Target))
	case *ast.LookupSwitchStmt:
		if len(s.Values) != len(s.Targets) {
			mb.fail(s.Pos, "lookupswitch has %d values and %d targets", len(s.Values), len(s.Targets))
		}
		key := mb.value(s.Key)
		cases := make([]llvm.SwitchCase, len(s.Values))
		for n, v := range s.Values {
			cases[n] = llvm.SwitchCase{Value: llvm.ConstI32(v), Target: mb.target(s.Targets[n])}
		}
		mb.b.Switch(key, mb.target(s.Default), cases...)
	case *ast.TableSwitchStmt:
		if int64(s.High)-int64(s.Low)+1 != int64(len(s.Targets)) {
			mb.fail(s.Pos, "tableswitch range %d..%d has %d targets", s.Low, s.High, len(s.Targets))
		}
		key := mb.value(s.Key)
		cases := make([]llvm.SwitchCase, len(s.Targets))
		for n, t := range s.Targets {
			cases[n] = llvm.SwitchCase{Value: llvm.ConstI32(s.Low + int32(n)), Target: mb.target(t)}
		}
		mb.b.Switch(key, mb.target(s.Default), cases...)
	case *ast.ThrowStmt:
		v := mb.value(s.Value)
		mb.checkNull(v)
		mb.b.Call(fnThrow, mb.env(), v)
		mb.popShadowFrame()
		mb.b.Unreachable()
	case *ast.InvokeStmt:
		mb.invoke(s.Invoke)
	case *ast.EnterMonitorStmt:
		v := mb.value(s.Value)
		mb.checkNull(v)
		mb.b.Call(fnMonitorEnter, mb.env(), v)
	case *ast.ExitMonitorStmt:
		v := mb.value(s.Value)
		mb.checkNull(v)
		mb.b.Call(fnMonitorExit, mb.env(), v)
	case *ast.NopStmt:
		mb.b.Binary(llvm.OpAdd, llvm.ConstI32(0), llvm.ConstI32(0))
	default:
		mb.fail(s.GetPos(), "unsupported statement %T", s)
	}
}

// target returns the block starting at statement i.
func (mb *methodBuilder) target(i int) *llvm.BasicBlock {
	blk := mb.blocks[i]
	if blk == nil {
		mb.fail(mb.info.Pos, "branch target %d is outside the body", i)
	}
	return blk
}

var conditions = map[ast.BinOp]llvm.Condition{
	ast.Eq: llvm.CondEq,
	ast.Ne: llvm.CondNe,
	ast.Gt: llvm.CondSgt,
	ast.Ge: llvm.CondSge,
	ast.Lt: llvm.CondSlt,
	ast.Le: llvm.CondSle,
}

func (mb *methodBuilder) ifStmt(i int, s *ast.IfStmt) {
	if s.Cond == nil || !s.Cond.Op.IsCondition() {
		mb.fail(s.Pos, "if requires a comparison")
	}
	c := mb.compare(s.Cond)
	mb.b.CondBr(c, mb.target(s.Target), mb.target(i+1))
}

// compare evaluates a comparison to an i1.
func (mb *methodBuilder) compare(e *ast.BinopExpr) llvm.Value {
	x := mb.value(e.X)
	y := mb.value(e.Y)
	if !llvm.TypeEqual(x.Type(), y.Type()) {
		mb.fail(mb.info.Pos, "cannot compare %s with %s", x.Type(), y.Type())
	}
	if !llvm.IsInteger(x.Type()) && !llvm.IsPointer(x.Type()) {
		mb.fail(mb.info.Pos, "comparison of %s requires cmp, cmpl or cmpg", x.Type())
	}
	return mb.b.Icmp(conditions[e.Op], x, y)
}

// emitReturn leaves the method. java.lang.Object's constructor registers
// the new object for finalization first.
func (mb *methodBuilder) emitReturn(v llvm.Value) {
	if mb.class.Name == "java/lang/Object" && mb.method.Name == "<init>" {
		mb.b.Call(fnRegisterFinalizable, mb.env(), mb.this())
	}
	mb.leaveTrycatch()
	mb.popShadowFrame()
	mb.b.Ret(v)
}

// ---------------------------------------------------------------------------
// Assignment
// ---------------------------------------------------------------------------

func (mb *methodBuilder) assign(s *ast.AssignStmt) {
	switch left := s.Left.(type) {
	case *ast.Local:
		v := mb.value(s.Right)
		slot := mb.localSlot(left)
		want := types.Local(left.DeclType)
		if !llvm.TypeEqual(v.Type(), want) {
			mb.fail(s.Pos, "cannot assign %s to %s local %s", v.Type(), want, left.Name)
		}
		mb.b.Store(v, slot, mb.volatile)
	case *ast.ArrayRef:
		base := mb.value(left.Base)
		idx := mb.value(left.Index)
		v := mb.value(s.Right)
		mb.checkNull(base)
		mb.checkBounds(base, idx)
		elem := left.Type()
		if elem.IsRef() {
			mb.b.Call(fnSetObjectArrayElement, mb.env(), base, idx, v)
		} else {
			mb.b.Call(arrayStoreFn(elem), base, idx, mb.narrow(v, elem))
		}
	case *ast.InstanceFieldRef:
		base := mb.value(left.Base)
		mb.checkNull(base)
		v := mb.narrow(mb.value(s.Right), left.Field.Type)
		f := left.Field
		if mb.canAccessDirectly(f, false) {
			mb.b.Call(setterRef(f, false), mb.env(), base, v)
		} else {
			t := trampoline.Field(trampoline.PutField, mb.class.Name, f.Owner, f.Name, f.Descriptor()).
				WithRuntimeClass(runtimeClass(left.Base, f.Owner))
			mb.b.Call(mb.trampoline(t), mb.env(), base, v)
		}
	case *ast.StaticFieldRef:
		v := mb.narrow(mb.value(s.Right), left.Field.Type)
		mb.putStatic(left.Field, v)
	default:
		mb.fail(s.Pos, "cannot assign to %T", s.Left)
	}
}

func (mb *methodBuilder) putStatic(f ast.FieldRef, v llvm.Value) {
	if mb.canAccessDirectly(f, true) {
		mb.b.Call(setterRef(f, true), mb.env(), v)
		return
	}
	t := trampoline.Field(trampoline.PutStatic, mb.class.Name, f.Owner, f.Name, f.Descriptor())
	mb.b.Call(mb.trampoline(t), mb.env(), v)
}

// canAccessDirectly reports whether f is declared by the class being
// compiled with the expected static-ness, so its accessor can be called
// without a trampoline.
func (mb *methodBuilder) canAccessDirectly(f ast.FieldRef, static bool) bool {
	if f.Owner != mb.class.Name {
		return false
	}
	field := mb.class.FindField(f.Name, f.Descriptor())
	return field != nil && field.IsStatic() == static
}

// runtimeClass returns the static class of a receiver, or target when the
// receiver is the null constant.
func runtimeClass(base ast.Value, target string) string {
	t := base.Type()
	if t == nil || t.Kind == ast.NullKind {
		return target
	}
	return t.InternalName()
}

// ---------------------------------------------------------------------------
// Static initializer constants
// ---------------------------------------------------------------------------

// initConstantFields stores the constant values of static fields before
// the body of <clinit> runs.
func (mb *methodBuilder) initConstantFields() {
	for _, f := range mb.class.Fields {
		if !f.IsStatic() || f.Constant == nil {
			continue
		}
		var v llvm.Value
		switch c := f.Constant.(type) {
		case *ast.IntConst:
			if !f.Type.IsIntegral() || f.Type.Kind == ast.LongKind {
				mb.fail(f.Pos, "int constant for field %s of type %s", f.Name, f.Type)
			}
			v = llvm.NewInteger(types.Of(f.Type).(*llvm.IntegerType), int64(types.Truncate(c.Value, f.Type)))
		case *ast.LongConst:
			v = llvm.ConstI64(c.Value)
		case *ast.FloatConst:
			v = llvm.ConstFloat(c.Value)
		case *ast.DoubleConst:
			v = llvm.ConstDouble(c.Value)
		case *ast.StringConst:
			v = mb.ldcString(c.Value)
		default:
			continue
		}
		if !llvm.TypeEqual(v.Type(), types.Of(f.Type)) {
			mb.fail(f.Pos, "constant of type %s for field %s of type %s", v.Type(), f.Name, f.Type)
		}
		ref := ast.FieldRef{Owner: mb.class.Name, Name: f.Name, Type: f.Type}
		mb.b.Call(setterRef(ref, true), mb.env(), v)
	}
}
