package classpath

import (
	"sort"

	"aura/internal/ast"
)

// Dependencies returns the sorted set of classes c refers to: its super
// class and interfaces, member signature types and every class named in
// its method bodies. Array types contribute their base class.
func Dependencies(c *ast.Class) []string {
	d := depSet{self: c.Name, names: make(map[string]bool)}
	d.add(c.Super)
	for _, i := range c.Interfaces {
		d.add(i)
	}
	for _, f := range c.Fields {
		d.addType(f.Type)
	}
	for _, m := range c.Methods {
		for _, p := range m.Params {
			d.addType(p)
		}
		d.addType(m.Return)
		if m.Body == nil {
			continue
		}
		for _, tr := range m.Body.Traps {
			d.add(tr.Exception)
		}
		for _, l := range m.Body.Locals {
			d.addType(l.DeclType)
		}
		for _, s := range m.Body.Stmts {
			d.addStmt(s)
		}
	}
	return d.sorted()
}

type depSet struct {
	self  string
	names map[string]bool
}

func (d *depSet) add(name string) {
	if name != "" && name != d.self {
		d.names[name] = true
	}
}

func (d *depSet) addType(t *ast.Type) {
	if t == nil {
		return
	}
	if b := t.BaseType(); b.Kind == ast.ClassKind {
		d.add(b.ClassName)
	}
}

func (d *depSet) sorted() []string {
	out := make([]string, 0, len(d.names))
	for n := range d.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (d *depSet) addStmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.AssignStmt:
		d.addValue(s.Left)
		d.addValue(s.Right)
	case *ast.ReturnStmt:
		d.addValue(s.Value)
	case *ast.IfStmt:
		d.addValue(s.Cond)
	case *ast.ThrowStmt:
		d.addValue(s.Value)
	case *ast.InvokeStmt:
		d.addValue(s.Invoke)
	case *ast.EnterMonitorStmt:
		d.addValue(s.Value)
	case *ast.ExitMonitorStmt:
		d.addValue(s.Value)
	case *ast.LookupSwitchStmt:
		d.addValue(s.Key)
	case *ast.TableSwitchStmt:
		d.addValue(s.Key)
	}
}

func (d *depSet) addValue(v ast.Value) {
	switch v := v.(type) {
	case *ast.StringConst:
		d.add("java/lang/String")
	case *ast.ClassConst:
		d.addType(v.Class)
	case *ast.ArrayRef:
		d.addValue(v.Base)
		d.addValue(v.Index)
	case *ast.InstanceFieldRef:
		d.add(v.Field.Owner)
		d.addType(v.Field.Type)
		d.addValue(v.Base)
	case *ast.StaticFieldRef:
		d.add(v.Field.Owner)
		d.addType(v.Field.Type)
	case *ast.BinopExpr:
		d.addValue(v.X)
		d.addValue(v.Y)
	case *ast.NegExpr:
		d.addValue(v.X)
	case *ast.LengthExpr:
		d.addValue(v.X)
	case *ast.CastExpr:
		d.addType(v.To)
		d.addValue(v.X)
	case *ast.InstanceOfExpr:
		d.addType(v.Check)
		d.addValue(v.X)
	case *ast.NewExpr:
		d.add(v.Class)
	case *ast.NewArrayExpr:
		d.addType(v.Elem)
		d.addValue(v.Size)
	case *ast.NewMultiArrayExpr:
		d.addType(v.ArrayType)
		for _, s := range v.Sizes {
			d.addValue(s)
		}
	case *ast.InvokeExpr:
		d.add(v.Method.Owner)
		for _, p := range v.Method.Params {
			d.addType(p)
		}
		d.addType(v.Method.Return)
		if v.Base != nil {
			d.addValue(v.Base)
		}
		for _, a := range v.Args {
			d.addValue(a)
		}
	}
}
