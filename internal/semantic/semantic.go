package semantic

import (
	"fmt"

	"aura/internal/ast"
)

// ---------------------------------------------------------------------------
// Diagnostic severity
// ---------------------------------------------------------------------------

// Severity indicates whether a diagnostic is an error or a warning.
type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		return "unknown"
	}
}

// ---------------------------------------------------------------------------
// Diagnostic
// ---------------------------------------------------------------------------

// Diagnostic represents a single message produced by the checker.
type Diagnostic struct {
	Message  string
	Class    string
	Method   string
	Pos      ast.Position
	Severity Severity
}

func (d Diagnostic) Error() string {
	where := d.Class
	if d.Method != "" {
		where += "." + d.Method
	}
	return fmt.Sprintf("%s: line %d, col %d: %s: %s", where, d.Pos.Line, d.Pos.Column, d.Severity, d.Message)
}

// HasErrors returns true if any diagnostic in the slice is an error.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Checker
// ---------------------------------------------------------------------------

// checker accumulates diagnostics for one class.
type checker struct {
	class  *ast.Class
	method *ast.Method
	diags  []Diagnostic
}

func (c *checker) errorf(pos ast.Position, format string, args ...any) {
	c.report(pos, Error, format, args...)
}

func (c *checker) warnf(pos ast.Position, format string, args ...any) {
	c.report(pos, Warning, format, args...)
}

func (c *checker) report(pos ast.Position, sev Severity, format string, args ...any) {
	d := Diagnostic{
		Message:  fmt.Sprintf(format, args...),
		Class:    c.class.Name,
		Pos:      pos,
		Severity: sev,
	}
	if c.method != nil {
		d.Method = c.method.Name + c.method.Descriptor()
	}
	c.diags = append(c.diags, d)
}

// Analyze validates the structural well-formedness the method compiler
// relies on: branch and trap indices in range, identity references that
// match the method signature, returns that match the return type and no
// control flow falling off the end of a body.
func Analyze(classes []*ast.Class) []Diagnostic {
	var diags []Diagnostic
	for _, cls := range classes {
		c := &checker{class: cls}
		c.checkClass()
		diags = append(diags, c.diags...)
	}
	return diags
}

func (c *checker) checkClass() {
	seen := make(map[string]bool)
	for _, m := range c.class.Methods {
		key := m.Name + m.Descriptor()
		if seen[key] {
			c.errorf(m.Pos, "duplicate method %s", key)
		}
		seen[key] = true
	}
	fields := make(map[string]bool)
	for _, f := range c.class.Fields {
		if fields[f.Name] {
			c.errorf(f.Pos, "duplicate field %s", f.Name)
		}
		fields[f.Name] = true
		if f.Constant != nil && !f.IsStatic() {
			c.warnf(f.Pos, "constant value on instance field %s is ignored", f.Name)
		}
	}
	for _, m := range c.class.Methods {
		c.method = m
		c.checkMethod(m)
	}
	c.method = nil
}

func (c *checker) checkMethod(m *ast.Method) {
	switch {
	case m.Body == nil:
		if !m.IsNative() && !m.IsAbstract() {
			c.errorf(m.Pos, "method without body must be native or abstract")
		}
		return
	case m.IsNative():
		c.errorf(m.Pos, "native method cannot have a body")
		return
	case m.IsAbstract():
		c.errorf(m.Pos, "abstract method cannot have a body")
		return
	}

	body := m.Body
	n := len(body.Stmts)
	if n == 0 {
		c.errorf(m.Pos, "empty method body")
		return
	}

	for _, tr := range body.Traps {
		if tr.Begin < 0 || tr.End > n || tr.Begin > tr.End {
			c.errorf(tr.Pos, "trap range [%d, %d) out of bounds", tr.Begin, tr.End)
		}
		if tr.Handler < 0 || tr.Handler >= n {
			c.errorf(tr.Pos, "trap handler %d out of bounds", tr.Handler)
			continue
		}
		if !isCaughtExceptionIdentity(body.Stmts[tr.Handler]) {
			c.warnf(tr.Pos, "trap handler does not start with @caughtexception")
		}
	}

	assigned := make(map[*ast.Local]bool)
	for _, s := range body.Stmts {
		if as, ok := s.(*ast.AssignStmt); ok {
			if l, ok := as.Left.(*ast.Local); ok {
				assigned[l] = true
			}
		}
	}

	for i, s := range body.Stmts {
		for _, t := range ast.Targets(s) {
			if t < 0 || t >= n {
				c.errorf(s.GetPos(), "branch target %d out of bounds", t)
			}
		}
		c.checkStmt(m, s, assigned)
		if i == n-1 && ast.FallsThrough(s) {
			c.errorf(s.GetPos(), "control falls off the end of the method")
		}
	}
}

func isCaughtExceptionIdentity(s ast.Stmt) bool {
	as, ok := s.(*ast.AssignStmt)
	if !ok {
		return false
	}
	_, ok = as.Right.(*ast.CaughtExceptionRef)
	return ok
}

func (c *checker) checkStmt(m *ast.Method, s ast.Stmt, assigned map[*ast.Local]bool) {
	pos := s.GetPos()
	switch s := s.(type) {
	case *ast.AssignStmt:
		switch r := s.Right.(type) {
		case *ast.ThisRef:
			if m.IsStatic() {
				c.errorf(pos, "@this used in static method")
			}
		case *ast.ParamRef:
			if r.Index < 0 || r.Index >= len(m.Params) {
				c.errorf(pos, "@parameter%d out of range for %s", r.Index, m.Descriptor())
			} else if !r.ParamType.Equal(m.Params[r.Index]) {
				c.errorf(pos, "@parameter%d has type %s, method declares %s", r.Index, r.ParamType, m.Params[r.Index])
			}
		}
		c.checkReads(pos, s.Right, assigned)
		if _, ok := s.Left.(*ast.Local); !ok {
			c.checkReads(pos, s.Left, assigned)
		}
	case *ast.ReturnStmt:
		if m.Return.Kind == ast.VoidKind {
			c.errorf(pos, "void method returns a value")
		}
		c.checkReads(pos, s.Value, assigned)
	case *ast.ReturnVoidStmt:
		if m.Return.Kind != ast.VoidKind {
			c.errorf(pos, "missing return value for %s", m.Return)
		}
	case *ast.IfStmt:
		if !s.Cond.Op.IsCondition() {
			c.errorf(pos, "if condition must be a comparison, got %s", s.Cond.Op)
		}
		c.checkReads(pos, s.Cond, assigned)
	case *ast.ThrowStmt:
		c.checkReads(pos, s.Value, assigned)
	case *ast.InvokeStmt:
		c.checkReads(pos, s.Invoke, assigned)
	case *ast.EnterMonitorStmt:
		c.checkReads(pos, s.Value, assigned)
	case *ast.ExitMonitorStmt:
		c.checkReads(pos, s.Value, assigned)
	case *ast.LookupSwitchStmt:
		if len(s.Values) != len(s.Targets) {
			c.errorf(pos, "lookupswitch has %d values but %d targets", len(s.Values), len(s.Targets))
		}
		c.checkReads(pos, s.Key, assigned)
	case *ast.TableSwitchStmt:
		if int(s.High)-int(s.Low)+1 != len(s.Targets) {
			c.errorf(pos, "tableswitch range [%d, %d] does not match %d targets", s.Low, s.High, len(s.Targets))
		}
		c.checkReads(pos, s.Key, assigned)
	}
}

// checkReads reports locals that are read but never written anywhere in
// the body.
func (c *checker) checkReads(pos ast.Position, v ast.Value, assigned map[*ast.Local]bool) {
	switch v := v.(type) {
	case *ast.Local:
		if !assigned[v] {
			c.errorf(pos, "local %s is read but never assigned", v.Name)
		}
	case *ast.ArrayRef:
		c.checkReads(pos, v.Base, assigned)
		c.checkReads(pos, v.Index, assigned)
	case *ast.InstanceFieldRef:
		c.checkReads(pos, v.Base, assigned)
	case *ast.BinopExpr:
		c.checkReads(pos, v.X, assigned)
		c.checkReads(pos, v.Y, assigned)
	case *ast.NegExpr:
		c.checkReads(pos, v.X, assigned)
	case *ast.LengthExpr:
		c.checkReads(pos, v.X, assigned)
	case *ast.CastExpr:
		c.checkReads(pos, v.X, assigned)
	case *ast.InstanceOfExpr:
		c.checkReads(pos, v.X, assigned)
	case *ast.NewArrayExpr:
		c.checkReads(pos, v.Size, assigned)
	case *ast.NewMultiArrayExpr:
		for _, s := range v.Sizes {
			c.checkReads(pos, s, assigned)
		}
	case *ast.InvokeExpr:
		if v.Base != nil {
			c.checkReads(pos, v.Base, assigned)
		}
		for _, a := range v.Args {
			c.checkReads(pos, a, assigned)
		}
	}
}
