package ast

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Source position
// ---------------------------------------------------------------------------

// Position represents a line/column pair in source code (1-based).
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// ---------------------------------------------------------------------------
// Interfaces
// ---------------------------------------------------------------------------

// Node is implemented by every AST node.
type Node interface {
	GetPos() Position
}

// Stmt is implemented by every statement node.
type Stmt interface {
	Node
	Info() *StmtInfo
	stmtNode()
}

// Value is implemented by every immediate, reference and expression node.
// Type reports the JVM type the value evaluates to.
type Value interface {
	Type() *Type
	valueNode()
}

// ---------------------------------------------------------------------------
// Modifiers
// ---------------------------------------------------------------------------

// Modifiers is a bit set of JVM access flags.
type Modifiers uint32

const (
	Public Modifiers = 1 << iota
	Private
	Protected
	Static
	Final
	Synchronized
	Volatile
	Transient
	Native
	Interface
	Abstract
	Enum
)

var modifierNames = []struct {
	m    Modifiers
	name string
}{
	{Public, "public"},
	{Private, "private"},
	{Protected, "protected"},
	{Static, "static"},
	{Final, "final"},
	{Synchronized, "synchronized"},
	{Volatile, "volatile"},
	{Transient, "transient"},
	{Native, "native"},
	{Interface, "interface"},
	{Abstract, "abstract"},
	{Enum, "enum"},
}

// ModifierByName returns the flag for a modifier keyword.
func ModifierByName(name string) (Modifiers, bool) {
	for _, m := range modifierNames {
		if m.name == name {
			return m.m, true
		}
	}
	return 0, false
}

// Has reports whether all flags in o are set.
func (m Modifiers) Has(o Modifiers) bool { return m&o == o }

func (m Modifiers) String() string {
	var parts []string
	for _, n := range modifierNames {
		if m.Has(n.m) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, " ")
}

// ---------------------------------------------------------------------------
// Annotations
// ---------------------------------------------------------------------------

// Annotation is a runtime-invisible marker such as @Bridge(dynamic = true)
// or @Variadic(1). Positional values are stored under the key "value".
type Annotation struct {
	Name   string
	Values map[string]string
	Pos    Position
}

// Get returns the element value for key.
func (a *Annotation) Get(key string) (string, bool) {
	if a == nil || a.Values == nil {
		return "", false
	}
	v, ok := a.Values[key]
	return v, ok
}

// Bool returns the element value for key interpreted as a boolean.
func (a *Annotation) Bool(key string) bool {
	v, _ := a.Get(key)
	return v == "true"
}

// Annotations is an ordered annotation list.
type Annotations []*Annotation

// Find returns the annotation with the given simple name, or nil.
func (as Annotations) Find(name string) *Annotation {
	for _, a := range as {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Has reports whether an annotation with the given name is present.
func (as Annotations) Has(name string) bool { return as.Find(name) != nil }

// ---------------------------------------------------------------------------
// Classes
// ---------------------------------------------------------------------------

// Class is a parsed class or interface. Names are JVM internal names
// (java/lang/Object).
type Class struct {
	Name        string
	Super       string
	Interfaces  []string
	Modifiers   Modifiers
	Annotations Annotations
	Fields      []*Field
	Methods     []*Method
	Source      string
	Pos         Position
}

func (c *Class) GetPos() Position { return c.Pos }

// IsInterface reports whether the class is an interface.
func (c *Class) IsInterface() bool { return c.Modifiers.Has(Interface) }

// FindMethod returns the method declared in c with the given name and
// descriptor.
func (c *Class) FindMethod(name, desc string) *Method {
	for _, m := range c.Methods {
		if m.Name == name && m.Descriptor() == desc {
			return m
		}
	}
	return nil
}

// FindField returns the field declared in c with the given name and
// descriptor.
func (c *Class) FindField(name, desc string) *Field {
	for _, f := range c.Fields {
		if f.Name == name && f.Type.Descriptor() == desc {
			return f
		}
	}
	return nil
}

// Field is a field declaration with an optional compile-time constant.
type Field struct {
	Name        string
	Type        *Type
	Modifiers   Modifiers
	Annotations Annotations
	Constant    Value
	Class       *Class
	Pos         Position
}

func (f *Field) GetPos() Position { return f.Pos }

// IsStatic reports whether f is a static field.
func (f *Field) IsStatic() bool { return f.Modifiers.Has(Static) }

// Method is a method declaration. Body is nil for abstract and native
// methods.
type Method struct {
	Name             string
	Params           []*Type
	Return           *Type
	Modifiers        Modifiers
	Annotations      Annotations
	ParamAnnotations []Annotations
	Body             *Body
	Class            *Class
	Pos              Position
}

func (m *Method) GetPos() Position { return m.Pos }

// Descriptor returns the JVM method descriptor, e.g. (ILjava/lang/String;)V.
func (m *Method) Descriptor() string {
	return MethodDescriptor(m.Params, m.Return)
}

// IsStatic reports whether m is a static method.
func (m *Method) IsStatic() bool { return m.Modifiers.Has(Static) }

// IsNative reports whether m is declared native.
func (m *Method) IsNative() bool { return m.Modifiers.Has(Native) }

// IsAbstract reports whether m has no implementation.
func (m *Method) IsAbstract() bool { return m.Modifiers.Has(Abstract) }

// IsSynchronized reports whether m is declared synchronized.
func (m *Method) IsSynchronized() bool { return m.Modifiers.Has(Synchronized) }

// ParamAnnotation returns the named annotation on parameter i, or nil.
func (m *Method) ParamAnnotation(i int, name string) *Annotation {
	if i < 0 || i >= len(m.ParamAnnotations) {
		return nil
	}
	return m.ParamAnnotations[i].Find(name)
}

func (m *Method) String() string {
	owner := ""
	if m.Class != nil {
		owner = m.Class.Name
	}
	return owner + "." + m.Name + m.Descriptor()
}

// ---------------------------------------------------------------------------
// Method bodies
// ---------------------------------------------------------------------------

// Body is a method body: locals, a linear statement list and the exception
// table. Branch targets and trap bounds are indices into Stmts.
type Body struct {
	Locals []*Local
	Stmts  []Stmt
	Traps  []Trap
}

// Local is a method-local variable with a declared type. Every use of the
// same name in a body refers to the same *Local.
type Local struct {
	Name     string
	DeclType *Type
	Pos      Position
}

func (l *Local) Type() *Type { return l.DeclType }
func (l *Local) valueNode()  {}

// Trap is an exception table entry covering [Begin, End). An empty
// Exception means the handler catches everything.
type Trap struct {
	Begin     int
	End       int
	Handler   int
	Exception string
	Pos       Position
}

// Covers reports whether the trap protects statement i. Degenerate traps
// (Begin == End) cover nothing.
func (t Trap) Covers(i int) bool {
	return t.Begin < t.End && t.Begin <= i && i < t.End
}
