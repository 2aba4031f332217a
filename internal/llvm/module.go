package llvm

import (
	"fmt"
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// Globals and declarations
// ---------------------------------------------------------------------------

// Global is a global variable. A nil Value declares an external global.
type Global struct {
	Name        string
	T           Type
	Value       Value
	Linkage     Linkage
	Constant    bool
	UnnamedAddr bool
	Section     string
	Align       int
}

// Ref returns the address of g.
func (g *Global) Ref() *GlobalRef { return NewGlobalRef(g.Name, g.T) }

func (g *Global) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "@%s = ", quoteName(g.Name))
	if g.Value == nil && g.Linkage == External {
		sb.WriteString("external ")
	} else if g.Linkage != External {
		sb.WriteString(string(g.Linkage))
		sb.WriteByte(' ')
	}
	if g.UnnamedAddr {
		sb.WriteString("unnamed_addr ")
	}
	if g.Constant {
		sb.WriteString("constant ")
	} else {
		sb.WriteString("global ")
	}
	sb.WriteString(g.T.String())
	if g.Value != nil {
		sb.WriteByte(' ')
		sb.WriteString(g.Value.String())
	}
	if g.Section != "" {
		fmt.Fprintf(&sb, ", section %q", g.Section)
	}
	if g.Align > 0 {
		fmt.Fprintf(&sb, ", align %d", g.Align)
	}
	return sb.String()
}

// FunctionDeclaration declares a function defined elsewhere.
type FunctionDeclaration struct {
	Name       string
	Sig        *FunctionType
	Attributes []string
}

func (d *FunctionDeclaration) String() string {
	params := make([]string, 0, len(d.Sig.Params)+1)
	for _, p := range d.Sig.Params {
		params = append(params, p.String())
	}
	if d.Sig.Varargs {
		params = append(params, "...")
	}
	s := fmt.Sprintf("declare %s @%s(%s)", d.Sig.Return, quoteName(d.Name), strings.Join(params, ", "))
	for _, a := range d.Attributes {
		s += " " + a
	}
	return s
}

// ---------------------------------------------------------------------------
// Module
// ---------------------------------------------------------------------------

// Module is one LLVM compilation unit. Functions and globals that are
// referenced but never defined or declared are declared automatically
// when the module is rendered.
type Module struct {
	// Header lines such as target triple and data layout.
	Header []string

	types        []namedType
	typeNames    map[string]bool
	globals      []*Global
	functions    []*Function
	declarations []*FunctionDeclaration
	symbols      map[string]bool
	strings      map[string]*Global
}

// NewModule returns an empty module.
func NewModule() *Module {
	return &Module{
		typeNames: make(map[string]bool),
		symbols:   make(map[string]bool),
		strings:   make(map[string]*Global),
	}
}

// AddType registers a named structure or opaque type. Literal types and
// names already registered are ignored.
func (m *Module) AddType(t Type) {
	nt, ok := t.(namedType)
	if !ok {
		return
	}
	name := typeName(nt)
	if name == "" || m.typeNames[name] {
		return
	}
	m.typeNames[name] = true
	m.types = append(m.types, nt)
}

func typeName(t namedType) string {
	switch t := t.(type) {
	case *StructureType:
		return t.Name
	case *OpaqueType:
		return t.Name
	}
	return ""
}

// HasSymbol reports whether a global, function or declaration with the
// given name exists.
func (m *Module) HasSymbol(name string) bool { return m.symbols[name] }

// AddGlobal adds a global variable.
func (m *Module) AddGlobal(g *Global) error {
	if m.symbols[g.Name] {
		return fmt.Errorf("duplicate symbol %s", g.Name)
	}
	m.symbols[g.Name] = true
	m.globals = append(m.globals, g)
	return nil
}

// AddFunction adds a function definition.
func (m *Module) AddFunction(f *Function) error {
	if m.symbols[f.Name] {
		return fmt.Errorf("duplicate symbol %s", f.Name)
	}
	m.symbols[f.Name] = true
	m.functions = append(m.functions, f)
	return nil
}

// AddDeclaration declares an external function unless the name is
// already known.
func (m *Module) AddDeclaration(d *FunctionDeclaration) {
	if m.symbols[d.Name] {
		return
	}
	m.symbols[d.Name] = true
	m.declarations = append(m.declarations, d)
}

// Global returns the global with the given name, or nil.
func (m *Module) Global(name string) *Global {
	for _, g := range m.globals {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// Function returns the function definition with the given name, or nil.
func (m *Module) Function(name string) *Function {
	for _, f := range m.functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Functions returns the function definitions in insertion order.
func (m *Module) Functions() []*Function { return m.functions }

// Globals returns the globals in insertion order.
func (m *Module) Globals() []*Global { return m.globals }

// GetString returns an i8* to a private NUL-terminated copy of data.
// Identical byte strings share one global.
func (m *Module) GetString(data []byte) Value {
	key := string(data)
	g := m.strings[key]
	if g == nil {
		bytes := append(append([]byte(nil), data...), 0)
		g = &Global{
			Name:        fmt.Sprintf("str.%d", len(m.strings)),
			T:           &ArrayType{Size: len(bytes), Elem: I8},
			Value:       &BytesConstant{Data: bytes},
			Linkage:     Private,
			Constant:    true,
			UnnamedAddr: true,
		}
		for m.symbols[g.Name] {
			g.Name += "_"
		}
		m.strings[key] = g
		m.AddGlobal(g)
	}
	return &ConstantGetelementptr{Base: g.Ref(), Indices: []int{0, 0}, T: I8Ptr}
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

func (m *Module) String() string {
	undefFns, undefGlobals := m.undefined()

	var sb strings.Builder
	for _, h := range m.Header {
		sb.WriteString(h)
		sb.WriteByte('\n')
	}
	if len(m.Header) > 0 {
		sb.WriteByte('\n')
	}
	if len(m.types) > 0 {
		for _, t := range m.types {
			sb.WriteString(t.definition())
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	if len(m.globals)+len(undefGlobals) > 0 {
		for _, g := range m.globals {
			sb.WriteString(g.String())
			sb.WriteByte('\n')
		}
		for _, g := range undefGlobals {
			sb.WriteString(g.String())
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	decls := append(append([]*FunctionDeclaration(nil), m.declarations...), undefFns...)
	if len(decls) > 0 {
		for _, d := range decls {
			sb.WriteString(d.String())
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	for i, f := range m.functions {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(f.String())
	}
	return sb.String()
}

// undefined walks every function body and global initializer for
// references to symbols the module neither defines nor declares.
func (m *Module) undefined() ([]*FunctionDeclaration, []*Global) {
	fns := make(map[string]*FunctionDeclaration)
	globals := make(map[string]*Global)

	var visit func(v Value)
	visit = func(v Value) {
		switch v := v.(type) {
		case *FunctionRef:
			if !m.symbols[v.Name] && fns[v.Name] == nil {
				fns[v.Name] = &FunctionDeclaration{Name: v.Name, Sig: v.Sig}
			}
			return
		case *GlobalRef:
			if !m.symbols[v.Name] && globals[v.Name] == nil {
				globals[v.Name] = &Global{Name: v.Name, T: v.ValueType}
			}
			return
		}
		if c, ok := v.(Composite); ok {
			for _, o := range c.Operands() {
				visit(o)
			}
		}
	}

	for _, g := range m.globals {
		if g.Value != nil {
			visit(g.Value)
		}
	}
	for _, f := range m.functions {
		for _, b := range f.blocks {
			for _, instr := range b.Instructions {
				for _, o := range instr.Operands() {
					visit(o)
				}
			}
		}
	}

	fnList := make([]*FunctionDeclaration, 0, len(fns))
	for _, d := range fns {
		fnList = append(fnList, d)
	}
	sort.Slice(fnList, func(i, j int) bool { return fnList[i].Name < fnList[j].Name })
	globalList := make([]*Global, 0, len(globals))
	for _, g := range globals {
		globalList = append(globalList, g)
	}
	sort.Slice(globalList, func(i, j int) bool { return globalList[i].Name < globalList[j].Name })
	return fnList, globalList
}
