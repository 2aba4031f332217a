package compiler

import (
	"fmt"
	"sort"
	"strconv"

	"aura/internal/ast"
	"aura/internal/codegen"
	"aura/internal/llvm"
	"aura/internal/types"
)

// structClass is the root of all classes with a native struct layout.
const structClass = "aura/rt/bro/Struct"

// marshalerCallTypeBridge is passed in the flags argument of every
// marshaler call made by a bridge.
const marshalerCallTypeBridge = 1

// MarshalerKind tells how a marshaler represents values natively.
type MarshalerKind int

const (
	// PointerMarshaler converts objects to and from native handles (i64).
	PointerMarshaler MarshalerKind = iota
	// ValueMarshaler converts objects to and from a native primitive.
	ValueMarshaler
)

// Marshal site positions besides declared parameters.
const (
	Receiver = -1
	Return   = -2
)

// MarshalSite identifies a value crossing a bridge: a parameter index,
// Receiver or Return.
type MarshalSite struct {
	Method *ast.Method
	Param  int
}

// Type returns the Java type at the site.
func (s MarshalSite) Type() *ast.Type {
	switch s.Param {
	case Receiver:
		return ast.ObjectType(s.Method.Class.Name)
	case Return:
		return s.Method.Return
	}
	return s.Method.Params[s.Param]
}

func (s MarshalSite) String() string {
	switch s.Param {
	case Receiver:
		return "receiver of " + s.Method.String()
	case Return:
		return "return value of " + s.Method.String()
	}
	return fmt.Sprintf("parameter %d of %s", s.Param+1, s.Method)
}

// annotation returns the site's own annotation called name.
func (s MarshalSite) annotation(name string) *ast.Annotation {
	switch s.Param {
	case Receiver:
		return nil
	case Return:
		return s.Method.Annotations.Find(name)
	}
	return s.Method.ParamAnnotation(s.Param, name)
}

// MarshalerMethod is the set of static methods marshaling one type.
// AfterBridgeCall is nil when the marshaler has no update hook.
type MarshalerMethod struct {
	Kind            MarshalerKind
	Class           string
	ToNative        ast.MethodRef
	ToObject        ast.MethodRef
	AfterBridgeCall *ast.MethodRef
	// NativeType is the native primitive of a value marshaler.
	NativeType llvm.Type
}

// MarshalerLookup finds marshalers for bridge sites. It is populated once
// and only read during compilation.
type MarshalerLookup struct {
	classes    Resolver
	target     *codegen.Target
	configured map[string]string
}

// NewMarshalerLookup builds a lookup over classes. Entries bind types to
// marshaler classes ahead of class annotations.
func NewMarshalerLookup(classes Resolver, target *codegen.Target, entries []MarshalerEntry) *MarshalerLookup {
	l := &MarshalerLookup{
		classes:    classes,
		target:     target,
		configured: make(map[string]string),
	}
	for _, e := range entries {
		l.configured[e.Type] = e.Class
	}
	return l
}

// Find returns the marshaler for site. The sources are tried in order:
// the site's @Marshaler annotation, configured entries, the @Marshaler
// annotation of the type or a super class, and the built-in struct
// marshaler.
func (l *MarshalerLookup) Find(site MarshalSite) (*MarshalerMethod, error) {
	t := site.Type()
	if !t.IsRef() {
		return nil, fmt.Errorf("%s: %s needs no marshaler", site, t)
	}
	if a := site.annotation("Marshaler"); a != nil {
		class, _ := a.Get("value")
		return l.fromClass(internalName(class), t, site)
	}
	if t.Kind != ast.ClassKind {
		return nil, fmt.Errorf("%s: no marshaler for %s", site, t)
	}
	chain := l.superChain(t.ClassName)
	for _, name := range chain {
		if class, ok := l.configured[name]; ok {
			return l.fromClass(class, t, site)
		}
	}
	for _, name := range chain {
		c := l.classes.Lookup(name)
		if c == nil {
			break
		}
		if a := c.Annotations.Find("Marshaler"); a != nil {
			class, _ := a.Get("value")
			return l.fromClass(internalName(class), t, site)
		}
	}
	if l.isStruct(t.ClassName) {
		return builtinStructMarshaler(t), nil
	}
	return nil, fmt.Errorf("%s: no marshaler for %s", site, t)
}

// superChain returns name followed by its super classes. A cyclic
// hierarchy ends the chain at the first repeated class.
func (l *MarshalerLookup) superChain(name string) []string {
	var chain []string
	seen := make(map[string]bool)
	for name != "" && !seen[name] {
		seen[name] = true
		chain = append(chain, name)
		c := l.classes.Lookup(name)
		if c == nil {
			break
		}
		name = c.Super
	}
	return chain
}

func (l *MarshalerLookup) isStruct(name string) bool {
	return name != structClass && l.classes.IsSubclass(name, structClass)
}

func builtinStructMarshaler(t *ast.Type) *MarshalerMethod {
	st := ast.ObjectType(structClass)
	return &MarshalerMethod{
		Kind:  PointerMarshaler,
		Class: structClass,
		ToNative: ast.MethodRef{Owner: structClass, Name: "toNative",
			Params: []*ast.Type{st, ast.LongType}, Return: ast.LongType},
		ToObject: ast.MethodRef{Owner: structClass, Name: "toObject",
			Params: []*ast.Type{ast.ObjectType("java/lang/Class"), ast.LongType, ast.LongType}, Return: st},
	}
}

// fromClass collects the marshaler methods of class able to handle t.
// Methods are static, annotated @MarshalsPointer or @MarshalsValue and
// named toNative, toObject and afterBridgeCall.
func (l *MarshalerLookup) fromClass(class string, t *ast.Type, site MarshalSite) (*MarshalerMethod, error) {
	c := l.classes.Lookup(class)
	if c == nil {
		return nil, fmt.Errorf("%s: marshaler class %s not found", site, class)
	}
	for _, kind := range []MarshalerKind{PointerMarshaler, ValueMarshaler} {
		mm := &MarshalerMethod{Kind: kind, Class: c.Name}
		var toNative, toObject bool
		for _, m := range c.Methods {
			if !m.IsStatic() || !m.Annotations.Has(kindAnnotation(kind)) {
				continue
			}
			switch m.Name {
			case "toNative":
				if !toNative && l.handlesToNative(m, t, kind) {
					mm.ToNative = refOf(m)
					if kind == ValueMarshaler {
						mm.NativeType = types.Of(m.Return)
					}
					toNative = true
				}
			case "toObject":
				if !toObject && l.handlesToObject(m, t, kind) {
					mm.ToObject = refOf(m)
					toObject = true
				}
			case "afterBridgeCall":
				if mm.AfterBridgeCall == nil && kind == PointerMarshaler && l.handlesAfterCall(m, t) {
					r := refOf(m)
					mm.AfterBridgeCall = &r
				}
			}
		}
		if toNative || toObject {
			if site.Param == Return && !toObject {
				return nil, fmt.Errorf("%s: marshaler %s has no toObject for %s", site, class, t)
			}
			if site.Param != Return && !toNative {
				return nil, fmt.Errorf("%s: marshaler %s has no toNative for %s", site, class, t)
			}
			return mm, nil
		}
	}
	return nil, fmt.Errorf("%s: %s has no marshaler methods for %s", site, class, t)
}

func kindAnnotation(k MarshalerKind) string {
	if k == ValueMarshaler {
		return "MarshalsValue"
	}
	return "MarshalsPointer"
}

func refOf(m *ast.Method) ast.MethodRef {
	return ast.MethodRef{Owner: m.Class.Name, Name: m.Name, Params: m.Params, Return: m.Return}
}

// accepts reports whether a value of type t may be passed as param.
func (l *MarshalerLookup) accepts(param, t *ast.Type) bool {
	if !param.IsRef() {
		return false
	}
	if param.Kind == ast.ClassKind && param.ClassName == "java/lang/Object" {
		return true
	}
	if param.Equal(t) {
		return true
	}
	return param.Kind == ast.ClassKind && t.Kind == ast.ClassKind && l.classes.IsSubclass(t.ClassName, param.ClassName)
}

// handlesToNative matches toNative(T, long) returning long for pointer
// marshalers and a primitive for value marshalers.
func (l *MarshalerLookup) handlesToNative(m *ast.Method, t *ast.Type, kind MarshalerKind) bool {
	if len(m.Params) != 2 || !l.accepts(m.Params[0], t) || m.Params[1].Kind != ast.LongKind {
		return false
	}
	if kind == PointerMarshaler {
		return m.Return.Kind == ast.LongKind
	}
	return m.Return.IsPrimitive() && m.Return.Kind != ast.VoidKind
}

// handlesToObject matches toObject(Class, long|primitive, long) returning
// a type t can be assigned from.
func (l *MarshalerLookup) handlesToObject(m *ast.Method, t *ast.Type, kind MarshalerKind) bool {
	if len(m.Params) != 3 || m.Params[0].ClassName != "java/lang/Class" || m.Params[2].Kind != ast.LongKind {
		return false
	}
	if kind == PointerMarshaler && m.Params[1].Kind != ast.LongKind {
		return false
	}
	if !m.Params[1].IsPrimitive() {
		return false
	}
	return l.accepts(m.Return, t)
}

// handlesAfterCall matches afterBridgeCall(T, long, long).
func (l *MarshalerLookup) handlesAfterCall(m *ast.Method, t *ast.Type) bool {
	return len(m.Params) == 3 && l.accepts(m.Params[0], t) &&
		m.Params[1].Kind == ast.LongKind && m.Params[2].Kind == ast.LongKind &&
		m.Return.Kind == ast.VoidKind
}

// ---------------------------------------------------------------------------
// Struct layout
// ---------------------------------------------------------------------------

// StructType returns the native layout of a struct class: one member per
// field annotated @StructMember(index), ordered by index. Members that are
// themselves structs annotated @ByVal are embedded.
func (l *MarshalerLookup) StructType(class string) (*llvm.StructureType, error) {
	return l.structType(class, map[string]bool{})
}

func (l *MarshalerLookup) structType(class string, visiting map[string]bool) (*llvm.StructureType, error) {
	if visiting[class] {
		return nil, fmt.Errorf("struct %s contains itself by value", class)
	}
	visiting[class] = true
	defer delete(visiting, class)

	c := l.classes.Lookup(class)
	if c == nil {
		return nil, fmt.Errorf("struct class %s not found", class)
	}
	type member struct {
		index int
		t     llvm.Type
	}
	var members []member
	seen := make(map[int]string)
	for _, f := range c.Fields {
		a := f.Annotations.Find("StructMember")
		if a == nil || f.IsStatic() {
			continue
		}
		v, _ := a.Get("value")
		idx, err := strconv.Atoi(v)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("%s.%s: invalid @StructMember index %q", class, f.Name, v)
		}
		if prev, dup := seen[idx]; dup {
			return nil, fmt.Errorf("%s: members %s and %s share index %d", class, prev, f.Name, idx)
		}
		seen[idx] = f.Name
		var t llvm.Type
		switch {
		case f.Type.Kind == ast.LongKind && f.Annotations.Has("Pointer"):
			t = llvm.I8Ptr
		case f.Type.IsPrimitive():
			t = types.Of(f.Type)
		case f.Annotations.Has("ByVal") && f.Type.Kind == ast.ClassKind && l.isStruct(f.Type.ClassName):
			nested, err := l.structType(f.Type.ClassName, visiting)
			if err != nil {
				return nil, err
			}
			t = nested
		default:
			t = llvm.I8Ptr
		}
		members = append(members, member{idx, t})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].index < members[j].index })
	fields := make([]llvm.Type, len(members))
	for i, m := range members {
		if m.index != i {
			return nil, fmt.Errorf("%s: no member with index %d", class, i)
		}
		fields[i] = m.t
	}
	return llvm.NewStructureType(fields...), nil
}

// SizeOf returns the allocation size of t on the compilation target.
func (l *MarshalerLookup) SizeOf(t llvm.Type) int {
	return l.target.SizeOf(t)
}
