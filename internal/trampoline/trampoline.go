// Package trampoline models the indirection stubs the method compiler
// requests when a call, field access, allocation or type check cannot be
// linked directly, and generates the stubs at link time.
package trampoline

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"aura/internal/llvm"
	"aura/internal/types"
)

// Kind selects what a trampoline does.
type Kind int

const (
	Invokestatic Kind = iota
	Invokevirtual
	Invokespecial
	Invokeinterface
	GetField
	PutField
	GetStatic
	PutStatic
	New
	Anewarray
	Multianewarray
	Checkcast
	Instanceof
	LdcClass
)

var kindNames = [...]string{
	Invokestatic:    "invokestatic",
	Invokevirtual:   "invokevirtual",
	Invokespecial:   "invokespecial",
	Invokeinterface: "invokeinterface",
	GetField:        "getfield",
	PutField:        "putfield",
	GetStatic:       "getstatic",
	PutStatic:       "putstatic",
	New:             "new",
	Anewarray:       "anewarray",
	Multianewarray:  "multianewarray",
	Checkcast:       "checkcast",
	Instanceof:      "instanceof",
	LdcClass:        "ldcclass",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, n := range kindNames {
		if n == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown trampoline kind %q", s)
}

// MarshalYAML writes k by name.
func (k Kind) MarshalYAML() (any, error) { return k.String(), nil }

// UnmarshalYAML reads a kind written by MarshalYAML.
func (k *Kind) UnmarshalYAML(n *yaml.Node) error {
	v, err := ParseKind(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*k = v
	return nil
}

// IsInvoke reports whether k dispatches a method call.
func (k Kind) IsInvoke() bool { return k <= Invokeinterface }

// IsField reports whether k reads or writes a field.
func (k Kind) IsField() bool { return k >= GetField && k <= PutStatic }

// Trampoline is a request for a stub. The struct is comparable and is its
// own deduplication key.
type Trampoline struct {
	Kind         Kind   `yaml:"kind"`
	CallingClass string `yaml:"caller"`
	TargetClass  string `yaml:"target"`
	// Name and Desc identify the member for invoke and field kinds.
	Name string `yaml:"name,omitempty"`
	Desc string `yaml:"desc,omitempty"`
	// RuntimeClass is the static type of the receiver when it is more
	// precise than TargetClass. Empty means TargetClass.
	RuntimeClass string `yaml:"runtime,omitempty"`
}

// Invoke builds an invoke trampoline.
func Invoke(kind Kind, caller, target, name, desc string) Trampoline {
	return Trampoline{Kind: kind, CallingClass: caller, TargetClass: target, Name: name, Desc: desc}
}

// Field builds a field access trampoline.
func Field(kind Kind, caller, target, name, desc string) Trampoline {
	return Trampoline{Kind: kind, CallingClass: caller, TargetClass: target, Name: name, Desc: desc}
}

// Class builds a class-level trampoline: New, Anewarray, Multianewarray,
// Checkcast, Instanceof or LdcClass.
func Class(kind Kind, caller, target string) Trampoline {
	return Trampoline{Kind: kind, CallingClass: caller, TargetClass: target}
}

// WithRuntimeClass returns t carrying the receiver's static class.
// A runtime class equal to the target class is dropped so equivalent
// requests share one key.
func (t Trampoline) WithRuntimeClass(class string) Trampoline {
	if class == t.TargetClass {
		class = ""
	}
	t.RuntimeClass = class
	return t
}

// Symbol returns the stub's linkage name. Equal trampolines have equal
// symbols.
func (t Trampoline) Symbol() string {
	var sb strings.Builder
	sb.WriteString("[T]")
	sb.WriteString(t.Kind.String())
	sb.WriteByte(':')
	sb.WriteString(t.CallingClass)
	sb.WriteByte(':')
	sb.WriteString(t.TargetClass)
	if t.Name != "" {
		sb.WriteByte('.')
		sb.WriteString(t.Name)
		if t.Kind.IsField() {
			sb.WriteString("(" + t.Desc + ")")
		} else {
			sb.WriteString(t.Desc)
		}
	}
	if t.RuntimeClass != "" {
		sb.WriteByte('@')
		sb.WriteString(t.RuntimeClass)
	}
	return sb.String()
}

// FunctionType returns the stub's signature.
func (t Trampoline) FunctionType() *llvm.FunctionType {
	env := types.EnvPtr
	obj := types.ObjectPtr
	switch t.Kind {
	case Invokestatic:
		return mustMethodType(t.Desc, true)
	case Invokevirtual, Invokespecial, Invokeinterface:
		return mustMethodType(t.Desc, false)
	case GetField:
		return llvm.NewFunctionType(mustFieldType(t.Desc), env, obj)
	case PutField:
		return llvm.NewFunctionType(llvm.Void, env, obj, mustFieldType(t.Desc))
	case GetStatic:
		return llvm.NewFunctionType(mustFieldType(t.Desc), env)
	case PutStatic:
		return llvm.NewFunctionType(llvm.Void, env, mustFieldType(t.Desc))
	case New, LdcClass:
		return llvm.NewFunctionType(obj, env)
	case Anewarray:
		return llvm.NewFunctionType(obj, env, llvm.I32)
	case Multianewarray:
		return llvm.NewFunctionType(obj, env, llvm.I32, llvm.I32Ptr)
	case Checkcast:
		return llvm.NewFunctionType(obj, env, obj)
	case Instanceof:
		return llvm.NewFunctionType(llvm.I32, env, obj)
	}
	panic(fmt.Sprintf("trampoline: unknown kind %d", int(t.Kind)))
}

// Ref returns a call target for the stub.
func (t Trampoline) Ref() *llvm.FunctionRef {
	return llvm.NewFunctionRef(t.Symbol(), t.FunctionType())
}

func (t Trampoline) String() string { return t.Symbol() }

// Descriptors are validated by the frontend, so a failure here is a bug
// in the caller.
func mustMethodType(desc string, static bool) *llvm.FunctionType {
	ft, err := types.MethodTypeFromDescriptor(desc, static)
	if err != nil {
		panic(fmt.Sprintf("trampoline: %v", err))
	}
	return ft
}

func mustFieldType(desc string) llvm.Type {
	t, err := types.OfDescriptor(desc)
	if err != nil {
		panic(fmt.Sprintf("trampoline: %v", err))
	}
	return t
}

// ---------------------------------------------------------------------------
// Set
// ---------------------------------------------------------------------------

// Set is an insertion-ordered set of trampolines owned by one compilation.
// It is not safe for concurrent use.
type Set struct {
	index map[Trampoline]int
	list  []Trampoline
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{index: make(map[Trampoline]int)}
}

// Add records t and returns its call target. Adding an equal trampoline
// again returns the same target.
func (s *Set) Add(t Trampoline) *llvm.FunctionRef {
	if _, ok := s.index[t]; !ok {
		s.index[t] = len(s.list)
		s.list = append(s.list, t)
	}
	return t.Ref()
}

// Contains reports whether t has been added.
func (s *Set) Contains(t Trampoline) bool {
	_, ok := s.index[t]
	return ok
}

// Len returns the number of distinct trampolines.
func (s *Set) Len() int { return len(s.list) }

// List returns the trampolines in insertion order.
func (s *Set) List() []Trampoline { return s.list }

// AddAll adds every trampoline of o.
func (s *Set) AddAll(o *Set) {
	for _, t := range o.list {
		s.Add(t)
	}
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Registry is the link-wide trampoline table. Workers compiling different
// classes publish into it concurrently.
type Registry struct {
	mu    sync.Mutex
	known map[Trampoline]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{known: make(map[Trampoline]bool)}
}

// Add inserts each trampoline not yet known and returns how many were new.
func (r *Registry) Add(ts ...Trampoline) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range ts {
		if !r.known[t] {
			r.known[t] = true
			n++
		}
	}
	return n
}

// Len returns the number of distinct trampolines.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.known)
}

// Sorted returns every trampoline ordered by symbol.
func (r *Registry) Sorted() []Trampoline {
	r.mu.Lock()
	out := make([]Trampoline, 0, len(r.known))
	for t := range r.known {
		out = append(out, t)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol() < out[j].Symbol() })
	return out
}

// TargetClasses returns the distinct classes the trampolines refer to,
// sorted. The app compiler uses them to discover more classes to compile.
func (r *Registry) TargetClasses() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range r.Sorted() {
		for _, c := range []string{t.TargetClass, t.RuntimeClass} {
			if c != "" && !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	sort.Strings(out)
	return out
}
