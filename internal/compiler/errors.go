package compiler

import (
	"fmt"

	"aura/internal/ast"
)

// ErrorKind classifies compile-time failures. Neither kind is retried.
type ErrorKind int

const (
	// Malformed input: a statement or value shape the lowering does not
	// recognise, or operands whose types do not fit the operation.
	Malformed ErrorKind = iota
	// Validation of bridge and variadic annotations, before lowering.
	Validation
	// Internal marks a panic raised while compiling a method. It fails
	// that method's class instead of the whole process.
	Internal
)

func (k ErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed input"
	case Validation:
		return "invalid declaration"
	case Internal:
		return "internal error"
	}
	return "unknown"
}

// CompileError is a fatal error while compiling one method.
type CompileError struct {
	Kind   ErrorKind
	Class  string
	Method string
	Pos    ast.Position
	Reason string
	// Panic is the recovered value of an Internal error.
	Panic any
}

func (e *CompileError) Error() string {
	where := e.Class
	if e.Method != "" {
		where += "." + e.Method
	}
	if e.Pos.Line > 0 {
		return fmt.Sprintf("%s: line %d, col %d: %s: %s", where, e.Pos.Line, e.Pos.Column, e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", where, e.Kind, e.Reason)
}

// failure carries a CompileError through the lowering code, which panics
// with it instead of threading an error through every emit helper.
// Compile recovers it at the method boundary.
type failure struct{ err *CompileError }

func (mb *methodBuilder) fail(pos ast.Position, format string, args ...any) {
	panic(failure{&CompileError{
		Kind:   Malformed,
		Class:  mb.class.Name,
		Method: mb.method.Name + mb.method.Descriptor(),
		Pos:    pos,
		Reason: fmt.Sprintf(format, args...),
	}})
}

func validationError(m *ast.Method, format string, args ...any) *CompileError {
	return &CompileError{
		Kind:   Validation,
		Class:  m.Class.Name,
		Method: m.Name + m.Descriptor(),
		Pos:    m.Pos,
		Reason: fmt.Sprintf(format, args...),
	}
}

// Unwrap exposes a recovered panic that was an error.
func (e *CompileError) Unwrap() error {
	if err, ok := e.Panic.(error); ok {
		return err
	}
	return nil
}

// recoverFailure converts a panic while compiling m into an error.
func recoverFailure(m *ast.Method, err *error) {
	r := recover()
	if r == nil {
		return
	}
	if f, ok := r.(failure); ok {
		*err = f.err
		return
	}
	*err = &CompileError{
		Kind:   Internal,
		Class:  m.Class.Name,
		Method: m.Name + m.Descriptor(),
		Pos:    m.Pos,
		Reason: fmt.Sprint(r),
		Panic:  r,
	}
}
