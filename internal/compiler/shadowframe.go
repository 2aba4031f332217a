package compiler

import (
	"aura/internal/llvm"
)

// Shadow frames give the runtime a stack of (function, line) pairs for
// stack traces without unwinding native frames. The runtime allocates the
// frame on push and pops frames of methods left by an exception itself.
var (
	fnPushShadowFrame      = runtimeFn("_bcPushShadowFrame", llvm.Void, env, llvm.I8Ptr)
	fnPushShadowLineNumber = runtimeFn("_bcPushShadowLineNumber", llvm.Void, env, llvm.I32)
	fnPopShadowFrame       = runtimeFn("_bcPopShadowFrame", llvm.Void, env)
)

// pushShadowFrame records the function address on entry.
func (mb *methodBuilder) pushShadowFrame() {
	mb.shadow = true
	addr := llvm.NewConstantBitcast(mb.fn.Ref(), llvm.I8Ptr)
	mb.b.Call(fnPushShadowFrame, mb.env(), addr)
}

// markLine publishes the line of the statement about to run when it
// differs from the last line published in the current block. Blocks start
// with no line since their predecessors may disagree.
func (mb *methodBuilder) markLine(line int) {
	if !mb.shadow || line <= 0 || line == mb.line {
		return
	}
	mb.line = line
	mb.b.Call(fnPushShadowLineNumber, mb.env(), llvm.ConstI32(int32(line)))
}

// popShadowFrame runs before every exit of a method that pushed a frame.
func (mb *methodBuilder) popShadowFrame() {
	if mb.shadow {
		mb.b.Call(fnPopShadowFrame, mb.env())
	}
}
