package compiler

import (
	"fmt"
	"slices"

	"aura/internal/ast"
	"aura/internal/llvm"
	"aura/internal/types"
)

// branchTargets maps every statement that is jumped to onto the
// statements that jump to it. Conditional branches also count as
// predecessors of the statement following them.
func branchTargets(body *ast.Body) map[int][]int {
	preds := make(map[int][]int)
	for i, s := range body.Stmts {
		targets := ast.Targets(s)
		for _, t := range targets {
			preds[t] = append(preds[t], i)
		}
		if len(targets) > 0 && ast.FallsThrough(s) && i+1 < len(body.Stmts) {
			preds[i+1] = append(preds[i+1], i)
		}
	}
	return preds
}

// catchEntry is one (exception class, handler) pair of an active trap set.
// The empty class catches everything.
type catchEntry struct {
	Exception string
	Handler   int
}

// trapIndex answers exception-scope questions about one body. Active sets
// are a pure function of the statement index and the trap table,
// memoised on first use.
type trapIndex struct {
	body  *ast.Body
	preds map[int][]int

	// handlers maps handler statements to their dispatch position.
	handlers     map[int]int
	handlerOrder []int

	active [][]catchEntry
	known  []bool

	// sets are the distinct active sets that need a selector, in order of
	// discovery. Selector s > 0 refers to sets[s-1].
	sets      [][]catchEntry
	selectors map[int]int
}

func newTrapIndex(body *ast.Body) *trapIndex {
	ti := &trapIndex{
		body:      body,
		preds:     branchTargets(body),
		handlers:  make(map[int]int),
		active:    make([][]catchEntry, len(body.Stmts)),
		known:     make([]bool, len(body.Stmts)),
		selectors: make(map[int]int),
	}
	for _, t := range body.Traps {
		if t.Begin == t.End {
			continue
		}
		if _, ok := ti.handlers[t.Handler]; ok {
			continue
		}
		ti.handlers[t.Handler] = len(ti.handlerOrder)
		ti.handlerOrder = append(ti.handlerOrder, t.Handler)
	}
	if ti.hasTraps() {
		for i := range body.Stmts {
			if ti.selectorChanges(i) {
				ti.selectors[i] = ti.record(ti.activeAt(i))
			}
		}
	}
	return ti
}

// hasTraps reports whether any trap covers at least one statement.
func (ti *trapIndex) hasTraps() bool { return len(ti.handlerOrder) > 0 }

func (ti *trapIndex) isBlockStart(i int) bool {
	if i == 0 {
		return true
	}
	if _, ok := ti.preds[i]; ok {
		return true
	}
	_, ok := ti.handlers[i]
	return ok
}

// activeAt returns the traps covering statement i, in table order.
func (ti *trapIndex) activeAt(i int) []catchEntry {
	if ti.known[i] {
		return ti.active[i]
	}
	var set []catchEntry
	for _, t := range ti.body.Traps {
		if t.Covers(i) {
			set = append(set, catchEntry{Exception: t.Exception, Handler: t.Handler})
		}
	}
	ti.active[i] = set
	ti.known[i] = true
	return set
}

// selectorChanges reports whether the selector must be stored before
// statement i: at the first statement, at handlers, and wherever the active
// set differs from that of any statement control can arrive from.
func (ti *trapIndex) selectorChanges(i int) bool {
	if i == 0 {
		return true
	}
	if _, ok := ti.handlers[i]; ok {
		return true
	}
	set := ti.activeAt(i)
	if ast.FallsThrough(ti.body.Stmts[i-1]) && !slices.Equal(set, ti.activeAt(i-1)) {
		return true
	}
	for _, p := range ti.preds[i] {
		if !slices.Equal(set, ti.activeAt(p)) {
			return true
		}
	}
	return false
}

// record returns the selector of set, registering it on first sight.
func (ti *trapIndex) record(set []catchEntry) int {
	if len(set) == 0 {
		return 0
	}
	for i, s := range ti.sets {
		if slices.Equal(s, set) {
			return i + 1
		}
	}
	ti.sets = append(ti.sets, set)
	return len(ti.sets)
}

// selectorAt returns the selector to store before statement i, if any.
func (ti *trapIndex) selectorAt(i int) (int, bool) {
	sel, ok := ti.selectors[i]
	return sel, ok
}

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

// enterTrycatch sets up the exception context in the entry block and
// dispatches either to the first statement or, after an exception, to the
// handler the runtime selected.
func (mb *methodBuilder) enterTrycatch() {
	b := mb.b
	mb.ctx = b.AllocaNamed("trycatch", types.BcTrycatchContext)
	b.Store(llvm.ConstI32(0), mb.selectorPtr(b), false)
	pads := b.GEP(llvm.PointerTo(llvm.I8Ptr), mb.ctx, llvm.ConstI32(0), llvm.ConstI32(1))
	b.Store(b.Bitcast(mb.landingPads(), llvm.I8Ptr), pads, false)
	ctx := b.Bitcast(mb.ctx, types.TrycatchContextPtr)
	idx := b.Call(fnTrycatchEnter, mb.env(), ctx)

	cases := make([]llvm.SwitchCase, len(mb.traps.handlerOrder))
	for i, h := range mb.traps.handlerOrder {
		blk := mb.blocks[h]
		if blk == nil {
			mb.fail(mb.method.Pos, "trap handler %d is outside the body", h)
		}
		cases[i] = llvm.SwitchCase{Value: llvm.ConstI32(int32(i + 1)), Target: blk}
	}
	b.Switch(idx, mb.blocks[0], cases...)
}

// selectorPtr addresses the selector field of the method's context.
func (mb *methodBuilder) selectorPtr(b *llvm.BasicBlock) llvm.Value {
	return b.GEP(llvm.I32Ptr, mb.ctx, llvm.ConstI32(0), llvm.ConstI32(0), llvm.ConstI32(1))
}

func (mb *methodBuilder) storeSelector(sel int) {
	mb.b.Store(llvm.ConstI32(int32(sel)), mb.selectorPtr(mb.b), false)
}

func (mb *methodBuilder) leaveTrycatch() {
	if mb.traps.hasTraps() {
		mb.b.Call(fnTrycatchLeave, mb.env())
	}
}

// landingPads emits one table per recorded trap set and returns the table
// of tables the runtime indexes with selector-1.
func (mb *methodBuilder) landingPads() llvm.Value {
	tables := make([]llvm.Value, len(mb.traps.sets))
	for i, set := range mb.traps.sets {
		entries := make([]llvm.Value, 0, len(set)+1)
		for _, e := range set {
			entries = append(entries, llvm.NewStructureConstant(
				mb.catchInfo(e.Exception),
				llvm.ConstI32(int32(mb.traps.handlers[e.Handler]+1)),
			))
		}
		entries = append(entries, llvm.NewStructureConstant(llvm.NewNull(llvm.I8Ptr), llvm.ConstI32(0)))
		value := llvm.NewArrayConstant(types.LandingPadEntry, entries...)
		g := &llvm.Global{
			Name:     fmt.Sprintf("%s[lp%d]", mb.fn.Name, i+1),
			T:        value.Type(),
			Value:    value,
			Linkage:  llvm.Private,
			Constant: true,
		}
		mb.addGlobal(g)
		tables[i] = llvm.NewConstantBitcast(g.Ref(), llvm.I8Ptr)
	}
	value := llvm.NewArrayConstant(llvm.I8Ptr, tables...)
	g := &llvm.Global{
		Name:     mb.fn.Name + "[landingpads]",
		T:        value.Type(),
		Value:    value,
		Linkage:  llvm.Private,
		Constant: true,
	}
	mb.addGlobal(g)
	return g.Ref()
}

// catchInfo returns the info struct a landing pad matches exceptions
// against. Throwable, catch-all and classes missing from the class path
// match everything.
func (mb *methodBuilder) catchInfo(class string) llvm.Value {
	if class == "" || class == "java/lang/Throwable" || mb.Classes.Lookup(class) == nil {
		return llvm.NewNull(llvm.I8Ptr)
	}
	if !mb.catches[class] {
		mb.catches[class] = true
		mb.res.Catches = append(mb.res.Catches, class)
	}
	return llvm.NewConstantBitcast(llvm.NewGlobalRef(types.InfoStructSymbol(class), llvm.I8Ptr), llvm.I8Ptr)
}

func (mb *methodBuilder) addGlobal(g *llvm.Global) {
	if err := mb.mod.AddGlobal(g); err != nil {
		mb.fail(mb.method.Pos, "%v", err)
	}
}
