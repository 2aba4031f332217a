package ast

// StmtInfo is the metadata carried by every statement: its source position
// and the check-elision tags from a prior analysis. A tag that is not set
// means the check must be emitted.
type StmtInfo struct {
	Pos          Position
	NoNullCheck  bool
	NoLowerCheck bool
	NoUpperCheck bool
}

func (s *StmtInfo) Info() *StmtInfo  { return s }
func (s *StmtInfo) GetPos() Position { return s.Pos }
func (s *StmtInfo) stmtNode()        {}

// AssignStmt stores Right into Left. Left is a *Local, *ArrayRef,
// *InstanceFieldRef or *StaticFieldRef. Identity assignments
// (r0 := @this) are AssignStmts whose Right is a ThisRef, ParamRef or
// CaughtExceptionRef.
type AssignStmt struct {
	StmtInfo
	Left  Value
	Right Value
}

type ReturnStmt struct {
	StmtInfo
	Value Value
}

type ReturnVoidStmt struct {
	StmtInfo
}

// IfStmt branches to Target when Cond holds. Cond.Op is a condition
// operator.
type IfStmt struct {
	StmtInfo
	Cond   *BinopExpr
	Target int
}

type GotoStmt struct {
	StmtInfo
	Target int
}

type LookupSwitchStmt struct {
	StmtInfo
	Key     Value
	Values  []int32
	Targets []int
	Default int
}

// TableSwitchStmt dispatches Key in [Low, High] to Targets[Key-Low].
type TableSwitchStmt struct {
	StmtInfo
	Key     Value
	Low     int32
	High    int32
	Targets []int
	Default int
}

type ThrowStmt struct {
	StmtInfo
	Value Value
}

type InvokeStmt struct {
	StmtInfo
	Invoke *InvokeExpr
}

type EnterMonitorStmt struct {
	StmtInfo
	Value Value
}

type ExitMonitorStmt struct {
	StmtInfo
	Value Value
}

type NopStmt struct {
	StmtInfo
}

// Targets returns the explicit branch targets of s, in declaration order.
func Targets(s Stmt) []int {
	switch s := s.(type) {
	case *IfStmt:
		return []int{s.Target}
	case *GotoStmt:
		return []int{s.Target}
	case *LookupSwitchStmt:
		return append(append([]int(nil), s.Targets...), s.Default)
	case *TableSwitchStmt:
		return append(append([]int(nil), s.Targets...), s.Default)
	}
	return nil
}

// FallsThrough reports whether control can continue to the next statement.
func FallsThrough(s Stmt) bool {
	switch s.(type) {
	case *GotoStmt, *LookupSwitchStmt, *TableSwitchStmt, *ThrowStmt,
		*ReturnStmt, *ReturnVoidStmt:
		return false
	}
	return true
}

// InvokeOf returns the invoke expression executed by s, if any.
func InvokeOf(s Stmt) *InvokeExpr {
	switch s := s.(type) {
	case *InvokeStmt:
		return s.Invoke
	case *AssignStmt:
		if ie, ok := s.Right.(*InvokeExpr); ok {
			return ie
		}
	}
	return nil
}
