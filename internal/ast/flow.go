package ast

// Label starts a named block. Synthetic labels are emitted by the compiler
// for structured statements and never appear in source.
type Label struct {
	Location
	Name      string
	Params    *Params
	Block     []Stmt
	Hide      bool
	Synthetic bool
}

// Jump transfers control to Target.
type Jump struct {
	Location
	Target     string
	Expression bool
	Synthetic  bool
}

// Call calls a label. The label that follows a call in the same block is its
// return point.
type Call struct {
	Location
	Label      string
	Args       *Args
	Expression bool
}

// Return leaves the current label.
type Return struct {
	Location
	Expr *Expr
}

// Pass does nothing.
type Pass struct {
	Location
}

// CondHeader is a lowered conditional: when Cond is false, jump to Target.
type CondHeader struct {
	Location
	Cond   *Expr
	Target string
}

// LoopHeader is a lowered loop test: when Cond is false, leave the loop by
// jumping to Target.
type LoopHeader struct {
	Location
	Cond   *Expr
	Target string
}

// IfArm is one condition and its body.
type IfArm struct {
	Cond  *Expr
	Block []Stmt
}

// If is an if/elif/else chain. Arms are tested in order.
type If struct {
	Location
	Arms []IfArm
	Else []Stmt
}

// While is a loop.
type While struct {
	Location
	Cond  *Expr
	Block []Stmt
}

// MenuChoice is one menu entry. A caption has no body and prints as a line of
// narration inside the menu. Target is only set for lowered menus, before the
// body is recovered.
type MenuChoice struct {
	Location
	Caption   string
	Cond      *Expr
	Args      *Args
	Block     []Stmt
	IsCaption bool
	Target    string
}

// Menu presents choices.
type Menu struct {
	Location
	Choices []*MenuChoice
	Set     string
	With    string
	Args    *Args
	// Lowered is set while the choice bodies still live in the enclosing
	// block behind labels.
	Lowered bool
}

func (*Label) stmtNode()      {}
func (*Jump) stmtNode()       {}
func (*Call) stmtNode()       {}
func (*Return) stmtNode()     {}
func (*Pass) stmtNode()       {}
func (*CondHeader) stmtNode() {}
func (*LoopHeader) stmtNode() {}
func (*If) stmtNode()         {}
func (*While) stmtNode()      {}
func (*Menu) stmtNode()       {}
