// Package ast defines the script syntax tree the decompiler reconstructs.
package ast

import (
	"fmt"

	"github.com/jiang0681/unrpyc/internal/pickle"
)

// NoRef marks a location whose filename was not a shared record.
const NoRef = -1

// Location is where a node came from. Ref is the reference table id of the
// filename record the engine shares between statements; it is an annotation,
// not ownership.
type Location struct {
	File string
	Line int
	Ref  int
}

// Loc returns the location itself, so embedding types satisfy Node.
func (l Location) Loc() Location { return l }

func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Node is anything carrying a location.
type Node interface {
	Loc() Location
}

// Stmt is a script statement.
type Stmt interface {
	Node
	stmtNode()
}

// Script is one decompiled file.
type Script struct {
	Filename string
	Stmts    []Stmt
}

// Expr is Python expression source as it appeared in the script.
type Expr struct {
	Location
	Source string
	// Plain is set when the engine stored a bare string rather than an
	// expression record, as it does for the implicit "True" of else arms.
	Plain bool
}

// NewExpr returns a located expression.
func NewExpr(source string, loc Location) *Expr {
	return &Expr{Location: loc, Source: source}
}

// String returns the source, or "" for a nil expression.
func (e *Expr) String() string {
	if e == nil {
		return ""
	}
	return e.Source
}

// Code is a compiled Python block or expression.
type Code struct {
	Location
	Source string
	// Mode is "exec", "eval" or "hide".
	Mode string
}

// ParamKind mirrors Python's parameter kinds.
type ParamKind int

const (
	PositionalOnly ParamKind = iota
	PositionalOrKeyword
	VarPositional
	KeywordOnly
	VarKeyword
)

// Param is one formal parameter.
type Param struct {
	Name       string
	Kind       ParamKind
	Default    string
	HasDefault bool
}

// Params is a label or transform parameter list.
type Params struct {
	List []Param
}

// Arg is one call argument. Star is 1 for *args and 2 for **kwargs.
type Arg struct {
	Name  string
	Value string
	Star  int
}

// Args is a call argument list.
type Args struct {
	List []Arg
}

// ImSpec is the image specifier of show, scene and hide.
type ImSpec struct {
	Name       []string
	Expression string
	Tag        string
	AtList     []string
	Layer      string
	Zorder     string
	Behind     []string
}

// Unknown is a record the decompiler cannot print faithfully. Raw is the
// record exactly as deserialized.
type Unknown struct {
	Location
	Tag    string
	Reason string
	Raw    pickle.Value
}

func (*Unknown) stmtNode() {}
