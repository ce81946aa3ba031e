package ast

import "github.com/jiang0681/unrpyc/internal/pickle"

// SLNode is a statement of a screen language body.
type SLNode interface {
	Node
	slNode()
}

// SLKeyword is one "name value" property. Value is nil for a keyword written
// without its argument, which older engines accepted at the end of a line.
type SLKeyword struct {
	Name  string
	Value *Expr
}

// SLBlock holds the properties and children shared by screens, displayables
// and the arms of if and showif.
type SLBlock struct {
	Location
	Keywords []SLKeyword
	Children []SLNode
	// ATL is the raw "at transform:" block, if any. ATLLine is where it
	// starts.
	ATL     pickle.Value
	ATLLine int
}

// SLDisplayable is a displayable statement such as "text" or "vbox". The
// engine does not record the statement name, only the callable it resolves
// to and the default style.
type SLDisplayable struct {
	SLBlock
	Displayable *pickle.Class
	// Style is the default style name, "" for None, or a decimal for the
	// integer placeholders some statements use.
	Style      string
	Positional []string
	// Variable is the target of "as".
	Variable string
}

// SLIf is an if or showif chain. An arm with a nil Cond is the else arm.
type SLIf struct {
	Location
	ShowIf bool
	Arms   []SLIfArm
}

type SLIfArm struct {
	Cond  *Expr
	Block SLBlock
}

// SLFor is a for loop. Index is the optional "index" expression.
type SLFor struct {
	Location
	Variable   string
	Expression string
	Index      string
	Children   []SLNode
}

type SLPython struct {
	Location
	Code *Code
}

// SLUse includes another screen. Target is an expression when TargetExpr is
// set.
type SLUse struct {
	Location
	Target     string
	TargetExpr bool
	Args       *Args
	ID         string
	Block      *SLBlock
}

type SLDefault struct {
	Location
	Variable   string
	Expression string
}

type SLPass struct{ Location }

type SLBreak struct{ Location }

type SLContinue struct{ Location }

type SLTransclude struct{ Location }

// SLUnknown is a screen language record the builder does not recognize.
type SLUnknown struct {
	Location
	Tag string
}

// WalkSL calls fn for every screen statement under nodes, parents first.
func WalkSL(nodes []SLNode, fn func(SLNode)) {
	for _, n := range nodes {
		fn(n)
		switch n := n.(type) {
		case *SLDisplayable:
			WalkSL(n.Children, fn)
		case *SLIf:
			for _, arm := range n.Arms {
				WalkSL(arm.Block.Children, fn)
			}
		case *SLFor:
			WalkSL(n.Children, fn)
		case *SLUse:
			if n.Block != nil {
				WalkSL(n.Block.Children, fn)
			}
		}
	}
}

func (*SLDisplayable) slNode() {}
func (*SLIf) slNode()          {}
func (*SLFor) slNode()         {}
func (*SLPython) slNode()      {}
func (*SLUse) slNode()         {}
func (*SLDefault) slNode()     {}
func (*SLPass) slNode()        {}
func (*SLBreak) slNode()       {}
func (*SLContinue) slNode()    {}
func (*SLTransclude) slNode()  {}
func (*SLUnknown) slNode()     {}
