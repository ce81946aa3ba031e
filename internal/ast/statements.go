package ast

import "github.com/jiang0681/unrpyc/internal/pickle"

// Say is a line of dialogue or narration.
type Say struct {
	Location
	Who            string
	What           string
	With           string
	Interact       bool
	Attributes     []string
	TempAttributes []string
	Identifier     string
	ExplicitID     bool
	Args           *Args
}

// LexLine is one line of a user statement's raw block.
type LexLine struct {
	File  string
	Line  int
	Text  string
	Block []LexLine
}

// UserStatement is a creator-defined statement kept as its source line.
type UserStatement struct {
	Location
	Line  string
	Block []LexLine
}

// TranslationBlock holds the statements of one translation identifier in one
// language.
type TranslationBlock struct {
	Location
	Identifier string
	Language   string
	Block      []Stmt
	// Lowered is set for the flat form whose statements still follow the
	// header up to an EndTranslate.
	Lowered bool
}

// EndTranslate terminates a translation block. It prints nothing.
type EndTranslate struct {
	Location
}

// TranslateString is one entry of a "translate LANG strings" block.
type TranslateString struct {
	Location
	Language string
	Old      string
	New      string
	NewLine  int
}

// TranslateLanguageBlock is "translate LANG python/style".
type TranslateLanguageBlock struct {
	Location
	Language string
	Block    []Stmt
	Early    bool
}

// Python is an embedded Python block, kept as opaque text.
type Python struct {
	Location
	Code  *Code
	Hide  bool
	Early bool
	Store string
}

// Define binds a constant at init time.
type Define struct {
	Location
	Varname  string
	Store    string
	Index    *Code
	Operator string
	Code     *Code
}

// Default declares a saved variable.
type Default struct {
	Location
	Varname string
	Store   string
	Code    *Code
}

// Init runs its block at init time with Priority.
type Init struct {
	Location
	Priority int
	Block    []Stmt
}

// Show displays an image.
type Show struct {
	Location
	ImSpec *ImSpec
	ATL    pickle.Value
}

// Scene clears a layer and optionally shows an image.
type Scene struct {
	Location
	ImSpec *ImSpec
	Layer  string
	ATL    pickle.Value
}

// Hide removes an image.
type Hide struct {
	Location
	ImSpec *ImSpec
}

// With runs a transition. A non-empty Paired marks the first half of a
// "show ... with" pair.
type With struct {
	Location
	Expr   string
	Paired string
}

// Image defines an image from an expression or an ATL block.
type Image struct {
	Location
	Name []string
	Code *Code
	ATL  pickle.Value
}

// Transform defines an ATL transform.
type Transform struct {
	Location
	Varname string
	Params  *Params
	ATL     pickle.Value
}

// StyleProp is one style property with its own line.
type StyleProp struct {
	Name  string
	Value *Expr
}

// Style defines or changes a style.
type Style struct {
	Location
	Name       string
	Parent     string
	Clear      bool
	Take       string
	Delattr    []string
	Variant    *Expr
	Properties []StyleProp
}

// ShowLayer applies transforms to a layer.
type ShowLayer struct {
	Location
	Layer  string
	AtList []string
	ATL    pickle.Value
}

// Camera applies transforms to the camera of a layer.
type Camera struct {
	Location
	Layer  string
	AtList []string
	ATL    pickle.Value
}

// RPY is an "rpy python" directive.
type RPY struct {
	Location
	Rest string
}

// Screen is a screen language definition. Body carries the screen's own
// properties and its children; Tag is kept apart because the engine strips
// it from the property list.
type Screen struct {
	Location
	Name   string
	Params *Params
	Tag    string
	Body   SLBlock
	Raw    pickle.Value
}

// Testcase is a test script. Only its label is recovered.
type Testcase struct {
	Location
	Label string
	Raw   pickle.Value
}

func (*Say) stmtNode()                    {}
func (*UserStatement) stmtNode()          {}
func (*TranslationBlock) stmtNode()       {}
func (*EndTranslate) stmtNode()           {}
func (*TranslateString) stmtNode()        {}
func (*TranslateLanguageBlock) stmtNode() {}
func (*Python) stmtNode()                 {}
func (*Define) stmtNode()                 {}
func (*Default) stmtNode()                {}
func (*Init) stmtNode()                   {}
func (*Show) stmtNode()                   {}
func (*Scene) stmtNode()                  {}
func (*Hide) stmtNode()                   {}
func (*With) stmtNode()                   {}
func (*Image) stmtNode()                  {}
func (*Transform) stmtNode()              {}
func (*Style) stmtNode()                  {}
func (*ShowLayer) stmtNode()              {}
func (*Camera) stmtNode()                 {}
func (*RPY) stmtNode()                    {}
func (*Screen) stmtNode()                 {}
func (*Testcase) stmtNode()               {}
