package schema

import "github.com/jiang0681/unrpyc/internal/pickle"

// Kind names the node variant a record tag builds.
type Kind string

const (
	Label           Kind = "Label"
	Jump            Kind = "Jump"
	Call            Kind = "Call"
	Return          Kind = "Return"
	Pass            Kind = "Pass"
	If              Kind = "If"
	While           Kind = "While"
	Say             Kind = "Say"
	Menu            Kind = "Menu"
	UserStatement   Kind = "UserStatement"
	Translate       Kind = "Translate"
	EndTranslate    Kind = "EndTranslate"
	TranslateString Kind = "TranslateString"
	TranslateBlock  Kind = "TranslateBlock"
	TranslateEarly  Kind = "TranslateEarlyBlock"
	Python          Kind = "Python"
	EarlyPython     Kind = "EarlyPython"
	Define          Kind = "Define"
	Default         Kind = "Default"
	Init            Kind = "Init"
	Show            Kind = "Show"
	Scene           Kind = "Scene"
	Hide            Kind = "Hide"
	With            Kind = "With"
	Image           Kind = "Image"
	Transform       Kind = "Transform"
	Style           Kind = "Style"
	ShowLayer       Kind = "ShowLayer"
	Camera          Kind = "Camera"
	RPY             Kind = "RPY"
	Screen          Kind = "Screen"
	Testcase        Kind = "Testcase"

	// Low-level records the compiler lowers structured statements into.
	LoweredLabel     Kind = "lowered.Label"
	LoweredJump      Kind = "lowered.Jump"
	CondJump         Kind = "lowered.CondJump"
	LoopJump         Kind = "lowered.LoopJump"
	LoweredMenu      Kind = "lowered.Menu"
	LoweredTranslate Kind = "lowered.Translate"

	// Value records that only appear inside statements.
	PyExpr        Kind = "PyExpr"
	PyCode        Kind = "PyCode"
	ParameterInfo Kind = "ParameterInfo"
	Signature     Kind = "Signature"
	Parameter     Kind = "Parameter"
	ArgumentInfo  Kind = "ArgumentInfo"
	ATL           Kind = "ATL"
	SLScreen      Kind = "SLScreen"
)

// IsStatement reports whether k is a statement rather than a value record.
func (k Kind) IsStatement() bool {
	switch k {
	case PyExpr, PyCode, ParameterInfo, Signature, Parameter, ArgumentInfo, ATL, SLScreen:
		return false
	}
	return k != ""
}

var statementTags = map[string]Kind{
	"Label":               Label,
	"Jump":                Jump,
	"Call":                Call,
	"Return":              Return,
	"Pass":                Pass,
	"If":                  If,
	"While":               While,
	"Say":                 Say,
	"Menu":                Menu,
	"UserStatement":       UserStatement,
	"Translate":           Translate,
	"EndTranslate":        EndTranslate,
	"TranslateString":     TranslateString,
	"TranslateBlock":      TranslateBlock,
	"TranslateEarlyBlock": TranslateEarly,
	"Python":              Python,
	"EarlyPython":         EarlyPython,
	"Define":              Define,
	"Default":             Default,
	"Init":                Init,
	"Show":                Show,
	"Scene":               Scene,
	"Hide":                Hide,
	"With":                With,
	"Image":               Image,
	"Transform":           Transform,
	"Style":               Style,
	"ShowLayer":           ShowLayer,
	"Camera":              Camera,
	"RPY":                 RPY,
	"Screen":              Screen,
	"Testcase":            Testcase,
}

var loweredTags = map[string]Kind{
	"Label":     LoweredLabel,
	"Jump":      LoweredJump,
	"CondJump":  CondJump,
	"LoopJump":  LoopJump,
	"Menu":      LoweredMenu,
	"Translate": LoweredTranslate,
}

// defaultValue produces a fresh value for an attribute missing from a record.
type defaultValue func() pickle.Value

func none() pickle.Value      { return nil }
func emptyList() pickle.Value { return &pickle.List{} }
func emptyDict() pickle.Value { return pickle.NewDict() }
func constant(v pickle.Value) defaultValue {
	return func() pickle.Value { return v }
}

// Attr is one defaulted attribute.
type Attr struct {
	Name    string
	Default defaultValue
}

// attributeDefaults lists the attributes newer engines stop pickling when they
// hold their class default.
var attributeDefaults = map[Kind][]Attr{
	Label:         {{"name", none}, {"parameters", none}, {"block", emptyList}},
	Say:           {{"who", none}, {"what", none}, {"with_", none}, {"interact", constant(true)}, {"attributes", none}, {"temporary_attributes", none}, {"rollback", none}},
	Menu:          {{"items", emptyList}, {"set", none}, {"with_", none}, {"rollback", none}},
	Show:          {{"imspec", none}, {"atl", none}, {"layer", none}, {"at_list", emptyList}, {"onlayer", none}, {"behind", emptyList}, {"zorder", none}, {"as_", none}},
	Hide:          {{"imspec", none}, {"atl", none}, {"layer", none}, {"onlayer", none}},
	Scene:         {{"imspec", none}, {"atl", none}, {"layer", none}, {"onlayer", none}},
	Camera:        {{"layer", constant("master")}, {"at_list", emptyList}, {"atl", none}},
	With:          {{"expr", none}, {"paired", none}},
	Jump:          {{"target", none}, {"expression", constant(false)}},
	Call:          {{"label", none}, {"arguments", none}, {"expression", constant(false)}, {"from_current", constant(false)}},
	Return:        {{"expression", none}},
	If:            {{"entries", emptyList}},
	While:         {{"condition", none}, {"block", emptyList}},
	Init:          {{"priority", constant(int64(0))}, {"block", emptyList}},
	Image:         {{"imgname", none}, {"code", none}, {"atl", none}},
	Transform:     {{"varname", none}, {"parameters", none}, {"code", none}, {"atl", none}},
	Python:        {{"code", none}, {"hide", constant(false)}, {"store", constant("store")}},
	EarlyPython:   {{"code", none}, {"hide", constant(false)}, {"store", constant("store")}},
	Define:        {{"varname", none}, {"code", none}, {"store", constant("store")}, {"operator", constant("=")}, {"index", none}},
	Default:       {{"varname", none}, {"code", none}, {"store", constant("store")}},
	Style:         {{"style_name", none}, {"parent", none}, {"properties", emptyDict}, {"clear", constant(false)}, {"take", none}, {"delattr", emptyList}, {"variant", none}},
	UserStatement: {{"line", none}, {"block", emptyList}, {"parsed", none}},
}

// Table is the record layout of one family.
type Table struct {
	Family Family
	kinds  map[pickle.Class]Kind
	// Renames maps a pickled attribute name to the name the builder reads.
	Renames map[Kind]map[string]string
	// Defaults fills attributes the engine omitted.
	Defaults map[Kind][]Attr
	// PyCodeArity lists the accepted PyCode state tuple lengths.
	PyCodeArity []int
	// ImSpecArity lists the accepted image specifier tuple lengths.
	ImSpecArity []int
}

var tables = map[Family]*Table{
	FamilyRenPy7: newTable(FamilyRenPy7),
	FamilyRenPy8: newTable(FamilyRenPy8),
}

// TableFor returns the shared, read-only table of f.
func TableFor(f Family) *Table {
	return tables[f]
}

func newTable(f Family) *Table {
	t := &Table{
		Family:      f,
		kinds:       make(map[pickle.Class]Kind),
		Renames:     make(map[Kind]map[string]string),
		Defaults:    attributeDefaults,
		PyCodeArity: []int{4, 5},
		ImSpecArity: []int{3, 6, 7},
	}
	for name, k := range statementTags {
		t.declare("renpy.ast", name, k)
	}
	for name, k := range loweredTags {
		t.declare("renpy.lowered", name, k)
	}
	t.declare("renpy.ast", "PyExpr", PyExpr)
	t.declare("renpy.ast", "PyCode", PyCode)
	t.declare("renpy.ast", "ParameterInfo", ParameterInfo)
	t.declare("renpy.ast", "ArgumentInfo", ArgumentInfo)
	t.declare("renpy.atl", "RawBlock", ATL)
	t.declare("renpy.sl2.slast", "SLScreen", SLScreen)

	if f == FamilyRenPy8 {
		// 8.x moved the expression classes and the parameter machinery out of
		// renpy.ast and added the hashed PyCode layout.
		t.declare("renpy.astsupport", "PyExpr", PyExpr)
		t.declare("renpy.astsupport", "PyCode", PyCode)
		t.declare("renpy.parameter", "Signature", Signature)
		t.declare("renpy.parameter", "Parameter", Parameter)
		t.declare("renpy.parameter", "ParameterInfo", ParameterInfo)
		t.declare("renpy.parameter", "ArgumentInfo", ArgumentInfo)
		t.PyCodeArity = []int{4, 5, 6}
		t.Renames[Label] = map[string]string{"_name": "name"}
	}
	return t
}

func (t *Table) declare(module, name string, k Kind) {
	t.kinds[pickle.Class{Module: module, Name: name}] = k
}

// KindOf maps a record's class to its node kind.
func (t *Table) KindOf(c *pickle.Class) (Kind, bool) {
	if c == nil {
		return "", false
	}
	k, ok := t.kinds[*c]
	return k, ok
}

// Tags lists every declared class.
func (t *Table) Tags() []pickle.Class {
	out := make([]pickle.Class, 0, len(t.kinds))
	for c := range t.kinds {
		out = append(out, c)
	}
	return out
}

// Kinds lists the distinct declared kinds.
func (t *Table) Kinds() []Kind {
	seen := make(map[Kind]bool)
	var out []Kind
	for _, k := range t.kinds {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// Registry returns a pickle class registry that knows every declared tag.
// Undeclared engine classes still load, as opaque objects.
func (t *Table) Registry() *pickle.Registry {
	r := pickle.NewRegistry()
	for c := range t.kinds {
		r.Register(c.Module, c.Name, pickle.KindObject)
	}
	r.RegisterModule("renpy.atl", pickle.KindObject)
	r.RegisterModule("renpy.sl2.slast", pickle.KindObject)
	r.Register("renpy.object", "Sentinel", pickle.KindObject)
	return r
}

// AcceptsPyCode reports whether n is a valid PyCode state length.
func (t *Table) AcceptsPyCode(n int) bool { return contains(t.PyCodeArity, n) }

// AcceptsImSpec reports whether n is a valid image specifier length.
func (t *Table) AcceptsImSpec(n int) bool { return contains(t.ImSpecArity, n) }

func contains(xs []int, n int) bool {
	for _, x := range xs {
		if x == n {
			return true
		}
	}
	return false
}
