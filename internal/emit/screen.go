package emit

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jiang0681/unrpyc/internal/ast"
	"github.com/jiang0681/unrpyc/internal/pickle"
	"github.com/jiang0681/unrpyc/internal/pysrc"
)

// ChildrenMany marks a displayable that takes any number of children.
const ChildrenMany = -1

// Displayable is the statement name printed for a displayable and how many
// children it accepts: 0, 1 or ChildrenMany.
type Displayable struct {
	Name     string
	Children int
}

type displayableKey struct {
	class string
	style string
}

// displayables maps the callable and default style the engine records for a
// screen statement back to the statement's name.
var displayables = map[displayableKey]Displayable{
	{"renpy.display.behavior.AreaPicker", "default"}:      {"areapicker", 1},
	{"renpy.display.behavior.Button", "button"}:           {"button", 1},
	{"renpy.display.behavior.DismissBehavior", "default"}: {"dismiss", 0},
	{"renpy.display.behavior.Input", "input"}:             {"input", 0},
	{"renpy.display.behavior.MouseArea", "0"}:             {"mousearea", 0},
	{"renpy.display.behavior.MouseArea", ""}:              {"mousearea", 0},
	{"renpy.display.behavior.OnEvent", "0"}:               {"on", 0},
	{"renpy.display.behavior.OnEvent", ""}:                {"on", 0},
	{"renpy.display.behavior.Timer", "default"}:           {"timer", 0},
	{"renpy.display.dragdrop.Drag", "drag"}:               {"drag", 1},
	{"renpy.display.dragdrop.Drag", ""}:                   {"drag", 1},
	{"renpy.display.dragdrop.DragGroup", ""}:              {"draggroup", ChildrenMany},
	{"renpy.display.im.image", "default"}:                 {"image", 0},
	{"renpy.display.layout.Grid", "grid"}:                 {"grid", ChildrenMany},
	{"renpy.display.layout.MultiBox", "fixed"}:            {"fixed", ChildrenMany},
	{"renpy.display.layout.MultiBox", "hbox"}:             {"hbox", ChildrenMany},
	{"renpy.display.layout.MultiBox", "vbox"}:             {"vbox", ChildrenMany},
	{"renpy.display.layout.NearRect", "default"}:          {"nearrect", 1},
	{"renpy.display.layout.Null", "default"}:              {"null", 0},
	{"renpy.display.layout.Side", "side"}:                 {"side", ChildrenMany},
	{"renpy.display.layout.Window", "frame"}:              {"frame", 1},
	{"renpy.display.layout.Window", "window"}:             {"window", 1},
	{"renpy.display.motion.Transform", "transform"}:       {"transform", 1},
	{"renpy.display.transform.Transform", "transform"}:    {"transform", 1},
	{"renpy.sl2.sldisplayables.sl2add", ""}:               {"add", 0},
	{"renpy.sl2.sldisplayables.sl2bar", ""}:               {"bar", 0},
	{"renpy.sl2.sldisplayables.sl2vbar", ""}:              {"vbar", 0},
	{"renpy.sl2.sldisplayables.sl2viewport", "viewport"}:  {"viewport", 1},
	{"renpy.sl2.sldisplayables.sl2vpgrid", "vpgrid"}:      {"vpgrid", ChildrenMany},
	{"renpy.text.text.Text", "text"}:                      {"text", 0},
	{"renpy.ui._add", ""}:                                 {"add", 0},
	{"renpy.ui._hotbar", "hotbar"}:                        {"hotbar", 0},
	{"renpy.ui._hotspot", "hotspot"}:                      {"hotspot", 1},
	{"renpy.ui._imagebutton", "image_button"}:             {"imagebutton", 0},
	{"renpy.ui._imagemap", "imagemap"}:                    {"imagemap", ChildrenMany},
	{"renpy.ui._key", ""}:                                 {"key", 0},
	{"renpy.ui._label", "label"}:                          {"label", 0},
	{"renpy.ui._textbutton", "button"}:                    {"textbutton", 0},
	{"renpy.ui._textbutton", "0"}:                         {"textbutton", 0},
}

// ParseDisplayable reads a "classname=name[-children]" registration of a
// user defined displayable, children being 0, 1 or many (the default).
func ParseDisplayable(arg string) (string, Displayable, error) {
	class, rest, ok := strings.Cut(arg, "=")
	if !ok || class == "" || rest == "" || strings.Contains(rest, "=") {
		return "", Displayable{}, fmt.Errorf("malformed displayable registration %q", arg)
	}
	d := Displayable{Name: rest, Children: ChildrenMany}
	if name, amount, ok := strings.Cut(rest, "-"); ok {
		d.Name = name
		switch amount {
		case "0":
			d.Children = 0
		case "1":
			d.Children = 1
		case "many":
		default:
			return "", Displayable{}, fmt.Errorf("bad child count in displayable registration %q", arg)
		}
		if name == "" || strings.Contains(amount, "-") {
			return "", Displayable{}, fmt.Errorf("malformed displayable registration %q", arg)
		}
	}
	return class, d, nil
}

// ResolveDisplayable names a displayable from the callable and default style
// the engine recorded, then from the user registrations in custom, keyed by
// class name. When neither knows it, ok is false and the name is the style,
// which usually matches the name a user displayable was registered under.
func ResolveDisplayable(class *pickle.Class, style string, custom map[string]Displayable) (d Displayable, ok bool) {
	if class != nil {
		if d, ok := displayables[displayableKey{class.Module + "." + class.Name, style}]; ok {
			return d, true
		}
		if d, ok := custom[class.Name]; ok {
			return d, true
		}
	}
	name := style
	if name == "" && class != nil {
		name = class.Name
	}
	return Displayable{Name: name, Children: ChildrenMany}, false
}

func (p *printer) displayable(n *ast.SLDisplayable) Displayable {
	d, _ := ResolveDisplayable(n.Displayable, n.Style, p.opts.Displayables)
	return d
}

func (p *printer) printScreen(n *ast.Screen) {
	p.requireInit()
	if n.Raw != nil {
		p.comment("screen " + n.Name + " is not decompiled")
		return
	}
	p.indent()
	p.write("screen " + n.Name + formatParams(n.Params))

	first, rest := slLines(&n.Body, n.Tag, "", false, false)
	p.printSLLine(first, true, len(rest) > 0)
	p.level++
	for _, l := range rest {
		p.printSLLine(l, false, false)
	}
	p.level--
}

func (p *printer) printSLNodes(nodes []ast.SLNode, extraIndent int) {
	p.level += extraIndent
	for _, n := range nodes {
		p.printSL(n)
	}
	p.level -= extraIndent
}

func (p *printer) printSL(n ast.SLNode) {
	p.advanceToLine(n.Loc().Line)
	switch n := n.(type) {
	case *ast.SLDisplayable:
		p.printSLDisplayable(n, false)
	case *ast.SLIf:
		p.printSLIf(n)
	case *ast.SLFor:
		p.printSLFor(n)
	case *ast.SLPython:
		p.printSLPython(n)
	case *ast.SLUse:
		p.printSLUse(n)
	case *ast.SLDefault:
		p.indent()
		p.write("default " + n.Variable + " = " + n.Expression)
	case *ast.SLPass:
		p.indent()
		p.write("pass")
	case *ast.SLBreak:
		p.indent()
		p.write("break")
	case *ast.SLContinue:
		p.indent()
		p.write("continue")
	case *ast.SLTransclude:
		p.indent()
		p.write("transclude")
	case *ast.SLUnknown:
		if p.opts.UnknownComments {
			p.comment("unknown screen statement " + n.Tag)
		}
	}
}

func (p *printer) printSLIf(n *ast.SLIf) {
	keyword := "if"
	if n.ShowIf {
		keyword = "showif"
	}
	for i, arm := range n.Arms {
		p.advanceToLine(arm.Block.Line)
		p.indent()
		switch {
		case arm.Cond == nil:
			p.write("else")
		case i == 0:
			p.write(keyword + " " + arm.Cond.Source)
		default:
			p.write("elif " + arm.Cond.Source)
		}
		p.printSLBlock(&arm.Block, true)
	}
}

// printSLBlock prints the properties and children of b after a statement
// head. With immediate set the head always opens a block.
func (p *printer) printSLBlock(b *ast.SLBlock, immediate bool) {
	first, rest := slLines(b, "", "", immediate, false)
	p.printSLLine(first, true, immediate || len(rest) > 0)
	p.level++
	switch {
	case len(rest) > 0:
		for _, l := range rest {
			p.printSLLine(l, false, false)
		}
	case immediate:
		p.indent()
		p.write("pass")
	}
	p.level--
}

// tupleTarget is the loop variable the engine substitutes when a for loop
// unpacks into a pattern. The pattern is assigned by a python statement that
// opens the loop body.
const tupleTarget = "_sl2_i"

func (p *printer) printSLFor(n *ast.SLFor) {
	variable, children := strings.TrimSpace(n.Variable), n.Children
	if variable == tupleTarget && len(children) > 0 {
		if py, ok := children[0].(*ast.SLPython); ok && py.Code != nil {
			variable = strings.TrimSpace(strings.TrimSuffix(py.Code.Source, "= "+tupleTarget))
			children = children[1:]
		}
	}
	p.indent()
	if n.Index != "" {
		p.write(fmt.Sprintf("for %s index %s in %s:", variable, n.Index, n.Expression))
	} else {
		p.write(fmt.Sprintf("for %s in %s:", variable, n.Expression))
	}
	p.printSLNodes(children, 1)
}

func (p *printer) printSLPython(n *ast.SLPython) {
	p.indent()
	code := ""
	if n.Code != nil {
		code = n.Code.Source
	}
	if !strings.HasPrefix(code, "\n") {
		p.write("$ " + code)
		return
	}
	p.write("python:")
	p.level++
	p.writeLines(pysrc.Lines(code[1:]))
	p.level--
}

func (p *printer) printSLUse(n *ast.SLUse) {
	p.indent()
	p.write("use ")
	args := formatArgs(n.Args)
	if n.TargetExpr {
		p.write("expression " + n.Target)
		if args != "" {
			p.write(" pass ")
		}
	} else {
		p.write(n.Target)
	}
	p.write(args)
	if n.ID != "" {
		p.write(" id " + n.ID)
	}
	if n.Block != nil {
		p.printSLBlock(n.Block, false)
	}
}

// printSLDisplayable prints a displayable. inHas is set for the child of a
// "has" line, whose own children continue at the same level.
func (p *printer) printSLDisplayable(n *ast.SLDisplayable, inHas bool) {
	d := p.displayable(n)
	p.indent()
	p.write(d.Name)
	if len(n.Positional) > 0 {
		p.write(" " + strings.Join(n.Positional, " "))
	}

	if child, ok := p.hasChild(n, d, inHas); ok {
		first, rest := slLines(&n.SLBlock, "", n.Variable, false, true)
		p.printSLLine(first, true, true)
		p.level++
		for _, l := range rest {
			p.printSLLine(l, false, false)
		}
		p.advanceToLine(child.Line)
		p.indent()
		p.write("has ")
		p.skipIndent = true
		p.printSLDisplayable(child, true)
		p.level--
		return
	}

	first, rest := slLines(&n.SLBlock, "", n.Variable, false, false)
	if inHas {
		p.printSLLine(first, true, false)
		for _, l := range rest {
			p.printSLLine(l, false, false)
		}
		return
	}
	p.printSLLine(first, true, len(rest) > 0)
	p.level++
	for _, l := range rest {
		p.printSLLine(l, false, false)
	}
	p.level--
}

// hasChild reports whether n can print its only child with a "has" line:
// the child is itself a displayable with children and comes after every
// property of n.
func (p *printer) hasChild(n *ast.SLDisplayable, d Displayable, inHas bool) (*ast.SLDisplayable, bool) {
	if inHas || d.Children != 1 || len(n.Children) != 1 {
		return nil, false
	}
	child, ok := n.Children[0].(*ast.SLDisplayable)
	if !ok || len(child.Children) == 0 {
		return nil, false
	}
	if k := len(n.Keywords); k > 0 && n.Keywords[k-1].Value != nil && child.Line <= n.Keywords[k-1].Value.Line {
		return nil, false
	}
	if n.ATL != nil && child.Line <= n.ATLLine {
		return nil, false
	}
	return child, true
}

type slLineKind int

const (
	slChild slLineKind = iota
	slKeywords
	slKeywordsATL
	slKeywordsBroken
)

// slLine is one output line of a block: a child statement, or a run of
// properties that may end with an "at transform:" block or a property
// missing its value.
type slLine struct {
	line   int
	kind   slLineKind
	words  [][2]string
	child  ast.SLNode
	broken string
	atl    pickle.Value
}

type slItem struct {
	line  int
	kind  slLineKind
	word  [2]string
	child ast.SLNode
	atl   pickle.Value
}

// slLines orders the properties and children of b by line and groups
// properties sharing a line. The first line returned goes on the statement
// head; it is empty when nothing belongs there. tag and as are properties
// without line information, placed on the first line that can take them.
func slLines(b *ast.SLBlock, tag, as string, immediate, ignoreChildren bool) (slLine, []slLine) {
	blockLine := b.Line
	startLine := blockLine
	if immediate {
		startLine++
	}

	var keywords, children []slItem
	for _, k := range b.Keywords {
		if k.Value == nil {
			keywords = append(keywords, slItem{kind: slKeywordsBroken, word: [2]string{k.Name}})
			continue
		}
		keywords = append(keywords, slItem{line: k.Value.Line, kind: slKeywords, word: [2]string{k.Name, k.Value.Source}})
	}
	if !ignoreChildren {
		for _, c := range b.Children {
			children = append(children, slItem{line: c.Loc().Line, kind: slChild, child: c})
		}
	}

	// Properties and children are each in source order already.
	var items []slItem
	for len(keywords) > 0 && len(children) > 0 {
		if keywords[0].kind == slKeywordsBroken || keywords[0].line < children[0].line {
			items, keywords = append(items, keywords[0]), keywords[1:]
		} else {
			items, children = append(items, children[0]), children[1:]
		}
	}
	items = append(append(items, keywords...), children...)

	if b.ATL != nil {
		at := len(items)
		for i, it := range items {
			if it.kind != slKeywordsBroken && b.ATLLine < it.line {
				at = i
				break
			}
		}
		items = slices.Insert(items, at, slItem{line: b.ATLLine, kind: slKeywordsATL, atl: b.ATL})
	}

	var lines []slLine
	var cur *slLine
	flush := func() {
		if cur != nil {
			lines = append(lines, *cur)
			cur = nil
		}
	}
	for _, it := range items {
		switch it.kind {
		case slChild:
			flush()
			lines = append(lines, slLine{line: it.line, kind: slChild, child: it.child})
		case slKeywords:
			if cur != nil && cur.line == it.line {
				cur.words = append(cur.words, it.word)
				continue
			}
			flush()
			cur = &slLine{line: it.line, kind: slKeywords, words: [][2]string{it.word}}
		case slKeywordsBroken:
			l := slLine{kind: slKeywordsBroken, broken: it.word[0]}
			if cur != nil {
				l.line, l.words = cur.line, cur.words
				cur = nil
			}
			lines = append(lines, l)
		case slKeywordsATL:
			l := slLine{line: it.line, kind: slKeywordsATL, atl: it.atl}
			if cur != nil && cur.line == it.line {
				l.words = cur.words
				cur = nil
			}
			flush()
			lines = append(lines, l)
		}
	}
	flush()

	// A property without a value has no line of its own.
	for i := range lines {
		if lines[i].kind == slKeywordsBroken && lines[i].line == 0 {
			if i > 0 {
				lines[i].line = lines[i-1].line + 1
			} else {
				lines[i].line = startLine
			}
		}
	}

	if tag != "" {
		lines = placeKeyword(lines, [2]string{"tag", tag}, blockLine, blockLine+1)
	}
	if as != "" {
		lines = placeKeyword(lines, [2]string{"as", as}, blockLine, startLine)
	}

	if immediate || len(lines) == 0 || lines[0].line != blockLine {
		lines = slices.Insert(lines, 0, slLine{line: blockLine, kind: slKeywords})
	}
	return lines[0], lines[1:]
}

// placeKeyword puts a property that has no line of its own on a free line
// right after the head, or else on the first property line.
func placeKeyword(lines []slLine, word [2]string, blockLine, fallback int) []slLine {
	own := slLine{line: fallback, kind: slKeywords, words: [][2]string{word}}
	switch {
	case len(lines) == 0:
		return append(lines, own)
	case lines[0].line > blockLine+1:
		own.line = blockLine + 1
		return slices.Insert(lines, 0, own)
	case lines[0].line > fallback:
		return slices.Insert(lines, 0, own)
	}
	for i := range lines {
		if lines[i].kind != slChild {
			lines[i].words = append(lines[i].words, word)
			return lines
		}
	}
	return slices.Insert(lines, 0, own)
}

// printSLLine prints l. On the first line the properties follow the head,
// and hasBlock ends it with a colon.
func (p *printer) printSLLine(l slLine, first, hasBlock bool) {
	if l.kind == slChild {
		p.printSL(l.child)
		return
	}
	sep := ""
	if first {
		sep = " "
	}
	next := func() string {
		s := sep
		sep = " "
		return s
	}

	if !first {
		p.advanceToLine(l.line)
		p.indent()
	}
	for _, w := range l.words {
		p.write(next() + w[0] + " " + w[1])
	}
	switch l.kind {
	case slKeywordsATL:
		p.write(next() + "at transform")
		p.printATL(l.atl)
		return
	case slKeywordsBroken:
		p.write(next() + l.broken)
	}
	if first && hasBlock {
		p.write(":")
	}
}
