package emit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jiang0681/unrpyc/internal/ast"
	"github.com/jiang0681/unrpyc/internal/pysrc"
)

func (p *printer) printLabel(n *ast.Label) {
	// A label right after a call is printed as the call's "from" clause.
	if _, ok := p.sibling(-1).(*ast.Call); ok {
		return
	}

	// An empty label on the same line as a menu is the menu's name.
	if len(n.Block) == 0 && n.Params == nil {
		if m, ok := p.sibling(1).(*ast.Menu); ok && m.Line == n.Line {
			p.labelInsideMenu = n
			return
		}
		if say, ok := p.sibling(1).(*ast.Say); ok {
			if m, ok := p.sibling(2).(*ast.Menu); ok && m.Line == n.Line && p.sayBelongsToMenu(say, m) {
				p.labelInsideMenu = n
				return
			}
		}
	}

	p.advanceToLine(n.Line)
	p.indent()

	// Whether this is an "init label" is only known once the body has been
	// printed, so the body goes to a side buffer first.
	out := p.out
	p.out = &strings.Builder{}
	missing := p.missingInit
	p.missingInit = false

	hide := ""
	if n.Hide {
		hide = " hide"
	}
	p.write("label " + n.Name + formatParams(n.Params) + hide + ":")
	p.printNodes(n.Block, 1)

	if p.missingInit {
		out.WriteString("init ")
	}
	p.missingInit = missing
	out.WriteString(p.out.String())
	p.out = out
}

func (p *printer) printJump(n *ast.Jump) {
	p.indent()
	if n.Expression {
		p.write("jump expression " + n.Target)
		return
	}
	p.write("jump " + n.Target)
}

func (p *printer) printCall(n *ast.Call) {
	p.indent()
	words := []string{"call"}
	if n.Expression {
		words = append(words, "expression")
	}
	words = append(words, n.Label)
	if n.Args != nil {
		if n.Expression {
			words = append(words, "pass")
		}
		words = append(words, formatArgs(n.Args))
	}
	if l, ok := p.sibling(1).(*ast.Label); ok {
		words = append(words, "from "+l.Name)
	}
	s, _ := joinWords(false, words...)
	p.write(s)
}

func (p *printer) printReturn(n *ast.Return) {
	// The compiler appends a bare return to every file.
	if n.Expr == nil && p.parent() == nil && p.index() > 0 && p.index()+1 == len(p.block()) &&
		n.Line == p.sibling(-1).Loc().Line {
		return
	}
	p.advanceToLine(n.Line)
	p.indent()
	p.write("return")
	if n.Expr != nil {
		p.write(" " + n.Expr.Source)
	}
}

func (p *printer) printPass(n *ast.Pass) {
	if _, ok := p.sibling(-1).(*ast.Call); ok {
		return
	}
	if c, ok := p.sibling(-2).(*ast.Call); ok && c.Line == n.Line {
		if _, ok := p.sibling(-1).(*ast.Label); ok {
			return
		}
	}
	p.advanceToLine(n.Line)
	p.indent()
	p.write("pass")
}

func (p *printer) printIf(n *ast.If) {
	for i, arm := range n.Arms {
		keyword := "elif"
		if i == 0 {
			keyword = "if"
		}
		if arm.Cond != nil && !arm.Cond.Plain {
			p.advanceToLine(arm.Cond.Line)
		}
		p.indent()
		p.write(keyword + " " + arm.Cond.String() + ":")
		if len(arm.Block) > 0 {
			p.printNodes(arm.Block, 1)
		}
	}
	if n.Else != nil {
		p.indent()
		p.write("else:")
		if len(n.Else) > 0 {
			p.printNodes(n.Else, 1)
		}
	}
}

func (p *printer) printWhile(n *ast.While) {
	p.indent()
	p.write("while " + n.Cond.String() + ":")
	p.printNodes(n.Block, 1)
}

// printHeader prints a lowered test the reconstructor could not fold.
func (p *printer) printHeader(cond *ast.Expr, target string) {
	p.indent()
	p.write("if not (" + cond.String() + "):")
	p.level++
	p.indent()
	p.write("jump " + target)
	p.level--
}

func (p *printer) printPython(n *ast.Python) {
	p.indent()
	code := n.Code.Source
	if !strings.HasPrefix(code, "\n") {
		p.write("$ " + code)
		return
	}

	p.write("python")
	if n.Early {
		p.write(" early")
	}
	if n.Hide {
		p.write(" hide")
	}
	if prefix := storePrefix(n.Store); prefix != "" {
		p.write(" in " + strings.TrimSuffix(prefix, "."))
	}
	p.write(":")

	p.level++
	p.writeLines(pysrc.Lines(code[1:]))
	p.level--
}

// implicitPriority returns the " N" priority a definition prints when it is
// the single statement of an implicit init block with a non-default priority.
func (p *printer) implicitPriority(s ast.Stmt) string {
	init, ok := p.parent().(*ast.Init)
	if !ok || init.Priority == p.initOffset || len(init.Block) != 1 || init.Line < s.Loc().Line {
		return ""
	}
	return fmt.Sprintf(" %d", init.Priority-p.initOffset)
}

func (p *printer) printDefine(n *ast.Define) {
	p.requireInit()
	p.indent()
	index := ""
	if n.Index != nil {
		index = "[" + n.Index.Source + "]"
	}
	op := n.Operator
	if op == "" {
		op = "="
	}
	p.write(fmt.Sprintf("define%s %s%s%s %s %s",
		p.implicitPriority(n), storePrefix(n.Store), n.Varname, index, op, n.Code.Source))
}

func (p *printer) printDefault(n *ast.Default) {
	p.requireInit()
	p.indent()
	p.write(fmt.Sprintf("default%s %s%s = %s",
		p.implicitPriority(n), storePrefix(n.Store), n.Varname, n.Code.Source))
}

func (p *printer) printUserStatement(n *ast.UserStatement) {
	p.indent()
	p.write(n.Line)
	if len(n.Block) > 0 {
		p.level++
		p.printLex(n.Block)
		p.level--
	}
}

func (p *printer) printLex(lines []ast.LexLine) {
	for _, l := range lines {
		p.advanceToLine(l.Line)
		p.indent()
		p.write(l.Text)
		if len(l.Block) > 0 {
			p.level++
			p.printLex(l.Block)
			p.level--
		}
	}
}

func (p *printer) printStyle(n *ast.Style) {
	p.requireInit()

	// Keywords without a line of their own go on the first line.
	keywords := map[int][]string{n.Line: nil}
	if n.Parent != "" {
		keywords[n.Line] = append(keywords[n.Line], "is "+n.Parent)
	}
	if n.Clear {
		keywords[n.Line] = append(keywords[n.Line], "clear")
	}
	if n.Take != "" {
		keywords[n.Line] = append(keywords[n.Line], "take "+n.Take)
	}
	for _, d := range n.Delattr {
		keywords[n.Line] = append(keywords[n.Line], "del "+d)
	}
	if n.Variant != nil {
		keywords[n.Variant.Line] = append(keywords[n.Variant.Line], "variant "+n.Variant.Source)
	}
	for _, prop := range n.Properties {
		if prop.Value == nil {
			continue
		}
		keywords[prop.Value.Line] = append(keywords[prop.Value.Line], prop.Name+" "+prop.Value.Source)
	}

	lines := make([]int, 0, len(keywords))
	for l := range keywords {
		lines = append(lines, l)
	}
	sort.Ints(lines)

	p.indent()
	p.write("style " + n.Name)
	if first, _ := joinWords(false, keywords[lines[0]]...); first != "" {
		p.write(" " + first)
	}
	if len(lines) > 1 {
		p.write(":")
		p.level++
		for _, l := range lines[1:] {
			text, _ := joinWords(false, keywords[l]...)
			p.advanceToLine(l)
			p.indent()
			p.write(text)
		}
		p.level--
	}
}

func languageName(lang string) string {
	if lang == "" {
		return "None"
	}
	return lang
}

func (p *printer) printTranslate(n *ast.TranslationBlock) {
	p.indent()
	p.write("translate " + languageName(n.Language) + " " + n.Identifier + ":")
	p.printNodes(n.Block, 1)
}

func (p *printer) printTranslateString(n *ast.TranslateString) {
	p.requireInit()
	if prev, ok := p.sibling(-1).(*ast.TranslateString); !ok || prev.Language != n.Language {
		p.indent()
		p.write("translate " + languageName(n.Language) + " strings:")
	}

	// The statement's line is the "old" line, not the header.
	p.level++
	p.advanceToLine(n.Line)
	p.indent()
	p.write(`old "` + escapeString(n.Old) + `"`)
	if n.NewLine > 0 {
		p.advanceToLine(n.NewLine)
	}
	p.indent()
	p.write(`new "` + escapeString(n.New) + `"`)
	p.level--
}

func (p *printer) printTranslateLanguageBlock(n *ast.TranslateLanguageBlock) {
	p.indent()
	p.write("translate " + languageName(n.Language) + " ")
	p.skipIndent = true

	// "translate LANG python" and "translate LANG style" run at init time.
	inInit := p.inInit
	if len(n.Block) == 1 {
		switch n.Block[0].(type) {
		case *ast.Python, *ast.Style:
			p.inInit = true
		}
	}
	p.printNodes(n.Block, 0)
	p.inInit = inInit
}
