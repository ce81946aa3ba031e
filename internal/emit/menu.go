package emit

import (
	"strings"

	"github.com/jiang0681/unrpyc/internal/ast"
)

// sayGetCode renders a say statement. Inside a menu the nointeract flag is
// implied.
func sayGetCode(n *ast.Say, inMenu bool) string {
	var words []string
	if n.Who != "" {
		words = append(words, n.Who)
	}
	words = append(words, n.Attributes...)
	if n.TempAttributes != nil {
		words = append(words, "@")
		words = append(words, n.TempAttributes...)
	}
	words = append(words, encodeSay(n.What))
	if !n.Interact && !inMenu {
		words = append(words, "nointeract")
	}
	if n.ExplicitID && n.Identifier != "" {
		words = append(words, "id", n.Identifier)
	}
	if n.Args != nil {
		words = append(words, formatArgs(n.Args))
	}
	if n.With != "" {
		words = append(words, "with", n.With)
	}
	return strings.Join(words, " ")
}

// sayBelongsToMenu reports whether say is the prompt shown by the menu that
// follows it.
func (p *printer) sayBelongsToMenu(say *ast.Say, next ast.Stmt) bool {
	m, ok := next.(*ast.Menu)
	return ok && !say.Interact && say.Who != "" && say.With == "" && say.Attributes == nil &&
		len(m.Choices) > 0 && !m.Choices[0].IsCaption && !comesBefore(say, m)
}

func (p *printer) printSay(n *ast.Say, inMenu bool) {
	// A menu prompt is printed by the menu.
	if !inMenu && p.sayBelongsToMenu(n, p.sibling(1)) {
		p.sayInsideMenu = n
		return
	}
	p.indent()
	p.write(sayGetCode(n, inMenu))
}

func (p *printer) printSayInsideMenu() {
	say := p.sayInsideMenu
	p.sayInsideMenu = nil
	p.printSay(say, true)
}

func (p *printer) printMenu(n *ast.Menu) {
	p.indent()
	p.write("menu")
	if p.labelInsideMenu != nil {
		p.write(" " + p.labelInsideMenu.Name)
		p.labelInsideMenu = nil
	}
	if n.Args != nil {
		p.write(formatArgs(n.Args))
	}
	p.write(":")

	p.level++
	if n.With != "" {
		p.indent()
		p.write("with " + n.With)
	}
	if n.Set != "" {
		p.indent()
		p.write("set " + n.Set)
	}

	for _, c := range n.Choices {
		caption := p.opts.Translator.String(c.Caption)

		var saved *snapshot
		switch {
		case c.Cond != nil && !c.Cond.Plain:
			// The condition knows the choice's line, so the prompt goes
			// first only if there is room for it.
			if p.sayInsideMenu != nil && c.Cond.Line > p.line+1 {
				p.printSayInsideMenu()
			}
			p.advanceToLine(c.Cond.Line)
		case p.sayInsideMenu != nil:
			// Try the prompt here and undo it if that pushes the choice
			// past its line.
			s := p.save()
			saved = &s
			p.mostBehind = p.lastBehind
			p.printSayInsideMenu()
		}

		p.printMenuItem(caption, c)

		if saved != nil {
			if p.mostBehind > saved.lastBehind {
				p.rollback(*saved)
				p.printMenuItem(caption, c)
			} else {
				p.mostBehind = max(saved.mostBehind, p.mostBehind)
				p.commit(*saved)
			}
		}
	}

	// No room before any choice: the prompt goes last.
	if p.sayInsideMenu != nil {
		p.printSayInsideMenu()
	}
	p.level--
}

func (p *printer) printMenuItem(caption string, c *ast.MenuChoice) {
	p.indent()
	p.write(`"` + escapeString(caption) + `"`)
	if c.Args != nil {
		p.write(formatArgs(c.Args))
	}
	if c.IsCaption {
		return
	}
	if c.Cond != nil && !c.Cond.Plain {
		p.write(" if " + c.Cond.Source)
	}
	p.write(":")
	if c.Target != "" {
		p.level++
		p.indent()
		p.write("jump " + c.Target)
		p.level--
		return
	}
	p.printNodes(c.Block, 1)
}
