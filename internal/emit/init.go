package emit

import (
	"fmt"
	"strings"

	"github.com/jiang0681/unrpyc/internal/ast"
)

func (p *printer) requireInit() {
	if !p.inInit {
		p.missingInit = true
	}
}

// comesBefore reports whether a starts on an earlier line than b.
func comesBefore(a, b ast.Node) bool {
	return a.Loc().Line < b.Loc().Line
}

// implicitInit reports whether n is the init block the engine wraps around a
// single definition, which prints as just that definition.
func (p *printer) implicitInit(n *ast.Init) bool {
	if len(n.Block) != 1 || comesBefore(n, n.Block[0]) {
		return false
	}
	off := p.initOffset
	switch c := n.Block[0].(type) {
	case *ast.Define, *ast.Default, *ast.Transform:
		return true
	case *ast.Screen:
		return n.Priority == -500+off
	case *ast.Style:
		return n.Priority == off
	case *ast.Testcase:
		return n.Priority == 500+off
	case *ast.UserStatement:
		return n.Priority == off && strings.HasPrefix(c.Line, "layeredimage ")
	case *ast.Image:
		return n.Priority == 500+off
	}
	return false
}

// stringsOnly reports whether n holds the translate strings of one language
// at the default priority.
func (p *printer) stringsOnly(n *ast.Init) bool {
	if len(n.Block) == 0 || n.Priority != p.initOffset {
		return false
	}
	first, ok := n.Block[0].(*ast.TranslateString)
	if !ok {
		return false
	}
	for _, s := range n.Block[1:] {
		ts, ok := s.(*ast.TranslateString)
		if !ok || ts.Language != first.Language {
			return false
		}
	}
	return true
}

func (p *printer) printInit(n *ast.Init) {
	inInit := p.inInit
	p.inInit = true
	defer func() { p.inInit = inInit }()

	if p.implicitInit(n) || p.stringsOnly(n) {
		p.printNodes(n.Block, 0)
		return
	}

	p.indent()
	p.write("init")
	if n.Priority != p.initOffset {
		p.write(fmt.Sprintf(" %d", n.Priority-p.initOffset))
	}
	if len(n.Block) == 1 && !comesBefore(n, n.Block[0]) {
		p.write(" ")
		p.skipIndent = true
		p.printNodes(n.Block, 0)
		return
	}
	p.write(":")
	p.printNodes(n.Block, 1)
}

// setBestInitOffset picks the init offset that lets the most top level init
// blocks print without an explicit priority.
func (p *printer) setBestInitOffset(stmts []ast.Stmt) {
	votes := make(map[int]int)
	var order []int
	for _, s := range stmts {
		n, ok := s.(*ast.Init)
		if !ok {
			continue
		}
		offset := n.Priority
		if len(n.Block) == 1 && !comesBefore(n, n.Block[0]) {
			switch n.Block[0].(type) {
			case *ast.Screen:
				offset += 500
			case *ast.Testcase, *ast.Image:
				offset -= 500
			}
		}
		if _, seen := votes[offset]; !seen {
			order = append(order, offset)
		}
		votes[offset]++
	}
	if len(order) == 0 {
		return
	}
	winner := order[0]
	for _, o := range order[1:] {
		if votes[o] > votes[winner] {
			winner = o
		}
	}
	// Only worth it when it saves more than one priority.
	if votes[0]+1 < votes[winner] {
		p.setInitOffset(winner)
	}
}

// setInitOffset emits "init offset" at the next gap of blank lines at top
// level. Nothing is emitted if no such gap comes up.
func (p *printer) setInitOffset(offset int) {
	p.whenBlankLine(func(line int) bool {
		if line-p.line <= 1 || p.level > 0 {
			return true
		}
		if offset != p.initOffset {
			p.indent()
			p.write(fmt.Sprintf("init offset = %d", offset))
			p.initOffset = offset
		}
		return false
	})
}
