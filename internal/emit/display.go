package emit

import (
	"strings"

	"github.com/jiang0681/unrpyc/internal/ast"
	"github.com/jiang0681/unrpyc/internal/pickle"
)

// printImSpec writes an image specifier and reports whether a following word
// needs a separating space.
func (p *printer) printImSpec(spec *ast.ImSpec) bool {
	if spec == nil {
		return false
	}
	begin := strings.Join(spec.Name, " ")
	if spec.Expression != "" {
		begin = "expression " + spec.Expression
	}

	var words []string
	if spec.Tag != "" {
		words = append(words, "as "+spec.Tag)
	}
	if len(spec.Behind) > 0 {
		words = append(words, "behind "+strings.Join(spec.Behind, ", "))
	}
	if spec.Layer != "" {
		words = append(words, "onlayer "+spec.Layer)
	}
	if spec.Zorder != "" {
		words = append(words, "zorder "+spec.Zorder)
	}
	if len(spec.AtList) > 0 {
		words = append(words, "at "+strings.Join(spec.AtList, ", "))
	}

	rest, needsSpace := joinWords(begin != "" && !strings.HasSuffix(begin, " "), words...)
	p.write(begin + rest)
	return needsSpace
}

// printPairedWith appends the transition of a "show ... with" pair to the
// statement being printed.
func (p *printer) printPairedWith(needsSpace bool) {
	if p.pairedWith == "" {
		return
	}
	if needsSpace {
		p.write(" ")
	}
	p.write("with " + p.pairedWith)
	p.pairedWith = ""
	p.pairedUsed = true
}

// printATL marks an ATL block, which is not decompiled.
func (p *printer) printATL(atl pickle.Value) {
	if atl == nil {
		return
	}
	p.write(":")
	p.level++
	if p.opts.UnknownComments {
		p.indent()
		p.write("# unrpyc: ATL block is not decompiled")
	}
	p.indent()
	p.write("pass")
	p.level--
}

func (p *printer) printShow(n *ast.Show) {
	p.indent()
	p.write("show ")
	p.printPairedWith(p.printImSpec(n.ImSpec))
	p.printATL(n.ATL)
}

func (p *printer) printScene(n *ast.Scene) {
	p.indent()
	p.write("scene")
	needsSpace := true
	if n.ImSpec == nil {
		if n.Layer != "" {
			p.write(" onlayer " + n.Layer)
		}
	} else {
		p.write(" ")
		needsSpace = p.printImSpec(n.ImSpec)
	}
	p.printPairedWith(needsSpace)
	p.printATL(n.ATL)
}

func (p *printer) printHide(n *ast.Hide) {
	p.indent()
	p.write("hide ")
	p.printPairedWith(p.printImSpec(n.ImSpec))
}

// printWith handles both halves of "show x with t": the first With carries
// the transition in Paired and the matching With follows the shown statement.
func (p *printer) printWith(n *ast.With) {
	if n.Paired != "" {
		if w, ok := p.sibling(2).(*ast.With); ok && w.Expr == n.Paired {
			p.pairedWith = n.Paired
			return
		}
	}
	if p.pairedWith != "" || p.pairedUsed {
		if !p.pairedUsed {
			p.write(" with " + n.Expr)
		}
		p.pairedWith = ""
		p.pairedUsed = false
		return
	}
	p.advanceToLine(n.Line)
	p.indent()
	p.write("with " + n.Expr)
}

func (p *printer) printImage(n *ast.Image) {
	p.requireInit()
	p.indent()
	p.write("image " + strings.Join(n.Name, " "))
	if n.Code != nil {
		p.write(" = " + n.Code.Source)
		return
	}
	p.printATL(n.ATL)
}

func (p *printer) printTransform(n *ast.Transform) {
	p.requireInit()
	p.indent()
	p.write("transform" + p.implicitPriority(n) + " " + n.Varname + formatParams(n.Params))
	p.printATL(n.ATL)
}

func (p *printer) printShowLayer(n *ast.ShowLayer) {
	p.indent()
	p.write("show layer " + n.Layer)
	if len(n.AtList) > 0 {
		p.write(" at " + strings.Join(n.AtList, ", "))
	}
	p.printATL(n.ATL)
}

func (p *printer) printCamera(n *ast.Camera) {
	p.indent()
	p.write("camera")
	if n.Layer != "" && n.Layer != "master" {
		p.write(" " + n.Layer)
	}
	if len(n.AtList) > 0 {
		p.write(" at " + strings.Join(n.AtList, ", "))
	}
	p.printATL(n.ATL)
}
