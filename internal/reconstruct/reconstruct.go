// Package reconstruct folds the lowered jump/label form the compiler emits for
// structured statements back into if, while, menu and translate blocks.
//
// A region is only folded when it matches a known lowering exactly and every
// reference to the synthetic labels it removes belongs to that region.
// Everything else is left as explicit labels and jumps.
package reconstruct

import (
	"github.com/jiang0681/unrpyc/internal/ast"
	"github.com/jiang0681/unrpyc/internal/diag"
	"github.com/jiang0681/unrpyc/internal/translate"
)

// Options configures the optional translation filter.
type Options struct {
	// Language keeps only this translation language when non-empty.
	Language string
	// Translator supplies the Language variant of each dialogue block.
	Translator *translate.Translator
}

type reconstructor struct {
	refs   map[string]int
	labels map[string]*ast.Label
	rep    *diag.Reporter
}

// Script folds s in place. A synthetic jump target that names no label is an
// integrity error; unrecognized patterns are reported as notes.
func Script(s *ast.Script, opts Options, rep *diag.Reporter) error {
	r := &reconstructor{
		refs:   make(map[string]int),
		labels: make(map[string]*ast.Label),
		rep:    rep,
	}
	r.index(s.Stmts)
	if err := r.checkTargets(s.Stmts); err != nil {
		return err
	}
	s.Stmts = r.block(s.Stmts)
	if opts.Language != "" {
		s.Stmts = filter(s.Stmts, opts, rep)
	}
	return nil
}

// index counts every reference to every label name and records the labels.
func (r *reconstructor) index(stmts []ast.Stmt) {
	ast.WalkBlock(stmts, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.Label:
			r.labels[n.Name] = n
		case *ast.Jump:
			if !n.Expression {
				r.refs[n.Target]++
			}
		case *ast.Call:
			if !n.Expression {
				r.refs[n.Label]++
			}
		case *ast.CondHeader:
			r.refs[n.Target]++
		case *ast.LoopHeader:
			r.refs[n.Target]++
		case *ast.Menu:
			for _, c := range n.Choices {
				if c.Target != "" {
					r.refs[c.Target]++
				}
			}
		}
		return true
	})
}

// checkTargets verifies that every compiler generated jump lands on a label.
// Source level jumps may legitimately name labels in other files.
func (r *reconstructor) checkTargets(stmts []ast.Stmt) error {
	var err error
	check := func(target string, line int, what string) {
		if err != nil {
			return
		}
		if _, ok := r.labels[target]; !ok {
			e := diag.Errorf(diag.StageReconstruct, diag.CodeIntegrity,
				"%s at line %d targets unknown label %q", what, line, target)
			e.Span = diag.Span{Line: line}
			err = e
		}
	}
	ast.WalkBlock(stmts, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.Jump:
			if n.Synthetic {
				check(n.Target, n.Line, "lowered jump")
			}
		case *ast.CondHeader:
			check(n.Target, n.Line, "lowered conditional")
		case *ast.LoopHeader:
			check(n.Target, n.Line, "lowered loop")
		case *ast.Menu:
			for _, c := range n.Choices {
				if c.Target != "" {
					check(c.Target, n.Line, "lowered menu choice")
				}
			}
		}
		return err == nil
	})
	return err
}

func (r *reconstructor) unrecognized(n ast.Node, format string, args ...any) {
	if r.rep != nil {
		r.rep.Note(diag.StageReconstruct, diag.CodeUnrecognizedControlFlow, n.Loc().Line, format, args...)
	}
}

// block folds one statement list and everything nested in it.
func (r *reconstructor) block(stmts []ast.Stmt) []ast.Stmt {
	if len(stmts) == 0 {
		return stmts
	}
	out := make([]ast.Stmt, 0, len(stmts))
	for i := 0; i < len(stmts); {
		if folded, next, ok := r.fold(stmts, i); ok {
			out = append(out, folded)
			i = next
			continue
		}
		s := stmts[i]
		r.nested(s)
		out = append(out, s)
		i++
	}
	return out
}

// fold tries every pattern that can start at stmts[i].
func (r *reconstructor) fold(stmts []ast.Stmt, i int) (ast.Stmt, int, bool) {
	switch n := stmts[i].(type) {
	case *ast.Label:
		if n.Synthetic && i+1 < len(stmts) {
			if h, ok := stmts[i+1].(*ast.LoopHeader); ok {
				return r.foldWhile(stmts, i, n, h)
			}
		}
	case *ast.CondHeader:
		return r.foldIf(stmts, i)
	case *ast.Menu:
		if n.Lowered {
			return r.foldMenu(stmts, i, n)
		}
	case *ast.TranslationBlock:
		return r.foldTranslate(stmts, i, n)
	}
	return nil, 0, false
}

// nested folds the bodies owned by a statement that was kept as is.
func (r *reconstructor) nested(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.Label:
		n.Block = r.block(n.Block)
	case *ast.Init:
		n.Block = r.block(n.Block)
	case *ast.If:
		for i := range n.Arms {
			n.Arms[i].Block = r.block(n.Arms[i].Block)
		}
		n.Else = r.block(n.Else)
	case *ast.While:
		n.Block = r.block(n.Block)
	case *ast.Menu:
		for _, c := range n.Choices {
			c.Block = r.block(c.Block)
		}
	case *ast.TranslationBlock:
		n.Block = r.block(n.Block)
	case *ast.TranslateLanguageBlock:
		n.Block = r.block(n.Block)
	}
}
