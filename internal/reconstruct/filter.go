package reconstruct

import (
	"github.com/jiang0681/unrpyc/internal/ast"
	"github.com/jiang0681/unrpyc/internal/diag"
)

// filter keeps the translation content of opts.Language. Default language
// dialogue blocks are replaced by their translation when the translator has
// one; blocks and strings of every other language are dropped.
func filter(stmts []ast.Stmt, opts Options, rep *diag.Reporter) []ast.Stmt {
	if len(stmts) == 0 {
		return stmts
	}
	out := make([]ast.Stmt, 0, len(stmts))
	for _, s := range stmts {
		switch n := s.(type) {
		case *ast.TranslationBlock:
			switch n.Language {
			case opts.Language:
			case "":
				if block, ok := opts.Translator.Block(n.Identifier); ok {
					n.Block = block
					n.Language = opts.Language
				} else if rep != nil {
					rep.Note(diag.StageReconstruct, diag.CodeTranslationMissing, n.Line,
						"no %s translation for %q", opts.Language, n.Identifier)
				}
			default:
				continue
			}

		case *ast.TranslateString:
			if n.Language != "" && n.Language != opts.Language {
				continue
			}

		case *ast.TranslateLanguageBlock:
			if n.Language != "" && n.Language != opts.Language {
				continue
			}

		case *ast.Init:
			had := len(n.Block) > 0
			n.Block = filter(n.Block, opts, rep)
			if had && len(n.Block) == 0 {
				continue
			}

		case *ast.Label:
			n.Block = filter(n.Block, opts, rep)

		case *ast.If:
			for i := range n.Arms {
				n.Arms[i].Block = filter(n.Arms[i].Block, opts, rep)
			}
			n.Else = filter(n.Else, opts, rep)

		case *ast.While:
			n.Block = filter(n.Block, opts, rep)

		case *ast.Menu:
			for _, c := range n.Choices {
				c.Block = filter(c.Block, opts, rep)
			}
		}
		out = append(out, s)
	}
	return out
}
