// Package translate collects the translations of one language from
// decompiled translation files so they can be substituted into a script.
package translate

import "github.com/jiang0681/unrpyc/internal/ast"

// Translator holds the dialogue blocks and strings of one language. It is
// filled during the translation pass and read-only afterwards.
type Translator struct {
	Language string
	blocks   map[string][]ast.Stmt
	strings  map[string]string
}

// New returns an empty translator for language.
func New(language string) *Translator {
	return &Translator{
		Language: language,
		blocks:   make(map[string][]ast.Stmt),
		strings:  make(map[string]string),
	}
}

// Collect gathers the translation blocks and strings of t's language from a
// reconstructed script.
func (t *Translator) Collect(s *ast.Script) {
	ast.WalkBlock(s.Stmts, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.TranslationBlock:
			if n.Language == t.Language && !n.Lowered {
				t.blocks[n.Identifier] = n.Block
			}
			return false
		case *ast.TranslateString:
			if n.Language == t.Language {
				t.strings[n.Old] = n.New
			}
		}
		return true
	})
}

// Collect is a shorthand for New followed by Collect.
func Collect(s *ast.Script, language string) *Translator {
	t := New(language)
	t.Collect(s)
	return t
}

// Merge adds the entries of o. Entries already present in t win.
func (t *Translator) Merge(o *Translator) {
	if o == nil {
		return
	}
	for id, b := range o.blocks {
		if _, ok := t.blocks[id]; !ok {
			t.blocks[id] = b
		}
	}
	for old, tr := range o.strings {
		if _, ok := t.strings[old]; !ok {
			t.strings[old] = tr
		}
	}
}

// Block returns the translated body of a dialogue identifier.
func (t *Translator) Block(id string) ([]ast.Stmt, bool) {
	if t == nil {
		return nil, false
	}
	b, ok := t.blocks[id]
	return b, ok
}

// String translates s, returning s itself when no translation exists.
func (t *Translator) String(s string) string {
	if t == nil {
		return s
	}
	if tr, ok := t.strings[s]; ok {
		return tr
	}
	return s
}

// Len reports the number of collected blocks and strings.
func (t *Translator) Len() (blocks, strings int) {
	if t == nil {
		return 0, 0
	}
	return len(t.blocks), len(t.strings)
}
