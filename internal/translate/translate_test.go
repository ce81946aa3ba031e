package translate

import (
	"testing"

	"github.com/jiang0681/unrpyc/internal/ast"
)

func sample() *ast.Script {
	return &ast.Script{Stmts: []ast.Stmt{
		&ast.TranslationBlock{Identifier: "start_1", Language: "french", Block: []ast.Stmt{
			&ast.Say{What: "Bonjour"},
		}},
		&ast.TranslationBlock{Identifier: "start_1", Language: "german", Block: []ast.Stmt{
			&ast.Say{What: "Hallo"},
		}},
		&ast.Init{Block: []ast.Stmt{
			&ast.TranslateString{Language: "french", Old: "Yes", New: "Oui"},
			&ast.TranslateString{Language: "german", Old: "Yes", New: "Ja"},
		}},
	}}
}

func TestCollectFiltersByLanguage(t *testing.T) {
	tr := Collect(sample(), "french")

	b, ok := tr.Block("start_1")
	if !ok || b[0].(*ast.Say).What != "Bonjour" {
		t.Fatalf("expected the french block, got %v", b)
	}
	if got := tr.String("Yes"); got != "Oui" {
		t.Fatalf("expected Oui, got %q", got)
	}
	if got := tr.String("No"); got != "No" {
		t.Fatalf("expected untranslated strings to pass through, got %q", got)
	}
	if blocks, strs := tr.Len(); blocks != 1 || strs != 1 {
		t.Fatalf("expected 1 block and 1 string, got %d and %d", blocks, strs)
	}
}

func TestMergeKeepsExisting(t *testing.T) {
	a := New("french")
	a.strings["Yes"] = "Oui"
	b := New("french")
	b.strings["Yes"] = "Ouais"
	b.strings["No"] = "Non"

	a.Merge(b)
	if a.String("Yes") != "Oui" || a.String("No") != "Non" {
		t.Fatalf("unexpected merge result %v", a.strings)
	}
}

func TestNilTranslator(t *testing.T) {
	var tr *Translator
	if tr.String("x") != "x" {
		t.Fatalf("expected passthrough")
	}
	if _, ok := tr.Block("id"); ok {
		t.Fatalf("expected no block")
	}
}
