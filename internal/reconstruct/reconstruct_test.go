package reconstruct

import (
	"errors"
	"testing"

	"github.com/jiang0681/unrpyc/internal/ast"
	"github.com/jiang0681/unrpyc/internal/diag"
	"github.com/jiang0681/unrpyc/internal/translate"
)

func at(line int) ast.Location { return ast.Location{File: "game/script.rpy", Line: line} }

func cond(src string, line int) *ast.Expr { return ast.NewExpr(src, at(line)) }

func label(name string, line int) *ast.Label {
	return &ast.Label{Location: at(line), Name: name, Synthetic: true}
}

func jump(target string, line int) *ast.Jump {
	return &ast.Jump{Location: at(line), Target: target, Synthetic: true}
}

func say(what string, line int) *ast.Say {
	return &ast.Say{Location: at(line), What: what, Interact: true}
}

func run(t *testing.T, stmts ...ast.Stmt) ([]ast.Stmt, *diag.Reporter) {
	t.Helper()
	s := &ast.Script{Filename: "script.rpyc", Stmts: stmts}
	rep := diag.NewReporter("script.rpyc")
	if err := Script(s, Options{}, rep); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s.Stmts, rep
}

func TestFoldIfElifElse(t *testing.T) {
	out, rep := run(t,
		&ast.CondHeader{Location: at(1), Cond: cond("a", 1), Target: "_if_1"},
		say("one", 2),
		jump("_end", 2),
		label("_if_1", 3),
		&ast.CondHeader{Location: at(3), Cond: cond("b", 3), Target: "_if_2"},
		say("two", 4),
		jump("_end", 4),
		label("_if_2", 5),
		say("three", 6),
		label("_end", 7),
		say("after", 8),
	)

	if rep.Count(diag.CodeUnrecognizedControlFlow) != 0 {
		t.Fatalf("unexpected notes: %v", rep.Diagnostics())
	}
	if len(out) != 2 {
		t.Fatalf("expected if and trailing say, got %d statements", len(out))
	}
	n, ok := out[0].(*ast.If)
	if !ok {
		t.Fatalf("expected *ast.If, got %T", out[0])
	}
	if len(n.Arms) != 2 {
		t.Fatalf("expected 2 arms, got %d", len(n.Arms))
	}
	if n.Arms[0].Cond.Source != "a" || n.Arms[1].Cond.Source != "b" {
		t.Fatalf("expected arms in source order, got %q %q", n.Arms[0].Cond, n.Arms[1].Cond)
	}
	if len(n.Arms[0].Block) != 1 || len(n.Arms[1].Block) != 1 {
		t.Fatalf("expected one statement per arm")
	}
	if len(n.Else) != 1 || n.Else[0].(*ast.Say).What != "three" {
		t.Fatalf("expected else body, got %v", n.Else)
	}
	if s := out[1].(*ast.Say); s.What != "after" {
		t.Fatalf("expected trailing say, got %q", s.What)
	}
}

func TestFoldIfWithoutElse(t *testing.T) {
	out, _ := run(t,
		&ast.CondHeader{Location: at(1), Cond: cond("a", 1), Target: "_end"},
		say("one", 2),
		label("_end", 3),
	)
	n, ok := out[0].(*ast.If)
	if !ok || len(out) != 1 {
		t.Fatalf("expected a single if, got %d statements", len(out))
	}
	if len(n.Arms) != 1 || n.Else != nil {
		t.Fatalf("expected one arm and no else")
	}
}

func TestFoldWhileRemovesLabels(t *testing.T) {
	out, _ := run(t,
		&ast.Label{Location: at(1), Name: "start", Block: []ast.Stmt{
			label("_top", 2),
			&ast.LoopHeader{Location: at(2), Cond: cond("n < 3", 2), Target: "_done"},
			&ast.Python{Location: at(3), Code: &ast.Code{Source: "n += 1"}},
			jump("_top", 3),
			label("_done", 4),
		}},
	)

	l := out[0].(*ast.Label)
	if len(l.Block) != 1 {
		t.Fatalf("expected the loop to fold into one statement, got %d", len(l.Block))
	}
	w, ok := l.Block[0].(*ast.While)
	if !ok {
		t.Fatalf("expected *ast.While, got %T", l.Block[0])
	}
	if w.Cond.Source != "n < 3" || len(w.Block) != 1 {
		t.Fatalf("unexpected loop: cond %q, %d statements", w.Cond, len(w.Block))
	}
	ast.WalkBlock(out, func(n ast.Node) bool {
		if l, ok := n.(*ast.Label); ok && l.Synthetic {
			t.Fatalf("synthetic label %q left in output", l.Name)
		}
		return true
	})
}

func TestExternalReferenceKeepsExplicitForm(t *testing.T) {
	out, rep := run(t,
		label("_top", 1),
		&ast.LoopHeader{Location: at(1), Cond: cond("x", 1), Target: "_done"},
		say("body", 2),
		jump("_top", 2),
		label("_done", 3),
		&ast.Jump{Location: at(4), Target: "_top"},
	)

	if len(out) != 6 {
		t.Fatalf("expected the region untouched, got %d statements", len(out))
	}
	if rep.Count(diag.CodeUnrecognizedControlFlow) != 1 {
		t.Fatalf("expected one unrecognized control flow note, got %v", rep.Diagnostics())
	}
	for _, d := range rep.Diagnostics() {
		if d.Severity != diag.SeverityNote {
			t.Fatalf("expected a note, got %s", d)
		}
	}
}

func TestUnresolvedSyntheticTarget(t *testing.T) {
	s := &ast.Script{Stmts: []ast.Stmt{
		&ast.CondHeader{Location: at(5), Cond: cond("a", 5), Target: "_missing"},
	}}
	err := Script(s, Options{}, diag.NewReporter("script.rpyc"))
	var de *diag.Error
	if !errors.As(err, &de) {
		t.Fatalf("expected *diag.Error, got %v", err)
	}
	if de.Code != diag.CodeIntegrity || de.Span.Line != 5 {
		t.Fatalf("expected integrity error at line 5, got %v", de)
	}
}

func TestSourceJumpToOtherFileIsAllowed(t *testing.T) {
	out, _ := run(t, &ast.Jump{Location: at(1), Target: "chapter2"})
	if len(out) != 1 {
		t.Fatalf("expected the jump to stay")
	}
}

func TestFoldMenu(t *testing.T) {
	menu := &ast.Menu{Location: at(1), Lowered: true, Choices: []*ast.MenuChoice{
		{Location: at(1), Caption: "Pick one", IsCaption: true},
		{Location: at(2), Caption: "Left", Cond: cond("True", 2), Target: "_c1"},
		{Location: at(4), Caption: "Right", Cond: cond("True", 4), Target: "_c2"},
	}}
	out, rep := run(t,
		menu,
		label("_c1", 2),
		say("left", 3),
		jump("_m", 3),
		label("_c2", 4),
		say("right", 5),
		label("_m", 6),
		say("after", 7),
	)

	if rep.Count(diag.CodeUnrecognizedControlFlow) != 0 {
		t.Fatalf("unexpected notes: %v", rep.Diagnostics())
	}
	if len(out) != 2 {
		t.Fatalf("expected menu and trailing say, got %d", len(out))
	}
	m := out[0].(*ast.Menu)
	if m.Lowered {
		t.Fatalf("expected the menu to be folded")
	}
	if len(m.Choices[1].Block) != 1 || len(m.Choices[2].Block) != 1 {
		t.Fatalf("expected one statement per choice")
	}
	if m.Choices[1].Target != "" || m.Choices[2].Target != "" {
		t.Fatalf("expected choice targets to be cleared")
	}
}

func TestFoldSingleChoiceMenu(t *testing.T) {
	menu := &ast.Menu{Location: at(1), Lowered: true, Choices: []*ast.MenuChoice{
		{Location: at(2), Caption: "Only", Cond: cond("True", 2), Target: "_c1"},
	}}
	out, _ := run(t, menu, label("_c1", 2), say("only", 3), jump("_m", 3), label("_m", 4))
	if len(out) != 1 {
		t.Fatalf("expected a single menu, got %d statements", len(out))
	}
	if b := out[0].(*ast.Menu).Choices[0].Block; len(b) != 1 {
		t.Fatalf("expected the choice body, got %d statements", len(b))
	}
}

func TestFoldLoweredTranslation(t *testing.T) {
	out, _ := run(t,
		&ast.TranslationBlock{Location: at(1), Identifier: "start_1", Lowered: true},
		say("hello", 1),
		&ast.EndTranslate{Location: at(1)},
		say("after", 2),
	)
	if len(out) != 2 {
		t.Fatalf("expected translation and say, got %d", len(out))
	}
	tb := out[0].(*ast.TranslationBlock)
	if tb.Lowered || len(tb.Block) != 1 {
		t.Fatalf("expected the dialogue grouped under the translation")
	}
}

func TestNestedTranslationDropsEndMarker(t *testing.T) {
	out, _ := run(t,
		&ast.TranslationBlock{Location: at(1), Identifier: "start_1", Block: []ast.Stmt{say("hi", 1)}},
		&ast.EndTranslate{Location: at(1)},
	)
	if len(out) != 1 {
		t.Fatalf("expected the end marker to be dropped, got %d statements", len(out))
	}
}

func TestLanguageFilter(t *testing.T) {
	french := &ast.Script{Stmts: []ast.Stmt{
		&ast.TranslationBlock{Location: at(3), Identifier: "start_1", Language: "french",
			Block: []ast.Stmt{say("bonjour", 4)}},
	}}
	tr := translate.Collect(french, "french")

	s := &ast.Script{Stmts: []ast.Stmt{
		&ast.TranslationBlock{Location: at(1), Identifier: "start_1", Block: []ast.Stmt{say("hello", 1)}},
		&ast.TranslationBlock{Location: at(2), Identifier: "start_2", Block: []ast.Stmt{say("bye", 2)}},
		&ast.TranslationBlock{Location: at(3), Identifier: "start_1", Language: "german",
			Block: []ast.Stmt{say("hallo", 3)}},
		&ast.Init{Location: at(4), Block: []ast.Stmt{
			&ast.TranslateString{Location: at(5), Language: "german", Old: "Yes", New: "Ja"},
		}},
	}}
	rep := diag.NewReporter("script.rpyc")
	if err := Script(s, Options{Language: "french", Translator: tr}, rep); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(s.Stmts) != 2 {
		t.Fatalf("expected two dialogue blocks to remain, got %d", len(s.Stmts))
	}
	first := s.Stmts[0].(*ast.TranslationBlock)
	if first.Language != "french" || first.Block[0].(*ast.Say).What != "bonjour" {
		t.Fatalf("expected the french body to be substituted, got %q", first.Block[0].(*ast.Say).What)
	}
	second := s.Stmts[1].(*ast.TranslationBlock)
	if second.Language != "" || second.Block[0].(*ast.Say).What != "bye" {
		t.Fatalf("expected the untranslated block to stay")
	}
	if rep.Count(diag.CodeTranslationMissing) != 1 {
		t.Fatalf("expected one missing translation note, got %v", rep.Diagnostics())
	}
}
