package build

import (
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/jiang0681/unrpyc/internal/ast"
	"github.com/jiang0681/unrpyc/internal/diag"
	"github.com/jiang0681/unrpyc/internal/pickle"
	pt "github.com/jiang0681/unrpyc/internal/pickle/pickletest"
	"github.com/jiang0681/unrpyc/internal/rpyc"
	"github.com/jiang0681/unrpyc/internal/schema"
)

func buildScript(t *testing.T, stmts ...any) (*ast.Script, *diag.Reporter) {
	t.Helper()
	stream := pt.Script(nil, stmts...)
	res, err := pickle.Load(stream, pickle.WithRegistry(schema.TableFor(schema.FamilyRenPy8).Registry()))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	s, err := schema.Detect(schema.HeaderOf(rpyc.KindRPC2, res))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	records, err := schema.Statements(res.Root)
	if err != nil {
		t.Fatalf("statements: %v", err)
	}
	rep := diag.NewReporter("script.rpyc")
	s.Normalize(records, rep)
	return New(s, res.Memo, rep).Script("script.rpyc", records), rep
}

func TestBuildLabelWithDialogue(t *testing.T) {
	say := pt.Node("Say", 2, pt.KV{K: "who", V: "e"}, pt.KV{K: "what", V: "Hello"})
	label := pt.Node("Label", 1, pt.KV{K: "name", V: "start"}, pt.KV{K: "block", V: pt.List{say}})

	script, rep := buildScript(t, label)
	if len(rep.Diagnostics()) != 0 {
		t.Fatalf("unexpected diagnostics: %s", rep)
	}
	l, ok := script.Stmts[0].(*ast.Label)
	if !ok || l.Name != "start" || len(l.Block) != 1 {
		t.Fatalf("expected label start with one statement, got %s", spew.Sdump(script.Stmts[0]))
	}
	s, ok := l.Block[0].(*ast.Say)
	if !ok {
		t.Fatalf("expected say, got %T", l.Block[0])
	}
	if s.Who != "e" || s.What != "Hello" || !s.Interact || s.Line != 2 {
		t.Fatalf("unexpected say: %s", spew.Sdump(s))
	}
}

func TestSharedLocationRecord(t *testing.T) {
	script, _ := buildScript(t, pt.Node("Pass", 1), pt.Node("Pass", 2))
	a := script.Stmts[0].Loc()
	b := script.Stmts[1].Loc()
	if a.Ref == ast.NoRef || a.Ref != b.Ref || a.File != b.File {
		t.Fatalf("expected both statements to share one filename record, got %+v and %+v", a, b)
	}
}

func TestSchemaMismatchIsContained(t *testing.T) {
	bad := pt.Node("Jump", 1, pt.KV{K: "target", V: 5})
	script, rep := buildScript(t, bad, pt.Node("Pass", 2))

	u, ok := script.Stmts[0].(*ast.Unknown)
	if !ok || u.Tag != "renpy.ast.Jump" || u.Raw == nil {
		t.Fatalf("expected an unknown fallback for the jump, got %s", spew.Sdump(script.Stmts[0]))
	}
	if _, ok := script.Stmts[1].(*ast.Pass); !ok {
		t.Fatalf("expected the following statement to build, got %T", script.Stmts[1])
	}
	if rep.Count(diag.CodeSchemaMismatch) != 1 {
		t.Fatalf("expected one schema mismatch, got %s", rep)
	}
}

func TestUnknownRecordIsKept(t *testing.T) {
	odd := &pt.Obj{Module: "renpy.ast", Name: "Frobnicate"}
	odd.Set("filename", pt.DefaultFile).Set("linenumber", 7)
	script, rep := buildScript(t, odd)

	u, ok := script.Stmts[0].(*ast.Unknown)
	if !ok || u.Line != 7 {
		t.Fatalf("expected unknown at line 7, got %s", spew.Sdump(script.Stmts[0]))
	}
	if rep.Count(diag.CodeUnknownConstruct) != 1 {
		t.Fatalf("expected one unknown construct diagnostic, got %s", rep)
	}
}

func TestBuildIfElse(t *testing.T) {
	entries := pt.List{
		pt.Tuple{pt.Expr("x > 1", 2), pt.List{pt.Node("Pass", 3)}},
		pt.Tuple{pt.Expr("x > 0", 4), pt.List{pt.Node("Pass", 5)}},
		pt.Tuple{"True", pt.List{pt.Node("Pass", 7)}},
	}
	script, _ := buildScript(t, pt.Node("If", 2, pt.KV{K: "entries", V: entries}))

	n, ok := script.Stmts[0].(*ast.If)
	if !ok {
		t.Fatalf("expected if, got %T", script.Stmts[0])
	}
	if len(n.Arms) != 2 || len(n.Else) != 1 {
		t.Fatalf("expected 2 arms and an else, got %d arms and %d else statements", len(n.Arms), len(n.Else))
	}
	if n.Arms[1].Cond.Source != "x > 0" || n.Arms[1].Cond.Line != 4 {
		t.Fatalf("unexpected second arm condition %+v", n.Arms[1].Cond)
	}
}

func TestBuildPythonAndImSpec(t *testing.T) {
	py := pt.Node("Python", 1, pt.KV{K: "code", V: pt.Code("\nx = 1\n", 1)}, pt.KV{K: "hide", V: true})
	show := pt.Node("Show", 4, pt.KV{K: "imspec", V: pt.Tuple{
		pt.Tuple{"eileen", "happy"}, nil, "e", pt.List{"left"}, "master", nil, pt.List{"bg"},
	}})
	script, rep := buildScript(t, py, show)
	if len(rep.Diagnostics()) != 0 {
		t.Fatalf("unexpected diagnostics: %s", rep)
	}

	p := script.Stmts[0].(*ast.Python)
	if p.Code.Source != "\nx = 1\n" || !p.Hide || p.Store != "store" {
		t.Fatalf("unexpected python: %s", spew.Sdump(p))
	}
	s := script.Stmts[1].(*ast.Show)
	if len(s.ImSpec.Name) != 2 || s.ImSpec.Tag != "e" || s.ImSpec.Behind[0] != "bg" || s.ImSpec.AtList[0] != "left" {
		t.Fatalf("unexpected imspec: %s", spew.Sdump(s.ImSpec))
	}
}

func TestBuildLegacyParameters(t *testing.T) {
	info := &pt.Obj{Module: "renpy.ast", Name: "ParameterInfo"}
	info.Set("parameters", pt.List{pt.Tuple{"a", nil}, pt.Tuple{"b", "1"}, pt.Tuple{"c", nil}})
	info.Set("positional", pt.List{"a", "b"})
	info.Set("extrapos", "rest")
	info.Set("extrakw", nil)
	label := pt.Node("Label", 1, pt.KV{K: "name", V: "f"}, pt.KV{K: "parameters", V: info})

	script, _ := buildScript(t, label)
	params := script.Stmts[0].(*ast.Label).Params
	if params == nil || len(params.List) != 4 {
		t.Fatalf("expected 4 parameters, got %s", spew.Sdump(params))
	}
	want := []ast.ParamKind{ast.PositionalOrKeyword, ast.PositionalOrKeyword, ast.VarPositional, ast.KeywordOnly}
	for i, k := range want {
		if params.List[i].Kind != k {
			t.Fatalf("parameter %d: expected kind %d, got %d", i, k, params.List[i].Kind)
		}
	}
	if !params.List[1].HasDefault || params.List[1].Default != "1" {
		t.Fatalf("expected b=1, got %+v", params.List[1])
	}
}

func TestBuildLoweredRecords(t *testing.T) {
	script, rep := buildScript(t,
		pt.Lowered("CondJump", 1, pt.KV{K: "condition", V: pt.Expr("x", 1)}, pt.KV{K: "target", V: "_if_1"}),
		pt.Lowered("Menu", 2, pt.KV{K: "items", V: pt.List{
			pt.Tuple{"Choose", "True", nil},
			pt.Tuple{"Yes", "True", "_menu_1"},
		}}),
		pt.Lowered("Label", 3, pt.KV{K: "name", V: "_if_1"}),
	)
	if len(rep.Diagnostics()) != 0 {
		t.Fatalf("unexpected diagnostics: %s", rep)
	}
	if h, ok := script.Stmts[0].(*ast.CondHeader); !ok || h.Target != "_if_1" || h.Cond.Source != "x" {
		t.Fatalf("unexpected header %s", spew.Sdump(script.Stmts[0]))
	}
	m := script.Stmts[1].(*ast.Menu)
	if !m.Lowered || !m.Choices[0].IsCaption || m.Choices[1].Target != "_menu_1" {
		t.Fatalf("unexpected menu %s", spew.Sdump(m))
	}
	if l := script.Stmts[2].(*ast.Label); !l.Synthetic {
		t.Fatalf("expected a synthetic label")
	}
}

func TestConstructorsAreTotal(t *testing.T) {
	for _, f := range []schema.Family{schema.FamilyRenPy7, schema.FamilyRenPy8} {
		for _, k := range schema.TableFor(f).Kinds() {
			if k.IsStatement() && !Supports(k) {
				t.Fatalf("%s: no constructor for %s", f, k)
			}
		}
	}
}

func TestBuildNestedBlocks(t *testing.T) {
	say := pt.Node("Say", 4, pt.KV{K: "who", V: "e"}, pt.KV{K: "what", V: "deep"})
	loop := pt.Node("While", 3, pt.KV{K: "condition", V: pt.Expr("True", 3)}, pt.KV{K: "block", V: pt.List{say}})
	inner := pt.Node("Label", 2, pt.KV{K: "name", V: "inner"}, pt.KV{K: "block", V: pt.List{loop}})
	outer := pt.Node("Label", 1, pt.KV{K: "name", V: "outer"}, pt.KV{K: "block", V: pt.List{inner}})

	script, rep := buildScript(t, outer)
	if len(rep.Diagnostics()) != 0 {
		t.Fatalf("unexpected diagnostics: %s", rep)
	}
	l := script.Stmts[0].(*ast.Label)
	in, ok := l.Block[0].(*ast.Label)
	if !ok || in.Name != "inner" {
		t.Fatalf("expected nested label, got %s", spew.Sdump(l.Block))
	}
	w, ok := in.Block[0].(*ast.While)
	if !ok || len(w.Block) != 1 {
		t.Fatalf("expected while with one statement, got %s", spew.Sdump(in.Block))
	}
	if s, ok := w.Block[0].(*ast.Say); !ok || s.What != "deep" {
		t.Fatalf("expected innermost say, got %s", spew.Sdump(w.Block[0]))
	}
}

func slScreen(children ...any) *pt.Obj {
	return pt.SL("SLScreen", 1,
		pt.KV{K: "name", V: "main"},
		pt.KV{K: "tag", V: "menu"},
		pt.KV{K: "keyword", V: pt.List{pt.Tuple{"modal", pt.Expr("True", 2)}}},
		pt.KV{K: "children", V: pt.List(children)},
	)
}

func TestBuildScreen(t *testing.T) {
	text := pt.SL("SLDisplayable", 3,
		pt.KV{K: "displayable", V: pt.Global{Module: "renpy.text.text", Name: "Text"}},
		pt.KV{K: "style", V: "text"},
		pt.KV{K: "positional", V: pt.List{pt.Expr("'hi'", 3)}},
		pt.KV{K: "keyword", V: pt.List{}},
		pt.KV{K: "children", V: pt.List{}},
	)
	cond := pt.SL("SLIf", 4, pt.KV{K: "entries", V: pt.List{
		pt.Tuple{pt.Expr("x", 4), pt.SL("SLBlock", 4,
			pt.KV{K: "keyword", V: pt.List{}},
			pt.KV{K: "children", V: pt.List{pt.SL("SLPass", 5)}})},
		pt.Tuple{nil, pt.SL("SLBlock", 6,
			pt.KV{K: "keyword", V: pt.List{}},
			pt.KV{K: "children", V: pt.List{pt.SL("SLBreak", 7)}})},
	}})
	use := pt.SL("SLUse", 8, pt.KV{K: "target", V: pt.Expr("name", 8)}, pt.KV{K: "args", V: nil})

	script, rep := buildScript(t, pt.Node("Screen", 1, pt.KV{K: "screen", V: slScreen(text, cond, use)}))
	if len(rep.Diagnostics()) != 0 {
		t.Fatalf("unexpected diagnostics: %s", rep)
	}
	s, ok := script.Stmts[0].(*ast.Screen)
	if !ok || s.Name != "main" || s.Tag != "menu" || s.Raw != nil {
		t.Fatalf("expected screen main, got %s", spew.Sdump(script.Stmts[0]))
	}
	if len(s.Body.Keywords) != 1 || s.Body.Keywords[0].Name != "modal" || s.Body.Keywords[0].Value.Line != 2 {
		t.Fatalf("unexpected keywords %s", spew.Sdump(s.Body.Keywords))
	}
	if len(s.Body.Children) != 3 {
		t.Fatalf("expected three children, got %s", spew.Sdump(s.Body.Children))
	}
	d, ok := s.Body.Children[0].(*ast.SLDisplayable)
	if !ok || d.Displayable.Name != "Text" || d.Style != "text" || d.Line != 3 || len(d.Positional) != 1 || d.Positional[0] != "'hi'" {
		t.Fatalf("unexpected displayable %s", spew.Sdump(s.Body.Children[0]))
	}
	c, ok := s.Body.Children[1].(*ast.SLIf)
	if !ok || len(c.Arms) != 2 || c.Arms[1].Cond != nil || c.Arms[1].Block.Line != 6 {
		t.Fatalf("unexpected if %s", spew.Sdump(s.Body.Children[1]))
	}
	if _, ok := c.Arms[1].Block.Children[0].(*ast.SLBreak); !ok {
		t.Fatalf("expected break in else arm, got %T", c.Arms[1].Block.Children[0])
	}
	u, ok := s.Body.Children[2].(*ast.SLUse)
	if !ok || !u.TargetExpr || u.Target != "name" || u.Block != nil {
		t.Fatalf("unexpected use %s", spew.Sdump(s.Body.Children[2]))
	}
}

func TestBuildScreenMismatchIsContained(t *testing.T) {
	bad := pt.SL("SLDisplayable", 3, pt.KV{K: "displayable", V: "Text"})
	script, rep := buildScript(t, pt.Node("Screen", 1, pt.KV{K: "screen", V: slScreen(bad)}), pt.Node("Pass", 9))

	if _, ok := script.Stmts[0].(*ast.Unknown); !ok {
		t.Fatalf("expected an unknown fallback for the screen, got %T", script.Stmts[0])
	}
	if _, ok := script.Stmts[1].(*ast.Pass); !ok {
		t.Fatalf("expected the following statement to build, got %T", script.Stmts[1])
	}
	if rep.Count(diag.CodeSchemaMismatch) != 1 {
		t.Fatalf("expected one schema mismatch, got %s", rep)
	}
}
