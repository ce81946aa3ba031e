package build

import (
	"strconv"

	"github.com/jiang0681/unrpyc/internal/ast"
	"github.com/jiang0681/unrpyc/internal/pickle"
)

const slModule = "renpy.sl2.slast"

// buildScreen reads a screen language 2 definition. Anything else stored in
// the screen slot, such as a version 1 screen, keeps its raw record and only
// its name.
func buildScreen(r *record) ast.Stmt {
	raw := r.attr("screen")
	o, _ := raw.(*pickle.Object)
	if !isSL(o, "SLScreen") {
		n := &ast.Screen{Location: r.loc, Raw: raw}
		n.Name, _ = textOf(attrOf(o, "name"))
		return n
	}

	s := r.sl(o)
	n := &ast.Screen{
		Location: r.loc,
		Name:     s.required("name"),
		Params:   s.params("parameters"),
		Tag:      s.text("tag"),
		Body:     s.slBlock(),
	}
	if s.err != nil {
		r.fail("screen: %v", s.err)
	}
	return n
}

func isSL(o *pickle.Object, name string) bool {
	return o != nil && o.Class != nil && o.Class.Module == slModule && o.Class.Name == name
}

// sl returns a reader for a screen language record, located by its
// (filename, line) tuple.
func (r *record) sl(o *pickle.Object) *record {
	s := &record{b: r.b, o: o, kind: r.kind, loc: ast.Location{Ref: ast.NoRef}}
	if t, ok := s.attr("location").(*pickle.Tuple); ok && t.Len() >= 2 {
		if f, ok := t.At(0).(string); ok {
			s.loc.File = f
			s.loc.Ref = r.b.ref(f)
		}
		if n, ok := t.At(1).(int64); ok {
			s.loc.Line = int(n)
		}
	}
	return s
}

func (r *record) slBlock() ast.SLBlock {
	b := ast.SLBlock{Location: r.loc}
	for _, pair := range r.pairs("keyword") {
		name, ok := textOf(pair[0])
		if !ok {
			r.fail("keyword: name is %T", pair[0])
			continue
		}
		b.Keywords = append(b.Keywords, ast.SLKeyword{Name: name, Value: r.exprOf("keyword "+name, pair[1])})
	}
	b.Children = r.slChildren("children")
	if atl := r.attr("atl_transform"); atl != nil {
		b.ATL = atl
		b.ATLLine = r.loc.Line
		if o, ok := atl.(*pickle.Object); ok {
			if t, ok := attrOf(o, "loc").(*pickle.Tuple); ok && t.Len() >= 2 {
				if n, ok := t.At(1).(int64); ok {
					b.ATLLine = int(n)
				}
			}
		}
	}
	return b
}

func (r *record) slChildren(name string) []ast.SLNode {
	v := r.attr(name)
	if v == nil {
		return nil
	}
	items, ok := sequence(v)
	if !ok {
		r.fail("%s: expected a list, got %T", name, v)
		return nil
	}
	out := make([]ast.SLNode, 0, len(items))
	for _, it := range items {
		if n := r.slNode(it); n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (r *record) slNode(v pickle.Value) ast.SLNode {
	o, ok := v.(*pickle.Object)
	if !ok {
		r.fail("screen statement is a %T", v)
		return nil
	}
	s := r.sl(o)
	if o.Class.Module != slModule {
		return &ast.SLUnknown{Location: s.loc, Tag: o.Class.String()}
	}

	var n ast.SLNode
	switch o.Class.Name {
	case "SLDisplayable":
		n = s.slDisplayable()
	case "SLIf":
		n = s.slIf(false)
	case "SLShowIf":
		n = s.slIf(true)
	case "SLFor":
		n = &ast.SLFor{
			Location:   s.loc,
			Variable:   s.required("variable"),
			Expression: s.required("expression"),
			Index:      s.text("index_expression"),
			Children:   s.slChildren("children"),
		}
	case "SLPython":
		n = &ast.SLPython{Location: s.loc, Code: s.code("code")}
	case "SLPass":
		n = &ast.SLPass{Location: s.loc}
	case "SLBreak":
		n = &ast.SLBreak{Location: s.loc}
	case "SLContinue":
		n = &ast.SLContinue{Location: s.loc}
	case "SLTransclude":
		n = &ast.SLTransclude{Location: s.loc}
	case "SLUse":
		n = s.slUse()
	case "SLDefault":
		n = &ast.SLDefault{Location: s.loc, Variable: s.required("variable"), Expression: s.required("expression")}
	default:
		n = &ast.SLUnknown{Location: s.loc, Tag: o.Class.String()}
	}
	if s.err != nil {
		r.fail("%s at line %d: %v", o.Class.Name, s.loc.Line, s.err)
	}
	return n
}

func (r *record) slDisplayable() *ast.SLDisplayable {
	n := &ast.SLDisplayable{
		SLBlock:    r.slBlock(),
		Positional: r.texts("positional"),
		Variable:   r.text("variable"),
	}
	if c, ok := r.attr("displayable").(*pickle.Class); ok {
		n.Displayable = c
	} else {
		r.fail("displayable: expected a class reference, got %T", r.attr("displayable"))
	}
	switch st := r.attr("style").(type) {
	case nil:
	case string:
		n.Style = st
	case int64:
		n.Style = strconv.FormatInt(st, 10)
	default:
		r.fail("style: expected a name, got %T", st)
	}
	return n
}

func (r *record) slIf(showIf bool) *ast.SLIf {
	n := &ast.SLIf{Location: r.loc, ShowIf: showIf}
	entries, ok := sequence(r.attr("entries"))
	if !ok {
		r.fail("entries: expected a list, got %T", r.attr("entries"))
		return n
	}
	for _, e := range entries {
		t, ok := e.(*pickle.Tuple)
		if !ok || t.Len() != 2 {
			r.fail("entries: expected (condition, block), got %T", e)
			return n
		}
		bo, ok := t.At(1).(*pickle.Object)
		if !ok {
			r.fail("entries: block is %T", t.At(1))
			return n
		}
		sub := r.sl(bo)
		arm := ast.SLIfArm{Cond: r.exprOf("entries", t.At(0)), Block: sub.slBlock()}
		if sub.err != nil {
			r.fail("entries: %v", sub.err)
			return n
		}
		n.Arms = append(n.Arms, arm)
	}
	return n
}

func (r *record) slUse() *ast.SLUse {
	n := &ast.SLUse{Location: r.loc, Args: r.args("args"), ID: r.text("id")}
	switch t := r.attr("target").(type) {
	case string:
		n.Target = t
	case *pickle.Object:
		if !isExprRecord(t) {
			r.fail("target: expected a name or expression, got %s", t.Class)
			break
		}
		n.Target, _ = textOf(t)
		n.TargetExpr = true
	default:
		r.fail("target: expected a name or expression, got %T", t)
	}
	if bo, ok := r.attr("block").(*pickle.Object); ok {
		sub := r.sl(bo)
		b := sub.slBlock()
		if sub.err != nil {
			r.fail("block: %v", sub.err)
		}
		n.Block = &b
	}
	return n
}
