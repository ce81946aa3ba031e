package build

import (
	"github.com/jiang0681/unrpyc/internal/ast"
	"github.com/jiang0681/unrpyc/internal/pickle"
)

// expr reads an expression attribute. Bare strings are kept as Plain
// expressions located at the statement.
func (r *record) expr(name string) *ast.Expr {
	return r.exprOf(name, r.attr(name))
}

func (r *record) exprOf(name string, v pickle.Value) *ast.Expr {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return &ast.Expr{Location: r.loc, Source: t, Plain: true}
	case *pickle.Object:
		if !isExprRecord(t) || len(t.Args) < 3 {
			break
		}
		src, ok := textOf(t.Args[0])
		if !ok {
			break
		}
		e := &ast.Expr{Location: ast.Location{Ref: ast.NoRef}, Source: src}
		if f, ok := t.Args[1].(string); ok {
			e.File = f
			e.Ref = r.b.ref(f)
		}
		if n, ok := t.Args[2].(int64); ok {
			e.Line = int(n)
		}
		return e
	}
	r.fail("%s: expected an expression, got %T", name, v)
	return nil
}

// code reads a PyCode attribute.
func (r *record) code(name string) *ast.Code {
	return r.codeOf(name, r.attr(name))
}

func (r *record) codeOf(name string, v pickle.Value) *ast.Code {
	if v == nil {
		return nil
	}
	o, ok := v.(*pickle.Object)
	if !ok || !isCodeRecord(o) {
		r.fail("%s: expected code, got %T", name, v)
		return nil
	}
	st, ok := o.State.(*pickle.Tuple)
	if !ok || !r.b.schema.Table.AcceptsPyCode(st.Len()) {
		r.fail("%s: code state has layout %T of %d items", name, o.State, tupleLen(o.State))
		return nil
	}
	src, ok := textOf(st.At(1))
	if !ok {
		r.fail("%s: code source is %T", name, st.At(1))
		return nil
	}
	c := &ast.Code{Location: ast.Location{Ref: ast.NoRef}, Source: src}
	if loc, ok := st.At(2).(*pickle.Tuple); ok {
		if f, ok := loc.At(0).(string); ok {
			c.File = f
			c.Ref = r.b.ref(f)
		}
		if n, ok := loc.At(1).(int64); ok {
			c.Line = int(n)
		}
	}
	c.Mode, _ = st.At(3).(string)
	return c
}

func tupleLen(v pickle.Value) int {
	if t, ok := v.(*pickle.Tuple); ok {
		return t.Len()
	}
	return -1
}

// params reads the three historic parameter layouts into one list.
func (r *record) params(name string) *ast.Params {
	v := r.attr(name)
	if v == nil {
		return nil
	}
	o, ok := v.(*pickle.Object)
	if !ok {
		r.fail("%s: expected parameter info, got %T", name, v)
		return nil
	}
	sub := &record{b: r.b, o: o, loc: r.loc}
	var p *ast.Params
	switch {
	case o.Class.Name == "Signature":
		p = sub.signature()
	case o.HasAttr("positional_only"):
		p = sub.paramInfo75()
	default:
		p = sub.paramInfoLegacy()
	}
	if sub.err != nil {
		r.fail("%s: %v", name, sub.err)
		return nil
	}
	return p
}

// pairs reads a list of (name, default) tuples.
func (r *record) pairs(name string) [][2]pickle.Value {
	v := r.attr(name)
	if v == nil {
		return nil
	}
	items, ok := sequence(v)
	if !ok {
		r.fail("%s: expected pairs, got %T", name, v)
		return nil
	}
	out := make([][2]pickle.Value, 0, len(items))
	for _, it := range items {
		t, ok := it.(*pickle.Tuple)
		if !ok || t.Len() != 2 {
			r.fail("%s: expected a pair, got %T", name, it)
			return nil
		}
		out = append(out, [2]pickle.Value{t.At(0), t.At(1)})
	}
	return out
}

func (r *record) param(kind ast.ParamKind, pair [2]pickle.Value) ast.Param {
	p := ast.Param{Kind: kind}
	var ok bool
	if p.Name, ok = textOf(pair[0]); !ok {
		r.fail("parameter name is %T", pair[0])
	}
	if pair[1] != nil {
		p.HasDefault = true
		if p.Default, ok = textOf(pair[1]); !ok {
			r.fail("parameter default is %T", pair[1])
		}
	}
	return p
}

// paramInfoLegacy reads the layout used up to 7.4.
func (r *record) paramInfoLegacy() *ast.Params {
	positional := make(map[string]bool)
	for _, n := range r.texts("positional") {
		positional[n] = true
	}
	p := &ast.Params{}
	var nameOnly []ast.Param
	for _, pair := range r.pairs("parameters") {
		n, _ := textOf(pair[0])
		if positional[n] {
			p.List = append(p.List, r.param(ast.PositionalOrKeyword, pair))
		} else {
			nameOnly = append(nameOnly, r.param(ast.KeywordOnly, pair))
		}
	}
	if extra := r.text("extrapos"); extra != "" {
		p.List = append(p.List, ast.Param{Name: extra, Kind: ast.VarPositional})
	}
	p.List = append(p.List, nameOnly...)
	if extra := r.text("extrakw"); extra != "" {
		p.List = append(p.List, ast.Param{Name: extra, Kind: ast.VarKeyword})
	}
	return p
}

// paramInfo75 reads the layout with explicit positional-only and
// keyword-only lists.
func (r *record) paramInfo75() *ast.Params {
	accounted := make(map[string]bool)
	posOnly := r.pairs("positional_only")
	kwOnly := r.pairs("keyword_only")
	for _, pair := range append(append([][2]pickle.Value{}, posOnly...), kwOnly...) {
		n, _ := textOf(pair[0])
		accounted[n] = true
	}
	p := &ast.Params{}
	for _, pair := range posOnly {
		p.List = append(p.List, r.param(ast.PositionalOnly, pair))
	}
	for _, pair := range r.pairs("parameters") {
		if n, _ := textOf(pair[0]); !accounted[n] {
			p.List = append(p.List, r.param(ast.PositionalOrKeyword, pair))
		}
	}
	if extra := r.text("extrapos"); extra != "" {
		p.List = append(p.List, ast.Param{Name: extra, Kind: ast.VarPositional})
	}
	for _, pair := range kwOnly {
		p.List = append(p.List, r.param(ast.KeywordOnly, pair))
	}
	if extra := r.text("extrakw"); extra != "" {
		p.List = append(p.List, ast.Param{Name: extra, Kind: ast.VarKeyword})
	}
	return p
}

// signature reads renpy.parameter.Signature.
func (r *record) signature() *ast.Params {
	d, ok := r.attr("parameters").(*pickle.Dict)
	if !ok {
		r.fail("parameters: expected a dict, got %T", r.attr("parameters"))
		return nil
	}
	p := &ast.Params{}
	d.Each(func(_, v pickle.Value) {
		o, ok := v.(*pickle.Object)
		if !ok {
			r.fail("parameter is %T", v)
			return
		}
		sub := &record{b: r.b, o: o, loc: r.loc}
		param := ast.Param{Name: sub.text("name"), Kind: ast.ParamKind(sub.integer("kind"))}
		if def := sub.attr("default"); def != nil {
			param.HasDefault = true
			param.Default = sub.text("default")
		}
		if sub.err != nil {
			r.fail("parameter: %v", sub.err)
			return
		}
		p.List = append(p.List, param)
	})
	return p
}

// args reads an ArgumentInfo record.
func (r *record) args(name string) *ast.Args {
	return r.argsOf(name, r.attr(name))
}

func (r *record) argsOf(name string, v pickle.Value) *ast.Args {
	if v == nil {
		return nil
	}
	o, ok := v.(*pickle.Object)
	if !ok {
		r.fail("%s: expected argument info, got %T", name, v)
		return nil
	}
	sub := &record{b: r.b, o: o, loc: r.loc}
	starred := sub.indexes("starred_indexes")
	double := sub.indexes("doublestarred_indexes")
	a := &ast.Args{}
	for i, pair := range sub.pairs("arguments") {
		arg := ast.Arg{}
		arg.Name, _ = textOf(pair[0])
		var ok bool
		if arg.Value, ok = textOf(pair[1]); !ok {
			sub.fail("argument value is %T", pair[1])
		}
		if arg.Name == "" {
			switch {
			case starred[i]:
				arg.Star = 1
			case double[i]:
				arg.Star = 2
			}
		}
		a.List = append(a.List, arg)
	}
	if !o.HasAttr("starred_indexes") {
		if extra := sub.text("extrapos"); extra != "" {
			a.List = append(a.List, ast.Arg{Value: extra, Star: 1})
		}
		if extra := sub.text("extrakw"); extra != "" {
			a.List = append(a.List, ast.Arg{Value: extra, Star: 2})
		}
	}
	if sub.err != nil {
		r.fail("%s: %v", name, sub.err)
		return nil
	}
	return a
}

func (r *record) indexes(name string) map[int]bool {
	out := make(map[int]bool)
	items, _ := sequence(r.attr(name))
	for _, it := range items {
		if n, ok := it.(int64); ok {
			out[int(n)] = true
		}
	}
	return out
}

// imspec reads an image specifier tuple of 3, 6 or 7 items.
func (r *record) imspec(name string) *ast.ImSpec {
	v := r.attr(name)
	if v == nil {
		return nil
	}
	t, ok := v.(*pickle.Tuple)
	if !ok || !r.b.schema.Table.AcceptsImSpec(t.Len()) {
		r.fail("%s: image specifier has layout %T of %d items", name, v, tupleLen(v))
		return nil
	}
	spec := &ast.ImSpec{Name: r.textsOf(name, t.At(0))}
	if t.Len() == 3 {
		spec.AtList = r.textsOf(name, t.At(1))
		spec.Layer, _ = textOf(t.At(2))
		return spec
	}
	spec.Expression, _ = textOf(t.At(1))
	spec.Tag, _ = textOf(t.At(2))
	spec.AtList = r.textsOf(name, t.At(3))
	spec.Layer, _ = textOf(t.At(4))
	spec.Zorder, _ = textOf(t.At(5))
	if t.Len() == 7 {
		spec.Behind = r.textsOf(name, t.At(6))
	}
	return spec
}

// lex reads the raw block of a user statement: (file, line, text, block)
// tuples, nested.
func (r *record) lex(v pickle.Value) []ast.LexLine {
	items, ok := sequence(v)
	if !ok {
		if v != nil {
			r.fail("block: expected lexer lines, got %T", v)
		}
		return nil
	}
	out := make([]ast.LexLine, 0, len(items))
	for _, it := range items {
		t, ok := it.(*pickle.Tuple)
		if !ok || t.Len() != 4 {
			r.fail("block: expected a 4-tuple, got %T", it)
			return nil
		}
		line := ast.LexLine{}
		line.File, _ = textOf(t.At(0))
		if n, ok := t.At(1).(int64); ok {
			line.Line = int(n)
		}
		line.Text, _ = textOf(t.At(2))
		line.Block = r.lex(t.At(3))
		out = append(out, line)
	}
	return out
}
