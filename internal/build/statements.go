package build

import (
	"github.com/jiang0681/unrpyc/internal/ast"
	"github.com/jiang0681/unrpyc/internal/pickle"
)

func buildLabel(r *record) ast.Stmt {
	return &ast.Label{
		Location: r.loc,
		Name:     r.required("name"),
		Params:   r.params("parameters"),
		Block:    r.block("block"),
		Hide:     r.boolean("hide"),
	}
}

func buildJump(r *record) ast.Stmt {
	return &ast.Jump{Location: r.loc, Target: r.required("target"), Expression: r.boolean("expression")}
}

func buildCall(r *record) ast.Stmt {
	return &ast.Call{
		Location:   r.loc,
		Label:      r.required("label"),
		Args:       r.args("arguments"),
		Expression: r.boolean("expression"),
	}
}

func buildReturn(r *record) ast.Stmt {
	return &ast.Return{Location: r.loc, Expr: r.expr("expression")}
}

func buildPass(r *record) ast.Stmt {
	return &ast.Pass{Location: r.loc}
}

func buildIf(r *record) ast.Stmt {
	n := &ast.If{Location: r.loc}
	entries, ok := sequence(r.attr("entries"))
	if !ok {
		r.fail("entries: expected a list, got %T", r.attr("entries"))
		return n
	}
	for i, e := range entries {
		t, ok := e.(*pickle.Tuple)
		if !ok || t.Len() != 2 {
			r.fail("entries: expected (condition, block), got %T", e)
			return n
		}
		cond := r.exprOf("entries", t.At(0))
		body := r.blockOf("entries", t.At(1))
		// The engine stores the else arm as a plain "True" string.
		if i == len(entries)-1 && i > 0 && (cond == nil || cond.Plain) {
			n.Else = body
			continue
		}
		n.Arms = append(n.Arms, ast.IfArm{Cond: cond, Block: body})
	}
	return n
}

func buildWhile(r *record) ast.Stmt {
	return &ast.While{Location: r.loc, Cond: r.expr("condition"), Block: r.block("block")}
}

func buildSay(r *record) ast.Stmt {
	n := &ast.Say{
		Location:   r.loc,
		Who:        r.text("who"),
		What:       r.text("what"),
		With:       r.text("with_"),
		Interact:   r.boolean("interact"),
		Attributes: r.texts("attributes"),
		Identifier: r.text("identifier"),
		ExplicitID: r.boolean("explicit_identifier"),
		Args:       r.args("arguments"),
	}
	if r.attr("temporary_attributes") != nil {
		n.TempAttributes = r.texts("temporary_attributes")
		if n.TempAttributes == nil {
			n.TempAttributes = []string{}
		}
	}
	return n
}

func buildMenu(r *record) ast.Stmt {
	n := &ast.Menu{
		Location: r.loc,
		Set:      r.text("set"),
		With:     r.text("with_"),
		Args:     r.args("arguments"),
	}
	items, ok := sequence(r.attr("items"))
	if !ok {
		r.fail("items: expected a list, got %T", r.attr("items"))
		return n
	}
	itemArgs, _ := sequence(r.attr("item_arguments"))
	for i, it := range items {
		t, ok := it.(*pickle.Tuple)
		if !ok || t.Len() != 3 {
			r.fail("items: expected (label, condition, block), got %T", it)
			return n
		}
		c := &ast.MenuChoice{Location: r.loc, Cond: r.exprOf("items", t.At(1))}
		c.Caption, _ = textOf(t.At(0))
		if c.Cond != nil && !c.Cond.Plain {
			c.Line = c.Cond.Line
		}
		if t.At(2) == nil {
			c.IsCaption = true
		} else {
			c.Block = r.blockOf("items", t.At(2))
		}
		if i < len(itemArgs) {
			c.Args = r.argsOf("item_arguments", itemArgs[i])
		}
		n.Choices = append(n.Choices, c)
	}
	return n
}

func buildUserStatement(r *record) ast.Stmt {
	return &ast.UserStatement{Location: r.loc, Line: r.required("line"), Block: r.lex(r.attr("block"))}
}

func buildTranslate(r *record) ast.Stmt {
	return &ast.TranslationBlock{
		Location:   r.loc,
		Identifier: r.required("identifier"),
		Language:   r.text("language"),
		Block:      r.block("block"),
	}
}

func buildEndTranslate(r *record) ast.Stmt {
	return &ast.EndTranslate{Location: r.loc}
}

func buildTranslateString(r *record) ast.Stmt {
	n := &ast.TranslateString{
		Location: r.loc,
		Language: r.text("language"),
		Old:      r.text("old"),
		New:      r.text("new"),
	}
	if loc, ok := r.attr("newloc").(*pickle.Tuple); ok {
		if line, ok := loc.At(1).(int64); ok {
			n.NewLine = int(line)
		}
	}
	return n
}

func buildTranslateBlock(r *record) ast.Stmt {
	return &ast.TranslateLanguageBlock{
		Location: r.loc,
		Language: r.text("language"),
		Block:    r.block("block"),
		Early:    r.o.Class.Name == "TranslateEarlyBlock",
	}
}

func buildPython(r *record) ast.Stmt {
	n := &ast.Python{
		Location: r.loc,
		Code:     r.code("code"),
		Hide:     r.boolean("hide"),
		Store:    r.text("store"),
		Early:    r.o.Class.Name == "EarlyPython",
	}
	if n.Code == nil {
		r.fail("code: missing")
	}
	return n
}

func buildDefine(r *record) ast.Stmt {
	n := &ast.Define{
		Location: r.loc,
		Varname:  r.required("varname"),
		Store:    r.text("store"),
		Index:    r.code("index"),
		Operator: r.text("operator"),
		Code:     r.code("code"),
	}
	if n.Code == nil {
		r.fail("code: missing")
	}
	return n
}

func buildDefault(r *record) ast.Stmt {
	n := &ast.Default{
		Location: r.loc,
		Varname:  r.required("varname"),
		Store:    r.text("store"),
		Code:     r.code("code"),
	}
	if n.Code == nil {
		r.fail("code: missing")
	}
	return n
}

func buildInit(r *record) ast.Stmt {
	return &ast.Init{Location: r.loc, Priority: r.integer("priority"), Block: r.block("block")}
}

func buildShow(r *record) ast.Stmt {
	return &ast.Show{Location: r.loc, ImSpec: r.imspec("imspec"), ATL: r.attr("atl")}
}

func buildScene(r *record) ast.Stmt {
	return &ast.Scene{
		Location: r.loc,
		ImSpec:   r.imspec("imspec"),
		Layer:    r.text("layer"),
		ATL:      r.attr("atl"),
	}
}

func buildHide(r *record) ast.Stmt {
	return &ast.Hide{Location: r.loc, ImSpec: r.imspec("imspec")}
}

func buildWith(r *record) ast.Stmt {
	return &ast.With{Location: r.loc, Expr: r.text("expr"), Paired: r.text("paired")}
}

func buildImage(r *record) ast.Stmt {
	return &ast.Image{
		Location: r.loc,
		Name:     r.texts("imgname"),
		Code:     r.code("code"),
		ATL:      r.attr("atl"),
	}
}

func buildTransform(r *record) ast.Stmt {
	return &ast.Transform{
		Location: r.loc,
		Varname:  r.required("varname"),
		Params:   r.params("parameters"),
		ATL:      r.attr("atl"),
	}
}

func buildStyle(r *record) ast.Stmt {
	n := &ast.Style{
		Location: r.loc,
		Name:     r.required("style_name"),
		Parent:   r.text("parent"),
		Clear:    r.boolean("clear"),
		Take:     r.text("take"),
		Delattr:  r.texts("delattr"),
		Variant:  r.expr("variant"),
	}
	props, ok := r.attr("properties").(*pickle.Dict)
	if !ok {
		if r.attr("properties") != nil {
			r.fail("properties: expected a dict, got %T", r.attr("properties"))
		}
		return n
	}
	props.Each(func(k, v pickle.Value) {
		name, _ := textOf(k)
		n.Properties = append(n.Properties, ast.StyleProp{Name: name, Value: r.exprOf("properties", v)})
	})
	return n
}

func buildShowLayer(r *record) ast.Stmt {
	return &ast.ShowLayer{
		Location: r.loc,
		Layer:    r.text("layer"),
		AtList:   r.texts("at_list"),
		ATL:      r.attr("atl"),
	}
}

func buildCamera(r *record) ast.Stmt {
	n := &ast.Camera{
		Location: r.loc,
		Layer:    r.text("layer"),
		AtList:   r.texts("at_list"),
		ATL:      r.attr("atl"),
	}
	if n.Layer == "" {
		n.Layer = "master"
	}
	return n
}

func buildRPY(r *record) ast.Stmt {
	return &ast.RPY{Location: r.loc, Rest: r.text("rest")}
}

func buildTestcase(r *record) ast.Stmt {
	return &ast.Testcase{Location: r.loc, Label: r.text("label"), Raw: r.attr("test")}
}

func attrOf(o *pickle.Object, name string) pickle.Value {
	v, _ := o.Attr(name)
	return v
}

// Lowered records.

func buildLoweredLabel(r *record) ast.Stmt {
	return &ast.Label{Location: r.loc, Name: r.required("name"), Synthetic: true}
}

func buildLoweredJump(r *record) ast.Stmt {
	return &ast.Jump{Location: r.loc, Target: r.required("target"), Synthetic: true}
}

func buildCondJump(r *record) ast.Stmt {
	n := &ast.CondHeader{Location: r.loc, Cond: r.expr("condition"), Target: r.required("target")}
	if n.Cond == nil {
		r.fail("condition: missing")
	}
	return n
}

func buildLoopJump(r *record) ast.Stmt {
	n := &ast.LoopHeader{Location: r.loc, Cond: r.expr("condition"), Target: r.required("target")}
	if n.Cond == nil {
		r.fail("condition: missing")
	}
	return n
}

func buildLoweredMenu(r *record) ast.Stmt {
	n := &ast.Menu{
		Location: r.loc,
		Set:      r.text("set"),
		With:     r.text("with_"),
		Args:     r.args("arguments"),
		Lowered:  true,
	}
	items, ok := sequence(r.attr("items"))
	if !ok {
		r.fail("items: expected a list, got %T", r.attr("items"))
		return n
	}
	for _, it := range items {
		t, ok := it.(*pickle.Tuple)
		if !ok || t.Len() != 3 {
			r.fail("items: expected (caption, condition, target), got %T", it)
			return n
		}
		c := &ast.MenuChoice{Location: r.loc, Cond: r.exprOf("items", t.At(1))}
		c.Caption, _ = textOf(t.At(0))
		if c.Cond != nil && !c.Cond.Plain {
			c.Line = c.Cond.Line
		}
		if t.At(2) == nil {
			c.IsCaption = true
		} else if c.Target, ok = textOf(t.At(2)); !ok || c.Target == "" {
			r.fail("items: choice target is %T", t.At(2))
		}
		n.Choices = append(n.Choices, c)
	}
	return n
}

func buildLoweredTranslate(r *record) ast.Stmt {
	return &ast.TranslationBlock{
		Location:   r.loc,
		Identifier: r.required("identifier"),
		Language:   r.text("language"),
		Lowered:    true,
	}
}
