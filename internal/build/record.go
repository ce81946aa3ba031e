package build

import (
	"fmt"

	"github.com/jiang0681/unrpyc/internal/ast"
	"github.com/jiang0681/unrpyc/internal/pickle"
	"github.com/jiang0681/unrpyc/internal/schema"
)

// record reads the attributes of one statement. The first layout error is
// kept in err and later reads return zero values, so a constructor can read
// all of its fields and check once at the end.
type record struct {
	b    *Builder
	o    *pickle.Object
	kind schema.Kind
	loc  ast.Location
	err  error
}

func (r *record) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf(format, args...)
	}
}

func (r *record) attr(name string) pickle.Value {
	v, _ := r.o.Attr(name)
	return v
}

func (r *record) location() ast.Location {
	loc := ast.Location{Ref: ast.NoRef}
	if f, ok := r.attr("filename").(string); ok {
		loc.File = f
		loc.Ref = r.b.ref(f)
	}
	if n, ok := r.attr("linenumber").(int64); ok {
		loc.Line = int(n)
	}
	return loc
}

func (b *Builder) ref(v pickle.Value) int {
	if b.memo == nil {
		return ast.NoRef
	}
	if id, ok := b.memo.IDOf(v); ok {
		return id
	}
	return ast.NoRef
}

// text accepts a string, an expression record or None.
func (r *record) text(name string) string {
	s, ok := textOf(r.attr(name))
	if !ok {
		r.fail("%s: expected text, got %T", name, r.attr(name))
	}
	return s
}

// required is text that must be present.
func (r *record) required(name string) string {
	if r.attr(name) == nil {
		r.fail("%s: missing", name)
		return ""
	}
	return r.text(name)
}

func textOf(v pickle.Value) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case pickle.Bytes:
		return string(t), true
	case *pickle.Object:
		if isExprRecord(t) && len(t.Args) > 0 {
			return textOf(t.Args[0])
		}
	}
	return "", false
}

func (r *record) boolean(name string) bool {
	switch t := r.attr(name).(type) {
	case nil:
		return false
	case bool:
		return t
	case int64:
		return t != 0
	}
	r.fail("%s: expected bool, got %T", name, r.attr(name))
	return false
}

func (r *record) integer(name string) int {
	n, ok := r.attr(name).(int64)
	if !ok {
		r.fail("%s: expected int, got %T", name, r.attr(name))
	}
	return int(n)
}

// texts reads a list or tuple of strings; None is an empty list.
func (r *record) texts(name string) []string {
	return r.textsOf(name, r.attr(name))
}

func (r *record) textsOf(name string, v pickle.Value) []string {
	if v == nil {
		return nil
	}
	items, ok := sequence(v)
	if !ok {
		r.fail("%s: expected a sequence, got %T", name, v)
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := textOf(it)
		if !ok {
			r.fail("%s: expected text items, got %T", name, it)
			return nil
		}
		out = append(out, s)
	}
	return out
}

func sequence(v pickle.Value) ([]pickle.Value, bool) {
	switch t := v.(type) {
	case *pickle.List:
		return t.Items, true
	case *pickle.Tuple:
		return t.Items, true
	case *pickle.Set:
		return t.Items(), true
	}
	return nil, false
}

// block builds a nested statement list; None is an empty block.
func (r *record) block(name string) []ast.Stmt {
	return r.blockOf(name, r.attr(name))
}

func (r *record) blockOf(name string, v pickle.Value) []ast.Stmt {
	if v == nil {
		return nil
	}
	items, ok := sequence(v)
	if !ok {
		r.fail("%s: expected a statement list, got %T", name, v)
		return nil
	}
	return r.b.Block(items)
}

func isExprRecord(o *pickle.Object) bool {
	return o.Class != nil && o.Class.Name == "PyExpr" &&
		(o.Class.Module == "renpy.ast" || o.Class.Module == "renpy.astsupport")
}

func isCodeRecord(o *pickle.Object) bool {
	return o.Class != nil && o.Class.Name == "PyCode" &&
		(o.Class.Module == "renpy.ast" || o.Class.Module == "renpy.astsupport")
}
