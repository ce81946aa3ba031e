// Package dump renders a script, or any raw record, as an indented tree for
// inspecting what the decompiler saw.
package dump

import (
	"fmt"
	"math/big"
	"path"
	"reflect"
	"strconv"
	"strings"

	"github.com/jiang0681/unrpyc/internal/ast"
	"github.com/jiang0681/unrpyc/internal/pickle"
)

// Options controls the dumper.
type Options struct {
	// Comparable strips directories from file names, zeroes serial numbers
	// and hides attributes whose presence varies between engine versions, so
	// dumps from different builds of one script can be diffed.
	Comparable bool
	// NoPyExpr prints expressions as bare strings.
	NoPyExpr bool
	// Indentation is one level of indentation. Empty means four spaces.
	Indentation string
}

// Script dumps every statement of s.
func Script(s *ast.Script, opts Options) string {
	return newDumper(opts).dump(reflect.ValueOf(s.Stmts))
}

// Value dumps a raw record.
func Value(v pickle.Value, opts Options) string {
	return newDumper(opts).dump(reflect.ValueOf(&v).Elem())
}

type dumper struct {
	opts   Options
	b      strings.Builder
	line   int
	indent int
	// passed is the stack of composite values being printed, with the line
	// each one started on.
	passed      []any
	passedWhere []int
}

func newDumper(opts Options) *dumper {
	if opts.Indentation == "" {
		opts.Indentation = "    "
	}
	return &dumper{opts: opts, line: 1}
}

func (d *dumper) dump(v reflect.Value) string {
	d.value(v)
	return d.b.String()
}

func (d *dumper) p(s string) {
	d.line += strings.Count(s, "\n")
	d.b.WriteString(s)
}

// ind starts a new line, changing the indentation by diff. Containers with
// fewer than two entries stay on one line.
func (d *dumper) ind(diff, n int) {
	if n > 1 {
		d.indent += diff
		d.newline()
	}
}

func (d *dumper) newline() {
	d.p("\n" + strings.Repeat(d.opts.Indentation, d.indent))
}

// enter guards against reference cycles. It returns false, after printing a
// marker, when key is already being printed.
func (d *dumper) enter(key any) bool {
	for i, k := range d.passed {
		if k == key {
			d.p(fmt.Sprintf("<circular reference to object on line %d>", d.passedWhere[i]))
			return false
		}
	}
	d.passed = append(d.passed, key)
	d.passedWhere = append(d.passedWhere, d.line)
	return true
}

func (d *dumper) leave() {
	d.passed = d.passed[:len(d.passed)-1]
	d.passedWhere = d.passedWhere[:len(d.passedWhere)-1]
}

func (d *dumper) value(v reflect.Value) {
	if !v.IsValid() {
		d.p("None")
		return
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			d.p("None")
			return
		}
		v = v.Elem()
	}

	switch x := v.Interface().(type) {
	case pickle.Bytes:
		d.bytes(string(x))
		return
	case *big.Int:
		if x == nil {
			d.p("None")
		} else {
			d.p(x.String())
		}
		return
	case *pickle.Tuple, *pickle.List, *pickle.Dict, *pickle.Set, *pickle.Class, *pickle.Object:
		d.record(x)
		return
	case *ast.Expr:
		d.expr(x)
		return
	case ast.Location:
		d.location(x)
		return
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			d.p("None")
			return
		}
		if !d.enter(v.Pointer()) {
			return
		}
		d.value(v.Elem())
		d.leave()
	case reflect.Struct:
		d.object(v)
	case reflect.Slice:
		if v.IsNil() {
			d.p("None")
			return
		}
		items := make([]reflect.Value, v.Len())
		for i := range items {
			items[i] = v.Index(i)
		}
		d.list("[", "]", items)
	case reflect.String:
		d.str(v.String())
	case reflect.Bool:
		if v.Bool() {
			d.p("True")
		} else {
			d.p("False")
		}
	case reflect.Int, reflect.Int64, reflect.Int32:
		d.p(strconv.FormatInt(v.Int(), 10))
	case reflect.Float64:
		d.p(strconv.FormatFloat(v.Float(), 'g', -1, 64))
	default:
		d.p(fmt.Sprint(v.Interface()))
	}
}

func (d *dumper) list(open, close string, items []reflect.Value) {
	d.p(open)
	d.ind(1, len(items))
	for i, it := range items {
		d.value(it)
		if i+1 != len(items) {
			d.p(",")
			d.newline()
		}
	}
	d.ind(-1, len(items))
	d.p(close)
}

type field struct {
	name  string
	value reflect.Value
}

func (d *dumper) fields(fs []field, name string) {
	d.p("<" + name)
	if len(fs) > 0 {
		d.p(" ")
	}
	d.ind(1, len(fs))
	for i, f := range fs {
		d.p("." + f.name + " = ")
		d.value(f.value)
		if i+1 != len(fs) {
			d.p(",")
			d.newline()
		}
	}
	d.ind(-1, len(fs))
	d.p(">")
}

// object prints an AST node. Embedded locations are flattened into the node.
func (d *dumper) object(v reflect.Value) {
	t := v.Type()
	var fs []field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		if sf.Anonymous && sf.Type == reflect.TypeOf(ast.Location{}) {
			fs = append(fs, d.locationFields(v.Field(i).Interface().(ast.Location))...)
			continue
		}
		fs = append(fs, field{snakeCase(sf.Name), v.Field(i)})
	}
	d.fields(fs, t.Name())
}

func (d *dumper) locationFields(l ast.Location) []field {
	file, ref := l.File, l.Ref
	if d.opts.Comparable {
		file = baseName(file)
		ref = 0
	}
	return []field{
		{"filename", reflect.ValueOf(file)},
		{"linenumber", reflect.ValueOf(l.Line)},
		{"ref", reflect.ValueOf(ref)},
	}
}

func (d *dumper) location(l ast.Location) {
	d.fields(d.locationFields(l), "Location")
}

func (d *dumper) expr(e *ast.Expr) {
	if e == nil {
		d.p("None")
		return
	}
	if !d.opts.NoPyExpr {
		d.fields(d.locationFields(e.Location), "PyExpr")
		d.p(" = ")
	}
	d.str(e.Source)
}

func (d *dumper) str(s string) {
	if !strings.Contains(s, "\n") {
		d.p(pyRepr(s))
		return
	}
	parts := strings.Split(s, "\n")
	d.p(`"""`)
	for i, part := range parts {
		if i > 0 {
			d.p("\n")
		}
		d.p(escape(part, '"'))
	}
	d.p(`"""`)
	d.newline()
}

func (d *dumper) bytes(s string) {
	if !strings.Contains(s, "\n") {
		d.p("b'" + escapeBytes(s, '\'') + "'")
		return
	}
	parts := strings.Split(s, "\n")
	d.p(`b"""`)
	for i, part := range parts {
		if i > 0 {
			d.p("\n")
		}
		d.p(escapeBytes(part, '"'))
	}
	d.p(`"""`)
	d.newline()
}

func baseName(file string) string {
	if file == "" {
		return ""
	}
	return path.Base(strings.ReplaceAll(file, `\`, "/"))
}

// snakeCase turns a Go field name such as ExplicitID into the engine's
// attribute style, explicit_id.
func snakeCase(name string) string {
	rs := []rune(name)
	var b strings.Builder
	for i, r := range rs {
		if isUpper(r) {
			if i > 0 && (!isUpper(rs[i-1]) || i+1 < len(rs) && !isUpper(rs[i+1])) {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
