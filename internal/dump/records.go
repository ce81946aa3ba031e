package dump

import (
	"reflect"
	"sort"
	"strings"

	"github.com/jiang0681/unrpyc/internal/pickle"
)

func (d *dumper) record(v pickle.Value) {
	if !d.enter(v) {
		return
	}
	defer d.leave()

	switch x := v.(type) {
	case *pickle.Tuple:
		d.list("(", ")", values(x.Items))
	case *pickle.List:
		if x.Class != nil {
			d.p("<class " + x.Class.String() + ">")
		}
		d.list("[", "]", values(x.Items))
	case *pickle.Set:
		if x.Class != nil {
			d.p("<class " + x.Class.String() + ">")
		}
		if x.Frozen {
			d.list("frozenset({", "})", values(x.Items()))
		} else {
			d.list("set({", "})", values(x.Items()))
		}
	case *pickle.Dict:
		if x.Class != nil {
			d.p("<class " + x.Class.String() + ">")
		}
		d.dict(x)
	case *pickle.Class:
		d.p("<class " + x.String() + ">")
	case *pickle.Object:
		d.rawObject(x)
	}
}

func values(items []pickle.Value) []reflect.Value {
	out := make([]reflect.Value, len(items))
	for i := range items {
		out[i] = reflect.ValueOf(&items[i]).Elem()
	}
	return out
}

func (d *dumper) dict(x *pickle.Dict) {
	keys := x.Keys()
	d.p("{")
	d.ind(1, len(keys))
	for i, k := range keys {
		v, _ := x.Get(k)
		d.value(reflect.ValueOf(&k).Elem())
		d.p(": ")
		d.value(reflect.ValueOf(&v).Elem())
		if i+1 != len(keys) {
			d.p(",")
			d.newline()
		}
	}
	d.ind(-1, len(keys))
	d.p("}")
}

// rawObject prints an instance with its attributes in name order.
func (d *dumper) rawObject(o *pickle.Object) {
	var fs []field
	var names []string
	o.Attrs.Each(func(k, _ pickle.Value) {
		if name, ok := k.(string); ok && !strings.HasPrefix(name, "_") {
			names = append(names, name)
		}
	})
	sort.Strings(names)
	for _, name := range names {
		v, _ := o.Attr(name)
		if d.opts.Comparable {
			var keep bool
			if v, keep = d.comparable(o, name, v); !keep {
				continue
			}
		}
		fs = append(fs, field{name, reflect.ValueOf(&v).Elem()})
	}
	if o.State != nil {
		fs = append(fs, field{"state", reflect.ValueOf(&o.State).Elem()})
	}
	if len(o.ListItems) > 0 {
		items := pickle.NewTuple(o.ListItems...)
		fs = append(fs, field{"list_items", reflect.ValueOf(items)})
	}
	if o.DictItems != nil && o.DictItems.Len() > 0 {
		fs = append(fs, field{"dict_items", reflect.ValueOf(o.DictItems)})
	}

	// Expressions are strings carrying a location.
	if o.Class.Name == "PyExpr" && len(o.Args) > 0 {
		src, _ := o.Args[0].(string)
		if !d.opts.NoPyExpr {
			d.fields(fs, o.Class.String())
			d.p(" = ")
		}
		d.str(src)
		return
	}
	d.fields(fs, o.Class.String())
}

// comparable rewrites or hides an attribute whose value depends on where or
// with which engine build the script was compiled.
func (d *dumper) comparable(o *pickle.Object, name string, v pickle.Value) (pickle.Value, bool) {
	class := o.Class.Name
	switch name {
	case "serial", "col_offset":
		return int64(0), true
	case "filename":
		if s, ok := v.(string); ok {
			return baseName(s), true
		}
	case "name":
		if t, ok := v.(*pickle.Tuple); ok && t.Len() > 0 {
			return pickle.NewTuple(baseOf(t.At(0)), int64(0), int64(0)), true
		}
	case "location", "loc":
		if t, ok := v.(*pickle.Tuple); ok && t.Len() >= 2 {
			items := append([]pickle.Value{baseOf(t.At(0))}, t.Items[1:]...)
			if len(items) > 2 {
				items[len(items)-1] = int64(0)
			}
			return pickle.NewTuple(items...), true
		}
	case "hide":
		if v == false && (class == "Python" || class == "Label") {
			return nil, false
		}
	case "attributes", "temporary_attributes":
		if v == nil && class == "Say" {
			return nil, false
		}
	case "rollback":
		if v == "normal" && class == "Say" {
			return nil, false
		}
	case "block":
		if l, ok := v.(*pickle.List); ok && l.Len() == 0 && class == "UserStatement" {
			return nil, false
		}
	case "store":
		if v == "store" && class == "Python" {
			return nil, false
		}
	case "translatable":
		if class == "UserStatement" {
			return nil, false
		}
	case "parameters":
		if v == nil && class == "ScreenLangScreen" {
			return nil, false
		}
	case "hotspot":
		if class == "SLDisplayable" {
			return nil, false
		}
	}
	return v, true
}

func baseOf(v pickle.Value) pickle.Value {
	switch s := v.(type) {
	case string:
		return baseName(s)
	case pickle.Bytes:
		return pickle.Bytes(baseName(string(s)))
	}
	return v
}
