package deobf

import (
	"fmt"

	"github.com/jiang0681/unrpyc/internal/pickle"
)

// lineNumbers repairs statement line numbers that were overwritten with
// non-integers or negative values. In try-harder mode the line is re-derived
// from the location data embedded in the statement's own code objects before
// falling back to the preceding statement.
type lineNumbers struct{}

func (lineNumbers) Name() string { return "linenumber" }
func (lineNumbers) Tier() Tier   { return TierDefault }

func (l lineNumbers) Fix(stmts []pickle.Value, mode Mode) []Finding {
	var findings []Finding
	prev := int64(0)
	seen := make(map[*pickle.Object]bool)

	var visit func(v pickle.Value)
	visit = func(v pickle.Value) {
		switch t := v.(type) {
		case *pickle.Object:
			if seen[t] {
				return
			}
			seen[t] = true
			if isStatement(t) {
				if raw, ok := t.Attr("linenumber"); ok {
					if n, ok := raw.(int64); ok && n >= 0 {
						prev = n
					} else {
						findings = append(findings, l.repair(t, raw, prev, mode))
						prev, _ = mustLine(t)
					}
				}
			}
			t.Attrs.Each(func(_, child pickle.Value) { visit(child) })
		case *pickle.List:
			for _, it := range t.Items {
				visit(it)
			}
		case *pickle.Tuple:
			for _, it := range t.Items {
				visit(it)
			}
		}
	}
	for _, s := range stmts {
		visit(s)
	}
	return findings
}

func (l lineNumbers) repair(o *pickle.Object, raw pickle.Value, prev int64, mode Mode) Finding {
	f := Finding{Signature: l.Name(), Level: LevelStream, Resolved: true}
	if mode == ModeTryHarder {
		if n, ok := redundantLine(o); ok {
			o.SetAttr("linenumber", n)
			f.Detail = fmt.Sprintf("%s line %v re-derived as %d from embedded location", o.Class.Name, raw, n)
			return f
		}
	}
	o.SetAttr("linenumber", prev)
	f.Detail = fmt.Sprintf("%s line %v replaced by preceding line %d", o.Class.Name, raw, prev)
	if prev == 0 {
		f.Resolved = false
		f.Detail = fmt.Sprintf("%s line %v has no usable neighbour", o.Class.Name, raw)
	}
	return f
}

func mustLine(o *pickle.Object) (int64, bool) {
	v, _ := o.Attr("linenumber")
	n, ok := v.(int64)
	return n, ok
}

func isStatement(o *pickle.Object) bool {
	switch o.Class.Module {
	case "renpy.ast", "renpy.lowered":
		return o.Class.Name != "PyExpr" && o.Class.Name != "PyCode"
	}
	return false
}

// redundantLine looks for a line number stored a second time inside the
// statement: a PyCode location tuple or a PyExpr constructor argument.
func redundantLine(o *pickle.Object) (int64, bool) {
	for _, key := range []string{"code", "condition", "expr", "what"} {
		v, ok := o.Attr(key)
		if !ok {
			continue
		}
		child, ok := v.(*pickle.Object)
		if !ok {
			continue
		}
		switch child.Class.Name {
		case "PyCode":
			if st, ok := child.State.(*pickle.Tuple); ok {
				if loc, ok := st.At(2).(*pickle.Tuple); ok {
					if n, ok := loc.At(1).(int64); ok && n >= 0 {
						return n, true
					}
				}
			}
		case "PyExpr":
			if len(child.Args) >= 3 {
				if n, ok := child.Args[2].(int64); ok && n >= 0 {
					return n, true
				}
			}
		}
	}
	return 0, false
}
