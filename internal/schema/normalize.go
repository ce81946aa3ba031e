package schema

import (
	"github.com/jiang0681/unrpyc/internal/diag"
	"github.com/jiang0681/unrpyc/internal/pickle"
)

const (
	legacyImagePriority = 990
	imagePriority       = 500
)

// Statements returns the statement list of a pickled (data, statements) root.
func Statements(root pickle.Value) ([]pickle.Value, error) {
	t, ok := root.(*pickle.Tuple)
	if !ok || t.Len() != 2 {
		return nil, diag.Errorf(diag.StageVersion, diag.CodeIntegrity,
			"script root is %T, expected a (data, statements) pair", root)
	}
	l, ok := t.At(1).(*pickle.List)
	if !ok {
		return nil, diag.Errorf(diag.StageVersion, diag.CodeIntegrity,
			"script statements are %T, expected a list", t.At(1))
	}
	return l.Items, nil
}

// Normalize rewrites every statement record reachable from stmts in place:
// renamed attributes get their canonical names, omitted attributes get their
// defaults, and pre-threshold files get the compatibility transforms.
func (s *Schema) Normalize(stmts []pickle.Value, rep *diag.Reporter) {
	seen := make(map[any]bool)
	var visit func(v pickle.Value)
	visit = func(v pickle.Value) {
		switch t := v.(type) {
		case *pickle.Object:
			if seen[t] {
				return
			}
			seen[t] = true
			if k, ok := s.Table.KindOf(t.Class); ok && k.IsStatement() {
				s.normalizeRecord(k, t, rep)
			}
			t.Attrs.Each(func(_, child pickle.Value) { visit(child) })
			visit(t.State)
			for _, a := range t.Args {
				visit(a)
			}
		case *pickle.List:
			if seen[t] {
				return
			}
			seen[t] = true
			for _, it := range t.Items {
				visit(it)
			}
		case *pickle.Tuple:
			if seen[t] {
				return
			}
			seen[t] = true
			for _, it := range t.Items {
				visit(it)
			}
		case *pickle.Dict:
			if seen[t] {
				return
			}
			seen[t] = true
			t.Each(func(_, child pickle.Value) { visit(child) })
		}
	}
	for _, st := range stmts {
		visit(st)
	}
}

func (s *Schema) normalizeRecord(k Kind, o *pickle.Object, rep *diag.Reporter) {
	for from, to := range s.Table.Renames[k] {
		if v, ok := o.Attr(from); ok {
			if !o.HasAttr(to) {
				o.SetAttr(to, v)
			}
			o.Attrs.Delete(from)
		}
	}
	for _, a := range s.Table.Defaults[k] {
		if !o.HasAttr(a.Name) {
			o.SetAttr(a.Name, a.Default())
		}
	}
	if k == Init && s.Compat() {
		s.shiftImagePriority(o, rep)
	}
}

// shiftImagePriority moves implicit image init blocks from the old priority
// to the modern one, so the emitter sees a single convention.
func (s *Schema) shiftImagePriority(o *pickle.Object, rep *diag.Reporter) {
	prio, _ := o.Attr("priority")
	if n, ok := prio.(int64); !ok || n != legacyImagePriority {
		return
	}
	block, _ := o.Attr("block")
	l, ok := block.(*pickle.List)
	if !ok || len(l.Items) != 1 {
		return
	}
	child, ok := l.Items[0].(*pickle.Object)
	if !ok {
		return
	}
	if k, _ := s.Table.KindOf(child.Class); k != Image {
		return
	}
	o.SetAttr("priority", int64(imagePriority))
	if rep != nil {
		line, _ := o.Attr("linenumber")
		n, _ := line.(int64)
		rep.Note(diag.StageVersion, diag.CodeImplicitInitPriorityShift, int(n),
			"image init priority %d rewritten to %d for Ren'Py %s", legacyImagePriority, imagePriority, s.Version)
	}
}
