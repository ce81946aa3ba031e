package schema

import (
	"errors"
	"testing"

	"github.com/jiang0681/unrpyc/internal/diag"
	"github.com/jiang0681/unrpyc/internal/pickle"
	"github.com/jiang0681/unrpyc/internal/rpyc"
)

func dataWith(version int64) *pickle.Dict {
	d := pickle.NewDict()
	d.Set("version", version)
	return d
}

func TestDetectFamilies(t *testing.T) {
	tests := []struct {
		name    string
		header  Header
		family  Family
		version Version
	}{
		{"py3 default", Header{Kind: rpyc.KindRPC2, Protocol: 2}, FamilyRenPy8, Version{8, 0, 0}},
		{"py2 default", Header{Kind: rpyc.KindRPC2, Protocol: 2, Python2: true}, FamilyRenPy7, Version{7, 0, 0}},
		{"script constant ignored", Header{Kind: rpyc.KindRPC2, Protocol: 2, Python2: true, Data: dataWith(5003000)}, FamilyRenPy7, Version{7, 0, 0}},
		{"refined", Header{Kind: rpyc.KindRPC2, Protocol: 2, Python2: true, Data: dataWith(7004011)}, FamilyRenPy7, Version{7, 4, 11}},
		{"cross family stamp ignored", Header{Kind: rpyc.KindRPC2, Protocol: 2, Data: dataWith(7005000)}, FamilyRenPy8, Version{8, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Detect(tt.header)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Family != tt.family || s.Version != tt.version {
				t.Fatalf("expected %s %s, got %s %s", tt.family, tt.version, s.Family, s.Version)
			}
			if s.Table == nil || s.Table.Family != tt.family {
				t.Fatalf("expected %s table", tt.family)
			}
		})
	}
}

func TestDetectUnsupported(t *testing.T) {
	for _, h := range []Header{
		{Kind: rpyc.KindLegacy, Protocol: 2},
		{Kind: rpyc.KindRPC2, Protocol: 1, Python2: true},
		{Kind: rpyc.KindRPC2, Protocol: 2, Python2: true, Data: dataWith(6099014)},
	} {
		_, err := Detect(h)
		if !errors.Is(err, diag.ErrUnsupportedVersion) {
			t.Fatalf("expected unsupported version for %+v, got %v", h, err)
		}
		var de *diag.Error
		if !errors.As(err, &de) || de.Help == "" {
			t.Fatalf("expected a hint towards the legacy tool, got %v", err)
		}
	}
}

func TestInitOffsetGate(t *testing.T) {
	below := &Schema{Version: Version{7, 3, 5}}
	at := &Schema{Version: InitOffsetThreshold}

	if below.InitOffsetInference(false) || !below.InitOffsetInference(true) {
		t.Fatalf("expected the flag to decide below the threshold")
	}
	if at.InitOffsetInference(false) != at.InitOffsetInference(true) {
		t.Fatalf("expected the flag to have no effect at the threshold")
	}
	if !below.Compat() || at.Compat() {
		t.Fatalf("expected compat only below %s", InitOffsetThreshold)
	}
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("7.4")
	if err != nil || v != (Version{7, 4, 0}) {
		t.Fatalf("expected 7.4.0, got %v (%v)", v, err)
	}
	if _, err := ParseVersion("seven"); err == nil {
		t.Fatalf("expected an error")
	}
	if !(Version{7, 3, 9}).Less(Version{7, 10, 0}) {
		t.Fatalf("expected numeric ordering of minor versions")
	}
}

func TestTableIsTotal(t *testing.T) {
	for _, f := range []Family{FamilyRenPy7, FamilyRenPy8} {
		tab := TableFor(f)
		reg := tab.Registry()
		for _, c := range tab.Tags() {
			if _, ok := tab.KindOf(&c); !ok {
				t.Fatalf("%s: tag %s has no kind", f, c.String())
			}
			if reg.Lookup(c.Module, c.Name) != pickle.KindObject {
				t.Fatalf("%s: tag %s not registered", f, c.String())
			}
		}
	}
	if _, ok := TableFor(FamilyRenPy7).KindOf(&pickle.Class{Module: "renpy.astsupport", Name: "PyExpr"}); ok {
		t.Fatalf("renpy7 must not know renpy.astsupport")
	}
	if !TableFor(FamilyRenPy8).AcceptsPyCode(6) || TableFor(FamilyRenPy7).AcceptsPyCode(6) {
		t.Fatalf("hashed PyCode state is an 8.x layout")
	}
}

func object(module, name string, attrs map[string]pickle.Value) *pickle.Object {
	o := pickle.NewObject(&pickle.Class{Module: module, Name: name})
	for k, v := range attrs {
		o.SetAttr(k, v)
	}
	return o
}

func TestNormalizeRenamesAndDefaults(t *testing.T) {
	s := &Schema{Version: Version{8, 4, 0}, Family: FamilyRenPy8, Table: TableFor(FamilyRenPy8)}
	say := object("renpy.ast", "Say", map[string]pickle.Value{"what": "hi"})
	label := object("renpy.ast", "Label", map[string]pickle.Value{
		"_name": "start",
		"block": &pickle.List{Items: []pickle.Value{say}},
	})

	s.Normalize([]pickle.Value{label}, nil)

	if name, _ := label.Attr("name"); name != "start" {
		t.Fatalf("expected name=start, got %v", name)
	}
	if label.HasAttr("_name") {
		t.Fatalf("expected _name to be removed")
	}
	if v, _ := say.Attr("interact"); v != true {
		t.Fatalf("expected nested say to default interact=true, got %v", v)
	}
	if v, _ := say.Attr("what"); v != "hi" {
		t.Fatalf("defaults must not override pickled attributes, got %v", v)
	}
}

func TestNormalizeImagePriorityCompat(t *testing.T) {
	mk := func() *pickle.Object {
		img := object("renpy.ast", "Image", map[string]pickle.Value{"imgname": pickle.NewTuple("bg")})
		return object("renpy.ast", "Init", map[string]pickle.Value{
			"priority": int64(990),
			"block":    &pickle.List{Items: []pickle.Value{img}},
		})
	}

	old := &Schema{Version: Version{7, 3, 0}, Family: FamilyRenPy7, Table: TableFor(FamilyRenPy7)}
	rep := diag.NewReporter("x.rpyc")
	init := mk()
	old.Normalize([]pickle.Value{init}, rep)
	if p, _ := init.Attr("priority"); p != int64(500) {
		t.Fatalf("expected priority 500, got %v", p)
	}
	if rep.Count(diag.CodeImplicitInitPriorityShift) != 1 {
		t.Fatalf("expected one note, got %s", rep)
	}

	modern := &Schema{Version: Version{7, 4, 0}, Family: FamilyRenPy7, Table: TableFor(FamilyRenPy7)}
	init = mk()
	modern.Normalize([]pickle.Value{init}, nil)
	if p, _ := init.Attr("priority"); p != int64(990) {
		t.Fatalf("expected priority untouched at the threshold, got %v", p)
	}
}

func TestStatements(t *testing.T) {
	stmts := &pickle.List{Items: []pickle.Value{"a"}}
	got, err := Statements(pickle.NewTuple(pickle.NewDict(), stmts))
	if err != nil || len(got) != 1 {
		t.Fatalf("expected one statement, got %v (%v)", got, err)
	}
	if _, err := Statements(stmts); !errors.Is(err, diag.ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
}
