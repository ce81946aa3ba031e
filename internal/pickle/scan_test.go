package pickle

import "testing"

func TestScanStopsAtStop(t *testing.T) {
	ops, err := Scan([]byte("\x80\x02K\x01.trailing"))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(ops) != 3 {
		t.Fatalf("expected 3 ops, got %d", len(ops))
	}
	if ops[1].Name() != "BININT1" || ops[1].Pos != 2 || ops[1].End != 4 {
		t.Fatalf("unexpected op %+v", ops[1])
	}
}

func TestScanTwoLineArgument(t *testing.T) {
	ops, err := Scan([]byte("cmod\nname\n0."))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if ops[0].Name() != "GLOBAL" || string(ops[0].Arg) != "mod\nname\n" {
		t.Fatalf("unexpected op %+v", ops[0])
	}
}

func TestUnescapeRepr(t *testing.T) {
	got, err := unescapeRepr(`'a\x41\101\'\\'`)
	if err != nil {
		t.Fatalf("unescape: %v", err)
	}
	if string(got) != `aAA'\` {
		t.Fatalf("unexpected %q", got)
	}
}
