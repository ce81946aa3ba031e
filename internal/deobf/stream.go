package deobf

import (
	"bytes"
	"fmt"

	"github.com/jiang0681/unrpyc/internal/pickle"
)

// decoyGlobal removes class references that are pushed and immediately
// discarded. They never reach the object graph but trip loaders that resolve
// every global eagerly.
type decoyGlobal struct{}

func (decoyGlobal) Name() string { return "decoy-global" }
func (decoyGlobal) Level() Level { return LevelStream }
func (decoyGlobal) Tier() Tier   { return TierDefault }

func (s decoyGlobal) Apply(data []byte) ([]byte, []Finding) {
	ops, err := pickle.Scan(data)
	if err != nil {
		return data, nil
	}
	var drop [][2]int
	for i := 0; i < len(ops); i++ {
		if j, ok := decoyAt(ops, i); ok {
			drop = append(drop, [2]int{ops[i].Pos, ops[j].End})
			i = j
		}
	}
	if len(drop) == 0 {
		return data, nil
	}
	var out bytes.Buffer
	last := 0
	for _, d := range drop {
		out.Write(data[last:d[0]])
		last = d[1]
	}
	out.Write(data[last:])
	return out.Bytes(), []Finding{{
		Signature: s.Name(), Level: LevelStream, Offset: drop[0][0], Resolved: true,
		Detail: fmt.Sprintf("removed %d discarded class references", len(drop)),
	}}
}

// decoyAt reports the index of the POP that ends a discarded class reference
// starting at ops[i]. Either GLOBAL or two pushed strings and STACK_GLOBAL
// qualify. A memoized reference is left alone since dropping its MEMOIZE would
// renumber every later memo slot.
func decoyAt(ops []pickle.Op, i int) (int, bool) {
	if i+1 < len(ops) && ops[i].Name() == "GLOBAL" && ops[i+1].Name() == "POP" {
		return i + 1, true
	}
	if i+3 < len(ops) && pushesString(ops[i]) && pushesString(ops[i+1]) &&
		ops[i+2].Name() == "STACK_GLOBAL" && ops[i+3].Name() == "POP" {
		return i + 3, true
	}
	return 0, false
}

func pushesString(op pickle.Op) bool {
	switch op.Name() {
	case "SHORT_BINUNICODE", "BINUNICODE", "BINUNICODE8", "UNICODE":
		return true
	}
	return false
}

// trailingData flags bytes after the STOP opcode. They are never read, so the
// stream passes through unchanged, but their meaning is unknown.
type trailingData struct{}

func (trailingData) Name() string { return "trailing-data" }
func (trailingData) Level() Level { return LevelStream }
func (trailingData) Tier() Tier   { return TierDefault }

func (s trailingData) Apply(data []byte) ([]byte, []Finding) {
	ops, err := pickle.Scan(data)
	if err != nil || len(ops) == 0 {
		return data, nil
	}
	last := ops[len(ops)-1]
	if last.Name() != "STOP" || last.End == len(data) {
		return data, nil
	}
	return data, []Finding{{
		Signature: s.Name(), Level: LevelStream, Offset: last.End,
		Detail: fmt.Sprintf("%d unexplained bytes after end of stream", len(data)-last.End),
	}}
}
