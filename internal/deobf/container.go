package deobf

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/jiang0681/unrpyc/internal/rpyc"
)

// slotOrder rewrites slot tables whose ids are shuffled or duplicated into
// the canonical layout. Duplicate AST slots are decoys: the first one that
// actually inflates wins.
type slotOrder struct{}

func (slotOrder) Name() string { return "slot-order" }
func (slotOrder) Level() Level { return LevelContainer }
func (slotOrder) Tier() Tier   { return TierDefault }

func (s slotOrder) Apply(data []byte) ([]byte, []Finding) {
	if !bytes.HasPrefix(data, []byte(rpyc.Magic)) {
		return data, nil
	}
	c, err := rpyc.Parse(data)
	if err != nil {
		return data, nil
	}

	seen := make(map[uint32]int)
	var unknown []uint32
	for _, sl := range c.Slots {
		seen[sl.ID]++
		if sl.ID > 2 && seen[sl.ID] == 1 {
			unknown = append(unknown, sl.ID)
		}
	}
	duplicates := false
	for _, n := range seen {
		if n > 1 {
			duplicates = true
		}
	}

	var findings []Finding
	if len(unknown) > 0 {
		findings = append(findings, Finding{
			Signature: s.Name(), Level: LevelContainer, Offset: len(rpyc.Magic),
			Detail: fmt.Sprintf("unexpected slot ids %v left in place", unknown),
		})
	}
	if !c.OutOfOrder && !duplicates {
		return data, findings
	}

	payloads := make(map[uint32][]byte)
	for _, sl := range c.Slots {
		end := uint64(sl.Start) + uint64(sl.Length)
		if end > uint64(len(data)) {
			continue
		}
		blob := data[sl.Start:end]
		if _, taken := payloads[sl.ID]; taken {
			if sl.ID != rpyc.SlotAST {
				continue
			}
			if _, err := rpyc.Inflate(payloads[sl.ID]); err == nil {
				continue
			}
		}
		payloads[sl.ID] = blob
	}
	if _, ok := payloads[rpyc.SlotAST]; !ok {
		return data, findings
	}
	findings = append(findings, Finding{
		Signature: s.Name(), Level: LevelContainer, Offset: len(rpyc.Magic), Resolved: true,
		Detail: fmt.Sprintf("rebuilt slot table of %d entries (out of order: %v, duplicates: %v)",
			len(c.Slots), c.OutOfOrder, duplicates),
	})
	return rpyc.Build(payloads), findings
}

// slotLength repairs an AST slot whose length prefix does not match the
// compressed stream that starts at its offset.
type slotLength struct{}

func (slotLength) Name() string { return "slot-length" }
func (slotLength) Level() Level { return LevelContainer }
func (slotLength) Tier() Tier   { return TierDefault }

func (s slotLength) Apply(data []byte) ([]byte, []Finding) {
	if !bytes.HasPrefix(data, []byte(rpyc.Magic)) {
		return data, nil
	}
	c, err := rpyc.Parse(data)
	if err != nil {
		return data, nil
	}
	ast, ok := c.Lookup(rpyc.SlotAST)
	if !ok || int(ast.Start) >= len(data) {
		return data, nil
	}
	if raw, err := c.Raw(rpyc.SlotAST); err == nil {
		if _, err := rpyc.Inflate(raw); err == nil {
			return data, nil
		}
	}
	_, n, err := rpyc.InflatePrefix(data[ast.Start:])
	if err != nil {
		return data, nil
	}

	payloads := map[uint32][]byte{rpyc.SlotAST: data[ast.Start : int(ast.Start)+n]}
	for _, sl := range c.Slots {
		if sl.ID == rpyc.SlotAST {
			continue
		}
		if end := uint64(sl.Start) + uint64(sl.Length); end <= uint64(len(data)) {
			if _, taken := payloads[sl.ID]; !taken {
				payloads[sl.ID] = data[sl.Start:end]
			}
		}
	}
	return rpyc.Build(payloads), []Finding{{
		Signature: s.Name(), Level: LevelContainer, Offset: int(ast.Start), Resolved: true,
		Detail: fmt.Sprintf("slot %d length %d corrected to %d", rpyc.SlotAST, ast.Length, n),
	}}
}

// extractor is a try-harder strategy that finds slot 1 candidates without
// trusting the header.
type extractor struct {
	name    string
	extract func(data []byte) [][]byte
}

var extractors = []extractor{
	{name: "header-scan", extract: headerScan},
	{name: "zlib-scan", extract: zlibScan},
}

// headerScan looks for the slot table anywhere in the file by its shape:
// slot 1 followed by slot 2 starting where slot 1 ends, then the terminator.
func headerScan(data []byte) [][]byte {
	var out [][]byte
	for pos := 0; pos+36 <= len(data); pos++ {
		var w [9]uint32
		for i := range w {
			w[i] = binary.LittleEndian.Uint32(data[pos+4*i:])
		}
		if !(w[0] == 1 && w[3] == 2 && w[6] == 0 && w[1]+w[2] == w[4]) {
			continue
		}
		slots, _, err := rpyc.ReadSlotTable(data, pos)
		if err != nil {
			continue
		}
		for _, sl := range slots {
			if sl.ID != rpyc.SlotAST {
				continue
			}
			end := uint64(sl.Start) + uint64(sl.Length)
			if end > uint64(len(data)) {
				break
			}
			blob := data[sl.Start:end]
			if inflated, err := rpyc.Inflate(blob); err == nil {
				blob = inflated
			}
			out = append(out, blob)
			break
		}
	}
	return out
}

// zlibScan inflates every plausible zlib stream in the file, in file order.
func zlibScan(data []byte) [][]byte {
	var out [][]byte
	for i := 0; i+1 < len(data); i++ {
		if data[i] != 0x78 || (int(data[i])*256+int(data[i+1]))%31 != 0 {
			continue
		}
		inflated, n, err := rpyc.InflatePrefix(data[i:])
		if err != nil {
			continue
		}
		out = append(out, inflated)
		i += n - 1
	}
	return out
}
