// Package rpyc reads and writes the compiled script container: a magic
// header, a little-endian slot table and zlib compressed slot payloads.
package rpyc

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jiang0681/unrpyc/internal/diag"
)

// Magic opens every RPC2 container.
const Magic = "RENPY RPC2"

// HeaderEntrySize is the size of one (slot, start, length) triple.
const HeaderEntrySize = 12

// SlotAST holds the zlib compressed pickle of the script.
const SlotAST = 1

// Kind distinguishes container generations.
type Kind int

const (
	// KindRPC2 is the slotted container written by modern engines.
	KindRPC2 Kind = iota
	// KindLegacy is a bare zlib blob with no header.
	KindLegacy
)

func (k Kind) String() string {
	switch k {
	case KindRPC2:
		return "rpc2"
	case KindLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// Slot is one entry of the slot table.
type Slot struct {
	ID     uint32
	Start  uint32
	Length uint32
}

// Container is a parsed compiled script file.
type Container struct {
	Kind  Kind
	Slots []Slot
	// OutOfOrder is set when slot ids do not count up from 1.
	OutOfOrder bool

	data []byte
}

// Parse reads the slot table of data. It does not decompress anything.
func Parse(data []byte) (*Container, error) {
	if !bytes.HasPrefix(data, []byte(Magic)) {
		return &Container{
			Kind:  KindLegacy,
			Slots: []Slot{{ID: SlotAST, Start: 0, Length: uint32(len(data))}},
			data:  data,
		}, nil
	}

	c := &Container{Kind: KindRPC2, data: data}
	slots, outOfOrder, err := ReadSlotTable(data, len(Magic))
	if err != nil {
		return nil, err
	}
	c.Slots = slots
	c.OutOfOrder = outOfOrder
	return c, nil
}

// ReadSlotTable decodes the triples starting at position until the
// (0, 0, 0) terminator.
func ReadSlotTable(data []byte, position int) ([]Slot, bool, error) {
	var slots []Slot
	outOfOrder := false
	expected := uint32(1)
	for {
		if position+HeaderEntrySize > len(data) {
			return nil, false, diag.Errorf(diag.StageContainer, diag.CodeFormatMismatch,
				"slot table runs past end of file at offset %d", position)
		}
		s := Slot{
			ID:     binary.LittleEndian.Uint32(data[position:]),
			Start:  binary.LittleEndian.Uint32(data[position+4:]),
			Length: binary.LittleEndian.Uint32(data[position+8:]),
		}
		if s.ID == 0 {
			break
		}
		if s.ID != expected {
			outOfOrder = true
		}
		expected++
		slots = append(slots, s)
		position += HeaderEntrySize
	}
	return slots, outOfOrder, nil
}

// Lookup returns the entry for slot id. When a slot id appears more than once
// the first entry wins.
func (c *Container) Lookup(id uint32) (Slot, bool) {
	for _, s := range c.Slots {
		if s.ID == id {
			return s, true
		}
	}
	return Slot{}, false
}

// Raw returns the still-compressed payload of slot id.
func (c *Container) Raw(id uint32) ([]byte, error) {
	s, ok := c.Lookup(id)
	if !ok {
		return nil, diag.Errorf(diag.StageContainer, diag.CodeFormatMismatch,
			"no slot %d in container header", id)
	}
	end := uint64(s.Start) + uint64(s.Length)
	if end > uint64(len(c.data)) {
		return nil, diag.Errorf(diag.StageContainer, diag.CodeFormatMismatch,
			"slot %d spans %d..%d beyond file size %d", id, s.Start, end, len(c.data))
	}
	return c.data[s.Start:end], nil
}

// Payload returns the decompressed pickle stream held in the AST slot.
func (c *Container) Payload() ([]byte, error) {
	raw, err := c.Raw(SlotAST)
	if err != nil {
		return nil, err
	}
	out, err := Inflate(raw)
	if err != nil {
		return nil, diag.Wrap(diag.StageContainer, diag.CodeFormatMismatch, err,
			"no zlib stream where slot %d should be", SlotAST)
	}
	return out, nil
}

// Bytes returns the file contents the container was parsed from.
func (c *Container) Bytes() []byte { return c.data }

// Inflate decompresses one zlib stream. Trailing bytes after the stream are
// ignored.
func Inflate(blob []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// InflatePrefix decompresses the zlib stream at the start of blob and reports
// how many input bytes it consumed.
func InflatePrefix(blob []byte) ([]byte, int, error) {
	br := bytes.NewReader(blob)
	r, err := zlib.NewReader(br)
	if err != nil {
		return nil, 0, err
	}
	out, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		return nil, 0, err
	}
	// bytes.Reader is an io.ByteReader, so flate consumes exactly the stream.
	return out, len(blob) - br.Len(), nil
}

// Deflate compresses data as a single zlib stream.
func Deflate(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, _ = w.Write(data)
	_ = w.Close()
	return buf.Bytes()
}

// Build writes a canonical RPC2 container holding the given, already
// compressed, slot payloads. Slot ids are assigned in ascending order of the
// map keys.
func Build(payloads map[uint32][]byte) []byte {
	ids := make([]uint32, 0, len(payloads))
	for id := range payloads {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	headerLen := len(Magic) + HeaderEntrySize*(len(ids)+1)
	var buf bytes.Buffer
	buf.WriteString(Magic)
	offset := uint32(headerLen)
	var entry [HeaderEntrySize]byte
	for _, id := range ids {
		binary.LittleEndian.PutUint32(entry[0:], id)
		binary.LittleEndian.PutUint32(entry[4:], offset)
		binary.LittleEndian.PutUint32(entry[8:], uint32(len(payloads[id])))
		buf.Write(entry[:])
		offset += uint32(len(payloads[id]))
	}
	buf.Write(make([]byte, HeaderEntrySize))
	for _, id := range ids {
		buf.Write(payloads[id])
	}
	return buf.Bytes()
}

// SourceExt maps a compiled script path to the path its output is written to.
func SourceExt(path string, dump bool) (string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	if dump {
		return base + ".txt", nil
	}
	switch strings.ToLower(ext) {
	case ".rpyc":
		return base + ".rpy", nil
	case ".rpymc":
		return base + ".rpym", nil
	}
	return "", fmt.Errorf("rpyc: %s is not a compiled script", path)
}

// IsCompiledScript reports whether path has a compiled script extension.
func IsCompiledScript(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".rpyc", ".rpymc":
		return true
	}
	return false
}
