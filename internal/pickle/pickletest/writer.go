// Package pickletest writes small protocol 2 pickle streams and compiled
// script containers for tests.
package pickletest

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"

	"github.com/jiang0681/unrpyc/internal/rpyc"
)

// Obj is an instance to pickle. With Args it is created by NEWOBJ, Attrs are
// applied as dict state (or as slot state when Slots is set) and State, when
// non-nil, is passed to BUILD verbatim.
type Obj struct {
	Module string
	Name   string
	Args   []any
	Attrs  []KV
	Slots  bool
	State  any
	// Reduce creates the object with REDUCE instead of NEWOBJ.
	Reduce bool
}

// Set appends or replaces an attribute.
func (o *Obj) Set(key string, v any) *Obj {
	for i := range o.Attrs {
		if o.Attrs[i].K == key {
			o.Attrs[i].V = v
			return o
		}
	}
	o.Attrs = append(o.Attrs, KV{key, v})
	return o
}

// KV is one ordered dict entry.
type KV struct {
	K any
	V any
}

// Tuple, List and Dict pickle as the matching Python containers.
type (
	Tuple []any
	List  []any
	Dict  []KV
	// FrozenSet and SetOf pickle via builtins constructors.
	FrozenSet []any
	SetOf     []any
	// Py2Str is written with SHORT_BINSTRING / BINSTRING.
	Py2Str string
	// Raw is copied into the stream unchanged.
	Raw []byte
	// Ref re-emits a memo id with BINGET.
	Ref int
	// BigInt forces LONG1 encoding.
	BigInt []byte
)

// Global is a bare class or function reference.
type Global struct {
	Module, Name string
}

// Writer is a minimal pickler.
type Writer struct {
	buf     bytes.Buffer
	proto   int
	nextID  int
	objs    map[*Obj]int
	strs    map[string]int
	globals map[[2]string]int
	// NoStringMemo disables memoizing repeated strings.
	NoStringMemo bool
}

// NewWriter starts a stream of the given protocol.
func NewWriter(proto int) *Writer {
	w := &Writer{
		proto:   proto,
		objs:    make(map[*Obj]int),
		strs:    make(map[string]int),
		globals: make(map[[2]string]int),
	}
	if proto >= 2 {
		w.buf.Write([]byte{0x80, byte(proto)})
	}
	return w
}

// Dumps pickles v with protocol 2 and returns the stream.
func Dumps(v any) []byte {
	w := NewWriter(2)
	w.Value(v)
	return w.Finish()
}

// Finish appends STOP and returns the stream.
func (w *Writer) Finish() []byte {
	w.buf.WriteByte('.')
	return w.buf.Bytes()
}

func (w *Writer) put() int {
	id := w.nextID
	w.nextID++
	if id < 256 {
		w.buf.Write([]byte{'q', byte(id)})
	} else {
		w.buf.WriteByte('r')
		w.u32(uint32(id))
	}
	return id
}

func (w *Writer) get(id int) {
	if id < 256 {
		w.buf.Write([]byte{'h', byte(id)})
	} else {
		w.buf.WriteByte('j')
		w.u32(uint32(id))
	}
}

func (w *Writer) u32(n uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], n)
	w.buf.Write(b[:])
}

// Value writes v.
func (w *Writer) Value(v any) {
	switch t := v.(type) {
	case nil:
		w.buf.WriteByte('N')
	case bool:
		if t {
			w.buf.WriteByte(0x88)
		} else {
			w.buf.WriteByte(0x89)
		}
	case int:
		w.int(int64(t))
	case int64:
		w.int(t)
	case float64:
		w.buf.WriteByte('G')
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(t))
		w.buf.Write(b[:])
	case string:
		if id, ok := w.strs[t]; ok && !w.NoStringMemo {
			w.get(id)
			return
		}
		w.buf.WriteByte('X')
		w.u32(uint32(len(t)))
		w.buf.WriteString(t)
		w.strs[t] = w.put()
	case Py2Str:
		if len(t) < 256 {
			w.buf.Write([]byte{'U', byte(len(t))})
		} else {
			w.buf.WriteByte('T')
			w.u32(uint32(len(t)))
		}
		w.buf.WriteString(string(t))
	case []byte:
		w.buf.WriteByte('B')
		w.u32(uint32(len(t)))
		w.buf.Write(t)
	case BigInt:
		w.buf.Write([]byte{0x8a, byte(len(t))})
		w.buf.Write(t)
	case Raw:
		w.buf.Write(t)
	case Ref:
		w.get(int(t))
	case Tuple:
		switch len(t) {
		case 0:
			w.buf.WriteByte(')')
		case 1, 2, 3:
			for _, it := range t {
				w.Value(it)
			}
			w.buf.WriteByte(0x85 + byte(len(t)-1))
		default:
			w.buf.WriteByte('(')
			for _, it := range t {
				w.Value(it)
			}
			w.buf.WriteByte('t')
		}
		w.put()
	case List:
		w.buf.WriteByte(']')
		w.put()
		if len(t) > 0 {
			w.buf.WriteByte('(')
			for _, it := range t {
				w.Value(it)
			}
			w.buf.WriteByte('e')
		}
	case Dict:
		w.buf.WriteByte('}')
		w.put()
		w.items(t)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := make(Dict, 0, len(keys))
		for _, k := range keys {
			d = append(d, KV{k, t[k]})
		}
		w.Value(d)
	case SetOf:
		w.global("builtins", "set")
		w.Value(Tuple{List(t)})
		w.buf.WriteByte('R')
		w.put()
	case FrozenSet:
		w.global("builtins", "frozenset")
		w.Value(Tuple{List(t)})
		w.buf.WriteByte('R')
		w.put()
	case Global:
		w.global(t.Module, t.Name)
	case *Obj:
		w.object(t)
	default:
		panic("pickletest: unsupported value")
	}
}

func (w *Writer) int(n int64) {
	switch {
	case n >= 0 && n < 256:
		w.buf.Write([]byte{'K', byte(n)})
	case n >= 0 && n < 65536:
		w.buf.Write([]byte{'M', byte(n), byte(n >> 8)})
	case n >= math.MinInt32 && n <= math.MaxInt32:
		w.buf.WriteByte('J')
		w.u32(uint32(int32(n)))
	default:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(n))
		w.buf.Write([]byte{0x8a, 8})
		w.buf.Write(b[:])
	}
}

func (w *Writer) items(d Dict) {
	if len(d) == 0 {
		return
	}
	w.buf.WriteByte('(')
	for _, kv := range d {
		w.Value(kv.K)
		w.Value(kv.V)
	}
	w.buf.WriteByte('u')
}

func (w *Writer) global(module, name string) {
	key := [2]string{module, name}
	if id, ok := w.globals[key]; ok {
		w.get(id)
		return
	}
	w.buf.WriteByte('c')
	w.buf.WriteString(module + "\n" + name + "\n")
	w.globals[key] = w.put()
}

func (w *Writer) object(o *Obj) {
	if id, ok := w.objs[o]; ok {
		w.get(id)
		return
	}
	w.global(o.Module, o.Name)
	w.Value(Tuple(o.Args))
	if o.Reduce {
		w.buf.WriteByte('R')
	} else {
		w.buf.WriteByte(0x81)
	}
	w.objs[o] = w.put()

	switch {
	case o.State != nil:
		w.Value(o.State)
		w.buf.WriteByte('b')
	case len(o.Attrs) > 0 && o.Slots:
		w.Value(Tuple{nil, Dict(o.Attrs)})
		w.buf.WriteByte('b')
	case len(o.Attrs) > 0:
		w.Value(Dict(o.Attrs))
		w.buf.WriteByte('b')
	}
}

// Container wraps a pickle stream into an RPC2 container the way the engine
// writes it: slot 1 is the compressed stream, slot 2 a compressed copy of the
// source checksum.
func Container(stream []byte) []byte {
	return rpyc.Build(map[uint32][]byte{
		1: rpyc.Deflate(stream),
		2: rpyc.Deflate([]byte("\x00")),
	})
}
