package pickle

import (
	"encoding/binary"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/datawire/dlib/derror"
	"github.com/emirpasic/gods/stacks/arraystack"

	"github.com/jiang0681/unrpyc/internal/diag"
)

// Option configures an Unpickler.
type Option func(*Unpickler)

// WithRegistry sets the closed class registry. Without one only builtin
// types are known and every other class is opaque.
func WithRegistry(r *Registry) Option {
	return func(u *Unpickler) { u.registry = r }
}

// WithResync makes unknown opcodes skippable instead of fatal. Each skipped
// offset is reported in Result.Resynced.
func WithResync(on bool) Option {
	return func(u *Unpickler) { u.resync = on }
}

// Result is a fully materialized stream.
type Result struct {
	Root     Value
	Memo     *Memo
	Protocol int
	Python2  bool
	Resynced []int
}

// Unpickler executes a pickle stream against a value model instead of live
// Python objects. One Unpickler decodes one stream.
type Unpickler struct {
	data []byte
	pos  int

	stack     []Value
	metastack *arraystack.Stack
	memo      *Memo
	classes   map[Class]*Class

	registry *Registry
	resync   bool
	proto    int
	resynced []int
}

// Load decodes data, which must end in a STOP opcode.
func Load(data []byte, opts ...Option) (*Result, error) {
	u := &Unpickler{
		data:      data,
		metastack: arraystack.New(),
		memo:      NewMemo(),
		classes:   make(map[Class]*Class),
		registry:  NewRegistry(),
	}
	for _, opt := range opts {
		opt(u)
	}
	root, err := u.run()
	if err != nil {
		return nil, err
	}
	return &Result{
		Root:     root,
		Memo:     u.memo,
		Protocol: u.proto,
		Python2:  DetectPython2(data),
		Resynced: u.resynced,
	}, nil
}

func (u *Unpickler) run() (root Value, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if de, ok := r.(*diag.Error); ok {
			err = de
			return
		}
		if _err := derror.PanicToError(r); _err != nil {
			err = diag.Wrap(diag.StagePickle, diag.CodeIntegrity, _err,
				"malformed stream near offset %d", u.pos)
		}
	}()

	for {
		if u.pos >= len(u.data) {
			u.fail("stream ends without STOP")
		}
		opPos := u.pos
		op := u.readByte()
		if op == opStop {
			return u.pop(), nil
		}
		if !u.step(op) {
			if !u.resync {
				u.pos = opPos
				u.fail("unknown opcode %#02x", op)
			}
			u.resynced = append(u.resynced, opPos)
		}
	}
}

// step executes one opcode and reports whether it was recognized.
func (u *Unpickler) step(op byte) bool {
	switch op {
	case opProto:
		u.proto = int(u.readByte())
		if u.proto > 5 {
			u.fail("unsupported pickle protocol %d", u.proto)
		}
	case opFrame:
		u.read(8)
	case opMark:
		u.metastack.Push(u.stack)
		u.stack = nil
	case opPop:
		if len(u.stack) > 0 {
			u.stack = u.stack[:len(u.stack)-1]
		} else {
			u.popMark()
		}
	case opPopMark:
		u.popMark()
	case opDup:
		u.push(u.top())

	case opNone:
		u.push(nil)
	case opNewTrue:
		u.push(true)
	case opNewFalse:
		u.push(false)
	case opInt:
		u.push(u.parseIntLine(u.readLine()))
	case opBinInt:
		u.push(int64(int32(binary.LittleEndian.Uint32(u.read(4)))))
	case opBinInt1:
		u.push(int64(u.readByte()))
	case opBinInt2:
		u.push(int64(binary.LittleEndian.Uint16(u.read(2))))
	case opLong:
		line := strings.TrimSuffix(u.readLine(), "L")
		n, ok := new(big.Int).SetString(line, 10)
		if !ok {
			u.fail("invalid LONG literal %q", line)
		}
		u.push(normInt(n))
	case opLong1:
		u.push(decodeLong(u.read(int(u.readByte()))))
	case opLong4:
		u.push(decodeLong(u.read(u.readLen4())))
	case opFloat:
		line := u.readLine()
		f, err := strconv.ParseFloat(line, 64)
		if err != nil {
			u.fail("invalid FLOAT literal %q", line)
		}
		u.push(f)
	case opBinFloat:
		u.push(math.Float64frombits(binary.BigEndian.Uint64(u.read(8))))

	case opString:
		raw, err := unescapeRepr(u.readLine())
		if err != nil {
			u.fail("invalid STRING literal: %v", err)
		}
		u.push(decodePy2(raw))
	case opBinString:
		u.push(decodePy2(u.read(u.readLen4())))
	case opShortBinString:
		u.push(decodePy2(u.read(int(u.readByte()))))
	case opUnicode:
		u.push(decodeRawUnicodeEscape(u.readLine()))
	case opBinUnicode:
		u.push(string(u.read(u.readLen4())))
	case opShortBinUnicode:
		u.push(string(u.read(int(u.readByte()))))
	case opBinUnicode8:
		u.push(string(u.read(u.readLen8())))
	case opBinBytes:
		u.push(Bytes(u.read(u.readLen4())))
	case opShortBinBytes:
		u.push(Bytes(u.read(int(u.readByte()))))
	case opBinBytes8, opByteArray8:
		u.push(Bytes(u.read(u.readLen8())))

	case opEmptyTuple:
		u.push(NewTuple())
	case opTuple:
		u.push(NewTuple(u.popMark()...))
	case opTuple1:
		a := u.pop()
		u.push(NewTuple(a))
	case opTuple2:
		b, a := u.pop(), u.pop()
		u.push(NewTuple(a, b))
	case opTuple3:
		c, b, a := u.pop(), u.pop(), u.pop()
		u.push(NewTuple(a, b, c))

	case opEmptyList:
		u.push(&List{})
	case opList:
		u.push(&List{Items: u.popMark()})
	case opAppend:
		v := u.pop()
		u.appendTo(u.top(), v)
	case opAppends:
		items := u.popMark()
		u.appendTo(u.top(), items...)

	case opEmptyDict:
		u.push(NewDict())
	case opDict:
		items := u.popMark()
		d := NewDict()
		u.setItems(d, items)
		u.push(d)
	case opSetItem:
		v, k := u.pop(), u.pop()
		u.setItems(u.top(), []Value{k, v})
	case opSetItems:
		items := u.popMark()
		u.setItems(u.top(), items)

	case opEmptySet:
		u.push(NewSet(false))
	case opAddItems:
		items := u.popMark()
		s, ok := u.top().(*Set)
		if !ok {
			u.fail("ADDITEMS on %T", u.top())
		}
		s.Add(items...)
	case opFrozenSet:
		s := NewSet(true)
		s.Add(u.popMark()...)
		u.push(s)

	case opGet:
		u.push(u.memoGet(u.parseIndex(u.readLine())))
	case opBinGet:
		u.push(u.memoGet(int(u.readByte())))
	case opLongBinGet:
		u.push(u.memoGet(int(binary.LittleEndian.Uint32(u.read(4)))))
	case opPut:
		u.memo.Put(u.parseIndex(u.readLine()), u.top())
	case opBinPut:
		u.memo.Put(int(u.readByte()), u.top())
	case opLongBinPut:
		u.memo.Put(int(binary.LittleEndian.Uint32(u.read(4))), u.top())
	case opMemoize:
		u.memo.Memoize(u.top())

	case opGlobal:
		module := u.readLine()
		name := u.readLine()
		u.push(u.class(module, name))
	case opStackGlobal:
		name, ok1 := u.pop().(string)
		module, ok2 := u.pop().(string)
		if !ok1 || !ok2 {
			u.fail("STACK_GLOBAL requires two strings")
		}
		u.push(u.class(module, name))
	case opReduce:
		args := u.pop()
		callable := u.pop()
		u.push(u.construct(callable, tupleItems(args), nil, true))
	case opNewObj:
		args := u.pop()
		cls := u.pop()
		u.push(u.construct(cls, tupleItems(args), nil, false))
	case opNewObjEx:
		kwargs, _ := u.pop().(*Dict)
		args := u.pop()
		cls := u.pop()
		u.push(u.construct(cls, tupleItems(args), kwargs, false))
	case opObj:
		items := u.popMark()
		if len(items) == 0 {
			u.fail("OBJ without class")
		}
		u.push(u.construct(items[0], items[1:], nil, false))
	case opInst:
		module := u.readLine()
		name := u.readLine()
		args := u.popMark()
		u.push(u.construct(u.class(module, name), args, nil, false))
	case opBuild:
		state := u.pop()
		u.build(u.top(), state)

	case opPersID, opBinPersID:
		u.unsupported("persistent ids")
	case opExt1, opExt2, opExt4:
		u.unsupported("extension registry references")
	case opNextBuffer, opReadOnlyBuffer:
		u.unsupported("out-of-band buffers")
	default:
		return false
	}
	return true
}

func (u *Unpickler) fail(format string, args ...any) {
	panic(diag.Errorf(diag.StagePickle, diag.CodeIntegrity, format+" (offset %d)", append(args, u.pos)...))
}

func (u *Unpickler) unsupported(feature string) {
	panic(diag.Errorf(diag.StagePickle, diag.CodeUnsupportedPickleFeature,
		"%s are not supported (offset %d)", feature, u.pos))
}

func (u *Unpickler) readByte() byte {
	if u.pos >= len(u.data) {
		u.fail("unexpected end of stream")
	}
	b := u.data[u.pos]
	u.pos++
	return b
}

func (u *Unpickler) read(n int) []byte {
	if n < 0 || u.pos+n > len(u.data) {
		u.fail("unexpected end of stream reading %d bytes", n)
	}
	b := u.data[u.pos : u.pos+n]
	u.pos += n
	return b
}

func (u *Unpickler) readLen4() int {
	return int(int32(binary.LittleEndian.Uint32(u.read(4))))
}

func (u *Unpickler) readLen8() int {
	n := binary.LittleEndian.Uint64(u.read(8))
	if n > uint64(len(u.data)) {
		u.fail("length %d exceeds stream size", n)
	}
	return int(n)
}

func (u *Unpickler) readLine() string {
	start := u.pos
	for u.pos < len(u.data) {
		if u.data[u.pos] == '\n' {
			line := string(u.data[start:u.pos])
			u.pos++
			return strings.TrimSuffix(line, "\r")
		}
		u.pos++
	}
	u.fail("unterminated line argument")
	return ""
}

func (u *Unpickler) push(v Value) {
	u.stack = append(u.stack, v)
}

func (u *Unpickler) pop() Value {
	if len(u.stack) == 0 {
		u.fail("stack underflow")
	}
	v := u.stack[len(u.stack)-1]
	u.stack = u.stack[:len(u.stack)-1]
	return v
}

func (u *Unpickler) top() Value {
	if len(u.stack) == 0 {
		u.fail("stack underflow")
	}
	return u.stack[len(u.stack)-1]
}

func (u *Unpickler) popMark() []Value {
	items := u.stack
	prev, ok := u.metastack.Pop()
	if !ok {
		u.fail("MARK not found")
	}
	u.stack, _ = prev.([]Value)
	return items
}

func (u *Unpickler) memoGet(id int) Value {
	v, err := u.memo.Get(id)
	if err != nil {
		panic(err)
	}
	return v
}

func (u *Unpickler) parseIndex(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		u.fail("invalid memo index %q", s)
	}
	return n
}

func (u *Unpickler) parseIntLine(s string) Value {
	switch s {
	case "00":
		return false
	case "01":
		return true
	}
	n, ok := new(big.Int).SetString(strings.TrimSuffix(s, "L"), 10)
	if !ok {
		u.fail("invalid INT literal %q", s)
	}
	return normInt(n)
}

func (u *Unpickler) class(module, name string) *Class {
	key := Class{Module: module, Name: name}
	if c, ok := u.classes[key]; ok {
		return c
	}
	c := &Class{Module: module, Name: name}
	u.classes[key] = c
	return c
}

// construct materializes cls(*args). reduce distinguishes REDUCE, where the
// callable may be a factory such as copy_reg._reconstructor, from NEWOBJ.
func (u *Unpickler) construct(callable Value, args []Value, kwargs *Dict, reduce bool) Value {
	cls, ok := callable.(*Class)
	if !ok {
		u.fail("cannot instantiate %T", callable)
	}
	kind := u.registry.Lookup(cls.Module, cls.Name)
	builtin := cls.Module == "builtins" || cls.Module == "__builtin__"

	switch kind {
	case KindSet, KindFrozenSet:
		s := NewSet(kind == KindFrozenSet)
		if !builtin {
			s.Class = cls
		}
		if len(args) > 0 {
			s.Add(iterItems(args[0])...)
		}
		return s
	case KindList:
		l := &List{}
		if !builtin {
			l.Class = cls
		}
		if len(args) > 0 {
			l.Items = append(l.Items, iterItems(args[0])...)
		}
		return l
	case KindDict:
		d := NewDict()
		if !builtin {
			d.Class = cls
		}
		if len(args) > 0 {
			for _, pair := range iterItems(args[0]) {
				kv := iterItems(pair)
				if len(kv) == 2 {
					d.Set(kv[0], kv[1])
				}
			}
		}
		return d
	case KindReconstructor:
		if !reduce || len(args) < 2 {
			u.fail("malformed %s call", cls)
		}
		var inner []Value
		if len(args) > 2 && args[2] != nil {
			inner = []Value{args[2]}
		}
		return u.construct(args[0], inner, nil, false)
	}

	obj := NewObject(cls)
	obj.Args = args
	obj.Kwargs = kwargs
	obj.Opaque = kind == KindUnknown
	return obj
}

func (u *Unpickler) build(inst Value, state Value) {
	switch t := inst.(type) {
	case *Object:
		switch s := state.(type) {
		case nil:
		case *Dict:
			mergeAttrs(t, s)
		case *Tuple:
			if s.Len() == 2 && isDictOrNil(s.Items[0]) && isDictOrNil(s.Items[1]) {
				for _, part := range s.Items {
					if d, ok := part.(*Dict); ok {
						mergeAttrs(t, d)
					}
				}
				return
			}
			t.State = state
		default:
			t.State = state
		}
	case *Set:
		switch s := state.(type) {
		case *Tuple:
			if d, ok := s.At(0).(*Dict); ok {
				t.Add(d.Keys()...)
			}
		default:
			t.Add(iterItems(state)...)
		}
	case *List, *Dict:
		// revertable containers pickle bookkeeping attributes that carry
		// no script content
	default:
		u.fail("BUILD on %T", inst)
	}
}

func (u *Unpickler) appendTo(target Value, items ...Value) {
	switch t := target.(type) {
	case *List:
		t.Items = append(t.Items, items...)
	case *Object:
		t.ListItems = append(t.ListItems, items...)
	case *Set:
		t.Add(items...)
	default:
		u.fail("APPEND on %T", target)
	}
}

func (u *Unpickler) setItems(target Value, items []Value) {
	if len(items)%2 != 0 {
		u.fail("odd number of items for SETITEMS")
	}
	switch t := target.(type) {
	case *Dict:
		for i := 0; i < len(items); i += 2 {
			t.Set(items[i], items[i+1])
		}
	case *Object:
		if t.DictItems == nil {
			t.DictItems = NewDict()
		}
		for i := 0; i < len(items); i += 2 {
			t.DictItems.Set(items[i], items[i+1])
		}
	default:
		u.fail("SETITEM on %T", target)
	}
}

func mergeAttrs(o *Object, d *Dict) {
	d.Each(func(k, v Value) {
		if name, ok := k.(string); ok {
			o.Attrs.Set(name, v)
		}
	})
}

func isDictOrNil(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(*Dict)
	return ok
}

func tupleItems(v Value) []Value {
	if t, ok := v.(*Tuple); ok {
		return t.Items
	}
	return nil
}

// iterItems returns the elements of any sequence-like value.
func iterItems(v Value) []Value {
	switch t := v.(type) {
	case *Tuple:
		return t.Items
	case *List:
		return t.Items
	case *Set:
		return t.Items()
	case *Dict:
		return t.Keys()
	}
	return nil
}

func normInt(n *big.Int) Value {
	if n.IsInt64() {
		return n.Int64()
	}
	return n
}

// decodeLong decodes a little-endian two's complement integer.
func decodeLong(b []byte) Value {
	if len(b) == 0 {
		return int64(0)
	}
	be := make([]byte, len(b))
	for i, c := range b {
		be[len(b)-1-i] = c
	}
	n := new(big.Int).SetBytes(be)
	if b[len(b)-1]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8)))
	}
	return normInt(n)
}
