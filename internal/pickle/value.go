// Package pickle decodes the Python pickle streams stored in compiled
// scripts into a graph of plain Go values without executing anything.
//
// A decoded Value is one of:
//
//	nil        None
//	bool       True / False
//	int64      int that fits in 64 bits
//	*big.Int   arbitrary precision long
//	float64    float
//	string     unicode text (and Python 2 str, decoded)
//	Bytes      Python 3 bytes / bytearray
//	*Tuple, *List, *Dict, *Set
//	*Class     a global reference (module, name)
//	*Object    an instance of a class
//
// Composite values are pointers. Two back-references to one memo id yield the
// same pointer, so shared sub-objects stay shared.
package pickle

import (
	"fmt"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/emirpasic/gods/sets/linkedhashset"
)

// Value is any decoded record.
type Value = any

// Bytes is a Python bytes object. It is a string type so it can be used as a
// dict key.
type Bytes string

// Tuple is an immutable sequence.
type Tuple struct {
	Items []Value
}

// NewTuple returns a tuple of items.
func NewTuple(items ...Value) *Tuple { return &Tuple{Items: items} }

// Len returns the number of items.
func (t *Tuple) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Items)
}

// At returns item i or nil when out of range.
func (t *Tuple) At(i int) Value {
	if t == nil || i < 0 || i >= len(t.Items) {
		return nil
	}
	return t.Items[i]
}

// List is a mutable sequence. Class is set for list subclasses such as
// RevertableList.
type List struct {
	Items []Value
	Class *Class
}

// Len returns the number of items.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Items)
}

// Dict is an insertion ordered mapping. Class is set for dict subclasses.
type Dict struct {
	m     *linkedhashmap.Map
	Class *Class
}

// NewDict returns an empty dict.
func NewDict() *Dict {
	return &Dict{m: linkedhashmap.New()}
}

// Set stores value under key, keeping the original position of an existing key.
func (d *Dict) Set(key, value Value) {
	d.m.Put(hashKey(key), entry{key: key, value: value})
}

// Get returns the value stored under key.
func (d *Dict) Get(key Value) (Value, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d.m.Get(hashKey(key))
	if !ok {
		return nil, false
	}
	return v.(entry).value, true
}

// Has reports whether key is present.
func (d *Dict) Has(key Value) bool {
	_, ok := d.Get(key)
	return ok
}

// Delete removes key.
func (d *Dict) Delete(key Value) {
	d.m.Remove(hashKey(key))
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return d.m.Size()
}

// Each calls fn for every entry in insertion order.
func (d *Dict) Each(fn func(key, value Value)) {
	if d == nil {
		return
	}
	it := d.m.Iterator()
	for it.Next() {
		e := it.Value().(entry)
		fn(e.key, e.value)
	}
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []Value {
	keys := make([]Value, 0, d.Len())
	d.Each(func(k, _ Value) { keys = append(keys, k) })
	return keys
}

type entry struct {
	key, value Value
}

// Set is a set or frozenset. Iteration follows insertion order.
type Set struct {
	s      *linkedhashset.Set
	Frozen bool
	Class  *Class
}

// NewSet returns an empty set.
func NewSet(frozen bool) *Set {
	return &Set{s: linkedhashset.New(), Frozen: frozen}
}

// Add inserts items.
func (s *Set) Add(items ...Value) {
	for _, it := range items {
		s.s.Add(it)
	}
}

// Items returns the members in insertion order.
func (s *Set) Items() []Value {
	if s == nil {
		return nil
	}
	return s.s.Values()
}

// Len returns the number of members.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return s.s.Size()
}

// Class is a global reference, the tag of every instance.
type Class struct {
	Module string
	Name   string
}

func (c *Class) String() string {
	if c == nil {
		return "<nil class>"
	}
	return c.Module + "." + c.Name
}

// Is reports whether c names module.name.
func (c *Class) Is(module, name string) bool {
	return c != nil && c.Module == module && c.Name == name
}

// Object is an instance of a class. Constructor arguments, dict state and any
// non-dict state are kept apart so later stages can interpret each class the
// way it was pickled.
type Object struct {
	Class  *Class
	Args   []Value
	Kwargs *Dict
	// Attrs is the merged dict state (and slot state) applied by BUILD.
	Attrs *Dict
	// State holds a BUILD argument that was not a dict, e.g. the tuple a
	// PyCode passes to __setstate__.
	State Value
	// Items collects APPEND and SETITEM calls made on the instance.
	ListItems []Value
	DictItems *Dict
	// Opaque is set when the class is not in the registry.
	Opaque bool
}

// NewObject returns an empty instance of class.
func NewObject(class *Class) *Object {
	return &Object{Class: class, Attrs: NewDict()}
}

// Attr returns the named attribute.
func (o *Object) Attr(name string) (Value, bool) {
	if o == nil {
		return nil, false
	}
	return o.Attrs.Get(name)
}

// SetAttr sets the named attribute.
func (o *Object) SetAttr(name string, v Value) {
	o.Attrs.Set(name, v)
}

// HasAttr reports whether the attribute was pickled or defaulted.
func (o *Object) HasAttr(name string) bool {
	return o.Attrs.Has(name)
}

func (o *Object) String() string {
	return fmt.Sprintf("<%s object>", o.Class)
}

// hashKey maps a value onto something usable as a Go map key. Tuples are
// compared by content, the way Python hashes them.
func hashKey(v Value) any {
	if t, ok := v.(*Tuple); ok {
		parts := make([]any, len(t.Items))
		for i, it := range t.Items {
			parts[i] = hashKey(it)
		}
		return tupleKey(fmt.Sprintf("%#v", parts))
	}
	return v
}

type tupleKey string
