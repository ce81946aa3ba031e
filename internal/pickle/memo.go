package pickle

import (
	"github.com/jiang0681/unrpyc/internal/diag"
)

// Memo is the reference table of one stream: every record the stream asked
// to remember, indexed by the id the stream assigned. Ids are unique within
// one stream only.
type Memo struct {
	entries map[int]Value
	// first remembers the first id under which a comparable record was stored,
	// so later stages can tell that two values came from one shared record.
	first map[any]int
	next  int
}

// NewMemo returns an empty table.
func NewMemo() *Memo {
	return &Memo{
		entries: make(map[int]Value),
		first:   make(map[any]int),
	}
}

// Put registers v under id. Re-registering an id replaces it, as the pickle
// machine does.
func (m *Memo) Put(id int, v Value) {
	m.entries[id] = v
	if id >= m.next {
		m.next = id + 1
	}
	if v == nil {
		return
	}
	key := hashKey(v)
	if _, seen := m.first[key]; !seen {
		m.first[key] = id
	}
}

// Memoize registers v under the next free id and returns it.
func (m *Memo) Memoize(v Value) int {
	id := len(m.entries)
	m.Put(id, v)
	return id
}

// Get returns the record registered under id. An unknown id means the stream
// is corrupt.
func (m *Memo) Get(id int) (Value, error) {
	v, ok := m.entries[id]
	if !ok {
		return nil, diag.Errorf(diag.StagePickle, diag.CodeIntegrity,
			"back-reference to id %d which was never registered", id)
	}
	return v, nil
}

// IDOf returns the id under which v was first registered.
func (m *Memo) IDOf(v Value) (int, bool) {
	if m == nil || v == nil {
		return 0, false
	}
	id, ok := m.first[hashKey(v)]
	return id, ok
}

// Len returns the number of registered records.
func (m *Memo) Len() int { return len(m.entries) }
