// Package objstore keeps the replayed object graph of a document: map and
// list objects whose every slot holds the set of concurrent writes.
package objstore

import (
	"slices"
	"sync/atomic"

	"github.com/jake-bladt/automerge/rdx"
)

type Kind byte

const (
	KindMap  Kind = 'M'
	KindList Kind = 'L'
)

func (k Kind) String() string {
	if k == KindList {
		return "list"
	}
	return "map"
}

// Entry is one write to a slot. Seq is the seq of the change that made
// it; Incs lists the increments already folded into a counter.
type Entry struct {
	ID    rdx.OpID
	Seq   uint64
	Value rdx.Value
	Incs  []rdx.OpID
}

// Element is a list slot. An element with no entries is a tombstone:
// it stays in place to anchor inserts but is not visible.
type Element struct {
	ID      rdx.OpID
	Entries []Entry
}

func (el *Element) Visible() bool {
	return len(el.Entries) > 0
}

type Object struct {
	ID     rdx.OpID
	Kind   Kind
	gen    uint64
	fields map[string][]Entry
	elems  []*Element
	// vis holds the positions of visible elems, ascending.
	vis []int
	// pos maps element ids to positions; entries below posOK are exact.
	pos   map[rdx.OpID]int
	posOK int
}

// Store is a generation of the object graph. Published generations are
// never written to; Clone starts a new one that copies objects on their
// first write.
type Store struct {
	objs map[rdx.OpID]*Object
	gen  uint64
}

func NewStore() *Store {
	s := &Store{objs: make(map[rdx.OpID]*Object), gen: nextGen()}
	s.objs[rdx.ID0] = &Object{
		ID:     rdx.ID0,
		Kind:   KindMap,
		gen:    s.gen,
		fields: make(map[string][]Entry),
	}
	return s
}

var lastGen atomic.Uint64

func nextGen() uint64 {
	return lastGen.Add(1)
}

func (s *Store) Clone() *Store {
	objs := make(map[rdx.OpID]*Object, len(s.objs))
	for id, obj := range s.objs {
		objs[id] = obj
	}
	return &Store{objs: objs, gen: nextGen()}
}

func (s *Store) Object(id rdx.OpID) *Object {
	return s.objs[id]
}

func (s *Store) Len() int {
	return len(s.objs)
}

// ObjectIDs lists all objects, sorted.
func (s *Store) ObjectIDs() []rdx.OpID {
	ids := make([]rdx.OpID, 0, len(s.objs))
	for id := range s.objs {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, rdx.OpID.Compare)
	return ids
}

// writable returns a copy of the object owned by this generation.
func (s *Store) writable(id rdx.OpID) *Object {
	obj := s.objs[id]
	if obj == nil || obj.gen == s.gen {
		return obj
	}
	cp := &Object{ID: obj.ID, Kind: obj.Kind, gen: s.gen}
	switch obj.Kind {
	case KindMap:
		cp.fields = make(map[string][]Entry, len(obj.fields))
		for key, entries := range obj.fields {
			cp.fields[key] = entries
		}
	case KindList:
		cp.elems = slices.Clone(obj.elems)
		cp.vis = slices.Clone(obj.vis)
	}
	s.objs[id] = cp
	return cp
}

// Keys of visible map fields, sorted.
func (obj *Object) Keys() []string {
	keys := make([]string, 0, len(obj.fields))
	for key, entries := range obj.fields {
		if len(entries) > 0 {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys
}

func (obj *Object) Field(key string) []Entry {
	return obj.fields[key]
}

// Elements returns every slot, tombstones included.
func (obj *Object) Elements() []*Element {
	return obj.elems
}

// Visible returns the elements that have a value, in list order.
func (obj *Object) Visible() []*Element {
	ret := make([]*Element, 0, len(obj.vis))
	for _, i := range obj.vis {
		ret = append(ret, obj.elems[i])
	}
	return ret
}

func (obj *Object) Len() (n int) {
	if obj.Kind == KindList {
		return len(obj.vis)
	}
	for _, entries := range obj.fields {
		if len(entries) > 0 {
			n++
		}
	}
	return
}

// Nth returns the i-th visible element.
func (obj *Object) Nth(i int) *Element {
	if i < 0 || i >= len(obj.vis) {
		return nil
	}
	return obj.elems[obj.vis[i]]
}

// index finds an element by id, -1 if none. It fills the position map,
// so obj must belong to the writing generation.
func (obj *Object) index(elem rdx.OpID) int {
	if i, ok := obj.pos[elem]; ok && i < obj.posOK {
		return i
	}
	if obj.posOK == len(obj.elems) && obj.pos != nil {
		return -1
	}
	if obj.pos == nil {
		obj.pos = make(map[rdx.OpID]int, len(obj.elems))
	}
	for i := obj.posOK; i < len(obj.elems); i++ {
		obj.pos[obj.elems[i].ID] = i
	}
	obj.posOK = len(obj.elems)
	if i, ok := obj.pos[elem]; ok {
		return i
	}
	return -1
}

// inserted records a new element at position i.
func (obj *Object) inserted(i int, visible bool) {
	obj.posOK = min(obj.posOK, i)
	k, _ := slices.BinarySearch(obj.vis, i)
	for j := k; j < len(obj.vis); j++ {
		obj.vis[j]++
	}
	if visible {
		obj.vis = slices.Insert(obj.vis, k, i)
	}
}

// updated records a visibility change of the element at position i.
func (obj *Object) updated(i int, visible bool) {
	k, found := slices.BinarySearch(obj.vis, i)
	switch {
	case visible && !found:
		obj.vis = slices.Insert(obj.vis, k, i)
	case !visible && found:
		obj.vis = slices.Delete(obj.vis, k, k+1)
	}
}
