package objstore

import (
	"fmt"
	"slices"

	"github.com/jake-bladt/automerge/automerge_errors"
	"github.com/jake-bladt/automerge/oplog"
	"github.com/jake-bladt/automerge/rdx"
)

// Apply replays one op. id is the op's own id, seq the seq of its change
// and deps the transitive clock of that change: an existing entry the
// change had seen is overwritten, any other entry is concurrent and
// stays next to the new one.
func (s *Store) Apply(op oplog.Op, id rdx.OpID, seq uint64, deps rdx.Clock) error {
	switch op.Action {
	case oplog.MakeMap, oplog.MakeList:
		return s.make(op.Action, id)
	}
	obj, err := s.target(op)
	if err != nil {
		return err
	}
	if op.Value.IsRef() && s.objs[op.Value.Ref] == nil {
		return fmt.Errorf("%w: %s", automerge_errors.ErrUnknownObject, op.Value.Ref)
	}
	seen := func(e Entry) bool {
		return e.ID.Actor == id.Actor || deps.Get(e.ID.Actor) >= e.Seq
	}
	switch op.Action {
	case oplog.Set:
		entry := Entry{ID: id, Seq: seq, Value: op.Value}
		return s.update(obj, op, func(entries []Entry) []Entry {
			if has(entries, id) {
				return entries
			}
			ret := make([]Entry, 0, len(entries)+1)
			for _, e := range entries {
				if !seen(e) {
					ret = append(ret, e)
				}
			}
			return put(ret, entry)
		})
	case oplog.Delete:
		return s.update(obj, op, func(entries []Entry) []Entry {
			ret := make([]Entry, 0, len(entries))
			for _, e := range entries {
				if !seen(e) {
					ret = append(ret, e)
				}
			}
			return ret
		})
	case oplog.Increment:
		return s.update(obj, op, func(entries []Entry) []Entry {
			ret := make([]Entry, len(entries))
			for i, e := range entries {
				if e.Value.IsCounter() && seen(e) && !slices.Contains(e.Incs, id) {
					e.Value.Int += op.Delta
					e.Incs = append(slices.Clip(e.Incs), id)
				}
				ret[i] = e
			}
			return ret
		})
	case oplog.Insert:
		return s.insert(obj, op, Element{ID: id, Entries: []Entry{{ID: id, Seq: seq, Value: op.Value}}})
	}
	return fmt.Errorf("%w: action %s", automerge_errors.ErrBadValue, op.Action)
}

func (s *Store) make(action oplog.Action, id rdx.OpID) error {
	if s.objs[id] != nil {
		return nil
	}
	obj := &Object{ID: id, gen: s.gen}
	if action == oplog.MakeMap {
		obj.Kind = KindMap
		obj.fields = make(map[string][]Entry)
	} else {
		obj.Kind = KindList
	}
	s.objs[id] = obj
	return nil
}

func (s *Store) target(op oplog.Op) (*Object, error) {
	obj := s.objs[op.Obj]
	if obj == nil {
		return nil, fmt.Errorf("%w: %s", automerge_errors.ErrUnknownObject, op.Obj)
	}
	keyed := op.Action != oplog.Insert && op.Key != ""
	if keyed != (obj.Kind == KindMap) {
		return nil, fmt.Errorf("%w: %s %s on a %s", automerge_errors.ErrUnknownObject,
			op.Action, op.Obj, obj.Kind)
	}
	return obj, nil
}

// update rewrites one slot; f must return a fresh slice.
func (s *Store) update(obj *Object, op oplog.Op, f func([]Entry) []Entry) error {
	if obj.Kind == KindMap {
		obj = s.writable(obj.ID)
		entries := f(obj.fields[op.Key])
		if len(entries) == 0 {
			delete(obj.fields, op.Key)
		} else {
			obj.fields[op.Key] = entries
		}
		return nil
	}
	obj = s.writable(obj.ID)
	i := obj.index(op.Elem)
	if i < 0 {
		return fmt.Errorf("%w: %s in %s", automerge_errors.ErrUnknownElement, op.Elem, obj.ID)
	}
	el := obj.elems[i]
	next := &Element{ID: el.ID, Entries: f(el.Entries)}
	obj.elems[i] = next
	obj.updated(i, next.Visible())
	return nil
}

func (s *Store) insert(obj *Object, op oplog.Op, el Element) error {
	obj = s.writable(obj.ID)
	if obj.index(el.ID) >= 0 {
		return nil
	}
	i := 0
	if !op.Elem.IsZero() {
		i = obj.index(op.Elem)
		if i < 0 {
			return fmt.Errorf("%w: %s in %s", automerge_errors.ErrUnknownElement, op.Elem, obj.ID)
		}
		i++
	}
	// concurrent inserts at one anchor: greater ids go first
	for i < len(obj.elems) && el.ID.Less(obj.elems[i].ID) {
		i++
	}
	obj.elems = slices.Insert(obj.elems, i, &el)
	obj.inserted(i, el.Visible())
	return nil
}

func has(entries []Entry, id rdx.OpID) bool {
	for _, e := range entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

// put keeps entries in resolution order, the winner first.
func put(entries []Entry, e Entry) []Entry {
	i, _ := slices.BinarySearchFunc(entries, e, compareEntries)
	return slices.Insert(entries, i, e)
}

// compareEntries orders the greater actor first; within one actor, the
// later op first.
func compareEntries(a, b Entry) int {
	if c := b.ID.Actor.Compare(a.ID.Actor); c != 0 {
		return c
	}
	return b.ID.Compare(a.ID)
}
