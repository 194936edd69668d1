package automerge

import (
	"fmt"
	"reflect"

	"github.com/jake-bladt/automerge/automerge_errors"
	"github.com/jake-bladt/automerge/objstore"
	"github.com/jake-bladt/automerge/rdx"
)

// Object is anything that names a map or list of a document: snapshot
// values and proxies alike.
type Object interface {
	ObjectID() rdx.OpID
}

// MapValue is a read-only view of a map in one document state.
type MapValue struct {
	store *objstore.Store
	id    rdx.OpID
}

// ListValue is a read-only view of a list in one document state.
type ListValue struct {
	store *objstore.Store
	id    rdx.OpID
}

// Conflict is a concurrent write that lost to the current value.
type Conflict struct {
	Actor rdx.ActorID
	Value any
}

// FieldConflicts lists the losing writes of one map key or list index.
type FieldConflicts struct {
	Key       string
	Index     int
	Value     any
	Conflicts []Conflict
}

func (m *MapValue) ObjectID() rdx.OpID  { return m.id }
func (l *ListValue) ObjectID() rdx.OpID { return l.id }

func (m *MapValue) object() *objstore.Object  { return m.store.Object(m.id) }
func (l *ListValue) object() *objstore.Object { return l.store.Object(l.id) }

func (m *MapValue) Keys() []string { return m.object().Keys() }
func (m *MapValue) Len() int       { return m.object().Len() }

func (m *MapValue) Has(key string) bool {
	return len(m.object().Field(key)) > 0
}

// Get returns a scalar, a Counter, a *MapValue or a *ListValue; nil
// when the key is absent.
func (m *MapValue) Get(key string) any {
	w, ok := objstore.Winner(m.object().Field(key))
	if !ok {
		return nil
	}
	return project(m.store, w.Value)
}

// Conflicts returns the losing writes of key, greatest actor first.
func (m *MapValue) Conflicts(key string) []Conflict {
	_, losers, _ := objstore.Resolve(m.object().Field(key))
	return conflicts(m.store, losers)
}

// Native converts the map into plain Go values, recursively.
func (m *MapValue) Native() map[string]any {
	ret := make(map[string]any, m.Len())
	for _, key := range m.Keys() {
		ret[key] = native(m.Get(key))
	}
	return ret
}

func (l *ListValue) Len() int { return l.object().Len() }

func (l *ListValue) Get(i int) any {
	el := l.object().Nth(i)
	if el == nil {
		return nil
	}
	w, _ := objstore.Winner(el.Entries)
	return project(l.store, w.Value)
}

func (l *ListValue) Conflicts(i int) []Conflict {
	el := l.object().Nth(i)
	if el == nil {
		return nil
	}
	_, losers, _ := objstore.Resolve(el.Entries)
	return conflicts(l.store, losers)
}

func (l *ListValue) Native() []any {
	ret := make([]any, 0, l.Len())
	for i := 0; i < l.Len(); i++ {
		ret = append(ret, native(l.Get(i)))
	}
	return ret
}

func project(store *objstore.Store, v rdx.Value) any {
	switch {
	case v.IsRef():
		if obj := store.Object(v.Ref); obj != nil && obj.Kind == objstore.KindList {
			return &ListValue{store: store, id: v.Ref}
		}
		return &MapValue{store: store, id: v.Ref}
	case v.IsCounter():
		return Counter(v.Int)
	}
	return v.Native()
}

func native(v any) any {
	switch x := v.(type) {
	case *MapValue:
		return x.Native()
	case *ListValue:
		return x.Native()
	case Counter:
		return int64(x)
	}
	return v
}

func conflicts(store *objstore.Store, losers []objstore.Entry) []Conflict {
	if len(losers) == 0 {
		return nil
	}
	ret := make([]Conflict, 0, len(losers))
	for _, e := range losers {
		ret = append(ret, Conflict{Actor: e.ID.Actor, Value: project(store, e.Value)})
	}
	return ret
}

// GetConflicts lists every field of obj that has concurrent values, in
// key or index order.
func GetConflicts(doc *Document, obj Object) ([]FieldConflicts, error) {
	o := doc.store.Object(obj.ObjectID())
	if o == nil {
		return nil, fmt.Errorf("%w: %s", automerge_errors.ErrUnknownObject, obj.ObjectID())
	}
	var ret []FieldConflicts
	if o.Kind == objstore.KindMap {
		for _, key := range o.Keys() {
			w, losers, _ := objstore.Resolve(o.Field(key))
			if len(losers) > 0 {
				ret = append(ret, FieldConflicts{
					Key:       key,
					Value:     project(doc.store, w.Value),
					Conflicts: conflicts(doc.store, losers),
				})
			}
		}
		return ret, nil
	}
	for i, el := range o.Visible() {
		w, losers, _ := objstore.Resolve(el.Entries)
		if len(losers) > 0 {
			ret = append(ret, FieldConflicts{
				Index:     i,
				Value:     project(doc.store, w.Value),
				Conflicts: conflicts(doc.store, losers),
			})
		}
	}
	return ret, nil
}

// Inspect returns the document as plain Go maps, slices and scalars.
func Inspect(doc *Document) map[string]any {
	return doc.Root().Native()
}

// Equals reports whether two documents show the same values. Conflicts
// and history are not compared.
func Equals(a, b *Document) bool {
	return reflect.DeepEqual(Inspect(a), Inspect(b))
}
