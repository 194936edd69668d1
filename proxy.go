package automerge

import (
	"fmt"
	"math"
	"reflect"
	"slices"

	"github.com/jake-bladt/automerge/automerge_errors"
	"github.com/jake-bladt/automerge/objstore"
	"github.com/jake-bladt/automerge/oplog"
	"github.com/jake-bladt/automerge/rdx"
)

// Counter is an integer that merges concurrent increments by adding
// them up.
type Counter int64

// Map is the mutable view of a map object inside a Change block. Misuse,
// such as incrementing a non-counter, is not returned by the call: the
// first such error aborts the whole Change.
type Map struct {
	r  *recorder
	id rdx.OpID
}

// List is the mutable view of a list object inside a Change block.
type List struct {
	r  *recorder
	id rdx.OpID
}

func (m *Map) ObjectID() rdx.OpID  { return m.id }
func (l *List) ObjectID() rdx.OpID { return l.id }

// Err is the first error recorded in the block, if any.
func (m *Map) Err() error  { return m.r.err }
func (l *List) Err() error { return l.r.err }

func (m *Map) object() *objstore.Object {
	return m.r.store.Object(m.id)
}

func (l *List) object() *objstore.Object {
	return l.r.store.Object(l.id)
}

func (m *Map) Has(key string) bool {
	return len(m.object().Field(key)) > 0
}

// Get returns the current value of key: a scalar, a Counter, or a *Map
// or *List proxy for nested objects; nil if absent.
func (m *Map) Get(key string) any {
	w, ok := objstore.Winner(m.object().Field(key))
	if !ok {
		return nil
	}
	return m.r.project(w.Value)
}

func (m *Map) Keys() []string {
	return m.object().Keys()
}

func (m *Map) Len() int {
	return m.object().Len()
}

func (m *Map) Set(key string, v any) {
	if key == "" {
		m.r.fail(fmt.Errorf("%w: empty key", automerge_errors.ErrBadValue))
		return
	}
	m.r.assign(v, func(val rdx.Value) bool {
		_, ok := m.r.add(oplog.Op{Action: oplog.Set, Obj: m.id, Key: key, Value: val})
		return ok
	})
}

func (m *Map) Delete(key string) {
	if !m.Has(key) {
		return
	}
	m.r.add(oplog.Op{Action: oplog.Delete, Obj: m.id, Key: key})
}

func (m *Map) Increment(key string, delta int64) {
	w, ok := objstore.Winner(m.object().Field(key))
	if !ok || !w.Value.IsCounter() {
		m.r.fail(fmt.Errorf("%w: %q", automerge_errors.ErrNotCounter, key))
		return
	}
	m.r.add(oplog.Op{Action: oplog.Increment, Obj: m.id, Key: key, Delta: delta})
}

// Map returns the nested map at key.
func (m *Map) Map(key string) *Map {
	w, _ := objstore.Winner(m.object().Field(key))
	return m.r.mapAt(w.Value, key)
}

// List returns the nested list at key.
func (m *Map) List(key string) *List {
	w, _ := objstore.Winner(m.object().Field(key))
	return m.r.listAt(w.Value, key)
}

func (l *List) Len() int {
	return l.object().Len()
}

// Get returns the i-th value, nil when out of range.
func (l *List) Get(i int) any {
	el := l.object().Nth(i)
	if el == nil {
		return nil
	}
	w, _ := objstore.Winner(el.Entries)
	return l.r.project(w.Value)
}

func (l *List) elem(i int) (rdx.OpID, bool) {
	el := l.object().Nth(i)
	if el == nil {
		l.r.fail(fmt.Errorf("%w: %d of %d", automerge_errors.ErrIndexOutOfRange, i, l.Len()))
		return rdx.ID0, false
	}
	return el.ID, true
}

func (l *List) Set(i int, v any) {
	elem, ok := l.elem(i)
	if !ok {
		return
	}
	l.r.assign(v, func(val rdx.Value) bool {
		_, ok := l.r.add(oplog.Op{Action: oplog.Set, Obj: l.id, Elem: elem, Value: val})
		return ok
	})
}

// Insert puts values before index i; i == Len() appends.
func (l *List) Insert(i int, values ...any) {
	after := rdx.ID0
	if i > 0 {
		var ok bool
		if after, ok = l.elem(i - 1); !ok {
			return
		}
	} else if i < 0 {
		l.r.fail(fmt.Errorf("%w: %d", automerge_errors.ErrIndexOutOfRange, i))
		return
	}
	for _, v := range values {
		l.r.assign(v, func(val rdx.Value) bool {
			id, ok := l.r.add(oplog.Op{Action: oplog.Insert, Obj: l.id, Elem: after, Value: val})
			after = id
			return ok
		})
	}
}

func (l *List) Push(values ...any) {
	l.Insert(l.Len(), values...)
}

func (l *List) Delete(i int) {
	if elem, ok := l.elem(i); ok {
		l.r.add(oplog.Op{Action: oplog.Delete, Obj: l.id, Elem: elem})
	}
}

// Splice removes n values at start and inserts values in their place.
func (l *List) Splice(start, n int, values ...any) {
	for ; n > 0; n-- {
		if !l.r.ok() {
			return
		}
		l.Delete(start)
	}
	l.Insert(start, values...)
}

func (l *List) Increment(i int, delta int64) {
	elem, ok := l.elem(i)
	if !ok {
		return
	}
	if w, _ := objstore.Winner(l.object().Nth(i).Entries); !w.Value.IsCounter() {
		l.r.fail(fmt.Errorf("%w: index %d", automerge_errors.ErrNotCounter, i))
		return
	}
	l.r.add(oplog.Op{Action: oplog.Increment, Obj: l.id, Elem: elem, Delta: delta})
}

func (l *List) Map(i int) *Map {
	var v rdx.Value
	if el := l.object().Nth(i); el != nil {
		w, _ := objstore.Winner(el.Entries)
		v = w.Value
	}
	return l.r.mapAt(v, i)
}

func (l *List) List(i int) *List {
	var v rdx.Value
	if el := l.object().Nth(i); el != nil {
		w, _ := objstore.Winner(el.Entries)
		v = w.Value
	}
	return l.r.listAt(v, i)
}

func (r *recorder) project(v rdx.Value) any {
	switch {
	case v.IsRef():
		if obj := r.store.Object(v.Ref); obj != nil && obj.Kind == objstore.KindList {
			return &List{r: r, id: v.Ref}
		}
		return &Map{r: r, id: v.Ref}
	case v.IsCounter():
		return Counter(v.Int)
	}
	return v.Native()
}

// mapAt and listAt hand out a proxy even on a type mismatch, so calls
// can be chained; the mismatch is recorded and aborts the block.
func (r *recorder) mapAt(v rdx.Value, at any) *Map {
	if !v.IsRef() || !r.isKind(v.Ref, objstore.KindMap) {
		r.fail(fmt.Errorf("%w: no map at %v", automerge_errors.ErrUnknownObject, at))
		return &Map{r: r, id: rdx.ID0}
	}
	return &Map{r: r, id: v.Ref}
}

func (r *recorder) listAt(v rdx.Value, at any) *List {
	if !v.IsRef() || !r.isKind(v.Ref, objstore.KindList) {
		r.fail(fmt.Errorf("%w: no list at %v", automerge_errors.ErrUnknownObject, at))
		return &List{r: r, id: rdx.ID0}
	}
	return &List{r: r, id: v.Ref}
}

func (r *recorder) isKind(id rdx.OpID, kind objstore.Kind) bool {
	obj := r.store.Object(id)
	return obj != nil && obj.Kind == kind
}

// assign stores v through put. Maps and lists become new objects: the
// object is made first, then referenced by put, then filled.
func (r *recorder) assign(v any, put func(rdx.Value) bool) {
	if !r.ok() {
		return
	}
	if val, ok, err := scalar(v); err != nil {
		r.fail(err)
		return
	} else if ok {
		put(val)
		return
	}
	switch x := v.(type) {
	case map[string]any:
		r.makeMap(put, func(m *Map) {
			keys := make([]string, 0, len(x))
			for key := range x {
				keys = append(keys, key)
			}
			slices.Sort(keys)
			for _, key := range keys {
				m.Set(key, x[key])
			}
		})
	case *MapValue:
		r.makeMap(put, func(m *Map) {
			for _, key := range x.Keys() {
				m.Set(key, x.Get(key))
			}
		})
	case *Map:
		r.fail(fmt.Errorf("%w: a live proxy can not be stored", automerge_errors.ErrBadValue))
	case *List:
		r.fail(fmt.Errorf("%w: a live proxy can not be stored", automerge_errors.ErrBadValue))
	case []any:
		r.makeList(put, func(l *List) { l.Push(x...) })
	case []string:
		r.makeList(put, func(l *List) {
			for _, s := range x {
				l.Push(s)
			}
		})
	case *ListValue:
		r.makeList(put, func(l *List) {
			for i := 0; i < x.Len(); i++ {
				l.Push(x.Get(i))
			}
		})
	default:
		r.fail(fmt.Errorf("%w: %T", automerge_errors.ErrBadValue, v))
	}
}

func (r *recorder) makeMap(put func(rdx.Value) bool, fill func(*Map)) {
	id, ok := r.add(oplog.Op{Action: oplog.MakeMap})
	if ok && put(rdx.Ref(id)) {
		fill(&Map{r: r, id: id})
	}
}

func (r *recorder) makeList(put func(rdx.Value) bool, fill func(*List)) {
	id, ok := r.add(oplog.Op{Action: oplog.MakeList})
	if ok && put(rdx.Ref(id)) {
		fill(&List{r: r, id: id})
	}
}

// scalar converts Go scalars; ok is false for composite values.
func scalar(v any) (val rdx.Value, ok bool, err error) {
	switch x := v.(type) {
	case nil:
		return rdx.Null(), true, nil
	case bool:
		return rdx.Bool(x), true, nil
	case string:
		return rdx.Str(x), true, nil
	case Counter:
		return rdx.Counter(int64(x)), true, nil
	case float32:
		return rdx.Flt(float64(x)), true, nil
	case float64:
		return rdx.Flt(x), true, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rdx.Int(rv.Int()), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return val, false, fmt.Errorf("%w: %d overflows int64", automerge_errors.ErrBadValue, u)
		}
		return rdx.Int(int64(u)), true, nil
	}
	return val, false, nil
}
