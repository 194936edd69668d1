package oplog

import (
	"fmt"
	"slices"

	"golang.org/x/exp/maps"

	"github.com/jake-bladt/automerge/automerge_errors"
	"github.com/jake-bladt/automerge/rdx"
	"github.com/jake-bladt/automerge/utils"
)

type record struct {
	change *Change
	// every change this one causally follows, itself included
	clock rdx.Clock
	hash  uint64
}

// Log is the append-only causal history of a document, one sequence of
// changes per actor. A Log is treated as a value: Clone it before
// appending when the previous version must stay intact.
type Log struct {
	actors map[rdx.ActorID][]*record
	clock  rdx.Clock
	maxOp  uint64
	count  int
}

func NewLog() *Log {
	return &Log{
		actors: make(map[rdx.ActorID][]*record),
		clock:  make(rdx.Clock),
	}
}

// Clone is O(actors); the per-actor slices are shared and never
// appended to in place.
func (l *Log) Clone() *Log {
	actors := make(map[rdx.ActorID][]*record, len(l.actors))
	for actor, recs := range l.actors {
		actors[actor] = slices.Clip(recs)
	}
	return &Log{
		actors: actors,
		clock:  l.clock.Clone(),
		maxOp:  l.maxOp,
		count:  l.count,
	}
}

// Clock returns a copy of the log's version vector.
func (l *Log) Clock() rdx.Clock {
	return l.clock.Clone()
}

// MaxOp is the greatest op counter seen from any actor.
func (l *Log) MaxOp() uint64 {
	return l.maxOp
}

func (l *Log) Len() int {
	return l.count
}

func (l *Log) get(actor rdx.ActorID, seq uint64) *record {
	recs := l.actors[actor]
	if seq == 0 || seq > uint64(len(recs)) {
		return nil
	}
	return recs[seq-1]
}

func (l *Log) Has(actor rdx.ActorID, seq uint64) bool {
	return l.get(actor, seq) != nil
}

func (l *Log) Get(actor rdx.ActorID, seq uint64) *Change {
	if rec := l.get(actor, seq); rec != nil {
		return rec.change
	}
	return nil
}

// Hash of the stored change content, used to tell a replayed change
// from a forked one.
func (l *Log) Hash(actor rdx.ActorID, seq uint64) (uint64, bool) {
	if rec := l.get(actor, seq); rec != nil {
		return rec.hash, true
	}
	return 0, false
}

// ClockOf returns the transitive causal clock of a change, nil if unknown.
func (l *Log) ClockOf(actor rdx.ActorID, seq uint64) rdx.Clock {
	if rec := l.get(actor, seq); rec != nil {
		return rec.clock.Clone()
	}
	return nil
}

func (l *Log) ForActor(actor rdx.ActorID) []*Change {
	recs := l.actors[actor]
	ret := make([]*Change, 0, len(recs))
	for _, rec := range recs {
		ret = append(ret, rec.change)
	}
	return ret
}

// Append adds a change at the next seq of its actor. All of its
// dependencies must be in the log already.
func (l *Log) Append(ch *Change) error {
	if rec := l.get(ch.Actor, ch.Seq); rec != nil {
		if rec.hash == ChangeHash(ch) {
			return automerge_errors.ErrDuplicateChange
		}
		return fmt.Errorf("%w: %s", automerge_errors.ErrForkedActor, ch.Key())
	}
	have := l.clock.Get(ch.Actor)
	if ch.Seq != have+1 {
		return &MissingDependencyError{Actor: ch.Actor, Seq: have + 1, For: ch.Key()}
	}
	clock := make(rdx.Clock)
	for _, dep := range ch.deps() {
		rec := l.get(dep.Actor, dep.Seq)
		if rec == nil {
			return &MissingDependencyError{Actor: dep.Actor, Seq: dep.Seq, For: ch.Key()}
		}
		clock.Merge(rec.clock)
	}
	clock.Set(ch.Actor, ch.Seq)
	l.actors[ch.Actor] = append(l.actors[ch.Actor], &record{
		change: ch,
		clock:  clock,
		hash:   ChangeHash(ch),
	})
	l.clock.Set(ch.Actor, ch.Seq)
	l.count++
	if m := ch.MaxOp(); m > l.maxOp {
		l.maxOp = m
	}
	return nil
}

// ChangesSince returns every change not covered by have, in a safe
// application order.
func (l *Log) ChangesSince(have rdx.Clock) ([]*Change, error) {
	var todo []*Change
	for actor, recs := range l.actors {
		from := have.Get(actor)
		for i := from; i < uint64(len(recs)); i++ {
			todo = append(todo, recs[i].change)
		}
	}
	return Order(todo, have)
}

// Changes lists the whole history in canonical order.
func (l *Log) Changes() []*Change {
	all, err := l.ChangesSince(nil)
	if err != nil {
		// a log only ever holds changes with satisfied deps
		panic(err)
	}
	return all
}

// MissingDependencyError names the first change that is needed but
// neither applied nor supplied.
type MissingDependencyError struct {
	Actor rdx.ActorID
	Seq   uint64
	For   ChangeKey
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("%s: %s:%d (needed by %s)",
		automerge_errors.ErrMissingDependency.Error(), e.Actor, e.Seq, e.For)
}

func (e *MissingDependencyError) Unwrap() error {
	return automerge_errors.ErrMissingDependency
}

// Order sorts changes topologically by their dependencies. Among the
// changes that are ready at any point the one with the least (actor, seq)
// goes first, so every replica derives the same order from the same set.
// Changes already covered by applied and duplicates are dropped.
func Order(changes []*Change, applied rdx.Clock) ([]*Change, error) {
	pending := make(map[ChangeKey]*Change, len(changes))
	for _, ch := range changes {
		if applied.Seen(ch.Actor, ch.Seq) {
			continue
		}
		pending[ch.Key()] = ch
	}
	keys := maps.Keys(pending)
	slices.SortFunc(keys, func(a, b ChangeKey) int {
		if a.Less(b) {
			return -1
		} else if b.Less(a) {
			return 1
		}
		return 0
	})

	blocks := make(map[ChangeKey]int, len(pending))
	waiters := make(map[ChangeKey][]ChangeKey)
	for _, key := range keys {
		for _, dep := range pending[key].deps() {
			if applied.Seen(dep.Actor, dep.Seq) {
				continue
			}
			if _, ok := pending[dep]; !ok {
				return nil, &MissingDependencyError{Actor: dep.Actor, Seq: dep.Seq, For: key}
			}
			blocks[key]++
			waiters[dep] = append(waiters[dep], key)
		}
	}

	ready := utils.NewHeap(ChangeKey.Less)
	for _, key := range keys {
		if blocks[key] == 0 {
			ready.Push(key)
		}
	}
	ordered := make([]*Change, 0, len(pending))
	for ready.Len() > 0 {
		key := ready.Pop()
		ordered = append(ordered, pending[key])
		for _, w := range waiters[key] {
			blocks[w]--
			if blocks[w] == 0 {
				ready.Push(w)
			}
		}
	}
	if len(ordered) < len(pending) {
		for _, key := range keys {
			if blocks[key] > 0 {
				return nil, &MissingDependencyError{Actor: key.Actor, Seq: key.Seq, For: key}
			}
		}
	}
	return ordered, nil
}

// Missing reports, per actor, the highest seq that changes depend on but
// that is neither applied nor among the changes.
func Missing(changes []*Change, applied rdx.Clock) rdx.Clock {
	have := applied.Clone()
	supplied := make(map[ChangeKey]bool, len(changes))
	for _, ch := range changes {
		supplied[ch.Key()] = true
	}
	missing := make(rdx.Clock)
	for _, ch := range changes {
		for _, dep := range ch.deps() {
			if !have.Seen(dep.Actor, dep.Seq) && !supplied[dep] {
				missing.Put(dep.Actor, dep.Seq)
			}
		}
	}
	return missing
}
