// Package oplog holds the causal change history of a document: immutable
// changes, the per-actor append-only log and the single deterministic
// ordering rule used to replay them.
package oplog

import (
	"errors"
	"fmt"

	"github.com/jake-bladt/automerge/rdx"
)

type Action byte

const (
	MakeMap   Action = 'M'
	MakeList  Action = 'L'
	Set       Action = 'S'
	Insert    Action = 'I'
	Delete    Action = 'D'
	Increment Action = 'C'
)

func (a Action) String() string {
	switch a {
	case MakeMap:
		return "makeMap"
	case MakeList:
		return "makeList"
	case Set:
		return "set"
	case Insert:
		return "ins"
	case Delete:
		return "del"
	case Increment:
		return "inc"
	}
	return fmt.Sprintf("action(%d)", byte(a))
}

// Op is a primitive edit. Map slots are addressed by Key, list slots by
// Elem; for Insert, Elem is the element the new one goes after.
type Op struct {
	Action Action
	Obj    rdx.OpID
	Key    string
	Elem   rdx.OpID
	Value  rdx.Value
	Delta  int64
}

// Change is a batch of ops made by one actor in one edit session.
// Op i has OpID (StartOp+i, Actor). Deps lists, for every other actor,
// the last seq the author had applied; (Actor, Seq-1) is implied.
type Change struct {
	Actor   rdx.ActorID
	Seq     uint64
	StartOp uint64
	Deps    rdx.Clock
	Message string
	Ops     []Op
}

type ChangeKey struct {
	Actor rdx.ActorID
	Seq   uint64
}

func (k ChangeKey) String() string {
	return fmt.Sprintf("%s:%d", k.Actor, k.Seq)
}

func (k ChangeKey) Less(b ChangeKey) bool {
	if k.Actor != b.Actor {
		return k.Actor < b.Actor
	}
	return k.Seq < b.Seq
}

func (ch *Change) Key() ChangeKey {
	return ChangeKey{Actor: ch.Actor, Seq: ch.Seq}
}

func (ch *Change) OpID(i int) rdx.OpID {
	return rdx.NewOpID(ch.StartOp+uint64(i), ch.Actor)
}

// MaxOp is the counter of the last op, StartOp-1 for an empty change.
func (ch *Change) MaxOp() uint64 {
	return ch.StartOp + uint64(len(ch.Ops)) - 1
}

// Clock is the deps plus the change itself.
func (ch *Change) Clock() rdx.Clock {
	c := ch.Deps.Clone()
	c.Set(ch.Actor, ch.Seq)
	return c
}

// deps lists every change this one directly depends on.
func (ch *Change) deps() (keys []ChangeKey) {
	if ch.Seq > 1 {
		keys = append(keys, ChangeKey{ch.Actor, ch.Seq - 1})
	}
	for _, actor := range ch.Deps.Actors() {
		keys = append(keys, ChangeKey{actor, ch.Deps[actor]})
	}
	return
}

var ErrBadChange = errors.New("oplog: bad change")

func badChange(ch *Change, format string, args ...any) error {
	return fmt.Errorf("%w %s:%d: %s", ErrBadChange, ch.Actor, ch.Seq, fmt.Sprintf(format, args...))
}

// Validate checks the change for structural violations, not causality.
func (ch *Change) Validate() error {
	if !ch.Actor.Valid() {
		return badChange(ch, "actor id")
	}
	if ch.Seq == 0 || ch.StartOp == 0 {
		return badChange(ch, "zero seq or start op")
	}
	if ch.Deps.Get(ch.Actor) != 0 {
		return badChange(ch, "depends on its own actor")
	}
	for actor := range ch.Deps {
		if !actor.Valid() {
			return badChange(ch, "dep actor id")
		}
	}
	placed := make(map[rdx.OpID]bool)
	filled := make(map[rdx.OpID]bool)
	for i, op := range ch.Ops {
		if err := op.validate(); err != nil {
			return badChange(ch, "op %d: %s", i, err.Error())
		}
		if op.Value.IsRef() {
			if err := ch.validateRef(i, placed, filled); err != nil {
				return badChange(ch, "op %d: %s", i, err.Error())
			}
		}
		filled[op.Obj] = true
	}
	return nil
}

// validateRef keeps the object graph a tree: a reference names an object
// made earlier in the same change, is placed once, and is placed before
// anything is written into the object.
func (ch *Change) validateRef(i int, placed, filled map[rdx.OpID]bool) error {
	op := &ch.Ops[i]
	ref := op.Value.Ref
	if ref.Actor != ch.Actor || ref.Counter < ch.StartOp || !ref.Less(ch.OpID(i)) {
		return errors.New("references an object made outside the change")
	}
	switch ch.Ops[ref.Counter-ch.StartOp].Action {
	case MakeMap, MakeList:
	default:
		return errors.New("references a non-object op")
	}
	if placed[ref] {
		return errors.New("references an object twice")
	}
	if op.Obj == ref || filled[ref] {
		return errors.New("places an object inside itself")
	}
	placed[ref] = true
	return nil
}

func (op *Op) validate() error {
	switch op.Action {
	case MakeMap, MakeList:
		return nil
	case Set, Delete, Increment:
		if len(op.Key) == 0 && op.Elem.IsZero() {
			return errors.New("no key or element")
		}
	}
	switch op.Action {
	case Set:
		if op.Value.Type == rdx.None {
			return errors.New("set without a value")
		}
	case Insert:
		if op.Value.Type == rdx.None {
			return errors.New("insert without a value")
		}
		if len(op.Key) != 0 {
			return errors.New("insert into a map key")
		}
	case Delete:
	case Increment:
		if op.Value.Type != rdx.None {
			return errors.New("increment carries a value")
		}
	default:
		return fmt.Errorf("unknown action %d", op.Action)
	}
	return nil
}
