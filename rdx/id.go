package rdx

import (
	"cmp"
	"errors"
	"strconv"
	"strings"

	"github.com/learn-decentralized-systems/toytlv"
)

/*
OpID identifies a single operation: a Lamport-style counter plus the actor
that issued it. OpIDs are ordered by counter first, actor second.

	12@a1b2c3   counter 12 issued by actor a1b2c3

The zero OpID names the root map object and, used as an insertion
reference, the head of a list.
*/
type OpID struct {
	Counter uint64
	Actor   ActorID
}

var ID0 OpID

var ErrBadOpID = errors.New("rdx: bad op id")

func NewOpID(counter uint64, actor ActorID) OpID {
	return OpID{Counter: counter, Actor: actor}
}

func (id OpID) IsZero() bool {
	return id.Counter == 0 && id.Actor == ""
}

func (id OpID) Compare(b OpID) int {
	if c := cmp.Compare(id.Counter, b.Counter); c != 0 {
		return c
	}
	return id.Actor.Compare(b.Actor)
}

func (id OpID) Less(b OpID) bool {
	return id.Compare(b) < 0
}

func (id OpID) String() string {
	if id.IsZero() {
		return "_root"
	}
	var buf [24]byte
	b := strconv.AppendUint(buf[:0], id.Counter, 10)
	return string(b) + "@" + string(id.Actor)
}

func ParseOpID(str string) (id OpID, err error) {
	if str == "_root" || str == "_head" {
		return ID0, nil
	}
	ctr, actor, ok := strings.Cut(str, "@")
	if !ok {
		return ID0, ErrBadOpID
	}
	id.Counter, err = strconv.ParseUint(ctr, 10, 64)
	if err != nil || id.Counter == 0 {
		return ID0, ErrBadOpID
	}
	id.Actor = ActorID(actor)
	if !id.Actor.Valid() {
		return ID0, ErrBadOpID
	}
	return id, nil
}

// TLV is the body of an id record: a zipped counter record, then the actor.
func (id OpID) TLV() []byte {
	return toytlv.Concat(
		toytlv.Record('N', ZipUint64(id.Counter)),
		[]byte(id.Actor),
	)
}

func OpIDFromTLV(body []byte) (id OpID, err error) {
	ctr, rest, err := toytlv.TakeWary('N', body)
	if err != nil {
		return ID0, err
	}
	if len(ctr) > 8 {
		return ID0, ErrBadOpID
	}
	id = OpID{Counter: UnzipUint64(ctr), Actor: ActorID(rest)}
	if !id.IsZero() && (id.Counter == 0 || !id.Actor.Valid()) {
		return ID0, ErrBadOpID
	}
	return id, nil
}
