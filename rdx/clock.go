package rdx

import (
	"errors"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/learn-decentralized-systems/toytlv"
)

// Clock is a version vector: the highest change seq applied from each actor.
type Clock map[ActorID]uint64

func (c Clock) Get(actor ActorID) uint64 {
	return c[actor]
}

// Set the seq for the specified actor
func (c Clock) Set(actor ActorID, seq uint64) {
	c[actor] = seq
}

// Put raises the actor's seq, returns whether it made any difference.
func (c Clock) Put(actor ActorID, seq uint64) bool {
	pre, ok := c[actor]
	if ok && pre >= seq {
		return false
	}
	c[actor] = seq
	return true
}

// Covers tells whether c has seen everything b has seen.
func (c Clock) Covers(b Clock) bool {
	for actor, seq := range b {
		if seq > c[actor] {
			return false
		}
	}
	return true
}

// Seen tells whether change (actor, seq) is covered.
func (c Clock) Seen(actor ActorID, seq uint64) bool {
	return c[actor] >= seq
}

func (c Clock) Clone() Clock {
	if c == nil {
		return Clock{}
	}
	return maps.Clone(c)
}

// Merge raises every entry of c to at least b's value.
func (c Clock) Merge(b Clock) {
	for actor, seq := range b {
		c.Put(actor, seq)
	}
}

// Without returns a copy lacking the actor's entry.
func (c Clock) Without(actor ActorID) Clock {
	ret := c.Clone()
	delete(ret, actor)
	return ret
}

func (c Clock) Equal(b Clock) bool {
	return c.Covers(b) && b.Covers(c)
}

func (c Clock) Actors() []ActorID {
	actors := make([]ActorID, 0, len(c))
	for actor, seq := range c {
		if seq > 0 {
			actors = append(actors, actor)
		}
	}
	slices.Sort(actors)
	return actors
}

// Total is the number of changes the clock accounts for.
func (c Clock) Total() (n uint64) {
	for _, seq := range c {
		n += seq
	}
	return
}

func (c Clock) String() string {
	actors := c.Actors()
	parts := make([]string, 0, len(actors))
	for _, actor := range actors {
		parts = append(parts, string(actor)+":"+strconv.FormatUint(c[actor], 10))
	}
	return strings.Join(parts, ",")
}

var ErrBadClock = errors.New("rdx: bad clock")

func ClockFromString(str string) (c Clock, err error) {
	c = make(Clock)
	if len(str) == 0 {
		return
	}
	for _, part := range strings.Split(str, ",") {
		actor, seq, ok := strings.Cut(part, ":")
		if !ok || !ActorID(actor).Valid() {
			return nil, ErrBadClock
		}
		n, e := strconv.ParseUint(seq, 10, 64)
		if e != nil {
			return nil, ErrBadClock
		}
		c.Put(ActorID(actor), n)
	}
	return
}

// TLV clock record body, one V record per actor, sorted; nil for empty.
func (c Clock) TLV() (ret []byte) {
	for _, actor := range c.Actors() {
		ret = append(ret, toytlv.Record('V',
			toytlv.Record('A', []byte(actor)),
			ZipUint64(c[actor]),
		)...)
	}
	return
}

// consumes: a sequence of V records
func (c Clock) PutTLV(tlv []byte) (err error) {
	rest := tlv
	for len(rest) > 0 {
		var body, actor []byte
		body, rest, err = toytlv.TakeWary('V', rest)
		if err != nil {
			return err
		}
		actor, body, err = toytlv.TakeWary('A', body)
		if err != nil {
			return err
		}
		if len(body) > 8 || !ActorID(actor).Valid() {
			return ErrBadClock
		}
		c.Put(ActorID(actor), UnzipUint64(body))
	}
	return nil
}

func ClockFromTLV(tlv []byte) (c Clock, err error) {
	c = make(Clock)
	err = c.PutTLV(tlv)
	return
}
