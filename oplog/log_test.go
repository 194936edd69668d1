package oplog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jake-bladt/automerge/automerge_errors"
	"github.com/jake-bladt/automerge/rdx"
)

func change(actor rdx.ActorID, seq, start uint64, deps rdx.Clock, ops ...Op) *Change {
	if deps == nil {
		deps = rdx.Clock{}
	}
	return &Change{Actor: actor, Seq: seq, StartOp: start, Deps: deps, Ops: ops}
}

func setOp(key string, val string) Op {
	return Op{Action: Set, Obj: rdx.ID0, Key: key, Value: rdx.Str(val)}
}

func keys(changes []*Change) (ret []string) {
	for _, ch := range changes {
		ret = append(ret, ch.Key().String())
	}
	return
}

func TestLog_Append(t *testing.T) {
	l := NewLog()
	a1 := change("a", 1, 1, nil, setOp("x", "1"))
	assert.NoError(t, l.Append(a1))
	assert.ErrorIs(t, l.Append(a1), automerge_errors.ErrDuplicateChange)

	forked := change("a", 1, 1, nil, setOp("x", "2"))
	assert.ErrorIs(t, l.Append(forked), automerge_errors.ErrForkedActor)

	gap := change("a", 3, 5, nil)
	err := l.Append(gap)
	assert.ErrorIs(t, err, automerge_errors.ErrMissingDependency)
	var mde *MissingDependencyError
	assert.ErrorAs(t, err, &mde)
	assert.Equal(t, uint64(2), mde.Seq)

	b1 := change("b", 1, 2, rdx.Clock{"a": 1}, setOp("x", "3"))
	assert.NoError(t, l.Append(b1))
	assert.Equal(t, "a:1,b:1", l.Clock().String())
	assert.Equal(t, "a:1,b:1", l.ClockOf("b", 1).String())
	assert.Equal(t, uint64(2), l.MaxOp())
	assert.Equal(t, 2, l.Len())
	assert.Same(t, b1, l.Get("b", 1))
	assert.Nil(t, l.Get("b", 2))

	c1 := change("c", 1, 1, rdx.Clock{"b": 2})
	assert.ErrorIs(t, l.Append(c1), automerge_errors.ErrMissingDependency)
}

func TestLog_CloneIsolation(t *testing.T) {
	l := NewLog()
	assert.NoError(t, l.Append(change("a", 1, 1, nil, setOp("x", "1"))))
	f1 := l.Clone()
	f2 := l.Clone()
	assert.NoError(t, f1.Append(change("a", 2, 2, nil, setOp("x", "f1"))))
	assert.NoError(t, f2.Append(change("b", 1, 2, rdx.Clock{"a": 1}, setOp("x", "f2"))))
	assert.Equal(t, "a:1", l.Clock().String())
	assert.Equal(t, "a:2", f1.Clock().String())
	assert.Equal(t, "a:1,b:1", f2.Clock().String())
	assert.Len(t, f2.ForActor("a"), 1)
}

func TestOrder_Deterministic(t *testing.T) {
	a1 := change("a", 1, 1, nil)
	a2 := change("a", 2, 2, nil)
	b1 := change("b", 1, 1, nil)
	b2 := change("b", 2, 3, rdx.Clock{"a": 2})
	c1 := change("c", 1, 4, rdx.Clock{"b": 2})

	want := []string{"a:1", "a:2", "b:1", "b:2", "c:1"}
	for _, batch := range [][]*Change{
		{c1, b2, b1, a2, a1},
		{a1, a2, b1, b2, c1},
		{b2, c1, a1, b1, a2, a1},
	} {
		ordered, err := Order(batch, nil)
		assert.NoError(t, err)
		assert.Equal(t, want, keys(ordered))
	}

	ordered, err := Order([]*Change{c1, b2, b1, a2, a1}, rdx.Clock{"a": 2})
	assert.NoError(t, err)
	assert.Equal(t, []string{"b:1", "b:2", "c:1"}, keys(ordered))
}

func TestOrder_Missing(t *testing.T) {
	b2 := change("b", 2, 3, rdx.Clock{"a": 2})
	_, err := Order([]*Change{b2}, rdx.Clock{"b": 1})
	var mde *MissingDependencyError
	assert.ErrorAs(t, err, &mde)
	assert.Equal(t, rdx.ActorID("a"), mde.Actor)
	assert.Equal(t, uint64(2), mde.Seq)
	assert.Equal(t, "b:2", mde.For.String())

	missing := Missing([]*Change{b2}, rdx.Clock{"a": 1})
	assert.Equal(t, "a:2,b:1", missing.String())
}

func TestLog_ChangesSince(t *testing.T) {
	l := NewLog()
	assert.NoError(t, l.Append(change("b", 1, 1, nil)))
	assert.NoError(t, l.Append(change("a", 1, 1, nil)))
	assert.NoError(t, l.Append(change("a", 2, 2, rdx.Clock{"b": 1})))
	assert.NoError(t, l.Append(change("b", 2, 3, rdx.Clock{"a": 2})))

	assert.Equal(t, []string{"a:1", "b:1", "a:2", "b:2"}, keys(l.Changes()))
	since, err := l.ChangesSince(rdx.Clock{"a": 1, "b": 1})
	assert.NoError(t, err)
	assert.Equal(t, []string{"a:2", "b:2"}, keys(since))
	since, err = l.ChangesSince(l.Clock())
	assert.NoError(t, err)
	assert.Empty(t, since)
}

func TestLog_Hash(t *testing.T) {
	l := NewLog()
	a1 := change("a", 1, 1, nil, setOp("k", "v"))
	assert.NoError(t, l.Append(a1))
	h, ok := l.Hash("a", 1)
	assert.True(t, ok)
	assert.Equal(t, ChangeHash(a1), h)
	_, ok = l.Hash("a", 2)
	assert.False(t, ok)
}
