package rdx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOpID(t *testing.T) {
	ids := []string{
		"1@alice",
		"3@bob",
		"18446744073709551615@f00dfeed",
	}
	for _, str := range ids {
		id, err := ParseOpID(str)
		assert.NoError(t, err)
		assert.Equal(t, str, id.String())
		id2, err := OpIDFromTLV(id.TLV())
		assert.NoError(t, err)
		assert.Equal(t, id, id2)
	}
	for _, bad := range []string{"", "7", "0@alice", "x@alice", "1@", "1@a b"} {
		_, err := ParseOpID(bad)
		assert.ErrorIs(t, err, ErrBadOpID, bad)
	}
	root, err := ParseOpID("_root")
	assert.NoError(t, err)
	assert.True(t, root.IsZero())
	assert.Equal(t, "_root", root.String())
}

func TestOpIDOrder(t *testing.T) {
	a1 := NewOpID(1, "a")
	b1 := NewOpID(1, "b")
	a2 := NewOpID(2, "a")
	assert.True(t, a1.Less(b1))
	assert.True(t, b1.Less(a2))
	assert.True(t, ID0.Less(a1))
	assert.Equal(t, 0, a2.Compare(NewOpID(2, "a")))
}

func TestActorID(t *testing.T) {
	a := NewActorID()
	assert.True(t, a.Valid())
	assert.Len(t, string(a), 32)
	assert.NotEqual(t, a, NewActorID())
	assert.False(t, ActorID("").Valid())
	assert.False(t, ActorID("has space").Valid())
	assert.Equal(t, -1, ActorID("aaa").Compare("aab"))
	assert.Equal(t, 1, ActorID("b").Compare("aaaa"))
}
