package host

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jake-bladt/automerge/rdx"
)

func TestChangeKey(t *testing.T) {
	key := ChangeKey("alice", 258)
	assert.Equal(t, []byte("Calice\x00\x00\x00\x00\x00\x00\x00\x01\x02"), key)
	actor, seq, ok := ParseChangeKey(key)
	assert.True(t, ok)
	assert.Equal(t, rdx.ActorID("alice"), actor)
	assert.Equal(t, uint64(258), seq)

	// per actor, keys sort by seq
	assert.Equal(t, -1, bytes.Compare(ChangeKey("alice", 9), ChangeKey("alice", 10)))
	fro, til := ChangeKeyRange()
	assert.Equal(t, 1, bytes.Compare(key, fro))
	assert.Equal(t, -1, bytes.Compare(key, til))

	_, _, ok = ParseChangeKey(ActorKey)
	assert.False(t, ok)
	_, _, ok = ParseChangeKey([]byte("C\x00\x00\x00\x00\x00\x00\x00\x00\x01"))
	assert.False(t, ok)
}
