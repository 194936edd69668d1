package host

import (
	"encoding/binary"

	"github.com/jake-bladt/automerge/rdx"
)

// Key layout: C<actor>\0<seq:8 big-endian> holds an encoded change,
// M<name> holds replica metadata.
const (
	litChange = 'C'
	litMeta   = 'M'
)

var ActorKey = []byte{litMeta, 'a', 'c', 't', 'o', 'r'}

func ChangeKey(actor rdx.ActorID, seq uint64) (key []byte) {
	key = make([]byte, 0, 1+len(actor)+1+8)
	key = append(key, litChange)
	key = append(key, actor...)
	key = append(key, 0)
	return binary.BigEndian.AppendUint64(key, seq)
}

func ParseChangeKey(key []byte) (actor rdx.ActorID, seq uint64, ok bool) {
	if len(key) < 1+1+1+8 || key[0] != litChange || key[len(key)-9] != 0 {
		return "", 0, false
	}
	actor = rdx.ActorID(key[1 : len(key)-9])
	seq = binary.BigEndian.Uint64(key[len(key)-8:])
	return actor, seq, actor.Valid()
}

// ChangeKeyRange bounds all change keys.
func ChangeKeyRange() (fro, til []byte) {
	return []byte{litChange}, []byte{litChange + 1}
}
