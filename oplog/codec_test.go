package oplog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jake-bladt/automerge/automerge_errors"
	"github.com/jake-bladt/automerge/rdx"
)

func sample() *Change {
	list := rdx.NewOpID(7, "alice")
	return &Change{
		Actor:   "alice",
		Seq:     3,
		StartOp: 7,
		Deps:    rdx.Clock{"bob": 2},
		Message: "add pixels",
		Ops: []Op{
			{Action: MakeList, Obj: rdx.ID0},
			{Action: Set, Obj: rdx.ID0, Key: "pixels", Value: rdx.Ref(list)},
			{Action: Insert, Obj: list, Value: rdx.Str("red")},
			{Action: Insert, Obj: list, Elem: rdx.NewOpID(9, "alice"), Value: rdx.Flt(0.5)},
			{Action: Set, Obj: rdx.ID0, Key: "clicks", Value: rdx.Counter(0)},
			{Action: Increment, Obj: rdx.ID0, Key: "clicks", Delta: -3},
			{Action: Delete, Obj: list, Elem: rdx.NewOpID(9, "alice")},
		},
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	ch := sample()
	assert.NoError(t, ch.Validate())
	enc := EncodeChange(ch)
	dec, rest, err := DecodeChange(append(enc, enc...))
	assert.NoError(t, err)
	assert.Equal(t, enc, rest)
	assert.Equal(t, ch, dec)
	assert.Equal(t, ChangeHash(ch), ChangeHash(dec))
	assert.Equal(t, uint64(13), dec.MaxOp())
}

func TestCodec_Malformed(t *testing.T) {
	enc := EncodeChange(sample())
	for _, cut := range []int{0, 1, 5, len(enc) / 2, len(enc) - 1} {
		_, _, err := DecodeChange(enc[:cut])
		assert.ErrorIs(t, err, automerge_errors.ErrMalformedEncoding, "cut at %d", cut)
	}
	_, _, err := DecodeChange([]byte("not a change at all"))
	assert.ErrorIs(t, err, automerge_errors.ErrMalformedEncoding)

	bad := sample()
	bad.Seq = 0
	_, _, err = DecodeChange(EncodeChange(bad))
	assert.ErrorIs(t, err, automerge_errors.ErrMalformedEncoding)
}

func TestChange_Validate(t *testing.T) {
	ch := sample()
	ch.Deps = rdx.Clock{"alice": 1}
	assert.ErrorIs(t, ch.Validate(), ErrBadChange)

	ch = sample()
	ch.Ops[1].Value = rdx.Ref(rdx.NewOpID(99, "alice"))
	assert.ErrorIs(t, ch.Validate(), ErrBadChange)

	ch = sample()
	ch.Ops = append(ch.Ops, Op{Action: Set, Obj: rdx.ID0, Value: rdx.Int(1)})
	assert.ErrorIs(t, ch.Validate(), ErrBadChange)
}

func TestChange_ValidateRefs(t *testing.T) {
	list := rdx.NewOpID(7, "alice")
	cases := map[string]func(ch *Change){
		"older object": func(ch *Change) {
			ch.Ops[1].Value = rdx.Ref(rdx.NewOpID(3, "alice"))
		},
		"other actor": func(ch *Change) {
			ch.Ops[1].Value = rdx.Ref(rdx.NewOpID(7, "bob"))
		},
		"not an object": func(ch *Change) {
			ch.Ops[5].Value = rdx.Ref(rdx.NewOpID(11, "alice"))
			ch.Ops[5].Action = Set
		},
		"placed twice": func(ch *Change) {
			ch.Ops[4].Value = rdx.Ref(list)
		},
		"placed inside itself": func(ch *Change) {
			ch.Ops[1].Obj = list
			ch.Ops[1].Key = "self"
		},
	}
	for name, spoil := range cases {
		ch := sample()
		spoil(ch)
		assert.ErrorIs(t, ch.Validate(), ErrBadChange, name)
	}

	filledFirst := &Change{Actor: "alice", Seq: 1, StartOp: 1, Ops: []Op{
		{Action: MakeMap},
		{Action: MakeMap},
		{Action: Set, Obj: rdx.NewOpID(1, "alice"), Key: "inner", Value: rdx.Ref(rdx.NewOpID(2, "alice"))},
		{Action: Set, Obj: rdx.NewOpID(2, "alice"), Key: "outer", Value: rdx.Ref(rdx.NewOpID(1, "alice"))},
	}}
	assert.ErrorIs(t, filledFirst.Validate(), ErrBadChange)

	nested := &Change{Actor: "alice", Seq: 1, StartOp: 1, Ops: []Op{
		{Action: MakeMap},
		{Action: Set, Obj: rdx.ID0, Key: "a", Value: rdx.Ref(rdx.NewOpID(1, "alice"))},
		{Action: MakeList},
		{Action: Set, Obj: rdx.NewOpID(1, "alice"), Key: "b", Value: rdx.Ref(rdx.NewOpID(3, "alice"))},
	}}
	assert.NoError(t, nested.Validate())
}
