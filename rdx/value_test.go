package rdx

import (
	"testing"

	"github.com/learn-decentralized-systems/toytlv"
	"github.com/stretchr/testify/assert"
)

func TestValueTLV(t *testing.T) {
	values := []Value{
		Str("funny\tstring\n"),
		Str(""),
		Int(-13),
		Int(1 << 40),
		Flt(3.25),
		Counter(-2),
		Bool(true),
		Bool(false),
		Null(),
		Ref(NewOpID(12, "b0b")),
	}
	for _, v := range values {
		lit, body, rest, err := toytlv.TakeAnyWary(v.TLV())
		assert.NoError(t, err)
		assert.Empty(t, rest)
		v2, err := ValueFromTLV(lit, body)
		assert.NoError(t, err)
		assert.Equal(t, v, v2)
	}
	_, err := ValueFromTLV(Term, []byte("maybe"))
	assert.ErrorIs(t, err, ErrBadValue)
	_, err = ValueFromTLV('Q', nil)
	assert.ErrorIs(t, err, ErrBadValue)
}

func TestValueNative(t *testing.T) {
	assert.Equal(t, "x", Str("x").Native())
	assert.Equal(t, int64(5), Counter(5).Native())
	assert.Equal(t, true, Bool(true).Native())
	assert.Nil(t, Null().Native())
	assert.Equal(t, `"x"`, Str("x").String())
	assert.Equal(t, "#5", Counter(5).String())
	assert.Equal(t, "{1@a}", Ref(NewOpID(1, "a")).String())
}

func TestZipInt(t *testing.T) {
	for _, i := range []int64{0, 1, -1, 127, -128, 1 << 62, -1 << 63} {
		assert.Equal(t, i, UnzipInt64(ZipInt64(i)))
	}
	assert.Len(t, ZipUint64(0), 0)
	assert.Len(t, ZipUint64(0x1ff), 2)
	assert.Len(t, ZipFloat64(1.0), 2)
	assert.Equal(t, 1.5, UnzipFloat64(ZipFloat64(1.5)))
}
