package rdx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZipUint64(t *testing.T) {
	test := map[uint64]int{
		0:                  0,
		0xca:               1,
		0xbeff:             2,
		0x12345678:         4,
		0x7777777788888888: 8,
	}
	for u, l := range test {
		zip := ZipUint64(u)
		assert.Equal(t, l, len(zip))
		assert.Equal(t, u, UnzipUint64(zip))
	}
}

func TestZigZagInt64(t *testing.T) {
	test := map[int64]uint64{
		0:   0,
		-14: 27,
		-10: 19,
		7:   14,
		20:  40,
	}
	for i, u := range test {
		u2 := ZigZagInt64(i)
		assert.Equal(t, u, u2)
		assert.Equal(t, i, ZagZigUint64(u2))
		assert.Equal(t, i, UnzipInt64(ZipInt64(i)))
	}
}

func TestZipFloat64(t *testing.T) {
	test := map[float64]int{
		0:     0,
		1:     2,
		1234:  3,
		12.25: 3,
	}
	for f, l := range test {
		u := ZipFloat64(f)
		assert.Equal(t, l, len(u))
		assert.Equal(t, f, UnzipFloat64(u))
	}
}
