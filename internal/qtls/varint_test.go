package qtls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarIntLen(t *testing.T) {
	cases := []struct {
		v    uint64
		want int
	}{
		{0, 1},
		{maxVarInt1, 1},
		{maxVarInt1 + 1, 2},
		{maxVarInt2, 2},
		{maxVarInt2 + 1, 4},
		{maxVarInt4, 4},
		{maxVarInt4 + 1, 8},
		{MaxVarInt, 8},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, VarIntLen(c.v), "VarIntLen(%d)", c.v)
	}
}

func TestAppendVarIntExactVectors(t *testing.T) {
	// From RFC 9000 §A.1.
	assert.Equal(t, []byte{0x25}, AppendVarInt(nil, 37))
	assert.Equal(t, []byte{0x7b, 0xbd}, AppendVarInt(nil, 15293))
	assert.Equal(t, []byte{0x9d, 0x7f, 0x3e, 0x7d}, AppendVarInt(nil, 494878333))
	assert.Equal(t, []byte{0xc2, 0x19, 0x7c, 0x5e, 0xff, 0x14, 0xe8, 0x8c}, AppendVarInt(nil, 151288809941952652))

	// 16384 is the smallest value requiring the 4-byte form.
	assert.Equal(t, []byte{0x80, 0x00, 0x40, 0x00}, AppendVarInt(nil, 16384))
}

func TestVarIntRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 63, 64, 16383, 16384, maxVarInt4, maxVarInt4 + 1, MaxVarInt}
	for _, v := range values {
		buf := AppendVarInt(nil, v)
		got, n, err := DecodeVarInt(len(buf), buf, 0)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, len(buf), n)
	}
}

func TestDecodeVarIntTruncated(t *testing.T) {
	buf := []byte{0xc0} // claims 8-byte form, no further bytes
	_, _, err := DecodeVarInt(len(buf), buf, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestDecodeVarIntEmpty(t *testing.T) {
	_, _, err := DecodeVarInt(0, nil, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}
