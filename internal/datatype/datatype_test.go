package datatype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAOB(t *testing.T) {
	b, err := ParseAOB("DE AD, BE EF")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, b)
	assert.Equal(t, "DE AD BE EF", FormatAOB(b))

	b2, err := ParseAOB("0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, b, b2)
}

func TestParseAOBSingleDigitPadding(t *testing.T) {
	b, err := ParseAOB("A B")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0A, 0x0B}, b)
}

func TestParseHexAddress(t *testing.T) {
	a, err := ParseHexAddress("0x1000")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1000), a)

	b, err := ParseHexAddress("1000")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1000), b)
}

func TestParseHexOrInt(t *testing.T) {
	v, err := ParseHexOrInt("0x10")
	require.NoError(t, err)
	assert.Equal(t, int64(16), v)

	v2, err := ParseHexOrInt("10")
	require.NoError(t, err)
	assert.Equal(t, int64(10), v2)
}

func TestIntImmediateEqual(t *testing.T) {
	ty := Lookup(I32)
	require.NotNil(t, ty)
	val, err := ParseAnonymous(ty, "0")
	require.NoError(t, err)
	zero := make([]byte, 4)
	assert.True(t, ty.Immediate[CompareEqual](zero, val.Bytes, ty.ByteOrder, Tolerance{}))
	assert.False(t, ty.Immediate[CompareNotEqual](zero, val.Bytes, ty.ByteOrder, Tolerance{}))
}

func TestIntRelativeIncreased(t *testing.T) {
	ty := Lookup(U32)
	cur := make([]byte, 4)
	prev := make([]byte, 4)
	ty.ByteOrder.PutUint32(cur, 10)
	ty.ByteOrder.PutUint32(prev, 5)
	assert.True(t, ty.Relative[CompareIncreased](cur, prev, nil, ty.ByteOrder, Tolerance{}))
	assert.False(t, ty.Relative[CompareDecreased](cur, prev, nil, ty.ByteOrder, Tolerance{}))
}

func TestVectorImmediateMatchesScalarPerLane(t *testing.T) {
	ty := Lookup(U32)
	buf := make([]byte, 16) // 4 lanes of u32
	ty.ByteOrder.PutUint32(buf[4:8], 7)
	zero, _ := ParseAnonymous(ty, "0")
	mask := make([]byte, 4)
	ty.VecImmediate[CompareEqual](buf, zero.Bytes, ty.ByteOrder, Tolerance{}, mask)
	assert.Equal(t, []byte{0xFF, 0x00, 0xFF, 0xFF}, mask)
	assert.False(t, MaskAllTrue(mask))
	assert.False(t, MaskAllFalse(mask))
}

func TestFloatToleranceEquality(t *testing.T) {
	ty := Lookup(F32)
	a, _ := ParseAnonymous(ty, "1.0")
	b, _ := ParseAnonymous(ty, "1.0000001")
	assert.True(t, ty.Immediate[CompareEqual](a.Bytes, b.Bytes, ty.ByteOrder, Tolerance{Absolute: 0.001}))
}
