package shapes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMake(t *testing.T) {
	s := Make(Float32, 2, 3)
	require.True(t, s.Ok())
	assert.Equal(t, 2, s.Rank())
	assert.Equal(t, 6, s.Size())
	assert.Equal(t, 3, s.Dim(1))
	assert.Equal(t, 3, s.Dim(-1))
	assert.Equal(t, "(Float32)[2 3]", s.String())

	assert.Panics(t, func() { Make(Float32, 2, 0) })
	assert.Panics(t, func() { s.Dim(2) })
}

func TestScalar(t *testing.T) {
	s := Scalar(Float64)
	require.True(t, s.IsScalar())
	assert.Equal(t, 1, s.Size())
	assert.Equal(t, uintptr(8), s.Memory())
	assert.False(t, Invalid().Ok())
	assert.False(t, Shape{}.Ok())
}

func TestMemory(t *testing.T) {
	assert.Equal(t, uintptr(12), Make(Float16, 2, 3).Memory())
	assert.Equal(t, uintptr(24), Make(Float32, 2, 3).Memory())
	assert.Equal(t, uintptr(6), Make(Bool, 2, 3).Memory())
}

func TestEqualAndTrailingDims(t *testing.T) {
	a := Make(Float32, 2, 3)
	b := Make(Float32, 2, 3)
	c := Make(Float32, 5, 3)
	d := Make(Float64, 2, 3)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.True(t, a.EqualDims(d))

	// Batching along axis 0: same trailing dims, same dtype.
	assert.True(t, a.SameTrailingDims(c))
	assert.False(t, a.SameTrailingDims(d))
	assert.True(t, Make(Float32, 7).SameTrailingDims(Scalar(Float32)))
	assert.False(t, Make(Float32, 2, 3).SameTrailingDims(Make(Float32, 4)))
}

func TestDTypeCast(t *testing.T) {
	assert.Equal(t, 1.0, Bool.Cast(3.5))
	assert.Equal(t, 0.0, Bool.Cast(0))
	assert.Equal(t, 3.0, Int32.Cast(3.7))
	assert.Equal(t, 1.0, Float16.Cast(1.0))
	assert.Equal(t, 0.0, Float16.Cast(0.0))

	// Float16 rounds to its 11-bit mantissa.
	casted := Float16.Cast(1.0001)
	assert.NotEqual(t, 1.0001, casted)
	assert.InDelta(t, 1.0, casted, 1e-3)

	assert.Equal(t, []float64{0, 1, 2}, Int64.CastSlice([]float64{0.2, 1.9, 2.0}))
}

func TestDTypeStrings(t *testing.T) {
	assert.Equal(t, "Float32", Float32.String())
	dt, err := DTypeString("Float32")
	require.NoError(t, err)
	assert.Equal(t, Float32, dt)
	_, err = DTypeString("Quaternion")
	assert.Error(t, err)
	assert.True(t, Float16.IsFloat())
	assert.True(t, Int64.IsInt())
	assert.False(t, Bool.IsFloat())
}
