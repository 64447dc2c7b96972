package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSparseVectorConversion(t *testing.T) {
	indices := []int64{3, 17, 4096}
	values := []float32{0.5, 1.25, 0.75}

	vec := sparseVector(indices, values)
	require.NotNil(t, vec)
	assert.Equal(t, []uint32{3, 17, 4096}, vec.Indices)
	assert.Equal(t, []float32{0.5, 1.25, 0.75}, vec.Values)

	// the conversion copies; mutating the source must not leak through
	values[0] = 99
	assert.Equal(t, float32(0.5), vec.Values[0])
}

func TestSparseVectorConversionEmpty(t *testing.T) {
	vec := sparseVector(nil, nil)
	require.NotNil(t, vec)
	assert.Empty(t, vec.Indices)
	assert.Empty(t, vec.Values)
}
