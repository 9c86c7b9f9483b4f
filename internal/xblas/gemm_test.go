package xblas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGemmF32(t *testing.T) {
	a := []float32{1, 2, 3, 4, 5, 6}  // (2,3)
	b := []float32{7, 8, 9, 10, 11, 12} // (3,2)
	c := make([]float32, 4)

	GemmF32(2, 2, 3, a, b, c)
	assert.Equal(t, []float32{58, 64, 139, 154}, c)
}

func TestGemmI64(t *testing.T) {
	a := []int32{1, 2, 3, 4, 5, 6}
	b := []int32{7, 8, 9, 10, 11, 12}
	c := make([]int32, 4)

	GemmI64(2, 2, 3, a, b, c)
	assert.Equal(t, []int32{58, 64, 139, 154}, c)
}
