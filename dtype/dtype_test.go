package dtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPromote(t *testing.T) {
	tests := []struct {
		name string
		a, b DType
		want DType
	}{
		{"b8+b8 promotes to i32", B8, B8, I32},
		{"b8+i32 promotes to i32", B8, I32, I32},
		{"i32+f32 promotes to f32", I32, F32, F32},
		{"f32+f32 stays f32", F32, F32, F32},
		{"b8+f32 promotes to f32", B8, F32, F32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Promote(tt.a, tt.b))
			assert.Equal(t, tt.want, Promote(tt.b, tt.a))
		})
	}
}

func TestPromoteDivAlwaysFloat(t *testing.T) {
	assert.Equal(t, F32, PromoteDiv(I32, I32))
	assert.Equal(t, F32, PromoteDiv(B8, B8))
}

func TestCompareAlwaysBool(t *testing.T) {
	assert.Equal(t, B8, Compare(F32, I32))
}

func TestString(t *testing.T) {
	assert.Equal(t, "f32", F32.String())
	assert.Equal(t, "i32", I32.String())
	assert.Equal(t, "b8", B8.String())
}

func TestValid(t *testing.T) {
	assert.True(t, F32.Valid())
	assert.False(t, DType(99).Valid())
}
