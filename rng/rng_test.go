package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeedMakesNextSeedDeterministic(t *testing.T) {
	Seed(42)
	a := NextSeed()

	Seed(42)
	b := NextSeed()

	assert.Equal(t, a, b)
}

func TestStreamIsIndependentOfSharedSeed(t *testing.T) {
	r1 := Stream(7)
	r2 := Stream(7)

	assert.Equal(t, Uniform(r1, 0, 1, 4), Uniform(r2, 0, 1, 4))
}

func TestUniformStaysInRange(t *testing.T) {
	r := Stream(1)

	for _, v := range Uniform(r, -2, 3, 200) {
		assert.GreaterOrEqual(t, v, -2.0)
		assert.Less(t, v, 3.0)
	}
}

func TestRandintStaysInRange(t *testing.T) {
	r := Stream(2)

	for _, v := range Randint(r, 5, 10, 200) {
		assert.GreaterOrEqual(t, v, int32(5))
		assert.Less(t, v, int32(10))
	}
}

func TestNormalProducesRequestedLength(t *testing.T) {
	r := Stream(3)
	assert.Len(t, Normal(r, 5), 5)
	assert.Len(t, Normal(r, 4), 4)
}

func TestRandboolProducesRequestedLength(t *testing.T) {
	r := Stream(4)
	assert.Len(t, Randbool(r, 10), 10)
}
