package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDice_DeterministicForSeed(t *testing.T) {
	a := NewDice(42)
	b := NewDice(42)

	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Roll(10), b.Roll(10))
	}
	assert.Equal(t, 50, a.Rolls())
	assert.EqualValues(t, 42, a.Seed())
}

func TestDice_SeedsDiverge(t *testing.T) {
	a := NewDice(1)
	b := NewDice(2)

	same := true
	for i := 0; i < 20; i++ {
		if a.Roll(1000) != b.Roll(1000) {
			same = false
		}
	}
	assert.False(t, same)
}

func TestDice_NegativeSeed(t *testing.T) {
	a := NewDice(-9)
	b := NewDice(-9)
	assert.Equal(t, a.Roll(6), b.Roll(6))
}

func TestDice_Range(t *testing.T) {
	d := NewDice(7)
	seen := map[int]bool{}
	for i := 0; i < 2000; i++ {
		v := d.Roll(10)
		require.GreaterOrEqual(t, v, 1)
		require.LessOrEqual(t, v, 10)
		seen[v] = true
	}
	assert.Len(t, seen, 10)

	assert.Equal(t, 1, d.Roll(0))
}

func TestSeedFromPhrase(t *testing.T) {
	assert.Equal(t, SeedFromPhrase("council of five"), SeedFromPhrase("  council of five\n"))
	assert.NotEqual(t, SeedFromPhrase("council of five"), SeedFromPhrase("council of six"))
}

func TestNewSeed(t *testing.T) {
	a, err := NewSeed()
	require.NoError(t, err)
	b, err := NewSeed()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestScripted(t *testing.T) {
	s := NewScripted(3, 1, 12, -4)

	assert.Equal(t, 3, s.Roll(10))
	assert.Equal(t, 1, s.Roll(10))
	assert.Equal(t, 10, s.Roll(10))
	assert.Equal(t, 1, s.Roll(10))
	assert.Equal(t, 0, s.Remaining())

	// repeats the last scripted face
	assert.Equal(t, 1, s.Roll(10))
}

func TestScripted_FallsBack(t *testing.T) {
	s := NewScripted(5)
	s.Then = NewScripted(1)

	assert.Equal(t, 5, s.Roll(10))
	assert.Equal(t, 1, s.Roll(10))
	assert.Equal(t, 1, NewScripted().Roll(6))
}
