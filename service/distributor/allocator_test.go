package distributor

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func TestAllocate_SumsExactly(t *testing.T) {
	cases := []struct {
		name  string
		total uint64
		n     int
	}{
		{"even split", 1_000_000_000, 10},
		{"indivisible total", 1_000_000_007, 23},
		{"single recipient", 5_000_000, 1},
		{"many recipients", 123_456_789_123, 97},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			amounts, err := Allocate(tc.total, tc.n, seededRand(42))
			require.NoError(t, err)
			require.Len(t, amounts, tc.n)

			var sum uint64
			for _, a := range amounts {
				sum += a
			}
			assert.Equal(t, tc.total, sum)
		})
	}
}

func TestAllocate_AmountsVaryAroundBase(t *testing.T) {
	const total = 1_000_000_000
	const n = 10
	base := uint64(total / n)

	amounts, err := Allocate(total, n, seededRand(7))
	require.NoError(t, err)

	distinct := make(map[uint64]bool)
	for _, a := range amounts {
		assert.Positive(t, a)
		// Normalization keeps amounts near the even split but can push a
		// touch past the raw draw range, so the band here is generous.
		assert.GreaterOrEqual(t, a, base*6/10)
		assert.LessOrEqual(t, a, base*16/10)
		distinct[a] = true
	}

	// Randomized amounts should not collapse to the even split.
	assert.Greater(t, len(distinct), 1)
}

func TestAllocate_DeterministicForSeed(t *testing.T) {
	first, err := Allocate(987_654_321, 12, seededRand(99))
	require.NoError(t, err)
	second, err := Allocate(987_654_321, 12, seededRand(99))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAllocate_TotalTooSmall(t *testing.T) {
	_, err := Allocate(5, 10, seededRand(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too small")
}

func TestAllocate_InvalidCount(t *testing.T) {
	_, err := Allocate(1000, 0, seededRand(1))
	require.Error(t, err)

	_, err = Allocate(1000, -3, seededRand(1))
	require.Error(t, err)
}

func TestFixedAllocate(t *testing.T) {
	amounts, err := FixedAllocate(100, 350, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint64{100, 100, 150}, amounts)
}

func TestFixedAllocate_SingleRecipientGetsEverything(t *testing.T) {
	amounts, err := FixedAllocate(100, 275, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{275}, amounts)
}

func TestFixedAllocate_InsufficientTotal(t *testing.T) {
	_, err := FixedAllocate(100, 150, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot cover")
}

func TestFixedAllocate_ZeroBase(t *testing.T) {
	_, err := FixedAllocate(0, 1000, 3)
	require.Error(t, err)
}
