package distributor

import (
	"fmt"
	"math/rand/v2"
)

// Allocate splits total lamports across n recipients into randomized amounts
// that sum exactly to total. Each amount lands within roughly twenty percent
// of the even split; whatever integer truncation leaves over goes to the
// last recipient.
//
// The even split must be at least one lamport, otherwise the total is too
// small to distribute and an error is returned.
func Allocate(total uint64, n int, rng *rand.Rand) ([]uint64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("recipient count must be positive, got %d", n)
	}
	base := total / uint64(n)
	if base == 0 {
		return nil, fmt.Errorf("total %d lamports too small to split across %d recipients", total, n)
	}

	// Draw a variance factor per recipient, then normalize so the factors
	// average to one. Without normalization the sum drifts by up to twenty
	// percent of the total.
	factors := make([]float64, n)
	var sum float64
	for i := range factors {
		factors[i] = 0.8 + 0.4*rng.Float64()
		sum += factors[i]
	}

	amounts := make([]uint64, n)
	var allocated uint64
	for i := range amounts {
		amounts[i] = uint64(float64(base) * factors[i] * float64(n) / sum)
		allocated += amounts[i]
	}

	// Truncation always leaves allocated <= total; the remainder is small
	// (bounded by n plus the sub-base residue) and goes to the last slot.
	amounts[n-1] += total - allocated
	return amounts, nil
}

// FixedAllocate splits total lamports across n recipients at a constant base
// amount each, with the last recipient absorbing the remainder. Resumed runs
// use this so amounts stay consistent with what the checkpoint recorded.
func FixedAllocate(base, total uint64, n int) ([]uint64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("recipient count must be positive, got %d", n)
	}
	if base == 0 {
		return nil, fmt.Errorf("base amount must be positive")
	}
	if base*uint64(n-1) > total {
		return nil, fmt.Errorf(
			"remaining %d lamports cannot cover %d recipients at %d lamports each",
			total, n, base,
		)
	}

	amounts := make([]uint64, n)
	for i := 0; i < n-1; i++ {
		amounts[i] = base
	}
	amounts[n-1] = total - base*uint64(n-1)
	return amounts, nil
}
