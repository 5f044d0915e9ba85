package engine

import "math/bits"

const (
	// WeightFractionBits is the number of fractional bits in a governance weight
	WeightFractionBits = 40
	// WeightScale is the weight earned by a single base unit
	WeightScale int64 = 1 << WeightFractionBits

	// StrictWeightLimit is the largest contribution below which every extra
	// base unit adds weight. From here on the slope of the curve drops under
	// one weight unit per base unit, so neighbouring amounts can share a weight.
	// Any integer curve that grows on every step is at least linear, so a
	// logarithmic one has to level off somewhere; at 6 decimals this is about
	// 1.58 million whole units per donor.
	StrictWeightLimit int64 = 1_586_261_429_456
)

// GovernanceWeight maps a cumulative contribution to voting power:
// floor(WeightScale * log2(amount + 1)). Non-positive amounts weigh nothing.
// Integer arithmetic only, so every replica computes identical weights. The
// largest weight, 63 * WeightScale, stays below 2^53.
func GovernanceWeight(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	return log2Fixed(uint64(amount) + 1)
}

// log2Fixed returns floor(log2(x) * 2^WeightFractionBits) for x >= 1. The
// fractional bits come from repeated squaring of the normalized mantissa.
func log2Fixed(x uint64) int64 {
	n := bits.Len64(x) - 1
	result := int64(n) << WeightFractionBits

	// mantissa in [1, 2) with 63 fractional bits
	m := x << (63 - n)
	for i := WeightFractionBits - 1; i >= 0; i-- {
		hi, lo := bits.Mul64(m, m)
		// m*m has 126 fractional bits; hi:lo >> 63 brings it back to 63
		if hi >= 1<<63 {
			// square is >= 2: emit a one bit and halve
			m = hi
			result |= 1 << i
		} else {
			m = hi<<1 | lo>>63
		}
	}
	return result
}
