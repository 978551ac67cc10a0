package ledger

import (
	"math"
	"math/big"

	"installment-subledger/internal/domain/subloan"
)

// Growth factors are Q64.64 fixed-point binary fractions: the integer one is
// 2^64 and a per-day rate r (scaled by RateFactor) maps to the factor
// (1 + r/RateFactor). Exponentiation is done by squaring over math/big so the
// result is bit-for-bit deterministic across platforms.

const fpShift = 64

var (
	fpOne      = new(big.Int).Lsh(big.NewInt(1), fpShift)
	fpHalf     = new(big.Int).Lsh(big.NewInt(1), fpShift-1)
	bigMaxU64  = new(big.Int).SetUint64(math.MaxUint64)
	rateFactor = new(big.Int).SetUint64(subloan.RateFactor)
)

// bigRoundDiv divides num by den with mathematical (half-up) rounding. Both
// arguments must be non-negative and den must be positive.
func bigRoundDiv(num, den *big.Int) *big.Int {
	half := new(big.Int).Rsh(new(big.Int).Add(den, big.NewInt(1)), 1)
	out := new(big.Int).Add(num, half)
	return out.Quo(out, den)
}

// growthFactor returns (1 + rate/RateFactor) as a Q64.64 fraction.
func growthFactor(rate uint64) *big.Int {
	num := new(big.Int).SetUint64(subloan.RateFactor + rate)
	num.Lsh(num, fpShift)
	return bigRoundDiv(num, rateFactor)
}

// powQ64 raises a Q64.64 factor to an integer power, rescaling after every
// multiplication with half-up rounding.
func powQ64(factor *big.Int, n uint32) *big.Int {
	result := new(big.Int).Set(fpOne)
	base := new(big.Int).Set(factor)
	for n > 0 {
		if n&1 == 1 {
			result.Mul(result, base)
			result.Add(result, fpHalf)
			result.Rsh(result, fpShift)
		}
		n >>= 1
		if n > 0 {
			base.Mul(base, base)
			base.Add(base, fpHalf)
			base.Rsh(base, fpShift)
		}
	}
	return result
}

// growBalance compounds balance over the given day count at the per-day rate,
// rounding the result half-up to the accuracy unit. Exceeding the 64-bit
// accumulator bound is an arithmetic error, never a silent wrap.
func growBalance(balance uint64, rate uint64, days uint32, accuracy uint64) (uint64, error) {
	if balance == 0 || rate == 0 || days == 0 {
		return balance, nil
	}
	factor := powQ64(growthFactor(rate), days)
	out := new(big.Int).SetUint64(balance)
	out.Mul(out, factor)
	out.Add(out, fpHalf)
	out.Rsh(out, fpShift)
	if out.Cmp(bigMaxU64) > 0 {
		return 0, subloan.ErrAmountOverflow
	}
	return roundTo(out.Uint64(), accuracy)
}

// mulRateRound computes round(amount * rate / RateFactor).
func mulRateRound(amount, rate uint64) (uint64, error) {
	if amount == 0 || rate == 0 {
		return 0, nil
	}
	out := new(big.Int).SetUint64(amount)
	out.Mul(out, new(big.Int).SetUint64(rate))
	out = bigRoundDiv(out, rateFactor)
	if out.Cmp(bigMaxU64) > 0 {
		return 0, subloan.ErrAmountOverflow
	}
	return out.Uint64(), nil
}

// roundTo rounds v half-up to the nearest multiple of the accuracy unit.
func roundTo(v, accuracy uint64) (uint64, error) {
	if accuracy <= 1 {
		return v, nil
	}
	q := v / accuracy
	if rem := v % accuracy; rem*2 >= accuracy {
		q++
	}
	if q > math.MaxUint64/accuracy {
		return 0, subloan.ErrAmountOverflow
	}
	return q * accuracy, nil
}

// roundToNonzero is roundTo with the final-balance guarantee: a nonzero input
// never rounds down to exactly zero.
func roundToNonzero(v, accuracy uint64) (uint64, error) {
	out, err := roundTo(v, accuracy)
	if err != nil {
		return 0, err
	}
	if out == 0 && v > 0 {
		if accuracy <= 1 {
			return 1, nil
		}
		return accuracy, nil
	}
	return out, nil
}

// addChecked adds two accumulators, rejecting 64-bit overflow.
func addChecked(a, b uint64) (uint64, error) {
	if b > math.MaxUint64-a {
		return 0, subloan.ErrAmountOverflow
	}
	return a + b, nil
}
