// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package twamm

import (
	"github.com/holiman/uint256"
)

// Amount is the core's unsigned wide integer type. All token amounts,
// sales rates, and accumulators are represented this way — an alias rather
// than a wrapper struct so callers can keep using the uint256 constructors
// (uint256.NewInt, uint256.MustFromDecimal, ...) directly, the way the
// teacher passes *uint256.Int straight through StateDB balance methods.
type Amount = uint256.Int

// Amount112Max is the ceiling every token amount must respect (spec §4.1):
// 2^112 - 1.
var Amount112Max = func() *Amount {
	one := uint256.NewInt(1)
	max := new(Amount).Lsh(one, 112)
	return max.Sub(max, uint256.NewInt(1))
}()

// precisionScale is the internal fixed-point precision used by ExpFixed and
// by the both-sided EVO ratio terms — independent of token decimals, matching the
// teacher's RAY (1e18) convention in interest_rate.go's rate model.
var precisionScale = uint256.MustFromDecimal("1000000000000000000") // 1e18

// ZeroAmount returns a fresh zero-valued Amount.
func ZeroAmount() *Amount { return new(Amount) }

// NewAmount constructs an Amount from a uint64.
func NewAmount(v uint64) *Amount { return uint256.NewInt(v) }

// Scale returns 10^(decimals+1), the divisor the scaled-proceeds log uses
// for a token with the given decimals (spec §3, "SCALE_d = 10^(decimals_d+1)").
func Scale(decimals uint8) *Amount {
	ten := uint256.NewInt(10)
	result := uint256.NewInt(1)
	for i := 0; i < int(decimals)+1; i++ {
		result = new(Amount).Mul(result, ten)
	}
	return result
}

// checkOverflow rejects amounts above the 112-bit ceiling the core operates
// under (spec §4.1).
func checkOverflow(x *Amount) error {
	if x.Gt(Amount112Max) {
		return ErrMathDomain
	}
	return nil
}

// MulDivFloor computes floor(x*y/d) using a 512-bit-correct intermediate,
// failing with ErrMathDomain on division by zero or a result that would not
// fit in 256 bits. This is the only rounding mode the core uses (spec §4.1:
// "mul_div_ceil is not used in the core — all directional rounding is
// deterministic floor").
func MulDivFloor(x, y, d *Amount) (*Amount, error) {
	if d.IsZero() {
		return nil, ErrMathDomain
	}
	result, overflow := new(Amount).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrMathDomain
	}
	return result, nil
}

// SqrtFixed returns floor(sqrt(x)), the exact integer square root (spec §9:
// "exact fixed-point square root").
func SqrtFixed(x *Amount) *Amount {
	return new(Amount).Sqrt(x)
}

// ExpFixed computes floor(e^(numerator/denominator) * precisionScale) using
// scaling-and-squaring plus a truncated Taylor series: the exponent is
// halved until it is small enough for the series to converge quickly, the
// series is evaluated, and the result is squared back up. This generalizes
// the teacher's own compounding approximation in interest_rate.go's
// CalculateCompoundInterest (which truncates e^(rt)-1 at the rt + rt²/2
// term for a fixed small rt) to an exponent of arbitrary magnitude, which
// EVO's both-sided segment solve requires (spec §4.4 case C, term `e`).
//
// Tolerances: spec §8 accepts O(1e-6) relative error; this implementation
// documents its own choice of series length and scaling threshold as
// directed by Open Question 1 in spec §9 (the exact rounding/approximation
// strategy for the both-sided closed form is not pinned by the test suite).
func ExpFixed(numerator, denominator *Amount) *Amount {
	if denominator.IsZero() {
		return new(Amount).Set(precisionScale)
	}

	// x = numerator/denominator, scaled by precisionScale.
	x, _ := new(Amount).MulDivOverflow(numerator, precisionScale, denominator)

	// Halve x (tracked as a doubling count k) until x <= threshold, where
	// the 8-term Taylor series below is accurate to well inside 1e-6
	// relative error. threshold = 0.0625 * precisionScale.
	threshold := new(Amount).Div(precisionScale, uint256.NewInt(16))

	k := 0
	reduced := new(Amount).Set(x)
	for reduced.Gt(threshold) && k < 64 {
		reduced.Rsh(reduced, 1)
		k++
	}

	// Taylor series: sum_{n=0}^{7} reduced^n / n!, in precisionScale units.
	// term_n = term_{n-1} * reduced / precisionScale / n.
	const terms = 8
	sum := new(Amount).Set(precisionScale) // n=0 term
	term := new(Amount).Set(precisionScale)
	for n := uint64(1); n < terms; n++ {
		term = new(Amount).Mul(term, reduced)
		term = new(Amount).Div(term, precisionScale)
		term = new(Amount).Div(term, uint256.NewInt(n))
		sum = new(Amount).Add(sum, term)
	}

	// Square the result k times to undo the halving: e^x = (e^(x/2^k))^(2^k).
	result := sum
	for i := 0; i < k; i++ {
		result, _ = new(Amount).MulDivOverflow(result, result, precisionScale)
	}
	return result
}

// PrecisionScale exposes the internal fixed-point base ExpFixed results and
// the both-sided EVO ratios are expressed in.
func PrecisionScale() *Amount { return new(Amount).Set(precisionScale) }
