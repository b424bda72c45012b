// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package twamm

import (
	"math/big"

	"github.com/holiman/uint256"
)

// executeVirtualOrders advances the pool from lvob to target, replaying
// every paired-flow segment in between (C5). Every mutating pool operation
// calls this before touching reserves, orders, or the aggregator.
func (p *Pool) executeVirtualOrders(target uint64) error {
	if target < p.lvob {
		return ErrPastTarget
	}
	if target == p.lvob {
		return nil
	}

	scaled0, scaled1 := p.scaled0, p.scaled1
	cur := p.lvob

	for cur < target {
		segEnd := nextOBIBoundary(cur, p.config.OBI)
		if segEnd > target {
			segEnd = target
		}
		if exp, ok := p.registry.NextExpiryAfter(cur, segEnd); ok {
			segEnd = exp
		}
		deltaB := segEnd - cur

		s0 := p.rates.Rate(Token0)
		s1 := p.rates.Rate(Token1)

		proc0, proc1, newR0, newR1, err := evoSegment(p.reserve0, p.reserve1, s0, s1, deltaB)
		if err != nil {
			return err
		}

		p.reserve0, p.reserve1 = newR0, newR1

		// Partner and long-term fees come out of long-term proceeds before
		// they are credited to sellers or folded into the log (spec §4.8
		// ordering decision: partner, then long-term). The short-term fee
		// never applies here — it only nets on literal swap input in
		// SwapShortTerm.
		proc0, err = netFee(proc0, p.config.PartnerFeeBps)
		if err != nil {
			return err
		}
		proc0, err = netFee(proc0, p.config.LongTermFeeBps)
		if err != nil {
			return err
		}
		proc1, err = netFee(proc1, p.config.PartnerFeeBps)
		if err != nil {
			return err
		}
		proc1, err = netFee(proc1, p.config.LongTermFeeBps)
		if err != nil {
			return err
		}

		p.proceeds0 = new(Amount).Add(p.proceeds0, proc0)
		p.proceeds1 = new(Amount).Add(p.proceeds1, proc1)

		if !s0.IsZero() {
			p.orders0 = subFloor(p.orders0, new(Amount).Mul(s0, NewAmount(deltaB)))
		}
		if !s1.IsZero() {
			p.orders1 = subFloor(p.orders1, new(Amount).Mul(s1, NewAmount(deltaB)))
		}

		if !s1.IsZero() {
			share, err := MulDivFloor(proc0, Scale(p.config.Decimals0), s1)
			if err != nil {
				return err
			}
			scaled0 = new(Amount).Add(scaled0, share)
		}
		if !s0.IsZero() {
			share, err := MulDivFloor(proc1, Scale(p.config.Decimals1), s0)
			if err != nil {
				return err
			}
			scaled1 = new(Amount).Add(scaled1, share)
		}

		expiring := p.registry.ExpiringAt(segEnd)
		isBoundary := segEnd%p.config.OBI == 0 || len(expiring) > 0

		if isBoundary {
			p.log.Append(Token0, segEnd, scaled0)
			p.log.Append(Token1, segEnd, scaled1)
		}

		for _, id := range expiring {
			order, err := p.registry.Get(id)
			if err != nil {
				continue
			}
			if !order.Paused {
				p.rates.Sub(order.SellToken, order.SalesRate)
			}
		}

		cur = segEnd
	}

	p.scaled0, p.scaled1 = scaled0, scaled1
	p.lvob = target
	return nil
}

// nextOBIBoundary returns the smallest multiple of obi strictly greater than
// cur.
func nextOBIBoundary(cur, obi uint64) uint64 {
	return (cur/obi + 1) * obi
}

// subFloor returns a-b, floored at zero rather than underflowing. Segment
// accounting should never require this (orders_d is kept consistent with the
// active sales rate by construction) but it guards against ULP-level
// rounding drift across many segments.
func subFloor(a, b *Amount) *Amount {
	if b.Gt(a) {
		return ZeroAmount()
	}
	return new(Amount).Sub(a, b)
}

// evoSegment computes the closed-form reserve update and proceeds produced
// over a single segment of deltaB blocks with constant sales rates s0, s1.
func evoSegment(R0, R1, s0, s1 *Amount, deltaB uint64) (proc0, proc1, newR0, newR1 *Amount, err error) {
	switch {
	case s0.IsZero() && s1.IsZero():
		return ZeroAmount(), ZeroAmount(), new(Amount).Set(R0), new(Amount).Set(R1), nil

	case s1.IsZero():
		// Case A: only token0 is being sold in.
		kExact, overflow := new(Amount).MulOverflow(R0, R1)
		if overflow {
			return nil, nil, nil, nil, ErrMathDomain
		}
		deltaIn := new(Amount).Mul(s0, NewAmount(deltaB))
		R0new := new(Amount).Add(R0, deltaIn)
		quot, err := MulDivFloor(kExact, NewAmount(1), R0new)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if quot.Gt(R1) {
			return nil, nil, nil, nil, ErrMathDomain
		}
		proc1 := new(Amount).Sub(R1, quot)
		R1new := new(Amount).Sub(R1, proc1)
		return ZeroAmount(), proc1, R0new, R1new, nil

	case s0.IsZero():
		// Case B: symmetric, only token1 is being sold in.
		kExact, overflow := new(Amount).MulOverflow(R0, R1)
		if overflow {
			return nil, nil, nil, nil, ErrMathDomain
		}
		deltaIn := new(Amount).Mul(s1, NewAmount(deltaB))
		R1new := new(Amount).Add(R1, deltaIn)
		quot, err := MulDivFloor(kExact, NewAmount(1), R1new)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if quot.Gt(R0) {
			return nil, nil, nil, nil, ErrMathDomain
		}
		proc0 := new(Amount).Sub(R0, quot)
		R0new := new(Amount).Sub(R0, proc0)
		return proc0, ZeroAmount(), R0new, R1new, nil

	default:
		return evoSegmentBothSided(R0, R1, s0, s1, deltaB)
	}
}

// evoSegmentBothSided implements Case C of the EVO closed form (spec
// §4.4): both directions are actively selling, so the new reserves follow
// the paired-flow ODE's closed-form solution rather than a one-sided
// constant-product update. The algebra needs signed intermediates (the `c`
// term can be negative) and products that exceed 256 bits (`k*s0`), so this
// works in math/big and converts back to Amount only at the boundaries —
// the same division of labor the teacher's pool math uses between
// uint256.Int for storage-facing values and big.Int for scratch computation.
func evoSegmentBothSided(R0, R1, s0, s1 *Amount, deltaB uint64) (proc0, proc1, newR0, newR1 *Amount, err error) {
	bR0, bR1 := R0.ToBig(), R1.ToBig()
	bs0, bs1 := s0.ToBig(), s1.ToBig()

	if bR0.Sign() == 0 || bR1.Sign() == 0 {
		return nil, nil, nil, nil, ErrMathDomain
	}

	k := new(big.Int).Mul(bR0, bR1)

	s0R1 := new(big.Int).Mul(bs0, bR1)
	s1R0 := new(big.Int).Mul(bs1, bR0)
	sqrtS0R1 := new(big.Int).Sqrt(s0R1)
	sqrtS1R0 := new(big.Int).Sqrt(s1R0)

	c := new(big.Int).Sub(sqrtS0R1, sqrtS1R0)
	d := new(big.Int).Add(sqrtS0R1, sqrtS1R0)

	sqrtK := new(big.Int).Sqrt(k)
	if sqrtK.Sign() == 0 {
		return nil, nil, nil, nil, ErrMathDomain
	}
	s0s1 := new(big.Int).Mul(bs0, bs1)
	sqrtS0S1 := new(big.Int).Sqrt(s0s1)

	expNumerator := new(big.Int).Mul(big.NewInt(2), big.NewInt(0).SetUint64(deltaB))
	expNumerator.Mul(expNumerator, sqrtS0S1)

	numAmt, err := amountFromBig(expNumerator)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	denAmt, err := amountFromBig(sqrtK)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	eScaled := ExpFixed(numAmt, denAmt) // e * precisionScale
	bigE := eScaled.ToBig()
	scale := precisionScale.ToBig()

	edScaled := new(big.Int).Mul(bigE, d) // e*d * precisionScale
	cScaled := new(big.Int).Mul(c, scale) // c * precisionScale

	edPlusC := new(big.Int).Add(edScaled, cScaled)
	edMinusC := new(big.Int).Sub(edScaled, cScaled)
	if edMinusC.Sign() <= 0 || edPlusC.Sign() <= 0 {
		return nil, nil, nil, nil, ErrMathDomain
	}

	// ratioScaled = (e*d+c)/(e*d-c) * precisionScale
	ratioScaled := new(big.Int).Mul(edPlusC, scale)
	ratioScaled.Div(ratioScaled, edMinusC)

	// ratioInvScaled = (e*d-c)/(e*d+c) * precisionScale
	ratioInvScaled := new(big.Int).Mul(edMinusC, scale)
	ratioInvScaled.Div(ratioInvScaled, edPlusC)

	ks0 := new(big.Int).Mul(k, bs0)
	ks0s1 := new(big.Int).Div(ks0, bs1)
	sqrtKs0s1 := new(big.Int).Sqrt(ks0s1)

	ks1 := new(big.Int).Mul(k, bs1)
	ks1s0 := new(big.Int).Div(ks1, bs0)
	sqrtKs1s0 := new(big.Int).Sqrt(ks1s0)

	bigR0New := new(big.Int).Mul(sqrtKs0s1, ratioScaled)
	bigR0New.Div(bigR0New, scale)

	bigR1New := new(big.Int).Mul(sqrtKs1s0, ratioInvScaled)
	bigR1New.Div(bigR1New, scale)

	R0new, err := amountFromBig(bigR0New)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	R1new, err := amountFromBig(bigR1New)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	deltaInR0 := new(Amount).Mul(s0, NewAmount(deltaB))
	deltaInR1 := new(Amount).Mul(s1, NewAmount(deltaB))

	grossR0 := new(Amount).Add(R0, deltaInR0)
	grossR1 := new(Amount).Add(R1, deltaInR1)

	p0 := subFloor(grossR0, R0new)
	p1 := subFloor(grossR1, R1new)

	return p0, p1, R0new, R1new, nil
}

// amountFromBig converts a non-negative big.Int into an Amount, the way the
// teacher converts big.Int amounts at its StateDB boundary (pool_manager.go,
// lending.go: amountU256, _ := uint256.FromBig(amount)), failing if it would
// not fit in 256 bits.
func amountFromBig(b *big.Int) (*Amount, error) {
	if b.Sign() < 0 {
		return nil, ErrMathDomain
	}
	a, overflow := uint256.FromBig(b)
	if overflow {
		return nil, ErrMathDomain
	}
	return a, nil
}
