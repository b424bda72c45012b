// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package twamm

import (
	"math/big"
	"testing"
)

func TestNextOBIBoundary(t *testing.T) {
	cases := []struct{ cur, obi, want uint64 }{
		{0, 10, 10},
		{9, 10, 10},
		{10, 10, 20},
		{15, 10, 20},
	}
	for _, c := range cases {
		if got := nextOBIBoundary(c.cur, c.obi); got != c.want {
			t.Fatalf("nextOBIBoundary(%d, %d) want %d, got %d", c.cur, c.obi, c.want, got)
		}
	}
}

func TestSubFloor(t *testing.T) {
	if got := subFloor(NewAmount(5), NewAmount(3)); got.Uint64() != 2 {
		t.Fatalf("subFloor(5,3) want 2, got %d", got.Uint64())
	}
	if got := subFloor(NewAmount(3), NewAmount(5)); !got.IsZero() {
		t.Fatalf("subFloor(3,5) must floor at zero, got %d", got.Uint64())
	}
}

func TestEvoSegment_NoActiveOrders(t *testing.T) {
	R0, R1 := NewAmount(1000), NewAmount(2000)
	proc0, proc1, newR0, newR1, err := evoSegment(R0, R1, ZeroAmount(), ZeroAmount(), 50)
	if err != nil {
		t.Fatalf("evoSegment failed: %v", err)
	}
	if !proc0.IsZero() || !proc1.IsZero() {
		t.Fatalf("no sales rate must produce no proceeds")
	}
	if newR0.Cmp(R0) != 0 || newR1.Cmp(R1) != 0 {
		t.Fatalf("no sales rate must leave reserves unchanged")
	}
}

func TestEvoSegment_CaseA_OneSided(t *testing.T) {
	R0, R1 := NewAmount(1000), NewAmount(1000)
	s0, s1 := NewAmount(10), ZeroAmount()
	proc0, proc1, newR0, newR1, err := evoSegment(R0, R1, s0, s1, 5)
	if err != nil {
		t.Fatalf("evoSegment failed: %v", err)
	}
	if !proc0.IsZero() {
		t.Fatalf("token0 is sold in, not out: proc0 must be zero, got %d", proc0.Uint64())
	}
	// deltaIn = 50, R0new = 1050, k = 1_000_000, quot = floor(1_000_000/1050) = 952
	if newR0.Uint64() != 1050 {
		t.Fatalf("R0new want 1050, got %d", newR0.Uint64())
	}
	if newR1.Uint64() != 952 {
		t.Fatalf("R1new want 952, got %d", newR1.Uint64())
	}
	if proc1.Uint64() != 48 {
		t.Fatalf("proc1 want 48, got %d", proc1.Uint64())
	}
	// constant product must not increase.
	k := new(big.Int).Mul(R0.ToBig(), R1.ToBig())
	kNew := new(big.Int).Mul(newR0.ToBig(), newR1.ToBig())
	if kNew.Cmp(k) > 0 {
		t.Fatalf("new product %s must not exceed original %s", kNew, k)
	}
}

func TestEvoSegment_CaseB_Symmetric(t *testing.T) {
	R0, R1 := NewAmount(1000), NewAmount(1000)
	s0, s1 := ZeroAmount(), NewAmount(10)
	proc0, proc1, newR0, newR1, err := evoSegment(R0, R1, s0, s1, 5)
	if err != nil {
		t.Fatalf("evoSegment failed: %v", err)
	}
	if !proc1.IsZero() {
		t.Fatalf("token1 is sold in, not out: proc1 must be zero, got %d", proc1.Uint64())
	}
	if newR1.Uint64() != 1050 {
		t.Fatalf("R1new want 1050, got %d", newR1.Uint64())
	}
	if newR0.Uint64() != 952 {
		t.Fatalf("R0new want 952, got %d", newR0.Uint64())
	}
	if proc0.Uint64() != 48 {
		t.Fatalf("proc0 want 48, got %d", proc0.Uint64())
	}
}

func TestEvoSegment_CaseC_BothSided_ProductPreserved(t *testing.T) {
	R0, R1 := NewAmount(1_000_000), NewAmount(1_000_000)
	s0, s1 := NewAmount(100), NewAmount(100)
	proc0, proc1, newR0, newR1, err := evoSegmentBothSided(R0, R1, s0, s1, 20)
	if err != nil {
		t.Fatalf("evoSegmentBothSided failed: %v", err)
	}
	if proc0.IsZero() || proc1.IsZero() {
		t.Fatalf("symmetric both-sided flow must produce proceeds on both sides")
	}

	k := new(big.Int).Mul(R0.ToBig(), R1.ToBig())
	kNew := new(big.Int).Mul(newR0.ToBig(), newR1.ToBig())

	// Closed-form + fixed-point truncation introduces small rounding drift;
	// the new product must stay within 0.01% of the original.
	diff := new(big.Int).Sub(k, kNew)
	if diff.Sign() < 0 {
		diff.Neg(diff)
	}
	bound := new(big.Int).Div(k, big.NewInt(10_000))
	if diff.Cmp(bound) > 0 {
		t.Fatalf("product drifted too far: k=%s kNew=%s diff=%s", k, kNew, diff)
	}

	// By symmetry (R0==R1, s0==s1) the segment must leave reserves balanced.
	if newR0.Cmp(newR1) != 0 {
		t.Fatalf("symmetric segment must keep reserves equal: R0new=%d R1new=%d", newR0.Uint64(), newR1.Uint64())
	}
}

func TestEvoSegment_CaseC_AsymmetricRatesShiftPrice(t *testing.T) {
	R0, R1 := NewAmount(1_000_000), NewAmount(1_000_000)
	// token0 is sold in faster than token1, so reserve0 should grow more
	// than reserve1 shrinks relative to the symmetric case: the price of
	// token0 in terms of token1 should fall (R1/R0 decreases).
	s0, s1 := NewAmount(200), NewAmount(50)
	_, _, newR0, newR1, err := evoSegmentBothSided(R0, R1, s0, s1, 20)
	if err != nil {
		t.Fatalf("evoSegmentBothSided failed: %v", err)
	}
	if newR0.Cmp(newR1) <= 0 {
		t.Fatalf("token0 oversupply must push R0new above R1new: R0new=%d R1new=%d", newR0.Uint64(), newR1.Uint64())
	}
}

func TestExecuteVirtualOrders_NoopAndPastTarget(t *testing.T) {
	p, _, _ := newTestPool(t, testConfig(), 1_000_000, 1_000_000, 100)

	if err := p.ExecuteVirtualOrdersToBlock(100); err != nil {
		t.Fatalf("EVO to the same block must be a no-op, got %v", err)
	}
	if err := p.executeVirtualOrders(50); err != ErrPastTarget {
		t.Fatalf("want ErrPastTarget, got %v", err)
	}
}

func TestExecuteVirtualOrders_AdvancesAcrossOBIBoundaries(t *testing.T) {
	p, vault, key := newTestPool(t, testConfig(), 1_000_000, 1_000_000, 0)
	issueOrder(t, p, vault, key, 0, Token0, 100, 5, testOwner)

	// Advance across several OBI boundaries (OBI=10) in one call; EVO must
	// segment internally without the caller doing anything special.
	if err := p.ExecuteVirtualOrdersToBlock(35); err != nil {
		t.Fatalf("ExecuteVirtualOrdersToBlock failed: %v", err)
	}

	o0, o1 := p.GetOrderAmounts()
	if o1.Uint64() != 0 {
		t.Fatalf("no order sells token1, orders1 must stay zero, got %d", o1.Uint64())
	}
	// 50 intervals' worth sold at rate 100 for 35 blocks = 3500 consumed from
	// the order book's outstanding token0, floored by whatever capital the
	// order actually deposited (500*10=5000 over 5 intervals).
	if o0.Uint64() >= 5000 {
		t.Fatalf("orders0 must have decreased from the full 5000 deposited, got %d", o0.Uint64())
	}

	_, proceeds1 := p.GetProceedAmounts()
	if proceeds1.IsZero() {
		t.Fatalf("selling token0 into the pool must generate token1 proceeds")
	}
}
