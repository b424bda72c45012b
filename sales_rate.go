// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package twamm

// SalesRateAggregator tracks the sum of active long-term orders' sales rates
// per direction (C4). Adds and removals are O(1); the sum never goes
// negative, since Sub only ever removes a rate previously added.
type SalesRateAggregator struct {
	rates [2]*Amount
}

// NewSalesRateAggregator returns an aggregator with both directions at zero.
func NewSalesRateAggregator() *SalesRateAggregator {
	return &SalesRateAggregator{rates: [2]*Amount{ZeroAmount(), ZeroAmount()}}
}

// Rate returns the current aggregate sales rate for direction d.
func (a *SalesRateAggregator) Rate(d Direction) *Amount {
	return new(Amount).Set(a.rates[d])
}

// Add increases direction d's aggregate sales rate by delta.
func (a *SalesRateAggregator) Add(d Direction, delta *Amount) {
	a.rates[d] = new(Amount).Add(a.rates[d], delta)
}

// Sub decreases direction d's aggregate sales rate by delta. Callers must
// never subtract more than was previously added for that direction; EVO and
// the order lifecycle operations maintain this by construction (an order's
// rate is added at issue/resume and subtracted once per activation, at
// pause, expiry, or cancel of a still-selling order). Extend and withdraw
// leave the rate unchanged.
func (a *SalesRateAggregator) Sub(d Direction, delta *Amount) {
	if delta.Gt(a.rates[d]) {
		a.rates[d] = ZeroAmount()
		return
	}
	a.rates[d] = new(Amount).Sub(a.rates[d], delta)
}
