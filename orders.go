// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package twamm

// authorized reports whether caller is the order's owner or delegate (spec
// §4.5, "Authorization").
func authorized(o *Order, caller Identity) bool {
	return caller == o.Owner || caller == o.Delegate
}

// IssueLongTerm creates a new long-term order selling sellToken at
// salesRate for the given number of order-block intervals, starting at
// currentBlock (spec §4.5 "issue"). The host must have already arranged for
// salesRate*tradeBlocks of sellToken to be available via the Vault; this
// call pulls it via TransferIn.
func (p *Pool) IssueLongTerm(currentBlock uint64, sellToken Direction, salesRate *Amount, intervals uint64, owner, delegate Identity) (OrderID, error) {
	unlock, err := p.lock()
	if err != nil {
		return 0, err
	}
	defer unlock()

	if !sellToken.valid() {
		return 0, ErrInvalidDirection
	}
	if salesRate.IsZero() {
		return 0, ErrZeroAmount
	}
	if intervals == 0 || intervals > p.config.MaxOrderIntervals {
		return 0, ErrOrderTooLong
	}
	if err := p.executeVirtualOrders(currentBlock); err != nil {
		return 0, err
	}

	obi := p.config.OBI
	tradeBlocks := intervals*obi - (currentBlock % obi)
	orderStart := currentBlock
	orderExpiry := orderStart + tradeBlocks

	capital, overflow := new(Amount).MulOverflow(salesRate, NewAmount(tradeBlocks))
	if overflow {
		return 0, ErrMathDomain
	}
	if err := checkOverflow(capital); err != nil {
		return 0, err
	}
	if err := p.vault.TransferIn(p.key, owner, sellToken, capital); err != nil {
		return 0, err
	}

	order := &Order{
		Owner:                          owner,
		Delegate:                       delegate,
		SellToken:                      sellToken,
		SalesRate:                      new(Amount).Set(salesRate),
		OrderStart:                     orderStart,
		OrderExpiry:                    orderExpiry,
		ScaledProceedsAtLastSettlement: p.currentScaledProceeds(sellToken.Opposite()),
		Deposit:                        ZeroAmount(),
		Proceeds:                       ZeroAmount(),
	}
	id := p.registry.Insert(order)

	p.rates.Add(sellToken, salesRate)
	p.addOrders(sellToken, capital)

	return id, nil
}

// ExtendLongTerm adds extra_intervals to order_id's expiry (spec §4.5
// "extend"). Deliberately does not invoke EVO, so it does not move lvob.
// extraCapital must equal the capital the host actually transfers in,
// which must match the amount required after drawing down any existing
// paused-accumulated deposit.
func (p *Pool) ExtendLongTerm(currentBlock uint64, orderID OrderID, caller Identity, extraIntervals uint64, extraCapital *Amount) error {
	unlock, err := p.lock()
	if err != nil {
		return err
	}
	defer unlock()

	o, err := p.registry.Get(orderID)
	if err != nil {
		return err
	}
	if !authorized(o, caller) {
		return ErrNotAuthorized
	}
	if currentBlock >= o.OrderExpiry {
		return ErrOrderExpired
	}

	obi := p.config.OBI
	extraBlocks := extraIntervals * obi
	newExpiry := o.OrderExpiry + extraBlocks
	maxExpiry := o.OrderStart + p.config.MaxOrderIntervals*obi
	if newExpiry > maxExpiry {
		return ErrOrderTooLong
	}

	required, overflow := new(Amount).MulOverflow(o.SalesRate, NewAmount(extraBlocks))
	if overflow {
		return ErrMathDomain
	}

	if o.Paused {
		if !extraCapital.Eq(required) {
			return ErrInsufficientCapital
		}
		if err := p.vault.TransferIn(p.key, o.Owner, o.SellToken, extraCapital); err != nil {
			return err
		}
		o.Deposit = new(Amount).Add(o.Deposit, required)
	} else {
		depositConsumed := required
		if o.Deposit.Lt(required) {
			depositConsumed = new(Amount).Set(o.Deposit)
		}
		needed := new(Amount).Sub(required, depositConsumed)
		if !extraCapital.Eq(needed) {
			return ErrInsufficientCapital
		}
		if !needed.IsZero() {
			if err := p.vault.TransferIn(p.key, o.Owner, o.SellToken, needed); err != nil {
				return err
			}
		}
		o.Deposit = new(Amount).Sub(o.Deposit, depositConsumed)
		p.addOrders(o.SellToken, required)
	}

	p.registry.reindexExpiry(orderID, o.OrderExpiry, newExpiry)
	o.OrderExpiry = newExpiry
	return nil
}

// PauseOrder suspends an active order, banking its remaining undelivered
// capital as a refundable deposit and materializing proceeds accrued so far
// (spec §4.5 "pause").
func (p *Pool) PauseOrder(currentBlock uint64, orderID OrderID, caller Identity) error {
	unlock, err := p.lock()
	if err != nil {
		return err
	}
	defer unlock()

	o, err := p.registry.Get(orderID)
	if err != nil {
		return err
	}
	if !authorized(o, caller) {
		return ErrNotAuthorized
	}
	if o.Paused || currentBlock >= o.OrderExpiry {
		return ErrExpectedActive
	}
	if err := p.executeVirtualOrders(currentBlock); err != nil {
		return err
	}

	otherDir := o.SellToken.Opposite()
	proceedsGain, err := p.settleProceeds(o, currentBlock, otherDir)
	if err != nil {
		return err
	}
	o.Proceeds = new(Amount).Add(o.Proceeds, proceedsGain)
	p.subProceeds(otherDir, proceedsGain)

	remaining := o.OrderExpiry - currentBlock
	banked, overflow := new(Amount).MulOverflow(o.SalesRate, NewAmount(remaining))
	if overflow {
		return ErrMathDomain
	}
	p.subOrders(o.SellToken, banked)
	o.Deposit = new(Amount).Add(o.Deposit, banked)

	p.rates.Sub(o.SellToken, o.SalesRate)
	o.Paused = true
	o.ScaledProceedsAtLastSettlement = p.currentScaledProceeds(otherDir)
	return nil
}

// ResumeOrder reactivates a paused order, redeploying the capital needed to
// cover its remaining lifetime out of its banked deposit (spec §4.5
// "resume").
func (p *Pool) ResumeOrder(currentBlock uint64, orderID OrderID, caller Identity) error {
	unlock, err := p.lock()
	if err != nil {
		return err
	}
	defer unlock()

	o, err := p.registry.Get(orderID)
	if err != nil {
		return err
	}
	if !authorized(o, caller) {
		return ErrNotAuthorized
	}
	if !o.Paused || currentBlock >= o.OrderExpiry {
		return ErrExpectedPaused
	}
	if err := p.executeVirtualOrders(currentBlock); err != nil {
		return err
	}

	remaining := o.OrderExpiry - currentBlock
	needed, overflow := new(Amount).MulOverflow(o.SalesRate, NewAmount(remaining))
	if overflow {
		return ErrMathDomain
	}
	if needed.Gt(o.Deposit) {
		return ErrInsufficientCapital
	}
	o.Deposit = new(Amount).Sub(o.Deposit, needed)
	p.addOrders(o.SellToken, needed)

	p.rates.Add(o.SellToken, o.SalesRate)
	o.Paused = false
	o.ScaledProceedsAtLastSettlement = p.currentScaledProceeds(o.SellToken.Opposite())
	return nil
}

// WithdrawLongTerm transfers an order's materialized proceeds and any
// banked deposit to recipient (spec §4.5 "withdraw"). If the order has
// expired, its record is finalized and removed.
func (p *Pool) WithdrawLongTerm(currentBlock uint64, orderID OrderID, caller, recipient Identity) error {
	unlock, err := p.lock()
	if err != nil {
		return err
	}
	defer unlock()

	o, err := p.registry.Get(orderID)
	if err != nil {
		return err
	}
	if !authorized(o, caller) {
		return ErrNotAuthorized
	}
	if err := p.executeVirtualOrders(currentBlock); err != nil {
		return err
	}

	otherDir := o.SellToken.Opposite()
	var total *Amount
	if !o.Paused {
		settleBlock := currentBlock
		if settleBlock > o.OrderExpiry {
			settleBlock = o.OrderExpiry
		}
		gain, err := p.settleProceeds(o, settleBlock, otherDir)
		if err != nil {
			return err
		}
		p.subProceeds(otherDir, gain)
		total = new(Amount).Add(o.Proceeds, gain)
	} else {
		total = new(Amount).Set(o.Proceeds)
	}

	if !total.IsZero() {
		if err := p.vault.TransferOut(p.key, recipient, otherDir, total); err != nil {
			return err
		}
	}
	o.Proceeds = ZeroAmount()

	if !o.Deposit.IsZero() {
		if err := p.vault.TransferOut(p.key, recipient, o.SellToken, o.Deposit); err != nil {
			return err
		}
		o.Deposit = ZeroAmount()
	}

	o.ScaledProceedsAtLastSettlement = p.currentScaledProceeds(otherDir)

	if currentBlock >= o.OrderExpiry {
		p.registry.remove(orderID, o.OrderExpiry)
	}
	return nil
}

// CancelLongTerm settles proceeds as withdraw would, then refunds any
// unsold capital and removes the order from the aggregator and registry
// (spec §4.5 "cancel").
func (p *Pool) CancelLongTerm(currentBlock uint64, orderID OrderID, caller, recipient Identity) error {
	unlock, err := p.lock()
	if err != nil {
		return err
	}
	defer unlock()

	o, err := p.registry.Get(orderID)
	if err != nil {
		return err
	}
	if !authorized(o, caller) {
		return ErrNotAuthorized
	}
	if err := p.executeVirtualOrders(currentBlock); err != nil {
		return err
	}

	otherDir := o.SellToken.Opposite()
	stillSelling := !o.Paused && currentBlock < o.OrderExpiry

	var proceedsTotal *Amount
	if !o.Paused {
		settleBlock := currentBlock
		if settleBlock > o.OrderExpiry {
			settleBlock = o.OrderExpiry
		}
		gain, err := p.settleProceeds(o, settleBlock, otherDir)
		if err != nil {
			return err
		}
		p.subProceeds(otherDir, gain)
		proceedsTotal = new(Amount).Add(o.Proceeds, gain)
	} else {
		proceedsTotal = new(Amount).Set(o.Proceeds)
	}
	if !proceedsTotal.IsZero() {
		if err := p.vault.TransferOut(p.key, recipient, otherDir, proceedsTotal); err != nil {
			return err
		}
	}

	// A paused order's unsold capital already sits in its deposit (banked at
	// pause time), so only a still-selling order adds its unsold remainder.
	refund := new(Amount).Set(o.Deposit)
	if stillSelling {
		unsold, overflow := new(Amount).MulOverflow(o.SalesRate, NewAmount(o.OrderExpiry-currentBlock))
		if overflow {
			return ErrMathDomain
		}
		p.subOrders(o.SellToken, unsold)
		refund = new(Amount).Add(refund, unsold)
	}
	if !refund.IsZero() {
		if err := p.vault.TransferOut(p.key, recipient, o.SellToken, refund); err != nil {
			return err
		}
	}

	if stillSelling {
		p.rates.Sub(o.SellToken, o.SalesRate)
	}
	p.registry.remove(orderID, o.OrderExpiry)
	return nil
}

// settleProceeds computes the proceeds an order has accrued in otherDir
// between its last settlement snapshot and settleBlock. settleBlock must be
// <= the pool's lvob; if it equals lvob exactly the live accumulator is
// used, otherwise it must name a block EVO is guaranteed to have persisted
// (an OBI or expiry boundary — the order's own expiry always qualifies,
// since EVO always persists at expiries). Callers must hold p.mu (via
// lock()).
func (p *Pool) settleProceeds(o *Order, settleBlock uint64, otherDir Direction) (*Amount, error) {
	scaledAt := p.scaledProceedsAsOf(otherDir, settleBlock)
	delta := subFloor(scaledAt, o.ScaledProceedsAtLastSettlement)
	scale := Scale(p.decimalsFor(otherDir))
	gain, err := MulDivFloor(delta, o.SalesRate, scale)
	if err != nil {
		return nil, err
	}
	return gain, nil
}

func (p *Pool) decimalsFor(d Direction) uint8 {
	if d == Token0 {
		return p.config.Decimals0
	}
	return p.config.Decimals1
}

func (p *Pool) addOrders(d Direction, amount *Amount) {
	if d == Token0 {
		p.orders0 = new(Amount).Add(p.orders0, amount)
	} else {
		p.orders1 = new(Amount).Add(p.orders1, amount)
	}
}

func (p *Pool) subOrders(d Direction, amount *Amount) {
	if d == Token0 {
		p.orders0 = subFloor(p.orders0, amount)
	} else {
		p.orders1 = subFloor(p.orders1, amount)
	}
}

func (p *Pool) subProceeds(d Direction, amount *Amount) {
	if d == Token0 {
		p.proceeds0 = subFloor(p.proceeds0, amount)
	} else {
		p.proceeds1 = subFloor(p.proceeds1, amount)
	}
}
