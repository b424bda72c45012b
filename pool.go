// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package twamm

import (
	"encoding/binary"
	"sync"
)

// Store is the host-supplied persistence backend a Pool's scalar state is
// mirrored into between calls, the way the teacher's PoolManager reads and
// writes pool/position structs through a StateDB rather than holding the
// only copy in memory. The core treats it as an opaque key-value store; no
// file format is implied (spec §6, "Persisted state layout").
type Store interface {
	Get(key [32]byte) ([]byte, bool)
	Set(key [32]byte, value []byte)
}

// MemStore is an in-memory Store for tests and for hosts that checkpoint a
// Pool entirely in process memory.
type MemStore struct {
	mu   sync.RWMutex
	data map[[32]byte][]byte
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[[32]byte][]byte)}
}

func (s *MemStore) Get(key [32]byte) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *MemStore) Set(key [32]byte, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.data[key] = cp
}

// Pool is the top-level orchestration type (C7/C8): a singleton per
// currency pair and configuration, holding reserves, the order book, the
// sales-rate aggregator, and the scaled-proceeds log, the way the teacher's
// PoolManager holds every Pool/Position keyed off a PoolKey, except here
// there is exactly one pool per Pool value rather than a manager multiplexing
// many into shared storage maps.
type Pool struct {
	mu sync.Mutex

	key    PoolKey
	config PoolConfig
	vault  Vault

	reserve0, reserve1   *Amount
	orders0, orders1     *Amount
	proceeds0, proceeds1 *Amount

	rates    *SalesRateAggregator
	registry *OrderRegistry
	log      *ScaledProceedsLog

	// scaled0, scaled1 are the exact current scaled-proceeds accumulators,
	// kept live across EVO calls regardless of whether the current block is
	// an OBI/expiry boundary. log only holds the subset of these values
	// persisted at boundaries (spec §4.2); order settlement (pause/resume/
	// withdraw/cancel) needs the exact value as of the current block, which
	// may fall strictly between two persisted points.
	scaled0, scaled1 *Amount

	lvob uint64

	locked bool
}

// NewPool creates a pool seeded with the given initial reserves. Reserves
// above Amount112Max are rejected per the core's fixed-point ceiling.
func NewPool(key PoolKey, vault Vault, reserve0, reserve1 *Amount, startBlock uint64) (*Pool, error) {
	if err := key.Config.validate(); err != nil {
		return nil, err
	}
	if err := checkOverflow(reserve0); err != nil {
		return nil, err
	}
	if err := checkOverflow(reserve1); err != nil {
		return nil, err
	}
	return &Pool{
		key:       key,
		config:    key.Config,
		vault:     vault,
		reserve0:  new(Amount).Set(reserve0),
		reserve1:  new(Amount).Set(reserve1),
		orders0:   ZeroAmount(),
		orders1:   ZeroAmount(),
		proceeds0: ZeroAmount(),
		proceeds1: ZeroAmount(),
		rates:     NewSalesRateAggregator(),
		registry:  NewOrderRegistry(),
		log:       &ScaledProceedsLog{},
		scaled0:   ZeroAmount(),
		scaled1:   ZeroAmount(),
		lvob:      startBlock,
	}, nil
}

// lock acquires the reentrancy latch the way the teacher's PoolManager gates
// Swap/ModifyLiquidity/Donate/Flash against reentry (spec §5: "the core must
// gate entry with a reentrancy latch and fail reentrant calls").
func (p *Pool) lock() (func(), error) {
	p.mu.Lock()
	if p.locked {
		p.mu.Unlock()
		return nil, ErrReentrant
	}
	p.locked = true
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		p.locked = false
		p.mu.Unlock()
	}, nil
}

// ExecuteVirtualOrdersToBlock is the public entry point for EVO, exposed for
// tests and for hosts that want to amortize its cost outside another
// operation. A no-op if block <= lvob (spec §6).
func (p *Pool) ExecuteVirtualOrdersToBlock(block uint64) error {
	unlock, err := p.lock()
	if err != nil {
		return err
	}
	defer unlock()

	if block <= p.lvob {
		return nil
	}
	return p.executeVirtualOrders(block)
}

// --- Public read operations (spec §6) ---

func (p *Pool) GetOrderInterval() uint64        { return p.config.OBI }
func (p *Pool) GetMaxOrderIntervals() uint64    { return p.config.MaxOrderIntervals }
func (p *Pool) GetShortTermFeePoints() uint32   { return p.config.ShortTermFeeBps }
func (p *Pool) GetPartnerFeePoints() uint32     { return p.config.PartnerFeeBps }
func (p *Pool) GetLongTermFeePoints() uint32    { return p.config.LongTermFeeBps }

func (p *Pool) GetOrderAmounts() (orders0, orders1 *Amount) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(Amount).Set(p.orders0), new(Amount).Set(p.orders1)
}

func (p *Pool) GetProceedAmounts() (proceeds0, proceeds1 *Amount) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(Amount).Set(p.proceeds0), new(Amount).Set(p.proceeds1)
}

func (p *Pool) GetSalesRates() (rate0, rate1 *Amount) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rates.Rate(Token0), p.rates.Rate(Token1)
}

func (p *Pool) GetOrder(id OrderID) (Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, err := p.registry.Get(id)
	if err != nil {
		return Order{}, err
	}
	return *o, nil
}

func (p *Pool) GetScaledProceedsAtBlock(block uint64) (scaled0, scaled1 *Amount) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if block >= p.lvob {
		return new(Amount).Set(p.scaled0), new(Amount).Set(p.scaled1)
	}
	return p.log.ReadBoth(block)
}

// currentScaledProceeds returns direction d's exact scaled-proceeds
// accumulator as of lvob (the current block, once EVO has run). Callers
// must hold p.mu.
func (p *Pool) currentScaledProceeds(d Direction) *Amount {
	if d == Token0 {
		return new(Amount).Set(p.scaled0)
	}
	return new(Amount).Set(p.scaled1)
}

// scaledProceedsAsOf returns direction d's scaled-proceeds accumulator as of
// block, which must be <= p.lvob. For block == lvob this is the live,
// possibly-unpersisted accumulator; for any earlier block it falls back to
// the persisted log, which is exact at the OBI/expiry boundaries order
// settlement ever asks for. Callers must hold p.mu.
func (p *Pool) scaledProceedsAsOf(d Direction, block uint64) *Amount {
	if block == p.lvob {
		return p.currentScaledProceeds(d)
	}
	return p.log.Read(d, block)
}

// GetVaultPoolReserves reports the host-side token balances held for this
// pool, sourced from the Vault rather than the pool's own reserve/orders/
// proceeds bookkeeping (spec §6) — the two should agree per invariant 1.
func (p *Pool) GetVaultPoolReserves() (balance0, balance1 *Amount) {
	return p.vault.Reserves(p.key)
}

// --- Short-term swap and liquidity (C7, spec §4.6) ---

// SwapShortTerm executes an instantaneous constant-product swap of amountIn
// of direction d's token, after running EVO and netting the short-term fee.
// Fails with ErrDeadlineExceeded if deadlineBlock is in the past, and with
// ErrSlippageExceeded if the output would be below minOut.
func (p *Pool) SwapShortTerm(currentBlock uint64, d Direction, amountIn, minOut *Amount, deadlineBlock uint64) (*Amount, error) {
	unlock, err := p.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if currentBlock > deadlineBlock {
		return nil, ErrDeadlineExceeded
	}
	if amountIn.IsZero() {
		return nil, ErrZeroAmount
	}
	if !d.valid() {
		return nil, ErrInvalidDirection
	}
	if err := p.executeVirtualOrders(currentBlock); err != nil {
		return nil, err
	}

	netIn, err := netFee(amountIn, p.config.ShortTermFeeBps)
	if err != nil {
		return nil, err
	}

	var reserveIn, reserveOut *Amount
	if d == Token0 {
		reserveIn, reserveOut = p.reserve0, p.reserve1
	} else {
		reserveIn, reserveOut = p.reserve1, p.reserve0
	}

	k, overflow := new(Amount).MulOverflow(reserveIn, reserveOut)
	if overflow {
		return nil, ErrMathDomain
	}
	newReserveIn := new(Amount).Add(reserveIn, netIn)
	if err := checkOverflow(newReserveIn); err != nil {
		return nil, err
	}
	newReserveOut, err := MulDivFloor(k, NewAmount(1), newReserveIn)
	if err != nil {
		return nil, err
	}
	if newReserveOut.Gt(reserveOut) {
		return nil, ErrMathDomain
	}
	amountOut := new(Amount).Sub(reserveOut, newReserveOut)
	if amountOut.Lt(minOut) {
		return nil, ErrSlippageExceeded
	}

	if d == Token0 {
		p.reserve0, p.reserve1 = newReserveIn, newReserveOut
	} else {
		p.reserve1, p.reserve0 = newReserveIn, newReserveOut
	}

	return amountOut, nil
}

// JoinPool deposits amount0/amount1 into the pool's reserves, after running
// EVO. The amounts are added as given; their ratio is not checked against
// the current reserve ratio. LP-token accounting is a host-level concern
// (spec §4.6); this only adjusts reserve0/reserve1.
func (p *Pool) JoinPool(currentBlock uint64, owner Identity, amount0, amount1 *Amount) error {
	unlock, err := p.lock()
	if err != nil {
		return err
	}
	defer unlock()

	if err := p.executeVirtualOrders(currentBlock); err != nil {
		return err
	}
	if err := checkOverflow(new(Amount).Add(p.reserve0, amount0)); err != nil {
		return err
	}
	if err := checkOverflow(new(Amount).Add(p.reserve1, amount1)); err != nil {
		return err
	}
	if err := p.vault.Join(p.key, owner, amount0, amount1); err != nil {
		return err
	}
	p.reserve0 = new(Amount).Add(p.reserve0, amount0)
	p.reserve1 = new(Amount).Add(p.reserve1, amount1)
	return nil
}

// ExitPool withdraws amount0/amount1 from the pool's reserves to recipient,
// after running EVO.
func (p *Pool) ExitPool(currentBlock uint64, recipient Identity, amount0, amount1 *Amount) error {
	unlock, err := p.lock()
	if err != nil {
		return err
	}
	defer unlock()

	if err := p.executeVirtualOrders(currentBlock); err != nil {
		return err
	}
	if amount0.Gt(p.reserve0) || amount1.Gt(p.reserve1) {
		return ErrInsufficientCapital
	}
	if err := p.vault.Exit(p.key, recipient, amount0, amount1); err != nil {
		return err
	}
	p.reserve0 = new(Amount).Sub(p.reserve0, amount0)
	p.reserve1 = new(Amount).Sub(p.reserve1, amount1)
	return nil
}

// netFee subtracts feeBps/FeeDenominator of amount, flooring, the way the
// teacher nets swap fees before the constant-product solve in Swap.
func netFee(amount *Amount, feeBps uint32) (*Amount, error) {
	if feeBps == 0 {
		return new(Amount).Set(amount), nil
	}
	fee, err := MulDivFloor(amount, NewAmount(uint64(feeBps)), NewAmount(uint64(FeeDenominator)))
	if err != nil {
		return nil, err
	}
	if fee.Gt(amount) {
		return nil, ErrMathDomain
	}
	return new(Amount).Sub(amount, fee), nil
}

// --- Persistence (mirrors the teacher's getPool/setPool write-through to
// StateDB; here the Store only carries the scalar accumulators, since
// orders/log are owned by the in-memory registry/log for the lifetime of a
// process and a host wanting full durability snapshots those separately) ---

// SaveState serializes the pool's scalar accumulators into store under the
// pool's key.
func (p *Pool) SaveState(store Store) {
	p.mu.Lock()
	defer p.mu.Unlock()

	buf := make([]byte, 0, 6*32+8)
	buf = append(buf, leftPad32(p.reserve0)...)
	buf = append(buf, leftPad32(p.reserve1)...)
	buf = append(buf, leftPad32(p.orders0)...)
	buf = append(buf, leftPad32(p.orders1)...)
	buf = append(buf, leftPad32(p.proceeds0)...)
	buf = append(buf, leftPad32(p.proceeds1)...)
	var lvobBytes [8]byte
	binary.BigEndian.PutUint64(lvobBytes[:], p.lvob)
	buf = append(buf, lvobBytes[:]...)

	store.Set(p.key.ID(), buf)
}

// LoadState restores the pool's scalar accumulators from store, if present.
func (p *Pool) LoadState(store Store) bool {
	raw, ok := store.Get(p.key.ID())
	if !ok || len(raw) != 6*32+8 {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reserve0 = new(Amount).SetBytes(raw[0:32])
	p.reserve1 = new(Amount).SetBytes(raw[32:64])
	p.orders0 = new(Amount).SetBytes(raw[64:96])
	p.orders1 = new(Amount).SetBytes(raw[96:128])
	p.proceeds0 = new(Amount).SetBytes(raw[128:160])
	p.proceeds1 = new(Amount).SetBytes(raw[160:192])
	p.lvob = binary.BigEndian.Uint64(raw[192:200])
	return true
}

func leftPad32(a *Amount) []byte {
	b := a.Bytes32()
	return b[:]
}
