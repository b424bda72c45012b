// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package twamm implements the core of a time-weighted average market maker:
// a constant-product pool augmented with long-term orders that execute
// continuously, block by block, at a uniform sales rate over a window of
// order-block intervals (OBIs).
package twamm

import (
	"encoding/binary"
	"errors"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// Identity is a reference to an owner, delegate, or transfer recipient.
// The core never interprets it beyond equality comparison and storage.
type Identity = common.Address

// Direction selects which token of the pair an order sells.
type Direction uint8

const (
	Token0 Direction = 0
	Token1 Direction = 1
)

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == Token0 {
		return Token1
	}
	return Token0
}

func (d Direction) valid() bool {
	return d == Token0 || d == Token1
}

// OrderID is a dense, monotone, never-reused identifier for a long-term order.
type OrderID uint64

// PoolType distinguishes fee/behavior presets a pool may be configured with.
// Values beyond Standard are reserved for host-level extensions (e.g. a
// stable-pair curve variant); the core only branches on fee/OBI fields.
type PoolType uint8

const (
	PoolTypeStandard PoolType = iota
	PoolTypeStable
	PoolTypeVolatile
)

// Fee tiers, in units of 1e-4 (i.e. basis points), matching the
// "1e-4" unit spec §6 specifies for getShortTermFeePoints/getPartnerFeePoints/
// getLongTermFeePoints.
const (
	FeeTierStable   uint32 = 5   // 0.05%
	FeeTierStandard uint32 = 30  // 0.30%
	FeeTierVolatile uint32 = 100 // 1.00%
	FeeDenominator  uint32 = 10_000
)

// PoolConfig holds the pool's immutable-after-creation parameters (C8).
type PoolConfig struct {
	OBI               uint64 // blocks per order-block interval; must be > 0
	MaxOrderIntervals uint64 // max number of OBIs a single LTO may span
	ShortTermFeeBps   uint32 // fee on instantaneous swaps, units of 1e-4
	PartnerFeeBps     uint32 // fee routed to a partner recipient, units of 1e-4
	LongTermFeeBps    uint32 // fee on long-term order proceeds, units of 1e-4
	PoolType          PoolType
	Decimals0         uint8 // token0 decimals, used to derive SCALE_0
	Decimals1         uint8 // token1 decimals, used to derive SCALE_1
}

func (c PoolConfig) validate() error {
	if c.OBI == 0 {
		return ErrInvalidConfig
	}
	if c.MaxOrderIntervals == 0 {
		return ErrInvalidConfig
	}
	if c.ShortTermFeeBps > FeeDenominator || c.PartnerFeeBps > FeeDenominator || c.LongTermFeeBps > FeeDenominator {
		return ErrInvalidConfig
	}
	return nil
}

// PoolKey identifies a pool by its sorted currency pair and configuration,
// the way the teacher's PoolKey identifies a concentrated-liquidity pool.
type PoolKey struct {
	Currency0 Identity
	Currency1 Identity
	Config    PoolConfig
}

// ID derives the pool's storage key by hashing its sorted currency pair and
// configuration, the way the teacher's PoolKey.ID hashes currencies, fee,
// tick spacing, and hook address into a single pool identifier.
func (k PoolKey) ID() [32]byte {
	h := blake3.New()
	h.Write(k.Currency0.Bytes())
	h.Write(k.Currency1.Bytes())

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], k.Config.OBI)
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], k.Config.MaxOrderIntervals)
	h.Write(buf[:])

	var buf4 [4]byte
	binary.BigEndian.PutUint32(buf4[:], k.Config.ShortTermFeeBps)
	h.Write(buf4[:])
	binary.BigEndian.PutUint32(buf4[:], k.Config.PartnerFeeBps)
	h.Write(buf4[:])
	binary.BigEndian.PutUint32(buf4[:], k.Config.LongTermFeeBps)
	h.Write(buf4[:])

	h.Write([]byte{byte(k.Config.PoolType), k.Config.Decimals0, k.Config.Decimals1})

	var out [32]byte
	h.Digest().Read(out[:])
	return out
}

// Order is a long-term order record (§3 "Long-term order record").
type Order struct {
	ID          OrderID
	Owner       Identity
	Delegate    Identity
	SellToken   Direction
	SalesRate   *Amount
	OrderStart  uint64
	OrderExpiry uint64

	// ScaledProceedsAtLastSettlement snapshots L_{1-sellToken} at the last
	// block the order's proceeds were materialized.
	ScaledProceedsAtLastSettlement *Amount

	Paused bool

	// Deposit is refundable sellToken capital accumulated while paused or
	// banked by a not-yet-consumed extend.
	Deposit *Amount

	// Proceeds is materialized otherToken proceeds not yet transferred out.
	Proceeds *Amount
}

// Error taxonomy (spec §7). These are sentinel errors, comparable with
// errors.Is; the host maps them to wire-visible codes (e.g. CFI#223 for
// ErrOrderTooLong) — the core itself never emits those strings.
var (
	ErrOrderTooLong        = errors.New("twamm: order length exceeds maximum intervals")
	ErrOrderNotFound       = errors.New("twamm: order not found")
	ErrNotAuthorized       = errors.New("twamm: caller is not owner or delegate")
	ErrExpectedPaused      = errors.New("twamm: order must be paused")
	ErrExpectedActive      = errors.New("twamm: order must be active (unpaused, unexpired)")
	ErrOrderExpired        = errors.New("twamm: order already expired")
	ErrInsufficientCapital = errors.New("twamm: insufficient capital supplied")
	ErrMathDomain          = errors.New("twamm: math domain error")
	ErrReentrant           = errors.New("twamm: reentrant call")
	ErrDeadlineExceeded    = errors.New("twamm: deadline exceeded")
	ErrSlippageExceeded    = errors.New("twamm: slippage exceeded")
	ErrInvalidConfig       = errors.New("twamm: invalid pool configuration")
	ErrInvalidDirection    = errors.New("twamm: invalid direction")
	ErrPastTarget          = errors.New("twamm: target block precedes lvob")
	ErrZeroAmount          = errors.New("twamm: amount must be positive")
)
