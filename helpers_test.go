// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package twamm

import (
	"testing"

	"github.com/luxfi/geth/common"
)

var (
	testOwner     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testDelegate  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testRecipient = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testCurrency0 = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testCurrency1 = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

// testConfig returns a standard-fee-tier config with an OBI of 10 blocks and
// room for up to 100 intervals, the defaults most lifecycle tests build on.
func testConfig() PoolConfig {
	return PoolConfig{
		OBI:               10,
		MaxOrderIntervals: 100,
		ShortTermFeeBps:   FeeTierStandard,
		PartnerFeeBps:     10,
		LongTermFeeBps:    20,
		PoolType:          PoolTypeStandard,
		Decimals0:         18,
		Decimals1:         18,
	}
}

// newTestPool builds a pool over a fresh MemVault, seeded with reserve0 and
// reserve1 of each token, starting at block startBlock. The same amounts are
// joined into the vault's custody for the pool, so the vault backs the
// initial reserves that proceeds are later paid out of.
func newTestPool(t *testing.T, cfg PoolConfig, reserve0, reserve1 uint64, startBlock uint64) (*Pool, *MemVault, PoolKey) {
	t.Helper()
	key := PoolKey{Currency0: testCurrency0, Currency1: testCurrency1, Config: cfg}
	vault := NewMemVault()
	seeder := common.HexToAddress("0x4444444444444444444444444444444444444444")
	vault.Credit(seeder, key, Token0, NewAmount(reserve0))
	vault.Credit(seeder, key, Token1, NewAmount(reserve1))
	if err := vault.Join(key, seeder, NewAmount(reserve0), NewAmount(reserve1)); err != nil {
		t.Fatalf("seeding vault custody failed: %v", err)
	}
	pool, err := NewPool(key, vault, NewAmount(reserve0), NewAmount(reserve1), startBlock)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	return pool, vault, key
}

// issueOrder credits owner with enough sellToken capital and issues a
// long-term order, failing the test on any error.
func issueOrder(t *testing.T, p *Pool, vault *MemVault, key PoolKey, currentBlock uint64, sellToken Direction, salesRate uint64, intervals uint64, owner Identity) OrderID {
	t.Helper()
	obi := p.GetOrderInterval()
	tradeBlocks := intervals*obi - (currentBlock % obi)
	capital := new(Amount).Mul(NewAmount(salesRate), NewAmount(tradeBlocks))
	vault.Credit(owner, key, sellToken, capital)

	id, err := p.IssueLongTerm(currentBlock, sellToken, NewAmount(salesRate), intervals, owner, Identity{})
	if err != nil {
		t.Fatalf("IssueLongTerm failed: %v", err)
	}
	return id
}
