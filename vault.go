// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package twamm

// Vault is the host-supplied token-custody boundary the core never reaches
// past (spec §1: "the host ledger's value-transfer and token-accounting").
// The core calls these four methods to move capital and proceeds in and out
// of a pool; it never inspects balances directly the way the teacher's
// PoolManager reads/writes StateDB balances for its own currencies, since
// the spec explicitly keeps custody out of the core's scope.
type Vault interface {
	// TransferIn moves amount of the given direction's token from owner
	// into pool custody, failing with ErrInsufficientCapital if owner lacks
	// the funds or has not authorized the transfer.
	TransferIn(pool PoolKey, owner Identity, d Direction, amount *Amount) error

	// TransferOut moves amount of the given direction's token out of pool
	// custody to recipient.
	TransferOut(pool PoolKey, recipient Identity, d Direction, amount *Amount) error

	// Join credits amount0/amount1 of pool custody from owner in exchange
	// for liquidity (join/exit do not touch orders or proceeds; spec §4.6).
	Join(pool PoolKey, owner Identity, amount0, amount1 *Amount) error

	// Exit debits amount0/amount1 of pool custody to recipient.
	Exit(pool PoolKey, recipient Identity, amount0, amount1 *Amount) error

	// Reserves reports the host-side balances held in custody for pool,
	// backing getVaultPoolReserves (spec §6).
	Reserves(pool PoolKey) (amount0, amount1 *Amount)
}

// MemVault is a minimal in-memory Vault used by tests and standalone
// embedding of the core without a host ledger. It tracks only the per-pool,
// per-owner balances the core's own operations move; it is not a general
// token ledger, the way the teacher's MockStateDB in its test files tracks
// only the balances its own tests exercise.
type MemVault struct {
	// custody holds, per pool, the total balance held for that pool per
	// direction — this is the figure getVaultPoolReserves reports.
	custody map[[32]byte][2]*Amount

	// external tracks each identity's off-pool balance, debited on
	// TransferIn/Join and credited on TransferOut/Exit.
	external map[Identity]map[[32]byte][2]*Amount
}

// NewMemVault returns an empty in-memory vault.
func NewMemVault() *MemVault {
	return &MemVault{
		custody:  make(map[[32]byte][2]*Amount),
		external: make(map[Identity]map[[32]byte][2]*Amount),
	}
}

func (v *MemVault) poolCustody(key PoolKey) [2]*Amount {
	id := key.ID()
	bal, ok := v.custody[id]
	if !ok {
		bal = [2]*Amount{ZeroAmount(), ZeroAmount()}
		v.custody[id] = bal
	}
	return bal
}

// Credit gives identity an external balance of direction d, for test setup
// (the teacher's liquid_test.go equivalent: setBalance on a MockStateDB).
func (v *MemVault) Credit(owner Identity, pool PoolKey, d Direction, amount *Amount) {
	id := pool.ID()
	if v.external[owner] == nil {
		v.external[owner] = make(map[[32]byte][2]*Amount)
	}
	bal, ok := v.external[owner][id]
	if !ok {
		bal = [2]*Amount{ZeroAmount(), ZeroAmount()}
	}
	bal[d] = new(Amount).Add(bal[d], amount)
	v.external[owner][id] = bal
}

func (v *MemVault) TransferIn(pool PoolKey, owner Identity, d Direction, amount *Amount) error {
	id := pool.ID()
	bal, ok := v.external[owner][id]
	if !ok || bal[d].Lt(amount) {
		return ErrInsufficientCapital
	}
	bal[d] = new(Amount).Sub(bal[d], amount)
	v.external[owner][id] = bal

	custody := v.poolCustody(pool)
	custody[d] = new(Amount).Add(custody[d], amount)
	v.custody[id] = custody
	return nil
}

func (v *MemVault) TransferOut(pool PoolKey, recipient Identity, d Direction, amount *Amount) error {
	id := pool.ID()
	custody := v.poolCustody(pool)
	if custody[d].Lt(amount) {
		return ErrInsufficientCapital
	}
	custody[d] = new(Amount).Sub(custody[d], amount)
	v.custody[id] = custody

	if v.external[recipient] == nil {
		v.external[recipient] = make(map[[32]byte][2]*Amount)
	}
	bal, ok := v.external[recipient][id]
	if !ok {
		bal = [2]*Amount{ZeroAmount(), ZeroAmount()}
	}
	bal[d] = new(Amount).Add(bal[d], amount)
	v.external[recipient][id] = bal
	return nil
}

func (v *MemVault) Join(pool PoolKey, owner Identity, amount0, amount1 *Amount) error {
	if err := v.TransferIn(pool, owner, Token0, amount0); err != nil {
		return err
	}
	return v.TransferIn(pool, owner, Token1, amount1)
}

func (v *MemVault) Exit(pool PoolKey, recipient Identity, amount0, amount1 *Amount) error {
	if err := v.TransferOut(pool, recipient, Token0, amount0); err != nil {
		return err
	}
	return v.TransferOut(pool, recipient, Token1, amount1)
}

// Reserves reports the vault's current custody balances for a pool, backing
// getVaultPoolReserves.
func (v *MemVault) Reserves(pool PoolKey) (r0, r1 *Amount) {
	bal := v.poolCustody(pool)
	return new(Amount).Set(bal[0]), new(Amount).Set(bal[1])
}
