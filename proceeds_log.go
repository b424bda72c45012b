// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package twamm

import "sort"

// proceedsEntry is one persisted point of the scaled-proceeds log: the
// cumulative scaled-proceeds accumulator as of block Block.
type proceedsEntry struct {
	Block      uint64
	Cumulative *Amount
}

// directionLog is the append-only, block-ordered log for a single direction.
// Entries only exist at OBI boundaries and LTO expiries (spec §4.2); EVO
// holds the in-flight accumulator for everything in between.
type directionLog struct {
	entries []proceedsEntry
}

// Append stores (or overwrites, if block matches the last entry) the
// cumulative scaled-proceeds value at block. block must be >= the last
// stored block.
func (l *directionLog) Append(block uint64, cumulative *Amount) {
	n := len(l.entries)
	if n > 0 && l.entries[n-1].Block == block {
		l.entries[n-1].Cumulative = new(Amount).Set(cumulative)
		return
	}
	l.entries = append(l.entries, proceedsEntry{Block: block, Cumulative: new(Amount).Set(cumulative)})
}

// Read returns the last stored value with stored-block <= block, or 0 if
// none exists (spec §4.2).
func (l *directionLog) Read(block uint64) *Amount {
	// binary search for the rightmost entry with Block <= block
	idx := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].Block > block
	})
	if idx == 0 {
		return ZeroAmount()
	}
	return new(Amount).Set(l.entries[idx-1].Cumulative)
}

// Latest returns the most recently persisted block and value for this
// direction, or (0, 0) if nothing has ever been persisted.
func (l *directionLog) Latest() (uint64, *Amount) {
	if len(l.entries) == 0 {
		return 0, ZeroAmount()
	}
	last := l.entries[len(l.entries)-1]
	return last.Block, new(Amount).Set(last.Cumulative)
}

// ScaledProceedsLog holds both directions' logs (C2). One instance lives on
// each Pool.
type ScaledProceedsLog struct {
	dirs [2]directionLog
}

// Append persists the cumulative scaled-proceeds accumulator for direction d
// at block.
func (s *ScaledProceedsLog) Append(d Direction, block uint64, cumulative *Amount) {
	s.dirs[d].Append(block, cumulative)
}

// Read returns the scaled-proceeds accumulator for direction d as of block.
func (s *ScaledProceedsLog) Read(d Direction, block uint64) *Amount {
	return s.dirs[d].Read(block)
}

// ReadBoth is a convenience for getScaledProceedsAtBlock (spec §6).
func (s *ScaledProceedsLog) ReadBoth(block uint64) (scaled0, scaled1 *Amount) {
	return s.Read(Token0, block), s.Read(Token1, block)
}
