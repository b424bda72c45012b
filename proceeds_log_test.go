// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package twamm

import "testing"

func TestDirectionLog_ReadBeforeFirstEntry(t *testing.T) {
	var l directionLog
	got := l.Read(5)
	if !got.IsZero() {
		t.Fatalf("want 0 before any entry, got %s", got.Dec())
	}
}

func TestDirectionLog_ReadExactAndBetween(t *testing.T) {
	var l directionLog
	l.Append(100, NewAmount(10))
	l.Append(200, NewAmount(30))

	if got := l.Read(100); got.Uint64() != 10 {
		t.Fatalf("Read(100) want 10, got %d", got.Uint64())
	}
	if got := l.Read(150); got.Uint64() != 10 {
		t.Fatalf("Read(150) want 10 (last stored <= block), got %d", got.Uint64())
	}
	if got := l.Read(200); got.Uint64() != 30 {
		t.Fatalf("Read(200) want 30, got %d", got.Uint64())
	}
	if got := l.Read(10_000); got.Uint64() != 30 {
		t.Fatalf("Read(far future) want 30, got %d", got.Uint64())
	}
}

func TestDirectionLog_AppendSameBlockOverwrites(t *testing.T) {
	var l directionLog
	l.Append(100, NewAmount(10))
	l.Append(100, NewAmount(15))
	if len(l.entries) != 1 {
		t.Fatalf("want a single entry after overwrite, got %d", len(l.entries))
	}
	if got := l.Read(100); got.Uint64() != 15 {
		t.Fatalf("want overwritten value 15, got %d", got.Uint64())
	}
}

func TestDirectionLog_Latest(t *testing.T) {
	var l directionLog
	if block, val := l.Latest(); block != 0 || !val.IsZero() {
		t.Fatalf("empty log Latest() want (0, 0), got (%d, %s)", block, val.Dec())
	}
	l.Append(50, NewAmount(7))
	l.Append(90, NewAmount(9))
	block, val := l.Latest()
	if block != 90 || val.Uint64() != 9 {
		t.Fatalf("Latest() want (90, 9), got (%d, %d)", block, val.Uint64())
	}
}

func TestScaledProceedsLog_ReadBoth(t *testing.T) {
	var log ScaledProceedsLog
	log.Append(Token0, 100, NewAmount(11))
	log.Append(Token1, 100, NewAmount(22))

	s0, s1 := log.ReadBoth(100)
	if s0.Uint64() != 11 || s1.Uint64() != 22 {
		t.Fatalf("ReadBoth want (11, 22), got (%d, %d)", s0.Uint64(), s1.Uint64())
	}

	// Directions are independent: advancing one does not affect the other.
	log.Append(Token0, 200, NewAmount(33))
	s0, s1 = log.ReadBoth(150)
	if s0.Uint64() != 11 || s1.Uint64() != 22 {
		t.Fatalf("ReadBoth(150) want (11, 22), got (%d, %d)", s0.Uint64(), s1.Uint64())
	}
}
