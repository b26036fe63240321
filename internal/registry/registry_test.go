// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOpenScansInOrder(t *testing.T) {
	r := New(2, 4, 1, 3) // (2,1) (2,2) (3,1) (3,2)

	probe := r.FindOpen()
	require.Equal(t, Open, probe.Kind)
	assert.Equal(t, Host{A: 2, B: 1}, Host{A: probe.Host.A, B: probe.Host.B})

	res := r.Reserve(probe.Host)
	require.Equal(t, Held, res.Kind)

	probe2 := r.FindOpen()
	require.Equal(t, Open, probe2.Kind)
	assert.Equal(t, uint8(2), probe2.Host.A)
	assert.Equal(t, uint8(2), probe2.Host.B)
}

func TestFindOpenProspectiveWhenFull(t *testing.T) {
	r := New(2, 3, 1, 2) // only (2,1)

	probe := r.FindOpen()
	require.Equal(t, Open, probe.Kind)
	require.Equal(t, Held, r.Reserve(probe.Host).Kind)

	probe2 := r.FindOpen()
	assert.Equal(t, Prospective, probe2.Kind)
}

func TestReserveDetachedWhenOccupiedOrOutOfRange(t *testing.T) {
	r := New(2, 3, 1, 2)
	host := Host{A: 2, B: 1}

	require.Equal(t, Held, r.Reserve(host).Kind)
	assert.Equal(t, Detached, r.Reserve(host).Kind)

	outOfRange := Host{A: 9, B: 9}
	assert.Equal(t, Detached, r.Reserve(outOfRange).Kind)
}

func TestOccupiedCountsReservedCells(t *testing.T) {
	r := New(2, 3, 1, 3)
	assert.Equal(t, 0, r.Occupied())

	require.Equal(t, Held, r.Reserve(Host{A: 2, B: 1}).Kind)
	assert.Equal(t, 1, r.Occupied())

	require.Equal(t, Held, r.Reserve(Host{A: 2, B: 2}).Kind)
	assert.Equal(t, 2, r.Occupied())

	r.Free(Host{A: 2, B: 1})
	assert.Equal(t, 1, r.Occupied())
}

func TestFreeIsIdempotent(t *testing.T) {
	r := New(2, 3, 1, 2)
	host := Host{A: 2, B: 1}
	require.Equal(t, Held, r.Reserve(host).Kind)

	r.Free(host)
	r.Free(host) // second free is a no-op, not an error

	probe := r.FindOpen()
	assert.Equal(t, Open, probe.Kind)
}

// TestConcurrentReservationsNeverDuplicate exercises invariant 2: no two
// concurrent Reserve calls ever both hold the same host.
func TestConcurrentReservationsNeverDuplicate(t *testing.T) {
	r := New(2, 12, 1, 255)

	const workers = 64
	held := make(chan Host, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				probe := r.FindOpen()
				if probe.Kind == Prospective {
					return
				}
				res := r.Reserve(probe.Host)
				if res.Kind == Held {
					held <- res.Host
					return
				}
				// Detached: another worker grabbed it first, retry.
			}
		}()
	}
	wg.Wait()
	close(held)

	seen := make(map[[2]uint8]bool)
	for h := range held {
		coord := [2]uint8{h.A, h.B}
		require.False(t, seen[coord], "duplicate Held host %v", h)
		seen[coord] = true
	}
	assert.Len(t, seen, workers)
}
