// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

// Package registry implements the slot registry: a dense bitmap of
// (a, b) internal-address coordinates with atomic reserve/free.
package registry

import (
	"fmt"
	"sync"
	"time"
)

// Host identifies one internal tunnel address 10.8.<A>.<B> on this node.
type Host struct {
	A        uint8
	B        uint8
	ConnTime time.Time
}

// String renders the host as its internal tunnel address.
func (h Host) String() string {
	return fmt.Sprintf("10.8.%d.%d", h.A, h.B)
}

// Subdomain renders the coordinate pair the way clients see it in the
// admission reply, e.g. "2.2".
func (h Host) Subdomain() string {
	return fmt.Sprintf("%d.%d", h.A, h.B)
}

// ReservationKind tags the outcome of a Reserve call.
type ReservationKind int

const (
	// Held means the caller now owns the slot.
	Held ReservationKind = iota
	// Detached means the reservation failed: the coordinate is missing
	// from the grid or already occupied. Host is echoed for diagnostics.
	Detached
	// Imissable means no free slot exists on this node.
	Imissable
)

// Reservation is the tagged union returned by Reserve.
type Reservation struct {
	Kind ReservationKind
	Host Host
}

// ProbeKind tags the outcome of a FindOpen call.
type ProbeKind int

const (
	// Open means Host names a free coordinate with a fresh ConnTime.
	Open ProbeKind = iota
	// Prospective means every cell in the grid is occupied.
	Prospective
)

// Probe is the tagged union returned by FindOpen.
type Probe struct {
	Kind ProbeKind
	Host Host
}

// Registry is the (a, b) -> occupied mapping for one node. The zero value
// is not usable; construct with New.
type Registry struct {
	mu       sync.Mutex
	occupied map[[2]uint8]bool
	// order is the deterministic (a, b) scan order used by FindOpen, built
	// once at construction so allocation is predictable and replayable.
	order    [][2]uint8
}

// New builds a registry for a in [aMin, aMax) and b in [bMin, bMax), with
// every cell initially free.
func New(aMin, aMax, bMin, bMax uint8) *Registry {
	r := &Registry{
		occupied: make(map[[2]uint8]bool, int(aMax-aMin)*int(bMax-bMin)),
	}
	for a := aMin; a < aMax; a++ {
		for b := bMin; b < bMax; b++ {
			coord := [2]uint8{a, b}
			r.occupied[coord] = false
			r.order = append(r.order, coord)
		}
	}
	return r
}

// FindOpen scans cells in the registry's fixed construction order and
// returns the first free one, or Prospective if none are free. It does not
// mutate the registry — see Reserve for that.
func (r *Registry) FindOpen() Probe {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, coord := range r.order {
		if !r.occupied[coord] {
			return Probe{
				Kind: Open,
				Host: Host{A: coord[0], B: coord[1], ConnTime: time.Now().UTC()},
			}
		}
	}
	return Probe{Kind: Prospective}
}

// Reserve marks host occupied if it is present in the grid and currently
// free. Reserve and FindOpen are not fused: a caller that needs to
// guarantee progress against concurrent allocators must hold its own lock
// across both calls (see the node controller's guard).
func (r *Registry) Reserve(host Host) Reservation {
	r.mu.Lock()
	defer r.mu.Unlock()

	coord := [2]uint8{host.A, host.B}
	occupied, known := r.occupied[coord]
	if !known || occupied {
		return Reservation{Kind: Detached, Host: host}
	}

	r.occupied[coord] = true
	return Reservation{Kind: Held, Host: host}
}

// Free clears the cell. Freeing an already-free (or unknown) cell is a
// no-op.
func (r *Registry) Free(host Host) {
	r.mu.Lock()
	defer r.mu.Unlock()

	coord := [2]uint8{host.A, host.B}
	if _, known := r.occupied[coord]; known {
		r.occupied[coord] = false
	}
}

// Len reports the number of addressable cells in the grid.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.occupied)
}

// Occupied reports the number of currently reserved cells.
func (r *Registry) Occupied() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, taken := range r.occupied {
		if taken {
			n++
		}
	}
	return n
}
