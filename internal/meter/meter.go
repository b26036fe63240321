// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

// Package meter runs the 1 Hz quota-enforcement loop: it samples per-peer
// transfer counters from the tunnel, updates each client's usage, and
// disconnects anyone who has exceeded their tier's cap.
package meter

import (
	"context"
	"log"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/reseda-net/reseda-server/internal/coordinator"
	"github.com/reseda-net/reseda-server/internal/metrics"
	"github.com/reseda-net/reseda-server/internal/roster"
	"github.com/reseda-net/reseda-server/internal/tunnel"
)

const tickInterval = 1000 * time.Millisecond

// TransferReader is the subset of the Tunnel Programmer the loop samples
// each tick. *tunnel.Programmer satisfies this.
type TransferReader interface {
	ReadTransfers(ctx context.Context) ([]tunnel.Transfer, error)
}

// Loop is the meter loop's long-lived state: the dependencies needed to
// enforce caps against the live client table. Run creates its own ticker.
type Loop struct {
	tunnel TransferReader
	table  *roster.Table
	deps   coordinator.Deps
}

// New builds a meter loop against the node's tunnel, client table, and
// session dependencies (shared with the coordinator so CLOSING runs
// identically from either caller).
func New(tunnel TransferReader, table *roster.Table, deps coordinator.Deps) *Loop {
	return &Loop{tunnel: tunnel, table: table, deps: deps}
}

// Run ticks every second until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.tick(ctx); err != nil {
				log.Printf("meter: tick completed with errors: %v", err)
			}
		}
	}
}

// tick processes one round of transfer snapshots. Failures on individual
// rows are aggregated and returned rather than aborting the round — one
// bad peer should never starve metering for the rest.
func (l *Loop) tick(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.MeterTickDuration.Observe(time.Since(start).Seconds()) }()

	transfers, err := l.tunnel.ReadTransfers(ctx)
	if err != nil {
		return err
	}

	var errs *multierror.Error
	for _, t := range transfers {
		if err := l.processRow(ctx, t); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	metrics.ActiveSessions.Set(float64(l.table.Len()))
	metrics.SlotsOccupied.Set(float64(l.deps.Registry.Occupied()))
	return errs.ErrorOrNil()
}

// processRow handles one (public_key, up, down) row. The node guard is
// held only for the duration of this one row, never across the whole
// tick, so admitted WebSocket frames are never starved by metering.
func (l *Loop) processRow(ctx context.Context, t tunnel.Transfer) error {
	l.deps.Guard.Lock()
	record := l.table.Get(t.PublicKey)
	if record == nil {
		l.deps.Guard.Unlock()
		return nil
	}

	// wg show transfer reports received-from-peer then sent-to-peer from
	// the node's point of view: received is the client's upload, sent is
	// the client's download.
	exceeded := record.SetUsage(t.Received, t.Sent)
	if !exceeded {
		l.deps.Guard.Unlock()
		pushUpdate(record, t.Received, t.Sent)
		return nil
	}

	connected := record.Connection.Connected
	l.deps.Guard.Unlock()

	if connected {
		pushUDCEU(record)
		time.Sleep(graceBufferFlush)
	} else {
		time.Sleep(graceDisconnect)
	}

	l.deps.Guard.Lock()
	defer l.deps.Guard.Unlock()
	coordinator.CloseSession(ctx, l.deps, t.PublicKey, record, metrics.CloseReasonQuota)
	return nil
}

const (
	graceDisconnect  = 1000 * time.Millisecond
	graceBufferFlush = 200 * time.Millisecond
)

func pushUpdate(record *roster.Record, up, down int64) {
	if record.Sender == nil {
		return
	}
	frame, err := coordinator.MarshalUpdateFrame(up, down)
	if err != nil {
		return
	}
	_ = record.Sender.Send(frame)
}

func pushUDCEU(record *roster.Record) {
	if record.Sender == nil {
		return
	}
	frame, err := coordinator.MarshalUDCEUFrame()
	if err != nil {
		return
	}
	_ = record.Sender.Send(frame)
}
