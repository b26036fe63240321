// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

package coordinator

import (
	"context"
	"time"

	"github.com/reseda-net/reseda-server/internal/roster"
)

// PeerProgrammer is the subset of the Tunnel Programmer a session drives
// directly. *tunnel.Programmer satisfies this.
type PeerProgrammer interface {
	AddPeer(ctx context.Context, publicKey, allowedIP string, keepalive time.Duration) error
	RemovePeer(ctx context.Context, publicKey string) error
}

// UsageStore is the subset of the Persistence Gateway a session needs.
// *persistence.Store satisfies this.
type UsageStore interface {
	LookupTier(ctx context.Context, author string) roster.Tier
	LookupBillingPeriodUsage(ctx context.Context, author string) (up, down int64)
	RecordSession(ctx context.Context, author, serverName string, up, down int64, connStart, connEnd time.Time) error
}
