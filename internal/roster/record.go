// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

// Package roster holds the per-session client record and the node-wide
// table of admitted clients.
package roster

import (
	"strings"

	"github.com/reseda-net/reseda-server/internal/registry"
)

// ConnectionState is the tagged union describing whether a client holds a
// tunnel slot.
type ConnectionState struct {
	Connected bool
	Host      registry.Host
}

// Disconnected is the zero ConnectionState.
var Disconnected = ConnectionState{}

// Connected builds a ConnectionState holding host.
func Connected(host registry.Host) ConnectionState {
	return ConnectionState{Connected: true, Host: host}
}

// Usage holds current-session cumulative byte counters, as last reported
// by the meter loop.
type Usage struct {
	Up   int64
	Down int64
}

// Sink is the control channel for outbound frames to one client. Send
// delivers a frame and Close ends the client's connection. The
// coordinator's implementation writes each frame to the WebSocket
// synchronously under a mutex, from both the session and the meter loop;
// there is no queue and no forwarder goroutine.
type Sink interface {
	Send(frame []byte) error
	Close()
}

// Record is the per-session state the spec calls a Client Record.
type Record struct {
	Author     string
	PublicKey  string
	Sender     Sink
	Tier       TierState
	Connection ConnectionState
	Usage      Usage
	validPK    bool
}

// New constructs a record with valid_pk=false, tier=Unassigned,
// connection=Disconnected, usage=(0,0). sender may be nil and attached
// later with SetSender.
func New(author string, sender Sink) *Record {
	return &Record{
		Author:     author,
		Sender:     sender,
		Tier:       TierState{Kind: TierUnassigned},
		Connection: Disconnected,
	}
}

// SetSender attaches or replaces the record's sink.
func (r *Record) SetSender(sender Sink) {
	r.Sender = sender
}

// SetPublicKey canonicalizes and validates the public key: it must be
// exactly 44 characters and end in "=". The length and suffix checks apply
// to raw as given; the stored key has spaces replaced with "+" and
// newlines stripped.
func (r *Record) SetPublicKey(raw string) *Record {
	canon := strings.ReplaceAll(raw, "\n", "")
	canon = strings.ReplaceAll(canon, " ", "+")
	if len(raw) == 44 && strings.HasSuffix(raw, "=") {
		r.PublicKey = canon
		r.validPK = true
	}
	return r
}

// IsValid reports whether the public key passed canonicalization.
func (r *Record) IsValid() bool {
	return r.validPK
}

// MergeFrom overwrites public_key, tier, connection, usage, valid_pk from
// other while preserving author and sender — used when a returning client
// reconnects under a new author but reclaims an existing key-bound
// session.
func (r *Record) MergeFrom(other *Record) {
	r.PublicKey = other.PublicKey
	r.Tier = other.Tier
	r.Connection = other.Connection
	r.Usage = other.Usage
	r.validPK = other.validPK
}

// SetTier assigns the tier looked up from the Persistence Gateway.
func (r *Record) SetTier(tier TierState) {
	r.Tier = tier
}

// SetUsage updates the cumulative session counters and reports whether the
// client is now over its cap: false means under-cap (an update frame
// should be pushed), true means exceeded (the caller must disconnect).
// Unlimited tiers (Basic, Pro) always return false. Unassigned always
// returns true — it only exists to close the admission race, so any usage
// at all is treated as exceeding it.
func (r *Record) SetUsage(up, down int64) bool {
	r.Usage = Usage{Up: up, Down: down}

	switch r.Tier.Kind {
	case TierBasic, TierPro:
		return false
	case TierUnassigned:
		return true
	default:
		capBytes := EffectiveCap(r.Tier.Kind, r.Tier.CarriedDown)
		maxBytes := up
		if down > maxBytes {
			maxBytes = down
		}
		return capBytes <= maxBytes
	}
}
