// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

package coordinator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/reseda-net/reseda-server/internal/metrics"
	"github.com/reseda-net/reseda-server/internal/registry"
	"github.com/reseda-net/reseda-server/internal/roster"
)

// Deps is everything a session needs from the node, gathered in one place
// so the node's guard mutex is the only lock a session ever has to take.
type Deps struct {
	Guard      sync.Locker
	Registry   *registry.Registry
	Table      *roster.Table
	Tunnel     PeerProgrammer
	Store      UsageStore
	ServerName string

	// ServerPublicKey and ListenPort identify this node on the wire in the
	// open-success reply.
	ServerPublicKey string
	ListenPort      int
	PublicIP        string
}

const (
	addPeerKeepalive = 25 * time.Second
	graceDisconnect  = 1000 * time.Millisecond
	graceBufferFlush = 200 * time.Millisecond
)

// Session runs one WebSocket connection's state machine from admission
// through teardown.
type Session struct {
	deps   Deps
	conn   Conn
	sink   *connSink
	record *roster.Record
	key    string // canonicalized public key, once validated
}

// NewSession constructs a session for a freshly upgraded connection. The
// record starts invalid and ADMITTED happens only once SetPublicKey
// succeeds.
func NewSession(deps Deps, conn Conn, author, publicKey string) *Session {
	sink := newConnSink(conn)
	record := roster.New(author, sink)
	record.SetPublicKey(publicKey)

	return &Session{
		deps:   deps,
		conn:   conn,
		sink:   sink,
		record: record,
		key:    record.PublicKey,
	}
}

// Run drives the session to completion: VALIDATING, admission, the
// open/close/resume loop, and eventual teardown. It returns once the
// connection is gone.
func (s *Session) Run(ctx context.Context) error {
	if !s.record.IsValid() {
		s.reply(errorReply(errInvalidPublicKey))
		s.sink.Close()
		return fmt.Errorf("session %s: invalid public key", s.record.Author)
	}

	s.admit(ctx)

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			s.closeSession(ctx, metrics.CloseReasonError)
			return nil
		}

		var req Request
		if err := decodeRequest(frame, &req); err != nil {
			s.reply(errorReply(errUnknownQueryType))
			continue
		}

		switch req.QueryType {
		case QueryOpen:
			s.handleOpen(ctx)
		case QueryClose:
			s.closeSession(ctx, metrics.CloseReasonClient)
			return nil
		case QueryResume:
			// Idempotent no-op, preserved for protocol compatibility.
		default:
			s.reply(errorReply(errUnknownQueryType))
		}
	}
}

// closeSession serializes session-driven teardown against the node guard,
// the same way handleOpen and the meter loop's processRow do, so a
// client-initiated close can never race the meter loop's quota-driven
// close for the same record.
func (s *Session) closeSession(ctx context.Context, reason string) {
	s.deps.Guard.Lock()
	defer s.deps.Guard.Unlock()
	CloseSession(ctx, s.deps, s.key, s.record, reason)
}

// admit runs the admission protocol: PUBLIC_KEY_OK, insert-or-replace into
// the table, carry forward billing-period usage, and resolve the tier.
func (s *Session) admit(ctx context.Context) {
	s.reply(Reply{Message: "PUBLIC_KEY_OK", Type: ReplyTypeSuccess})

	if existing := s.deps.Table.Get(s.key); existing != nil {
		existing.MergeFrom(s.record)
		s.record = existing
	}
	s.deps.Table.Insert(s.record)

	var carriedUp, carriedDown int64
	tier := roster.TierUnassigned
	if s.deps.Store != nil {
		carriedUp, carriedDown = s.deps.Store.LookupBillingPeriodUsage(ctx, s.record.Author)
		tier = s.deps.Store.LookupTier(ctx, s.record.Author)
	}
	s.record.SetTier(roster.TierState{Kind: tier, CarriedUp: carriedUp, CarriedDown: carriedDown})
}

// handleOpen runs the probe/reserve/program sequence under the node
// guard. Any failure rolls the slot back and leaves the session ADMITTED.
func (s *Session) handleOpen(ctx context.Context) {
	s.deps.Guard.Lock()
	defer s.deps.Guard.Unlock()

	probe := s.deps.Registry.FindOpen()
	if probe.Kind == registry.Prospective {
		s.reply(errorReply("no available slot"))
		return
	}

	reservation := s.deps.Registry.Reserve(probe.Host)
	if reservation.Kind != registry.Held {
		s.reply(errorReply("slot reservation failed"))
		return
	}

	host := reservation.Host
	if err := s.deps.Tunnel.AddPeer(ctx, s.record.PublicKey, host.String(), addPeerKeepalive); err != nil {
		s.deps.Registry.Free(host)
		s.reply(errorReply("failed to program tunnel"))
		return
	}

	s.record.Connection = roster.Connected(host)
	metrics.SessionsOpenedTotal.Inc()
	s.reply(Reply{
		Message: OpenSuccess{
			ServerPublicKey: s.deps.ServerPublicKey,
			Endpoint:        fmt.Sprintf("%s:%d", s.deps.PublicIP, s.deps.ListenPort),
			Subdomain:       host.Subdomain(),
		},
		Type: ReplyTypeMessage,
	})
}

func (s *Session) reply(r Reply) {
	frame, err := marshalReply(r)
	if err != nil {
		return
	}
	_ = s.sink.Send(frame)
}

// CloseSession runs the CLOSING steps of the session state machine
// against a record that may not have a live Session wrapper — the meter
// loop calls this directly once it decides a client must be dropped.
// reason labels the teardown in the sessions-closed counter.
func CloseSession(ctx context.Context, deps Deps, key string, record *roster.Record, reason string) {
	if record.Connection.Connected {
		host := record.Connection.Host
		if deps.Store != nil {
			if err := deps.Store.RecordSession(ctx, record.Author, deps.ServerName,
				record.Usage.Up, record.Usage.Down, host.ConnTime, time.Now().UTC()); err != nil {
				log.Printf("coordinator: record session for %s: %v", record.Author, err)
			}
		}
		_ = deps.Tunnel.RemovePeer(ctx, record.PublicKey)
		deps.Registry.Free(host)
	}

	record.Connection = roster.Disconnected
	deps.Table.Remove(key)
	if record.Sender != nil {
		record.Sender.Close()
	}

	metrics.SessionsClosedTotal.WithLabelValues(reason).Inc()
}
