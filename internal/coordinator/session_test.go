// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reseda-net/reseda-server/internal/registry"
	"github.com/reseda-net/reseda-server/internal/roster"
)

// fakeConn is a single-reader, multi-writer in-memory substitute for a
// *websocket.Conn: inbound frames are queued up front, outbound frames
// are captured for assertions.
type fakeConn struct {
	mu      sync.Mutex
	inbound [][]byte
	sent    [][]byte
	closed  bool
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.inbound) == 0 {
		return 0, nil, errors.New("fakeConn: connection closed")
	}
	frame := c.inbound[0]
	c.inbound = c.inbound[1:]
	return 1, frame, nil
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	c.sent = append(c.sent, cp)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) replies() []Reply {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Reply, 0, len(c.sent))
	for _, frame := range c.sent {
		var r Reply
		if err := json.Unmarshal(frame, &r); err == nil {
			out = append(out, r)
		}
	}
	return out
}

type fakeTunnel struct {
	mu          sync.Mutex
	addErr      error
	removed     []string
	addCalls    int
	removeCalls int
}

func (f *fakeTunnel) AddPeer(_ context.Context, _, _ string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	return f.addErr
}

func (f *fakeTunnel) RemovePeer(_ context.Context, publicKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls++
	f.removed = append(f.removed, publicKey)
	return nil
}

func validKey() string {
	return "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
}

func newTestDeps(tunnel *fakeTunnel) (Deps, *registry.Registry, *roster.Table) {
	reg := registry.New(2, 4, 1, 3)
	table := roster.NewTable()
	return Deps{
		Guard:           &sync.Mutex{},
		Registry:        reg,
		Table:           table,
		Tunnel:          tunnel,
		Store:           nil,
		ServerName:      "node-1",
		ServerPublicKey: "serverpubkey",
		ListenPort:      51820,
		PublicIP:        "203.0.113.5",
	}, reg, table
}

func TestSessionRejectsInvalidPublicKey(t *testing.T) {
	conn := &fakeConn{}
	deps, _, _ := newTestDeps(&fakeTunnel{})

	s := NewSession(deps, conn, "author-1", "too-short")
	err := s.Run(context.Background())

	require.Error(t, err)
	replies := conn.replies()
	require.Len(t, replies, 1)
	assert.Equal(t, ReplyTypeError, replies[0].Type)
	assert.Equal(t, "Invalid public key, expected 44 characters.", replies[0].Message)
	assert.True(t, conn.closed)
}

func TestSessionOpenSucceedsAndAdmitsIntoTable(t *testing.T) {
	tun := &fakeTunnel{}
	deps, _, table := newTestDeps(tun)

	openFrame, err := json.Marshal(Request{QueryType: QueryOpen})
	require.NoError(t, err)
	closeFrame, err := json.Marshal(Request{QueryType: QueryClose})
	require.NoError(t, err)

	conn := &fakeConn{inbound: [][]byte{openFrame, closeFrame}}
	s := NewSession(deps, conn, "author-1", validKey())

	require.NoError(t, s.Run(context.Background()))

	replies := conn.replies()
	require.GreaterOrEqual(t, len(replies), 2)
	assert.Equal(t, ReplyTypeSuccess, replies[0].Type) // PUBLIC_KEY_OK

	var sawOpenSuccess bool
	for _, r := range replies {
		if r.Type == ReplyTypeMessage {
			sawOpenSuccess = true
		}
	}
	assert.True(t, sawOpenSuccess)

	assert.Equal(t, 1, tun.addCalls)
	assert.Equal(t, 1, tun.removeCalls)
	assert.Equal(t, 0, table.Len()) // removed on close
}

func TestSessionOpenRollsBackOnAddPeerFailure(t *testing.T) {
	tun := &fakeTunnel{addErr: errors.New("wg set failed")}
	deps, reg, _ := newTestDeps(tun)

	openFrame, _ := json.Marshal(Request{QueryType: QueryOpen})
	conn := &fakeConn{inbound: [][]byte{openFrame}}
	s := NewSession(deps, conn, "author-1", validKey())

	s.admit(context.Background())
	s.handleOpen(context.Background())

	replies := conn.replies()
	require.NotEmpty(t, replies)
	assert.Equal(t, ReplyTypeError, replies[len(replies)-1].Type)
	assert.False(t, s.record.Connection.Connected)

	probe := reg.FindOpen()
	assert.Equal(t, registry.Open, probe.Kind)
}

func TestSessionUnknownQueryTypeRepliesErrorAndContinues(t *testing.T) {
	tun := &fakeTunnel{}
	deps, _, _ := newTestDeps(tun)

	unknownFrame, _ := json.Marshal(Request{QueryType: "foo"})
	closeFrame, _ := json.Marshal(Request{QueryType: QueryClose})
	conn := &fakeConn{inbound: [][]byte{unknownFrame, closeFrame}}

	s := NewSession(deps, conn, "author-1", validKey())
	require.NoError(t, s.Run(context.Background()))

	replies := conn.replies()
	var sawUnknown bool
	for _, r := range replies {
		if r.Type == ReplyTypeError && r.Message == errUnknownQueryType {
			sawUnknown = true
		}
	}
	assert.True(t, sawUnknown)
}

func TestSessionResumeIsNoop(t *testing.T) {
	tun := &fakeTunnel{}
	deps, _, _ := newTestDeps(tun)

	resumeFrame, _ := json.Marshal(Request{QueryType: QueryResume})
	closeFrame, _ := json.Marshal(Request{QueryType: QueryClose})
	conn := &fakeConn{inbound: [][]byte{resumeFrame, closeFrame}}

	s := NewSession(deps, conn, "author-1", validKey())
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, 0, tun.addCalls)
}
