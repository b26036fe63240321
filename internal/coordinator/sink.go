// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

package coordinator

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn the coordinator needs. Defining it
// as an interface lets tests substitute a fake socket.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// connSink adapts a Conn into a roster.Sink, serializing writes — gorilla
// connections are not safe for concurrent writers, and both the session's
// own reply path and the meter loop's update pushes write through it.
type connSink struct {
	mu        sync.Mutex
	conn      Conn
	closeOnce sync.Once
}

func newConnSink(conn Conn) *connSink {
	return &connSink{conn: conn}
}

func (s *connSink) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *connSink) Close() {
	s.closeOnce.Do(func() {
		s.conn.Close()
	})
}
