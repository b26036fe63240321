// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

package node

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reseda-net/reseda-server/internal/coordinator"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // CORS: all origins permitted
}

// sessionDeps builds the coordinator.Deps shared by every session and by
// the meter loop, so CLOSING runs identically from either caller.
func (s *State) sessionDeps() coordinator.Deps {
	serverPublicKey := ""
	if s.Identity != nil {
		serverPublicKey = s.Identity.PublicKey
	}
	publicIP := ""
	if s.Identity != nil {
		publicIP = s.Identity.AssignedIP
	}

	return coordinator.Deps{
		Guard:           s,
		Registry:        s.Registry,
		Table:           s.Table,
		Tunnel:          s.Tunnel,
		Store:           s.Store,
		ServerName:      interfaceName,
		ServerPublicKey: serverPublicKey,
		ListenPort:      s.listenPort,
		PublicIP:        publicIP,
	}
}

func (s *State) setupRouter() {
	s.router = chi.NewRouter()
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(corsMiddleware)

	s.router.Get("/", s.handleRoot)
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ws", s.handleWebSocket)
	s.router.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:    httpListenAddr,
		Handler: s.router,
	}
}

// corsMiddleware allows all origins, matching the node's public control
// surface — any client with a valid key may connect from anywhere.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *State) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type healthResponse struct {
	Status   string `json:"status"`
	Usage    int    `json:"usage"`
	IP       string `json:"ip"`
	Cert     string `json:"cert"`
	RecordID string `json:"record_id"`
}

func (s *State) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Usage: s.Table.Len()}
	if s.Identity != nil {
		resp.IP = s.Identity.AssignedIP
		resp.Cert = s.Identity.CertID
		resp.RecordID = s.Identity.RecordID
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

func (s *State) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	author := r.URL.Query().Get("author")
	publicKey := r.URL.Query().Get("public_key")

	if author == "" || publicKey == "" {
		log.Printf("node: rejecting websocket connect from %s: missing author or public_key", r.RemoteAddr)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	session := coordinator.NewSession(s.sessionDeps(), conn, author, publicKey)
	go func() {
		_ = session.Run(r.Context())
	}()
}

// Start serves the HTTPS surface until Shutdown is called or it fails.
func (s *State) Start() error {
	if err := s.server.ListenAndServeTLS(certFile, keyFile); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("node: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests and closes the
// Persistence Gateway's pool.
func (s *State) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	if s.Store != nil {
		s.Store.Close()
	}
	return err
}

func writeFileIfNonEmpty(path, contents string) error {
	if contents == "" {
		return nil
	}
	return os.WriteFile(path, []byte(contents), 0600)
}
