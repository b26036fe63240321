// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

// Package node implements the Node Controller: process-wide bootstrap and
// the HTTP/WebSocket server bound to the node's single WireGuard
// interface.
package node

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reseda-net/reseda-server/internal/meter"
	"github.com/reseda-net/reseda-server/internal/mesh"
	"github.com/reseda-net/reseda-server/internal/nodeconfig"
	"github.com/reseda-net/reseda-server/internal/persistence"
	"github.com/reseda-net/reseda-server/internal/registry"
	"github.com/reseda-net/reseda-server/internal/roster"
	"github.com/reseda-net/reseda-server/internal/tunnel"
	"github.com/reseda-net/reseda-server/internal/wgkey"
)

const (
	interfaceName  = "reseda"
	slotAMax       = 12
	httpListenAddr = ":443"
	certFile       = "cert.pem"
	keyFile        = "key.pem"

	// serverAddress is this node's own internal tunnel address — the
	// permanently-held (2, 1) slot — with the /24 mask the WireGuard
	// config file and the interface itself are both programmed with.
	serverAddress = "10.8.2.1/24"
)

// State is the single NodeState object the spec calls out: the Slot
// Registry, Client Table, Tunnel Programmer, Persistence Gateway, and
// Node Identity. Sessions and the meter loop take the node guard around
// their state changes; the health handler reads the table and identity
// without it.
type State struct {
	guard sync.Mutex

	Registry *registry.Registry
	Table    *roster.Table
	Tunnel   *tunnel.Programmer
	Store    *persistence.Store
	Identity *mesh.Identity

	config     *nodeconfig.Config
	router     *chi.Mux
	server     *http.Server
	listenPort int
}

// Lock and Unlock make *State satisfy sync.Locker, so it can be threaded
// through coordinator.Deps and meter.Loop as the shared node guard.
func (s *State) Lock()   { s.guard.Lock() }
func (s *State) Unlock() { s.guard.Unlock() }

// Bootstrap runs the strict bootstrap sequence described in the node's
// startup contract: load config, discover identity, stand up local
// state, register with the mesh, program the interface, reserve the
// server's own slot, and start the meter loop. Any unrecoverable failure
// panics — a node that cannot establish its own identity must not
// half-start.
func Bootstrap(ctx context.Context, region string) *State {
	cfg := nodeconfig.Load(region)

	publicIP, err := mesh.DiscoverPublicIP(ctx, "https://api.ipify.org")
	if err != nil {
		panic(fmt.Sprintf("node: discover public ip: %v", err))
	}

	keys, err := wgkey.Generate()
	if err != nil {
		panic(fmt.Sprintf("node: generate wireguard keypair: %v", err))
	}

	reg := registry.New(2, slotAMax, 1, 255)
	table := roster.NewTable()

	if err := persistence.RunMigrations(cfg.DatabaseAuth); err != nil {
		panic(fmt.Sprintf("node: run migrations: %v", err))
	}

	billing := persistence.NewHTTPBillingClient()
	store, err := persistence.Connect(ctx, cfg.DatabaseAuth, billing)
	if err != nil {
		panic(fmt.Sprintf("node: connect persistence gateway: %v", err))
	}

	meshClient := mesh.New("https://mesh.reseda.app")
	identity, err := meshClient.Register(ctx, publicIP, cfg.AccessKey)
	if err != nil {
		panic(fmt.Sprintf("node: register with mesh: %v", err))
	}
	if identity.TLSCert != "" {
		persistTLSMaterial(identity)
	}

	listenPort := 51820
	if err := writeWGConfig(serverAddress, keys.PrivateKey, listenPort, "1.1.1.1"); err != nil {
		panic(fmt.Sprintf("node: write wireguard config: %v", err))
	}

	programmer := tunnel.New(interfaceName, serverAddress, keys.PrivateKey, listenPort)
	// Bring the interface down first: a stale interface left over from a
	// prior run must not linger with the old keypair or address.
	_ = programmer.BringDown(ctx)
	if err := programmer.BringUp(ctx); err != nil {
		panic(fmt.Sprintf("node: bring up tunnel interface: %v", err))
	}

	serverHost := registry.Host{A: 2, B: 1, ConnTime: time.Now().UTC()}
	if res := reg.Reserve(serverHost); res.Kind != registry.Held {
		panic("node: failed to reserve server's own slot (2,1)")
	}

	identity.PublicKey = keys.PublicKey
	identity.PrivateKey = keys.PrivateKey
	identity.AssignedIP = publicIP

	state := &State{
		Registry: reg,
		Table:    table,
		Tunnel:   programmer,
		Store:    store,
		Identity: identity,
		config:   cfg,
	}
	state.listenPort = listenPort

	state.setupRouter()
	meterLoop := meter.New(programmer, table, state.sessionDeps())
	go meterLoop.Run(ctx)

	return state
}

func persistTLSMaterial(identity *mesh.Identity) {
	if err := writeFileIfNonEmpty(certFile, identity.TLSCert); err != nil {
		panic(fmt.Sprintf("node: write tls certificate: %v", err))
	}
	if err := writeFileIfNonEmpty(keyFile, identity.TLSKey); err != nil {
		panic(fmt.Sprintf("node: write tls key: %v", err))
	}
}
