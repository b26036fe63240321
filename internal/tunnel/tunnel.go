// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

// Package tunnel implements the Tunnel Programmer: an exec-based wrapper
// around the wg and ip command-line tools. Nothing here talks to the
// kernel WireGuard API directly — every call shells out, matching how the
// node's operator tooling already manages the interface.
package tunnel

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const execTimeout = 5 * time.Second

// Transfer is one row of "wg show <iface> transfer": the cumulative
// receive/send byte counters for a single peer.
type Transfer struct {
	PublicKey string
	Received  int64
	Sent      int64
}

// Programmer drives the node's WireGuard interface. The zero value is not
// usable; build one with New.
type Programmer struct {
	iface      string
	address    string
	privateKey string
	listenPort int
}

// New builds a Programmer for iface (e.g. "reseda") bound to address
// (e.g. "10.8.0.1/16") on listenPort, authenticating with privateKey.
func New(iface, address, privateKey string, listenPort int) *Programmer {
	return &Programmer{
		iface:      iface,
		address:    address,
		privateKey: privateKey,
		listenPort: listenPort,
	}
}

// BringUp creates the interface if absent, assigns its address, loads the
// private key and listen port, and brings it up. Link creation is skipped
// when the interface already exists, and the wg set and link-up steps are
// idempotent; ip address add fails if the address is already assigned,
// and that failure is returned.
func (p *Programmer) BringUp(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()
	if err := exec.CommandContext(checkCtx, "ip", "link", "show", p.iface).Run(); err != nil {
		createCtx, cancel := context.WithTimeout(ctx, execTimeout)
		defer cancel()
		cmd := exec.CommandContext(createCtx, "ip", "link", "add", "dev", p.iface, "type", "wireguard")
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("ip link add: %w", err)
		}
	}

	addrCtx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()
	if err := exec.CommandContext(addrCtx, "ip", "address", "add", p.address, "dev", p.iface).Run(); err != nil {
		return fmt.Errorf("ip address add: %w", err)
	}

	wgCtx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()
	wgCmd := exec.CommandContext(wgCtx, "wg", "set", p.iface,
		"listen-port", strconv.Itoa(p.listenPort),
		"private-key", "/dev/stdin")
	wgCmd.Stdin = strings.NewReader(p.privateKey)
	if err := wgCmd.Run(); err != nil {
		return fmt.Errorf("wg set: %w", err)
	}

	upCtx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()
	if err := exec.CommandContext(upCtx, "ip", "link", "set", "up", "dev", p.iface).Run(); err != nil {
		return fmt.Errorf("ip link set up: %w", err)
	}

	return nil
}

// BringDown removes the interface. Any ip link del failure is returned,
// including the one raised when the interface does not exist.
func (p *Programmer) BringDown(ctx context.Context) error {
	downCtx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()
	if err := exec.CommandContext(downCtx, "ip", "link", "del", "dev", p.iface).Run(); err != nil {
		return fmt.Errorf("ip link del: %w", err)
	}
	return nil
}

// AddPeer configures a peer keyed by publicKey, routed at allowedIP/32,
// with a persistent keepalive so NAT bindings stay warm.
func (p *Programmer) AddPeer(ctx context.Context, publicKey, allowedIP string, keepalive time.Duration) error {
	if err := validatePublicKey(publicKey); err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}
	if strings.TrimSpace(allowedIP) == "" {
		return fmt.Errorf("empty allowed IP")
	}

	cctx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, "wg", "set", p.iface,
		"peer", publicKey,
		"allowed-ips", allowedIP+"/32",
		"persistent-keepalive", strconv.Itoa(int(keepalive.Seconds())))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("wg set peer: %w", err)
	}
	return nil
}

// RemovePeer drops a peer's configuration. Removing an already-absent
// peer is not treated as an error by wg itself.
func (p *Programmer) RemovePeer(ctx context.Context, publicKey string) error {
	if err := validatePublicKey(publicKey); err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, "wg", "set", p.iface, "peer", publicKey, "remove")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("wg set peer remove: %w", err)
	}
	return nil
}

// ReadTransfers parses "wg show <iface> transfer", returning one Transfer
// per peer line. Empty output (no peers yet) yields an empty, non-nil
// slice rather than an error.
func (p *Programmer) ReadTransfers(ctx context.Context) ([]Transfer, error) {
	cctx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(cctx, "wg", "show", p.iface, "transfer")
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("wg show transfer: %w", err)
	}

	return parseTransferDump(out.String()), nil
}

// parseTransferDump parses the tab-separated "wg show <iface> transfer"
// output: one "public-key\treceived\tsent" line per peer. Lines that fail
// to parse are skipped rather than failing the whole read — a single
// malformed row should not block metering every other peer.
func parseTransferDump(output string) []Transfer {
	transfers := []Transfer{}
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		received, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		sent, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			continue
		}
		transfers = append(transfers, Transfer{
			PublicKey: fields[0],
			Received:  received,
			Sent:      sent,
		})
	}
	return transfers
}

// validatePublicKey checks the shape wg itself expects: base64 decoding
// to exactly 32 bytes.
func validatePublicKey(key string) error {
	decoded, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return fmt.Errorf("not valid base64: %w", err)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("invalid key length: expected 32 bytes, got %d", len(decoded))
	}
	return nil
}
