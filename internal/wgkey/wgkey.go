// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

// Package wgkey generates and validates WireGuard Curve25519 key pairs for
// the node's own identity — distinct from client public keys, which
// arrive over the wire and are only ever canonicalized, never generated.
package wgkey

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// Pair is a WireGuard private/public key pair, both base64-encoded.
type Pair struct {
	PrivateKey string
	PublicKey  string
}

// Generate produces a fresh key pair. The private key is clamped per the
// WireGuard/Curve25519 convention before the public key is derived.
func Generate() (*Pair, error) {
	private := make([]byte, 32)
	if _, err := rand.Read(private); err != nil {
		return nil, fmt.Errorf("generate random bytes: %w", err)
	}

	private[0] &= 248
	private[31] &= 127
	private[31] |= 64

	public, err := curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}

	return &Pair{
		PrivateKey: base64.StdEncoding.EncodeToString(private),
		PublicKey:  base64.StdEncoding.EncodeToString(public),
	}, nil
}

// DerivePublic recovers the public key for a base64-encoded private key.
func DerivePublic(privateKey string) (string, error) {
	private, err := base64.StdEncoding.DecodeString(privateKey)
	if err != nil {
		return "", fmt.Errorf("decode private key: %w", err)
	}
	if len(private) != 32 {
		return "", fmt.Errorf("invalid private key length: expected 32 bytes, got %d", len(private))
	}

	public, err := curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return "", fmt.Errorf("derive public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(public), nil
}
