// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

package mesh

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterReturnsIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/register/203.0.113.5", r.URL.Path)

		var req registerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "secret-key", req.Auth)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Identity{
			ID:         "node-1",
			Region:     "us-east",
			AssignedIP: "203.0.113.5",
		})
	}))
	defer srv.Close()

	client := New(srv.URL)
	identity, err := client.Register(context.Background(), "203.0.113.5", "secret-key")
	require.NoError(t, err)
	assert.Equal(t, "node-1", identity.ID)
	assert.Equal(t, "us-east", identity.Region)
}

func TestRegisterReturnsErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := New(srv.URL)
	_, err := client.Register(context.Background(), "203.0.113.5", "bad-key")
	assert.Error(t, err)
}

func TestDiscoverPublicIPTrimsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("203.0.113.5\n"))
	}))
	defer srv.Close()

	ip, err := DiscoverPublicIP(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.5", ip)
}
