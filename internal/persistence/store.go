// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

// Package persistence is the Persistence Gateway: the pgx-backed account
// and usage store, plus a best-effort push to the external billing
// service once a session's usage record has committed locally.
package persistence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reseda-net/reseda-server/internal/roster"
)

// Store provides database access for account tiers and usage records.
type Store struct {
	pool    *pgxpool.Pool
	billing BillingClient
}

// Connect opens a connection pool against databaseURL, capped at 25
// connections with at least 5 kept open, and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string, billing BillingClient) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool, billing: billing}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Pool exposes the underlying pool for migrations and diagnostics.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// LookupTier returns the billing tier on record for author. A missing row
// is not an error — it is the Unassigned tier, which is exactly the
// signal the admission path needs to treat the client as unvetted.
func (s *Store) LookupTier(ctx context.Context, author string) roster.Tier {
	var raw string
	err := s.pool.QueryRow(ctx, `SELECT tier FROM account WHERE user_id = $1`, author).Scan(&raw)
	if err != nil {
		return roster.TierUnassigned
	}
	return roster.ParseTier(raw)
}

// LookupBillingPeriodUsage sums an author's usage rows for the current
// calendar month. The Usage table is consumed, not owned — up/down are
// stored as text — so rows are summed in Go rather than in SQL, and a
// row whose up or down fails to parse degrades to zero for that row
// rather than failing the whole lookup. A query failure degrades to
// (0, 0) rather than blocking admission — a billing-store hiccup should
// not itself deny service; the meter loop will still enforce the tier's
// cap going forward.
func (s *Store) LookupBillingPeriodUsage(ctx context.Context, author string) (up, down int64) {
	rows, err := s.pool.Query(ctx, `
		SELECT up, down
		FROM usage
		WHERE user_id = $1 AND conn_start >= date_trunc('month', now())
	`, author)
	if err != nil {
		return 0, 0
	}
	defer rows.Close()

	for rows.Next() {
		var rawUp, rawDown string
		if err := rows.Scan(&rawUp, &rawDown); err != nil {
			continue
		}
		up += parseUsageOrZero(rawUp)
		down += parseUsageOrZero(rawDown)
	}
	return up, down
}

func parseUsageOrZero(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// RecordSession inserts one usage row for a finished session and then
// makes a best-effort push to the external billing endpoint. The insert
// is the source of truth; a failed billing push is logged by the caller
// and never rolls back the local record.
func (s *Store) RecordSession(ctx context.Context, author, serverName string, up, down int64, connStart, connEnd time.Time) error {
	sessionID := uuid.New()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO usage (id, user_id, server_id, up, down, conn_start, conn_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sessionID, author, serverName, strconv.FormatInt(up, 10), strconv.FormatInt(down, 10), connStart, connEnd)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}

	if s.billing != nil {
		if err := s.billing.ReportUsage(ctx, sessionID); err != nil {
			return fmt.Errorf("record committed, billing push failed: %w", err)
		}
	}
	return nil
}
