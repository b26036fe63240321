// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const billingUsageRecordURL = "https://reseda.app/api/billing/usage-reccord"

// BillingClient reports a committed usage record to the external billing
// service. It is an interface so tests can substitute a stub rather than
// reaching the network.
type BillingClient interface {
	ReportUsage(ctx context.Context, sessionID uuid.UUID) error
}

// HTTPBillingClient posts to the billing service's usage-record endpoint
// over plain net/http — there is no generated client for this one
// internal endpoint, so a small hand-rolled call is the idiomatic choice
// here rather than pulling in an SDK for a single POST.
type HTTPBillingClient struct {
	client *http.Client
}

// NewHTTPBillingClient builds a client with a bounded request timeout so a
// slow or unreachable billing service can never stall session teardown.
func NewHTTPBillingClient() *HTTPBillingClient {
	return &HTTPBillingClient{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type usageRecordRequest struct {
	SessionID uuid.UUID `json:"sessionId"`
}

// ReportUsage posts the session ID to the billing endpoint. A non-2xx
// response or transport error is returned to the caller, which treats it
// as best-effort: the local usage row has already committed regardless.
func (c *HTTPBillingClient) ReportUsage(ctx context.Context, sessionID uuid.UUID) error {
	body, err := json.Marshal(usageRecordRequest{SessionID: sessionID})
	if err != nil {
		return fmt.Errorf("marshal usage record request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, billingUsageRecordURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build billing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("billing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("billing service responded %d", resp.StatusCode)
	}
	return nil
}
