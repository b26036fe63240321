// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

// Package metrics registers the node's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions is the current size of the Client Table.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reseda_active_sessions",
		Help: "Number of clients currently admitted to this node.",
	})

	// SessionsOpenedTotal counts every successful open.
	SessionsOpenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reseda_sessions_opened_total",
		Help: "Total number of sessions that successfully opened a tunnel.",
	})

	// SessionsClosedTotal counts every CLOSING transition, labeled by
	// reason: "client", "quota", or "error".
	SessionsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reseda_sessions_closed_total",
		Help: "Total number of sessions torn down, labeled by reason.",
	}, []string{"reason"})

	// MeterTickDuration tracks how long one meter-loop tick takes to
	// process every admitted peer's transfer row.
	MeterTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "reseda_meter_tick_seconds",
		Help: "Duration of one meter loop tick.",
	})

	// SlotsOccupied is the current number of reserved registry slots.
	SlotsOccupied = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reseda_slots_occupied",
		Help: "Number of occupied address-grid slots on this node.",
	})
)

const (
	CloseReasonClient = "client"
	CloseReasonQuota  = "quota"
	CloseReasonError  = "error"
)
