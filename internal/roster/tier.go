// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

package roster

// Tier is the billing plan governing a client's quota. Basic and Pro share
// unlimited semantics and are collapsed onto one cap code path; they stay
// distinct values for logging and billing-record purposes.
type Tier int

const (
	TierUnassigned Tier = iota
	TierFree
	TierBasic
	TierPro
	TierSupporter
)

func (t Tier) String() string {
	switch t {
	case TierFree:
		return "free"
	case TierBasic:
		return "basic"
	case TierPro:
		return "pro"
	case TierSupporter:
		return "supporter"
	default:
		return "unassigned"
	}
}

// ParseTier maps a literal tier string, as stored in the Account table, to
// a Tier. Unknown values yield TierUnassigned.
func ParseTier(s string) Tier {
	switch s {
	case "free":
		return TierFree
	case "basic":
		return TierBasic
	case "pro":
		return TierPro
	case "supporter":
		return TierSupporter
	default:
		return TierUnassigned
	}
}

const (
	freeCapBytes       int64 = 5_000_000_000
	supporterCapBytes  int64 = 50_000_000_000
	unassignedCapBytes int64 = 5_000_000
	unlimitedCap       int64 = -1
)

// EffectiveCap returns the bytes remaining this billing cycle given the
// tier's carried historical "down" total. Basic and Pro are unlimited
// (sentinel -1). Carried totals are signed so the -1 sentinel never needs
// special-casing at the storage layer.
func EffectiveCap(tier Tier, carriedDown int64) int64 {
	switch tier {
	case TierFree:
		return freeCapBytes - carriedDown
	case TierSupporter:
		return supporterCapBytes - carriedDown
	case TierBasic, TierPro:
		return unlimitedCap
	default: // TierUnassigned
		return unassignedCapBytes
	}
}

// TierState pairs a Tier with the cumulative (up, down) totals carried
// over from the current billing period, as looked up from the
// Persistence Gateway at admission time.
type TierState struct {
	Kind        Tier
	CarriedUp   int64
	CarriedDown int64
}
