package rules

import (
	"math"

	"loyalcrm/config"
	"loyalcrm/internal/domain"
)

// Engine computes points and tiers from the configured program constants.
// It is pure: no storage access, no shared mutable state.
type Engine struct {
	accrualRate    float64
	redemptionRate float64
	tiers          []config.TierLevel
}

func NewEngine(cfg *config.LoyaltyConfig) *Engine {
	return &Engine{
		accrualRate:    cfg.AccrualRate,
		redemptionRate: cfg.RedemptionRate,
		tiers:          cfg.Tiers,
	}
}

// PointsForPurchase returns floor(amount * accrual rate). Amounts whose
// points would not fit in an int64 are rejected: converting an out-of-range
// float would wrap negative and corrupt the ledger.
func (e *Engine) PointsForPurchase(amount float64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	f := math.Floor(amount * e.accrualRate)
	if f >= math.MaxInt64 {
		return 0, domain.ErrInvalidAmount
	}
	return int64(f), nil
}

// ValueForPoints reports the monetary value of redeeming the given points.
// Reporting only; it mutates nothing.
func (e *Engine) ValueForPoints(points int64) float64 {
	return float64(points) * e.redemptionRate
}

// TierForLifetime returns the highest tier whose threshold is at or below
// the given lifetime points. Lifetime points only ever grow, so the tier an
// account is shown never regresses.
func (e *Engine) TierForLifetime(lifetime int64) string {
	if len(e.tiers) == 0 {
		return ""
	}
	tier := e.tiers[0].Name
	for _, t := range e.tiers {
		if lifetime >= t.Threshold {
			tier = t.Name
		}
	}
	return tier
}
