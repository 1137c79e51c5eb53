package accrual

import "github.com/shopspring/decimal"

// Policy maps aggregated window telemetry to a credit amount. Implementations
// must be deterministic and monotone in both inputs so the same window always
// yields the same credits.
type Policy interface {
	// Credits returns the credit amount for the given totals. The result may be
	// negative; the engine clips to zero.
	Credits(co2Reduced, energySaved decimal.Decimal) decimal.Decimal
}

// WeightedSumPolicy computes credits as (CO2Weight*co2 + EnergyWeight*energy) / Scale.
// Monotone in both inputs for non-negative weights.
type WeightedSumPolicy struct {
	CO2Weight    decimal.Decimal
	EnergyWeight decimal.Decimal
	Scale        decimal.Decimal
}

// DefaultPolicy returns the standard accrual policy:
// credits = (0.5*co2Reduced + 0.5*energySaved) / 80.
// With co2Reduced=500 and energySaved=300 over a window this yields 5 credits.
func DefaultPolicy() WeightedSumPolicy {
	return WeightedSumPolicy{
		CO2Weight:    decimal.RequireFromString("0.5"),
		EnergyWeight: decimal.RequireFromString("0.5"),
		Scale:        decimal.NewFromInt(80),
	}
}

// Credits implements Policy.
func (p WeightedSumPolicy) Credits(co2Reduced, energySaved decimal.Decimal) decimal.Decimal {
	weighted := p.CO2Weight.Mul(co2Reduced).Add(p.EnergyWeight.Mul(energySaved))
	if p.Scale.IsZero() {
		return weighted
	}
	return weighted.Div(p.Scale)
}
