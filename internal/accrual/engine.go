// Package accrual converts windows of device telemetry into earned credits.
// ComputeCredits is pure with respect to its inputs: the same device and
// window always produce the same result.
package accrual

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"carbon-ledger/backend/internal/apperror"
	tsdomain "carbon-ledger/backend/internal/timeseries/domain"
)

// ReasonInsufficientData marks a window with zero samples. Callers must treat
// it as "not enough evidence yet", distinct from a computed zero.
const ReasonInsufficientData = "insufficient data"

// creditPlaces is the scale credits are rounded to.
const creditPlaces = 4

// WindowQuerier is the minimal time-series read contract needed by the engine.
type WindowQuerier interface {
	QueryWindow(ctx context.Context, deviceID string, start, end time.Time) ([]*tsdomain.Point, error)
}

// Result holds the outcome of a window computation. When Reason is non-empty
// no credits were computable and Credits is zero.
type Result struct {
	Credits     decimal.Decimal
	CO2Reduced  decimal.Decimal
	EnergySaved decimal.Decimal
	SamplesUsed int
	Reason      string
}

// HasCredits reports whether the window earned a positive credit amount.
func (r *Result) HasCredits() bool {
	return r.Reason == "" && r.Credits.IsPositive()
}

// Engine computes credits from telemetry windows using a pluggable policy.
type Engine struct {
	querier WindowQuerier
	policy  Policy
}

// NewEngine returns an accrual engine reading from querier and pricing windows with policy.
func NewEngine(querier WindowQuerier, policy Policy) *Engine {
	return &Engine{querier: querier, policy: policy}
}

// ComputeCredits reads telemetry for deviceID over [start, end) and returns
// the earned credits with supporting totals, or a Result carrying
// ReasonInsufficientData when the window has no samples.
//
// Returns a ValidationError for an inverted or empty window; time-series
// failures propagate as UpstreamError and must not be read as "zero data".
func (e *Engine) ComputeCredits(ctx context.Context, deviceID string, start, end time.Time) (*Result, error) {
	if deviceID == "" {
		return nil, apperror.Validation("deviceId", "must not be empty")
	}
	if !start.Before(end) {
		return nil, apperror.Validation("window", "start must be before end")
	}

	points, err := e.querier.QueryWindow(ctx, deviceID, start, end)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return &Result{Reason: ReasonInsufficientData}, nil
	}

	co2 := decimal.Zero
	energy := decimal.Zero
	for _, p := range points {
		co2 = co2.Add(p.CO2Reduced)
		energy = energy.Add(p.EnergySaved)
	}

	credits := e.policy.Credits(co2, energy)
	if credits.IsNegative() {
		credits = decimal.Zero
	}

	return &Result{
		Credits:     credits.Round(creditPlaces),
		CO2Reduced:  co2,
		EnergySaved: energy,
		SamplesUsed: len(points),
	}, nil
}
