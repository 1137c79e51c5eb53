package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Point is a single tagged sensor measurement. CO2Reduced and EnergySaved are
// the numeric fields; device, type, and company are the tags.
type Point struct {
	DeviceID    string
	DeviceType  string
	CompanyID   string
	CO2Reduced  decimal.Decimal
	EnergySaved decimal.Decimal
	RecordedAt  time.Time
}

// Validate validates the point for persistence. Returns an error describing the first validation failure.
func (p *Point) Validate() error {
	if p.DeviceID == "" {
		return errors.New("device id is required")
	}
	if p.CompanyID == "" {
		return errors.New("company id is required")
	}
	if p.RecordedAt.IsZero() {
		return errors.New("recorded_at is required")
	}
	return nil
}
