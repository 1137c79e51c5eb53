// Package ingest handles sensor telemetry intake: attributing samples to
// companies through API keys and appending them to the time-series store.
// Intake runs either inline on the HTTP path or through Kafka via the worker.
package ingest

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Sample is one sensor reading as submitted by a device.
type Sample struct {
	DeviceID    string          `json:"deviceId"`
	CO2Reduced  decimal.Decimal `json:"co2Reduced"`
	EnergySaved decimal.Decimal `json:"energySaved"`
	RecordedAt  time.Time       `json:"recordedAt"`
}

// Validate validates the sample for intake. Returns an error describing the first validation failure.
func (s *Sample) Validate() error {
	if s.DeviceID == "" {
		return errors.New("device id is required")
	}
	if s.CO2Reduced.IsNegative() {
		return errors.New("co2Reduced must be non-negative")
	}
	if s.EnergySaved.IsNegative() {
		return errors.New("energySaved must be non-negative")
	}
	return nil
}

// Message is the Kafka envelope for a sample: the raw API key rides with it
// so the consumer side performs attribution.
type Message struct {
	APIKey string `json:"apiKey"`
	Sample Sample `json:"sample"`
}
