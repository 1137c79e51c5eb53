package domain

import "time"

// Type classifies a device by its carbon role.
type Type string

const (
	// TypeSequester marks devices that generate credits (capture / reduction).
	TypeSequester Type = "SEQUESTER"
	// TypeEmitter marks devices that consume or offset credits.
	TypeEmitter Type = "EMITTER"
)

// Device is a registered sensor for a company. Identity is immutable;
// only the activity flag and last-seen timestamp change over its lifetime.
type Device struct {
	ID         string
	CompanyID  string
	Type       Type
	Active     bool
	LastSeenAt *time.Time
	CreatedAt  time.Time
}

// GeneratesCredits reports whether the device is eligible for credit accrual.
func (d *Device) GeneratesCredits() bool {
	return d.Type == TypeSequester
}
