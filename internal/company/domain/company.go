package domain

import (
	"errors"
	"time"
)

// Company is a credit-owning tenant identified by its marketplace wallet address.
type Company struct {
	ID            string
	Name          string
	WalletAddress string
	CreatedAt     time.Time
}

// Validate validates the company for persistence. Returns an error describing the first validation failure.
func (c *Company) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	if c.WalletAddress == "" {
		return errors.New("wallet address is required")
	}
	return nil
}

// Application is an API-key-bearing integration owned by a company; devices
// attribute telemetry to their owner through it.
type Application struct {
	ID           string
	CompanyID    string
	Name         string
	APIKeyDigest string
	CreatedAt    time.Time
}
