package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MetadataKind tags the producer of a transaction's metadata. The set is
// closed so consumers can switch exhaustively.
type MetadataKind string

const (
	// MetadataAccrual marks metadata written by the scheduled accrual pipeline.
	MetadataAccrual MetadataKind = "accrual"
	// MetadataManual marks metadata for an operator-submitted mint request.
	MetadataManual MetadataKind = "manual"
	// MetadataExternalError marks metadata recorded on external rejection.
	MetadataExternalError MetadataKind = "external_error"
)

// AccrualEvidence is the supporting data for a pipeline-created MINT.
type AccrualEvidence struct {
	WindowStart  time.Time       `json:"windowStart"`
	WindowEnd    time.Time       `json:"windowEnd"`
	CO2Reduced   decimal.Decimal `json:"co2Reduced"`
	EnergySaved  decimal.Decimal `json:"energySaved"`
	SamplesUsed  int             `json:"samplesUsed"`
	EvidenceHash string          `json:"evidenceHash"`
}

// ManualAdjustment records who requested an explicit mint and the data hash they supplied.
type ManualAdjustment struct {
	RequestedBy string `json:"requestedBy,omitempty"`
	DataHash    string `json:"dataHash"`
}

// ExternalFailure records the upstream confirmation source's rejection.
type ExternalFailure struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Metadata is a closed tagged variant: exactly the branch named by Kind is set.
type Metadata struct {
	Kind          MetadataKind      `json:"kind"`
	Accrual       *AccrualEvidence  `json:"accrual,omitempty"`
	Manual        *ManualAdjustment `json:"manual,omitempty"`
	ExternalError *ExternalFailure  `json:"externalError,omitempty"`
}

// NewAccrualMetadata returns metadata tagged with accrual evidence.
func NewAccrualMetadata(ev AccrualEvidence) Metadata {
	return Metadata{Kind: MetadataAccrual, Accrual: &ev}
}

// NewManualMetadata returns metadata tagged with a manual adjustment.
func NewManualMetadata(m ManualAdjustment) Metadata {
	return Metadata{Kind: MetadataManual, Manual: &m}
}

// Validate checks that exactly the branch matching Kind is populated.
func (m Metadata) Validate() error {
	switch m.Kind {
	case MetadataAccrual:
		if m.Accrual == nil || m.Manual != nil || m.ExternalError != nil {
			return errors.New("accrual metadata must set only the accrual branch")
		}
	case MetadataManual:
		if m.Manual == nil || m.Accrual != nil || m.ExternalError != nil {
			return errors.New("manual metadata must set only the manual branch")
		}
	case MetadataExternalError:
		if m.ExternalError == nil || m.Accrual != nil || m.Manual != nil {
			return errors.New("external_error metadata must set only the externalError branch")
		}
	case "":
		if m.Accrual != nil || m.Manual != nil || m.ExternalError != nil {
			return errors.New("metadata branch set without kind")
		}
	default:
		return errors.New("unknown metadata kind")
	}
	return nil
}
