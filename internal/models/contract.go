package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ContractStatus is the administrative status of a contract.
type ContractStatus string

const (
	ContractStatusPending  ContractStatus = "pending"
	ContractStatusApproved ContractStatus = "approved"
	ContractStatusRejected ContractStatus = "rejected"
)

// ParseContractStatus validates a contract status value.
func ParseContractStatus(value string) (ContractStatus, error) {
	switch status := ContractStatus(strings.ToLower(strings.TrimSpace(value))); status {
	case ContractStatusPending, ContractStatusApproved, ContractStatusRejected:
		return status, nil
	default:
		return "", fmt.Errorf("invalid contract status: %q", value)
	}
}

// Contract is the binding outcome of a fully approved rental request.
type Contract struct {
	ID         string `json:"id"`
	RequestID  string `json:"request_id"`
	BuildingID string `json:"building_id"`
	UserID     string `json:"user_id"`

	// SelectedSpaces is copied from the request, never re-derived.
	SelectedSpaces json.RawMessage `json:"selected_spaces"`

	TotalPrice  float64        `json:"total_price"`
	ZeroRisk    bool           `json:"zero_risk"`
	ZeroRiskDoc string         `json:"zero_risk_doc,omitempty"`
	Status      ContractStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ContractUpdate is an administrative partial update.
type ContractUpdate struct {
	Status      Optional[ContractStatus]
	ZeroRisk    Optional[bool]
	ZeroRiskDoc Optional[string]
}

// Apply copies the set fields onto c.
func (u ContractUpdate) Apply(c *Contract) {
	if v, ok := u.Status.Get(); ok {
		c.Status = v
	}
	if v, ok := u.ZeroRisk.Get(); ok {
		c.ZeroRisk = v
	}
	if v, ok := u.ZeroRiskDoc.Get(); ok {
		c.ZeroRiskDoc = v
	}
}
