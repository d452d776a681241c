package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// RequestStatus is the lifecycle state of a rental request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// IsTerminal reports whether the status can no longer change.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// RentalRequest is a resident's request to lease spaces in a building.
type RentalRequest struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	BuildingID string `json:"building_id"`

	// SelectedSpaces is the serialized selection of floors/rooms, stored verbatim.
	SelectedSpaces json.RawMessage `json:"selected_spaces"`

	TotalPrice float64       `json:"total_price"`
	Status     RequestStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
}

// ValidateSelection checks that a space selection is a non-empty JSON array or
// object.
func ValidateSelection(raw json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Invalid("selected_spaces", "selection is required")
	}
	if !json.Valid(trimmed) {
		return Invalid("selected_spaces", "selection is not valid JSON")
	}
	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return Invalid("selected_spaces", "selection is malformed")
		}
		if len(items) == 0 {
			return Invalid("selected_spaces", "selection must contain at least one space")
		}
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return Invalid("selected_spaces", "selection is malformed")
		}
		if len(fields) == 0 {
			return Invalid("selected_spaces", "selection must contain at least one space")
		}
	default:
		return Invalid("selected_spaces", "selection must be a JSON array or object")
	}
	return nil
}
