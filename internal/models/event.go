package models

import (
	"encoding/json"
	"time"
)

// EventType categorizes events in the system.
type EventType string

const (
	// Request events
	EventTypeRequestSubmitted EventType = "request.submitted"
	EventTypeRequestApproved  EventType = "request.approved"
	EventTypeRequestRejected  EventType = "request.rejected"

	// Approval events
	EventTypeApprovalApproved  EventType = "approval.approved"
	EventTypeApprovalDeclined  EventType = "approval.declined"
	EventTypeApprovalCancelled EventType = "approval.cancelled"

	// Contract events
	EventTypeContractCreated EventType = "contract.created"
	EventTypeContractUpdated EventType = "contract.updated"

	// Signer events
	EventTypeSignerCreated EventType = "signer.created"
	EventTypeSignerUpdated EventType = "signer.updated"
	EventTypeSignerDeleted EventType = "signer.deleted"
)

// EntityType identifies the type of entity an event relates to.
type EntityType string

const (
	EntityTypeRequest  EntityType = "rental_request"
	EntityTypeApproval EntityType = "request_approval"
	EntityTypeContract EntityType = "contract"
	EntityTypeSigner   EntityType = "signer"
)

// Event represents an append-only audit log entry.
type Event struct {
	// ID is the unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// EntityType identifies what kind of entity this event relates to.
	EntityType EntityType `json:"entity_type"`

	// EntityID is the ID of the related entity.
	EntityID string `json:"entity_id"`

	// ActorID is the user that caused the event, if any.
	ActorID string `json:"actor_id,omitempty"`

	// Payload contains event-specific data.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ApprovalResolvedPayload is the payload for approval.* events.
type ApprovalResolvedPayload struct {
	RequestID string         `json:"request_id"`
	SignerID  string         `json:"signer_id"`
	Status    ApprovalStatus `json:"status"`
	Reason    string         `json:"reason,omitempty"`
}

// RequestSubmittedPayload is the payload for request.submitted events.
type RequestSubmittedPayload struct {
	BuildingID string   `json:"building_id"`
	RegionID   string   `json:"region_id"`
	TotalPrice float64  `json:"total_price"`
	Chain      []string `json:"chain"`
}

// ContractCreatedPayload is the payload for contract.created events.
type ContractCreatedPayload struct {
	RequestID  string  `json:"request_id"`
	TotalPrice float64 `json:"total_price"`
}

// NewEvent builds an event with a JSON payload. A payload that fails to
// marshal is dropped.
func NewEvent(eventType EventType, entityType EntityType, entityID, actorID string, payload any) *Event {
	event := &Event{
		Type:       eventType,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
	}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			event.Payload = data
		}
	}
	return event
}
