package models

import "time"

// ApprovalStatus represents the lifecycle state of an approval task.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusDeclined ApprovalStatus = "declined"
	// ApprovalStatusCancelled is only used when veto cancellation is enabled.
	ApprovalStatusCancelled ApprovalStatus = "cancelled"
)

// IsTerminal reports whether the task has been resolved.
func (s ApprovalStatus) IsTerminal() bool {
	return s != ApprovalStatusPending
}

// RequestApproval is one signer's decision on one rental request.
type RequestApproval struct {
	// ID is the unique identifier for the approval task.
	ID string `json:"id"`

	// RequestID references the rental request.
	RequestID string `json:"request_id"`

	// SignerID references the signer snapshotted into the chain.
	SignerID string `json:"signer_id"`

	// Status is the current approval status.
	Status ApprovalStatus `json:"status"`

	// ActionAt is when the signer acted.
	ActionAt *time.Time `json:"action_at,omitempty"`

	// Reason holds the decline reason or the optional approval comment.
	Reason string `json:"reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Outcome summarizes the effect of resolving an approval task on its request.
type Outcome string

const (
	OutcomeStillPending    Outcome = "still_pending"
	OutcomeRequestApproved Outcome = "request_approved"
	OutcomeRequestRejected Outcome = "request_rejected"
)
