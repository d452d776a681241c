package models

import (
	"fmt"
	"strings"
	"time"
)

// SignerStatus is the roster status of a signer.
type SignerStatus string

const (
	SignerStatusActive   SignerStatus = "active"
	SignerStatusInactive SignerStatus = "inactive"
)

// ParseSignerStatus validates a signer status value.
func ParseSignerStatus(value string) (SignerStatus, error) {
	switch status := SignerStatus(strings.ToLower(strings.TrimSpace(value))); status {
	case SignerStatusActive, SignerStatusInactive:
		return status, nil
	default:
		return "", fmt.Errorf("invalid signer status: %q", value)
	}
}

// Signer is a person authorized to approve rental requests for a region, or
// for every region when RegionID is nil.
type Signer struct {
	// ID is the unique identifier for the signer.
	ID string `json:"id"`

	Name     string `json:"name"`
	Position string `json:"position,omitempty"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`

	// RegionID scopes the signer. Nil means global.
	RegionID *string `json:"region_id,omitempty"`

	// SigningOrder is the signer's rank. Unique within a non-nil region scope.
	SigningOrder int `json:"signing_order"`

	Status SignerStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsGlobal reports whether the signer has no region scope.
func (s *Signer) IsGlobal() bool {
	return s.RegionID == nil
}

// IsActive reports whether the signer takes part in new chains.
func (s *Signer) IsActive() bool {
	return s.Status == SignerStatusActive
}

// Scope returns a printable scope label.
func (s *Signer) Scope() string {
	if s.RegionID == nil {
		return "global"
	}
	return *s.RegionID
}

// Validate checks required signer fields.
func (s *Signer) Validate() error {
	v := &ValidationErrors{}
	if strings.TrimSpace(s.Name) == "" {
		v.AddMessage("name", "signer name is required")
	}
	if err := ValidateEmail(s.Email); err != nil {
		v.Add("email", err)
	}
	if s.SigningOrder < 0 {
		v.AddMessage("signing_order", "signing order must not be negative")
	}
	switch s.Status {
	case SignerStatusActive, SignerStatusInactive:
	default:
		v.AddMessage("status", fmt.Sprintf("invalid signer status %q", s.Status))
	}
	if s.RegionID != nil && strings.TrimSpace(*s.RegionID) == "" {
		v.AddMessage("region_id", "region id must not be blank")
	}
	return v.Err()
}

// SignerUpdate is an explicit partial update for a signer.
type SignerUpdate struct {
	Name         Optional[string]
	Position     Optional[string]
	Email        Optional[string]
	Phone        Optional[string]
	RegionID     Optional[*string]
	SigningOrder Optional[int]
	Status       Optional[SignerStatus]
}

// Empty reports whether no field is set.
func (u SignerUpdate) Empty() bool {
	return !u.Name.Set && !u.Position.Set && !u.Email.Set && !u.Phone.Set &&
		!u.RegionID.Set && !u.SigningOrder.Set && !u.Status.Set
}

// Apply copies the set fields onto s.
func (u SignerUpdate) Apply(s *Signer) {
	if v, ok := u.Name.Get(); ok {
		s.Name = v
	}
	if v, ok := u.Position.Get(); ok {
		s.Position = v
	}
	if v, ok := u.Email.Get(); ok {
		s.Email = NormalizeEmail(v)
	}
	if v, ok := u.Phone.Get(); ok {
		s.Phone = v
	}
	if v, ok := u.RegionID.Get(); ok {
		s.RegionID = v
	}
	if v, ok := u.SigningOrder.Get(); ok {
		s.SigningOrder = v
	}
	if v, ok := u.Status.Get(); ok {
		s.Status = v
	}
}

// SignerFilter narrows signer listings.
type SignerFilter struct {
	RegionID *string
	Position string
}
