package models

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"
)

// Role is a single authorization tag held by a user.
type Role string

const (
	RoleResident   Role = "resident"
	RoleSigner     Role = "signer"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// ParseRole normalizes and validates a role tag.
func ParseRole(value string) (Role, error) {
	switch role := Role(strings.ToLower(strings.TrimSpace(value))); role {
	case RoleResident, RoleSigner, RoleAdmin, RoleSuperAdmin:
		return role, nil
	default:
		return "", fmt.Errorf("invalid role: %q", value)
	}
}

// RoleSet is an unordered set of role tags.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, role := range roles {
		set[role] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s RoleSet) Has(role Role) bool {
	_, ok := s[role]
	return ok
}

// HasAny reports whether any of roles is held.
func (s RoleSet) HasAny(roles ...Role) bool {
	for _, role := range roles {
		if s.Has(role) {
			return true
		}
	}
	return false
}

// Add inserts role and reports whether the set changed.
func (s RoleSet) Add(role Role) bool {
	if s.Has(role) {
		return false
	}
	s[role] = struct{}{}
	return true
}

// Slice returns the roles in sorted order.
func (s RoleSet) Slice() []Role {
	out := make([]Role, 0, len(s))
	for role := range s {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// UnmarshalJSON decodes an array of role tags.
func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	set := make(RoleSet, len(raw))
	for _, value := range raw {
		role, err := ParseRole(value)
		if err != nil {
			return err
		}
		set[role] = struct{}{}
	}
	*s = set
	return nil
}

// String renders the set as a comma separated list.
func (s RoleSet) String() string {
	roles := s.Slice()
	parts := make([]string, len(roles))
	for i, role := range roles {
		parts[i] = string(role)
	}
	return strings.Join(parts, ",")
}

// User is a login identity.
type User struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	PasswordHash       string    `json:"-"`
	MustChangePassword bool      `json:"must_change_password"`
	RegionID           *string   `json:"region_id,omitempty"`
	Roles              RoleSet   `json:"roles"`
	CreatedAt          time.Time `json:"created_at"`
}

// IsAdmin reports whether the user may administer signers and contracts.
func (u *User) IsAdmin() bool {
	return u != nil && u.Roles.HasAny(RoleAdmin, RoleSuperAdmin)
}

// Validate checks required user fields.
func (u *User) Validate() error {
	v := &ValidationErrors{}
	if err := ValidateEmail(u.Email); err != nil {
		v.Add("email", err)
	}
	if len(u.Roles) == 0 {
		v.AddMessage("roles", "at least one role is required")
	}
	return v.Err()
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare address.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email address %q", email)
	}
	return nil
}
