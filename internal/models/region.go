package models

import (
	"strings"
	"time"
)

// Region groups buildings and scopes signers.
type Region struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks required region fields.
func (r *Region) Validate() error {
	v := &ValidationErrors{}
	if strings.TrimSpace(r.Name) == "" {
		v.AddMessage("name", "region name is required")
	}
	return v.Err()
}

// Building is a leasable property located in a region.
type Building struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Address    string    `json:"address,omitempty"`
	City       string    `json:"city,omitempty"`
	RegionID   string    `json:"region_id"`
	Floors     int       `json:"floors"`
	TotalArea  float64   `json:"total_area"`
	PricePerM2 float64   `json:"price_per_m2"`
	CreatedAt  time.Time `json:"created_at"`
}

// Validate checks required building fields.
func (b *Building) Validate() error {
	v := &ValidationErrors{}
	if strings.TrimSpace(b.Name) == "" {
		v.AddMessage("name", "building name is required")
	}
	if strings.TrimSpace(b.RegionID) == "" {
		v.AddMessage("region_id", "building region is required")
	}
	if b.Floors < 0 {
		v.AddMessage("floors", "floors must not be negative")
	}
	if b.TotalArea < 0 {
		v.AddMessage("total_area", "total area must not be negative")
	}
	if b.PricePerM2 < 0 {
		v.AddMessage("price_per_m2", "price per m2 must not be negative")
	}
	return v.Err()
}
