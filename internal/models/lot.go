package models

import (
	"math"
	"time"
)

// SqftPerSqm converts square metres to square feet.
const SqftPerSqm = 10.7639

// SqmToSqft converts an area to whole square feet.
func SqmToSqft(sqm float64) float64 {
	return math.Round(sqm * SqftPerSqm)
}

// LotStatus is the sales state of a lot.
type LotStatus string

const (
	LotAvailable LotStatus = "available"
	LotReserved  LotStatus = "reserved"
	LotSold      LotStatus = "sold"
)

// Valid reports whether s is a known lot status.
func (s LotStatus) Valid() bool {
	switch s {
	case LotAvailable, LotReserved, LotSold:
		return true
	}
	return false
}

// Lot is an individually sellable parcel within a zone. It never carries
// transient map state such as hover or selection flags.
type Lot struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	ZoneID    string    `json:"zone_id"`
	Label     string    `json:"label"`
	Status    LotStatus `json:"status"`
	Polygon   Ring      `json:"polygon"`
	Center    Point     `json:"center"`
	Price     int64     `json:"price"`
	SizeSqm   float64   `json:"size_sqm"`
	SizeSqft  float64   `json:"size_sqft"`
	GridRow   int       `json:"grid_row"`
	GridCol   int       `json:"grid_col"`
	FeatureID int64     `json:"feature_id"`
}

// LotWithZone is a lot joined with its owning zone.
type LotWithZone struct {
	Zone *Zone `json:"zone,omitempty"`
	Lot
}

// ZoneName returns the joined zone name or an empty string.
func (l LotWithZone) ZoneName() string {
	if l.Zone == nil {
		return ""
	}
	return l.Zone.Name
}

// ZoningType returns the joined zoning type or an empty string.
func (l LotWithZone) ZoningType() string {
	if l.Zone == nil {
		return ""
	}
	return l.Zone.ZoningType
}

// LotFilter narrows lot listings. Zero values match everything.
type LotFilter struct {
	Status LotStatus
	ZoneID string
	// Query matches lot id, label or zone name, case-insensitively.
	Query string
}

// LotUpdate carries the admin-editable lot fields. Nil fields are left unchanged.
type LotUpdate struct {
	Price  *int64
	Status *LotStatus
}

// Empty reports whether the update changes nothing.
func (u LotUpdate) Empty() bool {
	return u.Price == nil && u.Status == nil
}
