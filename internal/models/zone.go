package models

import "time"

// Zone is a named region of the development, subdivided into lots.
// Geometry is immutable once created; only the descriptive fields are editable.
type Zone struct {
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Model3DURL  *string    `json:"model_3d_url,omitempty"`
	CameraOrbit *string    `json:"camera_orbit,omitempty"`
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	ZoningType  string     `json:"zoning_type"`
	Description string     `json:"description"`
	Corners     Corners    `json:"corners"`
	ImageURLs   StringList `json:"image_urls"`
	BasePrice   int64      `json:"base_price"`
	LotSizeSqm  float64    `json:"lot_size_sqm"`
}

// ZoneUpdate carries the editable zone fields. Nil fields are left unchanged.
type ZoneUpdate struct {
	Name        *string
	ZoningType  *string
	BasePrice   *int64
	LotSizeSqm  *float64
	Description *string
}

// Empty reports whether the update changes nothing.
func (u ZoneUpdate) Empty() bool {
	return u.Name == nil && u.ZoningType == nil && u.BasePrice == nil &&
		u.LotSizeSqm == nil && u.Description == nil
}

// Apply copies the non-nil fields onto z.
func (u ZoneUpdate) Apply(z *Zone) {
	if u.Name != nil {
		z.Name = *u.Name
	}
	if u.ZoningType != nil {
		z.ZoningType = *u.ZoningType
	}
	if u.BasePrice != nil {
		z.BasePrice = *u.BasePrice
	}
	if u.LotSizeSqm != nil {
		z.LotSizeSqm = *u.LotSizeSqm
	}
	if u.Description != nil {
		z.Description = *u.Description
	}
}
