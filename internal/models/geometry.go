package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// ErrInvalidCorners is returned when a zone boundary is not a quadrilateral.
var ErrInvalidCorners = errors.New("zone boundary must have exactly 4 corners")

// Point is a [lng, lat] coordinate stored as a JSONB array.
type Point orb.Point

// Orb returns the point as an orb.Point.
func (p Point) Orb() orb.Point {
	return orb.Point(p)
}

// Lng returns the longitude.
func (p Point) Lng() float64 { return p[0] }

// Lat returns the latitude.
func (p Point) Lat() float64 { return p[1] }

// Scan implements sql.Scanner for JSONB columns.
func (p *Point) Scan(value interface{}) error {
	var coords [2]float64
	if err := scanJSON(value, &coords, "Point"); err != nil {
		return err
	}
	*p = Point(coords)
	return nil
}

// Value implements driver.Valuer for JSONB columns.
func (p Point) Value() (driver.Value, error) {
	return valueJSON([2]float64(p), "Point")
}

// Ring is an ordered list of coordinates. A lot polygon ring is closed,
// meaning its first and last points are equal.
type Ring []orb.Point

// Orb returns the ring as an orb.Ring.
func (r Ring) Orb() orb.Ring {
	return orb.Ring(r)
}

// Closed reports whether the ring has at least 4 points and ends where it starts.
func (r Ring) Closed() bool {
	return len(r) >= 4 && r[0] == r[len(r)-1]
}

// Scan implements sql.Scanner for JSONB columns.
func (r *Ring) Scan(value interface{}) error {
	var coords []orb.Point
	if err := scanJSON(value, &coords, "Ring"); err != nil {
		return err
	}
	*r = coords
	return nil
}

// Value implements driver.Valuer for JSONB columns.
func (r Ring) Value() (driver.Value, error) {
	if len(r) == 0 {
		return nil, nil
	}
	return valueJSON([]orb.Point(r), "Ring")
}

// Corners is a zone boundary listed as top-left, top-right, bottom-right,
// bottom-left. Interpolation depends on that order.
type Corners []orb.Point

// Validate checks that exactly four corners are present.
func (c Corners) Validate() error {
	if len(c) != 4 {
		return fmt.Errorf("%w: got %d", ErrInvalidCorners, len(c))
	}
	return nil
}

// TL returns the top-left corner.
func (c Corners) TL() orb.Point { return c[0] }

// TR returns the top-right corner.
func (c Corners) TR() orb.Point { return c[1] }

// BR returns the bottom-right corner.
func (c Corners) BR() orb.Point { return c[2] }

// BL returns the bottom-left corner.
func (c Corners) BL() orb.Point { return c[3] }

// Scan implements sql.Scanner for JSONB columns.
func (c *Corners) Scan(value interface{}) error {
	var coords []orb.Point
	if err := scanJSON(value, &coords, "Corners"); err != nil {
		return err
	}
	*c = coords
	return nil
}

// Value implements driver.Valuer for JSONB columns.
func (c Corners) Value() (driver.Value, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return valueJSON([]orb.Point(c), "Corners")
}

// StringList is a JSONB array of strings, such as zone image URLs.
type StringList []string

// Scan implements sql.Scanner for JSONB columns.
func (s *StringList) Scan(value interface{}) error {
	var list []string
	if err := scanJSON(value, &list, "StringList"); err != nil {
		return err
	}
	*s = list
	return nil
}

// Value implements driver.Valuer for JSONB columns.
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return valueJSON([]string(s), "StringList")
}

func scanJSON(value interface{}, dst interface{}, name string) error {
	if value == nil {
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("failed to scan %s: expected []byte or string, got %T", name, value)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", name, err)
	}
	return nil
}

func valueJSON(src interface{}, name string) (driver.Value, error) {
	data, err := json.Marshal(src)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	return string(data), nil
}
