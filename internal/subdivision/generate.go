package subdivision

import (
	"errors"
	"fmt"

	"github.com/stwalsh4118/parcela/internal/models"
)

const rowLabels = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Default grid used by the seed process.
const (
	DefaultColumns = 5
	DefaultRows    = 4
	DefaultGap     = 0.07
)

var (
	// ErrInvalidGrid is returned for non-positive dimensions or more rows than labels.
	ErrInvalidGrid = errors.New("invalid subdivision grid")
	// ErrInvalidGap is returned when the gap would collapse a cell.
	ErrInvalidGap = errors.New("gap must be in [0, 0.5)")
)

// Grid describes how a zone is subdivided. Gap is the fraction of a cell
// trimmed from each side so neighboring lots do not touch.
type Grid struct {
	Columns int
	Rows    int
	Gap     float64
}

// DefaultGrid returns the 5x4 grid with a 0.07 gap.
func DefaultGrid() Grid {
	return Grid{Columns: DefaultColumns, Rows: DefaultRows, Gap: DefaultGap}
}

// Validate checks the grid dimensions and gap.
func (g Grid) Validate() error {
	if g.Columns < 1 || g.Rows < 1 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidGrid, g.Columns, g.Rows)
	}
	if g.Rows > len(rowLabels) {
		return fmt.Errorf("%w: at most %d rows", ErrInvalidGrid, len(rowLabels))
	}
	if g.Gap < 0 || g.Gap >= 0.5 {
		return fmt.Errorf("%w: %v", ErrInvalidGap, g.Gap)
	}
	return nil
}

// Size returns the number of lots the grid produces.
func (g Grid) Size() int {
	return g.Columns * g.Rows
}

// ZoneSeed derives the per-zone hash seed from the first and last
// character codes of the zone id.
func ZoneSeed(zoneID string) int {
	runes := []rune(zoneID)
	if len(runes) == 0 {
		return 0
	}
	return int(runes[0]) + int(runes[len(runes)-1])
}

// StatusFor buckets the lot at linear index i into roughly 60% available,
// 22% reserved and 18% sold.
func StatusFor(seed, i int) models.LotStatus {
	hash := (seed*31 + i*17) % 100
	switch {
	case hash < 60:
		return models.LotAvailable
	case hash < 82:
		return models.LotReserved
	default:
		return models.LotSold
	}
}

// PriceVariation returns a signed offset in 1,000 steps within [-10000, 9000].
func PriceVariation(seed, i int) int64 {
	return int64((seed*7+i*13)%20-10) * 1000
}

// Label returns the row-letter and 1-based column label, e.g. "A1".
func Label(row, col int) string {
	return fmt.Sprintf("%c%d", rowLabels[row], col+1)
}

// LotID joins a zone id and a lot label.
func LotID(zoneID, label string) string {
	return zoneID + "-" + label
}

// FeatureIDSequence hands out strictly increasing feature ids across every
// zone processed in one generation run.
type FeatureIDSequence struct {
	next int64
}

// NewFeatureIDSequence starts a sequence at start.
func NewFeatureIDSequence(start int64) *FeatureIDSequence {
	return &FeatureIDSequence{next: start}
}

// Next returns the next id.
func (s *FeatureIDSequence) Next() int64 {
	id := s.next
	s.next++
	return id
}

// GenerateLots subdivides zone into grid.Columns x grid.Rows lots, ordered
// row by row. Re-running with the same zone and grid yields identical
// statuses and prices; feature ids come from seq.
func GenerateLots(zone models.Zone, grid Grid, seq *FeatureIDSequence) ([]models.Lot, error) {
	if err := zone.Corners.Validate(); err != nil {
		return nil, fmt.Errorf("zone %s: %w", zone.ID, err)
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}

	cols, rows := float64(grid.Columns), float64(grid.Rows)
	seed := ZoneSeed(zone.ID)
	lots := make([]models.Lot, 0, grid.Size())

	idx := 0
	for r := 0; r < grid.Rows; r++ {
		for c := 0; c < grid.Columns; c++ {
			u0 := (float64(c) + grid.Gap) / cols
			u1 := (float64(c) + 1 - grid.Gap) / cols
			v0 := (float64(r) + grid.Gap) / rows
			v1 := (float64(r) + 1 - grid.Gap) / rows

			tl := Bilerp(zone.Corners, u0, v0)
			tr := Bilerp(zone.Corners, u1, v0)
			br := Bilerp(zone.Corners, u1, v1)
			bl := Bilerp(zone.Corners, u0, v1)
			center := Bilerp(zone.Corners, (float64(c)+0.5)/cols, (float64(r)+0.5)/rows)

			label := Label(r, c)
			lots = append(lots, models.Lot{
				ID:        LotID(zone.ID, label),
				ZoneID:    zone.ID,
				Label:     label,
				Status:    StatusFor(seed, idx),
				Price:     zone.BasePrice + PriceVariation(seed, idx),
				SizeSqm:   zone.LotSizeSqm,
				SizeSqft:  models.SqmToSqft(zone.LotSizeSqm),
				Polygon:   models.Ring{tl, tr, br, bl, tl},
				Center:    models.Point(center),
				GridRow:   r,
				GridCol:   c,
				FeatureID: seq.Next(),
			})
			idx++
		}
	}

	return lots, nil
}

// GenerateAll subdivides every zone with one shared feature id sequence
// starting at 0.
func GenerateAll(zones []models.Zone, grid Grid) ([]models.Lot, error) {
	seq := NewFeatureIDSequence(0)
	all := make([]models.Lot, 0, len(zones)*grid.Size())
	for _, zone := range zones {
		lots, err := GenerateLots(zone, grid, seq)
		if err != nil {
			return nil, err
		}
		all = append(all, lots...)
	}
	return all, nil
}
