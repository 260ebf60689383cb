package features

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/stwalsh4118/parcela/internal/models"
)

// Index resolves renderer feature ids back to lots. It is immutable once
// built; rebuild it from a fresh lot list after any status change.
type Index struct {
	byFeature map[int64]string
	byLotID   map[string]models.LotWithZone
	zones     map[string]models.Zone
	order     []string
}

// NewIndex builds an index over lots and zones.
func NewIndex(lots []models.LotWithZone, zones []models.Zone) *Index {
	idx := &Index{
		byFeature: make(map[int64]string, len(lots)),
		byLotID:   make(map[string]models.LotWithZone, len(lots)),
		zones:     make(map[string]models.Zone, len(zones)),
		order:     make([]string, 0, len(lots)),
	}
	for _, lot := range lots {
		idx.byFeature[lot.FeatureID] = lot.ID
		idx.byLotID[lot.ID] = lot
		idx.order = append(idx.order, lot.ID)
	}
	for _, zone := range zones {
		idx.zones[zone.ID] = zone
	}
	return idx
}

// LotIDForFeature returns the lot id joined to featureID.
func (i *Index) LotIDForFeature(featureID int64) (string, bool) {
	id, ok := i.byFeature[featureID]
	return id, ok
}

// LotForFeature returns the lot joined to featureID.
func (i *Index) LotForFeature(featureID int64) (models.LotWithZone, bool) {
	id, ok := i.byFeature[featureID]
	if !ok {
		return models.LotWithZone{}, false
	}
	return i.Lot(id)
}

// Lot looks up a lot by id.
func (i *Index) Lot(id string) (models.LotWithZone, bool) {
	lot, ok := i.byLotID[id]
	return lot, ok
}

// Zone looks up a zone by id.
func (i *Index) Zone(id string) (models.Zone, bool) {
	zone, ok := i.zones[id]
	return zone, ok
}

// Lots returns the indexed lots in their original order.
func (i *Index) Lots() []models.LotWithZone {
	lots := make([]models.LotWithZone, 0, len(i.order))
	for _, id := range i.order {
		lots = append(lots, i.byLotID[id])
	}
	return lots
}

// Len returns the number of indexed lots.
func (i *Index) Len() int {
	return len(i.order)
}

// FeatureIDFromValue converts a feature id reported by a renderer event into
// an int64. JSON decoders deliver numbers as float64, so integral floats are
// accepted; anything else reports false.
func FeatureIDFromValue(v interface{}) (int64, bool) {
	switch id := v.(type) {
	case int:
		return int64(id), true
	case int32:
		return int64(id), true
	case int64:
		return id, true
	case float64:
		if id != math.Trunc(id) || math.IsInf(id, 0) || math.IsNaN(id) {
			return 0, false
		}
		return int64(id), true
	case json.Number:
		n, err := id.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
