// Package features projects zones and lots onto GeoJSON feature collections
// for the map renderer. Every function here is a pure projection and must be
// re-run whenever the underlying records change.
package features

import (
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stwalsh4118/parcela/internal/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Property keys consumed by the renderer's styling and click handling.
const (
	PropID       = "id"
	PropZoneID   = "zoneId"
	PropZoneName = "zoneName"
	PropLabel    = "label"
	PropStatus   = "status"
	PropPrice    = "price"
	PropSize     = "size"
	PropZoning   = "zoning"
	PropName     = "name"
)

var pricePrinter = message.NewPrinter(language.English)

// FormatPrice renders whole dollars as "$78,000 USD".
func FormatPrice(amount int64) string {
	return pricePrinter.Sprintf("$%d USD", amount)
}

// FormatAmount renders whole dollars as "$78,000".
func FormatAmount(amount int64) string {
	return pricePrinter.Sprintf("$%d", amount)
}

// FormatCount renders an integer with thousands separators.
func FormatCount(n int64) string {
	return pricePrinter.Sprintf("%d", n)
}

// FormatSize renders square metres as "55 m²".
func FormatSize(sqm float64) string {
	return strconv.FormatFloat(sqm, 'f', -1, 64) + " m²"
}

// LotsToFeatures emits one polygon feature per lot, keyed by the lot's
// feature id. The feature id is the join key back to the lot.
func LotsToFeatures(lots []models.LotWithZone) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, lot := range lots {
		f := geojson.NewFeature(orb.Polygon{lot.Polygon.Orb().Clone()})
		f.ID = lot.FeatureID
		f.Properties = geojson.Properties{
			PropID:       lot.ID,
			PropZoneID:   lot.ZoneID,
			PropZoneName: lot.ZoneName(),
			PropLabel:    lot.Label,
			PropStatus:   string(lot.Status),
			PropPrice:    FormatPrice(lot.Price),
			PropSize:     FormatSize(lot.SizeSqm),
			PropZoning:   lot.ZoningType(),
		}
		fc.Append(f)
	}
	return fc
}

// ZonesToFeatures emits one polygon per zone, closing the corner ring by
// repeating the first corner.
func ZonesToFeatures(zones []models.Zone) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, zone := range zones {
		if len(zone.Corners) == 0 {
			continue
		}
		ring := make(orb.Ring, 0, len(zone.Corners)+1)
		ring = append(ring, zone.Corners...)
		ring = append(ring, zone.Corners[0])

		f := geojson.NewFeature(orb.Polygon{ring})
		f.Properties = geojson.Properties{
			PropID:   zone.ID,
			PropName: zone.Name,
		}
		fc.Append(f)
	}
	return fc
}

// ZoneLabelPoints emits a point at each zone's corner mean carrying its name.
func ZoneLabelPoints(zones []models.Zone) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, zone := range zones {
		center, ok := ZoneCenter(zone)
		if !ok {
			continue
		}
		f := geojson.NewFeature(center)
		f.Properties = geojson.Properties{PropName: zone.Name}
		fc.Append(f)
	}
	return fc
}

// LotLabelPoints emits a point at each lot's stored center carrying its label.
func LotLabelPoints(lots []models.LotWithZone) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, lot := range lots {
		f := geojson.NewFeature(lot.Center.Orb())
		f.Properties = geojson.Properties{PropLabel: lot.Label}
		fc.Append(f)
	}
	return fc
}

// ZoneCenter returns the mean of the zone's four corners. It reports false
// when the zone does not have exactly four corners.
func ZoneCenter(zone models.Zone) (orb.Point, bool) {
	if zone.Corners.Validate() != nil {
		return orb.Point{}, false
	}
	var lng, lat float64
	for _, c := range zone.Corners {
		lng += c[0]
		lat += c[1]
	}
	return orb.Point{lng / 4, lat / 4}, true
}
