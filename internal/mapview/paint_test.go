package mapview

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/parcela/internal/models"
)

func TestPaintFor(t *testing.T) {
	tests := []struct {
		name   string
		status models.LotStatus
		flags  FeatureFlags
		want   Paint
	}{
		{
			name:   "available at rest",
			status: models.LotAvailable,
			want:   Paint{FillColor: "rgba(52,211,153,0.3)", FillOpacity: 0.5, LineColor: ColorAvailable, LineWidth: 1.5, LineOpacity: 0.9},
		},
		{
			name:   "reserved hovered",
			status: models.LotReserved,
			flags:  FeatureFlags{Hover: true},
			want:   Paint{FillColor: "rgba(251,191,36,0.3)", FillOpacity: 0.8, LineColor: ColorReserved, LineWidth: 2.5, LineOpacity: 0.9},
		},
		{
			name:   "sold selected",
			status: models.LotSold,
			flags:  FeatureFlags{Selected: true},
			want:   Paint{FillColor: "rgba(239,68,68,0.25)", FillOpacity: 0.5, LineColor: ColorSelected, LineWidth: 3.5, LineOpacity: 0.9},
		},
		{
			name:   "selection wins over hover for outline",
			status: models.LotAvailable,
			flags:  FeatureFlags{Hover: true, Selected: true},
			want:   Paint{FillColor: "rgba(52,211,153,0.3)", FillOpacity: 0.8, LineColor: ColorSelected, LineWidth: 3.5, LineOpacity: 0.9},
		},
		{
			name:   "unknown status falls back to available",
			status: models.LotStatus("held"),
			want:   Paint{FillColor: "rgba(52,211,153,0.3)", FillOpacity: 0.5, LineColor: ColorAvailable, LineWidth: 1.5, LineOpacity: 0.9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PaintFor(tt.status, tt.flags))
		})
	}
}

func TestBadgeFor(t *testing.T) {
	assert.Equal(t, "Available", BadgeFor(models.LotAvailable).Label)
	assert.Equal(t, ColorSold, BadgeFor(models.LotSold).Color)
	assert.Equal(t, ColorUnknown, BadgeFor("held").Color)
}

func TestStyleTable(t *testing.T) {
	s := StyleTable(DefaultConfig())
	assert.Equal(t, ColorReserved, s.StatusColors[models.LotReserved])
	assert.Equal(t, 3.5, s.LineWidths["selected"])
	assert.Equal(t, 19.0, s.SelectZoom)
	assert.Equal(t, 18.2, s.ZoneZoom)
	assert.Equal(t, 16.2, s.Zoom)
	assert.Equal(t, MapCenter, s.Center)
}

func TestResolveCTA(t *testing.T) {
	available := models.Lot{ID: "bajada-sur-A1", Status: models.LotAvailable}
	sold := models.Lot{ID: "bajada-sur-A2", Status: models.LotSold}

	cta := ResolveCTA(available, true)
	assert.Equal(t, CTAReserve, cta.Kind)
	assert.Equal(t, "/dashboard/reserve?lot=bajada-sur-A1", cta.Href)

	cta = ResolveCTA(available, false)
	assert.Equal(t, "/login?redirect=%2Fdashboard%2Freserve%3Flot%3Dbajada-sur-A1", cta.Href)

	cta = ResolveCTA(sold, true)
	assert.Equal(t, CTARequestInfo, cta.Kind)
	assert.Empty(t, cta.Href)
}

func TestLoginRedirect_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		lotID string
	}{
		{"plain id", "bajada-sur-A1"},
		{"ampersand", "lote&redirect=https://evil.example"},
		{"space and hash", "mesa norte#B2"},
		{"percent", "100%-lot"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			href := ResolveCTA(models.Lot{ID: tt.lotID, Status: models.LotAvailable}, false).Href

			login, err := url.Parse(href)
			require.NoError(t, err)
			assert.Equal(t, "/login", login.Path)
			q := login.Query()
			require.Len(t, q, 1, "lot id cannot add parameters to the login url")

			target, err := url.Parse(q.Get("redirect"))
			require.NoError(t, err)
			assert.Equal(t, "/dashboard/reserve", target.Path)
			assert.Equal(t, tt.lotID, target.Query().Get("lot"))
		})
	}
}

func TestNewLotDetail(t *testing.T) {
	desc := "Lower western slope."
	lot := models.LotWithZone{
		Lot: models.Lot{
			ID: "bajada-sur-A1", ZoneID: "bajada-sur", Label: "A1", Status: models.LotAvailable,
			Price: 68000, SizeSqm: 52, FeatureID: 20,
		},
		Zone: &models.Zone{
			ID: "bajada-sur", Name: "Bajada Sur", ZoningType: "Residential",
			Description: desc, ImageURLs: models.StringList{"a.jpg", "b.jpg"},
		},
	}

	d := NewLotDetail(lot, true)
	assert.Equal(t, "Bajada Sur — Lot A1", d.Title)
	assert.Equal(t, "$68,000 USD", d.Price)
	assert.Equal(t, "52 m²", d.Size)
	assert.Equal(t, "560 ft²", d.SizeSqft)
	assert.Equal(t, "Available", d.StatusLabel)
	assert.Equal(t, desc, d.Description)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, d.Images)
	assert.Equal(t, CTAReserve, d.CTA.Kind)

	noZone := NewLotDetail(models.LotWithZone{Lot: lot.Lot}, false)
	assert.Equal(t, []string{}, noZone.Images)
	assert.Empty(t, noZone.Description)
}

func TestFeatureStateTable(t *testing.T) {
	tbl := NewFeatureStateTable()
	assert.True(t, tbl.SetSelected(3, true))
	assert.False(t, tbl.SetSelected(3, true), "unchanged flag reports false")
	assert.True(t, tbl.SetHover(3, true))
	assert.True(t, tbl.SetSelected(1, true))
	assert.Equal(t, []int64{1, 3}, tbl.Selected())

	tbl.Retain(func(id int64) bool { return id != 1 })
	assert.Equal(t, []int64{3}, tbl.Selected())

	tbl.SetHover(3, false)
	tbl.SetSelected(3, false)
	assert.Equal(t, FeatureFlags{}, tbl.Get(3))
	assert.Empty(t, tbl.Selected())
}
