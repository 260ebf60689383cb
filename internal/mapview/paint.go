package mapview

import (
	"github.com/paulmach/orb"
	"github.com/stwalsh4118/parcela/internal/models"
)

// Status and selection colors shared by fill, outline and popup badges.
const (
	ColorAvailable = "#34d399"
	ColorReserved  = "#fbbf24"
	ColorSold      = "#ef4444"
	ColorSelected  = "#0ea5e9"
	ColorUnknown   = "#94a3b8"
)

// Outline widths. Selection beats hover; hover beats rest.
const (
	LineWidthSelected = 3.5
	LineWidthHover    = 2.5
	LineWidthRest     = 1.5
	LineOpacity       = 0.9
	FillOpacityHover  = 0.8
	FillOpacityRest   = 0.5
)

// Initial viewport of the development.
var (
	MapCenter = orb.Point{-116.5998, 31.4853}
	MapZoom   = 16.2
)

// FeatureFlags is the per-feature renderer state. Hover and Selected are independent.
type FeatureFlags struct {
	Hover    bool `json:"hover"`
	Selected bool `json:"selected"`
}

// Paint is the resolved style of one lot polygon.
type Paint struct {
	FillColor   string  `json:"fill_color"`
	LineColor   string  `json:"line_color"`
	FillOpacity float64 `json:"fill_opacity"`
	LineWidth   float64 `json:"line_width"`
	LineOpacity float64 `json:"line_opacity"`
}

// StatusColor returns the outline color for a lot status. Unknown statuses
// fall back to the available color, matching the renderer expression default.
func StatusColor(status models.LotStatus) string {
	switch status {
	case models.LotReserved:
		return ColorReserved
	case models.LotSold:
		return ColorSold
	default:
		return ColorAvailable
	}
}

// StatusFill returns the translucent fill color for a lot status.
func StatusFill(status models.LotStatus) string {
	switch status {
	case models.LotReserved:
		return "rgba(251,191,36,0.3)"
	case models.LotSold:
		return "rgba(239,68,68,0.25)"
	default:
		return "rgba(52,211,153,0.3)"
	}
}

// PaintFor resolves the style of a lot polygon from its status and flags.
func PaintFor(status models.LotStatus, flags FeatureFlags) Paint {
	p := Paint{
		FillColor:   StatusFill(status),
		FillOpacity: FillOpacityRest,
		LineColor:   StatusColor(status),
		LineWidth:   LineWidthRest,
		LineOpacity: LineOpacity,
	}
	if flags.Hover {
		p.FillOpacity = FillOpacityHover
	}
	switch {
	case flags.Selected:
		p.LineColor = ColorSelected
		p.LineWidth = LineWidthSelected
	case flags.Hover:
		p.LineWidth = LineWidthHover
	}
	return p
}

// StatusBadge is the label and colors used to display a status.
type StatusBadge struct {
	Label      string `json:"label"`
	Color      string `json:"color"`
	Background string `json:"background"`
}

// BadgeFor returns the badge for a status.
func BadgeFor(status models.LotStatus) StatusBadge {
	switch status {
	case models.LotAvailable:
		return StatusBadge{Label: "Available", Color: ColorAvailable, Background: "rgba(52,211,153,0.15)"}
	case models.LotReserved:
		return StatusBadge{Label: "Reserved", Color: ColorReserved, Background: "rgba(251,191,36,0.15)"}
	case models.LotSold:
		return StatusBadge{Label: "Sold", Color: ColorSold, Background: "rgba(239,68,68,0.15)"}
	default:
		return StatusBadge{Label: string(status), Color: ColorUnknown, Background: "rgba(148,163,184,0.15)"}
	}
}

// Style is the encoding table served to renderers so they draw the same
// colors and widths the controller reasons about.
type Style struct {
	StatusColors map[models.LotStatus]string `json:"status_colors"`
	StatusFills  map[models.LotStatus]string `json:"status_fills"`
	Center       orb.Point                   `json:"center"`
	Selected     string                      `json:"selected_color"`
	LineWidths   map[string]float64          `json:"line_widths"`
	FillOpacity  map[string]float64          `json:"fill_opacity"`
	LineOpacity  float64                     `json:"line_opacity"`
	Zoom         float64                     `json:"zoom"`
	SelectZoom   float64                     `json:"select_zoom"`
	ZoneZoom     float64                     `json:"zone_zoom"`
}

// StyleTable returns the encoding table for cfg.
func StyleTable(cfg Config) Style {
	statuses := []models.LotStatus{models.LotAvailable, models.LotReserved, models.LotSold}
	colors := make(map[models.LotStatus]string, len(statuses))
	fills := make(map[models.LotStatus]string, len(statuses))
	for _, s := range statuses {
		colors[s] = StatusColor(s)
		fills[s] = StatusFill(s)
	}

	return Style{
		StatusColors: colors,
		StatusFills:  fills,
		Selected:     ColorSelected,
		LineWidths: map[string]float64{
			"selected": LineWidthSelected,
			"hover":    LineWidthHover,
			"rest":     LineWidthRest,
		},
		FillOpacity: map[string]float64{
			"hover": FillOpacityHover,
			"rest":  FillOpacityRest,
		},
		LineOpacity: LineOpacity,
		Center:      MapCenter,
		Zoom:        MapZoom,
		SelectZoom:  cfg.SelectZoom,
		ZoneZoom:    cfg.ZoneZoom,
	}
}
