package mapview

import (
	"net/url"
	"strings"

	"github.com/stwalsh4118/parcela/internal/features"
	"github.com/stwalsh4118/parcela/internal/models"
)

// CTAKind is the call to action offered for a lot.
type CTAKind string

const (
	CTAReserve     CTAKind = "reserve"
	CTARequestInfo CTAKind = "request_info"
)

// CTA is the lot detail call to action. Href is empty for request_info,
// which changes no state.
type CTA struct {
	Kind  CTAKind `json:"kind"`
	Label string  `json:"label"`
	Href  string  `json:"href,omitempty"`
}

// ReservePath is the reservation entry point with the lot preselected.
func ReservePath(lotID string) string {
	return "/dashboard/reserve?lot=" + url.QueryEscape(lotID)
}

// LoginRedirect routes through sign-in and resumes at target afterwards.
// target is escaped whole so its own query survives the round trip.
func LoginRedirect(target string) string {
	return "/login?redirect=" + url.QueryEscape(target)
}

// ResolveCTA picks the call to action for lot and viewer.
func ResolveCTA(lot models.Lot, authenticated bool) CTA {
	if lot.Status != models.LotAvailable {
		return CTA{Kind: CTARequestInfo, Label: "Request More Information"}
	}
	href := ReservePath(lot.ID)
	if !authenticated {
		href = LoginRedirect(href)
	}
	return CTA{Kind: CTAReserve, Label: "Reserve This Lot", Href: href}
}

// LotTitle is the popover and modal heading: zone name, then the lot label.
func LotTitle(lot models.LotWithZone) string {
	return lot.ZoneName() + " — Lot " + lot.Label
}

// LotDetail is the read-only presentation of a lot and its zone.
type LotDetail struct {
	Model3DURL  *string     `json:"model_3d_url,omitempty"`
	CameraOrbit *string     `json:"camera_orbit,omitempty"`
	Badge       StatusBadge `json:"badge"`
	CTA         CTA         `json:"cta"`
	LotID       string      `json:"lot_id"`
	ZoneID      string      `json:"zone_id"`
	Title       string      `json:"title"`
	ZoneName    string      `json:"zone_name"`
	Label       string      `json:"label"`
	Status      string      `json:"status"`
	StatusLabel string      `json:"status_label"`
	Price       string      `json:"price"`
	Size        string      `json:"size"`
	SizeSqft    string      `json:"size_sqft"`
	Zoning      string      `json:"zoning"`
	Description string      `json:"description"`
	Images      []string    `json:"images"`
	PriceAmount int64       `json:"price_amount"`
	SizeSqm     float64     `json:"size_sqm"`
	FeatureID   int64       `json:"feature_id"`
}

// NewLotDetail builds the detail view for lot as seen by the viewer.
func NewLotDetail(lot models.LotWithZone, authenticated bool) LotDetail {
	sqft := lot.SizeSqft
	if sqft == 0 {
		sqft = models.SqmToSqft(lot.SizeSqm)
	}

	d := LotDetail{
		LotID:       lot.ID,
		ZoneID:      lot.ZoneID,
		FeatureID:   lot.FeatureID,
		Title:       LotTitle(lot),
		ZoneName:    lot.ZoneName(),
		Label:       lot.Label,
		Status:      string(lot.Status),
		StatusLabel: capitalize(string(lot.Status)),
		Badge:       BadgeFor(lot.Status),
		Price:       features.FormatPrice(lot.Price),
		PriceAmount: lot.Price,
		Size:        features.FormatSize(lot.SizeSqm),
		SizeSqm:     lot.SizeSqm,
		SizeSqft:    features.FormatCount(int64(sqft)) + " ft²",
		Zoning:      lot.ZoningType(),
		Images:      []string{},
		CTA:         ResolveCTA(lot.Lot, authenticated),
	}
	if lot.Zone != nil {
		d.Description = lot.Zone.Description
		d.Images = append(d.Images, lot.Zone.ImageURLs...)
		d.Model3DURL = lot.Zone.Model3DURL
		d.CameraOrbit = lot.Zone.CameraOrbit
	}
	return d
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Action is a button on the popover.
type Action struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Href  string `json:"href,omitempty"`
}

// Popup is the transient popover anchored at a selected lot's center.
type Popup struct {
	Anchor      [2]float64 `json:"anchor"`
	LotID       string     `json:"lot_id"`
	Title       string     `json:"title"`
	Size        string     `json:"size"`
	Zoning      string     `json:"zoning"`
	Status      string     `json:"status"`
	StatusColor string     `json:"status_color"`
	Price       string     `json:"price"`
	Actions     []Action   `json:"actions"`
	FeatureID   int64      `json:"feature_id"`
}

// NewPopup builds the popover for lot. The reserve action is offered only
// while the lot is available.
func NewPopup(lot models.LotWithZone, authenticated bool) Popup {
	p := Popup{
		Anchor:      [2]float64(lot.Center),
		LotID:       lot.ID,
		FeatureID:   lot.FeatureID,
		Title:       LotTitle(lot),
		Size:        features.FormatSize(lot.SizeSqm),
		Zoning:      lot.ZoningType(),
		Status:      strings.ToUpper(string(lot.Status)),
		StatusColor: StatusColor(lot.Status),
		Price:       features.FormatPrice(lot.Price),
		Actions:     []Action{{ID: "view_details", Label: "View Details"}},
	}
	if cta := ResolveCTA(lot.Lot, authenticated); cta.Kind == CTAReserve {
		p.Actions = append(p.Actions, Action{ID: "reserve", Label: cta.Label, Href: cta.Href})
	}
	return p
}

// CloseReason records how the modal was dismissed.
type CloseReason string

const (
	CloseExplicit CloseReason = "explicit"
	CloseOutside  CloseReason = "outside"
	CloseEscape   CloseReason = "escape"
)

// Modal is the open/closed state of the lot detail modal.
type Modal struct {
	detail *LotDetail
}

// Open shows detail, replacing whatever was shown.
func (m *Modal) Open(detail LotDetail) {
	m.detail = &detail
}

// Close hides the modal and reports whether it was open.
func (m *Modal) Close() bool {
	wasOpen := m.detail != nil
	m.detail = nil
	return wasOpen
}

// IsOpen reports whether the modal is shown.
func (m *Modal) IsOpen() bool {
	return m.detail != nil
}

// Detail returns the shown detail.
func (m *Modal) Detail() (LotDetail, bool) {
	if m.detail == nil {
		return LotDetail{}, false
	}
	return *m.detail, true
}
