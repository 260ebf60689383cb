package services

import (
	"context"
	"fmt"
	"time"

	"github.com/stwalsh4118/parcela/internal/features"
	"github.com/stwalsh4118/parcela/internal/models"
	"github.com/stwalsh4118/parcela/internal/repository"
	"github.com/stwalsh4118/parcela/internal/reservation"
)

// DefaultDocumentTotal is the checklist size shown before any upload.
const DefaultDocumentTotal = 6

// Alert kinds.
const (
	AlertPayment  = "payment"
	AlertDocument = "document"
	AlertExpiry   = "expiry"
)

// Alert is a dashboard banner.
type Alert struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	Action string `json:"action"`
	Href   string `json:"href"`
}

// DashboardCounts are the buyer's summary tiles.
type DashboardCounts struct {
	ReservedLots      int `json:"reserved_lots"`
	PurchasedLots     int `json:"purchased_lots"`
	OpenTickets       int `json:"open_tickets"`
	DocumentsApproved int `json:"documents_approved"`
	DocumentsTotal    int `json:"documents_total"`
}

// Dashboard is the buyer landing page.
type Dashboard struct {
	Alerts       []Alert            `json:"alerts"`
	Reservations []reservation.View `json:"reservations"`
	SavedLots    []models.SavedLot  `json:"saved_lots"`
	Counts       DashboardCounts    `json:"counts"`
}

// DashboardService aggregates buyer records.
type DashboardService struct {
	store *repository.Store
	now   func() time.Time
}

// NewDashboardService creates a dashboard service. A nil now uses time.Now.
func NewDashboardService(store *repository.Store, now func() time.Time) *DashboardService {
	if now == nil {
		now = time.Now
	}
	return &DashboardService{store: store, now: now}
}

// Get builds the dashboard for userID.
func (s *DashboardService) Get(ctx context.Context, userID string) (*Dashboard, error) {
	list, err := s.store.Reservations.List(ctx, models.ReservationFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	docs, err := s.store.Documents.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	openTickets, err := s.store.Tickets.CountOpen(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}
	saved, err := s.store.SavedLots.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved lots: %w", err)
	}

	now := s.now()
	d := &Dashboard{
		Alerts:       []Alert{},
		Reservations: []reservation.View{},
		SavedLots:    saved,
		Counts:       DashboardCounts{OpenTickets: openTickets},
	}

	var open []models.Reservation
	for _, r := range list {
		switch {
		case r.Status.IsOpen():
			d.Counts.ReservedLots++
			open = append(open, r.Reservation)
			d.Reservations = append(d.Reservations, reservation.NewView(r, now))
		case r.Status == models.ReservationCompleted:
			d.Counts.PurchasedLots++
		}
	}

	outstanding := 0
	for _, doc := range docs {
		if doc.Status == models.DocumentApproved {
			d.Counts.DocumentsApproved++
		}
		if doc.Status.Outstanding() {
			outstanding++
		}
	}
	d.Counts.DocumentsTotal = len(docs)
	if d.Counts.DocumentsTotal == 0 {
		d.Counts.DocumentsTotal = DefaultDocumentTotal
	}

	d.Alerts = buildAlerts(open, outstanding, now)
	return d, nil
}

// buildAlerts raises at most one alert of each kind, taking the first
// matching reservation in newest-first order.
func buildAlerts(open []models.Reservation, outstandingDocs int, now time.Time) []Alert {
	alerts := []Alert{}

	for _, r := range open {
		if r.AmountPaid >= r.AmountDue {
			continue
		}
		when := "soon"
		if r.NextPaymentDue != nil {
			when = "on " + r.NextPaymentDue.Format("Jan 2")
		}
		alerts = append(alerts, Alert{
			Type:   AlertPayment,
			Text:   fmt.Sprintf("%s due %s", features.FormatAmount(reservation.BalanceDue(r)), when),
			Action: "Pay now",
			Href:   "/dashboard/lots",
		})
		break
	}

	if outstandingDocs > 0 {
		alerts = append(alerts, Alert{
			Type:   AlertDocument,
			Text:   fmt.Sprintf("%d documents required", outstandingDocs),
			Action: "Upload",
			Href:   "/dashboard/documents",
		})
	}

	for _, r := range open {
		if !reservation.ExpiringSoon(r, now) {
			continue
		}
		alerts = append(alerts, Alert{
			Type:   AlertExpiry,
			Text:   fmt.Sprintf("Your property reservation expires in %d days", *reservation.DaysRemaining(r, now)),
			Action: "Review",
			Href:   "/dashboard/lots",
		})
		break
	}
	return alerts
}
