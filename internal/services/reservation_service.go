package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stwalsh4118/parcela/internal/events"
	"github.com/stwalsh4118/parcela/internal/logger"
	"github.com/stwalsh4118/parcela/internal/metrics"
	"github.com/stwalsh4118/parcela/internal/models"
	"github.com/stwalsh4118/parcela/internal/repository"
	"github.com/stwalsh4118/parcela/internal/reservation"
)

var (
	ErrLotUnavailable      = errors.New("lot is no longer available")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrCannotWithdraw      = errors.New("reservation can no longer be withdrawn")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrStatusChanged       = errors.New("reservation status changed, reload and retry")
)

// ReservationOption configures a ReservationService.
type ReservationOption func(*ReservationService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ReservationOption {
	return func(s *ReservationService) { s.now = now }
}

// ReservationService drives the reservation wizard and owns every write that
// changes a reservation's status.
type ReservationService struct {
	lots         repository.LotRepository
	reservations repository.ReservationRepository
	wizards      *reservation.WizardStore
	policy       reservation.Policy
	notify       notifier
	log          *logger.Logger
	now          func() time.Time
}

// NewReservationService creates a reservation service. bus and maps may be nil.
func NewReservationService(store *repository.Store, wizards *reservation.WizardStore, policy reservation.Policy, bus events.Bus, maps Invalidator, log *logger.Logger, opts ...ReservationOption) *ReservationService {
	log = log.Named("reservation")
	s := &ReservationService{
		lots:         store.Lots,
		reservations: store.Reservations,
		wizards:      wizards,
		policy:       policy,
		notify:       notifier{bus: bus, maps: maps, log: log},
		log:          log,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the fee and date policy applied to new reservations.
func (s *ReservationService) Policy() reservation.Policy {
	return s.policy
}

// StartWizard opens a wizard for userID. When lotID names an available lot
// the wizard starts on the payment step with it selected; an unknown or
// unavailable lot is ignored.
func (s *ReservationService) StartWizard(ctx context.Context, userID, lotID string) (reservation.WizardView, error) {
	var preselected *models.LotWithZone
	if lotID != "" {
		lot, err := s.lots.Get(ctx, lotID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			s.log.Debug("Ignoring unknown preselected lot", map[string]interface{}{"lot_id": lotID})
		case err != nil:
			return reservation.WizardView{}, fmt.Errorf("failed to load lot: %w", err)
		default:
			preselected = lot
		}
	}

	w := s.wizards.Create(userID, preselected)
	s.log.Info("Reservation wizard started", map[string]interface{}{
		"wizard_id": w.ID(),
		"user_id":   userID,
		"lot_id":    lotID,
	})
	return w.View(s.policy, s.now()), nil
}

// GetWizard returns the wizard state.
func (s *ReservationService) GetWizard(userID, wizardID string) (reservation.WizardView, error) {
	w, err := s.wizards.Get(wizardID, userID)
	if err != nil {
		return reservation.WizardView{}, err
	}
	return w.View(s.policy, s.now()), nil
}

// SelectLot re-reads the lot so the wizard sees its current status.
func (s *ReservationService) SelectLot(ctx context.Context, userID, wizardID, lotID string) (reservation.WizardView, error) {
	w, err := s.wizards.Get(wizardID, userID)
	if err != nil {
		return reservation.WizardView{}, err
	}

	lot, err := s.lots.Get(ctx, lotID)
	if errors.Is(err, repository.ErrNotFound) {
		return reservation.WizardView{}, ErrLotNotFound
	}
	if err != nil {
		return reservation.WizardView{}, fmt.Errorf("failed to load lot: %w", err)
	}

	if err := w.SelectLot(*lot); err != nil {
		return reservation.WizardView{}, err
	}
	return w.View(s.policy, s.now()), nil
}

// ChoosePayment sets the payment method.
func (s *ReservationService) ChoosePayment(userID, wizardID, method string) (reservation.WizardView, error) {
	w, err := s.wizards.Get(wizardID, userID)
	if err != nil {
		return reservation.WizardView{}, err
	}
	m, err := reservation.ParsePaymentMethod(method)
	if err != nil {
		return reservation.WizardView{}, err
	}
	if err := w.ChoosePayment(m); err != nil {
		return reservation.WizardView{}, err
	}
	return w.View(s.policy, s.now()), nil
}

// Confirm sets the terms acknowledgement.
func (s *ReservationService) Confirm(userID, wizardID string, confirmed bool) (reservation.WizardView, error) {
	w, err := s.wizards.Get(wizardID, userID)
	if err != nil {
		return reservation.WizardView{}, err
	}
	if err := w.SetConfirmed(confirmed); err != nil {
		return reservation.WizardView{}, err
	}
	return w.View(s.policy, s.now()), nil
}

// Reset clears the wizard back to step 1.
func (s *ReservationService) Reset(userID, wizardID string) (reservation.WizardView, error) {
	w, err := s.wizards.Get(wizardID, userID)
	if err != nil {
		return reservation.WizardView{}, err
	}
	if err := w.Reset(); err != nil {
		return reservation.WizardView{}, err
	}
	return w.View(s.policy, s.now()), nil
}

// Candidates lists the available lots the wizard can select, filtered by query.
func (s *ReservationService) Candidates(ctx context.Context, userID, wizardID, query string) ([]models.LotWithZone, error) {
	if _, err := s.wizards.Get(wizardID, userID); err != nil {
		return nil, err
	}
	lots, err := s.lots.List(ctx, models.LotFilter{Status: models.LotAvailable})
	if err != nil {
		return nil, fmt.Errorf("failed to list lots: %w", err)
	}
	return reservation.FilterCandidates(lots, query), nil
}

// Submit commits the wizard. The lot status flip and the reservation insert
// happen in one atomic write. When another buyer won the lot the wizard
// returns to step 1 and ErrLotUnavailable is returned. On any other failure
// the wizard is left unchanged so the buyer can retry. A committed wizard
// is dropped from the store; the returned view is its final state.
func (s *ReservationService) Submit(ctx context.Context, userID, wizardID string) (*models.Reservation, reservation.WizardView, error) {
	w, err := s.wizards.Get(wizardID, userID)
	if err != nil {
		return nil, reservation.WizardView{}, err
	}

	sub, err := w.BeginSubmit()
	if err != nil {
		if errors.Is(err, reservation.ErrValidation) {
			metrics.ReservationsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		}
		return nil, w.View(s.policy, s.now()), err
	}

	now := s.now()
	r := s.policy.NewReservation(sub.UserID, sub.Lot.Lot, sub.Method, now)
	fields := map[string]interface{}{
		"wizard_id":      wizardID,
		"user_id":        userID,
		"lot_id":         sub.Lot.ID,
		"payment_method": sub.Method,
	}

	created, err := s.reservations.ReserveLot(ctx, r)
	switch {
	case errors.Is(err, repository.ErrLotUnavailable), errors.Is(err, repository.ErrNotFound):
		w.Conflict()
		metrics.ReservationsTotal.WithLabelValues(metrics.OutcomeConflict).Inc()
		s.log.Info("Reservation lost the race for its lot", fields)
		return nil, w.View(s.policy, now), ErrLotUnavailable
	case err != nil:
		w.Abort()
		metrics.ReservationsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		s.log.Error("Failed to commit reservation", err, fields)
		return nil, w.View(s.policy, now), fmt.Errorf("failed to commit reservation: %w", err)
	}

	w.Complete(*created)
	s.wizards.Delete(wizardID)
	metrics.ReservationsTotal.WithLabelValues(metrics.OutcomeCreated).Inc()
	fields["reservation_id"] = created.ID
	s.log.Info("Reservation created", fields)

	s.notify.reservationChanged(ctx, events.SubjectReservationCreated, *created, now)
	s.notify.lotChanged(ctx, created.LotID, models.LotReserved, now)
	return created, w.View(s.policy, now), nil
}

// ListMine returns the buyer's reservations with their lifecycle view.
func (s *ReservationService) ListMine(ctx context.Context, userID string) ([]reservation.View, error) {
	list, err := s.reservations.List(ctx, models.ReservationFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	now := s.now()
	views := make([]reservation.View, 0, len(list))
	for _, r := range list {
		views = append(views, reservation.NewView(r, now))
	}
	return views, nil
}

// Withdraw cancels the buyer's own open reservation before its expiry and
// releases the lot.
func (s *ReservationService) Withdraw(ctx context.Context, userID, reservationID string) (*models.Reservation, error) {
	current, err := s.reservations.Get(ctx, reservationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reservation: %w", err)
	}
	if current.UserID != userID {
		return nil, ErrReservationNotFound
	}
	if !reservation.CanWithdraw(current.Reservation, s.now()) {
		return nil, ErrCannotWithdraw
	}

	updated, err := s.Transition(ctx, current.Reservation, models.ReservationCancelled)
	if errors.Is(err, ErrStatusChanged) {
		return nil, ErrCannotWithdraw
	}
	return updated, err
}

// Transition moves r to status, applying the lot status that follows from
// it in the same atomic write.
func (s *ReservationService) Transition(ctx context.Context, r models.Reservation, to models.ReservationStatus) (*models.Reservation, error) {
	if !reservation.CanTransition(r.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, to)
	}

	now := s.now()
	change := repository.StatusChange{At: now, ReservationID: r.ID, From: r.Status, To: to}
	lotStatus, changesLot := reservation.LotStatusAfter(to)
	if changesLot {
		change.LotStatus = &lotStatus
	}

	updated, err := s.reservations.Transition(ctx, change)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrReservationNotFound
	case errors.Is(err, repository.ErrStaleStatus):
		return nil, ErrStatusChanged
	case err != nil:
		s.log.Error("Failed to change reservation status", err, map[string]interface{}{
			"reservation_id": r.ID,
			"from":           r.Status,
			"to":             to,
		})
		return nil, fmt.Errorf("failed to change reservation status: %w", err)
	}

	metrics.ReservationTransitions.WithLabelValues(string(to)).Inc()
	s.log.Info("Reservation status changed", map[string]interface{}{
		"reservation_id": r.ID,
		"lot_id":         r.LotID,
		"from":           r.Status,
		"to":             to,
	})

	s.notify.reservationChanged(ctx, events.SubjectReservationStatusChanged, *updated, now)
	if changesLot {
		s.notify.lotChanged(ctx, updated.LotID, lotStatus, now)
	}
	return updated, nil
}

// ReconcileExpired expires every open reservation past its expiry date and
// releases its lot. Reservations that changed concurrently are skipped.
func (s *ReservationService) ReconcileExpired(ctx context.Context) (int, error) {
	overdue, err := s.reservations.ListExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to list expired reservations: %w", err)
	}

	expired := 0
	for _, r := range overdue {
		_, err := s.Transition(ctx, r, models.ReservationExpired)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, ErrStatusChanged), errors.Is(err, ErrReservationNotFound):
			continue
		default:
			return expired, err
		}
	}
	return expired, nil
}
