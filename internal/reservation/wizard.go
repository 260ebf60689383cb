package reservation

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/stwalsh4118/parcela/internal/models"
)

var (
	// ErrSubmitInProgress is returned when a second submit races the first.
	ErrSubmitInProgress = errors.New("reservation submit already in progress")
	// ErrWizardDone is returned by any mutation after a successful submit.
	ErrWizardDone = errors.New("reservation wizard already submitted")
)

// Step is the wizard step pointer.
type Step int

const (
	StepSelect  Step = 1
	StepPayment Step = 2
	StepConfirm Step = 3
)

// Wizard walks one buyer through Select, Choose Payment and Confirm & Pay.
// The step only moves forward except on Reset or after a lost race for
// the lot.
type Wizard struct {
	mu          sync.Mutex
	id          string
	userID      string
	step        Step
	lot         *models.LotWithZone
	method      PaymentMethod
	confirmed   bool
	submitting  bool
	reservation *models.Reservation
	touched     time.Time
}

// NewWizard starts a wizard. An available preselected lot skips step 1;
// anything else starts at step 1 with nothing selected.
func NewWizard(id, userID string, preselected *models.LotWithZone, now time.Time) *Wizard {
	w := &Wizard{id: id, userID: userID, step: StepSelect, touched: now}
	if preselected != nil && preselected.Status == models.LotAvailable {
		lot := *preselected
		w.lot = &lot
		w.step = StepPayment
	}
	return w
}

// ID returns the wizard id.
func (w *Wizard) ID() string { return w.id }

// UserID returns the owning buyer.
func (w *Wizard) UserID() string { return w.userID }

// SelectLot picks the lot and advances to at least step 2.
func (w *Wizard) SelectLot(lot models.LotWithZone) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.mutableLocked(); err != nil {
		return err
	}
	if lot.Status != models.LotAvailable {
		return ErrLotNotAvailable
	}
	w.lot = &lot
	w.advanceLocked(StepPayment)
	return nil
}

// ChoosePayment picks the payment method and advances to at least step 3.
func (w *Wizard) ChoosePayment(method PaymentMethod) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.mutableLocked(); err != nil {
		return err
	}
	if _, err := ParsePaymentMethod(string(method)); err != nil {
		return err
	}
	if w.lot == nil {
		return ErrNoLotSelected
	}
	w.method = method
	w.advanceLocked(StepConfirm)
	return nil
}

// SetConfirmed sets the "this is my lot" toggle.
func (w *Wizard) SetConfirmed(confirmed bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.mutableLocked(); err != nil {
		return err
	}
	w.confirmed = confirmed
	return nil
}

// Reset returns to step 1 and clears every selection.
func (w *Wizard) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.mutableLocked(); err != nil {
		return err
	}
	w.step = StepSelect
	w.lot = nil
	w.method = ""
	w.confirmed = false
	return nil
}

// Validate returns the first reason the wizard cannot be submitted.
func (w *Wizard) Validate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.validateLocked()
}

func (w *Wizard) validateLocked() error {
	switch {
	case w.lot == nil:
		return ErrNoLotSelected
	case w.method == "":
		return ErrNoPaymentMethod
	case w.step < StepConfirm:
		// A method kept from before a lost race still has to be re-chosen.
		return ErrPaymentStepPending
	case !w.confirmed:
		return ErrNotConfirmed
	}
	return nil
}

// Submission is the frozen input of one commit attempt.
type Submission struct {
	UserID string
	Lot    models.LotWithZone
	Method PaymentMethod
}

// BeginSubmit validates and locks the wizard against a second concurrent
// submit. Exactly one of Complete, Conflict or Abort must follow.
func (w *Wizard) BeginSubmit() (Submission, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.reservation != nil {
		return Submission{}, ErrWizardDone
	}
	if w.submitting {
		return Submission{}, ErrSubmitInProgress
	}
	if err := w.validateLocked(); err != nil {
		return Submission{}, err
	}
	w.submitting = true
	return Submission{UserID: w.userID, Lot: *w.lot, Method: w.method}, nil
}

// Complete records the committed reservation. The wizard is finished.
func (w *Wizard) Complete(r models.Reservation) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	w.reservation = &r
}

// Conflict handles a lost race for the lot: the lot and confirmation are
// cleared and the buyer is sent back to step 1 to pick another lot. The
// payment method is kept.
func (w *Wizard) Conflict() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	w.lot = nil
	w.confirmed = false
	w.step = StepSelect
}

// Abort releases the submit lock after an I/O failure, leaving every
// selection as it was so the buyer can retry.
func (w *Wizard) Abort() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
}

// Touch records activity at now.
func (w *Wizard) Touch(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touched = now
}

// IdleSince returns the last activity time.
func (w *Wizard) IdleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.touched
}

func (w *Wizard) mutableLocked() error {
	if w.reservation != nil {
		return ErrWizardDone
	}
	if w.submitting {
		return ErrSubmitInProgress
	}
	return nil
}

func (w *Wizard) advanceLocked(to Step) {
	if w.step < to {
		w.step = to
	}
}

// WizardView is the client-facing state of a wizard.
type WizardView struct {
	Lot           *models.LotWithZone `json:"lot,omitempty"`
	Quote         *Quote              `json:"quote,omitempty"`
	ID            string              `json:"id"`
	PaymentMethod PaymentMethod       `json:"payment_method,omitempty"`
	ReservationID string              `json:"reservation_id,omitempty"`
	Step          Step                `json:"step"`
	Confirmed     bool                `json:"confirmed"`
	CanSubmit     bool                `json:"can_submit"`
	Done          bool                `json:"done"`
}

// View snapshots the wizard. The quote appears once a lot and method are
// chosen and is computed against now.
func (w *Wizard) View(policy Policy, now time.Time) WizardView {
	w.mu.Lock()
	defer w.mu.Unlock()

	v := WizardView{
		ID:            w.id,
		Step:          w.step,
		PaymentMethod: w.method,
		Confirmed:     w.confirmed,
		CanSubmit:     w.validateLocked() == nil && !w.submitting && w.reservation == nil,
		Done:          w.reservation != nil,
	}
	if w.lot != nil {
		lot := *w.lot
		v.Lot = &lot
		if w.method != "" {
			q := policy.NewQuote(lot.Price, w.method, now)
			v.Quote = &q
		}
	}
	if w.reservation != nil {
		v.ReservationID = w.reservation.ID
	}
	return v
}

// FilterCandidates returns the available lots matching query against lot
// id, label or zone name, case-insensitively. An empty query matches all.
func FilterCandidates(lots []models.LotWithZone, query string) []models.LotWithZone {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.LotWithZone, 0, len(lots))
	for _, lot := range lots {
		if lot.Status != models.LotAvailable {
			continue
		}
		if q == "" ||
			strings.Contains(strings.ToLower(lot.ID), q) ||
			strings.Contains(strings.ToLower(lot.Label), q) ||
			strings.Contains(strings.ToLower(lot.ZoneName()), q) {
			out = append(out, lot)
		}
	}
	return out
}
