package reservation

import (
	"math"
	"strings"
	"time"

	"github.com/stwalsh4118/parcela/internal/models"
)

// ExpiryWarningDays is how close an expiry must be to raise a dashboard alert.
const ExpiryWarningDays = 7

// ProgressRatio is amount paid over amount due, or 0 when nothing is due.
func ProgressRatio(r models.Reservation) float64 {
	if r.AmountDue <= 0 {
		return 0
	}
	return float64(r.AmountPaid) / float64(r.AmountDue)
}

// ProgressPercent is the ratio as a percentage clamped to [0, 100].
func ProgressPercent(r models.Reservation) float64 {
	return math.Max(0, math.Min(100, ProgressRatio(r)*100))
}

// IsLate reports whether the next payment date has passed on a reservation
// that is not completed.
func IsLate(r models.Reservation, now time.Time) bool {
	if r.NextPaymentDue == nil || r.Status == models.ReservationCompleted {
		return false
	}
	return r.NextPaymentDue.Before(now)
}

// DaysRemaining returns whole days until expiry rounded up, never negative.
// It is nil when the reservation has no expiry.
func DaysRemaining(r models.Reservation, now time.Time) *int {
	if r.ExpiryDate == nil {
		return nil
	}
	days := int(math.Ceil(r.ExpiryDate.Sub(now).Hours() / 24))
	if days < 0 {
		days = 0
	}
	return &days
}

// BalanceDue is what the buyer still owes.
func BalanceDue(r models.Reservation) int64 {
	return r.AmountDue - r.AmountPaid
}

// ExpiringSoon reports an expiry within ExpiryWarningDays that has not
// already passed.
func ExpiringSoon(r models.Reservation, now time.Time) bool {
	d := DaysRemaining(r, now)
	return d != nil && *d > 0 && *d <= ExpiryWarningDays
}

// CanWithdraw reports whether the owner may still cancel the reservation.
func CanWithdraw(r models.Reservation, now time.Time) bool {
	if !r.Status.IsOpen() {
		return false
	}
	return r.ExpiryDate == nil || now.Before(*r.ExpiryDate)
}

// View is a reservation decorated with every read-time derivation.
type View struct {
	models.ReservationWithLot
	WithdrawUntil   *time.Time `json:"withdraw_until,omitempty"`
	DaysRemaining   *int       `json:"days_remaining"`
	StatusLabel     string     `json:"status_label"`
	ProgressPercent float64    `json:"progress_percent"`
	BalanceDue      int64      `json:"balance_due"`
	IsLate          bool       `json:"is_late"`
	LateFeeWarning  bool       `json:"late_fee_warning"`
	ExpiringSoon    bool       `json:"expiring_soon"`
	CanWithdraw     bool       `json:"can_withdraw"`
}

// NewView derives the view of r at now. Nothing is written back.
func NewView(r models.ReservationWithLot, now time.Time) View {
	late := IsLate(r.Reservation, now)
	v := View{
		ReservationWithLot: r,
		DaysRemaining:      DaysRemaining(r.Reservation, now),
		ProgressPercent:    ProgressPercent(r.Reservation),
		BalanceDue:         BalanceDue(r.Reservation),
		IsLate:             late,
		LateFeeWarning:     late,
		ExpiringSoon:       ExpiringSoon(r.Reservation, now),
		CanWithdraw:        CanWithdraw(r.Reservation, now),
		StatusLabel:        statusLabel(r.Status, late),
	}
	if !late && r.Status == models.ReservationActive {
		v.WithdrawUntil = r.ExpiryDate
	}
	return v
}

func statusLabel(s models.ReservationStatus, late bool) string {
	if late {
		return "Late"
	}
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

var transitions = map[models.ReservationStatus][]models.ReservationStatus{
	models.ReservationPending: {models.ReservationActive, models.ReservationCancelled, models.ReservationExpired},
	models.ReservationActive:  {models.ReservationCompleted, models.ReservationCancelled, models.ReservationExpired},
}

// CanTransition reports whether staff may move a reservation from one status to another.
func CanTransition(from, to models.ReservationStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// LotStatusAfter returns the lot status implied by moving a reservation to
// status, and false when the lot is left alone.
func LotStatusAfter(status models.ReservationStatus) (models.LotStatus, bool) {
	switch status {
	case models.ReservationCompleted:
		return models.LotSold, true
	case models.ReservationCancelled, models.ReservationExpired:
		return models.LotAvailable, true
	}
	return "", false
}
