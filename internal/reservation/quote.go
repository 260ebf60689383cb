// Package reservation holds the buyer reservation wizard, the arithmetic
// of a new reservation and the read-time lifecycle derivations shown on
// the dashboard. Nothing here performs I/O.
package reservation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/parcela/internal/config"
	"github.com/stwalsh4118/parcela/internal/models"
)

var (
	// ErrValidation is the parent of every pre-commit validation failure.
	ErrValidation = errors.New("reservation validation failed")

	ErrNoLotSelected        = fmt.Errorf("%w: no lot selected", ErrValidation)
	ErrNoPaymentMethod      = fmt.Errorf("%w: no payment method chosen", ErrValidation)
	ErrPaymentStepPending   = fmt.Errorf("%w: payment step not completed", ErrValidation)
	ErrNotConfirmed         = fmt.Errorf("%w: lot not confirmed", ErrValidation)
	ErrInvalidPaymentMethod = fmt.Errorf("%w: unknown payment method", ErrValidation)
	ErrLotNotAvailable      = fmt.Errorf("%w: lot is not available", ErrValidation)
)

// PaymentMethod is the buyer's choice on step 2.
type PaymentMethod string

const (
	MethodFinancing PaymentMethod = "financing"
	MethodOutright  PaymentMethod = "outright"
)

// ParsePaymentMethod validates s.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case MethodFinancing, MethodOutright:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, s)
}

// Plan maps the method onto the stored payment plan.
func (m PaymentMethod) Plan() models.PaymentPlan {
	if m == MethodFinancing {
		return models.PlanMonthly
	}
	return models.PlanOneTime
}

// Policy is the set of business constants applied to every new reservation.
type Policy struct {
	Fee             int64
	NextPaymentDays int
	ExpiryDays      int
	InitialStatus   models.ReservationStatus
}

// DefaultPolicy is a $5,000 fee, next payment in 15 days, expiry in 30 days
// and immediate activation.
func DefaultPolicy() Policy {
	return Policy{
		Fee:             5000,
		NextPaymentDays: 15,
		ExpiryDays:      30,
		InitialStatus:   models.ReservationActive,
	}
}

// PolicyFromConfig builds the policy from validated configuration.
func PolicyFromConfig(cfg config.ReservationConfig) Policy {
	p := Policy{
		Fee:             cfg.Fee,
		NextPaymentDays: cfg.NextPaymentDays,
		ExpiryDays:      cfg.ExpiryDays,
		InitialStatus:   models.ReservationActive,
	}
	if cfg.InitialStatus == config.InitialStatusPending {
		p.InitialStatus = models.ReservationPending
	}
	return p
}

// Quote is what step 3 displays before submission.
type Quote struct {
	NextPaymentDue time.Time          `json:"next_payment_due"`
	ExpiryDate     time.Time          `json:"expiry_date"`
	PaymentPlan    models.PaymentPlan `json:"payment_plan"`
	Price          int64              `json:"price"`
	Fee            int64              `json:"reservation_fee"`
	BalanceDue     int64              `json:"balance_due"`
}

// NewQuote computes the costs of reserving a lot priced price at now.
func (p Policy) NewQuote(price int64, method PaymentMethod, now time.Time) Quote {
	return Quote{
		Price:          price,
		Fee:            p.Fee,
		BalanceDue:     price - p.Fee,
		PaymentPlan:    method.Plan(),
		NextPaymentDue: now.AddDate(0, 0, p.NextPaymentDays),
		ExpiryDate:     now.AddDate(0, 0, p.ExpiryDays),
	}
}

// NewReservation builds the record committed on submit. The buyer owes the
// full price and has paid the fee.
func (p Policy) NewReservation(userID string, lot models.Lot, method PaymentMethod, now time.Time) models.Reservation {
	q := p.NewQuote(lot.Price, method, now)
	next, expiry := q.NextPaymentDue, q.ExpiryDate
	return models.Reservation{
		ID:             uuid.NewString(),
		UserID:         userID,
		LotID:          lot.ID,
		Status:         p.InitialStatus,
		PaymentPlan:    q.PaymentPlan,
		AmountDue:      lot.Price,
		AmountPaid:     p.Fee,
		ReservationFee: p.Fee,
		NextPaymentDue: &next,
		ExpiryDate:     &expiry,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
