package models

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationActive    ReservationStatus = "active"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationExpired   ReservationStatus = "expired"
)

// Valid reports whether s is a known reservation status.
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationPending, ReservationActive, ReservationCompleted,
		ReservationCancelled, ReservationExpired:
		return true
	}
	return false
}

// IsOpen reports whether the reservation still holds its lot.
func (s ReservationStatus) IsOpen() bool {
	return s == ReservationPending || s == ReservationActive
}

// PaymentPlan is how the balance is settled.
type PaymentPlan string

const (
	PlanMonthly PaymentPlan = "monthly"
	PlanOneTime PaymentPlan = "one-time"
)

// Reservation is a time-bounded buyer claim on a lot. Money is whole USD.
type Reservation struct {
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	NextPaymentDue *time.Time        `json:"next_payment_due,omitempty"`
	ExpiryDate     *time.Time        `json:"expiry_date,omitempty"`
	ID             string            `json:"id"`
	UserID         string            `json:"user_id"`
	LotID          string            `json:"lot_id"`
	Status         ReservationStatus `json:"status"`
	PaymentPlan    PaymentPlan       `json:"payment_plan"`
	AmountDue      int64             `json:"amount_due"`
	AmountPaid     int64             `json:"amount_paid"`
	ReservationFee int64             `json:"reservation_fee"`
}

// ReservationWithLot is a reservation joined with its lot and zone.
type ReservationWithLot struct {
	Lot *LotWithZone `json:"lot,omitempty"`
	Reservation
}

// ReservationFilter narrows reservation listings. Zero values match everything.
type ReservationFilter struct {
	UserID   string
	Statuses []ReservationStatus
}
