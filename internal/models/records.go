package models

import (
	"database/sql/driver"
	"time"
)

// UserRole is the role flag carried by the identity collaborator.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ContactMethod is how a buyer prefers to be reached.
type ContactMethod string

const (
	ContactEmail    ContactMethod = "email"
	ContactPhone    ContactMethod = "phone"
	ContactWhatsApp ContactMethod = "whatsapp"
)

// Address is a buyer's postal address, stored as one JSONB column.
type Address struct {
	Country string `json:"country"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
}

// Scan implements sql.Scanner for JSONB columns.
func (a *Address) Scan(value interface{}) error {
	return scanJSON(value, a, "Address")
}

// Value implements driver.Valuer for JSONB columns.
func (a Address) Value() (driver.Value, error) {
	return valueJSON(a, "Address")
}

// Profile is a buyer or staff account.
type Profile struct {
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	ID               string        `json:"id"`
	FullName         string        `json:"full_name"`
	Email            string        `json:"email"`
	Phone            string        `json:"phone"`
	SecondaryPhone   string        `json:"secondary_phone"`
	Timezone         string        `json:"timezone"`
	PreferredContact ContactMethod `json:"preferred_contact_method"`
	Address          Address       `json:"address"`
	Role             UserRole      `json:"role"`
	KYCStatus        string        `json:"kyc_status"`
}

// ProfileUpdate edits a profile. Nil fields are unchanged.
type ProfileUpdate struct {
	FullName         *string
	Phone            *string
	SecondaryPhone   *string
	Timezone         *string
	PreferredContact *ContactMethod
	Address          *Address
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.FullName == nil && u.Phone == nil && u.SecondaryPhone == nil &&
		u.Timezone == nil && u.PreferredContact == nil && u.Address == nil
}

// Apply copies the set fields onto p.
func (u ProfileUpdate) Apply(p *Profile) {
	if u.FullName != nil {
		p.FullName = *u.FullName
	}
	if u.Phone != nil {
		p.Phone = *u.Phone
	}
	if u.SecondaryPhone != nil {
		p.SecondaryPhone = *u.SecondaryPhone
	}
	if u.Timezone != nil {
		p.Timezone = *u.Timezone
	}
	if u.PreferredContact != nil {
		p.PreferredContact = *u.PreferredContact
	}
	if u.Address != nil {
		p.Address = *u.Address
	}
}

// DocumentStatus is the review state of a KYC document.
type DocumentStatus string

const (
	DocumentPending  DocumentStatus = "pending"
	DocumentApproved DocumentStatus = "approved"
	DocumentRejected DocumentStatus = "rejected"
	DocumentRequired DocumentStatus = "required"
)

// Outstanding reports whether the document still needs buyer or staff action.
func (s DocumentStatus) Outstanding() bool {
	return s == DocumentPending || s == DocumentRequired
}

// Document is an uploaded KYC file.
type Document struct {
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Type        string         `json:"type"`
	FileName    string         `json:"file_name"`
	FileURL     string         `json:"file_url"`
	Status      DocumentStatus `json:"status"`
	ReviewNotes string         `json:"review_notes,omitempty"`
}

// TicketStatus is the state of a support ticket.
type TicketStatus string

const (
	TicketOpen             TicketStatus = "open"
	TicketWaitingOnUser    TicketStatus = "waiting_on_user"
	TicketWaitingOnSupport TicketStatus = "waiting_on_support"
	TicketResolved         TicketStatus = "resolved"
	TicketClosed           TicketStatus = "closed"
)

// IsOpen reports whether the ticket counts as open on the buyer dashboard.
func (s TicketStatus) IsOpen() bool {
	return s == TicketOpen || s == TicketWaitingOnUser || s == TicketWaitingOnSupport
}

// Valid reports whether s is a known ticket status.
func (s TicketStatus) Valid() bool {
	return s.IsOpen() || s == TicketResolved || s == TicketClosed
}

// TicketCategory is the buyer's classification of a support request.
type TicketCategory string

const (
	CategoryPayment     TicketCategory = "payment"
	CategoryReservation TicketCategory = "reservation"
	CategoryDocuments   TicketCategory = "documents"
	CategoryTechnical   TicketCategory = "technical"
	CategoryAccount     TicketCategory = "account"
	CategoryOther       TicketCategory = "other"
)

// TicketPriority is normal or urgent.
type TicketPriority string

const (
	PriorityNormal TicketPriority = "normal"
	PriorityUrgent TicketPriority = "urgent"
)

// SupportTicket is a buyer support thread header.
type SupportTicket struct {
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	Subject          string         `json:"subject"`
	Category         TicketCategory `json:"category"`
	Priority         TicketPriority `json:"priority"`
	Description      string         `json:"description"`
	PreferredContact ContactMethod  `json:"preferred_contact"`
	BestTime         string         `json:"best_time,omitempty"`
	Status           TicketStatus   `json:"status"`
}

// TicketMessage is one post in a ticket thread. IsAdmin marks staff replies.
type TicketMessage struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	SenderID  string    `json:"sender_id"`
	Message   string    `json:"message"`
	IsAdmin   bool      `json:"is_admin"`
}

// SavedLot is a lot bookmarked by a buyer.
type SavedLot struct {
	CreatedAt time.Time    `json:"created_at"`
	Lot       *LotWithZone `json:"lot,omitempty"`
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	LotID     string       `json:"lot_id"`
}
