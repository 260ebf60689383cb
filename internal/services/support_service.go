package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stwalsh4118/parcela/internal/logger"
	"github.com/stwalsh4118/parcela/internal/models"
	"github.com/stwalsh4118/parcela/internal/repository"
)

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrTicketClosed   = errors.New("ticket is closed")
	ErrEmptyMessage   = errors.New("message is required")
	ErrInvalidTicket  = errors.New("invalid ticket")
)

// NewTicket is a buyer's support request. Description becomes the first
// message of the thread.
type NewTicket struct {
	Subject          string
	Category         models.TicketCategory
	Priority         models.TicketPriority
	Description      string
	PreferredContact models.ContactMethod
	BestTime         string
}

// Thread is a ticket with its messages, oldest first.
type Thread struct {
	Ticket   models.SupportTicket   `json:"ticket"`
	Messages []models.TicketMessage `json:"messages"`
}

// Requester is the profile summary shown next to a ticket in the console.
type Requester struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// TicketSummary is one row of the staff ticket queue.
type TicketSummary struct {
	models.SupportTicket
	Requester *Requester `json:"requester,omitempty"`
}

// TicketService runs buyer support threads and the staff queue.
type TicketService struct {
	tickets  repository.TicketRepository
	profiles repository.ProfileRepository
	log      *logger.Logger
}

// NewTicketService creates a ticket service.
func NewTicketService(tickets repository.TicketRepository, profiles repository.ProfileRepository, log *logger.Logger) *TicketService {
	return &TicketService{tickets: tickets, profiles: profiles, log: log.Named("support")}
}

// Open files a new ticket for userID with status open.
func (s *TicketService) Open(ctx context.Context, userID string, req NewTicket) (*models.SupportTicket, error) {
	subject := strings.TrimSpace(req.Subject)
	description := strings.TrimSpace(req.Description)
	if subject == "" || description == "" {
		return nil, fmt.Errorf("%w: subject and description are required", ErrInvalidTicket)
	}
	if req.Priority == "" {
		req.Priority = models.PriorityNormal
	}
	if req.Category == "" {
		req.Category = models.CategoryOther
	}
	if req.PreferredContact == "" {
		req.PreferredContact = models.ContactEmail
	}

	ticket, err := s.tickets.Create(ctx, models.SupportTicket{
		UserID:           userID,
		Subject:          subject,
		Category:         req.Category,
		Priority:         req.Priority,
		Description:      description,
		PreferredContact: req.PreferredContact,
		BestTime:         strings.TrimSpace(req.BestTime),
		Status:           models.TicketOpen,
	}, models.TicketMessage{SenderID: userID, Message: description})
	if err != nil {
		return nil, fmt.Errorf("failed to open ticket: %w", err)
	}

	s.log.Info("Support ticket opened", map[string]interface{}{
		"ticket_id": ticket.ID,
		"user_id":   userID,
		"category":  ticket.Category,
		"priority":  ticket.Priority,
	})
	return ticket, nil
}

// ListMine returns the buyer's tickets, most recently active first.
func (s *TicketService) ListMine(ctx context.Context, userID string) ([]models.SupportTicket, error) {
	tickets, err := s.tickets.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

// Thread returns a ticket and its messages. Buyers only see their own
// tickets; staff see every ticket.
func (s *TicketService) Thread(ctx context.Context, userID string, staff bool, ticketID string) (*Thread, error) {
	ticket, err := s.visible(ctx, userID, staff, ticketID)
	if err != nil {
		return nil, err
	}
	messages, err := s.tickets.Messages(ctx, ticket.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket messages: %w", err)
	}
	return &Thread{Ticket: *ticket, Messages: messages}, nil
}

// PostMessage adds a buyer message to their own ticket. A reply to a
// ticket waiting on the buyer, or one already resolved, hands it back to
// support. Closed tickets take no more messages.
func (s *TicketService) PostMessage(ctx context.Context, userID, ticketID, body string) (*models.TicketMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyMessage
	}
	ticket, err := s.visible(ctx, userID, false, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == models.TicketClosed {
		return nil, ErrTicketClosed
	}

	var next *models.TicketStatus
	if ticket.Status == models.TicketWaitingOnUser || ticket.Status == models.TicketResolved {
		status := models.TicketWaitingOnSupport
		next = &status
	}
	return s.addMessage(ctx, models.TicketMessage{TicketID: ticket.ID, SenderID: userID, Message: body}, next)
}

// Reply posts a staff message and leaves the ticket waiting on the buyer.
func (s *TicketService) Reply(ctx context.Context, adminID, ticketID, body string) (*models.TicketMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyMessage
	}
	waiting := models.TicketWaitingOnUser
	return s.addMessage(ctx, models.TicketMessage{TicketID: ticketID, SenderID: adminID, Message: body, IsAdmin: true}, &waiting)
}

func (s *TicketService) addMessage(ctx context.Context, msg models.TicketMessage, next *models.TicketStatus) (*models.TicketMessage, error) {
	created, err := s.tickets.AddMessage(ctx, msg, next)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to post message: %w", err)
	}
	fields := map[string]interface{}{"ticket_id": msg.TicketID, "sender_id": msg.SenderID, "is_admin": msg.IsAdmin}
	if next != nil {
		fields["status"] = *next
	}
	s.log.Info("Ticket message posted", fields)
	return created, nil
}

// SetStatus moves a ticket to any known status.
func (s *TicketService) SetStatus(ctx context.Context, ticketID string, status models.TicketStatus) (*models.SupportTicket, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	ticket, err := s.tickets.UpdateStatus(ctx, ticketID, status)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update ticket: %w", err)
	}
	s.log.Info("Ticket status changed", map[string]interface{}{"ticket_id": ticketID, "status": status})
	return ticket, nil
}

// List returns the staff queue newest first, restricted to status when
// non-empty, with each requester's name and email.
func (s *TicketService) List(ctx context.Context, status models.TicketStatus) ([]TicketSummary, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	tickets, err := s.tickets.List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	requesters := map[string]*Requester{}
	out := make([]TicketSummary, 0, len(tickets))
	for _, t := range tickets {
		r, seen := requesters[t.UserID]
		if !seen {
			r, err = s.requester(ctx, t.UserID)
			if err != nil {
				return nil, err
			}
			requesters[t.UserID] = r
		}
		out = append(out, TicketSummary{SupportTicket: t, Requester: r})
	}
	return out, nil
}

func (s *TicketService) requester(ctx context.Context, userID string) (*Requester, error) {
	p, err := s.profiles.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load requester: %w", err)
	}
	return &Requester{FullName: p.FullName, Email: p.Email}, nil
}

// visible loads a ticket, hiding other buyers' tickets as not found.
func (s *TicketService) visible(ctx context.Context, userID string, staff bool, ticketID string) (*models.SupportTicket, error) {
	ticket, err := s.tickets.Get(ctx, ticketID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket: %w", err)
	}
	if !staff && ticket.UserID != userID {
		return nil, ErrTicketNotFound
	}
	return ticket, nil
}
