package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/parcela/internal/logger"
	"github.com/stwalsh4118/parcela/internal/models"
	"github.com/stwalsh4118/parcela/internal/repository/memory"
)

func newTicketService(t *testing.T) (*TicketService, *memory.DB) {
	t.Helper()
	db := memory.New()
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	db.SetClock(func() time.Time {
		now = now.Add(time.Minute)
		return now
	})
	store := db.Store()
	return NewTicketService(store.Tickets, store.Profiles, logger.Nop()), db
}

func openTicket(t *testing.T, s *TicketService, userID string) *models.SupportTicket {
	t.Helper()
	ticket, err := s.Open(context.Background(), userID, NewTicket{
		Subject:     "Receipt missing",
		Category:    models.CategoryPayment,
		Description: "Paid the fee, no receipt yet.",
	})
	require.NoError(t, err)
	return ticket
}

func TestTickets_Open(t *testing.T) {
	s, _ := newTicketService(t)
	ctx := context.Background()

	ticket := openTicket(t, s, "ana")
	assert.Equal(t, models.TicketOpen, ticket.Status)
	assert.Equal(t, models.PriorityNormal, ticket.Priority)
	assert.Equal(t, models.ContactEmail, ticket.PreferredContact)

	thread, err := s.Thread(ctx, "ana", false, ticket.ID)
	require.NoError(t, err)
	require.Len(t, thread.Messages, 1)
	assert.Equal(t, "Paid the fee, no receipt yet.", thread.Messages[0].Message, "description opens the thread")
	assert.False(t, thread.Messages[0].IsAdmin)

	tests := []struct {
		name string
		req  NewTicket
	}{
		{"missing subject", NewTicket{Description: "x"}},
		{"blank description", NewTicket{Subject: "x", Description: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Open(ctx, "ana", tt.req)
			assert.ErrorIs(t, err, ErrInvalidTicket)
		})
	}
}

func TestTickets_Visibility(t *testing.T) {
	s, _ := newTicketService(t)
	ctx := context.Background()
	ticket := openTicket(t, s, "ana")

	_, err := s.Thread(ctx, "ben", false, ticket.ID)
	assert.ErrorIs(t, err, ErrTicketNotFound, "other buyers cannot see the thread")
	_, err = s.PostMessage(ctx, "ben", ticket.ID, "hello")
	assert.ErrorIs(t, err, ErrTicketNotFound)

	_, err = s.Thread(ctx, "staff", true, ticket.ID)
	assert.NoError(t, err)
	_, err = s.Thread(ctx, "ana", false, "missing")
	assert.ErrorIs(t, err, ErrTicketNotFound)

	mine, err := s.ListMine(ctx, "ana")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	theirs, err := s.ListMine(ctx, "ben")
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestTickets_ConversationStatus(t *testing.T) {
	s, _ := newTicketService(t)
	ctx := context.Background()
	ticket := openTicket(t, s, "ana")

	steps := []struct {
		name   string
		post   func() error
		status models.TicketStatus
	}{
		{"buyer follow-up keeps open", func() error {
			_, err := s.PostMessage(ctx, "ana", ticket.ID, "Any news?")
			return err
		}, models.TicketOpen},
		{"staff reply waits on buyer", func() error {
			_, err := s.Reply(ctx, "staff", ticket.ID, "Resent to your inbox.")
			return err
		}, models.TicketWaitingOnUser},
		{"buyer answer hands back to support", func() error {
			_, err := s.PostMessage(ctx, "ana", ticket.ID, "Still nothing.")
			return err
		}, models.TicketWaitingOnSupport},
		{"resolved", func() error {
			_, err := s.SetStatus(ctx, ticket.ID, models.TicketResolved)
			return err
		}, models.TicketResolved},
		{"buyer reopens resolved ticket", func() error {
			_, err := s.PostMessage(ctx, "ana", ticket.ID, "It bounced again.")
			return err
		}, models.TicketWaitingOnSupport},
	}
	for _, step := range steps {
		require.NoError(t, step.post(), step.name)
		thread, err := s.Thread(ctx, "ana", false, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, step.status, thread.Ticket.Status, step.name)
	}

	thread, err := s.Thread(ctx, "ana", false, ticket.ID)
	require.NoError(t, err)
	require.Len(t, thread.Messages, 5)
	assert.True(t, thread.Messages[2].IsAdmin)
	assert.Equal(t, "staff", thread.Messages[2].SenderID)

	_, err = s.SetStatus(ctx, ticket.ID, models.TicketClosed)
	require.NoError(t, err)
	_, err = s.PostMessage(ctx, "ana", ticket.ID, "hello?")
	assert.ErrorIs(t, err, ErrTicketClosed)
	_, err = s.PostMessage(ctx, "ana", ticket.ID, "  ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = s.SetStatus(ctx, ticket.ID, "archived")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = s.SetStatus(ctx, "missing", models.TicketOpen)
	assert.ErrorIs(t, err, ErrTicketNotFound)
	_, err = s.Reply(ctx, "staff", "missing", "hi")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestTickets_StaffQueue(t *testing.T) {
	s, db := newTicketService(t)
	ctx := context.Background()
	db.PutProfile(models.Profile{ID: "ana", FullName: "Ana Ruiz", Email: "ana@example.com"})

	first := openTicket(t, s, "ana")
	second := openTicket(t, s, "ghost")
	_, err := s.Reply(ctx, "staff", first.ID, "On it.")
	require.NoError(t, err)

	open, err := s.List(ctx, models.TicketOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].ID)
	assert.Nil(t, open[0].Requester, "tickets from users without a profile still list")

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")
	require.NotNil(t, all[1].Requester)
	assert.Equal(t, "Ana Ruiz", all[1].Requester.FullName)
	assert.Equal(t, "ana@example.com", all[1].Requester.Email)

	_, err = s.List(ctx, "archived")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
