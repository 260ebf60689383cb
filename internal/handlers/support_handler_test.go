package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "github.com/stwalsh4118/parcela/internal/errors"
	"github.com/stwalsh4118/parcela/internal/models"
	"github.com/stwalsh4118/parcela/internal/services"
)

func TestAPI_SupportTickets(t *testing.T) {
	api := setupAPI(t)
	buyer := api.token(t, "ana", models.RoleUser)
	staff := api.token(t, "staff", models.RoleAdmin)
	api.db.PutProfile(models.Profile{ID: "ana", FullName: "Ana Ruiz", Email: "ana@example.com"})

	w := api.do(t, http.MethodPost, "/api/v1/me/tickets", buyer, map[string]interface{}{
		"subject":  "Receipt missing",
		"category": "fees",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var invalid apierrors.ErrorResponse
	decode(t, w, &invalid)
	assert.Equal(t, apierrors.ErrValidation, invalid.Error.Code)
	assert.Contains(t, invalid.Error.Details, "category")
	assert.Contains(t, invalid.Error.Details, "description")

	w = api.do(t, http.MethodPost, "/api/v1/me/tickets", buyer, map[string]interface{}{
		"subject":           "Receipt missing",
		"category":          "payment",
		"priority":          "urgent",
		"description":       "Paid the fee on Monday.",
		"preferred_contact": "whatsapp",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var opened struct {
		Ticket models.SupportTicket `json:"ticket"`
	}
	decode(t, w, &opened)
	assert.Equal(t, models.TicketOpen, opened.Ticket.Status)
	assert.Equal(t, models.PriorityUrgent, opened.Ticket.Priority)
	ticketPath := "/api/v1/me/tickets/" + opened.Ticket.ID

	w = api.do(t, http.MethodGet, ticketPath, api.token(t, "ben", models.RoleUser), nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "other buyers cannot read the thread")

	w = api.do(t, http.MethodGet, "/api/v1/admin/tickets", buyer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/admin/tickets", staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var queue struct {
		Tickets []services.TicketSummary `json:"tickets"`
		Count   int                      `json:"count"`
	}
	decode(t, w, &queue)
	require.Equal(t, 1, queue.Count)
	require.NotNil(t, queue.Tickets[0].Requester)
	assert.Equal(t, "Ana Ruiz", queue.Tickets[0].Requester.FullName)

	w = api.do(t, http.MethodPost, "/api/v1/admin/tickets/"+opened.Ticket.ID+"/reply", staff, map[string]string{"message": "Resent it."})
	require.Equal(t, http.StatusCreated, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/admin/tickets", staff, nil)
	decode(t, w, &queue)
	assert.Zero(t, queue.Count, "replied ticket leaves the open queue")
	w = api.do(t, http.MethodGet, "/api/v1/admin/tickets?status=all", staff, nil)
	decode(t, w, &queue)
	assert.Equal(t, 1, queue.Count)
	w = api.do(t, http.MethodGet, "/api/v1/admin/tickets?status=archived", staff, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, ticketPath+"/messages", buyer, map[string]string{"message": "Got it, thanks."})
	require.Equal(t, http.StatusCreated, w.Code)

	w = api.do(t, http.MethodGet, ticketPath, buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var thread services.Thread
	decode(t, w, &thread)
	assert.Equal(t, models.TicketWaitingOnSupport, thread.Ticket.Status)
	require.Len(t, thread.Messages, 3)
	assert.True(t, thread.Messages[1].IsAdmin)

	w = api.do(t, http.MethodPatch, "/api/v1/admin/tickets/"+opened.Ticket.ID+"/status", staff, map[string]string{"status": "closed"})
	require.Equal(t, http.StatusOK, w.Code)
	w = api.do(t, http.MethodPost, ticketPath+"/messages", buyer, map[string]string{"message": "One more thing"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/me/tickets", buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine struct {
		Tickets []models.SupportTicket `json:"tickets"`
		Count   int                    `json:"count"`
	}
	decode(t, w, &mine)
	require.Equal(t, 1, mine.Count)
	assert.Equal(t, models.TicketClosed, mine.Tickets[0].Status)
}

func TestAPI_Profile(t *testing.T) {
	api := setupAPI(t)
	buyer := api.token(t, "ana", models.RoleUser)

	w := api.do(t, http.MethodGet, "/api/v1/me/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/me/profile", buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Profile models.Profile `json:"profile"`
	}
	decode(t, w, &got)
	assert.Equal(t, "ana", got.Profile.ID)
	assert.Empty(t, got.Profile.FullName)

	w = api.do(t, http.MethodPatch, "/api/v1/me/profile", buyer, map[string]interface{}{
		"preferred_contact_method": "fax",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPatch, "/api/v1/me/profile", buyer, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "empty edit")

	w = api.do(t, http.MethodPatch, "/api/v1/me/profile", buyer, map[string]interface{}{
		"full_name":                "Ana Ruiz",
		"preferred_contact_method": "whatsapp",
		"address":                  map[string]string{"country": "MX", "city": "La Paz", "zip": "23000"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, "/api/v1/me/profile", buyer, nil)
	decode(t, w, &got)
	assert.Equal(t, "Ana Ruiz", got.Profile.FullName)
	assert.Equal(t, models.ContactWhatsApp, got.Profile.PreferredContact)
	assert.Equal(t, "23000", got.Profile.Address.Zip)
}

func TestAPI_AdminUsers(t *testing.T) {
	api := setupAPI(t)
	staff := api.token(t, "boss", models.RoleAdmin)
	api.db.PutProfile(models.Profile{ID: "ana", Role: models.RoleUser})
	api.db.PutProfile(models.Profile{ID: "boss", Role: models.RoleAdmin})

	w := api.do(t, http.MethodGet, "/api/v1/admin/users", api.token(t, "ana", models.RoleUser), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/admin/users", staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users struct {
		Users []models.Profile `json:"users"`
		Count int              `json:"count"`
	}
	decode(t, w, &users)
	assert.Equal(t, 2, users.Count)

	tests := []struct {
		name   string
		target string
		body   map[string]string
		want   int
	}{
		{"promote", "ana", map[string]string{"role": "admin"}, http.StatusOK},
		{"unknown role", "ana", map[string]string{"role": "owner"}, http.StatusBadRequest},
		{"own role", "boss", map[string]string{"role": "user"}, http.StatusBadRequest},
		{"missing user", "nobody", map[string]string{"role": "admin"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, http.MethodPatch, "/api/v1/admin/users/"+tt.target+"/role", staff, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}
