package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "github.com/stwalsh4118/parcela/internal/errors"
	"github.com/stwalsh4118/parcela/internal/events"
	"github.com/stwalsh4118/parcela/internal/logger"
	"github.com/stwalsh4118/parcela/internal/mapview"
	"github.com/stwalsh4118/parcela/internal/middleware"
	"github.com/stwalsh4118/parcela/internal/models"
	"github.com/stwalsh4118/parcela/internal/repository/memory"
	"github.com/stwalsh4118/parcela/internal/reservation"
	"github.com/stwalsh4118/parcela/internal/services"
	"github.com/stwalsh4118/parcela/internal/storage"
	"github.com/stwalsh4118/parcela/internal/subdivision"
)

const testSecret = "test-secret"

// recordingStore is a BlobStore that keeps uploads in memory.
type recordingStore struct {
	keys []string
}

func (s *recordingStore) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	s.keys = append(s.keys, key)
	return "https://files.example.com/" + key, nil
}

type testAPI struct {
	router *gin.Engine
	db     *memory.DB
	maps   *services.MapService
	auth   *middleware.Authenticator
	blobs  *recordingStore
}

// setupAPI wires every handler over a seeded in-memory store.
func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	ctx := context.Background()

	db := memory.New()
	store := db.Store()
	catalogSeed := services.NewSeedService(store.Catalog, store.Lots, log)
	_, err := catalogSeed.Seed(ctx, subdivision.Catalog(), subdivision.DefaultGrid())
	require.NoError(t, err)

	bus := events.NewLocalBus()
	maps := services.NewMapService(store.Zones, store.Lots, nil, mapview.DefaultConfig(), log)
	_, err = maps.Watch(bus)
	require.NoError(t, err)

	catalog := services.NewCatalogService(store.Zones, store.Lots, log)
	wizards := reservation.NewWizardStore(30*time.Minute, nil)
	res := services.NewReservationService(store, wizards, reservation.DefaultPolicy(), bus, maps, log)
	blobs := &recordingStore{}
	docs := services.NewDocumentService(store.Documents, blobs, log)
	auth := middleware.NewAuthenticator(testSecret, "")

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	Register(router, Routes{
		Health:       NewHealthHandler("test"),
		Lots:         NewLotHandler(catalog),
		Maps:         NewMapHandler(maps),
		MapSocket:    NewMapSocketHandler(maps, catalog, mapview.DefaultConfig(), []string{"*"}, log),
		Reservations: NewReservationHandler(res),
		Account: NewAccountHandler(
			services.NewDashboardService(store, nil),
			services.NewSavedLotService(store.SavedLots),
			docs,
		),
		Admin:    NewAdminHandler(services.NewAdminService(store, res, bus, maps, log), docs),
		Support:  NewSupportHandler(services.NewTicketService(store.Tickets, store.Profiles, log)),
		Profiles: NewProfileHandler(services.NewProfileService(store.Profiles, log)),
		Auth:     auth,
	})

	return &testAPI{router: router, db: db, maps: maps, auth: auth, blobs: blobs}
}

func (a *testAPI) token(t *testing.T, userID string, role models.UserRole) string {
	t.Helper()
	tok, err := a.auth.Issue(userID, role, time.Hour)
	require.NoError(t, err)
	return tok
}

// makeAvailable turns bajada-sur-A1 into an available 68,000 lot.
func (a *testAPI) makeAvailable(t *testing.T) {
	t.Helper()
	lot, err := a.db.Store().Lots.Get(context.Background(), "bajada-sur-A1")
	require.NoError(t, err)
	lot.Status = models.LotAvailable
	lot.Price = 68000
	a.db.PutLot(lot.Lot)
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp apierrors.ErrorResponse
	decode(t, w, &resp)
	return resp.Error.Code
}

func TestAPI_MapSources(t *testing.T) {
	api := setupAPI(t)

	w := api.do(t, http.MethodGet, "/api/v1/map/lots", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, geoJSONContentType, w.Header().Get("Content-Type"))
	var lots struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	decode(t, w, &lots)
	assert.Equal(t, "FeatureCollection", lots.Type)
	assert.Len(t, lots.Features, 120)

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/map/zones", 6},
		{"/api/v1/map/zone-labels", 6},
		{"/api/v1/map/lot-labels", 120},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := api.do(t, http.MethodGet, tt.path, "", nil)
			require.Equal(t, http.StatusOK, w.Code)
			var fc struct {
				Features []json.RawMessage `json:"features"`
			}
			decode(t, w, &fc)
			assert.Len(t, fc.Features, tt.want)
		})
	}

	w = api.do(t, http.MethodGet, "/api/v1/map/style", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var style mapview.Style
	decode(t, w, &style)
	assert.Equal(t, mapview.ColorAvailable, style.StatusColors[models.LotAvailable])
}

func TestAPI_LotDetailCTA(t *testing.T) {
	api := setupAPI(t)

	w := api.do(t, http.MethodGet, "/api/v1/lots/loma-poniente-A3/detail", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var anonymous mapview.LotDetail
	decode(t, w, &anonymous)
	assert.Equal(t, mapview.CTAReserve, anonymous.CTA.Kind)
	assert.Equal(t, mapview.LoginRedirect(mapview.ReservePath("loma-poniente-A3")), anonymous.CTA.Href)

	w = api.do(t, http.MethodGet, "/api/v1/lots/loma-poniente-A3/detail", api.token(t, "buyer", models.RoleUser), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var signedIn mapview.LotDetail
	decode(t, w, &signedIn)
	assert.Equal(t, mapview.ReservePath("loma-poniente-A3"), signedIn.CTA.Href)

	w = api.do(t, http.MethodGet, "/api/v1/lots/loma-poniente-A2/detail", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sold mapview.LotDetail
	decode(t, w, &sold)
	assert.NotEqual(t, mapview.CTAReserve, sold.CTA.Kind, "sold lots only offer information")

	w = api.do(t, http.MethodGet, "/api/v1/lots/nowhere/detail", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/lots/loma-poniente-A3/detail", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "a bad token is rejected even on public routes")
}

func TestAPI_ReservationWizard(t *testing.T) {
	api := setupAPI(t)
	api.makeAvailable(t)
	buyer := api.token(t, "buyer", models.RoleUser)

	w := api.do(t, http.MethodPost, "/api/v1/reservations/wizard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/reservations/wizard", buyer, StartWizardRequest{LotID: "bajada-sur-A1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var started WizardResponse
	decode(t, w, &started)
	assert.Equal(t, reservation.StepPayment, started.Wizard.Step)
	base := "/api/v1/reservations/wizard/" + started.Wizard.ID

	w = api.do(t, http.MethodPost, base+"/payment", buyer, PaymentRequest{Method: "barter"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apierrors.ErrValidation, errorCode(t, w))

	w = api.do(t, http.MethodPost, base+"/payment", buyer, PaymentRequest{Method: "financing"})
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodPost, base+"/submit", buyer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "unconfirmed wizard cannot submit")

	confirmed := true
	w = api.do(t, http.MethodPost, base+"/confirm", buyer, ConfirmRequest{Confirmed: &confirmed})
	require.Equal(t, http.StatusOK, w.Code)
	var ready WizardResponse
	decode(t, w, &ready)
	assert.True(t, ready.Wizard.CanSubmit)

	w = api.do(t, http.MethodGet, base, api.token(t, "someone-else", models.RoleUser), nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "wizards are private to their buyer")

	w = api.do(t, http.MethodPost, base+"/submit", buyer, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var submitted SubmitResponse
	decode(t, w, &submitted)
	assert.Equal(t, models.ReservationActive, submitted.Reservation.Status)
	assert.Equal(t, models.PlanMonthly, submitted.Reservation.PaymentPlan)
	assert.True(t, submitted.Wizard.Done)

	w = api.do(t, http.MethodGet, "/api/v1/lots/bajada-sur-A1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var lot LotResponse
	decode(t, w, &lot)
	assert.Equal(t, models.LotReserved, lot.Lot.Status)

	w = api.do(t, http.MethodGet, "/api/v1/me/reservations", buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine struct {
		Reservations []reservation.View `json:"reservations"`
		Count        int                `json:"count"`
	}
	decode(t, w, &mine)
	assert.Equal(t, 1, mine.Count)

	w = api.do(t, http.MethodPost, "/api/v1/me/reservations/"+submitted.Reservation.ID+"/withdraw", api.token(t, "intruder", models.RoleUser), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/me/reservations/"+submitted.Reservation.ID+"/withdraw", buyer, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, "/api/v1/lots/bajada-sur-A1", "", nil)
	decode(t, w, &lot)
	assert.Equal(t, models.LotAvailable, lot.Lot.Status, "withdrawal releases the lot")
}

func TestAPI_ReservationConflict(t *testing.T) {
	api := setupAPI(t)
	api.makeAvailable(t)
	confirmed := true

	start := func(user string) (string, string) {
		tok := api.token(t, user, models.RoleUser)
		w := api.do(t, http.MethodPost, "/api/v1/reservations/wizard", tok, StartWizardRequest{LotID: "bajada-sur-A1"})
		require.Equal(t, http.StatusCreated, w.Code)
		var resp WizardResponse
		decode(t, w, &resp)
		base := "/api/v1/reservations/wizard/" + resp.Wizard.ID
		require.Equal(t, http.StatusOK, api.do(t, http.MethodPost, base+"/payment", tok, PaymentRequest{Method: "outright"}).Code)
		require.Equal(t, http.StatusOK, api.do(t, http.MethodPost, base+"/confirm", tok, ConfirmRequest{Confirmed: &confirmed}).Code)
		return tok, base
	}

	firstTok, firstBase := start("first")
	secondTok, secondBase := start("second")

	w := api.do(t, http.MethodPost, firstBase+"/submit", firstTok, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = api.do(t, http.MethodPost, secondBase+"/submit", secondTok, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Wizard reservation.WizardView `json:"wizard"`
			} `json:"details"`
		} `json:"error"`
	}
	decode(t, w, &resp)
	assert.Equal(t, apierrors.ErrLotUnavailable, resp.Error.Code)
	assert.Equal(t, reservation.StepSelect, resp.Error.Details.Wizard.Step)
	assert.Nil(t, resp.Error.Details.Wizard.Lot, "the lost lot is cleared for re-selection")

	w = api.do(t, http.MethodGet, secondBase+"/lots?q=bajada", secondTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var candidates LotsResponse
	decode(t, w, &candidates)
	for _, lot := range candidates.Lots {
		assert.Equal(t, models.LotAvailable, lot.Status)
		assert.NotEqual(t, "bajada-sur-A1", lot.ID)
	}
}

func TestAPI_SavedLots(t *testing.T) {
	api := setupAPI(t)
	buyer := api.token(t, "buyer", models.RoleUser)

	w := api.do(t, http.MethodPost, "/api/v1/me/saved-lots", buyer, SaveLotRequest{LotID: "loma-poniente-A3"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/me/saved-lots", buyer, SaveLotRequest{LotID: "loma-poniente-A3"})
	require.Equal(t, http.StatusOK, w.Code)
	var dup services.SaveResult
	decode(t, w, &dup)
	assert.True(t, dup.AlreadySaved)
	assert.Equal(t, "Already saved", dup.Message)

	w = api.do(t, http.MethodPost, "/api/v1/me/saved-lots", buyer, SaveLotRequest{LotID: "nowhere"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/me/saved-lots", buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = api.do(t, http.MethodDelete, "/api/v1/me/saved-lots/loma-poniente-A3", buyer, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = api.do(t, http.MethodDelete, "/api/v1/me/saved-lots/loma-poniente-A3", buyer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_Dashboard(t *testing.T) {
	api := setupAPI(t)
	w := api.do(t, http.MethodGet, "/api/v1/me/dashboard", api.token(t, "buyer", models.RoleUser), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var d services.Dashboard
	decode(t, w, &d)
	assert.Equal(t, services.DefaultDocumentTotal, d.Counts.DocumentsTotal)
	assert.Zero(t, d.Counts.ReservedLots)
}

func multipartUpload(t *testing.T, docType, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("type", docType))
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestAPI_DocumentUpload(t *testing.T) {
	api := setupAPI(t)
	buyer := api.token(t, "buyer", models.RoleUser)

	tests := []struct {
		name       string
		docType    string
		fileName   string
		wantStatus int
	}{
		{"pdf accepted", "id", "passport.pdf", http.StatusCreated},
		{"png accepted", "proof_of_address", "bill.png", http.StatusCreated},
		{"executable rejected", "id", "virus.exe", http.StatusBadRequest},
		{"missing type", "", "passport.pdf", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartUpload(t, tt.docType, tt.fileName, []byte("content"))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/me/documents", body)
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("Authorization", "Bearer "+buyer)
			w := httptest.NewRecorder()
			api.router.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
	assert.Len(t, api.blobs.keys, 2)

	w := api.do(t, http.MethodGet, "/api/v1/me/documents", buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Documents []models.Document `json:"documents"`
	}
	decode(t, w, &list)
	require.Len(t, list.Documents, 2)
	assert.Equal(t, models.DocumentPending, list.Documents[0].Status)

	admin := api.token(t, "staff", models.RoleAdmin)
	w = api.do(t, http.MethodPatch, "/api/v1/admin/documents/"+list.Documents[0].ID, admin,
		DocumentReviewRequest{Status: "approved"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodPatch, "/api/v1/admin/documents/"+list.Documents[0].ID, admin,
		DocumentReviewRequest{Status: "pending"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_DocumentTooLarge(t *testing.T) {
	api := setupAPI(t)
	body, contentType := multipartUpload(t, "id", "scan.pdf", make([]byte, storage.MaxUploadBytes+1))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/me/documents", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+api.token(t, "buyer", models.RoleUser))
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, apierrors.ErrPayloadTooLarge, errorCode(t, w))
	assert.Empty(t, api.blobs.keys)
}

func TestAPI_Admin(t *testing.T) {
	api := setupAPI(t)
	api.makeAvailable(t)
	buyer := api.token(t, "buyer", models.RoleUser)
	admin := api.token(t, "staff", models.RoleAdmin)

	w := api.do(t, http.MethodGet, "/api/v1/admin/stats", buyer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats services.Stats
	decode(t, w, &stats)
	assert.Equal(t, 120, stats.TotalLots)

	confirmed := true
	w = api.do(t, http.MethodPost, "/api/v1/reservations/wizard", buyer, StartWizardRequest{LotID: "bajada-sur-A1"})
	var started WizardResponse
	decode(t, w, &started)
	base := "/api/v1/reservations/wizard/" + started.Wizard.ID
	api.do(t, http.MethodPost, base+"/payment", buyer, PaymentRequest{Method: "outright"})
	api.do(t, http.MethodPost, base+"/confirm", buyer, ConfirmRequest{Confirmed: &confirmed})
	w = api.do(t, http.MethodPost, base+"/submit", buyer, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var submitted SubmitResponse
	decode(t, w, &submitted)
	statusPath := "/api/v1/admin/reservations/" + submitted.Reservation.ID + "/status"

	w = api.do(t, http.MethodPatch, statusPath, admin, ReservationStatusRequest{Status: "pending"})
	assert.Equal(t, http.StatusConflict, w.Code, "active cannot go back to pending")

	w = api.do(t, http.MethodPatch, statusPath, admin, ReservationStatusRequest{Status: "completed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, "/api/v1/lots/bajada-sur-A1", "", nil)
	var lot LotResponse
	decode(t, w, &lot)
	assert.Equal(t, models.LotSold, lot.Lot.Status)

	w = api.do(t, http.MethodGet, "/api/v1/admin/reservations?status=completed", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
	w = api.do(t, http.MethodGet, "/api/v1/admin/reservations?status=lost", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	price := int64(90000)
	w = api.do(t, http.MethodPatch, "/api/v1/admin/lots/loma-poniente-A3", admin, LotUpdateRequest{Price: &price})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &lot)
	assert.Equal(t, price, lot.Lot.Price)

	w = api.do(t, http.MethodPatch, "/api/v1/admin/lots/loma-poniente-A3", admin, LotUpdateRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	name := "Bajada Sur Poniente"
	w = api.do(t, http.MethodPatch, "/api/v1/admin/zones/bajada-sur", admin, ZoneUpdateRequest{Name: &name})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = api.do(t, http.MethodPatch, "/api/v1/admin/zones/nowhere", admin, ZoneUpdateRequest{Name: &name})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_MetricsEndpoint(t *testing.T) {
	api := setupAPI(t)
	api.do(t, http.MethodGet, "/api/v1/map/style", "", nil)

	w := api.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
