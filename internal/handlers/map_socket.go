package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	apierrors "github.com/stwalsh4118/parcela/internal/errors"
	"github.com/stwalsh4118/parcela/internal/features"
	"github.com/stwalsh4118/parcela/internal/logger"
	"github.com/stwalsh4118/parcela/internal/mapview"
	"github.com/stwalsh4118/parcela/internal/metrics"
	"github.com/stwalsh4118/parcela/internal/middleware"
	"github.com/stwalsh4118/parcela/internal/services"
)

const (
	socketWriteWait      = 10 * time.Second
	socketPongWait       = 60 * time.Second
	socketPingInterval   = (socketPongWait * 9) / 10
	socketMaxMessageSize = 4 << 10
	socketSendBuffer     = 128
	detailLoadTimeout    = 5 * time.Second
)

// Inbound message types sent by the renderer.
const (
	msgClick        = "click"
	msgHover        = "hover"
	msgLeave        = "leave"
	msgSelect       = "select"
	msgFlyToZone    = "fly_to_zone"
	msgViewDetails  = "view_details"
	msgCloseModal   = "close_modal"
	msgEscape       = "escape"
	msgClickOutside = "click_outside"
	msgPopoverClose = "popover_close"
	msgReserve      = "reserve"
)

// Outbound command types sent to the renderer.
const (
	cmdFeatureState = "feature_state"
	cmdFlyTo        = "fly_to"
	cmdPopupOpen    = "popup_open"
	cmdPopupClose   = "popup_close"
	cmdModalOpen    = "modal_open"
	cmdModalClose   = "modal_close"
	cmdNavigate     = "navigate"
	cmdReload       = "reload"
	cmdError        = "error"
)

// MapInbound is one renderer event.
type MapInbound struct {
	FeatureID *int64 `json:"feature_id,omitempty"`
	Type      string `json:"type"`
	LotID     string `json:"lot_id,omitempty"`
	ZoneID    string `json:"zone_id,omitempty"`
}

// MapCommand is one instruction for the renderer.
type MapCommand struct {
	FeatureID *int64                `json:"feature_id,omitempty"`
	State     *mapview.FeatureFlags `json:"state,omitempty"`
	Flight    *mapview.Flight       `json:"flight,omitempty"`
	Popup     *mapview.Popup        `json:"popup,omitempty"`
	Detail    *mapview.LotDetail    `json:"detail,omitempty"`
	Type      string                `json:"type"`
	Reason    mapview.CloseReason   `json:"reason,omitempty"`
	Href      string                `json:"href,omitempty"`
	Code      string                `json:"code,omitempty"`
	Message   string                `json:"message,omitempty"`
	Version   int64                 `json:"version,omitempty"`
}

// MapSocketHandler runs one mapview.Controller per WebSocket connection.
type MapSocketHandler struct {
	maps     *services.MapService
	catalog  services.CatalogService
	cfg      mapview.Config
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewMapSocketHandler creates the map session endpoint. Browser origins
// are checked against the CORS allow list.
func NewMapSocketHandler(maps *services.MapService, catalog services.CatalogService, cfg mapview.Config, origins []string, log *logger.Logger) *MapSocketHandler {
	return &MapSocketHandler{
		maps:    maps,
		catalog: catalog,
		cfg:     cfg,
		log:     log.Named("map-socket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(origins),
		},
	}
}

func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := allowed["*"]; ok {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

// Serve handles GET /api/v1/map/ws.
func (h *MapSocketHandler) Serve(c *gin.Context) {
	index, version, err := h.maps.Index(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to load map features", err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Warn("WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	identity, authenticated := middleware.IdentityFrom(c)
	log := h.log.WithRequestID(middleware.GetRequestID(c))
	if authenticated {
		log = log.With(map[string]interface{}{"user_id": identity.UserID})
	}

	s := &mapSession{
		conn:    conn,
		send:    make(chan MapCommand, socketSendBuffer),
		done:    make(chan struct{}),
		catalog: h.catalog,
		log:     log,
		auth:    authenticated,
	}
	s.controller = mapview.NewController(index, s, authenticated,
		mapview.WithConfig(h.cfg),
		mapview.WithLogger(log),
	)

	unregister := h.maps.OnReload(func(idx *features.Index, v int64) {
		if err := s.controller.Reload(idx, v); err != nil && !errors.Is(err, mapview.ErrClosed) {
			log.Warn("Map session reload failed", map[string]interface{}{"error": err.Error()})
		}
	})
	// A rebuild between Index and OnReload would otherwise be missed.
	if idx, v, err := h.maps.Index(c.Request.Context()); err == nil && v != version {
		_ = s.controller.Reload(idx, v)
	}

	metrics.MapSessionsActive.Inc()
	log.Debug("Map session opened", map[string]interface{}{"source_version": version})

	go s.writePump()
	s.readPump()

	unregister()
	s.controller.Close()
	s.shutdown()
	metrics.MapSessionsActive.Dec()
	log.Debug("Map session closed", nil)
}

// mapSession adapts one connection to mapview.Renderer. Renderer calls
// happen under the controller lock, so they only enqueue.
type mapSession struct {
	conn       *websocket.Conn
	controller *mapview.Controller
	catalog    services.CatalogService
	log        *logger.Logger
	send       chan MapCommand
	done       chan struct{}
	once       sync.Once
	auth       bool
}

func (s *mapSession) enqueue(cmd MapCommand) {
	select {
	case <-s.done:
	case s.send <- cmd:
	default:
		// A client that cannot keep up would see inconsistent state.
		s.log.Warn("Map session send buffer full, closing", nil)
		s.shutdown()
	}
}

func (s *mapSession) shutdown() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *mapSession) SetFeatureState(featureID int64, flags mapview.FeatureFlags) {
	id := featureID
	s.enqueue(MapCommand{Type: cmdFeatureState, FeatureID: &id, State: &flags})
}

func (s *mapSession) FlyTo(flight mapview.Flight) {
	s.enqueue(MapCommand{Type: cmdFlyTo, Flight: &flight})
}

func (s *mapSession) OpenPopup(popup mapview.Popup) {
	s.enqueue(MapCommand{Type: cmdPopupOpen, Popup: &popup})
}

func (s *mapSession) ClosePopup() {
	s.enqueue(MapCommand{Type: cmdPopupClose})
}

func (s *mapSession) OpenModal(detail mapview.LotDetail) {
	s.enqueue(MapCommand{Type: cmdModalOpen, Detail: &detail})
}

func (s *mapSession) CloseModal(reason mapview.CloseReason) {
	s.enqueue(MapCommand{Type: cmdModalClose, Reason: reason})
}

func (s *mapSession) Navigate(href string) {
	s.enqueue(MapCommand{Type: cmdNavigate, Href: href})
}

func (s *mapSession) ReloadSource(version int64) {
	s.enqueue(MapCommand{Type: cmdReload, Version: version})
}

func (s *mapSession) readPump() {
	s.conn.SetReadLimit(socketMaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(socketPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(socketPongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("Map session read failed", map[string]interface{}{"error": err.Error()})
			}
			return
		}

		var msg MapInbound
		if err := json.Unmarshal(data, &msg); err != nil {
			s.enqueue(MapCommand{Type: cmdError, Code: "INVALID_JSON", Message: "Failed to parse message"})
			continue
		}
		if err := s.dispatch(msg); err != nil {
			if errors.Is(err, mapview.ErrClosed) {
				return
			}
			s.enqueue(commandForError(err))
		}
	}
}

func (s *mapSession) writePump() {
	ticker := time.NewTicker(socketPingInterval)
	defer func() {
		ticker.Stop()
		s.shutdown()
	}()

	for {
		select {
		case <-s.done:
			return
		case cmd := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := s.conn.WriteJSON(cmd); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *mapSession) dispatch(msg MapInbound) error {
	c := s.controller
	switch msg.Type {
	case msgClick:
		if msg.FeatureID == nil {
			return errMissingFeatureID
		}
		return c.HandleClick(*msg.FeatureID)
	case msgHover:
		if msg.FeatureID == nil {
			return errMissingFeatureID
		}
		return c.Hover(*msg.FeatureID)
	case msgLeave:
		return c.Leave()
	case msgSelect:
		return c.SelectLot(msg.LotID)
	case msgFlyToZone:
		return c.FlyToZone(msg.ZoneID)
	case msgViewDetails:
		return s.viewDetails(msg.LotID)
	case msgCloseModal:
		return c.CloseModal(mapview.CloseExplicit)
	case msgEscape:
		return c.CloseModal(mapview.CloseEscape)
	case msgClickOutside:
		return c.CloseModal(mapview.CloseOutside)
	case msgPopoverClose:
		return c.ClosePopup()
	case msgReserve:
		return c.Reserve()
	}
	return errUnknownMessage
}

// viewDetails loads the lot fresh so the modal reflects its current
// status. A newer selection made while loading wins.
func (s *mapSession) viewDetails(lotID string) error {
	id, generation, err := s.controller.DetailRequest(lotID)
	if err != nil {
		return err
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), detailLoadTimeout)
		defer cancel()

		detail, err := s.catalog.LotDetail(ctx, id, s.auth)
		if err != nil {
			s.log.Warn("Failed to load lot detail", map[string]interface{}{"lot_id": id, "error": err.Error()})
			s.enqueue(commandForError(err))
			return
		}
		s.controller.ShowDetail(generation, *detail)
	}()
	return nil
}

var (
	errMissingFeatureID = errors.New("feature_id is required")
	errUnknownMessage   = errors.New("unknown message type")
)

func commandForError(err error) MapCommand {
	code := apierrors.ErrBadRequest
	switch {
	case errors.Is(err, mapview.ErrLotNotFound), errors.Is(err, mapview.ErrZoneNotFound),
		errors.Is(err, services.ErrLotNotFound):
		code = apierrors.ErrNotFound
	case errors.Is(err, mapview.ErrNothingSelected):
		code = apierrors.ErrConflict
	case errors.Is(err, errMissingFeatureID), errors.Is(err, errUnknownMessage):
	default:
		code = apierrors.ErrInternalServer
	}
	return MapCommand{Type: cmdError, Code: code, Message: err.Error()}
}
