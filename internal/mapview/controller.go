// Package mapview mediates between renderer pointer events and the
// domain notion of a selected lot. A Controller owns the state of one map
// surface for its whole lifetime; it is created when the surface mounts and
// closed when it unmounts.
package mapview

import (
	"errors"
	"sync"
	"time"

	"github.com/stwalsh4118/parcela/internal/features"
	"github.com/stwalsh4118/parcela/internal/logger"
	"github.com/stwalsh4118/parcela/internal/models"
)

var (
	// ErrClosed is returned by operations on a closed controller.
	ErrClosed = errors.New("map controller closed")
	// ErrLotNotFound is returned when an explicit selection names an unknown lot.
	ErrLotNotFound = errors.New("lot not found")
	// ErrZoneNotFound is returned when fly-to names an unknown zone.
	ErrZoneNotFound = errors.New("zone not found")
	// ErrNothingSelected is returned when an action needs a selected lot.
	ErrNothingSelected = errors.New("no lot selected")
)

// Renderer draws the map surface. Calls are made while the controller
// holds its lock, so implementations must not call back into it.
type Renderer interface {
	SetFeatureState(featureID int64, flags FeatureFlags)
	FlyTo(flight Flight)
	OpenPopup(popup Popup)
	ClosePopup()
	OpenModal(detail LotDetail)
	CloseModal(reason CloseReason)
	Navigate(href string)
	ReloadSource(version int64)
}

// Config holds the camera animation parameters.
type Config struct {
	SelectZoom     float64
	SelectDuration time.Duration
	ZoneZoom       float64
	ZoneDuration   time.Duration
}

// DefaultConfig returns close zoom 19 over 1.2s for lots and 18.2 over
// 1.4s for zones.
func DefaultConfig() Config {
	return Config{
		SelectZoom:     19,
		SelectDuration: 1200 * time.Millisecond,
		ZoneZoom:       18.2,
		ZoneDuration:   1400 * time.Millisecond,
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithConfig overrides the camera parameters.
func WithConfig(cfg Config) Option {
	return func(c *Controller) { c.cfg = cfg }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// Controller tracks hover, selection, the popover and the detail modal for
// one map surface. It is safe for concurrent use; events are applied one
// at a time in arrival order.
type Controller struct {
	mu            sync.Mutex
	cfg           Config
	renderer      Renderer
	log           *logger.Logger
	now           func() time.Time
	index         *features.Index
	states        *FeatureStateTable
	camera        *Camera
	modal         Modal
	selected      *models.LotWithZone
	hovered       *int64
	authenticated bool
	popupOpen     bool
	closed        bool
	generation    uint64
	sourceVersion int64
}

// NewController creates a controller over index drawing to renderer.
func NewController(index *features.Index, renderer Renderer, authenticated bool, opts ...Option) *Controller {
	c := &Controller{
		cfg:           DefaultConfig(),
		renderer:      renderer,
		log:           logger.Nop(),
		now:           time.Now,
		index:         index,
		states:        NewFeatureStateTable(),
		authenticated: authenticated,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.camera = NewCamera(CameraTarget{Center: MapCenter, Zoom: MapZoom})
	return c
}

// SelectLot selects the lot with the given id.
func (c *Controller) SelectLot(lotID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	lot, ok := c.index.Lot(lotID)
	if !ok {
		return ErrLotNotFound
	}
	c.selectLocked(lot)
	return nil
}

// HandleClick resolves a clicked feature to its lot and selects it.
// Unknown feature ids are stale references and are ignored.
func (c *Controller) HandleClick(featureID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	lot, ok := c.index.LotForFeature(featureID)
	if !ok {
		c.log.Debug("Ignoring click on unknown feature", map[string]interface{}{
			"feature_id": featureID,
		})
		return nil
	}
	c.selectLocked(lot)
	return nil
}

// selectLocked enforces that at most one feature carries the selected flag,
// then flies to the lot and opens its popover. Re-selecting the current
// lot re-centers and reopens without toggling it off.
func (c *Controller) selectLocked(lot models.LotWithZone) {
	for _, id := range c.states.Selected() {
		if id == lot.FeatureID {
			continue
		}
		c.states.SetSelected(id, false)
		c.renderer.SetFeatureState(id, c.states.Get(id))
	}
	if c.popupOpen {
		c.renderer.ClosePopup()
		c.popupOpen = false
	}

	c.states.SetSelected(lot.FeatureID, true)
	c.renderer.SetFeatureState(lot.FeatureID, c.states.Get(lot.FeatureID))
	c.selected = &lot
	c.generation++

	flight := c.camera.FlyTo(CameraTarget{
		Center:   lot.Center.Orb(),
		Zoom:     c.cfg.SelectZoom,
		Duration: c.cfg.SelectDuration,
	}, c.now())
	c.renderer.FlyTo(flight)

	c.renderer.OpenPopup(NewPopup(lot, c.authenticated))
	c.popupOpen = true
}

// Hover marks featureID as hovered, clearing the previous hover.
func (c *Controller) Hover(featureID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.hovered != nil && *c.hovered == featureID {
		return nil
	}
	if _, ok := c.index.LotIDForFeature(featureID); !ok {
		return nil
	}
	c.clearHoverLocked()
	if c.states.SetHover(featureID, true) {
		c.renderer.SetFeatureState(featureID, c.states.Get(featureID))
	}
	id := featureID
	c.hovered = &id
	return nil
}

// Leave clears any hover flag.
func (c *Controller) Leave() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.clearHoverLocked()
	return nil
}

func (c *Controller) clearHoverLocked() {
	if c.hovered == nil {
		return
	}
	id := *c.hovered
	c.hovered = nil
	if c.states.SetHover(id, false) {
		c.renderer.SetFeatureState(id, c.states.Get(id))
	}
}

// FlyToZone animates the camera to the zone's center without touching the selection.
func (c *Controller) FlyToZone(zoneID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	zone, ok := c.index.Zone(zoneID)
	if !ok {
		return ErrZoneNotFound
	}
	center, ok := features.ZoneCenter(zone)
	if !ok {
		return ErrZoneNotFound
	}

	flight := c.camera.FlyTo(CameraTarget{
		Center:   center,
		Zoom:     c.cfg.ZoneZoom,
		Duration: c.cfg.ZoneDuration,
	}, c.now())
	c.renderer.FlyTo(flight)
	return nil
}

// ClosePopup dismisses the popover. The selection is kept.
func (c *Controller) ClosePopup() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.popupOpen {
		c.renderer.ClosePopup()
		c.popupOpen = false
	}
	return nil
}

// DetailRequest starts loading the detail of lotID, or of the selected lot
// when lotID is empty. The returned generation must be passed to ShowDetail.
func (c *Controller) DetailRequest(lotID string) (string, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", 0, ErrClosed
	}
	if lotID == "" {
		if c.selected == nil {
			return "", 0, ErrNothingSelected
		}
		lotID = c.selected.ID
	}
	if _, ok := c.index.Lot(lotID); !ok {
		return "", 0, ErrLotNotFound
	}
	c.generation++
	return lotID, c.generation, nil
}

// ShowDetail opens the modal with detail unless a newer selection or
// detail request happened after generation was issued. It reports whether
// the detail was shown.
func (c *Controller) ShowDetail(generation uint64, detail LotDetail) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || generation != c.generation {
		c.log.Debug("Discarding stale lot detail", map[string]interface{}{
			"lot_id":     detail.LotID,
			"generation": generation,
		})
		return false
	}
	c.modal.Open(detail)
	c.renderer.OpenModal(detail)
	return true
}

// ViewDetails opens the modal for lotID (or the selection) using the
// indexed record, without a fresh load.
func (c *Controller) ViewDetails(lotID string) error {
	id, gen, err := c.DetailRequest(lotID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	lot, ok := c.index.Lot(id)
	authenticated := c.authenticated
	c.mu.Unlock()
	if !ok {
		return ErrLotNotFound
	}

	c.ShowDetail(gen, NewLotDetail(lot, authenticated))
	return nil
}

// CloseModal hides the modal. Closing an already closed modal is a no-op.
func (c *Controller) CloseModal(reason CloseReason) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.modal.Close() {
		c.renderer.CloseModal(reason)
	}
	return nil
}

// Reserve follows the reserve action of the selected lot. It navigates only
// when the lot is available.
func (c *Controller) Reserve() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.selected == nil {
		return ErrNothingSelected
	}
	cta := ResolveCTA(c.selected.Lot, c.authenticated)
	if cta.Kind == CTAReserve {
		c.renderer.Navigate(cta.Href)
	}
	return nil
}

// Reload swaps in a freshly built index after lots changed. The selection
// and hover survive when their lots still exist; otherwise they are
// cleared. The renderer is told to refetch its sources.
func (c *Controller) Reload(index *features.Index, version int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if version <= c.sourceVersion {
		return nil
	}
	c.index = index
	c.sourceVersion = version

	c.states.Retain(func(id int64) bool {
		_, ok := index.LotIDForFeature(id)
		return ok
	})
	if c.hovered != nil {
		if _, ok := index.LotIDForFeature(*c.hovered); !ok {
			c.hovered = nil
		}
	}
	if c.selected != nil {
		if fresh, ok := index.Lot(c.selected.ID); ok {
			c.selected = &fresh
		} else {
			c.selected = nil
			if c.popupOpen {
				c.renderer.ClosePopup()
				c.popupOpen = false
			}
		}
	}

	c.renderer.ReloadSource(version)
	return nil
}

// Close releases the controller. Further operations return ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.selected = nil
	c.hovered = nil
	c.modal.Close()
}

// Snapshot is a read-only view of controller state.
type Snapshot struct {
	HoveredFeatureID  *int64
	SelectedLotID     string
	ModalLotID        string
	Camera            CameraTarget
	SelectedFeatureID int64
	SelectedCount     int
	PopupOpen         bool
	ModalOpen         bool
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		SelectedCount: len(c.states.Selected()),
		PopupOpen:     c.popupOpen,
		ModalOpen:     c.modal.IsOpen(),
		Camera:        c.camera.Target(),
	}
	if c.selected != nil {
		s.SelectedLotID = c.selected.ID
		s.SelectedFeatureID = c.selected.FeatureID
	}
	if c.hovered != nil {
		id := *c.hovered
		s.HoveredFeatureID = &id
	}
	if d, ok := c.modal.Detail(); ok {
		s.ModalLotID = d.LotID
	}
	return s
}

// Flags returns the renderer flags of one feature.
func (c *Controller) Flags(featureID int64) FeatureFlags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states.Get(featureID)
}
