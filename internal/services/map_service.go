package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/paulmach/orb/geojson"
	"github.com/stwalsh4118/parcela/internal/cache"
	"github.com/stwalsh4118/parcela/internal/events"
	"github.com/stwalsh4118/parcela/internal/features"
	"github.com/stwalsh4118/parcela/internal/logger"
	"github.com/stwalsh4118/parcela/internal/mapview"
	"github.com/stwalsh4118/parcela/internal/models"
	"github.com/stwalsh4118/parcela/internal/repository"
)

// ReloadFunc receives a rebuilt index and its source version.
type ReloadFunc func(index *features.Index, version int64)

// MapService serves the renderer's GeoJSON sources and owns the shared
// feature index. Lot collections are cached; any lot change drops the
// cache and rebuilds the index under a new source version.
//
// Builds are sequenced: an index is installed only when no build that
// started later has been installed, and a collection read before an
// invalidation is never written back to the cache.
type MapService struct {
	zones repository.ZoneRepository
	lots  repository.LotRepository
	cache cache.FeatureCache
	style mapview.Style
	log   *logger.Logger

	mu        sync.Mutex
	index     *features.Index
	version   int64
	started   uint64
	installed uint64
	nextID    int
	listeners map[int]ReloadFunc

	// cacheMu orders cache writes against invalidation; epoch counts
	// invalidations.
	cacheMu sync.RWMutex
	epoch   uint64
}

// NewMapService creates a map service. A nil cache disables caching.
func NewMapService(zones repository.ZoneRepository, lots repository.LotRepository, fc cache.FeatureCache, cfg mapview.Config, log *logger.Logger) *MapService {
	if fc == nil {
		fc = cache.NoopCache{}
	}
	return &MapService{
		zones:     zones,
		lots:      lots,
		cache:     fc,
		style:     mapview.StyleTable(cfg),
		log:       log.Named("map"),
		listeners: make(map[int]ReloadFunc),
	}
}

// Style returns the paint table served to renderers.
func (s *MapService) Style() mapview.Style {
	return s.style
}

// LotFeatures returns the serialized lot polygon collection.
func (s *MapService) LotFeatures(ctx context.Context) ([]byte, error) {
	return s.cached(ctx, cache.KeyLotFeatures, features.LotsToFeatures)
}

// LotLabels returns the serialized lot label point collection.
func (s *MapService) LotLabels(ctx context.Context) ([]byte, error) {
	return s.cached(ctx, cache.KeyLotLabels, features.LotLabelPoints)
}

func (s *MapService) cached(ctx context.Context, key string, project func([]models.LotWithZone) *geojson.FeatureCollection) ([]byte, error) {
	s.cacheMu.RLock()
	epoch := s.epoch
	s.cacheMu.RUnlock()

	if data, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.Warn("Feature cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	} else if ok {
		return data, nil
	}

	lots, err := s.lots.List(ctx, models.LotFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list lots: %w", err)
	}
	data, err := json.Marshal(project(lots))
	if err != nil {
		return nil, fmt.Errorf("failed to encode features: %w", err)
	}

	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	if s.epoch != epoch {
		// Lots changed while this collection was read.
		return data, nil
	}
	if err := s.cache.Set(ctx, key, data); err != nil {
		s.log.Warn("Feature cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
	return data, nil
}

// ZoneFeatures returns the zone outline collection.
func (s *MapService) ZoneFeatures(ctx context.Context) (*geojson.FeatureCollection, error) {
	zones, err := s.zones.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	return features.ZonesToFeatures(zones), nil
}

// ZoneLabels returns one label point per zone.
func (s *MapService) ZoneLabels(ctx context.Context) (*geojson.FeatureCollection, error) {
	zones, err := s.zones.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	return features.ZoneLabelPoints(zones), nil
}

// Index returns the current feature index and its version, building it on
// first use.
func (s *MapService) Index(ctx context.Context) (*features.Index, int64, error) {
	s.mu.Lock()
	if s.index != nil {
		idx, v := s.index, s.version
		s.mu.Unlock()
		return idx, v, nil
	}
	s.mu.Unlock()

	return s.rebuild(ctx)
}

func (s *MapService) build(ctx context.Context) (*features.Index, error) {
	lots, err := s.lots.List(ctx, models.LotFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list lots: %w", err)
	}
	zones, err := s.zones.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	return features.NewIndex(lots, zones), nil
}

// rebuild reads a fresh index and installs it unless a build that started
// later already won. Listeners only hear about installed indexes.
func (s *MapService) rebuild(ctx context.Context) (*features.Index, int64, error) {
	s.mu.Lock()
	s.started++
	seq := s.started
	s.mu.Unlock()

	idx, err := s.build(ctx)
	if err != nil {
		return nil, 0, err
	}

	s.mu.Lock()
	if seq <= s.installed {
		current, version := s.index, s.version
		s.mu.Unlock()
		s.log.Debug("Discarded superseded map build", map[string]interface{}{"build": seq, "version": version})
		return current, version, nil
	}
	s.installed = seq
	s.index = idx
	s.version++
	version := s.version
	listeners := make([]ReloadFunc, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(idx, version)
	}
	s.log.Debug("Map sources reloaded", map[string]interface{}{"version": version, "lots": idx.Len()})
	return idx, version, nil
}

// Invalidate drops cached collections, rebuilds the index and notifies
// listeners with the new version.
func (s *MapService) Invalidate(ctx context.Context) error {
	s.cacheMu.Lock()
	s.epoch++
	err := s.cache.Invalidate(ctx, cache.AllKeys...)
	s.cacheMu.Unlock()
	if err != nil {
		s.log.Warn("Feature cache invalidation failed", map[string]interface{}{"error": err.Error()})
	}

	_, _, err = s.rebuild(ctx)
	return err
}

// OnReload registers fn for future index rebuilds. The returned func
// unregisters it.
func (s *MapService) OnReload(fn ReloadFunc) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Watch invalidates on every lot status event from bus.
func (s *MapService) Watch(bus events.Bus) (func(), error) {
	return bus.Subscribe(events.SubjectLotStatusChanged, func(ev events.Event) {
		if err := s.Invalidate(context.Background()); err != nil {
			s.log.Error("Failed to reload map sources", err, map[string]interface{}{"lot_id": ev.LotID})
		}
	})
}
