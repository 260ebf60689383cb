package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/parcela/internal/cache"
	"github.com/stwalsh4118/parcela/internal/features"
	"github.com/stwalsh4118/parcela/internal/logger"
	"github.com/stwalsh4118/parcela/internal/mapview"
	"github.com/stwalsh4118/parcela/internal/models"
	"github.com/stwalsh4118/parcela/internal/repository"
)

// memCache is a FeatureCache over a map that counts lookups.
type memCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	hits   int
	misses int
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Invalidate(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *memCache) Close() error { return nil }

func TestMapService_LotFeaturesCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fc := newMemCache()
	maps := NewMapService(f.store.Zones, f.store.Lots, fc, mapview.DefaultConfig(), logger.Nop())

	first, err := maps.LotFeatures(ctx)
	require.NoError(t, err)
	second, err := maps.LotFeatures(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, fc.misses)
	assert.Equal(t, 1, fc.hits)

	var collection struct {
		Type     string `json:"type"`
		Features []struct {
			ID         json.Number            `json:"id"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(first, &collection))
	assert.Equal(t, "FeatureCollection", collection.Type)
	assert.Len(t, collection.Features, 120)

	require.NoError(t, maps.Invalidate(ctx))
	_, ok, _ := fc.Get(ctx, cache.KeyLotFeatures)
	assert.False(t, ok, "invalidate drops cached collections")
}

func TestMapService_IndexAndReload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	maps := NewMapService(f.store.Zones, f.store.Lots, nil, mapview.DefaultConfig(), logger.Nop())

	idx, v1, err := maps.Index(ctx)
	require.NoError(t, err)
	assert.Equal(t, 120, idx.Len())
	lotID, ok := idx.LotIDForFeature(20)
	require.True(t, ok)
	assert.Equal(t, "bajada-sur-A1", lotID)

	var (
		gotVersion int64
		gotIndex   *features.Index
	)
	unregister := maps.OnReload(func(index *features.Index, version int64) {
		gotIndex, gotVersion = index, version
	})

	require.NoError(t, maps.Invalidate(ctx))
	assert.Equal(t, v1+1, gotVersion)
	require.NotNil(t, gotIndex)

	_, v2, err := maps.Index(ctx)
	require.NoError(t, err)
	assert.Equal(t, gotVersion, v2)

	unregister()
	require.NoError(t, maps.Invalidate(ctx))
	assert.Equal(t, v2, gotVersion, "unregistered listener is not called")
}

func TestMapService_ZonesAndStyle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	maps := NewMapService(f.store.Zones, f.store.Lots, nil, mapview.DefaultConfig(), logger.Nop())

	zones, err := maps.ZoneFeatures(ctx)
	require.NoError(t, err)
	assert.Len(t, zones.Features, 6)

	labels, err := maps.ZoneLabels(ctx)
	require.NoError(t, err)
	assert.Len(t, labels.Features, 6)

	style := maps.Style()
	assert.Equal(t, mapview.ColorAvailable, style.StatusColors[models.LotAvailable])
	assert.Equal(t, 19.0, style.SelectZoom)
}

// MockLotRepository is a mock implementation of LotRepository for testing.
type MockLotRepository struct {
	mock.Mock
	repository.LotRepository
}

func (m *MockLotRepository) List(ctx context.Context, filter models.LotFilter) ([]models.LotWithZone, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	lots, ok := args.Get(0).([]models.LotWithZone)
	if !ok {
		return nil, args.Error(1)
	}
	return lots, args.Error(1)
}

func (m *MockLotRepository) Get(ctx context.Context, id string) (*models.LotWithZone, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	lot, ok := args.Get(0).(*models.LotWithZone)
	if !ok {
		return nil, args.Error(1)
	}
	return lot, args.Error(1)
}

func (m *MockLotRepository) GetByFeatureID(ctx context.Context, featureID int64) (*models.LotWithZone, error) {
	args := m.Called(ctx, featureID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	lot, ok := args.Get(0).(*models.LotWithZone)
	if !ok {
		return nil, args.Error(1)
	}
	return lot, args.Error(1)
}

func TestCatalogService_ListLots(t *testing.T) {
	mockRepo := new(MockLotRepository)
	service := NewCatalogService(nil, mockRepo, logger.Nop())
	ctx := context.Background()

	filter := models.LotFilter{Status: models.LotAvailable, ZoneID: "mesa-norte"}
	expected := []models.LotWithZone{{Lot: models.Lot{ID: "mesa-norte-A1", Status: models.LotAvailable}}}
	mockRepo.On("List", ctx, filter).Return(expected, nil)

	lots, err := service.ListLots(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, expected, lots)

	_, err = service.ListLots(ctx, models.LotFilter{Status: "haunted"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
	mockRepo.AssertExpectations(t)
}

func TestCatalogService_DatabaseError(t *testing.T) {
	mockRepo := new(MockLotRepository)
	service := NewCatalogService(nil, mockRepo, logger.Nop())
	ctx := context.Background()

	dbErr := errors.New("database connection failed")
	mockRepo.On("List", ctx, models.LotFilter{}).Return(nil, dbErr)
	mockRepo.On("Get", ctx, "mesa-norte-A1").Return(nil, dbErr)

	_, err := service.ListLots(ctx, models.LotFilter{})
	assert.ErrorIs(t, err, dbErr)

	_, err = service.GetLot(ctx, "mesa-norte-A1")
	assert.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, ErrLotNotFound)
	mockRepo.AssertExpectations(t)
}

func TestCatalogService_Lookups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	service := NewCatalogService(f.store.Zones, f.store.Lots, logger.Nop())

	lot, err := service.GetLotByFeatureID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "loma-poniente-A3", lot.ID)

	_, err = service.GetLotByFeatureID(ctx, 999)
	assert.ErrorIs(t, err, ErrLotNotFound)
	_, err = service.GetLotByFeatureID(ctx, -1)
	assert.ErrorIs(t, err, ErrInvalidFeatureID)

	detail, err := service.LotDetail(ctx, "loma-poniente-A3", false)
	require.NoError(t, err)
	assert.Equal(t, "Loma Poniente — Lot A3", detail.Title)
	assert.Equal(t, mapview.CTAReserve, detail.CTA.Kind)
	assert.Equal(t, mapview.LoginRedirect(mapview.ReservePath("loma-poniente-A3")), detail.CTA.Href)

	_, err = service.LotDetail(ctx, "nowhere", true)
	assert.ErrorIs(t, err, ErrLotNotFound)

	zones, err := service.ListZones(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bajada Sur", zones[0].Name)

	_, err = service.GetZone(ctx, "nowhere")
	assert.ErrorIs(t, err, ErrZoneNotFound)
}

// gatedLots holds the next armed List call after it has read its rows, so
// a test can change lots underneath a build in flight.
type gatedLots struct {
	repository.LotRepository
	mu      sync.Mutex
	armed   bool
	entered chan struct{}
	release chan struct{}
}

func newGatedLots(inner repository.LotRepository) *gatedLots {
	return &gatedLots{LotRepository: inner, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedLots) arm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.armed = true
}

func (g *gatedLots) List(ctx context.Context, filter models.LotFilter) ([]models.LotWithZone, error) {
	lots, err := g.LotRepository.List(ctx, filter)
	g.mu.Lock()
	hold := g.armed
	g.armed = false
	g.mu.Unlock()
	if hold {
		close(g.entered)
		<-g.release
	}
	return lots, err
}

func (f *fixture) setLotStatus(t *testing.T, id string, status models.LotStatus) {
	t.Helper()
	lot, err := f.store.Lots.Get(context.Background(), id)
	require.NoError(t, err)
	lot.Status = status
	f.db.PutLot(lot.Lot)
}

func TestMapService_StaleRebuildDoesNotOverwriteNewer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lots := newGatedLots(f.store.Lots)
	maps := NewMapService(f.store.Zones, lots, nil, mapview.DefaultConfig(), logger.Nop())
	_, _, err := maps.Index(ctx)
	require.NoError(t, err)

	var reloads []int64
	var mu sync.Mutex
	maps.OnReload(func(_ *features.Index, version int64) {
		mu.Lock()
		defer mu.Unlock()
		reloads = append(reloads, version)
	})

	f.availableLot(t)
	lots.arm()
	slow := make(chan error, 1)
	go func() { slow <- maps.Invalidate(ctx) }()
	<-lots.entered

	f.setLotStatus(t, "bajada-sur-A1", models.LotReserved)
	require.NoError(t, maps.Invalidate(ctx))
	_, newest, err := maps.Index(ctx)
	require.NoError(t, err)

	close(lots.release)
	require.NoError(t, <-slow)

	idx, version, err := maps.Index(ctx)
	require.NoError(t, err)
	assert.Equal(t, newest, version, "superseded build is discarded")
	lot, ok := idx.Lot("bajada-sur-A1")
	require.True(t, ok)
	assert.Equal(t, models.LotReserved, lot.Status)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{newest}, reloads, "listeners never see the stale index")
}

func TestMapService_StaleReadNotWrittenToCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lots := newGatedLots(f.store.Lots)
	fc := newMemCache()
	maps := NewMapService(f.store.Zones, lots, fc, mapview.DefaultConfig(), logger.Nop())

	f.availableLot(t)
	lots.arm()
	type result struct {
		data []byte
		err  error
	}
	slow := make(chan result, 1)
	go func() {
		data, err := maps.LotFeatures(ctx)
		slow <- result{data, err}
	}()
	<-lots.entered

	f.setLotStatus(t, "bajada-sur-A1", models.LotReserved)
	require.NoError(t, maps.Invalidate(ctx))

	close(lots.release)
	stale := <-slow
	require.NoError(t, stale.err)
	assert.Equal(t, string(models.LotAvailable), lotStatusIn(t, stale.data, "bajada-sur-A1"))

	_, ok, _ := fc.Get(ctx, cache.KeyLotFeatures)
	assert.False(t, ok, "collection read before the invalidation is not cached")

	fresh, err := maps.LotFeatures(ctx)
	require.NoError(t, err)
	assert.Equal(t, string(models.LotReserved), lotStatusIn(t, fresh, "bajada-sur-A1"))
}
