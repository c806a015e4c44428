package services_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-listing/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/docstore"
	"github.com/bionicotaku/lingo-services-listing/internal/services"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/require"
)

// fakeClock 是可推进的测试时钟。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// harness 在内存后端上组装全部仓储与服务。
type harness struct {
	store   *docstore.Memory
	markers *repositories.MemoryMarkerStore
	clock   *fakeClock

	videos   *repositories.VideoRepository
	users    *repositories.UserInteractionRepository
	entities *repositories.CatalogEntityRepository
	ads      *repositories.AdStatsRepository
	visitors *repositories.VisitorStatsRepository

	interactions *services.InteractionService
	propagator   *services.CounterPropagator
	aggregator   *services.MetricsAggregator
	tracker      *services.VisitorTracker
	listing      *services.ListingService
	catalog      *services.CatalogService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := log.NewStdLogger(io.Discard)
	clock := &fakeClock{now: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)}

	store := docstore.NewMemory().WithClock(clock.Now)
	markers := repositories.NewMemoryMarkerStore().WithClock(clock.Now)

	h := &harness{
		store:    store,
		markers:  markers,
		clock:    clock,
		videos:   repositories.NewVideoRepository(store, logger),
		users:    repositories.NewUserInteractionRepository(store, logger),
		entities: repositories.NewCatalogEntityRepository(store, logger),
		ads:      repositories.NewAdStatsRepository(store, logger),
		visitors: repositories.NewVisitorStatsRepository(store, logger),
	}

	metricsCfg := configloader.MetricsConfig{TimeZone: "UTC", AdPositions: []string{"top", "sidebar"}}
	visitorCfg := configloader.VisitorConfig{
		Window:       configloader.Duration{Duration: 30 * time.Minute},
		AdminPrefix:  "/admin",
		MobileTokens: []string{"mobile", "android", "iphone", "ipad"},
		SessionTTL:   configloader.Duration{Duration: 24 * time.Hour},
		MarkerTTL:    configloader.Duration{Duration: 7 * 24 * time.Hour},
	}
	listingCfg := configloader.ListingConfig{DefaultPageSize: 16, MaxPageSize: 100, SearchCap: 50}

	h.interactions = services.NewInteractionService(store, h.users, h.videos, markers, logger)
	h.propagator = services.NewCounterPropagator(h.videos, h.entities, logger).WithRetryPolicy(services.NoRetry)
	h.aggregator = services.NewMetricsAggregator(store, h.ads, metricsCfg, logger).
		WithClock(clock.Now).
		WithRetryPolicy(services.NoRetry)
	h.tracker = services.NewVisitorTracker(h.visitors, markers, visitorCfg, metricsCfg, logger).
		WithClock(clock.Now).
		WithRetryPolicy(services.NoRetry)
	h.listing = services.NewListingService(h.videos, listingCfg, logger)
	h.catalog = services.NewCatalogService(h.videos, h.propagator, logger).WithClock(clock.Now)
	return h
}

// seedVideo 写入一条视频，createdAt 由调用方指定。
func (h *harness) seedVideo(t *testing.T, video *po.Video) *po.Video {
	t.Helper()
	created, err := h.videos.Create(context.Background(), video)
	require.NoError(t, err)
	return created
}

// seedSequence 写入 n 条视频，vNN 的 createdAt 依次递增一分钟。
func (h *harness) seedSequence(t *testing.T, n int) []string {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := videoID(i)
		h.seedVideo(t, &po.Video{ID: id, Title: "Video " + id, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		ids = append(ids, id)
	}
	return ids
}

func videoID(i int) string {
	const digits = "0123456789"
	return "v" + string(digits[i/10]) + string(digits[i%10])
}

// countOps 统计存储调用次数，opFilter 为空时统计全部操作。
func (h *harness) countOps(collection, opFilter string) func() int {
	var mu sync.Mutex
	n := 0
	h.store.AddHook(func(op, c string) error {
		if c == collection && (opFilter == "" || op == opFilter) {
			mu.Lock()
			n++
			mu.Unlock()
		}
		return nil
	})
	return func() int {
		mu.Lock()
		defer mu.Unlock()
		return n
	}
}

func discardLogger() log.Logger {
	return log.NewStdLogger(io.Discard)
}

func configMetrics(zone string) configloader.MetricsConfig {
	return configloader.MetricsConfig{TimeZone: zone, AdPositions: []string{"top", "sidebar"}}
}
