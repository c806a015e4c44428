package services_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-listing/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/docstore"
	"github.com/bionicotaku/lingo-services-listing/internal/services"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisitorTracker_ClassifyDevice(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name string
		ua   string
		want po.DeviceType
	}{
		{name: "iPhone", ua: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)", want: po.DeviceMobile},
		{name: "Android 大写", ua: "Mozilla/5.0 (Linux; ANDROID 14)", want: po.DeviceMobile},
		{name: "桌面 Chrome", ua: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/124.0", want: po.DevicePC},
		{name: "空 UA", ua: "", want: po.DevicePC},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.tracker.ClassifyDevice(tt.ua))
		})
	}
}

func TestVisitorTracker_GatesWithinWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	writes := h.countOps(repositories.CollectionVisitorStats, "upsert")

	in := services.VisitInput{UserAgent: "iPhone", Path: "/videos", VisitorID: "browser-1", TabID: "tab-1"}
	first, _, err := h.tracker.ClassifyAndMaybeRecordVisit(ctx, in)
	require.NoError(t, err)
	assert.True(t, first.Counted)

	h.clock.Advance(29 * time.Minute)
	second, _, err := h.tracker.ClassifyAndMaybeRecordVisit(ctx, in)
	require.NoError(t, err)
	assert.False(t, second.Counted)
	assert.Equal(t, services.VisitWithinWindow, second.Reason)
	assert.Equal(t, 1, writes())

	stats, err := h.visitors.GetAggregate(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Mobile)
	assert.EqualValues(t, 1, stats.Total)
}

func TestVisitorTracker_CountsAgainAfterWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	writes := h.countOps(repositories.CollectionVisitorStats, "upsert")

	in := services.VisitInput{UserAgent: "Windows NT", Path: "/", VisitorID: "browser-1", TabID: "tab-1"}
	first, _, err := h.tracker.ClassifyAndMaybeRecordVisit(ctx, in)
	require.NoError(t, err)
	require.True(t, first.Counted)

	h.clock.Advance(31 * time.Minute)
	second, _, err := h.tracker.ClassifyAndMaybeRecordVisit(ctx, in)
	require.NoError(t, err)
	assert.True(t, second.Counted)
	assert.Equal(t, 2, writes())
	assert.Equal(t, first.SessionID, second.SessionID, "同一标签页会话 ID 稳定")

	stats, err := h.tracker.GetVisitorStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.PC)
	assert.EqualValues(t, 2, stats.Total)
	assert.EqualValues(t, 2, stats.Today)
	assert.Equal(t, "2024-05-10", stats.Date)
}

func TestVisitorTracker_WindowResetsFromLastCountedVisit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	in := services.VisitInput{UserAgent: "pc", Path: "/", VisitorID: "browser-1"}

	first, _, err := h.tracker.ClassifyAndMaybeRecordVisit(ctx, in)
	require.NoError(t, err)
	require.True(t, first.Counted)

	// 窗口内的访问不刷新标记
	h.clock.Advance(20 * time.Minute)
	mid, _, err := h.tracker.ClassifyAndMaybeRecordVisit(ctx, in)
	require.NoError(t, err)
	require.False(t, mid.Counted)

	h.clock.Advance(11 * time.Minute)
	last, _, err := h.tracker.ClassifyAndMaybeRecordVisit(ctx, in)
	require.NoError(t, err)
	assert.True(t, last.Counted)
}

func TestVisitorTracker_SkipsAdminPaths(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	admin, _, err := h.tracker.ClassifyAndMaybeRecordVisit(ctx, services.VisitInput{UserAgent: "pc", Path: "/admin/ads", VisitorID: "b1"})
	require.NoError(t, err)
	assert.False(t, admin.Counted)
	assert.Equal(t, services.VisitAdminPath, admin.Reason)

	// 管理页访问不占用访问窗口
	public, _, err := h.tracker.ClassifyAndMaybeRecordVisit(ctx, services.VisitInput{UserAgent: "pc", Path: "/administrators-guide", VisitorID: "b1"})
	require.NoError(t, err)
	assert.True(t, public.Counted)
}

func TestVisitorTracker_GeneratesVisitorID(t *testing.T) {
	h := newHarness(t)
	result, visitorID, err := h.tracker.ClassifyAndMaybeRecordVisit(context.Background(), services.VisitInput{Path: "/"})
	require.NoError(t, err)
	assert.True(t, result.Counted)
	assert.NotEmpty(t, visitorID)
	assert.NotEmpty(t, result.SessionID)
	assert.NotEmpty(t, result.RecordID)
}

func TestVisitorTracker_ConcurrentVisitsCountOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := h.clock.Now()

	results := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		go func() {
			isNew, err := h.tracker.IsNewVisit(ctx, "browser-1", now)
			assert.NoError(t, err)
			results <- isNew
		}()
	}
	counted := 0
	for i := 0; i < 8; i++ {
		if <-results {
			counted++
		}
	}
	assert.Equal(t, 1, counted)
}

// failingLastVisit 在开关打开时让最近访问标记写入失败。
type failingLastVisit struct {
	*repositories.MemoryMarkerStore
	failing bool
}

func (m *failingLastVisit) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if m.failing && strings.HasPrefix(key, "visit:last:") {
		return errors.New("marker store unavailable")
	}
	return m.MemoryMarkerStore.Set(ctx, key, value, ttl)
}

func TestVisitorTracker_FailedMarkerWriteReleasesClaim(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	logger := log.NewStdLogger(io.Discard)
	store := docstore.NewMemory()
	markers := &failingLastVisit{MemoryMarkerStore: repositories.NewMemoryMarkerStore(), failing: true}

	tracker := services.NewVisitorTracker(
		repositories.NewVisitorStatsRepository(store, logger),
		markers,
		configloader.VisitorConfig{
			Window:      configloader.Duration{Duration: 30 * time.Minute},
			AdminPrefix: "/admin",
			SessionTTL:  configloader.Duration{Duration: time.Hour},
			MarkerTTL:   configloader.Duration{Duration: 24 * time.Hour},
		},
		configloader.MetricsConfig{TimeZone: "UTC"},
		logger,
	)

	counted, err := tracker.IsNewVisit(ctx, "browser-1", now)
	require.Error(t, err)
	assert.False(t, counted)

	markers.failing = false
	counted, err = tracker.IsNewVisit(ctx, "browser-1", now.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, counted)

	counted, err = tracker.IsNewVisit(ctx, "browser-1", now.Add(2*time.Second))
	require.NoError(t, err)
	assert.False(t, counted)
}
