package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-listing/internal/controllers"
	"github.com/bionicotaku/lingo-services-listing/internal/infrastructure/configloader"
	httpserver "github.com/bionicotaku/lingo-services-listing/internal/infrastructure/http_server"
	"github.com/bionicotaku/lingo-services-listing/internal/models/po"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories"
	"github.com/bionicotaku/lingo-services-listing/internal/repositories/docstore"
	"github.com/bionicotaku/lingo-services-listing/internal/services"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readyFunc func(context.Context) error

func (f readyFunc) Ready(ctx context.Context) error { return f(ctx) }

type testServer struct {
	srv    *khttp.Server
	videos *repositories.VideoRepository
}

func newTestServer(t *testing.T, ready httpserver.ReadinessChecker) *testServer {
	t.Helper()
	logger := log.NewStdLogger(io.Discard)
	store := docstore.NewMemory()
	markers := repositories.NewMemoryMarkerStore()

	videos := repositories.NewVideoRepository(store, logger)
	users := repositories.NewUserInteractionRepository(store, logger)
	entities := repositories.NewCatalogEntityRepository(store, logger)
	ads := repositories.NewAdStatsRepository(store, logger)
	visitors := repositories.NewVisitorStatsRepository(store, logger)

	metricsCfg := configloader.MetricsConfig{TimeZone: "UTC", AdPositions: []string{"top"}}
	visitorCfg := configloader.VisitorConfig{
		Window:       configloader.Duration{Duration: 30 * time.Minute},
		AdminPrefix:  "/admin",
		MobileTokens: []string{"mobile", "iphone", "android"},
		SessionTTL:   configloader.Duration{Duration: time.Hour},
		MarkerTTL:    configloader.Duration{Duration: 24 * time.Hour},
	}

	propagator := services.NewCounterPropagator(videos, entities, logger)
	base := controllers.NewBaseHandler(controllers.HandlerTimeouts{Default: 2 * time.Second})
	handlers := &controllers.Handlers{
		Interaction: controllers.NewInteractionHandler(services.NewInteractionService(store, users, videos, markers, logger), base),
		Video: controllers.NewVideoHandler(
			services.NewListingService(videos, configloader.ListingConfig{DefaultPageSize: 16, MaxPageSize: 100, SearchCap: 50}, logger),
			propagator, base),
		Ad:      controllers.NewAdHandler(services.NewMetricsAggregator(store, ads, metricsCfg, logger), base),
		Visit:   controllers.NewVisitHandler(services.NewVisitorTracker(visitors, markers, visitorCfg, metricsCfg, logger), base),
		Catalog: controllers.NewCatalogHandler(services.NewCatalogService(videos, propagator, logger), base),
	}

	cfg := configloader.ServerConfig{HTTP: configloader.HTTPConfig{Addr: "127.0.0.1:0"}}
	srv := httpserver.NewHTTPServer(cfg, handlers, ready, nil, logger)
	_, err := srv.Endpoint()
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	return &testServer{srv: srv, videos: videos}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string, cookies ...*stdhttp.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func TestProbes(t *testing.T) {
	s := newTestServer(t, readyFunc(func(context.Context) error { return nil }))
	assert.Equal(t, stdhttp.StatusOK, s.do(t, stdhttp.MethodGet, "/healthz", nil, nil).Code)
	assert.Equal(t, stdhttp.StatusOK, s.do(t, stdhttp.MethodGet, "/readyz", nil, nil).Code)

	failing := newTestServer(t, readyFunc(func(context.Context) error { return errors.New("redis down") }))
	rec := failing.do(t, stdhttp.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, stdhttp.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis down")
}

func TestToggleLikeOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	_, err := s.videos.Create(context.Background(), &po.Video{ID: "v1", Title: "Clip", CreatedAt: time.Now()})
	require.NoError(t, err)

	anonymous := s.do(t, stdhttp.MethodPost, "/v1/videos/v1/like", nil, nil)
	assert.Equal(t, stdhttp.StatusUnauthorized, anonymous.Code)

	rec := s.do(t, stdhttp.MethodPost, "/v1/videos/v1/like", nil, map[string]string{"x-md-global-user-id": "u1"})
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	var state map[string]any
	decode(t, rec, &state)
	assert.Equal(t, "liked", state["reaction"])
	assert.EqualValues(t, 1, state["like_count"])

	rec = s.do(t, stdhttp.MethodGet, "/v1/videos/v1/interaction", nil, map[string]string{"x-md-global-user-id": "u1"})
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	decode(t, rec, &state)
	assert.Equal(t, "liked", state["reaction"])

	missing := s.do(t, stdhttp.MethodPost, "/v1/videos/nope/dislike", nil, map[string]string{"x-md-global-user-id": "u1"})
	assert.Equal(t, stdhttp.StatusNotFound, missing.Code)
}

func TestListAndSearchOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, title := range []string{"Alpha", "Beta", "Alpine"} {
		_, err := s.videos.Create(context.Background(), &po.Video{ID: title, Title: title, CreatedAt: base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}

	rec := s.do(t, stdhttp.MethodGet, "/v1/videos?page=1&page_size=2", nil, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	var page struct {
		Items []struct {
			VideoID string `json:"video_id"`
		} `json:"items"`
		Total      int64 `json:"total"`
		TotalPages int   `json:"total_pages"`
	}
	decode(t, rec, &page)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Alpine", page.Items[0].VideoID)

	rec = s.do(t, stdhttp.MethodGet, "/v1/videos/search?q=alp", nil, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	decode(t, rec, &page)
	assert.EqualValues(t, 2, page.Total)

	bad := s.do(t, stdhttp.MethodGet, "/v1/videos?page=x", nil, nil)
	assert.Equal(t, stdhttp.StatusBadRequest, bad.Code)
}

func TestAdEventsOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, stdhttp.MethodPost, "/v1/ads/ad-1/impressions", map[string]any{"position": "top", "page_view": true}, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, stdhttp.MethodPost, "/v1/ads/ad-1/clicks", map[string]any{"position": "top"}, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())

	invalid := s.do(t, stdhttp.MethodPost, "/v1/ads/ad-1/clicks", map[string]any{}, nil)
	assert.Equal(t, stdhttp.StatusBadRequest, invalid.Code)

	rec = s.do(t, stdhttp.MethodGet, "/v1/ads/stats", nil, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	var report map[string]any
	decode(t, rec, &report)
	assert.EqualValues(t, 1, report["total_clicks"])
	assert.EqualValues(t, 1, report["total_impressions"])
	assert.EqualValues(t, 1, report["total_page_views"])
	assert.EqualValues(t, 100, report["ctr"])

	badRange := s.do(t, stdhttp.MethodGet, "/v1/ads/stats?from=yesterday", nil, nil)
	assert.Equal(t, stdhttp.StatusBadRequest, badRange.Code)
}

func TestVisitsOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	headers := map[string]string{"User-Agent": "Mozilla/5.0 (iPhone)", "x-tab-id": "tab-1"}

	rec := s.do(t, stdhttp.MethodPost, "/v1/visits", map[string]any{"path": "/"}, headers)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	var visit map[string]any
	decode(t, rec, &visit)
	assert.Equal(t, true, visit["counted"])
	assert.Equal(t, "mobile", visit["device_type"])

	var visitorCookie *stdhttp.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "visitor_id" {
			visitorCookie = c
		}
	}
	require.NotNil(t, visitorCookie)

	rec = s.do(t, stdhttp.MethodPost, "/v1/visits", map[string]any{"path": "/videos"}, headers, visitorCookie)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	decode(t, rec, &visit)
	assert.Equal(t, false, visit["counted"])
	assert.Equal(t, "within_window", visit["reason"])

	rec = s.do(t, stdhttp.MethodGet, "/v1/visits/stats", nil, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	var stats map[string]any
	decode(t, rec, &stats)
	assert.EqualValues(t, 1, stats["mobile"])
	assert.EqualValues(t, 1, stats["total"])

	invalid := s.do(t, stdhttp.MethodPost, "/v1/visits", map[string]any{"path": "no-slash"}, headers)
	assert.Equal(t, stdhttp.StatusBadRequest, invalid.Code)
}

func TestCatalogAdminOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, stdhttp.MethodPost, "/v1/admin/videos", map[string]any{
		"video_id":   "v9",
		"title":      "Night Drive",
		"categories": []string{"Drama"},
	}, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, stdhttp.MethodPatch, "/v1/admin/videos/v9", map[string]any{"tags": []string{"Neon"}}, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())

	stored, err := s.videos.Get(context.Background(), "v9")
	require.NoError(t, err)
	assert.Equal(t, []string{"neon"}, stored.TagsLower)
}
