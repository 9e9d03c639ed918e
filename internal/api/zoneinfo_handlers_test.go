package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoneinfo/server/internal/auth"
	"github.com/zoneinfo/server/internal/category"
	"github.com/zoneinfo/server/internal/compression"
	"github.com/zoneinfo/server/internal/config"
	"github.com/zoneinfo/server/internal/counts"
	"github.com/zoneinfo/server/internal/metrics"
	"github.com/zoneinfo/server/internal/performance"
	"github.com/zoneinfo/server/internal/snapshot"
	"github.com/zoneinfo/server/internal/testutil"
	"github.com/zoneinfo/server/internal/world"
)

type fakeController struct {
	world    world.Context
	throttle bool
	recounts int
	stopped  bool
}

func (f *fakeController) RequestFullRecount() bool {
	if f.throttle {
		return false
	}
	f.recounts++
	return true
}

func (f *fakeController) RequestStop()         { f.stopped = true }
func (f *fakeController) World() world.Context { return f.world }

// harborStore publishes one pass for district 3: two built and one empty
// low-density residential square plus one built unzoned square.
func harborStore() *counts.Store {
	s := counts.NewStore()
	add := func(c category.Category, built, empty int) {
		for i := 0; i < built; i++ {
			s.Increment(c, 3, true)
		}
		for i := 0; i < empty; i++ {
			s.Increment(c, 3, false)
		}
	}
	add(category.ResidentialGenericLow, 2, 1)
	add(category.ResidentialSubtotal, 2, 1)
	add(category.Unzoned, 1, 0)
	add(category.Total, 3, 1)
	s.Publish()
	return s
}

type testServer struct {
	helper   *testutil.HTTPTestHelper
	control  *fakeController
	store    *counts.Store
	tokens   *auth.TokenService
	registry *prometheus.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	w := testutil.NewWorld(t)
	w.PutDistrict(3, "Harbor", world.SpecializationNone, world.Area{MinX: -500, MinZ: -500, MaxX: 500, MaxZ: 500})

	cfg := &config.Config{
		Server: config.ServerConfig{Environment: "development", RateLimit: "1000-M"},
		Auth:   config.AuthConfig{JWTSecret: "test_jwt_secret_key_32_bytes_long!!", JWTExpiration: time.Minute},
	}
	store := harborStore()
	reader := snapshot.NewReader(store, category.DefaultRuleSet(), nil)
	control := &fakeController{world: w.Context()}
	tokens := auth.NewTokenService(cfg.Auth)
	registry := prometheus.NewRegistry()
	metrics.NewObserver(registry).OnPass(1, time.Millisecond)

	handlers := NewZoneInfoHandlers(reader, control, snapshot.DefaultOptions(), performance.NewProfiler(true), nil)
	router, err := NewRouter(RouterDeps{
		Config:   cfg,
		Handlers: handlers,
		Auth:     auth.NewMiddleware(tokens, nil),
		Gatherer: registry,
	})
	require.NoError(t, err)

	return &testServer{
		helper:   testutil.NewHTTPTestHelper(router),
		control:  control,
		store:    store,
		tokens:   tokens,
		registry: registry,
	}
}

func findRow(t *testing.T, rows []snapshot.Row, name string) (snapshot.Row, bool) {
	t.Helper()
	for _, r := range rows {
		if r.Category == name {
			return r, true
		}
	}
	return snapshot.Row{}, false
}

func TestGetZoneInfo(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.helper.MakeRequest(http.MethodGet, "/api/zoneinfo?district=3", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp zoneInfoResponse
	testutil.DecodeJSON(t, rr, &resp)
	assert.Equal(t, uint8(3), resp.District)
	assert.Equal(t, "Harbor", resp.DistrictName)
	assert.Equal(t, "default", resp.RuleSet)
	assert.Equal(t, uint64(1), resp.Pass)
	assert.True(t, resp.IncludeUnzoned)

	total, ok := findRow(t, resp.Rows, "Total")
	require.True(t, ok)
	assert.Equal(t, 3, total.Built)
	assert.Equal(t, 1, total.Empty)
	assert.Equal(t, "4", total.TotalText)
}

func TestGetZoneInfo_DefaultsToEntireCity(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.helper.MakeRequest(http.MethodGet, "/api/zoneinfo", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp zoneInfoResponse
	testutil.DecodeJSON(t, rr, &resp)
	assert.Equal(t, uint8(world.DistrictEntireCity), resp.District)
	assert.Equal(t, "Entire City", resp.DistrictName)

	low, ok := findRow(t, resp.Rows, "ResidentialLow")
	require.True(t, ok)
	assert.Equal(t, 3, low.Total)
}

func TestGetZoneInfo_PercentWithoutUnzoned(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.helper.MakeRequest(http.MethodGet, "/api/zoneinfo?district=3&percent=true&include_unzoned=false", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp zoneInfoResponse
	testutil.DecodeJSON(t, rr, &resp)
	assert.True(t, resp.Percent)
	assert.False(t, resp.IncludeUnzoned)

	_, ok := findRow(t, resp.Rows, "Unzoned")
	assert.False(t, ok, "unzoned row should be hidden")

	total, ok := findRow(t, resp.Rows, "Total")
	require.True(t, ok)
	assert.Equal(t, 3, total.Total)
	assert.Equal(t, "100%", total.TotalText)

	low, ok := findRow(t, resp.Rows, "ResidentialLow")
	require.True(t, ok)
	assert.Equal(t, "100%", low.TotalText)
	assert.Equal(t, "100%", low.BuiltText)

	// with the unzoned square counted, two of three built squares are
	// residential
	rr = ts.helper.MakeRequest(http.MethodGet, "/api/zoneinfo?district=3&percent=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp = zoneInfoResponse{}
	testutil.DecodeJSON(t, rr, &resp)
	low, ok = findRow(t, resp.Rows, "ResidentialLow")
	require.True(t, ok)
	assert.Equal(t, "67%", low.BuiltText)
	assert.Equal(t, "75%", low.TotalText)
}

func TestGetZoneInfo_InvalidQuery(t *testing.T) {
	ts := newTestServer(t)

	for _, q := range []string{"district=abc", "district=129", "district=-1", "percent=maybe", "include_unzoned=2"} {
		t.Run(q, func(t *testing.T) {
			rr := ts.helper.MakeRequest(http.MethodGet, "/api/zoneinfo?"+q, nil)
			require.Equal(t, http.StatusBadRequest, rr.Code)

			var body auth.ErrorResponse
			testutil.DecodeJSON(t, rr, &body)
			assert.Equal(t, "InvalidQuery", body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestGetCategories(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.helper.MakeRequest(http.MethodGet, "/api/zoneinfo/categories", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp categoriesResponse
	testutil.DecodeJSON(t, rr, &resp)
	assert.Equal(t, "default", resp.RuleSet)
	assert.True(t, resp.IncludeUnzoned)
	assert.Len(t, resp.Categories, len(category.DefaultRuleSet().Categories()))
}

func TestGetDistricts(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.helper.MakeRequest(http.MethodGet, "/api/districts", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Districts []snapshot.DistrictEntry `json:"districts"`
	}
	testutil.DecodeJSON(t, rr, &resp)
	assert.Equal(t, []snapshot.DistrictEntry{
		{ID: world.DistrictEntireCity, Name: "Entire City"},
		{ID: 0, Name: "No District"},
		{ID: 3, Name: "Harbor"},
	}, resp.Districts)
}

func TestExportSnapshot(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.helper.MakeRequest(http.MethodGet, "/api/zoneinfo/export", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var out compression.CompressedSnapshot
	testutil.DecodeJSON(t, rr, &out)
	assert.Equal(t, "binary_zstd", out.Format)

	buf, err := out.Decode()
	require.NoError(t, err)
	assert.Equal(t, *ts.store.Final(), *buf)
}

func TestRecountRequiresOperator(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.helper.MakeRequest(http.MethodPost, "/api/zoneinfo/recount", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	viewer, err := ts.tokens.GenerateToken("dash", auth.RoleViewer)
	require.NoError(t, err)
	rr = ts.helper.MakeAuthorizedRequest(http.MethodPost, "/api/zoneinfo/recount", nil, viewer)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Zero(t, ts.control.recounts)

	operator, err := ts.tokens.GenerateToken("ops", auth.RoleOperator)
	require.NoError(t, err)
	rr = ts.helper.MakeAuthorizedRequest(http.MethodPost, "/api/zoneinfo/recount", nil, operator)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, 1, ts.control.recounts)

	ts.control.throttle = true
	rr = ts.helper.MakeAuthorizedRequest(http.MethodPost, "/api/zoneinfo/recount", nil, operator)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), "RecountThrottled")
}

func TestStop(t *testing.T) {
	ts := newTestServer(t)

	operator, err := ts.tokens.GenerateToken("ops", auth.RoleOperator)
	require.NoError(t, err)
	rr := ts.helper.MakeAuthorizedRequest(http.MethodPost, "/api/zoneinfo/stop", nil, operator)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.True(t, ts.control.stopped)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.helper.MakeRequest(http.MethodGet, "/api/zoneinfo/recount", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHealthMetricsAndProfile(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.helper.MakeRequest(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var health map[string]any
	testutil.DecodeJSON(t, rr, &health)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, true, health["world_ready"])
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = ts.helper.MakeRequest(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "zoneinfo_passes_published_total 1"), rr.Body.String())

	rr = ts.helper.MakeRequest(http.MethodGet, "/api/debug/profile", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}
