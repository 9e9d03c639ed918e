package simclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoneinfo/server/internal/config"
	"github.com/zoneinfo/server/internal/testutil"
	"github.com/zoneinfo/server/internal/world"
)

func newTestClient(baseURL string, retries int) *Client {
	c := NewClient(config.SimulationConfig{
		BaseURL:    baseURL,
		Timeout:    5 * time.Second,
		RetryCount: retries,
	}, nil)
	c.backoff = time.Millisecond
	return c
}

func sampleWorld() WorldResponse {
	return WorldResponse{
		Version: 7,
		Blocks: []world.Block{
			testutil.NewBlock(0, 0, 2).Square(0, 0, world.ZoneOffice, true).Build(),
			testutil.NewBlock(100, 100, 1).Deleted().Build(),
		},
		Buildings: []BuildingRecord{
			{Position: world.Vec3{X: -28, Z: 28}, Width: 1, Length: 1, Service: "office_hightech", AI: "common"},
			{Position: world.Vec3{X: 500, Z: 500}, Width: 2, Length: 2, Service: "none", AI: "decoration"},
		},
		Districts: []DistrictRecord{
			{
				ID:              4,
				Name:            "Silicon Flats",
				Specializations: []string{"hightech", "office_wall_to_wall"},
				Areas:           []world.Area{{MinX: -100, MinZ: -100, MaxX: 100, MaxZ: 100}},
			},
		},
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient(config.SimulationConfig{
		BaseURL:    "http://localhost:8081/",
		Timeout:    30 * time.Second,
		RetryCount: 3,
	}, nil)

	if client.baseURL != "http://localhost:8081" {
		t.Errorf("Expected trailing slash trimmed, got %s", client.baseURL)
	}
	if client.client.Timeout != 30*time.Second {
		t.Errorf("Expected timeout 30s, got %v", client.client.Timeout)
	}
	if client.retryCount != 3 {
		t.Errorf("Expected retryCount 3, got %d", client.retryCount)
	}
}

func TestClient_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("Expected path /health, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "ok", Service: "sim", Version: "1.0"})
	}))
	defer server.Close()

	if err := newTestClient(server.URL, 0).HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}

func TestClient_HealthCheck_Unhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "loading"})
	}))
	defer server.Close()

	err := newTestClient(server.URL, 0).HealthCheck(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}

func TestClient_FetchWorld(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/world" {
			t.Errorf("Expected path /world, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sampleWorld())
	}))
	defer server.Close()

	snap, err := newTestClient(server.URL, 0).FetchWorld(context.Background())
	if err != nil {
		t.Fatalf("FetchWorld failed: %v", err)
	}
	m := snap.World

	if snap.Version != 7 {
		t.Errorf("Expected version 7, got %d", snap.Version)
	}
	if m.Len() != 2 {
		t.Fatalf("Expected 2 blocks, got %d", m.Len())
	}
	if got := m.Block(0).ZoneAt(0, 0); got != world.ZoneOffice {
		t.Errorf("Expected office zone, got %d", got)
	}
	if m.Block(1).Created() {
		t.Error("Expected deleted block to stay deleted")
	}
	if m.BuildingCount() != 2 {
		t.Fatalf("Expected 2 buildings, got %d", m.BuildingCount())
	}
	if b := m.Building(1); !b.Trackable() || b.SubService != world.SubServiceOfficeHightech {
		t.Errorf("Unexpected first building: %+v", b)
	}
	if m.Building(2).Trackable() {
		t.Error("Expected decoration building not to be trackable")
	}

	d := m.District(4)
	if !d.Created() || d.Name != "Silicon Flats" {
		t.Errorf("Unexpected district: %+v", d)
	}
	if !d.Specialization.Has(world.SpecializationHightech | world.SpecializationOfficeWallToWall) {
		t.Errorf("Expected hightech and office wall-to-wall, got %s", d.Specialization)
	}
	if got := m.DistrictAt(world.Vec3{X: -28, Z: 28}); got != 4 {
		t.Errorf("Expected district 4 at square center, got %d", got)
	}
}

func TestClient_FetchWorld_Retry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(sampleWorld())
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL, 3).FetchWorld(context.Background()); err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 calls, got %d", calls.Load())
	}
}

func TestClient_FetchWorld_GivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 2).FetchWorld(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls.Load())
	}
}

func TestDecode_RejectsBadSpecialization(t *testing.T) {
	resp := sampleWorld()
	resp.Districts[0].Specializations = []string{"casino"}
	if _, err := Decode(&resp); err == nil {
		t.Error("Expected error for unknown specialization")
	}
}

func TestDecode_RejectsOversizedBlock(t *testing.T) {
	resp := sampleWorld()
	resp.Blocks = append(resp.Blocks, world.Block{Flags: world.BlockCreated.WithRows(world.MaxBlockRows + 1)})
	if _, err := Decode(&resp); err == nil {
		t.Error("Expected error for a block with too many rows")
	}
}

type fakeFetcher struct {
	versions []int64
	calls    int
}

func (f *fakeFetcher) FetchWorld(context.Context) (*Snapshot, error) {
	v := f.versions[min(f.calls, len(f.versions)-1)]
	f.calls++
	return &Snapshot{Version: v, World: world.NewMemory()}, nil
}

func TestRefresher_AppliesOnlyNewVersions(t *testing.T) {
	fetcher := &fakeFetcher{versions: []int64{1, 1, 2, 0, 0}}
	applied := 0
	r := NewRefresher(fetcher, time.Second, func(world.Context) { applied++ }, nil)

	want := []bool{true, false, true, true, true}
	for i, w := range want {
		got, err := r.Refresh(context.Background())
		if err != nil {
			t.Fatalf("Refresh %d failed: %v", i, err)
		}
		if got != w {
			t.Errorf("Refresh %d: applied = %v, want %v", i, got, w)
		}
	}
	if applied != 4 {
		t.Errorf("Expected 4 applications, got %d", applied)
	}
}

func TestRefresher_RunStopsOnCancel(t *testing.T) {
	fetcher := &fakeFetcher{versions: []int64{1}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	r := NewRefresher(fetcher, time.Millisecond, func(world.Context) { cancel() }, nil)

	go func() { done <- r.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}
