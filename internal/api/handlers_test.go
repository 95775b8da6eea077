package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yegors/skyboard/internal/config"
	"github.com/yegors/skyboard/internal/dashboard"
	"github.com/yegors/skyboard/internal/geo"
	"github.com/yegors/skyboard/internal/opensky"
	"github.com/yegors/skyboard/internal/palette"
	"github.com/yegors/skyboard/internal/storage/sqlite"
	"github.com/yegors/skyboard/pkg/logger"
)

type stubHistory struct {
	positions []geo.Position
}

func (s stubHistory) Positions(context.Context, int) ([]geo.Position, error) {
	return s.positions, nil
}

func (s stubHistory) FlightTrack(_ context.Context, icao24 string) (*sqlite.FlightTrack, error) {
	if icao24 != "af1" {
		return nil, sqlite.ErrNotFound
	}
	return &sqlite.FlightTrack{ICAO24: icao24}, nil
}

func (s stubHistory) Summary(context.Context) (*sqlite.Summary, error) {
	return &sqlite.Summary{Samples: len(s.positions)}, nil
}

func (s stubHistory) Fleet(context.Context) (*sqlite.FleetSummary, error) {
	return &sqlite.FleetSummary{Aircraft: 1}, nil
}

func newTestServer(t *testing.T, snap *opensky.Snapshot, history dashboard.HistoryStore, cfg *config.Config) *httptest.Server {
	t.Helper()

	if cfg == nil {
		cfg = &config.Config{}
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	log := logger.NewNop()
	service := dashboard.NewService(dashboard.Options{
		Region: opensky.BBox{LaMin: cfg.Region.MinLat, LoMin: cfg.Region.MinLon, LaMax: cfg.Region.MaxLat, LoMax: cfg.Region.MaxLon},
	}, palette.Hashed{}, log)
	if err := service.Load(context.Background(), snap, history); err != nil {
		t.Fatalf("Load: %v", err)
	}

	srv := httptest.NewServer(NewRouter(service, cfg, log).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func loadedServer(t *testing.T) *httptest.Server {
	lat, lon := 43.6, 1.44
	snap := &opensky.Snapshot{
		Time: 1700000000,
		States: []opensky.StateVector{
			{ICAO24: "af1", OriginCountry: "France", Latitude: &lat, Longitude: &lon},
		},
	}
	history := stubHistory{positions: []geo.Position{
		geo.NewPosition("af1", 0, 43.61, 1.43, false),
		geo.NewPosition("af1", 10, 43.6, 1.44, true),
		geo.NewPosition("af2", 20, 49.0097, 2.5479, true),
	}}
	return newTestServer(t, snap, history, nil)
}

func get(t *testing.T, srv *httptest.Server, path string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == http.StatusOK {
		if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("GET %s: Content-Type = %q", path, ct)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("GET %s: decode: %v", path, err)
		}
	}
	return resp.StatusCode
}

func TestStatusCodes(t *testing.T) {
	srv := loadedServer(t)

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/health", http.StatusOK},
		{"/api/v1/config", http.StatusOK},
		{"/api/v1/snapshot/stats", http.StatusOK},
		{"/api/v1/snapshot/aircraft?show_ground=true", http.StatusOK},
		{"/api/v1/snapshot/aircraft?show_ground=maybe", http.StatusBadRequest},
		{"/api/v1/history/summary", http.StatusOK},
		{"/api/v1/history/fleet", http.StatusOK},
		{"/api/v1/history/flights/AF1", http.StatusOK},
		{"/api/v1/history/flights/zz9", http.StatusNotFound},
		{"/api/v1/airports", http.StatusOK},
		{"/api/v1/airports/airport1/arrivals", http.StatusOK},
		{"/api/v1/airports/airport9/arrivals", http.StatusNotFound},
		{"/api/v1/arrivals?lat=43.6&lon=1.44", http.StatusOK},
		{"/api/v1/arrivals?lat=43.6", http.StatusBadRequest},
		{"/api/v1/arrivals?lat=north&lon=1", http.StatusBadRequest},
		{"/api/v1/arrivals?lat=95&lon=1", http.StatusBadRequest},
		{"/api/v1/arrivals?lat=43.6&lon=1.44&max_points=0", http.StatusBadRequest},
		{"/api/v1/arrivals?lat=43.6&lon=1.44&radius_km=-1", http.StatusBadRequest},
		{"/api/v1/arrivals?lat=43.6&lon=1.44&radius_km=NaN", http.StatusBadRequest},
		{"/api/v1/arrivals?lat=43.6&lon=1.44&tolerance_deg=Inf", http.StatusBadRequest},
		{"/api/v1/arrivals?lat=43.6&lon=1.44&tolerance_deg=-Inf", http.StatusBadRequest},
		{"/api/v1/arrivals?lat=NaN&lon=1.44", http.StatusBadRequest},
		{"/api/v1/arrivals/all", http.StatusOK},
		{"/api/v1/nothing", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := get(t, srv, tt.path, nil); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMissingDataIsUnavailable(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	for _, path := range []string{
		"/api/v1/snapshot/stats",
		"/api/v1/snapshot/aircraft",
		"/api/v1/history/summary",
		"/api/v1/airports",
		"/api/v1/arrivals/all",
	} {
		if got := get(t, srv, path, nil); got != http.StatusServiceUnavailable {
			t.Errorf("GET %s = %d, want 503", path, got)
		}
	}

	var health map[string]interface{}
	if get(t, srv, "/api/v1/health", &health) != http.StatusOK || health["status"] != "degraded" {
		t.Errorf("health = %v", health)
	}
}

func TestGetAirportsKeepsDetectionOrder(t *testing.T) {
	srv := loadedServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/airports")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Candidates     int                        `json:"candidates"`
		DefaultAirport string                     `json:"default_airport"`
		Airports       map[string]json.RawMessage `json:"airports"`
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatal(err)
	}

	if body.Candidates != 2 || body.DefaultAirport != "airport1" || len(body.Airports) != 2 {
		t.Errorf("body = %+v", body)
	}
	if i, j := strings.Index(string(raw), `"airport1"`), strings.Index(string(raw), `"airport2"`); i < 0 || j < i {
		t.Errorf("airports out of order: %s", raw)
	}
}

func TestGetArrivals(t *testing.T) {
	srv := loadedServer(t)

	var set dashboard.ArrivalSet
	if code := get(t, srv, "/api/v1/airports/airport1/arrivals", &set); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if set.AirportID != "airport1" || len(set.Arrivals) != 1 || set.Arrivals[0].ICAO24 != "af1" {
		t.Fatalf("arrivals = %+v", set)
	}
	if set.Arrivals[0].Color == "" || len(set.Arrivals[0].Points) != 2 {
		t.Errorf("arrival = %+v", set.Arrivals[0])
	}

	var custom dashboard.ArrivalSet
	get(t, srv, "/api/v1/arrivals?lat=43.6&lon=1.44&radius_km=5&tolerance_deg=0.02&max_points=10", &custom)
	want := geo.ArrivalOptions{NearRadiusKm: 5, ToleranceDeg: 0.02, MaxTrackPoints: 10}
	if custom.Options != want {
		t.Errorf("Options = %+v, want %+v", custom.Options, want)
	}

	var all struct {
		Count    int                     `json:"count"`
		Airports []*dashboard.ArrivalSet `json:"airports"`
	}
	get(t, srv, "/api/v1/arrivals/all", &all)
	if all.Count != 2 || len(all.Airports) != 2 {
		t.Errorf("all = %+v", all)
	}
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>skyboard</h1>"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "js"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "js", "map.js"), []byte("var map;"), 0644); err != nil {
		t.Fatal(err)
	}

	srv := newTestServer(t, nil, nil, &config.Config{Server: config.ServerConfig{StaticFilesDir: dir}})

	for path, want := range map[string]int{
		"/":            http.StatusOK,
		"/js/map.js":   http.StatusOK,
		"/missing.css": http.StatusNotFound,
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("GET %s = %d, want %d", path, resp.StatusCode, want)
		}
		if want == http.StatusOK && resp.Header.Get("Cache-Control") == "" {
			t.Errorf("GET %s: no Cache-Control header", path)
		}
	}
}
