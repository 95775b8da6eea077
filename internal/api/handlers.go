package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/iancoleman/orderedmap"

	"github.com/yegors/skyboard/internal/config"
	"github.com/yegors/skyboard/internal/dashboard"
	"github.com/yegors/skyboard/internal/geo"
	"github.com/yegors/skyboard/pkg/logger"
)

// Handler contains the API handlers
type Handler struct {
	service *dashboard.Service
	config  *config.Config
	logger  *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(service *dashboard.Service, config *config.Config, logger *logger.Logger) *Handler {
	return &Handler{
		service: service,
		config:  config,
		logger:  logger.Named("api-handler"),
	}
}

// GetHealth returns what data is loaded
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	info := h.service.Info()

	status := "ok"
	if info.SnapshotTime == nil || info.HistoryPositions == 0 {
		status = "degraded"
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":            status,
		"snapshot_time":     info.SnapshotTime,
		"snapshot_states":   info.SnapshotStates,
		"history_positions": info.HistoryPositions,
		"airports":          info.Airports,
		"default_airport":   info.DefaultAirport,
	})
}

// GetConfig returns the public configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	opts := h.service.Options()

	publicConfig := map[string]interface{}{
		"airports": map[string]interface{}{
			"cluster_threshold_km": opts.ClusterThresholdKm,
			"default_airport":      opts.DefaultAirport,
			"magnetic_variation":   opts.MagneticVariation,
		},
		"arrivals": map[string]interface{}{
			"near_radius_km":   opts.Arrivals.NearRadiusKm,
			"tolerance_deg":    opts.Arrivals.ToleranceDeg,
			"max_track_points": opts.Arrivals.MaxTrackPoints,
			"colors":           h.config.Arrivals.Colors,
		},
		"region": opts.Region,
		"data": map[string]interface{}{
			"history_sample_stride": opts.HistorySampleStride,
		},
	}

	WriteJSON(w, http.StatusOK, publicConfig)
}

// GetSnapshotStats returns the statistics of the loaded OpenSky snapshot
func (h *Handler) GetSnapshotStats(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.SnapshotStats()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, sum)
}

// GetSnapshotAircraft returns the snapshot aircraft inside the region
func (h *Handler) GetSnapshotAircraft(w http.ResponseWriter, r *http.Request) {
	showGround := false
	if v := r.URL.Query().Get("show_ground"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "Invalid show_ground: must be a boolean", http.StatusBadRequest)
			return
		}
		showGround = parsed
	}

	set, err := h.service.SnapshotAircraft(showGround)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, set)
}

// GetHistorySummary describes the imported flight log
func (h *Handler) GetHistorySummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.HistorySummary(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, sum)
}

// GetFleet describes the aircraft database
func (h *Handler) GetFleet(w http.ResponseWriter, r *http.Request) {
	fleet, err := h.service.Fleet(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, fleet)
}

// GetFlightTrack returns every recorded sample of one aircraft
func (h *Handler) GetFlightTrack(w http.ResponseWriter, r *http.Request) {
	icao24 := strings.ToLower(chi.URLParam(r, "icao24"))
	if icao24 == "" {
		http.Error(w, "Missing aircraft ID", http.StatusBadRequest)
		return
	}

	track, err := h.service.FlightTrack(r.Context(), icao24)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, track)
}

// airportsResponse keeps airports keyed by ID in detection order
type airportsResponse struct {
	Candidates     int                    `json:"candidates"`
	Centroid       *geo.LatLon            `json:"centroid,omitempty"`
	DefaultAirport string                 `json:"default_airport"`
	Airports       *orderedmap.OrderedMap `json:"airports"`
}

// GetAirports returns the airports detected in the flight history
func (h *Handler) GetAirports(w http.ResponseWriter, r *http.Request) {
	set, err := h.service.Airports()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	airports := orderedmap.New()
	for _, a := range set.Airports {
		airports.Set(a.ID, a)
	}

	WriteJSON(w, http.StatusOK, airportsResponse{
		Candidates:     set.Candidates,
		Centroid:       set.Centroid,
		DefaultAirport: set.DefaultAirport,
		Airports:       airports,
	})
}

// GetAirportArrivals returns the arrivals at a detected airport
func (h *Handler) GetAirportArrivals(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Missing airport ID", http.StatusBadRequest)
		return
	}

	start := time.Now()
	set, err := h.service.Arrivals(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Debug("Airport arrivals",
		logger.String("airport", id),
		logger.Int("arrivals", len(set.Arrivals)),
		logger.Duration("duration", time.Since(start)))

	WriteJSON(w, http.StatusOK, set)
}

// GetArrivals returns the arrivals at arbitrary coordinates
func (h *Handler) GetArrivals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := parseFloat(q.Get("lat"), "lat", true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	lon, err := parseFloat(q.Get("lon"), "lon", true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var opts geo.ArrivalOptions
	if opts.NearRadiusKm, err = parseFloat(q.Get("radius_km"), "radius_km", false); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if opts.ToleranceDeg, err = parseFloat(q.Get("tolerance_deg"), "tolerance_deg", false); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if v := q.Get("max_points"); v != "" {
		opts.MaxTrackPoints, err = strconv.Atoi(v)
		if err != nil || opts.MaxTrackPoints <= 0 {
			http.Error(w, "Invalid max_points: must be a positive integer", http.StatusBadRequest)
			return
		}
	}
	if opts.NearRadiusKm < 0 || opts.ToleranceDeg < 0 {
		http.Error(w, "Invalid options: radius_km and tolerance_deg must be positive", http.StatusBadRequest)
		return
	}

	set, err := h.service.ArrivalsAt(r.Context(), lat, lon, opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, set)
}

// GetAllArrivals returns the arrivals at every detected airport
func (h *Handler) GetAllArrivals(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.ArrivalsForAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(all),
		"airports": all,
	})
}

// writeError maps service errors to status codes
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, dashboard.ErrAirportNotFound), errors.Is(err, dashboard.ErrFlightNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, dashboard.ErrInvalidCoordinates):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, dashboard.ErrNoSnapshot), errors.Is(err, dashboard.ErrNoHistory):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("Request aborted",
			logger.String("path", r.URL.Path),
			logger.Error(err))
		http.Error(w, "Request timed out", http.StatusServiceUnavailable)
	default:
		h.logger.Error("Request failed",
			logger.String("path", r.URL.Path),
			logger.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// parseFloat parses an optional or required float query parameter
func parseFloat(value, name string, required bool) (float64, error) {
	if value == "" {
		if required {
			return 0, fmt.Errorf("missing %s parameter", name)
		}
		return 0, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: must be a number", name)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid %s: must be finite", name)
	}
	return f, nil
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
