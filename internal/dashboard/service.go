// Package dashboard serves the derived views of one day of flight data:
// detected airports, arrivals at each of them and snapshot statistics.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"

	"github.com/yegors/skyboard/internal/geo"
	"github.com/yegors/skyboard/internal/opensky"
	"github.com/yegors/skyboard/internal/palette"
	"github.com/yegors/skyboard/internal/physics"
	"github.com/yegors/skyboard/internal/stats"
	"github.com/yegors/skyboard/internal/storage/sqlite"
	"github.com/yegors/skyboard/pkg/logger"
)

var (
	ErrAirportNotFound    = errors.New("airport not found")
	ErrFlightNotFound     = errors.New("flight not found")
	ErrNoSnapshot         = errors.New("no snapshot loaded")
	ErrNoHistory          = errors.New("no flight history loaded")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// HistoryStore is the read side of the flight history
type HistoryStore interface {
	Positions(ctx context.Context, stride int) ([]geo.Position, error)
	FlightTrack(ctx context.Context, icao24 string) (*sqlite.FlightTrack, error)
	Summary(ctx context.Context) (*sqlite.Summary, error)
	Fleet(ctx context.Context) (*sqlite.FleetSummary, error)
}

// Options configures the Service
type Options struct {
	ClusterThresholdKm  float64
	IDPrefix            string
	DefaultAirport      string
	MagneticVariation   bool
	Arrivals            geo.ArrivalOptions
	Region              opensky.BBox
	HistorySampleStride int
	CacheSize           int
	CacheTTL            time.Duration
}

// Airport is a detected airport
type Airport struct {
	geo.AirportCluster
	MagneticVariation *float64 `json:"magnetic_variation,omitempty"` // Declination in degrees, +East
}

// AirportSet is the result of airport detection
type AirportSet struct {
	Candidates     int         `json:"candidates"`
	Airports       []Airport   `json:"airports"`
	Centroid       *geo.LatLon `json:"centroid,omitempty"`
	DefaultAirport string      `json:"default_airport"`

	clusters []geo.AirportCluster
}

// Arrival is one classified approach with its display colour
type Arrival struct {
	geo.ApproachTrack
	Color string `json:"color"`
}

// ArrivalSet lists the arrivals at one location
type ArrivalSet struct {
	AirportID string             `json:"airport_id,omitempty"`
	Latitude  float64            `json:"latitude"`
	Longitude float64            `json:"longitude"`
	Options   geo.ArrivalOptions `json:"options"`
	Arrivals  []Arrival          `json:"arrivals"`
}

// Info describes what is loaded
type Info struct {
	SnapshotTime     *time.Time `json:"snapshot_time,omitempty"`
	SnapshotStates   int        `json:"snapshot_states"`
	HistoryPositions int        `json:"history_positions"`
	Airports         int        `json:"airports"`
	DefaultAirport   string     `json:"default_airport"`
}

// Service holds the loaded data and computes the dashboard views. Data is
// read-only between calls to Load.
type Service struct {
	opts   Options
	colors palette.Assigner
	logger *logger.Logger
	cache  *expirable.LRU[string, map[string]geo.ApproachTrack]

	mu        sync.RWMutex
	snapshot  *opensky.Snapshot
	history   HistoryStore
	positions []geo.Position
	airports  *AirportSet
	// generation counts loads; it prefixes cache keys so a classification
	// started before a reload is never served after it
	generation uint64
}

// NewService creates a dashboard service
func NewService(opts Options, colors palette.Assigner, log *logger.Logger) *Service {
	if opts.ClusterThresholdKm <= 0 {
		opts.ClusterThresholdKm = geo.DefaultClusterThresholdKm
	}
	if opts.IDPrefix == "" {
		opts.IDPrefix = "airport"
	}
	if opts.DefaultAirport == "" {
		opts.DefaultAirport = opts.IDPrefix + "1"
	}
	if opts.HistorySampleStride < 1 {
		opts.HistorySampleStride = 1
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 64
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Minute
	}
	opts.Arrivals = opts.Arrivals.WithDefaults()
	if colors == nil {
		colors = palette.Hashed{}
	}

	return &Service{
		opts:   opts,
		colors: colors,
		logger: log.Named("dashboard"),
		cache:  expirable.NewLRU[string, map[string]geo.ApproachTrack](opts.CacheSize, nil, opts.CacheTTL),
	}
}

// Load replaces the data the service works on. snap or history may be nil
// when that source is unavailable; the views depending on it then fail with
// ErrNoSnapshot or ErrNoHistory.
func (s *Service) Load(ctx context.Context, snap *opensky.Snapshot, history HistoryStore) error {
	var positions []geo.Position
	if history != nil {
		start := time.Now()
		var err error
		positions, err = history.Positions(ctx, s.opts.HistorySampleStride)
		if err != nil {
			return fmt.Errorf("failed to load history positions: %w", err)
		}
		s.logger.Info("Loaded history positions",
			logger.Int("positions", len(positions)),
			logger.Int("stride", s.opts.HistorySampleStride),
			logger.Duration("took", time.Since(start)))
	}

	airports := s.detectAirports(positions)

	s.mu.Lock()
	s.snapshot = snap
	s.history = history
	s.positions = positions
	s.airports = airports
	s.generation++
	s.cache.Purge()
	s.mu.Unlock()

	if snap != nil {
		s.logger.Info("Loaded snapshot",
			logger.Int("states", len(snap.States)),
			logger.Time("time", time.Unix(snap.Time, 0).UTC()))
	}
	s.logger.Info("Detected airports",
		logger.Int("candidates", airports.Candidates),
		logger.Int("airports", len(airports.Airports)),
		logger.Float64("threshold_km", s.opts.ClusterThresholdKm))

	return nil
}

func (s *Service) detectAirports(positions []geo.Position) *AirportSet {
	candidates := geo.FirstGroundSightings(positions, s.opts.IDPrefix)
	clusters := geo.Deduplicate(candidates, s.opts.ClusterThresholdKm)

	set := &AirportSet{
		Candidates:     len(candidates),
		Airports:       make([]Airport, 0, len(clusters)),
		DefaultAirport: s.opts.DefaultAirport,
		clusters:       clusters,
	}

	if lat, lon, ok := geo.Centroid(clusters); ok {
		set.Centroid = &geo.LatLon{Latitude: lat, Longitude: lon}
	}

	for _, c := range clusters {
		a := Airport{AirportCluster: c}
		if s.opts.MagneticVariation {
			date := time.Now()
			if len(positions) > 0 {
				date = time.Unix(positions[0].Timestamp, 0)
			}
			v := physics.CalculateMagneticVariation(c.Latitude, c.Longitude, 0, date)
			a.MagneticVariation = &v
		}
		set.Airports = append(set.Airports, a)
	}

	return set
}

// Airports returns the detected airports
func (s *Service) Airports() (*AirportSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.history == nil {
		return nil, ErrNoHistory
	}
	return s.airports, nil
}

// Arrivals classifies the arrivals at a detected airport
func (s *Service) Arrivals(ctx context.Context, airportID string) (*ArrivalSet, error) {
	s.mu.RLock()
	history, airports := s.history, s.airports
	s.mu.RUnlock()

	if history == nil {
		return nil, ErrNoHistory
	}

	c, ok := geo.FindCluster(airports.clusters, airportID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAirportNotFound, airportID)
	}

	set, err := s.ArrivalsAt(ctx, c.Latitude, c.Longitude, s.opts.Arrivals)
	if err != nil {
		return nil, err
	}
	set.AirportID = c.ID
	return set, nil
}

// ArrivalsAt classifies the arrivals at any location. Zero option fields
// take the configured values.
func (s *Service) ArrivalsAt(ctx context.Context, lat, lon float64, opts geo.ArrivalOptions) (*ArrivalSet, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("%w: (%f, %f)", ErrInvalidCoordinates, lat, lon)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts = s.withConfigured(opts)

	s.mu.RLock()
	history, positions, generation := s.history, s.positions, s.generation
	s.mu.RUnlock()

	if history == nil {
		return nil, ErrNoHistory
	}

	key := cacheKey(generation, lat, lon, opts)
	tracks, ok := s.cache.Get(key)
	if !ok {
		start := time.Now()
		tracks = geo.ClassifyArrivals(positions, lat, lon, opts)
		s.cache.Add(key, tracks)
		s.logger.Debug("Classified arrivals",
			logger.Float64("lat", lat),
			logger.Float64("lon", lon),
			logger.Int("arrivals", len(tracks)),
			logger.Duration("took", time.Since(start)))
	}

	return s.colorize(lat, lon, opts, tracks), nil
}

func cacheKey(generation uint64, lat, lon float64, opts geo.ArrivalOptions) string {
	return fmt.Sprintf("%d/%v,%v/%s", generation, lat, lon, opts.Key())
}

func (s *Service) withConfigured(opts geo.ArrivalOptions) geo.ArrivalOptions {
	if opts.NearRadiusKm <= 0 {
		opts.NearRadiusKm = s.opts.Arrivals.NearRadiusKm
	}
	if opts.ToleranceDeg <= 0 {
		opts.ToleranceDeg = s.opts.Arrivals.ToleranceDeg
	}
	if opts.MaxTrackPoints <= 0 {
		opts.MaxTrackPoints = s.opts.Arrivals.MaxTrackPoints
	}
	return opts
}

// colorize turns classified tracks into a result sorted by ICAO24, with a
// colour per track
func (s *Service) colorize(lat, lon float64, opts geo.ArrivalOptions, tracks map[string]geo.ApproachTrack) *ArrivalSet {
	ids := make([]string, 0, len(tracks))
	for id := range tracks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	set := &ArrivalSet{
		Latitude:  lat,
		Longitude: lon,
		Options:   opts,
		Arrivals:  make([]Arrival, 0, len(ids)),
	}
	for _, id := range ids {
		set.Arrivals = append(set.Arrivals, Arrival{
			ApproachTrack: tracks[id],
			Color:         s.colors.Color(id),
		})
	}
	return set
}

// ArrivalsForAll classifies the arrivals at every detected airport
// concurrently. Results follow the airport order.
func (s *Service) ArrivalsForAll(ctx context.Context) ([]*ArrivalSet, error) {
	s.mu.RLock()
	history, airports := s.history, s.airports
	s.mu.RUnlock()

	if history == nil {
		return nil, ErrNoHistory
	}

	results := make([]*ArrivalSet, len(airports.Airports))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, a := range airports.Airports {
		g.Go(func() error {
			set, err := s.ArrivalsAt(ctx, a.Latitude, a.Longitude, s.opts.Arrivals)
			if err != nil {
				return fmt.Errorf("airport %s: %w", a.ID, err)
			}
			set.AirportID = a.ID
			results[i] = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// SnapshotStats summarizes the loaded snapshot
func (s *Service) SnapshotStats() (*stats.Summary, error) {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()

	if snap == nil {
		return nil, ErrNoSnapshot
	}
	sum := stats.Summarize(snap.States, s.opts.Region)
	return &sum, nil
}

// SnapshotAircraft lists the aircraft of the snapshot inside the region
func (s *Service) SnapshotAircraft(showGround bool) (*stats.VisibleSet, error) {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()

	if snap == nil {
		return nil, ErrNoSnapshot
	}

	set := stats.Visible(snap.States, showGround, s.opts.Region)
	if s.opts.MagneticVariation {
		date := time.Unix(snap.Time, 0)
		for i := range set.Aircraft {
			a := &set.Aircraft[i]
			altFt := 0.0
			if a.BaroAltitude != nil {
				altFt = physics.AltitudeFeet(*a.BaroAltitude)
			}
			decl := physics.CalculateMagneticVariation(a.Latitude, a.Longitude, altFt, date)
			mag := physics.TrueToMagnetic(a.TrueTrack, decl)
			a.MagneticTrack = &mag
		}
	}
	return &set, nil
}

// HistorySummary describes the flight log
func (s *Service) HistorySummary(ctx context.Context) (*sqlite.Summary, error) {
	history, err := s.historyStore()
	if err != nil {
		return nil, err
	}
	sum, err := history.Summary(ctx)
	if errors.Is(err, sqlite.ErrNotFound) {
		return nil, ErrNoHistory
	}
	return sum, err
}

// Fleet describes the aircraft database
func (s *Service) Fleet(ctx context.Context) (*sqlite.FleetSummary, error) {
	history, err := s.historyStore()
	if err != nil {
		return nil, err
	}
	return history.Fleet(ctx)
}

// FlightTrack returns the full recorded track of one aircraft
func (s *Service) FlightTrack(ctx context.Context, icao24 string) (*sqlite.FlightTrack, error) {
	history, err := s.historyStore()
	if err != nil {
		return nil, err
	}
	track, err := history.FlightTrack(ctx, icao24)
	if errors.Is(err, sqlite.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrFlightNotFound, icao24)
	}
	return track, err
}

func (s *Service) historyStore() (HistoryStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.history == nil {
		return nil, ErrNoHistory
	}
	return s.history, nil
}

// Info describes the loaded data
func (s *Service) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := Info{
		HistoryPositions: len(s.positions),
		DefaultAirport:   s.opts.DefaultAirport,
	}
	if s.snapshot != nil {
		t := time.Unix(s.snapshot.Time, 0).UTC()
		info.SnapshotTime = &t
		info.SnapshotStates = len(s.snapshot.States)
	}
	if s.airports != nil {
		info.Airports = len(s.airports.Airports)
	}
	return info
}

// Options returns the effective options
func (s *Service) Options() Options {
	return s.opts
}
