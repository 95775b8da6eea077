package config

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server   ServerConfig   `toml:"server"`   // HTTP server settings
	Logging  LoggingConfig  `toml:"logging"`  // Application logging settings
	Data     DataConfig     `toml:"data"`     // Snapshot and history files
	OpenSky  OpenSkyConfig  `toml:"opensky"`  // OpenSky REST API access
	Station  StationConfig  `toml:"station"`  // Optional reference airport used to derive the OpenSky box
	Airports AirportsConfig `toml:"airports"` // Airport detection settings
	Arrivals ArrivalsConfig `toml:"arrivals"` // Arrival classification settings
	Region   RegionConfig   `toml:"region"`   // Box used by the snapshot statistics and map
	Cache    CacheConfig    `toml:"cache"`    // Classified arrivals cache
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port             int    `toml:"port"`                  // HTTP port for the server
	Host             string `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs int    `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	StaticFilesDir   string `toml:"static_files_dir"`      // Directory to serve static files from (e.g., "www"); empty disables

	CORSAllowedOrigins []string `toml:"cors_allowed_origins"` // List of origins allowed for CORS requests (use ["*"] for all origins)
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`       // Log level: "debug", "info", "warn", or "error"
	Format     string `toml:"format"`      // Log format: "json" (structured) or "console" (human-readable)
	File       string `toml:"file"`        // Optional log file, rotated by size
	MaxSizeMB  int    `toml:"max_size_mb"` // Rotate the log file after this many megabytes
	MaxBackups int    `toml:"max_backups"` // Rotated log files to keep
}

// DataConfig locates the data the dashboard is built from
type DataConfig struct {
	SnapshotPath        string `toml:"snapshot_path"`         // OpenSky snapshot written by fetch-states (msgpack + zstd)
	HistoryDBPath       string `toml:"history_db_path"`       // SQLite history database written by import-history
	HistorySampleStride int    `toml:"history_sample_stride"` // Keep one history row out of this many (default: 30)
	AircraftDBCSV       string `toml:"aircraft_db_csv"`       // OpenSky aircraft database CSV used by import-history
}

// OpenSkyConfig contains OpenSky REST API settings
type OpenSkyConfig struct {
	BaseURL         string  `toml:"base_url"`         // API root (default: https://opensky-network.org/api)
	TokenURL        string  `toml:"token_url"`        // OAuth2 token endpoint for client credentials
	CredentialsPath string  `toml:"credentials_path"` // Path to OpenSky credentials JSON (e.g., "opensky/credentials.json")
	TimeoutSecs     int     `toml:"timeout_seconds"`  // HTTP timeout for one request
	BBoxLamin       float64 `toml:"bbox_lamin"`       // Bounding box minimum latitude (lamin)
	BBoxLomin       float64 `toml:"bbox_lomin"`       // Bounding box minimum longitude (lomin)
	BBoxLamax       float64 `toml:"bbox_lamax"`       // Bounding box maximum latitude (lamax)
	BBoxLomax       float64 `toml:"bbox_lomax"`       // Bounding box maximum longitude (lomax)
	SearchRadiusNM  float64 `toml:"search_radius_nm"` // Radius around the station used when no box is set
}

// StationConfig names a reference airport looked up in an OurAirports CSV
type StationConfig struct {
	Latitude       float64 // Latitude of the station in decimal degrees (derived from airports.csv)
	Longitude      float64 // Longitude of the station in decimal degrees (derived from airports.csv)
	ElevationFeet  int     // Elevation of the station above sea level in feet (derived from airports.csv)
	AirportCode    string  `toml:"airport_code"`     // ICAO code of the airport (e.g., "LFBO"); empty disables
	AirportsDBPath string  `toml:"airports_db_path"` // Path to airport database CSV file (OurAirports format)
}

// AirportsConfig contains airport detection settings
type AirportsConfig struct {
	ClusterThresholdKm float64 `toml:"cluster_threshold_km"` // Ground sightings closer than this are the same airport (default: 10)
	IDPrefix           string  `toml:"id_prefix"`            // Prefix of generated airport IDs (default: "airport")
	DefaultAirport     string  `toml:"default_airport"`      // Airport selected when the UI opens (default: "airport1")
	MagneticVariation  bool    `toml:"magnetic_variation"`   // Attach the magnetic declination to every airport
}

// ArrivalsConfig contains arrival classification settings
type ArrivalsConfig struct {
	NearRadiusKm   float64 `toml:"near_radius_km"`   // Samples farther than this from the airport are ignored (default: 15)
	ToleranceDeg   float64 `toml:"tolerance_deg"`    // Max lat/lon difference of the last ground sample (default: 0.01)
	MaxTrackPoints int     `toml:"max_track_points"` // Most recent samples kept per track (default: 150)
	Colors         string  `toml:"colors"`           // Track colours: "random" or "hashed"
	ColorSeed      uint64  `toml:"color_seed"`       // Seed of the random colour source; 0 picks a new seed per run
}

// RegionConfig is a latitude/longitude box
type RegionConfig struct {
	MinLat float64 `toml:"min_lat"`
	MaxLat float64 `toml:"max_lat"`
	MinLon float64 `toml:"min_lon"`
	MaxLon float64 `toml:"max_lon"`
}

// CacheConfig sizes the classified arrivals cache
type CacheConfig struct {
	Size       int `toml:"size"`        // Entries kept (default: 64)
	TTLMinutes int `toml:"ttl_minutes"` // Entry lifetime (default: 30)
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if config.Station.AirportCode != "" {
		if err := config.loadStationFromCSV(); err != nil {
			return nil, fmt.Errorf("failed to load station details from CSV: %w", err)
		}
	}

	return &config, nil
}

// loadStationFromCSV parses the airports.csv file to find the station coordinates
func (c *Config) loadStationFromCSV() error {
	if c.Station.AirportsDBPath == "" {
		return fmt.Errorf("airports_db_path is required when airport_code is set")
	}

	file, err := os.Open(c.Station.AirportsDBPath)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	// Skip header
	if _, err := reader.Read(); err != nil {
		return err
	}

	records, err := reader.ReadAll()
	if err != nil {
		return err
	}

	for _, record := range records {
		if len(record) < 7 {
			continue
		}

		// ident is column 1
		if !strings.EqualFold(record[1], c.Station.AirportCode) {
			continue
		}

		lat, err := strconv.ParseFloat(record[4], 64)
		if err != nil {
			return fmt.Errorf("invalid latitude in CSV for %s: %w", c.Station.AirportCode, err)
		}
		lon, err := strconv.ParseFloat(record[5], 64)
		if err != nil {
			return fmt.Errorf("invalid longitude in CSV for %s: %w", c.Station.AirportCode, err)
		}
		c.Station.Latitude = lat
		c.Station.Longitude = lon

		// Elevation might be empty
		if record[6] != "" {
			if elev, err := strconv.ParseFloat(record[6], 64); err == nil {
				c.Station.ElevationFeet = int(elev)
			}
		}

		return nil
	}

	return fmt.Errorf("airport code %s not found in %s", c.Station.AirportCode, c.Station.AirportsDBPath)
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	// Server
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeoutSecs < 0 || c.Server.WriteTimeoutSecs < 0 || c.Server.IdleTimeoutSecs < 0 {
		return fmt.Errorf("server timeouts must be >= 0")
	}
	if c.Server.IdleTimeoutSecs == 0 {
		c.Server.IdleTimeoutSecs = 120
	}
	if c.Server.StaticFilesDir != "" {
		if _, err := os.Stat(c.Server.StaticFilesDir); os.IsNotExist(err) {
			return fmt.Errorf("static files directory does not exist: %s", c.Server.StaticFilesDir)
		}
	}

	// Logging
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn or error)", c.Logging.Level)
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logging.Format)
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 32
	}
	if c.Logging.MaxBackups < 0 {
		return fmt.Errorf("invalid max_backups value: %d (must be >= 0)", c.Logging.MaxBackups)
	}

	// Data
	if c.Data.SnapshotPath == "" {
		c.Data.SnapshotPath = "data/states.msgpack.zst"
	}
	if c.Data.HistoryDBPath == "" {
		c.Data.HistoryDBPath = "data/history.db"
	}
	if c.Data.HistorySampleStride == 0 {
		c.Data.HistorySampleStride = 30
	}
	if c.Data.HistorySampleStride < 0 {
		return fmt.Errorf("invalid history_sample_stride value: %d (must be >= 1)", c.Data.HistorySampleStride)
	}

	// OpenSky
	if c.OpenSky.TimeoutSecs <= 0 {
		c.OpenSky.TimeoutSecs = 30
	}
	if err := c.ValidateOpenSky(); err != nil {
		return err
	}

	// Airports
	if c.Airports.ClusterThresholdKm == 0 {
		c.Airports.ClusterThresholdKm = 10
	}
	if c.Airports.ClusterThresholdKm < 0 {
		return fmt.Errorf("invalid cluster_threshold_km value: %f (must be > 0)", c.Airports.ClusterThresholdKm)
	}
	if c.Airports.IDPrefix == "" {
		c.Airports.IDPrefix = "airport"
	}
	if c.Airports.DefaultAirport == "" {
		c.Airports.DefaultAirport = c.Airports.IDPrefix + "1"
	}

	// Arrivals
	if c.Arrivals.NearRadiusKm == 0 {
		c.Arrivals.NearRadiusKm = 15
	}
	if c.Arrivals.ToleranceDeg == 0 {
		c.Arrivals.ToleranceDeg = 0.01
	}
	if c.Arrivals.MaxTrackPoints == 0 {
		c.Arrivals.MaxTrackPoints = 150
	}
	if c.Arrivals.NearRadiusKm < 0 || c.Arrivals.ToleranceDeg < 0 || c.Arrivals.MaxTrackPoints < 0 {
		return fmt.Errorf("arrivals settings must be positive")
	}
	if c.Arrivals.Colors == "" {
		c.Arrivals.Colors = "random"
	}
	if c.Arrivals.Colors != "random" && c.Arrivals.Colors != "hashed" {
		return fmt.Errorf("invalid colors value: %s (must be random or hashed)", c.Arrivals.Colors)
	}

	// Region defaults to metropolitan France
	if c.Region == (RegionConfig{}) {
		c.Region = RegionConfig{MinLat: 42, MaxLat: 51, MinLon: -5, MaxLon: 8}
	}
	if c.Region.MinLat >= c.Region.MaxLat || c.Region.MinLon >= c.Region.MaxLon {
		return fmt.Errorf("invalid region: min must be below max")
	}

	// Cache
	if c.Cache.Size <= 0 {
		c.Cache.Size = 64
	}
	if c.Cache.TTLMinutes <= 0 {
		c.Cache.TTLMinutes = 30
	}

	return nil
}

// ValidateOpenSky checks the bounding box settings
func (c *Config) ValidateOpenSky() error {
	o := c.OpenSky
	if o.BBoxLamin == 0 && o.BBoxLomin == 0 && o.BBoxLamax == 0 && o.BBoxLomax == 0 {
		if o.SearchRadiusNM < 0 {
			return fmt.Errorf("invalid search_radius_nm value: %f (must be >= 0)", o.SearchRadiusNM)
		}
		return nil
	}

	if o.BBoxLamin >= o.BBoxLamax || o.BBoxLomin >= o.BBoxLomax {
		return fmt.Errorf("invalid OpenSky bounding box: lamin/lomin must be below lamax/lomax")
	}
	if o.BBoxLamin < -90 || o.BBoxLamax > 90 || o.BBoxLomin < -180 || o.BBoxLomax > 180 {
		return fmt.Errorf("OpenSky bounding box out of range")
	}
	return nil
}
