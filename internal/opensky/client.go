package opensky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/yegors/skyboard/pkg/logger"
)

// Defaults for the public OpenSky network
const (
	DefaultBaseURL  = "https://opensky-network.org/api"
	DefaultTokenURL = "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token"
)

// Options configures a Client
type Options struct {
	BaseURL         string
	TokenURL        string // Used when the credentials file does not name one
	CredentialsPath string
	Timeout         time.Duration
}

// Client fetches state vectors from the OpenSky REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new OpenSky client.
//
// Authentication:
// - If the credentials file contains an access_token field, it is sent as is.
// - Otherwise client_id and client_secret are exchanged for tokens with the
// client credentials grant; oauth2 caches and refreshes them.
// - If no credentials file is present, requests are anonymous.
func NewClient(opts Options, log *logger.Logger) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = DefaultTokenURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		logger:  log.Named("opensky"),
	}

	base := &http.Client{Timeout: opts.Timeout}
	hc, err := c.authenticatedClient(opts, base)
	if err != nil {
		return nil, err
	}
	c.httpClient = hc

	return c, nil
}

func (c *Client) authenticatedClient(opts Options, base *http.Client) (*http.Client, error) {
	if opts.CredentialsPath == "" {
		c.logger.Info("No OpenSky credentials configured, proceeding as anonymous")
		return base, nil
	}

	b, err := os.ReadFile(opts.CredentialsPath)
	if os.IsNotExist(err) {
		c.logger.Warn("OpenSky credentials file not found - proceeding as anonymous (rate limits may apply)",
			logger.String("path", opts.CredentialsPath))
		return base, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read opensky credentials: %w", err)
	}

	var credMap map[string]interface{}
	if err := json.Unmarshal(b, &credMap); err != nil {
		return nil, fmt.Errorf("invalid opensky credentials JSON: %w", err)
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	if token := firstString(credMap, "access_token", "access-token", "accessToken"); token != "" {
		c.logger.Debug("Using static OpenSky access token")
		hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
		hc.Timeout = opts.Timeout
		return hc, nil
	}

	clientID := firstString(credMap, "client_id", "client-id", "clientId")
	clientSecret := firstString(credMap, "client_secret", "client-secret", "clientSecret")
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("opensky credentials must contain access_token or client_id+client_secret")
	}

	tokenURL := firstString(credMap, "token_url", "token-url", "tokenUrl")
	if tokenURL == "" {
		tokenURL = opts.TokenURL
	}

	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	c.logger.Debug("Using OpenSky client credentials", logger.String("token_url", tokenURL))

	hc := cfg.Client(ctx)
	hc.Timeout = opts.Timeout
	return hc, nil
}

// firstString picks the first present non-empty string value
func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// FetchStates fetches the current state vectors inside the box. A zero box
// fetches the whole world.
func (c *Client) FetchStates(ctx context.Context, bbox BBox) (*Snapshot, error) {
	urlStr := c.baseURL + "/states/all"
	if !bbox.IsZero() {
		urlStr += fmt.Sprintf("?lamin=%f&lomin=%f&lamax=%f&lomax=%f", bbox.LaMin, bbox.LoMin, bbox.LaMax, bbox.LoMax)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenSky request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Fetching OpenSky states", logger.String("url", urlStr))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to execute OpenSky request", logger.Error(err), logger.String("url", urlStr))
		return nil, fmt.Errorf("failed to execute opensky request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("Unexpected OpenSky status code",
			logger.Int("status_code", resp.StatusCode),
			logger.String("body", string(body)))
		return nil, fmt.Errorf("unexpected opensky status code: %d", resp.StatusCode)
	}

	var osResp struct {
		Time   int64           `json:"time"`
		States [][]interface{} `json:"states"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&osResp); err != nil {
		return nil, fmt.Errorf("failed to parse opensky JSON: %w", err)
	}

	snap := &Snapshot{
		Time:   osResp.Time,
		BBox:   bbox,
		States: make([]StateVector, 0, len(osResp.States)),
	}
	for _, s := range osResp.States {
		sv, ok := decodeState(s)
		if !ok {
			continue
		}
		snap.States = append(snap.States, sv)
	}

	c.logger.Info("Fetched OpenSky states",
		logger.Int("aircraft_count", len(snap.States)),
		logger.Int("skipped", len(osResp.States)-len(snap.States)),
		logger.Int64("time", snap.Time))

	return snap, nil
}

// decodeState extracts a state vector from its positional form. Entries
// without an icao24 address are rejected.
func decodeState(s []interface{}) (StateVector, bool) {
	var sv StateVector

	str := func(i int) string {
		if len(s) > i {
			if v, ok := s[i].(string); ok {
				return v
			}
		}
		return ""
	}
	num := func(i int) *float64 {
		if len(s) > i {
			if v, ok := s[i].(float64); ok {
				return &v
			}
		}
		return nil
	}

	sv.ICAO24 = strings.ToLower(strings.TrimSpace(str(0)))
	if sv.ICAO24 == "" {
		return sv, false
	}
	sv.Callsign = strings.TrimSpace(str(1))
	sv.OriginCountry = str(2)
	if v := num(3); v != nil {
		t := int64(*v)
		sv.TimePosition = &t
	}
	if v := num(4); v != nil {
		sv.LastContact = int64(*v)
	}
	sv.Longitude = num(5)
	sv.Latitude = num(6)
	sv.BaroAltitude = num(7)
	if len(s) > 8 {
		if v, ok := s[8].(bool); ok {
			sv.OnGround = v
		}
	}
	sv.Velocity = num(9)
	sv.TrueTrack = num(10)
	sv.VerticalRate = num(11)
	sv.GeoAltitude = num(13)
	sv.Squawk = str(14)
	if len(s) > 15 {
		if v, ok := s[15].(bool); ok {
			sv.SPI = v
		}
	}
	if v := num(16); v != nil {
		sv.PositionSource = int(*v)
	}
	if v := num(17); v != nil {
		sv.Category = int(*v)
	}

	return sv, true
}
