package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"github.com/CelestinFernandes/geo-pot/internal/geo"
	"github.com/CelestinFernandes/geo-pot/pkg/core"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrEmptyQuery is returned for a blank search string.
	ErrEmptyQuery = errors.New("empty search query")
	// ErrNotFound is returned when the lookup has no results.
	ErrNotFound = errors.New("no results found")
)

// Geocoder resolves a free-text place name.
type Geocoder interface {
	Search(ctx context.Context, query string) (core.Place, error)
}

// Config holds Nominatim client settings.
type Config struct {
	BaseURL   string
	UserAgent string
	RPS       float64 // requests per second, 0 disables limiting
	Timeout   time.Duration
}

type result struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Client queries a Nominatim-compatible search endpoint.
type Client struct {
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	httpClient *http.Client
}

// New creates a geocoding client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		limiter:    rate.NewLimiter(limit, 1),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Search returns the first result for query.
func (c *Client) Search(ctx context.Context, query string) (core.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return core.Place{}, ErrEmptyQuery
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return core.Place{}, fmt.Errorf("geocode rate limit: %w", err)
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return core.Place{}, fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.Place{}, fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.Place{}, fmt.Errorf("geocode returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return core.Place{}, fmt.Errorf("geocode read failed: %w", err)
	}

	var results []result
	if err := json.Unmarshal(body, &results); err != nil {
		return core.Place{}, fmt.Errorf("geocode decode failed: %w", err)
	}
	if len(results) == 0 {
		return core.Place{}, ErrNotFound
	}

	first := results[0]
	loc, err := geo.ParseLatLng(first.Lat, first.Lon)
	if err != nil {
		return core.Place{}, fmt.Errorf("geocode result %q: %w", first.DisplayName, err)
	}
	return core.Place{Location: loc, DisplayName: first.DisplayName}, nil
}
