// Package opentripmap searches points of interest through the OpenTripMap
// places API.
package opentripmap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wayfare-ai/wayfare/pkg/config"
	"github.com/wayfare-ai/wayfare/pkg/models"
)

// Provider is the value stored in places.provider and the cache namespace.
const Provider = "opentripmap"

const endpointRadius = "radius_search"

// ResponseCache stores raw upstream responses.
type ResponseCache interface {
	Get(ctx context.Context, provider, endpoint string, params map[string]any) ([]byte, bool)
	Put(ctx context.Context, provider, endpoint string, params map[string]any, body []byte, ttl time.Duration) error
}

// PlaceStore persists normalized places.
type PlaceStore interface {
	UpsertPlaces(ctx context.Context, places []models.Place) ([]models.Place, error)
}

// Client talks to OpenTripMap.
type Client struct {
	apiKey  string
	baseURL string
	radius  int
	ttl     time.Duration
	http    *http.Client
	cache   ResponseCache
	places  PlaceStore
	logger  *zap.Logger
}

// New creates a Client. cache and places may be nil.
func New(cfg config.OpenTripMapConfig, ttl time.Duration, cache ResponseCache, places PlaceStore, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	radius := cfg.RadiusM
	if radius <= 0 {
		radius = 5000
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		radius:  radius,
		ttl:     ttl,
		http:    &http.Client{Timeout: timeout},
		cache:   cache,
		places:  places,
		logger:  logger,
	}
}

// SearchByRadius returns places within the configured radius of lat/lon.
// kinds is a comma-separated OpenTripMap kinds filter and may be empty.
// Upstream failures are logged and yield an empty list, never an error.
func (c *Client) SearchByRadius(ctx context.Context, lat, lon float64, kinds string, limit int) ([]models.Place, error) {
	params := map[string]any{
		"apikey": c.apiKey,
		"lat":    lat,
		"lon":    lon,
		"radius": c.radius,
		"limit":  limit,
		"format": "json",
	}
	if kinds != "" {
		params["kinds"] = kinds
	}

	body, ok := c.cached(ctx, params)
	if !ok {
		var err error
		body, err = c.fetch(ctx, params)
		if err != nil {
			c.logger.Error("opentripmap radius search failed",
				zap.Float64("lat", lat), zap.Float64("lon", lon), zap.Error(err))
			return []models.Place{}, nil
		}
		if c.cache != nil {
			if err := c.cache.Put(ctx, Provider, endpointRadius, params, body, c.ttl); err != nil {
				c.logger.Warn("cache opentripmap response", zap.Error(err))
			}
		}
	}

	places, err := Normalize(body)
	if err != nil {
		c.logger.Error("decode opentripmap response", zap.Error(err))
		return []models.Place{}, nil
	}
	if c.places == nil || len(places) == 0 {
		return places, nil
	}
	stored, err := c.places.UpsertPlaces(ctx, places)
	if err != nil {
		c.logger.Warn("store opentripmap places", zap.Error(err))
		return places, nil
	}
	return stored, nil
}

func (c *Client) cached(ctx context.Context, params map[string]any) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}
	return c.cache.Get(ctx, Provider, endpointRadius, params)
}

func (c *Client) fetch(ctx context.Context, params map[string]any) ([]byte, error) {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, fmt.Sprint(v))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/radius?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("radius request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("radius request: status %d", resp.StatusCode)
	}
	return body, nil
}

type feature struct {
	Properties struct {
		XID   string   `json:"xid"`
		Name  *string  `json:"name"`
		Kinds string   `json:"kinds"`
		Rate  *float64 `json:"rate"`
	} `json:"properties"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
}

// simple is one element of the format=json array response.
type simple struct {
	XID   string   `json:"xid"`
	Name  *string  `json:"name"`
	Kinds string   `json:"kinds"`
	Rate  *float64 `json:"rate"`
	Point struct {
		Lon float64 `json:"lon"`
		Lat float64 `json:"lat"`
	} `json:"point"`
}

// Normalize converts a radius response into places. It accepts both the
// GeoJSON FeatureCollection and the plain JSON array layouts. Entries
// without an xid are skipped.
func Normalize(body []byte) ([]models.Place, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, err
		}
		out := make([]models.Place, 0, len(items))
		for _, raw := range items {
			var s simple
			if err := json.Unmarshal(raw, &s); err != nil || s.XID == "" {
				continue
			}
			out = append(out, place(s.XID, s.Name, s.Kinds, s.Rate, s.Point.Lat, s.Point.Lon, raw))
		}
		return out, nil
	}

	var fc struct {
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, err
	}
	out := make([]models.Place, 0, len(fc.Features))
	for _, raw := range fc.Features {
		var f feature
		if err := json.Unmarshal(raw, &f); err != nil || f.Properties.XID == "" {
			continue
		}
		var lat, lon float64
		if n := len(f.Geometry.Coordinates); n > 1 {
			lon, lat = f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
		} else if n == 1 {
			lon = f.Geometry.Coordinates[0]
		}
		out = append(out, place(f.Properties.XID, f.Properties.Name, f.Properties.Kinds, f.Properties.Rate, lat, lon, raw))
	}
	return out, nil
}

func place(xid string, name *string, kinds string, rate *float64, lat, lon float64, raw json.RawMessage) models.Place {
	n := "Unnamed Place"
	if name != nil && *name != "" {
		n = *name
	}
	return models.Place{
		Provider:   Provider,
		ExternalID: xid,
		Name:       n,
		Lat:        lat,
		Lon:        lon,
		Categories: ParseKinds(kinds),
		Rating:     rate,
		RawJSON:    string(raw),
	}
}

// ParseKinds splits a comma-separated kinds string, dropping blanks.
func ParseKinds(kinds string) models.StringList {
	out := models.StringList{}
	for _, k := range strings.Split(kinds, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
