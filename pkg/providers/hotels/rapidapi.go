package hotels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wayfare-ai/wayfare/pkg/config"
	"github.com/wayfare-ai/wayfare/pkg/models"
)

const (
	rapidProvider       = "rapidapi"
	rapidCacheNamespace = "rapidapi_hotels"
)

// RapidAPI searches the Booking.com API published on RapidAPI.
type RapidAPI struct {
	apiKey  string
	host    string
	baseURL string
	ttl     time.Duration
	http    *http.Client
	store   HotelStore
	cache   ResponseCache
	logger  *zap.Logger
}

// NewRapidAPI creates a RapidAPI provider. cache may be nil.
func NewRapidAPI(cfg config.HotelsConfig, ttl time.Duration, st HotelStore, cache ResponseCache, logger *zap.Logger) *RapidAPI {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RapidAPI{
		apiKey:  cfg.RapidAPIKey,
		host:    cfg.RapidAPIHost,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		ttl:     ttl,
		http:    &http.Client{Timeout: timeout},
		store:   st,
		cache:   cache,
		logger:  logger,
	}
}

// Name implements Provider.
func (r *RapidAPI) Name() string { return rapidProvider }

// SearchHotels implements Provider. Upstream failures are logged and give
// an empty list.
func (r *RapidAPI) SearchHotels(ctx context.Context, q Query) ([]models.Hotel, error) {
	if r.apiKey == "" {
		r.logger.Warn("rapidapi key not configured")
		return []models.Hotel{}, nil
	}

	destID, err := r.destination(ctx, q.City, q.Country)
	if err != nil {
		r.logger.Error("rapidapi location search failed", zap.String("city", q.City), zap.Error(err))
		return []models.Hotel{}, nil
	}
	if destID == "" {
		r.logger.Warn("rapidapi location not found", zap.String("city", q.City))
		return []models.Hotel{}, nil
	}

	raw, err := r.searchDestination(ctx, destID, q.Tier)
	if err != nil {
		r.logger.Error("rapidapi hotel search failed", zap.String("city", q.City), zap.Error(err))
		return []models.Hotel{}, nil
	}
	if q.Limit > 0 && len(raw) > q.Limit {
		raw = raw[:q.Limit]
	}

	hotels := normalize(raw, q.City, q.Country)
	if len(hotels) == 0 {
		return hotels, nil
	}
	stored, err := r.store.UpsertHotels(ctx, hotels)
	if err != nil {
		r.logger.Warn("store rapidapi hotels", zap.Error(err))
		return hotels, nil
	}
	r.logger.Info("rapidapi hotel search", zap.String("city", q.City), zap.Int("count", len(stored)))
	return stored, nil
}

type locationResponse struct {
	Result []struct {
		DestID any `json:"dest_id"`
	} `json:"result"`
}

func (r *RapidAPI) destination(ctx context.Context, city, country string) (string, error) {
	query := city
	if country != "" {
		query = city + ", " + country
	}
	params := map[string]any{"query": query, "locale": "en-us"}

	body, err := r.get(ctx, "/locations/search", "locations", params, r.ttl*24)
	if err != nil {
		return "", err
	}
	var resp locationResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode locations: %w", err)
	}
	if len(resp.Result) == 0 || resp.Result[0].DestID == nil {
		return "", nil
	}
	return fmt.Sprint(resp.Result[0].DestID), nil
}

type hotelResult struct {
	HotelID       any             `json:"hotel_id"`
	HotelName     string          `json:"hotel_name"`
	Latitude      *float64        `json:"latitude"`
	Longitude     *float64        `json:"longitude"`
	Address       string          `json:"address"`
	MinTotalPrice any             `json:"min_total_price"`
	ReviewScore   any             `json:"review_score"`
	URL           string          `json:"url"`
	Raw           json.RawMessage `json:"-"`
}

func (r *RapidAPI) searchDestination(ctx context.Context, destID string, tier models.BudgetTier) ([]hotelResult, error) {
	params := map[string]any{
		"dest_id":       destID,
		"order_by":      "popularity",
		"adults_number": 2,
		"room_number":   1,
		"units":         "metric",
		"locale":        "en-us",
		"currency":      "EUR",
	}
	for k, v := range priceFilters(tier) {
		params[k] = v
	}

	body, err := r.get(ctx, "/hotels/search", "hotels_search", params, r.ttl)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Result []json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode hotels: %w", err)
	}
	out := make([]hotelResult, 0, len(resp.Result))
	for _, raw := range resp.Result {
		var h hotelResult
		if err := json.Unmarshal(raw, &h); err != nil {
			r.logger.Warn("skip malformed hotel", zap.Error(err))
			continue
		}
		h.Raw = raw
		out = append(out, h)
	}
	return out, nil
}

func priceFilters(tier models.BudgetTier) map[string]string {
	switch tier {
	case models.TierBudget:
		return map[string]string{"price_filter_currencycode": "EUR", "price_filter_max": "80"}
	case models.TierPremium:
		return map[string]string{"price_filter_currencycode": "EUR", "price_filter_min": "150"}
	default:
		return map[string]string{"price_filter_currencycode": "EUR", "price_filter_min": "80", "price_filter_max": "150"}
	}
}

// get returns the cached body for params or fetches and caches it.
func (r *RapidAPI) get(ctx context.Context, path, endpoint string, params map[string]any, ttl time.Duration) ([]byte, error) {
	if r.cache != nil {
		if body, ok := r.cache.Get(ctx, rapidCacheNamespace, endpoint, params); ok {
			return body, nil
		}
	}

	q := url.Values{}
	for k, v := range params {
		q.Set(k, fmt.Sprint(v))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-RapidAPI-Key", r.apiKey)
	req.Header.Set("X-RapidAPI-Host", r.host)

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}

	if r.cache != nil {
		if err := r.cache.Put(ctx, rapidCacheNamespace, endpoint, params, body, ttl); err != nil {
			r.logger.Warn("cache rapidapi response", zap.String("endpoint", endpoint), zap.Error(err))
		}
	}
	return body, nil
}

// normalize maps API results to hotels. Results without a hotel_id are
// dropped because they cannot be keyed in storage.
func normalize(results []hotelResult, city, country string) []models.Hotel {
	out := make([]models.Hotel, 0, len(results))
	for _, h := range results {
		if h.HotelID == nil || fmt.Sprint(h.HotelID) == "" {
			continue
		}
		hotel := models.Hotel{
			Provider:   rapidProvider,
			ExternalID: "rapidapi_" + formatID(h.HotelID),
			Name:       h.HotelName,
			Lat:        h.Latitude,
			Lon:        h.Longitude,
			RawJSON:    string(h.Raw),
		}
		if hotel.Name == "" {
			hotel.Name = "Unknown Hotel"
		}
		if city != "" {
			hotel.City = &city
		}
		if country != "" {
			hotel.Country = &country
		}
		if h.Address != "" {
			a := h.Address
			hotel.Address = &a
		}
		if h.URL != "" {
			u := h.URL
			hotel.URL = &u
		}
		if p, ok := number(h.MinTotalPrice); ok {
			hotel.PriceEURPerNight = &p
		}
		if s, ok := number(h.ReviewScore); ok && s > 0 {
			rating := s / 2
			hotel.Rating = &rating
		}
		out = append(out, hotel)
	}
	return out
}

func formatID(v any) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
