// Package hotels finds accommodation for a city and budget tier. Two
// providers exist: a seeded stub backed by the local database and the
// Booking.com API on RapidAPI.
package hotels

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wayfare-ai/wayfare/pkg/config"
	"github.com/wayfare-ai/wayfare/pkg/models"
	"github.com/wayfare-ai/wayfare/pkg/store"
)

// Query selects hotels.
type Query struct {
	City    string
	Country string
	Tier    models.BudgetTier
	Limit   int
}

// Provider searches hotels.
type Provider interface {
	SearchHotels(ctx context.Context, q Query) ([]models.Hotel, error)
	Name() string
}

// HotelStore is the subset of store.Store the providers need.
type HotelStore interface {
	UpsertHotels(ctx context.Context, hotels []models.Hotel) ([]models.Hotel, error)
	SearchHotels(ctx context.Context, q store.HotelQuery) ([]models.Hotel, error)
}

// ResponseCache stores raw upstream responses.
type ResponseCache interface {
	Get(ctx context.Context, provider, endpoint string, params map[string]any) ([]byte, bool)
	Put(ctx context.Context, provider, endpoint string, params map[string]any, body []byte, ttl time.Duration) error
}

// Band is a nightly EUR price range. Min is exclusive, Max inclusive, nil
// is unbounded.
type Band struct {
	Min *float64
	Max *float64
}

// PriceBand returns the price range of a tier. Unknown tiers get the mid band.
func PriceBand(tier models.BudgetTier) Band {
	lo, hi := 80.0, 150.0
	switch tier {
	case models.TierBudget:
		return Band{Max: &lo}
	case models.TierPremium:
		return Band{Min: &hi}
	default:
		return Band{Min: &lo, Max: &hi}
	}
}

// New returns the provider selected by cfg.Provider. The stub provider is
// seeded before it is returned.
func New(ctx context.Context, cfg config.HotelsConfig, ttl time.Duration, st HotelStore, cache ResponseCache, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case config.HotelProviderStub, "":
		p := NewStub(st, logger)
		if _, err := p.Seed(ctx); err != nil {
			return nil, err
		}
		return p, nil
	case config.HotelProviderRapidAPI:
		return NewRapidAPI(cfg, ttl, st, cache, logger), nil
	default:
		return nil, fmt.Errorf("unknown hotel provider %q", cfg.Provider)
	}
}
