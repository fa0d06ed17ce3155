package hotels

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wayfare-ai/wayfare/pkg/models"
	"github.com/wayfare-ai/wayfare/pkg/store"
)

const stubProvider = "stub"

// Stub serves a fixed set of hotels from the local database.
type Stub struct {
	store  HotelStore
	logger *zap.Logger
}

// NewStub creates a Stub. Call Seed before searching.
func NewStub(st HotelStore, logger *zap.Logger) *Stub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stub{store: st, logger: logger}
}

// Name implements Provider.
func (s *Stub) Name() string { return stubProvider }

// Seed upserts the stub hotels. Running it again leaves the same rows.
func (s *Stub) Seed(ctx context.Context) (int, error) {
	hotels := stubHotels()
	stored, err := s.store.UpsertHotels(ctx, hotels)
	if err != nil {
		return 0, fmt.Errorf("seed stub hotels: %w", err)
	}
	s.logger.Debug("seeded stub hotels", zap.Int("count", len(stored)))
	return len(stored), nil
}

// SearchHotels implements Provider.
func (s *Stub) SearchHotels(ctx context.Context, q Query) ([]models.Hotel, error) {
	band := PriceBand(q.Tier)
	hotels, err := s.store.SearchHotels(ctx, store.HotelQuery{
		Provider: stubProvider,
		City:     q.City,
		MinPrice: band.Min,
		MaxPrice: band.Max,
		Limit:    q.Limit,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("stub hotel search",
		zap.String("city", q.City), zap.String("tier", string(q.Tier)), zap.Int("count", len(hotels)))
	return hotels, nil
}

func stubHotels() []models.Hotel {
	h := func(id, name, city, country, address string, lat, lon, rating, price float64, slug string) models.Hotel {
		url := "https://example.com/" + slug
		return models.Hotel{
			Provider:         stubProvider,
			ExternalID:       id,
			Name:             name,
			City:             &city,
			Country:          &country,
			Address:          &address,
			Lat:              &lat,
			Lon:              &lon,
			Rating:           &rating,
			PriceEURPerNight: &price,
			URL:              &url,
		}
	}
	return []models.Hotel{
		h("stub_athens_1", "Hotel Grande Bretagne", "Athens", "Greece", "Constitution Square, Athens", 37.9755, 23.7348, 5.0, 280, "grande-bretagne"),
		h("stub_athens_2", "Hotel Plaka", "Athens", "Greece", "Plaka District, Athens", 37.9719, 23.7285, 4.2, 120, "hotel-plaka"),
		h("stub_athens_3", "Athens Budget Inn", "Athens", "Greece", "Omonia Square, Athens", 37.9838, 23.7275, 3.5, 45, "budget-inn"),
		h("stub_paris_1", "The Ritz Paris", "Paris", "France", "Place Vendôme, Paris", 48.8681, 2.3282, 5.0, 850, "ritz-paris"),
		h("stub_paris_2", "Hotel des Grands Boulevards", "Paris", "France", "17 Boulevard Poissonnière, Paris", 48.8718, 2.3428, 4.3, 190, "grands-boulevards"),
		h("stub_paris_3", "Hotel Jeanne d'Arc", "Paris", "France", "3 Rue de Jarente, Paris", 48.8534, 2.3626, 3.8, 89, "jeanne-darc"),
		h("stub_london_1", "Claridge's", "London", "United Kingdom", "Brook Street, Mayfair, London", 51.5129, -0.1480, 5.0, 650, "claridges"),
		h("stub_london_2", "The Z Hotel Piccadilly", "London", "United Kingdom", "2 Leicester Square, London", 51.5099, -0.1342, 4.1, 160, "z-hotel"),
		h("stub_london_3", "YHA London Central", "London", "United Kingdom", "104 Bolsover Street, London", 51.5188, -0.1142, 3.6, 55, "yha-central"),
		h("stub_rome_1", "Hotel de Russie", "Rome", "Italy", "Via del Babuino, Rome", 41.9109, 12.4769, 5.0, 420, "de-russie"),
		h("stub_rome_2", "Hotel Artemide", "Rome", "Italy", "Via Nazionale, Rome", 41.9028, 12.4964, 4.2, 180, "artemide"),
		h("stub_rome_3", "The RomeHello", "Rome", "Italy", "Via Palestro, Rome", 41.8967, 12.4822, 3.9, 70, "romehello"),
	}
}
