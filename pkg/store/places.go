package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wayfare-ai/wayfare/pkg/models"
)

const placeColumns = `id, provider, external_id, name, lat, lon, categories, rating, address, city, country, raw_json, last_synced_at`

const hotelColumns = `id, provider, external_id, name, lat, lon, price_eur_per_night, rating, address, city, country, url, raw_json, last_synced_at`

// UpsertPlaces inserts or refreshes places keyed by (provider, external_id)
// and returns them with their stored IDs.
func (s *Store) UpsertPlaces(ctx context.Context, places []models.Place) ([]models.Place, error) {
	if len(places) == 0 {
		return places, nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("upsert places: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UTC()
	out := make([]models.Place, 0, len(places))
	for _, p := range places {
		p.ID = uuid.NewString()
		p.LastSyncedAt = now
		if p.RawJSON == "" {
			p.RawJSON = "{}"
		}
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO places (`+placeColumns+`)
			 VALUES (:id, :provider, :external_id, :name, :lat, :lon, :categories, :rating, :address, :city, :country, :raw_json, :last_synced_at)
			 ON CONFLICT(provider, external_id) DO UPDATE SET
				name = excluded.name, lat = excluded.lat, lon = excluded.lon,
				categories = excluded.categories, rating = excluded.rating,
				address = excluded.address, city = excluded.city, country = excluded.country,
				raw_json = excluded.raw_json, last_synced_at = excluded.last_synced_at`, p); err != nil {
			return nil, fmt.Errorf("upsert place %s: %w", p.ExternalID, err)
		}
		if err := tx.GetContext(ctx, &p.ID,
			`SELECT id FROM places WHERE provider = ? AND external_id = ?`, p.Provider, p.ExternalID); err != nil {
			return nil, fmt.Errorf("upsert place %s: %w", p.ExternalID, err)
		}
		out = append(out, p)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("upsert places: %w", err)
	}
	return out, nil
}

// GetPlace returns the place with id or ErrNotFound.
func (s *Store) GetPlace(ctx context.Context, id string) (models.Place, error) {
	return getPlace(ctx, s.db, id)
}

func getPlace(ctx context.Context, q sqlx.QueryerContext, id string) (models.Place, error) {
	var p models.Place
	err := sqlx.GetContext(ctx, q, &p, `SELECT `+placeColumns+` FROM places WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Place{}, ErrNotFound
	}
	if err != nil {
		return models.Place{}, fmt.Errorf("get place: %w", err)
	}
	return p, nil
}

// UpsertHotels inserts or refreshes hotels keyed by (provider, external_id)
// and returns them with their stored IDs.
func (s *Store) UpsertHotels(ctx context.Context, hotels []models.Hotel) ([]models.Hotel, error) {
	if len(hotels) == 0 {
		return hotels, nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("upsert hotels: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UTC()
	out := make([]models.Hotel, 0, len(hotels))
	for _, h := range hotels {
		h.ID = uuid.NewString()
		h.LastSyncedAt = now
		if h.RawJSON == "" {
			h.RawJSON = "{}"
		}
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO hotels (`+hotelColumns+`)
			 VALUES (:id, :provider, :external_id, :name, :lat, :lon, :price_eur_per_night, :rating, :address, :city, :country, :url, :raw_json, :last_synced_at)
			 ON CONFLICT(provider, external_id) DO UPDATE SET
				name = excluded.name, lat = excluded.lat, lon = excluded.lon,
				price_eur_per_night = excluded.price_eur_per_night, rating = excluded.rating,
				address = excluded.address, city = excluded.city, country = excluded.country,
				url = excluded.url, raw_json = excluded.raw_json, last_synced_at = excluded.last_synced_at`, h); err != nil {
			return nil, fmt.Errorf("upsert hotel %s: %w", h.ExternalID, err)
		}
		if err := tx.GetContext(ctx, &h.ID,
			`SELECT id FROM hotels WHERE provider = ? AND external_id = ?`, h.Provider, h.ExternalID); err != nil {
			return nil, fmt.Errorf("upsert hotel %s: %w", h.ExternalID, err)
		}
		out = append(out, h)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("upsert hotels: %w", err)
	}
	return out, nil
}

// GetHotel returns the hotel with id or ErrNotFound.
func (s *Store) GetHotel(ctx context.Context, id string) (models.Hotel, error) {
	return getHotel(ctx, s.db, id)
}

func getHotel(ctx context.Context, q sqlx.QueryerContext, id string) (models.Hotel, error) {
	var h models.Hotel
	err := sqlx.GetContext(ctx, q, &h, `SELECT `+hotelColumns+` FROM hotels WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Hotel{}, ErrNotFound
	}
	if err != nil {
		return models.Hotel{}, fmt.Errorf("get hotel: %w", err)
	}
	return h, nil
}

// HotelQuery filters stored hotels. Prices are EUR per night; MinPrice is
// exclusive and MaxPrice inclusive. Nil bounds are open.
type HotelQuery struct {
	Provider string
	City     string
	MinPrice *float64
	MaxPrice *float64
	Limit    int
}

// SearchHotels returns stored hotels in a city (case-insensitive substring
// match) within the price band, best rated first.
func (s *Store) SearchHotels(ctx context.Context, q HotelQuery) ([]models.Hotel, error) {
	query := `SELECT ` + hotelColumns + ` FROM hotels WHERE city LIKE ? COLLATE NOCASE`
	args := []any{"%" + q.City + "%"}
	if q.Provider != "" {
		query += ` AND provider = ?`
		args = append(args, q.Provider)
	}
	if q.MinPrice != nil {
		query += ` AND price_eur_per_night > ?`
		args = append(args, *q.MinPrice)
	}
	if q.MaxPrice != nil {
		query += ` AND price_eur_per_night <= ?`
		args = append(args, *q.MaxPrice)
	}
	query += ` ORDER BY rating DESC, name ASC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	var hotels []models.Hotel
	if err := s.db.SelectContext(ctx, &hotels, query, args...); err != nil {
		return nil, fmt.Errorf("search hotels: %w", err)
	}
	return hotels, nil
}

// CountHotels returns the number of stored hotels from provider.
func (s *Store) CountHotels(ctx context.Context, provider string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM hotels WHERE provider = ?`, provider); err != nil {
		return 0, fmt.Errorf("count hotels: %w", err)
	}
	return n, nil
}
