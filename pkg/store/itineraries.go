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

// NewItinerary is the input to CreateItinerary.
type NewItinerary struct {
	SessionID  string
	City       string
	Country    *string
	StartDate  string
	EndDate    string
	BudgetTier string
	Days       []NewDay
}

// NewDay is one day of a NewItinerary.
type NewDay struct {
	DayIndex int
	Date     string
	Items    []NewItem
}

// NewItem is one activity of a NewDay. ExternalID, when set, links the item
// to a stored place or hotel with that provider ID.
type NewItem struct {
	Type       models.ItemType
	ExternalID string
	StartTime  *string
	EndTime    *string
	Notes      string
}

// CreateItinerary writes the header, days and items in one transaction.
// Nothing is persisted if any insert fails.
func (s *Store) CreateItinerary(ctx context.Context, in NewItinerary) (models.Itinerary, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Itinerary{}, fmt.Errorf("create itinerary: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	it := models.Itinerary{
		ID:         uuid.NewString(),
		SessionID:  in.SessionID,
		City:       in.City,
		Country:    in.Country,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		BudgetTier: in.BudgetTier,
		CreatedAt:  s.now().UTC(),
	}
	if _, err := tx.NamedExecContext(ctx,
		`INSERT INTO itineraries (id, session_id, city, country, start_date, end_date, budget_tier, created_at)
		 VALUES (:id, :session_id, :city, :country, :start_date, :end_date, :budget_tier, :created_at)`, it); err != nil {
		return models.Itinerary{}, fmt.Errorf("create itinerary: %w", err)
	}

	for _, d := range in.Days {
		day := models.ItineraryDay{
			ID:          uuid.NewString(),
			ItineraryID: it.ID,
			DayIndex:    d.DayIndex,
			Date:        d.Date,
		}
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO itinerary_days (id, itinerary_id, day_index, date)
			 VALUES (:id, :itinerary_id, :day_index, :date)`, day); err != nil {
			return models.Itinerary{}, fmt.Errorf("create day %d: %w", d.DayIndex, err)
		}

		for pos, item := range d.Items {
			placeID, hotelID, err := resolveRef(ctx, tx, item)
			if err != nil {
				return models.Itinerary{}, err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO itinerary_items (id, day_id, position, item_type, ref_place_id, ref_hotel_id, start_time, end_time, notes)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), day.ID, pos, item.Type, placeID, hotelID, item.StartTime, item.EndTime, item.Notes,
			); err != nil {
				return models.Itinerary{}, fmt.Errorf("create item on day %d: %w", d.DayIndex, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Itinerary{}, fmt.Errorf("commit itinerary: %w", err)
	}
	return it, nil
}

// resolveRef looks up the stored place or hotel an item refers to. Hotel
// items prefer hotels, everything else prefers places.
func resolveRef(ctx context.Context, tx *sqlx.Tx, item NewItem) (placeID, hotelID *string, err error) {
	if item.ExternalID == "" {
		return nil, nil, nil
	}
	lookup := func(table string) (*string, error) {
		var id string
		err := tx.GetContext(ctx, &id, `SELECT id FROM `+table+` WHERE external_id = ? ORDER BY last_synced_at DESC LIMIT 1`, item.ExternalID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("resolve %s %s: %w", table, item.ExternalID, err)
		}
		return &id, nil
	}

	order := []string{"places", "hotels"}
	if item.Type == models.ItemHotel {
		order = []string{"hotels", "places"}
	}
	for _, table := range order {
		id, err := lookup(table)
		if err != nil {
			return nil, nil, err
		}
		if id == nil {
			continue
		}
		if table == "hotels" {
			return nil, id, nil
		}
		return id, nil, nil
	}
	return nil, nil, nil
}

// GetItinerary loads an itinerary with its days sorted by index and each
// day's items in insertion order, linked places and hotels embedded.
func (s *Store) GetItinerary(ctx context.Context, id string) (models.Itinerary, error) {
	var it models.Itinerary
	err := s.db.GetContext(ctx, &it,
		`SELECT id, session_id, city, country, start_date, end_date, budget_tier, created_at
		 FROM itineraries WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Itinerary{}, ErrNotFound
	}
	if err != nil {
		return models.Itinerary{}, fmt.Errorf("get itinerary: %w", err)
	}

	if err := s.db.SelectContext(ctx, &it.Days,
		`SELECT id, itinerary_id, day_index, date FROM itinerary_days WHERE itinerary_id = ? ORDER BY day_index ASC`, id); err != nil {
		return models.Itinerary{}, fmt.Errorf("get itinerary days: %w", err)
	}

	for i := range it.Days {
		day := &it.Days[i]
		if err := s.db.SelectContext(ctx, &day.Items,
			`SELECT id, day_id, item_type, ref_place_id, ref_hotel_id, start_time, end_time, notes
			 FROM itinerary_items WHERE day_id = ? ORDER BY position ASC`, day.ID); err != nil {
			return models.Itinerary{}, fmt.Errorf("get itinerary items: %w", err)
		}
		if day.Items == nil {
			day.Items = []models.ItineraryItem{}
		}
		for j := range day.Items {
			item := &day.Items[j]
			if item.RefPlaceID != nil {
				p, err := getPlace(ctx, s.db, *item.RefPlaceID)
				if err != nil && !errors.Is(err, ErrNotFound) {
					return models.Itinerary{}, err
				}
				if err == nil {
					item.Place = &p
				}
			}
			if item.RefHotelID != nil {
				h, err := getHotel(ctx, s.db, *item.RefHotelID)
				if err != nil && !errors.Is(err, ErrNotFound) {
					return models.Itinerary{}, err
				}
				if err == nil {
					item.Hotel = &h
				}
			}
		}
	}
	if it.Days == nil {
		it.Days = []models.ItineraryDay{}
	}
	return it, nil
}

// ListItineraries returns a session's itinerary headers, newest first.
func (s *Store) ListItineraries(ctx context.Context, sessionID string) ([]models.Itinerary, error) {
	var its []models.Itinerary
	err := s.db.SelectContext(ctx, &its,
		`SELECT id, session_id, city, country, start_date, end_date, budget_tier, created_at
		 FROM itineraries WHERE session_id = ? ORDER BY created_at DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list itineraries: %w", err)
	}
	return its, nil
}
