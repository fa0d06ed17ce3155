package models

import "time"

// ItemType classifies an itinerary activity.
type ItemType string

const (
	ItemPOI     ItemType = "poi"
	ItemHotel   ItemType = "hotel"
	ItemMeal    ItemType = "meal"
	ItemTransit ItemType = "transit"
)

// Itinerary is a finalized day-by-day trip plan. Dates are YYYY-MM-DD.
type Itinerary struct {
	ID         string         `json:"id" db:"id"`
	SessionID  string         `json:"session_id" db:"session_id"`
	City       string         `json:"city" db:"city"`
	Country    *string        `json:"country" db:"country"`
	StartDate  string         `json:"start_date" db:"start_date"`
	EndDate    string         `json:"end_date" db:"end_date"`
	BudgetTier string         `json:"budget_tier" db:"budget_tier"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	Days       []ItineraryDay `json:"days" db:"-"`
}

// ItineraryDay is one day of an itinerary.
type ItineraryDay struct {
	ID          string          `json:"-" db:"id"`
	ItineraryID string          `json:"-" db:"itinerary_id"`
	DayIndex    int             `json:"day_index" db:"day_index"`
	Date        string          `json:"date" db:"date"`
	Items       []ItineraryItem `json:"items" db:"-"`
}

// ItineraryItem is one activity within a day. Times are stored as
// HH:MM:SS.
type ItineraryItem struct {
	ID         string   `json:"-" db:"id"`
	DayID      string   `json:"-" db:"day_id"`
	ItemType   ItemType `json:"type" db:"item_type"`
	RefPlaceID *string  `json:"-" db:"ref_place_id"`
	RefHotelID *string  `json:"-" db:"ref_hotel_id"`
	StartTime  *string  `json:"start_time" db:"start_time"`
	EndTime    *string  `json:"end_time" db:"end_time"`
	Notes      *string  `json:"notes" db:"notes"`
	Place      *Place   `json:"place,omitempty" db:"-"`
	Hotel      *Hotel   `json:"hotel,omitempty" db:"-"`
}
