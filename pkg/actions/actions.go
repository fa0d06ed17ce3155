// Package actions decodes and executes the travel planning tool calls the
// model can make.
package actions

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wayfare-ai/wayfare/pkg/models"
)

// Kind names an action.
type Kind string

const (
	KindSearchPOIs        Kind = "search_pois"
	KindSearchHotels      Kind = "search_hotels"
	KindFinalizeItinerary Kind = "finalize_itinerary"
	KindUnknown           Kind = "unknown"
)

const (
	defaultPOILimit   = 20
	defaultHotelLimit = 10
)

var (
	// ErrInvalidToolCall is returned when tool-call arguments are not a
	// JSON object of the expected shape.
	ErrInvalidToolCall = errors.New("invalid tool call format")
	// ErrUnknownAction matches any *UnknownActionError.
	ErrUnknownAction = errors.New("unknown action")
)

// UnknownActionError reports an action name outside the known set.
type UnknownActionError struct {
	Name string
}

func (e *UnknownActionError) Error() string { return "Unknown action: " + e.Name }

// Is reports whether target is ErrUnknownAction.
func (e *UnknownActionError) Is(target error) bool { return target == ErrUnknownAction }

// Action is one of SearchPOIs, SearchHotels or FinalizeItinerary.
type Action interface {
	Kind() Kind
	sealed()
}

// SearchPOIs looks up points of interest around a city centre.
type SearchPOIs struct {
	City       string
	Country    *string
	Categories []string
	Limit      int
}

// SearchHotels looks up accommodation in a city for a budget tier.
type SearchHotels struct {
	City       string
	Country    *string
	BudgetTier models.BudgetTier
	Limit      int
}

// FinalizeItinerary persists a day-by-day plan.
type FinalizeItinerary struct {
	City       string
	Country    *string
	StartDate  string
	EndDate    string
	BudgetTier models.BudgetTier
	Days       []Day
}

// Day is one day of a FinalizeItinerary.
type Day struct {
	DayIndex   int        `json:"day_index"`
	Date       string     `json:"date"`
	Activities []Activity `json:"activities"`
}

// Activity is one entry of a Day.
type Activity struct {
	Type       string `json:"type"`
	Name       string `json:"name"`
	ExternalID string `json:"external_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Notes      string `json:"notes"`
}

func (SearchPOIs) Kind() Kind        { return KindSearchPOIs }
func (SearchHotels) Kind() Kind      { return KindSearchHotels }
func (FinalizeItinerary) Kind() Kind { return KindFinalizeItinerary }

func (SearchPOIs) sealed()        {}
func (SearchHotels) sealed()      {}
func (FinalizeItinerary) sealed() {}

// wire is the argument object accepted by the execute_travel_action tool.
type wire struct {
	Action     string   `json:"action"`
	City       string   `json:"city"`
	Country    *string  `json:"country"`
	Categories []string `json:"categories"`
	BudgetTier *string  `json:"budget_tier"`
	Limit      *float64 `json:"limit"`
	StartDate  string   `json:"start_date"`
	EndDate    string   `json:"end_date"`
	Days       []Day    `json:"days"`
}

// Decode parses tool-call arguments into an Action. Malformed JSON yields
// ErrInvalidToolCall; an unrecognised action name yields *UnknownActionError.
func Decode(raw []byte) (Action, error) {
	var head struct {
		Action *string `json:"action"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToolCall, err)
	}
	name := ""
	if head.Action != nil {
		name = *head.Action
	}
	switch Kind(name) {
	case KindSearchPOIs, KindSearchHotels, KindFinalizeItinerary:
	default:
		return nil, &UnknownActionError{Name: name}
	}

	var w wire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToolCall, err)
	}
	tier := models.TierMid
	if w.BudgetTier != nil && *w.BudgetTier != "" {
		tier = models.BudgetTier(*w.BudgetTier)
	}

	switch Kind(name) {
	case KindSearchPOIs:
		return SearchPOIs{City: w.City, Country: w.Country, Categories: w.Categories, Limit: limitOr(w.Limit, defaultPOILimit)}, nil
	case KindSearchHotels:
		return SearchHotels{City: w.City, Country: w.Country, BudgetTier: tier, Limit: limitOr(w.Limit, defaultHotelLimit)}, nil
	default:
		return FinalizeItinerary{
			City: w.City, Country: w.Country, StartDate: w.StartDate, EndDate: w.EndDate,
			BudgetTier: tier, Days: w.Days,
		}, nil
	}
}

// limitOr truncates a JSON number limit. Models often send 5.0 for 5.
func limitOr(v *float64, def int) int {
	if v == nil || int(*v) <= 0 {
		return def
	}
	return int(*v)
}

// Result is the outcome of one action. Data holds a *POIResults,
// *HotelResults or *ItineraryCreated on success.
type Result struct {
	Action  Kind   `json:"action"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// POIResults is the payload of a successful search_pois.
type POIResults struct {
	City            string         `json:"city"`
	Country         *string        `json:"country"`
	Categories      []string       `json:"categories"`
	POIs            []models.Place `json:"pois"`
	Count           int            `json:"count"`
	APISuccess      bool           `json:"api_success"`
	UseLLMKnowledge bool           `json:"use_llm_knowledge"`
}

// HotelResults is the payload of a successful search_hotels.
type HotelResults struct {
	City       string            `json:"city"`
	BudgetTier models.BudgetTier `json:"budget_tier"`
	Hotels     []models.Hotel    `json:"hotels"`
	Count      int               `json:"count"`
}

// ItineraryCreated is the payload of a successful finalize_itinerary.
type ItineraryCreated struct {
	ItineraryID string `json:"itinerary_id"`
	City        string `json:"city"`
	DaysCount   int    `json:"days_count"`
}

// Count returns the number of search results, or 0 for other payloads.
func (r Result) Count() int {
	switch d := r.Data.(type) {
	case *POIResults:
		return d.Count
	case *HotelResults:
		return d.Count
	}
	return 0
}

// ItineraryID returns the created itinerary's ID, if any.
func (r Result) ItineraryID() string {
	if d, ok := r.Data.(*ItineraryCreated); ok && r.Success {
		return d.ItineraryID
	}
	return ""
}

func failed(kind Kind, msg string) Result {
	return Result{Action: kind, Success: false, Error: msg}
}
