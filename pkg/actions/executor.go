package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/wayfare-ai/wayfare/pkg/geo"
	"github.com/wayfare-ai/wayfare/pkg/metrics"
	"github.com/wayfare-ai/wayfare/pkg/models"
	"github.com/wayfare-ai/wayfare/pkg/providers/hotels"
	"github.com/wayfare-ai/wayfare/pkg/store"
)

// POISearcher finds places around a coordinate.
type POISearcher interface {
	SearchByRadius(ctx context.Context, lat, lon float64, kinds string, limit int) ([]models.Place, error)
}

// ItineraryWriter persists finalized itineraries.
type ItineraryWriter interface {
	CreateItinerary(ctx context.Context, in store.NewItinerary) (models.Itinerary, error)
}

// categoryKinds maps user-facing POI categories to OpenTripMap kinds.
var categoryKinds = map[string]string{
	"museums":       "museums",
	"historic":      "historic",
	"restaurants":   "foods",
	"parks":         "natural",
	"attractions":   "tourist_facilities",
	"shopping":      "shops",
	"entertainment": "entertainment",
}

// Executor runs actions against the POI client, hotel provider and
// itinerary store.
type Executor struct {
	pois        POISearcher
	hotels      hotels.Provider
	itineraries ItineraryWriter
	logger      *zap.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(pois POISearcher, hp hotels.Provider, itineraries ItineraryWriter, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{pois: pois, hotels: hp, itineraries: itineraries, logger: logger}
}

// ExecuteRaw decodes tool-call arguments and executes them. Decoding
// failures are returned as failed results.
func (e *Executor) ExecuteRaw(ctx context.Context, sessionID string, raw []byte) Result {
	a, err := Decode(raw)
	if err != nil {
		var unknown *UnknownActionError
		if errors.As(err, &unknown) {
			e.logger.Warn("unknown action", zap.String("action", unknown.Name))
			return e.record(failed(KindUnknown, unknown.Error()))
		}
		e.logger.Error("invalid tool call", zap.Error(err))
		return e.record(failed(KindUnknown, "Invalid tool call format"))
	}
	return e.Execute(ctx, sessionID, a)
}

// Execute runs a decoded action for a session.
func (e *Executor) Execute(ctx context.Context, sessionID string, a Action) Result {
	var r Result
	switch act := a.(type) {
	case SearchPOIs:
		r = e.searchPOIs(ctx, act)
	case SearchHotels:
		r = e.searchHotels(ctx, act)
	case FinalizeItinerary:
		r = e.finalize(ctx, sessionID, act)
	default:
		r = failed(KindUnknown, fmt.Sprintf("Unknown action: %T", a))
	}
	return e.record(r)
}

func (e *Executor) record(r Result) Result {
	status := "success"
	if !r.Success {
		status = "error"
	}
	metrics.ActionsTotal.WithLabelValues(string(r.Action), status).Inc()
	return r
}

// Kinds maps categories to a comma-separated kinds filter. Unknown
// categories are dropped.
func Kinds(categories []string) string {
	kinds := lo.FilterMap(categories, func(c string, _ int) (string, bool) {
		k, ok := categoryKinds[strings.ToLower(strings.TrimSpace(c))]
		return k, ok
	})
	return strings.Join(kinds, ",")
}

func (e *Executor) searchPOIs(ctx context.Context, a SearchPOIs) Result {
	if a.City == "" {
		return failed(KindSearchPOIs, "City is required")
	}

	pois := []models.Place{}
	if city, ok := geo.Lookup(a.City); ok && e.pois != nil {
		found, err := e.pois.SearchByRadius(ctx, city.Lat, city.Lon, Kinds(a.Categories), a.Limit)
		if err != nil {
			e.logger.Warn("poi search failed", zap.String("city", a.City), zap.Error(err))
		} else if found != nil {
			pois = found
		}
	} else {
		e.logger.Info("no coordinates for city", zap.String("city", a.City))
	}

	categories := a.Categories
	if categories == nil {
		categories = []string{}
	}
	return Result{
		Action:  KindSearchPOIs,
		Success: true,
		Data: &POIResults{
			City:            a.City,
			Country:         a.Country,
			Categories:      categories,
			POIs:            pois,
			Count:           len(pois),
			APISuccess:      len(pois) > 0,
			UseLLMKnowledge: len(pois) == 0,
		},
	}
}

func (e *Executor) searchHotels(ctx context.Context, a SearchHotels) Result {
	if a.City == "" {
		return failed(KindSearchHotels, "City is required")
	}
	q := hotels.Query{City: a.City, Tier: a.BudgetTier, Limit: a.Limit}
	if a.Country != nil {
		q.Country = *a.Country
	}
	found, err := e.hotels.SearchHotels(ctx, q)
	if err != nil {
		e.logger.Error("hotel search failed", zap.String("city", a.City), zap.Error(err))
		return failed(KindSearchHotels, err.Error())
	}
	if found == nil {
		found = []models.Hotel{}
	}
	return Result{
		Action:  KindSearchHotels,
		Success: true,
		Data:    &HotelResults{City: a.City, BudgetTier: a.BudgetTier, Hotels: found, Count: len(found)},
	}
}

const dateLayout = "2006-01-02"

func (e *Executor) finalize(ctx context.Context, sessionID string, a FinalizeItinerary) Result {
	if a.City == "" || a.StartDate == "" || a.EndDate == "" || len(a.Days) == 0 {
		return failed(KindFinalizeItinerary, "Missing required fields: city, start_date, end_date, days")
	}

	dates := append([]string{a.StartDate, a.EndDate}, lo.Map(a.Days, func(d Day, _ int) string { return d.Date })...)
	for _, d := range dates {
		if _, err := time.Parse(dateLayout, d); err != nil {
			return failed(KindFinalizeItinerary, fmt.Sprintf("Invalid date format: %v", err))
		}
	}

	in := store.NewItinerary{
		SessionID:  sessionID,
		City:       a.City,
		Country:    a.Country,
		StartDate:  a.StartDate,
		EndDate:    a.EndDate,
		BudgetTier: string(a.BudgetTier),
		Days:       make([]store.NewDay, 0, len(a.Days)),
	}
	for _, d := range a.Days {
		day := store.NewDay{DayIndex: d.DayIndex, Date: d.Date, Items: make([]store.NewItem, 0, len(d.Activities))}
		for _, act := range d.Activities {
			day.Items = append(day.Items, newItem(act))
		}
		in.Days = append(in.Days, day)
	}

	it, err := e.itineraries.CreateItinerary(ctx, in)
	if err != nil {
		e.logger.Error("finalize itinerary failed", zap.String("session_id", sessionID), zap.Error(err))
		return failed(KindFinalizeItinerary, err.Error())
	}
	e.logger.Info("itinerary created",
		zap.String("itinerary_id", it.ID), zap.String("city", a.City), zap.Int("days", len(a.Days)))
	return Result{
		Action:  KindFinalizeItinerary,
		Success: true,
		Data:    &ItineraryCreated{ItineraryID: it.ID, City: a.City, DaysCount: len(a.Days)},
	}
}

func newItem(a Activity) store.NewItem {
	typ := models.ItemType(a.Type)
	if typ == "" {
		typ = models.ItemPOI
	}
	return store.NewItem{
		Type:       typ,
		ExternalID: a.ExternalID,
		StartTime:  ParseClock(a.StartTime),
		EndTime:    ParseClock(a.EndTime),
		Notes:      strings.Trim(a.Name+" - "+a.Notes, " -"),
	}
}

// ParseClock normalizes an HH:MM or HH:MM:SS time of day to HH:MM:SS.
// Anything else yields nil.
func ParseClock(s string) *string {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			out := t.Format("15:04:05")
			return &out
		}
	}
	return nil
}
