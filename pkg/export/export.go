// Package export renders stored itineraries as JSON documents and
// iCalendar feeds.
package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wayfare-ai/wayfare/pkg/models"
)

// ItineraryReader loads a full itinerary.
type ItineraryReader interface {
	GetItinerary(ctx context.Context, id string) (models.Itinerary, error)
}

// Locator resolves a city's time zone.
type Locator interface {
	CityLocation(name string) *time.Location
}

// Document is the JSON export of an itinerary.
type Document struct {
	ID         string    `json:"id"`
	City       string    `json:"city"`
	Country    *string   `json:"country"`
	StartDate  string    `json:"start_date"`
	EndDate    string    `json:"end_date"`
	BudgetTier string    `json:"budget_tier"`
	CreatedAt  time.Time `json:"created_at"`
	Days       []Day     `json:"days"`
}

// Day is one exported day.
type Day struct {
	DayIndex int    `json:"day_index"`
	Date     string `json:"date"`
	Items    []Item `json:"items"`
}

// Item is one exported activity. Times are HH:MM.
type Item struct {
	Type      models.ItemType `json:"type"`
	StartTime *string         `json:"start_time"`
	EndTime   *string         `json:"end_time"`
	Notes     *string         `json:"notes"`
	Place     *Place          `json:"place,omitempty"`
	Hotel     *Hotel          `json:"hotel,omitempty"`
}

// Place is the linked place of an item.
type Place struct {
	Name       string   `json:"name"`
	Lat        float64  `json:"lat"`
	Lon        float64  `json:"lon"`
	Address    *string  `json:"address"`
	Categories []string `json:"categories"`
	Rating     *float64 `json:"rating"`
}

// Hotel is the linked hotel of an item.
type Hotel struct {
	Name             string   `json:"name"`
	Lat              *float64 `json:"lat"`
	Lon              *float64 `json:"lon"`
	Address          *string  `json:"address"`
	Rating           *float64 `json:"rating"`
	PriceEURPerNight *float64 `json:"price_eur_per_night"`
	URL              *string  `json:"url"`
}

// Exporter loads itineraries and renders them.
type Exporter struct {
	store ItineraryReader
	tz    Locator
	now   func() time.Time
}

// New creates an Exporter.
func New(store ItineraryReader, tz Locator) *Exporter {
	return &Exporter{store: store, tz: tz, now: time.Now}
}

// JSON returns the JSON document of itinerary id.
func (e *Exporter) JSON(ctx context.Context, id string) (Document, error) {
	it, err := e.store.GetItinerary(ctx, id)
	if err != nil {
		return Document{}, err
	}
	return ToDocument(it), nil
}

// ICS returns the iCalendar feed of itinerary id in the city's time zone.
func (e *Exporter) ICS(ctx context.Context, id string) (string, error) {
	it, err := e.store.GetItinerary(ctx, id)
	if err != nil {
		return "", err
	}
	return ToICS(it, e.tz.CityLocation(it.City), e.now())
}

// ToDocument converts an itinerary. Days keep the store's day_index order.
func ToDocument(it models.Itinerary) Document {
	doc := Document{
		ID:         it.ID,
		City:       it.City,
		Country:    it.Country,
		StartDate:  it.StartDate,
		EndDate:    it.EndDate,
		BudgetTier: it.BudgetTier,
		CreatedAt:  it.CreatedAt,
		Days:       make([]Day, 0, len(it.Days)),
	}
	for _, d := range it.Days {
		day := Day{DayIndex: d.DayIndex, Date: d.Date, Items: make([]Item, 0, len(d.Items))}
		for _, item := range d.Items {
			out := Item{
				Type:      item.ItemType,
				StartTime: hhmm(item.StartTime),
				EndTime:   hhmm(item.EndTime),
				Notes:     item.Notes,
			}
			if p := item.Place; p != nil {
				out.Place = &Place{Name: p.Name, Lat: p.Lat, Lon: p.Lon, Address: p.Address, Categories: p.Categories, Rating: p.Rating}
				if out.Place.Categories == nil {
					out.Place.Categories = []string{}
				}
			}
			if h := item.Hotel; h != nil {
				out.Hotel = &Hotel{
					Name: h.Name, Lat: h.Lat, Lon: h.Lon, Address: h.Address,
					Rating: h.Rating, PriceEURPerNight: h.PriceEURPerNight, URL: h.URL,
				}
			}
			day.Items = append(day.Items, out)
		}
		doc.Days = append(doc.Days, day)
	}
	return doc
}

// clock parses a stored time of day.
func clock(s *string) (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, *s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func hhmm(s *string) *string {
	t, ok := clock(s)
	if !ok {
		return nil
	}
	out := t.Format("15:04")
	return &out
}

// ToICS renders an itinerary as a calendar. Items with a start time become
// timed events in loc; an item without an end time lasts one hour. Days
// without any timed item become one all-day event.
func ToICS(it models.Itinerary, loc *time.Location, now time.Time) (string, error) {
	if loc == nil {
		loc = time.UTC
	}
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//Wayfare//Itinerary Export//EN")
	cal.SetXWRCalName(fmt.Sprintf("%s trip %s to %s", it.City, it.StartDate, it.EndDate))
	cal.SetXWRTimezone(loc.String())

	for _, d := range it.Days {
		date, err := time.ParseInLocation("2006-01-02", d.Date, loc)
		if err != nil {
			return "", fmt.Errorf("day %d: %w", d.DayIndex, err)
		}
		timed := 0
		for i, item := range d.Items {
			start, ok := clock(item.StartTime)
			if !ok {
				continue
			}
			timed++
			begin := at(date, start, loc)
			end := begin.Add(time.Hour)
			if e, ok := clock(item.EndTime); ok && at(date, e, loc).After(begin) {
				end = at(date, e, loc)
			}

			ev := cal.AddEvent(eventID(it, d, i, item))
			ev.SetDtStampTime(now)
			ev.SetStartAt(begin)
			ev.SetEndAt(end)
			ev.SetSummary(summary(item))
			if where := location(item, it.City); where != "" {
				ev.SetLocation(where)
			}
			if item.Notes != nil && *item.Notes != "" {
				ev.SetDescription(*item.Notes)
			}
		}
		if timed == 0 {
			ev := cal.AddEvent(fmt.Sprintf("%s-day-%d@wayfare", it.ID, d.DayIndex))
			ev.SetDtStampTime(now)
			ev.SetAllDayStartAt(date)
			ev.SetAllDayEndAt(date.AddDate(0, 0, 1))
			ev.SetSummary(fmt.Sprintf("Day %d in %s", d.DayIndex, it.City))
			ev.SetDescription(dayDescription(d))
		}
	}
	return cal.Serialize(), nil
}

func at(date, tod time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), tod.Hour(), tod.Minute(), tod.Second(), 0, loc)
}

func eventID(it models.Itinerary, d models.ItineraryDay, i int, item models.ItineraryItem) string {
	if item.ID != "" {
		return item.ID + "@wayfare"
	}
	return fmt.Sprintf("%s-%d-%d@wayfare", it.ID, d.DayIndex, i)
}

func summary(item models.ItineraryItem) string {
	switch {
	case item.Place != nil:
		return item.Place.Name
	case item.Hotel != nil:
		return item.Hotel.Name
	case item.Notes != nil && *item.Notes != "":
		name, _, _ := strings.Cut(*item.Notes, " - ")
		return name
	default:
		return cases.Title(language.English).String(string(item.ItemType))
	}
}

func location(item models.ItineraryItem, city string) string {
	switch {
	case item.Place != nil && item.Place.Address != nil:
		return *item.Place.Address
	case item.Hotel != nil && item.Hotel.Address != nil:
		return *item.Hotel.Address
	case item.Place != nil || item.Hotel != nil:
		return city
	}
	return ""
}

func dayDescription(d models.ItineraryDay) string {
	var lines []string
	for _, item := range d.Items {
		if item.Notes != nil && *item.Notes != "" {
			lines = append(lines, "- "+*item.Notes)
		}
	}
	return strings.Join(lines, "\n")
}
