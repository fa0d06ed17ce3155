package export

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfare-ai/wayfare/pkg/models"
	"github.com/wayfare-ai/wayfare/pkg/store"
)

func ptr[T any](v T) *T { return &v }

func sample() models.Itinerary {
	addr := "Piazza del Colosseo"
	return models.Itinerary{
		ID: "it-1", City: "Rome", Country: ptr("Italy"),
		StartDate: "2024-05-01", EndDate: "2024-05-02", BudgetTier: "mid",
		CreatedAt: time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC),
		Days: []models.ItineraryDay{
			{DayIndex: 1, Date: "2024-05-01", Items: []models.ItineraryItem{
				{
					ID: "item-1", ItemType: models.ItemPOI, StartTime: ptr("09:00:00"), EndTime: ptr("11:30:00"),
					Notes: ptr("Colosseum - go early"),
					Place: &models.Place{Name: "Colosseum", Lat: 41.89, Lon: 12.49, Address: &addr},
				},
				{ID: "item-2", ItemType: models.ItemMeal, StartTime: ptr("13:00"), Notes: ptr("Lunch in Monti")},
			}},
			{DayIndex: 2, Date: "2024-05-02", Items: []models.ItineraryItem{
				{ID: "item-3", ItemType: models.ItemTransit, Notes: ptr("Train to Florence")},
			}},
		},
	}
}

func TestToDocument(t *testing.T) {
	doc := ToDocument(sample())
	require.Len(t, doc.Days, 2)
	first := doc.Days[0].Items[0]
	assert.Equal(t, "09:00", *first.StartTime)
	assert.Equal(t, "11:30", *first.EndTime)
	require.NotNil(t, first.Place)
	assert.Equal(t, "Colosseum", first.Place.Name)
	assert.Equal(t, []string{}, first.Place.Categories)
	assert.Equal(t, "13:00", *doc.Days[0].Items[1].StartTime)
	assert.Nil(t, doc.Days[0].Items[1].EndTime)
	assert.Nil(t, doc.Days[1].Items[0].StartTime)
}

func TestToICS(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	require.NoError(t, err)

	out, err := ToICS(sample(), rome, time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	unfolded := strings.ReplaceAll(out, "\r\n ", "")

	assert.Contains(t, unfolded, "BEGIN:VCALENDAR")
	assert.Contains(t, unfolded, "UID:item-1@wayfare")
	assert.Contains(t, unfolded, "SUMMARY:Colosseum")
	assert.Contains(t, unfolded, "DTSTART:20240501T070000Z", "09:00 in Rome is 07:00 UTC in May")
	assert.Contains(t, unfolded, "DTEND:20240501T093000Z")
	assert.Contains(t, unfolded, "SUMMARY:Lunch in Monti")
	assert.Contains(t, unfolded, "DTEND:20240501T120000Z", "missing end time lasts one hour")
	assert.Contains(t, unfolded, "SUMMARY:Day 2 in Rome")
	assert.Equal(t, 3, strings.Count(unfolded, "BEGIN:VEVENT"))
}

func TestToICSBadDate(t *testing.T) {
	it := sample()
	it.Days[0].Date = "01/05/2024"
	_, err := ToICS(it, time.UTC, time.Now())
	assert.Error(t, err)
}

type fakeReader struct{ it models.Itinerary }

func (f fakeReader) GetItinerary(_ context.Context, id string) (models.Itinerary, error) {
	if id != f.it.ID {
		return models.Itinerary{}, store.ErrNotFound
	}
	return f.it, nil
}

type utcLocator struct{}

func (utcLocator) CityLocation(string) *time.Location { return time.UTC }

func TestExporter(t *testing.T) {
	e := New(fakeReader{it: sample()}, utcLocator{})
	doc, err := e.JSON(context.Background(), "it-1")
	require.NoError(t, err)
	assert.Equal(t, "Rome", doc.City)

	_, err = e.JSON(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)

	cal, err := e.ICS(context.Background(), "it-1")
	require.NoError(t, err)
	assert.Contains(t, cal, "X-WR-TIMEZONE:UTC")
}
