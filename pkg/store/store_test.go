package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfare-ai/wayfare/pkg/db"
	"github.com/wayfare-ai/wayfare/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "store_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	s, err := New(conn)
	require.NoError(t, err)
	return s
}

func ptr[T any](v T) *T { return &v }

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "abcdef0123456789")
	require.NoError(t, err)

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "abcdef0123456789", got.IPHash)

	_, err = s.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecentMessagesNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess, err := s.CreateSession(ctx, "h")
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	for i, content := range []string{"one", "two", "three"} {
		_, err := s.AddMessage(ctx, models.Message{
			SessionID: sess.ID, Role: models.RoleUser, Content: content,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	recent, err := s.RecentMessages(ctx, sess.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "three", recent[0].Content)
	assert.Equal(t, "two", recent[1].Content)

	all, err := s.Messages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "one", all[0].Content)

	n, err := s.CountMessages(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMessageTokensNullable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess, _ := s.CreateSession(ctx, "h")

	_, err := s.AddMessage(ctx, models.Message{SessionID: sess.ID, Role: models.RoleAssistant, Content: "hi", TokensOut: ptr(12), CostUSD: ptr(0.01)})
	require.NoError(t, err)

	msgs, err := s.Messages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Nil(t, msgs[0].TokensIn)
	require.NotNil(t, msgs[0].TokensOut)
	assert.Equal(t, 12, *msgs[0].TokensOut)
}

func TestMessageRoleChecked(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess, _ := s.CreateSession(ctx, "h")

	_, err := s.AddMessage(ctx, models.Message{SessionID: sess.ID, Role: "tool", Content: "x"})
	assert.Error(t, err)
}

func TestUpsertPlacesKeepsID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertPlaces(ctx, []models.Place{{
		Provider: "opentripmap", ExternalID: "W123", Name: "Colosseum", Lat: 41.89, Lon: 12.49,
		Categories: models.StringList{"historic", "architecture"},
	}})
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := s.UpsertPlaces(ctx, []models.Place{{
		Provider: "opentripmap", ExternalID: "W123", Name: "Colosseo", Lat: 41.89, Lon: 12.49,
	}})
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, second[0].ID)

	p, err := s.GetPlace(ctx, first[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Colosseo", p.Name)
}

func seedHotels(t *testing.T, s *Store) {
	t.Helper()
	city := ptr("Rome")
	_, err := s.UpsertHotels(context.Background(), []models.Hotel{
		{Provider: "stub", ExternalID: "h1", Name: "Cheap", City: city, PriceEURPerNight: ptr(70.0), Rating: ptr(3.9)},
		{Provider: "stub", ExternalID: "h2", Name: "Edge", City: city, PriceEURPerNight: ptr(80.0), Rating: ptr(3.0)},
		{Provider: "stub", ExternalID: "h3", Name: "Middle", City: city, PriceEURPerNight: ptr(120.0), Rating: ptr(4.2)},
		{Provider: "stub", ExternalID: "h4", Name: "Luxury", City: city, PriceEURPerNight: ptr(420.0), Rating: ptr(5.0)},
		{Provider: "stub", ExternalID: "h5", Name: "Elsewhere", City: ptr("Paris"), PriceEURPerNight: ptr(60.0), Rating: ptr(4.0)},
	})
	require.NoError(t, err)
}

func TestSearchHotelsPriceBand(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedHotels(t, s)

	budget, err := s.SearchHotels(ctx, HotelQuery{Provider: "stub", City: "rome", MaxPrice: ptr(80.0), Limit: 10})
	require.NoError(t, err)
	require.Len(t, budget, 2)
	assert.Equal(t, "Cheap", budget[0].Name, "ordered by rating desc")
	for _, h := range budget {
		assert.LessOrEqual(t, *h.PriceEURPerNight, 80.0)
	}

	mid, err := s.SearchHotels(ctx, HotelQuery{City: "ROME", MinPrice: ptr(80.0), MaxPrice: ptr(150.0)})
	require.NoError(t, err)
	require.Len(t, mid, 1)
	assert.Equal(t, "Middle", mid[0].Name)

	limited, err := s.SearchHotels(ctx, HotelQuery{City: "Rome", Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "Luxury", limited[0].Name)

	n, err := s.CountHotels(ctx, "stub")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestHotelRatingChecked(t *testing.T) {
	s := newTestStore(t)
	_, err := s.UpsertHotels(context.Background(), []models.Hotel{{Provider: "stub", ExternalID: "bad", Name: "Bad", Rating: ptr(9.0)}})
	assert.Error(t, err)
}

func TestItineraryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess, err := s.CreateSession(ctx, "h")
	require.NoError(t, err)
	seedHotels(t, s)
	places, err := s.UpsertPlaces(ctx, []models.Place{{Provider: "opentripmap", ExternalID: "W1", Name: "Pantheon", Lat: 41.9, Lon: 12.48}})
	require.NoError(t, err)

	created, err := s.CreateItinerary(ctx, NewItinerary{
		SessionID: sess.ID, City: "Rome", Country: ptr("Italy"),
		StartDate: "2024-05-01", EndDate: "2024-05-02", BudgetTier: "mid",
		Days: []NewDay{
			{DayIndex: 2, Date: "2024-05-02", Items: []NewItem{
				{Type: models.ItemMeal, Notes: "Trastevere dinner"},
			}},
			{DayIndex: 1, Date: "2024-05-01", Items: []NewItem{
				{Type: models.ItemPOI, ExternalID: "W1", StartTime: ptr("09:00"), EndTime: ptr("11:00"), Notes: "Pantheon - go early"},
				{Type: models.ItemHotel, ExternalID: "h3", Notes: "Middle"},
				{Type: models.ItemTransit},
			}},
		},
	})
	require.NoError(t, err)

	got, err := s.GetItinerary(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rome", got.City)
	require.Len(t, got.Days, 2)
	assert.Equal(t, 1, got.Days[0].DayIndex)
	assert.Equal(t, 2, got.Days[1].DayIndex)

	day1 := got.Days[0]
	require.Len(t, day1.Items, 3)
	assert.Equal(t, models.ItemPOI, day1.Items[0].ItemType)
	require.NotNil(t, day1.Items[0].Place)
	assert.Equal(t, places[0].ID, day1.Items[0].Place.ID)
	assert.Equal(t, "09:00", *day1.Items[0].StartTime)
	assert.Equal(t, "Pantheon - go early", *day1.Items[0].Notes)
	require.NotNil(t, day1.Items[1].Hotel)
	assert.Equal(t, "Middle", day1.Items[1].Hotel.Name)
	require.NotNil(t, day1.Items[2].Notes)
	assert.Equal(t, "", *day1.Items[2].Notes)
	assert.Nil(t, day1.Items[2].StartTime)

	list, err := s.ListItineraries(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateItineraryRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess, _ := s.CreateSession(ctx, "h")

	_, err := s.CreateItinerary(ctx, NewItinerary{
		SessionID: sess.ID, City: "Rome", StartDate: "2024-05-01", EndDate: "2024-05-02", BudgetTier: "mid",
		Days: []NewDay{
			{DayIndex: 1, Date: "2024-05-01", Items: []NewItem{{Type: models.ItemPOI}}},
			{DayIndex: 2, Date: "2024-05-02", Items: []NewItem{{Type: "spa"}}},
		},
	})
	require.Error(t, err)

	var headers, days, items int
	require.NoError(t, s.db.Get(&headers, `SELECT COUNT(*) FROM itineraries`))
	require.NoError(t, s.db.Get(&days, `SELECT COUNT(*) FROM itinerary_days`))
	require.NoError(t, s.db.Get(&items, `SELECT COUNT(*) FROM itinerary_items`))
	assert.Zero(t, headers)
	assert.Zero(t, days)
	assert.Zero(t, items)
}

func TestCreateItineraryRequiresSession(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateItinerary(context.Background(), NewItinerary{
		SessionID: "nope", City: "Rome", StartDate: "2024-05-01", EndDate: "2024-05-02", BudgetTier: "mid",
	})
	assert.Error(t, err)
}

func TestGetItineraryNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetItinerary(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
