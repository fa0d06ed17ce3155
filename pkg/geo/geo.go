// Package geo resolves city names to coordinates and coordinates to time zones.
package geo

import (
	"strings"
	"sync"
	"time"

	"github.com/ringsaturn/tzf"
	"golang.org/x/text/cases"
)

// City is a known destination with its centre coordinates.
type City struct {
	Name string
	Lat  float64
	Lon  float64
}

// cities is a fixed table of European capitals; there is no geocoder.
var cities = map[string]City{
	"athens":    {Name: "Athens", Lat: 37.9755, Lon: 23.7348},
	"paris":     {Name: "Paris", Lat: 48.8566, Lon: 2.3522},
	"london":    {Name: "London", Lat: 51.5074, Lon: -0.1278},
	"rome":      {Name: "Rome", Lat: 41.9028, Lon: 12.4964},
	"madrid":    {Name: "Madrid", Lat: 40.4168, Lon: -3.7038},
	"berlin":    {Name: "Berlin", Lat: 52.5200, Lon: 13.4050},
	"amsterdam": {Name: "Amsterdam", Lat: 52.3676, Lon: 4.9041},
	"prague":    {Name: "Prague", Lat: 50.0755, Lon: 14.4378},
	"vienna":    {Name: "Vienna", Lat: 48.2082, Lon: 16.3738},
	"barcelona": {Name: "Barcelona", Lat: 41.3851, Lon: 2.1734},
}

// Lookup finds a city by name, ignoring case and surrounding space.
func Lookup(name string) (City, bool) {
	c, ok := cities[fold(name)]
	return c, ok
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

type tzNamer interface {
	GetTimezoneName(lng float64, lat float64) string
}

// TimezoneFinder maps coordinates to IANA time zones. The polygon data is
// loaded on first use.
type TimezoneFinder struct {
	once   sync.Once
	finder tzNamer
	err    error
}

// NewTimezoneFinder returns a finder backed by the embedded tzf dataset.
func NewTimezoneFinder() *TimezoneFinder {
	return &TimezoneFinder{}
}

func (f *TimezoneFinder) load() {
	f.once.Do(func() {
		finder, err := tzf.NewDefaultFinder()
		if err != nil {
			f.err = err
			return
		}
		f.finder = finder
	})
}

// Location returns the time zone at lat/lon, or UTC when it cannot be resolved.
func (f *TimezoneFinder) Location(lat, lon float64) *time.Location {
	f.load()
	if f.err != nil || f.finder == nil {
		return time.UTC
	}
	name := f.finder.GetTimezoneName(lon, lat)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CityLocation returns the time zone of a known city, or UTC.
func (f *TimezoneFinder) CityLocation(name string) *time.Location {
	c, ok := Lookup(name)
	if !ok {
		return time.UTC
	}
	return f.Location(c.Lat, c.Lon)
}
