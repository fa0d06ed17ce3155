package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringList is a string slice persisted as a JSON array.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		return json.Unmarshal([]byte(v), l)
	case []byte:
		return json.Unmarshal(v, l)
	default:
		return fmt.Errorf("scan string list: unsupported type %T", src)
	}
}

// Place is a point of interest returned by a POI provider.
type Place struct {
	ID           string     `json:"id,omitempty" db:"id"`
	Provider     string     `json:"provider" db:"provider"`
	ExternalID   string     `json:"external_id" db:"external_id"`
	Name         string     `json:"name" db:"name"`
	Lat          float64    `json:"lat" db:"lat"`
	Lon          float64    `json:"lon" db:"lon"`
	Categories   StringList `json:"categories" db:"categories"`
	Rating       *float64   `json:"rating,omitempty" db:"rating"`
	Address      *string    `json:"address,omitempty" db:"address"`
	City         *string    `json:"city,omitempty" db:"city"`
	Country      *string    `json:"country,omitempty" db:"country"`
	RawJSON      string     `json:"-" db:"raw_json"`
	LastSyncedAt time.Time  `json:"-" db:"last_synced_at"`
}

// Hotel is an accommodation returned by a hotel provider.
type Hotel struct {
	ID               string    `json:"id,omitempty" db:"id"`
	Provider         string    `json:"provider" db:"provider"`
	ExternalID       string    `json:"external_id" db:"external_id"`
	Name             string    `json:"name" db:"name"`
	Lat              *float64  `json:"lat,omitempty" db:"lat"`
	Lon              *float64  `json:"lon,omitempty" db:"lon"`
	PriceEURPerNight *float64  `json:"price_eur_per_night,omitempty" db:"price_eur_per_night"`
	Rating           *float64  `json:"rating,omitempty" db:"rating"`
	Address          *string   `json:"address,omitempty" db:"address"`
	City             *string   `json:"city,omitempty" db:"city"`
	Country          *string   `json:"country,omitempty" db:"country"`
	URL              *string   `json:"url,omitempty" db:"url"`
	RawJSON          string    `json:"-" db:"raw_json"`
	LastSyncedAt     time.Time `json:"-" db:"last_synced_at"`
}
