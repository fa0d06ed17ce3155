// Package store persists sessions, chat messages, itineraries and the
// places and hotels returned by upstream providers.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wayfare-ai/wayfare/pkg/db"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

const createSessions = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	ip_hash TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_ip_hash ON sessions(ip_hash);
`

const createMessages = `
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	role TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
	content TEXT NOT NULL,
	tokens_in INTEGER,
	tokens_out INTEGER,
	cost_usd REAL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
`

const createPlaces = `
CREATE TABLE IF NOT EXISTS places (
	id TEXT PRIMARY KEY,
	provider TEXT NOT NULL,
	external_id TEXT NOT NULL,
	name TEXT NOT NULL,
	lat REAL NOT NULL,
	lon REAL NOT NULL,
	categories TEXT NOT NULL DEFAULT '[]',
	rating REAL,
	address TEXT,
	city TEXT,
	country TEXT,
	raw_json TEXT NOT NULL DEFAULT '{}',
	last_synced_at DATETIME NOT NULL,
	UNIQUE (provider, external_id)
);
CREATE INDEX IF NOT EXISTS idx_places_external ON places(external_id);
CREATE INDEX IF NOT EXISTS idx_places_city ON places(city);
`

const createHotels = `
CREATE TABLE IF NOT EXISTS hotels (
	id TEXT PRIMARY KEY,
	provider TEXT NOT NULL,
	external_id TEXT NOT NULL,
	name TEXT NOT NULL,
	lat REAL,
	lon REAL,
	price_eur_per_night REAL,
	rating REAL CHECK (rating IS NULL OR (rating >= 0 AND rating <= 5)),
	address TEXT,
	city TEXT,
	country TEXT,
	url TEXT,
	raw_json TEXT NOT NULL DEFAULT '{}',
	last_synced_at DATETIME NOT NULL,
	UNIQUE (provider, external_id)
);
CREATE INDEX IF NOT EXISTS idx_hotels_external ON hotels(external_id);
CREATE INDEX IF NOT EXISTS idx_hotels_city ON hotels(city);
`

const createItineraries = `
CREATE TABLE IF NOT EXISTS itineraries (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	city TEXT NOT NULL,
	country TEXT,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	budget_tier TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_itineraries_session ON itineraries(session_id);

CREATE TABLE IF NOT EXISTS itinerary_days (
	id TEXT PRIMARY KEY,
	itinerary_id TEXT NOT NULL REFERENCES itineraries(id) ON DELETE CASCADE,
	day_index INTEGER NOT NULL,
	date TEXT NOT NULL,
	UNIQUE (itinerary_id, day_index)
);

CREATE TABLE IF NOT EXISTS itinerary_items (
	id TEXT PRIMARY KEY,
	day_id TEXT NOT NULL REFERENCES itinerary_days(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	item_type TEXT NOT NULL CHECK (item_type IN ('poi', 'hotel', 'meal', 'transit')),
	ref_place_id TEXT REFERENCES places(id),
	ref_hotel_id TEXT REFERENCES hotels(id),
	start_time TEXT,
	end_time TEXT,
	notes TEXT
);
CREATE INDEX IF NOT EXISTS idx_items_day ON itinerary_items(day_id, position);
`

// Store is the SQLite-backed repository for chat and itinerary data.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// New creates a Store on conn and runs auto-migration.
func New(conn *sqlx.DB) (*Store, error) {
	if err := db.Migrate(conn, createSessions, createMessages, createPlaces, createHotels, createItineraries); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return &Store{db: conn, now: time.Now}, nil
}

// DB exposes the underlying connection for packages sharing the database.
func (s *Store) DB() *sqlx.DB { return s.db }
