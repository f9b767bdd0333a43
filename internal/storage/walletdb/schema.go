package walletdb

import (
	"context"

	"github.com/pkg/errors"
)

const schemaVersion = 1

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS itineraries (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  destinations TEXT NOT NULL DEFAULT '[]',
  start_date TIMESTAMP NOT NULL,
  end_date TIMESTAMP NOT NULL,
  total_cost REAL NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL,
  synced_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_itineraries_status ON itineraries(status)`,
		`CREATE INDEX IF NOT EXISTS idx_itineraries_start_date ON itineraries(start_date)`,
		`
CREATE TABLE IF NOT EXISTS bookings (
  id TEXT PRIMARY KEY,
  itinerary_id TEXT NOT NULL,
  type TEXT NOT NULL,
  cost REAL NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  confirmation_code TEXT NULL,
  vendor TEXT NULL,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL,
  synced_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_itinerary_id ON bookings(itinerary_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_type ON bookings(type)`,
		`
CREATE TABLE IF NOT EXISTS tickets (
  id TEXT PRIMARY KEY,
  booking_id TEXT NOT NULL,
  ticket_number TEXT NOT NULL,
  qr_code TEXT NULL,
  passenger_name TEXT NOT NULL DEFAULT '',
  seat TEXT NULL,
  gate TEXT NULL,
  departure_time TIMESTAMP NOT NULL,
  arrival_time TIMESTAMP NOT NULL,
  status TEXT NOT NULL,
  metadata TEXT NULL,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL,
  synced_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_booking_id ON tickets(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_passenger_name ON tickets(passenger_name)`,
		`
CREATE TABLE IF NOT EXISTS sync_queue (
  id TEXT PRIMARY KEY,
  op TEXT NOT NULL,
  tbl TEXT NOT NULL,
  record_id TEXT NOT NULL,
  payload TEXT NULL,
  ts TIMESTAMP NOT NULL,
  retries INTEGER NOT NULL DEFAULT 0
)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_tbl ON sync_queue(tbl)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_ts ON sync_queue(ts)`,
	}

	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}

	// Версия схемы фиксируется через user_version; миграций пока нет.
	var v int
	if err := s.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&v); err != nil {
		return errors.Wrap(err, "read user_version")
	}
	if v < schemaVersion {
		if _, err := s.db.ExecContext(ctx, `PRAGMA user_version = 1`); err != nil {
			return errors.Wrap(err, "set user_version")
		}
	}
	return nil
}
