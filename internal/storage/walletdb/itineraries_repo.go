package walletdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/HopNGo/TripWallet/internal/models"
	"github.com/pkg/errors"
)

// dbtx позволяет выполнять запросы и на *sql.DB, и внутри *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Storage) SaveItinerary(ctx context.Context, it *models.Itinerary) error {
	stampWrite(&it.CreatedAt, &it.UpdatedAt, &it.SyncedAt)
	return upsertItinerary(ctx, s.db, it)
}

// stampWrite проставляет synced_at временем записи и дополняет
// отсутствующие created_at/updated_at.
func stampWrite(createdAt, updatedAt, syncedAt *time.Time) {
	now := time.Now().UTC()
	if createdAt.IsZero() {
		*createdAt = now
	}
	if updatedAt.IsZero() {
		*updatedAt = now
	}
	*syncedAt = now
}

func upsertItinerary(ctx context.Context, q dbtx, it *models.Itinerary) error {
	dests, err := json.Marshal(it.Destinations)
	if err != nil {
		return errors.Wrap(err, "marshal destinations")
	}
	_, err = q.ExecContext(ctx, `
INSERT INTO itineraries (
  id, title, description, destinations, start_date, end_date,
  total_cost, currency, status, created_at, updated_at, synced_at
)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
  title = excluded.title,
  description = excluded.description,
  destinations = excluded.destinations,
  start_date = excluded.start_date,
  end_date = excluded.end_date,
  total_cost = excluded.total_cost,
  currency = excluded.currency,
  status = excluded.status,
  updated_at = excluded.updated_at,
  synced_at = excluded.synced_at
`, it.ID, it.Title, it.Description, string(dests), it.StartDate.UTC(), it.EndDate.UTC(),
		it.TotalCost, it.Currency, it.Status, it.CreatedAt.UTC(), it.UpdatedAt.UTC(), it.SyncedAt.UTC())
	return errors.Wrap(err, "upsert itinerary")
}

const itineraryCols = `
  id, title, description, destinations, start_date, end_date,
  total_cost, currency, status, created_at, updated_at, synced_at`

func scanItinerary(scan func(dest ...any) error) (*models.Itinerary, error) {
	var it models.Itinerary
	var dests string
	if err := scan(
		&it.ID, &it.Title, &it.Description, &dests, &it.StartDate, &it.EndDate,
		&it.TotalCost, &it.Currency, &it.Status, &it.CreatedAt, &it.UpdatedAt, &it.SyncedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(dests), &it.Destinations); err != nil {
		return nil, errors.Wrap(err, "unmarshal destinations")
	}
	return &it, nil
}

func (s *Storage) GetItinerary(ctx context.Context, id string) (*models.Itinerary, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+itineraryCols+` FROM itineraries WHERE id = ?`, id)
	it, err := scanItinerary(row.Scan)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "select itinerary")
	}
	return it, true, nil
}

func (s *Storage) ListItineraries(ctx context.Context) ([]*models.Itinerary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT`+itineraryCols+` FROM itineraries ORDER BY start_date ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "select itineraries")
	}
	defer rows.Close()

	out := []*models.Itinerary{}
	for rows.Next() {
		it, err := scanItinerary(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(err, "scan itinerary")
		}
		out = append(out, it)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) DeleteItinerary(ctx context.Context, id string) error {
	// Удаление отсутствующей записи не считается ошибкой.
	_, err := s.db.ExecContext(ctx, `DELETE FROM itineraries WHERE id = ?`, id)
	return errors.Wrap(err, "delete itinerary")
}
