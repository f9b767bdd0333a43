package walletdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/HopNGo/TripWallet/internal/models"
	"github.com/pkg/errors"
)

func (s *Storage) SaveBooking(ctx context.Context, b *models.Booking) error {
	stampWrite(&b.CreatedAt, &b.UpdatedAt, &b.SyncedAt)
	return upsertBooking(ctx, s.db, b)
}

func upsertBooking(ctx context.Context, q dbtx, b *models.Booking) error {
	var vendor *string
	if len(b.Vendor) > 0 {
		v := string(b.Vendor)
		vendor = &v
	}
	_, err := q.ExecContext(ctx, `
INSERT INTO bookings (
  id, itinerary_id, type, cost, currency, status,
  confirmation_code, vendor, created_at, updated_at, synced_at
)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
  itinerary_id = excluded.itinerary_id,
  type = excluded.type,
  cost = excluded.cost,
  currency = excluded.currency,
  status = excluded.status,
  confirmation_code = excluded.confirmation_code,
  vendor = excluded.vendor,
  updated_at = excluded.updated_at,
  synced_at = excluded.synced_at
`, b.ID, b.ItineraryID, b.Type, b.Cost, b.Currency, b.Status,
		b.ConfirmationCode, vendor, b.CreatedAt.UTC(), b.UpdatedAt.UTC(), b.SyncedAt.UTC())
	return errors.Wrap(err, "upsert booking")
}

const bookingCols = `
  id, itinerary_id, type, cost, currency, status,
  confirmation_code, vendor, created_at, updated_at, synced_at`

func scanBooking(scan func(dest ...any) error) (*models.Booking, error) {
	var b models.Booking
	var code sql.NullString
	var vendor sql.NullString
	if err := scan(
		&b.ID, &b.ItineraryID, &b.Type, &b.Cost, &b.Currency, &b.Status,
		&code, &vendor, &b.CreatedAt, &b.UpdatedAt, &b.SyncedAt,
	); err != nil {
		return nil, err
	}
	if code.Valid {
		b.ConfirmationCode = &code.String
	}
	if vendor.Valid {
		b.Vendor = json.RawMessage(vendor.String)
	}
	return &b, nil
}

func (s *Storage) GetBooking(ctx context.Context, id string) (*models.Booking, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+bookingCols+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row.Scan)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "select booking")
	}
	return b, true, nil
}

// ListBookings возвращает все бронирования либо только бронирования одного
// маршрута, если itineraryID непустой (выборка по индексу).
func (s *Storage) ListBookings(ctx context.Context, itineraryID string) ([]*models.Booking, error) {
	query := `SELECT` + bookingCols + ` FROM bookings ORDER BY created_at ASC`
	args := []any{}
	if itineraryID != "" {
		query = `SELECT` + bookingCols + ` FROM bookings WHERE itinerary_id = ? ORDER BY created_at ASC`
		args = append(args, itineraryID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select bookings")
	}
	defer rows.Close()

	out := []*models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(err, "scan booking")
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ListPendingBookings — лента для наблюдателей статуса в агенте.
func (s *Storage) ListPendingBookings(ctx context.Context, limit int) ([]*models.Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT`+bookingCols+`
FROM bookings
WHERE status = ?
ORDER BY updated_at ASC
LIMIT ?
`, models.BookingStatusPending, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select pending bookings")
	}
	defer rows.Close()

	out := []*models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(err, "scan pending booking")
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) DeleteBooking(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	return errors.Wrap(err, "delete booking")
}

// UpdateBookingStatus применяет терминальный статус, пришедший от наблюдателя
// или из брокера. Отсутствующее бронирование не считается ошибкой: запись могла
// быть вычищена последним sync.
func (s *Storage) UpdateBookingStatus(ctx context.Context, id, status string, confirmationCode *string) error {
	now := time.Now().UTC()
	if confirmationCode != nil {
		_, err := s.db.ExecContext(ctx, `
UPDATE bookings SET status = ?, confirmation_code = ?, updated_at = ?, synced_at = ? WHERE id = ?`,
			status, *confirmationCode, now, now, id)
		return errors.Wrap(err, "update booking status")
	}
	_, err := s.db.ExecContext(ctx, `
UPDATE bookings SET status = ?, updated_at = ?, synced_at = ? WHERE id = ?`,
		status, now, now, id)
	return errors.Wrap(err, "update booking status")
}
