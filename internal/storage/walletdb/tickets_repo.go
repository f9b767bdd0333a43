package walletdb

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/HopNGo/TripWallet/internal/models"
	"github.com/pkg/errors"
)

func (s *Storage) SaveTicket(ctx context.Context, t *models.Ticket) error {
	stampWrite(&t.CreatedAt, &t.UpdatedAt, &t.SyncedAt)
	return upsertTicket(ctx, s.db, t)
}

func upsertTicket(ctx context.Context, q dbtx, t *models.Ticket) error {
	var meta *string
	if len(t.Metadata) > 0 {
		m := string(t.Metadata)
		meta = &m
	}
	_, err := q.ExecContext(ctx, `
INSERT INTO tickets (
  id, booking_id, ticket_number, qr_code, passenger_name, seat, gate,
  departure_time, arrival_time, status, metadata, created_at, updated_at, synced_at
)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
  booking_id = excluded.booking_id,
  ticket_number = excluded.ticket_number,
  qr_code = excluded.qr_code,
  passenger_name = excluded.passenger_name,
  seat = excluded.seat,
  gate = excluded.gate,
  departure_time = excluded.departure_time,
  arrival_time = excluded.arrival_time,
  status = excluded.status,
  metadata = excluded.metadata,
  updated_at = excluded.updated_at,
  synced_at = excluded.synced_at
`, t.ID, t.BookingID, t.TicketNumber, t.QRCode, t.PassengerName, t.Seat, t.Gate,
		t.DepartureTime.UTC(), t.ArrivalTime.UTC(), t.Status, meta,
		t.CreatedAt.UTC(), t.UpdatedAt.UTC(), t.SyncedAt.UTC())
	return errors.Wrap(err, "upsert ticket")
}

const ticketCols = `
  id, booking_id, ticket_number, qr_code, passenger_name, seat, gate,
  departure_time, arrival_time, status, metadata, created_at, updated_at, synced_at`

func scanTicket(scan func(dest ...any) error) (*models.Ticket, error) {
	var t models.Ticket
	var qr, seat, gate, meta sql.NullString
	if err := scan(
		&t.ID, &t.BookingID, &t.TicketNumber, &qr, &t.PassengerName, &seat, &gate,
		&t.DepartureTime, &t.ArrivalTime, &t.Status, &meta, &t.CreatedAt, &t.UpdatedAt, &t.SyncedAt,
	); err != nil {
		return nil, err
	}
	if qr.Valid {
		t.QRCode = &qr.String
	}
	if seat.Valid {
		t.Seat = &seat.String
	}
	if gate.Valid {
		t.Gate = &gate.String
	}
	if meta.Valid {
		t.Metadata = json.RawMessage(meta.String)
	}
	return &t, nil
}

func (s *Storage) GetTicket(ctx context.Context, id string) (*models.Ticket, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+ticketCols+` FROM tickets WHERE id = ?`, id)
	t, err := scanTicket(row.Scan)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "select ticket")
	}
	return t, true, nil
}

// ListTickets возвращает все билеты либо билеты одного бронирования,
// если bookingID непустой.
func (s *Storage) ListTickets(ctx context.Context, bookingID string) ([]*models.Ticket, error) {
	query := `SELECT` + ticketCols + ` FROM tickets ORDER BY departure_time ASC`
	args := []any{}
	if bookingID != "" {
		query = `SELECT` + ticketCols + ` FROM tickets WHERE booking_id = ? ORDER BY departure_time ASC`
		args = append(args, bookingID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select tickets")
	}
	defer rows.Close()

	out := []*models.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(err, "scan ticket")
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) DeleteTicket(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tickets WHERE id = ?`, id)
	return errors.Wrap(err, "delete ticket")
}
