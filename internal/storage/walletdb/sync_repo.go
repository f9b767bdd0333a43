package walletdb

import (
	"context"
	"database/sql"
	"time"

	"github.com/HopNGo/TripWallet/internal/models"
	"github.com/pkg/errors"
)

// ReplaceAll — транзакция полного обновления из удалённого API: три
// синхронизируемые коллекции очищаются и заполняются заново, каждой записи
// проставляется synced_at временем начала sync. До commit читатели видят
// прежний снимок; sync_queue транзакция не трогает.
func (s *Storage) ReplaceAll(ctx context.Context, itins []*models.Itinerary, bookings []*models.Booking, tickets []*models.Ticket, syncedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	for _, tbl := range []string{"itineraries", "bookings", "tickets"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+tbl); err != nil {
			return errors.Wrap(err, "clear "+tbl)
		}
	}

	syncedAt = syncedAt.UTC()
	for _, it := range itins {
		it.SyncedAt = syncedAt
		if it.CreatedAt.IsZero() {
			it.CreatedAt = syncedAt
		}
		if it.UpdatedAt.IsZero() {
			it.UpdatedAt = syncedAt
		}
		if err := upsertItinerary(ctx, tx, it); err != nil {
			return err
		}
	}
	for _, b := range bookings {
		b.SyncedAt = syncedAt
		if b.CreatedAt.IsZero() {
			b.CreatedAt = syncedAt
		}
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = syncedAt
		}
		if err := upsertBooking(ctx, tx, b); err != nil {
			return err
		}
	}
	for _, t := range tickets {
		t.SyncedAt = syncedAt
		if t.CreatedAt.IsZero() {
			t.CreatedAt = syncedAt
		}
		if t.UpdatedAt.IsZero() {
			t.UpdatedAt = syncedAt
		}
		if err := upsertTicket(ctx, tx, t); err != nil {
			return err
		}
	}

	return errors.Wrap(tx.Commit(), "commit tx")
}

// ClearAll опустошает все четыре коллекции одной транзакцией.
func (s *Storage) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	for _, tbl := range []string{"itineraries", "bookings", "tickets", "sync_queue"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+tbl); err != nil {
			return errors.Wrap(err, "clear "+tbl)
		}
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}

func (s *Storage) Stats(ctx context.Context) (models.WalletStats, error) {
	var st models.WalletStats

	counts := []struct {
		tbl  string
		dest *int
	}{
		{"itineraries", &st.Itineraries},
		{"bookings", &st.Bookings},
		{"tickets", &st.Tickets},
		{"sync_queue", &st.PendingOps},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+c.tbl).Scan(c.dest); err != nil {
			return models.WalletStats{}, errors.Wrap(err, "count "+c.tbl)
		}
	}

	// MAX() по timestamp-колонке теряет decltype и приезжает строкой,
	// поэтому берём последний synced_at обычной выборкой по каждой таблице.
	for _, tbl := range []string{"itineraries", "bookings", "tickets"} {
		var t time.Time
		err := s.db.QueryRowContext(ctx, `SELECT synced_at FROM `+tbl+` ORDER BY synced_at DESC LIMIT 1`).Scan(&t)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return models.WalletStats{}, errors.Wrap(err, "last synced_at "+tbl)
		}
		t = t.UTC()
		if st.LastSyncedAt == nil || t.After(*st.LastSyncedAt) {
			st.LastSyncedAt = &t
		}
	}
	return st, nil
}
