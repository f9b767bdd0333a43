package walletdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/HopNGo/TripWallet/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// EnqueueOp кладёт офлайн-мутацию в очередь отложенной записи.
// Если op.ID пуст, генерируется новый uuid.
func (s *Storage) EnqueueOp(ctx context.Context, op *models.SyncOp) error {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.Timestamp.IsZero() {
		op.Timestamp = time.Now().UTC()
	}
	var payload *string
	if len(op.Payload) > 0 {
		p := string(op.Payload)
		payload = &p
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sync_queue (id, op, tbl, record_id, payload, ts, retries)
VALUES (?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
  op = excluded.op,
  payload = excluded.payload,
  ts = excluded.ts,
  retries = excluded.retries
`, op.ID, op.Op, op.Table, op.RecordID, payload, op.Timestamp.UTC(), op.Retries)
	return errors.Wrap(err, "enqueue op")
}

// ListPendingOps возвращает очередь в порядке постановки.
func (s *Storage) ListPendingOps(ctx context.Context) ([]*models.SyncOp, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, op, tbl, record_id, payload, ts, retries
FROM sync_queue
ORDER BY ts ASC
`)
	if err != nil {
		return nil, errors.Wrap(err, "select sync queue")
	}
	defer rows.Close()

	out := []*models.SyncOp{}
	for rows.Next() {
		var op models.SyncOp
		var payload sql.NullString
		if err := rows.Scan(&op.ID, &op.Op, &op.Table, &op.RecordID, &payload, &op.Timestamp, &op.Retries); err != nil {
			return nil, errors.Wrap(err, "scan sync op")
		}
		if payload.Valid {
			op.Payload = json.RawMessage(payload.String)
		}
		out = append(out, &op)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) DeleteOp(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	return errors.Wrap(err, "delete op")
}

// BumpOpRetry увеличивает счётчик попыток и возвращает новое значение.
func (s *Storage) BumpOpRetry(ctx context.Context, id string) (int32, error) {
	_, err := s.db.ExecContext(ctx, `UPDATE sync_queue SET retries = retries + 1 WHERE id = ?`, id)
	if err != nil {
		return 0, errors.Wrap(err, "bump retry")
	}
	var n int32
	if err := s.db.QueryRowContext(ctx, `SELECT retries FROM sync_queue WHERE id = ?`, id).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "read retry")
	}
	return n, nil
}
