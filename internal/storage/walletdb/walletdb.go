package walletdb

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	_ "github.com/mattn/go-sqlite3"
)

// Storage — локальное хранилище кошелька на устройстве (SQLite, один файл).
// Открытие идемпотентно: схема инициализируется при первом открытии.
type Storage struct {
	db *sql.DB
}

func New(path string) (*Storage, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// SQLite плохо переносит конкурентные writer-соединения.
	db.SetMaxOpenConns(1)

	s := &Storage{db: db}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
