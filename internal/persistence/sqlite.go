package persistence

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kartikbazzad/reactorcore/internal/errs"
	"github.com/kartikbazzad/reactorcore/internal/model"
)

// SQLiteDriver persists commit records to a pure-Go, CGo-free SQLite
// database, one row per commit, each append wrapped in its own transaction
// so a crash mid-write leaves no partial row: a record is either whole or
// absent, guaranteed here by SQL transaction atomicity.
type SQLiteDriver struct {
	db *sql.DB
}

// OpenSQLiteDriver opens (creating if necessary) a commit log at path.
func OpenSQLiteDriver(path string) (*SQLiteDriver, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &errs.PersistenceUnavailable{Cause: err}
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS commits (
		ts INTEGER PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, &errs.PersistenceUnavailable{Cause: err}
	}
	return &SQLiteDriver{db: db}, nil
}

func (d *SQLiteDriver) Append(ctx context.Context, ts model.Ts, writes *model.WriteSet) error {
	payload, err := encodeWriteSet(ts, writes)
	if err != nil {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return &errs.PersistenceUnavailable{Cause: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO commits (ts, payload) VALUES (?, ?)`, ts, payload); err != nil {
		return &errs.PersistenceUnavailable{Cause: err}
	}
	if err := tx.Commit(); err != nil {
		return &errs.PersistenceUnavailable{Cause: err}
	}
	return nil
}

func (d *SQLiteDriver) LoadLatest(ctx context.Context) (model.Ts, error) {
	var ts sql.NullInt64
	err := d.db.QueryRowContext(ctx, `SELECT MAX(ts) FROM commits`).Scan(&ts)
	if err != nil {
		return 0, &errs.PersistenceUnavailable{Cause: err}
	}
	if !ts.Valid {
		return 0, nil
	}
	return model.Ts(ts.Int64), nil
}

func (d *SQLiteDriver) Scan(ctx context.Context, from model.Ts, fn func(model.Ts, *model.WriteSet) bool) error {
	rows, err := d.db.QueryContext(ctx, `SELECT ts, payload FROM commits WHERE ts > ? ORDER BY ts ASC`, from)
	if err != nil {
		return &errs.PersistenceUnavailable{Cause: err}
	}
	defer rows.Close()

	for rows.Next() {
		var ts model.Ts
		var payload []byte
		if err := rows.Scan(&ts, &payload); err != nil {
			return &errs.PersistenceUnavailable{Cause: err}
		}
		decodedTs, ws, err := decodeWriteSet(payload)
		if err != nil {
			return fmt.Errorf("persistence: decode record at ts=%d: %w", ts, err)
		}
		if !fn(decodedTs, ws) {
			return nil
		}
	}
	return rows.Err()
}

func (d *SQLiteDriver) Close() error {
	return d.db.Close()
}
