package recorder

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists the operation journal to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *logrus.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log *logrus.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so auditors can read while the daemon writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r, err := NewSQLiteRecorderFromDB(db, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	r.log.WithField("path", dbPath).Info("sqlite recorder opened")
	return r, nil
}

// NewSQLiteRecorderFromDB wraps an open database and runs migrations.
func NewSQLiteRecorderFromDB(db *sql.DB, log *logrus.Logger) (*SQLiteRecorder, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS vault_events (
			id          TEXT PRIMARY KEY,
			timestamp   INTEGER NOT NULL,
			asset       TEXT NOT NULL,
			event_type  TEXT NOT NULL,
			actor       TEXT,
			amount      INTEGER,
			shares      INTEGER,
			rate        INTEGER,
			request_id  INTEGER,
			note        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_asset_ts ON vault_events(asset, timestamp)`,

		`CREATE TABLE IF NOT EXISTS rate_changes (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp    INTEGER NOT NULL,
			asset        TEXT NOT NULL,
			old_rate     INTEGER,
			new_rate     INTEGER,
			proposed     INTEGER,
			gross_yield  INTEGER,
			fee          INTEGER,
			deferred     BOOLEAN,
			increase_bps INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rate_asset_ts ON rate_changes(asset, timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordEvent(evt *VaultEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO vault_events
		(id, timestamp, asset, event_type, actor, amount, shares, rate, request_id, note)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		evt.ID, evt.Timestamp.Unix(), evt.Asset, string(evt.Type), evt.Actor,
		evt.Amount, evt.Shares, evt.Rate, evt.RequestID, evt.Note,
	)
	return err
}

func (r *SQLiteRecorder) RecordRateChange(rc *RateChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO rate_changes
		(timestamp, asset, old_rate, new_rate, proposed, gross_yield, fee, deferred, increase_bps)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		rc.Timestamp.Unix(), rc.Asset, rc.OldRate, rc.NewRate, rc.Proposed,
		rc.GrossYield, rc.Fee, rc.Deferred, rc.IncreaseBps,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}
