package storage

import (
	"context"
	"database/sql"
	"errors"
	"facilitywatch/internal/models"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS favorites (
    user_id       TEXT NOT NULL,
    facility_id   TEXT NOT NULL,
    facility_name TEXT NOT NULL DEFAULT '',
    created_at    TEXT NOT NULL,
    PRIMARY KEY (user_id, facility_id)
);

CREATE TABLE IF NOT EXISTS alerts (
    id               TEXT PRIMARY KEY,
    user_id          TEXT    NOT NULL,
    facility_id      TEXT    NOT NULL,
    date             TEXT    NOT NULL,
    min_available    INTEGER NOT NULL,
    channel          TEXT    NOT NULL,
    target           TEXT    NOT NULL,
    created_at       TEXT    NOT NULL,
    last_notified_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_alerts_user_id ON alerts (user_id);
`

// Fixed-width UTC timestamps so ORDER BY on the text column is chronological.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStorage implements the Storage interface on a single SQLite file using
// the pure-Go modernc driver.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (or creates) the database file and ensures the schema exists.
func NewSQLiteStorage(config Config) (*SQLiteStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Favorites returns a user's favorites, most recent first
func (ss *SQLiteStorage) Favorites(ctx context.Context, userID string) ([]*models.Favorite, error) {
	rows, err := ss.db.QueryContext(ctx,
		`SELECT user_id, facility_id, facility_name, created_at
		   FROM favorites WHERE user_id = ?
		  ORDER BY created_at DESC, facility_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get favorites: %w", err)
	}
	defer rows.Close()

	favs := make([]*models.Favorite, 0)
	for rows.Next() {
		var fav models.Favorite
		var createdAt string
		if err := rows.Scan(&fav.UserID, &fav.FacilityID, &fav.FacilityName, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		if fav.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("invalid created_at for favorite %s: %w", fav.FacilityID, err)
		}
		favs = append(favs, &fav)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate favorites: %w", err)
	}
	return favs, nil
}

// SaveFavorite stores a new favorite
func (ss *SQLiteStorage) SaveFavorite(ctx context.Context, fav *models.Favorite) error {
	res, err := ss.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO favorites (user_id, facility_id, facility_name, created_at)
		 VALUES (?, ?, ?, ?)`,
		fav.UserID, fav.FacilityID, fav.FacilityName, formatTime(fav.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save favorite: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("favorite %s: %w", fav.FacilityID, ErrAlreadyExists)
	}
	return nil
}

// DeleteFavorite removes a favorite
func (ss *SQLiteStorage) DeleteFavorite(ctx context.Context, userID, facilityID string) error {
	res, err := ss.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = ? AND facility_id = ?`, userID, facilityID)
	if err != nil {
		return fmt.Errorf("failed to delete favorite %s: %w", facilityID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("favorite %s: %w", facilityID, ErrNotFound)
	}
	return nil
}

// Alerts returns a user's alerts, oldest first
func (ss *SQLiteStorage) Alerts(ctx context.Context, userID string) ([]*models.Alert, error) {
	return ss.queryAlerts(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE user_id = ? ORDER BY created_at, id`, userID)
}

// AllAlerts returns every alert
func (ss *SQLiteStorage) AllAlerts(ctx context.Context) ([]*models.Alert, error) {
	return ss.queryAlerts(ctx, `SELECT `+alertColumns+` FROM alerts ORDER BY created_at, id`)
}

// GetAlert retrieves an alert by its ID
func (ss *SQLiteStorage) GetAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	row := ss.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, alertID)
	alert, err := scanSQLiteAlert(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("alert %s: %w", alertID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return alert, nil
}

// SaveAlert stores or updates an alert
func (ss *SQLiteStorage) SaveAlert(ctx context.Context, alert *models.Alert) error {
	var lastNotified sql.NullString
	if alert.LastNotifiedAt != nil {
		lastNotified = sql.NullString{String: formatTime(*alert.LastNotifiedAt), Valid: true}
	}

	_, err := ss.db.ExecContext(ctx,
		`INSERT INTO alerts (`+alertColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     facility_id = excluded.facility_id,
		     date = excluded.date,
		     min_available = excluded.min_available,
		     channel = excluded.channel,
		     target = excluded.target,
		     last_notified_at = excluded.last_notified_at`,
		alert.ID, alert.UserID, alert.FacilityID, alert.Date, alert.MinAvailable,
		alert.Channel, alert.Target, formatTime(alert.CreatedAt), lastNotified)
	if err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

// DeleteAlert removes an alert by its ID
func (ss *SQLiteStorage) DeleteAlert(ctx context.Context, alertID string) error {
	res, err := ss.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ?`, alertID)
	if err != nil {
		return fmt.Errorf("failed to delete alert %s: %w", alertID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("alert %s: %w", alertID, ErrNotFound)
	}
	return nil
}

// Ping verifies the database is reachable
func (ss *SQLiteStorage) Ping(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

// Close closes the storage connection
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}

func (ss *SQLiteStorage) queryAlerts(ctx context.Context, query string, args ...any) ([]*models.Alert, error) {
	rows, err := ss.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]*models.Alert, 0)
	for rows.Next() {
		alert, err := scanSQLiteAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteAlert(row rowScanner) (*models.Alert, error) {
	var alert models.Alert
	var createdAt string
	var lastNotified sql.NullString
	err := row.Scan(&alert.ID, &alert.UserID, &alert.FacilityID, &alert.Date, &alert.MinAvailable,
		&alert.Channel, &alert.Target, &createdAt, &lastNotified)
	if err != nil {
		return nil, err
	}

	if alert.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at for alert %s: %w", alert.ID, err)
	}
	if lastNotified.Valid {
		t, err := time.Parse(sqliteTimeLayout, lastNotified.String)
		if err != nil {
			return nil, fmt.Errorf("invalid last_notified_at for alert %s: %w", alert.ID, err)
		}
		alert.LastNotifiedAt = &t
	}
	return &alert, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}
