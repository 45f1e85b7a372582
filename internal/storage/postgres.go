package storage

import (
	"context"
	"errors"
	"facilitywatch/internal/models"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS favorites (
    user_id       TEXT        NOT NULL,
    facility_id   TEXT        NOT NULL,
    facility_name TEXT        NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (user_id, facility_id)
);

CREATE TABLE IF NOT EXISTS alerts (
    id               TEXT PRIMARY KEY,
    user_id          TEXT        NOT NULL,
    facility_id      TEXT        NOT NULL,
    date             TEXT        NOT NULL,
    min_available    INTEGER     NOT NULL,
    channel          TEXT        NOT NULL,
    target           TEXT        NOT NULL,
    created_at       TIMESTAMPTZ NOT NULL,
    last_notified_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_alerts_user_id ON alerts (user_id);
`

const alertColumns = `id, user_id, facility_id, date, min_available, channel, target, created_at, last_notified_at`

// PostgresStorage implements the Storage interface using PostgreSQL through a
// pgx connection pool.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a new PostgreSQL storage instance and ensures
// the schema exists.
func NewPostgresStorage(config Config) (*PostgresStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL storage")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if config.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(min(config.MaxIdleConns, int(poolConfig.MaxConns)))
	}
	if config.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// Favorites returns a user's favorites, most recent first.
func (ps *PostgresStorage) Favorites(ctx context.Context, userID string) ([]*models.Favorite, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT user_id, facility_id, facility_name, created_at
		   FROM favorites WHERE user_id = $1
		  ORDER BY created_at DESC, facility_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get favorites: %w", err)
	}
	defer rows.Close()

	favs := make([]*models.Favorite, 0)
	for rows.Next() {
		var fav models.Favorite
		if err := rows.Scan(&fav.UserID, &fav.FacilityID, &fav.FacilityName, &fav.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		favs = append(favs, &fav)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate favorites: %w", err)
	}
	return favs, nil
}

// SaveFavorite stores a new favorite.
func (ps *PostgresStorage) SaveFavorite(ctx context.Context, fav *models.Favorite) error {
	tag, err := ps.pool.Exec(ctx,
		`INSERT INTO favorites (user_id, facility_id, facility_name, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, facility_id) DO NOTHING`,
		fav.UserID, fav.FacilityID, fav.FacilityName, fav.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save favorite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("favorite %s: %w", fav.FacilityID, ErrAlreadyExists)
	}
	return nil
}

// DeleteFavorite removes a favorite.
func (ps *PostgresStorage) DeleteFavorite(ctx context.Context, userID, facilityID string) error {
	tag, err := ps.pool.Exec(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND facility_id = $2`, userID, facilityID)
	if err != nil {
		return fmt.Errorf("failed to delete favorite %s: %w", facilityID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("favorite %s: %w", facilityID, ErrNotFound)
	}
	return nil
}

// Alerts returns a user's alerts, oldest first.
func (ps *PostgresStorage) Alerts(ctx context.Context, userID string) ([]*models.Alert, error) {
	return ps.queryAlerts(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE user_id = $1 ORDER BY created_at, id`, userID)
}

// AllAlerts returns every alert.
func (ps *PostgresStorage) AllAlerts(ctx context.Context) ([]*models.Alert, error) {
	return ps.queryAlerts(ctx, `SELECT `+alertColumns+` FROM alerts ORDER BY created_at, id`)
}

// GetAlert retrieves an alert by its ID.
func (ps *PostgresStorage) GetAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	row := ps.pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, alertID)
	alert, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("alert %s: %w", alertID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return alert, nil
}

// SaveAlert stores or updates an alert (upsert pattern).
func (ps *PostgresStorage) SaveAlert(ctx context.Context, alert *models.Alert) error {
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO alerts (`+alertColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		     facility_id = EXCLUDED.facility_id,
		     date = EXCLUDED.date,
		     min_available = EXCLUDED.min_available,
		     channel = EXCLUDED.channel,
		     target = EXCLUDED.target,
		     last_notified_at = EXCLUDED.last_notified_at`,
		alert.ID, alert.UserID, alert.FacilityID, alert.Date, alert.MinAvailable,
		alert.Channel, alert.Target, alert.CreatedAt, alert.LastNotifiedAt)
	if err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

// DeleteAlert removes an alert by its ID.
func (ps *PostgresStorage) DeleteAlert(ctx context.Context, alertID string) error {
	tag, err := ps.pool.Exec(ctx, `DELETE FROM alerts WHERE id = $1`, alertID)
	if err != nil {
		return fmt.Errorf("failed to delete alert %s: %w", alertID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alert %s: %w", alertID, ErrNotFound)
	}
	return nil
}

// Ping verifies the database connection.
func (ps *PostgresStorage) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close closes the connection pool.
func (ps *PostgresStorage) Close() error {
	ps.pool.Close()
	return nil
}

func (ps *PostgresStorage) queryAlerts(ctx context.Context, query string, args ...any) ([]*models.Alert, error) {
	rows, err := ps.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]*models.Alert, 0)
	for rows.Next() {
		alert, err := scanAlert(rows)
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

func scanAlert(row pgx.Row) (*models.Alert, error) {
	var alert models.Alert
	err := row.Scan(&alert.ID, &alert.UserID, &alert.FacilityID, &alert.Date, &alert.MinAvailable,
		&alert.Channel, &alert.Target, &alert.CreatedAt, &alert.LastNotifiedAt)
	if err != nil {
		return nil, err
	}
	return &alert, nil
}
