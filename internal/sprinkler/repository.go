package sprinkler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for sprinkler persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetDeviceConfig retrieves a device's watering configuration.
	// Returns ErrDeviceNotFound if no configuration exists.
	GetDeviceConfig(ctx context.Context, deviceID string) (*DeviceConfig, error)

	// UpsertDeviceConfig inserts or replaces a device's configuration.
	UpsertDeviceConfig(ctx context.Context, cfg *DeviceConfig) error

	// ListDeviceConfigs retrieves all known device configurations.
	ListDeviceConfigs(ctx context.Context) ([]DeviceConfig, error)

	// UpdateLastSeen records when a device was last heard from.
	// Returns ErrDeviceNotFound if the device is not configured.
	UpdateLastSeen(ctx context.Context, deviceID string, at time.Time) error

	// AppendLog appends one watering event record.
	AppendLog(ctx context.Context, entry *WateringLog) error

	// GetLogs retrieves the most recent watering events for a device,
	// newest first, up to limit.
	GetLogs(ctx context.Context, deviceID string, limit int) ([]WateringLog, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with the schema
// migrated.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetDeviceConfig retrieves a device's watering configuration.
func (r *SQLiteRepository) GetDeviceConfig(ctx context.Context, deviceID string) (*DeviceConfig, error) {
	query := `
		SELECT device_id, cron, duration_ms, last_seen, created_at, updated_at
		FROM device_config
		WHERE device_id = ?`

	cfg, err := scanDeviceConfig(r.db.QueryRowContext(ctx, query, deviceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device config: %w", err)
	}
	return cfg, nil
}

// UpsertDeviceConfig inserts or replaces a device's configuration.
func (r *SQLiteRepository) UpsertDeviceConfig(ctx context.Context, cfg *DeviceConfig) error {
	now := time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	query := `
		INSERT INTO device_config (device_id, cron, duration_ms, last_seen, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			cron = excluded.cron,
			duration_ms = excluded.duration_ms,
			updated_at = excluded.updated_at`

	var lastSeen any
	if cfg.LastSeen != nil {
		lastSeen = cfg.LastSeen.UTC().Format(time.RFC3339)
	}

	_, err := r.db.ExecContext(ctx, query,
		cfg.DeviceID,
		cfg.Cron,
		cfg.DurationMs,
		lastSeen,
		cfg.CreatedAt.Format(time.RFC3339),
		cfg.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting device config: %w", err)
	}
	return nil
}

// ListDeviceConfigs retrieves all known device configurations.
func (r *SQLiteRepository) ListDeviceConfigs(ctx context.Context) ([]DeviceConfig, error) {
	query := `
		SELECT device_id, cron, duration_ms, last_seen, created_at, updated_at
		FROM device_config
		ORDER BY device_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing device configs: %w", err)
	}
	defer rows.Close()

	var configs []DeviceConfig
	for rows.Next() {
		cfg, err := scanDeviceConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device config: %w", err)
		}
		configs = append(configs, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device configs: %w", err)
	}
	return configs, nil
}

// UpdateLastSeen records when a device was last heard from.
func (r *SQLiteRepository) UpdateLastSeen(ctx context.Context, deviceID string, at time.Time) error {
	query := `
		UPDATE device_config
		SET last_seen = ?, updated_at = ?
		WHERE device_id = ?`

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx, query, at.UTC().Format(time.RFC3339), now, deviceID)
	if err != nil {
		return fmt.Errorf("updating last seen: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking last seen update: %w", err)
	}
	if affected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// AppendLog appends one watering event record.
func (r *SQLiteRepository) AppendLog(ctx context.Context, entry *WateringLog) error {
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO watering_logs (device_id, duration_ms, enabled, automated, reason, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		entry.DeviceID,
		entry.DurationMs,
		boolToInt(entry.Enabled),
		boolToInt(entry.Automated),
		entry.Reason,
		entry.RecordedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("appending watering log: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

// GetLogs retrieves the most recent watering events for a device.
func (r *SQLiteRepository) GetLogs(ctx context.Context, deviceID string, limit int) ([]WateringLog, error) {
	query := `
		SELECT id, device_id, duration_ms, enabled, automated, reason, recorded_at
		FROM watering_logs
		WHERE device_id = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying watering logs: %w", err)
	}
	defer rows.Close()

	var logs []WateringLog
	for rows.Next() {
		var (
			entry      WateringLog
			enabled    int
			automated  int
			recordedAt string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.DeviceID,
			&entry.DurationMs,
			&enabled,
			&automated,
			&entry.Reason,
			&recordedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning watering log: %w", err)
		}
		entry.Enabled = enabled != 0
		entry.Automated = automated != 0
		entry.RecordedAt, _ = time.Parse(time.RFC3339, recordedAt) //nolint:errcheck // Format is controlled
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating watering logs: %w", err)
	}
	return logs, nil
}

// rowScanner abstracts sql.Row and sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDeviceConfig scans one device_config row.
func scanDeviceConfig(row rowScanner) (*DeviceConfig, error) {
	var (
		cfg       DeviceConfig
		lastSeen  sql.NullString
		createdAt string
		updatedAt string
	)

	if err := row.Scan(
		&cfg.DeviceID,
		&cfg.Cron,
		&cfg.DurationMs,
		&lastSeen,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if lastSeen.Valid {
		if t, err := time.Parse(time.RFC3339, lastSeen.String); err == nil {
			cfg.LastSeen = &t
		}
	}
	cfg.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	cfg.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled
	return &cfg, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
