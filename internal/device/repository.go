package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
type Repository interface {
	Create(ctx context.Context, d *Device) error
	GetByID(ctx context.Context, id string) (*Device, error)
	GetByExternalID(ctx context.Context, externalID string) (*Device, error)
	List(ctx context.Context) ([]Device, error)
	ListByStation(ctx context.Context, stationID string) ([]Device, error)
	Update(ctx context.Context, d *Device) error
	UpdateStatus(ctx context.Context, id string, status string) error
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed device repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, external_device_id, station_id, manufacturer, model,
	serial_number, status, assigned_patient_id, created_at, updated_at`

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	if d.ExternalDeviceID == "" {
		return ErrMissingExternalID
	}
	if d.Status == "" {
		d.Status = StatusActive
	}
	if !ValidStatus(d.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, d.Status)
	}
	const query = `INSERT INTO devices (id, external_device_id, station_id,
		manufacturer, model, serial_number, status, assigned_patient_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.ExternalDeviceID, nullStr(d.StationID),
		d.Manufacturer, d.Model, d.SerialNumber, d.Status, nullStr(d.AssignedPatientID))
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateExternalID
		}
		return fmt.Errorf("inserting device %s: %w", d.ID, err)
	}
	return nil
}

// GetByID returns a single device by internal ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`
	return scanDevice(r.db.QueryRowContext(ctx, query, id))
}

// GetByExternalID returns a single device by its ward network identifier.
func (r *SQLiteRepository) GetByExternalID(ctx context.Context, externalID string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE external_device_id = ?`
	return scanDevice(r.db.QueryRowContext(ctx, query, externalID))
}

// List returns all devices ordered by external_device_id.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY external_device_id`
	return r.queryDevices(ctx, query)
}

// ListByStation returns devices assigned to a specific station.
func (r *SQLiteRepository) ListByStation(ctx context.Context, stationID string) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE station_id = ? ORDER BY external_device_id`
	return r.queryDevices(ctx, query, stationID)
}

// Update updates an existing device record.
func (r *SQLiteRepository) Update(ctx context.Context, d *Device) error {
	if !ValidStatus(d.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, d.Status)
	}
	const query = `UPDATE devices SET external_device_id = ?, station_id = ?,
		manufacturer = ?, model = ?, serial_number = ?, status = ?, assigned_patient_id = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		d.ExternalDeviceID, nullStr(d.StationID),
		d.Manufacturer, d.Model, d.SerialNumber, d.Status, nullStr(d.AssignedPatientID),
		d.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateExternalID
		}
		return fmt.Errorf("updating device %s: %w", d.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// UpdateStatus changes only the status of a device.
func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id string, status string) error {
	if !ValidStatus(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	const query = `UPDATE devices SET status = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("updating device %s status: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// Delete removes a single device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// queryDevices executes a query and returns a slice of Device.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDeviceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device rows: %w", err)
	}
	return devices, nil
}

// scanDevice scans a single row into a Device (for QueryRow).
func scanDevice(row *sql.Row) (*Device, error) {
	var d Device
	var stationID, manufacturer, model, serialNumber, patientID sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&d.ID, &d.ExternalDeviceID, &stationID, &manufacturer, &model,
		&serialNumber, &d.Status, &patientID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("scanning device: %w", err)
	}
	applyDeviceNullables(&d, stationID, manufacturer, model, serialNumber, patientID)
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return &d, nil
}

// scanDeviceRow scans a device from a Rows cursor.
func scanDeviceRow(rows *sql.Rows) (*Device, error) {
	var d Device
	var stationID, manufacturer, model, serialNumber, patientID sql.NullString
	var createdAt, updatedAt string

	err := rows.Scan(&d.ID, &d.ExternalDeviceID, &stationID, &manufacturer, &model,
		&serialNumber, &d.Status, &patientID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	applyDeviceNullables(&d, stationID, manufacturer, model, serialNumber, patientID)
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return &d, nil
}

func applyDeviceNullables(d *Device, stationID, manufacturer, model, serialNumber, patientID sql.NullString) {
	if stationID.Valid {
		d.StationID = &stationID.String
	}
	if patientID.Valid {
		d.AssignedPatientID = &patientID.String
	}
	d.Manufacturer = manufacturer.String
	d.Model = model.String
	d.SerialNumber = serialNumber.String
}

// nullStr converts a *string to a sql.NullString for nullable columns.
func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// parseTime parses an ISO 8601 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04:05Z", s)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}

// isUniqueConstraintError checks for SQLite unique constraint violations.
func isUniqueConstraintError(err error) bool {
	return err != nil && !errors.Is(err, sql.ErrNoRows) &&
		(strings.Contains(err.Error(), "UNIQUE constraint failed") ||
			strings.Contains(err.Error(), "unique constraint"))
}
