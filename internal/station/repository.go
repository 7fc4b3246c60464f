package station

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for treatment area and station persistence.
type Repository interface {
	CreateArea(ctx context.Context, area *TreatmentArea) error
	ListAreas(ctx context.Context) ([]TreatmentArea, error)
	GetArea(ctx context.Context, id string) (*TreatmentArea, error)
	UpdateArea(ctx context.Context, area *TreatmentArea) error
	DeleteArea(ctx context.Context, id string) error

	CreateStation(ctx context.Context, st *Station) error
	ListStations(ctx context.Context) ([]Station, error)
	ListStationsByArea(ctx context.Context, areaID string) ([]Station, error)
	GetStation(ctx context.Context, id string) (*Station, error)
	UpdateStation(ctx context.Context, st *Station) error
	UpdateStationStatus(ctx context.Context, id string, status string) error
	DeleteStation(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed station repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateArea inserts a new treatment area.
func (r *SQLiteRepository) CreateArea(ctx context.Context, area *TreatmentArea) error {
	if !ValidAreaType(area.AreaType) {
		return fmt.Errorf("%w: %q", ErrInvalidAreaType, area.AreaType)
	}
	const query = `INSERT INTO treatment_areas (id, name, area_type, capacity,
		parent_area_id, description, display_order, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		area.ID, area.Name, area.AreaType, area.Capacity,
		nullStr(area.ParentAreaID), area.Description, area.DisplayOrder, boolToInt(area.Active))
	if err != nil {
		return fmt.Errorf("inserting treatment area %s: %w", area.ID, err)
	}
	return nil
}

// ListAreas returns all treatment areas ordered by display_order then name.
func (r *SQLiteRepository) ListAreas(ctx context.Context) ([]TreatmentArea, error) {
	const query = `SELECT id, name, area_type, capacity, parent_area_id,
		description, display_order, active, created_at, updated_at
		FROM treatment_areas ORDER BY display_order, name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying treatment areas: %w", err)
	}
	defer rows.Close()

	var areas []TreatmentArea
	for rows.Next() {
		a, err := scanAreaRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning treatment area row: %w", err)
		}
		areas = append(areas, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating treatment area rows: %w", err)
	}
	return areas, nil
}

// GetArea returns a single treatment area by ID.
func (r *SQLiteRepository) GetArea(ctx context.Context, id string) (*TreatmentArea, error) {
	const query = `SELECT id, name, area_type, capacity, parent_area_id,
		description, display_order, active, created_at, updated_at
		FROM treatment_areas WHERE id = ?`
	return scanArea(r.db.QueryRowContext(ctx, query, id))
}

// UpdateArea updates an existing treatment area record.
func (r *SQLiteRepository) UpdateArea(ctx context.Context, area *TreatmentArea) error {
	if !ValidAreaType(area.AreaType) {
		return fmt.Errorf("%w: %q", ErrInvalidAreaType, area.AreaType)
	}
	const query = `UPDATE treatment_areas SET name = ?, area_type = ?, capacity = ?,
		parent_area_id = ?, description = ?, display_order = ?, active = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		area.Name, area.AreaType, area.Capacity,
		nullStr(area.ParentAreaID), area.Description, area.DisplayOrder, boolToInt(area.Active),
		area.ID)
	if err != nil {
		return fmt.Errorf("updating treatment area %s: %w", area.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrAreaNotFound
	}
	return nil
}

// DeleteArea removes a single treatment area by ID.
// Returns ErrAreaHasStations if stations still reference this area.
func (r *SQLiteRepository) DeleteArea(ctx context.Context, id string) error {
	var stationCount int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM stations WHERE area_id = ?", id).Scan(&stationCount); err != nil {
		return fmt.Errorf("counting stations for area %s: %w", id, err)
	}
	if stationCount > 0 {
		return ErrAreaHasStations
	}

	result, err := r.db.ExecContext(ctx, "DELETE FROM treatment_areas WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting treatment area %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrAreaNotFound
	}
	return nil
}

// CreateStation inserts a new station.
func (r *SQLiteRepository) CreateStation(ctx context.Context, st *Station) error {
	if st.Status == "" {
		st.Status = StatusAvailable
	}
	if !ValidStatus(st.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, st.Status)
	}
	const query = `INSERT INTO stations (id, station_number, status, area_id,
		current_patient_id, current_treatment_id, physical_location, display_order, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		st.ID, st.StationNumber, st.Status, st.AreaID,
		nullStr(st.CurrentPatientID), nullStr(st.CurrentTreatmentID),
		st.PhysicalLocation, st.DisplayOrder, st.Notes)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateStationNumber
		}
		return fmt.Errorf("inserting station %s: %w", st.ID, err)
	}
	return nil
}

// ListStations returns all stations ordered by display_order then station_number.
func (r *SQLiteRepository) ListStations(ctx context.Context) ([]Station, error) {
	const query = `SELECT id, station_number, status, area_id, current_patient_id,
		current_treatment_id, physical_location, display_order, notes, created_at, updated_at
		FROM stations ORDER BY display_order, station_number`
	return r.queryStations(ctx, query)
}

// ListStationsByArea returns stations for a specific treatment area.
func (r *SQLiteRepository) ListStationsByArea(ctx context.Context, areaID string) ([]Station, error) {
	const query = `SELECT id, station_number, status, area_id, current_patient_id,
		current_treatment_id, physical_location, display_order, notes, created_at, updated_at
		FROM stations WHERE area_id = ? ORDER BY display_order, station_number`
	return r.queryStations(ctx, query, areaID)
}

// GetStation returns a single station by ID.
func (r *SQLiteRepository) GetStation(ctx context.Context, id string) (*Station, error) {
	const query = `SELECT id, station_number, status, area_id, current_patient_id,
		current_treatment_id, physical_location, display_order, notes, created_at, updated_at
		FROM stations WHERE id = ?`
	return scanStation(r.db.QueryRowContext(ctx, query, id))
}

// UpdateStation updates an existing station record.
func (r *SQLiteRepository) UpdateStation(ctx context.Context, st *Station) error {
	if !ValidStatus(st.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, st.Status)
	}
	const query = `UPDATE stations SET station_number = ?, status = ?, area_id = ?,
		current_patient_id = ?, current_treatment_id = ?, physical_location = ?,
		display_order = ?, notes = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		st.StationNumber, st.Status, st.AreaID,
		nullStr(st.CurrentPatientID), nullStr(st.CurrentTreatmentID),
		st.PhysicalLocation, st.DisplayOrder, st.Notes, st.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateStationNumber
		}
		return fmt.Errorf("updating station %s: %w", st.ID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrStationNotFound
	}
	return nil
}

// UpdateStationStatus changes only the status of a station.
func (r *SQLiteRepository) UpdateStationStatus(ctx context.Context, id string, status string) error {
	if !ValidStatus(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	const query = `UPDATE stations SET status = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("updating station %s status: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrStationNotFound
	}
	return nil
}

// DeleteStation removes a single station by ID.
func (r *SQLiteRepository) DeleteStation(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM stations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting station %s: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrStationNotFound
	}
	return nil
}

// queryStations executes a query and returns a slice of Station.
func (r *SQLiteRepository) queryStations(ctx context.Context, query string, args ...any) ([]Station, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying stations: %w", err)
	}
	defer rows.Close()

	var stations []Station
	for rows.Next() {
		st, err := scanStationRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning station row: %w", err)
		}
		stations = append(stations, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating station rows: %w", err)
	}
	return stations, nil
}

// scanArea scans a single row into a TreatmentArea (for QueryRow).
func scanArea(row *sql.Row) (*TreatmentArea, error) {
	var a TreatmentArea
	var parentAreaID, description sql.NullString
	var active int
	var createdAt, updatedAt string

	err := row.Scan(&a.ID, &a.Name, &a.AreaType, &a.Capacity, &parentAreaID,
		&description, &a.DisplayOrder, &active, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAreaNotFound
		}
		return nil, fmt.Errorf("scanning treatment area: %w", err)
	}
	if parentAreaID.Valid {
		a.ParentAreaID = &parentAreaID.String
	}
	a.Description = description.String
	a.Active = active != 0
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

// scanAreaRow scans a treatment area from a Rows cursor.
func scanAreaRow(rows *sql.Rows) (*TreatmentArea, error) {
	var a TreatmentArea
	var parentAreaID, description sql.NullString
	var active int
	var createdAt, updatedAt string

	err := rows.Scan(&a.ID, &a.Name, &a.AreaType, &a.Capacity, &parentAreaID,
		&description, &a.DisplayOrder, &active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if parentAreaID.Valid {
		a.ParentAreaID = &parentAreaID.String
	}
	a.Description = description.String
	a.Active = active != 0
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

// scanStation scans a single row into a Station (for QueryRow).
func scanStation(row *sql.Row) (*Station, error) {
	var st Station
	var patientID, treatmentID, physicalLocation, notes sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&st.ID, &st.StationNumber, &st.Status, &st.AreaID,
		&patientID, &treatmentID, &physicalLocation, &st.DisplayOrder, &notes,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStationNotFound
		}
		return nil, fmt.Errorf("scanning station: %w", err)
	}
	applyStationNullables(&st, patientID, treatmentID, physicalLocation, notes)
	st.CreatedAt = parseTime(createdAt)
	st.UpdatedAt = parseTime(updatedAt)
	return &st, nil
}

// scanStationRow scans a station from a Rows cursor.
func scanStationRow(rows *sql.Rows) (*Station, error) {
	var st Station
	var patientID, treatmentID, physicalLocation, notes sql.NullString
	var createdAt, updatedAt string

	err := rows.Scan(&st.ID, &st.StationNumber, &st.Status, &st.AreaID,
		&patientID, &treatmentID, &physicalLocation, &st.DisplayOrder, &notes,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	applyStationNullables(&st, patientID, treatmentID, physicalLocation, notes)
	st.CreatedAt = parseTime(createdAt)
	st.UpdatedAt = parseTime(updatedAt)
	return &st, nil
}

func applyStationNullables(st *Station, patientID, treatmentID, physicalLocation, notes sql.NullString) {
	if patientID.Valid {
		st.CurrentPatientID = &patientID.String
	}
	if treatmentID.Valid {
		st.CurrentTreatmentID = &treatmentID.String
	}
	st.PhysicalLocation = physicalLocation.String
	st.Notes = notes.String
}

// nullStr converts a *string to a sql.NullString for nullable columns.
func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// boolToInt converts a bool to the 0/1 integers SQLite stores.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
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
