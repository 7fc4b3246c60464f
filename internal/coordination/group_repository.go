package coordination

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// GroupRepository defines the interface for device group persistence.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type GroupRepository interface {
	Create(ctx context.Context, group *DeviceGroup) error
	GetByID(ctx context.Context, id string) (*DeviceGroup, error)
	// ListByStation returns the active groups at a station ordered by
	// display_order then name.
	ListByStation(ctx context.Context, stationID string) ([]DeviceGroup, error)
	Update(ctx context.Context, group *DeviceGroup) error
	// Deactivate soft-deletes a group. Historical commands that targeted
	// the group keep their frozen device lists.
	Deactivate(ctx context.Context, id string) error
}

// groupColumns is the SELECT column list for group queries.
const groupColumns = `id, station_id, name, group_type, device_ids,
			coordination_rules, description, active, display_order, created_at, updated_at`

// SQLiteGroupRepository implements GroupRepository using SQLite.
type SQLiteGroupRepository struct {
	db *sql.DB
}

// NewSQLiteGroupRepository creates a new SQLite-backed group repository.
func NewSQLiteGroupRepository(db *sql.DB) *SQLiteGroupRepository {
	return &SQLiteGroupRepository{db: db}
}

// Create inserts a new device group.
func (r *SQLiteGroupRepository) Create(ctx context.Context, group *DeviceGroup) error {
	deviceIDsJSON, err := json.Marshal(group.DeviceIDs)
	if err != nil {
		return fmt.Errorf("marshalling device ids: %w", err)
	}
	rulesJSON, err := marshalRules(group.CoordinationRules)
	if err != nil {
		return fmt.Errorf("marshalling coordination rules: %w", err)
	}

	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	query := `
		INSERT INTO device_groups (
			id, station_id, name, group_type, device_ids,
			coordination_rules, description, active, display_order, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		group.ID,
		group.StationID,
		group.Name,
		string(group.GroupType),
		string(deviceIDsJSON),
		rulesJSON,
		nullableString(group.Description),
		boolToInt(group.Active),
		group.DisplayOrder,
		group.CreatedAt.Format(time.RFC3339),
		group.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting group: %w", err)
	}
	return nil
}

// GetByID retrieves a group by its unique identifier.
// Deactivated groups are still returned so historical commands can be
// inspected; callers that only want live groups check Active themselves.
func (r *SQLiteGroupRepository) GetByID(ctx context.Context, id string) (*DeviceGroup, error) {
	query := `SELECT ` + groupColumns + ` FROM device_groups WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	group, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("querying group by id: %w", err)
	}
	return group, nil
}

// ListByStation retrieves all active groups at a station.
func (r *SQLiteGroupRepository) ListByStation(ctx context.Context, stationID string) ([]DeviceGroup, error) {
	query := `SELECT ` + groupColumns + ` FROM device_groups
		WHERE station_id = ? AND active = 1
		ORDER BY display_order, name`

	rows, err := r.db.QueryContext(ctx, query, stationID)
	if err != nil {
		return nil, fmt.Errorf("querying groups: %w", err)
	}
	defer rows.Close()

	var groups []DeviceGroup
	for rows.Next() {
		group, scanErr := scanGroupFromRows(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning group: %w", scanErr)
		}
		groups = append(groups, *group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating groups: %w", err)
	}
	return groups, nil
}

// Update modifies an existing group.
func (r *SQLiteGroupRepository) Update(ctx context.Context, group *DeviceGroup) error {
	deviceIDsJSON, err := json.Marshal(group.DeviceIDs)
	if err != nil {
		return fmt.Errorf("marshalling device ids: %w", err)
	}
	rulesJSON, err := marshalRules(group.CoordinationRules)
	if err != nil {
		return fmt.Errorf("marshalling coordination rules: %w", err)
	}

	group.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE device_groups SET
			name = ?, group_type = ?, device_ids = ?, coordination_rules = ?,
			description = ?, display_order = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		group.Name,
		string(group.GroupType),
		string(deviceIDsJSON),
		rulesJSON,
		nullableString(group.Description),
		group.DisplayOrder,
		group.UpdatedAt.Format(time.RFC3339),
		group.ID,
	)
	if err != nil {
		return fmt.Errorf("updating group: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// Deactivate marks a group inactive.
func (r *SQLiteGroupRepository) Deactivate(ctx context.Context, id string) error {
	query := `
		UPDATE device_groups SET
			active = 0, updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ? AND active = 1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivating group: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// marshalRules serialises the rules map, returning NULL for an empty map
// so the column stays clean for groups without rules.
func marshalRules(rules map[string]string) (any, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(rules)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanGroup scans a single sql.Row into a DeviceGroup.
func scanGroup(row *sql.Row) (*DeviceGroup, error) {
	return scanGroupRow(row)
}

// scanGroupFromRows scans a sql.Rows result into a DeviceGroup.
func scanGroupFromRows(rows *sql.Rows) (*DeviceGroup, error) {
	return scanGroupRow(rows)
}

func scanGroupRow(scanner rowScanner) (*DeviceGroup, error) {
	var g DeviceGroup
	var groupType, deviceIDsJSON string
	var rulesJSON, description sql.NullString
	var active int
	var createdAt, updatedAt string

	err := scanner.Scan(
		&g.ID,
		&g.StationID,
		&g.Name,
		&groupType,
		&deviceIDsJSON,
		&rulesJSON,
		&description,
		&active,
		&g.DisplayOrder,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	g.GroupType = GroupType(groupType)
	g.Active = active != 0

	if description.Valid {
		g.Description = &description.String
	}

	if deviceIDsJSON != "" && deviceIDsJSON != "[]" {
		if jsonErr := json.Unmarshal([]byte(deviceIDsJSON), &g.DeviceIDs); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling device ids: %w", jsonErr)
		}
	}
	if g.DeviceIDs == nil {
		g.DeviceIDs = []string{}
	}

	if rulesJSON.Valid && rulesJSON.String != "" {
		if jsonErr := json.Unmarshal([]byte(rulesJSON.String), &g.CoordinationRules); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling coordination rules: %w", jsonErr)
		}
	}

	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		g.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		g.UpdatedAt = t
	}

	return &g, nil
}

// nullableString converts a *string to a driver-friendly value,
// mapping nil and empty to NULL.
func nullableString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

// boolToInt converts a bool to SQLite's integer representation.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
